package editing

import (
	"bytes"
	"encoding/xml"
	"regexp"
	"strconv"
	"strings"
)

// segment marks a byte range within document.xml.
type segment struct {
	start int
	end   int
}

// tagAt reports the element name of the tag opening at b[i] (which must
// be '<') and whether it is a closing or self-closing tag. The returned
// end is the index just past the '>'.
func tagAt(b []byte, i int) (name string, closing, selfClosing bool, end int) {
	j := i + 1
	if j < len(b) && b[j] == '/' {
		closing = true
		j++
	}
	nameStart := j
	for j < len(b) && b[j] != '>' && b[j] != ' ' && b[j] != '\t' && b[j] != '\r' && b[j] != '\n' && b[j] != '/' {
		j++
	}
	name = string(b[nameStart:j])
	for j < len(b) && b[j] != '>' {
		j++
	}
	if j > i && b[j-1] == '/' {
		selfClosing = true
	}
	return name, closing, selfClosing, j + 1
}

// elementEnd returns the index just past the closing tag of the element
// whose opening tag starts at b[start]. Handles nesting of elements
// with the same name. Returns -1 when the document is malformed.
func elementEnd(b []byte, start int) int {
	name, _, selfClosing, pos := tagAt(b, start)
	if selfClosing {
		return pos
	}
	depth := 1
	for pos < len(b) {
		idx := bytes.IndexByte(b[pos:], '<')
		if idx < 0 {
			return -1
		}
		pos += idx
		n, closing, self, next := tagAt(b, pos)
		if n == name {
			switch {
			case closing:
				depth--
				if depth == 0 {
					return next
				}
			case !self:
				depth++
			}
		}
		pos = next
	}
	return -1
}

// scanBody walks document.xml and returns the byte ranges of the
// top-level body paragraphs and tables. Paragraphs inside table cells
// are not included, matching how the indexer counts paragraphs.
func scanBody(b []byte) (paragraphs, tables []segment) {
	pos := 0
	for pos < len(b) {
		idx := bytes.IndexByte(b[pos:], '<')
		if idx < 0 {
			break
		}
		pos += idx
		name, closing, _, next := tagAt(b, pos)
		if closing {
			pos = next
			continue
		}
		switch name {
		case "w:p":
			end := elementEnd(b, pos)
			if end < 0 {
				return paragraphs, tables
			}
			paragraphs = append(paragraphs, segment{start: pos, end: end})
			pos = end
		case "w:tbl":
			end := elementEnd(b, pos)
			if end < 0 {
				return paragraphs, tables
			}
			tables = append(tables, segment{start: pos, end: end})
			pos = end
		default:
			pos = next
		}
	}
	return paragraphs, tables
}

// childElements returns the byte ranges of direct (non-nested) child
// elements with the given name inside the element spanning b[seg].
func childElements(b []byte, seg segment, name string) []segment {
	var out []segment
	_, _, self, pos := tagAt(b, seg.start)
	if self {
		return nil
	}
	for pos < seg.end {
		idx := bytes.IndexByte(b[pos:seg.end], '<')
		if idx < 0 {
			break
		}
		pos += idx
		n, closing, _, next := tagAt(b, pos)
		if closing {
			pos = next
			continue
		}
		end := elementEnd(b, pos)
		if end < 0 || end > seg.end {
			break
		}
		if n == name {
			out = append(out, segment{start: pos, end: end})
		}
		pos = end
	}
	return out
}

var (
	textElementRe = regexp.MustCompile(`(?s)<w:t(?:\s[^>]*)?>(.*?)</w:t>`)
	pStyleRe      = regexp.MustCompile(`<w:pStyle\s[^>]*w:val="([^"]*)"`)
)

// paragraphText extracts the concatenated run text of a paragraph.
func paragraphText(b []byte, seg segment) string {
	var sb strings.Builder
	for _, m := range textElementRe.FindAllSubmatch(b[seg.start:seg.end], -1) {
		sb.WriteString(xmlUnescape(string(m[1])))
	}
	return sb.String()
}

// paragraphStyle returns the w:pStyle value of a paragraph, or "".
func paragraphStyle(b []byte, seg segment) string {
	m := pStyleRe.FindSubmatch(b[seg.start:seg.end])
	if m == nil {
		return ""
	}
	return string(m[1])
}

// headingLevel returns 1-9 when the style is a Word heading style
// ("Heading1" or "Heading 1"), 0 otherwise.
func headingLevel(style string) int {
	if !strings.HasPrefix(style, "Heading") {
		return 0
	}
	digits := strings.TrimSpace(strings.TrimPrefix(style, "Heading"))
	level, err := strconv.Atoi(digits)
	if err != nil || level < 1 || level > 9 {
		return 0
	}
	return level
}

// firstRunProperties returns the raw <w:rPr> block of the first run in
// the paragraph, or nil when the paragraph has no run properties.
func firstRunProperties(b []byte, seg segment) []byte {
	runs := childElements(b, seg, "w:r")
	if len(runs) == 0 {
		return nil
	}
	props := childElements(b, runs[0], "w:rPr")
	if len(props) == 0 {
		return nil
	}
	out := make([]byte, props[0].end-props[0].start)
	copy(out, b[props[0].start:props[0].end])
	return out
}

// paragraphProperties returns the raw <w:pPr> block of the paragraph.
func paragraphProperties(b []byte, seg segment) []byte {
	props := childElements(b, seg, "w:pPr")
	if len(props) == 0 {
		return nil
	}
	out := make([]byte, props[0].end-props[0].start)
	copy(out, b[props[0].start:props[0].end])
	return out
}

// xmlEscape escapes text for embedding in an XML element.
func xmlEscape(s string) string {
	var buf bytes.Buffer
	_ = xml.EscapeText(&buf, []byte(s))
	return buf.String()
}

var unescaper = strings.NewReplacer(
	"&lt;", "<",
	"&gt;", ">",
	"&quot;", `"`,
	"&apos;", "'",
	"&#34;", `"`,
	"&#39;", "'",
	"&#xA;", "\n",
	"&#x9;", "\t",
	"&#xD;", "\r",
	"&amp;", "&",
)

func xmlUnescape(s string) string {
	if !strings.Contains(s, "&") {
		return s
	}
	return unescaper.Replace(s)
}

// buildParagraph renders a new paragraph element carrying the given
// paragraph and run properties.
func buildParagraph(pPr, rPr []byte, text string) []byte {
	var buf bytes.Buffer
	buf.WriteString("<w:p>")
	buf.Write(pPr)
	buf.Write(buildRun(rPr, text))
	buf.WriteString("</w:p>")
	return buf.Bytes()
}

// buildRun renders a single run with the given properties.
func buildRun(rPr []byte, text string) []byte {
	var buf bytes.Buffer
	buf.WriteString("<w:r>")
	buf.Write(rPr)
	buf.WriteString(`<w:t xml:space="preserve">`)
	buf.WriteString(xmlEscape(text))
	buf.WriteString("</w:t></w:r>")
	return buf.Bytes()
}

// replaceRange splices replacement into b over the given range.
func replaceRange(b []byte, seg segment, replacement []byte) []byte {
	out := make([]byte, 0, len(b)-(seg.end-seg.start)+len(replacement))
	out = append(out, b[:seg.start]...)
	out = append(out, replacement...)
	out = append(out, b[seg.end:]...)
	return out
}
