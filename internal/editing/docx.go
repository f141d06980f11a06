// Package editing applies document changes to Word files by editing
// the OOXML package directly. Untouched parts of the archive are
// copied through byte for byte, and edited paragraphs keep the
// formatting of their first run.
package editing

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/soprev-labs/soprev-cli/internal/core/domain"
)

const documentPart = "word/document.xml"

// Editor edits a single DOCX file. Load it with Open, mutate it with
// the paragraph, section and table operations, then write it out with
// Save. Paragraph indexes refer to top-level body paragraphs, in
// document order, excluding paragraphs inside tables.
type Editor struct {
	parts map[string][]byte
	order []string
	body  []byte
}

// Open reads a DOCX file into memory for editing.
func Open(path string) (*Editor, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read document: %w", err)
	}
	return OpenBytes(content)
}

// OpenBytes reads a DOCX archive from memory.
func OpenBytes(content []byte) (*Editor, error) {
	reader, err := zip.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return nil, fmt.Errorf("open document: %w", domain.ErrInvalidInput)
	}

	e := &Editor{parts: make(map[string][]byte, len(reader.File))}
	for _, file := range reader.File {
		rc, err := file.Open()
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", file.Name, err)
		}
		data, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", file.Name, err)
		}
		e.parts[file.Name] = data
		e.order = append(e.order, file.Name)
	}

	body, ok := e.parts[documentPart]
	if !ok {
		return nil, fmt.Errorf("missing %s: %w", documentPart, domain.ErrInvalidInput)
	}
	e.body = body
	return e, nil
}

// Save writes the edited archive to path.
func (e *Editor) Save(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create output: %w", err)
	}
	defer f.Close()

	if err := e.Write(f); err != nil {
		return err
	}
	return f.Close()
}

// Write serialises the edited archive to w.
func (e *Editor) Write(w io.Writer) error {
	e.parts[documentPart] = e.body

	zw := zip.NewWriter(w)
	for _, name := range e.order {
		entry, err := zw.Create(name)
		if err != nil {
			return fmt.Errorf("write %s: %w", name, err)
		}
		if _, err := entry.Write(e.parts[name]); err != nil {
			return fmt.Errorf("write %s: %w", name, err)
		}
	}
	return zw.Close()
}

// Paragraphs returns the text of every body paragraph.
func (e *Editor) Paragraphs() []string {
	paras, _ := scanBody(e.body)
	out := make([]string, len(paras))
	for i, seg := range paras {
		out[i] = paragraphText(e.body, seg)
	}
	return out
}

// ParagraphCount returns the number of body paragraphs.
func (e *Editor) ParagraphCount() int {
	paras, _ := scanBody(e.body)
	return len(paras)
}

// UpdateParagraphText replaces the text of the paragraph at index,
// keeping the paragraph style and the formatting of its first run.
func (e *Editor) UpdateParagraphText(index int, text string) error {
	paras, _ := scanBody(e.body)
	if index < 0 || index >= len(paras) {
		return fmt.Errorf("paragraph %d: %w", index, domain.ErrLocationOutOfRange)
	}

	seg := paras[index]
	pPr := paragraphProperties(e.body, seg)
	rPr := firstRunProperties(e.body, seg)
	e.body = replaceRange(e.body, seg, buildParagraph(pPr, rPr, text))
	return nil
}

// InsertParagraphAt inserts a new paragraph so it becomes the body
// paragraph at index. index may equal the paragraph count to append at
// the end of the body. The new paragraph borrows formatting from the
// paragraph previously at index, or from the preceding one when
// appending.
func (e *Editor) InsertParagraphAt(index int, text string) error {
	paras, _ := scanBody(e.body)
	if index < 0 || index > len(paras) {
		return fmt.Errorf("paragraph %d: %w", index, domain.ErrLocationOutOfRange)
	}

	var pPr, rPr []byte
	var insertAt int
	switch {
	case index < len(paras):
		insertAt = paras[index].start
		rPr = firstRunProperties(e.body, paras[index])
	case len(paras) > 0:
		insertAt = paras[len(paras)-1].end
		rPr = firstRunProperties(e.body, paras[len(paras)-1])
	default:
		// Empty body: insert before the closing body tag
		insertAt = bytes.Index(e.body, []byte("</w:body>"))
		if insertAt < 0 {
			return fmt.Errorf("malformed document body: %w", domain.ErrInvalidInput)
		}
	}

	e.body = replaceRange(e.body, segment{start: insertAt, end: insertAt}, buildParagraph(pPr, rPr, text))
	return nil
}

// DeleteParagraph removes the body paragraph at index.
func (e *Editor) DeleteParagraph(index int) error {
	paras, _ := scanBody(e.body)
	if index < 0 || index >= len(paras) {
		return fmt.Errorf("paragraph %d: %w", index, domain.ErrLocationOutOfRange)
	}
	e.body = replaceRange(e.body, paras[index], nil)
	return nil
}

// ReplaceSectionAfterHeading replaces every body paragraph after the
// matching heading, up to the next heading of the same or higher level
// (or the end of the document), with the given paragraphs. When
// headingStyle is set, a paragraph matches if its style starts with
// headingStyle and its text contains headingText; otherwise the
// paragraph text must match headingText exactly.
func (e *Editor) ReplaceSectionAfterHeading(headingText, headingStyle string, newParagraphs []string) error {
	paras, _ := scanBody(e.body)

	startIdx := -1
	startLevel := 0
	for i, seg := range paras {
		style := paragraphStyle(e.body, seg)
		text := paragraphText(e.body, seg)
		if headingStyle != "" {
			if strings.HasPrefix(style, headingStyle) && strings.Contains(text, headingText) {
				startIdx = i
				startLevel = headingLevel(style)
				break
			}
		} else if strings.TrimSpace(text) == headingText {
			startIdx = i
			startLevel = headingLevel(style)
			break
		}
	}
	if startIdx == -1 {
		return fmt.Errorf("heading %q: %w", headingText, domain.ErrHeadingNotFound)
	}

	endIdx := len(paras)
	for i := startIdx + 1; i < len(paras); i++ {
		level := headingLevel(paragraphStyle(e.body, paras[i]))
		if level == 0 {
			continue
		}
		if startLevel == 0 || level <= startLevel {
			endIdx = i
			break
		}
	}

	// Formatting for the new content comes from the first replaced
	// paragraph, when there is one.
	var pPr, rPr []byte
	if startIdx+1 < endIdx {
		pPr = paragraphProperties(e.body, paras[startIdx+1])
		rPr = firstRunProperties(e.body, paras[startIdx+1])
	}

	var replacement bytes.Buffer
	for _, text := range newParagraphs {
		replacement.Write(buildParagraph(pPr, rPr, text))
	}

	region := segment{start: paras[startIdx].end, end: paras[startIdx].end}
	if startIdx+1 < endIdx {
		region = segment{start: paras[startIdx+1].start, end: paras[endIdx-1].end}
	}
	e.body = replaceRange(e.body, region, replacement.Bytes())
	return nil
}

// TableCellText returns the text of the given table cell.
func (e *Editor) TableCellText(table, row, col int) (string, error) {
	seg, err := e.cellSegment(table, row, col)
	if err != nil {
		return "", err
	}
	return paragraphText(e.body, seg), nil
}

// UpdateTableCell replaces the text of a table cell, keeping the
// formatting of the cell's first paragraph.
func (e *Editor) UpdateTableCell(table, row, col int, text string) error {
	cell, err := e.cellSegment(table, row, col)
	if err != nil {
		return err
	}

	paras := childElements(e.body, cell, "w:p")
	if len(paras) == 0 {
		return fmt.Errorf("table %d cell (%d,%d) has no paragraph: %w", table, row, col, domain.ErrLocationOutOfRange)
	}

	first := paras[0]
	pPr := paragraphProperties(e.body, first)
	rPr := firstRunProperties(e.body, first)

	// Collapse the cell to a single paragraph with the new text
	region := segment{start: first.start, end: paras[len(paras)-1].end}
	e.body = replaceRange(e.body, region, buildParagraph(pPr, rPr, text))
	return nil
}

func (e *Editor) cellSegment(table, row, col int) (segment, error) {
	_, tables := scanBody(e.body)
	if table < 0 || table >= len(tables) {
		return segment{}, fmt.Errorf("table %d: %w", table, domain.ErrLocationOutOfRange)
	}

	rows := childElements(e.body, tables[table], "w:tr")
	if row < 0 || row >= len(rows) {
		return segment{}, fmt.Errorf("table %d row %d: %w", table, row, domain.ErrLocationOutOfRange)
	}

	cells := childElements(e.body, rows[row], "w:tc")
	if col < 0 || col >= len(cells) {
		return segment{}, fmt.Errorf("table %d cell (%d,%d): %w", table, row, col, domain.ErrLocationOutOfRange)
	}
	return cells[col], nil
}
