// Package docx normalises Word documents. Paragraph heading styles are
// rendered as markdown headings and tables as tab-separated rows so the
// chunker and the change workflow can locate sections by structure.
package docx

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/xml"
	"io"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/soprev-labs/soprev-cli/internal/core/domain"
	"github.com/soprev-labs/soprev-cli/internal/core/ports/driven"
)

// Ensure Normaliser implements the interface.
var _ driven.Normaliser = (*Normaliser)(nil)

// MIMEType is the DOCX media type.
const MIMEType = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"

// Normaliser handles DOCX documents.
type Normaliser struct{}

// New creates a new DOCX normaliser.
func New() *Normaliser {
	return &Normaliser{}
}

// SupportedMIMETypes returns the MIME types this normaliser handles.
func (n *Normaliser) SupportedMIMETypes() []string {
	return []string{MIMEType}
}

// Priority returns the selection priority.
func (n *Normaliser) Priority() int {
	return 50 // Generic MIME normaliser
}

// Normalise converts a DOCX document to a normalised document.
func (n *Normaliser) Normalise(_ context.Context, raw *domain.RawDocument) (*driven.NormaliseResult, error) {
	if raw == nil {
		return nil, domain.ErrInvalidInput
	}

	// Open as ZIP archive
	reader, err := zip.NewReader(bytes.NewReader(raw.Content), int64(len(raw.Content)))
	if err != nil {
		return nil, domain.ErrInvalidInput
	}

	body, err := extractBody(reader)
	if err != nil {
		return nil, err
	}

	props := extractCoreProperties(reader)
	title := props.Title
	if title == "" {
		title = titleFromURI(raw.URI)
	}

	doc := domain.Document{
		ID:        uuid.New().String(),
		URI:       raw.URI,
		Title:     title,
		Content:   body.render(),
		FileType:  "docx",
		Author:    props.Creator,
		Size:      int64(len(raw.Content)),
		Metadata:  copyMetadata(raw.Metadata),
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}

	if doc.Metadata == nil {
		doc.Metadata = make(map[string]any)
	}
	doc.Metadata["mime_type"] = raw.MIMEType
	doc.Metadata["format"] = "docx"
	doc.Metadata["paragraph_count"] = body.paragraphCount()
	doc.Metadata["table_count"] = len(body.Tables)

	return &driven.NormaliseResult{
		Document: doc,
	}, nil
}

// extractBody parses word/document.xml from the archive.
func extractBody(reader *zip.Reader) (*bodyXML, error) {
	for _, file := range reader.File {
		if file.Name != "word/document.xml" {
			continue
		}

		rc, err := file.Open()
		if err != nil {
			return nil, domain.ErrInvalidInput
		}

		content, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return nil, domain.ErrInvalidInput
		}

		var doc documentXML
		if err := xml.Unmarshal(content, &doc); err != nil {
			return &bodyXML{}, nil
		}
		return &doc.Body, nil
	}
	return &bodyXML{}, nil
}

// documentXML mirrors the parts of word/document.xml the normaliser
// reads. Paragraphs and tables are decoded separately so tables can be
// rendered row by row.
type documentXML struct {
	Body bodyXML `xml:"body"`
}

type bodyXML struct {
	Paragraphs []paragraphXML `xml:"p"`
	Tables     []tableXML     `xml:"tbl"`
}

type paragraphXML struct {
	Properties *paragraphProps `xml:"pPr"`
	Runs       []runXML        `xml:"r"`
}

type paragraphProps struct {
	Style *styleRef `xml:"pStyle"`
}

type styleRef struct {
	Val string `xml:"val,attr"`
}

type runXML struct {
	Text []textXML `xml:"t"`
}

type textXML struct {
	Content string `xml:",chardata"`
}

type tableXML struct {
	Rows []tableRowXML `xml:"tr"`
}

type tableRowXML struct {
	Cells []tableCellXML `xml:"tc"`
}

type tableCellXML struct {
	Paragraphs []paragraphXML `xml:"p"`
}

func (p *paragraphXML) text() string {
	var sb strings.Builder
	for _, r := range p.Runs {
		for _, t := range r.Text {
			sb.WriteString(t.Content)
		}
	}
	return sb.String()
}

// headingLevel returns 1-9 for Heading styles, 0 otherwise.
func (p *paragraphXML) headingLevel() int {
	if p.Properties == nil || p.Properties.Style == nil {
		return 0
	}
	style := p.Properties.Style.Val
	if !strings.HasPrefix(style, "Heading") {
		return 0
	}
	level, err := strconv.Atoi(strings.TrimPrefix(style, "Heading"))
	if err != nil || level < 1 || level > 9 {
		return 0
	}
	return level
}

// render produces the plain-text form of the body: headings prefixed
// with markdown markers, paragraphs separated by blank lines, tables
// appended as tab-separated rows.
func (b *bodyXML) render() string {
	var parts []string

	for _, para := range b.Paragraphs {
		text := strings.TrimSpace(para.text())
		if text == "" {
			continue
		}
		if level := para.headingLevel(); level > 0 {
			text = strings.Repeat("#", level) + " " + text
		}
		parts = append(parts, text)
	}

	for _, table := range b.Tables {
		if rendered := table.render(); rendered != "" {
			parts = append(parts, rendered)
		}
	}

	return strings.Join(parts, "\n\n")
}

func (b *bodyXML) paragraphCount() int {
	count := 0
	for _, para := range b.Paragraphs {
		if strings.TrimSpace(para.text()) != "" {
			count++
		}
	}
	return count
}

func (t *tableXML) render() string {
	var rows []string
	for _, row := range t.Rows {
		cells := make([]string, 0, len(row.Cells))
		for _, cell := range row.Cells {
			var cellText []string
			for _, para := range cell.Paragraphs {
				if text := strings.TrimSpace(para.text()); text != "" {
					cellText = append(cellText, text)
				}
			}
			cells = append(cells, strings.Join(cellText, " "))
		}
		rows = append(rows, strings.Join(cells, "\t"))
	}
	rendered := strings.Join(rows, "\n")
	if strings.TrimSpace(rendered) == "" {
		return ""
	}
	return rendered
}

// coreProperties holds the docProps/core.xml fields the normaliser uses.
type coreProperties struct {
	Title   string `xml:"title"`
	Creator string `xml:"creator"`
}

// extractCoreProperties reads docProps/core.xml. Missing or malformed
// properties produce zero values rather than an error.
func extractCoreProperties(reader *zip.Reader) coreProperties {
	var props coreProperties
	for _, file := range reader.File {
		if file.Name != "docProps/core.xml" {
			continue
		}

		rc, err := file.Open()
		if err != nil {
			break
		}

		content, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			break
		}

		if err := xml.Unmarshal(content, &props); err != nil {
			return coreProperties{}
		}
		props.Title = strings.TrimSpace(props.Title)
		props.Creator = strings.TrimSpace(props.Creator)
		break
	}
	return props
}

// titleFromURI derives a readable title from the file name.
func titleFromURI(uri string) string {
	filename := filepath.Base(uri)
	ext := filepath.Ext(filename)
	if ext != "" {
		filename = strings.TrimSuffix(filename, ext)
	}
	filename = strings.ReplaceAll(filename, "_", " ")
	filename = strings.ReplaceAll(filename, "-", " ")
	return filename
}

// copyMetadata creates a shallow copy of metadata.
func copyMetadata(src map[string]any) map[string]any {
	if src == nil {
		return nil
	}
	dst := make(map[string]any, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}
