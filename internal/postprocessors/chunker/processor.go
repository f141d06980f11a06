// Package chunker provides a boundary-aware text chunking processor.
package chunker

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/soprev-labs/soprev-cli/internal/core/domain"
)

// DefaultChunkSize is the default number of characters per chunk.
const DefaultChunkSize = 1000

// DefaultChunkOverlap is the default number of overlapping characters.
const DefaultChunkOverlap = 200

// Processor splits document content into chunks, preferring to break
// at paragraph or sentence boundaries near the target size. Each chunk
// records its character offsets, the range of paragraph indexes it
// covers and the nearest preceding heading so search results can point
// back to editable locations in the source document.
// It implements the PostProcessor interface.
type Processor struct {
	chunkSize int
	overlap   int
}

// Option configures the chunker processor.
type Option func(*Processor)

// WithChunkSize sets the target chunk size in characters.
func WithChunkSize(size int) Option {
	return func(p *Processor) {
		if size > 0 {
			p.chunkSize = size
		}
	}
}

// WithOverlap sets the overlap between chunks in characters.
func WithOverlap(overlap int) Option {
	return func(p *Processor) {
		if overlap >= 0 {
			p.overlap = overlap
		}
	}
}

// New creates a new chunker processor with the given options.
func New(opts ...Option) *Processor {
	p := &Processor{
		chunkSize: DefaultChunkSize,
		overlap:   DefaultChunkOverlap,
	}

	for _, opt := range opts {
		opt(p)
	}

	// Ensure overlap doesn't exceed chunk size
	if p.overlap >= p.chunkSize {
		p.overlap = p.chunkSize / 4
	}

	return p
}

// Name returns the processor name.
func (p *Processor) Name() string {
	return "chunker"
}

// Process splits the document content into chunks.
// Input chunks are ignored; this processor creates new chunks from document content.
func (p *Processor) Process(ctx context.Context, doc *domain.Document, _ []domain.Chunk) ([]domain.Chunk, error) {
	if doc.Content == "" {
		// Empty content produces no chunks
		return nil, nil
	}

	content := doc.Content
	contentLen := len(content)

	estimatedChunks := (contentLen / (p.chunkSize - p.overlap)) + 1
	chunks := make([]domain.Chunk, 0, estimatedChunks)

	paragraphs := paragraphSpans(content)

	position := 0
	start := 0

	for start < contentLen {
		end := start + p.chunkSize
		if end >= contentLen {
			end = contentLen
		} else {
			end = p.snapToBoundary(content, start, end)
		}

		chunk := domain.Chunk{
			ID:         uuid.New().String(),
			DocumentID: doc.ID,
			Content:    content[start:end],
			Position:   position,
			StartChar:  start,
			EndChar:    end,
			Metadata:   make(map[string]any),
		}
		if heading := precedingHeading(content, start); heading != "" {
			chunk.Metadata["heading"] = heading
		}
		if first, last, ok := paragraphRange(paragraphs, start, end); ok {
			chunk.Metadata["paragraph_start"] = first
			chunk.Metadata["paragraph_end"] = last
		}

		chunks = append(chunks, chunk)
		position++

		if end == contentLen {
			break
		}

		next := end - p.overlap
		if next <= start {
			next = end
		}
		start = next
	}

	return chunks, nil
}

// snapToBoundary moves the chunk end backwards to the nearest paragraph
// break, then sentence end, then word break, searching no further back
// than a quarter of the chunk. Falls back to the hard cut when the
// window has no usable boundary.
func (p *Processor) snapToBoundary(content string, start, end int) int {
	window := content[start:end]
	floor := len(window) - len(window)/4

	if idx := strings.LastIndex(window, "\n\n"); idx >= floor {
		return start + idx + 2
	}
	for _, sep := range []string{". ", ".\n", "! ", "? "} {
		if idx := strings.LastIndex(window, sep); idx >= floor {
			return start + idx + len(sep)
		}
	}
	if idx := strings.LastIndexAny(window, " \n\t"); idx >= floor {
		return start + idx + 1
	}
	return end
}

// span marks the byte range of one non-empty content line.
type span struct {
	start int
	end   int
}

// paragraphSpans returns the byte range of every non-empty line.
// Normalisers render one paragraph per non-empty line, so a line's
// ordinal here is the paragraph index that document changes address.
func paragraphSpans(content string) []span {
	var spans []span
	offset := 0
	for _, line := range strings.Split(content, "\n") {
		if strings.TrimSpace(line) != "" {
			spans = append(spans, span{start: offset, end: offset + len(line)})
		}
		offset += len(line) + 1
	}
	return spans
}

// paragraphRange returns the indexes of the first and last paragraph
// overlapping the character range [start, end). ok is false when the
// range covers no paragraph.
func paragraphRange(spans []span, start, end int) (first, last int, ok bool) {
	first, last = -1, -1
	for i, s := range spans {
		if s.end <= start {
			continue
		}
		if s.start >= end {
			break
		}
		if first == -1 {
			first = i
		}
		last = i
	}
	return first, last, first != -1
}

// precedingHeading returns the text of the last markdown-style heading
// line before the given offset, or "" when there is none. Normalisers
// emit section headings as "#"-prefixed lines.
func precedingHeading(content string, offset int) string {
	lines := strings.Split(content[:offset], "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		line := strings.TrimSpace(lines[i])
		if strings.HasPrefix(line, "#") {
			return strings.TrimSpace(strings.TrimLeft(line, "#"))
		}
	}
	return ""
}
