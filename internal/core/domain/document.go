package domain

import "time"

// Document represents an indexed SOP document with metadata.
// It is the canonical representation after normalisation.
type Document struct {
	// ID is the unique identifier for the document.
	ID string

	// URI is the original location on disk (absolute file path).
	URI string

	// Title is the human-readable title, from document properties or
	// derived from the filename.
	Title string

	// Content is the full text content after normalisation.
	// This is the complete document text before chunking.
	Content string

	// FileType is the lowercase file extension (e.g. ".docx").
	FileType string

	// Author is the document author from file properties, if known.
	Author string

	// Size is the file size in bytes at indexing time.
	Size int64

	// Version starts at 1 and increments each time the same URI is
	// re-indexed. Chunks always belong to the latest version.
	Version int

	// Metadata contains arbitrary key-value pairs.
	Metadata map[string]any

	// CreatedAt is when the document was first indexed.
	CreatedAt time.Time

	// UpdatedAt is when the document was last re-indexed.
	UpdatedAt time.Time
}

// Chunk represents a searchable unit within a document.
// Documents are split into chunks for granular retrieval.
type Chunk struct {
	// ID is the unique identifier for the chunk.
	ID string

	// DocumentID links to the parent Document.
	DocumentID string

	// Content is the text content of this chunk.
	Content string

	// Position is the ordinal position within the document.
	Position int

	// StartChar and EndChar are character offsets into the document
	// content, when the chunker can provide them.
	StartChar int
	EndChar   int

	// Embedding is the vector representation for semantic search.
	// Empty when the embedding service is disabled.
	Embedding []float32

	// Metadata contains chunk-specific key-value pairs. The chunker
	// records paragraph_start, paragraph_end and heading here so
	// retrieval hits can be mapped back to editable locations.
	Metadata map[string]any
}

// SyncState tracks incremental indexing progress for a watched root path.
type SyncState struct {
	// RootPath is the watched directory.
	RootPath string

	// Cursor is an opaque position marker (nanosecond timestamp of the
	// last completed pass).
	Cursor string

	// LastSync is when the last indexing pass completed.
	LastSync time.Time
}
