package domain

// RawDocument represents opaque bytes read by a connector.
// It is the connector's output before normalisation.
type RawDocument struct {
	// URI is the original location (absolute file path).
	URI string

	// MIMEType is the content type (e.g.
	// "application/vnd.openxmlformats-officedocument.wordprocessingml.document").
	MIMEType string

	// Content is the raw bytes.
	Content []byte

	// Metadata contains connector-specific key-value pairs
	// (file size, modification time, author).
	Metadata map[string]any
}

// FileEventType represents the kind of filesystem change a connector observed.
type FileEventType int

const (
	// FileCreated indicates a new file appeared.
	FileCreated FileEventType = iota

	// FileUpdated indicates a file was modified.
	FileUpdated

	// FileDeleted indicates a file was removed.
	FileDeleted
)

// FileEvent represents a change event from a connector's watch stream.
// Used for incremental indexing and watch mode.
type FileEvent struct {
	// Type is the kind of change.
	Type FileEventType

	// Document is the affected document. For FileDeleted only the URI
	// is populated.
	Document RawDocument
}
