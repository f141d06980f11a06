package driven

import (
	"context"

	"github.com/soprev-labs/soprev-cli/internal/core/domain"
)

// Connector reads SOP files from a data source. The only built-in
// connector is the local filesystem; the interface keeps the indexing
// pipeline independent of where documents come from.
type Connector interface {
	// Type returns the connector type identifier.
	Type() string

	// RootPath returns the configured root location.
	RootPath() string

	// Validate checks if the connector is properly configured.
	// For filesystem, this checks the path exists and is readable.
	// Returns nil if ready to index, error describing the problem otherwise.
	Validate(ctx context.Context) error

	// FullScan reads all documents from the source.
	// Returns channels for documents and errors. Both are closed when
	// the scan finishes or the context is cancelled.
	FullScan(ctx context.Context) (<-chan domain.RawDocument, <-chan error)

	// Watch listens for file changes and emits events until the
	// context is cancelled.
	Watch(ctx context.Context) (<-chan domain.FileEvent, error)

	// Close releases resources.
	Close() error
}
