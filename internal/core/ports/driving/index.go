package driving

import (
	"context"

	"github.com/soprev-labs/soprev-cli/internal/core/domain"
)

// IndexService ingests SOP files into the document store and indexes.
type IndexService interface {
	// IndexPath indexes a file or recursively indexes a directory.
	// Re-indexing a known file bumps its version and replaces its
	// chunks. The optional progress callback is invoked after each
	// file with the number processed so far.
	IndexPath(ctx context.Context, path string, progress func(done int, uri string)) (*IndexReport, error)

	// IndexRaw indexes a single already-read raw document.
	IndexRaw(ctx context.Context, raw domain.RawDocument) (*domain.Document, error)

	// Remove deletes a document and its index entries.
	Remove(ctx context.Context, documentID string) error

	// Rebuild repopulates the keyword and vector indexes from the
	// document store. Called at startup.
	Rebuild(ctx context.Context) error
}

// IndexReport summarises an indexing pass.
type IndexReport struct {
	// Indexed is the number of documents successfully indexed.
	Indexed int

	// Skipped is the number of files skipped (unsupported type).
	Skipped int

	// Failed is the number of files that errored.
	Failed int

	// Errors holds one error per failed file.
	Errors []error
}
