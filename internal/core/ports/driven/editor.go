package driven

import (
	"context"

	"github.com/soprev-labs/soprev-cli/internal/core/domain"
)

// ChangeApplier writes accepted document changes into a Word document.
// The in-tree implementation edits the OOXML package in place while
// preserving formatting of untouched content.
type ChangeApplier interface {
	// Apply writes the given changes to the document at path, saving
	// the result to outPath (outPath may equal path for in-place
	// edits). Changes are applied in an order that keeps earlier
	// paragraph indexes valid. A per-change result is returned even
	// when some changes fail; err reports failures opening or saving
	// the document itself.
	Apply(ctx context.Context, path, outPath string, changes []domain.DocumentChange) ([]ApplyResult, error)
}

// ApplyResult reports the outcome of applying a single change.
type ApplyResult struct {
	// ChangeID is the change that was attempted.
	ChangeID string

	// Applied is true when the edit was written to the document.
	Applied bool

	// Err describes why the change failed, when Applied is false.
	Err error
}

// ChangeDetector compares two documents and emits the edits that turn
// the original into the modified version.
type ChangeDetector interface {
	// Detect compares the documents at the two paths and returns
	// proposed changes describing the differences.
	Detect(ctx context.Context, originalPath, modifiedPath, documentID string) ([]domain.DocumentChange, error)
}
