package driving

import (
	"context"

	"github.com/soprev-labs/soprev-cli/internal/core/domain"
)

// DocumentService manages stored documents.
type DocumentService interface {
	// List returns all stored documents.
	List(ctx context.Context) ([]domain.Document, error)

	// Get retrieves a document by ID.
	Get(ctx context.Context, documentID string) (*domain.Document, error)

	// GetByURI retrieves a document by file path.
	GetByURI(ctx context.Context, uri string) (*domain.Document, error)

	// GetContent returns the concatenated content of all chunks.
	GetContent(ctx context.Context, documentID string) (string, error)

	// Summarise produces a short LLM summary of a document's content.
	Summarise(ctx context.Context, documentID string) (string, error)

	// Delete removes a document and its index entries.
	Delete(ctx context.Context, documentID string) error
}
