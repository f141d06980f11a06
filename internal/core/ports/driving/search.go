package driving

import (
	"context"

	"github.com/soprev-labs/soprev-cli/internal/core/domain"
)

// SearchService provides search capabilities to external actors.
type SearchService interface {
	// Search performs retrieval across all indexed documents using the
	// mode selected in opts (hybrid by default).
	Search(ctx context.Context, query string, opts domain.SearchOptions) ([]domain.SearchResult, error)
}
