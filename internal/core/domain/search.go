package domain

// SearchMode identifies which retrieval strategy to use.
type SearchMode int

const (
	// SearchModeAuto selects the best mode for the services available.
	SearchModeAuto SearchMode = iota

	// SearchModeKeyword uses BM25 full-text search only.
	SearchModeKeyword

	// SearchModeVector uses embedding similarity search only.
	SearchModeVector

	// SearchModeHybrid combines keyword and vector search with
	// reciprocal rank fusion.
	SearchModeHybrid

	// SearchModeFull adds LLM query rewriting on top of hybrid search.
	SearchModeFull
)

// String returns the config-file name of the mode.
func (m SearchMode) String() string {
	switch m {
	case SearchModeKeyword:
		return "keyword"
	case SearchModeVector:
		return "vector"
	case SearchModeHybrid:
		return "hybrid"
	case SearchModeFull:
		return "full"
	default:
		return "auto"
	}
}

// Description returns a human-readable description of the mode.
func (m SearchMode) Description() string {
	switch m {
	case SearchModeKeyword:
		return "keyword (BM25)"
	case SearchModeVector:
		return "vector (semantic)"
	case SearchModeHybrid:
		return "hybrid (BM25 + vector, RRF)"
	case SearchModeFull:
		return "full (LLM rewrite + hybrid)"
	default:
		return "auto"
	}
}

// ParseSearchMode converts a CLI mode string to a SearchMode.
// Unknown strings map to SearchModeAuto.
func ParseSearchMode(s string) SearchMode {
	switch s {
	case "keyword", "bm25", "text":
		return SearchModeKeyword
	case "vector", "semantic":
		return SearchModeVector
	case "hybrid":
		return SearchModeHybrid
	case "full":
		return SearchModeFull
	default:
		return SearchModeAuto
	}
}

// SearchOptions configures a search query.
type SearchOptions struct {
	// Limit is the maximum number of results.
	Limit int

	// Offset is the number of results to skip.
	Offset int

	// Mode selects the retrieval strategy. SearchModeAuto picks the
	// richest mode the configured services allow.
	Mode SearchMode

	// DocumentIDs filters results to specific documents.
	DocumentIDs []string

	// Filters restricts results to chunks whose metadata matches every
	// key-value pair exactly.
	Filters map[string]string
}

// SearchResult represents a single search hit.
type SearchResult struct {
	// Document is the matched document.
	Document Document

	// Chunk is the specific chunk that matched.
	Chunk Chunk

	// Score is the relevance score (RRF score for hybrid, BM25 score
	// for keyword, cosine similarity for vector).
	Score float64

	// Highlights contains snippets with matched terms.
	Highlights []string
}
