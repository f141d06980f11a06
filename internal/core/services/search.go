package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/soprev-labs/soprev-cli/internal/core/domain"
	"github.com/soprev-labs/soprev-cli/internal/core/ports/driven"
	"github.com/soprev-labs/soprev-cli/internal/core/ports/driving"
	"github.com/soprev-labs/soprev-cli/internal/logger"
)

// Ensure SearchService implements the interface.
var _ driving.SearchService = (*SearchService)(nil)

// rrfK is the reciprocal rank fusion constant. It keeps top ranks from
// dominating the fused score.
const rrfK = 60

// Score shaping weights applied on top of RRF for hybrid results.
const (
	lengthBoostWeight   = 0.1
	positionBoostWeight = 0.05
)

// scoredChunk holds intermediate search results before hydration.
type scoredChunk struct {
	chunkID string
	score   float64
	source  string // "keyword", "vector", or "merged"
}

// SearchService provides hybrid retrieval over the indexed SOP corpus.
type SearchService struct {
	docStore         driven.DocumentStore
	searchIndex      driven.SearchEngine
	vectorIndex      driven.VectorIndex
	embeddingService driven.EmbeddingService
	llmService       driven.LLMService

	cacheMu sync.Mutex
	cache   map[string][]domain.SearchResult
}

// NewSearchService creates a search service. The embeddingService and
// llmService parameters are optional (can be nil); search degrades to
// keyword-only without them.
func NewSearchService(
	docStore driven.DocumentStore,
	searchIndex driven.SearchEngine,
	vectorIndex driven.VectorIndex,
	embeddingService driven.EmbeddingService,
	llmService driven.LLMService,
) *SearchService {
	return &SearchService{
		docStore:         docStore,
		searchIndex:      searchIndex,
		vectorIndex:      vectorIndex,
		embeddingService: embeddingService,
		llmService:       llmService,
		cache:            make(map[string][]domain.SearchResult),
	}
}

// InvalidateCache drops cached results. Called after index writes.
func (s *SearchService) InvalidateCache() {
	s.cacheMu.Lock()
	s.cache = make(map[string][]domain.SearchResult)
	s.cacheMu.Unlock()
}

// Search performs retrieval across all indexed documents.
func (s *SearchService) Search(
	ctx context.Context, query string, opts domain.SearchOptions,
) ([]domain.SearchResult, error) {
	logger.Section("Search Execution")
	logger.Debug("Query: %q", query)

	query = strings.TrimSpace(query)
	if query == "" {
		return []domain.SearchResult{}, nil
	}

	limit := opts.Limit
	if limit <= 0 {
		limit = 20
	}

	if cached, ok := s.cached(query, opts, limit); ok {
		logger.Debug("Cache hit")
		return cached, nil
	}

	// Request more results internally to account for filtering.
	internalLimit := limit * 2
	if len(opts.DocumentIDs) > 0 || len(opts.Filters) > 0 {
		internalLimit = limit * 3
	}

	mode := s.effectiveMode(opts.Mode)
	logger.Info("Effective search mode: %s", mode.Description())

	var chunks []scoredChunk
	var err error

	switch mode {
	case domain.SearchModeKeyword:
		chunks, err = s.keywordSearch(ctx, query, internalLimit)
	case domain.SearchModeVector:
		chunks, err = s.vectorSearch(ctx, query, internalLimit)
	case domain.SearchModeHybrid:
		chunks, err = s.hybridSearch(ctx, query, internalLimit)
	case domain.SearchModeFull:
		chunks, err = s.fullSearch(ctx, query, internalLimit)
	default:
		chunks, err = s.keywordSearch(ctx, query, internalLimit)
	}
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}

	logger.Debug("Raw results: %d chunks", len(chunks))

	results, err := s.hydrateResults(ctx, chunks, query, opts)
	if err != nil {
		return nil, fmt.Errorf("hydrate results: %w", err)
	}

	results = applyPagination(results, opts.Offset, limit)
	logger.Info("Final results: %d", len(results))

	s.store(query, opts, limit, results)
	return results, nil
}

// effectiveMode resolves the requested mode against the services that
// are actually available, degrading gracefully.
func (s *SearchService) effectiveMode(requested domain.SearchMode) domain.SearchMode {
	canVector := s.vectorIndex != nil && s.embeddingService != nil
	canLLM := s.llmService != nil

	switch requested {
	case domain.SearchModeKeyword:
		return domain.SearchModeKeyword
	case domain.SearchModeVector:
		if canVector {
			return domain.SearchModeVector
		}
		return domain.SearchModeKeyword
	case domain.SearchModeHybrid:
		if canVector {
			return domain.SearchModeHybrid
		}
		return domain.SearchModeKeyword
	case domain.SearchModeFull:
		if canVector && canLLM {
			return domain.SearchModeFull
		}
		if canVector {
			return domain.SearchModeHybrid
		}
		return domain.SearchModeKeyword
	default: // SearchModeAuto
		if canVector && canLLM {
			return domain.SearchModeFull
		}
		if canVector {
			return domain.SearchModeHybrid
		}
		return domain.SearchModeKeyword
	}
}

// keywordSearch performs BM25 full-text search.
func (s *SearchService) keywordSearch(ctx context.Context, query string, limit int) ([]scoredChunk, error) {
	if s.searchIndex == nil {
		return nil, domain.ErrSearchUnavailable
	}

	hits, err := s.searchIndex.Search(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("keyword search: %w", err)
	}
	logger.Debug("Keyword search: %d hits", len(hits))

	results := make([]scoredChunk, len(hits))
	for i, hit := range hits {
		results[i] = scoredChunk{chunkID: hit.ChunkID, score: hit.Score, source: "keyword"}
	}
	return results, nil
}

// vectorSearch performs semantic similarity search.
func (s *SearchService) vectorSearch(ctx context.Context, query string, limit int) ([]scoredChunk, error) {
	if s.vectorIndex == nil {
		return nil, domain.ErrVectorIndexUnavailable
	}
	if s.embeddingService == nil {
		return nil, domain.ErrEmbeddingUnavailable
	}

	embedding, err := s.embeddingService.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("generate query embedding: %w", err)
	}

	hits, err := s.vectorIndex.Search(ctx, embedding, limit)
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}
	logger.Debug("Vector search: %d hits", len(hits))

	results := make([]scoredChunk, len(hits))
	for i, hit := range hits {
		results[i] = scoredChunk{chunkID: hit.ChunkID, score: hit.Similarity, source: "vector"}
	}
	return results, nil
}

// hybridSearch runs keyword and vector search in parallel and fuses the
// ranked lists with RRF plus score shaping.
func (s *SearchService) hybridSearch(ctx context.Context, query string, limit int) ([]scoredChunk, error) {
	var keywordResults, vectorResults []scoredChunk
	var keywordErr, vectorErr error

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		keywordResults, keywordErr = s.keywordSearch(ctx, query, limit)
	}()
	go func() {
		defer wg.Done()
		vectorResults, vectorErr = s.vectorSearch(ctx, query, limit)
	}()
	wg.Wait()

	// Degrade to the surviving list if one side fails.
	if keywordErr != nil && vectorErr != nil {
		return nil, fmt.Errorf("hybrid search: keyword=%w, vector=%w", keywordErr, vectorErr)
	}
	if keywordErr != nil {
		logger.Warn("Hybrid search: keyword side failed: %v", keywordErr)
		return vectorResults, nil
	}
	if vectorErr != nil {
		logger.Warn("Hybrid search: vector side failed: %v", vectorErr)
		return keywordResults, nil
	}

	merged := reciprocalRankFusion(keywordResults, vectorResults, rrfK)
	s.shapeScores(ctx, merged)

	sort.Slice(merged, func(i, j int) bool {
		return merged[i].score > merged[j].score
	})
	if len(merged) > limit {
		merged = merged[:limit]
	}
	return merged, nil
}

// fullSearch rewrites the query with the LLM before running hybrid
// search. Rewrite failures fall back to the original query.
func (s *SearchService) fullSearch(ctx context.Context, query string, limit int) ([]scoredChunk, error) {
	expandedQuery := query
	if s.llmService != nil {
		expanded, err := s.llmService.RewriteQuery(ctx, query)
		if err == nil && strings.TrimSpace(expanded) != "" {
			expandedQuery = expanded
			logger.Info("Query rewrite: %q -> %q", query, expanded)
		} else if err != nil {
			logger.Warn("Query rewrite failed: %v (using original query)", err)
		}
	}
	return s.hybridSearch(ctx, expandedQuery, limit)
}

// reciprocalRankFusion merges two ranked lists. Each item scores
// 1/(k+rank+1) per list it appears in.
func reciprocalRankFusion(list1, list2 []scoredChunk, k int) []scoredChunk {
	scores := make(map[string]float64)
	for rank, chunk := range list1 {
		scores[chunk.chunkID] += 1.0 / float64(k+rank+1)
	}
	for rank, chunk := range list2 {
		scores[chunk.chunkID] += 1.0 / float64(k+rank+1)
	}

	results := make([]scoredChunk, 0, len(scores))
	for id, score := range scores {
		results = append(results, scoredChunk{chunkID: id, score: score, source: "merged"})
	}
	return results
}

// shapeScores adds chunk-length and document-position boosts to fused
// scores. Longer chunks carry more context; chunks near the start of an
// SOP usually hold scope and responsibility statements.
func (s *SearchService) shapeScores(ctx context.Context, chunks []scoredChunk) {
	for i := range chunks {
		chunk, err := s.docStore.GetChunk(ctx, chunks[i].chunkID)
		if err != nil {
			continue
		}

		lengthNorm := (float64(len(chunk.Content)) - 50) / 150
		if lengthNorm < 0 {
			lengthNorm = 0
		}
		if lengthNorm > 1 {
			lengthNorm = 1
		}
		chunks[i].score += lengthBoostWeight * lengthNorm

		chunks[i].score += positionBoostWeight / float64(chunk.Position+1)
	}
}

// hydrateResults converts chunk IDs into full results, applying the
// document and metadata filters from opts.
func (s *SearchService) hydrateResults(
	ctx context.Context, chunks []scoredChunk, query string, opts domain.SearchOptions,
) ([]domain.SearchResult, error) {
	if s.docStore == nil {
		return nil, errors.New("document store unavailable")
	}

	docFilter := make(map[string]bool, len(opts.DocumentIDs))
	for _, id := range opts.DocumentIDs {
		docFilter[id] = true
	}

	results := make([]domain.SearchResult, 0, len(chunks))
	for _, sc := range chunks {
		chunk, err := s.docStore.GetChunk(ctx, sc.chunkID)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				continue // chunk was deleted after indexing
			}
			return nil, fmt.Errorf("get chunk %s: %w", sc.chunkID, err)
		}

		if len(docFilter) > 0 && !docFilter[chunk.DocumentID] {
			continue
		}
		if !matchesFilters(chunk.Metadata, opts.Filters) {
			continue
		}

		doc, err := s.docStore.GetDocument(ctx, chunk.DocumentID)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				continue
			}
			return nil, fmt.Errorf("get document %s: %w", chunk.DocumentID, err)
		}

		results = append(results, domain.SearchResult{
			Document:   *doc,
			Chunk:      *chunk,
			Score:      sc.score,
			Highlights: generateHighlights(chunk.Content, query),
		})
	}
	return results, nil
}

// matchesFilters reports whether chunk metadata satisfies every filter
// pair exactly.
func matchesFilters(metadata map[string]any, filters map[string]string) bool {
	for key, want := range filters {
		value, ok := metadata[key]
		if !ok {
			return false
		}
		if fmt.Sprint(value) != want {
			return false
		}
	}
	return true
}

// generateHighlights creates up to three sentence snippets containing
// query terms.
func generateHighlights(content, query string) []string {
	queryTerms := strings.Fields(strings.ToLower(query))
	if len(queryTerms) == 0 {
		return nil
	}

	var highlights []string
	for _, sentence := range splitSentences(content) {
		sentence = strings.TrimSpace(sentence)
		if sentence == "" {
			continue
		}

		sentenceLower := strings.ToLower(sentence)
		for _, term := range queryTerms {
			if strings.Contains(sentenceLower, term) {
				if len(sentence) > 200 {
					sentence = sentence[:200] + "..."
				}
				highlights = append(highlights, sentence)
				break
			}
		}
		if len(highlights) >= 3 {
			break
		}
	}
	return highlights
}

// splitSentences splits content on common sentence terminators.
func splitSentences(content string) []string {
	var sentences []string
	var current strings.Builder

	for _, r := range content {
		current.WriteRune(r)
		if r == '.' || r == '!' || r == '?' || r == '\n' {
			if s := strings.TrimSpace(current.String()); s != "" {
				sentences = append(sentences, s)
			}
			current.Reset()
		}
	}
	if s := strings.TrimSpace(current.String()); s != "" {
		sentences = append(sentences, s)
	}
	return sentences
}

// applyPagination applies offset and limit to results.
func applyPagination(results []domain.SearchResult, offset, limit int) []domain.SearchResult {
	if offset >= len(results) {
		return []domain.SearchResult{}
	}
	end := offset + limit
	if end > len(results) {
		end = len(results)
	}
	return results[offset:end]
}

func (s *SearchService) cacheKey(query string, opts domain.SearchOptions, limit int) string {
	return fmt.Sprintf("%d|%d|%d|%v|%v|%s", opts.Mode, limit, opts.Offset, opts.DocumentIDs, opts.Filters, query)
}

func (s *SearchService) cached(query string, opts domain.SearchOptions, limit int) ([]domain.SearchResult, bool) {
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()
	results, ok := s.cache[s.cacheKey(query, opts, limit)]
	return results, ok
}

func (s *SearchService) store(query string, opts domain.SearchOptions, limit int, results []domain.SearchResult) {
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()
	s.cache[s.cacheKey(query, opts, limit)] = results
}
