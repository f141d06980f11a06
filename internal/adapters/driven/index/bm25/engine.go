package bm25

import (
	"context"
	"errors"
	"math"
	"sort"
	"strings"
	"sync"
	"unicode"

	"github.com/soprev-labs/soprev-cli/internal/core/domain"
	"github.com/soprev-labs/soprev-cli/internal/core/ports/driven"
)

// Okapi BM25 parameters.
const (
	k1 = 1.5
	b  = 0.75
)

// Ensure Engine implements the interface.
var _ driven.SearchEngine = (*Engine)(nil)

// Engine provides full-text search using an in-memory Okapi BM25 index.
// The index is rebuilt from the metadata store on startup, so nothing
// is persisted here.
type Engine struct {
	mu     sync.RWMutex
	docs   map[string]*indexedChunk
	df     map[string]int
	total  int
	closed bool
}

// indexedChunk holds the term statistics for one chunk.
type indexedChunk struct {
	terms  map[string]int
	length int
}

// New creates an empty BM25 search engine.
func New() *Engine {
	return &Engine{
		docs: make(map[string]*indexedChunk),
		df:   make(map[string]int),
	}
}

// Index adds or updates a chunk in the search index.
func (e *Engine) Index(_ context.Context, chunk domain.Chunk) error {
	if chunk.ID == "" {
		return domain.ErrInvalidInput
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return errors.New("bm25: engine is closed")
	}

	e.remove(chunk.ID)

	tokens := tokenize(chunk.Content)
	entry := &indexedChunk{
		terms:  make(map[string]int, len(tokens)),
		length: len(tokens),
	}
	for _, token := range tokens {
		entry.terms[token]++
	}
	for term := range entry.terms {
		e.df[term]++
	}

	e.docs[chunk.ID] = entry
	e.total += entry.length
	return nil
}

// Delete removes a chunk from the search index.
func (e *Engine) Delete(_ context.Context, chunkID string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return errors.New("bm25: engine is closed")
	}

	e.remove(chunkID)
	return nil
}

// Search performs a keyword search and returns matching chunk IDs with scores.
func (e *Engine) Search(_ context.Context, query string, limit int) ([]driven.SearchHit, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if e.closed {
		return nil, errors.New("bm25: engine is closed")
	}

	terms := tokenize(query)
	if len(terms) == 0 || len(e.docs) == 0 {
		return nil, nil
	}

	n := float64(len(e.docs))
	avgLen := float64(e.total) / n

	scores := make(map[string]float64)
	for _, term := range terms {
		df, ok := e.df[term]
		if !ok {
			continue
		}

		idf := math.Log(1 + (n-float64(df)+0.5)/(float64(df)+0.5))

		for chunkID, entry := range e.docs {
			tf := float64(entry.terms[term])
			if tf == 0 {
				continue
			}

			norm := 1 - b + b*float64(entry.length)/avgLen
			scores[chunkID] += idf * tf * (k1 + 1) / (tf + k1*norm)
		}
	}

	hits := make([]driven.SearchHit, 0, len(scores))
	for chunkID, score := range scores {
		hits = append(hits, driven.SearchHit{ChunkID: chunkID, Score: score})
	}

	// Deterministic order for equal scores
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].ChunkID < hits[j].ChunkID
	})

	if limit > 0 && len(hits) > limit {
		hits = hits[:limit]
	}
	return hits, nil
}

// Close releases resources. Further operations fail.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.closed = true
	e.docs = nil
	e.df = nil
	e.total = 0
	return nil
}

// Size returns the number of indexed chunks.
func (e *Engine) Size() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.docs)
}

// remove drops a chunk's statistics. Caller holds the write lock.
func (e *Engine) remove(chunkID string) {
	entry, ok := e.docs[chunkID]
	if !ok {
		return
	}

	for term := range entry.terms {
		e.df[term]--
		if e.df[term] <= 0 {
			delete(e.df, term)
		}
	}
	e.total -= entry.length
	delete(e.docs, chunkID)
}

// tokenize lowercases text and splits it on anything that is not a
// letter or digit.
func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}
