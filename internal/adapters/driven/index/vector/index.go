// Package vector provides a flat cosine-similarity index persisted to
// a single binary file. Every search scans all vectors, which is fast
// enough for the corpus sizes a local SOP library reaches.
package vector

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/soprev-labs/soprev-cli/internal/core/domain"
	"github.com/soprev-labs/soprev-cli/internal/core/ports/driven"
)

// File format constants.
const (
	fileMagic   = uint32(0x53565849) // "SVXI"
	fileVersion = uint32(1)
)

// Ensure Index implements the interface.
var _ driven.VectorIndex = (*Index)(nil)

// entry holds one stored vector with its precomputed norm.
type entry struct {
	vector []float32
	norm   float64
}

// Index is a flat cosine-similarity vector index.
type Index struct {
	mu      sync.RWMutex
	path    string
	entries map[string]entry
	dims    int
	dirty   bool
	closed  bool
}

// Open loads the index at path, creating an empty one when the file
// does not exist yet.
func Open(path string) (*Index, error) {
	idx := &Index{
		path:    path,
		entries: make(map[string]entry),
	}

	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return idx, nil
		}
		return nil, fmt.Errorf("opening vector index: %w", err)
	}
	defer f.Close()

	if err := idx.load(f); err != nil {
		return nil, fmt.Errorf("loading vector index %s: %w", path, err)
	}
	return idx, nil
}

// Add inserts or replaces a vector for the given chunk ID.
func (idx *Index) Add(_ context.Context, chunkID string, embedding []float32) error {
	if chunkID == "" || len(embedding) == 0 {
		return domain.ErrInvalidInput
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()

	if idx.closed {
		return errors.New("vector: index is closed")
	}

	if idx.dims == 0 {
		idx.dims = len(embedding)
	} else if len(embedding) != idx.dims {
		return fmt.Errorf("vector: dimension mismatch: index holds %d, got %d: %w",
			idx.dims, len(embedding), domain.ErrInvalidInput)
	}

	stored := make([]float32, len(embedding))
	copy(stored, embedding)

	idx.entries[chunkID] = entry{vector: stored, norm: norm(stored)}
	idx.dirty = true
	return nil
}

// Delete removes a vector from the index.
func (idx *Index) Delete(_ context.Context, chunkID string) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	if idx.closed {
		return errors.New("vector: index is closed")
	}

	if _, ok := idx.entries[chunkID]; ok {
		delete(idx.entries, chunkID)
		idx.dirty = true
	}
	return nil
}

// Search finds the k nearest neighbours to the query vector by cosine
// similarity.
func (idx *Index) Search(_ context.Context, query []float32, k int) ([]driven.VectorHit, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	if idx.closed {
		return nil, errors.New("vector: index is closed")
	}
	if len(query) == 0 || len(idx.entries) == 0 {
		return nil, nil
	}
	if idx.dims != 0 && len(query) != idx.dims {
		return nil, fmt.Errorf("vector: dimension mismatch: index holds %d, got %d: %w",
			idx.dims, len(query), domain.ErrInvalidInput)
	}

	queryNorm := norm(query)
	if queryNorm == 0 {
		return nil, nil
	}

	hits := make([]driven.VectorHit, 0, len(idx.entries))
	for chunkID, e := range idx.entries {
		if e.norm == 0 {
			continue
		}
		hits = append(hits, driven.VectorHit{
			ChunkID:    chunkID,
			Similarity: dot(query, e.vector) / (queryNorm * e.norm),
		})
	}

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Similarity != hits[j].Similarity {
			return hits[i].Similarity > hits[j].Similarity
		}
		return hits[i].ChunkID < hits[j].ChunkID
	})

	if k > 0 && len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

// Save persists the index to disk when it has unsaved changes.
func (idx *Index) Save() error {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	return idx.saveLocked()
}

// Close persists the index and rejects further operations.
func (idx *Index) Close() error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	if idx.closed {
		return nil
	}

	err := idx.saveLocked()
	idx.closed = true
	idx.entries = nil
	return err
}

// Len returns the number of stored vectors.
func (idx *Index) Len() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.entries)
}

// Dimensions returns the vector size the index holds, 0 when empty.
func (idx *Index) Dimensions() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.dims
}

// saveLocked writes the index file atomically. Caller holds the write
// lock.
func (idx *Index) saveLocked() error {
	if !idx.dirty {
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(idx.path), 0700); err != nil {
		return fmt.Errorf("creating index directory: %w", err)
	}

	tmp := idx.path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("creating vector index file: %w", err)
	}

	if err := idx.write(f); err != nil {
		f.Close()          //nolint:errcheck
		os.Remove(tmp)     //nolint:errcheck
		return fmt.Errorf("writing vector index: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp) //nolint:errcheck
		return fmt.Errorf("closing vector index file: %w", err)
	}

	if err := os.Rename(tmp, idx.path); err != nil {
		return fmt.Errorf("replacing vector index file: %w", err)
	}

	idx.dirty = false
	return nil
}

// write serialises the index: header, then one record per vector.
func (idx *Index) write(w io.Writer) error {
	header := []uint32{fileMagic, fileVersion, uint32(idx.dims), uint32(len(idx.entries))}
	for _, v := range header {
		if err := binary.Write(w, binary.LittleEndian, v); err != nil {
			return err
		}
	}

	for chunkID, e := range idx.entries {
		id := []byte(chunkID)
		if err := binary.Write(w, binary.LittleEndian, uint32(len(id))); err != nil {
			return err
		}
		if _, err := w.Write(id); err != nil {
			return err
		}
		if err := binary.Write(w, binary.LittleEndian, e.vector); err != nil {
			return err
		}
	}
	return nil
}

// load reads a serialised index.
func (idx *Index) load(r io.Reader) error {
	var magic, version, dims, count uint32
	for _, dst := range []*uint32{&magic, &version, &dims, &count} {
		if err := binary.Read(r, binary.LittleEndian, dst); err != nil {
			return fmt.Errorf("reading header: %w", err)
		}
	}

	if magic != fileMagic {
		return errors.New("not a vector index file")
	}
	if version != fileVersion {
		return fmt.Errorf("unsupported index version %d", version)
	}

	idx.dims = int(dims)
	idx.entries = make(map[string]entry, count)

	for i := uint32(0); i < count; i++ {
		var idLen uint32
		if err := binary.Read(r, binary.LittleEndian, &idLen); err != nil {
			return fmt.Errorf("reading record %d: %w", i, err)
		}

		id := make([]byte, idLen)
		if _, err := io.ReadFull(r, id); err != nil {
			return fmt.Errorf("reading record %d id: %w", i, err)
		}

		vec := make([]float32, dims)
		if err := binary.Read(r, binary.LittleEndian, vec); err != nil {
			return fmt.Errorf("reading record %d vector: %w", i, err)
		}

		idx.entries[string(id)] = entry{vector: vec, norm: norm(vec)}
	}
	return nil
}

// dot computes the dot product of two equal-length vectors.
func dot(a, b []float32) float64 {
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}

// norm computes the Euclidean norm of a vector.
func norm(v []float32) float64 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return math.Sqrt(sum)
}
