package services

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/soprev-labs/soprev-cli/internal/core/domain"
	"github.com/soprev-labs/soprev-cli/internal/core/ports/driven"
	"github.com/soprev-labs/soprev-cli/internal/core/ports/driving"
	"github.com/soprev-labs/soprev-cli/internal/logger"
)

// Ensure IndexService implements the interface.
var _ driving.IndexService = (*IndexService)(nil)

// ConnectorFactory builds a connector for the given root path.
type ConnectorFactory func(rootPath string) driven.Connector

// IndexService ingests raw documents: normalise, chunk, embed and store.
type IndexService struct {
	docStore     driven.DocumentStore
	searchIndex  driven.SearchEngine
	vectorIndex  driven.VectorIndex
	embedder     driven.EmbeddingService
	normalisers  driven.NormaliserRegistry
	pipeline     driven.PostProcessorPipeline
	syncStore    driven.SyncStateStore
	connectorFor ConnectorFactory
	batchSize    int
	onWrite      func()
}

// NewIndexService creates an index service. The embedder is optional;
// without it chunks are indexed for keyword search only.
func NewIndexService(
	docStore driven.DocumentStore,
	searchIndex driven.SearchEngine,
	vectorIndex driven.VectorIndex,
	embedder driven.EmbeddingService,
	normalisers driven.NormaliserRegistry,
	pipeline driven.PostProcessorPipeline,
	connectorFor ConnectorFactory,
) *IndexService {
	return &IndexService{
		docStore:     docStore,
		searchIndex:  searchIndex,
		vectorIndex:  vectorIndex,
		embedder:     embedder,
		normalisers:  normalisers,
		pipeline:     pipeline,
		connectorFor: connectorFor,
		batchSize:    16,
	}
}

// SetSyncStateStore enables recording of per-directory indexing passes.
func (s *IndexService) SetSyncStateStore(store driven.SyncStateStore) {
	s.syncStore = store
}

// SetEmbedBatchSize overrides how many chunks are embedded per request.
func (s *IndexService) SetEmbedBatchSize(n int) {
	if n > 0 {
		s.batchSize = n
	}
}

// SetOnWrite registers a callback invoked after every index mutation.
// Used to invalidate the retrieval cache.
func (s *IndexService) SetOnWrite(fn func()) {
	s.onWrite = fn
}

// IndexPath indexes a file or recursively indexes a directory.
func (s *IndexService) IndexPath(ctx context.Context, path string, progress func(done int, uri string)) (*driving.IndexReport, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve path: %w", err)
	}

	logger.Section("Indexing")
	logger.Info("Path: %s", abs)

	connector := s.connectorFor(abs)
	defer connector.Close()

	docs, errs := connector.FullScan(ctx)

	report := &driving.IndexReport{}
	for raw := range docs {
		if _, err := s.IndexRaw(ctx, raw); err != nil {
			if errors.Is(err, domain.ErrUnsupportedType) {
				logger.Debug("Skipped %s: %v", raw.URI, err)
				report.Skipped++
			} else {
				logger.Warn("Failed %s: %v", raw.URI, err)
				report.Failed++
				report.Errors = append(report.Errors, fmt.Errorf("%s: %w", raw.URI, err))
			}
		} else {
			report.Indexed++
		}
		if progress != nil {
			progress(report.Indexed+report.Skipped+report.Failed, raw.URI)
		}
	}
	for err := range errs {
		if err != nil {
			report.Failed++
			report.Errors = append(report.Errors, err)
		}
	}

	if err := ctx.Err(); err != nil {
		return report, err
	}

	s.recordSyncState(ctx, abs)

	logger.Info("Indexed %d, skipped %d, failed %d", report.Indexed, report.Skipped, report.Failed)
	return report, nil
}

// IndexRaw indexes a single already-read raw document. Re-indexing a
// known URI bumps its version and replaces its chunks and index entries.
func (s *IndexService) IndexRaw(ctx context.Context, raw domain.RawDocument) (*domain.Document, error) {
	result, err := s.normalisers.Normalise(ctx, &raw)
	if err != nil {
		return nil, err
	}

	doc := result.Document
	doc.URI = raw.URI
	if doc.FileType == "" {
		doc.FileType = strings.ToLower(filepath.Ext(raw.URI))
	}
	if size, ok := raw.Metadata["size_bytes"].(int64); ok {
		doc.Size = size
	}

	now := time.Now().UTC()
	existing, err := s.docStore.GetDocumentByURI(ctx, raw.URI)
	switch {
	case err == nil:
		doc.ID = existing.ID
		doc.Version = existing.Version + 1
		doc.CreatedAt = existing.CreatedAt
		doc.UpdatedAt = now
		logger.Debug("Re-indexing %s as version %d", raw.URI, doc.Version)
		if err := s.removeChunks(ctx, existing.ID); err != nil {
			return nil, err
		}
	case errors.Is(err, domain.ErrNotFound):
		doc.ID = uuid.New().String()
		doc.Version = 1
		doc.CreatedAt = now
		doc.UpdatedAt = now
	default:
		return nil, fmt.Errorf("look up document: %w", err)
	}

	chunks, err := s.pipeline.Process(ctx, &doc)
	if err != nil {
		return nil, fmt.Errorf("chunk document: %w", err)
	}
	logger.Debug("Document %s: %d chunks", doc.ID, len(chunks))

	if s.embedder != nil {
		if err := s.embedChunks(ctx, chunks); err != nil {
			// Keyword search still works without embeddings.
			logger.Warn("Embedding failed for %s: %v", raw.URI, err)
		}
	}

	if err := s.docStore.SaveDocument(ctx, &doc); err != nil {
		return nil, fmt.Errorf("save document: %w", err)
	}
	if err := s.docStore.SaveChunks(ctx, chunks); err != nil {
		return nil, fmt.Errorf("save chunks: %w", err)
	}

	for i := range chunks {
		if err := s.searchIndex.Index(ctx, chunks[i]); err != nil {
			return nil, fmt.Errorf("index chunk: %w", err)
		}
		if s.vectorIndex != nil && len(chunks[i].Embedding) > 0 {
			if err := s.vectorIndex.Add(ctx, chunks[i].ID, chunks[i].Embedding); err != nil {
				return nil, fmt.Errorf("add vector: %w", err)
			}
		}
	}

	s.notifyWrite()
	return &doc, nil
}

// Remove deletes a document together with its chunks and index entries.
func (s *IndexService) Remove(ctx context.Context, documentID string) error {
	if err := s.removeChunks(ctx, documentID); err != nil {
		return err
	}
	if err := s.docStore.DeleteDocument(ctx, documentID); err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	s.notifyWrite()
	return nil
}

// Rebuild repopulates the keyword and vector indexes from the document
// store. Called at startup because the BM25 index is in-memory only.
func (s *IndexService) Rebuild(ctx context.Context) error {
	chunks, err := s.docStore.AllChunks(ctx)
	if err != nil {
		return fmt.Errorf("load chunks: %w", err)
	}

	logger.Debug("Rebuilding indexes from %d chunks", len(chunks))
	for i := range chunks {
		if err := s.searchIndex.Index(ctx, chunks[i]); err != nil {
			return fmt.Errorf("rebuild keyword index: %w", err)
		}
		if s.vectorIndex != nil && len(chunks[i].Embedding) > 0 {
			if err := s.vectorIndex.Add(ctx, chunks[i].ID, chunks[i].Embedding); err != nil {
				return fmt.Errorf("rebuild vector index: %w", err)
			}
		}
	}

	s.notifyWrite()
	return nil
}

// embedChunks fills in chunk embeddings in batches.
func (s *IndexService) embedChunks(ctx context.Context, chunks []domain.Chunk) error {
	for start := 0; start < len(chunks); start += s.batchSize {
		end := start + s.batchSize
		if end > len(chunks) {
			end = len(chunks)
		}

		texts := make([]string, end-start)
		for i := start; i < end; i++ {
			texts[i-start] = chunks[i].Content
		}

		embeddings, err := s.embedder.EmbedBatch(ctx, texts)
		if err != nil {
			return err
		}
		if len(embeddings) != len(texts) {
			return fmt.Errorf("embedding count mismatch: want %d, got %d", len(texts), len(embeddings))
		}
		for i := start; i < end; i++ {
			chunks[i].Embedding = embeddings[i-start]
		}
	}
	return nil
}

// removeChunks deletes a document's chunks from the store and both
// indexes.
func (s *IndexService) removeChunks(ctx context.Context, documentID string) error {
	chunks, err := s.docStore.GetChunks(ctx, documentID)
	if err != nil {
		return fmt.Errorf("load chunks: %w", err)
	}
	for i := range chunks {
		if err := s.searchIndex.Delete(ctx, chunks[i].ID); err != nil {
			return fmt.Errorf("remove from keyword index: %w", err)
		}
		if s.vectorIndex != nil {
			if err := s.vectorIndex.Delete(ctx, chunks[i].ID); err != nil {
				return fmt.Errorf("remove from vector index: %w", err)
			}
		}
	}
	if err := s.docStore.DeleteChunks(ctx, documentID); err != nil {
		return fmt.Errorf("delete chunks: %w", err)
	}
	return nil
}

func (s *IndexService) recordSyncState(ctx context.Context, rootPath string) {
	if s.syncStore == nil {
		return
	}
	now := time.Now().UTC()
	state := domain.SyncState{
		RootPath: rootPath,
		Cursor:   strconv.FormatInt(now.UnixNano(), 10),
		LastSync: now,
	}
	if err := s.syncStore.Save(ctx, state); err != nil {
		logger.Warn("Saving sync state failed: %v", err)
	}
}

func (s *IndexService) notifyWrite() {
	if s.onWrite != nil {
		s.onWrite()
	}
}
