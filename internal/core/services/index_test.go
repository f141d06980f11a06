package services

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soprev-labs/soprev-cli/internal/connectors/filesystem"
	"github.com/soprev-labs/soprev-cli/internal/core/domain"
	"github.com/soprev-labs/soprev-cli/internal/core/ports/driven"
	"github.com/soprev-labs/soprev-cli/internal/normalisers"
	"github.com/soprev-labs/soprev-cli/internal/normalisers/markdown"
	"github.com/soprev-labs/soprev-cli/internal/normalisers/plaintext"
	"github.com/soprev-labs/soprev-cli/internal/postprocessors"
	"github.com/soprev-labs/soprev-cli/internal/postprocessors/chunker"
)

type indexFixture struct {
	svc      *IndexService
	docStore *fakeDocStore
	search   *fakeSearchEngine
	vectors  *fakeVectorIndex
	embedder *fakeEmbedder
}

func newIndexFixture(t *testing.T, embedder driven.EmbeddingService) *indexFixture {
	t.Helper()

	registry := normalisers.NewRegistry()
	registry.Register(plaintext.New())
	registry.Register(markdown.New())

	docStore := newFakeDocStore()
	search := newFakeSearchEngine()
	vectors := newFakeVectorIndex()

	svc := NewIndexService(
		docStore,
		search,
		vectors,
		embedder,
		registry,
		postprocessors.NewPipeline(chunker.New()),
		func(rootPath string) driven.Connector { return filesystem.New(rootPath) },
	)

	fx := &indexFixture{svc: svc, docStore: docStore, search: search, vectors: vectors}
	if fe, ok := embedder.(*fakeEmbedder); ok {
		fx.embedder = fe
	}
	return fx
}

func TestIndexService_IndexRaw(t *testing.T) {
	ctx := context.Background()

	t.Run("indexes a new document", func(t *testing.T) {
		fx := newIndexFixture(t, &fakeEmbedder{})

		doc, err := fx.svc.IndexRaw(ctx, rawTextDocument("/sops/handwashing.txt", "Wash hands for twenty seconds."))

		require.NoError(t, err)
		assert.NotEmpty(t, doc.ID)
		assert.Equal(t, 1, doc.Version)
		assert.Equal(t, ".txt", doc.FileType)

		chunks, err := fx.docStore.GetChunks(ctx, doc.ID)
		require.NoError(t, err)
		require.NotEmpty(t, chunks)
		assert.Equal(t, len(chunks), fx.search.size())
		assert.Equal(t, len(chunks), fx.vectors.size())
		assert.Len(t, chunks[0].Embedding, 3)
	})

	t.Run("re-indexing bumps the version and replaces chunks", func(t *testing.T) {
		fx := newIndexFixture(t, &fakeEmbedder{})

		first, err := fx.svc.IndexRaw(ctx, rawTextDocument("/sops/sop.txt", "Original content."))
		require.NoError(t, err)

		second, err := fx.svc.IndexRaw(ctx, rawTextDocument("/sops/sop.txt", "Revised content."))
		require.NoError(t, err)

		assert.Equal(t, first.ID, second.ID)
		assert.Equal(t, 2, second.Version)
		assert.Equal(t, first.CreatedAt, second.CreatedAt)

		chunks, err := fx.docStore.GetChunks(ctx, second.ID)
		require.NoError(t, err)
		require.Len(t, chunks, 1)
		assert.Equal(t, "Revised content.", chunks[0].Content)
		assert.Equal(t, 1, fx.search.size())
	})

	t.Run("unsupported MIME type is rejected", func(t *testing.T) {
		fx := newIndexFixture(t, nil)

		raw := rawTextDocument("/sops/image.png", "binary")
		raw.MIMEType = "image/png"

		_, err := fx.svc.IndexRaw(ctx, raw)

		assert.ErrorIs(t, err, domain.ErrUnsupportedType)
	})

	t.Run("embedding failure still indexes for keyword search", func(t *testing.T) {
		fx := newIndexFixture(t, &fakeEmbedder{err: assert.AnError})

		doc, err := fx.svc.IndexRaw(ctx, rawTextDocument("/sops/sop.txt", "Some content."))

		require.NoError(t, err)
		assert.Equal(t, 1, fx.search.size())
		assert.Equal(t, 0, fx.vectors.size())

		chunks, err := fx.docStore.GetChunks(ctx, doc.ID)
		require.NoError(t, err)
		assert.Empty(t, chunks[0].Embedding)
	})

	t.Run("without embedder only the keyword index is written", func(t *testing.T) {
		fx := newIndexFixture(t, nil)

		_, err := fx.svc.IndexRaw(ctx, rawTextDocument("/sops/sop.txt", "Some content."))

		require.NoError(t, err)
		assert.Equal(t, 1, fx.search.size())
		assert.Equal(t, 0, fx.vectors.size())
	})
}

func TestIndexService_IndexPath(t *testing.T) {
	ctx := context.Background()

	t.Run("indexes a directory tree", func(t *testing.T) {
		dir := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), []byte("Cleaning procedure."), 0644))
		require.NoError(t, os.WriteFile(filepath.Join(dir, "b.md"), []byte("# Cold chain\nKeep between 2C and 8C."), 0644))
		require.NoError(t, os.WriteFile(filepath.Join(dir, "c.zzz"), []byte("unsupported"), 0644))

		fx := newIndexFixture(t, nil)

		var progressCalls int
		report, err := fx.svc.IndexPath(ctx, dir, func(done int, uri string) { progressCalls++ })

		require.NoError(t, err)
		assert.Equal(t, 2, report.Indexed)
		assert.Equal(t, 1, report.Skipped)
		assert.Equal(t, 0, report.Failed)
		assert.Equal(t, 3, progressCalls)

		docs, err := fx.docStore.ListDocuments(ctx)
		require.NoError(t, err)
		assert.Len(t, docs, 2)
	})

	t.Run("indexes a single file", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "sop.txt")
		require.NoError(t, os.WriteFile(path, []byte("Single file."), 0644))

		fx := newIndexFixture(t, nil)

		report, err := fx.svc.IndexPath(ctx, path, nil)

		require.NoError(t, err)
		assert.Equal(t, 1, report.Indexed)
	})

	t.Run("records sync state for the root path", func(t *testing.T) {
		dir := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), []byte("content"), 0644))

		fx := newIndexFixture(t, nil)
		syncStore := &fakeSyncStore{}
		fx.svc.SetSyncStateStore(syncStore)

		_, err := fx.svc.IndexPath(ctx, dir, nil)

		require.NoError(t, err)
		require.NotNil(t, syncStore.saved)
		assert.Equal(t, dir, syncStore.saved.RootPath)
		assert.NotEmpty(t, syncStore.saved.Cursor)
	})
}

func TestIndexService_Remove(t *testing.T) {
	ctx := context.Background()
	fx := newIndexFixture(t, &fakeEmbedder{})

	doc, err := fx.svc.IndexRaw(ctx, rawTextDocument("/sops/sop.txt", "Some content."))
	require.NoError(t, err)

	require.NoError(t, fx.svc.Remove(ctx, doc.ID))

	_, err = fx.docStore.GetDocument(ctx, doc.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.Equal(t, 0, fx.search.size())
	assert.Equal(t, 0, fx.vectors.size())
}

func TestIndexService_Rebuild(t *testing.T) {
	ctx := context.Background()
	fx := newIndexFixture(t, &fakeEmbedder{})

	_, err := fx.svc.IndexRaw(ctx, rawTextDocument("/sops/sop.txt", "Some content."))
	require.NoError(t, err)

	// Simulate a restart: the in-memory indexes are empty.
	fresh := newIndexFixture(t, nil)
	fresh.svc.docStore = fx.docStore

	require.NoError(t, fresh.svc.Rebuild(ctx))

	assert.Equal(t, 1, fresh.search.size())
	assert.Equal(t, 1, fresh.vectors.size())
}

func TestIndexService_OnWrite(t *testing.T) {
	ctx := context.Background()
	fx := newIndexFixture(t, nil)

	var notified int
	fx.svc.SetOnWrite(func() { notified++ })

	_, err := fx.svc.IndexRaw(ctx, rawTextDocument("/sops/sop.txt", "Some content."))
	require.NoError(t, err)

	assert.Equal(t, 1, notified)
}

type fakeSyncStore struct {
	saved *domain.SyncState
}

var _ driven.SyncStateStore = (*fakeSyncStore)(nil)

func (f *fakeSyncStore) Save(_ context.Context, state domain.SyncState) error {
	f.saved = &state
	return nil
}

func (f *fakeSyncStore) Get(_ context.Context, _ string) (*domain.SyncState, error) {
	if f.saved == nil {
		return nil, domain.ErrNotFound
	}
	return f.saved, nil
}

func (f *fakeSyncStore) Delete(_ context.Context, _ string) error {
	f.saved = nil
	return nil
}
