package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/soprev-labs/soprev-cli/internal/adapters/driven/ai"
	"github.com/soprev-labs/soprev-cli/internal/adapters/driven/config/file"
	"github.com/soprev-labs/soprev-cli/internal/adapters/driven/index/bm25"
	"github.com/soprev-labs/soprev-cli/internal/adapters/driven/index/vector"
	"github.com/soprev-labs/soprev-cli/internal/adapters/driven/storage/sqlite"
	"github.com/soprev-labs/soprev-cli/internal/connectors/filesystem"
	"github.com/soprev-labs/soprev-cli/internal/core/ports/driven"
	"github.com/soprev-labs/soprev-cli/internal/core/services"
	"github.com/soprev-labs/soprev-cli/internal/editing"
	"github.com/soprev-labs/soprev-cli/internal/logger"
	"github.com/soprev-labs/soprev-cli/internal/normalisers"
	"github.com/soprev-labs/soprev-cli/internal/normalisers/docx"
	"github.com/soprev-labs/soprev-cli/internal/normalisers/html"
	"github.com/soprev-labs/soprev-cli/internal/normalisers/markdown"
	"github.com/soprev-labs/soprev-cli/internal/normalisers/plaintext"
	"github.com/soprev-labs/soprev-cli/internal/postprocessors"
	"github.com/soprev-labs/soprev-cli/internal/postprocessors/chunker"
)

// application holds process-wide resources that need closing on exit.
type application struct {
	store    *sqlite.Store
	vectors  *vector.Index
	embedder driven.EmbeddingService
	llm      driven.LLMService
}

var (
	runningApp   *application
	bootstrapped bool
)

// bootstrap wires adapters and services from the configured
// directories. AI providers are optional; without them the application
// runs in keyword-only mode.
func bootstrap() error {
	configStore, err := file.NewConfigStore(configDir)
	if err != nil {
		return fmt.Errorf("open config store: %w", err)
	}
	settingsService = services.NewSettingsService(configStore)

	settings, err := settingsService.Get()
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}

	promptStore, err := file.NewPromptStore(promptDir())
	if err != nil {
		return fmt.Errorf("open prompt store: %w", err)
	}

	store, err := sqlite.NewStore(dataDir)
	if err != nil {
		return fmt.Errorf("open metadata store: %w", err)
	}

	vectorPath, err := resolveDataPath("vectors.idx")
	if err != nil {
		store.Close()
		return err
	}
	vectors, err := vector.Open(vectorPath)
	if err != nil {
		store.Close()
		return fmt.Errorf("open vector index: %w", err)
	}

	// Missing or unreachable providers degrade retrieval instead of
	// failing every command.
	embedder, err := ai.CreateEmbeddingService(&settings.Embedding)
	if err != nil {
		logger.Warn("Embedding provider unavailable: %v", err)
		embedder = nil
	}
	llm, err := ai.CreateLLMService(&settings.LLM)
	if err != nil {
		logger.Warn("LLM provider unavailable: %v", err)
		llm = nil
	}

	registry := normalisers.NewRegistry()
	registry.Register(docx.New())
	registry.Register(markdown.New())
	registry.Register(plaintext.New())
	registry.Register(html.New())

	pipeline := postprocessors.NewPipeline(chunker.New(
		chunker.WithChunkSize(settings.Indexing.ChunkSize),
		chunker.WithOverlap(settings.Indexing.ChunkOverlap),
	))

	engine := bm25.New()
	connectorFor := func(rootPath string) driven.Connector {
		return filesystem.New(rootPath)
	}

	idx := services.NewIndexService(
		store.DocumentStore(), engine, vectors, embedder, registry, pipeline, connectorFor,
	)
	idx.SetSyncStateStore(store.SyncStateStore())
	idx.SetEmbedBatchSize(settings.Indexing.EmbedBatchSize)

	search := services.NewSearchService(store.DocumentStore(), engine, vectors, embedder, llm)
	idx.SetOnWrite(search.InvalidateCache)

	chat := services.NewChatService(store.ConversationStore(), search, llm)
	chat.SetPromptStore(promptStore)

	revision := services.NewRevisionService(
		store.DocumentStore(), store.WorkflowStore(), search, llm,
		editing.NewApplier(), editing.NewDetector(),
	)
	revision.SetPromptStore(promptStore)

	// The BM25 engine is in-memory and must be repopulated from the
	// document store on every start.
	if err := idx.Rebuild(context.Background()); err != nil {
		vectors.Close()
		store.Close()
		return fmt.Errorf("rebuild indexes: %w", err)
	}

	indexService = idx
	searchService = search
	chatService = chat
	revisionService = revision
	docs := services.NewDocumentService(store.DocumentStore(), idx)
	docs.SetLLM(llm)
	documentService = docs
	watchService = services.NewWatchService(store.DocumentStore(), idx, connectorFor)

	runningApp = &application{
		store:    store,
		vectors:  vectors,
		embedder: embedder,
		llm:      llm,
	}
	bootstrapped = true
	return nil
}

// shutdown flushes the vector index and closes open resources.
func shutdown() {
	if runningApp == nil {
		return
	}
	if runningApp.vectors != nil {
		if err := runningApp.vectors.Close(); err != nil {
			logger.Warn("Closing vector index: %v", err)
		}
	}
	if runningApp.store != nil {
		if err := runningApp.store.Close(); err != nil {
			logger.Warn("Closing metadata store: %v", err)
		}
	}
	if runningApp.embedder != nil {
		runningApp.embedder.Close()
	}
	if runningApp.llm != nil {
		runningApp.llm.Close()
	}
	runningApp = nil
}

// promptDir returns the prompt directory under the configured config
// directory, or empty to use the default.
func promptDir() string {
	if configDir == "" {
		return ""
	}
	return filepath.Join(configDir, "prompts")
}

// resolveDataPath joins name onto the effective data directory.
func resolveDataPath(name string) (string, error) {
	dir := dataDir
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("getting home directory: %w", err)
		}
		dir = filepath.Join(home, ".soprev", "data")
	}
	return filepath.Join(dir, name), nil
}
