package services

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/soprev-labs/soprev-cli/internal/core/domain"
	"github.com/soprev-labs/soprev-cli/internal/core/ports/driven"
	"github.com/soprev-labs/soprev-cli/internal/core/ports/driving"
	"github.com/soprev-labs/soprev-cli/internal/logger"
)

// Ensure WatchService implements the interface.
var _ driving.WatchService = (*WatchService)(nil)

// defaultDebounce is how long a file must stay quiet before it is
// re-indexed. Editors fire several write events per save.
const defaultDebounce = 500 * time.Millisecond

// WatchService monitors a directory and keeps the index in sync with
// the files on disk.
type WatchService struct {
	docStore     driven.DocumentStore
	indexer      driving.IndexService
	connectorFor ConnectorFactory
	debounce     time.Duration

	mu      sync.Mutex
	pending map[string]*time.Timer
}

// NewWatchService creates a watch service.
func NewWatchService(
	docStore driven.DocumentStore,
	indexer driving.IndexService,
	connectorFor ConnectorFactory,
) *WatchService {
	return &WatchService{
		docStore:     docStore,
		indexer:      indexer,
		connectorFor: connectorFor,
		debounce:     defaultDebounce,
		pending:      make(map[string]*time.Timer),
	}
}

// SetDebounce overrides the quiet period before a changed file is
// re-indexed.
func (s *WatchService) SetDebounce(d time.Duration) {
	if d > 0 {
		s.debounce = d
	}
}

// Watch runs an initial indexing pass over the directory, then
// re-indexes files as they change until ctx is cancelled.
func (s *WatchService) Watch(ctx context.Context, path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("resolve path: %w", err)
	}

	logger.Section("Watch Mode")
	logger.Info("Watching %s", abs)

	if _, err := s.indexer.IndexPath(ctx, abs, nil); err != nil {
		return fmt.Errorf("initial indexing pass: %w", err)
	}

	connector := s.connectorFor(abs)
	defer connector.Close()

	events, err := connector.Watch(ctx)
	if err != nil {
		return fmt.Errorf("start watcher: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			s.cancelPending()
			return ctx.Err()
		case event, ok := <-events:
			if !ok {
				s.cancelPending()
				return nil
			}
			s.handleEvent(ctx, event)
		}
	}
}

// handleEvent schedules a debounced re-index for creates and updates,
// and removes deleted documents immediately.
func (s *WatchService) handleEvent(ctx context.Context, event domain.FileEvent) {
	uri := event.Document.URI

	switch event.Type {
	case domain.FileDeleted:
		s.cancelURI(uri)
		s.removeByURI(ctx, uri)
	case domain.FileCreated, domain.FileUpdated:
		s.scheduleReindex(ctx, uri)
	}
}

// scheduleReindex (re)starts the debounce timer for a file. The file is
// re-read when the timer fires so the indexed content is current.
func (s *WatchService) scheduleReindex(ctx context.Context, uri string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if timer, ok := s.pending[uri]; ok {
		timer.Stop()
	}
	s.pending[uri] = time.AfterFunc(s.debounce, func() {
		s.mu.Lock()
		delete(s.pending, uri)
		s.mu.Unlock()

		if ctx.Err() != nil {
			return
		}
		logger.Debug("Re-indexing %s", uri)
		if _, err := s.indexer.IndexPath(ctx, uri, nil); err != nil {
			logger.Warn("Re-indexing %s failed: %v", uri, err)
		}
	})
}

func (s *WatchService) removeByURI(ctx context.Context, uri string) {
	doc, err := s.docStore.GetDocumentByURI(ctx, uri)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			logger.Warn("Lookup of deleted file %s failed: %v", uri, err)
		}
		return
	}
	logger.Info("Removing deleted document %s", uri)
	if err := s.indexer.Remove(ctx, doc.ID); err != nil {
		logger.Warn("Removing %s failed: %v", uri, err)
	}
}

func (s *WatchService) cancelURI(uri string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if timer, ok := s.pending[uri]; ok {
		timer.Stop()
		delete(s.pending, uri)
	}
}

func (s *WatchService) cancelPending() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for uri, timer := range s.pending {
		timer.Stop()
		delete(s.pending, uri)
	}
}
