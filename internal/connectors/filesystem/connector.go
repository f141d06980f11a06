package filesystem

import (
	"context"
	"fmt"
	"io/fs"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"

	"github.com/soprev-labs/soprev-cli/internal/core/domain"
	"github.com/soprev-labs/soprev-cli/internal/core/ports/driven"
)

// connectorType identifies this connector in document metadata.
const connectorType = "filesystem"

// mimeFallbacks maps extensions the platform MIME database often misses
// to the types the normalisers expect.
var mimeFallbacks = map[string]string{
	".docx":     "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	".doc":      "application/msword",
	".md":       "text/markdown",
	".markdown": "text/markdown",
	".txt":      "text/plain",
	".yaml":     "text/yaml",
	".yml":      "text/yaml",
	".toml":     "text/toml",
	".csv":      "text/csv",
}

// Connector reads SOP files from a local directory tree.
type Connector struct {
	rootPath string
	watcher  *fsnotify.Watcher
}

var _ driven.Connector = (*Connector)(nil)

// New creates a filesystem connector rooted at rootPath.
func New(rootPath string) *Connector {
	return &Connector{rootPath: rootPath}
}

// Type returns the connector type identifier.
func (c *Connector) Type() string {
	return connectorType
}

// RootPath returns the configured root directory.
func (c *Connector) RootPath() string {
	return c.rootPath
}

// Validate checks the root path exists, is a directory, and is readable.
func (c *Connector) Validate(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	info, err := os.Stat(c.rootPath)
	if os.IsNotExist(err) {
		return fmt.Errorf("path does not exist: %s", c.rootPath)
	}
	if err != nil {
		return fmt.Errorf("cannot access path %s: %w", c.rootPath, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("path is not a directory: %s", c.rootPath)
	}

	f, err := os.Open(c.rootPath)
	if err != nil {
		return fmt.Errorf("cannot read directory %s: %w", c.rootPath, err)
	}
	return f.Close()
}

// FullScan walks the directory tree and emits every readable, non-hidden
// file. A root pointing at a single file emits just that file. Both
// channels are closed when the walk finishes or the context is cancelled.
func (c *Connector) FullScan(ctx context.Context) (<-chan domain.RawDocument, <-chan error) {
	docs := make(chan domain.RawDocument, 16)
	errs := make(chan error, 1)

	go func() {
		defer close(docs)
		defer close(errs)

		info, err := os.Stat(c.rootPath)
		if os.IsNotExist(err) {
			errs <- fmt.Errorf("path does not exist: %s", c.rootPath)
			return
		}
		if err == nil && !info.IsDir() {
			doc, err := c.readDocumentInfo(c.rootPath, info)
			if err != nil {
				errs <- err
				return
			}
			select {
			case docs <- doc:
			case <-ctx.Done():
			}
			return
		}

		walkErr := filepath.WalkDir(c.rootPath, func(path string, d fs.DirEntry, err error) error {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if err != nil {
				// Unreadable entries are skipped rather than aborting the scan.
				if d != nil && d.IsDir() {
					return filepath.SkipDir
				}
				return nil
			}
			if d.IsDir() {
				if c.hidden(path) {
					return filepath.SkipDir
				}
				return nil
			}
			if c.skipFile(path) {
				return nil
			}

			doc, err := c.readDocument(path, d)
			if err != nil {
				select {
				case errs <- err:
				default:
				}
				return nil
			}

			select {
			case docs <- doc:
			case <-ctx.Done():
				return ctx.Err()
			}
			return nil
		})
		if walkErr != nil && walkErr != ctx.Err() {
			select {
			case errs <- walkErr:
			default:
			}
		}
	}()

	return docs, errs
}

// Watch registers recursive fsnotify watches over the tree and emits file
// events until the context is cancelled.
func (c *Connector) Watch(ctx context.Context) (<-chan domain.FileEvent, error) {
	if err := c.Validate(ctx); err != nil {
		return nil, err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating watcher: %w", err)
	}
	c.watcher = watcher

	// fsnotify watches are not recursive, so every subdirectory is
	// registered explicitly. Directories created later are added as
	// their create events arrive.
	err = filepath.WalkDir(c.rootPath, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if c.hidden(path) {
				return filepath.SkipDir
			}
			return watcher.Add(path)
		}
		return nil
	})
	if err != nil {
		watcher.Close()
		return nil, fmt.Errorf("watching %s: %w", c.rootPath, err)
	}

	events := make(chan domain.FileEvent, 16)

	go func() {
		defer close(events)
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-watcher.Events:
				if !ok {
					return
				}
				if ev.Op&fsnotify.Create != 0 {
					if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
						if !c.hidden(ev.Name) {
							watcher.Add(ev.Name)
						}
						continue
					}
				}
				fe := c.handleFsEvent(ev)
				if fe == nil {
					continue
				}
				select {
				case events <- *fe:
				case <-ctx.Done():
					return
				}
			case _, ok := <-watcher.Errors:
				if !ok {
					return
				}
			}
		}
	}()

	return events, nil
}

// handleFsEvent converts a single fsnotify event into a FileEvent, or
// returns nil when the event is for a directory, a hidden or temporary
// file, or an operation the indexer does not care about.
func (c *Connector) handleFsEvent(ev fsnotify.Event) *domain.FileEvent {
	if c.skipFile(ev.Name) {
		return nil
	}

	switch {
	case ev.Op&fsnotify.Remove != 0 || ev.Op&fsnotify.Rename != 0:
		return &domain.FileEvent{
			Type:     domain.FileDeleted,
			Document: domain.RawDocument{URI: ev.Name},
		}
	case ev.Op&fsnotify.Create != 0, ev.Op&fsnotify.Write != 0:
		info, err := os.Stat(ev.Name)
		if err != nil || info.IsDir() {
			return nil
		}
		doc, err := c.readDocumentInfo(ev.Name, info)
		if err != nil {
			return nil
		}
		eventType := domain.FileUpdated
		if ev.Op&fsnotify.Create != 0 {
			eventType = domain.FileCreated
		}
		return &domain.FileEvent{Type: eventType, Document: doc}
	default:
		return nil
	}
}

// Close stops any active watcher.
func (c *Connector) Close() error {
	if c.watcher != nil {
		err := c.watcher.Close()
		c.watcher = nil
		return err
	}
	return nil
}

func (c *Connector) readDocument(path string, d fs.DirEntry) (domain.RawDocument, error) {
	info, err := d.Info()
	if err != nil {
		return domain.RawDocument{}, fmt.Errorf("stat %s: %w", path, err)
	}
	return c.readDocumentInfo(path, info)
}

func (c *Connector) readDocumentInfo(path string, info fs.FileInfo) (domain.RawDocument, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return domain.RawDocument{}, fmt.Errorf("reading %s: %w", path, err)
	}

	filename := filepath.Base(path)
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(filename)), ".")

	return domain.RawDocument{
		URI:      path,
		MIMEType: detectMIMEType(filename),
		Content:  content,
		Metadata: map[string]any{
			"filename":    filename,
			"extension":   ext,
			"size_bytes":  info.Size(),
			"modified_at": info.ModTime().UTC(),
		},
	}, nil
}

// skipFile reports whether a path should be ignored entirely. Hidden files
// and Office owner files (~$Name.docx, created while a document is open in
// Word) are never indexed.
func (c *Connector) skipFile(path string) bool {
	base := filepath.Base(path)
	return c.hidden(path) || strings.HasPrefix(base, "~$") || strings.HasSuffix(base, ".tmp")
}

// hidden reports whether any path element below the connector root is
// dot-prefixed. Only components under the root count: a root that
// itself lives inside a dot-prefixed directory is still scanned.
func (c *Connector) hidden(path string) bool {
	rel, err := filepath.Rel(c.rootPath, path)
	if err != nil {
		rel = filepath.Base(path)
	}
	for _, part := range strings.Split(filepath.ToSlash(rel), "/") {
		if part == "." || part == ".." || part == "" {
			continue
		}
		if strings.HasPrefix(part, ".") {
			return true
		}
	}
	return false
}

// detectMIMEType determines a file's MIME type from its extension. Files
// without an extension are treated as plain text. Charset parameters from
// the platform MIME database are stripped.
func detectMIMEType(filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	if ext == "" {
		return "text/plain"
	}
	if mt, ok := mimeFallbacks[ext]; ok {
		return mt
	}
	mt := mime.TypeByExtension(ext)
	if mt == "" {
		return "application/octet-stream"
	}
	if idx := strings.Index(mt, ";"); idx != -1 {
		mt = strings.TrimSpace(mt[:idx])
	}
	return mt
}
