package filesystem

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soprev-labs/soprev-cli/internal/core/domain"
	"github.com/soprev-labs/soprev-cli/internal/core/ports/driven"
)

func TestNew(t *testing.T) {
	t.Run("creates connector with root path", func(t *testing.T) {
		connector := New("/tmp/sops")

		require.NotNil(t, connector)
		assert.Equal(t, "/tmp/sops", connector.RootPath())
	})

	t.Run("implements Connector interface", func(t *testing.T) {
		connector := New("/tmp/sops")
		var _ driven.Connector = connector
	})
}

func TestConnector_Type(t *testing.T) {
	connector := New("/tmp/sops")
	assert.Equal(t, "filesystem", connector.Type())
}

func TestConnector_Validate(t *testing.T) {
	tests := []struct {
		name          string
		setup         func(t *testing.T) string
		expectError   bool
		errorContains string
	}{
		{
			name: "valid directory succeeds",
			setup: func(t *testing.T) string {
				return t.TempDir()
			},
			expectError: false,
		},
		{
			name: "non-existent path returns error",
			setup: func(t *testing.T) string {
				return "/non/existent/path/12345"
			},
			expectError:   true,
			errorContains: "does not exist",
		},
		{
			name: "file instead of directory returns error",
			setup: func(t *testing.T) string {
				dir := t.TempDir()
				path := filepath.Join(dir, "file.txt")
				require.NoError(t, os.WriteFile(path, []byte("content"), 0644))
				return path
			},
			expectError:   true,
			errorContains: "not a directory",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			connector := New(tt.setup(t))

			err := connector.Validate(context.Background())

			if tt.expectError {
				assert.Error(t, err)
				if tt.errorContains != "" {
					assert.Contains(t, err.Error(), tt.errorContains)
				}
			} else {
				assert.NoError(t, err)
			}
		})
	}

	t.Run("cancelled context returns error", func(t *testing.T) {
		connector := New(t.TempDir())
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		err := connector.Validate(ctx)

		assert.Equal(t, context.Canceled, err)
	})
}

func TestConnector_FullScan(t *testing.T) {
	collect := func(t *testing.T, docs <-chan domain.RawDocument, errs <-chan error) []domain.RawDocument {
		t.Helper()
		var out []domain.RawDocument
		for doc := range docs {
			out = append(out, doc)
		}
		for err := range errs {
			require.NoError(t, err)
		}
		return out
	}

	t.Run("scans files in directory tree", func(t *testing.T) {
		dir := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(dir, "handwashing.txt"), []byte("wash hands"), 0644))
		require.NoError(t, os.WriteFile(filepath.Join(dir, "cold-chain.md"), []byte("# Cold chain"), 0644))
		sub := filepath.Join(dir, "quality")
		require.NoError(t, os.Mkdir(sub, 0755))
		require.NoError(t, os.WriteFile(filepath.Join(sub, "audit.txt"), []byte("audit steps"), 0644))

		connector := New(dir)
		docCh, errCh := connector.FullScan(context.Background())
		docs := collect(t, docCh, errCh)

		assert.Len(t, docs, 3)
	})

	t.Run("single file root emits just that file", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "handwashing.txt")
		require.NoError(t, os.WriteFile(path, []byte("wash hands"), 0644))
		require.NoError(t, os.WriteFile(filepath.Join(dir, "other.txt"), []byte("other"), 0644))

		connector := New(path)
		docCh, errCh := connector.FullScan(context.Background())
		docs := collect(t, docCh, errCh)

		require.Len(t, docs, 1)
		assert.Equal(t, path, docs[0].URI)
	})

	t.Run("skips hidden files and directories", func(t *testing.T) {
		dir := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(dir, "visible.txt"), []byte("visible"), 0644))
		require.NoError(t, os.WriteFile(filepath.Join(dir, ".hidden.txt"), []byte("hidden"), 0644))
		hiddenDir := filepath.Join(dir, ".git")
		require.NoError(t, os.Mkdir(hiddenDir, 0755))
		require.NoError(t, os.WriteFile(filepath.Join(hiddenDir, "config"), []byte("x"), 0644))

		connector := New(dir)
		docCh, errCh := connector.FullScan(context.Background())
		docs := collect(t, docCh, errCh)

		require.Len(t, docs, 1)
		assert.Contains(t, docs[0].URI, "visible.txt")
	})

	t.Run("scans a root under a dot-prefixed ancestor", func(t *testing.T) {
		dir := filepath.Join(t.TempDir(), ".managed", "sops")
		require.NoError(t, os.MkdirAll(dir, 0755))
		require.NoError(t, os.WriteFile(filepath.Join(dir, "handwashing.txt"), []byte("wash hands"), 0644))
		require.NoError(t, os.WriteFile(filepath.Join(dir, ".hidden.txt"), []byte("hidden"), 0644))

		connector := New(dir)
		docCh, errCh := connector.FullScan(context.Background())
		docs := collect(t, docCh, errCh)

		require.Len(t, docs, 1)
		assert.Contains(t, docs[0].URI, "handwashing.txt")
	})

	t.Run("skips Office owner files", func(t *testing.T) {
		dir := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(dir, "sop.docx"), []byte("PK"), 0644))
		require.NoError(t, os.WriteFile(filepath.Join(dir, "~$sop.docx"), []byte("lock"), 0644))

		connector := New(dir)
		docCh, errCh := connector.FullScan(context.Background())
		docs := collect(t, docCh, errCh)

		require.Len(t, docs, 1)
		assert.Contains(t, docs[0].URI, "sop.docx")
		assert.NotContains(t, docs[0].URI, "~$")
	})

	t.Run("reports non-existent directory", func(t *testing.T) {
		connector := New("/non/existent/path")

		docs, errs := connector.FullScan(context.Background())
		for range docs {
		}

		select {
		case err := <-errs:
			require.Error(t, err)
			assert.Contains(t, err.Error(), "does not exist")
		case <-time.After(time.Second):
			t.Fatal("expected error for non-existent directory")
		}
	})

	t.Run("closes channels on cancelled context", func(t *testing.T) {
		connector := New(t.TempDir())
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		docs, errs := connector.FullScan(ctx)
		for range docs {
		}
		for range errs {
		}
	})

	t.Run("includes file metadata", func(t *testing.T) {
		dir := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(dir, "sop.txt"), []byte("hello"), 0644))

		connector := New(dir)
		docCh, errCh := connector.FullScan(context.Background())
		docs := collect(t, docCh, errCh)

		require.Len(t, docs, 1)
		doc := docs[0]
		assert.Equal(t, "text/plain", doc.MIMEType)
		assert.Equal(t, []byte("hello"), doc.Content)
		assert.Equal(t, "sop.txt", doc.Metadata["filename"])
		assert.Equal(t, "txt", doc.Metadata["extension"])
		assert.Equal(t, int64(5), doc.Metadata["size_bytes"])
	})

	t.Run("detects MIME types", func(t *testing.T) {
		dir := t.TempDir()
		files := map[string]string{
			"sop.docx":  "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
			"notes.md":  "text/markdown",
			"data.json": "application/json",
		}
		for name := range files {
			require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("content"), 0644))
		}

		connector := New(dir)
		docCh, errCh := connector.FullScan(context.Background())
		docs := collect(t, docCh, errCh)

		got := make(map[string]string)
		for _, doc := range docs {
			got[filepath.Base(doc.URI)] = doc.MIMEType
		}
		for name, want := range files {
			assert.Equal(t, want, got[name], "MIME type mismatch for %s", name)
		}
	})
}

func TestHandleFsEvent(t *testing.T) {
	tests := []struct {
		name        string
		setupFile   bool
		setupHidden bool
		op          fsnotify.Op
		expectEvent bool
		expectType  domain.FileEventType
	}{
		{
			name:        "create file",
			setupFile:   true,
			op:          fsnotify.Create,
			expectEvent: true,
			expectType:  domain.FileCreated,
		},
		{
			name:        "write file",
			setupFile:   true,
			op:          fsnotify.Write,
			expectEvent: true,
			expectType:  domain.FileUpdated,
		},
		{
			name:        "remove file",
			op:          fsnotify.Remove,
			expectEvent: true,
			expectType:  domain.FileDeleted,
		},
		{
			name:        "rename file maps to delete",
			op:          fsnotify.Rename,
			expectEvent: true,
			expectType:  domain.FileDeleted,
		},
		{
			name:        "chmod is ignored",
			setupFile:   true,
			op:          fsnotify.Chmod,
			expectEvent: false,
		},
		{
			name:        "hidden file create is skipped",
			setupHidden: true,
			op:          fsnotify.Create,
			expectEvent: false,
		},
		{
			name:        "hidden file remove is skipped",
			setupHidden: true,
			op:          fsnotify.Remove,
			expectEvent: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()

			var path string
			switch {
			case tt.setupHidden:
				path = filepath.Join(dir, ".hidden.txt")
				if tt.op != fsnotify.Remove {
					require.NoError(t, os.WriteFile(path, []byte("hidden"), 0644))
				}
			case tt.setupFile:
				path = filepath.Join(dir, "sop.txt")
				require.NoError(t, os.WriteFile(path, []byte("content"), 0644))
			default:
				path = filepath.Join(dir, "removed.txt")
			}

			connector := New(dir)
			event := connector.handleFsEvent(fsnotify.Event{Name: path, Op: tt.op})

			if !tt.expectEvent {
				assert.Nil(t, event)
				return
			}
			require.NotNil(t, event)
			assert.Equal(t, tt.expectType, event.Type)
			assert.Equal(t, path, event.Document.URI)
			if tt.setupFile && tt.expectType != domain.FileDeleted {
				assert.NotEmpty(t, event.Document.Content)
			}
		})
	}

	t.Run("combined write and chmod handles the write", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "sop.txt")
		require.NoError(t, os.WriteFile(path, []byte("content"), 0644))

		connector := New(dir)
		event := connector.handleFsEvent(fsnotify.Event{Name: path, Op: fsnotify.Write | fsnotify.Chmod})

		require.NotNil(t, event)
		assert.Equal(t, domain.FileUpdated, event.Type)
	})
}

func TestConnector_Watch(t *testing.T) {
	waitForEvent := func(t *testing.T, events <-chan domain.FileEvent, match func(domain.FileEvent) bool) domain.FileEvent {
		t.Helper()
		deadline := time.After(3 * time.Second)
		for {
			select {
			case ev, ok := <-events:
				if !ok {
					t.Fatal("event channel closed before expected event")
				}
				if match(ev) {
					return ev
				}
			case <-deadline:
				t.Fatal("timed out waiting for file event")
			}
		}
	}

	t.Run("emits create event", func(t *testing.T) {
		dir := t.TempDir()
		connector := New(dir)
		defer connector.Close()

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		events, err := connector.Watch(ctx)
		require.NoError(t, err)

		path := filepath.Join(dir, "new-sop.txt")
		require.NoError(t, os.WriteFile(path, []byte("steps"), 0644))

		ev := waitForEvent(t, events, func(ev domain.FileEvent) bool {
			return filepath.Base(ev.Document.URI) == "new-sop.txt"
		})
		assert.Contains(t, []domain.FileEventType{domain.FileCreated, domain.FileUpdated}, ev.Type)
		assert.Equal(t, []byte("steps"), ev.Document.Content)
	})

	t.Run("emits delete event", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "to-delete.txt")
		require.NoError(t, os.WriteFile(path, []byte("content"), 0644))

		connector := New(dir)
		defer connector.Close()

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		events, err := connector.Watch(ctx)
		require.NoError(t, err)

		require.NoError(t, os.Remove(path))

		ev := waitForEvent(t, events, func(ev domain.FileEvent) bool {
			return ev.Type == domain.FileDeleted
		})
		assert.Contains(t, ev.Document.URI, "to-delete.txt")
	})

	t.Run("invalid root path fails", func(t *testing.T) {
		connector := New("/non/existent/path")

		_, err := connector.Watch(context.Background())

		assert.Error(t, err)
	})
}

func TestConnector_Close(t *testing.T) {
	t.Run("close without watch is a no-op", func(t *testing.T) {
		connector := New(t.TempDir())
		assert.NoError(t, connector.Close())
	})

	t.Run("close is idempotent", func(t *testing.T) {
		connector := New(t.TempDir())
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		_, err := connector.Watch(ctx)
		require.NoError(t, err)

		assert.NoError(t, connector.Close())
		assert.NoError(t, connector.Close())
	})
}

func TestDetectMIMEType(t *testing.T) {
	tests := []struct {
		filename string
		want     string
	}{
		{"sop.docx", "application/vnd.openxmlformats-officedocument.wordprocessingml.document"},
		{"legacy.doc", "application/msword"},
		{"notes.md", "text/markdown"},
		{"notes.markdown", "text/markdown"},
		{"readme.txt", "text/plain"},
		{"config.yaml", "text/yaml"},
		{"config.yml", "text/yaml"},
		{"config.toml", "text/toml"},
		{"table.csv", "text/csv"},
		{"data.json", "application/json"},
		{"page.html", "text/html"},
		{"report.pdf", "application/pdf"},
		{"noext", "text/plain"},
		{"file.zzzzunknown", "application/octet-stream"},
		{"SOP.DOCX", "application/vnd.openxmlformats-officedocument.wordprocessingml.document"},
		{"Notes.Md", "text/markdown"},
	}

	for _, tt := range tests {
		t.Run(tt.filename, func(t *testing.T) {
			assert.Equal(t, tt.want, detectMIMEType(tt.filename))
		})
	}

	t.Run("strips charset parameter", func(t *testing.T) {
		for _, name := range []string{"file.html", "file.css", "file.js"} {
			mt := detectMIMEType(name)
			assert.NotContains(t, mt, "charset")
			assert.NotContains(t, mt, ";")
		}
	})
}

func TestHidden(t *testing.T) {
	connector := New("/home/user/sops")

	tests := []struct {
		path string
		want bool
	}{
		{"/home/user/sops/.hidden", true},
		{"/home/user/sops/archive/.git/config", true},
		{"/home/user/sops/.trash/old.docx", true},
		{"/home/user/sops/visible.txt", false},
		{"/home/user/sops/archive/file.txt", false},
		{"/home/user/sops/file.hidden", false},
		{"/home/user/sops", false},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.want, connector.hidden(tt.path))
		})
	}
}

func TestHidden_RootUnderDotDirectory(t *testing.T) {
	// Only components below the root count as hidden; the root's own
	// ancestors may be dot-prefixed.
	connector := New("/home/user/.local/share/sops")

	assert.False(t, connector.hidden("/home/user/.local/share/sops"))
	assert.False(t, connector.hidden("/home/user/.local/share/sops/cold-chain.docx"))
	assert.True(t, connector.hidden("/home/user/.local/share/sops/.trash/old.docx"))
}
