package driving

import "context"

// WatchService monitors a directory and re-indexes documents as they
// change on disk. Watch blocks until ctx is cancelled or an
// unrecoverable error occurs.
type WatchService interface {
	Watch(ctx context.Context, path string) error
}
