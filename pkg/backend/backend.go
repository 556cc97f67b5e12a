package backend

import (
	"context"
	"errors"
	"io"
	"time"
)

// ErrNotExist is returned, wrapped, by every backend when a path is missing.
var ErrNotExist = errors.New("path does not exist")

type FileInfo struct {
	Path    string
	Size    int64
	ModTime time.Time
}

// Aborter is implemented by writers that can drop what was written instead
// of committing it. Abort releases the writer like Close does.
type Aborter interface {
	Abort(cause error) error
}

// Interface is the capability surface the copy protocol needs from a storage
// system. GetWriter creates or replaces the path when the writer is closed.
// Handles are owned by the caller and must be closed.
type Interface interface {
	Stat(ctx context.Context, path string) (FileInfo, error)
	GetReader(ctx context.Context, path string) (io.ReadCloser, error)
	GetWriter(ctx context.Context, path string) (io.WriteCloser, error)
	Remove(ctx context.Context, path string) error
	Exists(ctx context.Context, path string) (bool, error)
}
