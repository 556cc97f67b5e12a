package core

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/dashjay/nird-s3-sync/pkg/backend"
)

// LocalFS is the local disk backend. Relative paths are resolved against
// Root; an empty Root leaves them relative to the working directory.
type LocalFS struct {
	Root string
}

var _ backend.Interface = (*LocalFS)(nil)

func NewLocalFS(root string) *LocalFS {
	return &LocalFS{Root: root}
}

func (l *LocalFS) resolve(path string) string {
	if l.Root == "" || filepath.IsAbs(path) {
		return filepath.Clean(path)
	}
	return filepath.Join(l.Root, path)
}

func notExist(op, path string, err error) error {
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%s %s: %w", op, path, backend.ErrNotExist)
	}
	return err
}

func (l *LocalFS) Stat(_ context.Context, path string) (backend.FileInfo, error) {
	fi, err := os.Stat(l.resolve(path))
	if err != nil {
		return backend.FileInfo{}, notExist("stat", path, err)
	}
	if fi.IsDir() {
		return backend.FileInfo{}, fmt.Errorf("stat %s: is a directory", path)
	}
	return backend.FileInfo{Path: path, Size: fi.Size(), ModTime: fi.ModTime()}, nil
}

func (l *LocalFS) GetReader(_ context.Context, path string) (io.ReadCloser, error) {
	f, err := os.Open(l.resolve(path))
	if err != nil {
		return nil, notExist("open", path, err)
	}
	return f, nil
}

// GetWriter writes to a temporary file next to path and renames it over path
// on Close, so path keeps its old content until then. Reading and writing the
// same path is therefore safe.
func (l *LocalFS) GetWriter(_ context.Context, path string) (io.WriteCloser, error) {
	p := l.resolve(path)
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return nil, err
	}
	f, err := os.CreateTemp(filepath.Dir(p), "."+filepath.Base(p)+".tmp-*")
	if err != nil {
		return nil, err
	}
	return &localWriter{f: f, path: p}, nil
}

func (l *LocalFS) Remove(_ context.Context, path string) error {
	if err := os.Remove(l.resolve(path)); err != nil {
		return notExist("remove", path, err)
	}
	return nil
}

func (l *LocalFS) Exists(_ context.Context, path string) (bool, error) {
	_, err := os.Stat(l.resolve(path))
	if err == nil {
		return true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, err
}

var errWriterDone = errors.New("writer already closed")

type localWriter struct {
	f    *os.File
	path string
	done bool
}

var _ backend.Aborter = (*localWriter)(nil)

func (w *localWriter) Write(p []byte) (int, error) {
	if w.done {
		return 0, errWriterDone
	}
	return w.f.Write(p)
}

func (w *localWriter) Close() error {
	if w.done {
		return errWriterDone
	}
	w.done = true
	tmp := w.f.Name()
	err := w.f.Chmod(0o644)
	if cerr := w.f.Close(); err == nil {
		err = cerr
	}
	if err == nil {
		err = os.Rename(tmp, w.path)
	}
	if err != nil {
		_ = os.Remove(tmp)
	}
	return err
}

// Abort discards the temporary file and leaves path untouched.
func (w *localWriter) Abort(error) error {
	if w.done {
		return nil
	}
	w.done = true
	_ = w.f.Close()
	return os.Remove(w.f.Name())
}
