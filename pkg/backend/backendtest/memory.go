// Package backendtest provides an in-memory backend and fault-injecting
// wrappers for exercising code written against backend.Interface.
package backendtest

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/dashjay/nird-s3-sync/pkg/backend"
)

// Memory is a backend.Interface holding files in a map. Writes become
// visible when the writer is closed, like an object store upload.
type Memory struct {
	mu    sync.Mutex
	files map[string][]byte
	mtime map[string]time.Time
}

var _ backend.Interface = (*Memory)(nil)

func NewMemory() *Memory {
	return &Memory{
		files: make(map[string][]byte),
		mtime: make(map[string]time.Time),
	}
}

// Put stores content at path directly.
func (m *Memory) Put(path string, content []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.files[path] = append([]byte(nil), content...)
	m.mtime[path] = time.Now()
}

// Content returns a copy of what is stored at path.
func (m *Memory) Content(path string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.files[path]
	if !ok {
		return nil, false
	}
	return append([]byte(nil), b...), true
}

func (m *Memory) Stat(_ context.Context, path string) (backend.FileInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.files[path]
	if !ok {
		return backend.FileInfo{}, fmt.Errorf("stat %s: %w", path, backend.ErrNotExist)
	}
	return backend.FileInfo{Path: path, Size: int64(len(b)), ModTime: m.mtime[path]}, nil
}

func (m *Memory) GetReader(_ context.Context, path string) (io.ReadCloser, error) {
	b, ok := m.Content(path)
	if !ok {
		return nil, fmt.Errorf("open %s: %w", path, backend.ErrNotExist)
	}
	return io.NopCloser(bytes.NewReader(b)), nil
}

func (m *Memory) GetWriter(_ context.Context, path string) (io.WriteCloser, error) {
	return &memWriter{m: m, path: path}, nil
}

func (m *Memory) Remove(_ context.Context, path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.files[path]; !ok {
		return fmt.Errorf("remove %s: %w", path, backend.ErrNotExist)
	}
	delete(m.files, path)
	delete(m.mtime, path)
	return nil
}

func (m *Memory) Exists(_ context.Context, path string) (bool, error) {
	_, ok := m.Content(path)
	return ok, nil
}

var errWriterClosed = errors.New("writer already closed")

type memWriter struct {
	m      *Memory
	path   string
	buf    bytes.Buffer
	closed bool
}

func (w *memWriter) Write(p []byte) (int, error) {
	if w.closed {
		return 0, errWriterClosed
	}
	return w.buf.Write(p)
}

func (w *memWriter) Close() error {
	if w.closed {
		return errWriterClosed
	}
	w.closed = true
	w.m.Put(w.path, w.buf.Bytes())
	return nil
}

// Abort drops the buffered content without storing it.
func (w *memWriter) Abort(error) error {
	w.closed = true
	w.buf.Reset()
	return nil
}
