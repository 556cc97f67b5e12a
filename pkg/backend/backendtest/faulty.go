package backendtest

import (
	"context"
	"io"
	"sync"

	"github.com/dashjay/nird-s3-sync/pkg/backend"
)

// Faulty wraps a backend and damages what is written through it.
type Faulty struct {
	backend.Interface

	// CorruptWriters is how many writers, counting from the first, flip a bit
	// in the first byte they are given. Negative corrupts every writer.
	CorruptWriters int
	// WriteErr, when set, fails every Write after the first one.
	WriteErr error
	// ReadErr, when set, is returned by GetReader once a writer was opened,
	// so reading the source works and reading the result back fails.
	ReadErr error
	// RemoveErr, when set, is returned by Remove without removing anything.
	RemoveErr error

	mu      sync.Mutex
	writers int
	removes int
}

var _ backend.Interface = (*Faulty)(nil)

func (f *Faulty) GetWriter(ctx context.Context, path string) (io.WriteCloser, error) {
	w, err := f.Interface.GetWriter(ctx, path)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	f.writers++
	corrupt := f.CorruptWriters < 0 || f.writers <= f.CorruptWriters
	f.mu.Unlock()
	return &faultyWriter{WriteCloser: w, corrupt: corrupt, err: f.WriteErr}, nil
}

func (f *Faulty) GetReader(ctx context.Context, path string) (io.ReadCloser, error) {
	f.mu.Lock()
	written := f.writers > 0
	f.mu.Unlock()
	if f.ReadErr != nil && written {
		return nil, f.ReadErr
	}
	return f.Interface.GetReader(ctx, path)
}

func (f *Faulty) Remove(ctx context.Context, path string) error {
	f.mu.Lock()
	f.removes++
	f.mu.Unlock()
	if f.RemoveErr != nil {
		return f.RemoveErr
	}
	return f.Interface.Remove(ctx, path)
}

// Writers reports how many writers were opened.
func (f *Faulty) Writers() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.writers
}

// Removes reports how many times Remove was called.
func (f *Faulty) Removes() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.removes
}

type faultyWriter struct {
	io.WriteCloser
	corrupt bool
	err     error
	writes  int
}

func (w *faultyWriter) Write(p []byte) (int, error) {
	w.writes++
	if w.err != nil && w.writes > 1 {
		return 0, w.err
	}
	if w.corrupt && w.writes == 1 && len(p) > 0 {
		damaged := append([]byte(nil), p...)
		damaged[0] ^= 0x01
		return w.WriteCloser.Write(damaged)
	}
	return w.WriteCloser.Write(p)
}

func (w *faultyWriter) Abort(cause error) error {
	if a, ok := w.WriteCloser.(backend.Aborter); ok {
		return a.Abort(cause)
	}
	return w.WriteCloser.Close()
}
