package transfer

import (
	"context"
	"encoding/hex"
	"fmt"
	"io"

	"github.com/dashjay/nird-s3-sync/pkg/backend"
)

// Copy streams srcPath on src to dstPath on dst and returns the digest of the
// bytes read from the source. The destination is created or replaced. On error
// a writer implementing backend.Aborter is aborted instead of committed. The
// result is not verified and nothing is removed; use VerifiedCopy for that.
func Copy(ctx context.Context, src backend.Interface, srcPath string, dst backend.Interface, dstPath string, opts Options) (string, error) {
	if opts.ChunkSize <= 0 {
		return "", fmt.Errorf("%w: chunk size must be positive, got %d", ErrInvalidOptions, opts.ChunkSize)
	}
	sum, _, err := copyFile(ctx, src, srcPath, dst, dstPath, opts)
	return sum, err
}

// copyFile reports whether the destination was opened for writing, so the
// caller knows if a failed copy may have left something behind.
func copyFile(ctx context.Context, src backend.Interface, srcPath string, dst backend.Interface, dstPath string, opts Options) (sum string, opened bool, err error) {
	h, err := opts.Algorithm.New()
	if err != nil {
		return "", false, err
	}

	r, err := src.GetReader(ctx, srcPath)
	if err != nil {
		return "", false, fmt.Errorf("open source %s: %w", srcPath, err)
	}
	defer r.Close()

	w, err := dst.GetWriter(ctx, dstPath)
	if err != nil {
		return "", false, fmt.Errorf("open destination %s: %w", dstPath, err)
	}
	opened = true
	closed := false
	defer func() {
		if !closed {
			abort(w, err)
		}
	}()

	buf := make([]byte, opts.ChunkSize)
	for {
		n, rerr := r.Read(buf)
		if n > 0 {
			chunk := buf[:n]
			h.Write(chunk)
			if _, werr := w.Write(chunk); werr != nil {
				return "", opened, fmt.Errorf("write %s: %w", dstPath, werr)
			}
			if opts.Progress != nil {
				if perr := opts.Progress.Add(n); perr != nil {
					opts.logger().WithError(perr).Debugln("progress update failed")
				}
			}
		}
		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			return "", opened, fmt.Errorf("read %s: %w", srcPath, rerr)
		}
	}

	// Writers commit on close, so its error decides the outcome.
	closed = true
	if err := w.Close(); err != nil {
		return "", opened, fmt.Errorf("close destination %s: %w", dstPath, err)
	}
	return hex.EncodeToString(h.Sum(nil)), opened, nil
}

// abort drops a destination writer after a failed transfer so nothing partial
// is committed. Writers without Abort are closed.
func abort(w io.WriteCloser, cause error) {
	if a, ok := w.(backend.Aborter); ok {
		_ = a.Abort(cause)
		return
	}
	_ = w.Close()
}
