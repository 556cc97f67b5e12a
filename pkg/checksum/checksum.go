package checksum

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"hash"
	"io"

	"golang.org/x/crypto/blake2b"

	"github.com/dashjay/nird-s3-sync/pkg/backend"
)

// DefaultChunkSize is the number of bytes read per step, 1 MiB.
const DefaultChunkSize = 1 << 20

type Algorithm string

const (
	SHA256     Algorithm = "sha256"
	BLAKE2b256 Algorithm = "blake2b-256"
)

var ErrUnknownAlgorithm = errors.New("unknown checksum algorithm")

func ParseAlgorithm(s string) (Algorithm, error) {
	switch Algorithm(s) {
	case SHA256, "":
		return SHA256, nil
	case BLAKE2b256:
		return BLAKE2b256, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownAlgorithm, s)
}

// New returns a fresh hash for the algorithm. The empty algorithm is SHA256.
func (a Algorithm) New() (hash.Hash, error) {
	switch a {
	case SHA256, "":
		return sha256.New(), nil
	case BLAKE2b256:
		return blake2b.New256(nil)
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownAlgorithm, string(a))
}

// Sum returns the lowercase hex SHA-256 of everything readable from r.
func Sum(r io.Reader, chunkSize int) (string, error) {
	return SumWith(SHA256, r, chunkSize)
}

// SumWith streams r through the digest chunkSize bytes at a time, so memory
// use does not depend on the stream length. A non-positive chunkSize means
// DefaultChunkSize.
func SumWith(algo Algorithm, r io.Reader, chunkSize int) (string, error) {
	h, err := algo.New()
	if err != nil {
		return "", err
	}
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	buf := make([]byte, chunkSize)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			h.Write(buf[:n])
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", fmt.Errorf("read for checksum: %w", err)
		}
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// File opens path on b and returns its SHA-256.
func File(ctx context.Context, b backend.Interface, path string, chunkSize int) (string, error) {
	return FileWith(ctx, SHA256, b, path, chunkSize)
}

func FileWith(ctx context.Context, algo Algorithm, b backend.Interface, path string, chunkSize int) (string, error) {
	r, err := b.GetReader(ctx, path)
	if err != nil {
		return "", fmt.Errorf("open %s for checksum: %w", path, err)
	}
	defer r.Close()

	sum, err := SumWith(algo, r, chunkSize)
	if err != nil {
		return "", fmt.Errorf("checksum %s: %w", path, err)
	}
	return sum, nil
}
