package transfer

import (
	"fmt"

	"github.com/schollz/progressbar/v3"
	"github.com/sirupsen/logrus"

	"github.com/dashjay/nird-s3-sync/pkg/checksum"
)

const DefaultRetries = 3

type Attempt struct {
	Number              int
	SourceChecksum      string
	DestinationChecksum string
}

func (a Attempt) Match() bool {
	return a.SourceChecksum == a.DestinationChecksum
}

type Options struct {
	// ChunkSize is the number of bytes moved per read/write, also used when
	// reading the destination back for verification.
	ChunkSize int
	// Retries is the maximum number of full copies before the destination is
	// removed and the copy fails.
	Retries   int
	Algorithm checksum.Algorithm

	// Progress, when set, is advanced by every chunk written and reset
	// before each retry.
	Progress *progressbar.ProgressBar
	Logger   logrus.FieldLogger

	// OnAttempt is called after every verification, matched or not.
	OnAttempt func(Attempt)
}

func DefaultOptions() Options {
	return Options{
		ChunkSize: checksum.DefaultChunkSize,
		Retries:   DefaultRetries,
		Algorithm: checksum.SHA256,
		Logger:    logrus.StandardLogger(),
	}
}

func (o Options) Validate() error {
	if o.ChunkSize <= 0 {
		return fmt.Errorf("%w: chunk size must be positive, got %d", ErrInvalidOptions, o.ChunkSize)
	}
	if o.Retries <= 0 {
		return fmt.Errorf("%w: retries must be positive, got %d", ErrInvalidOptions, o.Retries)
	}
	if _, err := o.Algorithm.New(); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidOptions, err)
	}
	return nil
}

func (o Options) logger() logrus.FieldLogger {
	if o.Logger == nil {
		return logrus.StandardLogger()
	}
	return o.Logger
}
