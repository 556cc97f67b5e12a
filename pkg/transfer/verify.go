package transfer

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/dashjay/nird-s3-sync/pkg/backend"
	"github.com/dashjay/nird-s3-sync/pkg/checksum"
)

// VerifiedCopy copies srcPath to dstPath and reads the destination back to
// check it against the digest taken while reading the source. A mismatch
// starts a full new copy, up to opts.Retries copies in total. When the budget
// is spent the destination is removed and an *IntegrityError is returned.
//
// IO errors are returned as they happen, without retry. If the destination
// had already been opened for writing it is removed first, so after any error
// dstPath either does not exist or still holds what was there before the call.
func VerifiedCopy(ctx context.Context, src backend.Interface, srcPath string, dst backend.Interface, dstPath string, opts Options) error {
	if err := opts.Validate(); err != nil {
		return err
	}
	log := opts.logger().WithField("source", srcPath).WithField("destination", dstPath)

	var last Attempt
	for n := 1; n <= opts.Retries; n++ {
		if n > 1 {
			if err := ctx.Err(); err != nil {
				return cleanup(ctx, dst, dstPath, log, err)
			}
			if opts.Progress != nil {
				opts.Progress.Reset()
			}
		}
		log.WithField("attempt", n).Debugln("copying")

		srcSum, opened, err := copyFile(ctx, src, srcPath, dst, dstPath, opts)
		if err != nil {
			if !opened {
				return err
			}
			return cleanup(ctx, dst, dstPath, log, err)
		}

		dstSum, err := checksum.FileWith(ctx, opts.Algorithm, dst, dstPath, opts.ChunkSize)
		if err != nil {
			return cleanup(ctx, dst, dstPath, log, fmt.Errorf("verify: %w", err))
		}

		last = Attempt{Number: n, SourceChecksum: srcSum, DestinationChecksum: dstSum}
		if opts.OnAttempt != nil {
			opts.OnAttempt(last)
		}
		if last.Match() {
			log.WithField("attempt", n).WithField("checksum", srcSum).Debugln("copy verified")
			return nil
		}
		log.WithField("attempt", n).
			WithField("checksum_src", srcSum).
			WithField("checksum_dest", dstSum).Warnln("checksum mismatch")
	}

	log.WithField("attempts", opts.Retries).Errorln("copy still corrupted after all attempts, removing destination")
	return cleanup(ctx, dst, dstPath, log, &IntegrityError{
		Source:              srcPath,
		Destination:         dstPath,
		Attempts:            opts.Retries,
		SourceChecksum:      last.SourceChecksum,
		DestinationChecksum: last.DestinationChecksum,
	})
}

// cleanup removes dstPath and returns cause. Removal ignores cancellation of
// ctx so it cannot be cut short half way.
func cleanup(ctx context.Context, dst backend.Interface, dstPath string, log logrus.FieldLogger, cause error) error {
	err := dst.Remove(context.WithoutCancel(ctx), dstPath)
	if err == nil || errors.Is(err, backend.ErrNotExist) {
		return cause
	}
	log.WithError(err).Errorln("failed to remove destination")
	return errors.Join(cause, fmt.Errorf("remove %s: %w", dstPath, err))
}
