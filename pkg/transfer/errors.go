package transfer

import (
	"errors"
	"fmt"
)

var (
	ErrIntegrity      = errors.New("data integrity check failed")
	ErrInvalidOptions = errors.New("invalid copy options")
)

// IntegrityError reports a copy whose destination never matched its source
// within the retry budget. The destination has been removed.
type IntegrityError struct {
	Source              string
	Destination         string
	Attempts            int
	SourceChecksum      string
	DestinationChecksum string
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("the file %q was not copied successfully to %q after %d attempts (source %s, destination %s)",
		e.Source, e.Destination, e.Attempts, e.SourceChecksum, e.DestinationChecksum)
}

func (e *IntegrityError) Unwrap() error {
	return ErrIntegrity
}
