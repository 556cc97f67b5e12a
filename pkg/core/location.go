package core

import (
	"errors"
	"fmt"
	"strings"
)

const s3Scheme = "s3://"

var ErrInvalidLocation = errors.New("invalid location")

// Location names a file either on local disk or, when Bucket is set, in an
// S3 bucket.
type Location struct {
	Bucket string
	Path   string
}

// ParseLocation accepts s3://bucket/key or a local path.
func ParseLocation(s string) (Location, error) {
	if s == "" {
		return Location{}, fmt.Errorf("%w: empty", ErrInvalidLocation)
	}
	if !strings.HasPrefix(s, s3Scheme) {
		return Location{Path: s}, nil
	}
	rest := strings.TrimPrefix(s, s3Scheme)
	firstSlash := strings.Index(rest, "/")
	if firstSlash <= 0 {
		return Location{}, fmt.Errorf("%w: %q, want s3://bucket/key", ErrInvalidLocation, s)
	}
	bucket, key := rest[:firstSlash], strings.TrimLeft(rest[firstSlash+1:], "/")
	if key == "" || strings.HasSuffix(key, "/") {
		return Location{}, fmt.Errorf("%w: %q does not name an object", ErrInvalidLocation, s)
	}
	return Location{Bucket: bucket, Path: key}, nil
}

func (l Location) IsS3() bool {
	return l.Bucket != ""
}

func (l Location) String() string {
	if l.IsS3() {
		return s3Scheme + l.Bucket + "/" + l.Path
	}
	return l.Path
}
