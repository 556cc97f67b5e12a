package core

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
	"github.com/sirupsen/logrus"

	"github.com/dashjay/nird-s3-sync/pkg/backend"
	"github.com/dashjay/nird-s3-sync/pkg/config"
)

var ErrBucketNotFound = errors.New("bucket does not exist")

// S3Client is the object store backend. Paths are keys below prefix in one
// bucket.
type S3Client struct {
	cli      *s3.S3
	uploader *s3manager.Uploader
	bucket   string
	prefix   string
}

var _ backend.Interface = (*S3Client)(nil)

// NewS3Client connects to cfg.S3Bucket and fails if the bucket is missing.
func NewS3Client(ctx context.Context, cfg *config.Config) (*S3Client, error) {
	accessKey, secretKey, err := cfg.Credentials()
	if err != nil {
		return nil, err
	}
	awsCfg := &aws.Config{
		Endpoint:         aws.String(cfg.S3Endpoint),
		Credentials:      credentials.NewStaticCredentials(accessKey, secretKey, ""),
		S3ForcePathStyle: aws.Bool(true),
		DisableSSL:       aws.Bool(strings.HasPrefix(cfg.S3Endpoint, "http://")),
		Region:           aws.String(cfg.S3Region),
	}
	awsSession, err := session.NewSession(awsCfg)
	if err != nil {
		return nil, fmt.Errorf("create s3 session: %w", err)
	}
	cli := s3.New(awsSession)
	s := &S3Client{
		cli:      cli,
		uploader: s3manager.NewUploaderWithClient(cli),
		bucket:   cfg.S3Bucket,
		prefix:   strings.Trim(cfg.S3Prefix, "/"),
	}

	_, err = cli.HeadBucketWithContext(ctx, &s3.HeadBucketInput{Bucket: aws.String(s.bucket)})
	if err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("%w: %q", ErrBucketNotFound, s.bucket)
		}
		return nil, fmt.Errorf("check bucket %q: %w", s.bucket, err)
	}
	logrus.WithField("bucket", s.bucket).WithField("prefix", s.prefix).
		WithField("endpoint", cfg.S3Endpoint).Debugln("connected to s3 bucket")
	return s, nil
}

func (s *S3Client) Bucket() string {
	return s.bucket
}

func (s *S3Client) key(name string) string {
	return strings.TrimPrefix(path.Join(s.prefix, name), "/")
}

func isNotFound(err error) bool {
	var reqErr awserr.RequestFailure
	if errors.As(err, &reqErr) && reqErr.StatusCode() == http.StatusNotFound {
		return true
	}
	var aerr awserr.Error
	if errors.As(err, &aerr) {
		switch aerr.Code() {
		case s3.ErrCodeNoSuchKey, s3.ErrCodeNoSuchBucket, "NotFound":
			return true
		}
	}
	return false
}

func (s *S3Client) wrap(op, name string, err error) error {
	if isNotFound(err) {
		return fmt.Errorf("%s s3://%s/%s: %w", op, s.bucket, s.key(name), backend.ErrNotExist)
	}
	return fmt.Errorf("%s s3://%s/%s: %w", op, s.bucket, s.key(name), err)
}

func (s *S3Client) Stat(ctx context.Context, name string) (backend.FileInfo, error) {
	out, err := s.cli.HeadObjectWithContext(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(name)),
	})
	if err != nil {
		return backend.FileInfo{}, s.wrap("stat", name, err)
	}
	return backend.FileInfo{
		Path:    name,
		Size:    aws.Int64Value(out.ContentLength),
		ModTime: aws.TimeValue(out.LastModified),
	}, nil
}

func (s *S3Client) GetReader(ctx context.Context, name string) (io.ReadCloser, error) {
	out, err := s.cli.GetObjectWithContext(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(name)),
	})
	if err != nil {
		return nil, s.wrap("get", name, err)
	}
	return out.Body, nil
}

// GetWriter streams into a multipart upload. Nothing is visible in the bucket
// until Close returns without error; Abort cancels the upload.
func (s *S3Client) GetWriter(ctx context.Context, name string) (io.WriteCloser, error) {
	pr, pw := io.Pipe()
	w := &s3Writer{pw: pw, done: make(chan error, 1)}
	go func() {
		_, err := s.uploader.UploadWithContext(ctx, &s3manager.UploadInput{
			Bucket: aws.String(s.bucket),
			Key:    aws.String(s.key(name)),
			Body:   pr,
		})
		if err != nil {
			err = s.wrap("put", name, err)
		}
		// unblocks a writer still waiting on the pipe
		_ = pr.CloseWithError(err)
		w.done <- err
	}()
	return w, nil
}

func (s *S3Client) Remove(ctx context.Context, name string) error {
	logrus.WithField("bucket", s.bucket).WithField("key", s.key(name)).Debugln("delete object")
	_, err := s.cli.DeleteObjectWithContext(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(name)),
	})
	if err != nil {
		return s.wrap("delete", name, err)
	}
	return nil
}

func (s *S3Client) Exists(ctx context.Context, name string) (bool, error) {
	_, err := s.Stat(ctx, name)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, backend.ErrNotExist) {
		return false, nil
	}
	return false, err
}

var _ backend.Aborter = (*s3Writer)(nil)

type s3Writer struct {
	pw     *io.PipeWriter
	done   chan error
	closed bool
}

func (w *s3Writer) Write(p []byte) (int, error) {
	return w.pw.Write(p)
}

func (w *s3Writer) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true
	_ = w.pw.Close()
	return <-w.done
}

var errUploadAborted = errors.New("upload aborted")

// Abort fails the upload with cause so the uploader never completes the
// object, and waits for it to give up.
func (w *s3Writer) Abort(cause error) error {
	if w.closed {
		return nil
	}
	w.closed = true
	if cause == nil {
		cause = errUploadAborted
	}
	_ = w.pw.CloseWithError(cause)
	<-w.done
	return nil
}
