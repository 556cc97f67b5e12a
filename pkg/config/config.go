package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/dashjay/nird-s3-sync/pkg/checksum"
	"github.com/dashjay/nird-s3-sync/pkg/transfer"
)

const (
	DefaultS3Endpoint = "https://s3.nird.sigma2.no"
	DefaultS3Region   = "us-east-1"

	AccessKeyEnv = "ACCESS_KEY_NIRD_S3"
	SecretKeyEnv = "SECRET_KEY_NIRD_S3"
)

var (
	ErrMissingCredentials = errors.New("missing s3 credentials")
	ErrInvalid            = errors.New("invalid config")
)

type Config struct {
	S3Accesskey string `json:"s3_accesskey,omitempty" yaml:"s3_accesskey,omitempty"`
	S3Secretkey string `json:"s3_secretkey,omitempty" yaml:"s3_secretkey,omitempty"`
	S3Endpoint  string `json:"s3_endpoint,omitempty" yaml:"s3_endpoint,omitempty"`
	S3Bucket    string `json:"s3_bucket,omitempty" yaml:"s3_bucket,omitempty"`
	S3Prefix    string `json:"s3_prefix,omitempty" yaml:"s3_prefix,omitempty"`
	S3Region    string `json:"s3_region,omitempty" yaml:"s3_region,omitempty"`

	ChunkSize int    `json:"chunk_size,omitempty" yaml:"chunk_size,omitempty"`
	Retries   int    `json:"retries,omitempty" yaml:"retries,omitempty"`
	Checksum  string `json:"checksum,omitempty" yaml:"checksum,omitempty"`

	JournalPath string `json:"journal_path,omitempty" yaml:"journal_path,omitempty"`
	LogLevel    string `json:"log_level,omitempty" yaml:"log_level,omitempty"`
	PProfPort   string `json:"pprof_port,omitempty" yaml:"pprof_port,omitempty"`
}

func Default() *Config {
	return &Config{
		S3Endpoint: DefaultS3Endpoint,
		S3Region:   DefaultS3Region,
		ChunkSize:  checksum.DefaultChunkSize,
		Retries:    transfer.DefaultRetries,
		Checksum:   string(checksum.SHA256),
		LogLevel:   "info",
	}
}

// FromFile loads path over the defaults. Files ending in .yaml or .yml are
// YAML, anything else JSON.
func FromFile(path string) (*Config, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	cfg := Default()
	switch filepath.Ext(path) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(content, cfg)
	default:
		err = json.Unmarshal(content, cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// Credentials returns the configured keys, falling back to the
// ACCESS_KEY_NIRD_S3 and SECRET_KEY_NIRD_S3 environment variables.
func (c *Config) Credentials() (accessKey, secretKey string, err error) {
	accessKey, secretKey = c.S3Accesskey, c.S3Secretkey
	if accessKey == "" {
		if accessKey = os.Getenv(AccessKeyEnv); accessKey == "" {
			return "", "", fmt.Errorf("%w: the %q environment variable must be set", ErrMissingCredentials, AccessKeyEnv)
		}
	}
	if secretKey == "" {
		if secretKey = os.Getenv(SecretKeyEnv); secretKey == "" {
			return "", "", fmt.Errorf("%w: the %q environment variable must be set", ErrMissingCredentials, SecretKeyEnv)
		}
	}
	return accessKey, secretKey, nil
}

func (c *Config) Validate() error {
	if c.S3Endpoint == "" {
		return fmt.Errorf("%w: s3_endpoint is empty", ErrInvalid)
	}
	if c.ChunkSize <= 0 {
		return fmt.Errorf("%w: chunk_size must be positive, got %d", ErrInvalid, c.ChunkSize)
	}
	if c.Retries <= 0 {
		return fmt.Errorf("%w: retries must be positive, got %d", ErrInvalid, c.Retries)
	}
	if _, err := checksum.ParseAlgorithm(c.Checksum); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalid, err)
	}
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalid, err)
	}
	return nil
}

// CopyOptions turns the copy settings into transfer options.
func (c *Config) CopyOptions() (transfer.Options, error) {
	algo, err := checksum.ParseAlgorithm(c.Checksum)
	if err != nil {
		return transfer.Options{}, err
	}
	opts := transfer.DefaultOptions()
	opts.ChunkSize = c.ChunkSize
	opts.Retries = c.Retries
	opts.Algorithm = algo
	return opts, nil
}
