package config_test

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/dashjay/nird-s3-sync/pkg/checksum"
	"github.com/dashjay/nird-s3-sync/pkg/config"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(p, []byte(content), 0o600))
	return p
}

func TestDefault(t *testing.T) {
	cfg := config.Default()
	assert.Equal(t, "https://s3.nird.sigma2.no", cfg.S3Endpoint)
	assert.Equal(t, 1<<20, cfg.ChunkSize)
	assert.Equal(t, 3, cfg.Retries)
	assert.NoError(t, cfg.Validate())
}

func TestFromFileJSON(t *testing.T) {
	p := writeFile(t, "cfg.json", `{"s3_bucket": "climate", "s3_prefix": "runs/", "retries": 5, "log_level": "debug"}`)
	cfg, err := config.FromFile(p)
	require.NoError(t, err)
	assert.Equal(t, "climate", cfg.S3Bucket)
	assert.Equal(t, "runs/", cfg.S3Prefix)
	assert.Equal(t, 5, cfg.Retries)
	assert.Equal(t, "debug", cfg.LogLevel)
	// unset keys keep their defaults
	assert.Equal(t, config.DefaultS3Endpoint, cfg.S3Endpoint)
	assert.Equal(t, checksum.DefaultChunkSize, cfg.ChunkSize)
}

func TestFromFileYAML(t *testing.T) {
	p := writeFile(t, "cfg.yaml", "s3_endpoint: http://localhost:9000\nchunk_size: 4096\nchecksum: blake2b-256\n")
	cfg, err := config.FromFile(p)
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:9000", cfg.S3Endpoint)
	assert.Equal(t, 4096, cfg.ChunkSize)

	opts, err := cfg.CopyOptions()
	require.NoError(t, err)
	assert.Equal(t, checksum.BLAKE2b256, opts.Algorithm)
	assert.Equal(t, 4096, opts.ChunkSize)
	assert.Equal(t, 3, opts.Retries)
}

func TestFromFileErrors(t *testing.T) {
	_, err := config.FromFile(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)

	_, err = config.FromFile(writeFile(t, "bad.json", "{not json"))
	assert.Error(t, err)
}

func TestCredentialsFromEnv(t *testing.T) {
	t.Setenv(config.AccessKeyEnv, "SOME_ACCESS_KEY")
	t.Setenv(config.SecretKeyEnv, "SOME_SECRET_KEY")

	ak, sk, err := config.Default().Credentials()
	require.NoError(t, err)
	assert.Equal(t, "SOME_ACCESS_KEY", ak)
	assert.Equal(t, "SOME_SECRET_KEY", sk)
}

func TestCredentialsPreferConfig(t *testing.T) {
	t.Setenv(config.AccessKeyEnv, "env-access")
	t.Setenv(config.SecretKeyEnv, "env-secret")
	cfg := config.Default()
	cfg.S3Accesskey = "cfg-access"

	ak, sk, err := cfg.Credentials()
	require.NoError(t, err)
	assert.Equal(t, "cfg-access", ak)
	assert.Equal(t, "env-secret", sk)
}

func TestMissingCredentials(t *testing.T) {
	t.Setenv(config.AccessKeyEnv, "")
	t.Setenv(config.SecretKeyEnv, "")

	_, _, err := config.Default().Credentials()
	require.ErrorIs(t, err, config.ErrMissingCredentials)
	assert.Contains(t, err.Error(), config.AccessKeyEnv)

	t.Setenv(config.AccessKeyEnv, "present")
	_, _, err = config.Default().Credentials()
	require.ErrorIs(t, err, config.ErrMissingCredentials)
	assert.Contains(t, err.Error(), config.SecretKeyEnv)
}

func TestValidate(t *testing.T) {
	for name, mutate := range map[string]func(*config.Config){
		"zero retries":   func(c *config.Config) { c.Retries = 0 },
		"negative chunk": func(c *config.Config) { c.ChunkSize = -1 },
		"no endpoint":    func(c *config.Config) { c.S3Endpoint = "" },
		"bad checksum":   func(c *config.Config) { c.Checksum = "md5" },
		"bad log level":  func(c *config.Config) { c.LogLevel = "loud" },
	} {
		cfg := config.Default()
		mutate(cfg)
		assert.ErrorIs(t, cfg.Validate(), config.ErrInvalid, name)
	}
}

func TestUnsetFieldsAreOmitted(t *testing.T) {
	bin, err := json.Marshal(&config.Config{})
	require.NoError(t, err)
	assert.Equal(t, "{}", string(bin))

	bin, err = yaml.Marshal(&config.Config{})
	require.NoError(t, err)
	assert.Equal(t, "{}\n", string(bin))

	bin, err = json.Marshal(&config.Config{PProfPort: ":6060"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"pprof_port":":6060"}`, string(bin))
}
