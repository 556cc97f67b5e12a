package main

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dashjay/nird-s3-sync/pkg/backend"
	"github.com/dashjay/nird-s3-sync/pkg/config"
	"github.com/dashjay/nird-s3-sync/pkg/journal"
)

func TestRunCopiesLocalFile(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src.txt")
	dst := filepath.Join(dir, "out", "dst.txt")
	jpath := filepath.Join(dir, "journal.db")
	require.NoError(t, os.WriteFile(src, []byte("Some content"), 0o644))

	err := run(context.Background(), []string{"--log-level=debug", "--chunk-size=4", "--journal", jpath, src, dst})
	require.NoError(t, err)

	got, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, "Some content", string(got))

	jr, err := journal.Open(jpath)
	require.NoError(t, err)
	defer jr.Close()
	entry, found, err := jr.Get(dst)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, journal.StatusVerified, entry.Status)
	assert.Equal(t, 1, entry.Attempts)
	assert.Len(t, entry.Checksum, 64)
	assert.NotEmpty(t, entry.ID)
}

func TestRunLogsJournalEntry(t *testing.T) {
	hook := logtest.NewGlobal()
	defer hook.Reset()
	dir := t.TempDir()
	src := filepath.Join(dir, "src.txt")
	dst := filepath.Join(dir, "dst.txt")
	require.NoError(t, os.WriteFile(src, []byte("Some content"), 0o644))

	err := run(context.Background(), []string{"--log-level=debug", "--journal", filepath.Join(dir, "journal.db"), src, dst})
	require.NoError(t, err)

	var logged *logrus.Entry
	for _, e := range hook.AllEntries() {
		if e.Message == "recorded copy in journal" {
			logged = e
		}
	}
	require.NotNil(t, logged)
	assert.Equal(t, logrus.DebugLevel, logged.Level)

	var entry journal.Entry
	require.NoError(t, json.Unmarshal([]byte(logged.Data["entry"].(string)), &entry))
	assert.Equal(t, dst, entry.Destination)
	assert.Equal(t, journal.StatusVerified, entry.Status)
	assert.Equal(t, logged.Data["copy_id"], entry.ID)
}

func TestRunMissingSource(t *testing.T) {
	dir := t.TempDir()
	dst := filepath.Join(dir, "dst.txt")

	err := run(context.Background(), []string{"--log-level=debug", filepath.Join(dir, "missing"), dst})
	assert.ErrorIs(t, err, backend.ErrNotExist)
	_, statErr := os.Stat(dst)
	assert.True(t, os.IsNotExist(statErr))
}

func TestParseConfigFlagsOverrideFile(t *testing.T) {
	cfgPath := filepath.Join(t.TempDir(), "cfg.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("retries: 7\ns3_bucket: from-file\n"), 0o600))

	cfg, args, err := parseConfig([]string{"--config-file", cfgPath, "--retries", "2", "a", "s3://b/c"})
	require.NoError(t, err)
	assert.Equal(t, 2, cfg.Retries)
	assert.Equal(t, "from-file", cfg.S3Bucket)
	assert.Equal(t, []string{"a", "s3://b/c"}, args)
}

func TestParseConfigRejects(t *testing.T) {
	_, _, err := parseConfig([]string{"only-one"})
	assert.Error(t, err)

	_, _, err = parseConfig([]string{"--retries=0", "a", "b"})
	assert.ErrorIs(t, err, config.ErrInvalid)
}
