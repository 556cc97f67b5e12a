package core_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dashjay/nird-s3-sync/pkg/core"
)

func TestParseLocation(t *testing.T) {
	loc, err := core.ParseLocation("s3://climate/runs/2024/out.nc")
	require.NoError(t, err)
	assert.True(t, loc.IsS3())
	assert.Equal(t, "climate", loc.Bucket)
	assert.Equal(t, "runs/2024/out.nc", loc.Path)
	assert.Equal(t, "s3://climate/runs/2024/out.nc", loc.String())

	loc, err = core.ParseLocation("/scratch/out.nc")
	require.NoError(t, err)
	assert.False(t, loc.IsS3())
	assert.Equal(t, "/scratch/out.nc", loc.String())

	loc, err = core.ParseLocation("relative/out.nc")
	require.NoError(t, err)
	assert.Equal(t, "relative/out.nc", loc.Path)
}

func TestParseLocationInvalid(t *testing.T) {
	for _, s := range []string{"", "s3://", "s3://bucket", "s3://bucket/", "s3:///key", "s3://bucket/dir/"} {
		_, err := core.ParseLocation(s)
		assert.ErrorIs(t, err, core.ErrInvalidLocation, s)
	}
}
