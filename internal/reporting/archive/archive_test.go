package archive

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"option-replay-lab/internal/config"
	"option-replay-lab/internal/reporting"
)

func TestOpen(t *testing.T) {
	s, err := Open(config.ArchiveConfig{})
	require.NoError(t, err)
	assert.Nil(t, s)

	s, err = Open(config.ArchiveConfig{Type: config.ArchiveLocalFS, Path: t.TempDir()})
	require.NoError(t, err)
	assert.IsType(t, &LocalFS{}, s)

	s, err = Open(config.ArchiveConfig{Type: config.ArchiveS3, S3: config.S3Config{Bucket: "reports", Region: "us-east-1"}})
	require.NoError(t, err)
	assert.IsType(t, &S3Storage{}, s)

	_, err = Open(config.ArchiveConfig{Type: config.ArchiveS3})
	assert.Error(t, err)

	_, err = Open(config.ArchiveConfig{Type: "ftp"})
	assert.ErrorIs(t, err, config.ErrConfigInvalid)
}

func TestPublish(t *testing.T) {
	ctx := context.Background()
	fs, err := NewLocalFS(t.TempDir())
	require.NoError(t, err)

	artifacts := []reporting.Artifact{
		{Name: "run-1/trades.csv", Body: []byte("trade_id\n")},
		{Name: "run-1/report.md", Body: []byte("# Backtest Report\n")},
	}
	require.NoError(t, Publish(ctx, fs, artifacts, nil))

	paths, err := fs.List(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"run-1/report.md", "run-1/trades.csv"}, paths)

	// Re-publishing overwrites
	artifacts[0].Body = []byte("trade_id,day\n")
	require.NoError(t, Publish(ctx, fs, artifacts, nil))
	got, err := fs.Read(ctx, "run-1/trades.csv")
	require.NoError(t, err)
	assert.Equal(t, "trade_id,day\n", string(got))
}
