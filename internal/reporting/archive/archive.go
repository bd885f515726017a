// Package archive stores rendered reports on a local directory or an
// S3-compatible bucket.
package archive

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"option-replay-lab/internal/config"
	"option-replay-lab/internal/reporting"
)

// Storage defines the interface for report archive backends
type Storage interface {
	// Write stores data at the given path
	Write(ctx context.Context, path string, data []byte) error

	// Read retrieves data from the given path
	Read(ctx context.Context, path string) ([]byte, error)

	// List returns all paths matching the prefix
	List(ctx context.Context, prefix string) ([]string, error)

	// Exists checks if data exists at the given path
	Exists(ctx context.Context, path string) (bool, error)
}

// Open builds the sink named in cfg. Returns nil, nil when archiving is off.
func Open(cfg config.ArchiveConfig) (Storage, error) {
	switch cfg.Type {
	case config.ArchiveNone:
		return nil, nil
	case config.ArchiveLocalFS:
		fs, err := NewLocalFS(cfg.Path)
		if err != nil {
			return nil, err
		}
		return fs, nil
	case config.ArchiveS3:
		sink, err := NewS3(S3Config{
			Bucket:    cfg.S3.Bucket,
			Endpoint:  cfg.S3.Endpoint,
			Region:    cfg.S3.Region,
			AccessKey: cfg.S3.AccessKey,
			SecretKey: cfg.S3.SecretKey,
			Prefix:    cfg.S3.Prefix,
		})
		if err != nil {
			return nil, err
		}
		return sink, nil
	}
	return nil, fmt.Errorf("%w: unknown archive type %q", config.ErrConfigInvalid, cfg.Type)
}

// Publish writes every artifact. Reports are regenerated per run, so an
// existing artifact of the same name is overwritten.
func Publish(ctx context.Context, s Storage, artifacts []reporting.Artifact, logger *zap.Logger) error {
	if logger == nil {
		logger = zap.NewNop()
	}
	for _, a := range artifacts {
		if err := s.Write(ctx, a.Name, a.Body); err != nil {
			return fmt.Errorf("archive %s: %w", a.Name, err)
		}
		logger.Debug("archived report artifact", zap.String("path", a.Name), zap.Int("bytes", len(a.Body)))
	}
	return nil
}
