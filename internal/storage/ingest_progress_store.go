package storage

import (
	"context"
	"time"
)

// Feed kinds recorded by IngestProgressStore.
const (
	FeedSnapshots = "snapshots"
	FeedQuotes    = "quotes"
)

// IngestedFile records one feed file loaded into the stores.
type IngestedFile struct {
	Digest     string // content hash, primary key
	Path       string
	Kind       string // FeedSnapshots | FeedQuotes
	Rows       int
	Skipped    int // malformed records
	IngestedAt time.Time
}

// IngestProgressStore tracks which feed files have been ingested.
// This enables re-running ingestion over a directory without duplicating rows.
type IngestProgressStore interface {
	// IsIngested reports whether a file with this digest was already loaded.
	IsIngested(ctx context.Context, digest string) (bool, error)

	// MarkIngested records a loaded file. Returns ErrDuplicateKey if the digest exists.
	MarkIngested(ctx context.Context, f *IngestedFile) error

	// List returns all ingested files ordered by ingestion time.
	List(ctx context.Context) ([]*IngestedFile, error)
}
