package postgres

import (
	"context"
	"fmt"

	"option-replay-lab/internal/storage"
)

// IngestProgressStore implements storage.IngestProgressStore using PostgreSQL.
type IngestProgressStore struct {
	pool *Pool
}

// NewIngestProgressStore creates a new IngestProgressStore.
func NewIngestProgressStore(pool *Pool) *IngestProgressStore {
	return &IngestProgressStore{pool: pool}
}

// Compile-time interface check.
var _ storage.IngestProgressStore = (*IngestProgressStore)(nil)

// IsIngested reports whether a file with this digest was already loaded.
func (s *IngestProgressStore) IsIngested(ctx context.Context, digest string) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM ingested_files WHERE digest = $1)`, digest,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check ingested file: %w", err)
	}
	return exists, nil
}

// MarkIngested records a loaded file. Returns ErrDuplicateKey if the digest exists.
func (s *IngestProgressStore) MarkIngested(ctx context.Context, f *storage.IngestedFile) error {
	if f == nil || f.Digest == "" {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO ingested_files (digest, path, kind, row_count, skipped_count, ingested_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err := s.pool.Exec(ctx, query, f.Digest, f.Path, f.Kind, f.Rows, f.Skipped, f.IngestedAt)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert ingested file: %w", err)
	}

	return nil
}

// List returns all ingested files ordered by ingestion time.
func (s *IngestProgressStore) List(ctx context.Context) ([]*storage.IngestedFile, error) {
	query := `
		SELECT digest, path, kind, row_count, skipped_count, ingested_at
		FROM ingested_files
		ORDER BY ingested_at ASC, digest ASC
	`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list ingested files: %w", err)
	}
	defer rows.Close()

	var files []*storage.IngestedFile
	for rows.Next() {
		var f storage.IngestedFile
		if err := rows.Scan(&f.Digest, &f.Path, &f.Kind, &f.Rows, &f.Skipped, &f.IngestedAt); err != nil {
			return nil, fmt.Errorf("scan ingested file row: %w", err)
		}
		files = append(files, &f)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate ingested file rows: %w", err)
	}

	return files, nil
}
