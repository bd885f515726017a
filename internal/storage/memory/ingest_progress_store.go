package memory

import (
	"context"
	"sort"
	"sync"

	"option-replay-lab/internal/storage"
)

// IngestProgressStore is an in-memory implementation of storage.IngestProgressStore.
type IngestProgressStore struct {
	mu    sync.RWMutex
	files map[string]*storage.IngestedFile // keyed by digest
}

// NewIngestProgressStore creates a new in-memory ingest progress store.
func NewIngestProgressStore() *IngestProgressStore {
	return &IngestProgressStore{
		files: make(map[string]*storage.IngestedFile),
	}
}

// IsIngested reports whether a file with this digest was already loaded.
func (s *IngestProgressStore) IsIngested(_ context.Context, digest string) (bool, error) {
	if digest == "" {
		return false, storage.ErrInvalidInput
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.files[digest]
	return ok, nil
}

// MarkIngested records a loaded file.
func (s *IngestProgressStore) MarkIngested(_ context.Context, f *storage.IngestedFile) error {
	if f == nil || f.Digest == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.files[f.Digest]; exists {
		return storage.ErrDuplicateKey
	}
	fileCopy := *f
	s.files[f.Digest] = &fileCopy
	return nil
}

// List returns all ingested files ordered by ingestion time.
func (s *IngestProgressStore) List(_ context.Context) ([]*storage.IngestedFile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*storage.IngestedFile, 0, len(s.files))
	for _, f := range s.files {
		fileCopy := *f
		result = append(result, &fileCopy)
	}

	sort.Slice(result, func(i, j int) bool {
		if !result[i].IngestedAt.Equal(result[j].IngestedAt) {
			return result[i].IngestedAt.Before(result[j].IngestedAt)
		}
		return result[i].Digest < result[j].Digest
	})
	return result, nil
}

var _ storage.IngestProgressStore = (*IngestProgressStore)(nil)
