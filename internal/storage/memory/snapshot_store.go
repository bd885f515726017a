package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"option-replay-lab/internal/domain"
	"option-replay-lab/internal/storage"
)

// SnapshotStore is an in-memory implementation of storage.SnapshotStore.
type SnapshotStore struct {
	mu   sync.RWMutex
	data map[int64]*domain.MarketSnapshot // keyed by timestamp (unix nanos)
}

// NewSnapshotStore creates a new in-memory snapshot store.
func NewSnapshotStore() *SnapshotStore {
	return &SnapshotStore{
		data: make(map[int64]*domain.MarketSnapshot),
	}
}

// InsertBulk adds multiple snapshots. Fails entire batch on duplicate.
func (s *SnapshotStore) InsertBulk(_ context.Context, snapshots []*domain.MarketSnapshot) error {
	if len(snapshots) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Track keys in this batch to detect intra-batch duplicates
	batchKeys := make(map[int64]struct{}, len(snapshots))

	// First pass: check for duplicates (existing + intra-batch)
	for _, snap := range snapshots {
		if snap == nil || snap.Timestamp.IsZero() {
			return storage.ErrInvalidInput
		}
		key := snap.Timestamp.UnixNano()

		if _, exists := s.data[key]; exists {
			return storage.ErrDuplicateKey
		}
		if _, exists := batchKeys[key]; exists {
			return storage.ErrDuplicateKey
		}
		batchKeys[key] = struct{}{}
	}

	// Second pass: insert all
	for _, snap := range snapshots {
		snapCopy := *snap
		s.data[snap.Timestamp.UnixNano()] = &snapCopy
	}

	return nil
}

// GetByTimeRange retrieves snapshots within [start, end] (inclusive), ordered by timestamp ASC.
func (s *SnapshotStore) GetByTimeRange(_ context.Context, start, end time.Time) ([]*domain.MarketSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.MarketSnapshot
	for _, snap := range s.data {
		if snap.Timestamp.Before(start) || snap.Timestamp.After(end) {
			continue
		}
		snapCopy := *snap
		result = append(result, &snapCopy)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Timestamp.Before(result[j].Timestamp)
	})

	return result, nil
}

var _ storage.SnapshotStore = (*SnapshotStore)(nil)
