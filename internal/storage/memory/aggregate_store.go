package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"option-replay-lab/internal/domain"
	"option-replay-lab/internal/storage"
)

// AggregateStore is an in-memory implementation of storage.AggregateStore.
type AggregateStore struct {
	mu   sync.RWMutex
	data map[string]*domain.RunAggregate // keyed by (run_id, tag)
}

// NewAggregateStore creates a new in-memory aggregate store.
func NewAggregateStore() *AggregateStore {
	return &AggregateStore{
		data: make(map[string]*domain.RunAggregate),
	}
}

// aggregateKey generates a unique key for an aggregate.
func aggregateKey(runID, tag string) string {
	return fmt.Sprintf("%s|%s", runID, tag)
}

// copyAggregate deep-copies the exit reason histogram.
func copyAggregate(a *domain.RunAggregate) *domain.RunAggregate {
	aggCopy := *a
	if a.ExitReasons != nil {
		aggCopy.ExitReasons = make(map[domain.ExitReason]int, len(a.ExitReasons))
		for k, v := range a.ExitReasons {
			aggCopy.ExitReasons[k] = v
		}
	}
	return &aggCopy
}

// Insert adds a new aggregate. Returns ErrDuplicateKey if key exists.
func (s *AggregateStore) Insert(_ context.Context, a *domain.RunAggregate) error {
	if a == nil || a.RunID == "" || a.Tag == "" {
		return storage.ErrInvalidInput
	}

	key := aggregateKey(a.RunID, a.Tag)

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[key]; exists {
		return storage.ErrDuplicateKey
	}

	s.data[key] = copyAggregate(a)
	return nil
}

// InsertBulk adds multiple aggregates atomically. Fails entire batch on any duplicate.
func (s *AggregateStore) InsertBulk(_ context.Context, aggregates []*domain.RunAggregate) error {
	if len(aggregates) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	batchKeys := make(map[string]struct{}, len(aggregates))

	// First pass: check for duplicates (existing + intra-batch)
	for _, a := range aggregates {
		if a == nil || a.RunID == "" || a.Tag == "" {
			return storage.ErrInvalidInput
		}
		key := aggregateKey(a.RunID, a.Tag)
		if _, exists := s.data[key]; exists {
			return storage.ErrDuplicateKey
		}
		if _, exists := batchKeys[key]; exists {
			return storage.ErrDuplicateKey
		}
		batchKeys[key] = struct{}{}
	}

	// Second pass: insert all
	for _, a := range aggregates {
		s.data[aggregateKey(a.RunID, a.Tag)] = copyAggregate(a)
	}

	return nil
}

// GetByKey retrieves an aggregate by its composite key.
func (s *AggregateStore) GetByKey(_ context.Context, runID, tag string) (*domain.RunAggregate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, exists := s.data[aggregateKey(runID, tag)]
	if !exists {
		return nil, storage.ErrNotFound
	}
	return copyAggregate(a), nil
}

// GetByRun retrieves all aggregates of a run, ordered by tag.
func (s *AggregateStore) GetByRun(_ context.Context, runID string) ([]*domain.RunAggregate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.RunAggregate
	for _, a := range s.data {
		if a.RunID == runID {
			result = append(result, copyAggregate(a))
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Tag < result[j].Tag
	})

	return result, nil
}

var _ storage.AggregateStore = (*AggregateStore)(nil)
