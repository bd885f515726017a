package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"option-replay-lab/internal/domain"
	"option-replay-lab/internal/storage"
)

// QuoteStore is an in-memory implementation of storage.QuoteStore.
// Quotes are bucketed by calendar day.
type QuoteStore struct {
	mu    sync.RWMutex
	days  map[string][]*domain.OptionQuote
	index map[string]struct{} // (timestamp, strike, option_type)
}

// NewQuoteStore creates a new in-memory quote store.
func NewQuoteStore() *QuoteStore {
	return &QuoteStore{
		days:  make(map[string][]*domain.OptionQuote),
		index: make(map[string]struct{}),
	}
}

// quoteKey generates a unique key for a quote.
func quoteKey(q *domain.OptionQuote) string {
	return fmt.Sprintf("%d|%.2f|%s", q.Timestamp.UnixNano(), q.Strike, q.Type)
}

// InsertBulk adds multiple quotes. Fails entire batch on duplicate.
func (s *QuoteStore) InsertBulk(_ context.Context, quotes []*domain.OptionQuote) error {
	if len(quotes) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	batchKeys := make(map[string]struct{}, len(quotes))

	// First pass: validate and check for duplicates (existing + intra-batch)
	for _, q := range quotes {
		if q == nil || q.Timestamp.IsZero() || !q.Type.Valid() {
			return storage.ErrInvalidInput
		}
		key := quoteKey(q)

		if _, exists := s.index[key]; exists {
			return storage.ErrDuplicateKey
		}
		if _, exists := batchKeys[key]; exists {
			return storage.ErrDuplicateKey
		}
		batchKeys[key] = struct{}{}
	}

	// Second pass: insert all
	touched := make(map[string]struct{})
	for _, q := range quotes {
		quoteCopy := *q
		day := domain.DayOf(q.Timestamp)
		s.days[day] = append(s.days[day], &quoteCopy)
		s.index[quoteKey(q)] = struct{}{}
		touched[day] = struct{}{}
	}

	for day := range touched {
		sortQuotes(s.days[day])
	}

	return nil
}

// GetByDay retrieves all quotes of a day, ordered by timestamp, strike, option_type ASC.
func (s *QuoteStore) GetByDay(_ context.Context, day string) ([]*domain.OptionQuote, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stored := s.days[day]
	result := make([]*domain.OptionQuote, len(stored))
	for i, q := range stored {
		quoteCopy := *q
		result[i] = &quoteCopy
	}
	return result, nil
}

func sortQuotes(quotes []*domain.OptionQuote) {
	sort.Slice(quotes, func(i, j int) bool {
		a, b := quotes[i], quotes[j]
		if !a.Timestamp.Equal(b.Timestamp) {
			return a.Timestamp.Before(b.Timestamp)
		}
		if a.Strike != b.Strike {
			return a.Strike < b.Strike
		}
		return a.Type < b.Type
	})
}

var _ storage.QuoteStore = (*QuoteStore)(nil)
