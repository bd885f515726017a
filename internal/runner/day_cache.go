package runner

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/singleflight"

	"option-replay-lab/internal/lookup"
	"option-replay-lab/internal/observability"
	"option-replay-lab/internal/storage"
)

// DayCache holds one lookup index per calendar day, loaded lazily from a
// QuoteStore. Concurrent requests for the same day share a single load.
// Failed loads are not cached.
type DayCache struct {
	store storage.QuoteStore

	mu   sync.RWMutex
	days map[string]*lookup.Index

	group singleflight.Group
}

// NewDayCache creates an empty cache over store.
func NewDayCache(store storage.QuoteStore) *DayCache {
	return &DayCache{
		store: store,
		days:  make(map[string]*lookup.Index),
	}
}

// Get returns the index of day ("2006-01-02"), loading it on first use.
func (c *DayCache) Get(ctx context.Context, day string) (*lookup.Index, error) {
	if idx, ok := c.cached(day); ok {
		observability.RecordDayCache(true)
		return idx, nil
	}
	observability.RecordDayCache(false)

	v, err, _ := c.group.Do(day, func() (any, error) {
		if idx, ok := c.cached(day); ok {
			return idx, nil
		}

		quotes, err := c.store.GetByDay(ctx, day)
		if err != nil {
			return nil, fmt.Errorf("load quotes for %s: %w", day, err)
		}
		idx := lookup.NewIndex(quotes)

		c.mu.Lock()
		c.days[day] = idx
		c.mu.Unlock()
		return idx, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*lookup.Index), nil
}

// Len returns the number of cached days.
func (c *DayCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.days)
}

// Evict drops a day from the cache.
func (c *DayCache) Evict(day string) {
	c.mu.Lock()
	delete(c.days, day)
	c.mu.Unlock()
}

func (c *DayCache) cached(day string) (*lookup.Index, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	idx, ok := c.days[day]
	return idx, ok
}
