package lookup

import (
	"sort"
	"time"

	"option-replay-lab/internal/domain"
)

// Index groups one day's priced quotes by instrument.
// It answers NearestPremium with the same result as the linear scan.
type Index struct {
	byKey  map[domain.InstrumentKey][]*domain.OptionQuote
	sorted map[domain.InstrumentKey]bool
}

// NewIndex builds an index over quotes. Quotes without a positive price are dropped.
// Input order is preserved per key.
func NewIndex(quotes []*domain.OptionQuote) *Index {
	idx := &Index{
		byKey:  make(map[domain.InstrumentKey][]*domain.OptionQuote),
		sorted: make(map[domain.InstrumentKey]bool),
	}
	for _, q := range quotes {
		if !q.HasPrice() {
			continue
		}
		k := q.Key()
		idx.byKey[k] = append(idx.byKey[k], q)
	}
	for k, qs := range idx.byKey {
		idx.sorted[k] = sort.SliceIsSorted(qs, func(i, j int) bool {
			return qs[i].Timestamp.Before(qs[j].Timestamp)
		})
	}
	return idx
}

// Quotes returns the priced quotes for key in input order.
// The returned slice must not be modified.
func (idx *Index) Quotes(key domain.InstrumentKey) []*domain.OptionQuote {
	return idx.byKey[key]
}

// Len returns the number of indexed instruments.
func (idx *Index) Len() int {
	return len(idx.byKey)
}

// NearestPremium returns the LTP of the quote for key closest in time to target.
// Returns ErrNoPremium if the key has no priced quote.
func (idx *Index) NearestPremium(target time.Time, key domain.InstrumentKey) (float64, error) {
	qs := idx.byKey[key]
	if len(qs) == 0 {
		return 0, ErrNoPremium
	}
	if !idx.sorted[key] {
		return NearestPremium(target, key, qs)
	}

	// First quote at or after target
	i := sort.Search(len(qs), func(j int) bool {
		return !qs[j].Timestamp.Before(target)
	})

	best := -1
	if i > 0 {
		// Earliest quote sharing the last timestamp before target
		j := i - 1
		for j > 0 && qs[j-1].Timestamp.Equal(qs[j].Timestamp) {
			j--
		}
		best = j
	}
	if i < len(qs) {
		if best < 0 || absDuration(qs[i].Timestamp.Sub(target)) < absDuration(qs[best].Timestamp.Sub(target)) {
			best = i
		}
	}
	return qs[best].LTP, nil
}
