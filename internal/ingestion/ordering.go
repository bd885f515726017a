package ingestion

import (
	"errors"
	"sort"

	"option-replay-lab/internal/domain"
)

// ErrInvalidOrdering is returned when rows are not in strict store order.
var ErrInvalidOrdering = errors.New("rows are not in deterministic order")

// SortSnapshots orders snapshots by timestamp ASC.
func SortSnapshots(snaps []*domain.MarketSnapshot) {
	sort.SliceStable(snaps, func(i, j int) bool {
		return snaps[i].Timestamp.Before(snaps[j].Timestamp)
	})
}

// SortQuotes orders quotes by (timestamp ASC, strike ASC, option_type ASC),
// the order QuoteStore.GetByDay returns.
func SortQuotes(quotes []*domain.OptionQuote) {
	sort.SliceStable(quotes, func(i, j int) bool {
		return compareQuotes(quotes[i], quotes[j]) < 0
	})
}

// DedupeSnapshots drops snapshots repeating an earlier timestamp.
// Input must be sorted; the first occurrence wins.
func DedupeSnapshots(snaps []*domain.MarketSnapshot) ([]*domain.MarketSnapshot, int) {
	if len(snaps) == 0 {
		return snaps, 0
	}
	out := snaps[:1]
	for _, s := range snaps[1:] {
		if s.Timestamp.Equal(out[len(out)-1].Timestamp) {
			continue
		}
		out = append(out, s)
	}
	return out, len(snaps) - len(out)
}

// DedupeQuotes drops quotes repeating an earlier (timestamp, strike, option_type).
// Input must be sorted; the first occurrence wins.
func DedupeQuotes(quotes []*domain.OptionQuote) ([]*domain.OptionQuote, int) {
	if len(quotes) == 0 {
		return quotes, 0
	}
	out := quotes[:1]
	for _, q := range quotes[1:] {
		if compareQuotes(out[len(out)-1], q) == 0 {
			continue
		}
		out = append(out, q)
	}
	return out, len(quotes) - len(out)
}

// ValidateQuoteOrdering checks quotes are strictly ordered, which also rules
// out duplicate keys. Returns ErrInvalidOrdering if not.
func ValidateQuoteOrdering(quotes []*domain.OptionQuote) error {
	for i := 1; i < len(quotes); i++ {
		if compareQuotes(quotes[i-1], quotes[i]) >= 0 {
			return ErrInvalidOrdering
		}
	}
	return nil
}

// ValidateSnapshotOrdering checks snapshots are strictly ordered by timestamp.
func ValidateSnapshotOrdering(snaps []*domain.MarketSnapshot) error {
	for i := 1; i < len(snaps); i++ {
		if !snaps[i-1].Timestamp.Before(snaps[i].Timestamp) {
			return ErrInvalidOrdering
		}
	}
	return nil
}

// compareQuotes returns:
//   - negative if a < b
//   - zero if a == b
//   - positive if a > b
//
// Order: (timestamp ASC, strike ASC, option_type ASC)
func compareQuotes(a, b *domain.OptionQuote) int {
	if c := a.Timestamp.Compare(b.Timestamp); c != 0 {
		return c
	}
	if a.Strike != b.Strike {
		if a.Strike < b.Strike {
			return -1
		}
		return 1
	}
	if a.Type != b.Type {
		if a.Type < b.Type {
			return -1
		}
		return 1
	}
	return 0
}
