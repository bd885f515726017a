package lookup

import (
	"errors"
	"time"

	"option-replay-lab/internal/domain"
)

// Errors returned by lookup functions.
var (
	ErrNoPremium = errors.New("no premium data available")
	ErrNoSpot    = errors.New("no spot data available")
)

// NearestPremium returns the LTP of the quote for key closest in time to target.
// Quotes without a positive price are not candidates. Ties on distance go to
// the first candidate in input order.
// Returns ErrNoPremium if no candidate has a positive price.
func NearestPremium(target time.Time, key domain.InstrumentKey, quotes []*domain.OptionQuote) (float64, error) {
	var best *domain.OptionQuote
	var bestDist time.Duration

	for _, q := range quotes {
		if q.Strike != key.Strike || q.Type != key.Type || !q.HasPrice() {
			continue
		}
		d := absDuration(q.Timestamp.Sub(target))
		if best == nil || d < bestDist {
			best = q
			bestDist = d
		}
	}

	if best == nil {
		return 0, ErrNoPremium
	}
	return best.LTP, nil
}

// SpotAt returns the underlying price of the snapshot closest in time to target,
// with the same candidate and tie rules as NearestPremium.
// Returns ErrNoSpot if no snapshot has a positive price.
func SpotAt(target time.Time, snapshots []*domain.MarketSnapshot) (float64, error) {
	var best *domain.MarketSnapshot
	var bestDist time.Duration

	for _, s := range snapshots {
		if s.UnderlyingPrice <= 0 {
			continue
		}
		d := absDuration(s.Timestamp.Sub(target))
		if best == nil || d < bestDist {
			best = s
			bestDist = d
		}
	}

	if best == nil {
		return 0, ErrNoSpot
	}
	return best.UnderlyingPrice, nil
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}
