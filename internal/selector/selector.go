package selector

import (
	"errors"
	"fmt"
	"math"

	"option-replay-lab/internal/domain"
	"option-replay-lab/internal/lookup"
)

// ErrNoRules is returned by New when no rule is given.
var ErrNoRules = errors.New("selector: no entry rules")

// Reference selection values.
const (
	DefaultStartHour       = 11
	DefaultEndHour         = 14
	DefaultStrikeIncrement = 50.0
)

// Options controls snapshot scanning.
type Options struct {
	StartHour       int     // inclusive
	EndHour         int     // exclusive
	StrikeIncrement float64 // traded strike step
	StrikeOffset    int     // 0 = ATM, n>0 = n strikes OTM, n<0 = ITM
	MinPremium      float64 // entries below are skipped
	OnePerDay       bool    // stop at the first resolvable entry
	FirstPerTag     bool    // each rule tag fires at most once
	MaxPerDay       int     // 0 = unlimited
}

// DefaultOptions returns the reference window 11-14, strike step 50, ATM, floor 5.
func DefaultOptions() Options {
	return Options{
		StartHour:       DefaultStartHour,
		EndHour:         DefaultEndHour,
		StrikeIncrement: DefaultStrikeIncrement,
		MinPremium:      domain.DefaultMinPremium,
		FirstPerTag:     true,
	}
}

// Selector turns a day's snapshots into entry decisions.
type Selector struct {
	rules []Rule
	opts  Options
}

// New creates a Selector. Rules are evaluated in priority order.
func New(rules []Rule, opts Options) (*Selector, error) {
	if len(rules) == 0 {
		return nil, ErrNoRules
	}
	if opts.StrikeIncrement <= 0 {
		return nil, fmt.Errorf("selector: strike increment %.2f must be positive", opts.StrikeIncrement)
	}
	if opts.StartHour < 0 || opts.EndHour > 24 || opts.StartHour >= opts.EndHour {
		return nil, fmt.Errorf("selector: invalid window %d-%d", opts.StartHour, opts.EndHour)
	}
	for i, r := range rules {
		if r.Tag == "" || r.Match == nil {
			return nil, fmt.Errorf("selector: rule %d has no tag or match", i)
		}
	}
	return &Selector{rules: rules, opts: opts}, nil
}

// Options returns the selector options.
func (s *Selector) Options() Options {
	return s.opts
}

// Select scans snapshots (one day, ordered) and returns entry decisions in
// snapshot order. Each snapshot yields at most one decision, claimed by the
// first matching rule. Snapshots outside the window, with a neutral verdict,
// or whose premium is missing or below the floor are passed over.
func (s *Selector) Select(snapshots []*domain.MarketSnapshot, idx *lookup.Index) []domain.EntryDecision {
	var out []domain.EntryDecision
	fired := make(map[string]bool)

	for _, snap := range snapshots {
		if s.opts.MaxPerDay > 0 && len(out) >= s.opts.MaxPerDay {
			break
		}
		if !s.inWindow(snap) {
			continue
		}

		rule, ok := s.match(snap, fired)
		if !ok {
			continue
		}

		ot, ok := snap.Verdict.OptionType()
		if !ok {
			continue
		}

		key := domain.InstrumentKey{
			Strike: StrikeFor(snap.UnderlyingPrice, ot, s.opts.StrikeIncrement, s.opts.StrikeOffset),
			Type:   ot,
		}
		premium, err := idx.NearestPremium(snap.Timestamp, key)
		if err != nil || premium < s.opts.MinPremium {
			continue
		}

		out = append(out, domain.EntryDecision{
			Tag:          rule.Tag,
			Day:          snap.Day(),
			Timestamp:    snap.Timestamp,
			Instrument:   key,
			Direction:    snap.Verdict.Direction,
			Spot:         snap.UnderlyingPrice,
			EntryPremium: premium,
			Snapshot:     snap,
		})
		fired[rule.Tag] = true

		if s.opts.OnePerDay {
			break
		}
	}
	return out
}

func (s *Selector) inWindow(snap *domain.MarketSnapshot) bool {
	h := snap.Timestamp.Hour()
	return h >= s.opts.StartHour && h < s.opts.EndHour
}

func (s *Selector) match(snap *domain.MarketSnapshot, fired map[string]bool) (Rule, bool) {
	for _, r := range s.rules {
		if s.opts.FirstPerTag && fired[r.Tag] {
			continue
		}
		if r.Match(snap) {
			return r, true
		}
	}
	return Rule{}, false
}

// ATMStrike rounds spot to the nearest multiple of increment.
// Halves round to even, so 24325 with step 50 gives 24300.
func ATMStrike(spot, increment float64) float64 {
	return math.RoundToEven(spot/increment) * increment
}

// StrikeFor returns the strike offset steps away from ATM: higher for calls
// and lower for puts when offset is positive (OTM).
func StrikeFor(spot float64, ot domain.OptionType, increment float64, offset int) float64 {
	atm := ATMStrike(spot, increment)
	step := float64(offset) * increment
	if ot == domain.OptionPut {
		return atm - step
	}
	return atm + step
}
