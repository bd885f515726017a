package search

import (
	"fmt"

	"option-replay-lab/internal/domain"
)

// Predicate is a named atomic filter over Features.
type Predicate struct {
	Name  string
	Match func(Features) bool
}

// Library is an ordered set of predicates. Order fixes combination order.
type Library []Predicate

// Names returns predicate names in library order.
func (l Library) Names() []string {
	names := make([]string, len(l))
	for i, p := range l {
		names[i] = p.Name
	}
	return names
}

// Select returns the sub-library with the given names, in library order.
func (l Library) Select(names ...string) (Library, error) {
	want := make(map[string]bool, len(names))
	for _, n := range names {
		want[n] = true
	}

	var out Library
	for _, p := range l {
		if want[p.Name] {
			out = append(out, p)
			delete(want, p.Name)
		}
	}
	for n := range want {
		return nil, fmt.Errorf("%w: %q", ErrUnknownPredicate, n)
	}
	return out, nil
}

func (l Library) validate() error {
	seen := make(map[string]bool, len(l))
	for _, p := range l {
		if p.Name == "" || p.Match == nil {
			return fmt.Errorf("%w: empty predicate", ErrInvalidOptions)
		}
		if seen[p.Name] {
			return fmt.Errorf("%w: duplicate predicate %q", ErrInvalidOptions, p.Name)
		}
		seen[p.Name] = true
	}
	return nil
}

// DefaultLibrary returns the standard atomic predicate set.
func DefaultLibrary() Library {
	return Library{
		{"slightly", func(f Features) bool { return f.Verdict.Known() && f.Verdict.Strength == domain.StrengthSlight }},
		{"not_strongly", func(f Features) bool { return f.Verdict.Strength != domain.StrengthStrong }},
		{"co65_80", func(f Features) bool { return f.Confidence >= 65 && f.Confidence <= 80 }},
		{"co_ge70", func(f Features) bool { return f.Confidence >= 70 }},
		{"co_ge75", func(f Features) bool { return f.Confidence >= 75 }},
		// A missing VIX (zero) passes the low-VIX filters.
		{"vix_lt13", func(f Features) bool { return f.VIX < 13 }},
		{"vix_lt14", func(f Features) bool { return f.VIX < 14 }},
		{"ivs_pos", func(f Features) bool { return f.IVSkew > 0 }},
		{"ivs_gt1", func(f Features) bool { return f.IVSkew > 1 }},
		{"ivs_gt2", func(f Features) bool { return f.IVSkew > 2 }},
		{"atm_below_mp", func(f Features) bool { return f.ATMDistance < 0 }},
		{"atm_at_mp", func(f Features) bool { return f.ATMDistance == 0 }},
		{"atm_above_mp", func(f Features) bool { return f.ATMDistance > 0 }},
		{"poi_gt_coi", func(f Features) bool { return f.PutOIChange > f.CallOIChange }},
		{"coi_gt_poi", func(f Features) bool { return f.CallOIChange > f.PutOIChange }},
		{"prem_gt50", func(f Features) bool { return f.EntryPremium > 50 }},
		{"prem_gt80", func(f Features) bool { return f.EntryPremium > 80 }},
		{"prem_gt100", func(f Features) bool { return f.EntryPremium > 100 }},
		{"prem_lt150", func(f Features) bool { return f.EntryPremium < 150 }},
		{"fb_lt70", func(f Features) bool { return f.FuturesBasis < 70 }},
		{"fb_gt50", func(f Features) bool { return f.FuturesBasis > 50 }},
		{"foi_neg", func(f Features) bool { return f.FuturesOIChange < 0 }},
		{"foi_pos", func(f Features) bool { return f.FuturesOIChange > 0 }},
		{"before_noon", func(f Features) bool { return f.EntryTime.Hour() < 12 }},
		{"after_noon", func(f Features) bool { return f.EntryTime.Hour() >= 12 }},
	}
}
