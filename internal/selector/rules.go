package selector

import "option-replay-lab/internal/domain"

// Rule is a named entry predicate over a snapshot.
type Rule struct {
	Tag   string
	Match func(*domain.MarketSnapshot) bool
}

// Condition is a reusable snapshot predicate.
type Condition func(*domain.MarketSnapshot) bool

// All combines conditions with AND. No conditions matches everything.
func All(conds ...Condition) Condition {
	return func(s *domain.MarketSnapshot) bool {
		for _, c := range conds {
			if !c(s) {
				return false
			}
		}
		return true
	}
}

// Directional matches bull or bear verdicts.
func Directional() Condition {
	return func(s *domain.MarketSnapshot) bool {
		_, ok := s.Verdict.OptionType()
		return ok
	}
}

// MinConfidence matches confidence >= min.
func MinConfidence(min float64) Condition {
	return func(s *domain.MarketSnapshot) bool {
		return s.Confidence >= min
	}
}

// ConfidenceBetween matches lo <= confidence < hi.
func ConfidenceBetween(lo, hi float64) Condition {
	return func(s *domain.MarketSnapshot) bool {
		return s.Confidence >= lo && s.Confidence < hi
	}
}

// Strengths matches verdicts of the given strengths.
func Strengths(strengths ...domain.Strength) Condition {
	set := make(map[domain.Strength]bool, len(strengths))
	for _, st := range strengths {
		set[st] = true
	}
	return func(s *domain.MarketSnapshot) bool {
		return s.Verdict.Known() && set[s.Verdict.Strength]
	}
}

// Directions matches verdicts of the given directions.
func Directions(dirs ...domain.Direction) Condition {
	set := make(map[domain.Direction]bool, len(dirs))
	for _, d := range dirs {
		set[d] = true
	}
	return func(s *domain.MarketSnapshot) bool {
		return s.Verdict.Known() && set[s.Verdict.Direction]
	}
}

// VIXBetween matches lo <= vix <= hi. A missing VIX reads as 0.
func VIXBetween(lo, hi float64) Condition {
	return func(s *domain.MarketSnapshot) bool {
		v := valueOrZero(s.VIX)
		return v >= lo && v <= hi
	}
}

// IVSkewBetween matches lo <= iv skew <= hi. A missing skew reads as 0.
func IVSkewBetween(lo, hi float64) Condition {
	return func(s *domain.MarketSnapshot) bool {
		v := valueOrZero(s.IVSkew)
		return v >= lo && v <= hi
	}
}

// FuturesAligned rejects bullish verdicts with falling futures OI and bearish
// verdicts with rising futures OI.
func FuturesAligned() Condition {
	return func(s *domain.MarketSnapshot) bool {
		oi := valueOrZero(s.FuturesOIChange)
		switch s.Verdict.Direction {
		case domain.DirectionBull:
			return oi >= 0
		case domain.DirectionBear:
			return oi <= 0
		}
		return true
	}
}

// ConsistentVerdict requires the previous verdict, when present, to share the
// current direction.
func ConsistentVerdict() Condition {
	return func(s *domain.MarketSnapshot) bool {
		if s.PrevVerdict.Label == "" {
			return true
		}
		return s.PrevVerdict.Direction == s.Verdict.Direction
	}
}

// NewRule builds a Rule from conditions.
func NewRule(tag string, conds ...Condition) Rule {
	return Rule{Tag: tag, Match: All(conds...)}
}

func valueOrZero(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}
