package selector

import (
	"fmt"
	"strings"

	"option-replay-lab/internal/domain"
)

// RuleSpec is a declarative entry rule, loadable from configuration.
// Zero-valued bounds are ignored.
type RuleSpec struct {
	Tag               string   `mapstructure:"tag"`
	MinConfidence     float64  `mapstructure:"min_confidence"`
	MaxConfidence     float64  `mapstructure:"max_confidence"` // exclusive
	Strengths         []string `mapstructure:"strengths"`      // SLIGHT, MODERATE, STRONG
	Directions        []string `mapstructure:"directions"`     // BULL, BEAR
	MinVIX            float64  `mapstructure:"min_vix"`
	MaxVIX            float64  `mapstructure:"max_vix"`
	MinIVSkew         *float64 `mapstructure:"min_iv_skew"`
	MaxIVSkew         *float64 `mapstructure:"max_iv_skew"`
	FuturesAligned    bool     `mapstructure:"futures_aligned"`
	ConsistentVerdict bool     `mapstructure:"consistent_verdict"`
}

// DefaultRuleSpecs returns the reference rule set, in priority order.
func DefaultRuleSpecs() []RuleSpec {
	return []RuleSpec{
		{Tag: "slightly_co65", MinConfidence: 65, Strengths: []string{string(domain.StrengthSlight)}},
		{Tag: "co65", MinConfidence: 65},
	}
}

// Rule compiles the spec into a Rule. Every rule requires a directional verdict.
func (s RuleSpec) Rule() (Rule, error) {
	if s.Tag == "" {
		return Rule{}, fmt.Errorf("selector: rule spec without tag")
	}

	conds := []Condition{Directional()}
	if s.MaxConfidence > 0 {
		conds = append(conds, ConfidenceBetween(s.MinConfidence, s.MaxConfidence))
	} else if s.MinConfidence > 0 {
		conds = append(conds, MinConfidence(s.MinConfidence))
	}

	if len(s.Strengths) > 0 {
		strengths := make([]domain.Strength, 0, len(s.Strengths))
		for _, v := range s.Strengths {
			st := domain.Strength(strings.ToUpper(strings.TrimSpace(v)))
			switch st {
			case domain.StrengthSlight, domain.StrengthModerate, domain.StrengthStrong:
			default:
				return Rule{}, fmt.Errorf("selector: rule %s: unknown strength %q", s.Tag, v)
			}
			strengths = append(strengths, st)
		}
		conds = append(conds, Strengths(strengths...))
	}

	if len(s.Directions) > 0 {
		dirs := make([]domain.Direction, 0, len(s.Directions))
		for _, v := range s.Directions {
			d := domain.Direction(strings.ToUpper(strings.TrimSpace(v)))
			if d != domain.DirectionBull && d != domain.DirectionBear {
				return Rule{}, fmt.Errorf("selector: rule %s: unknown direction %q", s.Tag, v)
			}
			dirs = append(dirs, d)
		}
		conds = append(conds, Directions(dirs...))
	}

	if s.MinVIX > 0 || s.MaxVIX > 0 {
		hi := s.MaxVIX
		if hi == 0 {
			hi = 1e9
		}
		conds = append(conds, VIXBetween(s.MinVIX, hi))
	}

	if s.MinIVSkew != nil || s.MaxIVSkew != nil {
		lo, hi := -1e9, 1e9
		if s.MinIVSkew != nil {
			lo = *s.MinIVSkew
		}
		if s.MaxIVSkew != nil {
			hi = *s.MaxIVSkew
		}
		conds = append(conds, IVSkewBetween(lo, hi))
	}

	if s.FuturesAligned {
		conds = append(conds, FuturesAligned())
	}
	if s.ConsistentVerdict {
		conds = append(conds, ConsistentVerdict())
	}

	return NewRule(s.Tag, conds...), nil
}

// CompileRules compiles specs in order. Tags must be unique.
func CompileRules(specs []RuleSpec) ([]Rule, error) {
	if len(specs) == 0 {
		return nil, ErrNoRules
	}
	seen := make(map[string]bool, len(specs))
	rules := make([]Rule, 0, len(specs))
	for _, s := range specs {
		if seen[s.Tag] {
			return nil, fmt.Errorf("selector: duplicate rule tag %q", s.Tag)
		}
		seen[s.Tag] = true

		r, err := s.Rule()
		if err != nil {
			return nil, err
		}
		rules = append(rules, r)
	}
	return rules, nil
}
