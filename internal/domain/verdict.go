package domain

import "strings"

// Direction is the directional component of a verdict.
type Direction string

// Direction constants
const (
	DirectionBull    Direction = "BULL"
	DirectionBear    Direction = "BEAR"
	DirectionNeutral Direction = "NEUTRAL"
)

// Strength qualifies a verdict direction.
type Strength string

// Strength constants
const (
	StrengthSlight   Strength = "SLIGHT"
	StrengthModerate Strength = "MODERATE"
	StrengthStrong   Strength = "STRONG"
)

// Verdict is a parsed directional-strength label.
// The zero value is an unknown neutral verdict.
type Verdict struct {
	Direction Direction
	Strength  Strength
	Label     string // source label, kept for round-tripping through stores
	known     bool
}

var canonicalVerdicts = map[string]struct {
	dir Direction
	str Strength
}{
	"bulls strongly winning": {DirectionBull, StrengthStrong},
	"bulls winning":          {DirectionBull, StrengthModerate},
	"slightly bullish":       {DirectionBull, StrengthSlight},
	"bears strongly winning": {DirectionBear, StrengthStrong},
	"bears winning":          {DirectionBear, StrengthModerate},
	"slightly bearish":       {DirectionBear, StrengthSlight},
	"neutral":                {DirectionNeutral, StrengthModerate},
}

// ParseVerdict parses a verdict label.
// Canonical labels map directly; other labels are tokenized so that forms like
// "Strongly Bullish" or "Bearish" are accepted. Labels naming no direction, or
// both directions, parse to an unknown neutral verdict.
func ParseVerdict(label string) Verdict {
	norm := strings.ToLower(strings.Join(strings.Fields(label), " "))
	if c, ok := canonicalVerdicts[norm]; ok {
		return Verdict{Direction: c.dir, Strength: c.str, Label: label, known: true}
	}

	var bull, bear, neutral bool
	strength := StrengthModerate
	for _, tok := range strings.Fields(norm) {
		switch strings.Trim(tok, ".,;:!()") {
		case "bull", "bulls", "bullish":
			bull = true
		case "bear", "bears", "bearish":
			bear = true
		case "neutral", "sideways":
			neutral = true
		case "strong", "strongly":
			strength = StrengthStrong
		case "slight", "slightly", "mild", "mildly":
			strength = StrengthSlight
		}
	}

	switch {
	case bull && !bear:
		return Verdict{Direction: DirectionBull, Strength: strength, Label: label, known: true}
	case bear && !bull:
		return Verdict{Direction: DirectionBear, Strength: strength, Label: label, known: true}
	case neutral && !bull && !bear:
		return Verdict{Direction: DirectionNeutral, Strength: StrengthModerate, Label: label, known: true}
	}
	return Verdict{Direction: DirectionNeutral, Strength: StrengthModerate, Label: label}
}

// Known reports whether the label was recognized.
func (v Verdict) Known() bool {
	return v.known
}

// OptionType maps the direction to the option side bought on it.
// Returns false for neutral or unknown verdicts.
func (v Verdict) OptionType() (OptionType, bool) {
	switch v.Direction {
	case DirectionBull:
		return OptionCall, true
	case DirectionBear:
		return OptionPut, true
	}
	return "", false
}

// String returns the source label, or DIRECTION/STRENGTH when none was given.
func (v Verdict) String() string {
	if v.Label != "" {
		return v.Label
	}
	if v.Direction == "" {
		return string(DirectionNeutral)
	}
	return string(v.Direction) + "/" + string(v.Strength)
}
