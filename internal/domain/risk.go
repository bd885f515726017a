package domain

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidRiskConfig is returned by RiskConfig.Validate.
var ErrInvalidRiskConfig = errors.New("invalid risk config")

// Reference risk values.
const (
	DefaultStopLossPct = 20.0
	DefaultTargetPct   = 22.0
	DefaultMinPremium  = 5.0
)

// ClockTime is a time of day with minute resolution.
type ClockTime struct {
	Hour   int
	Minute int
}

// DefaultSessionClose is the reference end-of-day cutoff (15:20).
var DefaultSessionClose = ClockTime{Hour: 15, Minute: 20}

// ParseClock parses "HH:MM".
func ParseClock(s string) (ClockTime, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return ClockTime{}, fmt.Errorf("parse clock %q: %w", s, err)
	}
	return ClockTime{Hour: t.Hour(), Minute: t.Minute()}, nil
}

// Reached reports whether t's time of day is at or after c.
func (c ClockTime) Reached(t time.Time) bool {
	h, m := t.Hour(), t.Minute()
	return h > c.Hour || (h == c.Hour && m >= c.Minute)
}

// String renders c as "HH:MM".
func (c ClockTime) String() string {
	return fmt.Sprintf("%02d:%02d", c.Hour, c.Minute)
}

func (c ClockTime) valid() bool {
	return c.Hour >= 0 && c.Hour < 24 && c.Minute >= 0 && c.Minute < 60
}

// RiskConfig holds the exit thresholds applied by the trade resolver.
// Percentages are in percent units (20 = 20%).
type RiskConfig struct {
	StopLossPct     float64
	TargetPct       float64
	SecondTargetPct *float64 // nil = single target
	SessionClose    ClockTime
	MinPremium      float64
}

// DefaultRiskConfig returns the reference configuration: SL 20%, target 22%,
// session close 15:20, minimum premium 5.
func DefaultRiskConfig() RiskConfig {
	return RiskConfig{
		StopLossPct:  DefaultStopLossPct,
		TargetPct:    DefaultTargetPct,
		SessionClose: DefaultSessionClose,
		MinPremium:   DefaultMinPremium,
	}
}

// Validate checks threshold ranges.
func (r RiskConfig) Validate() error {
	if r.StopLossPct <= 0 || r.StopLossPct >= 100 {
		return fmt.Errorf("%w: stop loss %.2f must be in (0, 100)", ErrInvalidRiskConfig, r.StopLossPct)
	}
	if r.TargetPct <= 0 {
		return fmt.Errorf("%w: target %.2f must be positive", ErrInvalidRiskConfig, r.TargetPct)
	}
	if r.SecondTargetPct != nil && *r.SecondTargetPct <= r.TargetPct {
		return fmt.Errorf("%w: second target %.2f must exceed first target %.2f",
			ErrInvalidRiskConfig, *r.SecondTargetPct, r.TargetPct)
	}
	if r.MinPremium < 0 {
		return fmt.Errorf("%w: min premium %.2f is negative", ErrInvalidRiskConfig, r.MinPremium)
	}
	if !r.SessionClose.valid() {
		return fmt.Errorf("%w: session close %s out of range", ErrInvalidRiskConfig, r.SessionClose)
	}
	return nil
}

// StopPrice returns the premium at or below which the position stops out.
func (r RiskConfig) StopPrice(entry float64) float64 {
	return entry * (1 - r.StopLossPct/100)
}

// TargetPrice returns the premium at or above which the first target is hit.
func (r RiskConfig) TargetPrice(entry float64) float64 {
	return entry * (1 + r.TargetPct/100)
}

// FinalTargetPrice returns the terminating target: the second target when
// configured, otherwise the first.
func (r RiskConfig) FinalTargetPrice(entry float64) float64 {
	if r.SecondTargetPct != nil {
		return entry * (1 + *r.SecondTargetPct/100)
	}
	return r.TargetPrice(entry)
}
