// Package verification re-resolves stored trades against stored quotes and
// reports any field that no longer matches.
package verification

import (
	"context"
	"math"
	"time"

	"option-replay-lab/internal/domain"
)

// FloatTolerance is the tolerance for float64 comparisons.
const FloatTolerance = 1e-7

// FieldDivergence represents a mismatch between stored and replayed values.
type FieldDivergence struct {
	Field    string
	Expected any // stored value
	Actual   any // replayed value
}

// VerificationResult contains the result of verifying a single trade.
type VerificationResult struct {
	TradeID        string
	Match          bool
	Divergences    []FieldDivergence
	StoredPnLPct   float64
	ReplayedPnLPct float64
}

// VerificationReport contains results for batch verification.
type VerificationReport struct {
	TotalTrades     int
	MatchedTrades   int
	DivergentTrades int
	Results         []VerificationResult
}

// Verifier re-resolves stored trades.
type Verifier interface {
	// VerifyTrade re-resolves one stored trade and compares every outcome field.
	VerifyTrade(ctx context.Context, tradeID string) (*VerificationResult, error)

	// VerifyRange verifies every stored trade entered within [from, to].
	VerifyRange(ctx context.Context, from, to time.Time) (*VerificationReport, error)
}

// CompareTrades compares two resolved trades and returns divergences.
// Entry snapshots are not compared; stores do not keep them.
func CompareTrades(stored, replayed *domain.ResolvedTrade) []FieldDivergence {
	var d []FieldDivergence
	add := func(field string, expected, actual any) {
		d = append(d, FieldDivergence{Field: field, Expected: expected, Actual: actual})
	}

	// A different ID means a different resolver configuration or entry key
	if stored.TradeID != replayed.TradeID {
		add("TradeID", stored.TradeID, replayed.TradeID)
	}

	if stored.ExitReason != replayed.ExitReason {
		add("ExitReason", stored.ExitReason, replayed.ExitReason)
	}
	if !stored.ExitTime.Equal(replayed.ExitTime) {
		add("ExitTime", stored.ExitTime, replayed.ExitTime)
	}
	if !floatEquals(stored.ExitPremium, replayed.ExitPremium) {
		add("ExitPremium", stored.ExitPremium, replayed.ExitPremium)
	}
	if !floatEquals(stored.PeakPremium, replayed.PeakPremium) {
		add("PeakPremium", stored.PeakPremium, replayed.PeakPremium)
	}
	if !floatEquals(stored.TroughPremium, replayed.TroughPremium) {
		add("TroughPremium", stored.TroughPremium, replayed.TroughPremium)
	}
	if !floatEquals(stored.PnLPct, replayed.PnLPct) {
		add("PnLPct", stored.PnLPct, replayed.PnLPct)
	}
	if stored.Won != replayed.Won {
		add("Won", stored.Won, replayed.Won)
	}

	// Dual-target checkpoint
	if stored.FirstTargetHit != replayed.FirstTargetHit {
		add("FirstTargetHit", stored.FirstTargetHit, replayed.FirstTargetHit)
	}
	if !timePtrEquals(stored.FirstTargetTime, replayed.FirstTargetTime) {
		add("FirstTargetTime", stored.FirstTargetTime, replayed.FirstTargetTime)
	}
	if !floatEquals(stored.FirstTargetPremium, replayed.FirstTargetPremium) {
		add("FirstTargetPremium", stored.FirstTargetPremium, replayed.FirstTargetPremium)
	}

	return d
}

// floatEquals compares two float64 values with tolerance.
func floatEquals(a, b float64) bool {
	return math.Abs(a-b) <= FloatTolerance
}

func timePtrEquals(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Equal(*b)
}
