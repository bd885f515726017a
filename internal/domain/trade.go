package domain

import "time"

// EntryDecision is a simulated entry derived from one snapshot.
// Not stored on its own; carried inside ResolvedTrade.
type EntryDecision struct {
	Tag          string // rule tag that fired
	Day          string
	Timestamp    time.Time
	Instrument   InstrumentKey
	Direction    Direction
	Spot         float64 // underlying at entry
	EntryPremium float64
	Snapshot     *MarketSnapshot // triggering snapshot (nullable when loaded from a store without it)
}

// ExitReason is the terminal state of a resolved trade.
type ExitReason string

// Exit reason codes
const (
	ExitStopLoss     ExitReason = "STOP_LOSS"
	ExitTarget       ExitReason = "TARGET"
	ExitSessionClose ExitReason = "SESSION_CLOSE"
)

// ExitReasons lists reasons in report order.
var ExitReasons = []ExitReason{ExitStopLoss, ExitTarget, ExitSessionClose}

// IsWin applies the win rule: a target exit wins, a session-close exit wins
// only with strictly positive P&L, a stop-loss never wins.
func IsWin(reason ExitReason, pnlPct float64) bool {
	switch reason {
	case ExitTarget:
		return true
	case ExitSessionClose:
		return pnlPct > 0
	}
	return false
}

// ResolvedTrade is the outcome of one simulated position.
// Corresponds to resolved_trades rows.
type ResolvedTrade struct {
	TradeID string // deterministic hash
	Entry   EntryDecision

	ExitPremium float64
	ExitReason  ExitReason
	ExitTime    time.Time

	PeakPremium   float64 // max premium seen after entry (entry if none higher)
	TroughPremium float64 // min premium seen after entry (entry if none lower)

	PnLPct float64 // (exit - entry) / entry * 100
	Won    bool

	// Dual-target checkpoint
	FirstTargetHit     bool
	FirstTargetTime    *time.Time
	FirstTargetPremium float64 // premium at the checkpoint, 0 if not hit
}

// FirstTargetPnLPct returns the P&L booked at the first target checkpoint,
// or PnLPct when the checkpoint was never hit.
func (t *ResolvedTrade) FirstTargetPnLPct() float64 {
	if !t.FirstTargetHit || t.Entry.EntryPremium <= 0 {
		return t.PnLPct
	}
	return (t.FirstTargetPremium - t.Entry.EntryPremium) / t.Entry.EntryPremium * 100
}

// HoldDuration returns exit time minus entry time.
func (t *ResolvedTrade) HoldDuration() time.Duration {
	return t.ExitTime.Sub(t.Entry.Timestamp)
}

// PeakGainPct returns the best unrealized gain over the hold, in percent.
func (t *ResolvedTrade) PeakGainPct() float64 {
	if t.Entry.EntryPremium <= 0 {
		return 0
	}
	return (t.PeakPremium - t.Entry.EntryPremium) / t.Entry.EntryPremium * 100
}

// AddClass classifies a pyramid add against the base position.
type AddClass string

// Add class constants
const (
	AddScaleIntoWinner  AddClass = "SCALE_INTO_WINNER"
	AddAverageIntoLoser AddClass = "AVERAGE_INTO_LOSER"
)

// ClassifyAdd maps the base position's unrealized move to an add class.
// Zero counts as averaging into a loser.
func ClassifyAdd(baseUnrealized float64) AddClass {
	if baseUnrealized > 0 {
		return AddScaleIntoWinner
	}
	return AddAverageIntoLoser
}

// PyramidAdd records an entry opened while an earlier position was still open.
type PyramidAdd struct {
	Trade          *ResolvedTrade
	BaseTradeID    string
	BaseUnrealized float64 // underlying points in the base position's favor at add time
	Class          AddClass
}
