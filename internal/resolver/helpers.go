package resolver

import (
	"option-replay-lab/internal/domain"
	"option-replay-lab/internal/idhash"
)

// buildTrade constructs a ResolvedTrade from the exit quote.
// Won is derived here and nowhere else.
func buildTrade(
	resolverID string,
	entry domain.EntryDecision,
	exit *domain.OptionQuote,
	reason domain.ExitReason,
	peak, trough float64,
) *domain.ResolvedTrade {
	if entry.Day == "" {
		entry.Day = domain.DayOf(entry.Timestamp)
	}
	pnl := (exit.LTP - entry.EntryPremium) / entry.EntryPremium * 100

	return &domain.ResolvedTrade{
		TradeID:       idhash.ComputeTradeID(resolverID, entry.Tag, entry.Instrument, entry.Timestamp.UnixMilli()),
		Entry:         entry,
		ExitPremium:   exit.LTP,
		ExitReason:    reason,
		ExitTime:      exit.Timestamp,
		PeakPremium:   peak,
		TroughPremium: trough,
		PnLPct:        pnl,
		Won:           domain.IsWin(reason, pnl),
	}
}
