package reporting

import (
	"fmt"
	"math"
	"strings"

	"option-replay-lab/internal/domain"
)

const timeLayout = "2006-01-02 15:04:05"

// RenderTradesCSV renders resolved trades as CSV string, one row per trade.
func RenderTradesCSV(trades []*domain.ResolvedTrade) string {
	var sb strings.Builder

	// Header
	sb.WriteString("trade_id,day,tag,entry_time,strike,option_type,direction,spot,entry_premium,")
	sb.WriteString("exit_time,exit_premium,exit_reason,pnl_pct,won,peak_premium,trough_premium,")
	sb.WriteString("first_target_hit,first_target_pnl_pct,hold_minutes,verdict,confidence\n")

	// Rows
	for _, t := range trades {
		verdict, confidence := "", 0.0
		if t.Entry.Snapshot != nil {
			verdict = t.Entry.Snapshot.Verdict.Label
			confidence = t.Entry.Snapshot.Confidence
		}
		sb.WriteString(fmt.Sprintf("%s,%s,%s,%s,%.2f,%s,%s,%.2f,%.2f,%s,%.2f,%s,%.4f,%t,%.2f,%.2f,%t,%.4f,%.0f,%s,%.2f\n",
			t.TradeID,
			t.Entry.Day,
			t.Entry.Tag,
			t.Entry.Timestamp.Format(timeLayout),
			t.Entry.Instrument.Strike,
			t.Entry.Instrument.Type,
			t.Entry.Direction,
			t.Entry.Spot,
			t.Entry.EntryPremium,
			t.ExitTime.Format(timeLayout),
			t.ExitPremium,
			t.ExitReason,
			t.PnLPct,
			t.Won,
			t.PeakPremium,
			t.TroughPremium,
			t.FirstTargetHit,
			t.FirstTargetPnLPct(),
			t.HoldDuration().Minutes(),
			csvField(verdict),
			confidence,
		))
	}

	return sb.String()
}

// RenderAggregatesCSV renders aggregate rows as CSV string.
func RenderAggregatesCSV(rows []AggregateRow) string {
	var sb strings.Builder

	// Header
	sb.WriteString("tag,trades,wins,losses,win_rate,total_pnl,avg_pnl,avg_win_pnl,avg_loss_pnl,profit_factor,")
	sb.WriteString("median_pnl,p10_pnl,p90_pnl,max_drawdown,max_consecutive_losses,")
	sb.WriteString("stop_loss,target,session_close\n")

	// Rows
	for _, r := range rows {
		sb.WriteString(fmt.Sprintf("%s,%d,%d,%d,%.2f,%.4f,%.4f,%.4f,%.4f,%s,%.4f,%.4f,%.4f,%.4f,%d,%d,%d,%d\n",
			r.Tag,
			r.Trades,
			r.Wins,
			r.Losses,
			r.WinRate,
			r.TotalPnL,
			r.AvgPnL,
			r.AvgWinPnL,
			r.AvgLossPnL,
			formatProfitFactor(r.ProfitFactor),
			r.MedianPnL,
			r.P10PnL,
			r.P90PnL,
			r.MaxDrawdown,
			r.MaxConsecutiveLosses,
			r.StopLosses,
			r.Targets,
			r.SessionCloses,
		))
	}

	return sb.String()
}

// RenderCombosCSV renders ranked combinations as CSV string.
func RenderCombosCSV(combos []domain.ComboResult) string {
	var sb strings.Builder

	sb.WriteString("rank,combo_id,combo,size,samples,wins,losses,win_rate,total_pnl\n")
	for i, c := range combos {
		sb.WriteString(fmt.Sprintf("%d,%s,%s,%d,%d,%d,%d,%.2f,%.4f\n",
			i+1,
			c.ID,
			csvField(c.Name),
			len(c.Predicates),
			c.Samples,
			c.Wins,
			c.Losses,
			c.WinRate,
			c.TotalPnL,
		))
	}

	return sb.String()
}

// formatProfitFactor renders +Inf as "inf" so the column stays numeric-parsable.
func formatProfitFactor(pf float64) string {
	if math.IsInf(pf, 1) {
		return "inf"
	}
	return fmt.Sprintf("%.4f", pf)
}

// csvField quotes free text containing separators.
func csvField(s string) string {
	if !strings.ContainsAny(s, ",\"\n") {
		return s
	}
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}
