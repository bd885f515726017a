package reporting

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// RenderMarkdown renders report as Markdown string.
func RenderMarkdown(r *Report) string {
	var sb strings.Builder

	// Header
	sb.WriteString("# Backtest Report\n\n")
	sb.WriteString(fmt.Sprintf("Generated: %s\n\n", r.GeneratedAt.Format(time.RFC3339)))
	sb.WriteString(fmt.Sprintf("Run: `%s` | Resolver: `%s` | Policy: %s | Days: %s to %s\n\n",
		r.RunID, r.ResolverID, r.Policy, r.FromDay, r.ToDay))

	// Run Summary
	sb.WriteString("## Run Summary\n\n")
	sb.WriteString("| Metric | Value |\n")
	sb.WriteString("|--------|-------|\n")
	sb.WriteString(fmt.Sprintf("| Days Processed | %d |\n", r.Summary.DaysProcessed))
	sb.WriteString(fmt.Sprintf("| Days Skipped (no quotes) | %d |\n", r.Summary.DaysSkipped))
	sb.WriteString(fmt.Sprintf("| Trades | %d |\n", r.Summary.Trades))
	sb.WriteString(fmt.Sprintf("| Entries Dropped | %d |\n", r.Summary.EntriesDropped))
	if len(r.Adds) > 0 {
		sb.WriteString(fmt.Sprintf("| Pyramid Adds (scale into winner) | %d |\n", r.Summary.ScaleIntoWinner))
		sb.WriteString(fmt.Sprintf("| Pyramid Adds (average into loser) | %d |\n", r.Summary.AverageIntoLoser))
	}
	sb.WriteString("\n")

	if len(r.Summary.DroppedBy) > 0 {
		reasons := make([]string, 0, len(r.Summary.DroppedBy))
		for reason := range r.Summary.DroppedBy {
			reasons = append(reasons, reason)
		}
		sort.Strings(reasons)

		sb.WriteString("### Dropped Entries\n\n")
		for _, reason := range reasons {
			sb.WriteString(fmt.Sprintf("- %s: %d\n", reason, r.Summary.DroppedBy[reason]))
		}
		sb.WriteString("\n")
	}

	// Aggregates
	sb.WriteString("## Aggregates\n\n")
	if len(r.Aggregates) > 0 {
		sb.WriteString("| Tag | Trades | Wins | Losses | WinRate% | TotalPnL% | AvgPnL% | AvgWin% | AvgLoss% | PF | Median | P10 | P90 | MaxDD | MaxLossStreak |\n")
		sb.WriteString("|-----|--------|------|--------|----------|-----------|---------|---------|----------|----|--------|-----|-----|-------|---------------|\n")
		for _, a := range r.Aggregates {
			sb.WriteString(fmt.Sprintf("| %s | %d | %d | %d | %.1f | %.2f | %.2f | %.2f | %.2f | %s | %.2f | %.2f | %.2f | %.2f | %d |\n",
				a.Tag, a.Trades, a.Wins, a.Losses, a.WinRate, a.TotalPnL, a.AvgPnL, a.AvgWinPnL, a.AvgLossPnL,
				formatProfitFactor(a.ProfitFactor), a.MedianPnL, a.P10PnL, a.P90PnL, a.MaxDrawdown, a.MaxConsecutiveLosses))
		}
	} else {
		sb.WriteString("No aggregates available.\n")
	}
	sb.WriteString("\n")

	// Exit Reasons
	if len(r.ExitReasons) > 0 {
		sb.WriteString("## Exit Reasons\n\n")
		sb.WriteString("| Reason | Count | Share% |\n")
		sb.WriteString("|--------|-------|--------|\n")
		for _, e := range r.ExitReasons {
			sb.WriteString(fmt.Sprintf("| %s | %d | %.1f |\n", e.Reason, e.Count, e.Pct))
		}
		sb.WriteString("\n")
	}

	// Trades
	sb.WriteString("## Trades\n\n")
	if len(r.Trades) > 0 {
		sb.WriteString("| Day | Tag | Entry | Instrument | Entry Prem | Exit | Exit Prem | Reason | PnL% | Won |\n")
		sb.WriteString("|-----|-----|-------|------------|------------|------|-----------|--------|------|-----|\n")
		for _, t := range r.Trades {
			won := "no"
			if t.Won {
				won = "yes"
			}
			sb.WriteString(fmt.Sprintf("| %s | %s | %s | %s | %.2f | %s | %.2f | %s | %.2f | %s |\n",
				t.Entry.Day, t.Entry.Tag, t.Entry.Timestamp.Format("15:04"), t.Entry.Instrument,
				t.Entry.EntryPremium, t.ExitTime.Format("15:04"), t.ExitPremium, t.ExitReason, t.PnLPct, won))
		}
	} else {
		sb.WriteString("No trades.\n")
	}
	sb.WriteString("\n")

	// Pyramid Adds
	if len(r.Adds) > 0 {
		sb.WriteString("## Pyramid Adds\n\n")
		sb.WriteString("| Entry | Instrument | Base Trade | Base Unrealized | Class | PnL% |\n")
		sb.WriteString("|-------|------------|------------|-----------------|-------|------|\n")
		for _, a := range r.Adds {
			sb.WriteString(fmt.Sprintf("| %s | %s | %s | %.2f | %s | %.2f |\n",
				a.Trade.Entry.Timestamp.Format(timeLayout), a.Trade.Entry.Instrument,
				shortID(a.BaseTradeID), a.BaseUnrealized, a.Class, a.Trade.PnLPct))
		}
		sb.WriteString("\n")
	}

	return sb.String()
}

// RenderCombosMarkdown renders a search report as Markdown string.
func RenderCombosMarkdown(r *ComboReport) string {
	var sb strings.Builder

	sb.WriteString("# Filter Search\n\n")
	sb.WriteString(fmt.Sprintf("Generated: %s\n\n", r.GeneratedAt.Format(time.RFC3339)))
	sb.WriteString(fmt.Sprintf("Run: `%s` | Mode: %s | Population: %d trades | Max order: %d | Min samples: %d | Evaluated: %d\n\n",
		r.RunID, r.Mode, r.Population, r.MaxOrder, r.MinSamples, r.Evaluated))

	if len(r.Combos) == 0 {
		sb.WriteString("No combination met the sample threshold.\n")
		return sb.String()
	}

	sb.WriteString("| # | Combination | Samples | Wins | Losses | WinRate% | TotalPnL% |\n")
	sb.WriteString("|---|-------------|---------|------|--------|----------|-----------|\n")
	for i, c := range r.Combos {
		sb.WriteString(fmt.Sprintf("| %d | %s | %d | %d | %d | %.1f | %.2f |\n",
			i+1, c.Name, c.Samples, c.Wins, c.Losses, c.WinRate, c.TotalPnL))
	}
	sb.WriteString("\n")

	return sb.String()
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
