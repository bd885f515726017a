package metrics

import (
	"math"
	"sort"

	"option-replay-lab/internal/domain"
)

// Compute calculates aggregate statistics over resolved trades.
// Trades are sorted by entry time ASC, TradeID ASC before computing
// order-dependent metrics (MaxDrawdown, MaxConsecutiveLosses).
// Won is taken as recorded by the resolver and never re-derived.
func Compute(trades []*domain.ResolvedTrade) domain.Aggregate {
	agg := domain.Aggregate{ExitReasons: make(map[domain.ExitReason]int)}

	n := len(trades)
	if n == 0 {
		return agg
	}

	sortedTrades := sortTrades(trades)

	pnls := make([]float64, n)
	peakGain := 0.0
	for i, t := range sortedTrades {
		pnls[i] = t.PnLPct
		agg.TotalPnL += t.PnLPct
		peakGain += t.PeakGainPct()
		agg.ExitReasons[t.ExitReason]++

		if t.Won {
			agg.Wins++
			agg.TotalWinPnL += t.PnLPct
		} else {
			agg.Losses++
			agg.TotalLossPnL += t.PnLPct
		}
	}

	sortedPnLs := make([]float64, n)
	copy(sortedPnLs, pnls)
	sort.Float64s(sortedPnLs)

	mean := computeMean(pnls)

	agg.Count = n
	agg.WinRate = computeWinRate(agg.Wins, n)
	agg.AvgPnL = mean
	agg.AvgWinPnL = safeDiv(agg.TotalWinPnL, agg.Wins)
	agg.AvgLossPnL = safeDiv(agg.TotalLossPnL, agg.Losses)
	agg.ProfitFactor = computeProfitFactor(agg.TotalWinPnL, agg.TotalLossPnL)

	agg.MedianPnL = computePercentile(sortedPnLs, 0.50)
	agg.P10PnL = computePercentile(sortedPnLs, 0.10)
	agg.P90PnL = computePercentile(sortedPnLs, 0.90)
	agg.StddevPnL = computeStddev(pnls, mean)

	agg.MaxDrawdown = computeMaxDrawdown(pnls)
	agg.MaxConsecutiveLosses = computeMaxConsecutiveLosses(sortedTrades)
	agg.AvgPeakGainPct = peakGain / float64(n)

	return agg
}

// ByTag groups trades by rule tag. Each group keeps the input order.
func ByTag(trades []*domain.ResolvedTrade) map[string][]*domain.ResolvedTrade {
	groups := make(map[string][]*domain.ResolvedTrade)
	for _, t := range trades {
		groups[t.Entry.Tag] = append(groups[t.Entry.Tag], t)
	}
	return groups
}

// sortTrades returns a copy ordered by entry time ASC, TradeID ASC.
func sortTrades(trades []*domain.ResolvedTrade) []*domain.ResolvedTrade {
	sorted := make([]*domain.ResolvedTrade, len(trades))
	copy(sorted, trades)
	sort.Slice(sorted, func(i, j int) bool {
		a, b := sorted[i].Entry.Timestamp, sorted[j].Entry.Timestamp
		if !a.Equal(b) {
			return a.Before(b)
		}
		return sorted[i].TradeID < sorted[j].TradeID
	})
	return sorted
}

// computeWinRate calculates win rate as a percentage.
func computeWinRate(wins, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(wins) / float64(total) * 100
}

func safeDiv(sum float64, n int) float64 {
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}

// computeProfitFactor returns gross win pnl over absolute gross loss pnl.
// With no losing pnl the factor is +Inf if anything was won, else 0.
func computeProfitFactor(winPnL, lossPnL float64) float64 {
	loss := math.Abs(lossPnL)
	if loss == 0 {
		if winPnL > 0 {
			return math.Inf(1)
		}
		return 0
	}
	return winPnL / loss
}

// computeMean calculates arithmetic mean.
func computeMean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// computeStddev calculates sample standard deviation (n-1 denominator).
func computeStddev(values []float64, mean float64) float64 {
	n := len(values)
	if n < 2 {
		return 0
	}
	sumSq := 0.0
	for _, v := range values {
		diff := v - mean
		sumSq += diff * diff
	}
	return math.Sqrt(sumSq / float64(n-1))
}

// computePercentile uses linear interpolation.
// sorted must be pre-sorted ASC; p is a fraction (0.10 = 10th percentile).
func computePercentile(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if n == 1 {
		return sorted[0]
	}

	idx := p * float64(n-1)
	lower := int(idx)
	upper := lower + 1
	if upper >= n {
		return sorted[n-1]
	}

	frac := idx - float64(lower)
	return sorted[lower] + frac*(sorted[upper]-sorted[lower])
}

// computeMaxDrawdown calculates worst peak-to-trough on cumulative pnl.
// Values must be in chronological order.
func computeMaxDrawdown(pnls []float64) float64 {
	cumulative := 0.0
	peak := 0.0
	maxDrawdown := 0.0

	for _, v := range pnls {
		cumulative += v
		if cumulative > peak {
			peak = cumulative
		}
		if dd := peak - cumulative; dd > maxDrawdown {
			maxDrawdown = dd
		}
	}
	return maxDrawdown
}

// computeMaxConsecutiveLosses finds the longest streak of non-winning trades.
// Trades must be in chronological order.
func computeMaxConsecutiveLosses(trades []*domain.ResolvedTrade) int {
	maxStreak := 0
	currentStreak := 0

	for _, t := range trades {
		if t.Won {
			currentStreak = 0
			continue
		}
		currentStreak++
		if currentStreak > maxStreak {
			maxStreak = currentStreak
		}
	}
	return maxStreak
}
