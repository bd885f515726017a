package metrics

import (
	"math"
	"testing"
	"time"

	"option-replay-lab/internal/domain"
)

var base = time.Date(2024, 3, 1, 11, 0, 0, 0, time.UTC)

// makeTrade builds a trade entered at base+offset minutes.
func makeTrade(id, tag string, offset int, pnl float64, reason domain.ExitReason) *domain.ResolvedTrade {
	entry := 100.0
	return &domain.ResolvedTrade{
		TradeID: id,
		Entry: domain.EntryDecision{
			Tag:          tag,
			Timestamp:    base.Add(time.Duration(offset) * time.Minute),
			EntryPremium: entry,
		},
		ExitPremium: entry * (1 + pnl/100),
		ExitReason:  reason,
		PeakPremium: math.Max(entry, entry*(1+pnl/100)),
		PnLPct:      pnl,
		Won:         domain.IsWin(reason, pnl),
	}
}

func TestCompute_Empty(t *testing.T) {
	agg := Compute(nil)

	if agg.Count != 0 || agg.WinRate != 0 || agg.ProfitFactor != 0 {
		t.Errorf("expected zero aggregate, got %+v", agg)
	}
	if agg.ExitReasons == nil {
		t.Error("expected non-nil exit reason histogram")
	}
}

func TestCompute_Basic(t *testing.T) {
	trades := []*domain.ResolvedTrade{
		makeTrade("t3", "a", 30, -21, domain.ExitStopLoss),
		makeTrade("t1", "a", 0, 23, domain.ExitTarget),
		makeTrade("t2", "b", 10, 15, domain.ExitSessionClose),
		makeTrade("t4", "b", 40, -4, domain.ExitSessionClose),
	}

	agg := Compute(trades)

	if agg.Count != 4 || agg.Wins != 2 || agg.Losses != 2 {
		t.Fatalf("counts: got %d/%d/%d", agg.Count, agg.Wins, agg.Losses)
	}
	if agg.WinRate != 50 {
		t.Errorf("expected win rate 50, got %f", agg.WinRate)
	}
	assertClose(t, "TotalPnL", 13, agg.TotalPnL)
	assertClose(t, "AvgPnL", 3.25, agg.AvgPnL)
	assertClose(t, "TotalWinPnL", 38, agg.TotalWinPnL)
	assertClose(t, "AvgWinPnL", 19, agg.AvgWinPnL)
	assertClose(t, "TotalLossPnL", -25, agg.TotalLossPnL)
	assertClose(t, "AvgLossPnL", -12.5, agg.AvgLossPnL)
	assertClose(t, "ProfitFactor", 38.0/25.0, agg.ProfitFactor)

	if agg.ExitReasons[domain.ExitSessionClose] != 2 || agg.ExitReasons[domain.ExitStopLoss] != 1 {
		t.Errorf("unexpected exit reasons: %v", agg.ExitReasons)
	}

	// Chronological: +23, +15, -21, -4 -> peak 38, trough 13
	assertClose(t, "MaxDrawdown", 25, agg.MaxDrawdown)
	if agg.MaxConsecutiveLosses != 2 {
		t.Errorf("expected 2 consecutive losses, got %d", agg.MaxConsecutiveLosses)
	}

	// Sorted: -21, -4, 15, 23
	assertClose(t, "MedianPnL", 5.5, agg.MedianPnL)
	assertClose(t, "AvgPeakGainPct", 38.0/4, agg.AvgPeakGainPct)
}

func TestCompute_NoLosses(t *testing.T) {
	agg := Compute([]*domain.ResolvedTrade{
		makeTrade("t1", "a", 0, 22, domain.ExitTarget),
		makeTrade("t2", "a", 5, 30, domain.ExitTarget),
	})

	if !math.IsInf(agg.ProfitFactor, 1) {
		t.Errorf("expected +Inf profit factor, got %f", agg.ProfitFactor)
	}
	if agg.AvgLossPnL != 0 {
		t.Errorf("expected 0 avg loss, got %f", agg.AvgLossPnL)
	}
}

func TestCompute_FlatSessionCloseIsLoss(t *testing.T) {
	agg := Compute([]*domain.ResolvedTrade{
		makeTrade("t1", "a", 0, 0, domain.ExitSessionClose),
	})

	if agg.Wins != 0 || agg.Losses != 1 {
		t.Errorf("expected a flat session close to count as a loss, got %+v", agg)
	}
	if agg.ProfitFactor != 0 {
		t.Errorf("expected 0 profit factor, got %f", agg.ProfitFactor)
	}
}

func TestCompute_TrustsWonFlag(t *testing.T) {
	tr := makeTrade("t1", "a", 0, -5, domain.ExitSessionClose)
	tr.Won = true

	agg := Compute([]*domain.ResolvedTrade{tr})
	if agg.Wins != 1 {
		t.Errorf("expected recorded Won to be trusted, got %d wins", agg.Wins)
	}
}

func TestCompute_OrderIndependent(t *testing.T) {
	a := makeTrade("a", "x", 0, -21, domain.ExitStopLoss)
	b := makeTrade("b", "x", 0, 23, domain.ExitTarget)
	c := makeTrade("c", "x", 5, -21, domain.ExitStopLoss)

	first := Compute([]*domain.ResolvedTrade{a, b, c})
	second := Compute([]*domain.ResolvedTrade{c, b, a})

	if first.MaxDrawdown != second.MaxDrawdown || first.MaxConsecutiveLosses != second.MaxConsecutiveLosses {
		t.Errorf("order-dependent metrics differ: %+v vs %+v", first, second)
	}
}

func TestComputePercentile(t *testing.T) {
	sorted := []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}

	assertClose(t, "p50", 5.5, computePercentile(sorted, 0.5))
	assertClose(t, "p10", 1.9, computePercentile(sorted, 0.1))
	assertClose(t, "p90", 9.1, computePercentile(sorted, 0.9))
	assertClose(t, "single", 7, computePercentile([]float64{7}, 0.9))
}

func TestComputeStddev(t *testing.T) {
	values := []float64{2, 4, 4, 4, 5, 5, 7, 9}
	mean := computeMean(values)

	// Sample variance = 32 / 7
	assertClose(t, "stddev", math.Sqrt(32.0/7.0), computeStddev(values, mean))
	if computeStddev([]float64{3}, 3) != 0 {
		t.Error("expected 0 stddev for a single value")
	}
}

func assertClose(t *testing.T, name string, want, got float64) {
	t.Helper()
	if math.Abs(want-got) > 1e-9 {
		t.Errorf("%s: expected %f, got %f", name, want, got)
	}
}
