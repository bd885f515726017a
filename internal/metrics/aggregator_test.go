package metrics

import (
	"context"
	"errors"
	"testing"
	"time"

	"option-replay-lab/internal/domain"
	"option-replay-lab/internal/storage"
	"option-replay-lab/internal/storage/memory"
)

func TestSummarize_PerTagAndAll(t *testing.T) {
	trades := []*domain.ResolvedTrade{
		makeTrade("t1", "high_conf", 0, 23, domain.ExitTarget),
		makeTrade("t2", "bear_fade", 10, -21, domain.ExitStopLoss),
		makeTrade("t3", "high_conf", 20, 5, domain.ExitSessionClose),
	}

	agg := NewAggregator(nil, nil)
	out := agg.Summarize(RunInfo{RunID: "run-1", ResolverID: "SL20_TGT22_EOD1520", Policy: "single"}, trades)

	if len(out) != 3 {
		t.Fatalf("expected 3 aggregates, got %d", len(out))
	}

	wantTags := []string{domain.AggregateScopeAll, "bear_fade", "high_conf"}
	for i, tag := range wantTags {
		if out[i].Tag != tag {
			t.Errorf("aggregate %d: expected tag %s, got %s", i, tag, out[i].Tag)
		}
		if out[i].RunID != "run-1" || out[i].Policy != "single" {
			t.Errorf("aggregate %d: run info not propagated: %+v", i, out[i])
		}
	}

	if out[0].Count != 3 || out[1].Count != 1 || out[2].Count != 2 {
		t.Errorf("unexpected counts: %d %d %d", out[0].Count, out[1].Count, out[2].Count)
	}
	if out[2].Wins != 2 {
		t.Errorf("expected 2 high_conf wins, got %d", out[2].Wins)
	}
}

func TestSummarize_EmptyRun(t *testing.T) {
	out := NewAggregator(nil, nil).Summarize(RunInfo{RunID: "empty"}, nil)

	if len(out) != 1 || out[0].Tag != domain.AggregateScopeAll || out[0].Count != 0 {
		t.Errorf("expected a single empty run-wide aggregate, got %+v", out)
	}
}

func TestComputeAndStore_AppendOnly(t *testing.T) {
	ctx := context.Background()
	aggStore := memory.NewAggregateStore()
	agg := NewAggregator(nil, aggStore)

	trades := []*domain.ResolvedTrade{
		makeTrade("t1", "high_conf", 0, 23, domain.ExitTarget),
	}
	info := RunInfo{RunID: "run-2", ResolverID: "SL20_TGT22_EOD1520", Policy: "single"}

	if _, err := agg.ComputeAndStore(ctx, info, trades); err != nil {
		t.Fatalf("ComputeAndStore: %v", err)
	}

	stored, err := aggStore.GetByKey(ctx, "run-2", "high_conf")
	if err != nil {
		t.Fatalf("GetByKey: %v", err)
	}
	if stored.Wins != 1 {
		t.Errorf("expected 1 stored win, got %d", stored.Wins)
	}

	_, err = agg.ComputeAndStore(ctx, info, trades)
	if !errors.Is(err, storage.ErrDuplicateKey) {
		t.Errorf("expected ErrDuplicateKey on second store, got %v", err)
	}
}

func TestComputeRange(t *testing.T) {
	ctx := context.Background()
	tradeStore := memory.NewTradeStore()
	agg := NewAggregator(tradeStore, nil)

	_, _, err := agg.ComputeRange(ctx, base, base.Add(time.Hour))
	if !errors.Is(err, ErrNoTrades) {
		t.Fatalf("expected ErrNoTrades, got %v", err)
	}

	err = tradeStore.InsertBulk(ctx, []*domain.ResolvedTrade{
		makeTrade("t1", "a", 0, 23, domain.ExitTarget),
		makeTrade("t2", "a", 30, -21, domain.ExitStopLoss),
		makeTrade("t3", "a", 120, 23, domain.ExitTarget),
	})
	if err != nil {
		t.Fatalf("InsertBulk: %v", err)
	}

	got, trades, err := agg.ComputeRange(ctx, base, base.Add(time.Hour))
	if err != nil {
		t.Fatalf("ComputeRange: %v", err)
	}
	if got.Count != 2 || len(trades) != 2 {
		t.Errorf("expected 2 trades in range, got %d", got.Count)
	}
}
