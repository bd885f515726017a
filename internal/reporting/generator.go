package reporting

import (
	"context"
	"fmt"
	"sort"
	"time"

	"option-replay-lab/internal/domain"
	"option-replay-lab/internal/storage"
)

// RunInput carries what a finished run produced.
type RunInput struct {
	RunID          string
	ResolverID     string
	Policy         string
	FromDay        string
	ToDay          string
	DaysProcessed  int
	DaysSkipped    int
	EntriesDropped int
	DroppedBy      map[string]int
	Trades         []*domain.ResolvedTrade
	Adds           []domain.PyramidAdd
	Aggregates     []*domain.RunAggregate
}

// Generator produces reports from run output or stored data.
type Generator struct {
	tradeStore storage.TradeStore
	aggStore   storage.AggregateStore
	now        func() time.Time // Injectable clock for deterministic output
}

// NewGenerator creates a new report generator.
// Stores are only needed by FromStore.
func NewGenerator(tradeStore storage.TradeStore, aggStore storage.AggregateStore) *Generator {
	return &Generator{
		tradeStore: tradeStore,
		aggStore:   aggStore,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// WithClock sets a custom clock function for deterministic output.
func (g *Generator) WithClock(now func() time.Time) *Generator {
	g.now = now
	return g
}

// Build assembles a report from a finished run.
func (g *Generator) Build(in RunInput) *Report {
	r := &Report{
		GeneratedAt: g.now(),
		RunID:       in.RunID,
		ResolverID:  in.ResolverID,
		Policy:      in.Policy,
		FromDay:     in.FromDay,
		ToDay:       in.ToDay,
		Summary: RunSummary{
			DaysProcessed:  in.DaysProcessed,
			DaysSkipped:    in.DaysSkipped,
			Trades:         len(in.Trades),
			EntriesDropped: in.EntriesDropped,
			DroppedBy:      in.DroppedBy,
		},
		Trades: in.Trades,
		Adds:   in.Adds,
	}

	for _, add := range in.Adds {
		switch add.Class {
		case domain.AddScaleIntoWinner:
			r.Summary.ScaleIntoWinner++
		case domain.AddAverageIntoLoser:
			r.Summary.AverageIntoLoser++
		}
	}

	r.Aggregates = aggregateRows(in.Aggregates)
	r.ExitReasons = exitReasonRows(in.Aggregates)
	return r
}

// FromStore rebuilds the report of a stored run: its aggregates, plus the
// stored trades entered within the run's day range under the run's tags.
func (g *Generator) FromStore(ctx context.Context, runID string) (*Report, error) {
	if g.aggStore == nil {
		return nil, fmt.Errorf("aggregate store not configured")
	}

	aggs, err := g.aggStore.GetByRun(ctx, runID)
	if err != nil {
		return nil, err
	}
	if len(aggs) == 0 {
		return nil, fmt.Errorf("run %s: %w", runID, storage.ErrNotFound)
	}

	in := RunInput{
		RunID:      runID,
		ResolverID: aggs[0].ResolverID,
		Policy:     aggs[0].Policy,
		FromDay:    aggs[0].FromDay,
		ToDay:      aggs[0].ToDay,
		Aggregates: aggs,
	}

	if g.tradeStore != nil {
		trades, err := g.runTrades(ctx, aggs)
		if err != nil {
			return nil, err
		}
		in.Trades = trades
	}

	r := g.Build(in)
	// Day counts are not persisted
	r.Summary.DaysProcessed = countDays(in.Trades)
	return r, nil
}

func (g *Generator) runTrades(ctx context.Context, aggs []*domain.RunAggregate) ([]*domain.ResolvedTrade, error) {
	from, err := time.Parse(domain.DayLayout, aggs[0].FromDay)
	if err != nil {
		return nil, fmt.Errorf("parse from_day: %w", err)
	}
	to, err := time.Parse(domain.DayLayout, aggs[0].ToDay)
	if err != nil {
		return nil, fmt.Errorf("parse to_day: %w", err)
	}

	tags := make(map[string]bool, len(aggs))
	for _, a := range aggs {
		tags[a.Tag] = true
	}

	stored, err := g.tradeStore.GetByTimeRange(ctx, from, to.Add(24*time.Hour-time.Nanosecond))
	if err != nil {
		return nil, err
	}

	var out []*domain.ResolvedTrade
	for _, t := range stored {
		if tags[t.Entry.Tag] {
			out = append(out, t)
		}
	}
	return out, nil
}

// Combos assembles a search report.
func (g *Generator) Combos(runID, mode string, population, minSamples, maxOrder, evaluated int, combos []domain.ComboResult) *ComboReport {
	return &ComboReport{
		GeneratedAt: g.now(),
		RunID:       runID,
		Mode:        mode,
		Population:  population,
		MinSamples:  minSamples,
		MaxOrder:    maxOrder,
		Evaluated:   evaluated,
		Combos:      combos,
	}
}

func aggregateRows(aggs []*domain.RunAggregate) []AggregateRow {
	rows := make([]AggregateRow, 0, len(aggs))
	for _, a := range aggs {
		rows = append(rows, AggregateRow{
			Tag:                  a.Tag,
			Trades:               a.Count,
			Wins:                 a.Wins,
			Losses:               a.Losses,
			WinRate:              a.WinRate,
			TotalPnL:             a.TotalPnL,
			AvgPnL:               a.AvgPnL,
			AvgWinPnL:            a.AvgWinPnL,
			AvgLossPnL:           a.AvgLossPnL,
			ProfitFactor:         a.ProfitFactor,
			MedianPnL:            a.MedianPnL,
			P10PnL:               a.P10PnL,
			P90PnL:               a.P90PnL,
			MaxDrawdown:          a.MaxDrawdown,
			MaxConsecutiveLosses: a.MaxConsecutiveLosses,
			StopLosses:           a.ExitReasons[domain.ExitStopLoss],
			Targets:              a.ExitReasons[domain.ExitTarget],
			SessionCloses:        a.ExitReasons[domain.ExitSessionClose],
		})
	}

	// Run-wide row last, tags alphabetical
	sort.SliceStable(rows, func(i, j int) bool {
		ai, aj := rows[i].Tag == domain.AggregateScopeAll, rows[j].Tag == domain.AggregateScopeAll
		if ai != aj {
			return aj
		}
		return rows[i].Tag < rows[j].Tag
	})
	return rows
}

func exitReasonRows(aggs []*domain.RunAggregate) []ExitReasonRow {
	var all *domain.RunAggregate
	for _, a := range aggs {
		if a.Tag == domain.AggregateScopeAll {
			all = a
			break
		}
	}
	if all == nil {
		return nil
	}

	rows := make([]ExitReasonRow, 0, len(domain.ExitReasons))
	for _, reason := range domain.ExitReasons {
		n := all.ExitReasons[reason]
		var pct float64
		if all.Count > 0 {
			pct = float64(n) / float64(all.Count) * 100
		}
		rows = append(rows, ExitReasonRow{Reason: reason, Count: n, Pct: pct})
	}
	return rows
}

func countDays(trades []*domain.ResolvedTrade) int {
	days := make(map[string]struct{})
	for _, t := range trades {
		days[t.Entry.Day] = struct{}{}
	}
	return len(days)
}
