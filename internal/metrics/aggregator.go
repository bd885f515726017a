package metrics

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"option-replay-lab/internal/domain"
	"option-replay-lab/internal/storage"
)

// ErrNoTrades is returned when no trades are available for aggregation.
var ErrNoTrades = errors.New("no trades available for aggregation")

// RunInfo identifies the run an aggregate belongs to.
type RunInfo struct {
	RunID      string
	ResolverID string
	Policy     string
	FromDay    string
	ToDay      string
}

// Aggregator computes run aggregates from resolved trades.
type Aggregator struct {
	tradeStore storage.TradeStore
	aggStore   storage.AggregateStore
}

// NewAggregator creates a new metrics aggregator.
// Either store may be nil when the matching operation is not used.
func NewAggregator(tradeStore storage.TradeStore, aggStore storage.AggregateStore) *Aggregator {
	return &Aggregator{
		tradeStore: tradeStore,
		aggStore:   aggStore,
	}
}

// Summarize computes one aggregate per rule tag plus a run-wide one
// (Tag == domain.AggregateScopeAll). Output is ordered by tag.
// The run-wide aggregate is always present, even for an empty run.
func (a *Aggregator) Summarize(info RunInfo, trades []*domain.ResolvedTrade) []*domain.RunAggregate {
	groups := ByTag(trades)
	tags := make([]string, 0, len(groups)+1)
	for tag := range groups {
		if tag != domain.AggregateScopeAll {
			tags = append(tags, tag)
		}
	}
	tags = append(tags, domain.AggregateScopeAll)
	sort.Strings(tags)

	out := make([]*domain.RunAggregate, 0, len(tags))
	for _, tag := range tags {
		subset := groups[tag]
		if tag == domain.AggregateScopeAll {
			subset = trades
		}
		out = append(out, &domain.RunAggregate{
			RunID:      info.RunID,
			ResolverID: info.ResolverID,
			Policy:     info.Policy,
			Tag:        tag,
			FromDay:    info.FromDay,
			ToDay:      info.ToDay,
			Aggregate:  Compute(subset),
		})
	}
	return out
}

// ComputeAndStore summarizes a run and persists all its aggregates atomically.
// Returns storage.ErrDuplicateKey if the run was already stored (append-only).
func (a *Aggregator) ComputeAndStore(ctx context.Context, info RunInfo, trades []*domain.ResolvedTrade) ([]*domain.RunAggregate, error) {
	if a.aggStore == nil {
		return nil, fmt.Errorf("aggregate store not configured")
	}

	aggs := a.Summarize(info, trades)
	if err := a.aggStore.InsertBulk(ctx, aggs); err != nil {
		return nil, err
	}
	return aggs, nil
}

// ComputeRange aggregates stored trades entered within [start, end].
// Returns ErrNoTrades if the range holds none.
func (a *Aggregator) ComputeRange(ctx context.Context, start, end time.Time) (domain.Aggregate, []*domain.ResolvedTrade, error) {
	if a.tradeStore == nil {
		return domain.Aggregate{}, nil, fmt.Errorf("trade store not configured")
	}

	trades, err := a.tradeStore.GetByTimeRange(ctx, start, end)
	if err != nil {
		return domain.Aggregate{}, nil, err
	}
	if len(trades) == 0 {
		return domain.Aggregate{}, nil, ErrNoTrades
	}

	return Compute(trades), trades, nil
}
