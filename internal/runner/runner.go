// Package runner replays stored snapshots day by day, resolving the entries
// a selector emits under a position policy.
package runner

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"option-replay-lab/internal/domain"
	"option-replay-lab/internal/lookup"
	"option-replay-lab/internal/observability"
	"option-replay-lab/internal/resolver"
	"option-replay-lab/internal/selector"
	"option-replay-lab/internal/storage"
)

// Policy decides which selected entries become positions.
type Policy string

// Policies
const (
	// PolicySingle takes the first resolvable entry of each day.
	PolicySingle Policy = "single"
	// PolicyMulti takes up to MaxTrades non-overlapping entries per day.
	PolicyMulti Policy = "multi"
	// PolicyPyramid allows concurrent entries spaced by MinGap.
	PolicyPyramid Policy = "pyramid"
)

// ErrInvalidConfig is returned by New for an unusable configuration.
var ErrInvalidConfig = errors.New("invalid runner config")

// Config controls the position policy.
type Config struct {
	Policy    Policy
	MaxTrades int           // per day, multi and pyramid; 0 = unlimited
	MinGap    time.Duration // pyramid: minimum spacing from the last open entry
}

// Result is the outcome of a run.
type Result struct {
	Trades         []*domain.ResolvedTrade
	Adds           []domain.PyramidAdd // pyramid policy only
	DaysProcessed  int
	DaysSkipped    int // days with snapshots but no quotes
	EntriesDropped int
	DroppedBy      map[string]int // drop reason -> count
	TradesStored   int
	TradesExisting int // already present in the trade store
}

// Runner replays a date range.
type Runner struct {
	snapshots storage.SnapshotStore
	cache     *DayCache
	selector  *selector.Selector
	resolver  *resolver.Resolver
	trades    storage.TradeStore
	cfg       Config
	logger    *zap.Logger
}

// Option configures a Runner.
type Option func(*Runner)

// WithTradeStore persists every resolved trade to store.
func WithTradeStore(store storage.TradeStore) Option {
	return func(r *Runner) { r.trades = store }
}

// WithDayCache shares a day cache between runners.
func WithDayCache(cache *DayCache) Option {
	return func(r *Runner) { r.cache = cache }
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(r *Runner) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// New creates a Runner.
func New(snapshots storage.SnapshotStore, quotes storage.QuoteStore, sel *selector.Selector, res *resolver.Resolver, cfg Config, opts ...Option) (*Runner, error) {
	switch cfg.Policy {
	case "":
		cfg.Policy = PolicySingle
	case PolicySingle, PolicyMulti, PolicyPyramid:
	default:
		return nil, fmt.Errorf("%w: policy %q", ErrInvalidConfig, cfg.Policy)
	}
	if cfg.MaxTrades < 0 || cfg.MinGap < 0 {
		return nil, fmt.Errorf("%w: negative limits", ErrInvalidConfig)
	}
	if snapshots == nil || sel == nil || res == nil {
		return nil, fmt.Errorf("%w: snapshot store, selector and resolver are required", ErrInvalidConfig)
	}

	r := &Runner{
		snapshots: snapshots,
		selector:  sel,
		resolver:  res,
		cfg:       cfg,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.cache == nil {
		if quotes == nil {
			return nil, fmt.Errorf("%w: quote store is required", ErrInvalidConfig)
		}
		r.cache = NewDayCache(quotes)
	}
	return r, nil
}

// Config returns the runner configuration.
func (r *Runner) Config() Config {
	return r.cfg
}

// Run replays every day in [from, to] (calendar days, inclusive) that has
// snapshots. Days are processed in order; identical input yields identical
// trades.
func (r *Runner) Run(ctx context.Context, from, to time.Time) (*Result, error) {
	start := startOfDay(from)
	end := startOfDay(to).AddDate(0, 0, 1).Add(-time.Nanosecond)
	if end.Before(start) {
		return nil, fmt.Errorf("%w: range %s..%s", ErrInvalidConfig, domain.DayOf(from), domain.DayOf(to))
	}

	snaps, err := r.snapshots.GetByTimeRange(ctx, start, end)
	if err != nil {
		return nil, fmt.Errorf("load snapshots: %w", err)
	}

	days, byDay := groupByDay(snaps)
	result := &Result{DroppedBy: make(map[string]int)}

	r.logger.Info("replay starting",
		zap.String("from", domain.DayOf(start)),
		zap.String("to", domain.DayOf(end)),
		zap.Int("days", len(days)),
		zap.Int("snapshots", len(snaps)),
		zap.String("policy", string(r.cfg.Policy)),
		zap.String("resolver", r.resolver.ID()),
	)

	for _, day := range days {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := r.runDay(ctx, day, byDay[day], result); err != nil {
			return nil, err
		}
	}

	r.logger.Info("replay complete",
		zap.Int("days_processed", result.DaysProcessed),
		zap.Int("days_skipped", result.DaysSkipped),
		zap.Int("trades", len(result.Trades)),
		zap.Int("adds", len(result.Adds)),
		zap.Int("entries_dropped", result.EntriesDropped),
	)
	return result, nil
}

func (r *Runner) runDay(ctx context.Context, day string, snaps []*domain.MarketSnapshot, result *Result) error {
	idx, err := r.cache.Get(ctx, day)
	if err != nil {
		return err
	}
	if idx.Len() == 0 {
		result.DaysSkipped++
		observability.RecordDay(true)
		r.logger.Debug("day skipped: no quotes", zap.String("day", day))
		return nil
	}

	decisions := r.selector.Select(snaps, idx)
	for _, d := range decisions {
		observability.RecordEntrySelected(d.Tag)
	}

	var trades []*domain.ResolvedTrade
	switch r.cfg.Policy {
	case PolicySingle:
		trades = r.single(decisions, idx, result)
	case PolicyMulti:
		trades = r.multi(decisions, idx, result)
	case PolicyPyramid:
		trades = r.pyramid(decisions, idx, snaps, result)
	}

	for _, t := range trades {
		observability.RecordTradeResolved(string(t.ExitReason))
	}
	if err := r.persist(ctx, trades, result); err != nil {
		return err
	}

	result.Trades = append(result.Trades, trades...)
	result.DaysProcessed++
	observability.RecordDay(false)

	r.logger.Debug("day replayed",
		zap.String("day", day),
		zap.Int("snapshots", len(snaps)),
		zap.Int("decisions", len(decisions)),
		zap.Int("trades", len(trades)),
	)
	return nil
}

// resolve runs the resolver, counting drops. Returns nil on a drop.
func (r *Runner) resolve(d domain.EntryDecision, idx *lookup.Index, result *Result) *domain.ResolvedTrade {
	trade, err := r.resolver.Resolve(d, idx.Quotes(d.Instrument))
	if err == nil {
		return trade
	}

	reason := dropReason(err)
	result.EntriesDropped++
	result.DroppedBy[reason]++
	observability.RecordEntryDropped(reason)
	r.logger.Debug("entry dropped",
		zap.String("day", d.Day),
		zap.Time("entry_time", d.Timestamp),
		zap.String("instrument", d.Instrument.String()),
		zap.String("reason", reason),
		zap.Error(err),
	)
	return nil
}

func (r *Runner) single(decisions []domain.EntryDecision, idx *lookup.Index, result *Result) []*domain.ResolvedTrade {
	for _, d := range decisions {
		if t := r.resolve(d, idx, result); t != nil {
			return []*domain.ResolvedTrade{t}
		}
	}
	return nil
}

func (r *Runner) multi(decisions []domain.EntryDecision, idx *lookup.Index, result *Result) []*domain.ResolvedTrade {
	var trades []*domain.ResolvedTrade
	var lastExit time.Time

	for _, d := range decisions {
		if r.cfg.MaxTrades > 0 && len(trades) >= r.cfg.MaxTrades {
			break
		}
		if d.Timestamp.Before(lastExit) {
			continue
		}
		t := r.resolve(d, idx, result)
		if t == nil {
			continue
		}
		trades = append(trades, t)
		lastExit = t.ExitTime
	}
	return trades
}

func (r *Runner) pyramid(decisions []domain.EntryDecision, idx *lookup.Index, snaps []*domain.MarketSnapshot, result *Result) []*domain.ResolvedTrade {
	var trades []*domain.ResolvedTrade

	for _, d := range decisions {
		if r.cfg.MaxTrades > 0 && len(trades) >= r.cfg.MaxTrades {
			break
		}

		open := openAt(trades, d.Timestamp)
		if len(open) > 0 && r.cfg.MinGap > 0 {
			lastEntry := open[len(open)-1].Entry.Timestamp
			if d.Timestamp.Sub(lastEntry) < r.cfg.MinGap {
				continue
			}
		}

		t := r.resolve(d, idx, result)
		if t == nil {
			continue
		}
		trades = append(trades, t)

		if len(open) == 0 {
			continue
		}
		add, err := classifyAdd(t, open[0], snaps)
		if err != nil {
			r.logger.Warn("pyramid add not classified",
				zap.String("trade_id", t.TradeID),
				zap.Error(err),
			)
			continue
		}
		result.Adds = append(result.Adds, add)
		observability.RecordPyramidAdd(string(add.Class))
	}
	return trades
}

// openAt returns trades still open at ts, in entry order.
func openAt(trades []*domain.ResolvedTrade, ts time.Time) []*domain.ResolvedTrade {
	var open []*domain.ResolvedTrade
	for _, t := range trades {
		if ts.Before(t.ExitTime) {
			open = append(open, t)
		}
	}
	return open
}

// classifyAdd measures the base position's unrealized move in underlying
// points at the add's entry time, positive when in the base's favor.
func classifyAdd(add, base *domain.ResolvedTrade, snaps []*domain.MarketSnapshot) (domain.PyramidAdd, error) {
	spot, err := lookup.SpotAt(add.Entry.Timestamp, snaps)
	if err != nil {
		return domain.PyramidAdd{}, err
	}

	unrealized := spot - base.Entry.Spot
	if base.Entry.Direction == domain.DirectionBear {
		unrealized = -unrealized
	}

	return domain.PyramidAdd{
		Trade:          add,
		BaseTradeID:    base.TradeID,
		BaseUnrealized: unrealized,
		Class:          domain.ClassifyAdd(unrealized),
	}, nil
}

func (r *Runner) persist(ctx context.Context, trades []*domain.ResolvedTrade, result *Result) error {
	if r.trades == nil {
		return nil
	}
	for _, t := range trades {
		err := r.trades.Insert(ctx, t)
		switch {
		case err == nil:
			result.TradesStored++
		case errors.Is(err, storage.ErrDuplicateKey):
			result.TradesExisting++
			r.logger.Debug("trade already stored", zap.String("trade_id", t.TradeID))
		default:
			return fmt.Errorf("store trade %s: %w", t.TradeID, err)
		}
	}
	return nil
}

func dropReason(err error) string {
	switch {
	case errors.Is(err, resolver.ErrBelowMinPremium):
		return "below_min_premium"
	case errors.Is(err, resolver.ErrNoExitData):
		return "no_exit_data"
	case errors.Is(err, resolver.ErrInvalidEntry):
		return "invalid_entry"
	}
	return "other"
}

// groupByDay splits ordered snapshots into days, returning the sorted day keys.
func groupByDay(snaps []*domain.MarketSnapshot) ([]string, map[string][]*domain.MarketSnapshot) {
	byDay := make(map[string][]*domain.MarketSnapshot)
	for _, s := range snaps {
		day := s.Day()
		byDay[day] = append(byDay[day], s)
	}

	days := make([]string, 0, len(byDay))
	for day, list := range byDay {
		days = append(days, day)
		sort.SliceStable(list, func(i, j int) bool {
			return list[i].Timestamp.Before(list[j].Timestamp)
		})
	}
	sort.Strings(days)
	return days, byDay
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
