package storage

import (
	"context"
	"time"

	"option-replay-lab/internal/domain"
)

// SnapshotStore provides access to analysis_history storage.
type SnapshotStore interface {
	// InsertBulk adds multiple snapshots atomically. Fails entire batch on any duplicate timestamp.
	InsertBulk(ctx context.Context, snapshots []*domain.MarketSnapshot) error

	// GetByTimeRange retrieves snapshots within [start, end] (inclusive), ordered by timestamp ASC.
	GetByTimeRange(ctx context.Context, start, end time.Time) ([]*domain.MarketSnapshot, error)
}

// QuoteStore provides access to option_quotes storage.
type QuoteStore interface {
	// InsertBulk adds multiple quotes atomically.
	// Fails entire batch on any duplicate (timestamp, strike, option_type).
	InsertBulk(ctx context.Context, quotes []*domain.OptionQuote) error

	// GetByDay retrieves all quotes of a calendar day ("2006-01-02"),
	// ordered by timestamp, strike, option_type ASC.
	GetByDay(ctx context.Context, day string) ([]*domain.OptionQuote, error)
}

// TradeStore provides access to resolved_trades storage.
type TradeStore interface {
	// Insert adds a new trade. Returns ErrDuplicateKey if trade_id exists.
	Insert(ctx context.Context, t *domain.ResolvedTrade) error

	// InsertBulk adds multiple trades atomically. Fails entire batch on any duplicate.
	InsertBulk(ctx context.Context, trades []*domain.ResolvedTrade) error

	// GetByID retrieves a trade by its ID. Returns ErrNotFound if not exists.
	GetByID(ctx context.Context, tradeID string) (*domain.ResolvedTrade, error)

	// GetByTimeRange retrieves trades entered within [start, end] (inclusive),
	// ordered by entry time then trade_id.
	GetByTimeRange(ctx context.Context, start, end time.Time) ([]*domain.ResolvedTrade, error)
}

// AggregateStore provides access to run_aggregates storage.
type AggregateStore interface {
	// Insert adds a new aggregate. Returns ErrDuplicateKey if (run_id, tag) exists.
	Insert(ctx context.Context, a *domain.RunAggregate) error

	// InsertBulk adds multiple aggregates atomically. Fails entire batch on any duplicate.
	InsertBulk(ctx context.Context, aggregates []*domain.RunAggregate) error

	// GetByKey retrieves an aggregate by its composite key. Returns ErrNotFound if not exists.
	GetByKey(ctx context.Context, runID, tag string) (*domain.RunAggregate, error)

	// GetByRun retrieves all aggregates of a run, ordered by tag.
	GetByRun(ctx context.Context, runID string) ([]*domain.RunAggregate, error)
}
