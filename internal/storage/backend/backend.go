// Package backend opens the configured store implementations.
package backend

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"option-replay-lab/internal/config"
	"option-replay-lab/internal/storage"
	chstore "option-replay-lab/internal/storage/clickhouse"
	"option-replay-lab/internal/storage/memory"
	"option-replay-lab/internal/storage/migrations"
	pgstore "option-replay-lab/internal/storage/postgres"
)

// Stores bundles every store a command may need.
type Stores struct {
	Backend    string
	Snapshots  storage.SnapshotStore
	Quotes     storage.QuoteStore
	Trades     storage.TradeStore
	Aggregates storage.AggregateStore
	Ingest     storage.IngestProgressStore

	closers []func()
}

// Open connects the backend named in cfg. Memory stores need no connection.
// Postgres serves every store; ClickHouse serves snapshots and quotes with
// Postgres holding trades, aggregates and ingest progress.
func Open(ctx context.Context, cfg config.StorageConfig, logger *zap.Logger) (*Stores, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	switch cfg.Backend {
	case config.BackendMemory, "":
		return Memory(), nil

	case config.BackendPostgres:
		s := &Stores{Backend: config.BackendPostgres}
		pool, err := openPostgres(ctx, cfg, logger)
		if err != nil {
			return nil, err
		}
		s.closers = append(s.closers, pool.Close)
		s.Snapshots = pgstore.NewSnapshotStore(pool)
		s.Quotes = pgstore.NewQuoteStore(pool)
		s.bindPostgresResults(pool)
		return s, nil

	case config.BackendClickHouse:
		s := &Stores{Backend: config.BackendClickHouse}
		pool, err := openPostgres(ctx, cfg, logger)
		if err != nil {
			return nil, err
		}
		s.closers = append(s.closers, pool.Close)

		conn, err := openClickHouse(ctx, cfg, logger)
		if err != nil {
			s.Close()
			return nil, err
		}
		s.closers = append(s.closers, func() { _ = conn.Close() })
		s.Snapshots = chstore.NewSnapshotStore(conn)
		s.Quotes = chstore.NewQuoteStore(conn)
		s.bindPostgresResults(pool)
		return s, nil
	}

	return nil, fmt.Errorf("%w: unknown storage backend %q", config.ErrConfigInvalid, cfg.Backend)
}

// Memory returns fresh in-memory stores.
func Memory() *Stores {
	return &Stores{
		Backend:    config.BackendMemory,
		Snapshots:  memory.NewSnapshotStore(),
		Quotes:     memory.NewQuoteStore(),
		Trades:     memory.NewTradeStore(),
		Aggregates: memory.NewAggregateStore(),
		Ingest:     memory.NewIngestProgressStore(),
	}
}

// Close releases connections in reverse open order.
func (s *Stores) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
	s.closers = nil
}

func (s *Stores) bindPostgresResults(pool *pgstore.Pool) {
	s.Trades = pgstore.NewTradeStore(pool)
	s.Aggregates = pgstore.NewAggregateStore(pool)
	s.Ingest = pgstore.NewIngestProgressStore(pool)
}

func openPostgres(ctx context.Context, cfg config.StorageConfig, logger *zap.Logger) (*pgstore.Pool, error) {
	if cfg.Postgres.DSN == "" {
		return nil, fmt.Errorf("%w: storage.postgres.dsn", config.ErrConfigMissing)
	}
	pool, err := pgstore.NewPool(ctx, cfg.Postgres.DSN)
	if err != nil {
		return nil, err
	}
	if cfg.Migrate {
		if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
			pool.Close()
			return nil, err
		}
		logger.Info("postgres migrations applied")
	}
	return pool, nil
}

func openClickHouse(ctx context.Context, cfg config.StorageConfig, logger *zap.Logger) (*chstore.Conn, error) {
	if cfg.ClickHouse.DSN == "" {
		return nil, fmt.Errorf("%w: storage.clickhouse.dsn", config.ErrConfigMissing)
	}
	if cfg.Migrate {
		conn, err := migrations.RunClickhouseMigrations(ctx, cfg.ClickHouse.DSN)
		if err != nil {
			return nil, err
		}
		logger.Info("clickhouse migrations applied")
		return conn, nil
	}
	return chstore.NewConn(ctx, cfg.ClickHouse.DSN)
}
