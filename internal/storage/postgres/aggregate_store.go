package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"option-replay-lab/internal/domain"
	"option-replay-lab/internal/storage"
)

// AggregateStore implements storage.AggregateStore using PostgreSQL.
type AggregateStore struct {
	pool *Pool
}

// NewAggregateStore creates a new AggregateStore.
func NewAggregateStore(pool *Pool) *AggregateStore {
	return &AggregateStore{pool: pool}
}

// Compile-time interface check.
var _ storage.AggregateStore = (*AggregateStore)(nil)

const aggregateInsertQuery = `
	INSERT INTO run_aggregates (
		run_id, tag, resolver_id, policy, from_day, to_day,
		trade_count, wins, losses, win_rate,
		total_pnl, avg_pnl, total_win_pnl, avg_win_pnl, total_loss_pnl, avg_loss_pnl,
		profit_factor, stop_loss_count, target_count, session_close_count,
		median_pnl, p10_pnl, p90_pnl, stddev_pnl,
		max_drawdown, max_consecutive_losses, avg_peak_gain_pct
	) VALUES (
		$1, $2, $3, $4, $5, $6,
		$7, $8, $9, $10,
		$11, $12, $13, $14, $15, $16,
		$17, $18, $19, $20,
		$21, $22, $23, $24,
		$25, $26, $27
	)
`

const aggregateSelectColumns = `
	run_id, tag, resolver_id, policy, from_day, to_day,
	trade_count, wins, losses, win_rate,
	total_pnl, avg_pnl, total_win_pnl, avg_win_pnl, total_loss_pnl, avg_loss_pnl,
	profit_factor, stop_loss_count, target_count, session_close_count,
	median_pnl, p10_pnl, p90_pnl, stddev_pnl,
	max_drawdown, max_consecutive_losses, avg_peak_gain_pct
`

// Insert adds a new aggregate. Returns ErrDuplicateKey if (run_id, tag) exists.
func (s *AggregateStore) Insert(ctx context.Context, a *domain.RunAggregate) error {
	if a == nil || a.RunID == "" || a.Tag == "" {
		return storage.ErrInvalidInput
	}

	_, err := s.pool.Exec(ctx, aggregateInsertQuery, aggregateArgs(a)...)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert run aggregate: %w", err)
	}

	return nil
}

// InsertBulk adds multiple aggregates atomically. Fails entire batch on any duplicate.
func (s *AggregateStore) InsertBulk(ctx context.Context, aggregates []*domain.RunAggregate) error {
	if len(aggregates) == 0 {
		return nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, a := range aggregates {
		if a == nil || a.RunID == "" || a.Tag == "" {
			return storage.ErrInvalidInput
		}
		_, err := tx.Exec(ctx, aggregateInsertQuery, aggregateArgs(a)...)
		if err != nil {
			if isDuplicateKeyError(err) {
				return storage.ErrDuplicateKey
			}
			return fmt.Errorf("insert run aggregate in bulk: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}

	return nil
}

// GetByKey retrieves an aggregate by its composite key. Returns ErrNotFound if not exists.
func (s *AggregateStore) GetByKey(ctx context.Context, runID, tag string) (*domain.RunAggregate, error) {
	query := `SELECT ` + aggregateSelectColumns + ` FROM run_aggregates WHERE run_id = $1 AND tag = $2`

	a, err := scanAggregate(s.pool.QueryRow(ctx, query, runID, tag))
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get run aggregate by key: %w", err)
	}

	return a, nil
}

// GetByRun retrieves all aggregates of a run, ordered by tag.
func (s *AggregateStore) GetByRun(ctx context.Context, runID string) ([]*domain.RunAggregate, error) {
	query := `SELECT ` + aggregateSelectColumns + ` FROM run_aggregates WHERE run_id = $1 ORDER BY tag ASC`

	rows, err := s.pool.Query(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("get run aggregates by run: %w", err)
	}
	defer rows.Close()

	var aggregates []*domain.RunAggregate
	for rows.Next() {
		a, err := scanAggregate(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run aggregate row: %w", err)
		}
		aggregates = append(aggregates, a)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate run aggregate rows: %w", err)
	}

	return aggregates, nil
}

func aggregateArgs(a *domain.RunAggregate) []any {
	return []any{
		a.RunID, a.Tag, a.ResolverID, a.Policy, a.FromDay, a.ToDay,
		a.Count, a.Wins, a.Losses, a.WinRate,
		a.TotalPnL, a.AvgPnL, a.TotalWinPnL, a.AvgWinPnL, a.TotalLossPnL, a.AvgLossPnL,
		a.ProfitFactor,
		a.ExitReasons[domain.ExitStopLoss],
		a.ExitReasons[domain.ExitTarget],
		a.ExitReasons[domain.ExitSessionClose],
		a.MedianPnL, a.P10PnL, a.P90PnL, a.StddevPnL,
		a.MaxDrawdown, a.MaxConsecutiveLosses, a.AvgPeakGainPct,
	}
}

func scanAggregate(row pgx.Row) (*domain.RunAggregate, error) {
	var a domain.RunAggregate
	var stopLoss, target, sessionClose int

	err := row.Scan(
		&a.RunID, &a.Tag, &a.ResolverID, &a.Policy, &a.FromDay, &a.ToDay,
		&a.Count, &a.Wins, &a.Losses, &a.WinRate,
		&a.TotalPnL, &a.AvgPnL, &a.TotalWinPnL, &a.AvgWinPnL, &a.TotalLossPnL, &a.AvgLossPnL,
		&a.ProfitFactor, &stopLoss, &target, &sessionClose,
		&a.MedianPnL, &a.P10PnL, &a.P90PnL, &a.StddevPnL,
		&a.MaxDrawdown, &a.MaxConsecutiveLosses, &a.AvgPeakGainPct,
	)
	if err != nil {
		return nil, err
	}

	a.ExitReasons = map[domain.ExitReason]int{
		domain.ExitStopLoss:     stopLoss,
		domain.ExitTarget:       target,
		domain.ExitSessionClose: sessionClose,
	}

	return &a, nil
}
