package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"option-replay-lab/internal/domain"
	"option-replay-lab/internal/storage"
)

// SnapshotStore implements storage.SnapshotStore using PostgreSQL.
type SnapshotStore struct {
	pool *Pool
}

// NewSnapshotStore creates a new SnapshotStore.
func NewSnapshotStore(pool *Pool) *SnapshotStore {
	return &SnapshotStore{pool: pool}
}

// Compile-time interface check.
var _ storage.SnapshotStore = (*SnapshotStore)(nil)

// InsertBulk adds multiple snapshots atomically. Fails entire batch on any duplicate.
func (s *SnapshotStore) InsertBulk(ctx context.Context, snapshots []*domain.MarketSnapshot) error {
	if len(snapshots) == 0 {
		return nil
	}
	for _, snap := range snapshots {
		if snap == nil || snap.Timestamp.IsZero() {
			return storage.ErrInvalidInput
		}
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO analysis_history (
			timestamp, spot_price, verdict, signal_confidence,
			vix, iv_skew, max_pain,
			call_oi_change, put_oi_change, atm_call_oi_change, atm_put_oi_change,
			futures_oi_change, futures_basis, prev_verdict
		) VALUES (
			$1, $2, $3, $4,
			$5, $6, $7,
			$8, $9, $10, $11,
			$12, $13, $14
		)
	`

	batch := &pgx.Batch{}
	for _, snap := range snapshots {
		batch.Queue(query,
			snap.Timestamp, snap.UnderlyingPrice, snap.Verdict.Label, snap.Confidence,
			snap.VIX, snap.IVSkew, snap.MaxPain,
			snap.CallOIChange, snap.PutOIChange, snap.ATMCallOIChange, snap.ATMPutOIChange,
			snap.FuturesOIChange, snap.FuturesBasis, snap.PrevVerdict.Label,
		)
	}

	br := tx.SendBatch(ctx, batch)
	for range snapshots {
		if _, err := br.Exec(); err != nil {
			br.Close()
			if isDuplicateKeyError(err) {
				return storage.ErrDuplicateKey
			}
			return fmt.Errorf("insert snapshot in bulk: %w", err)
		}
	}
	if err := br.Close(); err != nil {
		return fmt.Errorf("close batch: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}

	return nil
}

// GetByTimeRange retrieves snapshots within [start, end] (inclusive), ordered by timestamp ASC.
func (s *SnapshotStore) GetByTimeRange(ctx context.Context, start, end time.Time) (_ []*domain.MarketSnapshot, err error) {
	defer observe("snapshots_by_range", time.Now(), &err)

	query := `
		SELECT
			timestamp, spot_price, verdict, signal_confidence,
			vix, iv_skew, max_pain,
			call_oi_change, put_oi_change, atm_call_oi_change, atm_put_oi_change,
			futures_oi_change, futures_basis, prev_verdict
		FROM analysis_history
		WHERE timestamp >= $1 AND timestamp <= $2
		ORDER BY timestamp ASC
	`

	rows, err := s.pool.Query(ctx, query, start, end)
	if err != nil {
		return nil, fmt.Errorf("get snapshots by time range: %w", err)
	}
	defer rows.Close()

	return scanSnapshots(rows)
}

// scanSnapshots scans multiple rows into a slice of MarketSnapshot.
func scanSnapshots(rows pgx.Rows) ([]*domain.MarketSnapshot, error) {
	var snapshots []*domain.MarketSnapshot

	for rows.Next() {
		var snap domain.MarketSnapshot
		var verdict, prev string

		err := rows.Scan(
			&snap.Timestamp, &snap.UnderlyingPrice, &verdict, &snap.Confidence,
			&snap.VIX, &snap.IVSkew, &snap.MaxPain,
			&snap.CallOIChange, &snap.PutOIChange, &snap.ATMCallOIChange, &snap.ATMPutOIChange,
			&snap.FuturesOIChange, &snap.FuturesBasis, &prev,
		)
		if err != nil {
			return nil, fmt.Errorf("scan snapshot row: %w", err)
		}

		snap.Verdict = domain.ParseVerdict(verdict)
		snap.PrevVerdict = domain.ParseVerdict(prev)
		snapshots = append(snapshots, &snap)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate snapshot rows: %w", err)
	}

	return snapshots, nil
}
