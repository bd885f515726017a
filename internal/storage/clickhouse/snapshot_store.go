package clickhouse

import (
	"context"
	"fmt"
	"time"

	"option-replay-lab/internal/domain"
	"option-replay-lab/internal/storage"
)

// SnapshotStore implements storage.SnapshotStore using ClickHouse.
type SnapshotStore struct {
	conn *Conn
}

// NewSnapshotStore creates a new SnapshotStore.
func NewSnapshotStore(conn *Conn) *SnapshotStore {
	return &SnapshotStore{conn: conn}
}

// Compile-time interface check.
var _ storage.SnapshotStore = (*SnapshotStore)(nil)

const snapshotColumns = `
	timestamp, spot_price, verdict, signal_confidence,
	vix, iv_skew, max_pain,
	call_oi_change, put_oi_change, atm_call_oi_change, atm_put_oi_change,
	futures_oi_change, futures_basis, prev_verdict
`

// InsertBulk adds multiple snapshots. Fails entire batch on duplicate timestamp.
func (s *SnapshotStore) InsertBulk(ctx context.Context, snapshots []*domain.MarketSnapshot) error {
	if len(snapshots) == 0 {
		return nil
	}

	// Check for intra-batch duplicates
	seen := make(map[int64]struct{}, len(snapshots))
	for _, snap := range snapshots {
		if snap == nil || snap.Timestamp.IsZero() {
			return storage.ErrInvalidInput
		}
		k := snap.Timestamp.UnixMilli()
		if _, exists := seen[k]; exists {
			return storage.ErrDuplicateKey
		}
		seen[k] = struct{}{}
	}

	// Check for duplicates against existing DB rows
	for _, snap := range snapshots {
		exists, err := s.exists(ctx, snap.Timestamp)
		if err != nil {
			return fmt.Errorf("check exists: %w", err)
		}
		if exists {
			return storage.ErrDuplicateKey
		}
	}

	batch, err := s.conn.PrepareBatch(ctx, "INSERT INTO analysis_history ("+snapshotColumns+")")
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, snap := range snapshots {
		err = batch.Append(
			snap.Timestamp.UTC(), snap.UnderlyingPrice, snap.Verdict.Label, snap.Confidence,
			snap.VIX, snap.IVSkew, snap.MaxPain,
			snap.CallOIChange, snap.PutOIChange, snap.ATMCallOIChange, snap.ATMPutOIChange,
			snap.FuturesOIChange, snap.FuturesBasis, snap.PrevVerdict.Label,
		)
		if err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}

	return nil
}

// GetByTimeRange retrieves snapshots within [start, end] (inclusive), ordered by timestamp ASC.
func (s *SnapshotStore) GetByTimeRange(ctx context.Context, start, end time.Time) (_ []*domain.MarketSnapshot, err error) {
	defer observe("snapshots_by_range", time.Now(), &err)

	query := "SELECT " + snapshotColumns + `
		FROM analysis_history
		WHERE timestamp >= ? AND timestamp <= ?
		ORDER BY timestamp ASC
	`

	rows, err := s.conn.Query(ctx, query, start.UTC(), end.UTC())
	if err != nil {
		return nil, fmt.Errorf("query snapshots by time range: %w", err)
	}
	defer rows.Close()

	return scanSnapshots(rows)
}

// exists checks if a snapshot with the given timestamp exists.
func (s *SnapshotStore) exists(ctx context.Context, ts time.Time) (bool, error) {
	var count uint64
	err := s.conn.QueryRow(ctx, `SELECT count(*) FROM analysis_history WHERE timestamp = ?`, ts.UTC()).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// scanSnapshots scans multiple rows.
func scanSnapshots(rows chRows) ([]*domain.MarketSnapshot, error) {
	var snapshots []*domain.MarketSnapshot

	for rows.Next() {
		var snap domain.MarketSnapshot
		var ts time.Time
		var verdict, prev string

		err := rows.Scan(
			&ts, &snap.UnderlyingPrice, &verdict, &snap.Confidence,
			&snap.VIX, &snap.IVSkew, &snap.MaxPain,
			&snap.CallOIChange, &snap.PutOIChange, &snap.ATMCallOIChange, &snap.ATMPutOIChange,
			&snap.FuturesOIChange, &snap.FuturesBasis, &prev,
		)
		if err != nil {
			return nil, fmt.Errorf("scan snapshot row: %w", err)
		}

		snap.Timestamp = ts.UTC()
		snap.Verdict = domain.ParseVerdict(verdict)
		snap.PrevVerdict = domain.ParseVerdict(prev)
		snapshots = append(snapshots, &snap)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate snapshot rows: %w", err)
	}

	return snapshots, nil
}
