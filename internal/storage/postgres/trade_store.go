package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"option-replay-lab/internal/domain"
	"option-replay-lab/internal/storage"
)

// TradeStore implements storage.TradeStore using PostgreSQL.
type TradeStore struct {
	pool *Pool
}

// NewTradeStore creates a new TradeStore.
func NewTradeStore(pool *Pool) *TradeStore {
	return &TradeStore{pool: pool}
}

// Compile-time interface check.
var _ storage.TradeStore = (*TradeStore)(nil)

const tradeInsertQuery = `
	INSERT INTO resolved_trades (
		trade_id, tag, day, entry_time,
		strike_price, option_type, direction, spot_price,
		entry_premium, exit_premium, exit_reason, exit_time,
		peak_premium, trough_premium, pnl_pct, won,
		first_target_hit, first_target_time, first_target_premium,
		verdict, signal_confidence, vix, iv_skew, max_pain,
		call_oi_change, put_oi_change, futures_oi_change, futures_basis
	) VALUES (
		$1, $2, $3, $4,
		$5, $6, $7, $8,
		$9, $10, $11, $12,
		$13, $14, $15, $16,
		$17, $18, $19,
		$20, $21, $22, $23, $24,
		$25, $26, $27, $28
	)
`

const tradeSelectColumns = `
	trade_id, tag, day, entry_time,
	strike_price, option_type, direction, spot_price,
	entry_premium, exit_premium, exit_reason, exit_time,
	peak_premium, trough_premium, pnl_pct, won,
	first_target_hit, first_target_time, first_target_premium,
	verdict, signal_confidence, vix, iv_skew, max_pain,
	call_oi_change, put_oi_change, futures_oi_change, futures_basis
`

// Insert adds a new trade. Returns ErrDuplicateKey if trade_id exists.
func (s *TradeStore) Insert(ctx context.Context, t *domain.ResolvedTrade) error {
	args, err := tradeArgs(t)
	if err != nil {
		return err
	}

	_, err = s.pool.Exec(ctx, tradeInsertQuery, args...)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert resolved trade: %w", err)
	}

	return nil
}

// InsertBulk adds multiple trades atomically. Fails entire batch on any duplicate.
func (s *TradeStore) InsertBulk(ctx context.Context, trades []*domain.ResolvedTrade) error {
	if len(trades) == 0 {
		return nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, t := range trades {
		args, err := tradeArgs(t)
		if err != nil {
			return err
		}
		_, err = tx.Exec(ctx, tradeInsertQuery, args...)
		if err != nil {
			if isDuplicateKeyError(err) {
				return storage.ErrDuplicateKey
			}
			return fmt.Errorf("insert resolved trade in bulk: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}

	return nil
}

// GetByID retrieves a trade by its ID. Returns ErrNotFound if not exists.
func (s *TradeStore) GetByID(ctx context.Context, tradeID string) (*domain.ResolvedTrade, error) {
	query := `SELECT ` + tradeSelectColumns + ` FROM resolved_trades WHERE trade_id = $1`

	t, err := scanTrade(s.pool.QueryRow(ctx, query, tradeID))
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get resolved trade by id: %w", err)
	}

	return t, nil
}

// GetByTimeRange retrieves trades entered within [start, end] (inclusive),
// ordered by entry time then trade_id.
func (s *TradeStore) GetByTimeRange(ctx context.Context, start, end time.Time) ([]*domain.ResolvedTrade, error) {
	query := `SELECT ` + tradeSelectColumns + `
		FROM resolved_trades
		WHERE entry_time >= $1 AND entry_time <= $2
		ORDER BY entry_time ASC, trade_id ASC
	`

	rows, err := s.pool.Query(ctx, query, start, end)
	if err != nil {
		return nil, fmt.Errorf("get resolved trades by time range: %w", err)
	}
	defer rows.Close()

	var trades []*domain.ResolvedTrade
	for rows.Next() {
		t, err := scanTrade(rows)
		if err != nil {
			return nil, fmt.Errorf("scan resolved trade row: %w", err)
		}
		trades = append(trades, t)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate resolved trade rows: %w", err)
	}

	return trades, nil
}

// tradeArgs flattens a trade and its entry snapshot into insert arguments.
func tradeArgs(t *domain.ResolvedTrade) ([]any, error) {
	if t == nil || t.TradeID == "" {
		return nil, storage.ErrInvalidInput
	}

	e := t.Entry
	dayKey := e.Day
	if dayKey == "" {
		dayKey = domain.DayOf(e.Timestamp)
	}
	day, err := time.Parse(domain.DayLayout, dayKey)
	if err != nil {
		return nil, fmt.Errorf("%w: day %q", storage.ErrInvalidInput, dayKey)
	}

	var (
		verdict    string
		confidence float64
		vix, skew, maxPain, callOI, putOI, futOI, basis *float64
	)
	if snap := e.Snapshot; snap != nil {
		verdict = snap.Verdict.Label
		confidence = snap.Confidence
		vix, skew, maxPain = snap.VIX, snap.IVSkew, snap.MaxPain
		callOI, putOI = snap.CallOIChange, snap.PutOIChange
		futOI, basis = snap.FuturesOIChange, snap.FuturesBasis
	}

	return []any{
		t.TradeID, e.Tag, day, e.Timestamp,
		e.Instrument.Strike, string(e.Instrument.Type), string(e.Direction), e.Spot,
		e.EntryPremium, t.ExitPremium, string(t.ExitReason), t.ExitTime,
		t.PeakPremium, t.TroughPremium, t.PnLPct, t.Won,
		t.FirstTargetHit, t.FirstTargetTime, t.FirstTargetPremium,
		verdict, confidence, vix, skew, maxPain,
		callOI, putOI, futOI, basis,
	}, nil
}

// scanTrade scans a single row into a ResolvedTrade.
// The entry snapshot is rebuilt from the stored feature columns.
func scanTrade(row pgx.Row) (*domain.ResolvedTrade, error) {
	var t domain.ResolvedTrade
	var snap domain.MarketSnapshot
	var day time.Time
	var optionType, direction, exitReason, verdict string

	err := row.Scan(
		&t.TradeID, &t.Entry.Tag, &day, &t.Entry.Timestamp,
		&t.Entry.Instrument.Strike, &optionType, &direction, &t.Entry.Spot,
		&t.Entry.EntryPremium, &t.ExitPremium, &exitReason, &t.ExitTime,
		&t.PeakPremium, &t.TroughPremium, &t.PnLPct, &t.Won,
		&t.FirstTargetHit, &t.FirstTargetTime, &t.FirstTargetPremium,
		&verdict, &snap.Confidence, &snap.VIX, &snap.IVSkew, &snap.MaxPain,
		&snap.CallOIChange, &snap.PutOIChange, &snap.FuturesOIChange, &snap.FuturesBasis,
	)
	if err != nil {
		return nil, err
	}

	t.Entry.Day = day.Format(domain.DayLayout)
	t.Entry.Instrument.Type = domain.OptionType(optionType)
	t.Entry.Direction = domain.Direction(direction)
	t.ExitReason = domain.ExitReason(exitReason)

	snap.Timestamp = t.Entry.Timestamp
	snap.UnderlyingPrice = t.Entry.Spot
	snap.Verdict = domain.ParseVerdict(verdict)
	t.Entry.Snapshot = &snap

	return &t, nil
}
