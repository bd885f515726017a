package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"option-replay-lab/internal/domain"
	"option-replay-lab/internal/storage"
)

// QuoteStore implements storage.QuoteStore using PostgreSQL.
type QuoteStore struct {
	pool *Pool
}

// NewQuoteStore creates a new QuoteStore.
func NewQuoteStore(pool *Pool) *QuoteStore {
	return &QuoteStore{pool: pool}
}

// Compile-time interface check.
var _ storage.QuoteStore = (*QuoteStore)(nil)

// InsertBulk adds multiple quotes atomically using COPY. Fails entire batch on any duplicate.
func (s *QuoteStore) InsertBulk(ctx context.Context, quotes []*domain.OptionQuote) error {
	if len(quotes) == 0 {
		return nil
	}

	rows := make([][]any, len(quotes))
	for i, q := range quotes {
		if q == nil || q.Timestamp.IsZero() || !q.Type.Valid() {
			return storage.ErrInvalidInput
		}
		rows[i] = []any{q.Timestamp, q.Strike, string(q.Type), q.LTP}
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.CopyFrom(ctx,
		pgx.Identifier{"option_quotes"},
		[]string{"timestamp", "strike_price", "option_type", "ltp"},
		pgx.CopyFromRows(rows),
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("copy option quotes: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}

	return nil
}

// GetByDay retrieves all quotes of a day, ordered by timestamp, strike, option_type ASC.
func (s *QuoteStore) GetByDay(ctx context.Context, day string) (_ []*domain.OptionQuote, err error) {
	defer observe("quotes_by_day", time.Now(), &err)

	start, end, err := dayBounds(day)
	if err != nil {
		return nil, err
	}

	query := `
		SELECT timestamp, strike_price, option_type, ltp
		FROM option_quotes
		WHERE timestamp >= $1 AND timestamp < $2
		ORDER BY timestamp ASC, strike_price ASC, option_type ASC
	`

	rows, err := s.pool.Query(ctx, query, start, end)
	if err != nil {
		return nil, fmt.Errorf("get option quotes by day: %w", err)
	}
	defer rows.Close()

	var quotes []*domain.OptionQuote
	for rows.Next() {
		var q domain.OptionQuote
		var ot string
		if err := rows.Scan(&q.Timestamp, &q.Strike, &ot, &q.LTP); err != nil {
			return nil, fmt.Errorf("scan option quote row: %w", err)
		}
		q.Type = domain.OptionType(ot)
		quotes = append(quotes, &q)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate option quote rows: %w", err)
	}

	return quotes, nil
}
