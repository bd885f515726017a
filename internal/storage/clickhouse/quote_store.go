package clickhouse

import (
	"context"
	"fmt"
	"time"

	"option-replay-lab/internal/domain"
	"option-replay-lab/internal/storage"
)

// QuoteStore implements storage.QuoteStore using ClickHouse.
// Suited to multi-year quote histories; MergeTree does not enforce keys, so
// duplicates are checked before each batch.
type QuoteStore struct {
	conn *Conn
}

// NewQuoteStore creates a new QuoteStore.
func NewQuoteStore(conn *Conn) *QuoteStore {
	return &QuoteStore{conn: conn}
}

// Compile-time interface check.
var _ storage.QuoteStore = (*QuoteStore)(nil)

type quoteKey struct {
	ts     int64
	strike float64
	ot     domain.OptionType
}

// InsertBulk adds multiple quotes. Fails entire batch on duplicate (timestamp, strike, option_type).
func (s *QuoteStore) InsertBulk(ctx context.Context, quotes []*domain.OptionQuote) error {
	if len(quotes) == 0 {
		return nil
	}

	// Check for intra-batch duplicates and collect touched days
	seen := make(map[quoteKey]struct{}, len(quotes))
	days := make(map[string]struct{})
	for _, q := range quotes {
		if q == nil || q.Timestamp.IsZero() || !q.Type.Valid() {
			return storage.ErrInvalidInput
		}
		k := quoteKey{q.Timestamp.UnixMilli(), q.Strike, q.Type}
		if _, exists := seen[k]; exists {
			return storage.ErrDuplicateKey
		}
		seen[k] = struct{}{}
		days[domain.DayOf(q.Timestamp)] = struct{}{}
	}

	// Check for duplicates against existing rows, one query per day
	for day := range days {
		existing, err := s.GetByDay(ctx, day)
		if err != nil {
			return fmt.Errorf("check exists: %w", err)
		}
		for _, q := range existing {
			if _, dup := seen[quoteKey{q.Timestamp.UnixMilli(), q.Strike, q.Type}]; dup {
				return storage.ErrDuplicateKey
			}
		}
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO option_quotes (
			timestamp, strike_price, option_type, ltp
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, q := range quotes {
		if err := batch.Append(q.Timestamp.UTC(), q.Strike, string(q.Type), q.LTP); err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
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
		WHERE timestamp >= ? AND timestamp < ?
		ORDER BY timestamp ASC, strike_price ASC, option_type ASC
	`

	rows, err := s.conn.Query(ctx, query, start, end)
	if err != nil {
		return nil, fmt.Errorf("query quotes by day: %w", err)
	}
	defer rows.Close()

	return scanQuotes(rows)
}

// scanQuotes scans multiple rows.
func scanQuotes(rows chRows) ([]*domain.OptionQuote, error) {
	var quotes []*domain.OptionQuote

	for rows.Next() {
		var q domain.OptionQuote
		var ts time.Time
		var ot string

		if err := rows.Scan(&ts, &q.Strike, &ot, &q.LTP); err != nil {
			return nil, fmt.Errorf("scan option quote row: %w", err)
		}

		q.Timestamp = ts.UTC()
		q.Type = domain.OptionType(ot)
		quotes = append(quotes, &q)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate option quote rows: %w", err)
	}

	return quotes, nil
}
