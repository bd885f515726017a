package feed

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"option-replay-lab/internal/domain"
)

// quoteRecord is the JSON-lines shape of a quote row. A row carries either
// both sides (ce_ltp/pe_ltp) or a single side (option_type/ltp).
type quoteRecord struct {
	Timestamp  string   `json:"timestamp"`
	Strike     *float64 `json:"strike_price"`
	CallLTP    *float64 `json:"ce_ltp"`
	PutLTP     *float64 `json:"pe_ltp"`
	OptionType string   `json:"option_type"`
	LTP        *float64 `json:"ltp"`
}

// ReadQuotes decodes a quote feed, ordered by timestamp, strike, option type.
// Two-sided rows are split into a CALL and a PUT quote. Sides without a
// positive price are dropped as "no quote" and not counted as malformed.
func ReadQuotes(r io.Reader, format Format) ([]*domain.OptionQuote, Stats, error) {
	var (
		quotes []*domain.OptionQuote
		stats  Stats
		err    error
	)

	switch format {
	case FormatCSV:
		quotes, stats, err = readQuotesCSV(r)
	case FormatJSONL:
		quotes, stats, err = readQuotesJSONL(r)
	default:
		return nil, Stats{}, fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
	if err != nil {
		return nil, stats, err
	}

	sort.SliceStable(quotes, func(i, j int) bool {
		a, b := quotes[i], quotes[j]
		if !a.Timestamp.Equal(b.Timestamp) {
			return a.Timestamp.Before(b.Timestamp)
		}
		if a.Strike != b.Strike {
			return a.Strike < b.Strike
		}
		return a.Type < b.Type
	})
	stats.Rows = len(quotes)
	return quotes, stats, nil
}

func readQuotesCSV(r io.Reader) ([]*domain.OptionQuote, Stats, error) {
	recs, err := newCSVRecords(r, "timestamp", "strike_price")
	if err != nil {
		return nil, Stats{}, err
	}
	twoSided := recs.has("ce_ltp") || recs.has("pe_ltp")
	if !twoSided && !(recs.has("option_type") && recs.has("ltp")) {
		return nil, Stats{}, fmt.Errorf("csv header needs ce_ltp/pe_ltp or option_type/ltp")
	}

	var stats Stats
	var quotes []*domain.OptionQuote
	for {
		rec, err := recs.next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil && !errors.Is(err, ErrMalformedRecord) {
			return nil, stats, err
		}
		stats.Records++
		if err != nil {
			stats.Skipped++
			continue
		}

		row := quoteRecord{Timestamp: recs.get(rec, "timestamp")}
		fields := []struct {
			name string
			dst  **float64
		}{
			{"strike_price", &row.Strike},
			{"ce_ltp", &row.CallLTP},
			{"pe_ltp", &row.PutLTP},
			{"ltp", &row.LTP},
		}
		bad := false
		for _, f := range fields {
			if *f.dst, err = parseOptionalFloat(f.name, recs.get(rec, f.name)); err != nil {
				bad = true
				break
			}
		}
		row.OptionType = recs.get(rec, "option_type")

		var out []*domain.OptionQuote
		if !bad {
			out, err = row.quotes()
		}
		if bad || err != nil {
			stats.Skipped++
			continue
		}
		quotes = append(quotes, out...)
	}
	return quotes, stats, nil
}

func readQuotesJSONL(r io.Reader) ([]*domain.OptionQuote, Stats, error) {
	var stats Stats
	var quotes []*domain.OptionQuote

	err := scanLines(r, func(line []byte) {
		stats.Records++
		var rec quoteRecord
		if err := json.Unmarshal(line, &rec); err != nil {
			stats.Skipped++
			return
		}
		out, err := rec.quotes()
		if err != nil {
			stats.Skipped++
			return
		}
		quotes = append(quotes, out...)
	})
	return quotes, stats, err
}

// quotes converts a decoded row into zero, one or two quotes.
func (q quoteRecord) quotes() ([]*domain.OptionQuote, error) {
	ts, err := ParseTimestamp(q.Timestamp)
	if err != nil {
		return nil, err
	}
	if q.Strike == nil || *q.Strike <= 0 {
		return nil, fmt.Errorf("%w: strike_price", ErrMalformedRecord)
	}

	var out []*domain.OptionQuote
	add := func(ot domain.OptionType, ltp *float64) {
		if ltp != nil && *ltp > 0 {
			out = append(out, &domain.OptionQuote{Timestamp: ts, Strike: *q.Strike, Type: ot, LTP: *ltp})
		}
	}

	if q.OptionType != "" {
		ot, err := parseOptionType(q.OptionType)
		if err != nil {
			return nil, err
		}
		add(ot, q.LTP)
		return out, nil
	}

	add(domain.OptionCall, q.CallLTP)
	add(domain.OptionPut, q.PutLTP)
	return out, nil
}

// parseOptionType accepts CALL/PUT and the exchange suffixes CE/PE.
func parseOptionType(s string) (domain.OptionType, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "CALL", "CE", "C":
		return domain.OptionCall, nil
	case "PUT", "PE", "P":
		return domain.OptionPut, nil
	}
	return "", fmt.Errorf("%w: option_type %q", ErrMalformedRecord, s)
}
