package feed

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"option-replay-lab/internal/domain"
)

// snapshotRecord is the JSON-lines shape of an analysis_history row.
type snapshotRecord struct {
	Timestamp       string   `json:"timestamp"`
	SpotPrice       *float64 `json:"spot_price"`
	Verdict         string   `json:"verdict"`
	Confidence      *float64 `json:"signal_confidence"`
	VIX             *float64 `json:"vix"`
	IVSkew          *float64 `json:"iv_skew"`
	MaxPain         *float64 `json:"max_pain"`
	CallOIChange    *float64 `json:"call_oi_change"`
	PutOIChange     *float64 `json:"put_oi_change"`
	ATMCallOIChange *float64 `json:"atm_call_oi_change"`
	ATMPutOIChange  *float64 `json:"atm_put_oi_change"`
	FuturesOIChange *float64 `json:"futures_oi_change"`
	FuturesBasis    *float64 `json:"futures_basis"`
	PrevVerdict     string   `json:"prev_verdict"`
}

// ReadSnapshots decodes a snapshot feed, ordered by timestamp.
func ReadSnapshots(r io.Reader, format Format) ([]*domain.MarketSnapshot, Stats, error) {
	var (
		snaps []*domain.MarketSnapshot
		stats Stats
		err   error
	)

	switch format {
	case FormatCSV:
		snaps, stats, err = readSnapshotsCSV(r)
	case FormatJSONL:
		snaps, stats, err = readSnapshotsJSONL(r)
	default:
		return nil, Stats{}, fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
	if err != nil {
		return nil, stats, err
	}

	sort.SliceStable(snaps, func(i, j int) bool {
		return snaps[i].Timestamp.Before(snaps[j].Timestamp)
	})
	stats.Rows = len(snaps)
	return snaps, stats, nil
}

func readSnapshotsCSV(r io.Reader) ([]*domain.MarketSnapshot, Stats, error) {
	recs, err := newCSVRecords(r, "timestamp", "spot_price")
	if err != nil {
		return nil, Stats{}, err
	}

	var stats Stats
	var snaps []*domain.MarketSnapshot
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

		snap, err := snapshotFromCSV(recs, rec)
		if err != nil {
			stats.Skipped++
			continue
		}
		snaps = append(snaps, snap)
	}
	return snaps, stats, nil
}

func snapshotFromCSV(recs *csvRecords, rec []string) (*domain.MarketSnapshot, error) {
	ts, err := ParseTimestamp(recs.get(rec, "timestamp"))
	if err != nil {
		return nil, err
	}
	spot, err := parseFloat("spot_price", recs.get(rec, "spot_price"))
	if err != nil {
		return nil, err
	}

	snap := &domain.MarketSnapshot{
		Timestamp:       ts,
		UnderlyingPrice: spot,
		Verdict:         domain.ParseVerdict(strings.TrimSpace(recs.get(rec, "verdict"))),
		PrevVerdict:     domain.ParseVerdict(strings.TrimSpace(recs.get(rec, "prev_verdict"))),
	}

	conf, err := parseOptionalFloat("signal_confidence", recs.get(rec, "signal_confidence"))
	if err != nil {
		return nil, err
	}
	if conf != nil {
		snap.Confidence = *conf
	}

	optional := []struct {
		name string
		dst  **float64
	}{
		{"vix", &snap.VIX},
		{"iv_skew", &snap.IVSkew},
		{"max_pain", &snap.MaxPain},
		{"call_oi_change", &snap.CallOIChange},
		{"put_oi_change", &snap.PutOIChange},
		{"atm_call_oi_change", &snap.ATMCallOIChange},
		{"atm_put_oi_change", &snap.ATMPutOIChange},
		{"futures_oi_change", &snap.FuturesOIChange},
		{"futures_basis", &snap.FuturesBasis},
	}
	for _, o := range optional {
		if *o.dst, err = parseOptionalFloat(o.name, recs.get(rec, o.name)); err != nil {
			return nil, err
		}
	}

	return snap, nil
}

func readSnapshotsJSONL(r io.Reader) ([]*domain.MarketSnapshot, Stats, error) {
	var stats Stats
	var snaps []*domain.MarketSnapshot

	err := scanLines(r, func(line []byte) {
		stats.Records++
		var rec snapshotRecord
		if err := json.Unmarshal(line, &rec); err != nil || rec.SpotPrice == nil {
			stats.Skipped++
			return
		}
		ts, err := ParseTimestamp(rec.Timestamp)
		if err != nil {
			stats.Skipped++
			return
		}

		snap := &domain.MarketSnapshot{
			Timestamp:       ts,
			UnderlyingPrice: *rec.SpotPrice,
			Verdict:         domain.ParseVerdict(strings.TrimSpace(rec.Verdict)),
			VIX:             rec.VIX,
			IVSkew:          rec.IVSkew,
			MaxPain:         rec.MaxPain,
			CallOIChange:    rec.CallOIChange,
			PutOIChange:     rec.PutOIChange,
			ATMCallOIChange: rec.ATMCallOIChange,
			ATMPutOIChange:  rec.ATMPutOIChange,
			FuturesOIChange: rec.FuturesOIChange,
			FuturesBasis:    rec.FuturesBasis,
			PrevVerdict:     domain.ParseVerdict(strings.TrimSpace(rec.PrevVerdict)),
		}
		if rec.Confidence != nil {
			snap.Confidence = *rec.Confidence
		}
		snaps = append(snaps, snap)
	})
	return snaps, stats, err
}

// scanLines calls fn for every non-blank line.
func scanLines(r io.Reader, fn func(line []byte)) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 4*1024*1024)
	for sc.Scan() {
		line := sc.Bytes()
		if len(strings.TrimSpace(string(line))) == 0 {
			continue
		}
		fn(line)
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("scan jsonl: %w", err)
	}
	return nil
}
