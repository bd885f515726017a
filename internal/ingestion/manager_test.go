package ingestion

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"option-replay-lab/internal/domain"
	"option-replay-lab/internal/feed"
	"option-replay-lab/internal/storage"
	"option-replay-lab/internal/storage/memory"
)

// orderValidatingQuoteStore wraps a QuoteStore and validates ordering in InsertBulk.
type orderValidatingQuoteStore struct {
	storage.QuoteStore
}

func (s *orderValidatingQuoteStore) InsertBulk(ctx context.Context, quotes []*domain.OptionQuote) error {
	if err := ValidateQuoteOrdering(quotes); err != nil {
		return err
	}
	return s.QuoteStore.InsertBulk(ctx, quotes)
}

const snapshotsCSV = "timestamp,spot_price,verdict,signal_confidence\n" +
	"2024-03-01 11:05:00,22110,Bulls Winning,70\n" +
	"2024-03-01 11:00:00,22100,Slightly Bullish,66\n" +
	"2024-03-04 11:00:00,22200,Bears Winning,72\n" +
	"2024-03-04 11:00:00,22200,Bears Winning,72\n" +
	"not-a-time,22200,Bears Winning,72\n"

const quotesCSV = "timestamp,strike_price,ce_ltp,pe_ltp\n" +
	"2024-03-01 11:01:00,22100,110,98\n" +
	"2024-03-01 11:00:00,22100,108,99\n" +
	"2024-03-01 11:00:00,22050,130,80\n" +
	"2024-03-04 11:00:00,22200,120,90\n"

func newTestManager(quotes storage.QuoteStore) (*Manager, *memory.SnapshotStore, *memory.IngestProgressStore) {
	snaps := memory.NewSnapshotStore()
	progress := memory.NewIngestProgressStore()
	if quotes == nil {
		quotes = memory.NewQuoteStore()
	}
	mgr := NewManager(ManagerOptions{
		SnapshotStore: snaps,
		QuoteStore:    quotes,
		ProgressStore: progress,
	})
	mgr.now = func() time.Time { return time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC) }
	return mgr, snaps, progress
}

func TestManager_IngestSnapshots(t *testing.T) {
	mgr, snaps, progress := newTestManager(nil)
	ctx := context.Background()

	res, err := mgr.Ingest(ctx, "analysis_history.csv", storage.FeedSnapshots, feed.FormatCSV, []byte(snapshotsCSV))
	if err != nil {
		t.Fatalf("Ingest failed: %v", err)
	}

	if res.Records != 5 {
		t.Errorf("expected 5 records, got %d", res.Records)
	}
	if res.Skipped != 1 {
		t.Errorf("expected 1 skipped, got %d", res.Skipped)
	}
	if res.Duplicates != 1 {
		t.Errorf("expected 1 duplicate, got %d", res.Duplicates)
	}
	if res.Rows != 3 {
		t.Errorf("expected 3 rows, got %d", res.Rows)
	}

	got, err := snaps.GetByTimeRange(ctx, base.Add(-time.Hour), base.Add(96*time.Hour))
	if err != nil {
		t.Fatalf("GetByTimeRange failed: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 stored snapshots, got %d", len(got))
	}
	if !got[0].Timestamp.Equal(base) {
		t.Errorf("expected first snapshot at %v, got %v", base, got[0].Timestamp)
	}

	files, err := progress.List(ctx)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(files) != 1 || files[0].Digest != res.Digest || files[0].Rows != 3 {
		t.Errorf("unexpected progress records: %+v", files)
	}
}

func TestManager_IngestQuotes_Ordering(t *testing.T) {
	// Validating store rejects unordered batches; Manager must sort first
	store := &orderValidatingQuoteStore{QuoteStore: memory.NewQuoteStore()}
	mgr, _, _ := newTestManager(store)
	ctx := context.Background()

	res, err := mgr.Ingest(ctx, "option_quotes.csv", storage.FeedQuotes, feed.FormatCSV, []byte(quotesCSV))
	if err != nil {
		t.Fatalf("Ingest failed: %v (Manager must sort before InsertBulk)", err)
	}
	if res.Rows != 8 {
		t.Errorf("expected 8 quotes (two sides per row), got %d", res.Rows)
	}

	day, err := store.GetByDay(ctx, "2024-03-01")
	if err != nil {
		t.Fatalf("GetByDay failed: %v", err)
	}
	if len(day) != 6 {
		t.Fatalf("expected 6 quotes on 2024-03-01, got %d", len(day))
	}
	if err := ValidateQuoteOrdering(day); err != nil {
		t.Errorf("stored quotes out of order: %v", err)
	}
}

func TestManager_AlreadyIngested(t *testing.T) {
	mgr, _, _ := newTestManager(nil)
	ctx := context.Background()

	first, err := mgr.Ingest(ctx, "quotes.csv", storage.FeedQuotes, feed.FormatCSV, []byte(quotesCSV))
	if err != nil {
		t.Fatalf("first Ingest failed: %v", err)
	}

	second, err := mgr.Ingest(ctx, "copy-of-quotes.csv", storage.FeedQuotes, feed.FormatCSV, []byte(quotesCSV))
	if err != nil {
		t.Fatalf("second Ingest failed: %v", err)
	}
	if !second.AlreadyIngested {
		t.Error("expected identical content to be reported as already ingested")
	}
	if second.Digest != first.Digest {
		t.Errorf("digest mismatch: %s vs %s", second.Digest, first.Digest)
	}
	if second.Rows != 0 {
		t.Errorf("expected no rows on re-ingest, got %d", second.Rows)
	}
}

func TestManager_ExistingDaySkipped(t *testing.T) {
	mgr, _, _ := newTestManager(nil)
	ctx := context.Background()

	if _, err := mgr.Ingest(ctx, "a.csv", storage.FeedQuotes, feed.FormatCSV, []byte(quotesCSV)); err != nil {
		t.Fatalf("first Ingest failed: %v", err)
	}

	// Different content overlapping 2024-03-04
	overlap := "timestamp,strike_price,ce_ltp,pe_ltp\n" +
		"2024-03-04 11:00:00,22200,120,90\n" +
		"2024-03-05 11:00:00,22300,125,95\n"
	res, err := mgr.Ingest(ctx, "b.csv", storage.FeedQuotes, feed.FormatCSV, []byte(overlap))
	if err != nil {
		t.Fatalf("overlapping Ingest failed: %v", err)
	}
	if res.DaysExisting != 1 {
		t.Errorf("expected 1 existing day, got %d", res.DaysExisting)
	}
	if res.Rows != 2 {
		t.Errorf("expected 2 new rows, got %d", res.Rows)
	}
}

func TestManager_UnknownKind(t *testing.T) {
	mgr, _, _ := newTestManager(nil)

	_, err := mgr.Ingest(context.Background(), "x.csv", "trades", feed.FormatCSV, []byte(quotesCSV))
	if !errors.Is(err, ErrUnknownKind) {
		t.Errorf("expected ErrUnknownKind, got %v", err)
	}
}

func TestKindOf(t *testing.T) {
	tests := []struct {
		path string
		want string
		err  bool
	}{
		{"data/option_quotes_march.csv", storage.FeedQuotes, false},
		{"Quotes.jsonl", storage.FeedQuotes, false},
		{"analysis_history.csv", storage.FeedSnapshots, false},
		{"snapshots-2024.ndjson", storage.FeedSnapshots, false},
		{"trades.csv", "", true},
	}

	for _, tt := range tests {
		got, err := KindOf(tt.path)
		if tt.err {
			if !errors.Is(err, ErrUnknownKind) {
				t.Errorf("KindOf(%q): expected ErrUnknownKind, got %v", tt.path, err)
			}
			continue
		}
		if err != nil || got != tt.want {
			t.Errorf("KindOf(%q) = %q, %v; want %q", tt.path, got, err, tt.want)
		}
	}
}

func TestManager_IngestDir(t *testing.T) {
	dir := t.TempDir()
	files := map[string]string{
		"option_quotes.csv":    quotesCSV,
		"analysis_history.csv": snapshotsCSV,
		"README.txt":           "not a feed",
		"trades.csv":           "timestamp\n",
	}
	for name, body := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	mgr, _, _ := newTestManager(nil)
	results, err := mgr.IngestDir(context.Background(), dir)
	if err != nil {
		t.Fatalf("IngestDir failed: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results[0].Kind != storage.FeedSnapshots || results[1].Kind != storage.FeedQuotes {
		t.Errorf("expected snapshots before quotes, got %s then %s", results[0].Kind, results[1].Kind)
	}

	// Second pass loads nothing
	again, err := mgr.IngestDir(context.Background(), dir)
	if err != nil {
		t.Fatalf("second IngestDir failed: %v", err)
	}
	for _, r := range again {
		if !r.AlreadyIngested {
			t.Errorf("%s: expected already ingested", r.Path)
		}
	}
}
