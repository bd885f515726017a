// Package ingestion loads snapshot and quote feed files into the stores.
package ingestion

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"option-replay-lab/internal/domain"
	"option-replay-lab/internal/feed"
	"option-replay-lab/internal/idhash"
	"option-replay-lab/internal/observability"
	"option-replay-lab/internal/storage"
)

// ErrUnknownKind is returned when a file's feed kind cannot be determined.
var ErrUnknownKind = errors.New("unknown feed kind")

// Feed file outcomes, also used as metric labels.
const (
	OutcomeLoaded  = "loaded"
	OutcomeSkipped = "already_ingested"
	OutcomeFailed  = "failed"
)

// Manager loads feed files into stores.
// It enforces deterministic ordering and uses the storage layer for duplicate rejection.
type Manager struct {
	snapshotStore storage.SnapshotStore
	quoteStore    storage.QuoteStore
	progressStore storage.IngestProgressStore
	logger        *zap.Logger
	now           func() time.Time
}

// ManagerOptions contains configuration for creating a Manager.
type ManagerOptions struct {
	SnapshotStore storage.SnapshotStore
	QuoteStore    storage.QuoteStore
	ProgressStore storage.IngestProgressStore // optional; without it every file is loaded
	Logger        *zap.Logger
}

// Result describes one ingested file.
type Result struct {
	Path            string
	Kind            string // storage.FeedSnapshots | storage.FeedQuotes
	Digest          string
	Records         int // data records read
	Rows            int // rows inserted
	Skipped         int // malformed records
	Duplicates      int // rows repeating a key within the file
	DaysExisting    int // day batches already present in the store
	AlreadyIngested bool
}

// NewManager creates a new ingestion manager with the provided stores.
func NewManager(opts ManagerOptions) *Manager {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		snapshotStore: opts.SnapshotStore,
		quoteStore:    opts.QuoteStore,
		progressStore: opts.ProgressStore,
		logger:        logger,
		now:           func() time.Time { return time.Now().UTC() },
	}
}

// KindOf infers the feed kind from a file name: names mentioning quotes or
// options are quote feeds, names mentioning snapshots or analysis are snapshot feeds.
func KindOf(path string) (string, error) {
	name := strings.ToLower(filepath.Base(path))
	switch {
	case strings.Contains(name, "quote"), strings.Contains(name, "option"):
		return storage.FeedQuotes, nil
	case strings.Contains(name, "snapshot"), strings.Contains(name, "analysis"):
		return storage.FeedSnapshots, nil
	}
	return "", fmt.Errorf("%w: %s", ErrUnknownKind, path)
}

// IngestFile reads one feed file and stores its rows.
// A file whose content digest was already ingested is not read again.
func (m *Manager) IngestFile(ctx context.Context, path, kind string) (*Result, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read feed file: %w", err)
	}
	format, err := feed.DetectFormat(path)
	if err != nil {
		return nil, err
	}
	return m.Ingest(ctx, path, kind, format, data)
}

// Ingest stores the rows of one feed file's content.
func (m *Manager) Ingest(ctx context.Context, path, kind string, format feed.Format, data []byte) (*Result, error) {
	res := &Result{Path: path, Kind: kind, Digest: idhash.ComputeFileDigest(data)}

	if m.progressStore != nil {
		done, err := m.progressStore.IsIngested(ctx, res.Digest)
		if err != nil {
			return nil, err
		}
		if done {
			res.AlreadyIngested = true
			observability.RecordFeedFile(kind, OutcomeSkipped, 0, 0)
			m.logger.Info("feed file already ingested", zap.String("path", path), zap.String("digest", res.Digest))
			return res, nil
		}
	}

	var err error
	switch kind {
	case storage.FeedSnapshots:
		err = m.ingestSnapshots(ctx, format, data, res)
	case storage.FeedQuotes:
		err = m.ingestQuotes(ctx, format, data, res)
	default:
		err = fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
	if err != nil {
		observability.RecordFeedFile(kind, OutcomeFailed, 0, res.Skipped)
		return nil, fmt.Errorf("ingest %s: %w", path, err)
	}

	if m.progressStore != nil {
		err := m.progressStore.MarkIngested(ctx, &storage.IngestedFile{
			Digest:     res.Digest,
			Path:       path,
			Kind:       kind,
			Rows:       res.Rows,
			Skipped:    res.Skipped,
			IngestedAt: m.now(),
		})
		if err != nil && !errors.Is(err, storage.ErrDuplicateKey) {
			return nil, err
		}
	}

	observability.RecordFeedFile(kind, OutcomeLoaded, res.Rows, res.Skipped)
	m.logger.Info("feed file ingested",
		zap.String("path", path),
		zap.String("kind", kind),
		zap.Int("records", res.Records),
		zap.Int("rows", res.Rows),
		zap.Int("skipped", res.Skipped),
		zap.Int("duplicates", res.Duplicates),
		zap.Int("days_existing", res.DaysExisting),
	)
	return res, nil
}

// IngestDir ingests every recognized feed file in dir, in name order.
// Files of unknown format or kind are logged and passed over.
func (m *Manager) IngestDir(ctx context.Context, dir string) ([]*Result, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read feed dir: %w", err)
	}

	var names []string
	for _, e := range entries {
		if !e.IsDir() {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	// Snapshots first, so a partially ingested directory still replays
	// whole days once quotes arrive.
	var snapshotFiles, quoteFiles []string
	for _, name := range names {
		path := filepath.Join(dir, name)
		if _, err := feed.DetectFormat(path); err != nil {
			m.logger.Debug("skipping non-feed file", zap.String("path", path))
			continue
		}
		kind, err := KindOf(path)
		if err != nil {
			m.logger.Warn("skipping feed file of unknown kind", zap.String("path", path))
			continue
		}
		if kind == storage.FeedSnapshots {
			snapshotFiles = append(snapshotFiles, path)
		} else {
			quoteFiles = append(quoteFiles, path)
		}
	}

	var results []*Result
	for _, group := range []struct {
		kind  string
		files []string
	}{{storage.FeedSnapshots, snapshotFiles}, {storage.FeedQuotes, quoteFiles}} {
		for _, path := range group.files {
			if err := ctx.Err(); err != nil {
				return results, err
			}
			res, err := m.IngestFile(ctx, path, group.kind)
			if err != nil {
				return results, err
			}
			results = append(results, res)
		}
	}
	return results, nil
}

func (m *Manager) ingestSnapshots(ctx context.Context, format feed.Format, data []byte, res *Result) error {
	if m.snapshotStore == nil {
		return fmt.Errorf("snapshot store not configured")
	}

	snaps, stats, err := feed.ReadSnapshots(bytes.NewReader(data), format)
	if err != nil {
		return err
	}
	res.Records, res.Skipped = stats.Records, stats.Skipped

	// Enforce deterministic ordering
	SortSnapshots(snaps)
	snaps, res.Duplicates = DedupeSnapshots(snaps)

	// One batch per day: a day already present is left untouched
	for _, batch := range snapshotsByDay(snaps) {
		err := m.snapshotStore.InsertBulk(ctx, batch)
		if errors.Is(err, storage.ErrDuplicateKey) {
			res.DaysExisting++
			continue
		}
		if err != nil {
			return err
		}
		res.Rows += len(batch)
	}
	return nil
}

func (m *Manager) ingestQuotes(ctx context.Context, format feed.Format, data []byte, res *Result) error {
	if m.quoteStore == nil {
		return fmt.Errorf("quote store not configured")
	}

	quotes, stats, err := feed.ReadQuotes(bytes.NewReader(data), format)
	if err != nil {
		return err
	}
	res.Records, res.Skipped = stats.Records, stats.Skipped

	SortQuotes(quotes)
	quotes, res.Duplicates = DedupeQuotes(quotes)

	for _, batch := range quotesByDay(quotes) {
		err := m.quoteStore.InsertBulk(ctx, batch)
		if errors.Is(err, storage.ErrDuplicateKey) {
			res.DaysExisting++
			continue
		}
		if err != nil {
			return err
		}
		res.Rows += len(batch)
	}
	return nil
}

// snapshotsByDay splits sorted snapshots into per-day batches.
func snapshotsByDay(snaps []*domain.MarketSnapshot) [][]*domain.MarketSnapshot {
	var out [][]*domain.MarketSnapshot
	start := 0
	for i := 1; i <= len(snaps); i++ {
		if i == len(snaps) || domain.DayOf(snaps[i].Timestamp) != domain.DayOf(snaps[start].Timestamp) {
			out = append(out, snaps[start:i])
			start = i
		}
	}
	return out
}

// quotesByDay splits sorted quotes into per-day batches.
func quotesByDay(quotes []*domain.OptionQuote) [][]*domain.OptionQuote {
	var out [][]*domain.OptionQuote
	start := 0
	for i := 1; i <= len(quotes); i++ {
		if i == len(quotes) || domain.DayOf(quotes[i].Timestamp) != domain.DayOf(quotes[start].Timestamp) {
			out = append(out, quotes[start:i])
			start = i
		}
	}
	return out
}
