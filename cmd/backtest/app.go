package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"go.uber.org/zap"

	"option-replay-lab/internal/config"
	"option-replay-lab/internal/domain"
	"option-replay-lab/internal/ingestion"
	"option-replay-lab/internal/logger"
	"option-replay-lab/internal/observability"
	"option-replay-lab/internal/reporting"
	"option-replay-lab/internal/reporting/archive"
	"option-replay-lab/internal/storage"
	"option-replay-lab/internal/storage/backend"
)

// app holds what every subcommand needs.
type app struct {
	cfg     *config.Config
	logger  *zap.Logger
	stores  *backend.Stores
	archive archive.Storage
	metrics *http.Server
}

func setup(ctx context.Context) (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	log, err := newLogger(cfg)
	if err != nil {
		return nil, err
	}

	stores, err := backend.Open(ctx, cfg.Storage, log)
	if err != nil {
		_ = log.Sync()
		return nil, fmt.Errorf("open storage: %w", err)
	}

	sink, err := archive.Open(cfg.Archive)
	if err != nil {
		stores.Close()
		return nil, fmt.Errorf("open archive: %w", err)
	}

	a := &app{cfg: cfg, logger: log, stores: stores, archive: sink}
	a.serveMetrics()

	if err := a.preload(ctx); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func loadConfig() (*config.Config, error) {
	cfg := config.Defaults()
	if cfgFile != "" {
		loaded, err := config.Load(cfgFile)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	if debug {
		return logger.NewWithLevel(true, "debug")
	}
	if cfg.Log.Level != "" {
		return logger.NewWithLevel(cfg.Log.Development, cfg.Log.Level)
	}
	return logger.New(cfg.Log.Development)
}

// serveMetrics exposes Prometheus metrics when enabled. A listen failure is
// logged and does not stop the run.
func (a *app) serveMetrics() {
	if !a.cfg.Metrics.Enabled {
		return
	}
	mux := http.NewServeMux()
	mux.Handle(a.cfg.Metrics.Path, observability.Handler())
	a.metrics = &http.Server{Addr: a.cfg.Metrics.Addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		a.logger.Info("metrics server listening", zap.String("addr", a.cfg.Metrics.Addr), zap.String("path", a.cfg.Metrics.Path))
		if err := a.metrics.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Warn("metrics server stopped", zap.Error(err))
		}
	}()
}

// preload ingests the feed files named on the command line.
func (a *app) preload(ctx context.Context) error {
	if snapshotsPath == "" && quotesPath == "" {
		return nil
	}

	mgr := ingestion.NewManager(ingestion.ManagerOptions{
		SnapshotStore: a.stores.Snapshots,
		QuoteStore:    a.stores.Quotes,
		ProgressStore: a.stores.Ingest,
		Logger:        a.logger,
	})

	for _, src := range []struct{ path, kind string }{
		{snapshotsPath, storage.FeedSnapshots},
		{quotesPath, storage.FeedQuotes},
	} {
		if src.path == "" {
			continue
		}
		if err := ingestPath(ctx, mgr, src.path, src.kind); err != nil {
			return err
		}
	}
	return nil
}

func ingestPath(ctx context.Context, mgr *ingestion.Manager, path, kind string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("feed %s: %w", kind, err)
	}
	if info.IsDir() {
		_, err = mgr.IngestDir(ctx, path)
		return err
	}
	_, err = mgr.IngestFile(ctx, path, kind)
	return err
}

// publish writes report artifacts to --out and to the configured archive.
func (a *app) publish(ctx context.Context, artifacts []reporting.Artifact) error {
	if outDir != "" {
		fs, err := archive.NewLocalFS(outDir)
		if err != nil {
			return err
		}
		if err := archive.Publish(ctx, fs, artifacts, a.logger); err != nil {
			return err
		}
	}
	if a.archive != nil {
		if err := archive.Publish(ctx, a.archive, artifacts, a.logger); err != nil {
			return err
		}
	}
	for _, art := range artifacts {
		a.logger.Info("report written", zap.String("artifact", art.Name), zap.Int("bytes", len(art.Body)))
	}
	return nil
}

func (a *app) Close() {
	if a.metrics != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		_ = a.metrics.Shutdown(ctx)
		cancel()
	}
	a.stores.Close()
	_ = a.logger.Sync()
}

// instrument runs fn and records the command outcome.
func instrument(command string, fn func() error) error {
	start := time.Now()
	err := fn()
	status := "ok"
	if err != nil {
		status = "error"
	}
	observability.RecordRun(command, status, time.Since(start).Seconds())
	return err
}

// parseRange parses --from/--to days. An empty --to means --from.
func parseRange(from, to string) (time.Time, time.Time, error) {
	start, err := time.Parse(domain.DayLayout, from)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid from date (expected YYYY-MM-DD): %w", err)
	}
	if to == "" {
		return start, start, nil
	}
	end, err := time.Parse(domain.DayLayout, to)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid to date (expected YYYY-MM-DD): %w", err)
	}
	if end.Before(start) {
		return time.Time{}, time.Time{}, fmt.Errorf("end date %s is before start date %s", to, from)
	}
	return start, end, nil
}
