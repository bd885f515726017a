package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"option-replay-lab/internal/config"
	"option-replay-lab/internal/ingestion"
	"option-replay-lab/internal/logger"
	"option-replay-lab/internal/observability"
	"option-replay-lab/internal/storage"
	"option-replay-lab/internal/storage/backend"
)

var (
	cfgFile string
	debug   bool
	kind    string
)

var rootCmd = &cobra.Command{
	Use:   "ingest [path...]",
	Short: "Load snapshot and quote feed files into storage",
	Long: `ingest loads CSV or JSON-lines feed exports into the configured storage
backend. Directories are scanned for feed files; the feed kind is taken from
--kind or inferred from each file name. Files already ingested (by content
digest) are skipped, so re-running over the same directory is safe.`,
	Args:         cobra.MinimumNArgs(1),
	SilenceUsage: true,
	RunE:         runIngest,
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List ingested feed files",
	Args:  cobra.NoArgs,
	RunE:  runList,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path (defaults when empty)")
	rootCmd.PersistentFlags().BoolVarP(&debug, "debug", "d", false, "enable debug logging")
	rootCmd.Flags().StringVar(&kind, "kind", "", "feed kind for file arguments: snapshots or quotes (inferred when empty)")
	rootCmd.AddCommand(listCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func open(ctx context.Context) (*backend.Stores, *zap.Logger, error) {
	cfg := config.Defaults()
	if cfgFile != "" {
		loaded, err := config.Load(cfgFile)
		if err != nil {
			return nil, nil, err
		}
		cfg = loaded
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}

	var (
		log *zap.Logger
		err error
	)
	if debug {
		log, err = logger.NewWithLevel(true, "debug")
	} else {
		log, err = logger.New(cfg.Log.Development)
	}
	if err != nil {
		return nil, nil, err
	}

	if cfg.Storage.Backend == config.BackendMemory || cfg.Storage.Backend == "" {
		log.Warn("memory backend selected: ingested rows are discarded on exit")
	}

	stores, err := backend.Open(ctx, cfg.Storage, log)
	if err != nil {
		_ = log.Sync()
		return nil, nil, fmt.Errorf("open storage: %w", err)
	}
	return stores, log, nil
}

func runIngest(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	start := time.Now()
	err := ingest(ctx, cmd, args)
	status := "ok"
	if err != nil {
		status = "error"
	}
	observability.RecordRun("ingest", status, time.Since(start).Seconds())
	return err
}

func ingest(ctx context.Context, cmd *cobra.Command, args []string) error {
	switch kind {
	case "", storage.FeedSnapshots, storage.FeedQuotes:
	default:
		return fmt.Errorf("unknown --kind %q (want %s or %s)", kind, storage.FeedSnapshots, storage.FeedQuotes)
	}

	stores, log, err := open(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()
	defer stores.Close()

	mgr := ingestion.NewManager(ingestion.ManagerOptions{
		SnapshotStore: stores.Snapshots,
		QuoteStore:    stores.Quotes,
		ProgressStore: stores.Ingest,
		Logger:        log,
	})

	var results []*ingestion.Result
	for _, path := range args {
		info, err := os.Stat(path)
		if err != nil {
			return err
		}
		if info.IsDir() {
			res, err := mgr.IngestDir(ctx, path)
			results = append(results, res...)
			if err != nil {
				return err
			}
			continue
		}

		k := kind
		if k == "" {
			if k, err = ingestion.KindOf(path); err != nil {
				return err
			}
		}
		res, err := mgr.IngestFile(ctx, path, k)
		if err != nil {
			return err
		}
		results = append(results, res)
	}

	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "%-10s %8s %8s %6s %6s  %s\n", "KIND", "ROWS", "SKIPPED", "DUPS", "DAYS=", "PATH")
	for _, r := range results {
		if r.AlreadyIngested {
			fmt.Fprintf(w, "%-10s %8s %8s %6s %6s  %s (already ingested)\n", r.Kind, "-", "-", "-", "-", r.Path)
			continue
		}
		fmt.Fprintf(w, "%-10s %8d %8d %6d %6d  %s\n", r.Kind, r.Rows, r.Skipped, r.Duplicates, r.DaysExisting, r.Path)
	}
	return nil
}

func runList(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	stores, log, err := open(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()
	defer stores.Close()

	files, err := stores.Ingest.List(ctx)
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	for _, f := range files {
		fmt.Fprintf(w, "%s  %-10s %8d %8d  %s  %s\n",
			f.IngestedAt.Format(time.RFC3339), f.Kind, f.Rows, f.Skipped, f.Digest, f.Path)
	}
	return nil
}
