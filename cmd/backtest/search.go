package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"option-replay-lab/internal/reporting"
	"option-replay-lab/internal/runner"
	"option-replay-lab/internal/search"
	"option-replay-lab/internal/selector"
)

var (
	searchFrom       string
	searchTo         string
	searchMode       string
	searchMaxOrder   int
	searchMinSamples int
	searchWorkers    int
)

var searchCmd = &cobra.Command{
	Use:   "search",
	Short: "Rank predicate combinations by win rate",
	Long: `search resolves every directional snapshot at or above the configured
confidence as a candidate trade, then evaluates every combination of up to
--max-order predicates over those trades and ranks the combinations by win
rate.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return instrument("search", func() error { return executeSearch(cmd) })
	},
}

func init() {
	searchCmd.Flags().StringVar(&searchFrom, "from", "", "first day YYYY-MM-DD (required)")
	searchCmd.Flags().StringVar(&searchTo, "to", "", "last day YYYY-MM-DD (defaults to --from)")
	searchCmd.Flags().StringVar(&searchMode, "mode", "", "sample counting: trades or days (overrides config)")
	searchCmd.Flags().IntVar(&searchMaxOrder, "max-order", 0, "largest combination size (overrides config)")
	searchCmd.Flags().IntVar(&searchMinSamples, "min-samples", 0, "minimum samples per combination (overrides config)")
	searchCmd.Flags().IntVar(&searchWorkers, "workers", 0, "evaluation workers (overrides config)")
	_ = searchCmd.MarkFlagRequired("from")

	rootCmd.AddCommand(searchCmd)
}

func executeSearch(cmd *cobra.Command) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	from, to, err := parseRange(searchFrom, searchTo)
	if err != nil {
		return err
	}

	a, err := setup(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	cfg := a.cfg
	if searchMode != "" {
		cfg.Search.Mode = searchMode
	}
	if searchMaxOrder > 0 {
		cfg.Search.MaxOrder = searchMaxOrder
	}
	if searchMinSamples > 0 {
		cfg.Search.MinSamples = searchMinSamples
	}
	if searchWorkers > 0 {
		cfg.Search.Workers = searchWorkers
	}

	lib := search.DefaultLibrary()
	if len(cfg.Search.Predicates) > 0 {
		if lib, err = lib.Select(cfg.Search.Predicates...); err != nil {
			return err
		}
	}
	opts := cfg.SearchOptions()
	harness, err := search.NewHarness(lib, opts, a.logger)
	if err != nil {
		return err
	}

	// Candidates: one rule at the confidence gate, every matching snapshot
	// resolved. Pyramid with no gap or cap takes every decision.
	rules, err := selector.CompileRules([]selector.RuleSpec{{
		Tag:           fmt.Sprintf("co%g", cfg.Search.MinConfidence),
		MinConfidence: cfg.Search.MinConfidence,
	}})
	if err != nil {
		return err
	}
	selOpts := cfg.SelectorOptions()
	selOpts.FirstPerTag = false
	selOpts.OnePerDay = false
	selOpts.MaxPerDay = 0

	out, err := replay(ctx, a, rules, selOpts, runner.Config{Policy: runner.PolicyPyramid}, from, to, false)
	if err != nil {
		return err
	}
	trades := out.result.Trades

	combos, err := harness.Run(ctx, trades)
	if err != nil {
		return err
	}

	runID := uuid.NewString()
	evaluated := search.CountCombinations(len(lib), opts.MaxOrder)
	mode := opts.Mode
	if mode == "" {
		mode = search.ModeTrades
	}
	report := reporting.NewGenerator(nil, nil).Combos(runID, string(mode), len(trades), opts.MinSamples, opts.MaxOrder, evaluated, combos)
	if err := a.publish(ctx, reporting.ComboArtifacts(report)); err != nil {
		return err
	}

	a.logger.Info("search finished",
		zap.String("run_id", runID),
		zap.Int("candidates", len(trades)),
		zap.Int("evaluated", evaluated),
		zap.Int("kept", len(combos)),
	)

	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "Search:     %s\n", runID)
	fmt.Fprintf(w, "Candidates: %d trades (%s mode)\n", len(trades), mode)
	fmt.Fprintf(w, "Combos:     %d evaluated, %d kept\n", evaluated, len(combos))
	fmt.Fprintln(w)

	top := combos
	if cfg.Search.Top > 0 && len(top) > cfg.Search.Top {
		top = top[:cfg.Search.Top]
	}
	fmt.Fprintf(w, "%4s %-48s %7s %6s %8s %10s\n", "RANK", "COMBO", "SAMPLES", "WINS", "WIN%", "PNL%")
	for i, c := range top {
		fmt.Fprintf(w, "%4d %-48s %7d %6d %8.1f %10.2f\n", i+1, c.Name, c.Samples, c.Wins, c.WinRate, c.TotalPnL)
	}
	return nil
}
