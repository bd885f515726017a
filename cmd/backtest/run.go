package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"option-replay-lab/internal/domain"
	"option-replay-lab/internal/metrics"
	"option-replay-lab/internal/reporting"
	"option-replay-lab/internal/resolver"
	"option-replay-lab/internal/runner"
	"option-replay-lab/internal/selector"
)

var (
	runFrom    string
	runTo      string
	runPolicy  string
	runPersist bool
	pyrMinGap  time.Duration
	pyrMax     int
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Replay a date range under the configured rules and policy",
	RunE: func(cmd *cobra.Command, args []string) error {
		return instrument("run", func() error { return executeRun(cmd, runPolicy) })
	},
}

var pyramidCmd = &cobra.Command{
	Use:   "pyramid",
	Short: "Replay with concurrent entries and classify each add",
	Long: `pyramid replays with the pyramid policy: every rule may fire repeatedly and
entries spaced at least --min-gap from the last open entry are taken. Each
add is classified as scale-into-winner or average-into-loser by the base
position's unrealized move.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return instrument("pyramid", func() error { return executeRun(cmd, string(runner.PolicyPyramid)) })
	},
}

func init() {
	for _, c := range []*cobra.Command{runCmd, pyramidCmd} {
		c.Flags().StringVar(&runFrom, "from", "", "first day YYYY-MM-DD (required)")
		c.Flags().StringVar(&runTo, "to", "", "last day YYYY-MM-DD (defaults to --from)")
		c.Flags().BoolVar(&runPersist, "persist", false, "store resolved trades and aggregates")
		_ = c.MarkFlagRequired("from")
		rootCmd.AddCommand(c)
	}
	runCmd.Flags().StringVar(&runPolicy, "policy", "", "position policy: single, multi or pyramid (overrides config)")
	pyramidCmd.Flags().DurationVar(&pyrMinGap, "min-gap", 0, "minimum spacing from the last open entry (overrides config)")
	pyramidCmd.Flags().IntVar(&pyrMax, "max-trades", -1, "maximum entries per day, 0 = unlimited (overrides config)")
}

func executeRun(cmd *cobra.Command, policy string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	from, to, err := parseRange(runFrom, runTo)
	if err != nil {
		return err
	}

	a, err := setup(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	cfg := a.cfg
	if policy != "" {
		cfg.Runner.Policy = policy
	}
	if cfg.Runner.Policy == string(runner.PolicyPyramid) {
		// Rules must be able to fire more than once a day
		cfg.Selection.FirstPerTag = false
		cfg.Selection.OnePerDay = false
		if pyrMinGap > 0 {
			cfg.Runner.MinGap = pyrMinGap
		}
		if pyrMax >= 0 {
			cfg.Runner.MaxTrades = pyrMax
		}
	}

	rules, err := selector.CompileRules(cfg.Rules)
	if err != nil {
		return err
	}
	out, err := replay(ctx, a, rules, cfg.SelectorOptions(), cfg.RunnerConfig(), from, to, runPersist)
	if err != nil {
		return err
	}

	report := reporting.NewGenerator(nil, nil).Build(out.input)
	if err := a.publish(ctx, reporting.RunArtifacts(report)); err != nil {
		return err
	}

	printSummary(cmd, report)
	return nil
}

// replayOutput is a finished replay with its aggregates.
type replayOutput struct {
	result *runner.Result
	input  reporting.RunInput
}

// replay runs one replay and summarizes it. With persist set, trades and
// aggregates are written to the configured stores.
func replay(ctx context.Context, a *app, rules []selector.Rule, selOpts selector.Options, runCfg runner.Config, from, to time.Time, persist bool) (*replayOutput, error) {
	risk, err := a.cfg.DomainRisk()
	if err != nil {
		return nil, err
	}
	res, err := resolver.New(risk)
	if err != nil {
		return nil, err
	}
	sel, err := selector.New(rules, selOpts)
	if err != nil {
		return nil, err
	}

	opts := []runner.Option{runner.WithLogger(a.logger)}
	if persist {
		opts = append(opts, runner.WithTradeStore(a.stores.Trades))
	}
	r, err := runner.New(a.stores.Snapshots, a.stores.Quotes, sel, res, runCfg, opts...)
	if err != nil {
		return nil, err
	}

	result, err := r.Run(ctx, from, to)
	if err != nil {
		return nil, fmt.Errorf("replay: %w", err)
	}

	info := metrics.RunInfo{
		RunID:      uuid.NewString(),
		ResolverID: res.ID(),
		Policy:     string(r.Config().Policy),
		FromDay:    domain.DayOf(from),
		ToDay:      domain.DayOf(to),
	}
	agg := metrics.NewAggregator(a.stores.Trades, a.stores.Aggregates)

	var aggs []*domain.RunAggregate
	if persist {
		aggs, err = agg.ComputeAndStore(ctx, info, result.Trades)
		if err != nil {
			return nil, fmt.Errorf("store aggregates: %w", err)
		}
		a.logger.Info("run persisted",
			zap.String("run_id", info.RunID),
			zap.Int("trades_stored", result.TradesStored),
			zap.Int("trades_existing", result.TradesExisting),
		)
	} else {
		aggs = agg.Summarize(info, result.Trades)
	}

	return &replayOutput{
		result: result,
		input: reporting.RunInput{
			RunID:          info.RunID,
			ResolverID:     info.ResolverID,
			Policy:         info.Policy,
			FromDay:        info.FromDay,
			ToDay:          info.ToDay,
			DaysProcessed:  result.DaysProcessed,
			DaysSkipped:    result.DaysSkipped,
			EntriesDropped: result.EntriesDropped,
			DroppedBy:      result.DroppedBy,
			Trades:         result.Trades,
			Adds:           result.Adds,
			Aggregates:     aggs,
		},
	}, nil
}

func printSummary(cmd *cobra.Command, r *reporting.Report) {
	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "Run:      %s\n", r.RunID)
	fmt.Fprintf(w, "Resolver: %s (%s)\n", r.ResolverID, r.Policy)
	fmt.Fprintf(w, "Period:   %s to %s\n", r.FromDay, r.ToDay)
	fmt.Fprintf(w, "Days:     %d processed, %d skipped\n", r.Summary.DaysProcessed, r.Summary.DaysSkipped)
	fmt.Fprintf(w, "Dropped:  %d entries\n", r.Summary.EntriesDropped)
	fmt.Fprintln(w)
	fmt.Fprintf(w, "%-20s %6s %6s %8s %10s\n", "TAG", "TRADES", "WINS", "WIN%", "PNL%")
	for _, row := range r.Aggregates {
		fmt.Fprintf(w, "%-20s %6d %6d %8.1f %10.2f\n", row.Tag, row.Trades, row.Wins, row.WinRate, row.TotalPnL)
	}
	if len(r.Adds) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintf(w, "Pyramid adds: %d scale into winner, %d average into loser\n",
			r.Summary.ScaleIntoWinner, r.Summary.AverageIntoLoser)
	}
}
