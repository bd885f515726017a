package search

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sort"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"option-replay-lab/internal/domain"
	"option-replay-lab/internal/idhash"
	"option-replay-lab/internal/observability"
)

// Harness errors
var (
	ErrInvalidOptions   = errors.New("invalid search options")
	ErrUnknownPredicate = errors.New("unknown predicate")
)

// Mode selects how samples are counted for a combination.
type Mode string

// Modes
const (
	// ModeTrades counts every trade satisfying the combination.
	ModeTrades Mode = "trades"
	// ModeDays counts only the earliest satisfying trade of each day.
	ModeDays Mode = "days"
)

// Default option values
const (
	DefaultMaxOrder   = 3
	DefaultMinSamples = 4
)

// Options configures a search.
type Options struct {
	MaxOrder   int
	MinSamples int
	MinWinRate float64 // percent; 0 keeps all
	Mode       Mode
	Workers    int // <= 0 uses GOMAXPROCS
}

// DefaultOptions returns the reference search options.
func DefaultOptions() Options {
	return Options{
		MaxOrder:   DefaultMaxOrder,
		MinSamples: DefaultMinSamples,
		Mode:       ModeTrades,
	}
}

// Harness evaluates predicate combinations over a fixed trade set.
type Harness struct {
	lib    Library
	opts   Options
	logger *zap.Logger
}

// NewHarness validates the library and options.
func NewHarness(lib Library, opts Options, logger *zap.Logger) (*Harness, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if len(lib) == 0 {
		return nil, fmt.Errorf("%w: empty predicate library", ErrInvalidOptions)
	}
	if err := lib.validate(); err != nil {
		return nil, err
	}
	if opts.MaxOrder < 1 || opts.MaxOrder > len(lib) {
		return nil, fmt.Errorf("%w: max order %d with %d predicates", ErrInvalidOptions, opts.MaxOrder, len(lib))
	}
	if opts.MinSamples < 1 {
		opts.MinSamples = 1
	}
	switch opts.Mode {
	case "":
		opts.Mode = ModeTrades
	case ModeTrades, ModeDays:
	default:
		return nil, fmt.Errorf("%w: mode %q", ErrInvalidOptions, opts.Mode)
	}
	if opts.Workers <= 0 {
		opts.Workers = runtime.GOMAXPROCS(0)
	}

	return &Harness{lib: lib, opts: opts, logger: logger}, nil
}

// sample is a trade with its predicate matches precomputed.
type sample struct {
	day     string
	won     bool
	pnl     float64
	matches []bool // indexed like the library
}

// Run evaluates every combination and returns the kept ones ranked by
// win rate desc, samples desc, name asc. Output does not depend on the
// worker count.
func (h *Harness) Run(ctx context.Context, trades []*domain.ResolvedTrade) ([]domain.ComboResult, error) {
	combos, err := Combinations(len(h.lib), h.opts.MaxOrder)
	if err != nil {
		return nil, err
	}
	samples := h.prepare(trades)

	results := make([]*domain.ComboResult, len(combos))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(h.opts.Workers)
	for i, combo := range combos {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i] = h.evaluate(combo, samples)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("evaluate combinations: %w", err)
	}

	kept := make([]domain.ComboResult, 0, len(results))
	for _, r := range results {
		if r != nil {
			kept = append(kept, *r)
		}
	}
	Rank(kept)

	observability.RecordCombos(len(combos), len(kept))
	h.logger.Info("filter search complete",
		zap.Int("trades", len(trades)),
		zap.Int("predicates", len(h.lib)),
		zap.Int("combinations", len(combos)),
		zap.Int("kept", len(kept)),
		zap.String("mode", string(h.opts.Mode)),
	)

	return kept, nil
}

// prepare orders trades by entry time, TradeID and evaluates every predicate once.
func (h *Harness) prepare(trades []*domain.ResolvedTrade) []sample {
	sorted := make([]*domain.ResolvedTrade, len(trades))
	copy(sorted, trades)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i].Entry.Timestamp, sorted[j].Entry.Timestamp
		if !a.Equal(b) {
			return a.Before(b)
		}
		return sorted[i].TradeID < sorted[j].TradeID
	})

	samples := make([]sample, len(sorted))
	for i, t := range sorted {
		f := FeaturesOf(t)
		m := make([]bool, len(h.lib))
		for p, pred := range h.lib {
			m[p] = pred.Match(f)
		}
		samples[i] = sample{day: f.Day, won: t.Won, pnl: t.PnLPct, matches: m}
	}
	return samples
}

// evaluate scores one combination. Returns nil when it fails the filters.
func (h *Harness) evaluate(combo []int, samples []sample) *domain.ComboResult {
	var wins, total int
	var pnl float64
	seenDay := make(map[string]bool)

	for _, s := range samples {
		if !matchesAll(s, combo) {
			continue
		}
		if h.opts.Mode == ModeDays {
			if seenDay[s.day] {
				continue
			}
			seenDay[s.day] = true
		}
		total++
		pnl += s.pnl
		if s.won {
			wins++
		}
	}

	if total < h.opts.MinSamples {
		return nil
	}
	winRate := float64(wins) / float64(total) * 100
	if winRate < h.opts.MinWinRate {
		return nil
	}

	names := make([]string, len(combo))
	for i, p := range combo {
		names[i] = h.lib[p].Name
	}
	return &domain.ComboResult{
		ID:         idhash.ComputeComboID(names),
		Name:       strings.Join(names, " + "),
		Predicates: names,
		Wins:       wins,
		Losses:     total - wins,
		WinRate:    winRate,
		TotalPnL:   pnl,
		Samples:    total,
	}
}

func matchesAll(s sample, combo []int) bool {
	for _, p := range combo {
		if !s.matches[p] {
			return false
		}
	}
	return true
}

// Rank sorts results by win rate desc, samples desc, name asc.
func Rank(results []domain.ComboResult) {
	sort.Slice(results, func(i, j int) bool {
		a, b := results[i], results[j]
		if a.WinRate != b.WinRate {
			return a.WinRate > b.WinRate
		}
		if a.Samples != b.Samples {
			return a.Samples > b.Samples
		}
		return a.Name < b.Name
	})
}
