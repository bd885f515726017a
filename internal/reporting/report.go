package reporting

import (
	"time"

	"option-replay-lab/internal/domain"
)

// Report represents one backtest run.
type Report struct {
	// Metadata
	GeneratedAt time.Time
	RunID       string
	ResolverID  string
	Policy      string
	FromDay     string
	ToDay       string

	Summary RunSummary

	// Aggregates ordered by tag; the run-wide row has Tag == domain.AggregateScopeAll
	Aggregates []AggregateRow

	ExitReasons []ExitReasonRow

	// Trades ordered by entry time then trade_id
	Trades []*domain.ResolvedTrade

	// Pyramid adds, empty for other policies
	Adds []domain.PyramidAdd
}

// RunSummary describes the data a run consumed.
type RunSummary struct {
	DaysProcessed    int
	DaysSkipped      int
	Trades           int
	EntriesDropped   int
	DroppedBy        map[string]int
	ScaleIntoWinner  int
	AverageIntoLoser int
}

// AggregateRow represents one row in the aggregate table.
type AggregateRow struct {
	Tag                  string
	Trades               int
	Wins                 int
	Losses               int
	WinRate              float64
	TotalPnL             float64
	AvgPnL               float64
	AvgWinPnL            float64
	AvgLossPnL           float64
	ProfitFactor         float64
	MedianPnL            float64
	P10PnL               float64
	P90PnL               float64
	MaxDrawdown          float64
	MaxConsecutiveLosses int
	StopLosses           int
	Targets              int
	SessionCloses        int
}

// ExitReasonRow is one bucket of the run-wide exit histogram.
type ExitReasonRow struct {
	Reason domain.ExitReason
	Count  int
	Pct    float64 // share of trades, percent
}

// ComboReport represents one filter search.
type ComboReport struct {
	GeneratedAt time.Time
	RunID       string
	Mode        string
	Population  int // trades the search ran over
	MinSamples  int
	MaxOrder    int
	Evaluated   int
	Combos      []domain.ComboResult // ranked
}

// Artifact is one rendered report file.
type Artifact struct {
	Name string
	Body []byte
}
