package domain

// Aggregate holds summary statistics over a set of resolved trades.
type Aggregate struct {
	// Counts
	Count   int
	Wins    int
	Losses  int
	WinRate float64 // percent; 0 when Count == 0

	// P&L (percent units)
	TotalPnL     float64
	AvgPnL       float64
	TotalWinPnL  float64
	AvgWinPnL    float64
	TotalLossPnL float64 // <= 0 for stop-outs; losing session closes may be 0
	AvgLossPnL   float64
	ProfitFactor float64 // +Inf with no losing pnl, 0 with no trades

	ExitReasons map[ExitReason]int

	// Distribution
	MedianPnL float64
	P10PnL    float64
	P90PnL    float64
	StddevPnL float64

	// Drawdown
	MaxDrawdown          float64 // worst peak-to-trough of cumulative pnl
	MaxConsecutiveLosses int

	AvgPeakGainPct float64
}

// ComboResult is one ranked predicate combination.
type ComboResult struct {
	ID         string   // short hash of Predicates
	Name       string   // "a + b + c"
	Predicates []string // atomic names in enumeration order
	Wins       int
	Losses     int
	WinRate    float64 // percent
	TotalPnL   float64
	Samples    int
}

// AggregateScopeAll is the Tag of a run-wide aggregate.
const AggregateScopeAll = "ALL"

// RunAggregate is an Aggregate persisted for one backtest run and rule tag.
// Corresponds to run_aggregates rows.
type RunAggregate struct {
	RunID      string // uuid of the run
	ResolverID string
	Policy     string
	Tag        string // rule tag or AggregateScopeAll
	FromDay    string
	ToDay      string
	Aggregate
}
