// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Ingestion metrics
	FeedRecordsLoaded  *prometheus.CounterVec
	FeedRecordsSkipped *prometheus.CounterVec
	FeedFilesIngested  *prometheus.CounterVec

	// Runner metrics
	DaysProcessed   prometheus.Counter
	DaysSkipped     prometheus.Counter
	EntriesSelected *prometheus.CounterVec
	TradesResolved  *prometheus.CounterVec
	EntriesDropped  *prometheus.CounterVec
	PyramidAdds     *prometheus.CounterVec
	DayCacheLoads   *prometheus.CounterVec

	// Search metrics
	CombosEvaluated prometheus.Counter
	CombosKept      prometheus.Counter

	// Run metrics
	RunsTotal   *prometheus.CounterVec
	RunDuration *prometheus.HistogramVec

	// Database metrics
	DBQueryDuration *prometheus.HistogramVec
	DBQueryErrors   *prometheus.CounterVec
}

// NewMetrics creates a new Metrics instance registered on reg.
// A nil reg uses the default Prometheus registry.
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	if namespace == "" {
		namespace = "option_replay_lab"
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		FeedRecordsLoaded: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingest",
			Name:      "records_loaded_total",
			Help:      "Total number of feed records stored, by feed kind",
		}, []string{"kind"}),
		FeedRecordsSkipped: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingest",
			Name:      "records_skipped_total",
			Help:      "Total number of malformed feed records skipped, by feed kind",
		}, []string{"kind"}),
		FeedFilesIngested: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingest",
			Name:      "files_total",
			Help:      "Feed files processed, by outcome (loaded, already_ingested, failed)",
		}, []string{"outcome"}),

		DaysProcessed: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "runner",
			Name:      "days_processed_total",
			Help:      "Total number of trading days replayed",
		}),
		DaysSkipped: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "runner",
			Name:      "days_skipped_total",
			Help:      "Total number of days skipped for missing snapshots or quotes",
		}),
		EntriesSelected: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "runner",
			Name:      "entries_selected_total",
			Help:      "Entry decisions emitted by the selector, by rule tag",
		}, []string{"tag"}),
		TradesResolved: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "runner",
			Name:      "trades_resolved_total",
			Help:      "Resolved trades, by exit reason",
		}, []string{"exit_reason"}),
		EntriesDropped: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "runner",
			Name:      "entries_dropped_total",
			Help:      "Entries the resolver could not resolve, by reason",
		}, []string{"reason"}),
		PyramidAdds: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "runner",
			Name:      "pyramid_adds_total",
			Help:      "Pyramid adds, by classification",
		}, []string{"class"}),
		DayCacheLoads: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "runner",
			Name:      "day_cache_lookups_total",
			Help:      "Day cache lookups, by result (hit, miss)",
		}, []string{"result"}),

		CombosEvaluated: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "search",
			Name:      "combos_evaluated_total",
			Help:      "Total number of predicate combinations evaluated",
		}),
		CombosKept: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "search",
			Name:      "combos_kept_total",
			Help:      "Total number of combinations passing the sample and win-rate filters",
		}),

		RunsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "run",
			Name:      "total",
			Help:      "Total number of command runs, by command and status",
		}, []string{"command", "status"}),
		RunDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "run",
			Name:      "duration_seconds",
			Help:      "Duration of command runs",
			Buckets:   []float64{0.1, 0.5, 1, 5, 10, 30, 60, 300, 600},
		}, []string{"command"}),

		DBQueryDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "db",
			Name:      "query_duration_seconds",
			Help:      "Database query duration",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		}, []string{"database", "operation"}),
		DBQueryErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "db",
			Name:      "query_errors_total",
			Help:      "Total number of database query errors",
		}, []string{"database", "operation"}),
	}
}

// Handler returns the HTTP handler for Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("", nil)

// RecordFeedFile records one feed file outcome with its record counts.
func RecordFeedFile(kind, outcome string, loaded, skipped int) {
	DefaultMetrics.FeedFilesIngested.WithLabelValues(outcome).Inc()
	DefaultMetrics.FeedRecordsLoaded.WithLabelValues(kind).Add(float64(loaded))
	DefaultMetrics.FeedRecordsSkipped.WithLabelValues(kind).Add(float64(skipped))
}

// RecordDay records a replayed or skipped day.
func RecordDay(skipped bool) {
	if skipped {
		DefaultMetrics.DaysSkipped.Inc()
		return
	}
	DefaultMetrics.DaysProcessed.Inc()
}

// RecordEntrySelected records an entry decision.
func RecordEntrySelected(tag string) {
	DefaultMetrics.EntriesSelected.WithLabelValues(tag).Inc()
}

// RecordTradeResolved records a resolved trade.
func RecordTradeResolved(exitReason string) {
	DefaultMetrics.TradesResolved.WithLabelValues(exitReason).Inc()
}

// RecordEntryDropped records an unresolvable entry.
func RecordEntryDropped(reason string) {
	DefaultMetrics.EntriesDropped.WithLabelValues(reason).Inc()
}

// RecordPyramidAdd records a classified pyramid add.
func RecordPyramidAdd(class string) {
	DefaultMetrics.PyramidAdds.WithLabelValues(class).Inc()
}

// RecordDayCache records a day cache hit or miss.
func RecordDayCache(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	DefaultMetrics.DayCacheLoads.WithLabelValues(result).Inc()
}

// RecordCombos records evaluated and kept combination counts of one search.
func RecordCombos(evaluated, kept int) {
	DefaultMetrics.CombosEvaluated.Add(float64(evaluated))
	DefaultMetrics.CombosKept.Add(float64(kept))
}

// RecordRun records a command run with status and duration.
func RecordRun(command, status string, durationSeconds float64) {
	DefaultMetrics.RunsTotal.WithLabelValues(command, status).Inc()
	DefaultMetrics.RunDuration.WithLabelValues(command).Observe(durationSeconds)
}

// RecordDBQuery records database query metrics.
func RecordDBQuery(database, operation string, seconds float64, err error) {
	DefaultMetrics.DBQueryDuration.WithLabelValues(database, operation).Observe(seconds)
	if err != nil {
		DefaultMetrics.DBQueryErrors.WithLabelValues(database, operation).Inc()
	}
}
