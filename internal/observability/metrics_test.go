package observability

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNewMetrics_CustomRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics("test", reg)

	m.TradesResolved.WithLabelValues("TARGET").Inc()
	m.TradesResolved.WithLabelValues("TARGET").Inc()
	m.DaysProcessed.Inc()

	if got := testutil.ToFloat64(m.TradesResolved.WithLabelValues("TARGET")); got != 2 {
		t.Errorf("expected 2 target trades, got %f", got)
	}
	if got := testutil.ToFloat64(m.DaysProcessed); got != 1 {
		t.Errorf("expected 1 day processed, got %f", got)
	}
}

func TestRecordHelpers(t *testing.T) {
	before := testutil.ToFloat64(DefaultMetrics.EntriesDropped.WithLabelValues("no_exit_data"))
	RecordEntryDropped("no_exit_data")
	after := testutil.ToFloat64(DefaultMetrics.EntriesDropped.WithLabelValues("no_exit_data"))
	if after-before != 1 {
		t.Errorf("expected dropped counter to grow by 1, got %f", after-before)
	}

	beforeSkip := testutil.ToFloat64(DefaultMetrics.FeedRecordsSkipped.WithLabelValues("quotes"))
	RecordFeedFile("quotes", "loaded", 10, 3)
	afterSkip := testutil.ToFloat64(DefaultMetrics.FeedRecordsSkipped.WithLabelValues("quotes"))
	if afterSkip-beforeSkip != 3 {
		t.Errorf("expected skipped counter to grow by 3, got %f", afterSkip-beforeSkip)
	}

	beforeErr := testutil.ToFloat64(DefaultMetrics.DBQueryErrors.WithLabelValues("postgres", "get_quotes"))
	RecordDBQuery("postgres", "get_quotes", 0.01, errors.New("boom"))
	afterErr := testutil.ToFloat64(DefaultMetrics.DBQueryErrors.WithLabelValues("postgres", "get_quotes"))
	if afterErr-beforeErr != 1 {
		t.Errorf("expected db error counter to grow by 1, got %f", afterErr-beforeErr)
	}
}
