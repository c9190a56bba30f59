package observability

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecordSnapshot(t *testing.T) {
	written := testutil.ToFloat64(DefaultMetrics.SnapshotsWritten)
	failed := testutil.ToFloat64(DefaultMetrics.SnapshotErrors)

	RecordSnapshot(nil)
	RecordSnapshot(errors.New("boom"))
	RecordSnapshot(nil)

	if got := testutil.ToFloat64(DefaultMetrics.SnapshotsWritten) - written; got != 2 {
		t.Errorf("snapshots written: got %v, want 2", got)
	}
	if got := testutil.ToFloat64(DefaultMetrics.SnapshotErrors) - failed; got != 1 {
		t.Errorf("snapshot errors: got %v, want 1", got)
	}
}

func TestRecordSimulationLifecycle(t *testing.T) {
	active := testutil.ToFloat64(DefaultMetrics.ActiveSimulations)

	RecordSimulationStarted("take_profit")
	if got := testutil.ToFloat64(DefaultMetrics.ActiveSimulations) - active; got != 1 {
		t.Errorf("active after start: got %v, want 1", got)
	}

	RecordSimulationFinished("take_profit", "completed", 0.2)
	if got := testutil.ToFloat64(DefaultMetrics.ActiveSimulations) - active; got != 0 {
		t.Errorf("active after finish: got %v, want 0", got)
	}
	if got := testutil.ToFloat64(DefaultMetrics.SimulationsFinished.WithLabelValues("take_profit", "completed")); got < 1 {
		t.Errorf("finished counter not incremented: %v", got)
	}
	if testutil.ToFloat64(DefaultMetrics.LastCompletedRun) == 0 {
		t.Error("last completed run timestamp not set")
	}
}

func TestRecordSimulationRecovered(t *testing.T) {
	counter := DefaultMetrics.SimulationsFinished.WithLabelValues("auto_entry", "failed")
	before := testutil.ToFloat64(counter)

	RecordSimulationRecovered("auto_entry")

	if got := testutil.ToFloat64(counter) - before; got != 1 {
		t.Errorf("failed counter: got %v, want 1", got)
	}
}

func TestRecordDBQuery(t *testing.T) {
	before := testutil.ToFloat64(DefaultMetrics.DBQueryErrors.WithLabelValues("postgres", "test_op"))

	RecordDBQuery("postgres", "test_op", 0.01, nil)
	RecordDBQuery("postgres", "test_op", 0.02, errors.New("timeout"))

	if got := testutil.ToFloat64(DefaultMetrics.DBQueryErrors.WithLabelValues("postgres", "test_op")) - before; got != 1 {
		t.Errorf("db errors: got %v, want 1", got)
	}
}

func TestHandler(t *testing.T) {
	RecordRunRejected("conflict")

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "btc_scenario_lab_scheduler_runs_rejected_total") {
		t.Error("expected scheduler metric in exposition")
	}
}
