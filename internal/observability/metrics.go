// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Run metrics
	SimulationsCreated  *prometheus.CounterVec
	SimulationsStarted  *prometheus.CounterVec
	SimulationsFinished *prometheus.CounterVec
	SimulationDuration  *prometheus.HistogramVec
	ActiveSimulations   prometheus.Gauge
	SamplesProcessed    prometheus.Counter
	SnapshotsWritten    prometheus.Counter
	SnapshotErrors      prometheus.Counter
	ActionsApplied      *prometheus.CounterVec

	// Scheduler metrics
	QueueDepth     prometheus.Gauge
	RateLimitWaits prometheus.Counter
	RunsRejected   *prometheus.CounterVec
	BusyWorkers    prometheus.Gauge

	// API metrics
	HTTPRequests     *prometheus.CounterVec
	HTTPDuration     *prometheus.HistogramVec
	ProgressStreams  prometheus.Gauge
	ReportsGenerated prometheus.Counter

	// Database metrics
	DBQueryDuration *prometheus.HistogramVec
	DBQueryErrors   *prometheus.CounterVec

	// Health metrics
	LastCompletedRun prometheus.Gauge
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "btc_scenario_lab"
	}

	return &Metrics{
		SimulationsCreated: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "executor",
			Name:      "simulations_created_total",
			Help:      "Total number of simulations created",
		}, []string{"automation_kind"}),
		SimulationsStarted: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "executor",
			Name:      "simulations_started_total",
			Help:      "Total number of simulation runs started",
		}, []string{"automation_kind"}),
		SimulationsFinished: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "executor",
			Name:      "simulations_finished_total",
			Help:      "Total number of simulation runs finished by terminal status",
		}, []string{"automation_kind", "status"}),
		SimulationDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "executor",
			Name:      "simulation_duration_seconds",
			Help:      "Wall-clock duration of simulation runs",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30, 60},
		}, []string{"automation_kind"}),
		ActiveSimulations: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "executor",
			Name:      "active_simulations",
			Help:      "Number of simulations currently running",
		}),
		SamplesProcessed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "executor",
			Name:      "samples_processed_total",
			Help:      "Total number of price samples evaluated",
		}),
		SnapshotsWritten: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "executor",
			Name:      "snapshots_written_total",
			Help:      "Total number of result snapshots persisted",
		}),
		SnapshotErrors: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "executor",
			Name:      "snapshot_errors_total",
			Help:      "Total number of failed snapshot writes",
		}),
		ActionsApplied: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "executor",
			Name:      "actions_applied_total",
			Help:      "Total number of automation actions applied to the ledger",
		}, []string{"action"}),

		QueueDepth: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "scheduler",
			Name:      "queue_depth",
			Help:      "Number of run requests accepted but not yet picked up",
		}),
		RateLimitWaits: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scheduler",
			Name:      "rate_limit_waits_total",
			Help:      "Total number of starts delayed by the rate limiter",
		}),
		RunsRejected: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scheduler",
			Name:      "runs_rejected_total",
			Help:      "Total number of run requests rejected",
		}, []string{"reason"}),
		BusyWorkers: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "scheduler",
			Name:      "busy_workers",
			Help:      "Number of workers executing a run",
		}),

		HTTPRequests: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "api",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests",
		}, []string{"method", "route", "status"}),
		HTTPDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "api",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
		ProgressStreams: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "api",
			Name:      "progress_streams",
			Help:      "Number of open progress websocket streams",
		}),
		ReportsGenerated: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "api",
			Name:      "reports_generated_total",
			Help:      "Total number of reports generated",
		}),

		DBQueryDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "db",
			Name:      "query_duration_seconds",
			Help:      "Database query latency",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}, []string{"database", "operation"}),
		DBQueryErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "db",
			Name:      "query_errors_total",
			Help:      "Total number of database query errors",
		}, []string{"database", "operation"}),

		LastCompletedRun: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_completed_run_timestamp",
			Help:      "Unix timestamp of last completed simulation run",
		}),
	}
}

// Handler returns the Prometheus HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("")

// RecordSimulationCreated records a new simulation.
func RecordSimulationCreated(kind string) {
	DefaultMetrics.SimulationsCreated.WithLabelValues(kind).Inc()
}

// RecordSimulationStarted records a run entering running.
func RecordSimulationStarted(kind string) {
	DefaultMetrics.SimulationsStarted.WithLabelValues(kind).Inc()
	DefaultMetrics.ActiveSimulations.Inc()
}

// RecordSimulationFinished records a run reaching a terminal status.
func RecordSimulationFinished(kind, status string, durationSeconds float64) {
	DefaultMetrics.SimulationsFinished.WithLabelValues(kind, status).Inc()
	DefaultMetrics.SimulationDuration.WithLabelValues(kind).Observe(durationSeconds)
	DefaultMetrics.ActiveSimulations.Dec()
	if status == "completed" {
		DefaultMetrics.LastCompletedRun.Set(float64(time.Now().Unix()))
	}
}

// RecordSimulationRecovered records a stale running simulation marked failed.
func RecordSimulationRecovered(kind string) {
	DefaultMetrics.SimulationsFinished.WithLabelValues(kind, "failed").Inc()
}

// RecordSamples adds evaluated samples.
func RecordSamples(n int) {
	DefaultMetrics.SamplesProcessed.Add(float64(n))
}

// RecordSnapshot records a snapshot write outcome.
func RecordSnapshot(err error) {
	if err != nil {
		DefaultMetrics.SnapshotErrors.Inc()
		return
	}
	DefaultMetrics.SnapshotsWritten.Inc()
}

// RecordAction records an applied automation action.
func RecordAction(action string) {
	DefaultMetrics.ActionsApplied.WithLabelValues(action).Inc()
}

// AddQueueDepth adjusts the scheduler queue depth gauge.
func AddQueueDepth(delta int) {
	DefaultMetrics.QueueDepth.Add(float64(delta))
}

// RecordRateLimitWait records a start delayed by the limiter.
func RecordRateLimitWait() {
	DefaultMetrics.RateLimitWaits.Inc()
}

// RecordRunRejected records a rejected run request.
func RecordRunRejected(reason string) {
	DefaultMetrics.RunsRejected.WithLabelValues(reason).Inc()
}

// AddBusyWorkers adjusts the busy worker gauge.
func AddBusyWorkers(delta int) {
	DefaultMetrics.BusyWorkers.Add(float64(delta))
}

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(method, route string, status int, seconds float64) {
	DefaultMetrics.HTTPRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	DefaultMetrics.HTTPDuration.WithLabelValues(route).Observe(seconds)
}

// AddProgressStreams adjusts the open progress stream gauge.
func AddProgressStreams(delta int) {
	DefaultMetrics.ProgressStreams.Add(float64(delta))
}

// RecordReportGenerated records a generated report.
func RecordReportGenerated() {
	DefaultMetrics.ReportsGenerated.Inc()
}

// RecordDBQuery records database query metrics.
func RecordDBQuery(database, operation string, seconds float64, err error) {
	DefaultMetrics.DBQueryDuration.WithLabelValues(database, operation).Observe(seconds)
	if err != nil {
		DefaultMetrics.DBQueryErrors.WithLabelValues(database, operation).Inc()
	}
}
