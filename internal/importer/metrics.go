package importer

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles Prometheus collectors for the import pipeline.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	Registry     *prometheus.Registry
	RowsTotal    *prometheus.CounterVec
	BatchesTotal *prometheus.CounterVec
	RunsTotal    *prometheus.CounterVec
	RunDuration  prometheus.Histogram
	ActiveRuns   prometheus.Gauge
}

// NewMetrics constructs and registers all metrics on a dedicated registry.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	rows := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "asset_import_rows_total",
			Help: "Validated import rows by classification.",
		},
		[]string{"class"},
	)
	batches := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "asset_import_batches_total",
			Help: "Bulk create batches by outcome.",
		},
		[]string{"outcome"},
	)
	runs := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "asset_import_runs_total",
			Help: "Finished import runs by final state.",
		},
		[]string{"state"},
	)
	duration := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "asset_import_run_duration_seconds",
			Help:    "Wall time of import runs, pacing delays included.",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 10),
		},
	)
	active := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "asset_import_active_runs",
			Help: "Import runs currently in progress.",
		},
	)

	registry.MustRegister(rows, batches, runs, duration, active)

	return &Metrics{
		Registry:     registry,
		RowsTotal:    rows,
		BatchesTotal: batches,
		RunsTotal:    runs,
		RunDuration:  duration,
		ActiveRuns:   active,
	}
}

func (m *Metrics) observeOutcome(o *Outcome) {
	if m == nil || o == nil {
		return
	}
	m.RowsTotal.WithLabelValues(ClassClean).Add(float64(len(o.Clean)))
	m.RowsTotal.WithLabelValues(ClassWarned).Add(float64(len(o.Warned)))
	m.RowsTotal.WithLabelValues(ClassRejected).Add(float64(len(o.Rejected)))
}

func (m *Metrics) observeBatch(ok bool) {
	if m == nil {
		return
	}
	outcome := "succeeded"
	if !ok {
		outcome = "failed"
	}
	m.BatchesTotal.WithLabelValues(outcome).Inc()
}

func (m *Metrics) runStarted() {
	if m == nil {
		return
	}
	m.ActiveRuns.Inc()
}

func (m *Metrics) runFinished(state State, d time.Duration) {
	if m == nil {
		return
	}
	m.ActiveRuns.Dec()
	m.RunsTotal.WithLabelValues(string(state)).Inc()
	m.RunDuration.Observe(d.Seconds())
}
