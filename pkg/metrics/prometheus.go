package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	windows        *prometheus.CounterVec
	windowsSkipped *prometheus.CounterVec
	fitFailures    *prometheus.CounterVec
	errorsTotal    *prometheus.CounterVec
	recordsStored  *prometheus.CounterVec
	selections     *prometheus.CounterVec
	runDuration    prometheus.Histogram
}

// New creates a new Prometheus metrics recorder.
func New() *Recorder {
	return &Recorder{
		windows: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "staycast_backtest_windows_total",
				Help: "Total number of backtest windows evaluated per model",
			},
			[]string{"model"},
		),
		windowsSkipped: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "staycast_backtest_windows_skipped_total",
				Help: "Total number of windows skipped by reason",
			},
			[]string{"reason"},
		),
		fitFailures: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "staycast_fit_failures_total",
				Help: "Total number of per-window model fit failures",
			},
			[]string{"model"},
		),
		errorsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "staycast_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
		recordsStored: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "staycast_records_stored_total",
				Help: "Total number of records written per sink table",
			},
			[]string{"table"},
		),
		selections: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "staycast_selections_total",
				Help: "Model selections per target/frequency/model",
			},
			[]string{"target", "frequency", "model"},
		),
		runDuration: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "staycast_run_duration_seconds",
				Help:    "Duration of full backtest runs in seconds",
				Buckets: prometheus.ExponentialBuckets(1, 2, 12),
			},
		),
	}
}

// RecordWindow records one evaluated window for a model.
func (r *Recorder) RecordWindow(model string) {
	r.windows.WithLabelValues(model).Inc()
}

// RecordWindowSkipped records a skipped window.
func (r *Recorder) RecordWindowSkipped(reason string) {
	r.windowsSkipped.WithLabelValues(reason).Inc()
}

// RecordFitFailure records a per-window model failure.
func (r *Recorder) RecordFitFailure(model string) {
	r.fitFailures.WithLabelValues(model).Inc()
}

// RecordRunDuration records full-run duration in seconds.
func (r *Recorder) RecordRunDuration(seconds float64) {
	r.runDuration.Observe(seconds)
}

// RecordSelection records a model selection for a segment.
func (r *Recorder) RecordSelection(target, freq, model string) {
	r.selections.WithLabelValues(target, freq, model).Inc()
}

// RecordRecordsStored records rows written to a sink table.
func (r *Recorder) RecordRecordsStored(table string, n int) {
	r.recordsStored.WithLabelValues(table).Add(float64(n))
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}
