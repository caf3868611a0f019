package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	resolutions *prometheus.CounterVec
	loaderCalls *prometheus.CounterVec
	gapsFound   *prometheus.CounterVec
	barsMissing *prometheus.CounterVec
	dropped     *prometheus.CounterVec
	latency     *prometheus.HistogramVec
}

// New creates a new Prometheus metrics recorder.
func New() *Recorder {
	return &Recorder{
		resolutions: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "candlevault_resolutions_total",
				Help: "Instrument resolutions by outcome",
			},
			[]string{"outcome"},
		),
		loaderCalls: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "candlevault_loader_calls_total",
				Help: "Loader invocations by reload kind",
			},
			[]string{"kind"},
		),
		gapsFound: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "candlevault_gaps_found_total",
				Help: "Timestamp gaps detected per ticker",
			},
			[]string{"ticker"},
		),
		barsMissing: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "candlevault_bars_missing_total",
				Help: "Missing bars inferred from gaps per ticker",
			},
			[]string{"ticker"},
		),
		dropped: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "candlevault_reconciliation_dropped_total",
				Help: "Instruments dropped by reconciliation, by mismatched field",
			},
			[]string{"reason"},
		),
		latency: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "candlevault_operation_duration_seconds",
				Help:    "Duration of operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
	}
}

// RecordResolution records one instrument resolution outcome.
func (r *Recorder) RecordResolution(outcome string) {
	r.resolutions.WithLabelValues(outcome).Inc()
}

// RecordLoaderCall records a loader invocation.
func (r *Recorder) RecordLoaderCall(kind string) {
	r.loaderCalls.WithLabelValues(kind).Inc()
}

// RecordGaps records detected gaps and their missing bar total.
func (r *Recorder) RecordGaps(ticker string, gaps, missing int) {
	r.gapsFound.WithLabelValues(ticker).Add(float64(gaps))
	r.barsMissing.WithLabelValues(ticker).Add(float64(missing))
}

// RecordDropped records an instrument dropped by reconciliation.
func (r *Recorder) RecordDropped(reason string) {
	r.dropped.WithLabelValues(reason).Inc()
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}
