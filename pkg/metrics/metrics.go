package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "workload_optimizer"

// Pass outcomes
const (
	OutcomeCompleted = "completed"
	OutcomeAborted   = "aborted"
	OutcomeCancelled = "cancelled"
)

// Recorder holds the optimizer's Prometheus collectors. A nil *Recorder is
// valid and records nothing.
type Recorder struct {
	passesTotal      *prometheus.CounterVec
	passDuration     prometheus.Histogram
	dispatchesTotal  *prometheus.CounterVec
	workloadErrors   *prometheus.CounterVec
	fetchDuration    *prometheus.HistogramVec
	enabledWorkloads prometheus.Gauge
	lastPassTime     prometheus.Gauge
}

// NewRecorder creates the collectors and registers them with registry
func NewRecorder(registry prometheus.Registerer) *Recorder {
	r := &Recorder{
		passesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "passes_total",
				Help:      "Total number of optimization passes by outcome",
			},
			[]string{"outcome"},
		),
		passDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "pass_duration_seconds",
				Help:      "Wall time of an optimization pass",
				Buckets:   prometheus.ExponentialBuckets(0.5, 2, 12),
			},
		),
		dispatchesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "dispatches_total",
				Help:      "Total number of strategy invocations by band and result",
			},
			[]string{"band", "result"},
		),
		workloadErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "workload_errors_total",
				Help:      "Total number of per-workload failures by kind",
			},
			[]string{"kind"},
		),
		fetchDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "snapshot_fetch_duration_seconds",
				Help:      "Latency of the per-pass metrics snapshot fetch",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"source", "result"},
		),
		enabledWorkloads: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "enabled_workloads",
				Help:      "Number of workloads enabled for optimization at the last pass",
			},
		),
		lastPassTime: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "last_pass_timestamp_seconds",
				Help:      "Unix time the last optimization pass finished",
			},
		),
	}

	registry.MustRegister(
		r.passesTotal,
		r.passDuration,
		r.dispatchesTotal,
		r.workloadErrors,
		r.fetchDuration,
		r.enabledWorkloads,
		r.lastPassTime,
	)
	return r
}

// ObservePass records a finished pass
func (r *Recorder) ObservePass(outcome string, started, finished time.Time) {
	if r == nil {
		return
	}
	r.passesTotal.WithLabelValues(outcome).Inc()
	r.passDuration.Observe(finished.Sub(started).Seconds())
	r.lastPassTime.Set(float64(finished.Unix()))
}

// ObserveFetch records one snapshot fetch
func (r *Recorder) ObserveFetch(source string, d time.Duration, err error) {
	if r == nil {
		return
	}
	result := "success"
	if err != nil {
		result = "error"
	}
	r.fetchDuration.WithLabelValues(source, result).Observe(d.Seconds())
}

// Dispatched records one strategy invocation
func (r *Recorder) Dispatched(band string, err error) {
	if r == nil {
		return
	}
	result := "success"
	if err != nil {
		result = "error"
	}
	r.dispatchesTotal.WithLabelValues(band, result).Inc()
}

// WorkloadFailed counts a per-workload error of the given kind
func (r *Recorder) WorkloadFailed(kind string) {
	if r == nil {
		return
	}
	r.workloadErrors.WithLabelValues(kind).Inc()
}

// SetEnabledWorkloads records how many workloads a pass found enabled
func (r *Recorder) SetEnabledWorkloads(n int) {
	if r == nil {
		return
	}
	r.enabledWorkloads.Set(float64(n))
}
