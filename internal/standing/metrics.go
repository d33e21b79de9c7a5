package standing

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metric names as constants for consistency.
const (
	MetricStandingRecomputeTotal         = "standing_recompute_total"
	MetricStandingRecomputeErrors        = "standing_recompute_errors_total"
	MetricStandingRecomputeDuration      = "standing_recompute_duration_seconds"
	MetricStandingLastRecomputeTimestamp = "standing_last_recompute_timestamp"
	MetricStandingLastRecomputeUserCount = "standing_last_recompute_user_count"
)

// Metrics contains Prometheus metrics for standing recomputation.
// All operations are thread-safe.
type Metrics struct {
	recomputeTotal         prometheus.Counter
	recomputeErrors        prometheus.Counter
	recomputeDuration      prometheus.Histogram
	lastRecomputeTimestamp prometheus.Gauge
	lastRecomputeUserCount prometheus.Gauge
}

// NewMetrics creates a new Metrics instance with all collectors initialized.
// The metrics are not registered; call Register to register them with a registry.
func NewMetrics() *Metrics {
	return &Metrics{
		recomputeTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: MetricStandingRecomputeTotal,
			Help: "Total number of standing recomputation cycles",
		}),
		recomputeErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: MetricStandingRecomputeErrors,
			Help: "Total number of standing recomputation errors",
		}),
		recomputeDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    MetricStandingRecomputeDuration,
			Help:    "Histogram of standing recomputation duration in seconds",
			Buckets: []float64{0.1, 0.25, 0.5, 1.0, 2.0, 5.0, 10.0},
		}),
		lastRecomputeTimestamp: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: MetricStandingLastRecomputeTimestamp,
			Help: "Unix timestamp of the last standing recomputation cycle",
		}),
		lastRecomputeUserCount: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: MetricStandingLastRecomputeUserCount,
			Help: "Number of users processed in the last standing recomputation cycle",
		}),
	}
}

// Register registers all metrics with the given registry.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		m.recomputeTotal,
		m.recomputeErrors,
		m.recomputeDuration,
		m.lastRecomputeTimestamp,
		m.lastRecomputeUserCount,
	}

	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// IncRecomputeTotal increments the recompute total counter.
func (m *Metrics) IncRecomputeTotal() {
	m.recomputeTotal.Inc()
}

// IncRecomputeErrors increments the recompute errors counter.
func (m *Metrics) IncRecomputeErrors() {
	m.recomputeErrors.Inc()
}

// ObserveRecomputeDuration records a recompute duration sample.
func (m *Metrics) ObserveRecomputeDuration(seconds float64) {
	m.recomputeDuration.Observe(seconds)
}

// SetLastRecomputeTimestamp sets the last recompute timestamp gauge.
func (m *Metrics) SetLastRecomputeTimestamp(timestamp float64) {
	m.lastRecomputeTimestamp.Set(timestamp)
}

// SetLastRecomputeUserCount sets the last recompute user count gauge.
func (m *Metrics) SetLastRecomputeUserCount(count float64) {
	m.lastRecomputeUserCount.Set(count)
}

// Collectors returns all Prometheus collectors for testing.
func (m *Metrics) Collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.recomputeTotal,
		m.recomputeErrors,
		m.recomputeDuration,
		m.lastRecomputeTimestamp,
		m.lastRecomputeUserCount,
	}
}
