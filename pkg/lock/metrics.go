package lock

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// ============================================================================
// Prometheus Metrics for the Lock Manager
// ============================================================================

// Label constants for metrics.
const (
	LabelMode   = "mode"
	LabelKind   = "kind"
	LabelResult = "result"
	LabelCode   = "code"
)

// Result label values for acquire attempts.
const (
	ResultGranted  = "granted"
	ResultQueued   = "queued"
	ResultRejected = "rejected"
)

// DefaultMetricsNamespace is used when NewMetricsWithNamespace gets "".
const DefaultMetricsNamespace = "mglock"

// Metrics provides Prometheus metrics for lock traffic.
//
// All methods are nil-safe so a Manager can run without metrics.
type Metrics struct {
	acquireTotal  *prometheus.CounterVec
	releaseTotal  *prometheus.CounterVec
	rejectedTotal *prometheus.CounterVec
	promotedTotal *prometheus.CounterVec

	ownersGauge    prometheus.Gauge
	waitersGauge   prometheus.Gauge
	resourcesGauge prometheus.Gauge

	waitDuration *prometheus.HistogramVec

	registered bool
}

// NewMetrics creates and registers lock metrics under the default namespace.
// If registry is nil, metrics will be created but not registered (useful for testing).
func NewMetrics(registry prometheus.Registerer) *Metrics {
	return NewMetricsWithNamespace(registry, DefaultMetricsNamespace)
}

// NewMetricsWithNamespace is NewMetrics with a custom metric namespace.
func NewMetricsWithNamespace(registry prometheus.Registerer, namespace string) *Metrics {
	if namespace == "" {
		namespace = DefaultMetricsNamespace
	}

	m := &Metrics{
		acquireTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "locks",
				Name:      "acquire_total",
				Help:      "Total number of lock acquire attempts",
			},
			[]string{LabelKind, LabelMode, LabelResult},
		),

		releaseTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "locks",
				Name:      "release_total",
				Help:      "Total number of successful lock releases",
			},
			[]string{LabelKind},
		),

		rejectedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "locks",
				Name:      "rejected_total",
				Help:      "Total number of requests rejected as protocol violations",
			},
			[]string{LabelCode},
		),

		promotedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "locks",
				Name:      "promoted_total",
				Help:      "Total number of queued requests granted on release",
			},
			[]string{LabelMode},
		),

		ownersGauge: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "locks",
				Name:      "owners",
				Help:      "Number of granted lock records",
			},
		),

		waitersGauge: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "locks",
				Name:      "waiters",
				Help:      "Number of queued lock requests",
			},
		),

		resourcesGauge: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "locks",
				Name:      "resources",
				Help:      "Number of resources with lock state",
			},
		),

		waitDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "locks",
				Name:      "wait_duration_seconds",
				Help:      "Time a request spent queued before promotion",
				Buckets:   []float64{0.0001, 0.001, 0.01, 0.1, 0.5, 1, 5, 10, 30, 60},
			},
			[]string{LabelMode},
		),
	}

	if registry != nil {
		registry.MustRegister(
			m.acquireTotal,
			m.releaseTotal,
			m.rejectedTotal,
			m.promotedTotal,
			m.ownersGauge,
			m.waitersGauge,
			m.resourcesGauge,
			m.waitDuration,
		)
		m.registered = true
	}

	return m
}

// ============================================================================
// Observation Methods
// ============================================================================

// ObserveAcquire records an accepted acquire.
func (m *Metrics) ObserveAcquire(kind ResourceKind, mode LockType, outcome Outcome) {
	if m == nil {
		return
	}
	result := ResultGranted
	if outcome == Queued {
		result = ResultQueued
	}
	m.acquireTotal.WithLabelValues(kind.String(), mode.String(), result).Inc()
}

// ObserveRejected records a request rejected with code. Rejected acquires
// also count towards acquire_total.
func (m *Metrics) ObserveRejected(code ErrorCode, acquire bool, kind ResourceKind, mode LockType) {
	if m == nil {
		return
	}
	m.rejectedTotal.WithLabelValues(code.String()).Inc()
	if acquire {
		m.acquireTotal.WithLabelValues(kind.String(), mode.String(), ResultRejected).Inc()
	}
}

// ObserveRelease records a successful release.
func (m *Metrics) ObserveRelease(kind ResourceKind) {
	if m == nil {
		return
	}
	m.releaseTotal.WithLabelValues(kind.String()).Inc()
}

// ObservePromotion records a waiter granted by promotion and its queue time.
func (m *Metrics) ObservePromotion(mode LockType, waited time.Duration) {
	if m == nil {
		return
	}
	m.promotedTotal.WithLabelValues(mode.String()).Inc()
	m.waitDuration.WithLabelValues(mode.String()).Observe(waited.Seconds())
}

// SetState publishes the manager's current totals.
func (m *Metrics) SetState(stats ManagerStats) {
	if m == nil {
		return
	}
	m.ownersGauge.Set(float64(stats.Owners))
	m.waitersGauge.Set(float64(stats.Waiters))
	m.resourcesGauge.Set(float64(stats.Resources))
}
