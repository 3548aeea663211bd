package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "recordbench"

// StoreMetrics groups the collectors for record store operations.
// Labels: operation, table and outcome ("ok" or the failure kind).
type StoreMetrics struct {
	duration *prometheus.HistogramVec
	total    *prometheus.CounterVec
	inFlight *prometheus.GaugeVec
}

// NewStoreMetrics builds unregistered collectors. Most callers get them from Registry.Store.
func NewStoreMetrics() *StoreMetrics {
	return &StoreMetrics{
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "operation_duration_seconds",
				Help:      "Record store operation latency in seconds",
				// 50us .. ~3.3s
				Buckets: prometheus.ExponentialBuckets(0.00005, 2, 17),
			},
			[]string{"operation", "table", "outcome"},
		),
		total: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "operations_total",
				Help:      "Total number of record store operations",
			},
			[]string{"operation", "table", "outcome"},
		),
		inFlight: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "operations_in_flight",
				Help:      "Record store operations currently executing",
			},
			[]string{"operation"},
		),
	}
}

func (m *StoreMetrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{m.duration, m.total, m.inFlight}
}

// Observe records one finished operation.
func (m *StoreMetrics) Observe(operation, table, outcome string, elapsed time.Duration) {
	m.duration.WithLabelValues(operation, table, outcome).Observe(elapsed.Seconds())
	m.total.WithLabelValues(operation, table, outcome).Inc()
}

// Begin marks an operation as started and returns the func that marks it done.
func (m *StoreMetrics) Begin(operation string) func() {
	gauge := m.inFlight.WithLabelValues(operation)
	gauge.Inc()
	return gauge.Dec
}
