package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the provisioning module.
type Metrics struct {
	// Operation outcomes by entity, action and result
	Operations *prometheus.CounterVec

	// End-to-end latency of provisioning operations
	OperationLatency *prometheus.HistogramVec
}

// New creates a new Metrics instance registered on the default registry.
func New() *Metrics {
	return &Metrics{
		Operations: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "scimgate_provisioning_operations_total",
			Help: "Total provisioning operations by entity, action and outcome",
		}, []string{"entity", "action", "outcome"}), // outcome: "success", "rejected", "failed"

		OperationLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "scimgate_provisioning_duration_seconds",
			Help:    "Duration of provisioning operations including the transaction",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}, []string{"entity", "action"}),
	}
}

// IncrementOperation records one operation outcome.
func (m *Metrics) IncrementOperation(entity, action, outcome string) {
	if m != nil {
		m.Operations.WithLabelValues(entity, action, outcome).Inc()
	}
}

// ObserveOperationLatency records the duration of one operation.
func (m *Metrics) ObserveOperationLatency(entity, action string, d time.Duration) {
	if m != nil {
		m.OperationLatency.WithLabelValues(entity, action).Observe(d.Seconds())
	}
}
