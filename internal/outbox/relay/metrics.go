package relay

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the relay loop.
type Metrics struct {
	Published      prometheus.Counter
	PublishFailed  prometheus.Counter
	BacklogFetched prometheus.Histogram
}

// NewMetrics registers the relay metrics on the default registry.
func NewMetrics() *Metrics {
	return &Metrics{
		Published: promauto.NewCounter(prometheus.CounterOpts{
			Name: "scimgate_relay_published_total",
			Help: "Total outbox messages published and marked processed",
		}),
		PublishFailed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "scimgate_relay_publish_failures_total",
			Help: "Total publish attempts rejected by the broker",
		}),
		BacklogFetched: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "scimgate_relay_batch_size",
			Help:    "Unprocessed messages fetched per relay cycle",
			Buckets: []float64{0, 1, 5, 10, 25, 50, 100, 250},
		}),
	}
}

func (m *Metrics) observePublished() {
	if m != nil {
		m.Published.Inc()
	}
}

func (m *Metrics) observePublishFailed() {
	if m != nil {
		m.PublishFailed.Inc()
	}
}

func (m *Metrics) observeBatch(n int) {
	if m != nil {
		m.BacklogFetched.Observe(float64(n))
	}
}
