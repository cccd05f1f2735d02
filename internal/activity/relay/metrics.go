package relay

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics tracks outbox relay throughput.
type Metrics struct {
	Published     prometheus.Counter
	BatchFailures prometheus.Counter
	BatchLatency  prometheus.Histogram
}

func NewMetrics() *Metrics {
	return NewMetricsWithRegisterer(prometheus.DefaultRegisterer)
}

func NewMetricsWithRegisterer(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Published: factory.NewCounter(prometheus.CounterOpts{
			Name: "leasecover_activity_relay_published_total",
			Help: "Activities produced to Kafka",
		}),
		BatchFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "leasecover_activity_relay_batch_failures_total",
			Help: "Relay batches rolled back after a claim or produce failure",
		}),
		BatchLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "leasecover_activity_relay_batch_duration_seconds",
			Help:    "Duration of one claim-produce-mark relay batch",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}),
	}
}

func (m *Metrics) observeBatch(n int, elapsed time.Duration, err error) {
	if m == nil {
		return
	}
	m.BatchLatency.Observe(elapsed.Seconds())
	if err != nil {
		m.BatchFailures.Inc()
		return
	}
	m.Published.Add(float64(n))
}
