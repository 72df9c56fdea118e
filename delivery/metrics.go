package delivery

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcome labels.
const (
	OutcomeDelivered      = "delivered"
	OutcomeRemoteRejected = "remote_rejected"
	OutcomeTransport      = "transport"
	OutcomeTimeout        = "timeout"
	OutcomeKeyError       = "key_error"
	OutcomeSigningError   = "signing_error"
)

// Metrics tracks outbound deliveries.
type Metrics struct {
	Deliveries *prometheus.CounterVec
	Duration   prometheus.Histogram
}

// NewMetrics creates and registers delivery metrics. A nil registry uses the
// default registerer.
func NewMetrics(registry prometheus.Registerer) *Metrics {
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}

	return &Metrics{
		Deliveries: promauto.With(registry).NewCounterVec(prometheus.CounterOpts{
			Namespace: "activitypub",
			Name:      "deliveries_total",
			Help:      "Outbound inbox deliveries by outcome",
		}, []string{"outcome"}),
		Duration: promauto.With(registry).NewHistogram(prometheus.HistogramOpts{
			Namespace: "activitypub",
			Name:      "delivery_duration_seconds",
			Help:      "Time spent on the network exchange of a delivery",
			Buckets:   prometheus.DefBuckets,
		}),
	}
}

func (m *Metrics) observe(outcome string) {
	if m == nil {
		return
	}
	m.Deliveries.WithLabelValues(outcome).Inc()
}
