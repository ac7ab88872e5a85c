package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics counts rate-limit decisions.
type Metrics struct {
	// Requests rejected with 429, by endpoint class
	Denied *prometheus.CounterVec

	// Checks answered by the in-memory fallback while the primary store is unhealthy
	Degraded prometheus.Counter

	// Primary store errors
	StoreErrors prometheus.Counter
}

// New registers the rate-limit metrics with reg. A nil reg registers nothing.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Denied: f.NewCounterVec(prometheus.CounterOpts{
			Name: "showcase_ratelimit_denied_total",
			Help: "Requests rejected by the rate limiter",
		}, []string{"class"}),
		Degraded: f.NewCounter(prometheus.CounterOpts{
			Name: "showcase_ratelimit_degraded_checks_total",
			Help: "Rate-limit checks served by the in-memory fallback",
		}),
		StoreErrors: f.NewCounter(prometheus.CounterOpts{
			Name: "showcase_ratelimit_store_errors_total",
			Help: "Errors returned by the primary rate-limit store",
		}),
	}
}

func (m *Metrics) IncrementDenied(class string) {
	if m != nil {
		m.Denied.WithLabelValues(class).Inc()
	}
}

func (m *Metrics) IncrementDegraded() {
	if m != nil {
		m.Degraded.Inc()
	}
}

func (m *Metrics) IncrementStoreErrors() {
	if m != nil {
		m.StoreErrors.Inc()
	}
}
