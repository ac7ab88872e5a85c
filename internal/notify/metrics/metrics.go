package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for change notification fan-out.
type Metrics struct {
	Published   prometheus.Counter
	Dropped     prometheus.Counter
	Subscribers prometheus.Gauge

	// Relay publish failures that fell back to local delivery
	RelayFallbacks prometheus.Counter

	// Events written to the downstream topic, by outcome: "ok", "error"
	Forwarded *prometheus.CounterVec
}

// New registers the notification metrics with reg. A nil reg registers nothing.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Published: f.NewCounter(prometheus.CounterOpts{
			Name: "showcase_notify_events_published_total",
			Help: "Change events fanned out to local subscribers",
		}),
		Dropped: f.NewCounter(prometheus.CounterOpts{
			Name: "showcase_notify_events_dropped_total",
			Help: "Events dropped from full subscriber buffers (oldest first)",
		}),
		Subscribers: f.NewGauge(prometheus.GaugeOpts{
			Name: "showcase_notify_subscribers",
			Help: "Currently connected subscribers",
		}),
		RelayFallbacks: f.NewCounter(prometheus.CounterOpts{
			Name: "showcase_notify_relay_fallbacks_total",
			Help: "Relay publishes that failed and were delivered locally only",
		}),
		Forwarded: f.NewCounterVec(prometheus.CounterOpts{
			Name: "showcase_notify_events_forwarded_total",
			Help: "Change events forwarded to the downstream topic",
		}, []string{"outcome"}),
	}
}

func (m *Metrics) IncrementPublished() {
	if m != nil {
		m.Published.Inc()
	}
}

func (m *Metrics) IncrementDropped() {
	if m != nil {
		m.Dropped.Inc()
	}
}

func (m *Metrics) SubscriberAdded() {
	if m != nil {
		m.Subscribers.Inc()
	}
}

func (m *Metrics) SubscriberRemoved() {
	if m != nil {
		m.Subscribers.Dec()
	}
}

func (m *Metrics) IncrementRelayFallback() {
	if m != nil {
		m.RelayFallbacks.Inc()
	}
}

func (m *Metrics) IncrementForwarded(outcome string) {
	if m != nil {
		m.Forwarded.WithLabelValues(outcome).Inc()
	}
}
