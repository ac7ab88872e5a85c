package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for profile synchronization.
type Metrics struct {
	// Sync runs by outcome: "success", "failed", "not_found"
	SyncRuns *prometheus.CounterVec

	// Callers that joined an in-flight run instead of starting one
	SyncJoined prometheus.Counter

	// Wall time of one sync run, fetch through publish
	SyncDuration prometheus.Histogram

	// Upstream calls retried after a transient failure, by operation
	FetchRetries *prometheus.CounterVec

	// Source records dropped by the normalizer, by collection
	SkippedRecords *prometheus.CounterVec

	// Runs currently executing
	SyncInFlight prometheus.Gauge
}

// New registers the profile metrics with reg. A nil reg registers nothing,
// which keeps tests free of global registry collisions.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		SyncRuns: f.NewCounterVec(prometheus.CounterOpts{
			Name: "showcase_profile_sync_runs_total",
			Help: "Total profile sync runs by outcome",
		}, []string{"outcome"}),

		SyncJoined: f.NewCounter(prometheus.CounterOpts{
			Name: "showcase_profile_sync_joined_total",
			Help: "Sync requests that joined an in-flight run for the same subject",
		}),

		SyncDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "showcase_profile_sync_duration_seconds",
			Help:    "Duration of profile sync runs",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}),

		FetchRetries: f.NewCounterVec(prometheus.CounterOpts{
			Name: "showcase_profile_fetch_retries_total",
			Help: "Upstream fetches retried after a transient failure",
		}, []string{"operation"}),

		SkippedRecords: f.NewCounterVec(prometheus.CounterOpts{
			Name: "showcase_profile_skipped_records_total",
			Help: "Source records skipped during normalization",
		}, []string{"collection"}),

		SyncInFlight: f.NewGauge(prometheus.GaugeOpts{
			Name: "showcase_profile_sync_in_flight",
			Help: "Profile sync runs currently executing",
		}),
	}
}

// IncrementRun records a finished run.
func (m *Metrics) IncrementRun(outcome string) {
	if m != nil {
		m.SyncRuns.WithLabelValues(outcome).Inc()
	}
}

// IncrementJoined records a caller served by someone else's run.
func (m *Metrics) IncrementJoined() {
	if m != nil {
		m.SyncJoined.Inc()
	}
}

// ObserveDuration records the duration of one run.
func (m *Metrics) ObserveDuration(d time.Duration) {
	if m != nil {
		m.SyncDuration.Observe(d.Seconds())
	}
}

// IncrementRetry records one retried upstream call.
func (m *Metrics) IncrementRetry(operation string) {
	if m != nil {
		m.FetchRetries.WithLabelValues(operation).Inc()
	}
}

// AddSkipped records n skipped records for collection.
func (m *Metrics) AddSkipped(collection string, n int) {
	if m != nil && n > 0 {
		m.SkippedRecords.WithLabelValues(collection).Add(float64(n))
	}
}

// RunStarted and RunFinished track in-flight runs.
func (m *Metrics) RunStarted() {
	if m != nil {
		m.SyncInFlight.Inc()
	}
}

func (m *Metrics) RunFinished() {
	if m != nil {
		m.SyncInFlight.Dec()
	}
}
