// Package middleware applies per-client-IP request budgets to HTTP routes.
package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"showcase/internal/platform/logger"
	"showcase/internal/ratelimit/metrics"
	"showcase/internal/ratelimit/models"
	"showcase/internal/ratelimit/store/bucket"
	"showcase/pkg/platform/circuit"
	"showcase/pkg/platform/httputil"
	"showcase/pkg/requestcontext"
)

// BucketStore counts requests per key inside a sliding window.
type BucketStore interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (*models.RateLimitResult, error)
}

// HeaderStatus is set to "degraded" while checks run against the fallback store.
const HeaderStatus = "X-RateLimit-Status"

// DefaultLimits are the per-class budgets used when none are configured.
var DefaultLimits = map[models.EndpointClass]models.Limit{
	models.ClassSync:   {RequestsPerWindow: 10, Window: time.Minute},
	models.ClassRead:   {RequestsPerWindow: 120, Window: time.Minute},
	models.ClassStream: {RequestsPerWindow: 20, Window: time.Minute},
}

type Middleware struct {
	primary  BucketStore
	fallback BucketStore
	breaker  *circuit.Breaker
	limits   map[models.EndpointClass]models.Limit
	metrics  *metrics.Metrics
	logger   *slog.Logger
	disabled bool
}

type Option func(*Middleware)

// WithDisabled disables rate limiting entirely (for testing/demo mode).
func WithDisabled(disabled bool) Option {
	return func(m *Middleware) {
		m.disabled = disabled
	}
}

// WithLimits overrides the budget of each class present in limits.
func WithLimits(limits map[models.EndpointClass]models.Limit) Option {
	return func(m *Middleware) {
		for class, limit := range limits {
			if limit.RequestsPerWindow > 0 && limit.Window > 0 {
				m.limits[class] = limit
			}
		}
	}
}

// WithFallback replaces the in-memory store used while the primary is unhealthy.
func WithFallback(store BucketStore) Option {
	return func(m *Middleware) {
		m.fallback = store
	}
}

// WithBreaker replaces the breaker guarding the primary store.
func WithBreaker(b *circuit.Breaker) Option {
	return func(m *Middleware) {
		m.breaker = b
	}
}

func WithMetrics(mt *metrics.Metrics) Option {
	return func(m *Middleware) {
		m.metrics = mt
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(m *Middleware) {
		m.logger = l
	}
}

// New creates the middleware. primary may be a shared store such as
// bucket.RedisBucketStore; errors from it open the breaker and route checks
// to an in-memory fallback until it recovers.
func New(primary BucketStore, opts ...Option) *Middleware {
	m := &Middleware{
		primary:  primary,
		fallback: bucket.New(),
		breaker: circuit.New("ratelimit",
			circuit.WithFailureThreshold(5),
			circuit.WithSuccessThreshold(3),
			circuit.WithCooldown(5*time.Second),
		),
		limits: make(map[models.EndpointClass]models.Limit, len(DefaultLimits)),
		logger: logger.Discard(),
	}
	for class, limit := range DefaultLimits {
		m.limits[class] = limit
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.disabled {
		m.logger.Info("rate limiting disabled")
	}
	return m
}

// RateLimit returns middleware enforcing the budget of class per client IP.
func (m *Middleware) RateLimit(class models.EndpointClass) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if m.disabled {
				next.ServeHTTP(w, r)
				return
			}

			ctx := r.Context()
			ip := requestcontext.ClientIP(ctx)

			result, degraded, err := m.check(ctx, models.NewIPRateLimitKey(ip, class), class)
			if err != nil {
				m.logger.ErrorContext(ctx, "failed to check IP rate limit", "error", err, "class", class)
				next.ServeHTTP(w, r)
				return
			}

			if degraded {
				w.Header().Set(HeaderStatus, "degraded")
			}
			// Add headers regardless of outcome
			addRateLimitHeaders(w, result)

			if !result.Allowed {
				m.metrics.IncrementDenied(string(class))
				writeRateLimitExceeded(w, result)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func (m *Middleware) check(ctx context.Context, key string, class models.EndpointClass) (*models.RateLimitResult, bool, error) {
	limit, ok := m.limits[class]
	if !ok {
		limit = DefaultLimits[models.ClassRead]
	}

	if m.breaker.Allow() {
		result, err := m.primary.Allow(ctx, key, limit.RequestsPerWindow, limit.Window)
		if err == nil {
			if _, change := m.breaker.RecordSuccess(); change.Closed {
				m.logger.InfoContext(ctx, "rate limit store recovered")
			}
			return result, false, nil
		}
		m.metrics.IncrementStoreErrors()
		if _, change := m.breaker.RecordFailure(); change.Opened {
			m.logger.WarnContext(ctx, "rate limit store unhealthy, using in-memory fallback", "error", err)
		}
	}

	m.metrics.IncrementDegraded()
	result, err := m.fallback.Allow(ctx, key, limit.RequestsPerWindow, limit.Window)
	return result, true, err
}

func addRateLimitHeaders(w http.ResponseWriter, result *models.RateLimitResult) {
	if result == nil {
		return
	}
	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(result.Limit))
	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
	w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(result.ResetAt.Unix(), 10))
}

func writeRateLimitExceeded(w http.ResponseWriter, result *models.RateLimitResult) {
	w.Header().Set("Retry-After", strconv.Itoa(result.RetryAfter))
	httputil.WriteJSON(w, http.StatusTooManyRequests, &models.RateLimitExceededResponse{
		Error:      "rate_limit_exceeded",
		Message:    "Too many requests from this IP address. Please try again later.",
		RetryAfter: result.RetryAfter,
	})
}
