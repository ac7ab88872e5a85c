package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"showcase/internal/ratelimit/models"
	"showcase/internal/ratelimit/store/bucket"
	"showcase/pkg/platform/circuit"
	"showcase/pkg/requestcontext"
)

type failingStore struct {
	calls int
}

func (f *failingStore) Allow(context.Context, string, int, time.Duration) (*models.RateLimitResult, error) {
	f.calls++
	return nil, errors.New("redis: connection refused")
}

func serve(t *testing.T, h http.Handler, ip string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/profiles", nil)
	req = req.WithContext(requestcontext.WithClientIP(req.Context(), ip))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestRateLimit_EnforcesClassBudget(t *testing.T) {
	m := New(bucket.New(), WithLimits(map[models.EndpointClass]models.Limit{
		models.ClassSync: {RequestsPerWindow: 2, Window: time.Minute},
	}))
	h := m.RateLimit(models.ClassSync)(okHandler())

	first := serve(t, h, "10.0.0.1")
	assert.Equal(t, http.StatusOK, first.Code)
	assert.Equal(t, "2", first.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "1", first.Header().Get("X-RateLimit-Remaining"))
	assert.NotEmpty(t, first.Header().Get("X-RateLimit-Reset"))
	assert.Empty(t, first.Header().Get(HeaderStatus))

	assert.Equal(t, http.StatusOK, serve(t, h, "10.0.0.1").Code)

	denied := serve(t, h, "10.0.0.1")
	require.Equal(t, http.StatusTooManyRequests, denied.Code)
	assert.NotEmpty(t, denied.Header().Get("Retry-After"))
	assert.Contains(t, denied.Body.String(), "rate_limit_exceeded")

	t.Run("other client IPs keep their own budget", func(t *testing.T) {
		assert.Equal(t, http.StatusOK, serve(t, h, "10.0.0.2").Code)
	})
}

func TestRateLimit_ClassesAreIndependent(t *testing.T) {
	m := New(bucket.New(), WithLimits(map[models.EndpointClass]models.Limit{
		models.ClassSync: {RequestsPerWindow: 1, Window: time.Minute},
	}))
	syncH := m.RateLimit(models.ClassSync)(okHandler())
	readH := m.RateLimit(models.ClassRead)(okHandler())

	assert.Equal(t, http.StatusOK, serve(t, syncH, "10.0.0.1").Code)
	assert.Equal(t, http.StatusTooManyRequests, serve(t, syncH, "10.0.0.1").Code)
	assert.Equal(t, http.StatusOK, serve(t, readH, "10.0.0.1").Code)
}

func TestRateLimit_Disabled(t *testing.T) {
	primary := &failingStore{}
	h := New(primary, WithDisabled(true)).RateLimit(models.ClassSync)(okHandler())

	for range 20 {
		assert.Equal(t, http.StatusOK, serve(t, h, "10.0.0.1").Code)
	}
	assert.Zero(t, primary.calls)
}

func TestRateLimit_DegradesToFallback(t *testing.T) {
	primary := &failingStore{}
	breaker := circuit.New("ratelimit", circuit.WithFailureThreshold(2), circuit.WithCooldown(time.Hour))
	m := New(primary,
		WithBreaker(breaker),
		WithLimits(map[models.EndpointClass]models.Limit{
			models.ClassRead: {RequestsPerWindow: 3, Window: time.Minute},
		}),
	)
	h := m.RateLimit(models.ClassRead)(okHandler())

	rec := serve(t, h, "10.0.0.1")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "degraded", rec.Header().Get(HeaderStatus))

	serve(t, h, "10.0.0.1")
	assert.True(t, breaker.IsOpen())
	callsWhenOpened := primary.calls

	serve(t, h, "10.0.0.1")
	assert.Equal(t, callsWhenOpened, primary.calls, "open breaker skips the primary store")

	denied := serve(t, h, "10.0.0.1")
	assert.Equal(t, http.StatusTooManyRequests, denied.Code, "fallback still enforces the budget")
	assert.Equal(t, "degraded", denied.Header().Get(HeaderStatus))
}
