package relay

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"showcase/internal/notify/bus"
	"showcase/internal/notify/metrics"
	"showcase/internal/profile/models"
)

func TestRelay_FallsBackToLocalDelivery(t *testing.T) {
	// Nothing listens on port 1; every publish fails fast.
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 50 * time.Millisecond,
		MaxRetries:  -1,
	})
	t.Cleanup(func() { _ = client.Close() })

	m := metrics.New(prometheus.NewRegistry())
	hub := bus.NewHub()
	sub := hub.Subscribe()
	r := New(client, hub, WithMetrics(m))

	r.Publish(models.ChangeEvent{SubjectID: "A1", UpdateType: models.UpdateSync, Timestamp: time.Now()})

	select {
	case ev := <-sub.C():
		assert.Equal(t, "A1", ev.SubjectID.String())
	case <-time.After(3 * time.Second):
		t.Fatal("event not delivered locally")
	}
	require.Equal(t, float64(1), testutil.ToFloat64(m.RelayFallbacks))
}
