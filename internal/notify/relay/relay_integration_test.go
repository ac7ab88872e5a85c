//go:build integration

package relay_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"showcase/internal/notify/bus"
	"showcase/internal/notify/relay"
	"showcase/internal/profile/models"
	"showcase/pkg/testutil/containers"
)

func TestRelay_CrossInstanceDelivery(t *testing.T) {
	rc := containers.GetManager().GetRedis(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hubA, hubB := bus.NewHub(), bus.NewHub()
	relayA := relay.New(rc.Client, hubA, relay.WithChannel("test:events"))
	relayB := relay.New(rc.Client, hubB, relay.WithChannel("test:events"))

	errs := make(chan error, 2)
	go func() { errs <- relayA.Run(ctx) }()
	go func() { errs <- relayB.Run(ctx) }()

	subA, subB := hubA.Subscribe(), hubB.Subscribe()

	// Subscriptions are confirmed asynchronously; publish until B sees one.
	var got models.ChangeEvent
	require.Eventually(t, func() bool {
		relayA.Publish(models.ChangeEvent{SubjectID: "A7", UpdateType: models.UpdateProfile, Timestamp: time.Now().UTC()})
		select {
		case got = <-subB.C():
			return true
		case <-time.After(100 * time.Millisecond):
			return false
		}
	}, 10*time.Second, 10*time.Millisecond)

	assert.Equal(t, "A7", got.SubjectID.String())
	assert.Equal(t, models.UpdateProfile, got.UpdateType)

	select {
	case ev := <-subA.C():
		assert.Equal(t, "A7", ev.SubjectID.String())
	case <-time.After(5 * time.Second):
		t.Fatal("publishing instance did not receive its own event")
	}

	cancel()
	for i := 0; i < 2; i++ {
		assert.NoError(t, <-errs)
	}
}
