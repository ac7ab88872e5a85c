// Package relay bridges change events between service instances over Redis
// pub/sub so a subscriber connected to any instance sees every change.
package relay

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"showcase/internal/notify/bus"
	"showcase/internal/notify/metrics"
	"showcase/internal/platform/logger"
	"showcase/internal/profile/models"
)

const (
	DefaultChannel = "showcase:events"
	publishTimeout = 2 * time.Second
)

// Relay publishes to Redis and feeds events received from Redis into the
// local hub. When Redis rejects a publish the event is delivered locally so
// this instance's subscribers still see it.
type Relay struct {
	client  redis.UniversalClient
	channel string
	local   *bus.Hub
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// Option configures a Relay.
type Option func(*Relay)

func WithChannel(channel string) Option {
	return func(r *Relay) {
		if channel != "" {
			r.channel = channel
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Relay) {
		r.metrics = m
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(r *Relay) {
		r.logger = l
	}
}

func New(client redis.UniversalClient, local *bus.Hub, opts ...Option) *Relay {
	r := &Relay{
		client:  client,
		channel: DefaultChannel,
		local:   local,
		logger:  logger.Discard(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Publish sends event to every instance, this one included.
func (r *Relay) Publish(event models.ChangeEvent) {
	payload, err := json.Marshal(event)
	if err == nil {
		ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
		err = r.client.Publish(ctx, r.channel, payload).Err()
		cancel()
	}
	if err != nil {
		r.metrics.IncrementRelayFallback()
		r.logger.Warn("relay publish failed, delivering locally",
			"subject_id", event.SubjectID, "channel", r.channel, "error", err)
		r.local.Publish(event)
	}
}

// Run subscribes to the channel and forwards every message to the local hub
// until ctx ends.
func (r *Relay) Run(ctx context.Context) error {
	sub := r.client.Subscribe(ctx, r.channel)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("subscribe %s: %w", r.channel, err)
	}
	r.logger.InfoContext(ctx, "relay subscribed", "channel", r.channel)

	messages := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-messages:
			if !ok {
				return nil
			}
			var event models.ChangeEvent
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				r.logger.WarnContext(ctx, "dropping malformed relay message", "error", err)
				continue
			}
			r.local.Publish(event)
		}
	}
}
