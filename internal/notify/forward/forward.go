// Package forward writes change events to a Kafka topic for consumers
// outside this service, such as static site exporters.
package forward

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"

	"showcase/internal/notify/bus"
	"showcase/internal/notify/metrics"
	"showcase/internal/platform/logger"
	"showcase/internal/profile/models"
)

const produceTimeout = 5 * time.Second

// Producer is the part of *kgo.Client the forwarder uses.
type Producer interface {
	ProduceSync(ctx context.Context, rs ...*kgo.Record) kgo.ProduceResults
}

// Forwarder subscribes to the hub and produces one record per event, keyed
// by subject so a subject's events stay ordered within a partition.
type Forwarder struct {
	producer Producer
	topic    string
	hub      *bus.Hub
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

// Option configures a Forwarder.
type Option func(*Forwarder)

func WithMetrics(m *metrics.Metrics) Option {
	return func(f *Forwarder) {
		f.metrics = m
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(f *Forwarder) {
		f.logger = l
	}
}

func New(producer Producer, topic string, hub *bus.Hub, opts ...Option) *Forwarder {
	f := &Forwarder{
		producer: producer,
		topic:    topic,
		hub:      hub,
		logger:   logger.Discard(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Run forwards events until ctx ends or the hub closes.
func (f *Forwarder) Run(ctx context.Context) error {
	events, unsubscribe := f.hub.SubscribeFunc(ctx)
	defer unsubscribe()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-events:
			if !ok {
				return nil
			}
			f.forward(ctx, event)
		}
	}
}

func (f *Forwarder) forward(ctx context.Context, event models.ChangeEvent) {
	value, err := json.Marshal(event)
	if err != nil {
		f.metrics.IncrementForwarded("error")
		f.logger.ErrorContext(ctx, "encode change event", "subject_id", event.SubjectID, "error", err)
		return
	}
	record := &kgo.Record{
		Topic:     f.topic,
		Key:       []byte(event.SubjectID.String()),
		Value:     value,
		Timestamp: event.Timestamp,
		Headers: []kgo.RecordHeader{
			{Key: "update-type", Value: []byte(event.UpdateType)},
		},
	}

	ctx, cancel := context.WithTimeout(ctx, produceTimeout)
	defer cancel()
	if err := f.producer.ProduceSync(ctx, record).FirstErr(); err != nil {
		f.metrics.IncrementForwarded("error")
		f.logger.WarnContext(ctx, "forward change event failed",
			"subject_id", event.SubjectID, "topic", f.topic, "error", err)
		return
	}
	f.metrics.IncrementForwarded("ok")
}
