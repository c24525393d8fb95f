package events

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/twmb/franz-go/pkg/kgo"
)

// KafkaSink publishes status-changed events to a Kafka topic, keyed by
// record id so all events for one record land on the same partition in
// order. Delivery errors are logged, never surfaced: downstream consumers
// (notifications, dashboards) tolerate gaps, transitions must not.
type KafkaSink struct {
	client *kgo.Client
	topic  string
	logger *slog.Logger
}

// KafkaOption configures the KafkaSink.
type KafkaOption func(*KafkaSink)

// WithLogger sets a logger for delivery failures.
func WithLogger(logger *slog.Logger) KafkaOption {
	return func(s *KafkaSink) { s.logger = logger }
}

// NewKafkaSink connects a producer to the given brokers.
func NewKafkaSink(brokers []string, topic string, opts ...KafkaOption) (*KafkaSink, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.DefaultProduceTopic(topic),
	)
	if err != nil {
		return nil, err
	}
	s := &KafkaSink{client: client, topic: topic}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func (s *KafkaSink) Emit(ctx context.Context, event StatusChanged) {
	payload, err := json.Marshal(event)
	if err != nil {
		if s.logger != nil {
			s.logger.ErrorContext(ctx, "failed to encode status-changed event",
				"record_id", event.RecordID, "error", err)
		}
		return
	}
	record := &kgo.Record{
		Topic: s.topic,
		Key:   []byte(event.RecordID.String()),
		Value: payload,
	}
	s.client.Produce(ctx, record, func(_ *kgo.Record, err error) {
		if err != nil && s.logger != nil {
			s.logger.Error("failed to publish status-changed event",
				"record_id", event.RecordID, "error", err)
		}
	})
}

// Close flushes pending produces and releases the client.
func (s *KafkaSink) Close() {
	s.client.Close()
}
