package repository

import (
	"context"

	"github.com/garen0616/sp500-hit-tester-stable/internal/domain/models"
	domainrepo "github.com/garen0616/sp500-hit-tester-stable/internal/domain/repository"
	pkgkafka "github.com/garen0616/sp500-hit-tester-stable/pkg/kafka"
)

// KafkaRunEvents publishes run lifecycle events to a Kafka topic, keyed by
// run ID so one run's events stay ordered.
type KafkaRunEvents struct {
	producer *pkgkafka.Producer
	topic    string
}

// NewKafkaRunEvents creates a Kafka-backed event publisher.
func NewKafkaRunEvents(producer *pkgkafka.Producer, topic string) *KafkaRunEvents {
	return &KafkaRunEvents{producer: producer, topic: topic}
}

var _ domainrepo.RunEvents = (*KafkaRunEvents)(nil)

// Publish sends one lifecycle event.
func (k *KafkaRunEvents) Publish(ctx context.Context, ev models.RunEvent) error {
	return k.producer.Publish(ctx, k.topic, []byte(ev.RunID), ev)
}

// Close closes the producer.
func (k *KafkaRunEvents) Close() error {
	return k.producer.Close()
}

// NoopRunEvents is used when event publishing is disabled.
type NoopRunEvents struct{}

func (NoopRunEvents) Publish(context.Context, models.RunEvent) error { return nil }
func (NoopRunEvents) Close() error                                   { return nil }
