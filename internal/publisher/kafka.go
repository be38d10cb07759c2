package publisher

import (
	"context"
	"sync/atomic"

	"BarBridge/internal/domain/models"
	pkgkafka "BarBridge/pkg/kafka"
)

// KafkaBackend pushes bar records to a Kafka topic, keyed by symbol so one
// instrument stays on one partition.
type KafkaBackend struct {
	producer *pkgkafka.Producer
	topic    string

	// best-effort: true after Connect, flipped by send outcomes
	connected atomic.Bool
}

// NewKafkaBackend wraps an existing producer.
func NewKafkaBackend(producer *pkgkafka.Producer, topic string) *KafkaBackend {
	return &KafkaBackend{producer: producer, topic: topic}
}

// Connect marks the backend usable; the writer itself dials lazily.
func (b *KafkaBackend) Connect(context.Context) error {
	b.connected.Store(true)
	return nil
}

// Send publishes one record.
func (b *KafkaBackend) Send(ctx context.Context, rec models.BarRecord) error {
	err := b.producer.Publish(ctx, b.topic, []byte(rec.Symbol), rec)
	b.connected.Store(err == nil)
	return err
}

// Connected reflects the outcome of the most recent publish.
func (b *KafkaBackend) Connected() bool { return b.connected.Load() }

// Close marks the backend down. The shared producer is closed by its owner.
func (b *KafkaBackend) Close() error {
	b.connected.Store(false)
	return nil
}
