package events

import (
	"context"
	"fmt"
	"time"

	"storefront/internal/model"

	"github.com/segmentio/kafka-go"
)

// KafkaPublisher writes outbox events to a Kafka topic keyed by order number,
// so all events of one order land on the same partition.
type KafkaPublisher struct {
	writer *kafka.Writer
}

// NewKafkaPublisher creates a publisher for the given brokers and topic.
func NewKafkaPublisher(brokers []string, topic string) *KafkaPublisher {
	return &KafkaPublisher{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireOne,
			BatchTimeout: 50 * time.Millisecond,
		},
	}
}

// Publish writes the events in one batch.
func (p *KafkaPublisher) Publish(ctx context.Context, events []model.OutboxEvent) error {
	if len(events) == 0 {
		return nil
	}

	msgs := make([]kafka.Message, len(events))
	for i, ev := range events {
		msgs[i] = toMessage(ev)
	}

	if err := p.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("failed to write kafka messages: %w", err)
	}
	return nil
}

// Close flushes and closes the writer.
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

func toMessage(ev model.OutboxEvent) kafka.Message {
	return kafka.Message{
		Key:   []byte(ev.Key),
		Value: ev.Payload,
		Time:  ev.CreatedAt.UTC(),
		Headers: []kafka.Header{
			{Key: "event_id", Value: []byte(ev.EventID)},
			{Key: "event_type", Value: []byte(ev.Topic)},
		},
	}
}
