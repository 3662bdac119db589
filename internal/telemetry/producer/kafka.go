// Package producer ships security events to Kafka for the log pipeline.
package producer

import (
	"context"
	"time"

	"github.com/segmentio/kafka-go"

	eventdomain "trustgate/internal/event/domain"
	"trustgate/internal/telemetry"
)

// KafkaEmitter writes events to a Kafka topic in the pipeline's JSON shape.
type KafkaEmitter struct {
	writer *kafka.Writer
}

// NewKafkaEmitter returns a Kafka-backed emitter, or nil when brokers or
// topic are unset so callers can treat the sink as disabled. Call Close when
// shutting down.
func NewKafkaEmitter(brokers []string, topic string) *KafkaEmitter {
	if len(brokers) == 0 || topic == "" {
		return nil
	}
	return &KafkaEmitter{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.LeastBytes{},
			BatchTimeout: 50 * time.Millisecond,
		},
	}
}

// Emit serializes the event and writes it to the topic. A short timeout keeps
// a slow broker from blocking callers indefinitely.
func (p *KafkaEmitter) Emit(ctx context.Context, e *eventdomain.Event) error {
	if p == nil || p.writer == nil || e == nil {
		return nil
	}
	payload, err := telemetry.Encode(e)
	if err != nil {
		return err
	}
	writeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return p.writer.WriteMessages(writeCtx, kafka.Message{
		Key:   []byte(e.Type),
		Value: payload,
	})
}

// Close closes the Kafka writer. Safe to call multiple times.
func (p *KafkaEmitter) Close() error {
	if p == nil || p.writer == nil {
		return nil
	}
	return p.writer.Close()
}
