package emitter

import (
	"context"
	"fmt"

	"github.com/segmentio/kafka-go"
)

// messageWriter is the part of *kafka.Writer the emitter uses.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaEmitter writes capture events to a Kafka topic, keyed by capture id.
type KafkaEmitter struct {
	topic  string
	writer messageWriter
}

// NewKafkaEmitter creates an emitter writing synchronously to topic.
func NewKafkaEmitter(brokers []string, topic string) *KafkaEmitter {
	return &KafkaEmitter{
		topic: topic,
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireOne,
			Async:        false,
		},
	}
}

func (k *KafkaEmitter) Name() string { return "kafka" }

func (k *KafkaEmitter) Emit(ctx context.Context, e Event) error {
	payload, err := e.Payload()
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(e.ID),
		Value: payload,
		Time:  e.CapturedAt,
		Headers: []kafka.Header{
			{Key: "garment", Value: []byte(e.Garment)},
		},
	}
	if err := k.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("write to %s: %w", k.topic, err)
	}
	return nil
}

func (k *KafkaEmitter) Close() error {
	return k.writer.Close()
}
