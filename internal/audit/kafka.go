package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
)

// KafkaConfig holds Kafka shipper configuration
type KafkaConfig struct {
	Brokers []string
	Topic   string
}

// messageWriter is the part of *kafka.Writer the shipper uses.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaShipper publishes each entry to a topic, keyed by entity so that every
// change to one record lands on the same partition in order.
type KafkaShipper struct {
	writer messageWriter
}

// NewKafkaShipper creates a synchronous writer for cfg.Topic.
func NewKafkaShipper(cfg *KafkaConfig) (*KafkaShipper, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("at least one kafka broker is required")
	}
	if cfg.Topic == "" {
		return nil, fmt.Errorf("kafka topic is required")
	}
	return &KafkaShipper{writer: &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		BatchTimeout: 50 * time.Millisecond,
	}}, nil
}

func (ks *KafkaShipper) Ship(ctx context.Context, entry *Entry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal audit entry: %w", err)
	}
	msg := kafka.Message{
		Key:   []byte(entry.EntityType + ":" + entry.EntityID),
		Value: data,
		Time:  entry.Timestamp,
		Headers: []kafka.Header{
			{Key: "action", Value: []byte(entry.Action)},
		},
	}
	if err := ks.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("failed to publish audit entry: %w", err)
	}
	return nil
}

func (ks *KafkaShipper) Close() error {
	return ks.writer.Close()
}
