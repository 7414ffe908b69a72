// Package messaging publishes domain events to Kafka. Publishing is
// optional: when disabled in config the service runs without it.
package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/confluentinc/confluent-kafka-go/kafka"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Topics published by this service.
const (
	TopicSyncCompleted = "catalog.sync.completed"
	TopicOrderCreated  = "orders.created"
)

// Publisher is the event-publishing surface the sync pipeline and the
// webhook handler depend on.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload interface{}) error
	Close() error
}

// KafkaPublisher publishes JSON events through a Kafka producer.
type KafkaPublisher struct {
	producer *kafka.Producer
	log      *zap.Logger
}

// NewKafkaPublisher creates the producer.
func NewKafkaPublisher(brokers []string, log *zap.Logger) (*KafkaPublisher, error) {
	producer, err := kafka.NewProducer(&kafka.ConfigMap{
		"bootstrap.servers": strings.Join(brokers, ","),
		"client.id":         "blmotorcycles-backend",
		"acks":              "all",
		"retries":           5,
		"retry.backoff.ms":  500,
		"compression.type":  "snappy",
		"linger.ms":         10,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka producer: %w", err)
	}
	return &KafkaPublisher{producer: producer, log: log}, nil
}

// Publish JSON-encodes the payload and produces it, waiting for the
// broker's delivery report.
func (k *KafkaPublisher) Publish(ctx context.Context, topic string, payload interface{}) error {
	value, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal event payload: %w", err)
	}

	deliveryChan := make(chan kafka.Event, 1)
	msg := &kafka.Message{
		TopicPartition: kafka.TopicPartition{Topic: &topic, Partition: kafka.PartitionAny},
		Value:          value,
		Headers: []kafka.Header{
			{Key: "message_id", Value: []byte(uuid.New().String())},
			{Key: "timestamp", Value: []byte(time.Now().UTC().Format(time.RFC3339Nano))},
		},
	}

	if err := k.producer.Produce(msg, deliveryChan); err != nil {
		return fmt.Errorf("failed to produce event: %w", err)
	}

	select {
	case ev := <-deliveryChan:
		m, ok := ev.(*kafka.Message)
		if !ok {
			return fmt.Errorf("unexpected delivery event: %v", ev)
		}
		if m.TopicPartition.Error != nil {
			return fmt.Errorf("event delivery failed: %w", m.TopicPartition.Error)
		}
		k.log.Debug("event published",
			zap.String("topic", topic),
			zap.Int32("partition", m.TopicPartition.Partition))
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close flushes outstanding messages and shuts the producer down.
func (k *KafkaPublisher) Close() error {
	k.producer.Flush(5000)
	k.producer.Close()
	return nil
}

// NopPublisher satisfies Publisher when messaging is disabled.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, string, interface{}) error { return nil }
func (NopPublisher) Close() error                                       { return nil }
