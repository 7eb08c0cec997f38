package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"idle-market/config"
	"idle-market/internal/core/domain"

	"github.com/segmentio/kafka-go"
)

// MessageWriter is the subset of *kafka.Writer used by KafkaPublisher.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// NewKafkaWriter constructs a writer for the settlement topic. Messages are
// hashed by key so every event of one listing lands on the same partition.
// Publish writes one event per call on the request path, so a batch is a
// single message and is flushed without waiting for BatchTimeout.
func NewKafkaWriter(cfg config.KafkaConfig) *kafka.Writer {
	batchTimeout := cfg.BatchTimeout
	if batchTimeout <= 0 {
		batchTimeout = 5 * time.Millisecond
	}
	writeTimeout := cfg.WriteTimeout
	if writeTimeout <= 0 {
		writeTimeout = 5 * time.Second
	}
	return &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Topic:                  cfg.Topic,
		Balancer:               &kafka.Hash{},
		BatchSize:              1,
		BatchTimeout:           batchTimeout,
		WriteTimeout:           writeTimeout,
		RequiredAcks:           kafka.RequireOne,
		AllowAutoTopicCreation: true,
	}
}

// KafkaPublisher implements ports.EventPublisher on a Kafka topic.
type KafkaPublisher struct {
	w MessageWriter
}

// NewKafkaPublisher wraps w.
func NewKafkaPublisher(w MessageWriter) *KafkaPublisher {
	return &KafkaPublisher{w: w}
}

// Publish writes one event keyed by listing id.
func (p *KafkaPublisher) Publish(ctx context.Context, event domain.ListingEvent) error {
	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal listing event: %w", err)
	}
	msg := kafka.Message{
		Key:   []byte(event.ListingID.String()),
		Value: value,
		Time:  event.OccurredAt,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(event.Type)},
		},
	}
	if err := p.w.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("write %s to kafka: %w", event.Type, err)
	}
	return nil
}

// Close flushes pending messages and closes the writer.
func (p *KafkaPublisher) Close() error {
	return p.w.Close()
}
