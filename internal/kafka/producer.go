package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/neuroleaf/neuroleaf-api/internal/service"
	"github.com/neuroleaf/neuroleaf-api/pkg/logger"
)

// Producer publishes tier-change events for downstream consumers (emails,
// analytics). It satisfies service.TierChangePublisher.
type Producer interface {
	PublishTierChange(ctx context.Context, event service.TierChangeEvent) error
	Close() error
}

type kafkaProducer struct {
	writer *kafka.Writer
	log    *logger.Logger
}

// NewProducer creates a producer writing to the given topic.
func NewProducer(brokers []string, topic string, log *logger.Logger) (Producer, error) {
	if len(brokers) == 0 {
		return nil, errors.New("kafka brokers are not configured")
	}

	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.LeastBytes{},
		RequiredAcks: kafka.RequireOne,
		BatchSize:    100,
		BatchTimeout: 10 * time.Millisecond,
		WriteTimeout: 10 * time.Second,
		ReadTimeout:  10 * time.Second,
	}

	log.Infow("Kafka producer initialized", "brokers", brokers, "topic", topic)
	return &kafkaProducer{writer: writer, log: log}, nil
}

// PublishTierChange keys messages by account id so all events for one
// account land on the same partition in order.
func (k *kafkaProducer) PublishTierChange(ctx context.Context, event service.TierChangeEvent) error {
	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("kafka: failed to marshal tier change event: %w", err)
	}

	message := kafka.Message{
		Key:   []byte(event.AccountID),
		Value: value,
		Time:  time.Now(),
	}

	writeCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	if err := k.writer.WriteMessages(writeCtx, message); err != nil {
		k.log.Errorw("Failed to write tier change to Kafka",
			"accountID", event.AccountID, "error", err)
		return fmt.Errorf("kafka: failed to write message: %w", err)
	}

	k.log.Debugw("Published tier change event",
		"accountID", event.AccountID, "from", event.FromTier, "to", event.ToTier)
	return nil
}

func (k *kafkaProducer) Close() error {
	k.log.Infow("Closing Kafka producer writer")
	return k.writer.Close()
}

// NoopProducer is used when no brokers are configured. Tier changes are only
// logged; the account row stays the source of truth.
type NoopProducer struct {
	log *logger.Logger
}

func NewNoopProducer(log *logger.Logger) *NoopProducer {
	return &NoopProducer{log: log}
}

func (n *NoopProducer) PublishTierChange(_ context.Context, event service.TierChangeEvent) error {
	n.log.Debugw("Tier change event dropped, no Kafka brokers configured",
		"accountID", event.AccountID, "from", event.FromTier, "to", event.ToTier)
	return nil
}

func (n *NoopProducer) Close() error { return nil }
