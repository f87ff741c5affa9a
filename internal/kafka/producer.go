package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"github.com/trogers1052/fund-tracker/internal/models"
)

// Producer handles publishing fund events to Kafka
type Producer struct {
	writer *kafka.Writer
	topic  string
}

// NewProducer creates a new Kafka producer
func NewProducer(brokers []string, topic string) *Producer {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.LeastBytes{},
		BatchTimeout: 10 * time.Millisecond,
	}

	return &Producer{
		writer: writer,
		topic:  topic,
	}
}

// PublishTransactionRecorded publishes a ledger-entry-recorded event
func (p *Producer) PublishTransactionRecorded(ctx context.Context, t *models.Transaction) error {
	event := models.FundEvent{
		EventID:     uuid.NewString(),
		EventType:   models.EventTransactionRecorded,
		FundCode:    t.FundCode,
		Transaction: t,
		Timestamp:   time.Now(),
	}
	return p.publish(ctx, t.FundCode, event)
}

// PublishTransactionDeleted publishes a ledger-entry-deleted event
func (p *Producer) PublishTransactionDeleted(ctx context.Context, t *models.Transaction) error {
	event := models.FundEvent{
		EventID:     uuid.NewString(),
		EventType:   models.EventTransactionDeleted,
		FundCode:    t.FundCode,
		Transaction: t,
		Timestamp:   time.Now(),
	}
	return p.publish(ctx, t.FundCode, event)
}

// PublishNavUpdated publishes a NAV refresh event
func (p *Producer) PublishNavUpdated(ctx context.Context, q *models.NavQuote) error {
	event := models.FundEvent{
		EventID:   uuid.NewString(),
		EventType: models.EventNavUpdated,
		FundCode:  q.FundCode,
		Nav:       q,
		Timestamp: time.Now(),
	}
	return p.publish(ctx, q.FundCode, event)
}

func (p *Producer) publish(ctx context.Context, key string, event models.FundEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(key),
		Value: data,
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("failed to write message to kafka: %w", err)
	}

	return nil
}

// Close closes the Kafka producer
func (p *Producer) Close() error {
	return p.writer.Close()
}
