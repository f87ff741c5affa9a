package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"github.com/trogers1052/fund-tracker/internal/models"
)

// TransactionRepository defines the database operations the consumer needs
type TransactionRepository interface {
	EnsureFund(code, name string, nav decimal.Decimal) error
	CreateTransaction(t *models.Transaction) error
	TransactionExistsByExternalRef(externalRef, source string) (bool, error)
}

// Consumer ingests transaction events produced by external importers
// (CSV pipelines, broker exports). Entries are deduplicated by
// (external_ref, source) so replays are harmless.
type Consumer struct {
	reader *kafka.Reader
	repo   TransactionRepository
}

// NewConsumer creates a new Kafka consumer for imported transactions
func NewConsumer(brokers []string, topic, groupID string, repo TransactionRepository) *Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        brokers,
		Topic:          topic,
		GroupID:        groupID,
		MinBytes:       10e3, // 10KB
		MaxBytes:       10e6, // 10MB
		MaxWait:        1 * time.Second,
		StartOffset:    kafka.FirstOffset,
		CommitInterval: time.Second,
	})

	return &Consumer{
		reader: reader,
		repo:   repo,
	}
}

// Start begins consuming messages from Kafka
func (c *Consumer) Start(ctx context.Context) error {
	log.Printf("Starting Kafka consumer for topic: %s", c.reader.Config().Topic)

	for {
		select {
		case <-ctx.Done():
			log.Println("Kafka consumer shutting down...")
			return c.reader.Close()
		default:
			msg, err := c.reader.ReadMessage(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return nil // Context cancelled, normal shutdown
				}
				log.Printf("Error reading message: %v", err)
				continue
			}

			if err := c.processMessage(msg); err != nil {
				log.Printf("Error processing message: %v", err)
				// Continue processing other messages
			}
		}
	}
}

// processMessage handles a single Kafka message
func (c *Consumer) processMessage(msg kafka.Message) error {
	log.Printf("Received message from partition %d offset %d: key=%s",
		msg.Partition, msg.Offset, string(msg.Key))

	var event models.TransactionImportEvent
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		return fmt.Errorf("failed to unmarshal import event: %w", err)
	}

	if event.EventType != models.EventTransactionImported {
		log.Printf("Ignoring event type: %s", event.EventType)
		return nil
	}

	// Check for duplicate (idempotency)
	exists, err := c.repo.TransactionExistsByExternalRef(event.Data.ExternalRef, event.Source)
	if err != nil {
		return fmt.Errorf("failed to check for duplicate transaction: %w", err)
	}
	if exists {
		log.Printf("Transaction %s from %s already exists, skipping", event.Data.ExternalRef, event.Source)
		return nil
	}

	tx, err := c.convertEvent(event)
	if err != nil {
		return fmt.Errorf("failed to convert import event: %w", err)
	}

	if err := c.repo.EnsureFund(tx.FundCode, event.Data.FundName, tx.Nav); err != nil {
		return fmt.Errorf("failed to ensure fund: %w", err)
	}
	if err := c.repo.CreateTransaction(tx); err != nil {
		return fmt.Errorf("failed to save imported transaction: %w", err)
	}

	log.Printf("Saved imported transaction: %s %s %s @ %s (external_ref: %s)",
		tx.Type, tx.Shares, tx.FundCode, tx.Nav, tx.ExternalRef)

	return nil
}

// convertEvent maps a TransactionImportEvent to a Transaction model
func (c *Consumer) convertEvent(event models.TransactionImportEvent) (*models.Transaction, error) {
	data := event.Data

	if data.ExternalRef == "" {
		return nil, fmt.Errorf("missing external_ref: %w", models.ErrValidation)
	}
	if data.FundCode == "" {
		return nil, fmt.Errorf("missing fund_code: %w", models.ErrValidation)
	}

	txType := strings.ToUpper(data.Type)
	if txType != models.TransactionTypeBuy && txType != models.TransactionTypeSell {
		return nil, fmt.Errorf("invalid transaction type %q: %w", data.Type, models.ErrValidation)
	}

	amount, err := decimal.NewFromString(data.Amount)
	if err != nil {
		return nil, fmt.Errorf("invalid amount %q: %w", data.Amount, err)
	}
	nav, err := decimal.NewFromString(data.Nav)
	if err != nil {
		return nil, fmt.Errorf("invalid nav %q: %w", data.Nav, err)
	}
	if !amount.IsPositive() || !nav.IsPositive() {
		return nil, fmt.Errorf("amount and nav must be positive: %w", models.ErrValidation)
	}

	fee := decimal.Zero
	if data.Fee != "" {
		fee, _ = decimal.NewFromString(data.Fee)
	}

	shares := decimal.Zero
	if data.Shares != "" {
		shares, err = decimal.NewFromString(data.Shares)
		if err != nil {
			return nil, fmt.Errorf("invalid shares %q: %w", data.Shares, err)
		}
	}
	if !shares.IsPositive() {
		// Importers that only carry cash amounts get shares derived
		// the same way a manual entry would.
		shares = amount.Div(nav)
	}

	date, err := time.Parse("2006-01-02", data.Date)
	if err != nil {
		return nil, fmt.Errorf("invalid transaction_date %q: %w", data.Date, err)
	}

	return &models.Transaction{
		FundCode:    data.FundCode,
		Type:        txType,
		Amount:      amount,
		Nav:         nav,
		Fee:         fee,
		Shares:      shares,
		Date:        date,
		ExternalRef: data.ExternalRef,
		Source:      event.Source,
	}, nil
}

// Close closes the Kafka consumer
func (c *Consumer) Close() error {
	return c.reader.Close()
}
