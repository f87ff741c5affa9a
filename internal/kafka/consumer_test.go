package kafka

import (
	"encoding/json"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/trogers1052/fund-tracker/internal/models"
)

// MockRepository implements the TransactionRepository interface for testing
type MockRepository struct {
	funds        map[string]string               // code -> name
	transactions map[string]*models.Transaction  // key: externalRef+source
	nextID       int

	// Track method calls for verification
	EnsureFundCalls        int
	CreateTransactionCalls int
}

func NewMockRepository() *MockRepository {
	return &MockRepository{
		funds:        make(map[string]string),
		transactions: make(map[string]*models.Transaction),
		nextID:       1,
	}
}

func (m *MockRepository) EnsureFund(code, name string, nav decimal.Decimal) error {
	m.EnsureFundCalls++
	if _, exists := m.funds[code]; !exists {
		m.funds[code] = name
	}
	return nil
}

func (m *MockRepository) CreateTransaction(t *models.Transaction) error {
	m.CreateTransactionCalls++
	t.ID = m.nextID
	m.nextID++
	m.transactions[t.ExternalRef+":"+t.Source] = t
	return nil
}

func (m *MockRepository) TransactionExistsByExternalRef(externalRef, source string) (bool, error) {
	_, exists := m.transactions[externalRef+":"+source]
	return exists, nil
}

func importEvent(externalRef string) models.TransactionImportEvent {
	return models.TransactionImportEvent{
		EventType: models.EventTransactionImported,
		Source:    "alipay",
		Data: models.TransactionImportData{
			ExternalRef: externalRef,
			FundCode:    "110022",
			FundName:    "易方达消费行业",
			Type:        "buy",
			Amount:      "1000.00",
			Nav:         "2.0000",
			Fee:         "1.50",
			Date:        "2024-06-03",
		},
	}
}

func messageFor(t *testing.T, event models.TransactionImportEvent) kafka.Message {
	t.Helper()
	value, err := json.Marshal(event)
	require.NoError(t, err)
	return kafka.Message{Key: []byte(event.Data.FundCode), Value: value}
}

func TestProcessMessage(t *testing.T) {
	t.Run("saves imported transaction and ensures the fund", func(t *testing.T) {
		repo := NewMockRepository()
		consumer := &Consumer{repo: repo}

		err := consumer.processMessage(messageFor(t, importEvent("order-1")))
		require.NoError(t, err)

		assert.Equal(t, 1, repo.EnsureFundCalls)
		assert.Equal(t, 1, repo.CreateTransactionCalls)
		assert.Equal(t, "易方达消费行业", repo.funds["110022"])

		tx := repo.transactions["order-1:alipay"]
		require.NotNil(t, tx)
		assert.Equal(t, models.TransactionTypeBuy, tx.Type)
		assert.True(t, tx.Amount.Equal(decimal.NewFromInt(1000)))
		// Shares absent in the feed: derived as amount/nav.
		assert.True(t, tx.Shares.Equal(decimal.NewFromInt(500)))
	})

	t.Run("replayed message is skipped", func(t *testing.T) {
		repo := NewMockRepository()
		consumer := &Consumer{repo: repo}

		msg := messageFor(t, importEvent("order-1"))
		require.NoError(t, consumer.processMessage(msg))
		require.NoError(t, consumer.processMessage(msg))

		assert.Equal(t, 1, repo.CreateTransactionCalls)
		assert.Len(t, repo.transactions, 1)
	})

	t.Run("other event types are ignored", func(t *testing.T) {
		repo := NewMockRepository()
		consumer := &Consumer{repo: repo}

		event := importEvent("order-1")
		event.EventType = models.EventNavUpdated

		err := consumer.processMessage(messageFor(t, event))
		require.NoError(t, err)
		assert.Zero(t, repo.CreateTransactionCalls)
	})

	t.Run("malformed payload errors", func(t *testing.T) {
		consumer := &Consumer{repo: NewMockRepository()}

		err := consumer.processMessage(kafka.Message{Value: []byte("not json")})
		require.Error(t, err)
	})

	t.Run("explicit shares are kept verbatim", func(t *testing.T) {
		repo := NewMockRepository()
		consumer := &Consumer{repo: repo}

		event := importEvent("order-1")
		event.Data.Shares = "498.7500"

		err := consumer.processMessage(messageFor(t, event))
		require.NoError(t, err)

		tx := repo.transactions["order-1:alipay"]
		require.NotNil(t, tx)
		assert.True(t, tx.Shares.Equal(decimal.NewFromFloat(498.75)))
	})
}

func TestConvertEvent(t *testing.T) {
	consumer := &Consumer{}

	t.Run("lowercase type is normalized", func(t *testing.T) {
		event := importEvent("order-1")
		event.Data.Type = "sell"

		tx, err := consumer.convertEvent(event)
		require.NoError(t, err)
		assert.Equal(t, models.TransactionTypeSell, tx.Type)
		assert.Equal(t, "order-1", tx.ExternalRef)
		assert.Equal(t, "alipay", tx.Source)
	})

	t.Run("rejects bad payloads", func(t *testing.T) {
		tests := []struct {
			name   string
			mutate func(*models.TransactionImportEvent)
		}{
			{"missing external_ref", func(e *models.TransactionImportEvent) { e.Data.ExternalRef = "" }},
			{"missing fund_code", func(e *models.TransactionImportEvent) { e.Data.FundCode = "" }},
			{"unknown type", func(e *models.TransactionImportEvent) { e.Data.Type = "transfer" }},
			{"non-numeric amount", func(e *models.TransactionImportEvent) { e.Data.Amount = "abc" }},
			{"zero nav", func(e *models.TransactionImportEvent) { e.Data.Nav = "0" }},
			{"bad date", func(e *models.TransactionImportEvent) { e.Data.Date = "06/03/2024" }},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				event := importEvent("order-1")
				tt.mutate(&event)
				_, err := consumer.convertEvent(event)
				require.Error(t, err)
			})
		}
	})
}
