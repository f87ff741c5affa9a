package models

import "time"

// Fund event type constants
const (
	EventTransactionRecorded = "TRANSACTION_RECORDED"
	EventTransactionDeleted  = "TRANSACTION_DELETED"
	EventNavUpdated          = "NAV_UPDATED"
	EventTransactionImported = "TRANSACTION_IMPORTED"
)

// FundEvent is the envelope published to Kafka for fund changes
type FundEvent struct {
	EventID     string       `json:"event_id"`
	EventType   string       `json:"event_type"`
	FundCode    string       `json:"fund_code"`
	Transaction *Transaction `json:"transaction,omitempty"`
	Nav         *NavQuote    `json:"nav,omitempty"`
	Timestamp   time.Time    `json:"timestamp"`
}

// TransactionImportEvent is consumed from external importers (CSV
// pipelines and the like). Numeric fields arrive as decimal strings.
type TransactionImportEvent struct {
	EventType string                `json:"event_type"`
	Source    string                `json:"source"`
	Data      TransactionImportData `json:"data"`
}

// TransactionImportData carries one imported ledger entry.
type TransactionImportData struct {
	ExternalRef string `json:"external_ref"`
	FundCode    string `json:"fund_code"`
	FundName    string `json:"fund_name"`
	Type        string `json:"transaction_type"`
	Amount      string `json:"amount"`
	Nav         string `json:"nav"`
	Fee         string `json:"fee"`
	Shares      string `json:"shares"`
	Date        string `json:"transaction_date"`
}
