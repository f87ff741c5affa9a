package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Transaction type constants
const (
	TransactionTypeBuy  = "BUY"
	TransactionTypeSell = "SELL"
)

// Transaction represents one ledger entry for a fund.
// Amount is the gross cash amount of the trade; Shares the units moved.
// Date is a calendar date and is the ledger ordering key.
type Transaction struct {
	ID          int             `json:"id"`
	FundCode    string          `json:"fund_code"`
	Type        string          `json:"transaction_type"`
	Amount      decimal.Decimal `json:"amount"`
	Nav         decimal.Decimal `json:"nav"`
	Fee         decimal.Decimal `json:"fee"`
	Shares      decimal.Decimal `json:"shares"`
	Date        time.Time       `json:"transaction_date"`
	ExternalRef string          `json:"external_ref,omitempty"`
	Source      string          `json:"source,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
}

// TransactionFilter narrows ledger queries. Zero values mean "no filter";
// Type accepts "all" as an alias for unfiltered.
type TransactionFilter struct {
	FundCode  string
	StartDate *time.Time
	EndDate   *time.Time
	Type      string
}

// TransactionInput is the payload used to record or update a ledger entry.
// Fee and Shares are optional for SELL entries; BUY entries always derive
// them from the fund's fee schedule.
type TransactionInput struct {
	FundCode string           `json:"fund_code"`
	FundName string           `json:"fund_name"`
	Type     string           `json:"transaction_type"`
	Amount   decimal.Decimal  `json:"amount"`
	Nav      decimal.Decimal  `json:"nav"`
	Fee      *decimal.Decimal `json:"fee,omitempty"`
	Shares   *decimal.Decimal `json:"shares,omitempty"`
	Date     string           `json:"transaction_date"`
}
