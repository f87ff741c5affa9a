package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Holding is the derived position state of one fund as of a cutoff date.
// It is computed, never persisted.
type Holding struct {
	FundCode          string           `json:"fund_code"`
	FundName          string           `json:"fund_name"`
	Category          string           `json:"fund_type,omitempty"`
	CurrentNav        decimal.Decimal  `json:"current_nav"`
	TotalShares       decimal.Decimal  `json:"total_shares"`
	AvgCostNav        decimal.Decimal  `json:"avg_cost_nav"`
	CostAmount        decimal.Decimal  `json:"cost_amount"`
	MarketValue       decimal.Decimal  `json:"market_value"`
	HoldingProfit     decimal.Decimal  `json:"holding_profit"`
	HoldingProfitRate decimal.Decimal  `json:"holding_profit_rate"`
	TotalProfit       decimal.Decimal  `json:"total_profit"`
	LastUpdateTime    *time.Time       `json:"last_update_time,omitempty"`
	LastBuyNav        *decimal.Decimal `json:"last_buy_nav,omitempty"`
	LastBuyDate       *time.Time       `json:"last_buy_date,omitempty"`
	LastSellNav       *decimal.Decimal `json:"last_sell_nav,omitempty"`
	LastSellDate      *time.Time       `json:"last_sell_date,omitempty"`
	SinceLastBuyRate  *decimal.Decimal `json:"since_last_buy_rate,omitempty"`
	SinceLastSellRate *decimal.Decimal `json:"since_last_sell_rate,omitempty"`
	DailyGrowthRate   *decimal.Decimal `json:"daily_growth_rate,omitempty"`
	TargetAllocation  decimal.Decimal  `json:"target_allocation"`
	ActualAllocation  decimal.Decimal  `json:"actual_allocation"`
}

// SkippedFund records a fund the valuation pass could not price.
type SkippedFund struct {
	FundCode string `json:"fund_code"`
	Reason   string `json:"reason"`
}

// NavQuote is a resolved NAV with its as-of date.
type NavQuote struct {
	FundCode string          `json:"fund_code"`
	Nav      decimal.Decimal `json:"nav"`
	Date     time.Time       `json:"update_time"`
}

// RefreshResult summarizes a batch NAV refresh. Partial success is
// expected: a failing provider call fails one fund, not the batch.
type RefreshResult struct {
	Total   int `json:"total"`
	Updated int `json:"updated"`
	Failed  int `json:"failed"`
}
