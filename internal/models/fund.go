package models

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// FundKind tags how a fund is valued. It is resolved once from the
// category text at load time so the valuation pass never string-matches.
type FundKind int

const (
	KindRegular FundKind = iota
	KindMoneyMarket
)

// Category markers that mark a fund as money-market. The upstream data
// source labels these funds "货币型" (currency/money type).
var moneyMarketMarkers = []string{"货币", "money market", "money-market"}

// KindForCategory classifies a free-text fund category.
func KindForCategory(category string) FundKind {
	lower := strings.ToLower(category)
	for _, marker := range moneyMarketMarkers {
		if strings.Contains(lower, marker) {
			return KindMoneyMarket
		}
	}
	return KindRegular
}

// Fund represents a tracked fund with its cached NAV and fee schedule
type Fund struct {
	Code             string          `json:"fund_code"`
	Name             string          `json:"fund_name"`
	Category         string          `json:"fund_type,omitempty"`
	CurrentNav       decimal.Decimal `json:"current_nav"`
	LastUpdateTime   *time.Time      `json:"last_update_time,omitempty"`
	BuyFeeRate       decimal.Decimal `json:"buy_fee_rate"`
	SellFeeLt7       decimal.Decimal `json:"sell_fee_lt7"`
	SellFeeLt365     decimal.Decimal `json:"sell_fee_lt365"`
	SellFeeGt365     decimal.Decimal `json:"sell_fee_gt365"`
	TargetAllocation decimal.Decimal `json:"target_allocation"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

// Kind returns the valuation kind derived from the category field.
func (f *Fund) Kind() FundKind {
	return KindForCategory(f.Category)
}
