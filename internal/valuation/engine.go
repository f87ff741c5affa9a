// Package valuation derives holdings from the transaction ledger. The
// engine is a pure function of (ledger slice, fund metadata, resolved
// NAV): it holds no state and touches no I/O, which is what makes the
// portfolio-level pass safe to rerun at any cutoff.
package valuation

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"github.com/trogers1052/fund-tracker/internal/models"
)

var (
	one     = decimal.NewFromInt(1)
	hundred = decimal.NewFromInt(100)
)

// strategy is the per-kind accounting pass. Both implementations share
// the same contract: a cutoff-filtered, date-sorted ledger slice in,
// one holding out (nil when the position has no market value).
type strategy interface {
	computeHolding(fund *models.Fund, ledger []*models.Transaction, nav models.NavQuote) *models.Holding
}

func strategyFor(kind models.FundKind) strategy {
	if kind == models.KindMoneyMarket {
		return moneyMarketStrategy{}
	}
	return regularStrategy{}
}

// SortLedger orders transactions by date ascending. The sort is stable
// and breaks date ties by id, so same-day trades replay in insertion
// order every time.
func SortLedger(ledger []*models.Transaction) {
	sort.SliceStable(ledger, func(i, j int) bool {
		if ledger[i].Date.Equal(ledger[j].Date) {
			return ledger[i].ID < ledger[j].ID
		}
		return ledger[i].Date.Before(ledger[j].Date)
	})
}

// FilterCutoff returns the prefix of the ledger dated at or before the
// cutoff. Transactions after the cutoff never enter the fold.
func FilterCutoff(ledger []*models.Transaction, cutoff time.Time) []*models.Transaction {
	var out []*models.Transaction
	for _, tx := range ledger {
		if !tx.Date.After(cutoff) {
			out = append(out, tx)
		}
	}
	return out
}

// ComputeHolding runs the accounting pass for one fund over its ledger
// as of the given NAV. Returns nil when the fund has no transactions or
// no remaining market value; an all-sold position disappears from the
// snapshot even though it has realized history.
func ComputeHolding(fund *models.Fund, ledger []*models.Transaction, nav models.NavQuote) *models.Holding {
	if len(ledger) == 0 {
		return nil
	}
	sorted := make([]*models.Transaction, len(ledger))
	copy(sorted, ledger)
	SortLedger(sorted)

	h := strategyFor(fund.Kind()).computeHolding(fund, sorted, nav)
	if h == nil || !h.MarketValue.IsPositive() {
		return nil
	}
	return h
}

// AvailableShares folds the ledger up to and including asOf and returns
// the units (cash for money-market funds) available to sell.
func AvailableShares(fund *models.Fund, ledger []*models.Transaction, asOf time.Time) decimal.Decimal {
	sorted := FilterCutoff(ledger, asOf)
	SortLedger(sorted)

	available := decimal.Zero
	moneyMarket := fund.Kind() == models.KindMoneyMarket
	for _, tx := range sorted {
		qty := tx.Shares
		if moneyMarket {
			qty = tx.Amount
		}
		switch tx.Type {
		case models.TransactionTypeBuy:
			available = available.Add(qty)
		case models.TransactionTypeSell:
			available = available.Sub(qty)
		}
	}
	return available
}

// ApplyAllocations fills in each holding's share of the total portfolio
// market value, in percent.
func ApplyAllocations(holdings []*models.Holding) {
	total := decimal.Zero
	for _, h := range holdings {
		total = total.Add(h.MarketValue)
	}
	if !total.IsPositive() {
		return
	}
	for _, h := range holdings {
		h.ActualAllocation = h.MarketValue.Div(total).Mul(hundred)
	}
}

// regularStrategy implements weighted-average cost with incremental
// reduction on sale. Cost basis policy: BUY adds the gross amount only,
// fees stay out of the basis; SELL proceeds are net of fee.
type regularStrategy struct{}

func (regularStrategy) computeHolding(fund *models.Fund, ledger []*models.Transaction, nav models.NavQuote) *models.Holding {
	totalShares := decimal.Zero
	totalCost := decimal.Zero
	realized := decimal.Zero

	var lastBuyNav, lastSellNav *decimal.Decimal
	var lastBuyDate, lastSellDate *time.Time

	for _, tx := range ledger {
		switch tx.Type {
		case models.TransactionTypeBuy:
			totalShares = totalShares.Add(tx.Shares)
			totalCost = totalCost.Add(tx.Amount)
			lastBuyNav, lastBuyDate = ptrNav(tx.Nav), ptrDate(tx.Date)

		case models.TransactionTypeSell:
			lastSellNav, lastSellDate = ptrNav(tx.Nav), ptrDate(tx.Date)
			if !totalShares.IsPositive() {
				// Sell against an empty position is a ledger defect;
				// keep the marker but leave the cost math alone.
				continue
			}
			avgCost := totalCost.Div(totalShares)
			sellCost := tx.Shares.Mul(avgCost)
			proceeds := tx.Amount.Sub(tx.Fee)
			realized = realized.Add(proceeds.Sub(sellCost))
			totalShares = totalShares.Sub(tx.Shares)
			if totalShares.IsPositive() {
				totalCost = avgCost.Mul(totalShares)
			} else {
				totalShares = decimal.Zero
				totalCost = decimal.Zero
			}
		}
	}

	marketValue := totalShares.Mul(nav.Nav)
	holdingProfit := marketValue.Sub(totalCost)

	holdingProfitRate := decimal.Zero
	if totalCost.IsPositive() {
		holdingProfitRate = holdingProfit.Div(totalCost)
	}
	avgCostNav := decimal.Zero
	if totalShares.IsPositive() {
		avgCostNav = totalCost.Div(totalShares)
	}

	h := &models.Holding{
		FundCode:          fund.Code,
		FundName:          fund.Name,
		Category:          fund.Category,
		CurrentNav:        nav.Nav,
		TotalShares:       totalShares,
		AvgCostNav:        avgCostNav,
		CostAmount:        totalCost,
		MarketValue:       marketValue,
		HoldingProfit:     holdingProfit,
		HoldingProfitRate: holdingProfitRate,
		TotalProfit:       realized.Add(holdingProfit),
		LastUpdateTime:    ptrDate(nav.Date),
		LastBuyNav:        lastBuyNav,
		LastBuyDate:       lastBuyDate,
		LastSellNav:       lastSellNav,
		LastSellDate:      lastSellDate,
		TargetAllocation:  fund.TargetAllocation,
	}
	if lastBuyNav != nil && nav.Nav.IsPositive() {
		h.SinceLastBuyRate = ptrNav(nav.Nav.Sub(*lastBuyNav).Div(*lastBuyNav))
	}
	if lastSellNav != nil && nav.Nav.IsPositive() {
		h.SinceLastSellRate = ptrNav(nav.Nav.Sub(*lastSellNav).Div(*lastSellNav))
	}
	return h
}

// moneyMarketStrategy models cash-equivalent funds: NAV pinned at 1.0,
// shares track net cash deposited, and reportable P&L is always zero.
type moneyMarketStrategy struct{}

func (moneyMarketStrategy) computeHolding(fund *models.Fund, ledger []*models.Transaction, nav models.NavQuote) *models.Holding {
	bought := decimal.Zero
	sold := decimal.Zero

	var lastBuyNav, lastSellNav *decimal.Decimal
	var lastBuyDate, lastSellDate *time.Time

	for _, tx := range ledger {
		switch tx.Type {
		case models.TransactionTypeBuy:
			bought = bought.Add(tx.Amount)
			lastBuyNav, lastBuyDate = ptrNav(tx.Nav), ptrDate(tx.Date)
		case models.TransactionTypeSell:
			sold = sold.Add(tx.Amount)
			lastSellNav, lastSellDate = ptrNav(tx.Nav), ptrDate(tx.Date)
		}
	}

	marketValue := bought.Sub(sold)
	zero := decimal.Zero

	return &models.Holding{
		FundCode:          fund.Code,
		FundName:          fund.Name,
		Category:          fund.Category,
		CurrentNav:        one,
		TotalShares:       marketValue,
		AvgCostNav:        one,
		CostAmount:        marketValue,
		MarketValue:       marketValue,
		HoldingProfit:     decimal.Zero,
		HoldingProfitRate: decimal.Zero,
		TotalProfit:       decimal.Zero,
		LastUpdateTime:    fund.LastUpdateTime,
		LastBuyNav:        lastBuyNav,
		LastBuyDate:       lastBuyDate,
		LastSellNav:       lastSellNav,
		LastSellDate:      lastSellDate,
		SinceLastBuyRate:  &zero,
		SinceLastSellRate: &zero,
		DailyGrowthRate:   &zero,
		TargetAllocation:  fund.TargetAllocation,
	}
}

func ptrNav(d decimal.Decimal) *decimal.Decimal { return &d }

func ptrDate(t time.Time) *time.Time { return &t }
