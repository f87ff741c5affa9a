package valuation

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/trogers1052/fund-tracker/internal/models"
)

// FeeLotPolicy selects how the sell-fee rate tier is chosen. The fee
// schedule is holding-period based, so a sale that spans several buy
// lots can either be split across lots (fifo) or taxed entirely at the
// rate of the earliest open lot (earliest). This is deliberately a
// configuration choice, not a hardcoded one.
//
// Lot consumption here feeds the FEE calculation only; cost basis for
// P&L stays weighted-average in the engine. The two folds run over the
// same ledger and must never be conflated.
type FeeLotPolicy string

const (
	FeeLotPolicyFIFO     FeeLotPolicy = "fifo"
	FeeLotPolicyEarliest FeeLotPolicy = "earliest"
)

// BuyFee derives the fee for a purchase from the fund's buy fee rate.
func BuyFee(amount decimal.Decimal, fund *models.Fund) decimal.Decimal {
	return amount.Mul(fund.BuyFeeRate)
}

// sellFeeRate picks the tier for a holding period in days: <7 days,
// <365 days, or a year and longer.
func sellFeeRate(fund *models.Fund, days int) decimal.Decimal {
	switch {
	case days < 7:
		return fund.SellFeeLt7
	case days < 365:
		return fund.SellFeeLt365
	default:
		return fund.SellFeeGt365
	}
}

type lot struct {
	date   time.Time
	shares decimal.Decimal
}

// openLots replays the ledger strictly before sellDate (plus same-day
// trades already recorded) and returns the buy lots still open under
// FIFO consumption.
func openLots(ledger []*models.Transaction, sellDate time.Time) []lot {
	sorted := FilterCutoff(ledger, sellDate)
	SortLedger(sorted)

	var lots []lot
	for _, tx := range sorted {
		switch tx.Type {
		case models.TransactionTypeBuy:
			lots = append(lots, lot{date: tx.Date, shares: tx.Shares})
		case models.TransactionTypeSell:
			remaining := tx.Shares
			for len(lots) > 0 && remaining.IsPositive() {
				if lots[0].shares.GreaterThan(remaining) {
					lots[0].shares = lots[0].shares.Sub(remaining)
					remaining = decimal.Zero
					break
				}
				remaining = remaining.Sub(lots[0].shares)
				lots = lots[1:]
			}
		}
	}
	return lots
}

// SellFee derives the fee for selling `shares` worth `amount` on
// sellDate, given the fund's fee schedule and the prior ledger.
func SellFee(fund *models.Fund, ledger []*models.Transaction, sellDate time.Time,
	shares, amount decimal.Decimal, policy FeeLotPolicy) (decimal.Decimal, error) {

	lots := openLots(ledger, sellDate)
	if len(lots) == 0 {
		return decimal.Zero, fmt.Errorf("no open lots for %s on %s: %w",
			fund.Code, sellDate.Format("2006-01-02"), models.ErrValidation)
	}

	if policy == FeeLotPolicyEarliest {
		days := holdingDays(lots[0].date, sellDate)
		return amount.Mul(sellFeeRate(fund, days)), nil
	}

	// FIFO: each consumed lot portion is taxed at its own lot's
	// holding-period rate, weighted by its share of the sale.
	fee := decimal.Zero
	remaining := shares
	for _, l := range lots {
		if !remaining.IsPositive() {
			break
		}
		portion := decimal.Min(l.shares, remaining)
		portionAmount := amount.Mul(portion).Div(shares)
		days := holdingDays(l.date, sellDate)
		fee = fee.Add(portionAmount.Mul(sellFeeRate(fund, days)))
		remaining = remaining.Sub(portion)
	}
	if remaining.IsPositive() {
		return decimal.Zero, fmt.Errorf("sell of %s shares exceeds open lots for %s: %w",
			shares, fund.Code, models.ErrValidation)
	}
	return fee, nil
}

func holdingDays(buyDate, sellDate time.Time) int {
	return int(sellDate.Sub(buyDate).Hours() / 24)
}
