// Package portfolio wires the ledger store, the quote resolver, and the
// valuation engine into the operations the HTTP layer exposes.
package portfolio

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"github.com/trogers1052/fund-tracker/internal/models"
	"github.com/trogers1052/fund-tracker/internal/quote"
	"github.com/trogers1052/fund-tracker/internal/valuation"
)

// Repository is the persistence surface the service needs. *database.DB
// satisfies it; tests use an in-memory fake.
type Repository interface {
	SaveFund(f *models.Fund) error
	EnsureFund(code, name string, nav decimal.Decimal) error
	GetFund(code string) (*models.Fund, error)
	GetAllFunds() ([]*models.Fund, error)
	DeleteFund(code string) error

	CreateTransaction(t *models.Transaction) error
	GetTransactionByID(id int) (*models.Transaction, error)
	GetTransactions(filter models.TransactionFilter) ([]*models.Transaction, error)
	UpdateTransaction(t *models.Transaction) error
	DeleteTransaction(id int) error
}

// NavResolver resolves NAVs with lookback and write-through caching.
type NavResolver interface {
	HistoricalNav(ctx context.Context, code string, date time.Time) (*models.NavQuote, error)
	NavAsOf(ctx context.Context, code string, asOf time.Time) (*models.NavQuote, error)
	CurrentNav(ctx context.Context, code string) (*models.NavQuote, error)
}

// Service implements the fund tracking operations
type Service struct {
	repo      Repository
	resolver  NavResolver
	provider  quote.Provider
	feePolicy valuation.FeeLotPolicy
	now       func() time.Time
}

// NewService creates a Service. provider may be nil when fund-info
// fallback lookups are not needed (tests).
func NewService(repo Repository, resolver NavResolver, provider quote.Provider, feePolicy valuation.FeeLotPolicy) *Service {
	if feePolicy == "" {
		feePolicy = valuation.FeeLotPolicyFIFO
	}
	return &Service{
		repo:      repo,
		resolver:  resolver,
		provider:  provider,
		feePolicy: feePolicy,
		now:       time.Now,
	}
}

// RecordTransaction validates a ledger entry, derives its fee and
// shares, and persists it. The write is atomic: validation failure
// means no partial insert.
func (s *Service) RecordTransaction(ctx context.Context, input models.TransactionInput) (*models.Transaction, error) {
	tx, err := s.buildTransaction(input, 0)
	if err != nil {
		return nil, err
	}

	if err := s.repo.EnsureFund(input.FundCode, input.FundName, input.Nav); err != nil {
		return nil, err
	}
	if err := s.repo.CreateTransaction(tx); err != nil {
		return nil, err
	}
	return tx, nil
}

// UpdateTransaction replaces a ledger entry, re-deriving fee and shares
// the same way a fresh record would.
func (s *Service) UpdateTransaction(ctx context.Context, id int, input models.TransactionInput) (*models.Transaction, error) {
	existing, err := s.repo.GetTransactionByID(id)
	if err != nil {
		return nil, err
	}

	tx, err := s.buildTransaction(input, existing.ID)
	if err != nil {
		return nil, err
	}
	tx.ID = existing.ID

	// The update may move the entry to a code that has no fund row yet.
	if err := s.repo.EnsureFund(input.FundCode, input.FundName, input.Nav); err != nil {
		return nil, err
	}
	if err := s.repo.UpdateTransaction(tx); err != nil {
		return nil, err
	}
	return tx, nil
}

// buildTransaction validates the input and derives fee and shares.
// excludeID is the id of the entry being replaced, so its own shares do
// not count against the available-shares check; zero for new entries.
func (s *Service) buildTransaction(input models.TransactionInput, excludeID int) (*models.Transaction, error) {
	if input.FundCode == "" {
		return nil, fmt.Errorf("fund_code is required: %w", models.ErrValidation)
	}
	if input.Type != models.TransactionTypeBuy && input.Type != models.TransactionTypeSell {
		return nil, fmt.Errorf("unknown transaction type %q: %w", input.Type, models.ErrValidation)
	}
	if !input.Amount.IsPositive() {
		return nil, fmt.Errorf("amount must be positive: %w", models.ErrValidation)
	}
	if !input.Nav.IsPositive() {
		return nil, fmt.Errorf("nav must be positive: %w", models.ErrValidation)
	}
	date, err := time.Parse("2006-01-02", input.Date)
	if err != nil {
		return nil, fmt.Errorf("invalid transaction_date %q: %w", input.Date, models.ErrValidation)
	}

	fund, err := s.repo.GetFund(input.FundCode)
	if err != nil && !errors.Is(err, models.ErrNotFound) {
		return nil, err
	}
	if fund == nil {
		// First trade for this code; settings arrive later.
		fund = &models.Fund{Code: input.FundCode, Name: input.FundName}
	}

	tx := &models.Transaction{
		FundCode: input.FundCode,
		Type:     input.Type,
		Amount:   input.Amount,
		Nav:      input.Nav,
		Date:     date,
	}

	switch input.Type {
	case models.TransactionTypeBuy:
		tx.Fee = valuation.BuyFee(input.Amount, fund)
		tx.Shares = input.Amount.Div(input.Nav)

	case models.TransactionTypeSell:
		ledger, err := s.fundLedger(input.FundCode, excludeID)
		if err != nil {
			return nil, err
		}

		if input.Shares != nil && input.Shares.IsPositive() {
			tx.Shares = *input.Shares
		} else {
			tx.Shares = input.Amount.Div(input.Nav)
		}

		available := valuation.AvailableShares(fund, ledger, date)
		sold := tx.Shares
		if fund.Kind() == models.KindMoneyMarket {
			sold = tx.Amount
		}
		if sold.GreaterThan(available) {
			return nil, fmt.Errorf("sell of %s exceeds available %s for %s: %w",
				sold, available, input.FundCode, models.ErrValidation)
		}

		if input.Fee != nil {
			if input.Fee.IsNegative() {
				return nil, fmt.Errorf("fee must not be negative: %w", models.ErrValidation)
			}
			tx.Fee = *input.Fee
		} else if fund.Kind() == models.KindMoneyMarket {
			tx.Fee = decimal.Zero
		} else {
			fee, err := valuation.SellFee(fund, ledger, date, tx.Shares, tx.Amount, s.feePolicy)
			if err != nil {
				return nil, err
			}
			tx.Fee = fee
		}
	}

	return tx, nil
}

func (s *Service) fundLedger(code string, excludeID int) ([]*models.Transaction, error) {
	ledger, err := s.repo.GetTransactions(models.TransactionFilter{FundCode: code})
	if err != nil {
		return nil, err
	}
	if excludeID == 0 {
		return ledger, nil
	}
	out := ledger[:0]
	for _, tx := range ledger {
		if tx.ID != excludeID {
			out = append(out, tx)
		}
	}
	return out, nil
}

// Transactions returns ledger entries matching the filter.
func (s *Service) Transactions(filter models.TransactionFilter) ([]*models.Transaction, error) {
	return s.repo.GetTransactions(filter)
}

// Transaction returns a single ledger entry by id.
func (s *Service) Transaction(id int) (*models.Transaction, error) {
	return s.repo.GetTransactionByID(id)
}

// DeleteTransaction removes a ledger entry.
func (s *Service) DeleteTransaction(id int) error {
	return s.repo.DeleteTransaction(id)
}

// SaveFundSettings upserts fund metadata and its fee schedule.
func (s *Service) SaveFundSettings(fund *models.Fund) error {
	if fund.Code == "" {
		return fmt.Errorf("fund_code is required: %w", models.ErrValidation)
	}
	for _, rate := range []decimal.Decimal{fund.BuyFeeRate, fund.SellFeeLt7, fund.SellFeeLt365, fund.SellFeeGt365} {
		if rate.IsNegative() {
			return fmt.Errorf("fee rates must not be negative: %w", models.ErrValidation)
		}
	}
	return s.repo.SaveFund(fund)
}

// FundSettings lists all funds with their settings.
func (s *Service) FundSettings() ([]*models.Fund, error) {
	return s.repo.GetAllFunds()
}

// DeleteFund removes a fund; rejected while transactions reference it.
func (s *Service) DeleteFund(code string) error {
	return s.repo.DeleteFund(code)
}

// FundInfo returns fund metadata, DB first, falling back to the
// provider's estimate feed for codes that were never saved. A zero NAV
// here only ever means "freshly created, never priced".
func (s *Service) FundInfo(ctx context.Context, code string) (*models.Fund, error) {
	fund, err := s.repo.GetFund(code)
	if err == nil && fund.Name != "" {
		return fund, nil
	}
	if err != nil && !errors.Is(err, models.ErrNotFound) {
		return nil, err
	}
	if s.provider == nil {
		if fund != nil {
			return fund, nil
		}
		return nil, fmt.Errorf("fund not found: %s: %w", code, models.ErrNotFound)
	}

	est, perr := s.provider.FetchLiveEstimate(ctx, code)
	if perr != nil {
		if fund != nil {
			return fund, nil
		}
		return nil, perr
	}

	if fund == nil {
		fund = &models.Fund{Code: code}
	}
	if fund.Name == "" {
		fund.Name = est.Name
	}
	if fund.CurrentNav.IsZero() && est.LastNav.IsPositive() {
		fund.CurrentNav = est.LastNav
		fund.LastUpdateTime = &est.LastNavDate
	}
	return fund, nil
}

// ComputeHoldings builds the holdings snapshot as of the cutoff date
// (default: yesterday, so same-day trades and estimate NAVs stay out).
// A fund that cannot be priced is skipped and reported, never aborting
// the rest of the portfolio.
func (s *Service) ComputeHoldings(ctx context.Context, cutoff *time.Time) ([]*models.Holding, []models.SkippedFund, error) {
	asOf := s.defaultCutoff()
	if cutoff != nil {
		asOf = dateOnly(*cutoff)
	}

	funds, err := s.repo.GetAllFunds()
	if err != nil {
		return nil, nil, err
	}
	transactions, err := s.repo.GetTransactions(models.TransactionFilter{EndDate: &asOf})
	if err != nil {
		return nil, nil, err
	}

	ledgers := make(map[string][]*models.Transaction)
	for _, tx := range transactions {
		ledgers[tx.FundCode] = append(ledgers[tx.FundCode], tx)
	}

	var holdings []*models.Holding
	var skipped []models.SkippedFund

	for _, fund := range funds {
		ledger := ledgers[fund.Code]
		if len(ledger) == 0 {
			continue
		}

		nav, reason := s.resolveNav(ctx, fund, asOf)
		if nav == nil {
			slog.Warn("skipping fund in holdings", "fund", fund.Code, "reason", reason)
			skipped = append(skipped, models.SkippedFund{FundCode: fund.Code, Reason: reason})
			continue
		}

		h := valuation.ComputeHolding(fund, ledger, *nav)
		if h == nil {
			continue
		}
		if fund.Kind() == models.KindRegular {
			h.DailyGrowthRate = s.dailyGrowthRate(ctx, fund.Code, nav)
		}
		holdings = append(holdings, h)
	}

	valuation.ApplyAllocations(holdings)
	sort.Slice(holdings, func(i, j int) bool { return holdings[i].FundCode < holdings[j].FundCode })

	return holdings, skipped, nil
}

// resolveNav prices one fund for the valuation pass. Money-market funds
// are pinned at 1.0; regular funds resolve through the lookback chain
// and fall back to the cached current_nav when the provider is down.
func (s *Service) resolveNav(ctx context.Context, fund *models.Fund, asOf time.Time) (*models.NavQuote, string) {
	if fund.Kind() == models.KindMoneyMarket {
		return &models.NavQuote{FundCode: fund.Code, Nav: decimal.NewFromInt(1), Date: asOf}, ""
	}

	nav, err := s.resolver.NavAsOf(ctx, fund.Code, asOf)
	if err == nil {
		return nav, ""
	}

	if fund.CurrentNav.IsPositive() {
		date := asOf
		if fund.LastUpdateTime != nil {
			date = *fund.LastUpdateTime
		}
		return &models.NavQuote{FundCode: fund.Code, Nav: fund.CurrentNav, Date: date}, ""
	}
	return nil, err.Error()
}

func (s *Service) dailyGrowthRate(ctx context.Context, code string, nav *models.NavQuote) *decimal.Decimal {
	prev, err := s.resolver.NavAsOf(ctx, code, nav.Date.AddDate(0, 0, -1))
	if err != nil || !prev.Nav.IsPositive() {
		return nil
	}
	rate := nav.Nav.Sub(prev.Nav).Div(prev.Nav)
	return &rate
}

// RefreshAllNavs resolves and caches the current NAV for the given fund
// codes (all funds when codes is empty). One fund's failure never stops
// the batch; the result reports partial success alongside the quotes
// that did resolve.
func (s *Service) RefreshAllNavs(ctx context.Context, codes []string) (*models.RefreshResult, []*models.NavQuote, error) {
	funds, err := s.repo.GetAllFunds()
	if err != nil {
		return nil, nil, err
	}

	if len(codes) > 0 {
		wanted := make(map[string]bool, len(codes))
		for _, c := range codes {
			wanted[c] = true
		}
		filtered := funds[:0]
		for _, f := range funds {
			if wanted[f.Code] {
				filtered = append(filtered, f)
			}
		}
		funds = filtered
	}

	result := &models.RefreshResult{Total: len(funds)}
	var quotes []*models.NavQuote
	for _, fund := range funds {
		q, err := s.resolver.CurrentNav(ctx, fund.Code)
		if err != nil {
			slog.Warn("nav refresh failed", "fund", fund.Code, "error", err)
			result.Failed++
			continue
		}
		quotes = append(quotes, q)
		result.Updated++
	}
	return result, quotes, nil
}

// ResolveCurrentNav exposes single-fund resolution to the HTTP layer.
func (s *Service) ResolveCurrentNav(ctx context.Context, code string) (*models.NavQuote, error) {
	return s.resolver.CurrentNav(ctx, code)
}

// ResolveHistoricalNav exposes exact-date resolution to the HTTP layer.
func (s *Service) ResolveHistoricalNav(ctx context.Context, code string, date time.Time) (*models.NavQuote, error) {
	return s.resolver.HistoricalNav(ctx, code, date)
}

func (s *Service) defaultCutoff() time.Time {
	return dateOnly(s.now()).AddDate(0, 0, -1)
}

func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
