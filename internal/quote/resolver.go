package quote

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"
	"github.com/trogers1052/fund-tracker/internal/models"
)

// DefaultLookbackDays bounds the backward walk when resolving a current
// NAV. Ten calendar days covers week-long market holidays.
const DefaultLookbackDays = 10

// NavStore is the persistent side of NAV resolution: the historical NAV
// table plus the advisory current_nav field on the fund row.
type NavStore interface {
	GetNavOnDate(code string, navDate time.Time) (*models.NavQuote, error)
	SaveNavHistory(code string, navDate time.Time, nav decimal.Decimal) error
	UpdateFundNav(code string, nav decimal.Decimal, asOf time.Time) error
}

// Resolver resolves a NAV for (fund, date), falling back through the
// cache, the local history table, and finally the provider.
type Resolver struct {
	provider     Provider
	store        NavStore
	cache        NavCache
	lookbackDays int
	now          func() time.Time
}

// NewResolver creates a Resolver. cache may be nil.
func NewResolver(provider Provider, store NavStore, cache NavCache) *Resolver {
	return &Resolver{
		provider:     provider,
		store:        store,
		cache:        cache,
		lookbackDays: DefaultLookbackDays,
		now:          time.Now,
	}
}

// HistoricalNav resolves the NAV for exactly the given calendar date.
// Returns models.ErrNotFound when no NAV exists for that date and
// models.ErrUnavailable on provider failure.
func (r *Resolver) HistoricalNav(ctx context.Context, code string, date time.Time) (*models.NavQuote, error) {
	day := dateOnly(date)

	if r.cache != nil {
		if q, err := r.cache.Get(ctx, code, day); err == nil {
			return q, nil
		}
	}

	if q, err := r.store.GetNavOnDate(code, day); err == nil {
		r.cacheQuote(ctx, q)
		return q, nil
	}

	q, err := r.provider.FetchNavOnDate(ctx, code, day)
	if err != nil {
		return nil, err
	}

	if err := r.store.SaveNavHistory(code, q.Date, q.Nav); err != nil {
		slog.Warn("failed to persist nav history", "fund", code, "error", err)
	}
	r.cacheQuote(ctx, q)
	return q, nil
}

// NavAsOf resolves the most recent NAV at or before the given date,
// walking backward one calendar day at a time within the lookback
// window. The returned quote carries the date the NAV was published on,
// never the requested date.
func (r *Resolver) NavAsOf(ctx context.Context, code string, asOf time.Time) (*models.NavQuote, error) {
	day := dateOnly(asOf)
	var providerErr error

	for i := 0; i < r.lookbackDays; i++ {
		q, err := r.HistoricalNav(ctx, code, day.AddDate(0, 0, -i))
		if err == nil {
			if err := r.store.UpdateFundNav(code, q.Nav, q.Date); err != nil {
				// Advisory cache only; resolution already succeeded.
				slog.Warn("failed to write through fund nav", "fund", code, "error", err)
			}
			return q, nil
		}
		if errors.Is(err, models.ErrNotFound) {
			continue
		}
		providerErr = err
	}

	if providerErr != nil {
		return nil, fmt.Errorf("nav for %s unresolved within %d days: %w", code, r.lookbackDays, providerErr)
	}
	return nil, fmt.Errorf("no nav for %s within %d days of %s: %w",
		code, r.lookbackDays, day.Format("2006-01-02"), models.ErrNotFound)
}

// CurrentNav resolves the latest usable NAV for a fund. Today's live
// estimate revises until close, so the walk starts at yesterday.
func (r *Resolver) CurrentNav(ctx context.Context, code string) (*models.NavQuote, error) {
	yesterday := dateOnly(r.now()).AddDate(0, 0, -1)
	return r.NavAsOf(ctx, code, yesterday)
}

func (r *Resolver) cacheQuote(ctx context.Context, q *models.NavQuote) {
	if r.cache == nil {
		return
	}
	if err := r.cache.Set(ctx, q); err != nil {
		slog.Warn("failed to cache nav", "fund", q.FundCode, "error", err)
	}
}

func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
