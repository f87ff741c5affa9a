package quote

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/trogers1052/fund-tracker/internal/models"
)

func dateKey(code string, d time.Time) string {
	return code + ":" + d.Format("2006-01-02")
}

// fakeProvider serves NAVs from a fixed map and counts calls.
type fakeProvider struct {
	navs  map[string]decimal.Decimal
	err   error
	calls int
}

func (p *fakeProvider) FetchNavOnDate(_ context.Context, code string, date time.Time) (*models.NavQuote, error) {
	p.calls++
	if p.err != nil {
		return nil, p.err
	}
	nav, ok := p.navs[dateKey(code, date)]
	if !ok {
		return nil, fmt.Errorf("no nav for %s: %w", code, models.ErrNotFound)
	}
	return &models.NavQuote{FundCode: code, Nav: nav, Date: date}, nil
}

func (p *fakeProvider) FetchLiveEstimate(context.Context, string) (*Estimate, error) {
	return nil, models.ErrUnavailable
}

// fakeStore is an in-memory NavStore.
type fakeStore struct {
	history  map[string]decimal.Decimal
	fundNav  map[string]decimal.Decimal
	fundAsOf map[string]time.Time
	saveErr  error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		history:  make(map[string]decimal.Decimal),
		fundNav:  make(map[string]decimal.Decimal),
		fundAsOf: make(map[string]time.Time),
	}
}

func (s *fakeStore) GetNavOnDate(code string, navDate time.Time) (*models.NavQuote, error) {
	nav, ok := s.history[dateKey(code, navDate)]
	if !ok {
		return nil, fmt.Errorf("nav history miss: %w", models.ErrNotFound)
	}
	return &models.NavQuote{FundCode: code, Nav: nav, Date: navDate}, nil
}

func (s *fakeStore) SaveNavHistory(code string, navDate time.Time, nav decimal.Decimal) error {
	if s.saveErr != nil {
		return s.saveErr
	}
	s.history[dateKey(code, navDate)] = nav
	return nil
}

func (s *fakeStore) UpdateFundNav(code string, nav decimal.Decimal, asOf time.Time) error {
	s.fundNav[code] = nav
	s.fundAsOf[code] = asOf
	return nil
}

// fakeCache is an in-memory NavCache.
type fakeCache struct {
	entries map[string]*models.NavQuote
	hits    int
}

func newFakeCache() *fakeCache {
	return &fakeCache{entries: make(map[string]*models.NavQuote)}
}

func (c *fakeCache) Get(_ context.Context, code string, navDate time.Time) (*models.NavQuote, error) {
	q, ok := c.entries[dateKey(code, navDate)]
	if !ok {
		return nil, fmt.Errorf("cache miss: %w", models.ErrNotFound)
	}
	c.hits++
	return q, nil
}

func (c *fakeCache) Set(_ context.Context, q *models.NavQuote) error {
	c.entries[dateKey(q.FundCode, q.Date)] = q
	return nil
}

func navDay(d int) time.Time {
	return time.Date(2024, 6, d, 0, 0, 0, 0, time.UTC)
}

func newTestResolver(p Provider, s NavStore, c NavCache, today time.Time) *Resolver {
	r := NewResolver(p, s, c)
	r.now = func() time.Time { return today }
	return r
}

func TestHistoricalNav(t *testing.T) {
	ctx := context.Background()

	t.Run("provider hit is persisted and cached", func(t *testing.T) {
		provider := &fakeProvider{navs: map[string]decimal.Decimal{
			dateKey("110022", navDay(3)): decimal.NewFromFloat(1.5),
		}}
		store := newFakeStore()
		cache := newFakeCache()
		r := newTestResolver(provider, store, cache, navDay(4))

		q, err := r.HistoricalNav(ctx, "110022", navDay(3))
		require.NoError(t, err)
		assert.True(t, q.Nav.Equal(decimal.NewFromFloat(1.5)))
		assert.Equal(t, navDay(3), q.Date)

		// Written through to the history table and the cache.
		_, ok := store.history[dateKey("110022", navDay(3))]
		assert.True(t, ok)
		_, ok = cache.entries[dateKey("110022", navDay(3))]
		assert.True(t, ok)
	})

	t.Run("store hit short-circuits the provider", func(t *testing.T) {
		provider := &fakeProvider{}
		store := newFakeStore()
		store.history[dateKey("110022", navDay(3))] = decimal.NewFromFloat(1.4)
		r := newTestResolver(provider, store, nil, navDay(4))

		q, err := r.HistoricalNav(ctx, "110022", navDay(3))
		require.NoError(t, err)
		assert.True(t, q.Nav.Equal(decimal.NewFromFloat(1.4)))
		assert.Zero(t, provider.calls)
	})

	t.Run("cache hit short-circuits store and provider", func(t *testing.T) {
		provider := &fakeProvider{}
		store := newFakeStore()
		cache := newFakeCache()
		cache.entries[dateKey("110022", navDay(3))] = &models.NavQuote{
			FundCode: "110022", Nav: decimal.NewFromFloat(1.3), Date: navDay(3),
		}
		r := newTestResolver(provider, store, cache, navDay(4))

		q, err := r.HistoricalNav(ctx, "110022", navDay(3))
		require.NoError(t, err)
		assert.True(t, q.Nav.Equal(decimal.NewFromFloat(1.3)))
		assert.Zero(t, provider.calls)
		assert.Equal(t, 1, cache.hits)
	})

	t.Run("provider miss propagates not found", func(t *testing.T) {
		r := newTestResolver(&fakeProvider{}, newFakeStore(), nil, navDay(4))

		_, err := r.HistoricalNav(ctx, "110022", navDay(3))
		assert.ErrorIs(t, err, models.ErrNotFound)
	})

	t.Run("history persistence failure does not fail resolution", func(t *testing.T) {
		provider := &fakeProvider{navs: map[string]decimal.Decimal{
			dateKey("110022", navDay(3)): decimal.NewFromFloat(1.5),
		}}
		store := newFakeStore()
		store.saveErr = fmt.Errorf("disk full")
		r := newTestResolver(provider, store, nil, navDay(4))

		q, err := r.HistoricalNav(ctx, "110022", navDay(3))
		require.NoError(t, err)
		assert.True(t, q.Nav.Equal(decimal.NewFromFloat(1.5)))
	})
}

func TestNavAsOf(t *testing.T) {
	ctx := context.Background()

	t.Run("weekend walks back to friday's nav", func(t *testing.T) {
		// 2024-06-07 is a Friday; asking as of Sunday the 9th should
		// return Friday's quote with Friday's date on it.
		provider := &fakeProvider{navs: map[string]decimal.Decimal{
			dateKey("110022", navDay(7)): decimal.NewFromFloat(1.6),
		}}
		store := newFakeStore()
		r := newTestResolver(provider, store, nil, navDay(10))

		q, err := r.NavAsOf(ctx, "110022", navDay(9))
		require.NoError(t, err)
		assert.Equal(t, navDay(7), q.Date)
		assert.True(t, q.Nav.Equal(decimal.NewFromFloat(1.6)))
	})

	t.Run("success writes through the fund's advisory nav", func(t *testing.T) {
		provider := &fakeProvider{navs: map[string]decimal.Decimal{
			dateKey("110022", navDay(7)): decimal.NewFromFloat(1.6),
		}}
		store := newFakeStore()
		r := newTestResolver(provider, store, nil, navDay(10))

		_, err := r.NavAsOf(ctx, "110022", navDay(9))
		require.NoError(t, err)
		assert.True(t, store.fundNav["110022"].Equal(decimal.NewFromFloat(1.6)))
		assert.Equal(t, navDay(7), store.fundAsOf["110022"])
	})

	t.Run("exhausted window is not found", func(t *testing.T) {
		r := newTestResolver(&fakeProvider{}, newFakeStore(), nil, navDay(20))

		_, err := r.NavAsOf(ctx, "110022", navDay(15))
		assert.ErrorIs(t, err, models.ErrNotFound)
	})

	t.Run("provider outage surfaces as unavailable", func(t *testing.T) {
		provider := &fakeProvider{err: fmt.Errorf("connection refused: %w", models.ErrUnavailable)}
		r := newTestResolver(provider, newFakeStore(), nil, navDay(20))

		_, err := r.NavAsOf(ctx, "110022", navDay(15))
		assert.ErrorIs(t, err, models.ErrUnavailable)
	})

	t.Run("nav just inside the window is found", func(t *testing.T) {
		provider := &fakeProvider{navs: map[string]decimal.Decimal{
			dateKey("110022", navDay(6)): decimal.NewFromFloat(1.2),
		}}
		r := newTestResolver(provider, newFakeStore(), nil, navDay(20))

		q, err := r.NavAsOf(ctx, "110022", navDay(15))
		require.NoError(t, err)
		assert.Equal(t, navDay(6), q.Date)
	})

	t.Run("nav beyond the window is not found", func(t *testing.T) {
		provider := &fakeProvider{navs: map[string]decimal.Decimal{
			dateKey("110022", navDay(5)): decimal.NewFromFloat(1.2),
		}}
		r := newTestResolver(provider, newFakeStore(), nil, navDay(20))

		_, err := r.NavAsOf(ctx, "110022", navDay(15))
		assert.ErrorIs(t, err, models.ErrNotFound)
	})
}

func TestCurrentNav(t *testing.T) {
	t.Run("never asks for today's nav", func(t *testing.T) {
		// Today's estimate revises until close, so the walk must start
		// at yesterday even when today's figure exists upstream.
		provider := &fakeProvider{navs: map[string]decimal.Decimal{
			dateKey("110022", navDay(10)): decimal.NewFromFloat(9.9),
			dateKey("110022", navDay(9)):  decimal.NewFromFloat(1.5),
		}}
		store := newFakeStore()
		r := newTestResolver(provider, store, nil, navDay(10))

		q, err := r.CurrentNav(context.Background(), "110022")
		require.NoError(t, err)
		assert.Equal(t, navDay(9), q.Date)
		assert.True(t, q.Nav.Equal(decimal.NewFromFloat(1.5)))
	})
}
