package quote

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/trogers1052/fund-tracker/internal/models"
)

func TestFetchLiveEstimate(t *testing.T) {
	ctx := context.Background()

	t.Run("parses the jsonp feed", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, `jsonpgz({"fundcode":"110022","name":"易方达消费行业","gsz":"3.4567","dwjz":"3.4210","jzrq":"2024-06-07"});`)
		}))
		defer server.Close()

		client := NewClientWithURLs(server.URL+"/js/%s.js", "")
		est, err := client.FetchLiveEstimate(ctx, "110022")
		require.NoError(t, err)

		assert.Equal(t, "110022", est.Code)
		assert.Equal(t, "易方达消费行业", est.Name)
		assert.True(t, est.EstimateNav.Equal(decimal.NewFromFloat(3.4567)))
		assert.True(t, est.LastNav.Equal(decimal.NewFromFloat(3.4210)))
		assert.Equal(t, time.Date(2024, 6, 7, 0, 0, 0, 0, time.UTC), est.LastNavDate)
	})

	t.Run("unknown fund code is not found", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		}))
		defer server.Close()

		client := NewClientWithURLs(server.URL+"/js/%s.js", "")
		_, err := client.FetchLiveEstimate(ctx, "999999")
		assert.ErrorIs(t, err, models.ErrNotFound)
	})

	t.Run("payload without a callback wrapper is unavailable", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, `<html>blocked</html>`)
		}))
		defer server.Close()

		client := NewClientWithURLs(server.URL+"/js/%s.js", "")
		_, err := client.FetchLiveEstimate(ctx, "110022")
		assert.ErrorIs(t, err, models.ErrUnavailable)
	})

	t.Run("upstream error is unavailable", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		}))
		defer server.Close()

		client := NewClientWithURLs(server.URL+"/js/%s.js", "")
		_, err := client.FetchLiveEstimate(ctx, "110022")
		assert.ErrorIs(t, err, models.ErrUnavailable)
	})
}

func TestFetchNavOnDate(t *testing.T) {
	ctx := context.Background()

	historyServer := func(body string) *httptest.Server {
		return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// The live endpoint requires the fund-page referer.
			assert.Contains(t, r.Header.Get("Referer"), "fund.eastmoney.com")
			fmt.Fprint(w, body)
		}))
	}

	t.Run("returns the nav matching the exact date", func(t *testing.T) {
		server := historyServer(`{"Data":{"LSJZList":[{"FSRQ":"2024-06-07","DWJZ":"3.4210"}]}}`)
		defer server.Close()

		client := NewClientWithURLs("", server.URL)
		q, err := client.FetchNavOnDate(ctx, "110022", time.Date(2024, 6, 7, 0, 0, 0, 0, time.UTC))
		require.NoError(t, err)

		assert.Equal(t, "110022", q.FundCode)
		assert.True(t, q.Nav.Equal(decimal.NewFromFloat(3.4210)))
		assert.Equal(t, time.Date(2024, 6, 7, 0, 0, 0, 0, time.UTC), q.Date)
	})

	t.Run("neighboring dates never substitute", func(t *testing.T) {
		// Upstream pagination can return adjacent rows; only an exact
		// date match counts, otherwise the resolver's walk-back breaks.
		server := historyServer(`{"Data":{"LSJZList":[{"FSRQ":"2024-06-06","DWJZ":"3.4000"},{"FSRQ":"2024-06-05","DWJZ":"3.3900"}]}}`)
		defer server.Close()

		client := NewClientWithURLs("", server.URL)
		_, err := client.FetchNavOnDate(ctx, "110022", time.Date(2024, 6, 7, 0, 0, 0, 0, time.UTC))
		assert.ErrorIs(t, err, models.ErrNotFound)
	})

	t.Run("empty list is not found", func(t *testing.T) {
		server := historyServer(`{"Data":{"LSJZList":[]}}`)
		defer server.Close()

		client := NewClientWithURLs("", server.URL)
		_, err := client.FetchNavOnDate(ctx, "110022", time.Date(2024, 6, 8, 0, 0, 0, 0, time.UTC))
		assert.ErrorIs(t, err, models.ErrNotFound)
	})

	t.Run("non-numeric nav is unavailable", func(t *testing.T) {
		server := historyServer(`{"Data":{"LSJZList":[{"FSRQ":"2024-06-07","DWJZ":"n/a"}]}}`)
		defer server.Close()

		client := NewClientWithURLs("", server.URL)
		_, err := client.FetchNavOnDate(ctx, "110022", time.Date(2024, 6, 7, 0, 0, 0, 0, time.UTC))
		assert.ErrorIs(t, err, models.ErrUnavailable)
	})

	t.Run("upstream error is unavailable", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}))
		defer server.Close()

		client := NewClientWithURLs("", server.URL)
		_, err := client.FetchNavOnDate(ctx, "110022", time.Date(2024, 6, 7, 0, 0, 0, 0, time.UTC))
		assert.ErrorIs(t, err, models.ErrUnavailable)
	})
}
