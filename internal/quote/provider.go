package quote

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"time"

	"github.com/shopspring/decimal"
	"github.com/trogers1052/fund-tracker/internal/models"
)

// Provider fetches NAV data from the upstream market-data source.
type Provider interface {
	// FetchNavOnDate returns the published NAV for exactly the given
	// calendar date, or models.ErrNotFound when the date has none
	// (non-trading day or no data yet).
	FetchNavOnDate(ctx context.Context, code string, date time.Time) (*models.NavQuote, error)

	// FetchLiveEstimate returns the intraday estimate feed for a fund.
	// Estimates revise until close and are never used for valuation.
	FetchLiveEstimate(ctx context.Context, code string) (*Estimate, error)
}

// Estimate is the intraday feed payload: live estimate plus the last
// published NAV, which is also the only reliable source of fund names
// for codes we have never seen.
type Estimate struct {
	Code        string
	Name        string
	EstimateNav decimal.Decimal
	LastNav     decimal.Decimal
	LastNavDate time.Time
}

const (
	defaultEstimateURL = "https://fundgz.1234567.com.cn/js/%s.js"
	defaultHistoryURL  = "https://api.fund.eastmoney.com/f10/lsjz"
)

// jsonp payload looks like: jsonpgz({"fundcode":"000001",...});
var jsonpRe = regexp.MustCompile(`\((.+)\)`)

// Client talks to the Eastmoney fund data endpoints
type Client struct {
	httpClient  *http.Client
	estimateURL string
	historyURL  string
}

// NewClient creates a provider client with a short request timeout
func NewClient() *Client {
	return &Client{
		httpClient:  &http.Client{Timeout: 10 * time.Second},
		estimateURL: defaultEstimateURL,
		historyURL:  defaultHistoryURL,
	}
}

// NewClientWithURLs creates a client against custom endpoints (tests)
func NewClientWithURLs(estimateURL, historyURL string) *Client {
	c := NewClient()
	c.estimateURL = estimateURL
	c.historyURL = historyURL
	return c
}

type estimatePayload struct {
	FundCode    string `json:"fundcode"`
	Name        string `json:"name"`
	EstimateNav string `json:"gsz"`
	LastNav     string `json:"dwjz"`
	LastNavDate string `json:"jzrq"`
}

// FetchLiveEstimate fetches the intraday estimate feed for a fund
func (c *Client) FetchLiveEstimate(ctx context.Context, code string) (*Estimate, error) {
	url := fmt.Sprintf(c.estimateURL, code)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build estimate request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("estimate request failed: %v: %w", err, models.ErrUnavailable)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("no estimate feed for %s: %w", code, models.ErrNotFound)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("estimate request returned %s: %w", resp.Status, models.ErrUnavailable)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read estimate response: %v: %w", err, models.ErrUnavailable)
	}

	// The feed is JSONP; strip the callback wrapper before decoding.
	match := jsonpRe.FindSubmatch(body)
	if match == nil {
		return nil, fmt.Errorf("malformed estimate payload for %s: %w", code, models.ErrUnavailable)
	}

	var payload estimatePayload
	if err := json.Unmarshal(match[1], &payload); err != nil {
		return nil, fmt.Errorf("failed to decode estimate payload: %v: %w", err, models.ErrUnavailable)
	}

	est := &Estimate{Code: payload.FundCode, Name: payload.Name}
	if payload.EstimateNav != "" {
		est.EstimateNav, _ = decimal.NewFromString(payload.EstimateNav)
	}
	if payload.LastNav != "" {
		est.LastNav, _ = decimal.NewFromString(payload.LastNav)
	}
	if payload.LastNavDate != "" {
		if d, err := time.Parse("2006-01-02", payload.LastNavDate); err == nil {
			est.LastNavDate = d
		}
	}
	return est, nil
}

type historyResponse struct {
	Data struct {
		LSJZList []struct {
			Date string `json:"FSRQ"`
			Nav  string `json:"DWJZ"`
		} `json:"LSJZList"`
	} `json:"Data"`
}

// FetchNavOnDate fetches the published NAV for an exact calendar date
func (c *Client) FetchNavOnDate(ctx context.Context, code string, date time.Time) (*models.NavQuote, error) {
	day := date.Format("2006-01-02")
	url := fmt.Sprintf("%s?fundCode=%s&pageIndex=1&pageSize=5&startDate=%s&endDate=%s",
		c.historyURL, code, day, day)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build history request: %w", err)
	}
	// The endpoint rejects requests without a fund-page referer.
	req.Header.Set("Referer", fmt.Sprintf("https://fund.eastmoney.com/f10/jjjz_%s.html", code))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("history request failed: %v: %w", err, models.ErrUnavailable)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("history request returned %s: %w", resp.Status, models.ErrUnavailable)
	}

	var payload historyResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("failed to decode history payload: %v: %w", err, models.ErrUnavailable)
	}

	for _, entry := range payload.Data.LSJZList {
		if entry.Date != day {
			continue
		}
		nav, err := decimal.NewFromString(entry.Nav)
		if err != nil {
			return nil, fmt.Errorf("invalid nav %q for %s: %w", entry.Nav, code, models.ErrUnavailable)
		}
		quoteDate, err := time.Parse("2006-01-02", entry.Date)
		if err != nil {
			return nil, fmt.Errorf("invalid nav date %q for %s: %w", entry.Date, code, models.ErrUnavailable)
		}
		return &models.NavQuote{FundCode: code, Nav: nav, Date: quoteDate}, nil
	}

	return nil, fmt.Errorf("no nav for %s on %s: %w", code, day, models.ErrNotFound)
}
