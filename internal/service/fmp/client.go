package fmp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/garen0616/sp500-hit-tester-stable/internal/domain/models"
	"github.com/garen0616/sp500-hit-tester-stable/internal/domain/repository"
	xhttp "github.com/garen0616/sp500-hit-tester-stable/pkg/http"
	applogger "github.com/garen0616/sp500-hit-tester-stable/pkg/logger"
	"github.com/garen0616/sp500-hit-tester-stable/pkg/util"
)

// Client talks to the FMP stable API. All lookups go through a bounded
// retry loop with a fixed delay between attempts.
type Client struct {
	baseURL    string
	apiKey     string
	http       *xhttp.Client
	retryMax   int
	retryDelay time.Duration
	metrics    repository.Metrics
	log        *applogger.Logger
}

// Option configures Client.
type Option func(*Client)

// WithRetry sets max extra attempts and the delay between them.
func WithRetry(max int, delay time.Duration) Option {
	return func(c *Client) {
		c.retryMax = max
		c.retryDelay = delay
	}
}

// WithTimeout sets the per-request timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.http = xhttp.NewClient(xhttp.WithTimeout(timeout))
	}
}

// WithMetrics attaches a metrics recorder.
func WithMetrics(m repository.Metrics) Option {
	return func(c *Client) {
		c.metrics = m
	}
}

// WithLogger attaches a logger.
func WithLogger(l *applogger.Logger) Option {
	return func(c *Client) {
		c.log = l
	}
}

// NewClient creates an FMP API client.
func NewClient(baseURL, apiKey string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		http:       xhttp.NewClient(xhttp.WithTimeout(30 * time.Second)),
		retryMax:   1,
		retryDelay: 600 * time.Millisecond,
	}

	for _, opt := range opts {
		opt(c)
	}
	return c
}

var _ repository.MarketData = (*Client)(nil)

// constituentRow is the upstream index membership shape.
type constituentRow struct {
	Symbol string `json:"symbol"`
	Sector string `json:"sector"`
}

// Constituents returns the current S&P 500 membership with sectors.
func (c *Client) Constituents(ctx context.Context) ([]models.Constituent, error) {
	var rows []constituentRow
	err := c.getJSON(ctx, "sp500-constituent", nil, &rows)
	if err != nil {
		return nil, fmt.Errorf("constituents: %w", err)
	}

	out := make([]models.Constituent, 0, len(rows))
	for _, r := range rows {
		if r.Symbol == "" {
			continue
		}
		out = append(out, models.Constituent{Symbol: r.Symbol, Sector: r.Sector})
	}
	return out, nil
}

// priceRow tolerates both close and adjClose spellings.
type priceRow struct {
	Date     string   `json:"date"`
	Close    *float64 `json:"close"`
	AdjClose *float64 `json:"adjClose"`
	High     float64  `json:"high"`
	Low      float64  `json:"low"`
}

// historyEnvelope accepts both a bare array and the {historical: [...]}
// wrapper the API returns for some symbols.
type historyEnvelope []priceRow

func (h *historyEnvelope) UnmarshalJSON(b []byte) error {
	var rows []priceRow
	if err := json.Unmarshal(b, &rows); err == nil {
		*h = rows
		return nil
	}
	var wrapped struct {
		Historical []priceRow `json:"historical"`
	}
	if err := json.Unmarshal(b, &wrapped); err != nil {
		return err
	}
	*h = wrapped.Historical
	return nil
}

// DailyHistory returns the full daily close history for a symbol.
func (c *Client) DailyHistory(ctx context.Context, symbol string) (models.PriceSeries, error) {
	return c.history(ctx, symbol, nil)
}

// DailyHistoryRange returns daily closes within [from, to].
func (c *Client) DailyHistoryRange(ctx context.Context, symbol string, from, to time.Time) (models.PriceSeries, error) {
	params := map[string][]string{
		"from": {util.FormatDay(from)},
		"to":   {util.FormatDay(to)},
	}
	return c.history(ctx, symbol, params)
}

func (c *Client) history(ctx context.Context, symbol string, params map[string][]string) (models.PriceSeries, error) {
	if params == nil {
		params = map[string][]string{}
	}
	params["symbol"] = []string{symbol}

	var rows historyEnvelope
	if err := c.getJSON(ctx, "historical-price-eod/full", params, &rows); err != nil {
		return nil, fmt.Errorf("history %s: %w", symbol, err)
	}

	points := make([]models.PricePoint, 0, len(rows))
	for _, r := range rows {
		d, ok := util.ParseDay(r.Date)
		if !ok {
			continue
		}
		var px float64
		switch {
		case r.Close != nil:
			px = *r.Close
		case r.AdjClose != nil:
			px = *r.AdjClose
		default:
			continue
		}
		points = append(points, models.PricePoint{Date: d, Close: px, High: r.High, Low: r.Low})
	}
	return models.NewPriceSeries(points), nil
}

// mcapRow tolerates the three capitalization field spellings the API has
// used over time.
type mcapRow struct {
	Symbol     string   `json:"symbol"`
	Date       string   `json:"date"`
	MarketCap  *float64 `json:"marketCap"`
	Marketcap  *float64 `json:"marketcap"`
	MarketCap2 *float64 `json:"market_cap"`
}

func (r mcapRow) cap() (float64, bool) {
	switch {
	case r.MarketCap != nil:
		return *r.MarketCap, true
	case r.Marketcap != nil:
		return *r.Marketcap, true
	case r.MarketCap2 != nil:
		return *r.MarketCap2, true
	}
	return 0, false
}

// MarketCapBatch returns the latest capitalization for up to one batch of
// symbols. Callers chunk the universe before calling.
func (c *Client) MarketCapBatch(ctx context.Context, symbols []string) ([]models.MarketCap, error) {
	if len(symbols) == 0 {
		return nil, nil
	}

	params := map[string][]string{"symbols": {strings.Join(symbols, ",")}}
	var rows []mcapRow
	if err := c.getJSON(ctx, "market-capitalization-batch", params, &rows); err != nil {
		return nil, fmt.Errorf("market cap batch: %w", err)
	}

	out := make([]models.MarketCap, 0, len(rows))
	for _, r := range rows {
		v, ok := r.cap()
		if !ok || r.Symbol == "" {
			continue
		}
		mc := models.MarketCap{Symbol: r.Symbol, Cap: v}
		if d, ok := util.ParseDay(r.Date); ok {
			mc.Date = d
		}
		out = append(out, mc)
	}
	return out, nil
}

// MarketCapHistory returns dated capitalization observations for one symbol,
// oldest first.
func (c *Client) MarketCapHistory(ctx context.Context, symbol string) ([]models.MarketCap, error) {
	params := map[string][]string{"symbol": {symbol}}
	var rows []mcapRow
	if err := c.getJSON(ctx, "historical-market-capitalization", params, &rows); err != nil {
		return nil, fmt.Errorf("market cap history %s: %w", symbol, err)
	}

	out := make([]models.MarketCap, 0, len(rows))
	for _, r := range rows {
		v, ok := r.cap()
		if !ok {
			continue
		}
		d, ok := util.ParseDay(r.Date)
		if !ok {
			continue
		}
		sym := r.Symbol
		if sym == "" {
			sym = symbol
		}
		out = append(out, models.MarketCap{Symbol: sym, Date: d, Cap: v})
	}
	return out, nil
}

// getJSON fetches one endpoint with bounded retry. The attempt budget is
// 1 + retryMax; each failed attempt waits retryDelay before the next.
func (c *Client) getJSON(ctx context.Context, path string, params map[string][]string, dest interface{}) error {
	query := map[string][]string{"apikey": {c.apiKey}}
	for k, v := range params {
		query[k] = v
	}

	opts := &xhttp.RequestOptions{
		Method:      xhttp.MethodGet,
		URL:         c.baseURL + "/" + path,
		QueryParams: query,
	}

	var lastErr error
	for attempt := 0; attempt <= c.retryMax; attempt++ {
		if attempt > 0 {
			if c.metrics != nil {
				c.metrics.RecordRetry("fmp")
			}
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(c.retryDelay):
			}
		}

		lastErr = c.http.SendAndParse(ctx, opts, dest)
		if c.metrics != nil {
			result := "ok"
			if lastErr != nil {
				result = "error"
			}
			c.metrics.RecordAPICall("fmp", result)
		}
		if lastErr == nil {
			return nil
		}
		if ctx.Err() != nil {
			return lastErr
		}
		if c.log != nil {
			c.log.Warn("fmp request failed",
				applogger.String("path", path),
				applogger.Int("attempt", attempt+1),
				applogger.Error(lastErr),
			)
		}
	}
	return lastErr
}
