package oracle

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/garen0616/sp500-hit-tester-stable/internal/domain/models"
	"github.com/garen0616/sp500-hit-tester-stable/internal/domain/repository"
	xhttp "github.com/garen0616/sp500-hit-tester-stable/pkg/http"
	"github.com/garen0616/sp500-hit-tester-stable/pkg/util"
)

// Client calls the external analyzer service for rating decisions.
type Client struct {
	baseURL string
	http    *xhttp.Client
}

// Option configures Client.
type Option func(*Client)

// WithTimeout sets the per-request timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.http = xhttp.NewClient(xhttp.WithTimeout(timeout))
	}
}

// NewClient creates an analyzer client.
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    xhttp.NewClient(xhttp.WithTimeout(30 * time.Second)),
	}

	for _, opt := range opts {
		opt(c)
	}
	return c
}

var _ repository.DecisionOracle = (*Client)(nil)

type analyzeRequest struct {
	Ticker string `json:"ticker"`
	Date   string `json:"date"`
}

// analyzeResponse mirrors the analyzer payload. Nested shapes vary between
// analyzer versions, so every path is optional.
type analyzeResponse struct {
	Analysis *struct {
		Rating      json.RawMessage `json:"rating"`
		Action      json.RawMessage `json:"action"`
		TargetPrice *float64        `json:"target_price"`
		Usage       *usagePayload   `json:"__usage"`
		Profile     *struct {
			Segment string `json:"segment"`
		} `json:"profile"`
	} `json:"analysis"`
	LLMUsage *usagePayload `json:"llm_usage"`
}

// actionPayload is the structured form of analysis.action. Older analyzer
// versions send action as a bare rating string instead.
type actionPayload struct {
	Rating      string       `json:"rating"`
	TargetPrice *float64     `json:"target_price"`
	TargetBand  *bandPayload `json:"target_band"`
}

type bandPayload struct {
	BandPct  *float64 `json:"band_pct"`
	UpperPct *float64 `json:"upper_pct"`
	LowerPct *float64 `json:"lower_pct"`
}

type usagePayload struct {
	PromptTokens     *float64 `json:"prompt_tokens"`
	CompletionTokens *float64 `json:"completion_tokens"`
	TotalTokens      *float64 `json:"total_tokens"`
	TotalCost        *float64 `json:"total_cost"`
	InputCost        *float64 `json:"input_cost"`
	OutputCost       *float64 `json:"output_cost"`
}

// Analyze asks the analyzer for one (ticker, date) decision.
func (c *Client) Analyze(ctx context.Context, ticker string, date time.Time) (models.Decision, error) {
	opts := &xhttp.RequestOptions{
		Method: xhttp.MethodPost,
		URL:    c.baseURL + "/api/analyze",
		Body:   analyzeRequest{Ticker: ticker, Date: util.FormatDay(date)},
	}

	var resp analyzeResponse
	if err := c.http.SendAndParse(ctx, opts, &resp); err != nil {
		return models.Decision{}, fmt.Errorf("analyze %s@%s: %w", ticker, util.FormatDay(date), err)
	}

	return c.normalize(resp), nil
}

// normalize extracts rating, target, band, segment and usage from whichever
// of the known payload shapes this analyzer version produced.
func (c *Client) normalize(resp analyzeResponse) models.Decision {
	var d models.Decision
	a := resp.Analysis

	var action *actionPayload
	if a != nil && len(a.Action) > 0 {
		var obj actionPayload
		if err := json.Unmarshal(a.Action, &obj); err == nil {
			action = &obj
		} else {
			var s string
			if err := json.Unmarshal(a.Action, &s); err == nil {
				action = &actionPayload{Rating: s}
			}
		}
	}

	raw := ""
	switch {
	case action != nil && action.Rating != "":
		raw = action.Rating
	case a != nil && len(a.Rating) > 0:
		var s string
		if err := json.Unmarshal(a.Rating, &s); err == nil {
			raw = s
		}
	}
	d.RawRating = raw
	d.Rating = models.NormalizeRating(raw)

	if action != nil && action.TargetPrice != nil {
		d.Target = action.TargetPrice
	} else if a != nil && a.TargetPrice != nil {
		d.Target = a.TargetPrice
	}
	if action != nil && action.TargetBand != nil {
		d.Band = &models.TargetBand{
			BandPct:  action.TargetBand.BandPct,
			UpperPct: action.TargetBand.UpperPct,
			LowerPct: action.TargetBand.LowerPct,
		}
	}
	if a != nil && a.Profile != nil {
		d.Segment = a.Profile.Segment
	}

	usage := resp.LLMUsage
	if usage == nil && a != nil {
		usage = a.Usage
	}
	if usage != nil {
		d.Usage = &models.Usage{
			PromptTokens:     usage.PromptTokens,
			CompletionTokens: usage.CompletionTokens,
			TotalTokens:      usage.TotalTokens,
			TotalCost:        usage.TotalCost,
			InputCost:        usage.InputCost,
			OutputCost:       usage.OutputCost,
		}
	}

	return d
}
