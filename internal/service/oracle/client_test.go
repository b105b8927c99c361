package oracle

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/garen0616/sp500-hit-tester-stable/internal/domain/models"
)

func analyzeServer(t *testing.T, body string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/analyze" {
			t.Errorf("path = %s", r.URL.Path)
		}
		var req map[string]string
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("bad request body: %v", err)
		}
		if req["ticker"] == "" || req["date"] == "" {
			t.Errorf("incomplete request %v", req)
		}
		w.Write([]byte(body))
	}))
}

func TestAnalyzeStructuredAction(t *testing.T) {
	srv := analyzeServer(t, `{
		"analysis": {
			"action": {
				"rating": "BUY",
				"target_price": 215.5,
				"target_band": {"band_pct": 0.06}
			},
			"profile": {"segment": "large_cap"}
		},
		"llm_usage": {"prompt_tokens": 900, "completion_tokens": 120, "total_cost": 0.004}
	}`)
	defer srv.Close()

	c := NewClient(srv.URL)
	d, err := c.Analyze(context.Background(), "AAPL", time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatal(err)
	}

	if d.Rating != models.RatingBuy || d.RawRating != "BUY" {
		t.Errorf("rating = %s/%s", d.Rating, d.RawRating)
	}
	if d.Target == nil || *d.Target != 215.5 {
		t.Errorf("target = %v", d.Target)
	}
	if d.Band == nil || d.Band.BandPct == nil || *d.Band.BandPct != 0.06 {
		t.Errorf("band = %+v", d.Band)
	}
	if d.Segment != "large_cap" {
		t.Errorf("segment = %s", d.Segment)
	}
	if d.Usage == nil || *d.Usage.PromptTokens != 900 || *d.Usage.TotalCost != 0.004 {
		t.Errorf("usage = %+v", d.Usage)
	}
}

func TestAnalyzeBareActionString(t *testing.T) {
	srv := analyzeServer(t, `{
		"analysis": {
			"action": "sell",
			"target_price": 88.0,
			"__usage": {"total_tokens": 500}
		}
	}`)
	defer srv.Close()

	c := NewClient(srv.URL)
	d, err := c.Analyze(context.Background(), "XOM", time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatal(err)
	}

	if d.Rating != models.RatingSell || d.RawRating != "sell" {
		t.Errorf("rating = %s/%s", d.Rating, d.RawRating)
	}
	if d.Target == nil || *d.Target != 88.0 {
		t.Errorf("target fallback = %v", d.Target)
	}
	if d.Usage == nil || d.Usage.TotalTokens == nil || *d.Usage.TotalTokens != 500 {
		t.Errorf("nested usage = %+v", d.Usage)
	}
}

func TestAnalyzeRatingField(t *testing.T) {
	srv := analyzeServer(t, `{"analysis": {"rating": "hold"}}`)
	defer srv.Close()

	c := NewClient(srv.URL)
	d, err := c.Analyze(context.Background(), "KO", time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatal(err)
	}
	if d.Rating != models.RatingHold {
		t.Errorf("rating = %s, want HOLD", d.Rating)
	}
}

func TestAnalyzeEmptyPayload(t *testing.T) {
	srv := analyzeServer(t, `{}`)
	defer srv.Close()

	c := NewClient(srv.URL)
	d, err := c.Analyze(context.Background(), "KO", time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatal(err)
	}
	if d.Rating != models.RatingUnknown {
		t.Errorf("rating = %s, want UNKNOWN", d.Rating)
	}
	if d.Target != nil || d.Usage != nil {
		t.Errorf("empty payload should yield empty decision: %+v", d)
	}
}

func TestAnalyzeUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model overloaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	if _, err := c.Analyze(context.Background(), "KO", time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)); err == nil {
		t.Fatal("expected an error for a 503 response")
	}
}
