package fmp

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func TestDailyHistoryBareArray(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/historical-price-eod/full" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if r.URL.Query().Get("apikey") != "test-key" {
			t.Error("apikey missing")
		}
		if r.URL.Query().Get("symbol") != "AAPL" {
			t.Errorf("symbol = %s", r.URL.Query().Get("symbol"))
		}
		w.Write([]byte(`[
			{"date":"2024-01-03","close":183.5,"high":184.0,"low":182.0},
			{"date":"2024-01-02","close":181.2}
		]`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "test-key")
	series, err := c.DailyHistory(context.Background(), "AAPL")
	if err != nil {
		t.Fatal(err)
	}

	if len(series) != 2 {
		t.Fatalf("len = %d, want 2", len(series))
	}
	if series[0].Close != 181.2 || series[1].Close != 183.5 {
		t.Errorf("series not sorted ascending: %v", series)
	}
	if series[0].High != 181.2 {
		t.Errorf("high should fall back to close, got %v", series[0].High)
	}
}

func TestDailyHistoryWrappedEnvelope(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"symbol":"AAPL","historical":[
			{"date":"2024-01-02","adjClose":181.2}
		]}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "test-key")
	series, err := c.DailyHistory(context.Background(), "AAPL")
	if err != nil {
		t.Fatal(err)
	}
	if len(series) != 1 || series[0].Close != 181.2 {
		t.Fatalf("adjClose fallback failed: %v", series)
	}
}

func TestMarketCapBatchFieldSpellings(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("symbols"); got != "AAA,BBB,CCC" {
			t.Errorf("symbols = %s", got)
		}
		w.Write([]byte(`[
			{"symbol":"AAA","marketCap":100},
			{"symbol":"BBB","marketcap":200},
			{"symbol":"CCC","market_cap":300},
			{"symbol":"DDD"}
		]`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "test-key")
	rows, err := c.MarketCapBatch(context.Background(), []string{"AAA", "BBB", "CCC"})
	if err != nil {
		t.Fatal(err)
	}

	if len(rows) != 3 {
		t.Fatalf("rows = %d, want 3 (capless row dropped)", len(rows))
	}
	if rows[0].Cap != 100 || rows[1].Cap != 200 || rows[2].Cap != 300 {
		t.Errorf("caps = %v", rows)
	}
}

func TestRetryOnServerError(t *testing.T) {
	var hits atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "test-key", WithRetry(1, time.Millisecond))
	if _, err := c.Constituents(context.Background()); err != nil {
		t.Fatalf("retry should have recovered: %v", err)
	}
	if hits.Load() != 2 {
		t.Fatalf("hits = %d, want 2", hits.Load())
	}
}

func TestRetryBudgetExhausted(t *testing.T) {
	var hits atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "test-key", WithRetry(1, time.Millisecond))
	if _, err := c.Constituents(context.Background()); err == nil {
		t.Fatal("expected an error after the retry budget")
	}
	if hits.Load() != 2 {
		t.Fatalf("hits = %d, want 1 attempt + 1 retry", hits.Load())
	}
}

func TestConstituents(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/sp500-constituent" {
			t.Errorf("path = %s", r.URL.Path)
		}
		w.Write([]byte(`[
			{"symbol":"AAPL","sector":"Information Technology"},
			{"symbol":"","sector":"ignored"}
		]`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "test-key")
	rows, err := c.Constituents(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 1 || rows[0].Symbol != "AAPL" || rows[0].Sector != "Information Technology" {
		t.Fatalf("rows = %v", rows)
	}
}
