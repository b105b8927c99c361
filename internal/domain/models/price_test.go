package models

import (
	"math"
	"testing"
	"time"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestNewPriceSeries(t *testing.T) {
	series := NewPriceSeries([]PricePoint{
		{Date: day(2024, 1, 3), Close: 103},
		{Date: day(2024, 1, 1), Close: 101},
		{Date: day(2024, 1, 2), Close: math.NaN()},
		{Date: day(2024, 1, 1), Close: 99}, // duplicate date, last wins
		{},                                 // zero date dropped
	})

	if len(series) != 2 {
		t.Fatalf("len = %d, want 2", len(series))
	}
	if series[0].Close != 99 {
		t.Errorf("duplicate date should keep the later value, got %v", series[0].Close)
	}
	if !series[0].Date.Before(series[1].Date) {
		t.Error("series not sorted ascending")
	}
}

func TestNewPriceSeriesHighLowFallback(t *testing.T) {
	series := NewPriceSeries([]PricePoint{{Date: day(2024, 1, 1), Close: 50}})
	if series[0].High != 50 || series[0].Low != 50 {
		t.Fatalf("high/low should fall back to close, got %v/%v", series[0].High, series[0].Low)
	}
}

func TestCloseOnOrBefore(t *testing.T) {
	series := NewPriceSeries([]PricePoint{
		{Date: day(2024, 1, 2), Close: 102},
		{Date: day(2024, 1, 5), Close: 105},
		{Date: day(2024, 1, 9), Close: 109},
	})

	if v, ok := series.CloseOnOrBefore(day(2024, 1, 7)); !ok || v != 105 {
		t.Errorf("got %v/%v, want 105", v, ok)
	}
	if v, ok := series.CloseOnOrBefore(day(2024, 1, 9)); !ok || v != 109 {
		t.Errorf("exact date: got %v/%v, want 109", v, ok)
	}
	if _, ok := series.CloseOnOrBefore(day(2024, 1, 1)); ok {
		t.Error("date before history should miss")
	}
}

func TestCloseOn(t *testing.T) {
	series := NewPriceSeries([]PricePoint{
		{Date: day(2024, 1, 2), Close: 102},
		{Date: day(2024, 1, 5), Close: 105},
	})

	if v, ok := series.CloseOn(day(2024, 1, 5)); !ok || v != 105 {
		t.Errorf("got %v/%v, want exact match 105", v, ok)
	}
	if _, ok := series.CloseOn(day(2024, 1, 3)); ok {
		t.Error("missing trading day should not match")
	}
}

func TestBetween(t *testing.T) {
	series := NewPriceSeries([]PricePoint{
		{Date: day(2024, 1, 2), Close: 102},
		{Date: day(2024, 1, 5), Close: 105},
		{Date: day(2024, 1, 9), Close: 109},
		{Date: day(2024, 2, 1), Close: 120},
	})

	got := series.Between(day(2024, 1, 3), day(2024, 1, 31))
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}
	if got[0].Close != 105 || got[1].Close != 109 {
		t.Errorf("unexpected window %v", got)
	}
}
