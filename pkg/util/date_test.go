package util

import (
	"testing"
	"time"
)

func TestParseDay(t *testing.T) {
	got, ok := ParseDay("2024-10-10")
	if !ok {
		t.Fatalf("expected ok")
	}
	want := time.Date(2024, 10, 10, 0, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("unexpected day %v", got)
	}
}

func TestParseDayInvalid(t *testing.T) {
	if _, ok := ParseDay("10/10/2024"); ok {
		t.Fatalf("expected parse failure")
	}
	if _, ok := ParseDay(""); ok {
		t.Fatalf("expected parse failure for empty input")
	}
}

func TestParseDayDefault(t *testing.T) {
	def := time.Date(2024, 10, 10, 0, 0, 0, 0, time.UTC)
	if got := ParseDayDefault("", def); !got.Equal(def) {
		t.Fatalf("expected default")
	}
}

func TestMonthBounds(t *testing.T) {
	d := time.Date(2024, 2, 15, 0, 0, 0, 0, time.UTC)
	if got := MonthStart(d); FormatDay(got) != "2024-02-01" {
		t.Fatalf("month start = %s", FormatDay(got))
	}
	if got := MonthEnd(d); FormatDay(got) != "2024-02-29" {
		t.Fatalf("month end = %s", FormatDay(got))
	}
}
