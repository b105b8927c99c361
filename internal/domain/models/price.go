package models

import (
	"math"
	"sort"
	"time"
)

// PricePoint is one daily bar of a ticker's history. High/Low fall back to
// Close when the upstream row carries no intraday range.
type PricePoint struct {
	Date  time.Time `json:"date"`
	Close float64   `json:"close"`
	High  float64   `json:"high"`
	Low   float64   `json:"low"`
}

// PriceSeries is a chronologically sorted daily history for one ticker.
// A series is built once per run and never mutated afterwards.
type PriceSeries []PricePoint

// NewPriceSeries sorts points ascending by date, drops non-finite closes and
// collapses duplicate dates (last one wins after sorting).
func NewPriceSeries(points []PricePoint) PriceSeries {
	kept := make([]PricePoint, 0, len(points))
	for _, p := range points {
		if p.Date.IsZero() {
			continue
		}
		if math.IsNaN(p.Close) || math.IsInf(p.Close, 0) {
			continue
		}
		if p.High == 0 || math.IsNaN(p.High) || math.IsInf(p.High, 0) {
			p.High = p.Close
		}
		if p.Low == 0 || math.IsNaN(p.Low) || math.IsInf(p.Low, 0) {
			p.Low = p.Close
		}
		p.Date = Day(p.Date)
		kept = append(kept, p)
	}
	sort.SliceStable(kept, func(i, j int) bool { return kept[i].Date.Before(kept[j].Date) })

	out := kept[:0]
	for _, p := range kept {
		if n := len(out); n > 0 && out[n-1].Date.Equal(p.Date) {
			out[n-1] = p
			continue
		}
		out = append(out, p)
	}
	return PriceSeries(out)
}

// CloseOnOrBefore returns the close of the latest point dated at or before d.
func (s PriceSeries) CloseOnOrBefore(d time.Time) (float64, bool) {
	d = Day(d)
	lo, hi := 0, len(s)-1
	idx := -1
	for lo <= hi {
		mid := (lo + hi) / 2
		if s[mid].Date.After(d) {
			hi = mid - 1
		} else {
			idx = mid
			lo = mid + 1
		}
	}
	if idx < 0 {
		return 0, false
	}
	return s[idx].Close, true
}

// CloseOn returns the close for exactly d, if a bar exists on that day.
func (s PriceSeries) CloseOn(d time.Time) (float64, bool) {
	d = Day(d)
	i := sort.Search(len(s), func(i int) bool { return !s[i].Date.Before(d) })
	if i < len(s) && s[i].Date.Equal(d) {
		return s[i].Close, true
	}
	return 0, false
}

// Between returns the points with from <= date <= to.
func (s PriceSeries) Between(from, to time.Time) PriceSeries {
	from, to = Day(from), Day(to)
	lo := sort.Search(len(s), func(i int) bool { return !s[i].Date.Before(from) })
	hi := sort.Search(len(s), func(i int) bool { return s[i].Date.After(to) })
	return s[lo:hi]
}

// Day truncates t to calendar-day precision in UTC.
func Day(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
