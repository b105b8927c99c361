package usecase

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/garen0616/sp500-hit-tester-stable/internal/domain/models"
)

func testRun() *models.RunContext {
	return models.NewRunContext("test")
}

func TestParseTickerList(t *testing.T) {
	got, err := parseTickerList("aapl, msft,,AAPL\nnvda")
	if err != nil {
		t.Fatal(err)
	}
	// duplicates pass through
	want := []string{"AAPL", "MSFT", "AAPL", "NVDA"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}

	if _, err := parseTickerList(" , "); !errors.Is(err, ErrBadSelector) {
		t.Fatalf("empty list err = %v, want ErrBadSelector", err)
	}
}

func TestSelectManual(t *testing.T) {
	s := NewSelector(&fakeMarket{}, 2, 150, nil)
	got, err := s.Select(context.Background(), testRun(), models.SelectorSpec{
		Type:    "manual",
		Tickers: "aaa,bbb",
		TopN:    50,
	})
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(got, []string{"AAA", "BBB"}) {
		t.Fatalf("got %v", got)
	}
}

func TestSelectUnknownType(t *testing.T) {
	s := NewSelector(&fakeMarket{}, 2, 150, nil)
	if _, err := s.Select(context.Background(), testRun(), models.SelectorSpec{Type: "alpha", TopN: 10}); !errors.Is(err, ErrBadSelector) {
		t.Fatalf("err = %v, want ErrBadSelector", err)
	}
}

func TestSelectByLatestCap(t *testing.T) {
	market := &fakeMarket{
		constituents: []models.Constituent{
			{Symbol: "AAA", Sector: "Tech"},
			{Symbol: "BBB", Sector: "Energy"},
			{Symbol: "CCC", Sector: "Tech"},
		},
		caps: []models.MarketCap{
			{Symbol: "AAA", Cap: 300},
			{Symbol: "BBB", Cap: 900},
			{Symbol: "CCC", Cap: 600},
		},
	}
	s := NewSelector(market, 2, 150, nil)

	got, err := s.Select(context.Background(), testRun(), models.SelectorSpec{Type: "mcap_latest", TopN: 2})
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(got, []string{"BBB", "CCC"}) {
		t.Fatalf("got %v, want biggest caps first", got)
	}
}

func TestSelectSectorFilter(t *testing.T) {
	market := &fakeMarket{
		constituents: []models.Constituent{
			{Symbol: "AAA", Sector: "Tech"},
			{Symbol: "BBB", Sector: "Energy"},
			{Symbol: "CCC", Sector: "Tech"},
		},
		caps: []models.MarketCap{
			{Symbol: "AAA", Cap: 300},
			{Symbol: "BBB", Cap: 900},
			{Symbol: "CCC", Cap: 600},
		},
	}
	s := NewSelector(market, 2, 150, nil)

	got, err := s.Select(context.Background(), testRun(), models.SelectorSpec{
		Type:    "mcap_latest",
		TopN:    10,
		Sectors: []string{"tech"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(got, []string{"CCC", "AAA"}) {
		t.Fatalf("got %v, want Tech only ranked by cap", got)
	}
}

func TestSelectByReturn(t *testing.T) {
	market := &fakeMarket{
		constituents: []models.Constituent{{Symbol: "AAA"}, {Symbol: "BBB"}},
		histories: map[string]models.PriceSeries{
			// AAA: +50%, BBB: +10%
			"AAA": models.NewPriceSeries([]models.PricePoint{
				{Date: day(2024, 1, 2), Close: 100},
				{Date: day(2024, 1, 31), Close: 150},
			}),
			"BBB": models.NewPriceSeries([]models.PricePoint{
				{Date: day(2024, 1, 2), Close: 100},
				{Date: day(2024, 1, 31), Close: 110},
			}),
		},
	}
	s := NewSelector(market, 2, 150, nil)

	got, err := s.Select(context.Background(), testRun(), models.SelectorSpec{
		Type: "return",
		From: "2024-01-01",
		To:   "2024-02-01",
		TopN: 1,
	})
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(got, []string{"AAA"}) {
		t.Fatalf("got %v, want the best performer", got)
	}
}

func TestSelectByCapAsOf(t *testing.T) {
	market := &fakeMarket{
		constituents: []models.Constituent{{Symbol: "AAA"}, {Symbol: "BBB"}},
		capHistories: map[string][]models.MarketCap{
			"AAA": {
				{Symbol: "AAA", Date: day(2023, 6, 1), Cap: 500},
				{Symbol: "AAA", Date: day(2024, 6, 1), Cap: 2000}, // after as-of, ignored
			},
			"BBB": {
				{Symbol: "BBB", Date: day(2023, 6, 1), Cap: 800},
			},
		},
	}
	s := NewSelector(market, 2, 150, nil)

	got, err := s.Select(context.Background(), testRun(), models.SelectorSpec{
		Type: "mcap_asof",
		AsOf: "2024-01-01",
		TopN: 2,
	})
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(got, []string{"BBB", "AAA"}) {
		t.Fatalf("got %v, want as-of caps ranked", got)
	}
}

func TestTopNClamp(t *testing.T) {
	market := &fakeMarket{
		constituents: []models.Constituent{{Symbol: "AAA"}},
		caps:         []models.MarketCap{{Symbol: "AAA", Cap: 100}},
	}
	s := NewSelector(market, 2, 150, nil)

	// zero clamps up to one, not to an empty pick
	got, err := s.Select(context.Background(), testRun(), models.SelectorSpec{Type: "mcap_latest", TopN: 0})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 {
		t.Fatalf("got %v, want 1 ticker", got)
	}
}
