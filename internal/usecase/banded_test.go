package usecase

import (
	"context"
	"testing"
	"time"

	"github.com/garen0616/sp500-hit-tester-stable/internal/domain/models"
)

func bandedMarket() *fakeMarket {
	return &fakeMarket{histories: map[string]models.PriceSeries{
		"AAA": models.NewPriceSeries([]models.PricePoint{
			{Date: day(2023, 12, 29), Close: 100},
			{Date: day(2024, 2, 1), Close: 110, High: 112, Low: 108},
			{Date: day(2024, 2, 15), Close: 111, High: 120, Low: 90},
		}),
	}}
}

func bandedReq() models.BandedRequest {
	return models.BandedRequest{
		StartDate:     "2024-01-01",
		EndDate:       "2024-01-31",
		Tickers:       "AAA",
		LookaheadDays: 7,
	}
}

func TestRunBandedBullish(t *testing.T) {
	o := &fakeOracle{fn: func(string, time.Time) (models.Decision, error) {
		return models.Decision{Rating: models.RatingBuy, RawRating: "buy", Target: f(105)}, nil
	}}
	e := newTestEngine(bandedMarket(), o)

	result, _, err := e.RunBanded(context.Background(), bandedReq())
	if err != nil {
		t.Fatal(err)
	}
	if len(result.Rows) != 1 {
		t.Fatalf("rows = %d, want 1", len(result.Rows))
	}
	row := result.Rows[0]

	if row.BaselineDate != "2024-01-01" || row.NextDate != "2024-02-01" {
		t.Errorf("period = %s..%s", row.BaselineDate, row.NextDate)
	}
	if row.BaselinePrice == nil || *row.BaselinePrice != 100 {
		t.Errorf("baseline = %v, want 100 (last close before baseline date)", row.BaselinePrice)
	}
	if row.Actual == nil || *row.Actual != 110 || row.ActualDate != "2024-02-01" {
		t.Errorf("actual = %v@%s, want 110@2024-02-01", row.Actual, row.ActualDate)
	}
	if row.MonthHigh == nil || *row.MonthHigh != 120 {
		t.Errorf("month high = %v, want 120", row.MonthHigh)
	}
	if row.MonthLow == nil || *row.MonthLow != 90 {
		t.Errorf("month low = %v, want 90", row.MonthLow)
	}
	if row.RangeMid == nil || *row.RangeMid != 105 {
		t.Errorf("range mid = %v, want 105", row.RangeMid)
	}

	if row.CloseHit == nil || !*row.CloseHit {
		t.Error("bullish with actual above baseline should close-hit")
	}
	if row.RangeMidHit == nil || !*row.RangeMidHit {
		t.Error("bullish with range mid above baseline should range-mid-hit")
	}
	if row.IntramonthHit == nil || !*row.IntramonthHit {
		t.Error("month high above target should intramonth-hit")
	}
	// delta = (110 - 105) / 105 * 100, rounded to 2 decimals
	if row.Delta == nil || *row.Delta != 4.76 {
		t.Errorf("delta = %v, want 4.76", row.Delta)
	}
	if row.HoldAccuracy != nil || row.HoldDriftFlag {
		t.Error("hold fields must stay unset for directional calls")
	}
}

func TestRunBandedEvaluatesEveryBaseline(t *testing.T) {
	o := &fakeOracle{fn: func(string, time.Time) (models.Decision, error) {
		return models.Decision{Rating: models.RatingBuy, RawRating: "buy", Target: f(105)}, nil
	}}
	e := newTestEngine(bandedMarket(), o)

	// end date lands on a baseline: it gets its own row
	req := bandedReq()
	req.EndDate = "2024-02-01"

	result, _, err := e.RunBanded(context.Background(), req)
	if err != nil {
		t.Fatal(err)
	}
	if len(result.Rows) != 2 {
		t.Fatalf("rows = %d, want one per monthly baseline", len(result.Rows))
	}

	last := result.Rows[1]
	if last.BaselineDate != "2024-02-01" || last.NextDate != "2024-03-01" {
		t.Errorf("last period = %s..%s, want 2024-02-01..2024-03-01", last.BaselineDate, last.NextDate)
	}
	if last.BaselinePrice == nil || *last.BaselinePrice != 110 {
		t.Errorf("last baseline price = %v, want 110", last.BaselinePrice)
	}
	// no March bars in the fixture
	if last.Actual != nil {
		t.Errorf("last actual = %v, want nil beyond the lookahead", last.Actual)
	}
}

func TestRunBandedSingleBaselineRange(t *testing.T) {
	o := &fakeOracle{fn: func(string, time.Time) (models.Decision, error) {
		return models.Decision{Rating: models.RatingBuy, RawRating: "buy", Target: f(105)}, nil
	}}
	e := newTestEngine(bandedMarket(), o)

	req := bandedReq()
	req.EndDate = req.StartDate

	result, _, err := e.RunBanded(context.Background(), req)
	if err != nil {
		t.Fatal(err)
	}
	if len(result.Rows) != 1 {
		t.Fatalf("rows = %d, want 1", len(result.Rows))
	}
	if result.Rows[0].BaselineDate != "2024-01-01" || result.Rows[0].NextDate != "2024-02-01" {
		t.Errorf("period = %s..%s", result.Rows[0].BaselineDate, result.Rows[0].NextDate)
	}
}

func TestRunBandedRoundsMonthRange(t *testing.T) {
	market := &fakeMarket{histories: map[string]models.PriceSeries{
		"AAA": models.NewPriceSeries([]models.PricePoint{
			{Date: day(2023, 12, 29), Close: 100},
			{Date: day(2024, 2, 1), Close: 110, High: 125.6666, Low: 95.3333},
		}),
	}}
	o := &fakeOracle{fn: func(string, time.Time) (models.Decision, error) {
		return models.Decision{Rating: models.RatingBuy, RawRating: "buy", Target: f(105)}, nil
	}}
	e := newTestEngine(market, o)

	result, _, err := e.RunBanded(context.Background(), bandedReq())
	if err != nil {
		t.Fatal(err)
	}
	row := result.Rows[0]

	if row.MonthHigh == nil || *row.MonthHigh != 125.67 {
		t.Errorf("month high = %v, want 125.67", row.MonthHigh)
	}
	if row.MonthLow == nil || *row.MonthLow != 95.33 {
		t.Errorf("month low = %v, want 95.33", row.MonthLow)
	}
	// midpoint of the rounded bounds, itself rounded
	if row.RangeMid == nil || *row.RangeMid != 110.5 {
		t.Errorf("range mid = %v, want 110.5", row.RangeMid)
	}
}

func TestRunBandedBearish(t *testing.T) {
	o := &fakeOracle{fn: func(string, time.Time) (models.Decision, error) {
		return models.Decision{Rating: models.RatingSell, RawRating: "sell", Target: f(95)}, nil
	}}
	e := newTestEngine(bandedMarket(), o)

	result, _, err := e.RunBanded(context.Background(), bandedReq())
	if err != nil {
		t.Fatal(err)
	}
	row := result.Rows[0]

	if row.CloseHit == nil || *row.CloseHit {
		t.Error("bearish with actual above baseline should miss")
	}
	if row.IntramonthHit == nil || !*row.IntramonthHit {
		t.Error("month low 90 below target 95 should intramonth-hit")
	}
}

func TestRunBandedNeutral(t *testing.T) {
	o := &fakeOracle{fn: func(string, time.Time) (models.Decision, error) {
		return models.Decision{Rating: models.RatingHold, RawRating: "hold"}, nil
	}}
	e := newTestEngine(bandedMarket(), o)

	result, _, err := e.RunBanded(context.Background(), bandedReq())
	if err != nil {
		t.Fatal(err)
	}
	row := result.Rows[0]

	// |110-100|/100 = 10% against the 5% default band
	if row.CloseHit == nil || *row.CloseHit {
		t.Error("neutral outside the band should miss")
	}
	if row.HoldAccuracy == nil || *row.HoldAccuracy {
		t.Error("hold accuracy mirrors the close hit for neutral calls")
	}
	if row.HoldBandPct == nil || *row.HoldBandPct != 0.05 {
		t.Errorf("hold band = %v, want default 0.05", row.HoldBandPct)
	}
	// 10% drift is not strictly above the 10% threshold
	if row.HoldDriftFlag {
		t.Error("drift exactly at the threshold should not flag")
	}
	if row.IntramonthHit != nil {
		t.Error("intramonth hit must stay nil for neutral calls")
	}
	if row.Delta != nil {
		t.Error("delta must stay nil without a target")
	}
}

func TestRunBandedDecisionBandWins(t *testing.T) {
	o := &fakeOracle{fn: func(string, time.Time) (models.Decision, error) {
		return models.Decision{
			Rating:    models.RatingHold,
			RawRating: "hold",
			Band:      &models.TargetBand{BandPct: f(0.12)},
		}, nil
	}}
	e := newTestEngine(bandedMarket(), o)

	result, _, err := e.RunBanded(context.Background(), bandedReq())
	if err != nil {
		t.Fatal(err)
	}
	row := result.Rows[0]

	// 10% move fits inside the decision's own 12% band
	if row.CloseHit == nil || !*row.CloseHit {
		t.Error("neutral inside the decision band should hit")
	}
	if row.HoldBandPct == nil || *row.HoldBandPct != 0.12 {
		t.Errorf("hold band = %v, want the decision band 0.12", row.HoldBandPct)
	}
}

func TestRunBandedZeroBandFallsBack(t *testing.T) {
	o := &fakeOracle{fn: func(string, time.Time) (models.Decision, error) {
		return models.Decision{
			Rating:    models.RatingHold,
			RawRating: "hold",
			Band:      &models.TargetBand{BandPct: f(0)},
		}, nil
	}}
	e := newTestEngine(bandedMarket(), o)

	result, _, err := e.RunBanded(context.Background(), bandedReq())
	if err != nil {
		t.Fatal(err)
	}
	if got := result.Rows[0].HoldBandPct; got == nil || *got != 0.05 {
		t.Errorf("hold band = %v, want the 0.05 default over a zero band", got)
	}
}

func TestRunBandedSmallCapBand(t *testing.T) {
	o := &fakeOracle{fn: func(string, time.Time) (models.Decision, error) {
		return models.Decision{Rating: models.RatingHold, RawRating: "hold", Segment: "small_cap"}, nil
	}}
	e := newTestEngine(bandedMarket(), o)

	result, _, err := e.RunBanded(context.Background(), bandedReq())
	if err != nil {
		t.Fatal(err)
	}
	if got := result.Rows[0].HoldBandPct; got == nil || *got != 0.07 {
		t.Errorf("hold band = %v, want small-cap 0.07", got)
	}
}

func TestRunBandedPriorRowsSkipEvaluation(t *testing.T) {
	o := &fakeOracle{fn: func(string, time.Time) (models.Decision, error) {
		t.Fatal("oracle must not be called for carried-over rows")
		return models.Decision{}, nil
	}}
	e := newTestEngine(bandedMarket(), o)

	req := bandedReq()
	req.PriorRows = []models.BandedRow{{
		Ticker:       "AAA",
		BaselineDate: "2024-01-01",
		NextDate:     "2024-02-01",
		Rating:       "buy",
	}}

	result, _, err := e.RunBanded(context.Background(), req)
	if err != nil {
		t.Fatal(err)
	}
	if len(result.Rows) != 1 || result.Rows[0].Rating != "buy" {
		t.Fatalf("prior row not carried over: %+v", result.Rows)
	}
}

func TestRunBandedMissingDataStaysNil(t *testing.T) {
	market := &fakeMarket{histories: map[string]models.PriceSeries{
		"AAA": {},
	}}
	o := &fakeOracle{fn: func(string, time.Time) (models.Decision, error) {
		return models.Decision{Rating: models.RatingBuy, RawRating: "buy", Target: f(105)}, nil
	}}
	e := newTestEngine(market, o)

	result, _, err := e.RunBanded(context.Background(), bandedReq())
	if err != nil {
		t.Fatal(err)
	}
	row := result.Rows[0]

	if row.BaselinePrice != nil || row.Actual != nil || row.MonthHigh != nil {
		t.Errorf("empty series should leave inputs nil: %+v", row)
	}
	if row.CloseHit != nil || row.RangeMidHit != nil || row.IntramonthHit != nil {
		t.Errorf("hits must stay nil without inputs: %+v", row)
	}
	if row.Delta != nil {
		t.Error("delta must stay nil without an actual")
	}
}
