package usecase

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/garen0616/sp500-hit-tester-stable/internal/domain/models"
	applogger "github.com/garen0616/sp500-hit-tester-stable/pkg/logger"
	"github.com/garen0616/sp500-hit-tester-stable/pkg/util"
)

// BandedParams tunes the banded/target scorer.
type BandedParams struct {
	DefaultBandPct  float64
	SmallCapBandPct float64
	DriftPct        float64
	Pacing          time.Duration
}

// WithBandedParams overrides the scorer defaults.
func WithBandedParams(p BandedParams) EngineOption {
	return func(e *Engine) { e.banded = p }
}

func defaultBandedParams() BandedParams {
	return BandedParams{
		DefaultBandPct:  0.05,
		SmallCapBandPct: 0.07,
		DriftPct:        0.10,
	}
}

// RunBanded executes one banded/target run over monthly baselines. Shares
// the single-run slot with directional runs.
func (e *Engine) RunBanded(ctx context.Context, req models.BandedRequest) (*models.BandedResult, *models.UsageSummary, error) {
	tickers, err := parseTickerList(req.Tickers)
	if err != nil {
		return nil, nil, err
	}
	baselines, err := monthlyBaselines(req.StartDate, req.EndDate)
	if err != nil {
		return nil, nil, err
	}

	run, err := e.control.Start()
	if err != nil {
		return nil, nil, err
	}
	defer e.control.Finalize(run)

	e.publishEvent(ctx, run, "banded", "started", nil)
	start := time.Now()

	rows, err := e.runBanded(ctx, run, req, tickers, baselines)
	usage := run.Summarize()

	if e.metrics != nil {
		e.metrics.RecordRunDuration("banded", time.Since(start).Seconds())
	}
	if err != nil {
		state := "failed"
		if errors.Is(err, models.ErrRunCancelled) {
			state = "cancelled"
		}
		e.publishEvent(ctx, run, "banded", state, err)
		return nil, &usage, err
	}

	result := &models.BandedResult{RunID: run.ID, Rows: rows, TokenUsage: &usage}
	e.publishEvent(ctx, run, "banded", "finished", nil)
	return result, &usage, nil
}

// monthlyBaselines expands [start, end] into monthly baseline dates, both
// ends inclusive. A single-month range yields one baseline.
func monthlyBaselines(startDate, endDate string) ([]time.Time, error) {
	start, ok := util.ParseDay(startDate)
	if !ok {
		return nil, fmt.Errorf("%w: startDate must be a YYYY-MM-DD date", ErrBadRequest)
	}
	end, ok := util.ParseDay(endDate)
	if !ok {
		return nil, fmt.Errorf("%w: endDate must be a YYYY-MM-DD date", ErrBadRequest)
	}
	if end.Before(start) {
		return nil, fmt.Errorf("%w: endDate precedes startDate", ErrBadRequest)
	}

	var out []time.Time
	for t := start; !t.After(end); t = t.AddDate(0, 1, 0) {
		out = append(out, t)
	}
	return out, nil
}

func (e *Engine) runBanded(ctx context.Context, run *models.RunContext, req models.BandedRequest, tickers []string, baselines []time.Time) ([]models.BandedRow, error) {
	// rows already evaluated by a previous interrupted run are carried over
	prior := make(map[string]models.BandedRow, len(req.PriorRows))
	for _, r := range req.PriorRows {
		prior[r.Ticker+"|"+r.BaselineDate] = r
	}

	stageStart := time.Now()
	prices, err := e.fetcher.FetchAll(ctx, run, tickers, func(done int) {
		e.progress(run, "prices", done, len(tickers))
	})
	if err != nil {
		return nil, err
	}
	e.recordStage("prices", stageStart)

	lookahead := req.LookaheadDays
	if lookahead <= 0 {
		lookahead = 7
	}

	params := e.banded

	total := len(baselines) * len(tickers)
	rows := make([]models.BandedRow, 0, total)

	stageStart = time.Now()
	done := 0
	for _, baseline := range baselines {
		next := baseline.AddDate(0, 1, 0)
		for _, ticker := range tickers {
			if err := run.Err(); err != nil {
				return nil, err
			}

			key := ticker + "|" + util.FormatDay(baseline)
			if r, ok := prior[key]; ok {
				rows = append(rows, r)
				done++
				e.progress(run, "evaluate", done, total)
				continue
			}

			row := e.evaluateBandedCell(ctx, run, ticker, baseline, next, lookahead, params, prices)
			rows = append(rows, row)
			done++
			e.progress(run, "evaluate", done, total)

			if params.Pacing > 0 {
				select {
				case <-ctx.Done():
					return nil, ctx.Err()
				case <-time.After(params.Pacing):
				}
			}
		}
	}
	e.recordStage("evaluate", stageStart)

	if e.store != nil {
		if err := e.store.SaveBanded(ctx, run.ID, rows); err != nil && e.log != nil {
			e.log.Warn("result store save failed", applogger.String("run", run.ID), applogger.Error(err))
		}
	}
	return rows, nil
}

// evaluateBandedCell scores one (ticker, baseline month) cell. Every derived
// field stays nil when an input of its derivation was missing.
func (e *Engine) evaluateBandedCell(
	ctx context.Context,
	run *models.RunContext,
	ticker string,
	baseline, next time.Time,
	lookahead int,
	params BandedParams,
	prices *PriceStore,
) models.BandedRow {
	row := models.BandedRow{
		Ticker:       ticker,
		BaselineDate: util.FormatDay(baseline),
		NextDate:     util.FormatDay(next),
	}

	var direction models.Direction
	var band *models.TargetBand
	segment := ""

	d, err := e.decisions.Decide(ctx, run, ticker, baseline)
	if err != nil {
		if e.log != nil {
			e.log.Warn("decision failed",
				applogger.String("ticker", ticker),
				applogger.String("date", row.BaselineDate),
				applogger.Error(err),
			)
		}
	} else {
		row.Rating = d.RawRating
		row.Target = d.Target
		direction = models.ClassifyDirection(d.RawRating)
		band = d.Band
		segment = d.Segment
	}

	series := prices.Series(ticker)
	if p, ok := series.CloseOnOrBefore(baseline); ok {
		row.BaselinePrice = &p
	}

	// actual close: first trading day at or after the next boundary, searched
	// day by day within the lookahead window
	for i := 0; i <= lookahead; i++ {
		day := next.AddDate(0, 0, i)
		if p, ok := series.CloseOn(day); ok {
			row.Actual = &p
			row.ActualDate = util.FormatDay(day)
			break
		}
	}

	// forward calendar month range
	monthPoints := series.Between(util.MonthStart(next), util.MonthEnd(next))
	if len(monthPoints) > 0 {
		high, low := monthPoints[0].High, monthPoints[0].Low
		for _, p := range monthPoints[1:] {
			if p.High > high {
				high = p.High
			}
			if p.Low < low {
				low = p.Low
			}
		}
		high, low = round2(high), round2(low)
		mid := round2((high + low) / 2)
		row.MonthHigh = &high
		row.MonthLow = &low
		row.RangeMid = &mid
	}

	bandPct := bandWidth(band, segment, params)

	if row.Actual != nil && row.Target != nil && *row.Target != 0 {
		delta := round2((*row.Actual - *row.Target) / *row.Target * 100)
		row.Delta = &delta
	}

	if row.BaselinePrice != nil && *row.BaselinePrice != 0 {
		if row.Actual != nil {
			row.CloseHit = directionalHit(direction, *row.Actual, *row.BaselinePrice, bandPct)
		}
		if row.RangeMid != nil {
			row.RangeMidHit = directionalHit(direction, *row.RangeMid, *row.BaselinePrice, bandPct)
		}
	}

	if direction == models.DirectionBullish || direction == models.DirectionBearish {
		if row.Target != nil && row.MonthHigh != nil && row.MonthLow != nil {
			var hit bool
			if direction == models.DirectionBullish {
				hit = *row.MonthHigh >= *row.Target
			} else {
				hit = *row.MonthLow <= *row.Target
			}
			row.IntramonthHit = &hit
		}
	}

	if direction == models.DirectionNeutral {
		row.HoldAccuracy = row.CloseHit
		row.HoldBandPct = &bandPct
		if row.Actual != nil && row.BaselinePrice != nil && *row.BaselinePrice != 0 {
			drift := math.Abs(*row.Actual-*row.BaselinePrice) / *row.BaselinePrice
			row.HoldDriftFlag = drift > params.DriftPct
		}
	}

	return row
}

// bandWidth picks the tolerance band: the decision's own band when present
// and positive, otherwise a wider default for small caps. Zero or negative
// band values are treated as absent.
func bandWidth(band *models.TargetBand, segment string, params BandedParams) float64 {
	if band != nil {
		if v, ok := finitePct(band.BandPct); ok && v > 0 {
			return v
		}
		upper, _ := finitePct(band.UpperPct)
		lower, _ := finitePct(band.LowerPct)
		if w := math.Max(math.Abs(upper), math.Abs(lower)); w > 0 {
			return w
		}
	}
	if segment == "small_cap" {
		return params.SmallCapBandPct
	}
	return params.DefaultBandPct
}

// directionalHit scores a realized value against the baseline under one
// direction call.
func directionalHit(direction models.Direction, value, baseline, bandPct float64) *bool {
	var hit bool
	switch direction {
	case models.DirectionBullish:
		hit = value >= baseline
	case models.DirectionBearish:
		hit = value <= baseline
	case models.DirectionNeutral:
		hit = math.Abs(value-baseline)/baseline <= bandPct
	default:
		return nil
	}
	return &hit
}

func finitePct(v *float64) (float64, bool) {
	if v == nil || math.IsNaN(*v) || math.IsInf(*v, 0) {
		return 0, false
	}
	return *v, true
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
