package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/garen0616/sp500-hit-tester-stable/internal/domain/models"
	"github.com/garen0616/sp500-hit-tester-stable/internal/domain/repository"
	applogger "github.com/garen0616/sp500-hit-tester-stable/pkg/logger"
	"github.com/garen0616/sp500-hit-tester-stable/pkg/util"
)

// ErrBadRequest marks run parameter problems the caller should report as a
// validation failure.
var ErrBadRequest = errors.New("invalid run request")

// Engine drives backtest runs end to end: universe selection, price
// prefetch, decision collection and scoring. One engine serves the whole
// process; the Controller serializes runs.
type Engine struct {
	control   *Controller
	selector  *Selector
	fetcher   *PriceFetcher
	decisions *DecisionProvider
	hub       *ProgressHub
	store     repository.ResultStore
	events    repository.RunEvents
	metrics   repository.Metrics
	log       *applogger.Logger
	banded    BandedParams
}

// EngineOption configures Engine.
type EngineOption func(*Engine)

// WithResultStore attaches a persistence backend for evaluation rows.
func WithResultStore(store repository.ResultStore) EngineOption {
	return func(e *Engine) { e.store = store }
}

// WithRunEvents attaches a lifecycle event publisher.
func WithRunEvents(events repository.RunEvents) EngineOption {
	return func(e *Engine) { e.events = events }
}

// WithEngineMetrics attaches a metrics recorder.
func WithEngineMetrics(m repository.Metrics) EngineOption {
	return func(e *Engine) { e.metrics = m }
}

// WithEngineLogger attaches a logger.
func WithEngineLogger(l *applogger.Logger) EngineOption {
	return func(e *Engine) { e.log = l }
}

// NewEngine creates a backtest engine.
func NewEngine(
	control *Controller,
	selector *Selector,
	fetcher *PriceFetcher,
	decisions *DecisionProvider,
	hub *ProgressHub,
	opts ...EngineOption,
) *Engine {
	e := &Engine{
		control:   control,
		selector:  selector,
		fetcher:   fetcher,
		decisions: decisions,
		hub:       hub,
		banded:    defaultBandedParams(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Cancel flags the active run, if any.
func (e *Engine) Cancel() (string, bool) {
	return e.control.Cancel()
}

// Active returns the current run context, or nil.
func (e *Engine) Active() *models.RunContext {
	return e.control.Active()
}

// Boundaries expands [start, end] into inclusive period boundaries at the
// given interval. At least two boundaries are required for one period.
func Boundaries(startDate, endDate, interval string) ([]time.Time, error) {
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

	var step func(time.Time) time.Time
	switch interval {
	case "week":
		step = func(t time.Time) time.Time { return t.AddDate(0, 0, 7) }
	case "month", "":
		step = func(t time.Time) time.Time { return t.AddDate(0, 1, 0) }
	case "quarter":
		step = func(t time.Time) time.Time { return t.AddDate(0, 3, 0) }
	default:
		return nil, fmt.Errorf("%w: unknown interval %q", ErrBadRequest, interval)
	}

	var out []time.Time
	for t := start; !t.After(end); t = step(t) {
		out = append(out, t)
	}
	if len(out) < 2 {
		return nil, fmt.Errorf("%w: date range yields fewer than two boundaries", ErrBadRequest)
	}
	return out, nil
}

// RunDirectional executes one directional hit run. Exactly one run can be
// live at a time; the run context is finalized on every exit path.
func (e *Engine) RunDirectional(ctx context.Context, req models.RunRequest) (*models.RunResult, *models.UsageSummary, error) {
	boundaries, err := Boundaries(req.StartDate, req.EndDate, req.Interval)
	if err != nil {
		return nil, nil, err
	}

	run, err := e.control.Start()
	if err != nil {
		return nil, nil, err
	}
	defer e.control.Finalize(run)

	e.publishEvent(ctx, run, "directional", "started", nil)
	start := time.Now()

	result, err := e.runDirectional(ctx, run, req, boundaries)
	usage := run.Summarize()

	if e.metrics != nil {
		e.metrics.RecordRunDuration("directional", time.Since(start).Seconds())
	}
	if err != nil {
		state := "failed"
		if errors.Is(err, models.ErrRunCancelled) {
			state = "cancelled"
		}
		e.publishEvent(ctx, run, "directional", state, err)
		return nil, &usage, err
	}

	result.TokenUsage = &usage
	e.publishEvent(ctx, run, "directional", "finished", nil)
	return result, &usage, nil
}

func (e *Engine) runDirectional(ctx context.Context, run *models.RunContext, req models.RunRequest, boundaries []time.Time) (*models.RunResult, error) {
	// ranking windows default to the run window
	spec := req.Selector
	if spec.From == "" {
		spec.From = req.StartDate
	}
	if spec.To == "" {
		spec.To = req.EndDate
	}
	if spec.AsOf == "" {
		spec.AsOf = req.EndDate
	}

	stageStart := time.Now()
	chosen, err := e.selector.Select(ctx, run, spec)
	if err != nil {
		return nil, err
	}
	e.recordStage("select", stageStart)
	e.progress(run, "select", len(chosen), len(chosen))

	if e.log != nil {
		e.log.Info("universe selected",
			applogger.String("run", run.ID),
			applogger.String("selector", spec.Type),
			applogger.Int("tickers", len(chosen)),
		)
	}

	stageStart = time.Now()
	prices, err := e.fetcher.FetchAll(ctx, run, chosen, func(done int) {
		e.progress(run, "prices", done, len(chosen))
	})
	if err != nil {
		return nil, err
	}
	e.recordStage("prices", stageStart)

	stageStart = time.Now()
	details, err := e.evaluatePeriods(ctx, run, chosen, boundaries, prices)
	if err != nil {
		return nil, err
	}
	e.recordStage("evaluate", stageStart)

	summary, overall := summarize(chosen, details)

	result := &models.RunResult{
		RunID:      run.ID,
		Selector:   spec,
		Boundaries: formatDays(boundaries),
		Chosen:     chosen,
		Overall:    overall,
		Summary:    summary,
		Details:    details,
	}

	if e.store != nil {
		if err := e.store.SaveDetails(ctx, run.ID, details); err != nil && e.log != nil {
			e.log.Warn("result store save failed", applogger.String("run", run.ID), applogger.Error(err))
		}
	}
	return result, nil
}

// evaluatePeriods walks every (period, ticker) cell in order, asking the
// decision provider once per cell and scoring the close-to-close move.
func (e *Engine) evaluatePeriods(ctx context.Context, run *models.RunContext, tickers []string, boundaries []time.Time, prices *PriceStore) ([]models.DetailRow, error) {
	periods := len(boundaries) - 1
	total := periods * len(tickers)
	details := make([]models.DetailRow, 0, total)

	done := 0
	for pi := 0; pi < periods; pi++ {
		date, nextDate := boundaries[pi], boundaries[pi+1]
		for _, ticker := range tickers {
			if err := run.Err(); err != nil {
				return nil, err
			}

			row := models.DetailRow{
				Ticker:   ticker,
				Date:     util.FormatDay(date),
				NextDate: util.FormatDay(nextDate),
				Rating:   models.RatingUnknown,
			}

			d, err := e.decisions.Decide(ctx, run, ticker, date)
			if err != nil {
				if e.log != nil {
					e.log.Warn("decision failed",
						applogger.String("ticker", ticker),
						applogger.String("date", row.Date),
						applogger.Error(err),
					)
				}
			} else {
				row.Rating = d.Rating
				row.TargetPrice = d.Target
			}

			series := prices.Series(ticker)
			if p0, ok := series.CloseOnOrBefore(date); ok {
				row.P0 = &p0
			}
			if p1, ok := series.CloseOnOrBefore(nextDate); ok {
				row.P1 = &p1
			}

			// actionable on the rating alone; missing prices score as a miss
			if row.Rating.Actionable() {
				hit := false
				if row.P0 != nil && row.P1 != nil {
					switch row.Rating {
					case models.RatingBuy:
						hit = *row.P1 > *row.P0
					case models.RatingSell:
						hit = *row.P1 < *row.P0
					}
				}
				if hit {
					row.Hit = "HIT"
				} else {
					row.Hit = "MISS"
				}
			}

			details = append(details, row)
			done++
			e.progress(run, "evaluate", done, total)
		}
	}
	return details, nil
}

// summarize folds detail rows into per-ticker and overall aggregates. A hit
// rate with a zero denominator stays nil rather than reading as 0%.
func summarize(tickers []string, details []models.DetailRow) ([]models.SummaryRow, models.Overall) {
	byTicker := make(map[string]*models.SummaryRow, len(tickers))
	order := make([]string, 0, len(tickers))
	for _, t := range tickers {
		if _, ok := byTicker[t]; ok {
			continue
		}
		byTicker[t] = &models.SummaryRow{Ticker: t}
		order = append(order, t)
	}

	var overall models.Overall
	for _, row := range details {
		if row.Hit == "" {
			continue
		}
		s, ok := byTicker[row.Ticker]
		if !ok {
			s = &models.SummaryRow{Ticker: row.Ticker}
			byTicker[row.Ticker] = s
			order = append(order, row.Ticker)
		}

		hit := row.Hit == "HIT"
		switch row.Rating {
		case models.RatingBuy:
			s.Buy++
			overall.Buy++
			if hit {
				s.BuyHits++
				overall.BuyHits++
			}
		case models.RatingSell:
			s.Sell++
			overall.Sell++
			if hit {
				s.SellHits++
				overall.SellHits++
			}
		}
	}

	summary := make([]models.SummaryRow, 0, len(order))
	for _, t := range order {
		s := byTicker[t]
		s.Actionable = s.Buy + s.Sell
		s.Hits = s.BuyHits + s.SellHits
		s.HitRate = rate(s.Hits, s.Actionable)
		s.BuyHitRate = rate(s.BuyHits, s.Buy)
		s.SellHitRate = rate(s.SellHits, s.Sell)
		summary = append(summary, *s)
	}

	overall.Actionable = overall.Buy + overall.Sell
	overall.Hits = overall.BuyHits + overall.SellHits
	overall.HitRate = rate(overall.Hits, overall.Actionable)
	overall.BuyHitRate = rate(overall.BuyHits, overall.Buy)
	overall.SellHitRate = rate(overall.SellHits, overall.Sell)
	return summary, overall
}

func rate(hits, total int) *float64 {
	if total == 0 {
		return nil
	}
	v := float64(hits) / float64(total)
	return &v
}

func formatDays(ts []time.Time) []string {
	out := make([]string, len(ts))
	for i, t := range ts {
		out[i] = util.FormatDay(t)
	}
	return out
}

func (e *Engine) progress(run *models.RunContext, stage string, completed, total int) {
	if e.hub == nil {
		return
	}
	e.hub.Publish(models.Progress{RunID: run.ID, Stage: stage, Completed: completed, Total: total})
}

func (e *Engine) recordStage(stage string, start time.Time) {
	if e.metrics != nil {
		e.metrics.RecordStageLatency(stage, time.Since(start).Seconds())
	}
}

func (e *Engine) publishEvent(ctx context.Context, run *models.RunContext, mode, state string, cause error) {
	if e.events == nil {
		return
	}

	ev := models.RunEvent{
		RunID:     run.ID,
		Mode:      mode,
		State:     state,
		StartedAt: run.StartedAt.UnixMilli(),
	}
	if state != "started" {
		ev.FinishedAt = time.Now().UnixMilli()
		if !run.FinishedAt.IsZero() {
			ev.FinishedAt = run.FinishedAt.UnixMilli()
		}
		usage := run.Summarize()
		ev.TokenUsage = &usage
	}
	if cause != nil && !errors.Is(cause, models.ErrRunCancelled) {
		ev.Error = cause.Error()
	}

	if err := e.events.Publish(ctx, ev); err != nil && e.log != nil {
		e.log.Warn("run event publish failed", applogger.String("run", run.ID), applogger.Error(err))
	}
}
