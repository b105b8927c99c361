package repository

import (
	"context"
	"time"

	"github.com/garen0616/sp500-hit-tester-stable/internal/domain/models"
)

// MarketData provides historical prices and capitalization from the upstream
// price-history API.
type MarketData interface {
	Constituents(ctx context.Context) ([]models.Constituent, error)
	DailyHistory(ctx context.Context, symbol string) (models.PriceSeries, error)
	DailyHistoryRange(ctx context.Context, symbol string, from, to time.Time) (models.PriceSeries, error)
	MarketCapBatch(ctx context.Context, symbols []string) ([]models.MarketCap, error)
	MarketCapHistory(ctx context.Context, symbol string) ([]models.MarketCap, error)
}

// DecisionOracle produces one rating decision for a (ticker, date) pair.
// Implementations are not memoized; callers own caching.
type DecisionOracle interface {
	Analyze(ctx context.Context, ticker string, date time.Time) (models.Decision, error)
}

// ResultStore persists evaluation rows for later analysis. Saves are
// best-effort from the pipeline's point of view.
type ResultStore interface {
	SaveDetails(ctx context.Context, runID string, rows []models.DetailRow) error
	SaveBanded(ctx context.Context, runID string, rows []models.BandedRow) error
	Health(ctx context.Context) error
	Close() error
}

// RunEvents publishes run lifecycle transitions.
type RunEvents interface {
	Publish(ctx context.Context, ev models.RunEvent) error
	Close() error
}

// Metrics records operational counters for the engine.
type Metrics interface {
	RecordAPICall(api, result string)
	RecordRetry(api string)
	RecordDecision(source string)
	RecordTokens(prompt, completion, cost float64)
	RecordStageLatency(stage string, seconds float64)
	RecordRunDuration(mode string, seconds float64)
}
