package usecase

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/garen0616/sp500-hit-tester-stable/internal/domain/models"
	"github.com/garen0616/sp500-hit-tester-stable/internal/domain/repository"
	"github.com/garen0616/sp500-hit-tester-stable/pkg/cache"
	applogger "github.com/garen0616/sp500-hit-tester-stable/pkg/logger"
	"github.com/garen0616/sp500-hit-tester-stable/pkg/util"
)

// DecisionProvider memoizes oracle decisions per (ticker, date). A pair is
// asked at most once per process; the optional cache backend makes decisions
// survive restarts.
type DecisionProvider struct {
	oracle  repository.DecisionOracle
	store   cache.Service
	ttl     time.Duration
	metrics repository.Metrics
	log     *applogger.Logger

	mu   sync.RWMutex
	memo map[string]models.Decision
}

// DecisionOption configures DecisionProvider.
type DecisionOption func(*DecisionProvider)

// WithDecisionCache attaches a write-through cache backend.
func WithDecisionCache(store cache.Service, ttl time.Duration) DecisionOption {
	return func(p *DecisionProvider) {
		p.store = store
		p.ttl = ttl
	}
}

// WithDecisionMetrics attaches a metrics recorder.
func WithDecisionMetrics(m repository.Metrics) DecisionOption {
	return func(p *DecisionProvider) {
		p.metrics = m
	}
}

// WithDecisionLogger attaches a logger.
func WithDecisionLogger(l *applogger.Logger) DecisionOption {
	return func(p *DecisionProvider) {
		p.log = l
	}
}

// NewDecisionProvider creates a decision provider around an oracle.
func NewDecisionProvider(oracle repository.DecisionOracle, opts ...DecisionOption) *DecisionProvider {
	p := &DecisionProvider{
		oracle: oracle,
		memo:   make(map[string]models.Decision),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func decisionKey(ticker string, date time.Time) string {
	return ticker + "|" + util.FormatDay(date)
}

// Decide returns the decision for (ticker, date), consulting the in-process
// memo, then the cache backend, then the oracle. Usage telemetry folds into
// the run accumulator only on fresh oracle calls.
func (p *DecisionProvider) Decide(ctx context.Context, run *models.RunContext, ticker string, date time.Time) (models.Decision, error) {
	key := decisionKey(ticker, date)

	p.mu.RLock()
	d, ok := p.memo[key]
	p.mu.RUnlock()
	if ok {
		p.record("memo")
		return d, nil
	}

	if p.store != nil {
		var cached models.Decision
		err := p.store.Get(ctx, "decision:"+key, &cached)
		if err == nil {
			p.remember(key, cached)
			p.record("cache")
			return cached, nil
		}
		if !errors.Is(err, cache.ErrCacheMiss) && p.log != nil {
			p.log.Warn("decision cache read failed", applogger.String("key", key), applogger.Error(err))
		}
	}

	d, err := p.oracle.Analyze(ctx, ticker, date)
	if err != nil {
		return models.Decision{}, err
	}

	if run != nil {
		run.Usage.Apply(d.Usage)
	}
	if p.metrics != nil && d.Usage != nil {
		prompt := deref(d.Usage.PromptTokens)
		completion := deref(d.Usage.CompletionTokens)
		cost := deref(d.Usage.TotalCost)
		if cost == 0 {
			cost = deref(d.Usage.InputCost) + deref(d.Usage.OutputCost)
		}
		p.metrics.RecordTokens(prompt, completion, cost)
	}

	p.remember(key, d)
	p.record("oracle")

	if p.store != nil {
		if err := p.store.Set(ctx, "decision:"+key, d, p.ttl); err != nil && p.log != nil {
			p.log.Warn("decision cache write failed", applogger.String("key", key), applogger.Error(err))
		}
	}
	return d, nil
}

func (p *DecisionProvider) remember(key string, d models.Decision) {
	p.mu.Lock()
	p.memo[key] = d
	p.mu.Unlock()
}

func (p *DecisionProvider) record(source string) {
	if p.metrics != nil {
		p.metrics.RecordDecision(source)
	}
}

func deref(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}
