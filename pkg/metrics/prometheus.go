package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	apiCalls     *prometheus.CounterVec
	apiRetries   *prometheus.CounterVec
	decisions    *prometheus.CounterVec
	tokensTotal  *prometheus.CounterVec
	costTotal    prometheus.Counter
	stageLatency *prometheus.HistogramVec
	runDuration  *prometheus.HistogramVec
}

// New creates a new Prometheus metrics recorder.
func New() *Recorder {
	return &Recorder{
		apiCalls: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "backtest_api_calls_total",
				Help: "External API calls by upstream and result",
			},
			[]string{"api", "result"},
		),
		apiRetries: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "backtest_api_retries_total",
				Help: "Retried external API calls by upstream",
			},
			[]string{"api"},
		),
		decisions: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "backtest_decisions_total",
				Help: "Decisions served by source (cache, persisted, oracle)",
			},
			[]string{"source"},
		),
		tokensTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "backtest_oracle_tokens_total",
				Help: "Oracle token usage by kind",
			},
			[]string{"kind"},
		),
		costTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "backtest_oracle_cost_total",
				Help: "Accumulated oracle cost",
			},
		),
		stageLatency: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "backtest_stage_duration_seconds",
				Help:    "Duration of pipeline stages in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"stage"},
		),
		runDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "backtest_run_duration_seconds",
				Help:    "End-to-end run duration by mode",
				Buckets: prometheus.ExponentialBuckets(1, 2, 12),
			},
			[]string{"mode"},
		),
	}
}

// RecordAPICall records one external call outcome ("ok" or "error").
func (r *Recorder) RecordAPICall(api, result string) {
	r.apiCalls.WithLabelValues(api, result).Inc()
}

// RecordRetry records a retried external call.
func (r *Recorder) RecordRetry(api string) {
	r.apiRetries.WithLabelValues(api).Inc()
}

// RecordDecision records where a decision came from.
func (r *Recorder) RecordDecision(source string) {
	r.decisions.WithLabelValues(source).Inc()
}

// RecordTokens records oracle token usage and cost.
func (r *Recorder) RecordTokens(prompt, completion, cost float64) {
	r.tokensTotal.WithLabelValues("prompt").Add(prompt)
	r.tokensTotal.WithLabelValues("completion").Add(completion)
	r.costTotal.Add(cost)
}

// RecordStageLatency records one pipeline stage duration.
func (r *Recorder) RecordStageLatency(stage string, seconds float64) {
	r.stageLatency.WithLabelValues(stage).Observe(seconds)
}

// RecordRunDuration records a full run duration.
func (r *Recorder) RecordRunDuration(mode string, seconds float64) {
	r.runDuration.WithLabelValues(mode).Observe(seconds)
}
