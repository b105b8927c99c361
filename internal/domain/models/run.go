package models

import (
	"errors"
	"math"
	"sync"
	"sync/atomic"
	"time"
)

var (
	// ErrRunCancelled is the distinguished cancellation signal. It is not a
	// failure: handlers report it as "cancelled" together with the usage
	// telemetry accumulated so far.
	ErrRunCancelled = errors.New("run cancelled")

	// ErrRunActive rejects a start request while another run is unfinalized.
	ErrRunActive = errors.New("run already active")
)

// RunContext identifies one end-to-end backtest execution. Exactly one
// unfinalized context exists process-wide; every long-running loop checks
// Cancelled between units of work.
type RunContext struct {
	ID         string
	StartedAt  time.Time
	FinishedAt time.Time
	Usage      *UsageAccumulator

	cancelled atomic.Bool
}

// NewRunContext creates a context with a fresh usage accumulator.
func NewRunContext(id string) *RunContext {
	return &RunContext{
		ID:        id,
		StartedAt: time.Now(),
		Usage:     &UsageAccumulator{},
	}
}

// Cancel marks the run cancelled. Monotonic: once set it is never cleared.
func (r *RunContext) Cancel() { r.cancelled.Store(true) }

// Cancelled reports whether Cancel has been called.
func (r *RunContext) Cancelled() bool { return r.cancelled.Load() }

// Err returns ErrRunCancelled if the run was cancelled, else nil. Loops use it
// as their per-unit cancellation check.
func (r *RunContext) Err() error {
	if r.Cancelled() {
		return ErrRunCancelled
	}
	return nil
}

// UsageAccumulator folds oracle usage telemetry across all workers of a run.
// Append-only; safe for concurrent use.
type UsageAccumulator struct {
	mu         sync.Mutex
	prompt     float64
	completion float64
	total      float64
	cost       float64
	calls      int64
}

// Apply adds one response's usage. Absent fields are skipped; the total falls
// back to prompt+completion and the cost to input+output when the combined
// fields are missing.
func (a *UsageAccumulator) Apply(u *Usage) {
	if a == nil || u == nil {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	prompt, hasPrompt := finite(u.PromptTokens)
	completion, hasCompletion := finite(u.CompletionTokens)
	if hasPrompt {
		a.prompt += prompt
	}
	if hasCompletion {
		a.completion += completion
	}
	if total, ok := finite(u.TotalTokens); ok {
		a.total += total
	} else if hasPrompt || hasCompletion {
		a.total += prompt + completion
	}
	if cost, ok := finite(u.TotalCost); ok {
		a.cost += cost
	} else {
		in, hasIn := finite(u.InputCost)
		out, hasOut := finite(u.OutputCost)
		if hasIn || hasOut {
			a.cost += in + out
		}
	}
	a.calls++
}

// UsageSummary is the externally reported form of the accumulator.
type UsageSummary struct {
	Prompt     float64 `json:"prompt"`
	Completion float64 `json:"completion"`
	Total      float64 `json:"total"`
	Cost       float64 `json:"cost"`
	Calls      int64   `json:"calls"`
	DurationMs int64   `json:"durationMs"`
}

// Summarize snapshots the accumulator. Duration runs from StartedAt to
// FinishedAt, or to now while the run is still live.
func (r *RunContext) Summarize() UsageSummary {
	finished := r.FinishedAt
	if finished.IsZero() {
		finished = time.Now()
	}
	dur := finished.Sub(r.StartedAt)
	if dur < 0 {
		dur = 0
	}

	a := r.Usage
	a.mu.Lock()
	defer a.mu.Unlock()
	return UsageSummary{
		Prompt:     a.prompt,
		Completion: a.completion,
		Total:      a.total,
		Cost:       math.Round(a.cost*1e6) / 1e6,
		Calls:      a.calls,
		DurationMs: dur.Milliseconds(),
	}
}

func finite(v *float64) (float64, bool) {
	if v == nil || math.IsNaN(*v) || math.IsInf(*v, 0) {
		return 0, false
	}
	return *v, true
}
