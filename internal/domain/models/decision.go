package models

// TargetBand is the optional tolerance band the oracle attaches to a call.
// Percentages are fractions (0.05 == 5%).
type TargetBand struct {
	BandPct  *float64 `json:"band_pct,omitempty"`
	UpperPct *float64 `json:"upper_pct,omitempty"`
	LowerPct *float64 `json:"lower_pct,omitempty"`
}

// Decision is the normalized outcome of one oracle call for a (ticker, date)
// pair. Immutable once created; cached for the life of the process.
type Decision struct {
	Rating    Rating      `json:"rating"`
	RawRating string      `json:"rawRating,omitempty"`
	Target    *float64    `json:"target,omitempty"`
	Band      *TargetBand `json:"band,omitempty"`
	Segment   string      `json:"segment,omitempty"`
	Usage     *Usage      `json:"usage,omitempty"`
}

// Usage is the token/cost telemetry attached to an oracle response. Any field
// may be absent; the accumulator derives totals from whichever parts exist.
type Usage struct {
	PromptTokens     *float64 `json:"prompt_tokens,omitempty"`
	CompletionTokens *float64 `json:"completion_tokens,omitempty"`
	TotalTokens      *float64 `json:"total_tokens,omitempty"`
	TotalCost        *float64 `json:"total_cost,omitempty"`
	InputCost        *float64 `json:"input_cost,omitempty"`
	OutputCost       *float64 `json:"output_cost,omitempty"`
}
