package models

// Requests for the backtest HTTP endpoints. Defined in domain for consistency
// and reuse.

// SelectorSpec picks the universe selection strategy and its parameters.
type SelectorSpec struct {
	Type    string   `json:"type" default:"return" validate:"required,oneof=manual return mcap_latest mcap_asof"`
	From    string   `json:"from,omitempty"`
	To      string   `json:"to,omitempty"`
	AsOf    string   `json:"asOf,omitempty"`
	TopN    int      `json:"topN" default:"50" validate:"gte=1,lte=500"`
	Sectors []string `json:"sectors,omitempty"`
	Tickers string   `json:"tickers,omitempty"`
}

// RunRequest starts a directional hit run.
type RunRequest struct {
	StartDate string       `json:"startDate" validate:"required,datetime=2006-01-02"`
	EndDate   string       `json:"endDate" validate:"required,datetime=2006-01-02"`
	Interval  string       `json:"interval" default:"month" validate:"oneof=week month quarter"`
	Selector  SelectorSpec `json:"selector"`
}

// BandedRequest starts a banded/target run over monthly baselines.
type BandedRequest struct {
	StartDate     string      `json:"startDate" validate:"required,datetime=2006-01-02"`
	EndDate       string      `json:"endDate" validate:"required,datetime=2006-01-02"`
	Tickers       string      `json:"tickers" validate:"required"`
	LookaheadDays int         `json:"lookaheadDays" default:"7" validate:"gte=0,lte=31"`
	PriorRows     []BandedRow `json:"priorRows,omitempty"`
}
