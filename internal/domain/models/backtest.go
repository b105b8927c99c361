package models

// DetailRow is one (ticker, period) evaluation in directional hit mode.
// Hit is "HIT"/"MISS" for actionable ratings and empty otherwise.
type DetailRow struct {
	Ticker      string   `json:"ticker"`
	Date        string   `json:"date"`
	NextDate    string   `json:"nextDate"`
	Rating      Rating   `json:"rating"`
	TargetPrice *float64 `json:"targetPrice,omitempty"`
	P0          *float64 `json:"p0,omitempty"`
	P1          *float64 `json:"p1,omitempty"`
	Hit         string   `json:"hit"`
}

// SummaryRow aggregates one ticker across all periods. Rates are nil, not
// zero, when the denominator is zero.
type SummaryRow struct {
	Ticker      string   `json:"ticker"`
	Actionable  int      `json:"actionable"`
	Hits        int      `json:"hits"`
	HitRate     *float64 `json:"hitRate"`
	Buy         int      `json:"buy"`
	BuyHits     int      `json:"buyHits"`
	BuyHitRate  *float64 `json:"buyHitRate"`
	Sell        int      `json:"sell"`
	SellHits    int      `json:"sellHits"`
	SellHitRate *float64 `json:"sellHitRate"`
}

// Overall aggregates the whole run.
type Overall struct {
	Actionable  int      `json:"actionable"`
	Hits        int      `json:"hits"`
	HitRate     *float64 `json:"hitRate"`
	Buy         int      `json:"buy"`
	BuyHits     int      `json:"buyHits"`
	BuyHitRate  *float64 `json:"buyHitRate"`
	Sell        int      `json:"sell"`
	SellHits    int      `json:"sellHits"`
	SellHitRate *float64 `json:"sellHitRate"`
}

// RunResult is the full projection of one directional hit run.
type RunResult struct {
	RunID      string        `json:"runId"`
	Selector   SelectorSpec  `json:"selector"`
	Boundaries []string      `json:"boundaries"`
	Chosen     []string      `json:"chosen"`
	Overall    Overall       `json:"overall"`
	Summary    []SummaryRow  `json:"summary"`
	Details    []DetailRow   `json:"details"`
	TokenUsage *UsageSummary `json:"tokenUsage,omitempty"`
}

// BandedRow is one (ticker, baseline month) evaluation in banded/target mode.
// Pointer fields stay nil when any input of their derivation was missing.
type BandedRow struct {
	Ticker        string   `json:"ticker"`
	BaselineDate  string   `json:"baselineDate"`
	NextDate      string   `json:"nextDate"`
	Rating        string   `json:"rating,omitempty"`
	Target        *float64 `json:"target,omitempty"`
	Actual        *float64 `json:"actual,omitempty"`
	ActualDate    string   `json:"actualDate,omitempty"`
	Delta         *float64 `json:"delta,omitempty"`
	BaselinePrice *float64 `json:"baselinePrice,omitempty"`
	MonthHigh     *float64 `json:"monthHigh,omitempty"`
	MonthLow      *float64 `json:"monthLow,omitempty"`
	RangeMid      *float64 `json:"rangeMid,omitempty"`
	CloseHit      *bool    `json:"closeHit,omitempty"`
	RangeMidHit   *bool    `json:"rangeMidHit,omitempty"`
	IntramonthHit *bool    `json:"intramonthHit,omitempty"`
	HoldAccuracy  *bool    `json:"holdAccuracy,omitempty"`
	HoldBandPct   *float64 `json:"holdBandPct,omitempty"`
	HoldDriftFlag bool     `json:"holdDriftFlag"`
}

// BandedResult is the projection of one banded/target run.
type BandedResult struct {
	RunID      string        `json:"runId"`
	Rows       []BandedRow   `json:"rows"`
	TokenUsage *UsageSummary `json:"tokenUsage,omitempty"`
}

// RunEvent is published on run lifecycle transitions.
type RunEvent struct {
	RunID      string        `json:"runId"`
	Mode       string        `json:"mode"`
	State      string        `json:"state"` // started | finished | cancelled | failed
	StartedAt  int64         `json:"startedAt"`
	FinishedAt int64         `json:"finishedAt,omitempty"`
	Error      string        `json:"error,omitempty"`
	TokenUsage *UsageSummary `json:"tokenUsage,omitempty"`
}

// Progress is broadcast to run-progress subscribers as stages advance.
type Progress struct {
	RunID     string `json:"runId"`
	Stage     string `json:"stage"`
	Completed int    `json:"completed"`
	Total     int    `json:"total"`
}
