package models

import "time"

// Constituent is one index membership row from the market data provider.
type Constituent struct {
	Symbol string `json:"symbol"`
	Sector string `json:"sector"`
}

// MarketCap is a dated capitalization observation. Latest-cap rows carry a
// zero Date.
type MarketCap struct {
	Symbol string    `json:"symbol"`
	Date   time.Time `json:"date"`
	Cap    float64   `json:"marketCap"`
}
