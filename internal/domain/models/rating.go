package models

import "strings"

// Rating is the normalized form of a free-text rating call.
type Rating string

const (
	RatingBuy     Rating = "BUY"
	RatingSell    Rating = "SELL"
	RatingHold    Rating = "HOLD"
	RatingUnknown Rating = "UNKNOWN"
)

// Direction is the coarser directional class used by the banded scorer.
type Direction string

const (
	DirectionBullish Direction = "bullish"
	DirectionBearish Direction = "bearish"
	DirectionNeutral Direction = "neutral"
	DirectionNone    Direction = ""
)

// Keyword tables are data, not code: extend them here when the oracle starts
// emitting new vocabulary. Matching is case-insensitive substring search, with
// Chinese variants matched verbatim.
var (
	buyKeywords  = []string{"BUY", "買"}
	sellKeywords = []string{"SELL", "賣"}
	holdKeywords = []string{"HOLD", "NEUTRAL", "中性"}

	bullishKeywords = []string{"buy", "long", "outperform", "overweight", "accumulate", "增持", "買"}
	bearishKeywords = []string{"sell", "short", "underperform", "reduce", "減持", "賣"}
	neutralKeywords = []string{"hold", "neutral", "market perform", "equal weight", "觀望", "持有"}
)

// NormalizeRating maps a free-text rating to the closed BUY/SELL/HOLD/UNKNOWN
// set. Empty or unmatched text yields RatingUnknown.
func NormalizeRating(raw string) Rating {
	t := strings.ToUpper(strings.TrimSpace(raw))
	if t == "" {
		return RatingUnknown
	}
	if containsAny(t, buyKeywords) {
		return RatingBuy
	}
	if containsAny(t, sellKeywords) {
		return RatingSell
	}
	if containsAny(t, holdKeywords) {
		return RatingHold
	}
	return RatingUnknown
}

// ClassifyDirection maps a free-text rating to bullish/bearish/neutral for the
// banded scorer. Bullish and bearish vocabularies win over neutral so that
// e.g. "strong buy, was hold" classifies as bullish.
func ClassifyDirection(raw string) Direction {
	t := strings.ToLower(strings.TrimSpace(raw))
	if t == "" {
		return DirectionNone
	}
	if containsAny(t, bullishKeywords) {
		return DirectionBullish
	}
	if containsAny(t, bearishKeywords) {
		return DirectionBearish
	}
	if containsAny(t, neutralKeywords) {
		return DirectionNeutral
	}
	return DirectionNone
}

// Actionable reports whether the rating participates in hit-rate denominators.
func (r Rating) Actionable() bool {
	return r == RatingBuy || r == RatingSell
}

func containsAny(s string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(s, kw) {
			return true
		}
	}
	return false
}
