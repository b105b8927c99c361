package models

import "testing"

func TestNormalizeRating(t *testing.T) {
	cases := []struct {
		raw  string
		want Rating
	}{
		{"BUY", RatingBuy},
		{"buy", RatingBuy},
		{"Strong Buy", RatingBuy},
		{"買入", RatingBuy},
		{"SELL", RatingSell},
		{"sell on strength", RatingSell},
		{"賣出", RatingSell},
		{"HOLD", RatingHold},
		{"Neutral", RatingHold},
		{"中性", RatingHold},
		{"", RatingUnknown},
		{"accumulate", RatingUnknown},
	}

	for _, c := range cases {
		if got := NormalizeRating(c.raw); got != c.want {
			t.Errorf("NormalizeRating(%q) = %s, want %s", c.raw, got, c.want)
		}
	}
}

func TestClassifyDirection(t *testing.T) {
	cases := []struct {
		raw  string
		want Direction
	}{
		{"buy", DirectionBullish},
		{"Outperform", DirectionBullish},
		{"overweight", DirectionBullish},
		{"增持", DirectionBullish},
		{"sell", DirectionBearish},
		{"underperform", DirectionBearish},
		{"減持", DirectionBearish},
		{"hold", DirectionNeutral},
		{"Market Perform", DirectionNeutral},
		{"持有", DirectionNeutral},
		{"", DirectionNone},
		{"mystery", DirectionNone},
	}

	for _, c := range cases {
		if got := ClassifyDirection(c.raw); got != c.want {
			t.Errorf("ClassifyDirection(%q) = %q, want %q", c.raw, got, c.want)
		}
	}
}

func TestBullishWinsOverNeutral(t *testing.T) {
	// mixed vocabulary resolves in favor of the directional call
	if got := ClassifyDirection("strong buy, was hold"); got != DirectionBullish {
		t.Fatalf("got %q, want bullish", got)
	}
}

func TestRatingActionable(t *testing.T) {
	if !RatingBuy.Actionable() || !RatingSell.Actionable() {
		t.Fatal("BUY and SELL must be actionable")
	}
	if RatingHold.Actionable() || RatingUnknown.Actionable() {
		t.Fatal("HOLD and UNKNOWN must not be actionable")
	}
}
