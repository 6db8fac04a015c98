package models

import "time"

// Ticker is an immutable point-in-time market snapshot for one symbol on
// one venue. A newer ticker supersedes it entirely; fields are never
// mutated after creation.
type Ticker struct {
	Venue     string    `json:"venue"`
	Symbol    string    `json:"symbol"`
	Bid       float64   `json:"bid"`
	Ask       float64   `json:"ask"`
	Last      float64   `json:"last"`
	Volume    float64   `json:"volume"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Change    float64   `json:"change"`
	VWAP      float64   `json:"vwap,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Mid returns the midpoint between best bid and best ask.
func (t Ticker) Mid() float64 {
	return (t.Bid + t.Ask) / 2
}

// Spread returns the absolute bid/ask spread.
func (t Ticker) Spread() float64 {
	return t.Ask - t.Bid
}

// SpreadPct returns the spread as a fraction of the mid price. Zero when
// the ticker carries no usable quote.
func (t Ticker) SpreadPct() float64 {
	mid := t.Mid()
	if mid == 0 {
		return 0
	}
	return t.Spread() / mid
}

// FresherThan reports whether the snapshot is younger than ttl.
func (t Ticker) FresherThan(ttl time.Duration) bool {
	return time.Since(t.Timestamp) < ttl
}
