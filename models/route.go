package models

import "time"

// Route is a candidate execution venue for a requested (symbol, side,
// amount). Routes are ephemeral: they are recomputed for every routing
// request and never persisted.
type Route struct {
	Venue    string  `json:"venue"`
	Symbol   string  `json:"symbol"`
	Side     Side    `json:"side"`
	Price    float64 `json:"price"`    // depth-weighted average fill price
	Fillable float64 `json:"fillable"` // amount coverable at Price
	FeeRate  float64 `json:"fee_rate"` // taker fee fraction
	Cost     float64 `json:"cost"`     // Price * Fillable * (1 + FeeRate) for buys
	Slippage float64 `json:"slippage"` // fraction vs top-of-book
}

// EffectivePrice adjusts the depth-weighted price for fee and slippage.
// Routes are ranked on this value: lowest wins for buys, highest for
// sells.
func (r Route) EffectivePrice() float64 {
	if r.Side == SideBuy {
		return r.Price * (1 + r.FeeRate + r.Slippage)
	}
	return r.Price * (1 - r.FeeRate - r.Slippage)
}

// ArbitrageOpportunity is a fee-adjusted, profit-positive price
// discrepancy for one symbol across two venues. Produced by the scan
// loop and discarded after use or logging.
type ArbitrageOpportunity struct {
	Symbol          string    `json:"symbol"`
	BuyVenue        string    `json:"buy_venue"`
	SellVenue       string    `json:"sell_venue"`
	BuyPrice        float64   `json:"buy_price"`  // raw ask on the buy venue
	SellPrice       float64   `json:"sell_price"` // raw bid on the sell venue
	Profit          float64   `json:"profit"`     // fee-adjusted fraction
	MaxAmount       float64   `json:"max_amount"` // bounded by depth and balance
	EstimatedProfit float64   `json:"estimated_profit"`
	DetectedAt      time.Time `json:"detected_at"`
}

// TransferProposal is a rebalancing suggestion: move Amount of Currency
// from one venue to another. The actual fund movement is out of scope;
// proposals are only computed and reported.
type TransferProposal struct {
	Currency  string  `json:"currency"`
	FromVenue string  `json:"from_venue"`
	ToVenue   string  `json:"to_venue"`
	Amount    float64 `json:"amount"`
}
