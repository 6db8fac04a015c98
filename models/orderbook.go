package models

import "time"

// PriceLevel is a single price level in an order book side.
type PriceLevel struct {
	Price float64 `json:"price"`
	Size  float64 `json:"size"`
}

// OrderBook is a point-in-time depth snapshot for one symbol on one
// venue. Bids are ordered descending by price, asks ascending.
type OrderBook struct {
	Venue     string       `json:"venue"`
	Symbol    string       `json:"symbol"`
	Bids      []PriceLevel `json:"bids"`
	Asks      []PriceLevel `json:"asks"`
	Timestamp time.Time    `json:"timestamp"`
}

// BestBid returns the top bid level. ok is false for an empty side.
func (ob *OrderBook) BestBid() (PriceLevel, bool) {
	if len(ob.Bids) == 0 {
		return PriceLevel{}, false
	}
	return ob.Bids[0], true
}

// BestAsk returns the top ask level. ok is false for an empty side.
func (ob *OrderBook) BestAsk() (PriceLevel, bool) {
	if len(ob.Asks) == 0 {
		return PriceLevel{}, false
	}
	return ob.Asks[0], true
}

// Spread returns the gap between best ask and best bid, or zero when
// either side is empty.
func (ob *OrderBook) Spread() float64 {
	bid, okB := ob.BestBid()
	ask, okA := ob.BestAsk()
	if !okB || !okA {
		return 0
	}
	return ask.Price - bid.Price
}

// Depth sums the size available across the first n levels of the given
// side. A buy consumes asks, a sell consumes bids.
func (ob *OrderBook) Depth(side Side, n int) float64 {
	levels := ob.Asks
	if side == SideSell {
		levels = ob.Bids
	}
	if n > len(levels) {
		n = len(levels)
	}
	total := 0.0
	for _, lvl := range levels[:n] {
		total += lvl.Size
	}
	return total
}

// FillPrice walks the side an order of the given amount would consume and
// returns the depth-weighted average price together with the amount that
// was actually fillable. filled < amount means the book ran out of depth.
func (ob *OrderBook) FillPrice(side Side, amount float64) (avgPrice, filled float64) {
	levels := ob.Asks
	if side == SideSell {
		levels = ob.Bids
	}

	remaining := amount
	cost := 0.0
	for _, lvl := range levels {
		if remaining <= 0 {
			break
		}
		take := lvl.Size
		if take > remaining {
			take = remaining
		}
		cost += take * lvl.Price
		filled += take
		remaining -= take
	}

	if filled == 0 {
		return 0, 0
	}
	return cost / filled, filled
}
