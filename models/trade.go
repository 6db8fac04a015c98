package models

import "time"

// Trade is a single fill. Trades are append-only facts and are never
// mutated after creation.
type Trade struct {
	ID          string    `json:"id"`
	OrderID     string    `json:"order_id"`
	Venue       string    `json:"venue"`
	Symbol      string    `json:"symbol"`
	Side        Side      `json:"side"`
	Price       float64   `json:"price"`
	Amount      float64   `json:"amount"`
	Fee         float64   `json:"fee"`
	FeeCurrency string    `json:"fee_currency"`
	Timestamp   time.Time `json:"timestamp"`
}

// Cost returns the notional value of the fill.
func (t Trade) Cost() float64 {
	return t.Price * t.Amount
}
