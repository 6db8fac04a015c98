package models

import "fmt"

// Balance represents the funds held in one currency on a single venue.
// Total is always Free + Used; Used covers amounts reserved by resting
// orders or pending withdrawals.
type Balance struct {
	Currency string  `json:"currency"`
	Free     float64 `json:"free"`
	Used     float64 `json:"used"`
	Total    float64 `json:"total"`
}

// NewBalance builds a Balance with Total derived from free and used.
func NewBalance(currency string, free, used float64) Balance {
	return Balance{
		Currency: currency,
		Free:     free,
		Used:     used,
		Total:    free + used,
	}
}

// Validate checks the balance invariant: all fields non-negative and
// Total equal to Free + Used within floating point tolerance.
func (b Balance) Validate() error {
	if b.Free < 0 || b.Used < 0 || b.Total < 0 {
		return fmt.Errorf("balance %s has negative component (free=%f used=%f total=%f)",
			b.Currency, b.Free, b.Used, b.Total)
	}
	if diff := b.Total - (b.Free + b.Used); diff > 1e-9 || diff < -1e-9 {
		return fmt.Errorf("balance %s total %f != free %f + used %f",
			b.Currency, b.Total, b.Free, b.Used)
	}
	return nil
}

// IsZero reports whether the balance holds no funds at all.
func (b Balance) IsZero() bool {
	return b.Total == 0
}
