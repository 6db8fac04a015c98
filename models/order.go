package models

import "time"

// Side is the direction of an order.
type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// Opposite returns the other direction.
func (s Side) Opposite() Side {
	if s == SideBuy {
		return SideSell
	}
	return SideBuy
}

// OrderType enumerates the supported order kinds.
type OrderType string

const (
	OrderTypeMarket     OrderType = "market"
	OrderTypeLimit      OrderType = "limit"
	OrderTypeStopLoss   OrderType = "stop_loss"
	OrderTypeStopLimit  OrderType = "stop_limit"
	OrderTypeTakeProfit OrderType = "take_profit"
)

// RequiresPrice reports whether the caller must supply a price when
// placing an order of this type. Market orders resolve their price
// adapter-side from the current ticker.
func (t OrderType) RequiresPrice() bool {
	return t != OrderTypeMarket
}

// OrderStatus is the canonical lifecycle state of an order. Venue-specific
// status vocabularies are mapped onto this set by the adapters;
// unrecognized venue statuses map to StatusPending.
type OrderStatus string

const (
	StatusPending         OrderStatus = "pending"
	StatusOpen            OrderStatus = "open"
	StatusPartiallyFilled OrderStatus = "partially_filled"
	StatusFilled          OrderStatus = "filled"
	StatusCancelled       OrderStatus = "cancelled"
	StatusRejected        OrderStatus = "rejected"
	StatusExpired         OrderStatus = "expired"
)

// IsTerminal reports whether the status ends the order lifecycle.
func (s OrderStatus) IsTerminal() bool {
	switch s {
	case StatusFilled, StatusCancelled, StatusRejected, StatusExpired:
		return true
	default:
		return false
	}
}

// OrderRequest carries the caller-supplied parameters of a new order.
// Price is ignored for market orders. ClientOrderID is an optional
// caller correlation id; adapters generate one when empty.
type OrderRequest struct {
	Symbol        string    `json:"symbol"`
	Side          Side      `json:"side"`
	Type          OrderType `json:"type"`
	Amount        float64   `json:"amount"`
	Price         float64   `json:"price,omitempty"`
	ClientOrderID string    `json:"client_order_id,omitempty"`
}

// Order is the canonical order record shared by every adapter.
type Order struct {
	ID            string      `json:"id"`
	Venue         string      `json:"venue"`
	Symbol        string      `json:"symbol"`
	Side          Side        `json:"side"`
	Type          OrderType   `json:"type"`
	Price         float64     `json:"price"`
	Amount        float64     `json:"amount"`
	Filled        float64     `json:"filled"`
	Status        OrderStatus `json:"status"`
	Fee           float64     `json:"fee,omitempty"`
	FeeCurrency   string      `json:"fee_currency,omitempty"`
	ClientOrderID string      `json:"client_order_id,omitempty"`
	CreatedAt     time.Time   `json:"created_at"`
}

// Remaining reports the unfilled part of the order.
func (o *Order) Remaining() float64 {
	return o.Amount - o.Filled
}

// Cost is the notional value of the filled part at the order price.
func (o *Order) Cost() float64 {
	return o.Filled * o.Price
}
