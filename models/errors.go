package models

import (
	"errors"
	"fmt"
)

// Sentinel errors for business-rule failures. These propagate to the
// caller without retry: retrying would not change the outcome.
var (
	// ErrInsufficientBalance signals that the pre-flight balance check
	// failed before any state mutation.
	ErrInsufficientBalance = errors.New("insufficient balance")

	// ErrInvalidSymbol signals that the venue does not list the symbol.
	ErrInvalidSymbol = errors.New("invalid symbol")

	// ErrNoRouteAvailable signals that no venue met the routing criteria.
	ErrNoRouteAvailable = errors.New("no route available")

	// ErrNotConnected signals a call against an adapter that is not in
	// the connected state.
	ErrNotConnected = errors.New("venue not connected")
)

// ConnectionError marks a venue as unreachable or failing auth. It is
// the trigger for the reconnection state machine.
type ConnectionError struct {
	Venue string
	Op    string
	Err   error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Venue, e.Op, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// NewConnectionError wraps err as a venue connectivity failure.
func NewConnectionError(venue, op string, err error) *ConnectionError {
	return &ConnectionError{Venue: venue, Op: op, Err: err}
}

// IsConnectionError reports whether err is (or wraps) a ConnectionError.
func IsConnectionError(err error) bool {
	var ce *ConnectionError
	return errors.As(err, &ce)
}

// PartialArbitrageFailure is returned when an arbitrage execution did
// not capture the scanned edge: a leg failed, or both legs filled at
// prices that produced a loss. Both leg results are carried so the
// caller can manually unwind; no automatic unwind is attempted.
type PartialArbitrageFailure struct {
	Opportunity ArbitrageOpportunity
	BuyOrder    *Order
	SellOrder   *Order
	BuyErr      error
	SellErr     error
}

func (e *PartialArbitrageFailure) Error() string {
	return fmt.Sprintf("partial arbitrage failure %s buy[%s]=%v sell[%s]=%v",
		e.Opportunity.Symbol, e.Opportunity.BuyVenue, e.BuyErr, e.Opportunity.SellVenue, e.SellErr)
}
