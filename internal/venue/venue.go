// Package venue defines the capability interface every exchange adapter
// implements, plus the shared connection lifecycle tracking used by the
// manager's reconnection logic.
package venue

import (
	"context"
	"time"

	"venueflow/models"
)

// Adapter is the uniform operation set of one exchange. Every call is
// independently rate limited by the caller; adapters do not retry.
// Connect is idempotent: calling it on a connected adapter is a no-op
// returning nil.
type Adapter interface {
	Name() string

	Connect(ctx context.Context) error
	Disconnect() error
	Status() Status

	// GetBalance returns the balance for one currency. A currency the
	// account does not hold yields a zero balance, not an error.
	GetBalance(ctx context.Context, currency string) (models.Balance, error)
	// GetBalances returns all non-zero balances.
	GetBalances(ctx context.Context) ([]models.Balance, error)

	GetTicker(ctx context.Context, symbol string) (*models.Ticker, error)
	GetOrderBook(ctx context.Context, symbol string, depth int) (*models.OrderBook, error)

	// PlaceOrder validates the request, resolves the execution price for
	// market orders and performs a pre-flight balance check before any
	// state mutation.
	PlaceOrder(ctx context.Context, req models.OrderRequest) (*models.Order, error)
	CancelOrder(ctx context.Context, id, symbol string) error
	GetOrder(ctx context.Context, id, symbol string) (*models.Order, error)
	GetOpenOrders(ctx context.Context, symbol string) ([]models.Order, error)
	GetOrderHistory(ctx context.Context, symbol string, limit int) ([]models.Order, error)
	GetTrades(ctx context.Context, symbol string, limit int) ([]models.Trade, error)

	// Subscribe* return a receive channel and an unsubscribe func. The
	// channel is closed when the subscription is cancelled, the context
	// is done, or the underlying session fails; no sends happen after
	// close. Per-symbol updates arrive in receipt order.
	SubscribeTicker(ctx context.Context, symbol string) (<-chan *models.Ticker, func(), error)
	SubscribeOrderBook(ctx context.Context, symbol string) (<-chan *models.OrderBook, func(), error)
	SubscribeTrades(ctx context.Context, symbol string) (<-chan *models.Trade, func(), error)

	// Ping measures a lightweight round trip for liveness and latency.
	Ping(ctx context.Context) (time.Duration, error)

	// TakerFee is the venue's taker fee fraction used in routing math.
	TakerFee() float64
}
