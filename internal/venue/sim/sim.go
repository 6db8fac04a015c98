// Package sim provides a simulated exchange adapter used for testing and
// demos without live credentials. It generates synthetic market data
// around configured base prices and maintains an internal balance ledger
// that moves exactly as a live venue's would.
package sim

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"venueflow/config"
	"venueflow/internal/symbols"
	"venueflow/internal/venue"
	"venueflow/models"
)

const bookLevels = 10

// Adapter simulates one venue. Failure rate, latency band and slippage
// come from configuration; a fixed seed makes runs reproducible.
type Adapter struct {
	name     string
	fee      float64
	cfg      config.SimConfig
	tracker  *venue.ConnTracker
	failNext int32

	mu       sync.Mutex
	rng      *rand.Rand
	balances map[string]*models.Balance
	orders   map[string]*models.Order
	trades   []models.Trade
}

// New builds a simulated adapter from a venue configuration entry.
func New(vc config.VenueConfig) *Adapter {
	seed := vc.Sim.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	a := &Adapter{
		name:     vc.Name,
		fee:      vc.TakerFee,
		cfg:      vc.Sim,
		tracker:  venue.NewConnTracker(),
		rng:      rand.New(rand.NewSource(seed)),
		balances: make(map[string]*models.Balance),
		orders:   make(map[string]*models.Order),
	}
	for currency, amount := range vc.Sim.InitialBalances {
		a.balances[currency] = &models.Balance{Currency: currency, Free: amount, Total: amount}
	}
	return a
}

func (a *Adapter) Name() string         { return a.name }
func (a *Adapter) TakerFee() float64    { return a.fee }
func (a *Adapter) Status() venue.Status { return a.tracker.Status() }

// ForceFailures makes the next n calls fail regardless of the configured
// failure rate. Used by tests exercising reconnect paths.
func (a *Adapter) ForceFailures(n int) {
	a.mu.Lock()
	a.failNext = int32(n)
	a.mu.Unlock()
}

func (a *Adapter) Connect(ctx context.Context) error {
	if a.tracker.Status() == venue.StatusConnected {
		return nil
	}
	a.tracker.SetStatus(venue.StatusConnecting)
	if err := a.simulate(ctx, "connect"); err != nil {
		a.tracker.SetStatus(venue.StatusError)
		return err
	}
	a.tracker.SetStatus(venue.StatusConnected)
	return nil
}

func (a *Adapter) Disconnect() error {
	a.tracker.SetStatus(venue.StatusDisconnected)
	return nil
}

// simulate applies the artificial latency band and failure rate shared
// by every operation.
func (a *Adapter) simulate(ctx context.Context, op string) error {
	delay := a.cfg.MinLatency
	if a.cfg.MaxLatency > a.cfg.MinLatency {
		a.mu.Lock()
		jitter := time.Duration(a.rng.Int63n(int64(a.cfg.MaxLatency - a.cfg.MinLatency)))
		a.mu.Unlock()
		delay += jitter
	}
	if delay > 0 {
		t := time.NewTimer(delay)
		defer t.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
		}
	}

	a.mu.Lock()
	forced := a.failNext > 0
	if forced {
		a.failNext--
	}
	failed := forced || (a.cfg.FailureRate > 0 && a.rng.Float64() < a.cfg.FailureRate)
	a.mu.Unlock()
	if failed {
		return models.NewConnectionError(a.name, op, fmt.Errorf("simulated %s failure", op))
	}
	return nil
}

func (a *Adapter) requireConnected(op string) error {
	if a.tracker.Status() != venue.StatusConnected {
		return models.NewConnectionError(a.name, op, models.ErrNotConnected)
	}
	return nil
}

// basePrice returns the configured anchor price for a symbol.
func (a *Adapter) basePrice(symbol string) (float64, error) {
	if _, _, err := symbols.Split(symbol); err != nil {
		return 0, fmt.Errorf("%w: %s", models.ErrInvalidSymbol, symbol)
	}
	px, ok := a.cfg.BasePrices[symbol]
	if !ok {
		return 0, fmt.Errorf("%w: %s not listed on %s", models.ErrInvalidSymbol, symbol, a.name)
	}
	return px, nil
}

// jitter returns a multiplicative factor in [1-band, 1+band].
func (a *Adapter) jitter(band float64) float64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return 1 + (a.rng.Float64()*2-1)*band
}

func (a *Adapter) GetBalance(ctx context.Context, currency string) (models.Balance, error) {
	if err := a.requireConnected("get_balance"); err != nil {
		return models.Balance{}, err
	}
	if err := a.simulate(ctx, "get_balance"); err != nil {
		return models.Balance{}, err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if b, ok := a.balances[currency]; ok {
		return *b, nil
	}
	return models.Balance{Currency: currency}, nil
}

func (a *Adapter) GetBalances(ctx context.Context) ([]models.Balance, error) {
	if err := a.requireConnected("get_balances"); err != nil {
		return nil, err
	}
	if err := a.simulate(ctx, "get_balances"); err != nil {
		return nil, err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]models.Balance, 0, len(a.balances))
	for _, b := range a.balances {
		if !b.IsZero() {
			out = append(out, *b)
		}
	}
	return out, nil
}

func (a *Adapter) GetTicker(ctx context.Context, symbol string) (*models.Ticker, error) {
	if err := a.requireConnected("get_ticker"); err != nil {
		return nil, err
	}
	base, err := a.basePrice(symbol)
	if err != nil {
		return nil, err
	}
	if err := a.simulate(ctx, "get_ticker"); err != nil {
		return nil, err
	}
	return a.syntheticTicker(symbol, base), nil
}

func (a *Adapter) syntheticTicker(symbol string, base float64) *models.Ticker {
	px := base * a.jitter(0.001)
	halfSpread := px * 0.0001
	return &models.Ticker{
		Venue:     a.name,
		Symbol:    symbol,
		Bid:       px - halfSpread,
		Ask:       px + halfSpread,
		Last:      px,
		Volume:    1000 * a.jitter(0.5),
		High:      px * 1.02,
		Low:       px * 0.98,
		Change:    (a.jitter(0.01) - 1) * 100,
		Timestamp: time.Now(),
	}
}

func (a *Adapter) GetOrderBook(ctx context.Context, symbol string, depth int) (*models.OrderBook, error) {
	if err := a.requireConnected("get_order_book"); err != nil {
		return nil, err
	}
	base, err := a.basePrice(symbol)
	if err != nil {
		return nil, err
	}
	if err := a.simulate(ctx, "get_order_book"); err != nil {
		return nil, err
	}
	if depth <= 0 || depth > bookLevels {
		depth = bookLevels
	}
	return a.syntheticBook(symbol, base, depth), nil
}

func (a *Adapter) syntheticBook(symbol string, base float64, depth int) *models.OrderBook {
	px := base * a.jitter(0.001)
	step := px * 0.0001
	book := &models.OrderBook{
		Venue:     a.name,
		Symbol:    symbol,
		Timestamp: time.Now(),
	}
	for i := 0; i < depth; i++ {
		size := 10 * a.jitter(0.3)
		book.Bids = append(book.Bids, models.PriceLevel{Price: px - step*float64(i+1), Size: size})
		book.Asks = append(book.Asks, models.PriceLevel{Price: px + step*float64(i+1), Size: size})
	}
	return book
}

func (a *Adapter) Ping(ctx context.Context) (time.Duration, error) {
	if err := a.requireConnected("ping"); err != nil {
		return 0, err
	}
	start := time.Now()
	if err := a.simulate(ctx, "ping"); err != nil {
		return 0, err
	}
	return time.Since(start), nil
}
