package sim

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"venueflow/logger"
	"venueflow/models"
)

// Subscription push cadence band.
const (
	minPushInterval = 40 * time.Millisecond
	maxPushInterval = 200 * time.Millisecond
)

func (a *Adapter) pushInterval() time.Duration {
	a.mu.Lock()
	defer a.mu.Unlock()
	return minPushInterval + time.Duration(a.rng.Int63n(int64(maxPushInterval-minPushInterval)))
}

// runStream pushes synthetic updates produced by gen at randomized
// intervals until the context is done or the unsubscribe func runs. The
// send channel is closed exactly once, and never written after close.
func runStream[T any](ctx context.Context, a *Adapter, stream string, gen func() T) (<-chan T, func(), error) {
	out := make(chan T, 16)
	done := make(chan struct{})
	var once sync.Once
	cancel := func() { once.Do(func() { close(done) }) }

	go func() {
		defer close(out)
		for {
			t := time.NewTimer(a.pushInterval())
			select {
			case <-ctx.Done():
				t.Stop()
				return
			case <-done:
				t.Stop()
				return
			case <-t.C:
			}
			select {
			case out <- gen():
				logger.RecordStreamMessage(stream, 1)
			default:
				// slow consumer: drop rather than block the producer
			}
		}
	}()
	return out, cancel, nil
}

func (a *Adapter) SubscribeTicker(ctx context.Context, symbol string) (<-chan *models.Ticker, func(), error) {
	if err := a.requireConnected("subscribe_ticker"); err != nil {
		return nil, nil, err
	}
	base, err := a.basePrice(symbol)
	if err != nil {
		return nil, nil, err
	}
	return runStream(ctx, a, a.name+".ticker", func() *models.Ticker {
		return a.syntheticTicker(symbol, base)
	})
}

func (a *Adapter) SubscribeOrderBook(ctx context.Context, symbol string) (<-chan *models.OrderBook, func(), error) {
	if err := a.requireConnected("subscribe_order_book"); err != nil {
		return nil, nil, err
	}
	base, err := a.basePrice(symbol)
	if err != nil {
		return nil, nil, err
	}
	return runStream(ctx, a, a.name+".book", func() *models.OrderBook {
		return a.syntheticBook(symbol, base, bookLevels)
	})
}

func (a *Adapter) SubscribeTrades(ctx context.Context, symbol string) (<-chan *models.Trade, func(), error) {
	if err := a.requireConnected("subscribe_trades"); err != nil {
		return nil, nil, err
	}
	base, err := a.basePrice(symbol)
	if err != nil {
		return nil, nil, err
	}
	return runStream(ctx, a, a.name+".trades", func() *models.Trade {
		side := models.SideBuy
		if a.jitter(1) < 1 {
			side = models.SideSell
		}
		return &models.Trade{
			ID:        uuid.NewString(),
			Venue:     a.name,
			Symbol:    symbol,
			Side:      side,
			Price:     base * a.jitter(0.001),
			Amount:    a.jitter(0.5),
			Timestamp: time.Now(),
		}
	})
}
