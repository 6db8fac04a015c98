package manager

import (
	"context"
	"fmt"

	"venueflow/logger"
	"venueflow/models"
)

// GetTicker returns the venue's ticker for symbol, serving the cached
// copy while it is within the venue TTL. Display path only; routing and
// arbitrage always fetch fresh quotes.
func (m *Manager) GetTicker(ctx context.Context, venueName, symbol string) (*models.Ticker, error) {
	reg, ok := m.venue(venueName)
	if !ok {
		return nil, fmt.Errorf("unknown venue %s", venueName)
	}
	if t, ok := reg.cachedTicker(symbol); ok {
		return t, nil
	}
	var ticker *models.Ticker
	err := m.do(ctx, reg, "get_ticker", 1, func(ctx context.Context) error {
		var err error
		ticker, err = reg.adapter.GetTicker(ctx, symbol)
		return err
	})
	if err != nil {
		return nil, err
	}
	reg.cacheTicker(ticker)
	return ticker, nil
}

// GetOrderBook returns the venue's book for symbol. A fresh cached book
// is served when it carries at least the requested depth.
func (m *Manager) GetOrderBook(ctx context.Context, venueName, symbol string, levels int) (*models.OrderBook, error) {
	reg, ok := m.venue(venueName)
	if !ok {
		return nil, fmt.Errorf("unknown venue %s", venueName)
	}
	if b, ok := reg.cachedBook(symbol); ok && len(b.Bids) >= levels && len(b.Asks) >= levels {
		return b, nil
	}
	var book *models.OrderBook
	err := m.do(ctx, reg, "get_order_book", 2, func(ctx context.Context) error {
		var err error
		book, err = reg.adapter.GetOrderBook(ctx, symbol, levels)
		return err
	})
	if err != nil {
		return nil, err
	}
	logger.IncrementBookRead()
	reg.cacheBook(book)
	return book, nil
}
