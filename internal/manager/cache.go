package manager

import (
	"time"

	"venueflow/internal/symbols"
	"venueflow/models"
)

func splitSymbol(symbol string) (base, quote string, err error) {
	return symbols.Split(symbol)
}

// Display caches. Last-write-wins, read with a freshness check against
// the venue's configured TTL; never consulted for order placement.

func (r *registered) cacheTicker(t *models.Ticker) {
	if t == nil {
		return
	}
	r.cacheMu.Lock()
	r.tickers[t.Symbol] = t
	r.cacheMu.Unlock()
}

func (r *registered) cacheBook(b *models.OrderBook) {
	if b == nil {
		return
	}
	r.cacheMu.Lock()
	r.books[b.Symbol] = b
	r.cacheMu.Unlock()
}

func (r *registered) cacheBalance(b models.Balance) {
	r.cacheMu.Lock()
	r.balances[b.Currency] = b
	r.cacheMu.Unlock()
}

// cachedTicker returns the last ticker for the symbol when it is still
// within the venue TTL.
func (r *registered) cachedTicker(symbol string) (*models.Ticker, bool) {
	r.cacheMu.Lock()
	defer r.cacheMu.Unlock()
	t, ok := r.tickers[symbol]
	if !ok || !t.FresherThan(r.cacheTTL) {
		return nil, false
	}
	return t, true
}

func (r *registered) cachedBook(symbol string) (*models.OrderBook, bool) {
	r.cacheMu.Lock()
	defer r.cacheMu.Unlock()
	b, ok := r.books[symbol]
	if !ok || time.Since(b.Timestamp) >= r.cacheTTL {
		return nil, false
	}
	return b, true
}
