package manager

import (
	"context"
	"fmt"
	"math"
	"sync"

	"venueflow/logger"
	"venueflow/models"
)

const bookDepthForRouting = 20

// GetBestPrice evaluates every connected venue as an execution candidate
// for (symbol, side, amount) and returns the winner by effective price.
// A venue qualifies only when it can fill at least the configured
// minimum ratio of the amount (default 95%) and holds enough balance to
// execute. Returns ErrNoRouteAvailable when nothing qualifies.
func (m *Manager) GetBestPrice(ctx context.Context, symbol string, side models.Side, amount float64) (*models.Route, error) {
	if amount <= 0 {
		return nil, fmt.Errorf("amount must be positive, got %v", amount)
	}
	venues := m.connected()
	if len(venues) == 0 {
		return nil, fmt.Errorf("%w: no connected venues", models.ErrNoRouteAvailable)
	}

	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		routes []models.Route
	)
	for name, reg := range venues {
		wg.Add(1)
		go func(name string, reg *registered) {
			defer wg.Done()
			route, err := m.evaluateVenue(ctx, name, reg, symbol, side, amount)
			if err != nil {
				m.log.WithComponent("manager-routing").WithError(err).WithFields(logger.Fields{
					"venue": name, "symbol": symbol,
				}).Debug("venue excluded from routing")
				return
			}
			if route != nil {
				mu.Lock()
				routes = append(routes, *route)
				mu.Unlock()
			}
		}(name, reg)
	}
	wg.Wait()

	best := pickBest(routes, side)
	if best == nil {
		return nil, fmt.Errorf("%w: no venue can fill %v %s %s", models.ErrNoRouteAvailable, amount, symbol, side)
	}
	return best, nil
}

// evaluateVenue walks the venue's book and applies the fill-ratio,
// slippage and balance checks. A nil route with nil error means the
// venue simply does not qualify.
func (m *Manager) evaluateVenue(ctx context.Context, name string, reg *registered, symbol string, side models.Side, amount float64) (*models.Route, error) {
	var book *models.OrderBook
	err := m.do(ctx, reg, "get_order_book", 2, func(ctx context.Context) error {
		var err error
		book, err = reg.adapter.GetOrderBook(ctx, symbol, bookDepthForRouting)
		return err
	})
	if err != nil {
		return nil, err
	}
	logger.IncrementBookRead()
	reg.cacheBook(book)

	avgPrice, fillable := book.FillPrice(side, amount)
	if fillable < amount*m.cfg.Manager.Route.MinFillRatio {
		return nil, nil
	}

	var top models.PriceLevel
	var ok bool
	if side == models.SideBuy {
		top, ok = book.BestAsk()
	} else {
		top, ok = book.BestBid()
	}
	if !ok || top.Price <= 0 {
		return nil, nil
	}
	slippage := math.Abs(avgPrice-top.Price) / top.Price

	if qualified, err := m.hasBalanceFor(ctx, reg, symbol, side, amount, avgPrice); err != nil || !qualified {
		return nil, err
	}

	fee := reg.adapter.TakerFee()
	cost := avgPrice * fillable
	if side == models.SideBuy {
		cost *= 1 + fee
	} else {
		cost *= 1 - fee
	}
	return &models.Route{
		Venue:    name,
		Symbol:   symbol,
		Side:     side,
		Price:    avgPrice,
		Fillable: fillable,
		FeeRate:  fee,
		Cost:     cost,
		Slippage: slippage,
	}, nil
}

// hasBalanceFor verifies the venue holds enough free balance in the
// currency the execution consumes.
func (m *Manager) hasBalanceFor(ctx context.Context, reg *registered, symbol string, side models.Side, amount, price float64) (bool, error) {
	baseCur, quoteCur, err := splitSymbol(symbol)
	if err != nil {
		return false, err
	}
	requiredCur := quoteCur
	required := price * amount * (1 + reg.adapter.TakerFee())
	if side == models.SideSell {
		requiredCur = baseCur
		required = amount
	}
	var bal models.Balance
	err = m.do(ctx, reg, "get_balance", 1, func(ctx context.Context) error {
		var err error
		bal, err = reg.adapter.GetBalance(ctx, requiredCur)
		return err
	})
	if err != nil {
		return false, err
	}
	reg.cacheBalance(bal)
	return bal.Free >= required, nil
}

// pickBest ranks by effective price, breaking ties by higher fillable
// depth, then lexicographic venue name, so routing is deterministic.
func pickBest(routes []models.Route, side models.Side) *models.Route {
	var best *models.Route
	for i := range routes {
		r := &routes[i]
		if best == nil {
			best = r
			continue
		}
		be, re := best.EffectivePrice(), r.EffectivePrice()
		better := re < be
		if side == models.SideSell {
			better = re > be
		}
		if re == be {
			if r.Fillable != best.Fillable {
				better = r.Fillable > best.Fillable
			} else {
				better = r.Venue < best.Venue
			}
		}
		if better {
			best = r
		}
	}
	return best
}

// RouteOrder selects an execution venue and places the order there. A
// preferred venue bypasses price comparison entirely. Market orders go
// to the best-price venue; limit and stop orders, whose price is fixed
// by the caller, go to the connected venue with the lowest taker fee.
func (m *Manager) RouteOrder(ctx context.Context, req models.OrderRequest, preferredVenue string) (*models.Order, error) {
	var (
		reg    *registered
		target string
	)
	switch {
	case preferredVenue != "":
		r, ok := m.venue(preferredVenue)
		if !ok {
			return nil, fmt.Errorf("%w: venue %s is not configured", models.ErrNoRouteAvailable, preferredVenue)
		}
		reg, target = r, preferredVenue
	case req.Type == models.OrderTypeMarket:
		route, err := m.GetBestPrice(ctx, req.Symbol, req.Side, req.Amount)
		if err != nil {
			return nil, err
		}
		r, ok := m.venue(route.Venue)
		if !ok {
			return nil, fmt.Errorf("%w: winning venue %s disappeared", models.ErrNoRouteAvailable, route.Venue)
		}
		reg, target = r, route.Venue
	default:
		name, r := m.lowestFeeVenue()
		if r == nil {
			return nil, fmt.Errorf("%w: no connected venues", models.ErrNoRouteAvailable)
		}
		reg, target = r, name
	}

	var order *models.Order
	err := m.do(ctx, reg, "place_order", 5, func(ctx context.Context) error {
		var err error
		order, err = reg.adapter.PlaceOrder(ctx, req)
		return err
	})
	if err != nil {
		logger.IncrementOrderRejected()
		return nil, err
	}
	logger.IncrementOrderPlaced()
	if order.Filled > 0 {
		reg.metrics.RecordFill(order.Filled*order.Price, order.Fee)
		if m.archive != nil {
			m.archive.RecordFill(*order)
		}
	}
	m.log.WithComponent("manager-routing").WithFields(logger.Fields{
		"venue": target, "symbol": req.Symbol, "side": req.Side, "type": req.Type,
		"amount": req.Amount, "order_id": order.ID, "status": order.Status,
	}).Info("order routed")
	return order, nil
}

// lowestFeeVenue returns the connected venue with the smallest taker fee,
// ties broken by name for determinism.
func (m *Manager) lowestFeeVenue() (string, *registered) {
	var (
		bestName string
		best     *registered
	)
	for name, reg := range m.connected() {
		if best == nil || reg.adapter.TakerFee() < best.adapter.TakerFee() ||
			(reg.adapter.TakerFee() == best.adapter.TakerFee() && name < bestName) {
			bestName, best = name, reg
		}
	}
	return bestName, best
}
