package sim

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"venueflow/internal/symbols"
	"venueflow/models"
)

// PlaceOrder resolves the execution price, runs the pre-flight balance
// check and then mutates the ledger. Market orders fill synchronously;
// limit and stop orders reserve funds and rest as open.
func (a *Adapter) PlaceOrder(ctx context.Context, req models.OrderRequest) (*models.Order, error) {
	if err := a.requireConnected("place_order"); err != nil {
		return nil, err
	}
	if req.Amount <= 0 {
		return nil, fmt.Errorf("order amount must be positive, got %v", req.Amount)
	}
	if req.Type.RequiresPrice() && req.Price <= 0 {
		return nil, fmt.Errorf("%s orders require a price", req.Type)
	}
	base, err := a.basePrice(req.Symbol)
	if err != nil {
		return nil, err
	}
	baseCur, quoteCur, err := symbols.Split(req.Symbol)
	if err != nil {
		return nil, err
	}
	if err := a.simulate(ctx, "place_order"); err != nil {
		return nil, err
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	// Resolve the price before touching any balance.
	price := req.Price
	if req.Type == models.OrderTypeMarket {
		px := base * (1 + (a.rng.Float64()*2-1)*0.001)
		if req.Side == models.SideBuy {
			price = px * (1 + a.cfg.Slippage)
		} else {
			price = px * (1 - a.cfg.Slippage)
		}
	}

	// Pre-flight: buys need quote currency, sells need base currency.
	reserveCur := quoteCur
	reserveAmt := price * req.Amount
	if req.Side == models.SideSell {
		reserveCur = baseCur
		reserveAmt = req.Amount
	}
	held := a.balances[reserveCur]
	if held == nil || held.Free < reserveAmt {
		free := 0.0
		if held != nil {
			free = held.Free
		}
		return nil, fmt.Errorf("%w: need %.8f %s on %s, have %.8f",
			models.ErrInsufficientBalance, reserveAmt, reserveCur, a.name, free)
	}

	clientID := req.ClientOrderID
	if clientID == "" {
		clientID = uuid.NewString()
	}
	order := &models.Order{
		ID:            uuid.NewString(),
		Venue:         a.name,
		Symbol:        req.Symbol,
		Side:          req.Side,
		Type:          req.Type,
		Price:         price,
		Amount:        req.Amount,
		Status:        models.StatusPending,
		ClientOrderID: clientID,
		CreatedAt:     time.Now(),
	}

	if req.Type == models.OrderTypeMarket {
		a.fill(order, baseCur, quoteCur)
	} else {
		// Reserve: free -> used, reversed by cancel.
		held.Free -= reserveAmt
		held.Used += reserveAmt
		order.Status = models.StatusOpen
	}

	a.orders[order.ID] = order
	out := *order
	return &out, nil
}

// fill settles a market order against the ledger: a buy debits quote and
// credits base net of fee, a sell is the mirror.
func (a *Adapter) fill(order *models.Order, baseCur, quoteCur string) {
	cost := order.Price * order.Amount
	if order.Side == models.SideBuy {
		a.debit(quoteCur, cost)
		a.credit(baseCur, order.Amount*(1-a.fee))
		order.Fee = order.Amount * a.fee
		order.FeeCurrency = baseCur
	} else {
		a.debit(baseCur, order.Amount)
		a.credit(quoteCur, cost*(1-a.fee))
		order.Fee = cost * a.fee
		order.FeeCurrency = quoteCur
	}
	order.Filled = order.Amount
	order.Status = models.StatusFilled

	a.trades = append(a.trades, models.Trade{
		ID:          uuid.NewString(),
		OrderID:     order.ID,
		Venue:       a.name,
		Symbol:      order.Symbol,
		Side:        order.Side,
		Price:       order.Price,
		Amount:      order.Amount,
		Fee:         order.Fee,
		FeeCurrency: order.FeeCurrency,
		Timestamp:   time.Now(),
	})
}

func (a *Adapter) debit(currency string, amount float64) {
	b := a.balances[currency]
	if b == nil {
		b = &models.Balance{Currency: currency}
		a.balances[currency] = b
	}
	b.Free -= amount
	b.Total = b.Free + b.Used
}

func (a *Adapter) credit(currency string, amount float64) {
	b := a.balances[currency]
	if b == nil {
		b = &models.Balance{Currency: currency}
		a.balances[currency] = b
	}
	b.Free += amount
	b.Total = b.Free + b.Used
}

// CancelOrder reverses the reservation made at placement and marks the
// order cancelled. Terminal orders cannot be cancelled.
func (a *Adapter) CancelOrder(ctx context.Context, id, symbol string) error {
	if err := a.requireConnected("cancel_order"); err != nil {
		return err
	}
	if err := a.simulate(ctx, "cancel_order"); err != nil {
		return err
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	order, ok := a.orders[id]
	if !ok {
		return fmt.Errorf("order %s not found on %s", id, a.name)
	}
	if order.Status.IsTerminal() {
		return fmt.Errorf("order %s is already %s", id, order.Status)
	}

	baseCur, quoteCur, err := symbols.Split(order.Symbol)
	if err != nil {
		return err
	}
	reserveCur := quoteCur
	reserveAmt := order.Price * order.Remaining()
	if order.Side == models.SideSell {
		reserveCur = baseCur
		reserveAmt = order.Remaining()
	}
	if b := a.balances[reserveCur]; b != nil {
		b.Used -= reserveAmt
		b.Free += reserveAmt
		b.Total = b.Free + b.Used
	}
	order.Status = models.StatusCancelled
	return nil
}

func (a *Adapter) GetOrder(ctx context.Context, id, symbol string) (*models.Order, error) {
	if err := a.requireConnected("get_order"); err != nil {
		return nil, err
	}
	if err := a.simulate(ctx, "get_order"); err != nil {
		return nil, err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	order, ok := a.orders[id]
	if !ok {
		return nil, fmt.Errorf("order %s not found on %s", id, a.name)
	}
	out := *order
	return &out, nil
}

func (a *Adapter) GetOpenOrders(ctx context.Context, symbol string) ([]models.Order, error) {
	if err := a.requireConnected("get_open_orders"); err != nil {
		return nil, err
	}
	if err := a.simulate(ctx, "get_open_orders"); err != nil {
		return nil, err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	var out []models.Order
	for _, o := range a.orders {
		if o.Status.IsTerminal() {
			continue
		}
		if symbol != "" && o.Symbol != symbol {
			continue
		}
		out = append(out, *o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (a *Adapter) GetOrderHistory(ctx context.Context, symbol string, limit int) ([]models.Order, error) {
	if err := a.requireConnected("get_order_history"); err != nil {
		return nil, err
	}
	if err := a.simulate(ctx, "get_order_history"); err != nil {
		return nil, err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	var out []models.Order
	for _, o := range a.orders {
		if symbol != "" && o.Symbol != symbol {
			continue
		}
		out = append(out, *o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (a *Adapter) GetTrades(ctx context.Context, symbol string, limit int) ([]models.Trade, error) {
	if err := a.requireConnected("get_trades"); err != nil {
		return nil, err
	}
	if err := a.simulate(ctx, "get_trades"); err != nil {
		return nil, err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	var out []models.Trade
	for i := len(a.trades) - 1; i >= 0; i-- {
		t := a.trades[i]
		if symbol != "" && t.Symbol != symbol {
			continue
		}
		out = append(out, t)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}
