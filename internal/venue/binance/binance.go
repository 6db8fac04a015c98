// Package binance implements the live venue adapter for Binance spot
// trading on top of the official REST and websocket endpoints.
package binance

import (
	"context"
	"fmt"
	"strconv"
	"time"

	binancesdk "github.com/adshao/go-binance/v2"
	"github.com/google/uuid"

	"venueflow/config"
	"venueflow/internal/symbols"
	"venueflow/internal/venue"
	"venueflow/models"
)

const venueKind = "binance"

type Adapter struct {
	name     string
	fee      float64
	slippage float64
	client   *binancesdk.Client
	tracker  *venue.ConnTracker
}

func New(vc config.VenueConfig) *Adapter {
	return &Adapter{
		name:     vc.Name,
		fee:      vc.TakerFee,
		slippage: vc.SlippageAllowance,
		client:   binancesdk.NewClient(vc.APIKey, vc.APISecret),
		tracker:  venue.NewConnTracker(),
	}
}

func (a *Adapter) Name() string         { return a.name }
func (a *Adapter) TakerFee() float64    { return a.fee }
func (a *Adapter) Status() venue.Status { return a.tracker.Status() }

// Connect verifies credentials and reachability with an authenticated
// account call. Safe to call when already connected.
func (a *Adapter) Connect(ctx context.Context) error {
	if a.tracker.Status() == venue.StatusConnected {
		return nil
	}
	a.tracker.SetStatus(venue.StatusConnecting)
	if _, err := a.client.NewGetAccountService().Do(ctx); err != nil {
		a.tracker.SetStatus(venue.StatusError)
		return models.NewConnectionError(a.name, "connect", err)
	}
	a.tracker.SetStatus(venue.StatusConnected)
	return nil
}

func (a *Adapter) Disconnect() error {
	a.tracker.SetStatus(venue.StatusDisconnected)
	return nil
}

func (a *Adapter) Ping(ctx context.Context) (time.Duration, error) {
	start := time.Now()
	if err := a.client.NewPingService().Do(ctx); err != nil {
		return 0, models.NewConnectionError(a.name, "ping", err)
	}
	return time.Since(start), nil
}

func (a *Adapter) GetBalance(ctx context.Context, currency string) (models.Balance, error) {
	balances, err := a.GetBalances(ctx)
	if err != nil {
		return models.Balance{}, err
	}
	for _, b := range balances {
		if b.Currency == currency {
			return b, nil
		}
	}
	return models.Balance{Currency: currency}, nil
}

func (a *Adapter) GetBalances(ctx context.Context) ([]models.Balance, error) {
	account, err := a.client.NewGetAccountService().Do(ctx)
	if err != nil {
		return nil, models.NewConnectionError(a.name, "get_balances", err)
	}
	var out []models.Balance
	for _, b := range account.Balances {
		free, _ := strconv.ParseFloat(b.Free, 64)
		used, _ := strconv.ParseFloat(b.Locked, 64)
		if free == 0 && used == 0 {
			continue
		}
		out = append(out, models.NewBalance(b.Asset, free, used))
	}
	return out, nil
}

func (a *Adapter) GetTicker(ctx context.Context, symbol string) (*models.Ticker, error) {
	wire, err := symbols.ToVenue(venueKind, symbol)
	if err != nil {
		return nil, err
	}
	stats, err := a.client.NewListPriceChangeStatsService().Symbol(wire).Do(ctx)
	if err != nil {
		return nil, models.NewConnectionError(a.name, "get_ticker", err)
	}
	if len(stats) == 0 {
		return nil, fmt.Errorf("%w: %s", models.ErrInvalidSymbol, symbol)
	}
	s := stats[0]
	bid, _ := strconv.ParseFloat(s.BidPrice, 64)
	ask, _ := strconv.ParseFloat(s.AskPrice, 64)
	last, _ := strconv.ParseFloat(s.LastPrice, 64)
	volume, _ := strconv.ParseFloat(s.Volume, 64)
	high, _ := strconv.ParseFloat(s.HighPrice, 64)
	low, _ := strconv.ParseFloat(s.LowPrice, 64)
	change, _ := strconv.ParseFloat(s.PriceChangePercent, 64)
	vwap, _ := strconv.ParseFloat(s.WeightedAvgPrice, 64)
	return &models.Ticker{
		Venue:     a.name,
		Symbol:    symbol,
		Bid:       bid,
		Ask:       ask,
		Last:      last,
		Volume:    volume,
		High:      high,
		Low:       low,
		Change:    change,
		VWAP:      vwap,
		Timestamp: time.Now(),
	}, nil
}

func (a *Adapter) GetOrderBook(ctx context.Context, symbol string, depth int) (*models.OrderBook, error) {
	wire, err := symbols.ToVenue(venueKind, symbol)
	if err != nil {
		return nil, err
	}
	if depth <= 0 {
		depth = 20
	}
	resp, err := a.client.NewDepthService().Symbol(wire).Limit(depth).Do(ctx)
	if err != nil {
		return nil, models.NewConnectionError(a.name, "get_order_book", err)
	}
	book := &models.OrderBook{Venue: a.name, Symbol: symbol, Timestamp: time.Now()}
	for _, lvl := range resp.Bids {
		price, qty, err := lvl.Parse()
		if err != nil {
			continue
		}
		book.Bids = append(book.Bids, models.PriceLevel{Price: price, Size: qty})
	}
	for _, lvl := range resp.Asks {
		price, qty, err := lvl.Parse()
		if err != nil {
			continue
		}
		book.Asks = append(book.Asks, models.PriceLevel{Price: price, Size: qty})
	}
	return book, nil
}

// PlaceOrder runs the pre-flight balance check against the venue account
// before submitting. Market buy cost is estimated from the current ask
// plus the configured slippage allowance.
func (a *Adapter) PlaceOrder(ctx context.Context, req models.OrderRequest) (*models.Order, error) {
	wire, err := symbols.ToVenue(venueKind, req.Symbol)
	if err != nil {
		return nil, err
	}
	baseCur, quoteCur, err := symbols.Split(req.Symbol)
	if err != nil {
		return nil, err
	}
	venueType, ok := orderTypeToVenue[req.Type]
	if !ok {
		return nil, fmt.Errorf("unsupported order type %s", req.Type)
	}
	if req.Type.RequiresPrice() && req.Price <= 0 {
		return nil, fmt.Errorf("%s orders require a price", req.Type)
	}

	// Estimate the balance the order will consume.
	price := req.Price
	if req.Type == models.OrderTypeMarket {
		ticker, err := a.GetTicker(ctx, req.Symbol)
		if err != nil {
			return nil, err
		}
		if req.Side == models.SideBuy {
			price = ticker.Ask * (1 + a.slippage)
		} else {
			price = ticker.Bid * (1 - a.slippage)
		}
	}
	requiredCur := quoteCur
	required := price * req.Amount
	if req.Side == models.SideSell {
		requiredCur = baseCur
		required = req.Amount
	}
	held, err := a.GetBalance(ctx, requiredCur)
	if err != nil {
		return nil, err
	}
	if held.Free < required {
		return nil, fmt.Errorf("%w: need %.8f %s on %s, have %.8f",
			models.ErrInsufficientBalance, required, requiredCur, a.name, held.Free)
	}

	clientID := req.ClientOrderID
	if clientID == "" {
		clientID = uuid.NewString()
	}
	svc := a.client.NewCreateOrderService().
		Symbol(wire).
		Side(sideToVenue(req.Side)).
		Type(venueType).
		Quantity(strconv.FormatFloat(req.Amount, 'f', -1, 64)).
		NewClientOrderID(clientID)
	if req.Type != models.OrderTypeMarket {
		svc = svc.Price(strconv.FormatFloat(req.Price, 'f', -1, 64)).
			TimeInForce(binancesdk.TimeInForceTypeGTC)
	}
	resp, err := svc.Do(ctx)
	if err != nil {
		return nil, models.NewConnectionError(a.name, "place_order", err)
	}

	filled, _ := strconv.ParseFloat(resp.ExecutedQuantity, 64)
	fillPrice := price
	var fee float64
	feeCur := ""
	if len(resp.Fills) > 0 {
		var notional, qty float64
		for _, f := range resp.Fills {
			p, _ := strconv.ParseFloat(f.Price, 64)
			q, _ := strconv.ParseFloat(f.Quantity, 64)
			c, _ := strconv.ParseFloat(f.Commission, 64)
			notional += p * q
			qty += q
			fee += c
			feeCur = f.CommissionAsset
		}
		if qty > 0 {
			fillPrice = notional / qty
		}
	}
	return &models.Order{
		ID:            strconv.FormatInt(resp.OrderID, 10),
		Venue:         a.name,
		Symbol:        req.Symbol,
		Side:          req.Side,
		Type:          req.Type,
		Price:         fillPrice,
		Amount:        req.Amount,
		Filled:        filled,
		Status:        statusFromVenue(resp.Status),
		Fee:           fee,
		FeeCurrency:   feeCur,
		ClientOrderID: resp.ClientOrderID,
		CreatedAt:     time.UnixMilli(resp.TransactTime),
	}, nil
}

func (a *Adapter) CancelOrder(ctx context.Context, id, symbol string) error {
	wire, err := symbols.ToVenue(venueKind, symbol)
	if err != nil {
		return err
	}
	orderID, err := strconv.ParseInt(id, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid order id %q: %w", id, err)
	}
	if _, err := a.client.NewCancelOrderService().Symbol(wire).OrderID(orderID).Do(ctx); err != nil {
		return models.NewConnectionError(a.name, "cancel_order", err)
	}
	return nil
}

func (a *Adapter) GetOrder(ctx context.Context, id, symbol string) (*models.Order, error) {
	wire, err := symbols.ToVenue(venueKind, symbol)
	if err != nil {
		return nil, err
	}
	orderID, err := strconv.ParseInt(id, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid order id %q: %w", id, err)
	}
	o, err := a.client.NewGetOrderService().Symbol(wire).OrderID(orderID).Do(ctx)
	if err != nil {
		return nil, models.NewConnectionError(a.name, "get_order", err)
	}
	order := a.convertOrder(o, symbol)
	return &order, nil
}

func (a *Adapter) GetOpenOrders(ctx context.Context, symbol string) ([]models.Order, error) {
	svc := a.client.NewListOpenOrdersService()
	if symbol != "" {
		wire, err := symbols.ToVenue(venueKind, symbol)
		if err != nil {
			return nil, err
		}
		svc = svc.Symbol(wire)
	}
	list, err := svc.Do(ctx)
	if err != nil {
		return nil, models.NewConnectionError(a.name, "get_open_orders", err)
	}
	return a.convertOrders(list), nil
}

func (a *Adapter) GetOrderHistory(ctx context.Context, symbol string, limit int) ([]models.Order, error) {
	if symbol == "" {
		return nil, fmt.Errorf("order history on %s requires a symbol", a.name)
	}
	wire, err := symbols.ToVenue(venueKind, symbol)
	if err != nil {
		return nil, err
	}
	svc := a.client.NewListOrdersService().Symbol(wire)
	if limit > 0 {
		svc = svc.Limit(limit)
	}
	list, err := svc.Do(ctx)
	if err != nil {
		return nil, models.NewConnectionError(a.name, "get_order_history", err)
	}
	return a.convertOrders(list), nil
}

func (a *Adapter) GetTrades(ctx context.Context, symbol string, limit int) ([]models.Trade, error) {
	if symbol == "" {
		return nil, fmt.Errorf("trade history on %s requires a symbol", a.name)
	}
	wire, err := symbols.ToVenue(venueKind, symbol)
	if err != nil {
		return nil, err
	}
	svc := a.client.NewListTradesService().Symbol(wire)
	if limit > 0 {
		svc = svc.Limit(limit)
	}
	list, err := svc.Do(ctx)
	if err != nil {
		return nil, models.NewConnectionError(a.name, "get_trades", err)
	}
	var out []models.Trade
	for _, tr := range list {
		price, _ := strconv.ParseFloat(tr.Price, 64)
		qty, _ := strconv.ParseFloat(tr.Quantity, 64)
		fee, _ := strconv.ParseFloat(tr.Commission, 64)
		side := models.SideSell
		if tr.IsBuyer {
			side = models.SideBuy
		}
		out = append(out, models.Trade{
			ID:          strconv.FormatInt(tr.ID, 10),
			OrderID:     strconv.FormatInt(tr.OrderID, 10),
			Venue:       a.name,
			Symbol:      symbol,
			Side:        side,
			Price:       price,
			Amount:      qty,
			Fee:         fee,
			FeeCurrency: tr.CommissionAsset,
			Timestamp:   time.UnixMilli(tr.Time),
		})
	}
	return out, nil
}

func (a *Adapter) convertOrders(list []*binancesdk.Order) []models.Order {
	out := make([]models.Order, 0, len(list))
	for _, o := range list {
		pair, err := symbols.FromVenue(venueKind, o.Symbol)
		if err != nil {
			pair = o.Symbol
		}
		out = append(out, a.convertOrder(o, pair))
	}
	return out
}

func (a *Adapter) convertOrder(o *binancesdk.Order, symbol string) models.Order {
	price, _ := strconv.ParseFloat(o.Price, 64)
	amount, _ := strconv.ParseFloat(o.OrigQuantity, 64)
	filled, _ := strconv.ParseFloat(o.ExecutedQuantity, 64)
	orderType, ok := orderTypeFromVenue[o.Type]
	if !ok {
		orderType = models.OrderTypeLimit
	}
	return models.Order{
		ID:            strconv.FormatInt(o.OrderID, 10),
		Venue:         a.name,
		Symbol:        symbol,
		Side:          sideFromVenue(o.Side),
		Type:          orderType,
		Price:         price,
		Amount:        amount,
		Filled:        filled,
		Status:        statusFromVenue(o.Status),
		ClientOrderID: o.ClientOrderID,
		CreatedAt:     time.UnixMilli(o.Time),
	}
}
