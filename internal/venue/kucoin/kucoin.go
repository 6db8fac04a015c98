// Package kucoin implements the live venue adapter for KuCoin spot
// trading through its signed REST API and token-gated websocket feed.
package kucoin

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/google/uuid"

	"venueflow/config"
	"venueflow/internal/symbols"
	"venueflow/internal/venue"
	"venueflow/models"
)

const venueKind = "kucoin"

type Adapter struct {
	name       string
	fee        float64
	slippage   float64
	signer     signer
	httpClient *http.Client
	tracker    *venue.ConnTracker
}

func New(vc config.VenueConfig) *Adapter {
	return &Adapter{
		name:     vc.Name,
		fee:      vc.TakerFee,
		slippage: vc.SlippageAllowance,
		signer: signer{
			apiKey:     vc.APIKey,
			apiSecret:  vc.APISecret,
			passphrase: vc.Passphrase,
		},
		httpClient: &http.Client{Timeout: 15 * time.Second},
		tracker:    venue.NewConnTracker(),
	}
}

func (a *Adapter) Name() string         { return a.name }
func (a *Adapter) TakerFee() float64    { return a.fee }
func (a *Adapter) Status() venue.Status { return a.tracker.Status() }

type account struct {
	Currency  string `json:"currency"`
	Type      string `json:"type"`
	Balance   string `json:"balance"`
	Available string `json:"available"`
	Holds     string `json:"holds"`
}

// Connect validates credentials by listing trade accounts. Idempotent.
func (a *Adapter) Connect(ctx context.Context) error {
	if a.tracker.Status() == venue.StatusConnected {
		return nil
	}
	a.tracker.SetStatus(venue.StatusConnecting)
	var accounts []account
	if err := a.call(ctx, http.MethodGet, "/api/v1/accounts?type=trade", nil, &accounts); err != nil {
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

// Ping hits the public timestamp endpoint, no signature needed but the
// shared call path signs it anyway which the venue tolerates.
func (a *Adapter) Ping(ctx context.Context) (time.Duration, error) {
	start := time.Now()
	var ts int64
	if err := a.call(ctx, http.MethodGet, "/api/v1/timestamp", nil, &ts); err != nil {
		return 0, models.NewConnectionError(a.name, "ping", err)
	}
	return time.Since(start), nil
}

func (a *Adapter) GetBalance(ctx context.Context, currency string) (models.Balance, error) {
	var accounts []account
	path := "/api/v1/accounts?type=trade&currency=" + url.QueryEscape(currency)
	if err := a.call(ctx, http.MethodGet, path, nil, &accounts); err != nil {
		return models.Balance{}, models.NewConnectionError(a.name, "get_balance", err)
	}
	for _, acc := range accounts {
		if acc.Currency == currency {
			free, _ := strconv.ParseFloat(acc.Available, 64)
			used, _ := strconv.ParseFloat(acc.Holds, 64)
			return models.NewBalance(currency, free, used), nil
		}
	}
	return models.Balance{Currency: currency}, nil
}

func (a *Adapter) GetBalances(ctx context.Context) ([]models.Balance, error) {
	var accounts []account
	if err := a.call(ctx, http.MethodGet, "/api/v1/accounts?type=trade", nil, &accounts); err != nil {
		return nil, models.NewConnectionError(a.name, "get_balances", err)
	}
	var out []models.Balance
	for _, acc := range accounts {
		free, _ := strconv.ParseFloat(acc.Available, 64)
		used, _ := strconv.ParseFloat(acc.Holds, 64)
		if free == 0 && used == 0 {
			continue
		}
		out = append(out, models.NewBalance(acc.Currency, free, used))
	}
	return out, nil
}

type marketStats struct {
	Symbol       string `json:"symbol"`
	Buy          string `json:"buy"`
	Sell         string `json:"sell"`
	Last         string `json:"last"`
	Vol          string `json:"vol"`
	High         string `json:"high"`
	Low          string `json:"low"`
	ChangeRate   string `json:"changeRate"`
	AveragePrice string `json:"averagePrice"`
}

func (a *Adapter) GetTicker(ctx context.Context, symbol string) (*models.Ticker, error) {
	wire, err := symbols.ToVenue(venueKind, symbol)
	if err != nil {
		return nil, err
	}
	var stats marketStats
	if err := a.call(ctx, http.MethodGet, "/api/v1/market/stats?symbol="+wire, nil, &stats); err != nil {
		return nil, models.NewConnectionError(a.name, "get_ticker", err)
	}
	if stats.Symbol == "" {
		return nil, fmt.Errorf("%w: %s", models.ErrInvalidSymbol, symbol)
	}
	bid, _ := strconv.ParseFloat(stats.Buy, 64)
	ask, _ := strconv.ParseFloat(stats.Sell, 64)
	last, _ := strconv.ParseFloat(stats.Last, 64)
	volume, _ := strconv.ParseFloat(stats.Vol, 64)
	high, _ := strconv.ParseFloat(stats.High, 64)
	low, _ := strconv.ParseFloat(stats.Low, 64)
	change, _ := strconv.ParseFloat(stats.ChangeRate, 64)
	vwap, _ := strconv.ParseFloat(stats.AveragePrice, 64)
	return &models.Ticker{
		Venue:     a.name,
		Symbol:    symbol,
		Bid:       bid,
		Ask:       ask,
		Last:      last,
		Volume:    volume,
		High:      high,
		Low:       low,
		Change:    change * 100,
		VWAP:      vwap,
		Timestamp: time.Now(),
	}, nil
}

type bookResponse struct {
	Time int64      `json:"time"`
	Bids [][]string `json:"bids"`
	Asks [][]string `json:"asks"`
}

func (a *Adapter) GetOrderBook(ctx context.Context, symbol string, depth int) (*models.OrderBook, error) {
	wire, err := symbols.ToVenue(venueKind, symbol)
	if err != nil {
		return nil, err
	}
	path := "/api/v1/market/orderbook/level2_20?symbol=" + wire
	if depth > 20 {
		path = "/api/v1/market/orderbook/level2_100?symbol=" + wire
	}
	var resp bookResponse
	if err := a.call(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, models.NewConnectionError(a.name, "get_order_book", err)
	}
	book := &models.OrderBook{Venue: a.name, Symbol: symbol, Timestamp: time.UnixMilli(resp.Time)}
	book.Bids = parseLevels(resp.Bids, depth)
	book.Asks = parseLevels(resp.Asks, depth)
	return book, nil
}

func parseLevels(raw [][]string, depth int) []models.PriceLevel {
	var out []models.PriceLevel
	for _, lvl := range raw {
		if len(lvl) < 2 {
			continue
		}
		price, err := strconv.ParseFloat(lvl[0], 64)
		if err != nil {
			continue
		}
		size, err := strconv.ParseFloat(lvl[1], 64)
		if err != nil {
			continue
		}
		out = append(out, models.PriceLevel{Price: price, Size: size})
		if depth > 0 && len(out) == depth {
			break
		}
	}
	return out
}

type orderDetail struct {
	ID          string `json:"id"`
	Symbol      string `json:"symbol"`
	Type        string `json:"type"`
	Side        string `json:"side"`
	Price       string `json:"price"`
	Size        string `json:"size"`
	DealSize    string `json:"dealSize"`
	DealFunds   string `json:"dealFunds"`
	Fee         string `json:"fee"`
	FeeCurrency string `json:"feeCurrency"`
	IsActive    bool   `json:"isActive"`
	CancelExist bool   `json:"cancelExist"`
	ClientOid   string `json:"clientOid"`
	CreatedAt   int64  `json:"createdAt"`
}

// orderStatus derives the canonical status from KuCoin's flag pair.
// Anything unrecognized falls back to pending.
func (d orderDetail) orderStatus() models.OrderStatus {
	size, _ := strconv.ParseFloat(d.Size, 64)
	filled, _ := strconv.ParseFloat(d.DealSize, 64)
	switch {
	case d.IsActive && filled > 0:
		return models.StatusPartiallyFilled
	case d.IsActive:
		return models.StatusOpen
	case d.CancelExist:
		return models.StatusCancelled
	case size > 0 && filled >= size:
		return models.StatusFilled
	default:
		return models.StatusPending
	}
}

func (a *Adapter) convertOrder(d orderDetail) models.Order {
	pair, err := symbols.FromVenue(venueKind, d.Symbol)
	if err != nil {
		pair = d.Symbol
	}
	price, _ := strconv.ParseFloat(d.Price, 64)
	amount, _ := strconv.ParseFloat(d.Size, 64)
	filled, _ := strconv.ParseFloat(d.DealSize, 64)
	fee, _ := strconv.ParseFloat(d.Fee, 64)
	// Market orders report no price; derive the average from dealFunds.
	if price == 0 && filled > 0 {
		if funds, _ := strconv.ParseFloat(d.DealFunds, 64); funds > 0 {
			price = funds / filled
		}
	}
	orderType := models.OrderType(d.Type)
	switch d.Type {
	case "market":
		orderType = models.OrderTypeMarket
	case "limit":
		orderType = models.OrderTypeLimit
	case "limit_stop":
		orderType = models.OrderTypeStopLimit
	case "market_stop":
		orderType = models.OrderTypeStopLoss
	}
	return models.Order{
		ID:            d.ID,
		Venue:         a.name,
		Symbol:        pair,
		Side:          models.Side(d.Side),
		Type:          orderType,
		Price:         price,
		Amount:        amount,
		Filled:        filled,
		Status:        d.orderStatus(),
		Fee:           fee,
		FeeCurrency:   d.FeeCurrency,
		ClientOrderID: d.ClientOid,
		CreatedAt:     time.UnixMilli(d.CreatedAt),
	}
}

// Only plain market and limit orders go through /api/v1/orders; stop
// variants need the separate stop-order endpoint and are rejected here.
var orderTypeToVenue = map[models.OrderType]string{
	models.OrderTypeMarket: "market",
	models.OrderTypeLimit:  "limit",
}

// PlaceOrder performs the pre-flight balance check, then submits the
// order. Market buy cost is estimated from the current ask plus the
// configured slippage allowance.
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
	body := map[string]string{
		"clientOid": clientID,
		"side":      string(req.Side),
		"symbol":    wire,
		"type":      venueType,
		"size":      strconv.FormatFloat(req.Amount, 'f', -1, 64),
	}
	if req.Type == models.OrderTypeLimit {
		body["price"] = strconv.FormatFloat(req.Price, 'f', -1, 64)
	}

	var created struct {
		OrderID string `json:"orderId"`
	}
	if err := a.call(ctx, http.MethodPost, "/api/v1/orders", body, &created); err != nil {
		return nil, models.NewConnectionError(a.name, "place_order", err)
	}
	// Fetch the authoritative state so fills and fees are reported.
	order, err := a.GetOrder(ctx, created.OrderID, req.Symbol)
	if err != nil {
		return &models.Order{
			ID:            created.OrderID,
			Venue:         a.name,
			Symbol:        req.Symbol,
			Side:          req.Side,
			Type:          req.Type,
			Price:         price,
			Amount:        req.Amount,
			Status:        models.StatusPending,
			ClientOrderID: clientID,
			CreatedAt:     time.Now(),
		}, nil
	}
	return order, nil
}

func (a *Adapter) CancelOrder(ctx context.Context, id, symbol string) error {
	if err := a.call(ctx, http.MethodDelete, "/api/v1/orders/"+id, nil, nil); err != nil {
		return models.NewConnectionError(a.name, "cancel_order", err)
	}
	return nil
}

func (a *Adapter) GetOrder(ctx context.Context, id, symbol string) (*models.Order, error) {
	var detail orderDetail
	if err := a.call(ctx, http.MethodGet, "/api/v1/orders/"+id, nil, &detail); err != nil {
		return nil, models.NewConnectionError(a.name, "get_order", err)
	}
	order := a.convertOrder(detail)
	return &order, nil
}

type orderPage struct {
	Items []orderDetail `json:"items"`
}

func (a *Adapter) listOrders(ctx context.Context, status, symbol string, limit int) ([]models.Order, error) {
	q := url.Values{}
	q.Set("status", status)
	if symbol != "" {
		wire, err := symbols.ToVenue(venueKind, symbol)
		if err != nil {
			return nil, err
		}
		q.Set("symbol", wire)
	}
	if limit > 0 {
		q.Set("pageSize", strconv.Itoa(limit))
	}
	var page orderPage
	if err := a.call(ctx, http.MethodGet, "/api/v1/orders?"+q.Encode(), nil, &page); err != nil {
		return nil, models.NewConnectionError(a.name, "list_orders", err)
	}
	out := make([]models.Order, 0, len(page.Items))
	for _, d := range page.Items {
		out = append(out, a.convertOrder(d))
	}
	return out, nil
}

func (a *Adapter) GetOpenOrders(ctx context.Context, symbol string) ([]models.Order, error) {
	return a.listOrders(ctx, "active", symbol, 0)
}

func (a *Adapter) GetOrderHistory(ctx context.Context, symbol string, limit int) ([]models.Order, error) {
	return a.listOrders(ctx, "done", symbol, limit)
}

type fillPage struct {
	Items []struct {
		TradeID     string `json:"tradeId"`
		OrderID     string `json:"orderId"`
		Symbol      string `json:"symbol"`
		Side        string `json:"side"`
		Price       string `json:"price"`
		Size        string `json:"size"`
		Fee         string `json:"fee"`
		FeeCurrency string `json:"feeCurrency"`
		CreatedAt   int64  `json:"createdAt"`
	} `json:"items"`
}

func (a *Adapter) GetTrades(ctx context.Context, symbol string, limit int) ([]models.Trade, error) {
	q := url.Values{}
	if symbol != "" {
		wire, err := symbols.ToVenue(venueKind, symbol)
		if err != nil {
			return nil, err
		}
		q.Set("symbol", wire)
	}
	if limit > 0 {
		q.Set("pageSize", strconv.Itoa(limit))
	}
	path := "/api/v1/fills"
	if enc := q.Encode(); enc != "" {
		path += "?" + enc
	}
	var page fillPage
	if err := a.call(ctx, http.MethodGet, path, nil, &page); err != nil {
		return nil, models.NewConnectionError(a.name, "get_trades", err)
	}
	var out []models.Trade
	for _, f := range page.Items {
		pair, err := symbols.FromVenue(venueKind, f.Symbol)
		if err != nil {
			pair = f.Symbol
		}
		price, _ := strconv.ParseFloat(f.Price, 64)
		size, _ := strconv.ParseFloat(f.Size, 64)
		fee, _ := strconv.ParseFloat(f.Fee, 64)
		out = append(out, models.Trade{
			ID:          f.TradeID,
			OrderID:     f.OrderID,
			Venue:       a.name,
			Symbol:      pair,
			Side:        models.Side(f.Side),
			Price:       price,
			Amount:      size,
			Fee:         fee,
			FeeCurrency: f.FeeCurrency,
			Timestamp:   time.UnixMilli(f.CreatedAt),
		})
	}
	return out, nil
}
