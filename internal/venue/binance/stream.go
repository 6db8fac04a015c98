package binance

import (
	"context"
	"strconv"
	"sync"
	"time"

	binancesdk "github.com/adshao/go-binance/v2"

	"venueflow/internal/symbols"
	"venueflow/logger"
	"venueflow/models"
)

// forwardStream adapts the SDK's stopC/doneC pair to the channel +
// unsubscribe contract: the out channel closes after the SDK goroutine
// has fully stopped, so no sends can race the close.
func forwardStream[T any](ctx context.Context, out chan T, doneC, stopC chan struct{}) func() {
	var once sync.Once
	cancel := func() {
		once.Do(func() {
			close(stopC)
		})
	}
	go func() {
		select {
		case <-ctx.Done():
			cancel()
		case <-doneC:
		}
		<-doneC
		close(out)
	}()
	return cancel
}

func (a *Adapter) SubscribeTicker(ctx context.Context, symbol string) (<-chan *models.Ticker, func(), error) {
	wire, err := symbols.ToVenue(venueKind, symbol)
	if err != nil {
		return nil, nil, err
	}
	out := make(chan *models.Ticker, 64)
	log := logger.GetLogger().WithComponent("venue-binance")

	handler := func(event *binancesdk.WsBookTickerEvent) {
		bid, _ := strconv.ParseFloat(event.BestBidPrice, 64)
		ask, _ := strconv.ParseFloat(event.BestAskPrice, 64)
		tk := &models.Ticker{
			Venue:     a.name,
			Symbol:    symbol,
			Bid:       bid,
			Ask:       ask,
			Timestamp: time.Now(),
		}
		select {
		case out <- tk:
			logger.RecordStreamMessage(a.name+".ticker", 1)
		default:
		}
	}
	errHandler := func(err error) {
		log.WithError(err).WithFields(logger.Fields{"symbol": symbol}).Warn("ticker stream error")
	}
	doneC, stopC, err := binancesdk.WsBookTickerServe(wire, handler, errHandler)
	if err != nil {
		return nil, nil, models.NewConnectionError(a.name, "subscribe_ticker", err)
	}
	return out, forwardStream(ctx, out, doneC, stopC), nil
}

func (a *Adapter) SubscribeOrderBook(ctx context.Context, symbol string) (<-chan *models.OrderBook, func(), error) {
	wire, err := symbols.ToVenue(venueKind, symbol)
	if err != nil {
		return nil, nil, err
	}
	out := make(chan *models.OrderBook, 64)
	log := logger.GetLogger().WithComponent("venue-binance")

	handler := func(event *binancesdk.WsPartialDepthEvent) {
		book := &models.OrderBook{Venue: a.name, Symbol: symbol, Timestamp: time.Now()}
		for _, lvl := range event.Bids {
			price, qty, err := lvl.Parse()
			if err != nil {
				continue
			}
			book.Bids = append(book.Bids, models.PriceLevel{Price: price, Size: qty})
		}
		for _, lvl := range event.Asks {
			price, qty, err := lvl.Parse()
			if err != nil {
				continue
			}
			book.Asks = append(book.Asks, models.PriceLevel{Price: price, Size: qty})
		}
		select {
		case out <- book:
			logger.RecordStreamMessage(a.name+".book", 1)
		default:
		}
	}
	errHandler := func(err error) {
		log.WithError(err).WithFields(logger.Fields{"symbol": symbol}).Warn("depth stream error")
	}
	doneC, stopC, err := binancesdk.WsPartialDepthServe(wire, "20", handler, errHandler)
	if err != nil {
		return nil, nil, models.NewConnectionError(a.name, "subscribe_order_book", err)
	}
	return out, forwardStream(ctx, out, doneC, stopC), nil
}

func (a *Adapter) SubscribeTrades(ctx context.Context, symbol string) (<-chan *models.Trade, func(), error) {
	wire, err := symbols.ToVenue(venueKind, symbol)
	if err != nil {
		return nil, nil, err
	}
	out := make(chan *models.Trade, 64)
	log := logger.GetLogger().WithComponent("venue-binance")

	handler := func(event *binancesdk.WsTradeEvent) {
		price, _ := strconv.ParseFloat(event.Price, 64)
		qty, _ := strconv.ParseFloat(event.Quantity, 64)
		side := models.SideBuy
		if event.IsBuyerMaker {
			side = models.SideSell
		}
		tr := &models.Trade{
			ID:        strconv.FormatInt(event.TradeID, 10),
			Venue:     a.name,
			Symbol:    symbol,
			Side:      side,
			Price:     price,
			Amount:    qty,
			Timestamp: time.UnixMilli(event.TradeTime),
		}
		select {
		case out <- tr:
			logger.RecordStreamMessage(a.name+".trades", 1)
		default:
		}
	}
	errHandler := func(err error) {
		log.WithError(err).WithFields(logger.Fields{"symbol": symbol}).Warn("trade stream error")
	}
	doneC, stopC, err := binancesdk.WsTradeServe(wire, handler, errHandler)
	if err != nil {
		return nil, nil, models.NewConnectionError(a.name, "subscribe_trades", err)
	}
	return out, forwardStream(ctx, out, doneC, stopC), nil
}
