package kucoin

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"venueflow/internal/symbols"
	"venueflow/logger"
	"venueflow/models"
)

// wsSession is one token-gated websocket connection carrying a single
// topic subscription. Each Subscribe* call dials its own session; the
// venue allows many concurrent connections per key and this keeps
// per-stream teardown independent.
type wsSession struct {
	conn         *websocket.Conn
	pingInterval time.Duration
	done         chan struct{}
	once         sync.Once
}

// openSession fetches a bullet token, dials the granted endpoint and
// subscribes to the topic.
func (a *Adapter) openSession(ctx context.Context, topic string) (*wsSession, error) {
	tok, err := a.fetchBulletToken(ctx)
	if err != nil {
		return nil, err
	}
	srv := tok.InstanceServers[0]

	dialer := websocket.Dialer{HandshakeTimeout: 15 * time.Second}
	conn, _, err := dialer.DialContext(ctx, srv.Endpoint+"?token="+tok.Token, nil)
	if err != nil {
		return nil, fmt.Errorf("websocket dial: %w", err)
	}

	sub := map[string]any{
		"id":             uuid.NewString(),
		"type":           "subscribe",
		"topic":          topic,
		"privateChannel": false,
		"response":       true,
	}
	if err := conn.WriteJSON(sub); err != nil {
		conn.Close()
		return nil, fmt.Errorf("subscribe %s: %w", topic, err)
	}

	s := &wsSession{
		conn:         conn,
		pingInterval: time.Duration(srv.PingInterval) * time.Millisecond,
		done:         make(chan struct{}),
	}
	if s.pingInterval <= 0 {
		s.pingInterval = 20 * time.Second
	}
	go s.pingLoop()
	return s, nil
}

func (s *wsSession) close() {
	s.once.Do(func() {
		close(s.done)
		s.conn.Close()
	})
}

func (s *wsSession) pingLoop() {
	ticker := time.NewTicker(s.pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			if err := s.conn.WriteJSON(map[string]string{"id": "ping", "type": "ping"}); err != nil {
				return
			}
		}
	}
}

type wsMessage struct {
	Type    string          `json:"type"`
	Topic   string          `json:"topic"`
	Subject string          `json:"subject"`
	Data    json.RawMessage `json:"data"`
}

// runSession reads messages until the context is done or the connection
// fails, decoding each payload with decode and forwarding non-nil
// results. The out channel closes when the loop exits.
func runSession[T any](ctx context.Context, a *Adapter, s *wsSession, stream string, decode func(wsMessage) *T) (<-chan *T, func()) {
	out := make(chan *T, 64)
	log := logger.GetLogger().WithComponent("venue-kucoin")

	go func() {
		<-ctx.Done()
		s.close()
	}()
	go func() {
		defer close(out)
		defer s.close()
		for {
			_, raw, err := s.conn.ReadMessage()
			if err != nil {
				select {
				case <-s.done:
					// deliberate close, not a failure
				default:
					log.WithError(err).WithFields(logger.Fields{"stream": stream}).Warn("stream read error")
				}
				return
			}
			var msg wsMessage
			if err := json.Unmarshal(raw, &msg); err != nil || msg.Type != "message" {
				continue
			}
			update := decode(msg)
			if update == nil {
				continue
			}
			select {
			case out <- update:
				logger.RecordStreamMessage(stream, len(raw))
			default:
			}
		}
	}()
	return out, s.close
}

func (a *Adapter) SubscribeTicker(ctx context.Context, symbol string) (<-chan *models.Ticker, func(), error) {
	wire, err := symbols.ToVenue(venueKind, symbol)
	if err != nil {
		return nil, nil, err
	}
	s, err := a.openSession(ctx, "/market/ticker:"+wire)
	if err != nil {
		return nil, nil, models.NewConnectionError(a.name, "subscribe_ticker", err)
	}
	out, cancel := runSession(ctx, a, s, a.name+".ticker", func(msg wsMessage) *models.Ticker {
		var data struct {
			BestBid string `json:"bestBid"`
			BestAsk string `json:"bestAsk"`
			Price   string `json:"price"`
			Size    string `json:"size"`
			Time    int64  `json:"time"`
		}
		if err := json.Unmarshal(msg.Data, &data); err != nil {
			return nil
		}
		bid, _ := strconv.ParseFloat(data.BestBid, 64)
		ask, _ := strconv.ParseFloat(data.BestAsk, 64)
		last, _ := strconv.ParseFloat(data.Price, 64)
		return &models.Ticker{
			Venue:     a.name,
			Symbol:    symbol,
			Bid:       bid,
			Ask:       ask,
			Last:      last,
			Timestamp: time.UnixMilli(data.Time),
		}
	})
	return out, cancel, nil
}

func (a *Adapter) SubscribeOrderBook(ctx context.Context, symbol string) (<-chan *models.OrderBook, func(), error) {
	wire, err := symbols.ToVenue(venueKind, symbol)
	if err != nil {
		return nil, nil, err
	}
	s, err := a.openSession(ctx, "/spotMarket/level2Depth5:"+wire)
	if err != nil {
		return nil, nil, models.NewConnectionError(a.name, "subscribe_order_book", err)
	}
	out, cancel := runSession(ctx, a, s, a.name+".book", func(msg wsMessage) *models.OrderBook {
		var data struct {
			Bids      [][]string `json:"bids"`
			Asks      [][]string `json:"asks"`
			Timestamp int64      `json:"timestamp"`
		}
		if err := json.Unmarshal(msg.Data, &data); err != nil {
			return nil
		}
		return &models.OrderBook{
			Venue:     a.name,
			Symbol:    symbol,
			Bids:      parseLevels(data.Bids, 0),
			Asks:      parseLevels(data.Asks, 0),
			Timestamp: time.UnixMilli(data.Timestamp),
		}
	})
	return out, cancel, nil
}

func (a *Adapter) SubscribeTrades(ctx context.Context, symbol string) (<-chan *models.Trade, func(), error) {
	wire, err := symbols.ToVenue(venueKind, symbol)
	if err != nil {
		return nil, nil, err
	}
	s, err := a.openSession(ctx, "/market/match:"+wire)
	if err != nil {
		return nil, nil, models.NewConnectionError(a.name, "subscribe_trades", err)
	}
	out, cancel := runSession(ctx, a, s, a.name+".trades", func(msg wsMessage) *models.Trade {
		var data struct {
			TradeID string `json:"tradeId"`
			Side    string `json:"side"`
			Price   string `json:"price"`
			Size    string `json:"size"`
			Time    string `json:"time"` // nanoseconds as string
		}
		if err := json.Unmarshal(msg.Data, &data); err != nil {
			return nil
		}
		price, _ := strconv.ParseFloat(data.Price, 64)
		size, _ := strconv.ParseFloat(data.Size, 64)
		ns, _ := strconv.ParseInt(data.Time, 10, 64)
		return &models.Trade{
			ID:        data.TradeID,
			Venue:     a.name,
			Symbol:    symbol,
			Side:      models.Side(data.Side),
			Price:     price,
			Amount:    size,
			Timestamp: time.Unix(0, ns),
		}
	})
	return out, cancel, nil
}
