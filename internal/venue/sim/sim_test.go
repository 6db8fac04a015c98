package sim

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"venueflow/config"
	"venueflow/internal/venue"
	"venueflow/models"
)

// newTestAdapter builds a connected simulated venue with deterministic
// prices and no artificial failures.
func newTestAdapter(t *testing.T) *Adapter {
	t.Helper()
	a := New(config.VenueConfig{
		Name:     "sim-test",
		Driver:   "sim",
		TakerFee: 0.001,
		Sim: config.SimConfig{
			BasePrices:      map[string]float64{"BTC/USDT": 50000, "ETH/USDT": 3000},
			InitialBalances: map[string]float64{"USDT": 100000, "BTC": 2},
			Seed:            42,
		},
	})
	if err := a.Connect(context.Background()); err != nil {
		t.Fatalf("connect failed: %v", err)
	}
	return a
}

func TestConnectIdempotent(t *testing.T) {
	a := newTestAdapter(t)
	if err := a.Connect(context.Background()); err != nil {
		t.Fatalf("second connect failed: %v", err)
	}
	if a.Status() != venue.StatusConnected {
		t.Fatalf("status = %s", a.Status())
	}
}

func TestNotConnectedRejected(t *testing.T) {
	a := New(config.VenueConfig{
		Name: "sim-test", Driver: "sim",
		Sim: config.SimConfig{BasePrices: map[string]float64{"BTC/USDT": 50000}, Seed: 1},
	})
	_, err := a.GetTicker(context.Background(), "BTC/USDT")
	if !models.IsConnectionError(err) {
		t.Fatalf("expected connection error, got %v", err)
	}
}

func TestSyntheticTicker(t *testing.T) {
	a := newTestAdapter(t)
	tk, err := a.GetTicker(context.Background(), "BTC/USDT")
	if err != nil {
		t.Fatalf("GetTicker failed: %v", err)
	}
	if tk.Bid >= tk.Ask {
		t.Errorf("bid %v should be below ask %v", tk.Bid, tk.Ask)
	}
	if math.Abs(tk.Last-50000) > 100 {
		t.Errorf("last %v too far from base price", tk.Last)
	}
}

func TestInvalidSymbol(t *testing.T) {
	a := newTestAdapter(t)
	if _, err := a.GetTicker(context.Background(), "DOGE/USDT"); !errors.Is(err, models.ErrInvalidSymbol) {
		t.Fatalf("expected ErrInvalidSymbol, got %v", err)
	}
	if _, err := a.GetOrderBook(context.Background(), "BTCUSDT", 5); !errors.Is(err, models.ErrInvalidSymbol) {
		t.Fatalf("expected ErrInvalidSymbol for malformed pair, got %v", err)
	}
}

func TestSyntheticBookOrdering(t *testing.T) {
	a := newTestAdapter(t)
	book, err := a.GetOrderBook(context.Background(), "BTC/USDT", 5)
	if err != nil {
		t.Fatalf("GetOrderBook failed: %v", err)
	}
	if len(book.Bids) != 5 || len(book.Asks) != 5 {
		t.Fatalf("unexpected depth: %d bids, %d asks", len(book.Bids), len(book.Asks))
	}
	for i := 1; i < len(book.Bids); i++ {
		if book.Bids[i].Price >= book.Bids[i-1].Price {
			t.Errorf("bids not descending at level %d", i)
		}
	}
	for i := 1; i < len(book.Asks); i++ {
		if book.Asks[i].Price <= book.Asks[i-1].Price {
			t.Errorf("asks not ascending at level %d", i)
		}
	}
	bb, _ := book.BestBid()
	ba, _ := book.BestAsk()
	if bb.Price >= ba.Price {
		t.Errorf("crossed book: bid %v >= ask %v", bb.Price, ba.Price)
	}
}

func TestMarketBuyMovesLedger(t *testing.T) {
	a := newTestAdapter(t)
	ctx := context.Background()

	order, err := a.PlaceOrder(ctx, models.OrderRequest{
		Symbol: "BTC/USDT", Side: models.SideBuy, Type: models.OrderTypeMarket, Amount: 1,
	})
	if err != nil {
		t.Fatalf("PlaceOrder failed: %v", err)
	}
	if order.Status != models.StatusFilled || order.Filled != 1 {
		t.Fatalf("market order not filled synchronously: %+v", order)
	}

	usdt, _ := a.GetBalance(ctx, "USDT")
	btc, _ := a.GetBalance(ctx, "BTC")
	wantUSDT := 100000 - order.Price*order.Amount
	wantBTC := 2 + order.Amount*(1-0.001)
	if math.Abs(usdt.Free-wantUSDT) > 1e-6 {
		t.Errorf("USDT free = %v, want %v", usdt.Free, wantUSDT)
	}
	if math.Abs(btc.Free-wantBTC) > 1e-9 {
		t.Errorf("BTC free = %v, want %v", btc.Free, wantBTC)
	}

	trades, err := a.GetTrades(ctx, "BTC/USDT", 10)
	if err != nil || len(trades) != 1 {
		t.Fatalf("expected 1 trade, got %d (err %v)", len(trades), err)
	}
	if trades[0].OrderID != order.ID {
		t.Errorf("trade not linked to order")
	}
}

func TestInsufficientBalanceLeavesLedgerUntouched(t *testing.T) {
	a := newTestAdapter(t)
	ctx := context.Background()

	before, _ := a.GetBalance(ctx, "USDT")
	_, err := a.PlaceOrder(ctx, models.OrderRequest{
		Symbol: "BTC/USDT", Side: models.SideBuy, Type: models.OrderTypeMarket, Amount: 100,
	})
	if !errors.Is(err, models.ErrInsufficientBalance) {
		t.Fatalf("expected ErrInsufficientBalance, got %v", err)
	}
	after, _ := a.GetBalance(ctx, "USDT")
	if before != after {
		t.Errorf("balance changed on rejected order: %+v -> %+v", before, after)
	}
	open, _ := a.GetOpenOrders(ctx, "")
	if len(open) != 0 {
		t.Errorf("rejected order left %d open orders", len(open))
	}
}

func TestLimitReservationAndCancel(t *testing.T) {
	a := newTestAdapter(t)
	ctx := context.Background()

	order, err := a.PlaceOrder(ctx, models.OrderRequest{
		Symbol: "BTC/USDT", Side: models.SideBuy, Type: models.OrderTypeLimit, Amount: 1, Price: 49000,
	})
	if err != nil {
		t.Fatalf("PlaceOrder failed: %v", err)
	}
	if order.Status != models.StatusOpen {
		t.Fatalf("limit order status = %s, want open", order.Status)
	}

	usdt, _ := a.GetBalance(ctx, "USDT")
	if math.Abs(usdt.Used-49000) > 1e-6 || math.Abs(usdt.Free-51000) > 1e-6 {
		t.Fatalf("reservation not applied: %+v", usdt)
	}
	if err := usdt.Validate(); err != nil {
		t.Fatalf("balance invariant broken: %v", err)
	}

	if err := a.CancelOrder(ctx, order.ID, order.Symbol); err != nil {
		t.Fatalf("CancelOrder failed: %v", err)
	}
	usdt, _ = a.GetBalance(ctx, "USDT")
	if math.Abs(usdt.Free-100000) > 1e-6 || usdt.Used != 0 {
		t.Fatalf("reservation not reversed: %+v", usdt)
	}
	got, _ := a.GetOrder(ctx, order.ID, order.Symbol)
	if got.Status != models.StatusCancelled {
		t.Errorf("order status = %s, want cancelled", got.Status)
	}
	if err := a.CancelOrder(ctx, order.ID, order.Symbol); err == nil {
		t.Errorf("cancelling a terminal order should fail")
	}
}

func TestLimitSellReservesBase(t *testing.T) {
	a := newTestAdapter(t)
	ctx := context.Background()

	order, err := a.PlaceOrder(ctx, models.OrderRequest{
		Symbol: "BTC/USDT", Side: models.SideSell, Type: models.OrderTypeLimit, Amount: 1.5, Price: 52000,
	})
	if err != nil {
		t.Fatalf("PlaceOrder failed: %v", err)
	}
	btc, _ := a.GetBalance(ctx, "BTC")
	if math.Abs(btc.Used-1.5) > 1e-9 || math.Abs(btc.Free-0.5) > 1e-9 {
		t.Fatalf("base reservation not applied: %+v", btc)
	}
	if err := a.CancelOrder(ctx, order.ID, order.Symbol); err != nil {
		t.Fatalf("CancelOrder failed: %v", err)
	}
	btc, _ = a.GetBalance(ctx, "BTC")
	if math.Abs(btc.Free-2) > 1e-9 || btc.Used != 0 {
		t.Fatalf("base reservation not reversed: %+v", btc)
	}
}

func TestForcedFailure(t *testing.T) {
	a := newTestAdapter(t)
	a.ForceFailures(1)
	_, err := a.GetTicker(context.Background(), "BTC/USDT")
	if !models.IsConnectionError(err) {
		t.Fatalf("expected forced connection error, got %v", err)
	}
	// Next call succeeds again
	if _, err := a.GetTicker(context.Background(), "BTC/USDT"); err != nil {
		t.Fatalf("call after forced failure should succeed: %v", err)
	}
}

func TestSubscriptionDeliversAndCloses(t *testing.T) {
	a := newTestAdapter(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch, unsub, err := a.SubscribeTicker(ctx, "BTC/USDT")
	if err != nil {
		t.Fatalf("SubscribeTicker failed: %v", err)
	}

	select {
	case tk := <-ch:
		if tk.Symbol != "BTC/USDT" || tk.Venue != "sim-test" {
			t.Fatalf("unexpected update: %+v", tk)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("no ticker update received")
	}

	unsub()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case _, ok := <-ch:
			if !ok {
				return // closed as promised
			}
		case <-deadline:
			t.Fatalf("channel not closed after unsubscribe")
		}
	}
}

func TestSubscriptionClosesOnContext(t *testing.T) {
	a := newTestAdapter(t)
	ctx, cancel := context.WithCancel(context.Background())

	ch, _, err := a.SubscribeOrderBook(ctx, "ETH/USDT")
	if err != nil {
		t.Fatalf("SubscribeOrderBook failed: %v", err)
	}
	cancel()

	deadline := time.After(2 * time.Second)
	for {
		select {
		case _, ok := <-ch:
			if !ok {
				return
			}
		case <-deadline:
			t.Fatalf("channel not closed after context cancel")
		}
	}
}

func TestPing(t *testing.T) {
	a := newTestAdapter(t)
	latency, err := a.Ping(context.Background())
	if err != nil {
		t.Fatalf("Ping failed: %v", err)
	}
	if latency < 0 {
		t.Errorf("negative latency %s", latency)
	}
}
