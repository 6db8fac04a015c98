package models

import (
	"errors"
	"testing"
	"time"
)

func TestBalanceInvariant(t *testing.T) {
	cases := []struct {
		name    string
		balance Balance
		valid   bool
	}{
		{"derived total", NewBalance("BTC", 1.5, 0.5), true},
		{"zero", NewBalance("USDT", 0, 0), true},
		{"negative free", Balance{Currency: "BTC", Free: -1, Total: -1}, false},
		{"total mismatch", Balance{Currency: "BTC", Free: 1, Used: 1, Total: 3}, false},
	}
	for _, c := range cases {
		if err := c.balance.Validate(); (err == nil) != c.valid {
			t.Errorf("%s: Validate() = %v, want valid=%v", c.name, err, c.valid)
		}
	}
	if got := NewBalance("BTC", 1.5, 0.5).Total; got != 2.0 {
		t.Errorf("unexpected total: %f", got)
	}
}

func TestOrderRemaining(t *testing.T) {
	o := Order{Amount: 2, Filled: 0.75, Price: 100}
	if got := o.Remaining(); got != 1.25 {
		t.Errorf("Remaining() = %f, want 1.25", got)
	}
	if got := o.Cost(); got != 75 {
		t.Errorf("Cost() = %f, want 75", got)
	}
}

func TestOrderStatusTerminal(t *testing.T) {
	terminal := []OrderStatus{StatusFilled, StatusCancelled, StatusRejected, StatusExpired}
	for _, s := range terminal {
		if !s.IsTerminal() {
			t.Errorf("%s should be terminal", s)
		}
	}
	for _, s := range []OrderStatus{StatusPending, StatusOpen, StatusPartiallyFilled} {
		if s.IsTerminal() {
			t.Errorf("%s should not be terminal", s)
		}
	}
}

func TestTickerDerived(t *testing.T) {
	tk := Ticker{Bid: 49990, Ask: 50010, Timestamp: time.Now()}
	if got := tk.Mid(); got != 50000 {
		t.Errorf("Mid() = %f", got)
	}
	if got := tk.Spread(); got != 20 {
		t.Errorf("Spread() = %f", got)
	}
	if got := tk.SpreadPct(); got != 20.0/50000 {
		t.Errorf("SpreadPct() = %f", got)
	}
	if !tk.FresherThan(time.Minute) {
		t.Error("fresh ticker reported stale")
	}
}

func testBook() *OrderBook {
	return &OrderBook{
		Venue:  "sim",
		Symbol: "BTC/USDT",
		Bids: []PriceLevel{
			{Price: 100, Size: 1},
			{Price: 99, Size: 2},
			{Price: 98, Size: 3},
		},
		Asks: []PriceLevel{
			{Price: 101, Size: 1},
			{Price: 102, Size: 2},
			{Price: 103, Size: 3},
		},
		Timestamp: time.Now(),
	}
}

func TestOrderBookDepth(t *testing.T) {
	ob := testBook()
	if got := ob.Depth(SideBuy, 2); got != 3 {
		t.Errorf("ask depth(2) = %f, want 3", got)
	}
	if got := ob.Depth(SideSell, 10); got != 6 {
		t.Errorf("bid depth(10) = %f, want 6", got)
	}
	if got := ob.Spread(); got != 1 {
		t.Errorf("Spread() = %f, want 1", got)
	}
}

func TestOrderBookFillPrice(t *testing.T) {
	ob := testBook()

	// Buying 2 walks 1@101 and 1@102.
	avg, filled := ob.FillPrice(SideBuy, 2)
	if filled != 2 {
		t.Fatalf("filled = %f, want 2", filled)
	}
	if want := (101.0 + 102.0) / 2; avg != want {
		t.Errorf("avg = %f, want %f", avg, want)
	}

	// Requesting more than total depth fills what the book has.
	_, filled = ob.FillPrice(SideSell, 100)
	if filled != 6 {
		t.Errorf("filled = %f, want 6", filled)
	}

	// Empty book.
	empty := &OrderBook{}
	if avg, filled := empty.FillPrice(SideBuy, 1); avg != 0 || filled != 0 {
		t.Errorf("empty book fill = (%f, %f)", avg, filled)
	}
}

func TestRouteEffectivePrice(t *testing.T) {
	buy := Route{Side: SideBuy, Price: 100, FeeRate: 0.001, Slippage: 0.002}
	if got, want := buy.EffectivePrice(), 100*1.003; got != want {
		t.Errorf("buy effective = %f, want %f", got, want)
	}
	sell := Route{Side: SideSell, Price: 100, FeeRate: 0.001, Slippage: 0.002}
	if got, want := sell.EffectivePrice(), 100*0.997; got != want {
		t.Errorf("sell effective = %f, want %f", got, want)
	}
}

func TestConnectionErrorWrapping(t *testing.T) {
	base := errors.New("dial tcp: refused")
	err := NewConnectionError("binance", "connect", base)
	if !IsConnectionError(err) {
		t.Error("IsConnectionError(direct) = false")
	}
	wrapped := errors.Join(errors.New("outer"), err)
	if !IsConnectionError(wrapped) {
		t.Error("IsConnectionError(wrapped) = false")
	}
	if !errors.Is(err, base) {
		t.Error("Unwrap chain lost the base error")
	}
	if IsConnectionError(ErrInvalidSymbol) {
		t.Error("sentinel misclassified as connection error")
	}
}

func TestExchangeMetricsCounters(t *testing.T) {
	m := NewExchangeMetrics("sim")
	m.RecordSuccess(20 * time.Millisecond)
	m.RecordFailure(errors.New("timeout"))
	m.RecordFill(1000, 1)

	s := m.Snapshot()
	if s.Requests != 2 || s.Failures != 1 {
		t.Errorf("requests=%d failures=%d", s.Requests, s.Failures)
	}
	if s.SuccessRate != 0.5 {
		t.Errorf("success rate = %f", s.SuccessRate)
	}
	if s.TradedVolume != 1000 || s.FeesPaid != 1 {
		t.Errorf("volume=%f fees=%f", s.TradedVolume, s.FeesPaid)
	}
	if s.LastError != "timeout" {
		t.Errorf("last error = %q", s.LastError)
	}
	if s.LatencyMs != 20 {
		t.Errorf("latency = %f", s.LatencyMs)
	}
}
