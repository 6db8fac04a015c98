package symbols

import "testing"

func TestToVenue(t *testing.T) {
	tests := []struct {
		venue string
		pair  string
		want  string
	}{
		{"binance", "BTC/USDT", "BTCUSDT"},
		{"binance", "eth/usdt", "ETHUSDT"},
		{"kucoin", "BTC/USDT", "BTC-USDT"},
		{"kucoin", "eth/usdt", "ETH-USDT"},
		{"sim-a", "BTC/USDT", "BTC/USDT"},
	}
	for _, tt := range tests {
		got, err := ToVenue(tt.venue, tt.pair)
		if err != nil {
			t.Errorf("ToVenue(%s,%s) error: %v", tt.venue, tt.pair, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ToVenue(%s,%s)=%s want %s", tt.venue, tt.pair, got, tt.want)
		}
	}
}

func TestFromVenue(t *testing.T) {
	tests := []struct {
		venue string
		sym   string
		want  string
	}{
		{"binance", "BTCUSDT", "BTC/USDT"},
		{"binance", "SOLUSDC", "SOL/USDC"},
		{"kucoin", "BTC-USDT", "BTC/USDT"},
		{"kucoin", "ETH-USDT", "ETH/USDT"},
		{"sim-a", "BTC/USDT", "BTC/USDT"},
	}
	for _, tt := range tests {
		got, err := FromVenue(tt.venue, tt.sym)
		if err != nil {
			t.Errorf("FromVenue(%s,%s) error: %v", tt.venue, tt.sym, err)
			continue
		}
		if got != tt.want {
			t.Errorf("FromVenue(%s,%s)=%s want %s", tt.venue, tt.sym, got, tt.want)
		}
	}
}

func TestKucoinSpotBitcoinSymbol(t *testing.T) {
	// Spot lists bitcoin as BTC-USDT; XBT is a futures-only convention.
	wire, err := ToVenue("kucoin", "BTC/USDT")
	if err != nil {
		t.Fatalf("ToVenue failed: %v", err)
	}
	if wire != "BTC-USDT" {
		t.Fatalf("ToVenue(kucoin, BTC/USDT) = %s, want BTC-USDT", wire)
	}
	pair, err := FromVenue("kucoin", wire)
	if err != nil {
		t.Fatalf("FromVenue failed: %v", err)
	}
	if pair != "BTC/USDT" {
		t.Fatalf("FromVenue(kucoin, %s) = %s, want BTC/USDT", wire, pair)
	}
}

func TestSplitRejectsMalformed(t *testing.T) {
	for _, pair := range []string{"BTCUSDT", "BTC/", "/USDT", ""} {
		if _, _, err := Split(pair); err == nil {
			t.Errorf("Split(%q) should fail", pair)
		}
	}
}

func TestFromVenueRejectsUnknown(t *testing.T) {
	if _, err := FromVenue("binance", "XYZ"); err == nil {
		t.Errorf("expected error for unsplittable symbol")
	}
	if _, err := FromVenue("kucoin", "BTCUSDT"); err == nil {
		t.Errorf("expected error for dashless kucoin symbol")
	}
}
