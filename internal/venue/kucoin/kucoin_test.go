package kucoin

import (
	"context"
	"testing"

	"venueflow/models"
)

func TestHmacB64(t *testing.T) {
	// Vector verified against an independent HMAC-SHA256 implementation.
	got := hmacB64("test-secret", "1700000000000GET/api/v1/accounts")
	want := "9eOa619WY+scedBCdg8jUC0RJVKphitSmYUHu5N1Cc0="
	if got != want {
		t.Fatalf("hmacB64 = %s, want %s", got, want)
	}
	if hmacB64("other-secret", "payload") == hmacB64("test-secret", "payload") {
		t.Fatalf("signatures should differ per secret")
	}
}

func TestOrderStatusDerivation(t *testing.T) {
	tests := []struct {
		name   string
		detail orderDetail
		want   models.OrderStatus
	}{
		{"resting", orderDetail{IsActive: true, Size: "1", DealSize: "0"}, models.StatusOpen},
		{"partial", orderDetail{IsActive: true, Size: "1", DealSize: "0.4"}, models.StatusPartiallyFilled},
		{"cancelled", orderDetail{IsActive: false, CancelExist: true, Size: "1", DealSize: "0"}, models.StatusCancelled},
		{"filled", orderDetail{IsActive: false, Size: "1", DealSize: "1"}, models.StatusFilled},
		{"unknown", orderDetail{IsActive: false, Size: "0", DealSize: "0"}, models.StatusPending},
	}
	for _, tt := range tests {
		if got := tt.detail.orderStatus(); got != tt.want {
			t.Errorf("%s: orderStatus = %s, want %s", tt.name, got, tt.want)
		}
	}
}

func TestPlaceOrderRejectsStopTypes(t *testing.T) {
	a := &Adapter{name: "kucoin"}
	stops := []models.OrderType{
		models.OrderTypeStopLoss,
		models.OrderTypeStopLimit,
		models.OrderTypeTakeProfit,
	}
	for _, typ := range stops {
		_, err := a.PlaceOrder(context.Background(), models.OrderRequest{
			Symbol: "BTC/USDT",
			Side:   models.SideBuy,
			Type:   typ,
			Price:  50000,
			Amount: 0.1,
		})
		if err == nil {
			t.Errorf("%s: expected an unsupported-type error, got nil", typ)
		}
	}
}

func TestParseLevels(t *testing.T) {
	raw := [][]string{
		{"50000.1", "0.5"},
		{"49999.9", "1.25"},
		{"bad", "1"},
		{"49999.0"},
		{"49998.5", "2"},
	}
	levels := parseLevels(raw, 2)
	if len(levels) != 2 {
		t.Fatalf("expected 2 levels, got %d", len(levels))
	}
	if levels[0].Price != 50000.1 || levels[0].Size != 0.5 {
		t.Errorf("unexpected first level: %+v", levels[0])
	}

	all := parseLevels(raw, 0)
	if len(all) != 3 {
		t.Errorf("expected 3 parseable levels, got %d", len(all))
	}
}

func TestConvertOrderMarketAveragePrice(t *testing.T) {
	a := &Adapter{name: "kucoin-test"}
	order := a.convertOrder(orderDetail{
		ID:        "abc",
		Symbol:    "BTC-USDT",
		Type:      "market",
		Side:      "buy",
		Price:     "0",
		Size:      "2",
		DealSize:  "2",
		DealFunds: "100000",
		IsActive:  false,
	})
	if order.Symbol != "BTC/USDT" {
		t.Errorf("symbol not normalized: %s", order.Symbol)
	}
	if order.Price != 50000 {
		t.Errorf("average price = %v, want 50000", order.Price)
	}
	if order.Type != models.OrderTypeMarket || order.Status != models.StatusFilled {
		t.Errorf("unexpected type/status: %s/%s", order.Type, order.Status)
	}
}
