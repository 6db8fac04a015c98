package writer

import (
	"bytes"
	"strings"
	"testing"
	"time"

	appconfig "venueflow/config"
	"venueflow/logger"
	"venueflow/models"
)

func newTestArchive(t *testing.T) *Archive {
	t.Helper()
	return &Archive{
		config: &appconfig.Config{
			Venueflow: appconfig.VenueflowConfig{Name: "venueflow", Version: "test"},
			Storage: appconfig.StorageConfig{
				S3: appconfig.S3Config{Bucket: "venueflow-archive", Prefix: "archive"},
			},
		},
		log: logger.GetLogger(),
	}
}

func TestRecordFillBuffers(t *testing.T) {
	a := newTestArchive(t)
	a.RecordFill(models.Order{
		ID:     "o-1",
		Venue:  "alpha",
		Symbol: "BTC/USDT",
		Side:   models.SideBuy,
		Type:   models.OrderTypeMarket,
		Price:  50000,
		Amount: 0.5,
		Filled: 0.5,
		Status: models.StatusFilled,
	})
	a.RecordOpportunity(models.ArbitrageOpportunity{
		Symbol:    "BTC/USDT",
		BuyVenue:  "alpha",
		SellVenue: "bravo",
		Profit:    0.004,
	})

	a.mu.Lock()
	defer a.mu.Unlock()
	if len(a.fills) != 1 || len(a.opps) != 1 {
		t.Fatalf("buffered %d fills and %d opportunities", len(a.fills), len(a.opps))
	}
	if a.fills[0].OrderID != "o-1" || a.fills[0].Side != "buy" {
		t.Fatalf("fill record = %+v", a.fills[0])
	}
}

func TestBufferFullDropsRecords(t *testing.T) {
	a := newTestArchive(t)
	a.mu.Lock()
	a.fills = make([]fillRecord, maxBufferedRecords)
	a.mu.Unlock()

	a.RecordFill(models.Order{ID: "overflow"})

	a.mu.Lock()
	defer a.mu.Unlock()
	if len(a.fills) != maxBufferedRecords {
		t.Fatalf("buffer grew to %d past the cap", len(a.fills))
	}
}

func TestCreateParquetFile(t *testing.T) {
	rows := []fillRecord{
		{Venue: "alpha", Symbol: "BTC/USDT", Side: "buy", Price: 50000, Amount: 0.5, Filled: 0.5, CreatedAt: time.Now().UnixMilli()},
		{Venue: "bravo", Symbol: "BTC/USDT", Side: "sell", Price: 50500, Amount: 0.5, Filled: 0.5, CreatedAt: time.Now().UnixMilli()},
	}
	data, err := createParquetFile(rows)
	if err != nil {
		t.Fatalf("createParquetFile failed: %v", err)
	}
	if !bytes.HasPrefix(data, []byte("PAR1")) || !bytes.HasSuffix(data, []byte("PAR1")) {
		t.Fatal("output is not a parquet file")
	}
}

func TestObjectKey(t *testing.T) {
	a := newTestArchive(t)
	ts := time.Date(2026, 3, 14, 15, 9, 26, 0, time.UTC)

	key := a.objectKey("fills", ts)
	if !strings.HasPrefix(key, "archive/fills/year=2026/month=03/day=14/hour=15/") {
		t.Fatalf("key = %s", key)
	}
	if !strings.Contains(key, "fills_20260314150926_") || !strings.HasSuffix(key, ".parquet") {
		t.Fatalf("key = %s", key)
	}

	a.config.Storage.S3.Prefix = ""
	key = a.objectKey("opportunities", ts)
	if !strings.HasPrefix(key, "opportunities/year=2026/") {
		t.Fatalf("key without prefix = %s", key)
	}
}
