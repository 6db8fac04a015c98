// Package writer persists execution history: order fills and detected
// arbitrage opportunities are buffered in memory, encoded as parquet and
// uploaded to S3 on a flush interval. Recording never blocks the trading
// path; when the buffer is full new records are dropped with a warning.
package writer

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/source"
	parquetwriter "github.com/xitongsys/parquet-go/writer"

	appconfig "venueflow/config"
	"venueflow/logger"
	"venueflow/models"
)

const maxBufferedRecords = 10000

// fillRecord is the parquet row for one executed order.
type fillRecord struct {
	Venue         string  `parquet:"name=venue, type=BYTE_ARRAY, convertedtype=UTF8"`
	Symbol        string  `parquet:"name=symbol, type=BYTE_ARRAY, convertedtype=UTF8"`
	Side          string  `parquet:"name=side, type=BYTE_ARRAY, convertedtype=UTF8"`
	Type          string  `parquet:"name=type, type=BYTE_ARRAY, convertedtype=UTF8"`
	OrderID       string  `parquet:"name=order_id, type=BYTE_ARRAY, convertedtype=UTF8"`
	ClientOrderID string  `parquet:"name=client_order_id, type=BYTE_ARRAY, convertedtype=UTF8"`
	Price         float64 `parquet:"name=price, type=DOUBLE"`
	Amount        float64 `parquet:"name=amount, type=DOUBLE"`
	Filled        float64 `parquet:"name=filled, type=DOUBLE"`
	Fee           float64 `parquet:"name=fee, type=DOUBLE"`
	FeeCurrency   string  `parquet:"name=fee_currency, type=BYTE_ARRAY, convertedtype=UTF8"`
	Status        string  `parquet:"name=status, type=BYTE_ARRAY, convertedtype=UTF8"`
	CreatedAt     int64   `parquet:"name=created_at, type=INT64"`
}

// opportunityRecord is the parquet row for one detected arbitrage
// opportunity.
type opportunityRecord struct {
	Symbol          string  `parquet:"name=symbol, type=BYTE_ARRAY, convertedtype=UTF8"`
	BuyVenue        string  `parquet:"name=buy_venue, type=BYTE_ARRAY, convertedtype=UTF8"`
	SellVenue       string  `parquet:"name=sell_venue, type=BYTE_ARRAY, convertedtype=UTF8"`
	BuyPrice        float64 `parquet:"name=buy_price, type=DOUBLE"`
	SellPrice       float64 `parquet:"name=sell_price, type=DOUBLE"`
	Profit          float64 `parquet:"name=profit, type=DOUBLE"`
	MaxAmount       float64 `parquet:"name=max_amount, type=DOUBLE"`
	EstimatedProfit float64 `parquet:"name=estimated_profit, type=DOUBLE"`
	DetectedAt      int64   `parquet:"name=detected_at, type=INT64"`
}

// memoryFileWriter implements the ParquetFile interface over a byte
// buffer so files are assembled in memory before upload.
type memoryFileWriter struct {
	buffer *bytes.Buffer
}

func newMemoryFileWriter() *memoryFileWriter {
	return &memoryFileWriter{buffer: &bytes.Buffer{}}
}

func (mfw *memoryFileWriter) Create(name string) (source.ParquetFile, error) {
	return mfw, nil
}

func (mfw *memoryFileWriter) Open(name string) (source.ParquetFile, error) {
	return mfw, nil
}

func (mfw *memoryFileWriter) Seek(offset int64, whence int) (int64, error) {
	return int64(mfw.buffer.Len()), nil
}

func (mfw *memoryFileWriter) Read(b []byte) (int, error) {
	return mfw.buffer.Read(b)
}

func (mfw *memoryFileWriter) Write(b []byte) (int, error) {
	return mfw.buffer.Write(b)
}

func (mfw *memoryFileWriter) Close() error {
	return nil
}

func (mfw *memoryFileWriter) Bytes() []byte {
	return mfw.buffer.Bytes()
}

// Archive buffers fills and opportunities and flushes them to S3 as
// parquet objects under time-partitioned keys.
type Archive struct {
	config   *appconfig.Config
	s3Client *s3.Client
	log      *logger.Log

	mu    sync.Mutex
	fills []fillRecord
	opps  []opportunityRecord

	runMu   sync.Mutex
	running bool
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewArchive configures the AWS SDK and builds the S3 client used for
// uploads.
func NewArchive(cfg *appconfig.Config) (*Archive, error) {
	log := logger.GetLogger()
	ctx := context.Background()

	loadOpts := []func(*config.LoadOptions) error{
		config.WithRegion(cfg.Storage.S3.Region),
	}
	if cfg.Storage.S3.AccessKeyID != "" && cfg.Storage.S3.SecretAccessKey != "" {
		loadOpts = append(loadOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(
				cfg.Storage.S3.AccessKeyID,
				cfg.Storage.S3.SecretAccessKey,
				"",
			),
		))
	}

	awsConfig, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		log.WithComponent("archive").WithError(err).Warn("failed to load AWS configuration")
		return nil, fmt.Errorf("failed to load AWS configuration: %w", err)
	}

	creds, err := awsConfig.Credentials.Retrieve(ctx)
	if err != nil || !creds.HasKeys() {
		return nil, fmt.Errorf("aws credentials not found")
	}

	s3Client := s3.NewFromConfig(awsConfig, func(o *s3.Options) {
		if cfg.Storage.S3.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Storage.S3.Endpoint)
		}
		o.UsePathStyle = cfg.Storage.S3.PathStyle
	})

	log.WithComponent("archive").WithFields(logger.Fields{
		"bucket":     cfg.Storage.S3.Bucket,
		"region":     cfg.Storage.S3.Region,
		"endpoint":   cfg.Storage.S3.Endpoint,
		"path_style": cfg.Storage.S3.PathStyle,
	}).Info("archive initialized")

	return &Archive{
		config:   cfg,
		s3Client: s3Client,
		log:      log,
	}, nil
}

// RecordFill buffers one executed order for the next flush.
func (a *Archive) RecordFill(o models.Order) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if len(a.fills) >= maxBufferedRecords {
		a.log.WithComponent("archive").WithFields(logger.Fields{"order_id": o.ID}).Warn("fill buffer full, dropping record")
		return
	}
	a.fills = append(a.fills, fillRecord{
		Venue:         o.Venue,
		Symbol:        o.Symbol,
		Side:          string(o.Side),
		Type:          string(o.Type),
		OrderID:       o.ID,
		ClientOrderID: o.ClientOrderID,
		Price:         o.Price,
		Amount:        o.Amount,
		Filled:        o.Filled,
		Fee:           o.Fee,
		FeeCurrency:   o.FeeCurrency,
		Status:        string(o.Status),
		CreatedAt:     o.CreatedAt.UnixMilli(),
	})
}

// RecordOpportunity buffers one detected opportunity for the next flush.
func (a *Archive) RecordOpportunity(op models.ArbitrageOpportunity) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if len(a.opps) >= maxBufferedRecords {
		a.log.WithComponent("archive").WithFields(logger.Fields{"symbol": op.Symbol}).Warn("opportunity buffer full, dropping record")
		return
	}
	a.opps = append(a.opps, opportunityRecord{
		Symbol:          op.Symbol,
		BuyVenue:        op.BuyVenue,
		SellVenue:       op.SellVenue,
		BuyPrice:        op.BuyPrice,
		SellPrice:       op.SellPrice,
		Profit:          op.Profit,
		MaxAmount:       op.MaxAmount,
		EstimatedProfit: op.EstimatedProfit,
		DetectedAt:      op.DetectedAt.UnixMilli(),
	})
}

// Start launches the flush worker. Flushing runs on the configured
// interval and once more on shutdown.
func (a *Archive) Start(ctx context.Context) error {
	a.runMu.Lock()
	if a.running {
		a.runMu.Unlock()
		return fmt.Errorf("archive already running")
	}
	a.running = true
	a.ctx, a.cancel = context.WithCancel(ctx)
	a.runMu.Unlock()

	interval := a.config.Storage.S3.FlushInterval
	if interval <= 0 {
		interval = time.Minute
	}

	a.wg.Add(1)
	go a.flushWorker(interval)

	a.log.WithComponent("archive").WithFields(logger.Fields{"flush_interval": interval.String()}).Info("archive started")
	return nil
}

// Stop cancels the flush worker and waits for the final flush.
func (a *Archive) Stop() {
	a.runMu.Lock()
	if !a.running {
		a.runMu.Unlock()
		return
	}
	a.running = false
	a.runMu.Unlock()

	a.cancel()
	a.wg.Wait()
	a.log.WithComponent("archive").Info("archive stopped")
}

func (a *Archive) flushWorker(interval time.Duration) {
	defer a.wg.Done()

	log := a.log.WithComponent("archive").WithFields(logger.Fields{"worker": "flush"})
	log.Info("starting flush worker")

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-a.ctx.Done():
			a.flush("shutdown")
			log.Info("flush worker stopped due to context cancellation")
			return
		case <-ticker.C:
			a.flush("interval")
		}
	}
}

// flush swaps the buffers out under the lock and uploads each non-empty
// one as its own parquet object.
func (a *Archive) flush(reason string) {
	a.mu.Lock()
	fills := a.fills
	opps := a.opps
	a.fills = nil
	a.opps = nil
	a.mu.Unlock()

	if len(fills) == 0 && len(opps) == 0 {
		return
	}

	log := a.log.WithComponent("archive").WithFields(logger.Fields{
		"fills":         len(fills),
		"opportunities": len(opps),
		"reason":        reason,
	})
	log.Info("flushing buffers")

	now := time.Now().UTC()
	if len(fills) > 0 {
		a.uploadRecords("fills", fills, now)
	}
	if len(opps) > 0 {
		a.uploadRecords("opportunities", opps, now)
	}
}

func (a *Archive) uploadRecords(kind string, records interface{}, ts time.Time) {
	log := a.log.WithComponent("archive").WithFields(logger.Fields{"kind": kind})

	var (
		data []byte
		rows int
		err  error
	)
	switch recs := records.(type) {
	case []fillRecord:
		rows = len(recs)
		data, err = createParquetFile(recs)
	case []opportunityRecord:
		rows = len(recs)
		data, err = createParquetFile(recs)
	default:
		log.Error("unknown record kind")
		return
	}
	if err != nil {
		log.WithError(err).Error("failed to create parquet file")
		return
	}

	key := a.objectKey(kind, ts)
	if err := a.uploadToS3(key, data); err != nil {
		log.WithError(err).
			WithEnv("S3_BUCKET").
			WithFields(logger.Fields{"bucket": a.config.Storage.S3.Bucket, "s3_key": key}).
			Error("failed to upload to S3")
		return
	}
	logger.IncrementArchiveUpload(int64(len(data)))
	log.WithFields(logger.Fields{
		"s3_key":    key,
		"rows":      rows,
		"file_size": len(data),
	}).Info("batch uploaded")
}

// createParquetFile encodes the rows into an in-memory snappy-compressed
// parquet file.
func createParquetFile[T any](rows []T) ([]byte, error) {
	fw := newMemoryFileWriter()
	pw, err := parquetwriter.NewParquetWriter(fw, new(T), 4)
	if err != nil {
		return nil, fmt.Errorf("failed to create parquet writer: %w", err)
	}
	pw.CompressionType = parquet.CompressionCodec_SNAPPY

	for _, row := range rows {
		if err := pw.Write(row); err != nil {
			pw.WriteStop()
			return nil, fmt.Errorf("failed to write parquet record: %w", err)
		}
	}
	if err := pw.WriteStop(); err != nil {
		return nil, fmt.Errorf("failed to finalize parquet writing: %w", err)
	}
	return fw.Bytes(), nil
}

// objectKey builds the time-partitioned key for one flushed batch.
func (a *Archive) objectKey(kind string, ts time.Time) string {
	parts := []string{}
	if a.config.Storage.S3.Prefix != "" {
		parts = append(parts, a.config.Storage.S3.Prefix)
	}
	parts = append(parts,
		kind,
		fmt.Sprintf("year=%04d", ts.Year()),
		fmt.Sprintf("month=%02d", ts.Month()),
		fmt.Sprintf("day=%02d", ts.Day()),
		fmt.Sprintf("hour=%02d", ts.Hour()),
		fmt.Sprintf("%s_%s_%s.parquet", kind, ts.Format("20060102150405"), uuid.New().String()),
	)
	return filepath.ToSlash(filepath.Join(parts...))
}

func (a *Archive) uploadToS3(key string, data []byte) error {
	input := &s3.PutObjectInput{
		Bucket:      aws.String(a.config.Storage.S3.Bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/octet-stream"),
		Metadata: map[string]string{
			"content-type":      "parquet",
			"venueflow-version": a.config.Venueflow.Version,
		},
	}
	ctx := context.WithoutCancel(a.ctx)
	_, err := a.s3Client.PutObject(ctx, input)
	return err
}
