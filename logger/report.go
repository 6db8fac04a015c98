package logger

import (
	"context"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/mem"
	gnet "github.com/shirou/gopsutil/v3/net"

	"github.com/aws/aws-sdk-go-v2/aws"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
)

type streamStat struct {
	messages int64
	bytes    int64
}

var (
	errorsVenue     int64
	errorsManager   int64
	warnsVenue      int64
	warnsManager    int64
	ordersPlaced    int64
	ordersRejected  int64
	tickerReads     int64
	bookReads       int64
	arbScans        int64
	reconnects      int64
	archiveUploads  int64
	streams         sync.Map // map[string]*streamStat
)

func recordWarn(component string) {
	if strings.Contains(component, "manager") {
		atomic.AddInt64(&warnsManager, 1)
	} else if strings.Contains(component, "venue") || strings.Contains(component, "adapter") {
		atomic.AddInt64(&warnsVenue, 1)
	}
}

func recordError(component string) {
	if strings.Contains(component, "manager") {
		atomic.AddInt64(&errorsManager, 1)
	} else if strings.Contains(component, "venue") || strings.Contains(component, "adapter") {
		atomic.AddInt64(&errorsVenue, 1)
	}
}

func IncrementOrderPlaced() {
	atomic.AddInt64(&ordersPlaced, 1)
}

func IncrementOrderRejected() {
	atomic.AddInt64(&ordersRejected, 1)
}

func IncrementTickerRead() {
	atomic.AddInt64(&tickerReads, 1)
}

func IncrementBookRead() {
	atomic.AddInt64(&bookReads, 1)
}

func IncrementArbScan() {
	atomic.AddInt64(&arbScans, 1)
}

func IncrementReconnect() {
	atomic.AddInt64(&reconnects, 1)
}

func IncrementArchiveUpload(size int64) {
	atomic.AddInt64(&archiveUploads, 1)
	recordStream("archive_upload", int(size))
}

// RecordStreamMessage tracks a streaming update pushed through a
// subscription channel.
func RecordStreamMessage(name string, size int) {
	recordStream(name, size)
}

func recordStream(name string, size int) {
	v, _ := streams.LoadOrStore(name, &streamStat{})
	cs := v.(*streamStat)
	atomic.AddInt64(&cs.messages, 1)
	atomic.AddInt64(&cs.bytes, int64(size))
}

func startReport(ctx context.Context, log *Log, interval time.Duration) {
	ticker := time.NewTicker(interval)
	go func() {
		for {
			select {
			case <-ctx.Done():
				ticker.Stop()
				return
			case <-ticker.C:
				logReport(ctx, log)
			}
		}
	}()
}

// StartReport begins periodic logging of system and stream statistics.
// It exposes the internal startReport function for use by other packages.
func StartReport(ctx context.Context, log *Log, interval time.Duration) {
	startReport(ctx, log, interval)
}

func logReport(ctx context.Context, log *Log) {
	cpuPercent, _ := cpu.Percent(0, false)
	memStats, _ := mem.VirtualMemory()
	diskStats, _ := disk.Usage("/")
	netStats, _ := gnet.IOCounters(false)
	streamData := map[string]map[string]int64{}
	streams.Range(func(k, v any) bool {
		name := k.(string)
		cs := v.(*streamStat)
		streamData[name] = map[string]int64{
			"messages": atomic.LoadInt64(&cs.messages),
			"bytes":    atomic.LoadInt64(&cs.bytes),
		}
		return true
	})

	cpuPct := 0.0
	if len(cpuPercent) > 0 {
		cpuPct = cpuPercent[0]
	}

	bytesSent := uint64(0)
	bytesRecv := uint64(0)
	if len(netStats) > 0 {
		bytesSent = netStats[0].BytesSent
		bytesRecv = netStats[0].BytesRecv
	}

	fields := Fields{
		"errors_venue":    atomic.LoadInt64(&errorsVenue),
		"errors_manager":  atomic.LoadInt64(&errorsManager),
		"warns_venue":     atomic.LoadInt64(&warnsVenue),
		"warns_manager":   atomic.LoadInt64(&warnsManager),
		"orders_placed":   atomic.LoadInt64(&ordersPlaced),
		"orders_rejected": atomic.LoadInt64(&ordersRejected),
		"ticker_reads":    atomic.LoadInt64(&tickerReads),
		"book_reads":      atomic.LoadInt64(&bookReads),
		"arb_scans":       atomic.LoadInt64(&arbScans),
		"reconnects":      atomic.LoadInt64(&reconnects),
		"archive_uploads": atomic.LoadInt64(&archiveUploads),
		"goroutines":      runtime.NumGoroutine(),
		"cpu_percent":     cpuPct,
		"memory_mb":       int64(memStats.Used) / 1024 / 1024,
		"disk_mb":         int64(diskStats.Used) / 1024 / 1024,
		"streams":         streamData,
		"net_bytes_sent":  int64(bytesSent),
		"net_bytes_recv":  int64(bytesRecv),
	}

	log.WithComponent("report").WithFields(fields).Info("runtime report")

	var data []cwtypes.MetricDatum
	data = append(data,
		cwtypes.MetricDatum{MetricName: aws.String("Venueflow-CPUPercent"), Unit: cwtypes.StandardUnitPercent, Value: aws.Float64(cpuPct)},
		cwtypes.MetricDatum{MetricName: aws.String("Venueflow-MemoryMB"), Unit: cwtypes.StandardUnitMegabytes, Value: aws.Float64(float64(memStats.Used) / 1024 / 1024)},
		cwtypes.MetricDatum{MetricName: aws.String("Venueflow-ErrorsVenue"), Unit: cwtypes.StandardUnitCount, Value: aws.Float64(float64(atomic.LoadInt64(&errorsVenue)))},
		cwtypes.MetricDatum{MetricName: aws.String("Venueflow-ErrorsManager"), Unit: cwtypes.StandardUnitCount, Value: aws.Float64(float64(atomic.LoadInt64(&errorsManager)))},
		cwtypes.MetricDatum{MetricName: aws.String("Venueflow-OrdersPlaced"), Unit: cwtypes.StandardUnitCount, Value: aws.Float64(float64(atomic.LoadInt64(&ordersPlaced)))},
		cwtypes.MetricDatum{MetricName: aws.String("Venueflow-OrdersRejected"), Unit: cwtypes.StandardUnitCount, Value: aws.Float64(float64(atomic.LoadInt64(&ordersRejected)))},
		cwtypes.MetricDatum{MetricName: aws.String("Venueflow-TickerReads"), Unit: cwtypes.StandardUnitCount, Value: aws.Float64(float64(atomic.LoadInt64(&tickerReads)))},
		cwtypes.MetricDatum{MetricName: aws.String("Venueflow-BookReads"), Unit: cwtypes.StandardUnitCount, Value: aws.Float64(float64(atomic.LoadInt64(&bookReads)))},
		cwtypes.MetricDatum{MetricName: aws.String("Venueflow-ArbScans"), Unit: cwtypes.StandardUnitCount, Value: aws.Float64(float64(atomic.LoadInt64(&arbScans)))},
		cwtypes.MetricDatum{MetricName: aws.String("Venueflow-Reconnects"), Unit: cwtypes.StandardUnitCount, Value: aws.Float64(float64(atomic.LoadInt64(&reconnects)))},
		cwtypes.MetricDatum{MetricName: aws.String("Venueflow-ArchiveUploads"), Unit: cwtypes.StandardUnitCount, Value: aws.Float64(float64(atomic.LoadInt64(&archiveUploads)))},
		cwtypes.MetricDatum{MetricName: aws.String("Venueflow-NetBytesSent"), Unit: cwtypes.StandardUnitBytes, Value: aws.Float64(float64(bytesSent))},
		cwtypes.MetricDatum{MetricName: aws.String("Venueflow-NetBytesRecv"), Unit: cwtypes.StandardUnitBytes, Value: aws.Float64(float64(bytesRecv))},
	)

	for name, stats := range streamData {
		data = append(data,
			cwtypes.MetricDatum{
				MetricName: aws.String("Venueflow-StreamMessages"),
				Unit:       cwtypes.StandardUnitCount,
				Dimensions: []cwtypes.Dimension{{Name: aws.String("Stream"), Value: aws.String(name)}},
				Value:      aws.Float64(float64(stats["messages"])),
			},
			cwtypes.MetricDatum{
				MetricName: aws.String("Venueflow-StreamBytes"),
				Unit:       cwtypes.StandardUnitBytes,
				Dimensions: []cwtypes.Dimension{{Name: aws.String("Stream"), Value: aws.String(name)}},
				Value:      aws.Float64(float64(stats["bytes"])),
			},
		)
	}

	publishMetrics(ctx, data)
}
