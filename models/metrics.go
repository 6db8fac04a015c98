package models

import (
	"sync"
	"time"
)

// ExchangeMetrics tracks per-venue running counters for the lifetime of
// the manager process. Updates happen on every manager-mediated call and
// are guarded internally so concurrent callers cannot corrupt counters.
type ExchangeMetrics struct {
	mu           sync.Mutex
	venue        string
	latency      time.Duration
	requests     int64
	failures     int64
	tradedVolume float64
	feesPaid     float64
	lastError    string
	lastErrorAt  time.Time
	startedAt    time.Time
	downSince    time.Time
	downtime     time.Duration
}

// NewExchangeMetrics creates the counter set for one venue.
func NewExchangeMetrics(venue string) *ExchangeMetrics {
	return &ExchangeMetrics{venue: venue, startedAt: time.Now()}
}

// RecordSuccess notes a successful call and its round-trip latency.
func (m *ExchangeMetrics) RecordSuccess(latency time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests++
	m.latency = latency
	if !m.downSince.IsZero() {
		m.downtime += time.Since(m.downSince)
		m.downSince = time.Time{}
	}
}

// RecordFailure notes a failed call.
func (m *ExchangeMetrics) RecordFailure(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests++
	m.failures++
	if err != nil {
		m.lastError = err.Error()
		m.lastErrorAt = time.Now()
	}
}

// MarkDown starts the downtime clock. Repeated calls while already down
// are no-ops.
func (m *ExchangeMetrics) MarkDown() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.downSince.IsZero() {
		m.downSince = time.Now()
	}
}

// RecordFill accumulates traded volume and fees from an executed order.
func (m *ExchangeMetrics) RecordFill(volume, fee float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tradedVolume += volume
	m.feesPaid += fee
}

// MetricsSnapshot is a copyable view of ExchangeMetrics.
type MetricsSnapshot struct {
	Venue        string        `json:"venue"`
	LatencyMs    float64       `json:"latency_ms"`
	Requests     int64         `json:"requests"`
	Failures     int64         `json:"failures"`
	SuccessRate  float64       `json:"success_rate"`
	TradedVolume float64       `json:"traded_volume"`
	FeesPaid     float64       `json:"fees_paid"`
	UptimePct    float64       `json:"uptime_pct"`
	LastError    string        `json:"last_error,omitempty"`
	LastErrorAt  time.Time     `json:"last_error_at,omitempty"`
	Since        time.Time     `json:"since"`
	Latency      time.Duration `json:"-"`
}

// Snapshot returns a consistent copy of the counters.
func (m *ExchangeMetrics) Snapshot() MetricsSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := MetricsSnapshot{
		Venue:        m.venue,
		LatencyMs:    float64(m.latency.Nanoseconds()) / 1e6,
		Latency:      m.latency,
		Requests:     m.requests,
		Failures:     m.failures,
		TradedVolume: m.tradedVolume,
		FeesPaid:     m.feesPaid,
		LastError:    m.lastError,
		LastErrorAt:  m.lastErrorAt,
		Since:        m.startedAt,
	}
	if m.requests > 0 {
		s.SuccessRate = float64(m.requests-m.failures) / float64(m.requests)
	}

	elapsed := time.Since(m.startedAt)
	down := m.downtime
	if !m.downSince.IsZero() {
		down += time.Since(m.downSince)
	}
	if elapsed > 0 {
		s.UptimePct = 100 * float64(elapsed-down) / float64(elapsed)
	}
	return s
}
