// Package manager orchestrates the configured venue adapters: lifecycle,
// health monitoring, best-price routing, balance aggregation and
// cross-venue arbitrage scanning. Callers talk to the manager, never to
// adapters directly.
package manager

import (
	"context"
	"fmt"
	"sync"
	"time"

	"venueflow/config"
	"venueflow/internal/ratelimit"
	"venueflow/internal/venue"
	"venueflow/internal/venue/binance"
	"venueflow/internal/venue/kucoin"
	"venueflow/internal/venue/sim"
	"venueflow/logger"
	"venueflow/models"
)

// State is the manager lifecycle.
type State string

const (
	StateUninitialized State = "uninitialized"
	StateInitializing  State = "initializing"
	StateRunning       State = "running"
	StateShuttingDown  State = "shutting_down"
	StateStopped       State = "stopped"
)

// Archiver receives fills and opportunities for background persistence.
// It must never block the trading path.
type Archiver interface {
	RecordFill(models.Order)
	RecordOpportunity(models.ArbitrageOpportunity)
}

// registered is one venue under management: its adapter plus the
// manager-owned limiter, metrics and display caches.
type registered struct {
	adapter  venue.Adapter
	limiter  *ratelimit.Limiter
	metrics  *models.ExchangeMetrics
	cacheTTL time.Duration

	cacheMu  sync.Mutex
	tickers  map[string]*models.Ticker
	books    map[string]*models.OrderBook
	balances map[string]models.Balance

	attMu    sync.Mutex
	attempts int // consecutive failed reconnects, owned by the monitor
}

func (r *registered) reconnectAttempts() int {
	r.attMu.Lock()
	defer r.attMu.Unlock()
	return r.attempts
}

func (r *registered) bumpReconnectAttempts() int {
	r.attMu.Lock()
	defer r.attMu.Unlock()
	r.attempts++
	return r.attempts
}

func (r *registered) resetReconnectAttempts() {
	r.attMu.Lock()
	r.attempts = 0
	r.attMu.Unlock()
}

type Manager struct {
	cfg *config.Config
	log *logger.Log

	mu     sync.RWMutex
	state  State
	venues map[string]*registered

	limiters *ratelimit.Registry
	backoff  venue.Backoff
	archive  Archiver

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	lastScan time.Time
	scanMu   sync.Mutex
}

func New(cfg *config.Config, log *logger.Log) *Manager {
	return &Manager{
		cfg:      cfg,
		log:      log,
		state:    StateUninitialized,
		venues:   make(map[string]*registered),
		limiters: ratelimit.NewRegistry(),
		backoff:  venue.Backoff{
			Base:        cfg.Reconnect.BaseDelay,
			Max:         cfg.Reconnect.MaxDelay,
			MaxAttempts: cfg.Reconnect.MaxAttempts,
		},
	}
}

// SetArchiver installs the background fill/opportunity sink. Must be
// called before Initialize.
func (m *Manager) SetArchiver(a Archiver) {
	m.archive = a
}

func (m *Manager) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

func (m *Manager) setState(s State) {
	m.mu.Lock()
	m.state = s
	m.mu.Unlock()
}

// buildAdapter selects the adapter implementation per the venue's
// configured driver.
func buildAdapter(vc config.VenueConfig) (venue.Adapter, error) {
	switch vc.Driver {
	case "binance":
		return binance.New(vc), nil
	case "kucoin":
		return kucoin.New(vc), nil
	case "sim":
		return sim.New(vc), nil
	default:
		return nil, fmt.Errorf("unknown venue driver %q", vc.Driver)
	}
}

// Initialize constructs one adapter per configured venue, connects each
// and registers the ones that succeed. A venue that fails to connect is
// logged and excluded; initialization only fails when no venue at all is
// usable. On success the monitor and arbitrage loops start.
func (m *Manager) Initialize(ctx context.Context) error {
	m.mu.Lock()
	if m.state != StateUninitialized {
		m.mu.Unlock()
		return fmt.Errorf("manager already initialized (state %s)", m.state)
	}
	m.state = StateInitializing
	m.mu.Unlock()

	log := m.log.WithComponent("manager")
	m.ctx, m.cancel = context.WithCancel(context.Background())

	for _, vc := range m.cfg.Venues {
		adapter, err := buildAdapter(vc)
		if err != nil {
			log.WithError(err).WithFields(logger.Fields{"venue": vc.Name}).Error("adapter construction failed")
			continue
		}
		reg := &registered{
			adapter:  adapter,
			limiter:  m.limiters.Register(vc.Name, vc.RateLimit.RequestsPerSecond, vc.RateLimit.BurstSize),
			metrics:  models.NewExchangeMetrics(vc.Name),
			cacheTTL: vc.CacheTTL,
			tickers:  make(map[string]*models.Ticker),
			books:    make(map[string]*models.OrderBook),
			balances: make(map[string]models.Balance),
		}
		if err := adapter.Connect(ctx); err != nil {
			log.WithError(err).WithFields(logger.Fields{"venue": vc.Name}).Warn("venue connect failed, excluding from routing until reconnect")
			reg.metrics.RecordFailure(err)
		}
		m.mu.Lock()
		m.venues[vc.Name] = reg
		m.mu.Unlock()
		log.WithFields(logger.Fields{"venue": vc.Name, "driver": vc.Driver, "status": adapter.Status()}).Info("venue registered")
	}

	m.mu.Lock()
	if len(m.venues) == 0 {
		m.state = StateStopped
		m.mu.Unlock()
		return fmt.Errorf("no venue could be registered")
	}
	m.state = StateRunning
	m.mu.Unlock()

	m.wg.Add(1)
	go m.monitorLoop(m.ctx)
	if m.cfg.Manager.Arbitrage.Enabled {
		m.wg.Add(1)
		go m.arbitrageLoop(m.ctx)
	}
	return nil
}

// Shutdown cancels the background loops, waits for them to drain and
// disconnects every venue. In-flight adapter calls complete; no new
// calls are issued once shutdown begins.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.setState(StateShuttingDown)
	if m.cancel != nil {
		m.cancel()
	}

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		m.log.WithComponent("manager").Warn("shutdown timed out waiting for background loops")
	}

	m.mu.RLock()
	for name, reg := range m.venues {
		if err := reg.adapter.Disconnect(); err != nil {
			m.log.WithComponent("manager").WithError(err).WithFields(logger.Fields{"venue": name}).Warn("disconnect failed")
		}
	}
	m.mu.RUnlock()

	m.setState(StateStopped)
	return nil
}

// connected returns the venues currently in Connected state.
func (m *Manager) connected() map[string]*registered {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]*registered, len(m.venues))
	for name, reg := range m.venues {
		if reg.adapter.Status() == venue.StatusConnected {
			out[name] = reg
		}
	}
	return out
}

func (m *Manager) venue(name string) (*registered, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	reg, ok := m.venues[name]
	return reg, ok
}

// do wraps one adapter call: rate-limit admission, latency measurement
// and metric recording. Rate limiting waits, it never surfaces as an
// error unless the context dies first.
func (m *Manager) do(ctx context.Context, reg *registered, op string, weight int, fn func(context.Context) error) error {
	if m.State() == StateShuttingDown || m.State() == StateStopped {
		return fmt.Errorf("manager is shutting down")
	}
	if err := reg.limiter.Acquire(ctx, weight); err != nil {
		return err
	}
	start := time.Now()
	err := fn(ctx)
	latency := time.Since(start)
	if err != nil {
		reg.metrics.RecordFailure(err)
		if models.IsConnectionError(err) {
			reg.metrics.MarkDown()
		}
		return err
	}
	reg.metrics.RecordSuccess(latency)
	return nil
}
