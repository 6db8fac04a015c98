package manager

import (
	"context"
	"fmt"
	"sync"
	"time"

	"venueflow/internal/venue"
	"venueflow/logger"
	"venueflow/models"
)

// VenueHealth is one venue's liveness snapshot as reported by
// HealthCheck.
type VenueHealth struct {
	Venue     string                 `json:"venue"`
	Status    venue.Status           `json:"status"`
	LatencyMs float64                `json:"latency_ms"`
	Metrics   models.MetricsSnapshot `json:"metrics"`
}

// HealthCheck reports status, latency and error counters for every
// registered venue, including ones currently down.
func (m *Manager) HealthCheck(ctx context.Context) map[string]VenueHealth {
	m.mu.RLock()
	venues := make(map[string]*registered, len(m.venues))
	for name, reg := range m.venues {
		venues[name] = reg
	}
	m.mu.RUnlock()

	out := make(map[string]VenueHealth, len(venues))
	for name, reg := range venues {
		snap := reg.metrics.Snapshot()
		out[name] = VenueHealth{
			Venue:     name,
			Status:    reg.adapter.Status(),
			LatencyMs: snap.LatencyMs,
			Metrics:   snap,
		}
	}
	return out
}

// GetLatencyReport pings every connected venue and refreshes its latency
// metric. Venues that fail the ping report a zero latency and keep their
// recorded failure.
func (m *Manager) GetLatencyReport(ctx context.Context) map[string]time.Duration {
	venues := m.connected()
	var (
		wg sync.WaitGroup
		mu sync.Mutex
	)
	out := make(map[string]time.Duration, len(venues))
	for name, reg := range venues {
		wg.Add(1)
		go func(name string, reg *registered) {
			defer wg.Done()
			var latency time.Duration
			err := m.do(ctx, reg, "ping", 1, func(ctx context.Context) error {
				var err error
				latency, err = reg.adapter.Ping(ctx)
				return err
			})
			if err != nil {
				return
			}
			mu.Lock()
			out[name] = latency
			mu.Unlock()
		}(name, reg)
	}
	wg.Wait()
	return out
}

// EmergencyCancelAll sweeps every registered venue, cancelling all open
// orders. Per-order and per-venue failures are logged and skipped; the
// sweep always visits every venue and returns the ids it managed to
// cancel, an empty list for venues it could not reach.
func (m *Manager) EmergencyCancelAll(ctx context.Context) map[string][]string {
	log := m.log.WithComponent("manager-health")

	m.mu.RLock()
	venues := make(map[string]*registered, len(m.venues))
	for name, reg := range m.venues {
		venues[name] = reg
	}
	m.mu.RUnlock()

	out := make(map[string][]string, len(venues))
	for name, reg := range venues {
		out[name] = []string{}

		var open []models.Order
		err := m.do(ctx, reg, "get_open_orders", 2, func(ctx context.Context) error {
			var err error
			open, err = reg.adapter.GetOpenOrders(ctx, "")
			return err
		})
		if err != nil {
			log.WithError(err).WithFields(logger.Fields{"venue": name}).Warn("emergency sweep could not list orders")
			continue
		}
		for _, order := range open {
			err := m.do(ctx, reg, "cancel_order", 1, func(ctx context.Context) error {
				return reg.adapter.CancelOrder(ctx, order.ID, order.Symbol)
			})
			if err != nil {
				log.WithError(err).WithFields(logger.Fields{"venue": name, "order_id": order.ID}).Warn("emergency cancel failed for order")
				continue
			}
			out[name] = append(out[name], order.ID)
		}
		log.WithFields(logger.Fields{"venue": name, "cancelled": len(out[name])}).Info("emergency sweep finished venue")
	}
	return out
}

// monitorLoop periodically health-checks the venues and triggers
// reconnection for any that dropped.
func (m *Manager) monitorLoop(ctx context.Context) {
	defer m.wg.Done()
	ticker := time.NewTicker(m.cfg.Manager.MonitorInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		m.GetLatencyReport(ctx)
		m.checkAndReconnect(ctx)
	}
}

// checkAndReconnect scans for dropped venues and runs one backoff-spaced
// reconnect attempt per venue per monitor tick. A venue that exhausts
// its attempt budget is moved to the terminal Error state and left for
// operator intervention; its metrics stay visible.
func (m *Manager) checkAndReconnect(ctx context.Context) {
	log := m.log.WithComponent("manager-health")

	m.mu.RLock()
	venues := make(map[string]*registered, len(m.venues))
	for name, reg := range m.venues {
		venues[name] = reg
	}
	m.mu.RUnlock()

	for name, reg := range venues {
		status := reg.adapter.Status()
		if status == venue.StatusConnected || status == venue.StatusConnecting {
			continue
		}
		if m.backoff.Exhausted(reg.reconnectAttempts()) {
			// terminal: no automatic retries past the budget
			continue
		}

		attempt := reg.bumpReconnectAttempts()
		delay := m.backoff.Delay(attempt)
		log.WithFields(logger.Fields{"venue": name, "attempt": attempt, "delay": delay.String()}).Info("scheduling reconnect")

		m.wg.Add(1)
		go func(name string, reg *registered, attempt int, delay time.Duration) {
			defer m.wg.Done()
			t := time.NewTimer(delay)
			defer t.Stop()
			select {
			case <-ctx.Done():
				return
			case <-t.C:
			}

			logger.IncrementReconnect()
			if err := reg.adapter.Connect(ctx); err != nil {
				log.WithError(err).WithFields(logger.Fields{"venue": name, "attempt": attempt}).Warn("reconnect failed")
				if m.backoff.Exhausted(reg.reconnectAttempts()) {
					log.WithFields(logger.Fields{"venue": name, "attempts": reg.reconnectAttempts()}).Error("reconnect budget exhausted, venue requires operator intervention")
				}
				return
			}
			reg.resetReconnectAttempts()
			log.WithFields(logger.Fields{"venue": name, "attempt": attempt}).Info("venue reconnected")
		}(name, reg, attempt, delay)
	}
}

// ReconnectVenue is the operator entry point for a venue stuck in the
// terminal Error state: it clears the attempt budget and connects.
func (m *Manager) ReconnectVenue(ctx context.Context, name string) error {
	reg, ok := m.venue(name)
	if !ok {
		return fmt.Errorf("venue %s is not configured", name)
	}
	if err := reg.adapter.Connect(ctx); err != nil {
		return err
	}
	reg.resetReconnectAttempts()
	return nil
}
