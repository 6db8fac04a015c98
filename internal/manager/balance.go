package manager

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"venueflow/logger"
	"venueflow/models"
)

// AggregatedBalance is the total holding of one currency across venues,
// with the per-venue breakdown attached.
type AggregatedBalance struct {
	Currency string             `json:"currency"`
	Total    float64            `json:"total"`
	Free     float64            `json:"free"`
	Used     float64            `json:"used"`
	ByVenue  map[string]float64 `json:"by_venue"`
}

// GetAggregatedBalance queries every connected venue concurrently and
// sums the balances by currency, refreshing the per-venue balance cache
// as a side effect. A venue failure degrades the result; when every
// venue fails the call returns an explicit error so "no money anywhere"
// is never confused with "could not reach any venue".
func (m *Manager) GetAggregatedBalance(ctx context.Context) (map[string]AggregatedBalance, error) {
	venues := m.connected()
	if len(venues) == 0 {
		return nil, fmt.Errorf("%w: no connected venues", models.ErrNotConnected)
	}

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		agg      = make(map[string]AggregatedBalance)
		failures int
	)
	for name, reg := range venues {
		wg.Add(1)
		go func(name string, reg *registered) {
			defer wg.Done()
			var balances []models.Balance
			err := m.do(ctx, reg, "get_balances", 2, func(ctx context.Context) error {
				var err error
				balances, err = reg.adapter.GetBalances(ctx)
				return err
			})
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				failures++
				m.log.WithComponent("manager-balance").WithError(err).WithFields(logger.Fields{"venue": name}).Warn("balance fetch failed")
				return
			}
			for _, b := range balances {
				reg.cacheBalance(b)
				cur := agg[b.Currency]
				if cur.ByVenue == nil {
					cur.Currency = b.Currency
					cur.ByVenue = make(map[string]float64)
				}
				cur.Total += b.Total
				cur.Free += b.Free
				cur.Used += b.Used
				cur.ByVenue[name] += b.Total
				agg[b.Currency] = cur
			}
		}(name, reg)
	}
	wg.Wait()

	if failures == len(venues) {
		return nil, fmt.Errorf("balance aggregation failed: all %d venues unreachable", len(venues))
	}
	return agg, nil
}

// RebalanceFunds compares each venue's share of every currency against
// the target allocation (fractions per currency per venue) and proposes
// transfers for deviations exceeding the configured threshold fraction
// of the currency's total. It only computes proposals; moving funds is
// out of scope.
func (m *Manager) RebalanceFunds(ctx context.Context, targets map[string]map[string]float64) ([]models.TransferProposal, error) {
	agg, err := m.GetAggregatedBalance(ctx)
	if err != nil {
		return nil, err
	}
	threshold := m.cfg.Manager.RebalanceThreshold

	var proposals []models.TransferProposal
	for currency, venueTargets := range targets {
		holding, ok := agg[currency]
		if !ok || holding.Total <= 0 {
			continue
		}

		// surplus venues give, deficit venues receive
		type delta struct {
			venue  string
			amount float64 // positive = surplus
		}
		var deltas []delta
		for venueName, targetFrac := range venueTargets {
			current := holding.ByVenue[venueName]
			want := holding.Total * targetFrac
			diff := current - want
			if abs(diff) > holding.Total*threshold {
				deltas = append(deltas, delta{venue: venueName, amount: diff})
			}
		}
		sort.Slice(deltas, func(i, j int) bool { return deltas[i].amount > deltas[j].amount })

		i, j := 0, len(deltas)-1
		for i < j {
			give, take := &deltas[i], &deltas[j]
			if give.amount <= 0 || take.amount >= 0 {
				break
			}
			move := min(give.amount, -take.amount)
			proposals = append(proposals, models.TransferProposal{
				Currency:  currency,
				FromVenue: give.venue,
				ToVenue:   take.venue,
				Amount:    move,
			})
			give.amount -= move
			take.amount += move
			if give.amount == 0 {
				i++
			}
			if take.amount == 0 {
				j--
			}
		}
	}

	for _, p := range proposals {
		m.log.WithComponent("manager-balance").WithFields(logger.Fields{
			"currency": p.Currency, "from": p.FromVenue, "to": p.ToVenue, "amount": p.Amount,
		}).Info("transfer proposed")
	}
	return proposals, nil
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
