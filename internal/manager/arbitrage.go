package manager

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"venueflow/logger"
	"venueflow/models"
)

const arbDepthLevels = 5

// ScanArbitrage fetches tickers for each symbol across all connected
// venues and reports every ordered venue pair whose fee-adjusted spread
// exceeds the configured minimum profit fraction. Tradable amounts are
// bounded by top-of-book depth on both legs and by available balances.
// Results are sorted by estimated absolute profit, descending.
func (m *Manager) ScanArbitrage(ctx context.Context, symbols []string) ([]models.ArbitrageOpportunity, error) {
	venues := m.connected()
	if len(venues) < 2 {
		return nil, nil
	}
	logger.IncrementArbScan()

	var out []models.ArbitrageOpportunity
	for _, symbol := range symbols {
		tickers := m.fetchTickers(ctx, venues, symbol)
		if len(tickers) < 2 {
			continue
		}
		for buyName, buyTk := range tickers {
			for sellName, sellTk := range tickers {
				if buyName == sellName {
					continue
				}
				opp := m.evaluatePair(ctx, venues, symbol, buyName, buyTk, sellName, sellTk)
				if opp != nil {
					out = append(out, *opp)
				}
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EstimatedProfit > out[j].EstimatedProfit })
	return out, nil
}

// fetchTickers grabs one ticker per venue concurrently; venues that fail
// are skipped.
func (m *Manager) fetchTickers(ctx context.Context, venues map[string]*registered, symbol string) map[string]*models.Ticker {
	var (
		wg sync.WaitGroup
		mu sync.Mutex
	)
	tickers := make(map[string]*models.Ticker, len(venues))
	for name, reg := range venues {
		wg.Add(1)
		go func(name string, reg *registered) {
			defer wg.Done()
			var tk *models.Ticker
			err := m.do(ctx, reg, "get_ticker", 1, func(ctx context.Context) error {
				var err error
				tk, err = reg.adapter.GetTicker(ctx, symbol)
				return err
			})
			if err != nil || tk == nil || tk.Bid <= 0 || tk.Ask <= 0 {
				return
			}
			logger.IncrementTickerRead()
			reg.cacheTicker(tk)
			mu.Lock()
			tickers[name] = tk
			mu.Unlock()
		}(name, reg)
	}
	wg.Wait()
	return tickers
}

// evaluatePair checks one ordered (buy venue, sell venue) combination.
// effective_buy = ask x (1+fee), effective_sell = bid x (1-fee); the
// profit fraction is their fee-adjusted spread.
func (m *Manager) evaluatePair(ctx context.Context, venues map[string]*registered, symbol, buyName string, buyTk *models.Ticker, sellName string, sellTk *models.Ticker) *models.ArbitrageOpportunity {
	buyReg := venues[buyName]
	sellReg := venues[sellName]

	effectiveBuy := buyTk.Ask * (1 + buyReg.adapter.TakerFee())
	effectiveSell := sellTk.Bid * (1 - sellReg.adapter.TakerFee())
	if effectiveBuy <= 0 {
		return nil
	}
	profit := (effectiveSell - effectiveBuy) / effectiveBuy
	if profit < m.cfg.Manager.Arbitrage.MinProfit {
		return nil
	}

	maxAmount := m.boundAmount(ctx, buyReg, sellReg, symbol, buyTk.Ask)
	if maxAmount <= 0 {
		return nil
	}
	return &models.ArbitrageOpportunity{
		Symbol:          symbol,
		BuyVenue:        buyName,
		SellVenue:       sellName,
		BuyPrice:        buyTk.Ask,
		SellPrice:       sellTk.Bid,
		Profit:          profit,
		MaxAmount:       maxAmount,
		EstimatedProfit: (effectiveSell - effectiveBuy) * maxAmount,
		DetectedAt:      time.Now(),
	}
}

// boundAmount limits the tradable size by the top book levels on both
// legs and by the balances needed to execute them.
func (m *Manager) boundAmount(ctx context.Context, buyReg, sellReg *registered, symbol string, askPrice float64) float64 {
	depthLevels := m.cfg.Manager.Arbitrage.DepthLevels
	if depthLevels <= 0 {
		depthLevels = arbDepthLevels
	}

	buyDepth := m.sideDepth(ctx, buyReg, symbol, models.SideBuy, depthLevels)
	sellDepth := m.sideDepth(ctx, sellReg, symbol, models.SideSell, depthLevels)
	bound := min(buyDepth, sellDepth)
	if bound <= 0 {
		return 0
	}

	baseCur, quoteCur, err := splitSymbol(symbol)
	if err != nil {
		return 0
	}
	quoteBal, err := m.freeBalance(ctx, buyReg, quoteCur)
	if err != nil {
		return 0
	}
	if askPrice > 0 {
		bound = min(bound, quoteBal/askPrice)
	}
	baseBal, err := m.freeBalance(ctx, sellReg, baseCur)
	if err != nil {
		return 0
	}
	return min(bound, baseBal)
}

// sideDepth sums size across the top levels of one side; asks for the
// buy leg, bids for the sell leg.
func (m *Manager) sideDepth(ctx context.Context, reg *registered, symbol string, side models.Side, levels int) float64 {
	var book *models.OrderBook
	err := m.do(ctx, reg, "get_order_book", 2, func(ctx context.Context) error {
		var err error
		book, err = reg.adapter.GetOrderBook(ctx, symbol, levels)
		return err
	})
	if err != nil {
		return 0
	}
	logger.IncrementBookRead()
	reg.cacheBook(book)
	return book.Depth(side, levels)
}

func (m *Manager) freeBalance(ctx context.Context, reg *registered, currency string) (float64, error) {
	var bal models.Balance
	err := m.do(ctx, reg, "get_balance", 1, func(ctx context.Context) error {
		var err error
		bal, err = reg.adapter.GetBalance(ctx, currency)
		return err
	})
	if err != nil {
		return 0, err
	}
	reg.cacheBalance(bal)
	return bal.Free, nil
}

// ExecuteArbitrage places the two market legs. The legs are independent
// calls with independent failure modes: when either fails or both books
// moved, the caller receives a PartialArbitrageFailure carrying both leg
// results and must unwind manually. Realized profit is derived from the
// actual fills, not the scan-time quotes.
func (m *Manager) ExecuteArbitrage(ctx context.Context, opp models.ArbitrageOpportunity, amount float64) (float64, error) {
	if amount <= 0 || amount > opp.MaxAmount {
		return 0, fmt.Errorf("amount %v outside tradable bound %v", amount, opp.MaxAmount)
	}

	var (
		wg        sync.WaitGroup
		buyOrder  *models.Order
		sellOrder *models.Order
		buyErr    error
		sellErr   error
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		buyOrder, buyErr = m.RouteOrder(ctx, models.OrderRequest{
			Symbol: opp.Symbol,
			Side:   models.SideBuy,
			Type:   models.OrderTypeMarket,
			Amount: amount,
		}, opp.BuyVenue)
	}()
	go func() {
		defer wg.Done()
		sellOrder, sellErr = m.RouteOrder(ctx, models.OrderRequest{
			Symbol: opp.Symbol,
			Side:   models.SideSell,
			Type:   models.OrderTypeMarket,
			Amount: amount,
		}, opp.SellVenue)
	}()
	wg.Wait()

	if buyErr != nil || sellErr != nil {
		return 0, &models.PartialArbitrageFailure{
			Opportunity: opp,
			BuyOrder:    buyOrder,
			SellOrder:   sellOrder,
			BuyErr:      buyErr,
			SellErr:     sellErr,
		}
	}

	realized := sellOrder.Filled*sellOrder.Price - buyOrder.Filled*buyOrder.Price
	if realized < 0 {
		// Both legs filled but the books moved against us between scan
		// and execution. Same recovery path as a failed leg.
		return realized, &models.PartialArbitrageFailure{
			Opportunity: opp,
			BuyOrder:    buyOrder,
			SellOrder:   sellOrder,
		}
	}
	m.log.WithComponent("manager-arbitrage").WithFields(logger.Fields{
		"symbol": opp.Symbol, "buy_venue": opp.BuyVenue, "sell_venue": opp.SellVenue,
		"amount": amount, "realized_profit": realized,
	}).Info("arbitrage executed")
	return realized, nil
}

// arbitrageLoop periodically rescans the configured watch list and logs
// the top opportunities. Scans are spaced by at least the minimum
// interval even when the configured interval is shorter.
func (m *Manager) arbitrageLoop(ctx context.Context) {
	defer m.wg.Done()
	log := m.log.WithComponent("manager-arbitrage")

	interval := m.cfg.Manager.Arbitrage.ScanInterval
	if interval < 5*time.Second {
		interval = 5 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		m.scanMu.Lock()
		if since := time.Since(m.lastScan); since < 5*time.Second {
			m.scanMu.Unlock()
			continue
		}
		m.lastScan = time.Now()
		m.scanMu.Unlock()

		opps, err := m.ScanArbitrage(ctx, m.cfg.Manager.Arbitrage.Symbols)
		if err != nil {
			log.WithError(err).Warn("arbitrage scan failed")
			continue
		}
		for i, opp := range opps {
			if i >= 3 {
				break
			}
			log.WithFields(logger.Fields{
				"symbol": opp.Symbol, "buy_venue": opp.BuyVenue, "sell_venue": opp.SellVenue,
				"profit_pct": opp.Profit * 100, "max_amount": opp.MaxAmount,
				"estimated_profit": opp.EstimatedProfit,
			}).Info("arbitrage opportunity")
			if m.archive != nil {
				m.archive.RecordOpportunity(opp)
			}
		}
	}
}
