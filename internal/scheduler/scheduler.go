// Package scheduler orchestrates the main polling trade loop.
package scheduler

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"snapback/internal/collector"
	"snapback/internal/config"
	"snapback/internal/market"
	"snapback/internal/performance"
	"snapback/internal/trader"
)

// Scheduler drives the trading cycle on a fixed interval: fetch candles,
// merge them into the cache, run the strategy per symbol, snapshot equity.
// Symbols are processed serially; a bad symbol or a bad tick is logged and
// the loop keeps going.
type Scheduler struct {
	source    market.Source
	cache     *market.Cache
	trader    *trader.Trader
	collector *collector.Collector
	tracker   *performance.Tracker
	db        *sql.DB

	symbols     []string
	granularity market.Granularity
	fetchLimit  int
	cfg         config.ScheduleConfig
}

func New(
	source market.Source,
	cache *market.Cache,
	tr *trader.Trader,
	coll *collector.Collector,
	tracker *performance.Tracker,
	db *sql.DB,
	trading config.TradingConfig,
	schedule config.ScheduleConfig,
) *Scheduler {
	return &Scheduler{
		source:      source,
		cache:       cache,
		trader:      tr,
		collector:   coll,
		tracker:     tracker,
		db:          db,
		symbols:     trading.Symbols,
		granularity: market.Granularity(trading.Granularity),
		fetchLimit:  trading.FetchLimit,
		cfg:         schedule,
	}
}

// Run starts all periodic loops and blocks until the context is cancelled.
func (s *Scheduler) Run(ctx context.Context) error {
	slog.Info("scheduler starting",
		"symbols", s.symbols,
		"granularity", s.granularity,
		"tick_interval", s.cfg.TickInterval.Duration,
		"flush_interval", s.cfg.FlushInterval.Duration,
		"report_interval", s.cfg.ReportInterval.Duration,
	)

	// Run the first cycle immediately rather than waiting a full tick.
	s.runTradingCycle(ctx)

	tickTicker := time.NewTicker(s.cfg.TickInterval.Duration)
	flushTicker := time.NewTicker(s.cfg.FlushInterval.Duration)
	reportTicker := time.NewTicker(s.cfg.ReportInterval.Duration)
	defer tickTicker.Stop()
	defer flushTicker.Stop()
	defer reportTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("scheduler shutting down")
			if err := s.trader.Flush(); err != nil {
				slog.Error("final journal flush failed", "error", err)
			}
			return ctx.Err()
		case <-tickTicker.C:
			s.runTradingCycle(ctx)
		case <-flushTicker.C:
			s.runFlush()
		case <-reportTicker.C:
			s.runPerformanceReport()
		}
	}
}

func (s *Scheduler) runTradingCycle(ctx context.Context) {
	slog.Debug("starting trading cycle")
	start := time.Now()

	// Live mode trades against the exchange's balances, never locally
	// configured cash. A failed reconciliation skips the whole cycle:
	// sizing on a stale book would place real orders against fiction.
	if err := s.trader.Reconcile(ctx, s.latestMarks()); err != nil {
		slog.Error("reconciliation failed, skipping cycle", "error", err, "backoff", s.cfg.ErrorBackoff.Duration)
		select {
		case <-ctx.Done():
		case <-time.After(s.cfg.ErrorBackoff.Duration):
		}
		return
	}

	failed := 0
	for _, symbol := range s.symbols {
		if ctx.Err() != nil {
			return
		}
		if err := s.processSymbol(ctx, symbol); err != nil {
			failed++
			slog.Error("symbol cycle failed", "symbol", symbol, "error", err)
		}
	}

	// An all-failed cycle usually means the exchange or network is down.
	// Back off before the tickers fire again so we do not hammer it.
	if failed == len(s.symbols) && len(s.symbols) > 0 {
		slog.Warn("every symbol failed this cycle, backing off", "backoff", s.cfg.ErrorBackoff.Duration)
		select {
		case <-ctx.Done():
			return
		case <-time.After(s.cfg.ErrorBackoff.Duration):
		}
	}

	s.snapshotEquity(ctx)
	slog.Debug("trading cycle complete", "duration", time.Since(start), "failed_symbols", failed)
}

func (s *Scheduler) processSymbol(ctx context.Context, symbol string) error {
	series, err := s.source.GetBarData(ctx, symbol, s.granularity, s.fetchLimit)
	if err != nil {
		return err
	}
	if len(series) == 0 {
		slog.Warn("no candles fetched, skipping symbol", "symbol", symbol)
		return nil
	}

	merged := s.cache.Merge(symbol, series)
	slog.Debug("candles merged", "symbol", symbol, "fetched", len(series), "merged", merged)

	if s.collector != nil {
		if err := s.collector.Store(symbol, series); err != nil {
			// History persistence is best effort; trading continues.
			slog.Error("candle store failed", "symbol", symbol, "error", err)
		}
	}

	return s.trader.ExecuteStrategy(ctx, symbol, s.cache.Get(symbol))
}

func (s *Scheduler) runFlush() {
	if err := s.trader.Flush(); err != nil {
		slog.Error("journal flush failed", "error", err)
	}
}

func (s *Scheduler) runPerformanceReport() {
	report, err := s.tracker.Generate()
	if err != nil {
		slog.Error("performance report failed", "error", err)
		return
	}
	performance.LogReport(report)
}

// latestMarks returns the latest cached close per symbol. Symbols with no
// cached candles yet are absent from the map.
func (s *Scheduler) latestMarks() map[string]float64 {
	marks := make(map[string]float64, len(s.symbols))
	for _, symbol := range s.symbols {
		if last, ok := s.cache.Get(symbol).Last(); ok {
			marks[symbol] = last.Close
		}
	}
	return marks
}

// snapshotEquity records cash and marked holdings after each cycle.
func (s *Scheduler) snapshotEquity(ctx context.Context) {
	total, err := s.trader.TotalValue(ctx, s.latestMarks())
	if err != nil {
		slog.Error("total value computation failed", "error", err)
		return
	}

	cash := s.trader.Portfolio().Cash
	_, err = s.db.Exec(`
		INSERT INTO equity_snapshots (cash, holdings_value, total_value)
		VALUES (?, ?, ?)`,
		cash, total-cash, total,
	)
	if err != nil {
		slog.Error("equity snapshot failed", "error", err)
		return
	}

	slog.Info("portfolio valued", "cash", cash, "total_value", total)
}
