package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"snapback/internal/backtest"
	"snapback/internal/coinbase"
	"snapback/internal/collector"
	"snapback/internal/config"
	"snapback/internal/db"
	"snapback/internal/execution"
	"snapback/internal/journal"
	"snapback/internal/market"
	"snapback/internal/performance"
	"snapback/internal/portfolio"
	"snapback/internal/risk"
	"snapback/internal/scheduler"
	"snapback/internal/strategy"
	"snapback/internal/trader"
)

func main() {
	configPath := flag.String("config", "config.toml", "Path to the TOML config file")
	backtestMode := flag.Bool("backtest", false, "Replay stored candles instead of trading")
	backtestFrom := flag.String("from", "", "Backtest start date (YYYY-MM-DD)")
	backtestTo := flag.String("to", "", "Backtest end date (YYYY-MM-DD)")
	backtestBalance := flag.Float64("balance", 0, "Starting balance for the backtest (defaults to trading.start_cash)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if *backtestMode {
		cfg.Trading.Mode = config.ModeBacktest
		if *backtestBalance > 0 {
			cfg.Trading.StartCash = *backtestBalance
		}
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "error", err)
		os.Exit(1)
	}

	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel(cfg.General.LogLevel),
	})))

	slog.Info("snapback starting", "mode", cfg.Trading.Mode, "symbols", cfg.Trading.Symbols)

	database, err := db.Open(cfg.General.DBPath)
	if err != nil {
		slog.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer database.Close()

	if err := db.Migrate(database); err != nil {
		slog.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}
	slog.Info("database initialized", "path", cfg.General.DBPath)

	strat, err := buildStrategy(cfg)
	if err != nil {
		slog.Error("failed to build strategy", "error", err)
		os.Exit(1)
	}
	slog.Info("strategy active", "strategy", strat.Name())

	sinks := []journal.Sink{journal.NewSQLiteSink(database)}
	if cfg.General.TradeLogCSV != "" {
		csvSink, err := journal.NewCSVSink(cfg.General.TradeLogCSV)
		if err != nil {
			slog.Error("failed to open trade log csv", "error", err)
			os.Exit(1)
		}
		sinks = append(sinks, csvSink)
	}
	sink := journal.NewMulti(sinks...)
	defer sink.Close()

	client := coinbase.NewClient(cfg.Exchange.BaseURL, cfg.Exchange.APIKey, cfg.Exchange.APISecret)
	coll := collector.New(database, market.Granularity(cfg.Trading.Granularity))

	opts := trader.Options{
		Mode:           cfg.Trading.Mode,
		Strategy:       strat,
		Portfolio:      portfolio.New(cfg.Trading.StartCash),
		Journal:        sink,
		CommissionRate: cfg.Trading.CommissionRate,
		CashFraction:   cfg.Trading.CashFraction,
		DustThreshold:  cfg.Trading.DustThreshold,
	}
	if cfg.Trading.Mode == config.ModeLive {
		opts.Orders = execution.NewExecutor(client)
		opts.Account = client
	}

	tr, err := trader.New(opts)
	if err != nil {
		slog.Error("failed to build trader", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		slog.Info("received signal, shutting down", "signal", sig)
		cancel()
	}()

	if cfg.Trading.Mode == config.ModeBacktest {
		lookBack := cfg.Strategy.Probabilistic.LookBack
		runner := backtest.NewRunner(coll, tr, cfg.Trading.Symbols, lookBack, cfg.Trading.StartCash)
		if _, err := runner.Run(ctx, *backtestFrom, *backtestTo); err != nil {
			slog.Error("backtest failed", "error", err)
			os.Exit(1)
		}
		return
	}

	cache := market.NewCache(cfg.Trading.MaxCachedBars)

	if cfg.Exchange.UseWS {
		// The websocket feed keeps the latest bar fresh between polls.
		feed := coinbase.NewWSFeed(cfg.Exchange.WSURL, cfg.Trading.Symbols, func(symbol string, price float64) {
			series := cache.Get(symbol)
			if last, ok := series.Last(); ok {
				last.Close = price
				if price > last.High {
					last.High = price
				}
				if price < last.Low {
					last.Low = price
				}
				cache.Merge(symbol, market.Series{last})
			}
		})
		go feed.Run(ctx)
		defer feed.Close()
	}

	tracker := performance.NewTracker(database)
	sched := scheduler.New(client, cache, tr, coll, tracker, database, cfg.Trading, cfg.Schedule)

	if err := sched.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("scheduler error", "error", err)
		os.Exit(1)
	}

	slog.Info("snapback stopped")
}

func buildStrategy(cfg *config.Config) (strategy.Strategy, error) {
	switch cfg.Strategy.Active {
	case "probabilistic":
		sizer := risk.NewSizer(cfg.Risk)
		return strategy.NewProbabilistic(cfg.Strategy.Probabilistic, sizer, cfg.Trading.DustThreshold), nil
	case "smacross":
		return strategy.NewSMACross(cfg.Strategy.SMACross, cfg.Trading.CommissionRate), nil
	default:
		return nil, errors.New("unknown strategy: " + cfg.Strategy.Active)
	}
}

func logLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
