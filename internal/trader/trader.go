// Package trader owns the trading state machine: it turns strategy
// decisions into portfolio mutations, journal records and, in live mode,
// exchange orders.
package trader

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"snapback/internal/config"
	"snapback/internal/id"
	"snapback/internal/journal"
	"snapback/internal/market"
	"snapback/internal/portfolio"
	"snapback/internal/strategy"
)

// OrderSubmitter places fire-and-forget exchange orders in live mode.
type OrderSubmitter interface {
	SubmitBuy(ctx context.Context, symbol string, quantity float64)
	SubmitSell(ctx context.Context, symbol string, quantity float64)
}

// AccountReader reads the exchange's view of cash and positions.
type AccountReader interface {
	GetHoldings(ctx context.Context) (cash float64, positions map[string]portfolio.Position, err error)
}

// Trader executes one strategy against one portfolio. In live mode the
// exchange is the source of truth: Reconcile overwrites the local book
// with exchange balances, keeping locally known entry prices where the
// position still exists.
type Trader struct {
	mode         config.Mode
	strat        strategy.Strategy
	pf           *portfolio.Portfolio
	sink         journal.Sink
	orders       OrderSubmitter // nil outside live mode
	account      AccountReader  // nil outside live mode
	commission   float64
	cashFraction float64
	dust         float64
}

type Options struct {
	Mode           config.Mode
	Strategy       strategy.Strategy
	Portfolio      *portfolio.Portfolio
	Journal        journal.Sink
	Orders         OrderSubmitter
	Account        AccountReader
	CommissionRate float64
	CashFraction   float64
	DustThreshold  float64
}

func New(opts Options) (*Trader, error) {
	if opts.Strategy == nil {
		return nil, fmt.Errorf("trader requires a strategy")
	}
	if opts.Portfolio == nil {
		return nil, fmt.Errorf("trader requires a portfolio")
	}
	if opts.Mode == config.ModeLive && (opts.Orders == nil || opts.Account == nil) {
		return nil, fmt.Errorf("live mode requires an order submitter and account reader")
	}
	if opts.Journal == nil {
		opts.Journal = journal.NewMulti()
	}
	return &Trader{
		mode:         opts.Mode,
		strat:        opts.Strategy,
		pf:           opts.Portfolio,
		sink:         opts.Journal,
		orders:       opts.Orders,
		account:      opts.Account,
		commission:   opts.CommissionRate,
		cashFraction: opts.CashFraction,
		dust:         opts.DustThreshold,
	}, nil
}

// Portfolio returns the live portfolio. Callers must treat it as read-only.
func (t *Trader) Portfolio() *portfolio.Portfolio { return t.pf }

// ExecuteStrategy evaluates the strategy for one symbol against the given
// candles and applies whatever it decides. This is the only place strategy
// decisions turn into trades.
func (t *Trader) ExecuteStrategy(ctx context.Context, symbol string, candles market.Series) error {
	// The fraction holds back a sliver of exchange cash so fees and price
	// drift between sizing and fill cannot bounce a live order. Paper and
	// backtest fills are deterministic, so they size on the full balance.
	available := t.pf.Cash
	if t.mode == config.ModeLive {
		available *= t.cashFraction
	}

	decision := t.strat.Evaluate(symbol, candles, t.pf, available)
	if decision.Empty() {
		return nil
	}

	latest, ok := candles.Last()
	if !ok {
		return nil
	}

	if decision.Buy != nil {
		if err := t.Buy(ctx, decision.Buy.Symbol, decision.Buy.Price, decision.Buy.Quantity, latest.Time); err != nil {
			return err
		}
	}
	if decision.Sell != nil {
		if err := t.Sell(ctx, decision.Sell.Symbol, decision.Sell.Price, decision.Sell.Reason, latest.Time); err != nil {
			return err
		}
	}
	return nil
}

// Buy debits the portfolio, journals the trade and, in live mode, submits
// the exchange order. An insufficient-cash rejection is logged and
// swallowed: it means the sizing raced a concurrent cash change, not that
// the system is broken.
func (t *Trader) Buy(ctx context.Context, symbol string, price, quantity float64, at time.Time) error {
	if quantity <= 0 || price <= 0 {
		return nil
	}
	commission := price * quantity * t.commission

	if err := t.pf.Buy(symbol, price, quantity, commission, at); err != nil {
		if errors.Is(err, portfolio.ErrInsufficientCash) {
			slog.Warn("buy skipped", "symbol", symbol, "price", price, "quantity", quantity, "cash", t.pf.Cash, "error", err)
			return nil
		}
		return fmt.Errorf("buying %s: %w", symbol, err)
	}

	slog.Info("bought",
		"symbol", symbol,
		"price", price,
		"quantity", quantity,
		"commission", commission,
		"cash_after", t.pf.Cash,
	)

	if t.mode == config.ModeLive {
		t.orders.SubmitBuy(ctx, symbol, quantity)
	}

	return t.journal(journal.TradeRecord{
		ID:         id.New(),
		ExecutedAt: at,
		Action:     journal.ActionBuy,
		Symbol:     symbol,
		Price:      price,
		Quantity:   quantity,
		Commission: commission,
		CashAfter:  t.pf.Cash,
		Strategy:   t.strat.Name(),
		Mode:       string(t.mode),
	})
}

// Sell liquidates the full position, journals the realised profit and, in
// live mode, submits the exchange order. Selling with no holdings is
// logged and swallowed for the same reason as insufficient cash on buys.
func (t *Trader) Sell(ctx context.Context, symbol string, price float64, reason string, at time.Time) error {
	if price <= 0 {
		return nil
	}

	pos := t.pf.Position(symbol)
	commission := price * pos.Quantity * t.commission

	sold, err := t.pf.Sell(symbol, price, 0, commission)
	if err != nil {
		if errors.Is(err, portfolio.ErrNoHoldings) {
			slog.Warn("sell skipped", "symbol", symbol, "error", err)
			return nil
		}
		return fmt.Errorf("selling %s: %w", symbol, err)
	}

	// Realised profit net of both legs' commission. The buy leg is
	// reconstructed from the average entry price.
	buyCommission := pos.AverageEntryPrice * sold * t.commission
	profit := (price-pos.AverageEntryPrice)*sold - buyCommission - commission

	slog.Info("sold",
		"symbol", symbol,
		"price", price,
		"quantity", sold,
		"profit", profit,
		"reason", reason,
		"cash_after", t.pf.Cash,
	)

	if t.mode == config.ModeLive {
		t.orders.SubmitSell(ctx, symbol, sold)
	}

	return t.journal(journal.TradeRecord{
		ID:         id.New(),
		ExecutedAt: at,
		Action:     journal.ActionSell,
		Symbol:     symbol,
		Price:      price,
		Quantity:   sold,
		Commission: commission,
		Profit:     &profit,
		CashAfter:  t.pf.Cash,
		Reason:     reason,
		Strategy:   t.strat.Name(),
		Mode:       string(t.mode),
	})
}

// Reconcile overwrites the local portfolio with the exchange's balances.
// Entry prices the exchange cannot report are carried over from the local
// book when the position survived; dust positions are dropped entirely.
func (t *Trader) Reconcile(ctx context.Context, marks map[string]float64) error {
	if t.mode != config.ModeLive {
		return nil
	}

	cash, remote, err := t.account.GetHoldings(ctx)
	if err != nil {
		return fmt.Errorf("reconciling holdings: %w", err)
	}

	positions := make(map[string]portfolio.Position, len(remote))
	for symbol, pos := range remote {
		if mark, ok := marks[symbol]; ok && pos.Quantity*mark < t.dust {
			continue
		}
		if local := t.pf.Position(symbol); local.Quantity > 0 {
			pos.AverageEntryPrice = local.AverageEntryPrice
			pos.EntryTime = local.EntryTime
		}
		positions[symbol] = pos
	}

	t.pf.SetHoldings(cash, positions)
	slog.Debug("reconciled with exchange", "cash", cash, "positions", len(positions))
	return nil
}

// TotalValue returns cash plus holdings marked at the given prices. In
// live mode the portfolio is reconciled against the exchange first, so
// the number reflects reality rather than local bookkeeping.
func (t *Trader) TotalValue(ctx context.Context, marks map[string]float64) (float64, error) {
	if err := t.Reconcile(ctx, marks); err != nil {
		return 0, err
	}
	return t.pf.TotalValue(marks), nil
}

// Flush forces buffered journal records to durable storage.
func (t *Trader) Flush() error {
	return t.sink.Flush()
}

func (t *Trader) journal(rec journal.TradeRecord) error {
	if err := t.sink.Append(rec); err != nil {
		// A journaling fault must not halt trading.
		slog.Error("journal append failed", "symbol", rec.Symbol, "action", rec.Action, "error", err)
	}
	return nil
}
