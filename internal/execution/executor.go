// Package execution translates trade decisions into exchange orders.
package execution

import (
	"context"
	"log/slog"
	"math"
	"strconv"
	"strings"
	"sync"
)

// OrderPlacer is the slice of the exchange client the executor needs.
type OrderPlacer interface {
	PlaceMarketOrder(ctx context.Context, symbol, side, baseSize string) error
}

// Executor submits market orders and skips symbols that keep failing.
// Orders are fire-and-forget from the trader's point of view: the local
// portfolio is already updated and the next reconciliation pass squares
// the books against the exchange.
type Executor struct {
	placer OrderPlacer

	mu       sync.Mutex
	failures map[string]int // "symbol:side" -> consecutive failure count
}

const (
	maxConsecutiveFailures = 3
	permanentBlacklist     = 100
)

func NewExecutor(placer OrderPlacer) *Executor {
	return &Executor{
		placer:   placer,
		failures: make(map[string]int),
	}
}

// SubmitBuy places a market buy for quantity of symbol.
func (e *Executor) SubmitBuy(ctx context.Context, symbol string, quantity float64) {
	e.submit(ctx, symbol, "BUY", quantity)
}

// SubmitSell places a market sell for quantity of symbol.
func (e *Executor) SubmitSell(ctx context.Context, symbol string, quantity float64) {
	e.submit(ctx, symbol, "SELL", quantity)
}

func (e *Executor) submit(ctx context.Context, symbol, side string, quantity float64) {
	baseSize := FormatBaseSize(quantity)
	if baseSize == "0" {
		slog.Warn("order quantity rounds to zero, skipping", "symbol", symbol, "side", side, "quantity", quantity)
		return
	}

	key := symbol + ":" + side
	e.mu.Lock()
	failed := e.failures[key]
	e.mu.Unlock()

	if failed >= maxConsecutiveFailures {
		slog.Info("skipping repeatedly failing order", "symbol", symbol, "side", side, "consecutive_failures", failed)
		return
	}

	slog.Info("submitting order", "symbol", symbol, "side", side, "base_size", baseSize)

	err := e.placer.PlaceMarketOrder(ctx, symbol, side, baseSize)

	e.mu.Lock()
	defer e.mu.Unlock()

	if err != nil {
		errStr := err.Error()
		// Permanently failing orders (delisted products, revoked keys) are
		// blacklisted immediately instead of burning three attempts.
		if strings.Contains(errStr, "HTTP 404") || strings.Contains(errStr, "HTTP 403") {
			e.failures[key] = permanentBlacklist
			slog.Warn("order permanently blacklisted", "symbol", symbol, "side", side, "error", err)
		} else {
			e.failures[key]++
		}
		slog.Error("order failed", "symbol", symbol, "side", side, "error", err, "consecutive_failures", e.failures[key])
		return
	}

	delete(e.failures, key)
}

// FormatBaseSize formats quantity for the exchange, rounded down to six
// decimal places so the order never exceeds what the portfolio holds.
func FormatBaseSize(quantity float64) string {
	floored := math.Floor(quantity*1e6) / 1e6
	if floored <= 0 {
		return "0"
	}
	return strconv.FormatFloat(floored, 'f', -1, 64)
}
