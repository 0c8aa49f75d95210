package performance

import (
	"log/slog"
)

// LogReport logs the performance report as structured JSON.
func LogReport(r *Report) {
	slog.Info("=== PERFORMANCE REPORT ===",
		"total_trades", r.TotalTrades,
		"closed_trades", r.ClosedTrades,
		"notional_traded", r.TotalNotional,
		"total_pnl", r.TotalPnL,
		"roi", r.ROI,
		"win_rate", r.WinRate,
		"current_value", r.CurrentValue,
		"peak_value", r.PeakValue,
		"max_drawdown", r.MaxDrawdown,
	)

	for name, stats := range r.SymbolStats {
		slog.Info("symbol performance",
			"symbol", name,
			"trades", stats.TradeCount,
			"notional", stats.Notional,
			"pnl", stats.PnL,
			"win_rate", stats.WinRate,
		)
	}
}
