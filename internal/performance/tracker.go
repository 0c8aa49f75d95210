package performance

import (
	"database/sql"
	"fmt"
	"math"
)

// Tracker computes performance metrics from the trades and equity tables.
type Tracker struct {
	db *sql.DB
}

func NewTracker(db *sql.DB) *Tracker {
	return &Tracker{db: db}
}

// Report contains all performance metrics.
type Report struct {
	TotalTrades   int
	ClosedTrades  int
	TotalNotional float64
	TotalPnL      float64
	ROI           float64
	WinRate       float64
	CurrentValue  float64
	PeakValue     float64
	MaxDrawdown   float64
	SymbolStats   map[string]SymbolStats
}

// SymbolStats contains per-symbol performance.
type SymbolStats struct {
	TradeCount int
	Notional   float64
	PnL        float64
	WinRate    float64
}

// Generate computes the full performance report.
func (t *Tracker) Generate() (*Report, error) {
	r := &Report{
		SymbolStats: make(map[string]SymbolStats),
	}

	if err := t.computeOverall(r); err != nil {
		return nil, fmt.Errorf("computing overall stats: %w", err)
	}
	if err := t.computeSymbolStats(r); err != nil {
		return nil, fmt.Errorf("computing symbol stats: %w", err)
	}
	if err := t.computeDrawdown(r); err != nil {
		return nil, fmt.Errorf("computing drawdown: %w", err)
	}

	return r, nil
}

func (t *Tracker) computeOverall(r *Report) error {
	row := t.db.QueryRow(`SELECT COUNT(*), COALESCE(SUM(price * quantity), 0) FROM trades`)
	if err := row.Scan(&r.TotalTrades, &r.TotalNotional); err != nil {
		return err
	}

	// A round trip closes when the sell is journaled; profit lives on the
	// sell row only.
	row = t.db.QueryRow(`
		SELECT COUNT(*), COALESCE(SUM(profit), 0)
		FROM trades WHERE action = 'sell'`)
	if err := row.Scan(&r.ClosedTrades, &r.TotalPnL); err != nil {
		return err
	}

	if r.TotalNotional > 0 {
		r.ROI = r.TotalPnL / r.TotalNotional
	}

	if r.ClosedTrades > 0 {
		row = t.db.QueryRow(`SELECT COUNT(*) FROM trades WHERE action = 'sell' AND profit > 0`)
		var wins int
		if err := row.Scan(&wins); err != nil {
			return err
		}
		r.WinRate = float64(wins) / float64(r.ClosedTrades)
	}

	return nil
}

func (t *Tracker) computeSymbolStats(r *Report) error {
	rows, err := t.db.Query(`
		SELECT symbol, COUNT(*), COALESCE(SUM(price * quantity), 0),
		       COALESCE(SUM(CASE WHEN action = 'sell' THEN profit ELSE 0 END), 0),
		       COALESCE(SUM(CASE WHEN action = 'sell' AND profit > 0 THEN 1 ELSE 0 END), 0),
		       COALESCE(SUM(CASE WHEN action = 'sell' THEN 1 ELSE 0 END), 0)
		FROM trades GROUP BY symbol`)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var name string
		var stats SymbolStats
		var wins, closed int
		if err := rows.Scan(&name, &stats.TradeCount, &stats.Notional, &stats.PnL, &wins, &closed); err != nil {
			return err
		}
		if closed > 0 {
			stats.WinRate = float64(wins) / float64(closed)
		}
		r.SymbolStats[name] = stats
	}
	return rows.Err()
}

func (t *Tracker) computeDrawdown(r *Report) error {
	rows, err := t.db.Query(`SELECT total_value FROM equity_snapshots ORDER BY snapshot_at ASC, id ASC`)
	if err != nil {
		return err
	}
	defer rows.Close()

	var peak, maxDD, last float64
	for rows.Next() {
		var value float64
		if err := rows.Scan(&value); err != nil {
			return err
		}
		last = value
		if value > peak {
			peak = value
		}
		if peak > 0 {
			dd := (peak - value) / peak
			maxDD = math.Max(maxDD, dd)
		}
	}
	r.CurrentValue = last
	r.PeakValue = peak
	r.MaxDrawdown = maxDD
	return rows.Err()
}
