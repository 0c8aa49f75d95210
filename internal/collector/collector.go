// Package collector persists candle history for backtesting.
package collector

import (
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"snapback/internal/market"
)

// Collector writes fetched candles to the candles table and reads them
// back for backtest replays. The primary key makes writes idempotent, so
// overlapping fetch windows are free.
type Collector struct {
	db          *sql.DB
	granularity market.Granularity
}

func New(db *sql.DB, granularity market.Granularity) *Collector {
	return &Collector{db: db, granularity: granularity}
}

// Store upserts the series for symbol. Re-stored bars overwrite earlier
// values, so a revised still-open bar converges to its final form.
func (c *Collector) Store(symbol string, series market.Series) error {
	if len(series) == 0 {
		return nil
	}

	tx, err := c.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning candle store: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO candles (symbol, granularity, bar_time, open, high, low, close, volume)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(symbol, granularity, bar_time) DO UPDATE SET
			open = excluded.open,
			high = excluded.high,
			low = excluded.low,
			close = excluded.close,
			volume = excluded.volume`)
	if err != nil {
		return fmt.Errorf("preparing candle upsert: %w", err)
	}
	defer stmt.Close()

	for _, candle := range series {
		_, err := stmt.Exec(
			symbol, string(c.granularity), candle.Time.Unix(),
			candle.Open, candle.High, candle.Low, candle.Close, candle.Volume,
		)
		if err != nil {
			return fmt.Errorf("upserting candle %s@%d: %w", symbol, candle.Time.Unix(), err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing candle store: %w", err)
	}

	slog.Debug("candles stored", "symbol", symbol, "count", len(series))
	return nil
}

// Load returns the stored candles for symbol in [from, to], ascending.
// Zero bounds mean unbounded on that side.
func (c *Collector) Load(symbol string, from, to time.Time) (market.Series, error) {
	query := `
		SELECT bar_time, open, high, low, close, volume
		FROM candles
		WHERE symbol = ? AND granularity = ?`
	args := []any{symbol, string(c.granularity)}

	if !from.IsZero() {
		query += " AND bar_time >= ?"
		args = append(args, from.Unix())
	}
	if !to.IsZero() {
		query += " AND bar_time <= ?"
		args = append(args, to.Unix())
	}
	query += " ORDER BY bar_time ASC"

	rows, err := c.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("loading candles for %s: %w", symbol, err)
	}
	defer rows.Close()

	var series market.Series
	for rows.Next() {
		var (
			unix   int64
			candle market.Candle
		)
		if err := rows.Scan(&unix, &candle.Open, &candle.High, &candle.Low, &candle.Close, &candle.Volume); err != nil {
			return nil, fmt.Errorf("scanning candle row: %w", err)
		}
		candle.Time = time.Unix(unix, 0).UTC()
		series = append(series, candle)
	}
	return series, rows.Err()
}
