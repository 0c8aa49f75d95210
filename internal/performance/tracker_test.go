package performance

import (
	"database/sql"
	"testing"

	"snapback/internal/db"
)

func seedDB(t *testing.T) *sql.DB {
	t.Helper()
	database, err := db.Open(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { database.Close() })
	if err := db.Migrate(database); err != nil {
		t.Fatal(err)
	}
	return database
}

func insertTrade(t *testing.T, database *sql.DB, id, action, symbol string, price, quantity float64, profit *float64) {
	t.Helper()
	_, err := database.Exec(`
		INSERT INTO trades (id, executed_at, action, symbol, price, quantity, commission, profit, cash_after, strategy, mode)
		VALUES (?, '2024-03-01T12:00:00Z', ?, ?, ?, ?, 0, ?, 0, 'probabilistic', 'paper')`,
		id, action, symbol, price, quantity, profit)
	if err != nil {
		t.Fatal(err)
	}
}

func TestGenerate_EmptyDatabase(t *testing.T) {
	tracker := NewTracker(seedDB(t))

	r, err := tracker.Generate()
	if err != nil {
		t.Fatal(err)
	}
	if r.TotalTrades != 0 || r.TotalPnL != 0 || r.WinRate != 0 {
		t.Errorf("expected zeroed report, got %+v", r)
	}
}

func TestGenerate_PnLAndWinRate(t *testing.T) {
	database := seedDB(t)

	win, loss := 20.0, -5.0
	insertTrade(t, database, "t1", "buy", "BTC-USD", 100, 1, nil)
	insertTrade(t, database, "t2", "sell", "BTC-USD", 120, 1, &win)
	insertTrade(t, database, "t3", "buy", "ETH-USD", 50, 2, nil)
	insertTrade(t, database, "t4", "sell", "ETH-USD", 47.5, 2, &loss)

	r, err := NewTracker(database).Generate()
	if err != nil {
		t.Fatal(err)
	}

	if r.TotalTrades != 4 {
		t.Errorf("TotalTrades = %d, want 4", r.TotalTrades)
	}
	if r.ClosedTrades != 2 {
		t.Errorf("ClosedTrades = %d, want 2", r.ClosedTrades)
	}
	if r.TotalPnL != 15 {
		t.Errorf("TotalPnL = %v, want 15", r.TotalPnL)
	}
	if r.WinRate != 0.5 {
		t.Errorf("WinRate = %v, want 0.5", r.WinRate)
	}

	btc := r.SymbolStats["BTC-USD"]
	if btc.PnL != 20 || btc.WinRate != 1 {
		t.Errorf("BTC stats = %+v", btc)
	}
}

func TestGenerate_MaxDrawdown(t *testing.T) {
	database := seedDB(t)

	// Equity runs 1000 -> 1200 -> 900 -> 1100: drawdown (1200-900)/1200.
	for _, v := range []float64{1000, 1200, 900, 1100} {
		if _, err := database.Exec(
			`INSERT INTO equity_snapshots (cash, holdings_value, total_value) VALUES (?, 0, ?)`, v, v); err != nil {
			t.Fatal(err)
		}
	}

	r, err := NewTracker(database).Generate()
	if err != nil {
		t.Fatal(err)
	}

	if r.PeakValue != 1200 {
		t.Errorf("PeakValue = %v, want 1200", r.PeakValue)
	}
	if want := (1200.0 - 900.0) / 1200.0; r.MaxDrawdown != want {
		t.Errorf("MaxDrawdown = %v, want %v", r.MaxDrawdown, want)
	}
	if r.CurrentValue != 1100 {
		t.Errorf("CurrentValue = %v, want 1100", r.CurrentValue)
	}
}
