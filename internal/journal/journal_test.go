package journal

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"snapback/internal/db"
	"snapback/internal/id"
)

func record(action Action, profit *float64) TradeRecord {
	return TradeRecord{
		ID:         id.New(),
		ExecutedAt: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
		Action:     action,
		Symbol:     "BTC-USD",
		Price:      50000,
		Quantity:   0.01,
		Commission: 3.75,
		Profit:     profit,
		CashAfter:  496.25,
		Reason:     "price target: +5.10% since entry",
		Strategy:   "probabilistic",
		Mode:       "paper",
	}
}

func TestSQLiteSink_FlushWritesBufferedRecords(t *testing.T) {
	database, err := db.Open(":memory:")
	require.NoError(t, err)
	defer database.Close()
	require.NoError(t, db.Migrate(database))

	sink := NewSQLiteSink(database)
	require.NoError(t, sink.Append(record(ActionBuy, nil)))
	profit := 12.5
	require.NoError(t, sink.Append(record(ActionSell, &profit)))

	// Nothing durable before flush.
	var count int
	require.NoError(t, database.QueryRow(`SELECT COUNT(*) FROM trades`).Scan(&count))
	assert.Equal(t, 0, count)

	require.NoError(t, sink.Flush())
	require.NoError(t, database.QueryRow(`SELECT COUNT(*) FROM trades`).Scan(&count))
	assert.Equal(t, 2, count)

	var gotProfit float64
	require.NoError(t, database.QueryRow(
		`SELECT profit FROM trades WHERE action = 'sell'`).Scan(&gotProfit))
	assert.Equal(t, 12.5, gotProfit)

	var nullProfit *float64
	require.NoError(t, database.QueryRow(
		`SELECT profit FROM trades WHERE action = 'buy'`).Scan(&nullProfit))
	assert.Nil(t, nullProfit)
}

func TestSQLiteSink_FlushIsIdempotentWhenEmpty(t *testing.T) {
	database, err := db.Open(":memory:")
	require.NoError(t, err)
	defer database.Close()
	require.NoError(t, db.Migrate(database))

	sink := NewSQLiteSink(database)
	require.NoError(t, sink.Flush())

	require.NoError(t, sink.Append(record(ActionBuy, nil)))
	require.NoError(t, sink.Flush())
	require.NoError(t, sink.Flush())

	var count int
	require.NoError(t, database.QueryRow(`SELECT COUNT(*) FROM trades`).Scan(&count))
	assert.Equal(t, 1, count, "a second flush must not duplicate rows")
}

func TestCSVSink_WritesHeaderOnceAndAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trades.csv")

	sink, err := NewCSVSink(path)
	require.NoError(t, err)
	require.NoError(t, sink.Append(record(ActionBuy, nil)))
	require.NoError(t, sink.Close())

	// Reopen: header must not repeat.
	sink, err = NewCSVSink(path)
	require.NoError(t, err)
	profit := -4.2
	require.NoError(t, sink.Append(record(ActionSell, &profit)))
	require.NoError(t, sink.Close())

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, csvHeader, rows[0])
	assert.Equal(t, "buy", rows[1][2])
	assert.Equal(t, "sell", rows[2][2])
	assert.Equal(t, "-4.2", rows[2][7])
}

func TestMulti_FansOutToAllSinks(t *testing.T) {
	database, err := db.Open(":memory:")
	require.NoError(t, err)
	defer database.Close()
	require.NoError(t, db.Migrate(database))

	path := filepath.Join(t.TempDir(), "trades.csv")
	csvSink, err := NewCSVSink(path)
	require.NoError(t, err)

	multi := NewMulti(NewSQLiteSink(database), csvSink)
	require.NoError(t, multi.Append(record(ActionBuy, nil)))
	require.NoError(t, multi.Close())

	var count int
	require.NoError(t, database.QueryRow(`SELECT COUNT(*) FROM trades`).Scan(&count))
	assert.Equal(t, 1, count)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "BTC-USD")
}
