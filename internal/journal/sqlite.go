package journal

import (
	"database/sql"
	"fmt"
	"sync"
	"time"
)

// SQLiteSink buffers trade records in memory and writes them to the trades
// table in a single transaction on Flush. Losing at most one flush interval
// of records on a crash is acceptable; the exchange remains the source of
// truth in live mode.
type SQLiteSink struct {
	mu  sync.Mutex
	db  *sql.DB
	buf []TradeRecord
}

func NewSQLiteSink(db *sql.DB) *SQLiteSink {
	return &SQLiteSink{db: db}
}

func (s *SQLiteSink) Append(rec TradeRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.buf = append(s.buf, rec)
	return nil
}

func (s *SQLiteSink) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.buf) == 0 {
		return nil
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning trade flush: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO trades (id, executed_at, action, symbol, price, quantity, commission, profit, cash_after, reason, strategy, mode)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing trade insert: %w", err)
	}
	defer stmt.Close()

	for _, rec := range s.buf {
		var profit any
		if rec.Profit != nil {
			profit = *rec.Profit
		}
		_, err := stmt.Exec(
			rec.ID,
			rec.ExecutedAt.UTC().Format(time.RFC3339),
			string(rec.Action),
			rec.Symbol,
			rec.Price,
			rec.Quantity,
			rec.Commission,
			profit,
			rec.CashAfter,
			rec.Reason,
			rec.Strategy,
			rec.Mode,
		)
		if err != nil {
			return fmt.Errorf("inserting trade %s: %w", rec.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing trade flush: %w", err)
	}
	s.buf = s.buf[:0]
	return nil
}

func (s *SQLiteSink) Close() error {
	return s.Flush()
}
