package journal

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"
)

var csvHeader = []string{
	"id", "executed_at", "action", "symbol", "price", "quantity",
	"commission", "profit", "cash_after", "reason", "strategy", "mode",
}

// CSVSink mirrors trade records to an append-only CSV file for quick
// eyeballing in a spreadsheet. The header is written only when the file is
// created empty.
type CSVSink struct {
	mu sync.Mutex
	f  *os.File
	w  *csv.Writer
}

func NewCSVSink(path string) (*CSVSink, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("creating trade log directory: %w", err)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("opening trade log: %w", err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("statting trade log: %w", err)
	}

	w := csv.NewWriter(f)
	if info.Size() == 0 {
		if err := w.Write(csvHeader); err != nil {
			f.Close()
			return nil, fmt.Errorf("writing trade log header: %w", err)
		}
		w.Flush()
	}

	return &CSVSink{f: f, w: w}, nil
}

func (s *CSVSink) Append(rec TradeRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	profit := ""
	if rec.Profit != nil {
		profit = strconv.FormatFloat(*rec.Profit, 'f', -1, 64)
	}

	row := []string{
		rec.ID,
		rec.ExecutedAt.UTC().Format(time.RFC3339),
		string(rec.Action),
		rec.Symbol,
		strconv.FormatFloat(rec.Price, 'f', -1, 64),
		strconv.FormatFloat(rec.Quantity, 'f', -1, 64),
		strconv.FormatFloat(rec.Commission, 'f', -1, 64),
		profit,
		strconv.FormatFloat(rec.CashAfter, 'f', -1, 64),
		rec.Reason,
		rec.Strategy,
		rec.Mode,
	}
	if err := s.w.Write(row); err != nil {
		return fmt.Errorf("appending trade log row: %w", err)
	}
	return nil
}

func (s *CSVSink) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.w.Flush()
	return s.w.Error()
}

func (s *CSVSink) Close() error {
	if err := s.Flush(); err != nil {
		s.f.Close()
		return err
	}
	return s.f.Close()
}
