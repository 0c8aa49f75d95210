// Package journal records executed trades to durable sinks.
package journal

import (
	"errors"
	"time"
)

type Action string

const (
	ActionBuy  Action = "buy"
	ActionSell Action = "sell"
)

// TradeRecord is one executed trade. Profit is nil for buys; for sells it
// is the realised profit net of both legs' commission.
type TradeRecord struct {
	ID         string
	ExecutedAt time.Time
	Action     Action
	Symbol     string
	Price      float64
	Quantity   float64
	Commission float64
	Profit     *float64
	CashAfter  float64
	Reason     string
	Strategy   string
	Mode       string
}

// Sink accepts trade records. Append may buffer; Flush makes everything
// appended so far durable. Close implies a final Flush.
type Sink interface {
	Append(rec TradeRecord) error
	Flush() error
	Close() error
}

// Multi fans records out to several sinks, collecting errors from each.
type Multi struct {
	sinks []Sink
}

func NewMulti(sinks ...Sink) *Multi {
	return &Multi{sinks: sinks}
}

func (m *Multi) Append(rec TradeRecord) error {
	var errs []error
	for _, s := range m.sinks {
		if err := s.Append(rec); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m *Multi) Flush() error {
	var errs []error
	for _, s := range m.sinks {
		if err := s.Flush(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m *Multi) Close() error {
	var errs []error
	for _, s := range m.sinks {
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
