// Package portfolio tracks cash and per-symbol holdings. It is mutated
// only through confirmed trade executions in the trader; strategies see
// read-only snapshots.
package portfolio

import (
	"errors"
	"time"
)

var (
	// ErrInsufficientCash rejects a buy whose cost plus commission exceeds
	// available cash. Buys are rejected whole, never partially filled.
	ErrInsufficientCash = errors.New("insufficient cash")

	// ErrNoHoldings rejects a sell of a symbol with zero quantity.
	ErrNoHoldings = errors.New("no holdings to sell")
)

// Position is one symbol's holding. A zero quantity means no holding; the
// entry is retained for bookkeeping. EntryTime is the time of the buy that
// opened the position; zero when unknown (e.g. after an external account
// reconciliation).
type Position struct {
	Symbol            string
	Quantity          float64
	AverageEntryPrice float64
	EntryTime         time.Time
}

// Portfolio holds cash and positions. Not safe for concurrent use; the
// trading loop is the single writer.
type Portfolio struct {
	Cash      float64
	Positions map[string]Position
}

func New(cash float64) *Portfolio {
	return &Portfolio{
		Cash:      cash,
		Positions: make(map[string]Position),
	}
}

// Position returns the holding for symbol, zero-valued when absent.
func (p *Portfolio) Position(symbol string) Position {
	pos, ok := p.Positions[symbol]
	if !ok {
		return Position{Symbol: symbol}
	}
	return pos
}

// Holding reports whether the symbol has a non-zero quantity.
func (p *Portfolio) Holding(symbol string) bool {
	return p.Positions[symbol].Quantity > 0
}

// Buy debits cash by cost+commission and folds the purchase into the
// position at a cost-basis weighted average entry price:
//
//	newAvg = (oldQty*oldAvg + buyQty*price) / (oldQty + buyQty)
//
// Returns ErrInsufficientCash, with no state change, when cash cannot
// cover the trade.
func (p *Portfolio) Buy(symbol string, price, quantity, commission float64, at time.Time) error {
	cost := price * quantity
	if p.Cash < cost+commission {
		return ErrInsufficientCash
	}
	p.Cash -= cost + commission

	pos := p.Positions[symbol]
	if pos.Quantity <= 0 {
		pos.EntryTime = at
	}
	newQty := pos.Quantity + quantity
	if newQty > 0 {
		pos.AverageEntryPrice = (pos.Quantity*pos.AverageEntryPrice + cost) / newQty
	}
	pos.Symbol = symbol
	pos.Quantity = newQty
	p.Positions[symbol] = pos
	return nil
}

// Sell credits cash by revenue-commission and decrements the position.
// quantity <= 0 or quantity beyond the holding sells the full position.
// The average entry price is unaffected by sells, full or partial.
// Returns ErrNoHoldings, with no state change, when nothing is held.
func (p *Portfolio) Sell(symbol string, price, quantity, commission float64) (sold float64, err error) {
	pos := p.Positions[symbol]
	if pos.Quantity <= 0 {
		return 0, ErrNoHoldings
	}
	if quantity <= 0 || quantity > pos.Quantity {
		quantity = pos.Quantity
	}

	p.Cash += price*quantity - commission
	pos.Quantity -= quantity
	p.Positions[symbol] = pos
	return quantity, nil
}

// SetHoldings overwrites positions and cash from an external account
// snapshot. Live-mode reconciliation: the exchange is the source of truth.
func (p *Portfolio) SetHoldings(cash float64, positions map[string]Position) {
	p.Cash = cash
	p.Positions = make(map[string]Position, len(positions))
	for sym, pos := range positions {
		pos.Symbol = sym
		p.Positions[sym] = pos
	}
}

// TotalValue returns cash plus the mark-to-market value of all held
// positions; symbols without a mark contribute nothing.
func (p *Portfolio) TotalValue(marks map[string]float64) float64 {
	total := p.Cash
	for sym, pos := range p.Positions {
		if pos.Quantity <= 0 {
			continue
		}
		if mark, ok := marks[sym]; ok {
			total += pos.Quantity * mark
		}
	}
	return total
}

// Snapshot returns a deep copy for read-only consumers.
func (p *Portfolio) Snapshot() *Portfolio {
	out := New(p.Cash)
	for sym, pos := range p.Positions {
		out.Positions[sym] = pos
	}
	return out
}
