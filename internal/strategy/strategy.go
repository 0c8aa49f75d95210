package strategy

import (
	"snapback/internal/market"
	"snapback/internal/portfolio"
)

// BuyAction requests a market buy of Quantity at Price.
type BuyAction struct {
	Symbol   string
	Quantity float64
	Price    float64
}

// SellAction requests a full-position market sell at Price.
type SellAction struct {
	Symbol string
	Price  float64
	Reason string
}

// Decision carries at most one buy and/or one sell per evaluation. A nil
// field means no action of that kind; the zero Decision means hold.
type Decision struct {
	Buy  *BuyAction
	Sell *SellAction
}

// Empty reports whether the decision requests no action.
func (d Decision) Empty() bool {
	return d.Buy == nil && d.Sell == nil
}

// Strategy is the interface all trading policies implement.
//
// Evaluate must be a pure function of its inputs: no side effects, no
// hidden state. All portfolio mutation happens in the trader. A series
// with fewer than two candles yields an empty decision, not an error.
type Strategy interface {
	Name() string
	Evaluate(symbol string, candles market.Series, pf *portfolio.Portfolio, cash float64) Decision
}
