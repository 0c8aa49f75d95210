package risk

import (
	"log/slog"

	"snapback/internal/config"
)

// Sizer converts a recovery probability into a buy quantity using a
// fractional Kelly rule, then applies the configured sizing caps.
type Sizer struct {
	cfg config.RiskConfig
}

func NewSizer(cfg config.RiskConfig) *Sizer {
	return &Sizer{cfg: cfg}
}

// Size returns the quantity to buy at price given the estimated win
// probability. profitTarget and priceMove define the odds b =
// profitTarget/priceMove; they are tunable knobs, not ground-truth payoff
// odds for this trade structure.
//
// Kelly criterion: f* = (b*p - q) / b with q = 1 - p, clamped to [0, 1]:
// never short, never leveraged past available cash. A zero priceMove
// degrades to a no-bet result rather than dividing by zero; the
// construction-time config check is the real guard.
func (s *Sizer) Size(probability, profitTarget, priceMove, availableCash, price float64) float64 {
	if priceMove == 0 || price <= 0 || availableCash <= 0 {
		return 0
	}

	b := profitTarget / priceMove
	if b <= 0 {
		return 0
	}

	q := 1 - probability
	f := (b*probability - q) / b
	if f <= 0 {
		return 0
	}
	if f > 1 {
		f = 1
	}

	// Fractional Kelly. Full Kelly (1.0) reproduces the raw formula.
	f *= s.cfg.KellyFraction

	amount := availableCash * f
	if s.cfg.MaxPositionPct > 0 {
		if limit := s.cfg.MaxPositionPct * availableCash; amount > limit {
			amount = limit
		}
	}

	if amount < s.cfg.MinTradeNotional {
		slog.Debug("sized amount below minimum trade notional",
			"amount", amount,
			"min", s.cfg.MinTradeNotional,
		)
		return 0
	}

	return amount / price
}
