package strategy

import (
	"snapback/internal/config"
	"snapback/internal/market"
	"snapback/internal/portfolio"
)

// SMACross trades the classic short/long moving average crossover: buy a
// fixed quantity on a golden cross, sell the full position on a death cross.
// It needs LongWindow+1 bars so the previous bar's averages can be compared
// against the latest bar's.
type SMACross struct {
	cfg        config.SMACrossConfig
	commission float64
}

func NewSMACross(cfg config.SMACrossConfig, commissionRate float64) *SMACross {
	return &SMACross{cfg: cfg, commission: commissionRate}
}

func (s *SMACross) Name() string { return "smacross" }

func (s *SMACross) Evaluate(symbol string, candles market.Series, pf *portfolio.Portfolio, cash float64) Decision {
	need := s.cfg.LongWindow + 1
	if len(candles) < need {
		return Decision{}
	}

	closes := candles.Closes()
	latest := candles[len(candles)-1]

	prevShort := sma(closes[:len(closes)-1], s.cfg.ShortWindow)
	prevLong := sma(closes[:len(closes)-1], s.cfg.LongWindow)
	curShort := sma(closes, s.cfg.ShortWindow)
	curLong := sma(closes, s.cfg.LongWindow)

	goldenCross := prevShort <= prevLong && curShort > curLong
	deathCross := prevShort >= prevLong && curShort < curLong

	if goldenCross && !pf.Holding(symbol) {
		quantity := s.cfg.OrderQuantity
		// A clamped buy must cover cost plus commission or the portfolio
		// will reject it outright.
		if cost := quantity * latest.Close * (1 + s.commission); cost > cash && latest.Close > 0 {
			quantity = cash / (latest.Close * (1 + s.commission))
		}
		if quantity <= 0 {
			return Decision{}
		}
		return Decision{Buy: &BuyAction{
			Symbol:   symbol,
			Quantity: quantity,
			Price:    latest.Close,
		}}
	}

	if deathCross && pf.Holding(symbol) {
		return Decision{Sell: &SellAction{
			Symbol: symbol,
			Price:  latest.Close,
			Reason: "death cross",
		}}
	}

	return Decision{}
}

// sma averages the last n values. Caller guarantees len(values) >= n >= 1.
func sma(values []float64, n int) float64 {
	var sum float64
	for _, v := range values[len(values)-n:] {
		sum += v
	}
	return sum / float64(n)
}
