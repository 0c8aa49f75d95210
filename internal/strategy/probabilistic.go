package strategy

import (
	"fmt"
	"log/slog"

	"snapback/internal/config"
	"snapback/internal/market"
	"snapback/internal/portfolio"
	"snapback/internal/prob"
	"snapback/internal/risk"
)

// Probabilistic buys dips sized by the empirical recovery probability and
// sells when the configured price move above the average entry is reached.
// The drop threshold enters only through the probability estimate; there is
// no separate single-bar drop trigger.
type Probabilistic struct {
	cfg   config.ProbabilisticConfig
	sizer *risk.Sizer
	dust  float64
}

func NewProbabilistic(cfg config.ProbabilisticConfig, sizer *risk.Sizer, dustThreshold float64) *Probabilistic {
	return &Probabilistic{cfg: cfg, sizer: sizer, dust: dustThreshold}
}

func (p *Probabilistic) Name() string { return "probabilistic" }

func (p *Probabilistic) Evaluate(symbol string, candles market.Series, pf *portfolio.Portfolio, cash float64) Decision {
	if len(candles) < 2 {
		return Decision{}
	}
	latest := candles[len(candles)-1]

	if !pf.Holding(symbol) {
		return p.evaluateBuy(symbol, candles, latest, cash)
	}
	return p.evaluateSell(symbol, pf.Position(symbol), latest)
}

func (p *Probabilistic) evaluateBuy(symbol string, candles market.Series, latest market.Candle, cash float64) Decision {
	probability := prob.Estimate(candles.Closes(), p.cfg.DropThreshold, p.cfg.PriceMove, p.cfg.LookBack)

	quantity := p.sizer.Size(probability, p.cfg.ProfitTarget, p.cfg.PriceMove, cash, latest.Close)
	if quantity <= 0 {
		return Decision{}
	}

	slog.Debug("buy opportunity",
		"symbol", symbol,
		"probability", probability,
		"quantity", quantity,
		"price", latest.Close,
	)

	return Decision{Buy: &BuyAction{
		Symbol:   symbol,
		Quantity: quantity,
		Price:    latest.Close,
	}}
}

func (p *Probabilistic) evaluateSell(symbol string, pos portfolio.Position, latest market.Candle) Decision {
	if pos.Quantity*latest.Close < p.dust {
		return Decision{}
	}
	if pos.AverageEntryPrice <= 0 {
		// Reconciled position with unknown basis; never sell blind.
		return Decision{}
	}

	rise := (latest.Close - pos.AverageEntryPrice) / pos.AverageEntryPrice
	if rise >= p.cfg.PriceMove {
		return Decision{Sell: &SellAction{
			Symbol: symbol,
			Price:  latest.Close,
			Reason: fmt.Sprintf("price target: +%.2f%% since entry", rise*100),
		}}
	}

	if p.cfg.MaxHold.Duration > 0 && !pos.EntryTime.IsZero() {
		if held := latest.Time.Sub(pos.EntryTime); held >= p.cfg.MaxHold.Duration {
			return Decision{Sell: &SellAction{
				Symbol: symbol,
				Price:  latest.Close,
				Reason: fmt.Sprintf("max hold: held %s", held),
			}}
		}
	}

	return Decision{}
}
