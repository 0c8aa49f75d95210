package strategy

import (
	"testing"

	"snapback/internal/config"
	"snapback/internal/portfolio"
)

func newSMACross(commission float64) *SMACross {
	return NewSMACross(config.SMACrossConfig{
		ShortWindow:   2,
		LongWindow:    4,
		OrderQuantity: 1,
	}, commission)
}

func TestSMACross_BuysOnGoldenCross(t *testing.T) {
	s := newSMACross(0)
	pf := portfolio.New(1000)

	// Previous bar: short 99.5 <= long 100.25; latest bar: short 103 > long 101.
	prices := series(102, 100, 100, 99, 107)

	d := s.Evaluate("ETH-USD", prices, pf, pf.Cash)
	if d.Buy == nil {
		t.Fatal("expected a buy on the golden cross")
	}
	if d.Buy.Quantity != 1 {
		t.Errorf("buy quantity = %v, want order quantity 1", d.Buy.Quantity)
	}
	if d.Buy.Price != 107 {
		t.Errorf("buy price = %v, want latest close 107", d.Buy.Price)
	}
}

func TestSMACross_SellsOnDeathCross(t *testing.T) {
	s := newSMACross(0)
	pf := portfolio.New(1000)
	if err := pf.Buy("ETH-USD", 100, 1, 0, epoch); err != nil {
		t.Fatal(err)
	}

	// Mirror of the golden cross: short average collapses through the long.
	prices := series(98, 100, 100, 101, 93)

	d := s.Evaluate("ETH-USD", prices, pf, pf.Cash)
	if d.Sell == nil {
		t.Fatal("expected a sell on the death cross")
	}
	if d.Sell.Price != 93 {
		t.Errorf("sell price = %v, want latest close 93", d.Sell.Price)
	}
}

func TestSMACross_NoBuyWhenAlreadyHolding(t *testing.T) {
	s := newSMACross(0)
	pf := portfolio.New(1000)
	if err := pf.Buy("ETH-USD", 100, 1, 0, epoch); err != nil {
		t.Fatal(err)
	}

	if d := s.Evaluate("ETH-USD", series(102, 100, 100, 99, 107), pf, pf.Cash); !d.Empty() {
		t.Errorf("expected hold while already in position, got %+v", d)
	}
}

func TestSMACross_NoSellWithoutPosition(t *testing.T) {
	s := newSMACross(0)
	pf := portfolio.New(1000)

	if d := s.Evaluate("ETH-USD", series(98, 100, 100, 101, 93), pf, pf.Cash); !d.Empty() {
		t.Errorf("expected no action without a position, got %+v", d)
	}
}

func TestSMACross_TooFewCandles(t *testing.T) {
	s := newSMACross(0)
	pf := portfolio.New(1000)

	// LongWindow+1 bars are required before a crossover can be detected.
	if d := s.Evaluate("ETH-USD", series(100, 101, 102, 103), pf, pf.Cash); !d.Empty() {
		t.Errorf("expected empty decision below the window requirement, got %+v", d)
	}
}

func TestSMACross_ShrinksOrderToAvailableCash(t *testing.T) {
	s := newSMACross(0)
	pf := portfolio.New(50)

	d := s.Evaluate("ETH-USD", series(102, 100, 100, 99, 107), pf, pf.Cash)
	if d.Buy == nil {
		t.Fatal("expected a buy on the golden cross")
	}
	want := 50.0 / 107.0
	if d.Buy.Quantity != want {
		t.Errorf("buy quantity = %v, want cash-limited %v", d.Buy.Quantity, want)
	}
}

func TestSMACross_ClampedBuyCoversCommission(t *testing.T) {
	const commission = 0.0075
	s := newSMACross(commission)
	pf := portfolio.New(50)

	d := s.Evaluate("ETH-USD", series(102, 100, 100, 99, 107), pf, pf.Cash)
	if d.Buy == nil {
		t.Fatal("expected a buy on the golden cross")
	}

	want := 50.0 / (107.0 * (1 + commission))
	if d.Buy.Quantity != want {
		t.Errorf("buy quantity = %v, want commission-adjusted %v", d.Buy.Quantity, want)
	}

	// The portfolio must accept the clamped order.
	if err := pf.Buy("ETH-USD", d.Buy.Price, d.Buy.Quantity, d.Buy.Price*d.Buy.Quantity*commission, epoch); err != nil {
		t.Fatalf("clamped buy rejected: %v", err)
	}
}

func TestSMACross_NoCrossNoAction(t *testing.T) {
	s := newSMACross(0)
	pf := portfolio.New(1000)

	// Monotonic uptrend: short stays above long on both bars.
	if d := s.Evaluate("ETH-USD", series(100, 101, 102, 103, 104), pf, pf.Cash); !d.Empty() {
		t.Errorf("expected no action without a crossover, got %+v", d)
	}
}
