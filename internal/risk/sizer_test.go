package risk

import (
	"testing"

	"snapback/internal/config"
)

func newTestSizer() *Sizer {
	return NewSizer(config.RiskConfig{
		KellyFraction:    1.0,
		MaxPositionPct:   1.0,
		MinTradeNotional: 1.0,
	})
}

func TestSize_NeverNegative(t *testing.T) {
	s := newTestSizer()
	for _, p := range []float64{0, 0.1, 0.25, 0.5, 0.75, 0.9, 1.0} {
		got := s.Size(p, 0.027, 0.05, 1000, 50)
		if got < 0 {
			t.Errorf("negative quantity %f for probability %f", got, p)
		}
	}
}

func TestSize_ZeroPriceMove(t *testing.T) {
	s := newTestSizer()
	if got := s.Size(0.9, 0.027, 0, 1000, 50); got != 0 {
		t.Errorf("expected 0 for zero price move, got %f", got)
	}
}

func TestSize_KellyFormula(t *testing.T) {
	s := newTestSizer()
	// b = 0.027/0.05 = 0.54, p = 0.8, q = 0.2.
	// f* = (0.54*0.8 - 0.2) / 0.54 = 0.42963; quantity = 1000*f*/50.
	got := s.Size(0.8, 0.027, 0.05, 1000, 50)
	want := (0.54*0.8 - 0.2) / 0.54 * 1000 / 50
	if diff := got - want; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("expected %f, got %f", want, got)
	}
}

func TestSize_LowProbabilityIsNoBet(t *testing.T) {
	s := newTestSizer()
	// b = 0.54: any p below q/(1+b)... a fair-coin probability gives a
	// negative edge, so no bet.
	if got := s.Size(0.3, 0.027, 0.05, 1000, 50); got != 0 {
		t.Errorf("expected 0 quantity for negative-edge probability, got %f", got)
	}
}

func TestSize_NeverExceedsAvailableCash(t *testing.T) {
	s := newTestSizer()
	// p = 1 makes raw Kelly f* = (b - 0)/b = 1; quantity*price must not
	// exceed available cash.
	got := s.Size(1.0, 0.10, 0.01, 1000, 50)
	if got*50 > 1000+1e-9 {
		t.Errorf("sized notional %f exceeds available cash", got*50)
	}
}

func TestSize_MaxPositionCap(t *testing.T) {
	s := NewSizer(config.RiskConfig{
		KellyFraction:    1.0,
		MaxPositionPct:   0.10,
		MinTradeNotional: 1.0,
	})
	got := s.Size(1.0, 0.10, 0.01, 1000, 50)
	if got*50 > 100+1e-9 {
		t.Errorf("expected notional capped at 100, got %f", got*50)
	}
}

func TestSize_BelowMinNotionalRejected(t *testing.T) {
	s := NewSizer(config.RiskConfig{
		KellyFraction:    1.0,
		MaxPositionPct:   1.0,
		MinTradeNotional: 500,
	})
	if got := s.Size(0.8, 0.027, 0.05, 1000, 50); got != 0 {
		t.Errorf("expected 0 below min notional, got %f", got)
	}
}

func TestSize_FractionalKelly(t *testing.T) {
	full := NewSizer(config.RiskConfig{KellyFraction: 1.0, MaxPositionPct: 1.0})
	half := NewSizer(config.RiskConfig{KellyFraction: 0.5, MaxPositionPct: 1.0})

	f := full.Size(0.8, 0.027, 0.05, 1000, 50)
	h := half.Size(0.8, 0.027, 0.05, 1000, 50)
	if diff := h - f/2; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("expected half-Kelly %f to be half of %f", h, f)
	}
}
