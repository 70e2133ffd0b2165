package oddsmath_test

import (
	"math"
	"testing"

	"github.com/XavierBriggs/fortuna/services/decision-engine/pkg/oddsmath"
)

func TestPayoutPer100(t *testing.T) {
	tests := []struct {
		name     string
		american int
		want     float64
	}{
		{"Favorite -150", -150, 66.6667},
		{"Favorite -110", -110, 90.9091},
		{"Favorite -200", -200, 50.0},
		{"Even +100", 100, 100.0},
		{"Underdog +120", 120, 120.0},
		{"Underdog +250", 250, 250.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := oddsmath.PayoutPer100(tt.american)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			if math.Abs(got-tt.want) > 0.001 {
				t.Errorf("PayoutPer100(%d) = %f, want %f", tt.american, got, tt.want)
			}
		})
	}

	t.Run("Zero odds rejected", func(t *testing.T) {
		if _, err := oddsmath.PayoutPer100(0); err == nil {
			t.Error("expected error for zero American odds")
		}
	})
}

func TestExpectedValue2Way(t *testing.T) {
	tests := []struct {
		name     string
		pWin     float64
		american int
		want     float64
	}{
		{"66% at -150", 0.66, -150, 10.0},
		{"50% at -110 loses the vig", 0.50, -110, -4.5455},
		{"55% at +100", 0.55, 100, 10.0},
		{"40% at +150", 0.40, 150, 0.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := oddsmath.ExpectedValue2Way(tt.pWin, tt.american)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			if math.Abs(got-tt.want) > 0.01 {
				t.Errorf("ExpectedValue2Way(%f, %d) = %f, want %f", tt.pWin, tt.american, got, tt.want)
			}
		})
	}

	t.Run("Invalid probability rejected", func(t *testing.T) {
		if _, err := oddsmath.ExpectedValue2Way(1.2, -110); err == nil {
			t.Error("expected error for probability above 1")
		}
	})
}

func TestExpectedValue2WayWithPush(t *testing.T) {
	// Push mass returns the stake, so only the loss mass pays against us
	got, err := oddsmath.ExpectedValue2WayWithPush(0.50, 0.10, -110)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := 0.50*90.9091 - 0.40*100.0
	if math.Abs(got-want) > 0.01 {
		t.Errorf("ExpectedValue2WayWithPush = %f, want %f", got, want)
	}

	// Same win probability without push mass must be strictly worse
	noPush, err := oddsmath.ExpectedValue2WayWithPush(0.50, 0.0, -110)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if noPush >= got {
		t.Errorf("push mass should improve EV: with=%f without=%f", got, noPush)
	}

	t.Run("Win plus push above 1 rejected", func(t *testing.T) {
		if _, err := oddsmath.ExpectedValue2WayWithPush(0.8, 0.3, -110); err == nil {
			t.Error("expected error when win+push exceeds 1")
		}
	})
}

func TestRealizedUnits(t *testing.T) {
	tests := []struct {
		name     string
		won      bool
		pushed   bool
		american int
		want     float64
	}{
		{"Win at -110", true, false, -110, 0.9091},
		{"Win at +150", true, false, 150, 1.5},
		{"Win at -150", true, false, -150, 0.6667},
		{"Loss at -110", false, false, -110, -1.0},
		{"Loss at +300", false, false, 300, -1.0},
		{"Push at -110", false, true, -110, 0.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := oddsmath.RealizedUnits(tt.won, tt.pushed, tt.american)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			if math.Abs(got-tt.want) > 0.001 {
				t.Errorf("RealizedUnits(%v, %v, %d) = %f, want %f", tt.won, tt.pushed, tt.american, got, tt.want)
			}
		})
	}
}

func TestCalculateEdge(t *testing.T) {
	got, err := oddsmath.CalculateEdge(0.58, 0.5238)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if math.Abs(got-0.0562) > 0.0001 {
		t.Errorf("CalculateEdge = %f, want 0.0562", got)
	}

	if _, err := oddsmath.CalculateEdge(0.0, 0.5); err == nil {
		t.Error("expected error for fair probability at boundary")
	}
	if _, err := oddsmath.CalculateEdge(0.5, 1.0); err == nil {
		t.Error("expected error for implied probability at boundary")
	}
}
