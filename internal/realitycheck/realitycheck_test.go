package realitycheck_test

import (
	"math"
	"testing"

	"github.com/XavierBriggs/fortuna/services/decision-engine/internal/realitycheck"
	"github.com/XavierBriggs/fortuna/services/decision-engine/internal/sportconfig"
	"github.com/XavierBriggs/fortuna/services/decision-engine/pkg/models"
)

func floatPtr(v float64) *float64 { return &v }

func nbaConfig(t *testing.T) sportconfig.SportConfig {
	t.Helper()
	registry, err := sportconfig.Load("")
	if err != nil {
		t.Fatalf("loading sport config: %v", err)
	}
	cfg, err := registry.ConfigFor(models.SportNBA)
	if err != nil {
		t.Fatalf("NBA config: %v", err)
	}
	return cfg
}

func TestEvaluateZBands(t *testing.T) {
	cfg := nbaConfig(t) // mean 228.5, sigma 18

	tests := []struct {
		name        string
		modelTotal  float64
		wantPassed  bool
		wantFlagged bool
		wantClamped bool
	}{
		{"Within two sigma passes clean", 240.0, true, false, false},
		{"Exactly two sigma passes", 264.5, true, false, false},
		{"Between two and three sigma flags", 273.5, true, true, false},
		{"Beyond three sigma clamps high", 291.5, false, false, true},
		{"Beyond three sigma clamps low", 165.5, false, false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := realitycheck.Evaluate(cfg, realitycheck.Input{ModelTotal: tt.modelTotal})

			if out.Passed != tt.wantPassed {
				t.Errorf("Passed = %v, want %v (z=%f)", out.Passed, tt.wantPassed, out.Z)
			}
			if out.Flagged != tt.wantFlagged {
				t.Errorf("Flagged = %v, want %v (z=%f)", out.Flagged, tt.wantFlagged, out.Z)
			}
			if (out.ClampedTotal != nil) != tt.wantClamped {
				t.Errorf("ClampedTotal set = %v, want %v", out.ClampedTotal != nil, tt.wantClamped)
			}
		})
	}
}

func TestEvaluateClampTarget(t *testing.T) {
	cfg := nbaConfig(t)

	out := realitycheck.Evaluate(cfg, realitycheck.Input{ModelTotal: 300.0})
	if out.ClampedTotal == nil {
		t.Fatal("expected a clamped total")
	}

	// Clamped to mean + 2 sigma
	want := 228.5 + 2.0*18.0
	if math.Abs(*out.ClampedTotal-want) > 0.001 {
		t.Errorf("clamped total = %f, want %f", *out.ClampedTotal, want)
	}
	if out.EffectiveTotal(300.0) != *out.ClampedTotal {
		t.Error("EffectiveTotal should return the clamped value")
	}

	low := realitycheck.Evaluate(cfg, realitycheck.Input{ModelTotal: 150.0})
	if low.ClampedTotal == nil {
		t.Fatal("expected a clamped total on the low side")
	}
	if math.Abs(*low.ClampedTotal-(228.5-36.0)) > 0.001 {
		t.Errorf("low clamp = %f, want %f", *low.ClampedTotal, 228.5-36.0)
	}

	if !low.Flagged && len(low.Reasons) == 0 {
		t.Error("clamp should carry a reason code")
	}
}

func TestEvaluatePace(t *testing.T) {
	cfg := nbaConfig(t) // regulation 48 minutes, ceiling 1.75 pts/min per team

	t.Run("Pregame skips pace", func(t *testing.T) {
		out := realitycheck.Evaluate(cfg, realitycheck.Input{ModelTotal: 230.0})
		if out.Pace != realitycheck.PaceNotLive {
			t.Errorf("Pace = %s, want %s", out.Pace, realitycheck.PaceNotLive)
		}
	})

	t.Run("Feasible live pace passes", func(t *testing.T) {
		// 20 points needed over 8 minutes: 1.25 per team per minute
		out := realitycheck.Evaluate(cfg, realitycheck.Input{
			ModelTotal:     230.0,
			Live:           true,
			CurrentTotal:   floatPtr(210.0),
			ElapsedMinutes: 40.0,
		})
		if out.Pace != realitycheck.PaceOK {
			t.Errorf("Pace = %s, want %s", out.Pace, realitycheck.PaceOK)
		}
		if !out.Passed {
			t.Error("feasible pace should pass")
		}
	})

	t.Run("Infeasible live pace fails", func(t *testing.T) {
		// 30 points needed over 8 minutes: 1.875 per team per minute
		out := realitycheck.Evaluate(cfg, realitycheck.Input{
			ModelTotal:     230.0,
			Live:           true,
			CurrentTotal:   floatPtr(200.0),
			ElapsedMinutes: 40.0,
		})
		if out.Pace != realitycheck.PaceInfeasible {
			t.Errorf("Pace = %s, want %s", out.Pace, realitycheck.PaceInfeasible)
		}
		if out.Passed {
			t.Error("infeasible pace must fail the check")
		}
		if len(out.Reasons) == 0 || out.Reasons[0] != models.ReasonPaceInfeasible {
			t.Errorf("reasons = %v, want pace reason", out.Reasons)
		}
	})

	t.Run("Unknown live score skips pace", func(t *testing.T) {
		// Deep into the game with no scoreboard available: the check must not
		// judge pace against an assumed 0-0 score
		out := realitycheck.Evaluate(cfg, realitycheck.Input{
			ModelTotal:     230.0,
			Live:           true,
			CurrentTotal:   nil,
			ElapsedMinutes: 44.0,
		})
		if out.Pace != realitycheck.PaceOK {
			t.Errorf("Pace = %s, want %s", out.Pace, realitycheck.PaceOK)
		}
		if !out.Passed {
			t.Error("missing live score must not fail the check")
		}
	})

	t.Run("Total already reached passes", func(t *testing.T) {
		out := realitycheck.Evaluate(cfg, realitycheck.Input{
			ModelTotal:     230.0,
			Live:           true,
			CurrentTotal:   floatPtr(235.0),
			ElapsedMinutes: 44.0,
		})
		if out.Pace != realitycheck.PaceOK {
			t.Errorf("Pace = %s, want %s", out.Pace, realitycheck.PaceOK)
		}
	})
}

func TestEvaluateNoDistribution(t *testing.T) {
	cfg := sportconfig.SportConfig{Sport: models.SportNBA}

	out := realitycheck.Evaluate(cfg, realitycheck.Input{ModelTotal: 500.0})
	if !out.Passed || out.Flagged || out.ClampedTotal != nil {
		t.Error("no historical distribution should skip the check entirely")
	}
}
