package classifier_test

import (
	"testing"

	"github.com/XavierBriggs/fortuna/services/decision-engine/internal/classifier"
	"github.com/XavierBriggs/fortuna/services/decision-engine/internal/sportconfig"
	"github.com/XavierBriggs/fortuna/services/decision-engine/pkg/models"
)

func floatPtr(v float64) *float64 { return &v }

func configFor(t *testing.T, sport models.Sport) sportconfig.SportConfig {
	t.Helper()
	registry, err := sportconfig.Load("")
	if err != nil {
		t.Fatalf("loading sport config: %v", err)
	}
	cfg, err := registry.ConfigFor(sport)
	if err != nil {
		t.Fatalf("%s config: %v", sport, err)
	}
	return cfg
}

func passingInput() classifier.Input {
	return classifier.Input{
		MarketType:         models.MarketSpread,
		ProbEdge:           0.06,
		EV:                 4.0,
		CalibrationPublish: true,
		RCLPassed:          true,
		EdgePoints:         1.5,
	}
}

func TestClassifyEdge(t *testing.T) {
	cfg := configFor(t, models.SportNBA)

	tier, reasons := classifier.Classify(cfg, passingInput())
	if tier != models.ClassificationEdge {
		t.Fatalf("tier = %s, want EDGE", tier)
	}
	if len(reasons) != 1 || reasons[0] != models.ReasonEdgeProbabilityPass {
		t.Errorf("reasons = %v, want [%s]", reasons, models.ReasonEdgeProbabilityPass)
	}
}

func TestClassifyEdgeGates(t *testing.T) {
	cfg := configFor(t, models.SportNBA)

	tests := []struct {
		name   string
		mutate func(*classifier.Input)
		want   models.Classification
	}{
		{
			name:   "Edge below threshold drops to LEAN",
			mutate: func(in *classifier.Input) { in.ProbEdge = 0.03 },
			want:   models.ClassificationLean,
		},
		{
			name:   "Negative EV drops to LEAN",
			mutate: func(in *classifier.Input) { in.EV = -0.2 },
			want:   models.ClassificationLean,
		},
		{
			name:   "Calibration block forbids any playable tier",
			mutate: func(in *classifier.Input) { in.CalibrationPublish = false },
			want:   models.ClassificationNoPlay,
		},
		{
			name:   "Failed reality check forbids EDGE",
			mutate: func(in *classifier.Input) { in.RCLPassed = false },
			want:   models.ClassificationLean,
		},
		{
			name:   "Variance downgrade forbids EDGE",
			mutate: func(in *classifier.Input) { in.VarianceDowngraded = true },
			want:   models.ClassificationLean,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := passingInput()
			tt.mutate(&in)

			tier, _ := classifier.Classify(cfg, in)
			if tier != tt.want {
				t.Errorf("tier = %s, want %s", tier, tt.want)
			}
			if tier == models.ClassificationEdge {
				t.Error("gated input must never classify EDGE")
			}
		})
	}
}

func TestClassifyIntegrityBlocked(t *testing.T) {
	cfg := configFor(t, models.SportNBA)

	in := passingInput()
	in.IntegrityReasons = []string{models.ReasonStaleOdds}

	tier, reasons := classifier.Classify(cfg, in)
	if tier != models.ClassificationBlocked {
		t.Fatalf("tier = %s, want BLOCKED", tier)
	}
	if len(reasons) != 1 || reasons[0] != models.ReasonStaleOdds {
		t.Errorf("reasons = %v, want the integrity reason", reasons)
	}
}

func TestClassifyKeyNumberDowngrade(t *testing.T) {
	cfg := configFor(t, models.SportNFL) // keys 3, 7, 10 with 0.5 buffer

	in := passingInput()
	in.MarketLine = floatPtr(-3.5)
	in.ModelLine = floatPtr(-6.5)
	in.EdgePoints = -3.0

	tier, reasons := classifier.Classify(cfg, in)
	if tier != models.ClassificationLean {
		t.Fatalf("tier = %s, want LEAN after key-number downgrade", tier)
	}

	found := false
	for _, r := range reasons {
		if r == models.ReasonKeyNumberDowngrade {
			found = true
		}
	}
	if !found {
		t.Errorf("reasons = %v, want key-number downgrade code", reasons)
	}
}

func TestClassifyKeyNumberClearSpan(t *testing.T) {
	cfg := configFor(t, models.SportNFL)

	// Span 4.5..5.5 with the buffer widens to 4.0..6.0, clear of 3 and 7
	in := passingInput()
	in.MarketLine = floatPtr(-4.5)
	in.ModelLine = floatPtr(-5.5)
	in.EdgePoints = -1.0

	tier, _ := classifier.Classify(cfg, in)
	if tier != models.ClassificationEdge {
		t.Errorf("tier = %s, want EDGE when span misses every key number", tier)
	}
}

func TestClassifyKeyNumberIgnoredOffSpread(t *testing.T) {
	cfg := configFor(t, models.SportNFL)

	in := passingInput()
	in.MarketType = models.MarketTotal
	in.MarketLine = floatPtr(44.5)
	in.ModelLine = floatPtr(47.5)
	in.EdgePoints = 3.0

	tier, _ := classifier.Classify(cfg, in)
	if tier != models.ClassificationEdge {
		t.Errorf("tier = %s, key-number protection must only apply to spreads", tier)
	}
}

func TestClassifyKeyNumberIgnoredWithoutProtection(t *testing.T) {
	cfg := configFor(t, models.SportNBA) // no key numbers configured

	in := passingInput()
	in.MarketLine = floatPtr(-2.5)
	in.ModelLine = floatPtr(-6.5)
	in.EdgePoints = -4.0

	tier, _ := classifier.Classify(cfg, in)
	if tier != models.ClassificationEdge {
		t.Errorf("tier = %s, want EDGE for sports without key-number protection", tier)
	}
}

func TestClassifyAligned(t *testing.T) {
	cfg := configFor(t, models.SportNBA)

	t.Run("Line market inside tolerance", func(t *testing.T) {
		in := classifier.Input{
			MarketType:         models.MarketSpread,
			ProbEdge:           0.004,
			EV:                 -2.0,
			CalibrationPublish: true,
			RCLPassed:          true,
			EdgePoints:         0.3,
		}
		tier, reasons := classifier.Classify(cfg, in)
		if tier != models.ClassificationMarketAligned {
			t.Errorf("tier = %s, want MARKET_ALIGNED", tier)
		}
		if len(reasons) != 0 {
			t.Errorf("aligned tier must carry no misprice reasons, got %v", reasons)
		}
	})

	t.Run("Moneyline inside probability tolerance", func(t *testing.T) {
		in := classifier.Input{
			MarketType:         models.MarketMoneyline2Way,
			ProbEdge:           0.005,
			EV:                 -3.0,
			CalibrationPublish: true,
			RCLPassed:          true,
		}
		tier, _ := classifier.Classify(cfg, in)
		if tier != models.ClassificationMarketAligned {
			t.Errorf("tier = %s, want MARKET_ALIGNED", tier)
		}
	})

	t.Run("Outside tolerance is NO_PLAY", func(t *testing.T) {
		in := classifier.Input{
			MarketType:         models.MarketSpread,
			ProbEdge:           0.01,
			EV:                 -2.0,
			CalibrationPublish: true,
			RCLPassed:          true,
			EdgePoints:         1.2,
		}
		tier, _ := classifier.Classify(cfg, in)
		if tier != models.ClassificationNoPlay {
			t.Errorf("tier = %s, want NO_PLAY", tier)
		}
	})
}
