package grader_test

import (
	"math"
	"testing"

	"github.com/XavierBriggs/fortuna/services/decision-engine/internal/grader"
	"github.com/XavierBriggs/fortuna/services/decision-engine/pkg/models"
	"github.com/XavierBriggs/fortuna/services/decision-engine/pkg/oddsmath"
)

func floatPtr(v float64) *float64 { return &v }
func intPtr(v int) *int           { return &v }

func publication(mt models.MarketType, side models.Side, line *float64, price int) models.PublishedPrediction {
	return models.PublishedPrediction{
		PublishID:  "pub-1",
		GameID:     "game-1",
		Sport:      models.SportNBA,
		MarketType: mt,
		Side:       side,
		Terms:      models.TicketTerms{Line: line, Price: price, BookKey: "draftkings"},
	}
}

func result(home, away int) models.EventResult {
	return models.EventResult{
		GameID:    "game-1",
		HomeScore: home,
		AwayScore: away,
		Completed: true,
	}
}

func TestSettleSpread(t *testing.T) {
	tests := []struct {
		name string
		side models.Side
		line float64
		home int
		away int
		want models.GradeOutcome
	}{
		{"Home favorite covers", models.SideHome, -3.5, 110, 105, models.GradeWin},
		{"Home favorite fails to cover", models.SideHome, -3.5, 108, 105, models.GradeLoss},
		{"Home favorite loses outright", models.SideHome, -3.5, 100, 105, models.GradeLoss},
		{"Away dog covers on a close loss", models.SideAway, 3.5, 110, 108, models.GradeWin},
		{"Away dog wins outright", models.SideAway, 3.5, 100, 105, models.GradeWin},
		{"Whole number line pushes", models.SideHome, -3.0, 108, 105, models.GradePush},
		{"Away side of whole number pushes", models.SideAway, 3.0, 108, 105, models.GradePush},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pub := publication(models.MarketSpread, tt.side, floatPtr(tt.line), -110)
			got, err := grader.Settle(pub, result(tt.home, tt.away), false)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("outcome = %s, want %s", got, tt.want)
			}
		})
	}

	t.Run("Missing locked line errors", func(t *testing.T) {
		pub := publication(models.MarketSpread, models.SideHome, nil, -110)
		if _, err := grader.Settle(pub, result(110, 105), false); err == nil {
			t.Error("expected error for spread without a locked line")
		}
	})
}

func TestSettleTotal(t *testing.T) {
	tests := []struct {
		name string
		side models.Side
		line float64
		home int
		away int
		want models.GradeOutcome
	}{
		{"Over hits", models.SideOver, 228.5, 118, 112, models.GradeWin},
		{"Over misses", models.SideOver, 228.5, 112, 110, models.GradeLoss},
		{"Under hits", models.SideUnder, 228.5, 112, 110, models.GradeWin},
		{"Exact total pushes", models.SideOver, 230.0, 118, 112, models.GradePush},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pub := publication(models.MarketTotal, tt.side, floatPtr(tt.line), -110)
			got, err := grader.Settle(pub, result(tt.home, tt.away), false)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("outcome = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestSettleMoneyline(t *testing.T) {
	t.Run("Two-way home win", func(t *testing.T) {
		pub := publication(models.MarketMoneyline2Way, models.SideHome, nil, -150)
		got, err := grader.Settle(pub, result(4, 2), false)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got != models.GradeWin {
			t.Errorf("outcome = %s, want win", got)
		}
	})

	t.Run("Two-way tie pushes", func(t *testing.T) {
		pub := publication(models.MarketMoneyline2Way, models.SideHome, nil, -150)
		got, err := grader.Settle(pub, result(3, 3), false)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got != models.GradePush {
			t.Errorf("outcome = %s, want push", got)
		}
	})

	t.Run("Three-way draw side wins on a draw", func(t *testing.T) {
		pub := publication(models.MarketMoneyline3Way, models.SideDraw, nil, 240)
		got, err := grader.Settle(pub, result(1, 1), false)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got != models.GradeWin {
			t.Errorf("outcome = %s, want win", got)
		}
	})

	t.Run("Three-way team side loses on a draw", func(t *testing.T) {
		pub := publication(models.MarketMoneyline3Way, models.SideHome, nil, 150)
		got, err := grader.Settle(pub, result(1, 1), false)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got != models.GradeLoss {
			t.Errorf("outcome = %s, want loss", got)
		}
	})
}

func TestSettleRegulationScores(t *testing.T) {
	// NHL regulation moneyline: overtime winner is irrelevant, the market
	// settles on the 60-minute score
	pub := publication(models.MarketMoneyline2Way, models.SideHome, nil, -120)
	res := result(3, 2)
	res.RegulationHome = intPtr(2)
	res.RegulationAway = intPtr(2)
	res.WentToOvertime = true

	got, err := grader.Settle(pub, res, true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != models.GradePush {
		t.Errorf("regulation tie should push, got %s", got)
	}

	// The same publication on a FULL_GAME contract settles on the final score
	got, err = grader.Settle(pub, res, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != models.GradeWin {
		t.Errorf("full game settlement should use the overtime score, got %s", got)
	}
}

func TestSettleIncompleteGame(t *testing.T) {
	pub := publication(models.MarketSpread, models.SideHome, floatPtr(-3.5), -110)
	res := result(60, 55)
	res.Completed = false

	if _, err := grader.Settle(pub, res, false); err == nil {
		t.Error("expected error for incomplete game")
	}
}

func TestGradedUnitsScenario(t *testing.T) {
	// Home -3.5 at -110, home wins by 5: the win pays 0.91 units on a 1u stake
	pub := publication(models.MarketSpread, models.SideHome, floatPtr(-3.5), -110)
	outcome, err := grader.Settle(pub, result(110, 105), false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outcome != models.GradeWin {
		t.Fatalf("outcome = %s, want win", outcome)
	}

	units, err := oddsmath.RealizedUnits(outcome == models.GradeWin, outcome == models.GradePush, pub.Terms.Price)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if math.Abs(units-0.9091) > 0.001 {
		t.Errorf("realized units = %f, want 0.9091", units)
	}

	// CLV: taken at -110, closed at -125 on the same side, the market moved
	// toward the pick
	pTaken, err := oddsmath.AmericanToImpliedProbability(-110)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	pClosed, err := oddsmath.AmericanToImpliedProbability(-125)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if clv := pClosed - pTaken; clv <= 0 {
		t.Errorf("clv = %f, want favorable", clv)
	}
}
