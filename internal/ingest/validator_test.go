package ingest_test

import (
	"errors"
	"math"
	"testing"

	"github.com/XavierBriggs/fortuna/services/decision-engine/internal/ingest"
	"github.com/XavierBriggs/fortuna/services/decision-engine/pkg/models"
)

func validResult() models.SimulationResult {
	return models.SimulationResult{
		SchemaVersion: "sim-result/1",
		ContextHash:   "ctx-1",
		GameID:        "game-1",
		Sport:         models.SportNBA,
		MarketType:    models.MarketSpread,
		Settlement:    models.SettlementFullGame,
		HomeTeamKey:   "bos",
		AwayTeamKey:   "lal",
		Probabilities: map[models.Side]float64{
			models.SideHome: 0.55,
			models.SideAway: 0.43,
		},
		PushProb:                   0.02,
		ModelPreferenceSelectionID: "abcdef0123456789",
		CI:                         models.ConfidenceInterval{Lower: 0.53, Upper: 0.57, HalfWidth: 0.02, Level: 0.95},
		IterationsRun:              100000,
	}
}

func boundContext() *models.SimulationContext {
	return &models.SimulationContext{ContextHash: "ctx-1", GameID: "game-1", Sport: models.SportNBA}
}

func boundSnapshot() *models.OddsSnapshot {
	return &models.OddsSnapshot{
		ContentHash: "snap-1",
		GameID:      "game-1",
		HomeTeamKey: "bos",
		AwayTeamKey: "lal",
	}
}

func TestSymmetryTolerance(t *testing.T) {
	tests := []struct {
		name       string
		iterations int
		want       float64
	}{
		{"Statistical term dominates at 100k", 100000, 2.0 / math.Sqrt(100000)},
		{"Statistical term dominates at 10k", 10000, 0.02},
		{"Floor dominates at 10M", 10000000, 0.0015},
		{"Zero iterations falls to floor", 0, 0.0015},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ingest.SymmetryTolerance(tt.iterations)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("SymmetryTolerance(%d) = %f, want %f", tt.iterations, got, tt.want)
			}
		})
	}
}

func TestValidateAccepts(t *testing.T) {
	v := ingest.NewValidator()
	if err := v.Validate(validResult(), boundContext(), boundSnapshot()); err != nil {
		t.Errorf("unexpected rejection: %v", err)
	}
}

func TestValidateRejections(t *testing.T) {
	tests := []struct {
		name     string
		mutate   func(*models.SimulationResult)
		ctx      *models.SimulationContext
		snap     *models.OddsSnapshot
		wantCode string
	}{
		{
			name:     "Unknown context",
			mutate:   func(r *models.SimulationResult) {},
			ctx:      nil,
			snap:     boundSnapshot(),
			wantCode: models.ReasonContextMismatch,
		},
		{
			name:     "Context hash mismatch",
			mutate:   func(r *models.SimulationResult) { r.ContextHash = "ctx-other" },
			ctx:      boundContext(),
			snap:     boundSnapshot(),
			wantCode: models.ReasonContextMismatch,
		},
		{
			name:     "Missing schema version",
			mutate:   func(r *models.SimulationResult) { r.SchemaVersion = "" },
			ctx:      boundContext(),
			snap:     boundSnapshot(),
			wantCode: models.ReasonValidatorViolation,
		},
		{
			name:     "Missing preference id",
			mutate:   func(r *models.SimulationResult) { r.ModelPreferenceSelectionID = "" },
			ctx:      boundContext(),
			snap:     boundSnapshot(),
			wantCode: models.ReasonValidatorViolation,
		},
		{
			name:     "Zero iterations",
			mutate:   func(r *models.SimulationResult) { r.IterationsRun = 0 },
			ctx:      boundContext(),
			snap:     boundSnapshot(),
			wantCode: models.ReasonValidatorViolation,
		},
		{
			name: "Team key mismatch",
			mutate: func(r *models.SimulationResult) {
				r.HomeTeamKey = "nyk"
			},
			ctx:      boundContext(),
			snap:     boundSnapshot(),
			wantCode: models.ReasonMalformedCompetitors,
		},
		{
			name: "Probabilities sum far from 1",
			mutate: func(r *models.SimulationResult) {
				r.Probabilities[models.SideHome] = 0.70
			},
			ctx:      boundContext(),
			snap:     boundSnapshot(),
			wantCode: models.ReasonSymmetryViolation,
		},
		{
			name: "Probability out of range",
			mutate: func(r *models.SimulationResult) {
				r.Probabilities[models.SideHome] = 1.2
			},
			ctx:      boundContext(),
			snap:     boundSnapshot(),
			wantCode: models.ReasonSymmetryViolation,
		},
	}

	v := ingest.NewValidator()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := validResult()
			tt.mutate(&result)

			err := v.Validate(result, tt.ctx, tt.snap)
			if err == nil {
				t.Fatal("expected rejection")
			}

			var vErr *ingest.ValidationError
			if !errors.As(err, &vErr) {
				t.Fatalf("expected ValidationError, got %T", err)
			}
			if vErr.Code != tt.wantCode {
				t.Errorf("rejection code = %s, want %s", vErr.Code, tt.wantCode)
			}
		})
	}
}

func TestValidateSymmetryWithinTolerance(t *testing.T) {
	// 10k iterations widen the tolerance to 0.02; a sum of 1.015 must pass
	result := validResult()
	result.IterationsRun = 10000
	result.Probabilities[models.SideHome] = 0.565

	v := ingest.NewValidator()
	if err := v.Validate(result, boundContext(), boundSnapshot()); err != nil {
		t.Errorf("sum within tolerance rejected: %v", err)
	}

	// The same sum at 100k iterations (tolerance ~0.0063) must fail
	result.IterationsRun = 100000
	if err := v.Validate(result, boundContext(), boundSnapshot()); err == nil {
		t.Error("sum outside tolerance accepted")
	}
}
