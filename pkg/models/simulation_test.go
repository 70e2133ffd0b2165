package models_test

import (
	"testing"

	"github.com/XavierBriggs/fortuna/services/decision-engine/pkg/models"
)

func TestPreferredSide(t *testing.T) {
	result := &models.SimulationResult{
		Probabilities: map[models.Side]float64{
			models.SideHome: 0.58,
			models.SideAway: 0.42,
		},
	}
	if got := result.PreferredSide(); got != models.SideHome {
		t.Errorf("preferred side = %s, want home", got)
	}
}

func TestPreferredSideTieIsStable(t *testing.T) {
	result := &models.SimulationResult{
		Probabilities: map[models.Side]float64{
			models.SideHome: 0.5,
			models.SideAway: 0.5,
		},
	}

	// Map iteration order varies between calls; the pick must not
	for i := 0; i < 500; i++ {
		if got := result.PreferredSide(); got != models.SideAway {
			t.Fatalf("iteration %d: preferred side = %s, want away on an exact tie", i, got)
		}
	}
}
