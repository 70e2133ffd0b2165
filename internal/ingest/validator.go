package ingest

import (
	"fmt"
	"math"

	"github.com/XavierBriggs/fortuna/services/decision-engine/pkg/models"
)

// ValidationError is a structured ingest rejection with a machine-readable
// reason code
type ValidationError struct {
	Code    string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// SymmetryTolerance returns the allowed deviation of the probability sum
// from 1 for n iterations: max(0.0015, 2/sqrt(n)).
func SymmetryTolerance(iterations int) float64 {
	if iterations <= 0 {
		return 0.0015
	}
	statistical := 2.0 / math.Sqrt(float64(iterations))
	if statistical > 0.0015 {
		return statistical
	}
	return 0.0015
}

// Validator enforces the canonical simulation-result contract once, on
// ingest. Downstream code may rely on field presence.
type Validator struct{}

// NewValidator creates an ingest validator
func NewValidator() *Validator {
	return &Validator{}
}

// Validate rejects a proposed SimulationResult unless it references the bound
// context, carries every canonical contract field, matches the snapshot's
// competitors by team_key, and satisfies the probability symmetry invariant.
func (v *Validator) Validate(result models.SimulationResult, simCtx *models.SimulationContext, snapshot *models.OddsSnapshot) error {
	if simCtx == nil {
		return &ValidationError{
			Code:    models.ReasonContextMismatch,
			Message: fmt.Sprintf("result references unknown context %s", result.ContextHash),
		}
	}

	if result.ContextHash != simCtx.ContextHash {
		return &ValidationError{
			Code:    models.ReasonContextMismatch,
			Message: fmt.Sprintf("result context %s does not match bound context %s", result.ContextHash, simCtx.ContextHash),
		}
	}

	if err := v.validateContractFields(result); err != nil {
		return err
	}

	// Team identifiers must match the snapshot's competitors by stable
	// team_key, not display name. Prevents cross-team corruption.
	if snapshot == nil {
		return &ValidationError{
			Code:    models.ReasonContextMismatch,
			Message: "no odds snapshot bound to context",
		}
	}

	if result.HomeTeamKey != snapshot.HomeTeamKey || result.AwayTeamKey != snapshot.AwayTeamKey {
		return &ValidationError{
			Code: models.ReasonMalformedCompetitors,
			Message: fmt.Sprintf("result teams %s/%s do not match snapshot %s/%s",
				result.HomeTeamKey, result.AwayTeamKey, snapshot.HomeTeamKey, snapshot.AwayTeamKey),
		}
	}

	if result.GameID != simCtx.GameID {
		return &ValidationError{
			Code:    models.ReasonContextMismatch,
			Message: fmt.Sprintf("result game %s does not match context game %s", result.GameID, simCtx.GameID),
		}
	}

	return v.validateSymmetry(result)
}

func (v *Validator) validateContractFields(result models.SimulationResult) error {
	missing := func(field string) error {
		return &ValidationError{
			Code:    models.ReasonValidatorViolation,
			Message: fmt.Sprintf("canonical contract field missing: %s", field),
		}
	}

	if result.SchemaVersion == "" {
		return missing("schema_version")
	}
	if result.GameID == "" {
		return missing("game_id")
	}
	if result.HomeTeamKey == "" || result.AwayTeamKey == "" {
		return missing("team keys")
	}
	if result.MarketType == "" {
		return missing("market_type")
	}
	if result.Settlement == "" {
		return missing("market_settlement")
	}
	if result.ModelPreferenceSelectionID == "" {
		return missing("model_preference_selection_id")
	}
	if len(result.Probabilities) < 2 {
		return missing("probabilities")
	}
	if result.CI.HalfWidth <= 0 {
		return missing("confidence_interval.half_width")
	}
	if result.IterationsRun <= 0 {
		return missing("iterations_run")
	}

	return nil
}

// validateSymmetry enforces, for each market, that
// p_a + p_b + p_push ∈ [1 − τ, 1 + τ] with τ = max(0.0015, 2/√n).
func (v *Validator) validateSymmetry(result models.SimulationResult) error {
	sum := result.PushProb
	for _, p := range result.Probabilities {
		if p < 0 || p > 1 {
			return &ValidationError{
				Code:    models.ReasonSymmetryViolation,
				Message: fmt.Sprintf("probability out of range: %f", p),
			}
		}
		sum += p
	}

	tolerance := SymmetryTolerance(result.IterationsRun)
	if math.Abs(sum-1.0) > tolerance {
		return &ValidationError{
			Code: models.ReasonSymmetryViolation,
			Message: fmt.Sprintf("probabilities sum to %.6f, outside 1±%.6f for %d iterations",
				sum, tolerance, result.IterationsRun),
		}
	}

	return nil
}
