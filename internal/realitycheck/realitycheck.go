package realitycheck

import (
	"math"

	"github.com/XavierBriggs/fortuna/services/decision-engine/internal/sportconfig"
	"github.com/XavierBriggs/fortuna/services/decision-engine/pkg/models"
)

// PaceStatus is the live-pace feasibility verdict
type PaceStatus string

const (
	PaceOK         PaceStatus = "ok"
	PaceInfeasible PaceStatus = "infeasible"
	PaceNotLive    PaceStatus = "not_live"
)

// Input feeds one reality-check evaluation
type Input struct {
	ModelTotal float64 // median of simulated totals

	// Live-game fields; ignored when Live is false. A nil CurrentTotal means
	// no live score was available for the pass.
	Live           bool
	CurrentTotal   *float64
	ElapsedMinutes float64
}

// Outcome is the reality-check verdict. When |z| > 3 the model total is
// clamped to mean ± 2σ and Passed is false; the classifier must not emit
// EDGE for a failed check.
type Outcome struct {
	Z            float64
	Passed       bool
	Flagged      bool // 2 < |z| <= 3: downgrade confidence, still passable
	ClampedTotal *float64
	Pace         PaceStatus
	Reasons      []string
}

// EffectiveTotal returns the clamped total when clamping applied, else the
// model total
func (o *Outcome) EffectiveTotal(modelTotal float64) float64 {
	if o.ClampedTotal != nil {
		return *o.ClampedTotal
	}
	return modelTotal
}

// Evaluate checks a model total against the league's historical distribution
// and, for live games, against pace feasibility.
//
// Policy on z = (model_total − μ)/σ:
//
//	|z| <= 2.0      pass
//	2.0 < |z| <= 3.0 flag, downgrade confidence, no hard block
//	|z| > 3.0        clamp to μ ± 2σ, rcl_passed = false
func Evaluate(cfg sportconfig.SportConfig, in Input) Outcome {
	out := Outcome{Passed: true, Pace: PaceNotLive}

	sigma := cfg.LeagueTotalSigma
	if sigma <= 0 {
		// No historical distribution for this sport; nothing to check
		return out
	}

	out.Z = (in.ModelTotal - cfg.LeagueTotalMean) / sigma
	absZ := math.Abs(out.Z)

	switch {
	case absZ <= 2.0:
		// pass

	case absZ <= 3.0:
		out.Flagged = true
		out.Reasons = append(out.Reasons, models.ReasonRCLFlagged)

	default:
		clamped := cfg.LeagueTotalMean + 2.0*sigma
		if out.Z < 0 {
			clamped = cfg.LeagueTotalMean - 2.0*sigma
		}
		out.ClampedTotal = &clamped
		out.Passed = false
		out.Reasons = append(out.Reasons, models.ReasonRCLClamped)
	}

	if in.Live {
		out.Pace = evaluatePace(cfg, in)
		if out.Pace == PaceInfeasible {
			out.Passed = false
			out.Reasons = append(out.Reasons, models.ReasonPaceInfeasible)
		}
	}

	return out
}

// evaluatePace computes the per-team points per minute required to reach the
// projected total and compares it to the sport's feasibility ceiling.
func evaluatePace(cfg sportconfig.SportConfig, in Input) PaceStatus {
	if in.CurrentTotal == nil {
		// Without the actual score the required rate cannot be computed;
		// never judge feasibility against a made-up scoreboard
		return PaceOK
	}

	remaining := cfg.RegulationMinutes - in.ElapsedMinutes
	if remaining <= 0 {
		return PaceOK
	}

	needed := in.ModelTotal - *in.CurrentTotal
	if needed <= 0 {
		return PaceOK
	}

	perTeamPerMinute := needed / remaining / 2.0
	if cfg.PaceFeasibilityCeiling > 0 && perTeamPerMinute > cfg.PaceFeasibilityCeiling {
		return PaceInfeasible
	}

	return PaceOK
}
