package classifier

import (
	"math"

	"github.com/XavierBriggs/fortuna/services/decision-engine/internal/sportconfig"
	"github.com/XavierBriggs/fortuna/services/decision-engine/pkg/models"
)

// Input carries the only signals allowed to influence the tier: probability
// edge, expected value at the offered odds, and data integrity. CLV,
// historical movement, and market-efficiency heuristics populate metadata
// elsewhere but never alter the tier.
type Input struct {
	MarketType models.MarketType

	ProbEdge float64 // p_adjusted − market_implied_prob
	EV       float64 // per $100 staked at the offered American odds

	CalibrationPublish bool
	VarianceDowngraded bool
	RCLPassed          bool

	// Non-empty means an integrity failure: missing line, stale odds,
	// context mismatch, symmetry violation, roster unavailable
	IntegrityReasons []string

	EdgePoints float64 // signed, line markets only

	MarketLine *float64
	ModelLine  *float64
}

// Classify assigns the terminal tier for one (game, market) using
// sport-parameterized thresholds. Returns the tier and the reason codes that
// justify it.
func Classify(cfg sportconfig.SportConfig, in Input) (models.Classification, []string) {
	if len(in.IntegrityReasons) > 0 {
		return models.ClassificationBlocked, in.IntegrityReasons
	}

	// EDGE: probability edge, EV floor, calibration publish, reality check,
	// and no variance downgrade, all at once
	if in.ProbEdge >= cfg.EdgeMin &&
		in.EV >= cfg.MinEV &&
		in.CalibrationPublish &&
		in.RCLPassed &&
		!in.VarianceDowngraded {

		if downgradeForKeyNumber(cfg, in) {
			return models.ClassificationLean, []string{models.ReasonKeyNumberDowngrade, models.ReasonLeanProbabilityPass}
		}
		return models.ClassificationEdge, []string{models.ReasonEdgeProbabilityPass}
	}

	// LEAN: softer thresholds, still requires calibration publish
	if in.ProbEdge >= cfg.LeanMin &&
		in.EV >= cfg.LeanMinEV &&
		in.CalibrationPublish {
		return models.ClassificationLean, []string{models.ReasonLeanProbabilityPass}
	}

	if aligned(cfg, in) {
		return models.ClassificationMarketAligned, nil
	}

	return models.ClassificationNoPlay, nil
}

// aligned reports whether the model and market agree within the sport's
// tolerance: under half a point on the line or under the probability
// tolerance for moneylines.
func aligned(cfg sportconfig.SportConfig, in Input) bool {
	switch in.MarketType {
	case models.MarketSpread, models.MarketTotal:
		return math.Abs(in.EdgePoints) < cfg.AlignedTolPoints
	default:
		return math.Abs(in.ProbEdge) < cfg.AlignedTolProb
	}
}

// downgradeForKeyNumber applies key-number protection on spread markets.
// When the claimed edge span between the market line and the model line,
// widened by the sport's buffer, touches a key number (NFL spreads cluster
// at 3, 7, 10), the apparent cover distance is overstated and EDGE is
// downgraded to LEAN.
func downgradeForKeyNumber(cfg sportconfig.SportConfig, in Input) bool {
	if !cfg.Sanity.KeyNumberProtection || in.MarketType != models.MarketSpread {
		return false
	}
	if in.MarketLine == nil || in.ModelLine == nil {
		return false
	}

	marketAbs := math.Abs(*in.MarketLine)
	modelAbs := math.Abs(*in.ModelLine)

	lo := math.Min(marketAbs, modelAbs) - cfg.KeyNumberBuffer
	hi := math.Max(marketAbs, modelAbs) + cfg.KeyNumberBuffer

	for _, key := range cfg.KeyNumbers {
		if key >= lo && key <= hi {
			return true
		}
	}

	return false
}
