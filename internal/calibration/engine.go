package calibration

import (
	"math"

	"github.com/rs/zerolog"

	"github.com/XavierBriggs/fortuna/services/decision-engine/internal/sportconfig"
	"github.com/XavierBriggs/fortuna/services/decision-engine/pkg/models"
)

// Confidence labels attached to calibration outcomes
const (
	ConfidenceHigh   = "high"
	ConfidenceNormal = "normal"
	ConfidenceLow    = "low"
)

// Input feeds one calibration pass for a (game, market)
type Input struct {
	Sport      models.Sport
	MarketType models.MarketType

	PRaw float64 // model probability for the preferred side

	// Model vs market values in the market's native unit (line points for
	// spread/total, probability for moneyline)
	ModelValue  float64
	MarketValue float64

	RawEdge float64 // signed edge before dampening

	SigmaCurrent      float64
	DataQuality       float64 // 0..1
	InjuryUncertainty float64 // 0..1
}

// Outcome is the calibration verdict consumed by the classifier
type Outcome struct {
	PAdjusted        float64
	EdgeAdjusted     float64
	ZVariance        float64
	Confidence       string
	Publish          bool
	Downgraded       bool // variance rose into the high band or above
	BlockReasons     []string
	AppliedPenalties map[string]float64
	Version          string
}

// Engine applies the protective calibration pipeline in a fixed order:
// segment calibration, market-anchor penalty, variance gating, probability
// compression, league baseline clamp.
type Engine struct {
	versions *VersionRegistry
	baseline BaselineSource
	log      zerolog.Logger
}

// NewEngine creates a calibration engine
func NewEngine(versions *VersionRegistry, baseline BaselineSource, log zerolog.Logger) *Engine {
	return &Engine{
		versions: versions,
		baseline: baseline,
		log:      log.With().Str("component", "calibration").Logger(),
	}
}

// Apply runs the full calibration pipeline for one market
func (e *Engine) Apply(cfg sportconfig.SportConfig, in Input) Outcome {
	out := Outcome{
		Publish:          true,
		Confidence:       ConfidenceNormal,
		AppliedPenalties: make(map[string]float64),
		Version:          e.versions.VersionFor(in.Sport),
	}

	// Segment calibration maps the raw probability through the promoted
	// calibration version before any penalty applies.
	p := e.versions.Apply(in.Sport, in.MarketType, BucketFor(in.PRaw), in.PRaw)
	edge := in.RawEdge

	// 1. Market-anchor penalty
	p, edge = e.applyAnchor(cfg, in, p, edge, &out)

	// 2. Variance gating
	edge = e.applyVarianceGate(cfg, in, edge, &out)

	// 3. Probability compression: p = 0.5 + (p − 0.5) × factor. Keeps the
	// engine from emitting false certainty in efficient markets.
	p = 0.5 + (p-0.5)*cfg.CompressionFactor
	out.AppliedPenalties["compression"] = cfg.CompressionFactor

	// 4. League baseline clamp
	if e.baseline != nil && e.baseline.Exceeded(in.Sport, cfg.BaselineWindowDays,
		cfg.BaselineBiasVsActualMax, cfg.BaselineBiasVsMarketMax, cfg.BaselineMaxOverRate) {
		edge *= cfg.BaselineDampFactor
		out.AppliedPenalties["baseline_damp"] = cfg.BaselineDampFactor
		out.BlockReasons = append(out.BlockReasons, models.ReasonBaselineDrift)
		if out.Confidence == ConfidenceNormal {
			out.Confidence = ConfidenceLow
		}
		e.log.Warn().Str("sport", string(in.Sport)).Msg("baseline drift exceeded, damping publishes")
	}

	if p >= cfg.EliteMinProbability && out.Confidence == ConfidenceNormal {
		out.Confidence = ConfidenceHigh
	}

	// Publishing floor on the adjusted probability
	if p < cfg.MinPublishProbability && p > 1.0-cfg.MinPublishProbability {
		// Inside the dead zone around a coin flip: decision still written,
		// just never published as a pick.
		out.BlockReasons = append(out.BlockReasons, models.ReasonMinProbability)
		out.Publish = false
	}

	out.PAdjusted = p
	out.EdgeAdjusted = edge
	return out
}

// applyAnchor penalizes model values that drift from the market anchor.
// The penalty is linear between the sport's soft and hard deviations; beyond
// the hard deviation the market is blocked unless every elite-override
// condition holds.
func (e *Engine) applyAnchor(cfg sportconfig.SportConfig, in Input, p, edge float64, out *Outcome) (float64, float64) {
	deviation := math.Abs(in.ModelValue - in.MarketValue)

	if deviation <= cfg.SoftDeviation {
		return p, edge
	}

	if deviation <= cfg.HardDeviation {
		span := cfg.HardDeviation - cfg.SoftDeviation
		fraction := 1.0
		if span > 0 {
			fraction = (deviation - cfg.SoftDeviation) / span
		}
		penalty := 0.5 * fraction
		edge *= 1.0 - penalty
		out.AppliedPenalties["market_anchor"] = penalty
		out.BlockReasons = append(out.BlockReasons, models.ReasonAnchorPenalty)
		return p, edge
	}

	// Beyond the hard deviation
	zVariance := e.zVariance(cfg, in)
	eliteMet := in.PRaw >= cfg.EliteMinProbability &&
		zVariance <= cfg.EliteMaxZVariance &&
		in.DataQuality >= cfg.EliteMinDataQuality &&
		in.InjuryUncertainty <= cfg.EliteMaxInjuryUncertainty

	if eliteMet {
		out.BlockReasons = append(out.BlockReasons, models.ReasonEliteOverride)
		out.AppliedPenalties["market_anchor"] = 0.5
		return p, edge * 0.5
	}

	out.Publish = false
	out.BlockReasons = append(out.BlockReasons, models.ReasonAnchorHardDeviation)
	out.AppliedPenalties["market_anchor"] = 1.0
	return p, 0
}

// applyVarianceGate dampens the edge as the current distribution widens
// relative to the sport's normal sigma, and blocks publication entirely in
// the extreme band.
func (e *Engine) applyVarianceGate(cfg sportconfig.SportConfig, in Input, edge float64, out *Outcome) float64 {
	out.ZVariance = e.zVariance(cfg, in)

	switch {
	case out.ZVariance <= cfg.VarianceHigh:
		return edge

	case out.ZVariance <= cfg.VarianceExtreme:
		out.Downgraded = true
		out.Confidence = ConfidenceLow
		out.AppliedPenalties["variance"] = 0.5
		out.BlockReasons = append(out.BlockReasons, models.ReasonVarianceHigh)
		return edge * 0.5

	default:
		out.Downgraded = true
		out.Confidence = ConfidenceLow
		out.Publish = false
		out.AppliedPenalties["variance"] = 0.75
		out.BlockReasons = append(out.BlockReasons, models.ReasonVarianceExtreme)
		return edge * 0.25
	}
}

func (e *Engine) zVariance(cfg sportconfig.SportConfig, in Input) float64 {
	if cfg.NormalSigma <= 0 {
		return 1.0
	}
	return in.SigmaCurrent / cfg.NormalSigma
}
