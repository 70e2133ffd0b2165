package models

import "time"

// Classification is the terminal tier for one (game, market)
type Classification string

const (
	ClassificationEdge          Classification = "EDGE"
	ClassificationLean          Classification = "LEAN"
	ClassificationMarketAligned Classification = "MARKET_ALIGNED"
	ClassificationNoPlay        Classification = "NO_PLAY"
	ClassificationBlocked       Classification = "BLOCKED"
)

// Playable reports whether this tier is a recommendable bet
func (c Classification) Playable() bool {
	return c == ClassificationEdge || c == ClassificationLean
}

// ReleaseStatus gates whether a decision may leave the pipeline
type ReleaseStatus string

const (
	ReleaseApproved             ReleaseStatus = "APPROVED"
	ReleaseBlockedIntegrity     ReleaseStatus = "BLOCKED_BY_INTEGRITY"
	ReleaseBlockedOddsMismatch  ReleaseStatus = "BLOCKED_BY_ODDS_MISMATCH"
	ReleaseBlockedCalibration   ReleaseStatus = "BLOCKED_BY_CALIBRATION"
	ReleaseBlockedRealityCheck  ReleaseStatus = "BLOCKED_BY_REALITY_CHECK"
	ReleaseBlockedMarketMissing ReleaseStatus = "BLOCKED_BY_MARKET_MISSING"
)

// Machine-readable reason codes attached to decisions and audit records
const (
	ReasonMarketContractMismatch = "MARKET_CONTRACT_MISMATCH"
	ReasonSymmetryViolation      = "SYMMETRY_VIOLATION"
	ReasonRosterUnavailable      = "ROSTER_UNAVAILABLE"
	ReasonRosterChange           = "ROSTER_CHANGE"
	ReasonStaleOdds              = "STALE_ODDS"
	ReasonContextMismatch        = "CONTEXT_MISMATCH"
	ReasonMissingMarketLine      = "MISSING_MARKET_LINE"
	ReasonMalformedCompetitors   = "MALFORMED_COMPETITORS"
	ReasonRCLClamped             = "RCL_CLAMPED"
	ReasonRCLFlagged             = "RCL_FLAGGED"
	ReasonPaceInfeasible         = "PACE_INFEASIBLE"
	ReasonVarianceHigh           = "VARIANCE_HIGH"
	ReasonVarianceExtreme        = "VARIANCE_EXTREME"
	ReasonAnchorPenalty          = "MARKET_ANCHOR_PENALTY"
	ReasonAnchorHardDeviation    = "MARKET_ANCHOR_HARD_DEVIATION"
	ReasonEliteOverride          = "ELITE_OVERRIDE_APPLIED"
	ReasonBaselineDrift          = "BASELINE_DRIFT_DAMPED"
	ReasonKeyNumberDowngrade     = "KEY_NUMBER_DOWNGRADE"
	ReasonEdgeProbabilityPass    = "EDGE_PROBABILITY_PASS"
	ReasonLeanProbabilityPass    = "LEAN_PROBABILITY_PASS"
	ReasonMarketSnap             = "MARKET_LINE_SNAP"
	ReasonBackpressureDropped    = "BACKPRESSURE_DROPPED"
	ReasonValidatorViolation     = "VALIDATOR_VIOLATION"
	ReasonMinProbability         = "MIN_PROBABILITY_NOT_MET"
	ReasonMarketMisprice         = "MARKET_MISPRICE"
	ReasonCalibrationPromoted    = "CALIBRATION_PROMOTED"
)

// Sentinel selection ids used when no bettable preference exists
const (
	SelectionNoEdge  = "NO_EDGE"
	SelectionInvalid = "INVALID"
)

// MarketDecision is the immutable, authoritative result of classifying one
// (game, market_type) at one context_hash.
type MarketDecision struct {
	GameID      string     `json:"game_id"`
	Sport       Sport      `json:"sport"`
	MarketType  MarketType `json:"market_type"`
	ContextHash string     `json:"context_hash"`

	// Market snapshot fields at decision time
	MarketLine *float64 `json:"market_line,omitempty"`
	MarketOdds int      `json:"market_odds"` // American, preferred side

	ModelPreferenceSelectionID string  `json:"model_preference_selection_id"`
	RecommendedSelectionID     *string `json:"recommended_selection_id,omitempty"`

	EdgePoints float64 `json:"edge_points"` // signed, model_line - market_line
	EdgeEV     float64 `json:"edge_ev"`     // per $100 staked

	ModelProbRaw        float64 `json:"model_prob_raw"`
	ModelProbCalibrated float64 `json:"model_prob_calibrated"`
	MarketImpliedProb   float64 `json:"market_implied_prob"`

	Classification Classification `json:"classification"`
	ReleaseStatus  ReleaseStatus  `json:"release_status"`
	Reasons        []string       `json:"reasons"`

	InputsHash         string `json:"inputs_hash"`
	DecisionVersion    string `json:"decision_version"`
	CalibrationVersion string `json:"calibration_version"`
	TraceID            string `json:"trace_id"`

	ComputedAt time.Time `json:"computed_at"`
}

// HasReason reports whether a reason code is attached
func (d *MarketDecision) HasReason(code string) bool {
	for _, r := range d.Reasons {
		if r == code {
			return true
		}
	}
	return false
}

// GameDecisions is the atomic bundle consumers must fetch. All three markets
// share one inputs_hash basis and one computed_at.
type GameDecisions struct {
	GameID          string          `json:"game_id"`
	Sport           Sport           `json:"sport"`
	HomeTeamName    string          `json:"home_team_name"`
	AwayTeamName    string          `json:"away_team_name"`
	Spread          *MarketDecision `json:"spread,omitempty"`
	Moneyline       *MarketDecision `json:"moneyline,omitempty"`
	Total           *MarketDecision `json:"total,omitempty"`
	InputsHash      string          `json:"inputs_hash"`
	DecisionVersion string          `json:"decision_version"`
	ComputedAt      time.Time       `json:"computed_at"`
}

// Markets returns the non-nil market decisions in stable order
func (g *GameDecisions) Markets() []*MarketDecision {
	out := make([]*MarketDecision, 0, 3)
	for _, d := range []*MarketDecision{g.Spread, g.Moneyline, g.Total} {
		if d != nil {
			out = append(out, d)
		}
	}
	return out
}

// Selection is the canonical identifier for one side of a market
type Selection struct {
	SelectionID     string     `json:"selection_id"` // 16-hex deterministic hash
	TeamDisplayName string     `json:"team_display_name,omitempty"`
	Side            Side       `json:"side"`
	MarketLine      *float64   `json:"market_line,omitempty"` // nil for moneyline
	MarketType      MarketType `json:"market_type"`
}

// MarketState is the authoritative per-market tier with visibility contracts
type MarketState struct {
	GameID           string         `json:"game_id"`
	Sport            Sport          `json:"sport"`
	MarketType       MarketType     `json:"market_type"`
	Classification   Classification `json:"classification"`
	BroadcastAllowed bool           `json:"broadcast_allowed"`
	ParlayAllowed    bool           `json:"parlay_allowed"`
	InputsHash       string         `json:"inputs_hash"`
	ComputedAt       time.Time      `json:"computed_at"`
}

// VisibilityFor derives the broadcast/parlay contract from a tier:
// EDGE may broadcast and parlay, LEAN may only parlay, everything else neither.
func VisibilityFor(c Classification) (broadcastAllowed, parlayAllowed bool) {
	switch c {
	case ClassificationEdge:
		return true, true
	case ClassificationLean:
		return false, true
	default:
		return false, false
	}
}
