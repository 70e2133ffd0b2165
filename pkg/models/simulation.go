package models

import "time"

// ConfidenceInterval describes the uncertainty around a model probability
type ConfidenceInterval struct {
	Lower     float64 `json:"lower"`
	Upper     float64 `json:"upper"`
	HalfWidth float64 `json:"half_width"`
	Level     float64 `json:"level"` // e.g. 0.95
}

// SimulationResult is the canonical contract a simulation worker must emit
// for one (context_hash, market_type). Immutable once written.
type SimulationResult struct {
	SchemaVersion string           `json:"schema_version"`
	ContextHash   string           `json:"context_hash"`
	GameID        string           `json:"game_id"`
	Sport         Sport            `json:"sport"`
	MarketType    MarketType       `json:"market_type"`
	Settlement    MarketSettlement `json:"market_settlement"`
	HomeTeamKey   string           `json:"home_team_key"`
	AwayTeamKey   string           `json:"away_team_key"`

	// Per-side model probabilities. Push mass is carried separately so the
	// symmetry check can account for it.
	Probabilities map[Side]float64 `json:"probabilities"`
	PushProb      float64          `json:"push_prob"`

	ModelPreferenceSelectionID string             `json:"model_preference_selection_id"`
	CI                         ConfidenceInterval `json:"confidence_interval"`

	// Devigged market probabilities per side, from the bound odds snapshot
	DevigMarketProbs map[Side]float64 `json:"devig_market_probs"`

	RawEdge     float64 `json:"raw_edge"`
	EdgePercent float64 `json:"edge_pct"`

	Converged     bool `json:"converged"`
	IterationsRun int  `json:"iterations_run"`

	// Market-specific derived quantities
	ModelFairLine    *float64 `json:"model_fair_line,omitempty"`  // spread/total
	ModelFairPrice   *int     `json:"model_fair_price,omitempty"` // moneyline, American
	ModelTotalMedian *float64 `json:"model_total_median,omitempty"`

	// Current distribution sigma, used by variance gating
	SigmaCurrent float64 `json:"sigma_current"`

	CalibrationVersion string    `json:"calibration_version"`
	CreatedAt          time.Time `json:"created_at_utc"`
}

// PreferredSide returns the side with the highest model probability. Exact
// ties break on side key order so identical inputs always resolve the same.
func (r *SimulationResult) PreferredSide() Side {
	var best Side
	bestP := -1.0
	for side, p := range r.Probabilities {
		if p > bestP || (p == bestP && (best == "" || side < best)) {
			best = side
			bestP = p
		}
	}
	return best
}
