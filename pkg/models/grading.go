package models

import "time"

// EventResult is the immutable final score record for a game
type EventResult struct {
	GameID         string    `json:"game_id"`
	Sport          Sport     `json:"sport"`
	HomeTeamKey    string    `json:"home_team_key"`
	AwayTeamKey    string    `json:"away_team_key"`
	HomeScore      int       `json:"home_score"`
	AwayScore      int       `json:"away_score"`
	RegulationHome *int      `json:"regulation_home,omitempty"` // for REGULATION settlement
	RegulationAway *int      `json:"regulation_away,omitempty"`
	WentToOvertime bool      `json:"went_to_overtime"`
	Completed      bool      `json:"completed"`
	CompletedAt    time.Time `json:"completed_at"`
}

// GradeOutcome is the settlement result of one published prediction
type GradeOutcome string

const (
	GradeWin  GradeOutcome = "win"
	GradeLoss GradeOutcome = "loss"
	GradePush GradeOutcome = "push"
	GradeVoid GradeOutcome = "void"
)

// Grading is the per-publication settlement record. Immutable once written.
type Grading struct {
	PublishID     string       `json:"publish_id"`
	GameID        string       `json:"game_id"`
	Outcome       GradeOutcome `json:"outcome"`
	RealizedUnits float64      `json:"realized_units"` // at the locked price, 1u stake

	// CLV versus the closing snapshot
	ClosingPrice *int     `json:"closing_price,omitempty"` // American
	ClosingLine  *float64 `json:"closing_line,omitempty"`
	CLV          *float64 `json:"clv,omitempty"` // p_closed - p_taken
	CLVFavorable *bool    `json:"clv_favorable,omitempty"`

	GradedAt time.Time `json:"graded_at"`
}

// CalibrationVersion is one versioned probability-calibration model. Only one
// version per sport is promoted at a time; promotion is an explicit pointer
// swap recorded in the audit log.
type CalibrationVersion struct {
	Version    string     `json:"version"`
	Sport      Sport      `json:"sport"`
	Method     string     `json:"method"` // "isotonic" | "platt"
	Promoted   bool       `json:"promoted"`
	TrainedAt  time.Time  `json:"trained_at"`
	PromotedAt *time.Time `json:"promoted_at,omitempty"`
}

// CalibrationSegment maps raw probabilities to calibrated ones for one
// (sport, market, bucket). Points are a monotone piecewise-linear map.
type CalibrationSegment struct {
	Version    string             `json:"version"`
	Sport      Sport              `json:"sport"`
	MarketType MarketType         `json:"market_type"`
	Bucket     string             `json:"bucket"` // e.g. "favorite", "dog", "high_total"
	Points     []CalibrationPoint `json:"points"`
}

// CalibrationPoint is one knot of a segment's calibration map
type CalibrationPoint struct {
	Raw        float64 `json:"raw"`
	Calibrated float64 `json:"calibrated"`
}

// CalibrationObservation is one training example for the calibration fit
type CalibrationObservation struct {
	Sport      Sport      `json:"sport"`
	MarketType MarketType `json:"market_type"`
	Bucket     string     `json:"bucket"`
	PPredicted float64    `json:"p_predicted"`
	PMarket    float64    `json:"p_market"`
	Won        bool       `json:"won"`
	OverPicked bool       `json:"over_picked"`
	ObservedAt time.Time  `json:"observed_at"`
}
