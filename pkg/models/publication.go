package models

import "time"

// Channel is a publication destination
type Channel string

const (
	ChannelInternal  Channel = "internal"
	ChannelWeb       Channel = "web"
	ChannelBroadcast Channel = "broadcast"
)

// Visibility is the audience tier of a publication
type Visibility string

const (
	VisibilityFree     Visibility = "free"
	VisibilityPremium  Visibility = "premium"
	VisibilityInternal Visibility = "internal"
)

// TicketTerms are the bet terms locked at publish time
type TicketTerms struct {
	Line    *float64 `json:"line,omitempty"`
	Price   int      `json:"price"` // American
	BookKey string   `json:"book_key"`
}

// PublishedPrediction is an immutable record that a MarketDecision was
// released to a channel. Uniqueness: (prediction_id, channel). Only official
// publications enter the public track record; voiding flips is_official to
// false with a reason but the record itself remains.
type PublishedPrediction struct {
	PublishID    string     `json:"publish_id"`
	PredictionID string     `json:"prediction_id"` // the decision inputs_hash
	GameID       string     `json:"game_id"`
	Sport        Sport      `json:"sport"`
	MarketType   MarketType `json:"market_type"`
	Channel      Channel    `json:"channel"`
	Visibility   Visibility `json:"visibility"`

	IsOfficial bool    `json:"is_official"`
	VoidReason *string `json:"void_reason,omitempty"`

	// Locked copies at publish time
	MarketSnapshotID   string      `json:"market_snapshot_id"`
	EngineVersion      string      `json:"engine_version"`
	ModelVersion       string      `json:"model_version"`
	CalibrationVersion string      `json:"calibration_version"`
	PCalibrated        float64     `json:"p_calibrated"`
	MarketKey          string      `json:"market_key"`
	SelectionID        string      `json:"selection_id"`
	Side               Side        `json:"side"`
	Terms              TicketTerms `json:"ticket_terms"`

	PublishedAt time.Time `json:"published_at"`
}

// PublicationEvent is emitted on the bus per publication state change
type PublicationEvent struct {
	EventType  string              `json:"event_type"` // "published" | "voided"
	Prediction PublishedPrediction `json:"prediction"`
	EmittedAt  time.Time           `json:"emitted_at"`
}
