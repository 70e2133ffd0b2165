package models

import "time"

// AuditRetention is how long audit records must be kept
const AuditRetention = 7 * 365 * 24 * time.Hour

// AuditRecord is one append-only entry in the decision audit log. The writer
// role holds only insert and find privileges at the storage layer; no
// decision is emitted without one of these.
type AuditRecord struct {
	EventID            string         `json:"event_id"`
	InputsHash         string         `json:"inputs_hash"`
	DecisionVersion    string         `json:"decision_version"`
	Classification     Classification `json:"classification"`
	ReleaseStatus      ReleaseStatus  `json:"release_status"`
	EdgePoints         float64        `json:"edge_points"`
	ModelProb          float64        `json:"model_prob"`
	Reasons            []string       `json:"reasons"`
	TraceID            string         `json:"trace_id"`
	EngineVersion      string         `json:"engine_version"`
	MarketType         MarketType     `json:"market_type"`
	League             Sport          `json:"league"`
	RetentionExpiresAt time.Time      `json:"retention_expires_at"`
	LoggedAt           time.Time      `json:"logged_at"`
}

// NewAuditRecord builds the audit entry for a produced decision
func NewAuditRecord(d MarketDecision, engineVersion string, now time.Time) AuditRecord {
	return AuditRecord{
		EventID:            d.GameID,
		InputsHash:         d.InputsHash,
		DecisionVersion:    d.DecisionVersion,
		Classification:     d.Classification,
		ReleaseStatus:      d.ReleaseStatus,
		EdgePoints:         d.EdgePoints,
		ModelProb:          d.ModelProbCalibrated,
		Reasons:            d.Reasons,
		TraceID:            d.TraceID,
		EngineVersion:      engineVersion,
		MarketType:         d.MarketType,
		League:             d.Sport,
		RetentionExpiresAt: now.Add(AuditRetention),
		LoggedAt:           now,
	}
}
