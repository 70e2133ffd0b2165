package contracts

import (
	"context"
	"time"

	"github.com/XavierBriggs/fortuna/services/decision-engine/pkg/models"
)

// SnapshotStore owns the immutable snapshot and context collections.
// Writes are idempotent: identical content yields identical hashes and a
// duplicate insert is treated as success.
type SnapshotStore interface {
	PutOddsSnapshot(ctx context.Context, snap models.OddsSnapshot) (string, error)
	GetOddsSnapshot(ctx context.Context, contentHash string) (*models.OddsSnapshot, error)
	LatestOddsSnapshot(ctx context.Context, gameID string) (*models.OddsSnapshot, error)
	ClosingOddsSnapshot(ctx context.Context, gameID string) (*models.OddsSnapshot, error)

	PutInjurySnapshot(ctx context.Context, snap models.InjurySnapshot) (string, error)
	GetInjurySnapshot(ctx context.Context, contentHash string) (*models.InjurySnapshot, error)

	PutSimContext(ctx context.Context, simCtx models.SimulationContext) (string, error)
	GetSimContext(ctx context.Context, contextHash string) (*models.SimulationContext, error)
}

// ResultStore owns immutable simulation results, selected by context hash,
// never "latest"
type ResultStore interface {
	PutSimulationResult(ctx context.Context, result models.SimulationResult) error
	GetSimulationResults(ctx context.Context, contextHash string) ([]models.SimulationResult, error)

	// RecentDecisionsForMarket returns the most recent decisions for a
	// (game, market), newest first, for the confirmation window
	RecentDecisionsForMarket(ctx context.Context, gameID string, marketType models.MarketType, limit int) ([]models.MarketDecision, error)
}

// DecisionStore owns MarketDecisions and GameDecisions bundles
type DecisionStore interface {
	PutGameDecisions(ctx context.Context, bundle models.GameDecisions) error
	GetGameDecisions(ctx context.Context, gameID string) (*models.GameDecisions, error)
	ListMarketStates(ctx context.Context, sport models.Sport) ([]models.MarketState, error)
}

// SignalStore owns the append-only signal chains
type SignalStore interface {
	AppendSignal(ctx context.Context, signal models.Signal) error
	GetChain(ctx context.Context, gameID string, marketType models.MarketType) ([]models.Signal, error)
}

// PublicationStore owns published predictions, unique per (prediction_id, channel)
type PublicationStore interface {
	// InsertPublication inserts idempotently. When a record already exists for
	// (prediction_id, channel) the existing record is returned with inserted=false.
	InsertPublication(ctx context.Context, pub models.PublishedPrediction) (existing *models.PublishedPrediction, inserted bool, err error)
	GetPublication(ctx context.Context, predictionID string, channel models.Channel) (*models.PublishedPrediction, error)
	ListOfficial(ctx context.Context, sport models.Sport, limit, offset int) ([]models.PublishedPrediction, error)
	ListUngraded(ctx context.Context, sport models.Sport) ([]models.PublishedPrediction, error)
	Void(ctx context.Context, publishID string, reason string) error
}

// GradingStore owns event results, gradings, and calibration artifacts
type GradingStore interface {
	PutEventResult(ctx context.Context, result models.EventResult) error
	GetEventResult(ctx context.Context, gameID string) (*models.EventResult, error)
	PutGrading(ctx context.Context, grading models.Grading) error

	AddCalibrationObservation(ctx context.Context, obs models.CalibrationObservation) error
	ListCalibrationObservations(ctx context.Context, sport models.Sport, marketType models.MarketType, bucket string, since time.Time) ([]models.CalibrationObservation, error)
	ListGradedObservations(ctx context.Context, sport models.Sport, since time.Time) ([]models.CalibrationObservation, error)

	PutCalibrationVersion(ctx context.Context, version models.CalibrationVersion, segments []models.CalibrationSegment) error
	PromoteCalibrationVersion(ctx context.Context, sport models.Sport, version string) error
	PromotedCalibration(ctx context.Context, sport models.Sport) (*models.CalibrationVersion, []models.CalibrationSegment, error)
}

// AuditWriter is the restricted-privileges writer for the append-only audit
// collection. The storage role holds only insert and find; update and delete
// are refused by the store with a permission error.
type AuditWriter interface {
	Insert(ctx context.Context, record models.AuditRecord) error
	Find(ctx context.Context, inputsHash string) ([]models.AuditRecord, error)
}
