package publisher

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/XavierBriggs/fortuna/services/decision-engine/pkg/contracts"
	"github.com/XavierBriggs/fortuna/services/decision-engine/pkg/models"
)

// EventSink receives publication state changes for downstream fan-out
type EventSink interface {
	PublishEvent(ctx context.Context, event models.PublicationEvent) error
}

// Request carries everything the gate locks into a published record
type Request struct {
	Decision   models.MarketDecision
	Channel    models.Channel
	Visibility models.Visibility

	SnapshotHash  string
	EngineVersion string
	ModelVersion  string
	SelectionID   string
	Side          models.Side
	Terms         models.TicketTerms
}

// Gate is the single choke point between decisions and the outside world.
// Exactly one publication exists per (prediction_id, channel); retries and
// crash-replays collapse onto the first record.
type Gate struct {
	store contracts.PublicationStore
	sink  EventSink
	log   zerolog.Logger
	now   func() time.Time
}

// NewGate creates a publication gate
func NewGate(store contracts.PublicationStore, sink EventSink, log zerolog.Logger) *Gate {
	return &Gate{
		store: store,
		sink:  sink,
		log:   log.With().Str("component", "publisher").Logger(),
		now:   time.Now,
	}
}

// Publish records and emits one publication. Replays return the original
// record without a second bus event.
func (g *Gate) Publish(ctx context.Context, req Request) (*models.PublishedPrediction, error) {
	d := req.Decision
	if d.ReleaseStatus != models.ReleaseApproved {
		return nil, fmt.Errorf("decision %s is %s, refusing to publish", d.InputsHash, d.ReleaseStatus)
	}
	if !d.Classification.Playable() {
		return nil, fmt.Errorf("tier %s is not publishable", d.Classification)
	}

	pub := models.PublishedPrediction{
		PublishID:          uuid.NewString(),
		PredictionID:       d.InputsHash,
		GameID:             d.GameID,
		Sport:              d.Sport,
		MarketType:         d.MarketType,
		Channel:            req.Channel,
		Visibility:         req.Visibility,
		IsOfficial:         true,
		MarketSnapshotID:   req.SnapshotHash,
		EngineVersion:      req.EngineVersion,
		ModelVersion:       req.ModelVersion,
		CalibrationVersion: d.CalibrationVersion,
		PCalibrated:        d.ModelProbCalibrated,
		MarketKey:          fmt.Sprintf("%s:%s", d.GameID, d.MarketType),
		SelectionID:        req.SelectionID,
		Side:               req.Side,
		Terms:              req.Terms,
		PublishedAt:        g.now(),
	}

	existing, inserted, err := g.store.InsertPublication(ctx, pub)
	if err != nil {
		return nil, fmt.Errorf("error inserting publication: %w", err)
	}
	if !inserted {
		g.log.Debug().Str("prediction_id", d.InputsHash).Str("channel", string(req.Channel)).
			Msg("publication replay collapsed onto existing record")
		return existing, nil
	}

	event := models.PublicationEvent{
		EventType:  "published",
		Prediction: pub,
		EmittedAt:  g.now(),
	}
	if err := g.sink.PublishEvent(ctx, event); err != nil {
		// Record is durable; the bus emit is retried by consumers reading
		// the publication log, so a failed emit is logged and not fatal
		g.log.Error().Err(err).Str("publish_id", pub.PublishID).Msg("publication event emit failed")
	}

	g.log.Info().Str("prediction_id", pub.PredictionID).Str("channel", string(pub.Channel)).
		Str("selection_id", pub.SelectionID).Msg("prediction published")

	return &pub, nil
}

// Void flips a publication off the official track record. The record itself
// remains, carrying the reason.
func (g *Gate) Void(ctx context.Context, predictionID string, channel models.Channel, reason string) error {
	if reason == "" {
		return fmt.Errorf("void requires a reason")
	}

	pub, err := g.store.GetPublication(ctx, predictionID, channel)
	if err != nil {
		return fmt.Errorf("error loading publication: %w", err)
	}
	if pub == nil {
		return fmt.Errorf("no publication for %s on %s", predictionID, channel)
	}
	if !pub.IsOfficial {
		return nil
	}

	if err := g.store.Void(ctx, pub.PublishID, reason); err != nil {
		return fmt.Errorf("error voiding publication: %w", err)
	}

	voided := *pub
	voided.IsOfficial = false
	voided.VoidReason = &reason
	event := models.PublicationEvent{
		EventType:  "voided",
		Prediction: voided,
		EmittedAt:  g.now(),
	}
	if err := g.sink.PublishEvent(ctx, event); err != nil {
		g.log.Error().Err(err).Str("publish_id", pub.PublishID).Msg("void event emit failed")
	}

	g.log.Warn().Str("prediction_id", predictionID).Str("reason", reason).Msg("publication voided")
	return nil
}
