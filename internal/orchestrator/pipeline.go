package orchestrator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/XavierBriggs/fortuna/services/decision-engine/internal/assembler"
	"github.com/XavierBriggs/fortuna/services/decision-engine/internal/audit"
	"github.com/XavierBriggs/fortuna/services/decision-engine/internal/ingest"
	"github.com/XavierBriggs/fortuna/services/decision-engine/internal/lifecycle"
	"github.com/XavierBriggs/fortuna/services/decision-engine/internal/metrics"
	"github.com/XavierBriggs/fortuna/services/decision-engine/internal/publisher"
	"github.com/XavierBriggs/fortuna/services/decision-engine/internal/realitycheck"
	"github.com/XavierBriggs/fortuna/services/decision-engine/internal/sportconfig"
	"github.com/XavierBriggs/fortuna/services/decision-engine/pkg/contracts"
	"github.com/XavierBriggs/fortuna/services/decision-engine/pkg/models"
)

// PassInput is everything one pipeline pass consumes: the bound context, its
// snapshot, the simulation results, and the game-state facts gathered at tick
// time
type PassInput struct {
	SimCtx   *models.SimulationContext
	Snapshot *models.OddsSnapshot
	Results  []models.SimulationResult

	Live           bool
	CurrentTotal   *float64
	ElapsedMinutes float64

	RosterAvailable   bool
	DataQuality       float64
	InjuryUncertainty float64

	TraceID string
}

// Pipeline runs one full decision pass: ingest validation, reality check,
// assembly, persistence, audit, signal lifecycle, and publication. A pass is
// atomic per game; a failure before the bundle write leaves no partial state.
type Pipeline struct {
	registry  *sportconfig.Registry
	validator *ingest.Validator
	assembler *assembler.Assembler
	lifecycle *lifecycle.Manager
	gate      *publisher.Gate
	stream    *publisher.StreamPublisher
	auditLog  *audit.Logger

	snapshots contracts.SnapshotStore
	results   contracts.ResultStore
	decisions contracts.DecisionStore

	engineVersion string
	modelVersion  string
	log           zerolog.Logger
	now           func() time.Time

	// Last published prediction per (game, market), so an invalidated signal
	// can void the matching publication
	mu        sync.Mutex
	published map[string]string
}

// NewPipeline wires a decision pipeline
func NewPipeline(
	registry *sportconfig.Registry,
	asm *assembler.Assembler,
	lc *lifecycle.Manager,
	gate *publisher.Gate,
	stream *publisher.StreamPublisher,
	auditLog *audit.Logger,
	snapshots contracts.SnapshotStore,
	results contracts.ResultStore,
	decisions contracts.DecisionStore,
	engineVersion, modelVersion string,
	log zerolog.Logger,
) *Pipeline {
	return &Pipeline{
		registry:      registry,
		validator:     ingest.NewValidator(),
		assembler:     asm,
		lifecycle:     lc,
		gate:          gate,
		stream:        stream,
		auditLog:      auditLog,
		snapshots:     snapshots,
		results:       results,
		decisions:     decisions,
		engineVersion: engineVersion,
		modelVersion:  modelVersion,
		log:           log.With().Str("component", "pipeline").Logger(),
		now:           time.Now,
		published:     make(map[string]string),
	}
}

// RunPass processes one completed simulation for one game
func (p *Pipeline) RunPass(ctx context.Context, in PassInput) error {
	started := p.now()
	sport := in.SimCtx.Sport

	cfg, err := p.registry.ConfigFor(sport)
	if err != nil {
		return err
	}

	// Canonical contract enforcement happens once, here. A rejected result
	// produces no decision for its market.
	var accepted []models.SimulationResult
	for _, result := range in.Results {
		if err := p.validator.Validate(result, in.SimCtx, in.Snapshot); err != nil {
			p.log.Warn().Err(err).Str("game", in.SimCtx.GameID).
				Str("market", string(result.MarketType)).Msg("simulation result rejected at ingest")
			continue
		}
		if err := p.results.PutSimulationResult(ctx, result); err != nil {
			return fmt.Errorf("storing simulation result: %w", err)
		}
		accepted = append(accepted, result)
	}
	if len(accepted) == 0 {
		return fmt.Errorf("no valid simulation results for context %s", in.SimCtx.ContextHash)
	}

	rcl := p.evaluateRealityCheck(cfg, accepted, in)

	now := p.now()
	var built []models.MarketDecision
	for _, result := range accepted {
		result := result
		decision, err := p.assembler.BuildMarketDecision(assembler.MarketInput{
			Snapshot:          in.Snapshot,
			SimCtx:            in.SimCtx,
			Result:            &result,
			RCL:               rcl,
			DataQuality:       in.DataQuality,
			InjuryUncertainty: in.InjuryUncertainty,
			RosterAvailable:   in.RosterAvailable,
			TraceID:           in.TraceID,
			Now:               now,
		})
		if err != nil {
			p.log.Error().Err(err).Str("game", in.SimCtx.GameID).
				Str("market", string(result.MarketType)).Msg("decision build failed")
			continue
		}
		built = append(built, decision)

		metrics.DecisionsComputed.WithLabelValues(
			string(decision.Sport), string(decision.MarketType), string(decision.Classification)).Inc()
		if decision.ReleaseStatus != models.ReleaseApproved {
			metrics.DecisionsBlocked.WithLabelValues(
				string(decision.Sport), string(decision.ReleaseStatus)).Inc()
		}
	}
	if len(built) == 0 {
		return fmt.Errorf("no decisions built for context %s", in.SimCtx.ContextHash)
	}

	bundle, err := p.assembler.BuildGameDecisions(in.Snapshot, built, now)
	if err != nil {
		return err
	}
	if err := p.decisions.PutGameDecisions(ctx, bundle); err != nil {
		return fmt.Errorf("storing decision bundle: %w", err)
	}

	// No decision leaves the engine without an audit record
	for _, d := range bundle.Markets() {
		if err := p.auditLog.Record(ctx, *d); err != nil {
			return err
		}
	}

	for _, d := range bundle.Markets() {
		if err := p.advanceSignal(ctx, cfg, *d, in); err != nil {
			p.log.Error().Err(err).Str("game", d.GameID).
				Str("market", string(d.MarketType)).Msg("signal advance failed")
		}
	}

	if err := p.stream.PublishDecisions(ctx, bundle); err != nil {
		p.log.Error().Err(err).Str("game", bundle.GameID).Msg("decision stream emit failed")
	}

	metrics.PipelineDuration.WithLabelValues(string(sport)).Observe(p.now().Sub(started).Seconds())
	return nil
}

// evaluateRealityCheck runs the league-distribution and pace checks against
// the total-market projection
func (p *Pipeline) evaluateRealityCheck(cfg sportconfig.SportConfig, results []models.SimulationResult, in PassInput) realitycheck.Outcome {
	for _, result := range results {
		if result.MarketType != models.MarketTotal || result.ModelTotalMedian == nil {
			continue
		}
		out := realitycheck.Evaluate(cfg, realitycheck.Input{
			ModelTotal:     *result.ModelTotalMedian,
			Live:           in.Live,
			CurrentTotal:   in.CurrentTotal,
			ElapsedMinutes: in.ElapsedMinutes,
		})

		disposition := "pass"
		if out.Flagged {
			disposition = "flag"
		}
		if !out.Passed {
			disposition = "clamp"
		}
		metrics.RealityCheckClamps.WithLabelValues(string(cfg.Sport), disposition).Inc()
		return out
	}

	// No total projection to check
	return realitycheck.Outcome{Passed: true, Pace: realitycheck.PaceNotLive}
}

// advanceSignal feeds one decision through the lifecycle and reconciles
// publications with the resulting signal state
func (p *Pipeline) advanceSignal(ctx context.Context, cfg sportconfig.SportConfig, d models.MarketDecision, in PassInput) error {
	recent, err := p.results.RecentDecisionsForMarket(ctx, d.GameID, d.MarketType, cfg.ConfirmM)
	if err != nil {
		return fmt.Errorf("loading confirmation window: %w", err)
	}

	signal, err := p.lifecycle.Advance(ctx, cfg, d, recent, lifecycle.Trigger{
		InjuryImpact: in.InjuryUncertainty,
	})
	if err != nil {
		return err
	}
	if signal == nil {
		return nil
	}

	key := d.GameID + "|" + string(d.MarketType)

	switch signal.State {
	case models.SignalActiveEdge:
		if d.ReleaseStatus != models.ReleaseApproved || !d.Classification.Playable() {
			return nil
		}
		pub, err := p.publish(ctx, d, in)
		if err != nil {
			return err
		}
		if pub != nil {
			p.mu.Lock()
			p.published[key] = pub.PredictionID
			p.mu.Unlock()
		}

	case models.SignalInvalidated:
		p.mu.Lock()
		predictionID, exists := p.published[key]
		delete(p.published, key)
		p.mu.Unlock()
		if exists {
			for _, channel := range []models.Channel{models.ChannelBroadcast, models.ChannelWeb, models.ChannelInternal} {
				if err := p.gate.Void(ctx, predictionID, channel, signal.Reason); err != nil {
					p.log.Debug().Err(err).Str("prediction_id", predictionID).
						Str("channel", string(channel)).Msg("void skipped")
				}
			}
		}
	}

	return nil
}

func (p *Pipeline) publish(ctx context.Context, d models.MarketDecision, in PassInput) (*models.PublishedPrediction, error) {
	broadcast, _ := models.VisibilityFor(d.Classification)

	channels := []models.Channel{models.ChannelInternal}
	if broadcast {
		channels = append(channels, models.ChannelWeb, models.ChannelBroadcast)
	}

	selectionID := d.ModelPreferenceSelectionID
	if d.RecommendedSelectionID != nil {
		selectionID = *d.RecommendedSelectionID
	}

	var first *models.PublishedPrediction
	for _, channel := range channels {
		visibility := models.VisibilityInternal
		if channel != models.ChannelInternal {
			visibility = models.VisibilityPremium
		}

		pub, err := p.gate.Publish(ctx, publisher.Request{
			Decision:      d,
			Channel:       channel,
			Visibility:    visibility,
			SnapshotHash:  in.Snapshot.ContentHash,
			EngineVersion: p.engineVersion,
			ModelVersion:  p.modelVersion,
			SelectionID:   selectionID,
			Side:          sideForSelection(in, d, selectionID),
			Terms: models.TicketTerms{
				Line:    d.MarketLine,
				Price:   d.MarketOdds,
				BookKey: in.Snapshot.BookKey,
			},
		})
		if err != nil {
			return first, err
		}
		metrics.Publications.WithLabelValues(string(d.Sport), string(channel)).Inc()
		if first == nil {
			first = pub
		}
	}
	return first, nil
}

func sideForSelection(in PassInput, d models.MarketDecision, selectionID string) models.Side {
	for _, result := range in.Results {
		if result.MarketType == d.MarketType && result.ModelPreferenceSelectionID == selectionID {
			return result.PreferredSide()
		}
	}
	for _, result := range in.Results {
		if result.MarketType == d.MarketType {
			return result.PreferredSide()
		}
	}
	return ""
}
