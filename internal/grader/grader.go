package grader

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/XavierBriggs/fortuna/services/decision-engine/internal/audit"
	"github.com/XavierBriggs/fortuna/services/decision-engine/internal/calibration"
	"github.com/XavierBriggs/fortuna/services/decision-engine/internal/metrics"
	"github.com/XavierBriggs/fortuna/services/decision-engine/internal/sportconfig"
	"github.com/XavierBriggs/fortuna/services/decision-engine/pkg/contracts"
	"github.com/XavierBriggs/fortuna/services/decision-engine/pkg/models"
	"github.com/XavierBriggs/fortuna/services/decision-engine/pkg/oddsmath"
)

// Grader settles official publications after results arrive, computes CLV
// against the closing snapshot, and feeds the calibration training set
type Grader struct {
	registry     *sportconfig.Registry
	resultsFeed  contracts.ResultsFeed
	odds         contracts.OddsProvider
	gradings     contracts.GradingStore
	publications contracts.PublicationStore
	snapshots    contracts.SnapshotStore
	auditLog     *audit.Logger
	pollInterval time.Duration
	log          zerolog.Logger
	now          func() time.Time
}

// New creates a grader
func New(
	registry *sportconfig.Registry,
	resultsFeed contracts.ResultsFeed,
	odds contracts.OddsProvider,
	gradings contracts.GradingStore,
	publications contracts.PublicationStore,
	snapshots contracts.SnapshotStore,
	auditLog *audit.Logger,
	pollInterval time.Duration,
	log zerolog.Logger,
) *Grader {
	return &Grader{
		registry:     registry,
		resultsFeed:  resultsFeed,
		odds:         odds,
		gradings:     gradings,
		publications: publications,
		snapshots:    snapshots,
		auditLog:     auditLog,
		pollInterval: pollInterval,
		log:          log.With().Str("component", "grader").Logger(),
		now:          time.Now,
	}
}

// Start begins the grading polling loop
func (g *Grader) Start(ctx context.Context) error {
	ticker := time.NewTicker(g.pollInterval)
	defer ticker.Stop()

	// Run immediately on start
	if err := g.runOnce(ctx); err != nil {
		g.log.Error().Err(err).Msg("initial grading run failed")
	}

	for {
		select {
		case <-ticker.C:
			if err := g.runOnce(ctx); err != nil {
				g.log.Error().Err(err).Msg("grading run failed")
			}
		case <-ctx.Done():
			return nil
		}
	}
}

func (g *Grader) runOnce(ctx context.Context) error {
	for _, sport := range g.registry.Sports() {
		if err := g.captureClosingLines(ctx, sport); err != nil {
			g.log.Warn().Err(err).Str("sport", string(sport)).Msg("closing capture failed")
		}
		if err := g.gradeSport(ctx, sport); err != nil {
			g.log.Error().Err(err).Str("sport", string(sport)).Msg("grading sport failed")
		}
	}
	return nil
}

// captureClosingLines stores a closing-flagged snapshot for games about to
// start, so CLV has a reference point
func (g *Grader) captureClosingLines(ctx context.Context, sport models.Sport) error {
	snaps, err := g.odds.ListEvents(ctx, sport)
	if err != nil {
		return err
	}

	now := g.now()
	for _, snap := range snaps {
		until := snap.CommenceTime.Sub(now)
		if until < 0 || until > 10*time.Minute {
			continue
		}
		snap.Closing = true
		if _, err := g.snapshots.PutOddsSnapshot(ctx, snap); err != nil {
			g.log.Warn().Err(err).Str("game", snap.GameID).Msg("closing snapshot write failed")
		}
	}
	return nil
}

func (g *Grader) gradeSport(ctx context.Context, sport models.Sport) error {
	cfg, err := g.registry.ConfigFor(sport)
	if err != nil {
		return err
	}

	results, err := g.resultsFeed.GetResults(ctx, sport, 3)
	if err != nil {
		return fmt.Errorf("fetch results: %w", err)
	}
	for _, result := range results {
		if err := g.gradings.PutEventResult(ctx, result); err != nil {
			g.log.Error().Err(err).Str("game", result.GameID).Msg("result write failed")
		}
	}

	ungraded, err := g.publications.ListUngraded(ctx, sport)
	if err != nil {
		return fmt.Errorf("list ungraded: %w", err)
	}

	for _, pub := range ungraded {
		result, err := g.gradings.GetEventResult(ctx, pub.GameID)
		if err != nil {
			g.log.Error().Err(err).Str("game", pub.GameID).Msg("result lookup failed")
			continue
		}
		if result == nil || !result.Completed {
			continue
		}

		if err := g.gradeOne(ctx, cfg, pub, *result); err != nil {
			g.log.Error().Err(err).Str("publish_id", pub.PublishID).Msg("grading failed")
		}
	}

	return nil
}

func (g *Grader) gradeOne(ctx context.Context, cfg sportconfig.SportConfig, pub models.PublishedPrediction, result models.EventResult) error {
	regulation := cfg.SupportsMarket(pub.MarketType, models.SettlementRegulation)

	outcome, err := Settle(pub, result, regulation)
	if err != nil {
		return err
	}

	units, err := oddsmath.RealizedUnits(outcome == models.GradeWin, outcome == models.GradePush, pub.Terms.Price)
	if err != nil {
		return fmt.Errorf("realized units: %w", err)
	}

	grading := models.Grading{
		PublishID:     pub.PublishID,
		GameID:        pub.GameID,
		Outcome:       outcome,
		RealizedUnits: units,
		GradedAt:      g.now(),
	}

	g.attachCLV(ctx, pub, &grading)

	if err := g.gradings.PutGrading(ctx, grading); err != nil {
		return fmt.Errorf("store grading: %w", err)
	}

	// Pushes and voids carry no information about probability quality
	if outcome == models.GradeWin || outcome == models.GradeLoss {
		pMarket := 0.0
		if p, err := oddsmath.AmericanToImpliedProbability(pub.Terms.Price); err == nil {
			pMarket = p
		}
		obs := models.CalibrationObservation{
			Sport:      pub.Sport,
			MarketType: pub.MarketType,
			Bucket:     calibration.BucketFor(pub.PCalibrated),
			PPredicted: pub.PCalibrated,
			PMarket:    pMarket,
			Won:        outcome == models.GradeWin,
			OverPicked: pub.Side == models.SideOver,
			ObservedAt: g.now(),
		}
		if err := g.gradings.AddCalibrationObservation(ctx, obs); err != nil {
			g.log.Error().Err(err).Str("publish_id", pub.PublishID).Msg("observation write failed")
		}
	}

	metrics.GradedOutcomes.WithLabelValues(string(pub.Sport), string(outcome)).Inc()
	g.log.Info().Str("publish_id", pub.PublishID).Str("outcome", string(outcome)).
		Float64("units", units).Msg("prediction graded")

	return nil
}

// attachCLV computes closing line value: the implied probability at the
// closing price minus at the taken price, on the same side. Positive means
// the market moved toward the pick.
func (g *Grader) attachCLV(ctx context.Context, pub models.PublishedPrediction, grading *models.Grading) {
	closing, err := g.snapshots.ClosingOddsSnapshot(ctx, pub.GameID)
	if err != nil || closing == nil {
		return
	}

	market, exists := closing.Market(pub.MarketType)
	if !exists {
		return
	}
	price, exists := market.Price(pub.Side)
	if !exists {
		return
	}

	pTaken, err1 := oddsmath.AmericanToImpliedProbability(pub.Terms.Price)
	pClosed, err2 := oddsmath.AmericanToImpliedProbability(price.American)
	if err1 != nil || err2 != nil {
		return
	}

	clv := pClosed - pTaken
	favorable := clv > 0

	grading.ClosingPrice = &price.American
	grading.ClosingLine = market.Line
	grading.CLV = &clv
	grading.CLVFavorable = &favorable
}
