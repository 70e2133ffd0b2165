package grader

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/XavierBriggs/fortuna/services/decision-engine/internal/audit"
	"github.com/XavierBriggs/fortuna/services/decision-engine/internal/sportconfig"
	"github.com/XavierBriggs/fortuna/services/decision-engine/pkg/contracts"
	"github.com/XavierBriggs/fortuna/services/decision-engine/pkg/models"
)

// minObservationsPerSegment is the floor below which a segment keeps its
// previous calibration instead of fitting on noise
const minObservationsPerSegment = 50

// Trainer fits new calibration versions from graded observations. Fits are
// staged, never live: promotion is a separate explicit step that lands in
// the audit log.
type Trainer struct {
	registry *sportconfig.Registry
	gradings contracts.GradingStore
	auditLog *audit.Logger
	interval time.Duration
	window   time.Duration
	log      zerolog.Logger
	now      func() time.Time
}

// NewTrainer creates a calibration trainer
func NewTrainer(registry *sportconfig.Registry, gradings contracts.GradingStore, auditLog *audit.Logger, interval, window time.Duration, log zerolog.Logger) *Trainer {
	return &Trainer{
		registry: registry,
		gradings: gradings,
		auditLog: auditLog,
		interval: interval,
		window:   window,
		log:      log.With().Str("component", "calibration-trainer").Logger(),
		now:      time.Now,
	}
}

// Start begins the periodic training loop
func (t *Trainer) Start(ctx context.Context) error {
	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			for _, sport := range t.registry.Sports() {
				if err := t.TrainSport(ctx, sport); err != nil {
					t.log.Error().Err(err).Str("sport", string(sport)).Msg("training failed")
				}
			}
		case <-ctx.Done():
			return nil
		}
	}
}

// TrainSport fits one staged calibration version for a sport from the
// observation window
func (t *Trainer) TrainSport(ctx context.Context, sport models.Sport) error {
	cfg, err := t.registry.ConfigFor(sport)
	if err != nil {
		return err
	}

	since := t.now().Add(-t.window)
	versionID := fmt.Sprintf("cal-%s-%s", sport, t.now().UTC().Format("20060102"))

	var segments []models.CalibrationSegment
	for _, contract := range cfg.SupportedMarkets {
		for _, bucket := range []string{"favorite", "dog"} {
			observations, err := t.gradings.ListCalibrationObservations(ctx, sport, contract.MarketType, bucket, since)
			if err != nil {
				return fmt.Errorf("list observations: %w", err)
			}
			if len(observations) < minObservationsPerSegment {
				continue
			}

			points := fitIsotonic(observations)
			if len(points) == 0 {
				continue
			}
			segments = append(segments, models.CalibrationSegment{
				Version:    versionID,
				Sport:      sport,
				MarketType: contract.MarketType,
				Bucket:     bucket,
				Points:     points,
			})
		}
	}

	if len(segments) == 0 {
		t.log.Debug().Str("sport", string(sport)).Msg("no segment has enough observations")
		return nil
	}

	version := models.CalibrationVersion{
		Version:   versionID,
		Sport:     sport,
		Method:    "isotonic",
		TrainedAt: t.now(),
	}
	if err := t.gradings.PutCalibrationVersion(ctx, version, segments); err != nil {
		return fmt.Errorf("store version: %w", err)
	}

	t.log.Info().Str("sport", string(sport)).Str("version", versionID).
		Int("segments", len(segments)).Msg("calibration version staged")
	return nil
}

// Promote swaps the live calibration pointer for a sport and writes the swap
// to the audit log. No silent rollout.
func (t *Trainer) Promote(ctx context.Context, sport models.Sport, version string) error {
	if err := t.gradings.PromoteCalibrationVersion(ctx, sport, version); err != nil {
		return err
	}

	record := models.MarketDecision{
		GameID:             "calibration",
		Sport:              sport,
		Classification:     models.ClassificationNoPlay,
		ReleaseStatus:      models.ReleaseApproved,
		Reasons:            []string{models.ReasonCalibrationPromoted},
		InputsHash:         version,
		CalibrationVersion: version,
		ComputedAt:         t.now(),
	}
	if err := t.auditLog.Record(ctx, record); err != nil {
		return fmt.Errorf("audit promotion: %w", err)
	}

	t.log.Info().Str("sport", string(sport)).Str("version", version).Msg("calibration version promoted")
	return nil
}

// fitIsotonic runs pool-adjacent-violators over observations ordered by
// predicted probability, yielding a monotone piecewise-linear map from raw
// probability to observed win rate
func fitIsotonic(observations []models.CalibrationObservation) []models.CalibrationPoint {
	sorted := make([]models.CalibrationObservation, len(observations))
	copy(sorted, observations)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].PPredicted < sorted[j].PPredicted })

	type block struct {
		sumRaw float64
		sumWin float64
		count  float64
	}

	var blocks []block
	for _, obs := range sorted {
		win := 0.0
		if obs.Won {
			win = 1.0
		}
		blocks = append(blocks, block{sumRaw: obs.PPredicted, sumWin: win, count: 1})

		// Merge backwards while the monotonicity constraint is violated
		for len(blocks) > 1 {
			last := blocks[len(blocks)-1]
			prev := blocks[len(blocks)-2]
			if prev.sumWin/prev.count <= last.sumWin/last.count {
				break
			}
			merged := block{
				sumRaw: prev.sumRaw + last.sumRaw,
				sumWin: prev.sumWin + last.sumWin,
				count:  prev.count + last.count,
			}
			blocks = blocks[:len(blocks)-2]
			blocks = append(blocks, merged)
		}
	}

	points := make([]models.CalibrationPoint, 0, len(blocks))
	for _, b := range blocks {
		points = append(points, models.CalibrationPoint{
			Raw:        b.sumRaw / b.count,
			Calibrated: b.sumWin / b.count,
		})
	}
	return points
}
