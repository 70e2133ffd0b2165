package calibration

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/XavierBriggs/fortuna/services/decision-engine/internal/sportconfig"
	"github.com/XavierBriggs/fortuna/services/decision-engine/pkg/models"
)

// Source serves the persisted calibration state the refresher mirrors into
// memory: the promoted version pointer and the graded observation window.
type Source interface {
	PromotedCalibration(ctx context.Context, sport models.Sport) (*models.CalibrationVersion, []models.CalibrationSegment, error)
	ListGradedObservations(ctx context.Context, sport models.Sport, since time.Time) ([]models.CalibrationObservation, error)
}

// Refresher keeps the in-memory version registry and baseline tracker in step
// with the store, so promotions made by the grader and freshly graded
// outcomes reach the serving process without a restart.
type Refresher struct {
	src      Source
	registry *sportconfig.Registry
	versions *VersionRegistry
	baseline *BaselineTracker
	interval time.Duration
	log      zerolog.Logger
	now      func() time.Time
}

// NewRefresher creates a refresher
func NewRefresher(src Source, registry *sportconfig.Registry, versions *VersionRegistry, baseline *BaselineTracker, interval time.Duration, log zerolog.Logger) *Refresher {
	return &Refresher{
		src:      src,
		registry: registry,
		versions: versions,
		baseline: baseline,
		interval: interval,
		log:      log.With().Str("component", "calibration-refresh").Logger(),
		now:      time.Now,
	}
}

// RefreshOnce reloads every sport's promoted calibration and drift window
func (r *Refresher) RefreshOnce(ctx context.Context) error {
	for _, sport := range r.registry.Sports() {
		cfg, err := r.registry.ConfigFor(sport)
		if err != nil {
			continue
		}

		version, segments, err := r.src.PromotedCalibration(ctx, sport)
		if err != nil {
			return fmt.Errorf("load promoted calibration for %s: %w", sport, err)
		}
		if version != nil && version.Version != r.versions.VersionFor(sport) {
			r.versions.Promote(*version, segments)
			r.log.Info().Str("sport", string(sport)).Str("version", version.Version).
				Msg("promoted calibration picked up")
		}

		since := r.now().AddDate(0, 0, -cfg.BaselineWindowDays)
		observations, err := r.src.ListGradedObservations(ctx, sport, since)
		if err != nil {
			return fmt.Errorf("load drift window for %s: %w", sport, err)
		}
		if r.baseline != nil {
			r.baseline.Replace(sport, observations)
		}
	}
	return nil
}

// Start runs the refresh loop until ctx is done
func (r *Refresher) Start(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := r.RefreshOnce(ctx); err != nil {
				r.log.Error().Err(err).Msg("calibration refresh failed")
			}
		case <-ctx.Done():
			return
		}
	}
}
