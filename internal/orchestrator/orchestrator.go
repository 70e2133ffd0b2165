package orchestrator

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/XavierBriggs/fortuna/services/decision-engine/internal/audit"
	"github.com/XavierBriggs/fortuna/services/decision-engine/internal/identity"
	"github.com/XavierBriggs/fortuna/services/decision-engine/internal/metrics"
	"github.com/XavierBriggs/fortuna/services/decision-engine/internal/sportconfig"
	"github.com/XavierBriggs/fortuna/services/decision-engine/pkg/contracts"
	"github.com/XavierBriggs/fortuna/services/decision-engine/pkg/models"
)

// Config carries the version identity and simulation parameters every
// context is bound to
type Config struct {
	EngineVersion   string
	ModelVersion    string
	DataFeedVersion string
	Iterations      int
	SeedBase        int64
}

// Orchestrator drives the per-game decision loop. Parallel across games,
// sequential per (game, market): exactly one pass runs per context_hash, and
// duplicate starts collapse on it.
type Orchestrator struct {
	registry  *sportconfig.Registry
	odds      contracts.OddsProvider
	rosters   contracts.RosterFeed
	scores    contracts.LiveScoreFeed
	snapshots contracts.SnapshotStore
	simWorker contracts.SimulationWorker
	pipeline  *Pipeline
	auditLog  *audit.Logger
	cfg       Config
	log       zerolog.Logger
	now       func() time.Time

	mu           sync.Mutex
	lastSnapshot map[string]string // game_id -> content hash
	inflight     map[string]bool   // context_hash
	backlog      map[models.Sport]chan struct{}

	wg sync.WaitGroup
}

// New creates an orchestrator
func New(
	registry *sportconfig.Registry,
	odds contracts.OddsProvider,
	rosters contracts.RosterFeed,
	scores contracts.LiveScoreFeed,
	snapshots contracts.SnapshotStore,
	simWorker contracts.SimulationWorker,
	pipeline *Pipeline,
	auditLog *audit.Logger,
	cfg Config,
	log zerolog.Logger,
) *Orchestrator {
	return &Orchestrator{
		registry:     registry,
		odds:         odds,
		rosters:      rosters,
		scores:       scores,
		snapshots:    snapshots,
		simWorker:    simWorker,
		pipeline:     pipeline,
		auditLog:     auditLog,
		cfg:          cfg,
		log:          log.With().Str("component", "orchestrator").Logger(),
		now:          time.Now,
		lastSnapshot: make(map[string]string),
		inflight:     make(map[string]bool),
		backlog:      make(map[models.Sport]chan struct{}),
	}
}

// Run starts one loop per configured sport and blocks until ctx is done
func (o *Orchestrator) Run(ctx context.Context) {
	// The backlog map is fully populated before any sport loop starts; after
	// this point it is only ever read
	configs := make(map[models.Sport]sportconfig.SportConfig)
	for _, sport := range o.registry.Sports() {
		cfg, err := o.registry.ConfigFor(sport)
		if err != nil {
			continue
		}
		configs[sport] = cfg
		o.backlog[sport] = make(chan struct{}, cfg.MaxSimBacklog)
	}

	for sport, cfg := range configs {
		o.wg.Add(1)
		go func(sport models.Sport, cfg sportconfig.SportConfig) {
			defer o.wg.Done()
			o.runSport(ctx, sport, cfg)
		}(sport, cfg)
	}

	<-ctx.Done()
	o.wg.Wait()
}

// runSport polls the odds provider at the sport's finest cadence and fans
// ticks out to per-game processing, each game rate-limited to its own
// cadence-derived interval
func (o *Orchestrator) runSport(ctx context.Context, sport models.Sport, cfg sportconfig.SportConfig) {
	ticker := time.NewTicker(cfg.Cadence.LiveInterval.Std())
	defer ticker.Stop()

	nextDue := make(map[string]time.Time)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		snaps, err := o.odds.ListEvents(ctx, sport)
		if err != nil {
			metrics.OddsFetchErrors.WithLabelValues(string(sport)).Inc()
			o.log.Error().Err(err).Str("sport", string(sport)).Msg("odds fetch failed")
			continue
		}

		now := o.now()
		for i := range snaps {
			snap := snaps[i]
			if due, exists := nextDue[snap.GameID]; exists && now.Before(due) {
				continue
			}
			interval := intervalFor(cfg.Cadence, snap.CommenceTime, now)
			nextDue[snap.GameID] = now.Add(interval)

			o.processGame(ctx, cfg, snap, interval)
		}
	}
}

// intervalFor picks the cadence tier: live during play, aggressive inside
// the pre-tipoff window, base otherwise
func intervalFor(c sportconfig.Cadence, commence, now time.Time) time.Duration {
	switch {
	case now.After(commence):
		return c.LiveInterval.Std()
	case commence.Sub(now) <= c.AggressiveWithin.Std():
		return c.AggressiveInterval.Std()
	default:
		return c.BaseInterval.Std()
	}
}

// processGame runs odds-change detection and, when the market moved,
// dispatches a bounded simulation pass
func (o *Orchestrator) processGame(ctx context.Context, cfg sportconfig.SportConfig, snap models.OddsSnapshot, interval time.Duration) {
	sport := snap.Sport

	o.mu.Lock()
	unchanged := o.lastSnapshot[snap.GameID] == snap.ContentHash
	o.mu.Unlock()
	if unchanged {
		return
	}

	if _, err := o.snapshots.PutOddsSnapshot(ctx, snap); err != nil {
		o.log.Error().Err(err).Str("game", snap.GameID).Msg("snapshot write failed")
		return
	}
	o.mu.Lock()
	o.lastSnapshot[snap.GameID] = snap.ContentHash
	o.mu.Unlock()

	rosterAvailable, injuryHashes, injuryImpact := o.gatherInjuries(ctx, snap)

	simCtx := models.SimulationContext{
		GameID:               snap.GameID,
		Sport:                sport,
		ModelVersion:         o.cfg.ModelVersion,
		EngineVersion:        o.cfg.EngineVersion,
		DataFeedVersion:      o.cfg.DataFeedVersion,
		OddsSnapshotHash:     snap.ContentHash,
		InjurySnapshotHashes: injuryHashes,
		Iterations:           o.cfg.Iterations,
		SeedBase:             o.cfg.SeedBase,
	}
	contextHash, err := identity.ContentHash(simCtx)
	if err != nil {
		o.log.Error().Err(err).Str("game", snap.GameID).Msg("context hash failed")
		return
	}
	simCtx.ContextHash = contextHash

	// Duplicate passes collapse on the context hash
	o.mu.Lock()
	if o.inflight[contextHash] {
		o.mu.Unlock()
		return
	}
	o.inflight[contextHash] = true
	o.mu.Unlock()

	if _, err := o.snapshots.PutSimContext(ctx, simCtx); err != nil {
		o.clearInflight(contextHash)
		o.log.Error().Err(err).Str("game", snap.GameID).Msg("context write failed")
		return
	}

	live := o.now().After(snap.CommenceTime)

	// Bounded per-sport backlog. Live games preempt: they never wait behind
	// pre-game passes. Pre-game ticks drop when the backlog is full; the
	// next tick re-queues.
	if !live {
		select {
		case o.backlog[sport] <- struct{}{}:
		default:
			o.clearInflight(contextHash)
			o.recordDrop(ctx, snap)
			return
		}
	}

	deadline := interval
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		defer o.clearInflight(contextHash)
		if !live {
			defer func() { <-o.backlog[sport] }()
		}
		o.runPass(ctx, cfg, snap, simCtx, deadline, live, rosterAvailable, injuryImpact)
	}()
}

// runPass waits on the simulation worker under a cadence-derived deadline
// and feeds the results to the pipeline. A deadline miss cancels the pass;
// nothing partial is written and no signal is touched.
func (o *Orchestrator) runPass(ctx context.Context, cfg sportconfig.SportConfig, snap models.OddsSnapshot, simCtx models.SimulationContext, deadline time.Duration, live, rosterAvailable bool, injuryImpact float64) {
	passCtx, cancel := context.WithTimeout(ctx, deadline)
	defer cancel()

	results, err := o.simWorker.Run(passCtx, simCtx)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			o.log.Warn().Str("game", snap.GameID).Str("context", simCtx.ContextHash).
				Msg("pass cancelled at deadline")
			return
		}
		o.log.Error().Err(err).Str("game", snap.GameID).Msg("simulation failed")
		return
	}

	elapsed := 0.0
	var currentTotal *float64
	if live {
		elapsed = o.now().Sub(snap.CommenceTime).Minutes()
		if elapsed > cfg.RegulationMinutes {
			elapsed = cfg.RegulationMinutes
		}
		if o.scores != nil {
			total, err := o.scores.GetLiveTotal(passCtx, snap.Sport, snap.GameID)
			if err != nil {
				// The pace check skips itself when no score is known
				o.log.Warn().Err(err).Str("game", snap.GameID).Msg("live score fetch failed")
			} else {
				currentTotal = total
			}
		}
	}

	dataQuality := 1.0
	if !rosterAvailable {
		dataQuality = 0.8
	}

	err = o.pipeline.RunPass(passCtx, PassInput{
		SimCtx:            &simCtx,
		Snapshot:          &snap,
		Results:           results,
		Live:              live,
		CurrentTotal:      currentTotal,
		ElapsedMinutes:    elapsed,
		RosterAvailable:   rosterAvailable,
		DataQuality:       dataQuality,
		InjuryUncertainty: injuryImpact,
		TraceID:           uuid.NewString(),
	})
	if err != nil {
		o.log.Error().Err(err).Str("game", snap.GameID).Msg("pipeline pass failed")
	}
}

// gatherInjuries captures both teams' injury snapshots and reports the
// largest impact factor seen
func (o *Orchestrator) gatherInjuries(ctx context.Context, snap models.OddsSnapshot) (available bool, hashes []string, maxImpact float64) {
	available = true
	for _, teamKey := range []string{snap.HomeTeamKey, snap.AwayTeamKey} {
		injuries, err := o.rosters.GetInjuries(ctx, teamKey, snap.Sport)
		if err != nil {
			if errors.Is(err, contracts.ErrRosterUnavailable) {
				available = false
			} else {
				o.log.Warn().Err(err).Str("team", teamKey).Msg("injury fetch failed")
			}
			continue
		}
		if _, err := o.snapshots.PutInjurySnapshot(ctx, *injuries); err != nil {
			o.log.Warn().Err(err).Str("team", teamKey).Msg("injury snapshot write failed")
			continue
		}
		hashes = append(hashes, injuries.ContentHash)
		if impact := injuries.MaxImpact(); impact > maxImpact {
			maxImpact = impact
		}
	}
	return available, hashes, maxImpact
}

// recordDrop audits a backpressure drop so the gap in the decision log is
// explained
func (o *Orchestrator) recordDrop(ctx context.Context, snap models.OddsSnapshot) {
	metrics.SimulationsDropped.WithLabelValues(string(snap.Sport)).Inc()

	dropped := models.MarketDecision{
		GameID:          snap.GameID,
		Sport:           snap.Sport,
		Classification:  models.ClassificationNoPlay,
		ReleaseStatus:   models.ReleaseBlockedIntegrity,
		Reasons:         []string{models.ReasonBackpressureDropped},
		InputsHash:      snap.ContentHash,
		DecisionVersion: o.cfg.EngineVersion,
		ComputedAt:      o.now(),
	}
	if err := o.auditLog.Record(ctx, dropped); err != nil {
		o.log.Error().Err(err).Str("game", snap.GameID).Msg("drop audit failed")
	}
	o.log.Warn().Str("game", snap.GameID).Str("sport", string(snap.Sport)).
		Msg("tick dropped under backpressure")
}

func (o *Orchestrator) clearInflight(contextHash string) {
	o.mu.Lock()
	delete(o.inflight, contextHash)
	o.mu.Unlock()
}
