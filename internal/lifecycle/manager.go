package lifecycle

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/XavierBriggs/fortuna/services/decision-engine/internal/sportconfig"
	"github.com/XavierBriggs/fortuna/services/decision-engine/pkg/contracts"
	"github.com/XavierBriggs/fortuna/services/decision-engine/pkg/models"
)

// Trigger carries the external facts that can invalidate a live signal
type Trigger struct {
	// Largest injury impact factor reported since the signal locked
	InjuryImpact float64
}

// Manager drives the append-only signal state machine per (game, market).
// The first qualifying signal is the source of truth; later sims append new
// records referencing previous_signal_id and may downgrade, monitor, or
// invalidate, but never retract or flip the side.
type Manager struct {
	store contracts.SignalStore
	log   zerolog.Logger
	now   func() time.Time
}

// NewManager creates a signal lifecycle manager
func NewManager(store contracts.SignalStore, log zerolog.Logger) *Manager {
	return &Manager{
		store: store,
		log:   log.With().Str("component", "lifecycle").Logger(),
		now:   time.Now,
	}
}

// Advance folds the existing chain and appends at most one new record for
// the latest decision. recent is the decision history for the confirmation
// window, newest first and including the latest decision.
func (m *Manager) Advance(ctx context.Context, cfg sportconfig.SportConfig, decision models.MarketDecision, recent []models.MarketDecision, trigger Trigger) (*models.Signal, error) {
	chain, err := m.store.GetChain(ctx, decision.GameID, decision.MarketType)
	if err != nil {
		return nil, fmt.Errorf("error loading signal chain: %w", err)
	}

	current := models.FoldChain(chain)

	// No live chain: a fresh PENDING may start once the anti-noise window
	// confirms side and tier
	if current == nil || current.State == models.SignalInvalidated || current.State.Terminal() {
		if !decision.Classification.Playable() {
			return nil, nil
		}
		if !confirmed(cfg, recent, decision.ModelPreferenceSelectionID, false) {
			return nil, nil
		}
		return m.append(ctx, models.Signal{
			GameID:         decision.GameID,
			Sport:          decision.Sport,
			MarketType:     decision.MarketType,
			SelectionID:    decision.ModelPreferenceSelectionID,
			State:          models.SignalPending,
			Classification: decision.Classification,
			MarketLine:     decision.MarketLine,
			ContextHash:    decision.ContextHash,
		}, nil)
	}

	// Explicit invalidation rules fire before anything else
	if reason := m.invalidationReason(cfg, current, decision, trigger); reason != "" {
		return m.append(ctx, models.Signal{
			GameID:         decision.GameID,
			Sport:          decision.Sport,
			MarketType:     decision.MarketType,
			SelectionID:    current.SelectionID,
			State:          models.SignalInvalidated,
			Classification: decision.Classification,
			MarketLine:     current.MarketLine,
			ContextHash:    decision.ContextHash,
			Reason:         reason,
		}, current)
	}

	// A flipped preference can never take over a live chain. The chain keeps
	// its side and drops to monitoring; a new chain requires invalidation.
	if decision.ModelPreferenceSelectionID != current.SelectionID {
		if current.State == models.SignalActiveMonitoring {
			return nil, nil
		}
		return m.append(ctx, models.Signal{
			GameID:         decision.GameID,
			Sport:          decision.Sport,
			MarketType:     decision.MarketType,
			SelectionID:    current.SelectionID,
			State:          models.SignalActiveMonitoring,
			Classification: current.Classification,
			MarketLine:     current.MarketLine,
			ContextHash:    decision.ContextHash,
			Reason:         "model preference moved off the locked side",
		}, current)
	}

	next := m.nextState(cfg, current, decision, recent)
	if next == current.State {
		return nil, nil
	}

	if !models.CanTransition(current.State, next) {
		m.log.Warn().Str("game", decision.GameID).Str("from", string(current.State)).
			Str("to", string(next)).Msg("illegal signal transition suppressed")
		return nil, nil
	}

	return m.append(ctx, models.Signal{
		GameID:         decision.GameID,
		Sport:          decision.Sport,
		MarketType:     decision.MarketType,
		SelectionID:    current.SelectionID,
		State:          next,
		Classification: decision.Classification,
		MarketLine:     decision.MarketLine,
		ContextHash:    decision.ContextHash,
	}, current)
}

// Settle closes a chain after the game completes
func (m *Manager) Settle(ctx context.Context, gameID string, marketType models.MarketType) (*models.Signal, error) {
	chain, err := m.store.GetChain(ctx, gameID, marketType)
	if err != nil {
		return nil, fmt.Errorf("error loading signal chain: %w", err)
	}

	current := models.FoldChain(chain)
	if current == nil || current.State.Terminal() {
		return nil, nil
	}

	settled := *current
	settled.State = models.SignalSettled
	settled.Reason = ""
	return m.append(ctx, settled, current)
}

func (m *Manager) nextState(cfg sportconfig.SportConfig, current *models.Signal, decision models.MarketDecision, recent []models.MarketDecision) models.SignalState {
	switch current.State {
	case models.SignalPending:
		if decision.Classification == models.ClassificationEdge &&
			confirmed(cfg, recent, current.SelectionID, true) {
			return models.SignalActiveEdge
		}
		return models.SignalPending

	case models.SignalActiveEdge:
		if decision.HasReason(models.ReasonVarianceHigh) || decision.HasReason(models.ReasonVarianceExtreme) {
			return models.SignalActiveMonitoring
		}
		if decision.Classification != models.ClassificationEdge {
			return models.SignalWeakened
		}
		return models.SignalActiveEdge

	case models.SignalActiveMonitoring, models.SignalWeakened:
		if decision.Classification == models.ClassificationEdge &&
			confirmed(cfg, recent, current.SelectionID, true) {
			return models.SignalActiveEdge
		}
		return current.State
	}

	return current.State
}

// invalidationReason returns the human-readable invalidation cause, empty
// when no rule fired
func (m *Manager) invalidationReason(cfg sportconfig.SportConfig, current *models.Signal, decision models.MarketDecision, trigger Trigger) string {
	if decision.HasReason(models.ReasonRosterUnavailable) {
		return "roster unavailable for a locked side"
	}

	if trigger.InjuryImpact > cfg.InjuryImpactThreshold {
		return fmt.Sprintf("injury status change with impact %.2f above threshold %.2f",
			trigger.InjuryImpact, cfg.InjuryImpactThreshold)
	}

	if current.MarketLine != nil && decision.MarketLine != nil {
		moved := math.Abs(*decision.MarketLine - *current.MarketLine)
		if moved > cfg.MarketSnapTolerance {
			return fmt.Sprintf("market line snapped %.1f points beyond tolerance %.1f",
				moved, cfg.MarketSnapTolerance)
		}
	}

	if decision.Classification == models.ClassificationBlocked {
		if len(decision.Reasons) > 0 {
			return fmt.Sprintf("integrity failure: %s", decision.Reasons[0])
		}
		return "integrity failure"
	}

	return ""
}

// confirmed applies the N-of-M anti-noise window over the immutable decision
// log: at least N of the last M decisions must agree on the side, at the
// required tier (EDGE when edgeOnly, otherwise LEAN or better).
func confirmed(cfg sportconfig.SportConfig, recent []models.MarketDecision, selectionID string, edgeOnly bool) bool {
	window := recent
	if len(window) > cfg.ConfirmM {
		window = window[:cfg.ConfirmM]
	}

	agree := 0
	for _, d := range window {
		if d.ModelPreferenceSelectionID != selectionID {
			continue
		}
		if edgeOnly {
			if d.Classification == models.ClassificationEdge {
				agree++
			}
		} else if d.Classification.Playable() {
			agree++
		}
	}

	return agree >= cfg.ConfirmN
}

func (m *Manager) append(ctx context.Context, signal models.Signal, previous *models.Signal) (*models.Signal, error) {
	signal.SignalID = uuid.NewString()
	signal.CreatedAt = m.now()
	if previous != nil {
		prev := previous.SignalID
		signal.PreviousSignalID = &prev
	}

	if signal.State == models.SignalInvalidated && signal.Reason == "" {
		return nil, fmt.Errorf("invalidated signal requires a reason")
	}

	if err := m.store.AppendSignal(ctx, signal); err != nil {
		return nil, fmt.Errorf("error appending signal: %w", err)
	}

	m.log.Info().Str("game", signal.GameID).Str("market", string(signal.MarketType)).
		Str("state", string(signal.State)).Str("signal_id", signal.SignalID).Msg("signal appended")

	return &signal, nil
}
