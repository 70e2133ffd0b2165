package lifecycle_test

import (
	"context"
	"testing"

	"github.com/rs/zerolog"

	"github.com/XavierBriggs/fortuna/services/decision-engine/internal/lifecycle"
	"github.com/XavierBriggs/fortuna/services/decision-engine/internal/sportconfig"
	"github.com/XavierBriggs/fortuna/services/decision-engine/pkg/models"
)

// fakeSignalStore is an in-memory append-only chain store
type fakeSignalStore struct {
	chains map[string][]models.Signal
}

func newFakeSignalStore() *fakeSignalStore {
	return &fakeSignalStore{chains: make(map[string][]models.Signal)}
}

func (f *fakeSignalStore) key(gameID string, mt models.MarketType) string {
	return gameID + "|" + string(mt)
}

func (f *fakeSignalStore) AppendSignal(_ context.Context, signal models.Signal) error {
	k := f.key(signal.GameID, signal.MarketType)
	f.chains[k] = append(f.chains[k], signal)
	return nil
}

func (f *fakeSignalStore) GetChain(_ context.Context, gameID string, mt models.MarketType) ([]models.Signal, error) {
	return f.chains[f.key(gameID, mt)], nil
}

func floatPtr(v float64) *float64 { return &v }

func nbaConfig(t *testing.T) sportconfig.SportConfig {
	t.Helper()
	registry, err := sportconfig.Load("")
	if err != nil {
		t.Fatalf("loading sport config: %v", err)
	}
	cfg, err := registry.ConfigFor(models.SportNBA)
	if err != nil {
		t.Fatalf("NBA config: %v", err)
	}
	return cfg
}

func decision(selectionID string, tier models.Classification, line float64) models.MarketDecision {
	return models.MarketDecision{
		GameID:                     "game-1",
		Sport:                      models.SportNBA,
		MarketType:                 models.MarketSpread,
		ContextHash:                "ctx-1",
		MarketLine:                 floatPtr(line),
		ModelPreferenceSelectionID: selectionID,
		Classification:             tier,
		ReleaseStatus:              models.ReleaseApproved,
	}
}

func TestAdvanceFreshChainNeedsConfirmation(t *testing.T) {
	store := newFakeSignalStore()
	mgr := lifecycle.NewManager(store, zerolog.Nop())
	cfg := nbaConfig(t) // 2-of-3 confirmation
	ctx := context.Background()

	d := decision("sel-home", models.ClassificationLean, -2.5)

	// First playable sim: only one agreement in the window, no signal yet
	sig, err := mgr.Advance(ctx, cfg, d, []models.MarketDecision{d}, lifecycle.Trigger{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sig != nil {
		t.Fatal("single unconfirmed decision must not open a chain")
	}

	// Second agreeing sim confirms 2-of-3 and opens PENDING
	sig, err = mgr.Advance(ctx, cfg, d, []models.MarketDecision{d, d}, lifecycle.Trigger{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sig == nil {
		t.Fatal("confirmed decision should open a chain")
	}
	if sig.State != models.SignalPending {
		t.Errorf("state = %s, want PENDING", sig.State)
	}
	if sig.SelectionID != "sel-home" {
		t.Errorf("selection = %s, want sel-home", sig.SelectionID)
	}
	if sig.PreviousSignalID != nil {
		t.Error("chain head must not reference a previous signal")
	}
}

func TestAdvanceNonPlayableNeverOpens(t *testing.T) {
	store := newFakeSignalStore()
	mgr := lifecycle.NewManager(store, zerolog.Nop())
	cfg := nbaConfig(t)

	d := decision("sel-home", models.ClassificationNoPlay, -2.5)
	sig, err := mgr.Advance(context.Background(), cfg, d, []models.MarketDecision{d, d, d}, lifecycle.Trigger{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sig != nil {
		t.Error("NO_PLAY must never open a chain")
	}
}

func TestAdvancePendingToActiveEdge(t *testing.T) {
	store := newFakeSignalStore()
	mgr := lifecycle.NewManager(store, zerolog.Nop())
	cfg := nbaConfig(t)
	ctx := context.Background()

	lean := decision("sel-home", models.ClassificationLean, -2.5)
	if _, err := mgr.Advance(ctx, cfg, lean, []models.MarketDecision{lean, lean}, lifecycle.Trigger{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// A single EDGE decision is not yet confirmed at the EDGE tier
	edge := decision("sel-home", models.ClassificationEdge, -2.5)
	sig, err := mgr.Advance(ctx, cfg, edge, []models.MarketDecision{edge, lean, lean}, lifecycle.Trigger{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sig != nil {
		t.Fatalf("unconfirmed EDGE promoted the chain: %s", sig.State)
	}

	// Two of the last three at EDGE promotes to ACTIVE_EDGE
	sig, err = mgr.Advance(ctx, cfg, edge, []models.MarketDecision{edge, edge, lean}, lifecycle.Trigger{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sig == nil || sig.State != models.SignalActiveEdge {
		t.Fatalf("expected ACTIVE_EDGE, got %+v", sig)
	}
	if sig.PreviousSignalID == nil {
		t.Error("promoted signal must reference the previous record")
	}
}

func TestAdvanceSideNeverFlips(t *testing.T) {
	store := newFakeSignalStore()
	mgr := lifecycle.NewManager(store, zerolog.Nop())
	cfg := nbaConfig(t)
	ctx := context.Background()

	home := decision("sel-home", models.ClassificationEdge, -2.5)
	if _, err := mgr.Advance(ctx, cfg, home, []models.MarketDecision{home, home}, lifecycle.Trigger{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := mgr.Advance(ctx, cfg, home, []models.MarketDecision{home, home, home}, lifecycle.Trigger{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Model now prefers away: the chain keeps its side and drops to monitoring
	away := decision("sel-away", models.ClassificationEdge, -2.5)
	sig, err := mgr.Advance(ctx, cfg, away, []models.MarketDecision{away, away, away}, lifecycle.Trigger{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sig == nil || sig.State != models.SignalActiveMonitoring {
		t.Fatalf("expected ACTIVE_MONITORING, got %+v", sig)
	}
	if sig.SelectionID != "sel-home" {
		t.Errorf("locked side flipped to %s", sig.SelectionID)
	}

	// Repeat passes with the flipped preference append nothing further
	sig, err = mgr.Advance(ctx, cfg, away, []models.MarketDecision{away, away, away}, lifecycle.Trigger{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sig != nil {
		t.Error("monitoring chain should not re-append on a repeated flip")
	}
}

func TestAdvanceInvalidation(t *testing.T) {
	cfg := nbaConfig(t) // injury threshold 0.15, snap tolerance 1.5

	tests := []struct {
		name    string
		next    models.MarketDecision
		trigger lifecycle.Trigger
	}{
		{
			name: "Roster unavailable",
			next: func() models.MarketDecision {
				d := decision("sel-home", models.ClassificationLean, -2.5)
				d.Reasons = []string{models.ReasonRosterUnavailable}
				return d
			}(),
		},
		{
			name:    "Injury impact above threshold",
			next:    decision("sel-home", models.ClassificationLean, -2.5),
			trigger: lifecycle.Trigger{InjuryImpact: 0.20},
		},
		{
			name: "Line snap beyond tolerance",
			next: decision("sel-home", models.ClassificationLean, -4.5),
		},
		{
			name: "Integrity block",
			next: func() models.MarketDecision {
				d := decision("sel-home", models.ClassificationBlocked, -2.5)
				d.Reasons = []string{models.ReasonStaleOdds}
				return d
			}(),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newFakeSignalStore()
			mgr := lifecycle.NewManager(store, zerolog.Nop())
			ctx := context.Background()

			open := decision("sel-home", models.ClassificationLean, -2.5)
			if _, err := mgr.Advance(ctx, cfg, open, []models.MarketDecision{open, open}, lifecycle.Trigger{}); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			sig, err := mgr.Advance(ctx, cfg, tt.next, []models.MarketDecision{tt.next, open, open}, tt.trigger)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if sig == nil || sig.State != models.SignalInvalidated {
				t.Fatalf("expected INVALIDATED, got %+v", sig)
			}
			if sig.Reason == "" {
				t.Error("invalidated signal must carry a reason")
			}
			if sig.SelectionID != "sel-home" {
				t.Errorf("invalidation changed the locked side to %s", sig.SelectionID)
			}
		})
	}
}

func TestAdvanceAfterInvalidationStartsFresh(t *testing.T) {
	store := newFakeSignalStore()
	mgr := lifecycle.NewManager(store, zerolog.Nop())
	cfg := nbaConfig(t)
	ctx := context.Background()

	open := decision("sel-home", models.ClassificationLean, -2.5)
	if _, err := mgr.Advance(ctx, cfg, open, []models.MarketDecision{open, open}, lifecycle.Trigger{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	blocked := decision("sel-home", models.ClassificationBlocked, -2.5)
	blocked.Reasons = []string{models.ReasonStaleOdds}
	if _, err := mgr.Advance(ctx, cfg, blocked, []models.MarketDecision{blocked, open, open}, lifecycle.Trigger{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// A confirmed preference on the other side may open a new chain now
	away := decision("sel-away", models.ClassificationLean, 2.5)
	sig, err := mgr.Advance(ctx, cfg, away, []models.MarketDecision{away, away}, lifecycle.Trigger{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sig == nil || sig.State != models.SignalPending {
		t.Fatalf("expected fresh PENDING chain, got %+v", sig)
	}
	if sig.SelectionID != "sel-away" {
		t.Errorf("new chain selection = %s, want sel-away", sig.SelectionID)
	}
}

func TestAdvanceEdgeWeakens(t *testing.T) {
	store := newFakeSignalStore()
	mgr := lifecycle.NewManager(store, zerolog.Nop())
	cfg := nbaConfig(t)
	ctx := context.Background()

	edge := decision("sel-home", models.ClassificationEdge, -2.5)
	if _, err := mgr.Advance(ctx, cfg, edge, []models.MarketDecision{edge, edge}, lifecycle.Trigger{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := mgr.Advance(ctx, cfg, edge, []models.MarketDecision{edge, edge, edge}, lifecycle.Trigger{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	lean := decision("sel-home", models.ClassificationLean, -2.5)
	sig, err := mgr.Advance(ctx, cfg, lean, []models.MarketDecision{lean, edge, edge}, lifecycle.Trigger{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sig == nil || sig.State != models.SignalWeakened {
		t.Fatalf("expected WEAKENED, got %+v", sig)
	}

	// Variance reasons push an active edge to monitoring instead
	store2 := newFakeSignalStore()
	mgr2 := lifecycle.NewManager(store2, zerolog.Nop())
	if _, err := mgr2.Advance(ctx, cfg, edge, []models.MarketDecision{edge, edge}, lifecycle.Trigger{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := mgr2.Advance(ctx, cfg, edge, []models.MarketDecision{edge, edge, edge}, lifecycle.Trigger{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	noisy := decision("sel-home", models.ClassificationLean, -2.5)
	noisy.Reasons = []string{models.ReasonVarianceHigh}
	sig, err = mgr2.Advance(ctx, cfg, noisy, []models.MarketDecision{noisy, edge, edge}, lifecycle.Trigger{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sig == nil || sig.State != models.SignalActiveMonitoring {
		t.Fatalf("expected ACTIVE_MONITORING, got %+v", sig)
	}
}

func TestSettle(t *testing.T) {
	store := newFakeSignalStore()
	mgr := lifecycle.NewManager(store, zerolog.Nop())
	cfg := nbaConfig(t)
	ctx := context.Background()

	open := decision("sel-home", models.ClassificationLean, -2.5)
	if _, err := mgr.Advance(ctx, cfg, open, []models.MarketDecision{open, open}, lifecycle.Trigger{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	sig, err := mgr.Settle(ctx, "game-1", models.MarketSpread)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sig == nil || sig.State != models.SignalSettled {
		t.Fatalf("expected SETTLED, got %+v", sig)
	}

	// Settling a terminal chain is a no-op
	sig, err = mgr.Settle(ctx, "game-1", models.MarketSpread)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sig != nil {
		t.Error("settled chain should not append again")
	}

	// No chain at all is also a no-op
	sig, err = mgr.Settle(ctx, "game-2", models.MarketSpread)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sig != nil {
		t.Error("missing chain should settle to nothing")
	}
}

func TestFoldChainAndTransitions(t *testing.T) {
	if models.FoldChain(nil) != nil {
		t.Error("empty chain should fold to nil")
	}

	chain := []models.Signal{
		{SignalID: "a", State: models.SignalPending},
		{SignalID: "b", State: models.SignalActiveEdge},
	}
	current := models.FoldChain(chain)
	if current == nil || current.SignalID != "b" {
		t.Fatalf("fold should return the newest record, got %+v", current)
	}

	if !models.CanTransition(models.SignalPending, models.SignalActiveEdge) {
		t.Error("PENDING -> ACTIVE_EDGE must be legal")
	}
	if models.CanTransition(models.SignalSettled, models.SignalPending) {
		t.Error("SETTLED is terminal")
	}
	if models.CanTransition(models.SignalInvalidated, models.SignalActiveEdge) {
		t.Error("INVALIDATED cannot reactivate within the chain")
	}
}
