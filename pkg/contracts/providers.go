package contracts

import (
	"context"
	"errors"

	"github.com/XavierBriggs/fortuna/services/decision-engine/pkg/models"
)

// ErrRosterUnavailable is returned when a roster feed cannot serve a team.
// A missing roster blocks simulation for the game.
var ErrRosterUnavailable = errors.New("roster unavailable")

// OddsProvider is the consumed odds-feed interface. The core normalizes the
// provider's raw events into OddsSnapshots.
type OddsProvider interface {
	// ListSports returns the provider's active sport keys
	ListSports(ctx context.Context) ([]string, error)

	// ListEvents returns upcoming events with nested bookmaker markets for a sport
	ListEvents(ctx context.Context, sport models.Sport) ([]models.OddsSnapshot, error)
}

// SimulationWorker runs Monte Carlo simulations against a bound context.
// Must be deterministic given (context_hash, seed_base).
type SimulationWorker interface {
	Run(ctx context.Context, simContext models.SimulationContext) ([]models.SimulationResult, error)
}

// RosterFeed serves rosters and injuries per team
type RosterFeed interface {
	GetRoster(ctx context.Context, teamKey string, sport models.Sport) ([]string, error)
	GetInjuries(ctx context.Context, teamKey string, sport models.Sport) (*models.InjurySnapshot, error)
}

// ResultsFeed serves completed game results only
type ResultsFeed interface {
	GetResults(ctx context.Context, sport models.Sport, daysFrom int) ([]models.EventResult, error)
}

// LiveScoreFeed serves in-progress scoreboards. A nil total means the
// provider has no live score for the game yet.
type LiveScoreFeed interface {
	GetLiveTotal(ctx context.Context, sport models.Sport, gameID string) (*float64, error)
}
