package rosters

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"

	"github.com/XavierBriggs/fortuna/services/decision-engine/internal/identity"
	"github.com/XavierBriggs/fortuna/services/decision-engine/pkg/contracts"
	"github.com/XavierBriggs/fortuna/services/decision-engine/pkg/models"
)

// Client serves rosters and injury reports from the internal roster service.
// A team the service cannot serve is a hard stop for simulation, surfaced as
// contracts.ErrRosterUnavailable.
type Client struct {
	http *resty.Client
	log  zerolog.Logger
}

// NewClient creates a roster feed client
func NewClient(baseURL string, log zerolog.Logger) *Client {
	return &Client{
		http: resty.New().
			SetBaseURL(baseURL).
			SetTimeout(15 * time.Second).
			SetRetryCount(2).
			SetRetryWaitTime(250 * time.Millisecond),
		log: log.With().Str("component", "rosters").Logger(),
	}
}

type rosterResponse struct {
	TeamKey string   `json:"team_key"`
	Players []string `json:"players"`
}

type injuryResponse struct {
	TeamKey string                 `json:"team_key"`
	Players []models.InjuredPlayer `json:"players"`
}

// GetRoster returns the active player list for a team
func (c *Client) GetRoster(ctx context.Context, teamKey string, sport models.Sport) ([]string, error) {
	var out rosterResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("sport", string(sport)).
		SetResult(&out).
		Get(fmt.Sprintf("/rosters/%s", teamKey))
	if err != nil {
		return nil, fmt.Errorf("fetch roster: %w", err)
	}
	if resp.StatusCode() == http.StatusNotFound {
		return nil, contracts.ErrRosterUnavailable
	}
	if resp.IsError() {
		return nil, fmt.Errorf("roster service returned %d", resp.StatusCode())
	}
	if len(out.Players) == 0 {
		return nil, contracts.ErrRosterUnavailable
	}

	return out.Players, nil
}

// GetInjuries returns the content-addressed injury snapshot for a team
func (c *Client) GetInjuries(ctx context.Context, teamKey string, sport models.Sport) (*models.InjurySnapshot, error) {
	var out injuryResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("sport", string(sport)).
		SetResult(&out).
		Get(fmt.Sprintf("/injuries/%s", teamKey))
	if err != nil {
		return nil, fmt.Errorf("fetch injuries: %w", err)
	}
	if resp.StatusCode() == http.StatusNotFound {
		return nil, contracts.ErrRosterUnavailable
	}
	if resp.IsError() {
		return nil, fmt.Errorf("roster service returned %d", resp.StatusCode())
	}

	snap := models.InjurySnapshot{
		TeamKey:    teamKey,
		Sport:      sport,
		CapturedAt: time.Now().UTC(),
		Players:    out.Players,
	}
	hash, err := identity.ContentHash(snap)
	if err != nil {
		return nil, fmt.Errorf("hashing injury snapshot: %w", err)
	}
	snap.ContentHash = hash

	return &snap, nil
}
