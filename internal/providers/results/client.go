package results

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"

	"github.com/XavierBriggs/fortuna/services/decision-engine/internal/providers/oddsapi"
	"github.com/XavierBriggs/fortuna/services/decision-engine/pkg/models"
)

// Client fetches game scores from The Odds API scores endpoint: completed
// results for grading and current scoreboards for live passes.
type Client struct {
	http   *resty.Client
	apiKey string
	log    zerolog.Logger
}

// NewClient creates a results feed client
func NewClient(baseURL, apiKey string, log zerolog.Logger) *Client {
	return &Client{
		http: resty.New().
			SetBaseURL(baseURL).
			SetTimeout(30 * time.Second).
			SetRetryCount(2).
			SetRetryWaitTime(500 * time.Millisecond),
		apiKey: apiKey,
		log:    log.With().Str("component", "results").Logger(),
	}
}

type apiScore struct {
	Name  string `json:"name"`
	Score string `json:"score"`
}

type apiScoredEvent struct {
	ID           string     `json:"id"`
	CommenceTime time.Time  `json:"commence_time"`
	Completed    bool       `json:"completed"`
	HomeTeam     string     `json:"home_team"`
	AwayTeam     string     `json:"away_team"`
	Scores       []apiScore `json:"scores"`
	LastUpdate   *time.Time `json:"last_update,omitempty"`
}

// GetResults returns completed results for a sport within the lookback window
func (c *Client) GetResults(ctx context.Context, sport models.Sport, daysFrom int) ([]models.EventResult, error) {
	key, ok := oddsapi.SportKeyFor(sport)
	if !ok {
		return nil, fmt.Errorf("no provider key for sport %s", sport)
	}

	var events []apiScoredEvent
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("apiKey", c.apiKey).
		SetQueryParam("daysFrom", strconv.Itoa(daysFrom)).
		SetResult(&events).
		Get(fmt.Sprintf("/v4/sports/%s/scores", key))
	if err != nil {
		return nil, fmt.Errorf("fetch scores: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("scores api returned %d: %s", resp.StatusCode(), resp.String())
	}

	var results []models.EventResult
	for _, event := range events {
		if !event.Completed {
			continue
		}
		result, err := normalizeResult(sport, event)
		if err != nil {
			c.log.Warn().Err(err).Str("event", event.ID).Msg("skipping malformed score")
			continue
		}
		results = append(results, *result)
	}

	return results, nil
}

// GetLiveTotal returns the combined current score for an in-progress game,
// or nil when the provider has no live score for it yet
func (c *Client) GetLiveTotal(ctx context.Context, sport models.Sport, gameID string) (*float64, error) {
	key, ok := oddsapi.SportKeyFor(sport)
	if !ok {
		return nil, fmt.Errorf("no provider key for sport %s", sport)
	}

	var events []apiScoredEvent
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("apiKey", c.apiKey).
		SetResult(&events).
		Get(fmt.Sprintf("/v4/sports/%s/scores", key))
	if err != nil {
		return nil, fmt.Errorf("fetch live scores: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("scores api returned %d: %s", resp.StatusCode(), resp.String())
	}

	for _, event := range events {
		if event.ID != gameID || event.Completed || len(event.Scores) == 0 {
			continue
		}
		total := 0.0
		for _, s := range event.Scores {
			score, err := strconv.Atoi(s.Score)
			if err != nil {
				return nil, fmt.Errorf("parse live score %q: %w", s.Score, err)
			}
			total += float64(score)
		}
		return &total, nil
	}
	return nil, nil
}

func normalizeResult(sport models.Sport, event apiScoredEvent) (*models.EventResult, error) {
	if len(event.Scores) < 2 {
		return nil, fmt.Errorf("event has %d scores", len(event.Scores))
	}

	var homeScore, awayScore int
	var haveHome, haveAway bool
	for _, s := range event.Scores {
		score, err := strconv.Atoi(s.Score)
		if err != nil {
			return nil, fmt.Errorf("parse score %q: %w", s.Score, err)
		}
		switch s.Name {
		case event.HomeTeam:
			homeScore, haveHome = score, true
		case event.AwayTeam:
			awayScore, haveAway = score, true
		}
	}
	if !haveHome || !haveAway {
		return nil, fmt.Errorf("scores do not name both competitors")
	}

	completedAt := time.Now().UTC()
	if event.LastUpdate != nil {
		completedAt = *event.LastUpdate
	}

	return &models.EventResult{
		GameID:      event.ID,
		Sport:       sport,
		HomeTeamKey: event.HomeTeam,
		AwayTeamKey: event.AwayTeam,
		HomeScore:   homeScore,
		AwayScore:   awayScore,
		Completed:   true,
		CompletedAt: completedAt,
	}, nil
}
