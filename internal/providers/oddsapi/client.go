package oddsapi

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/XavierBriggs/fortuna/services/decision-engine/internal/identity"
	"github.com/XavierBriggs/fortuna/services/decision-engine/pkg/models"
	"github.com/XavierBriggs/fortuna/services/decision-engine/pkg/oddsmath"
)

// sportKeys maps league enums to The Odds API sport keys
var sportKeys = map[models.Sport]string{
	models.SportNBA:   "basketball_nba",
	models.SportNFL:   "americanfootball_nfl",
	models.SportNHL:   "icehockey_nhl",
	models.SportMLB:   "baseball_mlb",
	models.SportNCAAF: "americanfootball_ncaaf",
	models.SportNCAAB: "basketball_ncaab",
}

// SportKeyFor returns the provider key for a league
func SportKeyFor(sport models.Sport) (string, bool) {
	key, ok := sportKeys[sport]
	return key, ok
}

// Client fetches odds from The Odds API. Requests go through a token-bucket
// rate limiter (the API meters monthly quota) and a circuit breaker so a
// provider outage degrades to stale snapshots instead of request storms.
type Client struct {
	http    *resty.Client
	apiKey  string
	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker
	log     zerolog.Logger
}

// NewClient creates an Odds API client
func NewClient(baseURL, apiKey string, log zerolog.Logger) *Client {
	settings := gobreaker.Settings{
		Name:    "odds-api",
		Timeout: 60 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	}

	http := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(30 * time.Second).
		SetRetryCount(2).
		SetRetryWaitTime(500 * time.Millisecond)

	return &Client{
		http:    http,
		apiKey:  apiKey,
		limiter: rate.NewLimiter(rate.Every(time.Second), 5),
		breaker: gobreaker.NewCircuitBreaker(settings),
		log:     log.With().Str("component", "oddsapi").Logger(),
	}
}

type apiSport struct {
	Key    string `json:"key"`
	Active bool   `json:"active"`
}

type apiOutcome struct {
	Name  string   `json:"name"`
	Price int      `json:"price"`
	Point *float64 `json:"point,omitempty"`
}

type apiMarket struct {
	Key      string       `json:"key"`
	Outcomes []apiOutcome `json:"outcomes"`
}

type apiBookmaker struct {
	Key     string      `json:"key"`
	Markets []apiMarket `json:"markets"`
}

type apiEvent struct {
	ID           string         `json:"id"`
	SportKey     string         `json:"sport_key"`
	CommenceTime time.Time      `json:"commence_time"`
	HomeTeam     string         `json:"home_team"`
	AwayTeam     string         `json:"away_team"`
	Bookmakers   []apiBookmaker `json:"bookmakers"`
}

// ListSports returns the provider's active sport keys
func (c *Client) ListSports(ctx context.Context) ([]string, error) {
	var sports []apiSport
	if err := c.get(ctx, "/v4/sports", map[string]string{}, &sports); err != nil {
		return nil, err
	}

	keys := make([]string, 0, len(sports))
	for _, s := range sports {
		if s.Active {
			keys = append(keys, s.Key)
		}
	}
	return keys, nil
}

// ListEvents returns upcoming events for a sport, normalized into immutable
// odds snapshots, one per (event, bookmaker)
func (c *Client) ListEvents(ctx context.Context, sport models.Sport) ([]models.OddsSnapshot, error) {
	key, ok := sportKeys[sport]
	if !ok {
		return nil, fmt.Errorf("no provider key for sport %s", sport)
	}

	var events []apiEvent
	params := map[string]string{
		"regions":    "us",
		"markets":    "spreads,totals,h2h",
		"oddsFormat": "american",
	}
	if err := c.get(ctx, fmt.Sprintf("/v4/sports/%s/odds", key), params, &events); err != nil {
		return nil, err
	}

	capturedAt := time.Now().UTC()
	var snapshots []models.OddsSnapshot
	for _, event := range events {
		for _, book := range event.Bookmakers {
			snap, err := normalizeSnapshot(sport, event, book, capturedAt)
			if err != nil {
				c.log.Warn().Err(err).Str("event", event.ID).Str("book", book.Key).
					Msg("skipping malformed event")
				continue
			}
			snapshots = append(snapshots, *snap)
		}
	}

	return snapshots, nil
}

// normalizeSnapshot converts one (event, bookmaker) into an OddsSnapshot and
// binds its content-hash identity
func normalizeSnapshot(sport models.Sport, event apiEvent, book apiBookmaker, capturedAt time.Time) (*models.OddsSnapshot, error) {
	if event.HomeTeam == "" || event.AwayTeam == "" {
		return nil, fmt.Errorf("event missing competitors")
	}

	snap := models.OddsSnapshot{
		GameID:       event.ID,
		Sport:        sport,
		BookKey:      book.Key,
		HomeTeamKey:  event.HomeTeam,
		AwayTeamKey:  event.AwayTeam,
		HomeTeamName: event.HomeTeam,
		AwayTeamName: event.AwayTeam,
		CommenceTime: event.CommenceTime,
		CapturedAt:   capturedAt,
	}

	for _, market := range book.Markets {
		lines, err := normalizeMarket(event, market)
		if err != nil {
			return nil, err
		}
		if lines != nil {
			snap.Markets = append(snap.Markets, *lines)
		}
	}

	hash, err := identity.ContentHash(snap)
	if err != nil {
		return nil, fmt.Errorf("hashing snapshot: %w", err)
	}
	snap.ContentHash = hash

	return &snap, nil
}

func normalizeMarket(event apiEvent, market apiMarket) (*models.MarketLines, error) {
	switch market.Key {
	case "spreads":
		lines := models.MarketLines{MarketType: models.MarketSpread, Settlement: models.SettlementFullGame}
		for _, out := range market.Outcomes {
			side, err := competitorSide(event, out.Name)
			if err != nil {
				return nil, err
			}
			if side == models.SideHome {
				lines.Line = out.Point
			}
			lines.Prices = append(lines.Prices, toPrice(side, out.Price))
		}
		return &lines, nil

	case "totals":
		lines := models.MarketLines{MarketType: models.MarketTotal, Settlement: models.SettlementFullGame}
		for _, out := range market.Outcomes {
			var side models.Side
			switch out.Name {
			case "Over":
				side = models.SideOver
			case "Under":
				side = models.SideUnder
			default:
				return nil, fmt.Errorf("unknown total outcome %q", out.Name)
			}
			lines.Line = out.Point
			lines.Prices = append(lines.Prices, toPrice(side, out.Price))
		}
		return &lines, nil

	case "h2h":
		marketType := models.MarketMoneyline2Way
		if len(market.Outcomes) == 3 {
			marketType = models.MarketMoneyline3Way
		}
		lines := models.MarketLines{MarketType: marketType, Settlement: models.SettlementFullGame}
		for _, out := range market.Outcomes {
			side := models.SideDraw
			if out.Name != "Draw" {
				s, err := competitorSide(event, out.Name)
				if err != nil {
					return nil, err
				}
				side = s
			}
			lines.Prices = append(lines.Prices, toPrice(side, out.Price))
		}
		return &lines, nil
	}

	return nil, nil
}

func competitorSide(event apiEvent, name string) (models.Side, error) {
	switch name {
	case event.HomeTeam:
		return models.SideHome, nil
	case event.AwayTeam:
		return models.SideAway, nil
	}
	return "", fmt.Errorf("outcome %q matches no competitor", name)
}

func toPrice(side models.Side, american int) models.MarketPrice {
	decimal, err := oddsmath.AmericanToDecimal(american)
	if err != nil {
		// Invalid quote from the feed; the price survives in American form and
		// snapshot validation rejects it downstream
		decimal = 0
	}
	return models.MarketPrice{
		Side:     side,
		American: american,
		Decimal:  decimal,
	}
}

func (c *Client) get(ctx context.Context, path string, params map[string]string, out interface{}) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}

	_, err := c.breaker.Execute(func() (interface{}, error) {
		resp, err := c.http.R().
			SetContext(ctx).
			SetQueryParam("apiKey", c.apiKey).
			SetQueryParams(params).
			SetResult(out).
			Get(path)
		if err != nil {
			return nil, err
		}
		if resp.IsError() {
			return nil, fmt.Errorf("odds api returned %d: %s", resp.StatusCode(), resp.String())
		}
		return nil, nil
	})
	return err
}
