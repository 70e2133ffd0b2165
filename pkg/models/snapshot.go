package models

import "time"

// MarketPrice is one quoted price within a market
type MarketPrice struct {
	Side     Side    `json:"side"`
	American int     `json:"american"`
	Decimal  float64 `json:"decimal"`
}

// MarketLines carries the quoted line and prices for one market within a snapshot
type MarketLines struct {
	MarketType MarketType       `json:"market_type"`
	Settlement MarketSettlement `json:"settlement"`
	Line       *float64         `json:"line,omitempty"` // nil for moneyline
	Prices     []MarketPrice    `json:"prices"`
}

// OddsSnapshot is an immutable capture of one (game, bookmaker, timestamp).
// Identity is the content hash over its canonical serialization. Never
// updated, never deleted.
type OddsSnapshot struct {
	ContentHash  string        `json:"content_hash"`
	GameID       string        `json:"game_id"`
	Sport        Sport         `json:"sport"`
	BookKey      string        `json:"book_key"`
	HomeTeamKey  string        `json:"home_team_key"`
	AwayTeamKey  string        `json:"away_team_key"`
	HomeTeamName string        `json:"home_team_name"`
	AwayTeamName string        `json:"away_team_name"`
	CommenceTime time.Time     `json:"commence_time"`
	CapturedAt   time.Time     `json:"captured_at"` // UTC
	Markets      []MarketLines `json:"markets"`
	Closing      bool          `json:"closing"` // captured at the closing-line job
}

// Market returns the snapshot market for a market type, if quoted
func (s *OddsSnapshot) Market(mt MarketType) (*MarketLines, bool) {
	for i := range s.Markets {
		if s.Markets[i].MarketType == mt {
			return &s.Markets[i], true
		}
	}
	return nil, false
}

// Price returns the quoted price for one side of a market, if quoted
func (m *MarketLines) Price(side Side) (*MarketPrice, bool) {
	for i := range m.Prices {
		if m.Prices[i].Side == side {
			return &m.Prices[i], true
		}
	}
	return nil, false
}

// InjuredPlayer is one roster entry in an injury snapshot
type InjuredPlayer struct {
	Player       string  `json:"player"`
	Status       string  `json:"status"`
	ImpactFactor float64 `json:"impact_factor"`
}

// InjurySnapshot is an immutable per-team injury list, bound by content hash
type InjurySnapshot struct {
	ContentHash string          `json:"content_hash"`
	TeamKey     string          `json:"team_key"`
	Sport       Sport           `json:"sport"`
	CapturedAt  time.Time       `json:"captured_at"`
	Players     []InjuredPlayer `json:"players"`
}

// MaxImpact returns the largest impact factor among listed players
func (s *InjurySnapshot) MaxImpact() float64 {
	max := 0.0
	for _, p := range s.Players {
		if p.ImpactFactor > max {
			max = p.ImpactFactor
		}
	}
	return max
}

// SimulationContext is the immutable, content-addressed identity of one
// simulation's full input set. Two contexts with identical fields hash
// identically, which is what makes decisions replayable.
type SimulationContext struct {
	ContextHash          string   `json:"context_hash"`
	GameID               string   `json:"game_id"`
	Sport                Sport    `json:"sport"`
	ModelVersion         string   `json:"model_version"`
	EngineVersion        string   `json:"engine_version"`
	DataFeedVersion      string   `json:"data_feed_version"`
	OddsSnapshotHash     string   `json:"odds_snapshot_hash"`
	InjurySnapshotHashes []string `json:"injury_snapshot_hashes"`
	PaceInput            float64  `json:"pace_input"`
	FatigueInput         float64  `json:"fatigue_input"`
	Iterations           int      `json:"iterations"`
	SeedBase             int64    `json:"seed_base"`
}
