package models

import "fmt"

// Sport identifies a supported league
type Sport string

const (
	SportNBA   Sport = "NBA"
	SportNFL   Sport = "NFL"
	SportNHL   Sport = "NHL"
	SportMLB   Sport = "MLB"
	SportNCAAF Sport = "NCAAF"
	SportNCAAB Sport = "NCAAB"
)

// AllSports lists every supported sport in a stable order
var AllSports = []Sport{SportNBA, SportNFL, SportNHL, SportMLB, SportNCAAF, SportNCAAB}

// ParseSport validates a sport key string
func ParseSport(key string) (Sport, error) {
	for _, s := range AllSports {
		if string(s) == key {
			return s, nil
		}
	}
	return "", fmt.Errorf("unknown sport: %s", key)
}

// MarketType identifies the kind of market being priced
type MarketType string

const (
	MarketSpread        MarketType = "SPREAD"
	MarketTotal         MarketType = "TOTAL"
	MarketMoneyline2Way MarketType = "MONEYLINE_2WAY"
	MarketMoneyline3Way MarketType = "MONEYLINE_3WAY"
)

// MarketSettlement identifies the settlement window for a market
type MarketSettlement string

const (
	SettlementFullGame   MarketSettlement = "FULL_GAME"
	SettlementRegulation MarketSettlement = "REGULATION"
)

// Side identifies one bettable side of a market
type Side string

const (
	SideHome  Side = "home"
	SideAway  Side = "away"
	SideOver  Side = "over"
	SideUnder Side = "under"
	SideDraw  Side = "draw"
)

// MarketContract is one legal (market_type, settlement) pair for a sport
type MarketContract struct {
	MarketType MarketType       `yaml:"market_type" json:"market_type"`
	Settlement MarketSettlement `yaml:"settlement" json:"settlement"`
}
