package identity

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/XavierBriggs/fortuna/services/decision-engine/pkg/models"
)

// MoneylineNorm is the normalized-line token for markets without a line
const MoneylineNorm = "ML"

// NormalizeLine produces the canonical line string used in selection ids:
// "ML" for moneyline, otherwise a signed one-decimal string ("-5.5", "+2.0").
func NormalizeLine(line *float64) string {
	if line == nil {
		return MoneylineNorm
	}
	return fmt.Sprintf("%+.1f", *line)
}

// SelectionID derives the deterministic identifier for one bettable side:
// the first 16 hex chars of SHA-256 over
// event_id|market_type|side_key|line_norm|book_key.
// For a given input tuple the id is bitwise identical across processes and
// time; changing any one input changes the id.
func SelectionID(eventID string, marketType models.MarketType, side models.Side, line *float64, bookKey string) string {
	payload := strings.Join([]string{
		eventID,
		string(marketType),
		string(side),
		NormalizeLine(line),
		bookKey,
	}, "|")

	sum := sha256.Sum256([]byte(payload))
	return hex.EncodeToString(sum[:])[:16]
}

// SelectionsForMarket generates the full canonical selection set for a market:
//
//	Spread:    {home: line, away: -line}
//	Total:     {over: line, under: line}
//	Moneyline: {home: ML, away: ML} (+ draw for 3-way)
func SelectionsForMarket(eventID string, marketType models.MarketType, line *float64, bookKey, homeName, awayName string) ([]models.Selection, error) {
	switch marketType {
	case models.MarketSpread:
		if line == nil {
			return nil, fmt.Errorf("spread market requires a line")
		}
		awayLine := -*line
		return []models.Selection{
			{
				SelectionID:     SelectionID(eventID, marketType, models.SideHome, line, bookKey),
				TeamDisplayName: homeName,
				Side:            models.SideHome,
				MarketLine:      line,
				MarketType:      marketType,
			},
			{
				SelectionID:     SelectionID(eventID, marketType, models.SideAway, &awayLine, bookKey),
				TeamDisplayName: awayName,
				Side:            models.SideAway,
				MarketLine:      &awayLine,
				MarketType:      marketType,
			},
		}, nil

	case models.MarketTotal:
		if line == nil {
			return nil, fmt.Errorf("total market requires a line")
		}
		return []models.Selection{
			{
				SelectionID: SelectionID(eventID, marketType, models.SideOver, line, bookKey),
				Side:        models.SideOver,
				MarketLine:  line,
				MarketType:  marketType,
			},
			{
				SelectionID: SelectionID(eventID, marketType, models.SideUnder, line, bookKey),
				Side:        models.SideUnder,
				MarketLine:  line,
				MarketType:  marketType,
			},
		}, nil

	case models.MarketMoneyline2Way, models.MarketMoneyline3Way:
		selections := []models.Selection{
			{
				SelectionID:     SelectionID(eventID, marketType, models.SideHome, nil, bookKey),
				TeamDisplayName: homeName,
				Side:            models.SideHome,
				MarketType:      marketType,
			},
			{
				SelectionID:     SelectionID(eventID, marketType, models.SideAway, nil, bookKey),
				TeamDisplayName: awayName,
				Side:            models.SideAway,
				MarketType:      marketType,
			},
		}
		if marketType == models.MarketMoneyline3Way {
			selections = append(selections, models.Selection{
				SelectionID: SelectionID(eventID, marketType, models.SideDraw, nil, bookKey),
				Side:        models.SideDraw,
				MarketType:  marketType,
			})
		}
		return selections, nil

	default:
		return nil, fmt.Errorf("unknown market type: %s", marketType)
	}
}

// ValidateSelectionConsistency enforces the selection-set invariants:
// every selection has a non-empty id, ids are unique across the market,
// the preference id matches one selection (or a sentinel), and the direction
// id equals the preference id.
func ValidateSelectionConsistency(selections []models.Selection, preferenceID, directionID string) error {
	if len(selections) == 0 {
		return fmt.Errorf("empty selection set")
	}

	seen := make(map[string]bool, len(selections))
	for _, sel := range selections {
		if sel.SelectionID == "" {
			return fmt.Errorf("selection for side %s has empty id", sel.Side)
		}
		if seen[sel.SelectionID] {
			return fmt.Errorf("duplicate selection id: %s", sel.SelectionID)
		}
		seen[sel.SelectionID] = true
	}

	if preferenceID != models.SelectionNoEdge && preferenceID != models.SelectionInvalid {
		if !seen[preferenceID] {
			return fmt.Errorf("preference id %s matches no selection", preferenceID)
		}
	}

	if directionID != preferenceID {
		return fmt.Errorf("direction id %s does not equal preference id %s", directionID, preferenceID)
	}

	return nil
}
