package assembler

import (
	"fmt"
	"strings"

	"github.com/XavierBriggs/fortuna/services/decision-engine/internal/identity"
	"github.com/XavierBriggs/fortuna/services/decision-engine/internal/sportconfig"
	"github.com/XavierBriggs/fortuna/services/decision-engine/pkg/models"
)

// mispriceTokens are reason-code fragments that must never appear on a
// MARKET_ALIGNED decision
var mispriceTokens = []string{"MISPRICE", "EDGE", "VALUE", "INEFFICIENCY"}

// ValidateDecision enforces the assembler invariants. It returns the list of
// violations; a decision with any violation must not be released as APPROVED.
func ValidateDecision(cfg sportconfig.SportConfig, settlement models.MarketSettlement, decision models.MarketDecision, selections []models.Selection, preferredSide models.Side) []string {
	var violations []string

	if !cfg.SupportsMarket(decision.MarketType, settlement) {
		violations = append(violations, fmt.Sprintf("market %s/%s unsupported for %s", decision.MarketType, settlement, decision.Sport))
	}

	// For spread/moneyline the preferred side must name a real competitor
	if decision.MarketType == models.MarketSpread ||
		decision.MarketType == models.MarketMoneyline2Way ||
		decision.MarketType == models.MarketMoneyline3Way {
		if decision.ModelPreferenceSelectionID != models.SelectionNoEdge &&
			decision.ModelPreferenceSelectionID != models.SelectionInvalid {
			if preferredSide != models.SideHome && preferredSide != models.SideAway && preferredSide != models.SideDraw {
				violations = append(violations, fmt.Sprintf("preferred side %q is not a competitor", preferredSide))
			}
		}
	}

	// Selection ids present, unique, and the preference maps onto one
	directionID := decision.ModelPreferenceSelectionID
	if decision.RecommendedSelectionID != nil {
		directionID = *decision.RecommendedSelectionID
	}
	if err := identity.ValidateSelectionConsistency(selections, decision.ModelPreferenceSelectionID, decision.ModelPreferenceSelectionID); err != nil {
		violations = append(violations, err.Error())
	}

	// Direction id must equal the preference id whenever a recommendation exists
	if decision.RecommendedSelectionID != nil && directionID != decision.ModelPreferenceSelectionID {
		violations = append(violations, fmt.Sprintf("direction id %s does not equal preference id %s", directionID, decision.ModelPreferenceSelectionID))
	}

	switch decision.Classification {
	case models.ClassificationEdge, models.ClassificationLean:
		// Non-zero signed edge in the direction of the preference
		switch decision.MarketType {
		case models.MarketSpread, models.MarketTotal:
			if decision.EdgePoints == 0 {
				violations = append(violations, "playable tier with zero edge points")
			}
		default:
			if decision.ModelProbCalibrated <= decision.MarketImpliedProb {
				violations = append(violations, "playable tier with non-positive probability edge")
			}
		}

	case models.ClassificationMarketAligned:
		for _, reason := range decision.Reasons {
			upper := strings.ToUpper(reason)
			for _, token := range mispriceTokens {
				if strings.Contains(upper, token) {
					violations = append(violations, fmt.Sprintf("aligned decision carries misprice code %s", reason))
				}
			}
		}
	}

	// Spread line must never be zero; a pick-em is a moneyline in disguise
	if decision.MarketType == models.MarketSpread && decision.MarketLine != nil && *decision.MarketLine == 0 {
		violations = append(violations, "spread market line is zero")
	}

	// Total preference must be an over/under side
	if decision.MarketType == models.MarketTotal &&
		decision.ModelPreferenceSelectionID != models.SelectionNoEdge &&
		decision.ModelPreferenceSelectionID != models.SelectionInvalid {
		if preferredSide != models.SideOver && preferredSide != models.SideUnder {
			violations = append(violations, fmt.Sprintf("total preference side %q is not over/under", preferredSide))
		}
	}

	return violations
}
