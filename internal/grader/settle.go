package grader

import (
	"fmt"

	"github.com/XavierBriggs/fortuna/services/decision-engine/pkg/models"
)

// settlementScores picks the scores a market settles on: regulation scores
// for REGULATION contracts (NHL two-way moneyline), final otherwise
func settlementScores(pub models.PublishedPrediction, result models.EventResult, regulation bool) (home, away int) {
	if regulation && result.RegulationHome != nil && result.RegulationAway != nil {
		return *result.RegulationHome, *result.RegulationAway
	}
	return result.HomeScore, result.AwayScore
}

// Settle grades one published prediction against a final result
func Settle(pub models.PublishedPrediction, result models.EventResult, regulation bool) (models.GradeOutcome, error) {
	if !result.Completed {
		return "", fmt.Errorf("game %s not completed", result.GameID)
	}

	home, away := settlementScores(pub, result, regulation)

	switch pub.MarketType {
	case models.MarketSpread:
		return settleSpread(pub, home, away)
	case models.MarketTotal:
		return settleTotal(pub, home, away)
	case models.MarketMoneyline2Way:
		return settleMoneyline2Way(pub, home, away)
	case models.MarketMoneyline3Way:
		return settleMoneyline3Way(pub, home, away)
	}

	return "", fmt.Errorf("unknown market type %s", pub.MarketType)
}

// settleSpread grades on cover margin against the locked line. The locked
// line is the home line; the away side lays its negation.
func settleSpread(pub models.PublishedPrediction, home, away int) (models.GradeOutcome, error) {
	if pub.Terms.Line == nil {
		return "", fmt.Errorf("spread publication %s has no locked line", pub.PublishID)
	}
	margin := float64(home - away)

	var cover float64
	switch pub.Side {
	case models.SideHome:
		cover = margin + *pub.Terms.Line
	case models.SideAway:
		cover = -margin - *pub.Terms.Line
	default:
		return "", fmt.Errorf("invalid spread side %q", pub.Side)
	}

	switch {
	case cover > 0:
		return models.GradeWin, nil
	case cover < 0:
		return models.GradeLoss, nil
	default:
		return models.GradePush, nil
	}
}

func settleTotal(pub models.PublishedPrediction, home, away int) (models.GradeOutcome, error) {
	if pub.Terms.Line == nil {
		return "", fmt.Errorf("total publication %s has no locked line", pub.PublishID)
	}
	total := float64(home + away)

	var diff float64
	switch pub.Side {
	case models.SideOver:
		diff = total - *pub.Terms.Line
	case models.SideUnder:
		diff = *pub.Terms.Line - total
	default:
		return "", fmt.Errorf("invalid total side %q", pub.Side)
	}

	switch {
	case diff > 0:
		return models.GradeWin, nil
	case diff < 0:
		return models.GradeLoss, nil
	default:
		return models.GradePush, nil
	}
}

// settleMoneyline2Way grades the outright winner; a tie on the settlement
// scores pushes
func settleMoneyline2Way(pub models.PublishedPrediction, home, away int) (models.GradeOutcome, error) {
	if home == away {
		return models.GradePush, nil
	}

	homeWon := home > away
	switch pub.Side {
	case models.SideHome:
		if homeWon {
			return models.GradeWin, nil
		}
		return models.GradeLoss, nil
	case models.SideAway:
		if !homeWon {
			return models.GradeWin, nil
		}
		return models.GradeLoss, nil
	}
	return "", fmt.Errorf("invalid moneyline side %q", pub.Side)
}

// settleMoneyline3Way grades with the draw as its own outcome; team sides
// lose on a draw
func settleMoneyline3Way(pub models.PublishedPrediction, home, away int) (models.GradeOutcome, error) {
	switch pub.Side {
	case models.SideDraw:
		if home == away {
			return models.GradeWin, nil
		}
		return models.GradeLoss, nil
	case models.SideHome:
		if home > away {
			return models.GradeWin, nil
		}
		return models.GradeLoss, nil
	case models.SideAway:
		if away > home {
			return models.GradeWin, nil
		}
		return models.GradeLoss, nil
	}
	return "", fmt.Errorf("invalid moneyline side %q", pub.Side)
}
