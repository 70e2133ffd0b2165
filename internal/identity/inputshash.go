package identity

import (
	"github.com/XavierBriggs/fortuna/services/decision-engine/pkg/models"
)

// InputsHash derives the deterministic replay key for a decision: SHA-256
// over the sorted-key JSON of (context_hash, market_type, market_line,
// market_odds, calibration_version, decision_version). Two pipeline passes
// with identical inputs produce identical decisions under this hash.
func InputsHash(contextHash string, marketType models.MarketType, marketLine *float64, marketOdds int, calibrationVersion, decisionVersion string) (string, error) {
	payload := map[string]interface{}{
		"context_hash":        contextHash,
		"market_type":         string(marketType),
		"market_line":         marketLine,
		"market_odds":         marketOdds,
		"calibration_version": calibrationVersion,
		"decision_version":    decisionVersion,
	}

	return ContentHash(payload)
}
