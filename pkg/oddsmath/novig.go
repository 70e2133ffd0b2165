package oddsmath

import "fmt"

// RemoveVigMultiplicative removes vig from two-way markets using the
// multiplicative method. This is the standard method for spreads, totals,
// and two-way moneylines.
//
// Formula:
// 1. Convert both sides to implied probabilities
// 2. Calculate overround: totalProb = prob1 + prob2 (typically > 1.0)
// 3. Normalize: fairProb1 = prob1 / totalProb, fairProb2 = prob2 / totalProb
//
// Example:
// Side A: -110 (52.38% implied) | Side B: -110 (52.38% implied)
// Overround: 104.76% (4.76% vig)
// Fair: 50% / 50% (after normalization)
func RemoveVigMultiplicative(prob1, prob2 float64) (fair1, fair2 float64, err error) {
	if prob1 <= 0 || prob1 >= 1 || prob2 <= 0 || prob2 >= 1 {
		return 0, 0, fmt.Errorf("probabilities must be between 0 and 1")
	}

	totalProb := prob1 + prob2

	if totalProb <= 1.0 {
		return 0, 0, fmt.Errorf("no vig detected: probabilities sum to <= 1.0")
	}

	fair1 = prob1 / totalProb
	fair2 = prob2 / totalProb

	return fair1, fair2, nil
}

// RemoveVigAdditive removes vig from three-way markets using the additive
// method, used for moneylines with draws (three-outcome markets).
//
// Formula:
// 1. Convert all outcomes to implied probabilities
// 2. Calculate total overround
// 3. Subtract equal portions of vig from each outcome
func RemoveVigAdditive(probabilities []float64) ([]float64, error) {
	if len(probabilities) < 2 {
		return nil, fmt.Errorf("need at least 2 outcomes")
	}

	for _, prob := range probabilities {
		if prob <= 0 || prob >= 1 {
			return nil, fmt.Errorf("all probabilities must be between 0 and 1")
		}
	}

	totalProb := 0.0
	for _, prob := range probabilities {
		totalProb += prob
	}

	if totalProb <= 1.0 {
		return nil, fmt.Errorf("no vig detected: probabilities sum to <= 1.0")
	}

	overround := totalProb - 1.0
	vigPerOutcome := overround / float64(len(probabilities))

	fairProbs := make([]float64, len(probabilities))
	for i, prob := range probabilities {
		fairProbs[i] = prob - vigPerOutcome
	}

	return fairProbs, nil
}

// CalculateVigPercentage calculates the vig (overround) percentage in a market
// Vig% = (TotalProb - 1.0) * 100
func CalculateVigPercentage(probabilities []float64) (float64, error) {
	if len(probabilities) == 0 {
		return 0, fmt.Errorf("no probabilities provided")
	}

	totalProb := 0.0
	for _, prob := range probabilities {
		if prob <= 0 || prob >= 1 {
			return 0, fmt.Errorf("all probabilities must be between 0 and 1")
		}
		totalProb += prob
	}

	if totalProb <= 1.0 {
		return 0, nil // No vig
	}

	return (totalProb - 1.0) * 100.0, nil
}
