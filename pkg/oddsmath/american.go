package oddsmath

import (
	"fmt"
	"math"
)

// AmericanToDecimal converts an American price to its decimal equivalent.
// -110 maps to 1.9091, +150 to 2.50. Zero is not a quotable price.
func AmericanToDecimal(american int) (float64, error) {
	if american == 0 {
		return 0, fmt.Errorf("american odds of 0 are not quotable")
	}

	if american > 0 {
		return float64(american)/100.0 + 1.0, nil
	}
	return 100.0/float64(-american) + 1.0, nil
}

// DecimalToAmerican converts a decimal price back to American. Decimal prices
// below 1.0 imply a negative payout and are rejected.
func DecimalToAmerican(decimal float64) (int, error) {
	if decimal < 1.0 {
		return 0, fmt.Errorf("decimal odds %f below 1.0", decimal)
	}

	if decimal >= 2.0 {
		return int(math.Round((decimal - 1.0) * 100.0)), nil
	}
	return int(math.Round(-100.0 / (decimal - 1.0))), nil
}

// DecimalToImpliedProbability returns the book's implied probability for a
// decimal price, vig included.
func DecimalToImpliedProbability(decimal float64) (float64, error) {
	if decimal <= 0 {
		return 0, fmt.Errorf("decimal odds %f not positive", decimal)
	}
	return 1.0 / decimal, nil
}

// ProbabilityToDecimal returns the fair decimal price for a probability.
// Degenerate probabilities at or beyond the open interval are rejected.
func ProbabilityToDecimal(probability float64) (float64, error) {
	if probability <= 0 || probability >= 1 {
		return 0, fmt.Errorf("probability %f outside (0, 1)", probability)
	}
	return 1.0 / probability, nil
}

// AmericanToImpliedProbability chains the American-to-decimal and
// decimal-to-probability conversions.
func AmericanToImpliedProbability(american int) (float64, error) {
	decimal, err := AmericanToDecimal(american)
	if err != nil {
		return 0, err
	}
	return DecimalToImpliedProbability(decimal)
}

// ProbabilityToAmerican returns the fair American price for a probability.
func ProbabilityToAmerican(probability float64) (int, error) {
	decimal, err := ProbabilityToDecimal(probability)
	if err != nil {
		return 0, err
	}
	return DecimalToAmerican(decimal)
}
