package oddsmath

import "fmt"

// PayoutPer100 returns the profit on a winning $100 stake at American odds.
// Negative odds pay 10000/|odds| per 100; positive odds pay odds per 100.
//
// Example:
// -150 → 10000/150 = 66.67
// +120 → 120.00
func PayoutPer100(american int) (float64, error) {
	if american == 0 {
		return 0, fmt.Errorf("invalid American odds: cannot be 0")
	}

	if american < 0 {
		return 10000.0 / float64(-american), nil
	}

	return float64(american), nil
}

// ExpectedValue2Way computes EV per $100 staked for a two-way market:
// EV = pWin·payout − pLoss·100
//
// Example:
// p = 0.66 at -150: 0.66·66.67 − 0.34·100 = +10.0
func ExpectedValue2Way(pWin float64, american int) (float64, error) {
	if pWin < 0 || pWin > 1 {
		return 0, fmt.Errorf("invalid probability: %f", pWin)
	}

	payout, err := PayoutPer100(american)
	if err != nil {
		return 0, err
	}

	return pWin*payout - (1.0-pWin)*100.0, nil
}

// ExpectedValue2WayWithPush computes EV per $100 with explicit push mass.
// Pushes return the stake, contributing zero to EV.
func ExpectedValue2WayWithPush(pWin, pPush float64, american int) (float64, error) {
	if pWin < 0 || pWin > 1 || pPush < 0 || pWin+pPush > 1 {
		return 0, fmt.Errorf("invalid probabilities: win=%f push=%f", pWin, pPush)
	}

	payout, err := PayoutPer100(american)
	if err != nil {
		return 0, err
	}

	pLoss := 1.0 - pWin - pPush
	return pWin*payout - pLoss*100.0, nil
}

// ExpectedValue3Way computes EV per $100 for a three-way market. The draw is
// counted as a loss against the stake.
func ExpectedValue3Way(pWin, pDraw float64, american int) (float64, error) {
	if pWin < 0 || pWin > 1 || pDraw < 0 || pWin+pDraw > 1 {
		return 0, fmt.Errorf("invalid probabilities: win=%f draw=%f", pWin, pDraw)
	}

	payout, err := PayoutPer100(american)
	if err != nil {
		return 0, err
	}

	return pWin*payout - (1.0-pWin)*100.0, nil
}

// RealizedUnits converts a settled outcome at American odds to units won or
// lost on a one-unit stake. Wins pay PayoutPer100/100, pushes return zero,
// losses cost the full unit.
func RealizedUnits(won bool, pushed bool, american int) (float64, error) {
	if pushed {
		return 0, nil
	}

	if !won {
		return -1.0, nil
	}

	payout, err := PayoutPer100(american)
	if err != nil {
		return 0, err
	}

	return payout / 100.0, nil
}

// CalculateEdge calculates the probability edge of a model probability over
// the market's implied probability: edge = fair − implied.
func CalculateEdge(fairProbability, impliedProbability float64) (float64, error) {
	if fairProbability <= 0 || fairProbability >= 1 {
		return 0, fmt.Errorf("fair probability must be between 0 and 1")
	}

	if impliedProbability <= 0 || impliedProbability >= 1 {
		return 0, fmt.Errorf("implied probability must be between 0 and 1")
	}

	return fairProbability - impliedProbability, nil
}
