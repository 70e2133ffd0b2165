package calibration

import (
	"sync"
	"time"

	"github.com/XavierBriggs/fortuna/services/decision-engine/pkg/models"
)

// BaselineSource reports whether a sport's rolling engine drift exceeds its
// configured clamp limits
type BaselineSource interface {
	Exceeded(sport models.Sport, windowDays int, biasVsActualMax, biasVsMarketMax, maxOverRate float64) bool
}

// BaselineTracker accumulates graded outcomes per sport and answers rolling
// drift queries. The grader feeds it; the calibration engine reads it.
type BaselineTracker struct {
	mu           sync.RWMutex
	observations map[models.Sport][]baselineObservation
	now          func() time.Time
}

type baselineObservation struct {
	at         time.Time
	pModel     float64
	pMarket    float64
	won        bool
	overPicked bool
}

// NewBaselineTracker creates an empty tracker
func NewBaselineTracker() *BaselineTracker {
	return &BaselineTracker{
		observations: make(map[models.Sport][]baselineObservation),
		now:          time.Now,
	}
}

// Observe records one graded prediction for drift accounting
func (t *BaselineTracker) Observe(obs models.CalibrationObservation) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.observations[obs.Sport] = append(t.observations[obs.Sport], fromObservation(obs, t.now))

	// Bound memory: drop anything older than the longest plausible window
	cutoff := t.now().AddDate(0, 0, -60)
	kept := t.observations[obs.Sport]
	trimmed := kept[:0]
	for _, o := range kept {
		if o.at.After(cutoff) {
			trimmed = append(trimmed, o)
		}
	}
	t.observations[obs.Sport] = trimmed
}

// Replace swaps a sport's whole drift window, used when rehydrating from the
// grading store
func (t *BaselineTracker) Replace(sport models.Sport, observations []models.CalibrationObservation) {
	window := make([]baselineObservation, 0, len(observations))
	for _, obs := range observations {
		window = append(window, fromObservation(obs, t.now))
	}

	t.mu.Lock()
	t.observations[sport] = window
	t.mu.Unlock()
}

func fromObservation(obs models.CalibrationObservation, now func() time.Time) baselineObservation {
	at := obs.ObservedAt
	if at.IsZero() {
		at = now()
	}
	return baselineObservation{
		at:         at,
		pModel:     obs.PPredicted,
		pMarket:    obs.PMarket,
		won:        obs.Won,
		overPicked: obs.OverPicked,
	}
}

// Exceeded reports whether the rolling-window drift breaches any clamp limit:
// bias vs actual results, bias vs market probabilities, or over-pick rate.
func (t *BaselineTracker) Exceeded(sport models.Sport, windowDays int, biasVsActualMax, biasVsMarketMax, maxOverRate float64) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()

	cutoff := t.now().AddDate(0, 0, -windowDays)

	var count, wins, overs int
	var sumModel, sumMarket float64

	for _, o := range t.observations[sport] {
		if o.at.Before(cutoff) {
			continue
		}
		count++
		sumModel += o.pModel
		sumMarket += o.pMarket
		if o.won {
			wins++
		}
		if o.overPicked {
			overs++
		}
	}

	// Too little data to call drift
	if count < 20 {
		return false
	}

	n := float64(count)
	biasVsActual := sumModel/n - float64(wins)/n
	biasVsMarket := sumModel/n - sumMarket/n
	overRate := float64(overs) / n

	if biasVsActual > biasVsActualMax || -biasVsActual > biasVsActualMax {
		return true
	}
	if biasVsMarket > biasVsMarketMax || -biasVsMarket > biasVsMarketMax {
		return true
	}
	if overRate > maxOverRate {
		return true
	}

	return false
}
