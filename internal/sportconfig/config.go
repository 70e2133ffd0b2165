package sportconfig

import (
	"fmt"
	"time"

	"github.com/XavierBriggs/fortuna/services/decision-engine/pkg/models"
)

// Duration wraps time.Duration so cadence values can be written as "90s" or
// "5m" in the sport config files
type Duration time.Duration

// UnmarshalYAML parses a duration string
func (d *Duration) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var raw string
	if err := unmarshal(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the wrapped time.Duration
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Cadence controls how often the orchestrator re-runs a game's pipeline
type Cadence struct {
	BaseInterval       Duration `yaml:"base_interval"`
	AggressiveInterval Duration `yaml:"aggressive_interval"`
	LiveInterval       Duration `yaml:"live_interval"`
	AggressiveWithin   Duration `yaml:"aggressive_within"` // window before tip-off
}

// DistributionSanity holds sport-specific distribution-shape rules checked
// against simulation output
type DistributionSanity struct {
	OTFrequencyMax      float64 `yaml:"ot_frequency_max"`
	OneGoalGameFreqMin  float64 `yaml:"one_goal_game_freq_min"` // NHL only
	KeyNumberProtection bool    `yaml:"key_number_protection"`  // NFL family
}

// SportConfig carries every numeric threshold for one sport. All thresholds
// are data; the classifier and calibration engine have a single body each.
type SportConfig struct {
	Sport models.Sport `yaml:"sport"`

	// Market-anchor deviation (model vs market, in line points or prob)
	SoftDeviation float64 `yaml:"soft_deviation"`
	HardDeviation float64 `yaml:"hard_deviation"`

	// Publishing floors
	MinPublishProbability float64 `yaml:"min_publish_probability"`
	MinEV                 float64 `yaml:"min_ev"`

	// Tier thresholds
	EdgeMin          float64 `yaml:"edge_min"`    // probability edge for EDGE
	LeanMin          float64 `yaml:"lean_min"`    // probability edge for LEAN
	LeanMinEV        float64 `yaml:"lean_min_ev"` // EV floor for LEAN, per $100
	AlignedTolPoints float64 `yaml:"aligned_tol_points"`
	AlignedTolProb   float64 `yaml:"aligned_tol_prob"`

	// Variance bands on z_variance = sigma_current / normal_sigma
	VarianceNormal  float64 `yaml:"variance_normal"`
	VarianceHigh    float64 `yaml:"variance_high"`
	VarianceExtreme float64 `yaml:"variance_extreme"`
	NormalSigma     float64 `yaml:"normal_sigma"`

	// Elite override (allows publishing beyond the hard deviation)
	EliteMinProbability       float64 `yaml:"elite_min_probability"`
	EliteMaxZVariance         float64 `yaml:"elite_max_z_variance"`
	EliteMinDataQuality       float64 `yaml:"elite_min_data_quality"`
	EliteMaxInjuryUncertainty float64 `yaml:"elite_max_injury_uncertainty"`

	// League baseline clamp
	BaselineWindowDays      int     `yaml:"baseline_window_days"`
	BaselineBiasVsActualMax float64 `yaml:"baseline_bias_vs_actual_max"`
	BaselineBiasVsMarketMax float64 `yaml:"baseline_bias_vs_market_max"`
	BaselineMaxOverRate     float64 `yaml:"baseline_max_over_rate"`
	BaselineDampFactor      float64 `yaml:"baseline_damp_factor"`

	PrimaryMarket     models.MarketType `yaml:"primary_market"`
	CompressionFactor float64           `yaml:"compression_factor"` // 0 < f <= 1
	VolatilityCeiling float64           `yaml:"volatility_ceiling"`

	MaxOddsAgeSeconds int `yaml:"max_odds_age_seconds"`

	// Reality-check inputs
	LeagueTotalMean        float64 `yaml:"league_total_mean"`
	LeagueTotalSigma       float64 `yaml:"league_total_sigma"`
	RegulationMinutes      float64 `yaml:"regulation_minutes"`
	PaceFeasibilityCeiling float64 `yaml:"pace_feasibility_ceiling"` // pts/min per team

	// Key-number protection
	KeyNumbers      []float64 `yaml:"key_numbers"`
	KeyNumberBuffer float64   `yaml:"key_number_buffer"`

	Sanity DistributionSanity `yaml:"distribution_sanity"`

	// Signal confirmation window: N of the last M sims must agree
	ConfirmN int `yaml:"confirm_n"`
	ConfirmM int `yaml:"confirm_m"`

	// Lifecycle invalidation thresholds
	InjuryImpactThreshold float64 `yaml:"injury_impact_threshold"`
	MarketSnapTolerance   float64 `yaml:"market_snap_tolerance"` // line points

	SupportedMarkets []models.MarketContract `yaml:"supported_markets"`

	Cadence       Cadence `yaml:"cadence"`
	MaxSimBacklog int     `yaml:"max_sim_backlog"`
}

// SupportsMarket reports whether (market_type, settlement) is a legal
// contract for this sport
func (c *SportConfig) SupportsMarket(marketType models.MarketType, settlement models.MarketSettlement) bool {
	for _, mc := range c.SupportedMarkets {
		if mc.MarketType == marketType && mc.Settlement == settlement {
			return true
		}
	}
	return false
}
