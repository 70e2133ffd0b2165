package sportconfig

import (
	_ "embed"
	"fmt"
	"os"

	"github.com/XavierBriggs/fortuna/services/decision-engine/pkg/models"
	"gopkg.in/yaml.v3"
)

//go:embed sports.yaml
var defaultSportsYAML []byte

// ContractError reports an illegal (sport, market_type, settlement) tuple.
// It is never auto-corrected.
type ContractError struct {
	Sport      models.Sport
	MarketType models.MarketType
	Settlement models.MarketSettlement
}

func (e *ContractError) Error() string {
	return fmt.Sprintf("%s: %s/%s/%s is not a supported market contract",
		models.ReasonMarketContractMismatch, e.Sport, e.MarketType, e.Settlement)
}

// Code returns the machine-readable reason code
func (e *ContractError) Code() string {
	return models.ReasonMarketContractMismatch
}

type configFile struct {
	Sports []SportConfig `yaml:"sports"`
}

// Registry is the pure lookup over frozen per-sport configs. Built once at
// startup; read-only afterwards.
type Registry struct {
	configs map[models.Sport]SportConfig
}

// Load builds the registry from the embedded defaults, optionally overridden
// by a YAML file at path (empty path keeps the defaults).
func Load(path string) (*Registry, error) {
	data := defaultSportsYAML

	if path != "" {
		fileData, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("error reading sport config %s: %w", path, err)
		}
		data = fileData
	}

	var file configFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("error parsing sport config: %w", err)
	}

	if len(file.Sports) == 0 {
		return nil, fmt.Errorf("sport config contains no sports")
	}

	configs := make(map[models.Sport]SportConfig, len(file.Sports))
	for _, cfg := range file.Sports {
		if _, err := models.ParseSport(string(cfg.Sport)); err != nil {
			return nil, fmt.Errorf("invalid sport config: %w", err)
		}
		if cfg.CompressionFactor <= 0 || cfg.CompressionFactor > 1 {
			return nil, fmt.Errorf("%s: compression factor must be in (0, 1], got %f", cfg.Sport, cfg.CompressionFactor)
		}
		if len(cfg.SupportedMarkets) == 0 {
			return nil, fmt.Errorf("%s: no supported markets declared", cfg.Sport)
		}
		if _, exists := configs[cfg.Sport]; exists {
			return nil, fmt.Errorf("%s: duplicate sport config", cfg.Sport)
		}
		configs[cfg.Sport] = cfg
	}

	return &Registry{configs: configs}, nil
}

// ConfigFor returns the frozen config for a sport
func (r *Registry) ConfigFor(sport models.Sport) (SportConfig, error) {
	cfg, exists := r.configs[sport]
	if !exists {
		return SportConfig{}, fmt.Errorf("no config registered for sport %s", sport)
	}
	return cfg, nil
}

// ValidateMarketContract fails with MARKET_CONTRACT_MISMATCH when the tuple
// is unsupported for the sport
func (r *Registry) ValidateMarketContract(sport models.Sport, marketType models.MarketType, settlement models.MarketSettlement) error {
	cfg, exists := r.configs[sport]
	if !exists {
		return &ContractError{Sport: sport, MarketType: marketType, Settlement: settlement}
	}

	if !cfg.SupportsMarket(marketType, settlement) {
		return &ContractError{Sport: sport, MarketType: marketType, Settlement: settlement}
	}

	return nil
}

// KeyNumbersFor returns the sport's key numbers (e.g. NFL spreads cluster
// at 3, 7, 10); empty for sports without key-number protection
func (r *Registry) KeyNumbersFor(sport models.Sport) []float64 {
	cfg, exists := r.configs[sport]
	if !exists || !cfg.Sanity.KeyNumberProtection {
		return nil
	}
	return cfg.KeyNumbers
}

// Sports returns every configured sport in registry order
func (r *Registry) Sports() []models.Sport {
	out := make([]models.Sport, 0, len(r.configs))
	for _, s := range models.AllSports {
		if _, exists := r.configs[s]; exists {
			out = append(out, s)
		}
	}
	return out
}
