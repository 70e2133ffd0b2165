package config_test

import (
	"testing"
	"time"

	"github.com/XavierBriggs/fortuna/services/decision-engine/internal/config"
)

func TestLoadVersionEnvironment(t *testing.T) {
	t.Setenv("ENGINE_BUILD_ID", "engine-2026.08.1")
	t.Setenv("CURRENT_SIM_VERSION", "sim-v3")
	t.Setenv("DEPLOYED_AT", "2026-08-20T14:00:00Z")

	cfg := config.Load()

	if cfg.EngineVersion != "engine-2026.08.1" {
		t.Errorf("engine build id = %q", cfg.EngineVersion)
	}
	if cfg.ModelVersion != "sim-v3" {
		t.Errorf("sim version = %q", cfg.ModelVersion)
	}

	want := time.Date(2026, 8, 20, 14, 0, 0, 0, time.UTC)
	if !cfg.DeployedAt.Equal(want) {
		t.Errorf("deployed at = %s, want %s", cfg.DeployedAt, want)
	}
}

func TestLoadDefaults(t *testing.T) {
	cfg := config.Load()

	if cfg.EngineVersion != "dev" {
		t.Errorf("default engine build id = %q, want dev", cfg.EngineVersion)
	}
	if cfg.ModelVersion != "sim-v1" {
		t.Errorf("default sim version = %q, want sim-v1", cfg.ModelVersion)
	}
	// Without DEPLOYED_AT the engine stamps its own start
	if cfg.DeployedAt.IsZero() {
		t.Error("deployed at not defaulted")
	}
}

func TestLoadBadDeployedAtFallsBack(t *testing.T) {
	t.Setenv("DEPLOYED_AT", "yesterday-ish")

	cfg := config.Load()
	if cfg.DeployedAt.IsZero() {
		t.Error("unparseable DEPLOYED_AT produced a zero time")
	}
}
