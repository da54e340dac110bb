package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/casperlundberg/tiered-offloading-engine/pkg/models"
	"github.com/casperlundberg/tiered-offloading-engine/pkg/policy"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestDefault_IsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, policy.RL, cfg.PolicyKind())
	assert.Len(t, cfg.Tiers, 3)
}

func TestLoad_OverlaysDefaults(t *testing.T) {
	path := writeConfig(t, `
engine:
  policy: throttled
  l_max: 0.25
  lambda: 0.8
  learning_rate: 0.2
workers:
  - tier: device
    count: 1
    compute_rate: 500
  - tier: cloud
    count: 3
    compute_rate: 9000
tiers:
  edge:
    compute_rate: 12000
    power: {overhead: 1, idle: 2, max: 3}
paths:
  dataset: tasks.json
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, policy.THROTTLED, cfg.PolicyKind())
	assert.Equal(t, 0.25, cfg.Engine.MaxLatency)
	assert.Equal(t, 0.8, cfg.Engine.Lambda)
	assert.Equal(t, 0.2, cfg.Engine.LearningRate)
	// untouched fields keep their defaults
	assert.Equal(t, 0.9, cfg.Engine.DiscountFactor)
	assert.Equal(t, 1000, cfg.Engine.MaxEpisodes)
	assert.Equal(t, "tasks.json", cfg.Paths.Dataset)
	assert.Equal(t, "qtable.json", cfg.Paths.QTable)

	assert.Equal(t, 12000.0, cfg.Tiers[models.EDGE].ComputeRate)
	assert.Zero(t, cfg.Tiers[models.EDGE].Network.HopFactor, "listed tier replaces the whole profile")
	assert.Equal(t, 40000.0, cfg.Tiers[models.CLOUD].ComputeRate)

	registry, err := cfg.Registry()
	require.NoError(t, err)
	assert.Equal(t, 4, registry.Len())
	assert.Len(t, registry.ByTier(models.CLOUD), 3)
	assert.Empty(t, registry.ByTier(models.EDGE))
}

func TestLoad_Invalid(t *testing.T) {
	path := writeConfig(t, `
engine:
  policy: round-robin
  l_max: -1
  lambda: 2
workers:
  - tier: fog
    count: 1
    compute_rate: 0
`)

	_, err := Load(path)
	require.Error(t, err)
	assert.ErrorIs(t, err, models.ErrInvalidConfiguration)

	var problems models.ValidationErrors
	require.ErrorAs(t, err, &problems)
	fields := make([]string, 0, len(problems))
	for _, p := range problems {
		fields = append(fields, p.Field)
	}
	assert.Contains(t, fields, "Engine.Policy")
	assert.Contains(t, fields, "Engine.MaxLatency")
	assert.Contains(t, fields, "Engine.Learning")
	assert.Contains(t, fields, "Workers[0].Tier")
	assert.Contains(t, fields, "Workers[0].ComputeRate")
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	_, err = Load(writeConfig(t, "engine: [unterminated"))
	assert.Error(t, err)
}

func TestValidate_NoWorkers(t *testing.T) {
	cfg := Default()
	cfg.Workers = []models.WorkerSpec{{Tier: models.EDGE, Count: 0, ComputeRate: 100}}
	assert.ErrorIs(t, cfg.Validate(), models.ErrInvalidConfiguration)
}

func TestValidate_MissingTierProfile(t *testing.T) {
	cfg := Default()
	delete(cfg.Tiers, models.CLOUD)
	assert.Error(t, cfg.Validate())
}

func TestControllerConfig(t *testing.T) {
	cfg := Default()
	cfg.Engine.Policy = "static"
	cfg.Engine.MaxEpisodes = 7

	controller := cfg.ControllerConfig()
	assert.Equal(t, policy.STATIC, controller.Policy)
	assert.Equal(t, 7, controller.MaxEpisodes)
	assert.Equal(t, cfg.Engine.MaxLatency, controller.MaxLatency)
	assert.Equal(t, cfg.Engine.LearningConfig, controller.Learning)
	require.NoError(t, controller.Validate())
}
