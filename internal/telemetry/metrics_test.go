package telemetry

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/casperlundberg/tiered-offloading-engine/internal/simulation"
	"github.com/casperlundberg/tiered-offloading-engine/pkg/models"
	"github.com/casperlundberg/tiered-offloading-engine/pkg/policy"
)

func summary(episode int, reward float64, unplaced int) simulation.EpisodeSummary {
	return simulation.EpisodeSummary{
		Policy:      policy.RL,
		Episode:     episode,
		Reward:      reward,
		Temperature: 0.5,
		MaxDelta:    0.01,
		Makespan:    2.5,
		Unplaced:    unplaced,
		Tiers: []simulation.TierResult{
			{Tier: models.DEVICE, Tasks: 2, AverageExecutionTime: 0.5, Energy: 3},
			{Tier: models.CLOUD, Tasks: 8, AverageExecutionTime: 0.1, Energy: 20},
		},
	}
}

func TestExporter_ObserveEpisode(t *testing.T) {
	registry := prometheus.NewRegistry()
	exporter, err := NewExporter(registry)
	require.NoError(t, err)

	require.NoError(t, exporter.ObserveEpisode(summary(1, -4, 0)))
	require.NoError(t, exporter.ObserveEpisode(summary(2, -3, 2)))

	assert.Equal(t, 2.0, testutil.ToFloat64(exporter.episodes.WithLabelValues("rl")))
	assert.Equal(t, -3.0, testutil.ToFloat64(exporter.reward.WithLabelValues("rl")))
	assert.Equal(t, 0.5, testutil.ToFloat64(exporter.temperature.WithLabelValues("rl")))
	assert.Equal(t, 2.0, testutil.ToFloat64(exporter.unplaced.WithLabelValues("rl")))
	assert.Equal(t, 16.0, testutil.ToFloat64(exporter.tierTasks.WithLabelValues("rl", "cloud")))
	assert.Equal(t, 3.0, testutil.ToFloat64(exporter.tierEnergy.WithLabelValues("rl", "device")))
	assert.Equal(t, 0.1, testutil.ToFloat64(exporter.tierExec.WithLabelValues("rl", "cloud")))

	count, err := testutil.GatherAndCount(registry, "offloader_episodes_total")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestExporter_DuplicateRegistration(t *testing.T) {
	registry := prometheus.NewRegistry()
	_, err := NewExporter(registry)
	require.NoError(t, err)

	_, err = NewExporter(registry)
	assert.Error(t, err)
}
