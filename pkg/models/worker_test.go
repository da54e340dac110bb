package models

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWorkerRegistry_PartitionsByTier(t *testing.T) {
	workers := BuildWorkers([]WorkerSpec{
		{Tier: DEVICE, Count: 2, ComputeRate: 1000},
		{Tier: EDGE, Count: 1, ComputeRate: 2400},
		{Tier: CLOUD, Count: 3, ComputeRate: 5000},
	})

	registry, err := NewWorkerRegistry(workers)
	require.NoError(t, err)

	assert.Equal(t, 6, registry.Len())
	assert.Len(t, registry.ByTier(DEVICE), 2)
	assert.Len(t, registry.ByTier(EDGE), 1)
	assert.Len(t, registry.ByTier(CLOUD), 3)

	tier, err := registry.TierOf(2)
	require.NoError(t, err)
	assert.Equal(t, EDGE, tier)

	assert.Equal(t, []WorkerID{0, 1, 2, 3, 4, 5}, registry.IDs())
}

func TestNewWorkerRegistry_Errors(t *testing.T) {
	testCases := []struct {
		name    string
		workers []Worker
	}{
		{name: "empty", workers: nil},
		{name: "missing_tier", workers: []Worker{{ID: 0, ComputeRate: 1}}},
		{name: "unknown_tier", workers: []Worker{{ID: 0, Tier: "fog", ComputeRate: 1}}},
		{name: "zero_rate", workers: []Worker{{ID: 0, Tier: EDGE}}},
		{name: "duplicate", workers: []Worker{
			{ID: 1, Tier: EDGE, ComputeRate: 1},
			{ID: 1, Tier: CLOUD, ComputeRate: 1},
		}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewWorkerRegistry(tc.workers)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidConfiguration), "got %v", err)
		})
	}
}

func TestWorkerRegistry_TierOfUnknown(t *testing.T) {
	registry, err := NewWorkerRegistry([]Worker{{ID: 0, Tier: CLOUD, ComputeRate: 1}})
	require.NoError(t, err)

	_, err = registry.TierOf(42)
	assert.ErrorIs(t, err, ErrMissingTierMapping)
}

func TestWorkerRegistry_ByTierReturnsCopy(t *testing.T) {
	registry, err := NewWorkerRegistry([]Worker{{ID: 0, Tier: CLOUD, ComputeRate: 1}})
	require.NoError(t, err)

	subset := registry.ByTier(CLOUD)
	subset[0].ID = 99

	assert.Equal(t, WorkerID(0), registry.ByTier(CLOUD)[0].ID)
}

func TestTask_Validate(t *testing.T) {
	assert.NoError(t, NewTask(1, 1000, 10, 10).Validate())

	err := NewTask(1, -1, 10, -10).Validate()
	require.Error(t, err)

	var verrs ValidationErrors
	require.True(t, errors.As(err, &verrs))
	assert.Len(t, verrs, 2)
}

func TestTask_CPUUtilizationDefaultsToFull(t *testing.T) {
	task := Task{ID: 1, Length: 10}
	assert.Equal(t, 1.0, task.CPUUtilization(0))

	task.Utilization = ConstantUtilization(0.25)
	assert.Equal(t, 0.25, task.CPUUtilization(3))
}

func TestParseTier(t *testing.T) {
	tier, err := ParseTier("edge")
	require.NoError(t, err)
	assert.Equal(t, EDGE, tier)
	assert.True(t, tier.IsRemote())
	assert.False(t, DEVICE.IsRemote())

	_, err = ParseTier("hpc")
	assert.ErrorIs(t, err, ErrInvalidConfiguration)
}

func TestDefaultTierProfiles_Valid(t *testing.T) {
	for tier, profile := range DefaultTierProfiles() {
		assert.NoError(t, profile.Validate(tier), "tier %s", tier)
	}
}
