package simulation

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/casperlundberg/tiered-offloading-engine/pkg/cost"
	"github.com/casperlundberg/tiered-offloading-engine/pkg/models"
)

// zeroNetworkCostModel uses rates 1000/2000/20000 and no transfer cost
func zeroNetworkCostModel(t *testing.T) *cost.HeuristicCostModel {
	t.Helper()
	profiles := models.DefaultTierProfiles()
	for tier, rate := range map[models.Tier]float64{models.DEVICE: 1000, models.EDGE: 2000, models.CLOUD: 20000} {
		p := profiles[tier]
		p.ComputeRate = rate
		p.Network = models.NetworkProfile{}
		profiles[tier] = p
	}
	costModel, err := cost.NewHeuristicCostModel(profiles)
	require.NoError(t, err)
	return costModel
}

func threeWorkerRegistry(t *testing.T) *models.WorkerRegistry {
	t.Helper()
	registry, err := models.NewWorkerRegistry([]models.Worker{
		{ID: 0, Tier: models.DEVICE, ComputeRate: 1000},
		{ID: 1, Tier: models.EDGE, ComputeRate: 2000},
		{ID: 2, Tier: models.CLOUD, ComputeRate: 20000},
	})
	require.NoError(t, err)
	return registry
}

func uniformTasks(n int, length int64) []models.Task {
	tasks := make([]models.Task, n)
	for i := range tasks {
		tasks[i] = models.NewTask(i, length, 0, 0)
	}
	return tasks
}

type recordingObserver struct {
	summaries []EpisodeSummary
	err       error
}

func (o *recordingObserver) ObserveEpisode(summary EpisodeSummary) error {
	o.summaries = append(o.summaries, summary)
	return o.err
}
