package simulation

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/casperlundberg/tiered-offloading-engine/pkg/cost"
	"github.com/casperlundberg/tiered-offloading-engine/pkg/learning"
	"github.com/casperlundberg/tiered-offloading-engine/pkg/models"
	"github.com/casperlundberg/tiered-offloading-engine/pkg/policy"
)

// EpisodeController test requirements:
// 1. With only the cloud tier under L_MAX every task runs on the cloud tier
// 2. Tier-level policies run exactly one episode
// 3. Learning runs stop on convergence or at MaxEpisodes
// 4. The best-reward episode is retained even if later episodes regress

type EpisodeControllerTestSuite struct {
	suite.Suite
	costModel *cost.HeuristicCostModel
	registry  *models.WorkerRegistry
}

func (suite *EpisodeControllerTestSuite) SetupTest() {
	suite.costModel = zeroNetworkCostModel(suite.T())
	suite.registry = threeWorkerRegistry(suite.T())
}

func (suite *EpisodeControllerTestSuite) config(kind policy.Kind) Config {
	return Config{
		Policy:      kind,
		MaxLatency:  0.1,
		MaxEpisodes: 50,
		Learning:    learning.DefaultLearningConfig(),
	}
}

func (suite *EpisodeControllerTestSuite) run(cfg Config, tasks []models.Task, observers ...EpisodeObserver) (*Outcome, error) {
	controller, err := NewEpisodeController(cfg, suite.costModel, suite.registry)
	require.NoError(suite.T(), err)
	for _, o := range observers {
		controller.AddObserver(o)
	}
	return controller.Run(context.Background(), tasks)
}

func (suite *EpisodeControllerTestSuite) TestStaticPlacesEverythingOnCloud() {
	observer := &recordingObserver{}
	outcome, err := suite.run(suite.config(policy.STATIC), uniformTasks(10, 1000), observer)
	require.NoError(suite.T(), err)

	assert.Equal(suite.T(), 1, outcome.Episodes)
	assert.Equal(suite.T(), 10, outcome.Tasks)
	assert.Zero(suite.T(), outcome.Unplaced)

	require.Len(suite.T(), outcome.Tiers, 3)
	assert.Zero(suite.T(), outcome.Tiers[0].Tasks)
	assert.Zero(suite.T(), outcome.Tiers[1].Tasks)

	cloud := outcome.Tiers[2]
	assert.Equal(suite.T(), models.CLOUD, cloud.Tier)
	assert.Equal(suite.T(), 10, cloud.Tasks)
	assert.InDelta(suite.T(), 0.05, cloud.AverageExecutionTime, 1e-9)
	// 40 W at full utilization for 0.05 s per task
	assert.InDelta(suite.T(), 20.0, cloud.Energy, 1e-9)
	// a single cloud worker runs the batch back to back
	assert.InDelta(suite.T(), 0.5, outcome.Makespan, 1e-9)

	require.Len(suite.T(), observer.summaries, 1)
	assert.Nil(suite.T(), observer.summaries[0].QValues)
	assert.Equal(suite.T(), 10, observer.summaries[0].Placed)
}

func (suite *EpisodeControllerTestSuite) TestStaticSpreadsOverCloudWorkersOnly() {
	registry, err := models.NewWorkerRegistry([]models.Worker{
		{ID: 0, Tier: models.DEVICE, ComputeRate: 1000},
		{ID: 1, Tier: models.EDGE, ComputeRate: 2000},
		{ID: 2, Tier: models.CLOUD, ComputeRate: 20000},
		{ID: 3, Tier: models.CLOUD, ComputeRate: 20000},
	})
	require.NoError(suite.T(), err)
	suite.registry = registry

	observer := &recordingObserver{}
	outcome, err := suite.run(suite.config(policy.STATIC), uniformTasks(10, 1000), observer)
	require.NoError(suite.T(), err)

	assert.Zero(suite.T(), outcome.Unplaced)
	assert.Zero(suite.T(), outcome.Tiers[0].Tasks)
	assert.Zero(suite.T(), outcome.Tiers[1].Tasks)
	assert.Equal(suite.T(), 10, outcome.Tiers[2].Tasks)
	// two cloud workers share the batch, so it finishes in half the time
	assert.InDelta(suite.T(), 0.25, outcome.Makespan, 1e-9)

	require.Len(suite.T(), observer.summaries, 1)
	assert.Equal(suite.T(), map[models.WorkerID]int{2: 5, 3: 5}, observer.summaries[0].WorkerTasks)
}

func (suite *EpisodeControllerTestSuite) TestThrottledDrainsBacklog() {
	outcome, err := suite.run(suite.config(policy.THROTTLED), uniformTasks(10, 1000))
	require.NoError(suite.T(), err)

	assert.Zero(suite.T(), outcome.Unplaced)
	assert.Equal(suite.T(), 10, outcome.Tiers[2].Tasks)
	assert.InDelta(suite.T(), 0.5, outcome.Makespan, 1e-9)
}

func (suite *EpisodeControllerTestSuite) TestTradeoffPointUsesBounds() {
	outcome, err := suite.run(suite.config(policy.STATIC), uniformTasks(10, 1000))
	require.NoError(suite.T(), err)

	// device is the slowest (1.0 s), edge the hungriest (24 W for 0.5 s)
	assert.InDelta(suite.T(), 1.0, outcome.Bounds.MaxLatency, 1e-9)
	assert.InDelta(suite.T(), 12.0, outcome.Bounds.MaxEnergy, 1e-9)
	assert.InDelta(suite.T(), 0.05, outcome.Tradeoff.NormalizedLatency, 1e-9)
	assert.InDelta(suite.T(), 2.0/12.0, outcome.Tradeoff.NormalizedEnergy, 1e-9)
	assert.Less(suite.T(), outcome.BestReward, 0.0)
}

func (suite *EpisodeControllerTestSuite) TestNoFeasibleTierFallsBackToDevice() {
	cfg := suite.config(policy.STATIC)
	cfg.MaxLatency = 0.001
	outcome, err := suite.run(cfg, uniformTasks(4, 1000))
	require.NoError(suite.T(), err)

	assert.Equal(suite.T(), 4, outcome.Tiers[0].Tasks)
	assert.Zero(suite.T(), outcome.Tiers[2].Tasks)
}

func (suite *EpisodeControllerTestSuite) TestLearningRunRetainsBestEpisode() {
	observer := &recordingObserver{}
	cfg := suite.config(policy.RL)
	cfg.MaxEpisodes = 30
	outcome, err := suite.run(cfg, uniformTasks(10, 1000), observer)
	require.NoError(suite.T(), err)

	require.NotEmpty(suite.T(), observer.summaries)
	assert.Equal(suite.T(), len(observer.summaries), outcome.Episodes)
	assert.LessOrEqual(suite.T(), outcome.Episodes, 30)
	if !outcome.Converged {
		assert.Equal(suite.T(), 30, outcome.Episodes)
	}

	best := observer.summaries[0]
	for _, s := range observer.summaries[1:] {
		if s.Reward > best.Reward {
			best = s
		}
	}
	assert.Equal(suite.T(), best.Episode, outcome.BestEpisode)
	assert.Equal(suite.T(), best.Reward, outcome.BestReward)
	assert.Equal(suite.T(), best.Tiers, outcome.Tiers)

	total := 0
	for _, tier := range outcome.Tiers {
		total += tier.Tasks
	}
	assert.Equal(suite.T(), 10, total)

	for i, s := range observer.summaries {
		assert.Equal(suite.T(), i+1, s.Episode)
		assert.NotNil(suite.T(), s.QValues)
		assert.NotEmpty(suite.T(), s.Visited)
		assert.GreaterOrEqual(suite.T(), s.Temperature, cfg.Learning.MinimumTemperature)
	}
	assert.Len(suite.T(), outcome.QValues, 3)
}

func (suite *EpisodeControllerTestSuite) TestLearningConvergesOnSingleWorker() {
	registry, err := models.NewWorkerRegistry([]models.Worker{{ID: 0, Tier: models.EDGE, ComputeRate: 2000}})
	require.NoError(suite.T(), err)

	cfg := suite.config(policy.RL)
	cfg.MaxEpisodes = 200
	cfg.Learning.LearningRate = 0.5
	cfg.Learning.DiscountFactor = 0.5

	controller, err := NewEpisodeController(cfg, suite.costModel, registry)
	require.NoError(suite.T(), err)
	outcome, err := controller.Run(context.Background(), uniformTasks(1, 1000))
	require.NoError(suite.T(), err)

	assert.True(suite.T(), outcome.Converged)
	assert.Less(suite.T(), outcome.Episodes, 200)
	assert.Less(suite.T(), outcome.MinDelta, cfg.Learning.ConvergenceThreshold)
}

func (suite *EpisodeControllerTestSuite) TestWarmStartFromQValues() {
	cfg := suite.config(policy.RL)
	cfg.MaxEpisodes = 1
	cfg.InitialQValues = map[models.WorkerID]float64{0: -5, 1: -5, 2: 0}
	cfg.Learning.InitialTemperature = 0.1
	cfg.Learning.MinimumTemperature = 0.1

	outcome, err := suite.run(cfg, uniformTasks(5, 1000))
	require.NoError(suite.T(), err)
	// the preferred worker dominates the softmax at T = 0.1
	assert.Equal(suite.T(), 5, outcome.Tiers[2].Tasks)
}

func (suite *EpisodeControllerTestSuite) TestObserverErrorAborts() {
	observer := &recordingObserver{err: errors.New("disk full")}
	_, err := suite.run(suite.config(policy.STATIC), uniformTasks(2, 1000), observer)
	assert.ErrorContains(suite.T(), err, "disk full")
}

func (suite *EpisodeControllerTestSuite) TestCanceledContext() {
	controller, err := NewEpisodeController(suite.config(policy.RL), suite.costModel, suite.registry)
	require.NoError(suite.T(), err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = controller.Run(ctx, uniformTasks(2, 1000))
	assert.ErrorIs(suite.T(), err, context.Canceled)
}

func (suite *EpisodeControllerTestSuite) TestInvalidConfig() {
	cfg := suite.config(policy.STATIC)
	cfg.MaxLatency = 0
	_, err := NewEpisodeController(cfg, suite.costModel, suite.registry)
	assert.ErrorIs(suite.T(), err, models.ErrInvalidConfiguration)

	cfg = suite.config(policy.RL)
	cfg.MaxEpisodes = 0
	_, err = NewEpisodeController(cfg, suite.costModel, suite.registry)
	assert.ErrorIs(suite.T(), err, models.ErrInvalidConfiguration)

	_, err = NewEpisodeController(suite.config(policy.Kind("greedy")), suite.costModel, suite.registry)
	assert.ErrorIs(suite.T(), err, models.ErrInvalidConfiguration)
}

func TestEpisodeControllerTestSuite(t *testing.T) {
	suite.Run(t, new(EpisodeControllerTestSuite))
}
