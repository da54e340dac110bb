package decision

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/casperlundberg/tiered-offloading-engine/pkg/cost"
	"github.com/casperlundberg/tiered-offloading-engine/pkg/models"
)

// ConstrainedCostOptimizer test requirements:
// 1. Tiers above L_MAX are never selected while a feasible tier exists
// 2. Among feasible tiers the minimal energy wins, ties go to the earlier tier
// 3. No feasible tier falls back to the device tier
// 4. Worker subsets are immutable copies

type TierSelectorTestSuite struct {
	suite.Suite
	costModel *cost.HeuristicCostModel
	workers   []models.Worker
}

func (suite *TierSelectorTestSuite) SetupTest() {
	profiles := models.DefaultTierProfiles()
	setRate := func(tier models.Tier, rate float64) {
		p := profiles[tier]
		p.ComputeRate = rate
		p.Network = models.NetworkProfile{}
		profiles[tier] = p
	}
	setRate(models.DEVICE, 1000)
	setRate(models.EDGE, 2000)
	setRate(models.CLOUD, 20000)

	var err error
	suite.costModel, err = cost.NewHeuristicCostModel(profiles)
	require.NoError(suite.T(), err)

	suite.workers = []models.Worker{
		{ID: 0, Tier: models.DEVICE, ComputeRate: 1000},
		{ID: 1, Tier: models.EDGE, ComputeRate: 2000},
		{ID: 2, Tier: models.CLOUD, ComputeRate: 20000},
	}
}

func (suite *TierSelectorTestSuite) newOptimizer(lmax float64) *ConstrainedCostOptimizer {
	o, err := NewConstrainedCostOptimizer(lmax, suite.costModel)
	require.NoError(suite.T(), err)
	require.NoError(suite.T(), o.Initialize(suite.workers))
	return o
}

func (suite *TierSelectorTestSuite) TestOnlyCloudFeasible() {
	o := suite.newOptimizer(0.1)

	// device 1.0s, edge 0.5s, cloud 0.05s
	tier, err := o.SelectTier(models.NewTask(1, 1000, 0, 0))
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), models.CLOUD, tier)
}

func (suite *TierSelectorTestSuite) TestMinimalEnergyAmongFeasible() {
	o := suite.newOptimizer(10)

	// all feasible; energies: device 3W*1s=3J, edge 24W*0.5s=12J, cloud 40W*0.05s=2J
	tier, err := o.SelectTier(models.NewTask(1, 1000, 0, 0))
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), models.CLOUD, tier)

	// without cloud workers, edge is the only tier under 0.6s
	o, err = NewConstrainedCostOptimizer(0.6, suite.costModel)
	require.NoError(suite.T(), err)
	require.NoError(suite.T(), o.Initialize(suite.workers[:2]))
	tier, err = o.SelectTier(models.NewTask(2, 1000, 0, 0))
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), models.EDGE, tier)
}

func (suite *TierSelectorTestSuite) TestFallbackToDevice() {
	o := suite.newOptimizer(0.001)

	tier, err := o.SelectTier(models.NewTask(1, 1000, 0, 0))
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), models.DEVICE, tier)
}

func (suite *TierSelectorTestSuite) TestTieBrokenByEvaluationOrder() {
	profiles := models.DefaultTierProfiles()
	for _, tier := range models.ValidTiers() {
		profiles[tier] = models.TierProfile{
			ComputeRate: 1000,
			Power:       models.PowerProfile{Idle: 1, Max: 1},
		}
	}
	m, err := cost.NewHeuristicCostModel(profiles)
	require.NoError(suite.T(), err)

	o, err := NewConstrainedCostOptimizer(10, m)
	require.NoError(suite.T(), err)
	require.NoError(suite.T(), o.Initialize(suite.workers))

	tier, err := o.SelectTier(models.NewTask(1, 1000, 0, 0))
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), models.DEVICE, tier)
}

func (suite *TierSelectorTestSuite) TestUnpopulatedTierSkipped() {
	o, err := NewConstrainedCostOptimizer(0.001, suite.costModel)
	require.NoError(suite.T(), err)
	require.NoError(suite.T(), o.Initialize(suite.workers[1:]))

	// nothing feasible and no device workers: first populated tier
	tier, err := o.SelectTier(models.NewTask(1, 1000, 0, 0))
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), models.EDGE, tier)

	// cloud-only worker set
	require.NoError(suite.T(), o.Initialize(suite.workers[2:]))
	tier, err = o.SelectTier(models.NewTask(2, 1000, 0, 0))
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), models.CLOUD, tier)
}

func (suite *TierSelectorTestSuite) TestInitializeErrors() {
	o, err := NewConstrainedCostOptimizer(1, suite.costModel)
	require.NoError(suite.T(), err)

	assert.ErrorIs(suite.T(), o.Initialize(nil), models.ErrInvalidConfiguration)
	assert.ErrorIs(suite.T(), o.Initialize([]models.Worker{{ID: 3, ComputeRate: 1}}), models.ErrInvalidConfiguration)

	_, err = o.SelectTier(models.NewTask(1, 1, 0, 0))
	assert.ErrorIs(suite.T(), err, models.ErrInvalidConfiguration)
}

func (suite *TierSelectorTestSuite) TestWorkersForTierIsCopy() {
	o := suite.newOptimizer(1)

	cloud := o.WorkersForTier(models.CLOUD)
	require.Len(suite.T(), cloud, 1)
	cloud[0].ID = 77

	assert.Equal(suite.T(), models.WorkerID(2), o.WorkersForTier(models.CLOUD)[0].ID)
	assert.Empty(suite.T(), o.WorkersForTier("fog"))
}

func (suite *TierSelectorTestSuite) TestEvaluateReportsFeasibility() {
	o := suite.newOptimizer(0.1)

	evaluations, err := o.Evaluate(models.NewTask(1, 1000, 0, 0))
	require.NoError(suite.T(), err)
	require.Len(suite.T(), evaluations, 3)

	assert.False(suite.T(), evaluations[0].Feasible)
	assert.False(suite.T(), evaluations[1].Feasible)
	assert.True(suite.T(), evaluations[2].Feasible)
	assert.InDelta(suite.T(), 0.05, evaluations[2].Latency, 1e-9)
}

func TestNewConstrainedCostOptimizer_Validation(t *testing.T) {
	_, err := NewConstrainedCostOptimizer(0, cost.DefaultCostModel())
	assert.ErrorIs(t, err, models.ErrInvalidConfiguration)

	_, err = NewConstrainedCostOptimizer(1, nil)
	assert.ErrorIs(t, err, models.ErrInvalidConfiguration)
}

func TestTierSelectorTestSuite(t *testing.T) {
	suite.Run(t, new(TierSelectorTestSuite))
}
