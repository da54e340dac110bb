package simulation

import (
	"fmt"

	"github.com/casperlundberg/tiered-offloading-engine/pkg/cost"
	"github.com/casperlundberg/tiered-offloading-engine/pkg/learning"
	"github.com/casperlundberg/tiered-offloading-engine/pkg/models"
	"github.com/casperlundberg/tiered-offloading-engine/pkg/policy"
)

// PolicyFactory builds fresh policies for a run
type PolicyFactory struct {
	costModel cost.Model
	registry  *models.WorkerRegistry
	learning  learning.LearningConfig
}

// NewPolicyFactory creates a factory
func NewPolicyFactory(costModel cost.Model, registry *models.WorkerRegistry, learningConfig learning.LearningConfig) *PolicyFactory {
	return &PolicyFactory{
		costModel: costModel,
		registry:  registry,
		learning:  learningConfig,
	}
}

// TierPolicy creates a tier-level policy. Throttled policies re-dispatch
// queued tasks through the dispatcher.
func (f *PolicyFactory) TierPolicy(kind policy.Kind, dispatcher policy.Dispatcher) (policy.AllocationPolicy, error) {
	return policy.New(kind, dispatcher)
}

// Learner creates the learning policy spanning every worker
func (f *PolicyFactory) Learner() (*learning.QLearningPolicy, error) {
	return learning.NewQLearning(f.learning, f.costModel, f.registry)
}

// TierPolicies creates one fresh policy per tier, each initialized with only
// that tier's workers.
func (f *PolicyFactory) TierPolicies(kind policy.Kind, dispatcher policy.Dispatcher) (map[models.Tier]policy.AllocationPolicy, error) {
	if kind.IsLearning() {
		return nil, fmt.Errorf("%w: %s is not a tier-level policy", models.ErrInvalidConfiguration, kind)
	}

	policies := make(map[models.Tier]policy.AllocationPolicy, len(models.EvaluationOrder))
	for _, tier := range models.EvaluationOrder {
		p, err := f.TierPolicy(kind, dispatcher)
		if err != nil {
			return nil, err
		}
		if err := p.Initialize(f.registry.ByTier(tier)); err != nil {
			return nil, fmt.Errorf("failed to initialize %s policy for tier %s: %w", kind, tier, err)
		}
		policies[tier] = p
	}
	return policies, nil
}
