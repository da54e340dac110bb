package decision

import (
	"fmt"
	"math"

	"github.com/casperlundberg/tiered-offloading-engine/pkg/cost"
	"github.com/casperlundberg/tiered-offloading-engine/pkg/models"
)

// TierSelector picks the execution tier for a task and exposes the
// workers of each tier to the allocation policies.
type TierSelector interface {
	Initialize(workers []models.Worker) error
	SelectTier(task models.Task) (models.Tier, error)
	WorkersForTier(tier models.Tier) []models.Worker
}

// TierEvaluation is the cost breakdown of one candidate tier
type TierEvaluation struct {
	Tier     models.Tier `json:"tier"`
	Latency  float64     `json:"latency"`
	Energy   float64     `json:"energy"`
	Feasible bool        `json:"feasible"`
}

// ConstrainedCostOptimizer solves
//
//	minimize energy(task, tier)  subject to  latency(task, tier) <= L_MAX
//
// over {device, edge, cloud}. When no tier is feasible it falls back to the
// first populated tier in evaluation order instead of failing. That is the
// device tier whenever device workers exist; a run without device workers
// falls back to edge, or to cloud when edge is empty too, rather than
// handing the task to a tier nobody can serve.
type ConstrainedCostOptimizer struct {
	maxLatency float64
	costModel  cost.Model
	byTier     map[models.Tier][]models.Worker
}

// NewConstrainedCostOptimizer creates an optimizer with latency ceiling maxLatency (seconds)
func NewConstrainedCostOptimizer(maxLatency float64, costModel cost.Model) (*ConstrainedCostOptimizer, error) {
	if costModel == nil {
		return nil, fmt.Errorf("%w: cost model is required", models.ErrInvalidConfiguration)
	}
	if maxLatency <= 0 || math.IsNaN(maxLatency) {
		return nil, fmt.Errorf("%w: L_MAX must be positive, got %v", models.ErrInvalidConfiguration, maxLatency)
	}
	return &ConstrainedCostOptimizer{
		maxLatency: maxLatency,
		costModel:  costModel,
	}, nil
}

// Initialize partitions the workers by tier
func (o *ConstrainedCostOptimizer) Initialize(workers []models.Worker) error {
	if len(workers) == 0 {
		return fmt.Errorf("%w: worker list must be non-empty", models.ErrInvalidConfiguration)
	}

	byTier := make(map[models.Tier][]models.Worker)
	for _, w := range workers {
		if w.Tier == "" || !w.Tier.IsValid() {
			return fmt.Errorf("%w: worker #%d has no tier label", models.ErrInvalidConfiguration, w.ID)
		}
		byTier[w.Tier] = append(byTier[w.Tier], w)
	}
	o.byTier = byTier
	return nil
}

// Evaluate computes latency, energy and feasibility for every populated tier,
// in evaluation order.
func (o *ConstrainedCostOptimizer) Evaluate(task models.Task) ([]TierEvaluation, error) {
	evaluations := make([]TierEvaluation, 0, len(models.EvaluationOrder))
	for _, tier := range models.EvaluationOrder {
		if len(o.byTier[tier]) == 0 {
			continue
		}
		latency := o.costModel.Latency(task, tier)
		energy, err := o.costModel.Energy(task, tier)
		if err != nil {
			return nil, err
		}
		evaluations = append(evaluations, TierEvaluation{
			Tier:     tier,
			Latency:  latency,
			Energy:   energy,
			Feasible: latency <= o.maxLatency,
		})
	}
	return evaluations, nil
}

// SelectTier returns the cheapest latency-feasible tier
func (o *ConstrainedCostOptimizer) SelectTier(task models.Task) (models.Tier, error) {
	if o.byTier == nil {
		return "", fmt.Errorf("%w: optimizer not initialized", models.ErrInvalidConfiguration)
	}

	evaluations, err := o.Evaluate(task)
	if err != nil {
		return "", err
	}
	if len(evaluations) == 0 {
		return "", fmt.Errorf("%w: no populated tier", models.ErrInvalidConfiguration)
	}

	// Fallback when nothing meets L_MAX
	selected := evaluations[0].Tier
	minEnergy := math.MaxFloat64

	for _, e := range evaluations {
		if !e.Feasible {
			continue
		}
		// strict comparison keeps the earlier tier on ties
		if e.Energy < minEnergy {
			minEnergy = e.Energy
			selected = e.Tier
		}
	}

	return selected, nil
}

// WorkersForTier returns a copy of the tier's workers
func (o *ConstrainedCostOptimizer) WorkersForTier(tier models.Tier) []models.Worker {
	src := o.byTier[tier]
	out := make([]models.Worker, len(src))
	copy(out, src)
	return out
}

// MaxLatency returns the configured latency ceiling
func (o *ConstrainedCostOptimizer) MaxLatency() float64 {
	return o.maxLatency
}
