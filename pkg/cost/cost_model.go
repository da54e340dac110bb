package cost

import (
	"fmt"

	"github.com/casperlundberg/tiered-offloading-engine/pkg/models"
)

// Model estimates what running a task on a tier costs.
// Implementations must be pure and safe for concurrent use.
type Model interface {
	Latency(task models.Task, tier models.Tier) float64
	Energy(task models.Task, tier models.Tier) (float64, error)
}

// HeuristicCostModel estimates latency and energy from static tier profiles:
//
//	executionTime = length / computeRate
//	latency       = executionTime + networkDelay
//	energy        = power(utilization) * executionTime
type HeuristicCostModel struct {
	profiles map[models.Tier]models.TierProfile
	power    map[models.Tier]TieredPowerModel
}

// NewHeuristicCostModel builds a cost model; every tier needs a valid profile
func NewHeuristicCostModel(profiles map[models.Tier]models.TierProfile) (*HeuristicCostModel, error) {
	m := &HeuristicCostModel{
		profiles: make(map[models.Tier]models.TierProfile, len(profiles)),
		power:    make(map[models.Tier]TieredPowerModel, len(profiles)),
	}

	for _, tier := range models.ValidTiers() {
		profile, ok := profiles[tier]
		if !ok {
			return nil, fmt.Errorf("%w: no profile for tier %s", models.ErrInvalidConfiguration, tier)
		}
		if err := profile.Validate(tier); err != nil {
			return nil, fmt.Errorf("%w: %w", models.ErrInvalidConfiguration, err)
		}
		m.profiles[tier] = profile
		m.power[tier] = NewTieredPowerModel(profile.Power)
	}

	return m, nil
}

// DefaultCostModel returns the model over the reference tier profiles
func DefaultCostModel() *HeuristicCostModel {
	m, err := NewHeuristicCostModel(models.DefaultTierProfiles())
	if err != nil {
		panic(err)
	}
	return m
}

// ExecutionTime is the pure compute time of the task on the tier, in seconds
func (m *HeuristicCostModel) ExecutionTime(task models.Task, tier models.Tier) float64 {
	profile := m.profiles[tier]
	if profile.ComputeRate <= 0 {
		return 0
	}
	return float64(task.Length) / profile.ComputeRate
}

// NetworkDelay is the transfer round trip for remote tiers; zero on the device
func (m *HeuristicCostModel) NetworkDelay(task models.Task, tier models.Tier) float64 {
	if !tier.IsRemote() {
		return 0
	}

	net := m.profiles[tier].Network
	delay := net.RoundTrip
	if net.UplinkBandwidth > 0 {
		delay += float64(task.FileSize) / net.UplinkBandwidth
	}
	if net.DownlinkBandwidth > 0 {
		delay += float64(task.OutputSize) / net.DownlinkBandwidth
	}

	hops := net.HopFactor
	if hops <= 0 {
		hops = 1
	}
	return delay * hops
}

// Latency returns execution time plus network delay, in seconds
func (m *HeuristicCostModel) Latency(task models.Task, tier models.Tier) float64 {
	return m.ExecutionTime(task, tier) + m.NetworkDelay(task, tier)
}

// Energy returns joules spent executing the task, sampling utilization at start
func (m *HeuristicCostModel) Energy(task models.Task, tier models.Tier) (float64, error) {
	power, err := m.PowerAt(tier, task.CPUUtilization(0))
	if err != nil {
		return 0, fmt.Errorf("energy of %s on %s: %w", task, tier, err)
	}
	return power * m.ExecutionTime(task, tier), nil
}

// PowerAt returns the tier's draw at the given utilization
func (m *HeuristicCostModel) PowerAt(tier models.Tier, utilization float64) (float64, error) {
	pm, ok := m.power[tier]
	if !ok {
		return 0, fmt.Errorf("%w: unknown tier %q", models.ErrInvalidConfiguration, tier)
	}
	return pm.Power(utilization)
}

// Profile returns the profile of a tier
func (m *HeuristicCostModel) Profile(tier models.Tier) models.TierProfile {
	return m.profiles[tier]
}
