package learning

import "math"

// RewardBounds holds the maxima used to scale latency and energy into [0,1].
// Bounds only grow, so the reward scale never shrinks between episodes.
type RewardBounds struct {
	MaxLatency float64 `json:"max_latency"`
	MaxEnergy  float64 `json:"max_energy"`
}

// Observe widens the bounds to cover the given sample
func (b *RewardBounds) Observe(latency, energy float64) {
	b.MaxLatency = math.Max(b.MaxLatency, latency)
	b.MaxEnergy = math.Max(b.MaxEnergy, energy)
}

// Known reports whether both bounds were seeded
func (b RewardBounds) Known() bool {
	return b.MaxLatency > 0 && b.MaxEnergy > 0
}

// Normalize scales a sample into [0,1]. An unseeded bound yields 0.
func (b RewardBounds) Normalize(latency, energy float64) (float64, float64) {
	return clampRatio(latency, b.MaxLatency), clampRatio(energy, b.MaxEnergy)
}

func clampRatio(v, max float64) float64 {
	if max <= 0 {
		return 0
	}
	return math.Max(0, math.Min(1.0, v/max))
}
