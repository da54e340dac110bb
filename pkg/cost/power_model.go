package cost

import (
	"fmt"

	"github.com/casperlundberg/tiered-offloading-engine/pkg/models"
)

// TieredPowerModel is a linear power-vs-utilization curve:
//
//	P(u) = overhead + idle + (max - idle) * u,  u in [0,1]
type TieredPowerModel struct {
	profile models.PowerProfile
}

// NewTieredPowerModel creates a power model from a tier's power profile
func NewTieredPowerModel(profile models.PowerProfile) TieredPowerModel {
	return TieredPowerModel{profile: profile}
}

// Power returns the draw in watts at the given utilization
func (pm TieredPowerModel) Power(utilization float64) (float64, error) {
	if utilization < 0.0 || utilization > 1.0 {
		return 0, fmt.Errorf("%w: %v not in [0,1]", models.ErrInvalidUtilization, utilization)
	}
	cpuDraw := pm.profile.Idle + (pm.profile.Max-pm.profile.Idle)*utilization
	return pm.profile.Overhead + cpuDraw, nil
}

// Profile returns the underlying power profile
func (pm TieredPowerModel) Profile() models.PowerProfile {
	return pm.profile
}
