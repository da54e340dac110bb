package models

// PowerProfile is the linear power curve of a tier, in watts
type PowerProfile struct {
	Overhead float64 `json:"overhead" yaml:"overhead"`
	Idle     float64 `json:"idle" yaml:"idle"`
	Max      float64 `json:"max" yaml:"max"`
}

// NetworkProfile holds the per-tier transfer parameters. Only remote tiers use it.
type NetworkProfile struct {
	UplinkBandwidth   float64 `json:"uplink_bandwidth" yaml:"uplink_bandwidth"`     // bytes/sec, 0 = no transfer cost
	DownlinkBandwidth float64 `json:"downlink_bandwidth" yaml:"downlink_bandwidth"` // bytes/sec, 0 = no transfer cost
	RoundTrip         float64 `json:"round_trip" yaml:"round_trip"`                 // fixed delay, seconds
	HopFactor         float64 `json:"hop_factor" yaml:"hop_factor"`                 // multiplier for extra hops
}

// TierProfile describes the cost characteristics of one tier
type TierProfile struct {
	ComputeRate float64        `json:"compute_rate" yaml:"compute_rate"` // work units per second
	Power       PowerProfile   `json:"power" yaml:"power"`
	Network     NetworkProfile `json:"network" yaml:"network"`
}

// Validate validates the tier profile
func (p TierProfile) Validate(tier Tier) error {
	var errors ValidationErrors
	prefix := string(tier) + "."

	errors.AddIf(p.ComputeRate <= 0, prefix+"ComputeRate", p.ComputeRate, "ComputeRate must be positive")
	errors.AddIf(p.Power.Overhead < 0, prefix+"Power.Overhead", p.Power.Overhead, "power must be non-negative")
	errors.AddIf(p.Power.Idle < 0, prefix+"Power.Idle", p.Power.Idle, "power must be non-negative")
	errors.AddIf(p.Power.Max < p.Power.Idle, prefix+"Power.Max", p.Power.Max, "max power must be >= idle power")
	errors.AddIf(p.Network.UplinkBandwidth < 0, prefix+"Network.UplinkBandwidth", p.Network.UplinkBandwidth,
		"bandwidth must be non-negative")
	errors.AddIf(p.Network.DownlinkBandwidth < 0, prefix+"Network.DownlinkBandwidth", p.Network.DownlinkBandwidth,
		"bandwidth must be non-negative")
	errors.AddIf(p.Network.RoundTrip < 0, prefix+"Network.RoundTrip", p.Network.RoundTrip,
		"round trip must be non-negative")
	errors.AddIf(p.Network.HopFactor < 0, prefix+"Network.HopFactor", p.Network.HopFactor,
		"hop factor must be non-negative")

	if errors.HasErrors() {
		return errors
	}
	return nil
}

const (
	uplink10Mbps    = 10_000_000.0
	downlink100Mbps = 100_000_000.0
)

// DefaultTierProfiles returns the reference device/edge/cloud profiles
func DefaultTierProfiles() map[Tier]TierProfile {
	return map[Tier]TierProfile{
		DEVICE: {
			ComputeRate: 8000,
			Power:       PowerProfile{Overhead: 0, Idle: 2, Max: 3},
		},
		EDGE: {
			ComputeRate: 10000,
			Power:       PowerProfile{Overhead: 4, Idle: 12, Max: 20},
			Network:     NetworkProfile{UplinkBandwidth: uplink10Mbps, DownlinkBandwidth: downlink100Mbps, HopFactor: 1},
		},
		CLOUD: {
			ComputeRate: 40000,
			Power:       PowerProfile{Overhead: 10, Idle: 15, Max: 30},
			Network:     NetworkProfile{UplinkBandwidth: uplink10Mbps, DownlinkBandwidth: downlink100Mbps, HopFactor: 2},
		},
	}
}
