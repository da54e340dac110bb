package learning

import (
	"math"

	"github.com/casperlundberg/tiered-offloading-engine/pkg/models"
)

// LearningConfig contains the Q-learning and exploration parameters
type LearningConfig struct {
	Lambda               float64 `json:"lambda" yaml:"lambda"`                               // latency weight in the reward, energy gets 1-λ
	LearningRate         float64 `json:"learning_rate" yaml:"learning_rate"`                 // α
	DiscountFactor       float64 `json:"discount_factor" yaml:"discount_factor"`             // γ
	InitialTemperature   float64 `json:"initial_temperature" yaml:"initial_temperature"`     // T0
	MinimumTemperature   float64 `json:"minimum_temperature" yaml:"minimum_temperature"`     // Tmin
	TemperatureDecay     float64 `json:"temperature_decay" yaml:"temperature_decay"`         // per-episode decay
	ConvergenceThreshold float64 `json:"convergence_threshold" yaml:"convergence_threshold"` // max |ΔQ| per episode
	Seed                 int64   `json:"seed" yaml:"seed"`
}

// DefaultLearningConfig returns the reference parameters
func DefaultLearningConfig() LearningConfig {
	return LearningConfig{
		Lambda:               0.5,
		LearningRate:         0.1,
		DiscountFactor:       0.9,
		InitialTemperature:   1.0,
		MinimumTemperature:   0.1,
		TemperatureDecay:     0.995,
		ConvergenceThreshold: 1e-3,
		Seed:                 42,
	}
}

// Validate validates the learning parameters
func (c LearningConfig) Validate() error {
	var errors models.ValidationErrors

	errors.AddIf(c.Lambda < 0 || c.Lambda > 1, "Lambda", c.Lambda, "lambda must be in [0,1]")
	errors.AddIf(c.LearningRate <= 0 || c.LearningRate > 1, "LearningRate", c.LearningRate,
		"learning rate must be in (0,1]")
	errors.AddIf(c.DiscountFactor < 0 || c.DiscountFactor >= 1, "DiscountFactor", c.DiscountFactor,
		"discount factor must be in [0,1)")
	errors.AddIf(c.MinimumTemperature <= 0, "MinimumTemperature", c.MinimumTemperature,
		"minimum temperature must be positive")
	errors.AddIf(c.InitialTemperature < c.MinimumTemperature, "InitialTemperature", c.InitialTemperature,
		"initial temperature must be >= minimum temperature")
	errors.AddIf(c.TemperatureDecay <= 0 || c.TemperatureDecay > 1, "TemperatureDecay", c.TemperatureDecay,
		"temperature decay must be in (0,1]")
	errors.AddIf(c.ConvergenceThreshold <= 0, "ConvergenceThreshold", c.ConvergenceThreshold,
		"convergence threshold must be positive")

	return errors.AsConfigError()
}

// TemperatureAt returns the exploration temperature for an episode
func (c LearningConfig) TemperatureAt(episode int) float64 {
	return math.Max(c.MinimumTemperature, c.InitialTemperature*math.Pow(c.TemperatureDecay, float64(episode)))
}

// QLearningStats provides insights into the Q-learning process
type QLearningStats struct {
	Workers          int     `json:"workers"`
	Episode          int     `json:"episode"`
	TotalUpdates     int     `json:"total_updates"`
	AverageQValue    float64 `json:"average_q_value"`
	MaxQValue        float64 `json:"max_q_value"`
	MinQValue        float64 `json:"min_q_value"`
	LastDelta        float64 `json:"last_delta"`
	MinDelta         float64 `json:"min_delta"`
	Temperature      float64 `json:"temperature"`
	EpisodeReward    float64 `json:"episode_reward"`
	MaxLatencyBound  float64 `json:"max_latency_bound"`
	MaxEnergyBound   float64 `json:"max_energy_bound"`
	VisitedThisRound int     `json:"visited_this_round"`
}
