package telemetry

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/casperlundberg/tiered-offloading-engine/internal/simulation"
)

const (
	namespace = "offloader"

	LabelPolicy = "policy"
	LabelTier   = "tier"
)

// Exporter publishes episode summaries as Prometheus metrics. It is an
// episode observer, so the controller feeds it directly.
type Exporter struct {
	episodes    *prometheus.CounterVec
	reward      *prometheus.GaugeVec
	smoothed    *prometheus.GaugeVec
	temperature *prometheus.GaugeVec
	maxDelta    *prometheus.GaugeVec
	makespan    *prometheus.GaugeVec
	unplaced    *prometheus.CounterVec
	tierTasks   *prometheus.CounterVec
	tierEnergy  *prometheus.GaugeVec
	tierExec    *prometheus.GaugeVec
}

// NewExporter creates the collectors and registers them with registry
func NewExporter(registry prometheus.Registerer) (*Exporter, error) {
	policyLabels := []string{LabelPolicy}
	tierLabels := []string{LabelPolicy, LabelTier}

	e := &Exporter{
		episodes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "episodes_total",
			Help:      "Total number of completed episodes",
		}, policyLabels),
		reward: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "episode_reward",
			Help:      "Cumulative reward of the last episode",
		}, policyLabels),
		smoothed: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "episode_reward_smoothed",
			Help:      "Exponentially smoothed episode reward",
		}, policyLabels),
		temperature: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "exploration_temperature",
			Help:      "Softmax temperature used in the last episode",
		}, policyLabels),
		maxDelta: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "q_max_delta",
			Help:      "Largest Q-value change in the last episode",
		}, policyLabels),
		makespan: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "episode_makespan_seconds",
			Help:      "Simulated time at which the last task of the episode finished",
		}, policyLabels),
		unplaced: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "unplaced_tasks_total",
			Help:      "Total number of tasks no worker could accept",
		}, policyLabels),
		tierTasks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tier_tasks_total",
			Help:      "Total number of tasks completed per tier",
		}, tierLabels),
		tierEnergy: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "tier_energy_joules",
			Help:      "Energy consumed per tier in the last episode",
		}, tierLabels),
		tierExec: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "tier_average_execution_seconds",
			Help:      "Average task execution time per tier in the last episode",
		}, tierLabels),
	}

	collectors := map[string]prometheus.Collector{
		"episodes":    e.episodes,
		"reward":      e.reward,
		"smoothed":    e.smoothed,
		"temperature": e.temperature,
		"maxDelta":    e.maxDelta,
		"makespan":    e.makespan,
		"unplaced":    e.unplaced,
		"tierTasks":   e.tierTasks,
		"tierEnergy":  e.tierEnergy,
		"tierExec":    e.tierExec,
	}
	for name, collector := range collectors {
		if err := registry.Register(collector); err != nil {
			return nil, fmt.Errorf("failed to register %s metric: %w", name, err)
		}
	}

	return e, nil
}

// ObserveEpisode implements simulation.EpisodeObserver
func (e *Exporter) ObserveEpisode(summary simulation.EpisodeSummary) error {
	policy := string(summary.Policy)

	e.episodes.WithLabelValues(policy).Inc()
	e.reward.WithLabelValues(policy).Set(summary.Reward)
	e.smoothed.WithLabelValues(policy).Set(summary.SmoothedReward)
	e.temperature.WithLabelValues(policy).Set(summary.Temperature)
	e.maxDelta.WithLabelValues(policy).Set(summary.MaxDelta)
	e.makespan.WithLabelValues(policy).Set(summary.Makespan)
	if summary.Unplaced > 0 {
		e.unplaced.WithLabelValues(policy).Add(float64(summary.Unplaced))
	}

	for _, result := range summary.Tiers {
		tier := result.Tier.String()
		e.tierTasks.WithLabelValues(policy, tier).Add(float64(result.Tasks))
		e.tierEnergy.WithLabelValues(policy, tier).Set(result.Energy)
		e.tierExec.WithLabelValues(policy, tier).Set(result.AverageExecutionTime)
	}
	return nil
}
