package simulation

import (
	"encoding/json"
	"fmt"
	"os"

	log "github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/stat"

	"github.com/casperlundberg/tiered-offloading-engine/pkg/models"
	"github.com/casperlundberg/tiered-offloading-engine/pkg/policy"
)

// ReportConfig selects what the episode report samples
type ReportConfig struct {
	RewardCheckpoints     []int `json:"reward_checkpoints" yaml:"reward_checkpoints"`
	QCheckpoints          []int `json:"q_checkpoints" yaml:"q_checkpoints"`
	MovingAverageWindow   int   `json:"moving_average_window" yaml:"moving_average_window"`
	MovingAverageInterval int   `json:"moving_average_interval" yaml:"moving_average_interval"`
}

// DefaultReportConfig returns the reference sampling plan
func DefaultReportConfig() ReportConfig {
	return ReportConfig{
		RewardCheckpoints: []int{1, 2, 5, 7, 10, 25, 50, 75, 100, 250, 500, 750,
			1000, 2500, 5000, 7500, 10000, 25000, 50000, 75000, 100000},
		QCheckpoints: []int{1, 61, 121, 181, 241, 301, 361, 421, 481, 540,
			600, 660, 720, 780, 840, 900, 960, 1020},
		MovingAverageWindow:   500,
		MovingAverageInterval: 300,
	}
}

// Validate validates the sampling plan
func (c ReportConfig) Validate() error {
	var errors models.ValidationErrors

	errors.AddIf(c.MovingAverageWindow <= 0, "MovingAverageWindow", c.MovingAverageWindow,
		"moving average window must be positive")
	errors.AddIf(c.MovingAverageInterval <= 0, "MovingAverageInterval", c.MovingAverageInterval,
		"moving average interval must be positive")
	for _, ep := range append(append([]int(nil), c.RewardCheckpoints...), c.QCheckpoints...) {
		errors.AddIf(ep < 1, "Checkpoints", ep, "checkpoint episodes start at 1")
	}

	return errors.AsConfigError()
}

// IsQCheckpoint reports whether the Q-table is sampled at the episode
func (c ReportConfig) IsQCheckpoint(episode int) bool {
	return containsEpisode(c.QCheckpoints, episode)
}

func containsEpisode(episodes []int, episode int) bool {
	for _, ep := range episodes {
		if ep == episode {
			return true
		}
	}
	return false
}

// EpisodeSnapshot is the reward and temperature of a checkpoint episode
type EpisodeSnapshot struct {
	Reward      float64 `json:"reward"`
	Temperature float64 `json:"temperature"`
}

// QSnapshot is the Q-table and the workers used at a checkpoint episode
type QSnapshot struct {
	QValues     map[models.WorkerID]float64 `json:"q_values"`
	WorkersUsed []models.WorkerID           `json:"workers_used"`
}

// MovingAverage is the windowed mean reward recorded at an interval episode
type MovingAverage struct {
	Episode     int     `json:"episode"`
	Reward      float64 `json:"reward"`
	Temperature float64 `json:"temperature"`
	MAReward    float64 `json:"ma_reward"`
}

// Report is the training artifact of a run, written as JSON
type Report struct {
	Policy         policy.Kind             `json:"policy"`
	Episodes       int                     `json:"episodes"`
	Converged      bool                    `json:"converged"`
	BestEpisode    int                     `json:"best_episode"`
	BestReward     float64                 `json:"best_reward"`
	RewardMean     float64                 `json:"reward_mean"`
	RewardStdDev   float64                 `json:"reward_std_dev"`
	EpisodeMetrics map[int]EpisodeSnapshot `json:"episode_metrics"`
	QSnapshots     map[int]QSnapshot       `json:"q_snapshots"`
	MovingAverages []MovingAverage         `json:"moving_averages"`
	BestTradeoff   *TradeoffPoint          `json:"best_tradeoff"`
	Tiers          []TierResult            `json:"tiers"`

	config  ReportConfig
	window  []float64
	rewards []float64
}

// NewReport creates an empty report
func NewReport(config ReportConfig) *Report {
	return &Report{
		EpisodeMetrics: make(map[int]EpisodeSnapshot),
		QSnapshots:     make(map[int]QSnapshot),
		MovingAverages: []MovingAverage{},
		config:         config,
	}
}

// ObserveEpisode samples an episode into the report
func (r *Report) ObserveEpisode(summary EpisodeSummary) error {
	r.Policy = summary.Policy
	r.Episodes = summary.Episode
	r.rewards = append(r.rewards, summary.Reward)

	if containsEpisode(r.config.RewardCheckpoints, summary.Episode) {
		r.EpisodeMetrics[summary.Episode] = EpisodeSnapshot{
			Reward:      summary.Reward,
			Temperature: summary.Temperature,
		}
	}

	if summary.QValues != nil && r.config.IsQCheckpoint(summary.Episode) {
		r.QSnapshots[summary.Episode] = QSnapshot{
			QValues:     summary.QValues,
			WorkersUsed: append([]models.WorkerID{}, summary.Visited...),
		}
	}

	r.window = append(r.window, summary.Reward)
	if len(r.window) > r.config.MovingAverageWindow {
		r.window = r.window[len(r.window)-r.config.MovingAverageWindow:]
	}
	if r.config.MovingAverageInterval > 0 && summary.Episode%r.config.MovingAverageInterval == 0 {
		r.MovingAverages = append(r.MovingAverages, MovingAverage{
			Episode:     summary.Episode,
			Reward:      summary.Reward,
			Temperature: summary.Temperature,
			MAReward:    stat.Mean(r.window, nil),
		})
	}
	return nil
}

// Finalize copies the run outcome into the report
func (r *Report) Finalize(outcome *Outcome) {
	r.Policy = outcome.Policy
	r.Episodes = outcome.Episodes
	r.Converged = outcome.Converged
	r.BestEpisode = outcome.BestEpisode
	r.BestReward = outcome.BestReward
	r.Tiers = outcome.Tiers

	tradeoff := outcome.Tradeoff
	r.BestTradeoff = &tradeoff

	switch len(r.rewards) {
	case 0:
	case 1:
		r.RewardMean = r.rewards[0]
	default:
		r.RewardMean, r.RewardStdDev = stat.MeanStdDev(r.rewards, nil)
	}
}

// WriteFile writes the report as indented JSON
func (r *Report) WriteFile(path string) error {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode report: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write report %s: %w", path, err)
	}

	log.WithFields(log.Fields{
		"path":        path,
		"checkpoints": len(r.EpisodeMetrics),
		"q_snapshots": len(r.QSnapshots),
	}).Info("Report written")
	return nil
}
