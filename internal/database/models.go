package database

import (
	"time"
)

// Run represents a single engine run (one policy over one task batch)
type Run struct {
	ID          string     `json:"id" gorm:"primaryKey"`
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Policy      string     `json:"policy" gorm:"index"` // static, throttled, rl
	StartTime   time.Time  `json:"start_time"`
	EndTime     *time.Time `json:"end_time"`
	Status      string     `json:"status"` // running, completed, failed
	Config      string     `json:"config"` // JSON configuration

	// Outcome
	Tasks           int     `json:"tasks"`
	Episodes        int     `json:"episodes"`
	Converged       bool    `json:"converged"`
	BestEpisode     int     `json:"best_episode"`
	BestReward      float64 `json:"best_reward"`
	TradeoffLatency float64 `json:"tradeoff_latency"` // normalized latency of the best episode
	TradeoffEnergy  float64 `json:"tradeoff_energy"`  // normalized energy of the best episode
	Unplaced        int     `json:"unplaced"`
	MinDelta        float64 `json:"min_delta"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// EpisodeRecord is the per-episode summary of a run
type EpisodeRecord struct {
	ID      uint   `json:"id" gorm:"primaryKey"`
	RunID   string `json:"run_id" gorm:"index"`
	Episode int    `json:"episode" gorm:"index"`

	Reward         float64 `json:"reward"`
	SmoothedReward float64 `json:"smoothed_reward"`
	Temperature    float64 `json:"temperature"`
	MaxDelta       float64 `json:"max_delta"`
	Makespan       float64 `json:"makespan"` // simulated seconds
	Placed         int     `json:"placed"`
	Unplaced       int     `json:"unplaced"`
	Converged      bool    `json:"converged"`

	CreatedAt time.Time `json:"created_at"`
}

// QValueRecord is one worker's value estimate at a snapshot episode
type QValueRecord struct {
	ID       uint    `json:"id" gorm:"primaryKey"`
	RunID    string  `json:"run_id" gorm:"index"`
	Episode  int     `json:"episode" gorm:"index"`
	WorkerID int     `json:"worker_id"`
	Tier     string  `json:"tier"`
	QValue   float64 `json:"q_value"`
	Visited  bool    `json:"visited"` // chosen at least once in that episode

	CreatedAt time.Time `json:"created_at"`
}

// TierSummary holds the per-tier results of the best episode
type TierSummary struct {
	ID    uint   `json:"id" gorm:"primaryKey"`
	RunID string `json:"run_id" gorm:"index"`
	Tier  string `json:"tier"`

	Tasks                int     `json:"tasks"`
	TotalExecutionTime   float64 `json:"total_execution_time"`   // seconds
	AverageExecutionTime float64 `json:"average_execution_time"` // seconds
	Energy               float64 `json:"energy"`                 // joules

	CreatedAt time.Time `json:"created_at"`
}

// Event represents notable run events (unplaced tasks, convergence, errors)
type Event struct {
	ID      uint   `json:"id" gorm:"primaryKey"`
	RunID   string `json:"run_id" gorm:"index"`
	Episode int    `json:"episode"`

	EventType string `json:"event_type"` // unplaced, converged, best_episode
	Severity  string `json:"severity"`   // info, warning, error
	Message   string `json:"message"`
	Details   string `json:"details"` // JSON for additional data

	CreatedAt time.Time `json:"created_at"`
}
