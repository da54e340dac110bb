package simulation

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/casperlundberg/tiered-offloading-engine/internal/database"
	"github.com/casperlundberg/tiered-offloading-engine/pkg/models"
)

// DBMetricsCollector persists episode summaries of one run
type DBMetricsCollector struct {
	repo       *database.Repository
	registry   *models.WorkerRegistry
	runID      string
	buffer     []database.EpisodeRecord
	bufferSize int
	lastFlush  time.Time

	// snapshotQ selects the episodes whose Q-table is stored
	snapshotQ func(episode int) bool
	lastQ     EpisodeSummary
}

// NewDBMetricsCollector creates the run record and a collector bound to it
func NewDBMetricsCollector(repo *database.Repository, registry *models.WorkerRegistry,
	runName, runDescription string, policyKind string, config interface{}) (*DBMetricsCollector, error) {
	configJSON := ""
	if config != nil {
		data, err := json.Marshal(config)
		if err == nil {
			configJSON = string(data)
		}
	}

	run := &database.Run{
		ID:          uuid.New().String(),
		Name:        runName,
		Description: runDescription,
		Policy:      policyKind,
		StartTime:   time.Now(),
		Status:      "running",
		Config:      configJSON,
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
	}

	if err := repo.CreateRun(run); err != nil {
		return nil, fmt.Errorf("failed to create run: %w", err)
	}

	return &DBMetricsCollector{
		repo:       repo,
		registry:   registry,
		runID:      run.ID,
		buffer:     make([]database.EpisodeRecord, 0, 100),
		bufferSize: 100,
		lastFlush:  time.Now(),
		snapshotQ:  DefaultReportConfig().IsQCheckpoint,
	}, nil
}

// SetQSnapshotFilter overrides which episodes get a stored Q-table
func (dc *DBMetricsCollector) SetQSnapshotFilter(filter func(episode int) bool) {
	dc.snapshotQ = filter
}

// GetRunID returns the run ID
func (dc *DBMetricsCollector) GetRunID() string {
	return dc.runID
}

// ObserveEpisode buffers the episode record and stores Q snapshots
func (dc *DBMetricsCollector) ObserveEpisode(summary EpisodeSummary) error {
	dc.buffer = append(dc.buffer, database.EpisodeRecord{
		RunID:          dc.runID,
		Episode:        summary.Episode,
		Reward:         summary.Reward,
		SmoothedReward: summary.SmoothedReward,
		Temperature:    summary.Temperature,
		MaxDelta:       summary.MaxDelta,
		Makespan:       summary.Makespan,
		Placed:         summary.Placed,
		Unplaced:       summary.Unplaced,
		Converged:      summary.Converged,
		CreatedAt:      time.Now(),
	})

	if summary.Unplaced > 0 {
		if err := dc.CollectEvent(summary.Episode, "unplaced", "warning",
			fmt.Sprintf("%d tasks could not be placed", summary.Unplaced), nil); err != nil {
			return err
		}
	}

	if summary.QValues != nil {
		dc.lastQ = summary
		if dc.snapshotQ != nil && dc.snapshotQ(summary.Episode) {
			if err := dc.saveQSnapshot(summary); err != nil {
				return err
			}
		}
	}

	// Flush if buffer is full or every 5 seconds
	if len(dc.buffer) >= dc.bufferSize || time.Since(dc.lastFlush) > 5*time.Second {
		return dc.flush()
	}

	return nil
}

func (dc *DBMetricsCollector) saveQSnapshot(summary EpisodeSummary) error {
	visited := make(map[models.WorkerID]bool, len(summary.Visited))
	for _, id := range summary.Visited {
		visited[id] = true
	}

	records := make([]database.QValueRecord, 0, len(summary.QValues))
	for _, id := range dc.registry.IDs() {
		q, ok := summary.QValues[id]
		if !ok {
			continue
		}
		tier, _ := dc.registry.TierOf(id)
		records = append(records, database.QValueRecord{
			RunID:     dc.runID,
			Episode:   summary.Episode,
			WorkerID:  int(id),
			Tier:      tier.String(),
			QValue:    q,
			Visited:   visited[id],
			CreatedAt: time.Now(),
		})
	}

	if err := dc.repo.SaveQValues(records); err != nil {
		return fmt.Errorf("failed to save Q snapshot: %w", err)
	}
	return nil
}

// CollectEvent stores an event in the database
func (dc *DBMetricsCollector) CollectEvent(episode int, eventType, severity, message string, details interface{}) error {
	detailsJSON := ""
	if details != nil {
		data, err := json.Marshal(details)
		if err == nil {
			detailsJSON = string(data)
		}
	}

	event := &database.Event{
		RunID:     dc.runID,
		Episode:   episode,
		EventType: eventType,
		Severity:  severity,
		Message:   message,
		Details:   detailsJSON,
		CreatedAt: time.Now(),
	}

	return dc.repo.SaveEvent(event)
}

// flush writes buffered episodes to the database
func (dc *DBMetricsCollector) flush() error {
	if len(dc.buffer) == 0 {
		return nil
	}

	if err := dc.repo.BatchSaveEpisodes(dc.buffer); err != nil {
		return fmt.Errorf("failed to save episodes: %w", err)
	}

	dc.buffer = dc.buffer[:0]
	dc.lastFlush = time.Now()
	return nil
}

// Complete flushes remaining data, stores the outcome and marks the run as completed
func (dc *DBMetricsCollector) Complete(outcome *Outcome) error {
	if err := dc.flush(); err != nil {
		return err
	}

	// the final table is always kept, even off-checkpoint
	if dc.lastQ.QValues != nil && (dc.snapshotQ == nil || !dc.snapshotQ(dc.lastQ.Episode)) {
		if err := dc.saveQSnapshot(dc.lastQ); err != nil {
			return err
		}
	}

	summaries := make([]database.TierSummary, 0, len(outcome.Tiers))
	for _, tier := range outcome.Tiers {
		summaries = append(summaries, database.TierSummary{
			RunID:                dc.runID,
			Tier:                 tier.Tier.String(),
			Tasks:                tier.Tasks,
			TotalExecutionTime:   tier.TotalExecutionTime,
			AverageExecutionTime: tier.AverageExecutionTime,
			Energy:               tier.Energy,
			CreatedAt:            time.Now(),
		})
	}
	if err := dc.repo.SaveTierSummaries(dc.runID, summaries); err != nil {
		return fmt.Errorf("failed to save tier summaries: %w", err)
	}

	run, err := dc.repo.GetRun(dc.runID)
	if err != nil {
		return fmt.Errorf("failed to load run: %w", err)
	}
	run.Tasks = outcome.Tasks
	run.Episodes = outcome.Episodes
	run.Converged = outcome.Converged
	run.BestEpisode = outcome.BestEpisode
	run.BestReward = outcome.BestReward
	run.TradeoffLatency = outcome.Tradeoff.NormalizedLatency
	run.TradeoffEnergy = outcome.Tradeoff.NormalizedEnergy
	run.Unplaced = outcome.Unplaced
	run.MinDelta = outcome.MinDelta
	if err := dc.repo.UpdateRun(run); err != nil {
		return fmt.Errorf("failed to update run: %w", err)
	}

	if outcome.Converged && outcome.Policy.IsLearning() {
		if err := dc.CollectEvent(outcome.Episodes, "converged", "info",
			fmt.Sprintf("converged after %d episodes", outcome.Episodes), nil); err != nil {
			return err
		}
	}

	log.WithFields(log.Fields{"run_id": dc.runID, "episodes": outcome.Episodes}).Info("Run persisted")
	return dc.repo.EndRun(dc.runID, "completed")
}

// Fail flushes what was collected and marks the run as failed
func (dc *DBMetricsCollector) Fail(cause error) error {
	if err := dc.flush(); err != nil {
		return err
	}
	if cause != nil {
		if err := dc.CollectEvent(0, "error", "error", cause.Error(), nil); err != nil {
			return err
		}
	}
	return dc.repo.EndRun(dc.runID, "failed")
}
