package database

import (
	"fmt"
	"time"

	"gorm.io/gorm"
)

// Repository provides data access methods
type Repository struct {
	db *DB
}

// NewRepository creates a new repository
func NewRepository(db *DB) *Repository {
	return &Repository{db: db}
}

// CreateRun creates a new run record
func (r *Repository) CreateRun(run *Run) error {
	return r.db.Create(run).Error
}

// GetRun retrieves a run by ID
func (r *Repository) GetRun(id string) (*Run, error) {
	var run Run
	err := r.db.First(&run, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &run, nil
}

// ListRuns lists all runs, newest first
func (r *Repository) ListRuns() ([]Run, error) {
	var runs []Run
	err := r.db.Order("created_at DESC").Find(&runs).Error
	return runs, err
}

// UpdateRun updates a run record
func (r *Repository) UpdateRun(run *Run) error {
	return r.db.Save(run).Error
}

// EndRun marks a run as finished with the given status
func (r *Repository) EndRun(id string, status string) error {
	now := time.Now()
	return r.db.Model(&Run{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"end_time": now,
			"status":   status,
		}).Error
}

// BatchSaveEpisodes saves multiple episode records efficiently
func (r *Repository) BatchSaveEpisodes(episodes []EpisodeRecord) error {
	if len(episodes) == 0 {
		return nil
	}
	return r.db.CreateInBatches(episodes, 100).Error
}

// GetEpisodes retrieves episode records for a run in episode order
func (r *Repository) GetEpisodes(runID string, limit int) ([]EpisodeRecord, error) {
	var episodes []EpisodeRecord
	query := r.db.Where("run_id = ?", runID).Order("episode ASC")

	if limit > 0 {
		query = query.Limit(limit)
	}

	err := query.Find(&episodes).Error
	return episodes, err
}

// SaveQValues saves a Q-table snapshot
func (r *Repository) SaveQValues(values []QValueRecord) error {
	if len(values) == 0 {
		return nil
	}
	return r.db.CreateInBatches(values, 100).Error
}

// GetQValues retrieves the Q-table snapshot of an episode. A negative
// episode selects the latest snapshot.
func (r *Repository) GetQValues(runID string, episode int) ([]QValueRecord, error) {
	if episode < 0 {
		latest, err := r.latestQSnapshot(runID)
		if err != nil {
			return nil, err
		}
		episode = latest
	}

	var values []QValueRecord
	err := r.db.Where("run_id = ? AND episode = ?", runID, episode).
		Order("worker_id ASC").
		Find(&values).Error
	return values, err
}

func (r *Repository) latestQSnapshot(runID string) (int, error) {
	var latest struct{ Episode int }
	err := r.db.Model(&QValueRecord{}).
		Where("run_id = ?", runID).
		Select("COALESCE(MAX(episode), 0) as episode").
		Scan(&latest).Error
	if err != nil {
		return 0, fmt.Errorf("failed to find latest Q snapshot: %w", err)
	}
	return latest.Episode, nil
}

// GetQSnapshotEpisodes lists the episodes that have a Q-table snapshot
func (r *Repository) GetQSnapshotEpisodes(runID string) ([]int, error) {
	var episodes []int
	err := r.db.Model(&QValueRecord{}).
		Where("run_id = ?", runID).
		Distinct("episode").
		Order("episode ASC").
		Pluck("episode", &episodes).Error
	return episodes, err
}

// SaveTierSummaries replaces the tier summaries of a run
func (r *Repository) SaveTierSummaries(runID string, summaries []TierSummary) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("run_id = ?", runID).Delete(&TierSummary{}).Error; err != nil {
			return err
		}
		if len(summaries) == 0 {
			return nil
		}
		return tx.Create(&summaries).Error
	})
}

// GetTierSummaries retrieves the tier summaries of a run
func (r *Repository) GetTierSummaries(runID string) ([]TierSummary, error) {
	var summaries []TierSummary
	err := r.db.Where("run_id = ?", runID).Order("id ASC").Find(&summaries).Error
	return summaries, err
}

// SaveEvent saves an event
func (r *Repository) SaveEvent(event *Event) error {
	return r.db.Create(event).Error
}

// GetEvents retrieves events for a run, optionally filtered by type
func (r *Repository) GetEvents(runID string, eventType string) ([]Event, error) {
	var events []Event
	query := r.db.Where("run_id = ?", runID)

	if eventType != "" {
		query = query.Where("event_type = ?", eventType)
	}

	err := query.Order("episode ASC, id ASC").Find(&events).Error
	return events, err
}

// RunStatistics aggregates a run's episode records
type RunStatistics struct {
	EpisodeCount  int64   `json:"episode_count"`
	AvgReward     float64 `json:"avg_reward"`
	MaxReward     float64 `json:"max_reward"`
	MinReward     float64 `json:"min_reward"`
	AvgMakespan   float64 `json:"avg_makespan"`
	TotalUnplaced int64   `json:"total_unplaced"`
	TotalTasks    int64   `json:"total_tasks"`
	TotalEnergy   float64 `json:"total_energy"`
}

// GetRunSummary gets aggregated stats for a run
func (r *Repository) GetRunSummary(runID string) (map[string]interface{}, error) {
	summary := make(map[string]interface{})

	run, err := r.GetRun(runID)
	if err != nil {
		return nil, err
	}
	summary["run"] = run

	var stats RunStatistics
	err = r.db.Model(&EpisodeRecord{}).
		Where("run_id = ?", runID).
		Select("AVG(reward) as avg_reward, MAX(reward) as max_reward, MIN(reward) as min_reward, " +
			"AVG(makespan) as avg_makespan, COALESCE(SUM(unplaced), 0) as total_unplaced").
		Scan(&stats).Error
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate episodes of run %s: %w", runID, err)
	}

	err = r.db.Model(&EpisodeRecord{}).
		Where("run_id = ?", runID).
		Count(&stats.EpisodeCount).Error
	if err != nil {
		return nil, fmt.Errorf("failed to count episodes of run %s: %w", runID, err)
	}

	var totals struct {
		TotalTasks  int64
		TotalEnergy float64
	}
	err = r.db.Model(&TierSummary{}).
		Where("run_id = ?", runID).
		Select("COALESCE(SUM(tasks), 0) as total_tasks, COALESCE(SUM(energy), 0) as total_energy").
		Scan(&totals).Error
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate tiers of run %s: %w", runID, err)
	}
	stats.TotalTasks = totals.TotalTasks
	stats.TotalEnergy = totals.TotalEnergy

	summary["statistics"] = stats

	return summary, nil
}

// DeleteRun deletes a run and all related data
func (r *Repository) DeleteRun(id string) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		// Delete related data first
		if err := tx.Where("run_id = ?", id).Delete(&EpisodeRecord{}).Error; err != nil {
			return err
		}
		if err := tx.Where("run_id = ?", id).Delete(&QValueRecord{}).Error; err != nil {
			return err
		}
		if err := tx.Where("run_id = ?", id).Delete(&TierSummary{}).Error; err != nil {
			return err
		}
		if err := tx.Where("run_id = ?", id).Delete(&Event{}).Error; err != nil {
			return err
		}

		return tx.Where("id = ?", id).Delete(&Run{}).Error
	})
}
