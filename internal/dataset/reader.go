package dataset

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	log "github.com/sirupsen/logrus"

	"github.com/casperlundberg/tiered-offloading-engine/pkg/models"
)

// Record is one task descriptor of a batch file
type Record struct {
	ID             int      `json:"id"`
	Length         int64    `json:"length"`
	FileSize       int64    `json:"fileSize"`
	OutputSize     int64    `json:"outputSize"`
	CPUUtilization *float64 `json:"cpuUtilization,omitempty"` // constant, defaults to 1.0
}

// Task converts the record into a validated task
func (r Record) Task() (models.Task, error) {
	task := models.NewTask(r.ID, r.Length, r.FileSize, r.OutputSize)
	if r.CPUUtilization != nil {
		u := *r.CPUUtilization
		if u < 0 || u > 1 {
			return models.Task{}, fmt.Errorf("%w: task %d cpuUtilization %v outside [0,1]",
				models.ErrInvalidUtilization, r.ID, u)
		}
		task.Utilization = models.ConstantUtilization(u)
	}
	if err := task.Validate(); err != nil {
		return models.Task{}, err
	}
	return task, nil
}

// Load reads a JSON array of task records. Array order is arrival order.
func Load(path string) ([]models.Task, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open dataset: %w", err)
	}
	defer file.Close()

	tasks, err := Decode(file)
	if err != nil {
		return nil, fmt.Errorf("failed to load dataset %s: %w", path, err)
	}

	log.WithFields(log.Fields{"path": path, "tasks": len(tasks)}).Info("Dataset loaded")
	return tasks, nil
}

// Decode reads task records from r
func Decode(r io.Reader) ([]models.Task, error) {
	var records []Record
	if err := json.NewDecoder(r).Decode(&records); err != nil {
		return nil, fmt.Errorf("failed to parse dataset JSON: %w", err)
	}

	tasks := make([]models.Task, 0, len(records))
	for i, record := range records {
		task, err := record.Task()
		if err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}
		tasks = append(tasks, task)
	}
	return tasks, nil
}

// Save writes tasks as a JSON array that Load can read back
func Save(path string, tasks []models.Task) error {
	records := make([]Record, 0, len(tasks))
	for _, task := range tasks {
		record := Record{
			ID:         task.ID,
			Length:     task.Length,
			FileSize:   task.FileSize,
			OutputSize: task.OutputSize,
		}
		if u := task.CPUUtilization(0); u != 1.0 {
			record.CPUUtilization = &u
		}
		records = append(records, record)
	}

	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode dataset: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write dataset %s: %w", path, err)
	}
	return nil
}
