package models

import "fmt"

// UtilizationFunc samples a task's CPU utilization at a simulated time.
type UtilizationFunc func(at float64) float64

// FullUtilization keeps the CPU fully busy for the whole run
func FullUtilization(float64) float64 { return 1.0 }

// ConstantUtilization returns a sampler fixed at u
func ConstantUtilization(u float64) UtilizationFunc {
	return func(float64) float64 { return u }
}

// Task is a unit of work submitted for offloading. Values are immutable once
// created; policies pass them around by value.
type Task struct {
	ID         int   `json:"id"`
	Length     int64 `json:"length"`     // abstract compute units
	FileSize   int64 `json:"fileSize"`   // input transfer size, bytes
	OutputSize int64 `json:"outputSize"` // output transfer size, bytes

	Utilization UtilizationFunc `json:"-"`
}

// NewTask creates a task that keeps the CPU fully utilized
func NewTask(id int, length, fileSize, outputSize int64) Task {
	return Task{
		ID:          id,
		Length:      length,
		FileSize:    fileSize,
		OutputSize:  outputSize,
		Utilization: FullUtilization,
	}
}

// CPUUtilization samples the utilization function, defaulting to 1.0
func (t Task) CPUUtilization(at float64) float64 {
	if t.Utilization == nil {
		return 1.0
	}
	return t.Utilization(at)
}

// Validate validates the task descriptor
func (t Task) Validate() error {
	var errors ValidationErrors

	errors.AddIf(t.ID < 0, "ID", t.ID, "ID must be non-negative")
	errors.AddIf(t.Length < 0, "Length", t.Length, "Length must be non-negative")
	errors.AddIf(t.FileSize < 0, "FileSize", t.FileSize, "FileSize must be non-negative")
	errors.AddIf(t.OutputSize < 0, "OutputSize", t.OutputSize, "OutputSize must be non-negative")

	if errors.HasErrors() {
		return errors
	}
	return nil
}

func (t Task) String() string {
	return fmt.Sprintf("task#%d", t.ID)
}
