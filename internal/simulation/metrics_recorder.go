package simulation

import (
	log "github.com/sirupsen/logrus"

	"github.com/casperlundberg/tiered-offloading-engine/pkg/models"
	"github.com/casperlundberg/tiered-offloading-engine/pkg/simulator"
)

// PowerSource gives the power draw of a tier at a CPU utilization
type PowerSource interface {
	PowerAt(tier models.Tier, utilization float64) (float64, error)
}

// TierResult aggregates the completed tasks of one tier
type TierResult struct {
	Tier                 models.Tier `json:"tier"`
	Tasks                int         `json:"tasks"`
	TotalExecutionTime   float64     `json:"total_execution_time"`
	AverageExecutionTime float64     `json:"average_execution_time"`
	Energy               float64     `json:"energy"`
}

// MetricsRecorder accumulates per-tier execution time and energy from
// completion events. It never looks at rewards.
type MetricsRecorder struct {
	power   PowerSource
	results map[models.Tier]*TierResult
	workers map[models.WorkerID]int
}

// NewMetricsRecorder creates a recorder backed by the given power source
func NewMetricsRecorder(power PowerSource) *MetricsRecorder {
	r := &MetricsRecorder{power: power}
	r.Reset()
	return r
}

// Reset drops everything recorded so far
func (r *MetricsRecorder) Reset() {
	r.results = make(map[models.Tier]*TierResult, len(models.EvaluationOrder))
	for _, tier := range models.EvaluationOrder {
		r.results[tier] = &TierResult{Tier: tier}
	}
	r.workers = make(map[models.WorkerID]int)
}

// Record adds one completion. Energy is Power(tier, utilization) × (finish − start).
func (r *MetricsRecorder) Record(event simulator.CompletionEvent) {
	result, ok := r.results[event.Tier]
	if !ok {
		log.WithField("tier", event.Tier).Warn("Completion on unknown tier not recorded")
		return
	}

	execTime := event.ExecutionTime()
	r.workers[event.Worker]++
	result.Tasks++
	result.TotalExecutionTime += execTime
	result.AverageExecutionTime = result.TotalExecutionTime / float64(result.Tasks)

	power, err := r.power.PowerAt(event.Tier, event.CPUUtilization)
	if err != nil {
		log.WithError(err).WithFields(log.Fields{
			"task":   event.Task.ID,
			"worker": event.Worker,
		}).Warn("Energy not recorded")
		return
	}
	result.Energy += power * execTime
}

// Results returns a copy of the per-tier results in evaluation order
func (r *MetricsRecorder) Results() []TierResult {
	out := make([]TierResult, 0, len(models.EvaluationOrder))
	for _, tier := range models.EvaluationOrder {
		out = append(out, *r.results[tier])
	}
	return out
}

// Result returns the results of a single tier
func (r *MetricsRecorder) Result(tier models.Tier) TierResult {
	if result, ok := r.results[tier]; ok {
		return *result
	}
	return TierResult{Tier: tier}
}

// WorkerTasks returns the number of completions per worker
func (r *MetricsRecorder) WorkerTasks() map[models.WorkerID]int {
	out := make(map[models.WorkerID]int, len(r.workers))
	for id, n := range r.workers {
		out[id] = n
	}
	return out
}

// TotalTasks returns the number of recorded completions
func (r *MetricsRecorder) TotalTasks() int {
	total := 0
	for _, result := range r.results {
		total += result.Tasks
	}
	return total
}

// TotalEnergy returns the energy summed over tiers
func (r *MetricsRecorder) TotalEnergy() float64 {
	total := 0.0
	for _, result := range r.results {
		total += result.Energy
	}
	return total
}
