package policy

import (
	"github.com/casperlundberg/tiered-offloading-engine/pkg/models"
)

// StaticEqualDistribution always assigns to the worker with the fewest
// current allocations, the first such worker on ties. It does not look at
// task size or cost.
type StaticEqualDistribution struct {
	workers []models.Worker
	counts  map[models.WorkerID]int
}

// NewStaticEqualDistribution creates an uninitialized static policy
func NewStaticEqualDistribution() *StaticEqualDistribution {
	return &StaticEqualDistribution{counts: make(map[models.WorkerID]int)}
}

// Initialize sets every worker's count to zero
func (s *StaticEqualDistribution) Initialize(workers []models.Worker) error {
	s.workers = append([]models.Worker(nil), workers...)
	s.counts = make(map[models.WorkerID]int, len(workers))
	for _, w := range workers {
		s.counts[w.ID] = 0
	}
	return nil
}

// Allocate picks the least-loaded worker
func (s *StaticEqualDistribution) Allocate(models.Task) models.WorkerID {
	if len(s.workers) == 0 {
		return models.NoWorker
	}

	selected := s.workers[0].ID
	minCount := s.counts[selected]
	for _, w := range s.workers {
		if c := s.counts[w.ID]; c < minCount {
			minCount = c
			selected = w.ID
		}
	}

	s.counts[selected] = minCount + 1
	return selected
}

// Deallocate decrements the worker's count, floored at zero
func (s *StaticEqualDistribution) Deallocate(worker models.WorkerID) {
	if c, ok := s.counts[worker]; ok && c > 0 {
		s.counts[worker] = c - 1
	}
}

// Count returns the current allocation count of a worker
func (s *StaticEqualDistribution) Count(worker models.WorkerID) int {
	return s.counts[worker]
}
