package models

import (
	"fmt"
	"sort"
)

// WorkerID identifies a worker (virtual machine) across all tiers
type WorkerID int

// NoWorker is returned when a task could not be bound to a worker
const NoWorker WorkerID = -1

// IsValid reports whether the id refers to a real worker
func (id WorkerID) IsValid() bool {
	return id >= 0
}

// Worker is an execution unit bound to exactly one tier
type Worker struct {
	ID          WorkerID `json:"id"`
	Tier        Tier     `json:"tier"`
	ComputeRate float64  `json:"compute_rate"` // work units per second
}

// Validate validates the worker
func (w Worker) Validate() error {
	var errors ValidationErrors

	errors.AddIf(!w.ID.IsValid(), "ID", w.ID, "ID must be non-negative")
	errors.AddIf(w.Tier == "", "Tier", w.Tier, "worker has no tier label")
	errors.AddIf(w.Tier != "" && !w.Tier.IsValid(), "Tier", w.Tier, "invalid tier")
	errors.AddIf(w.ComputeRate <= 0, "ComputeRate", w.ComputeRate, "ComputeRate must be positive")

	if errors.HasErrors() {
		return errors
	}
	return nil
}

// WorkerRegistry owns the worker set and its immutable partition by tier.
// It is built once per run and shared by reference with every component
// that needs worker to tier lookups.
type WorkerRegistry struct {
	workers []Worker
	byID    map[WorkerID]Worker
	byTier  map[Tier][]Worker
}

// NewWorkerRegistry validates the workers and partitions them by tier
func NewWorkerRegistry(workers []Worker) (*WorkerRegistry, error) {
	if len(workers) == 0 {
		return nil, fmt.Errorf("%w: worker list must be non-empty", ErrInvalidConfiguration)
	}

	r := &WorkerRegistry{
		workers: make([]Worker, 0, len(workers)),
		byID:    make(map[WorkerID]Worker, len(workers)),
		byTier:  make(map[Tier][]Worker),
	}

	for _, w := range workers {
		if err := w.Validate(); err != nil {
			return nil, fmt.Errorf("%w: worker #%d: %w", ErrInvalidConfiguration, w.ID, err)
		}
		if _, dup := r.byID[w.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate worker id %d", ErrInvalidConfiguration, w.ID)
		}
		r.workers = append(r.workers, w)
		r.byID[w.ID] = w
		r.byTier[w.Tier] = append(r.byTier[w.Tier], w)
	}

	return r, nil
}

// Workers returns a copy of every worker in registration order
func (r *WorkerRegistry) Workers() []Worker {
	out := make([]Worker, len(r.workers))
	copy(out, r.workers)
	return out
}

// Len returns the number of registered workers
func (r *WorkerRegistry) Len() int {
	return len(r.workers)
}

// Get looks up a worker by id
func (r *WorkerRegistry) Get(id WorkerID) (Worker, bool) {
	w, ok := r.byID[id]
	return w, ok
}

// TierOf returns the tier of a worker
func (r *WorkerRegistry) TierOf(id WorkerID) (Tier, error) {
	w, ok := r.byID[id]
	if !ok {
		return "", fmt.Errorf("%w: worker #%d", ErrMissingTierMapping, id)
	}
	return w.Tier, nil
}

// ByTier returns a copy of the workers in the given tier
func (r *WorkerRegistry) ByTier(tier Tier) []Worker {
	src := r.byTier[tier]
	out := make([]Worker, len(src))
	copy(out, src)
	return out
}

// IDs returns every worker id in ascending order
func (r *WorkerRegistry) IDs() []WorkerID {
	ids := make([]WorkerID, 0, len(r.workers))
	for _, w := range r.workers {
		ids = append(ids, w.ID)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// WorkerSpec describes a homogeneous group of workers in one tier
type WorkerSpec struct {
	Tier        Tier    `json:"tier" yaml:"tier"`
	Count       int     `json:"count" yaml:"count"`
	ComputeRate float64 `json:"compute_rate" yaml:"compute_rate"`
}

// BuildWorkers expands worker specs into workers with consecutive ids,
// in the order the specs are given.
func BuildWorkers(specs []WorkerSpec) []Worker {
	var workers []Worker
	next := WorkerID(0)
	for _, spec := range specs {
		for i := 0; i < spec.Count; i++ {
			workers = append(workers, Worker{ID: next, Tier: spec.Tier, ComputeRate: spec.ComputeRate})
			next++
		}
	}
	return workers
}
