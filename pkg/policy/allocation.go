package policy

import (
	"fmt"
	"strings"

	"github.com/casperlundberg/tiered-offloading-engine/pkg/models"
)

// AllocationPolicy binds tasks to workers. Every strategy shares this contract.
type AllocationPolicy interface {
	// Initialize resets the policy's state over the given workers
	Initialize(workers []models.Worker) error
	// Allocate returns the chosen worker, or models.NoWorker
	Allocate(task models.Task) models.WorkerID
	// Deallocate releases a worker after one of its tasks finished
	Deallocate(worker models.WorkerID)
}

// CompletionObserver is implemented by policies that learn from finished tasks
type CompletionObserver interface {
	OnCompletion(worker models.WorkerID, task models.Task)
}

// EpisodicPolicy is a learning policy driven through training episodes
type EpisodicPolicy interface {
	AllocationPolicy
	CompletionObserver

	StartNewEpisode()
	HasConverged() bool
	Episode() int
	EpisodeReward() float64
	Temperature() float64
}

// Dispatcher submits a task to the execution substrate on a chosen worker
type Dispatcher interface {
	Submit(task models.Task, worker models.WorkerID) error
}

// DispatcherFunc adapts a function to the Dispatcher interface
type DispatcherFunc func(task models.Task, worker models.WorkerID) error

// Submit calls f(task, worker)
func (f DispatcherFunc) Submit(task models.Task, worker models.WorkerID) error {
	return f(task, worker)
}

// Kind tags the allocation strategy
type Kind string

const (
	STATIC    Kind = "static"
	THROTTLED Kind = "throttled"
	RL        Kind = "rl"
)

// ValidKinds returns all valid policy kinds
func ValidKinds() []Kind {
	return []Kind{STATIC, THROTTLED, RL}
}

// IsValid checks if a Kind is valid
func (k Kind) IsValid() bool {
	for _, valid := range ValidKinds() {
		if k == valid {
			return true
		}
	}
	return false
}

// IsLearning reports whether the kind runs the episodic training loop
func (k Kind) IsLearning() bool {
	return k == RL
}

// String returns the string representation of Kind
func (k Kind) String() string {
	return string(k)
}

// ParseKind converts user input to a Kind
func ParseKind(s string) (Kind, error) {
	k := Kind(strings.ToLower(strings.TrimSpace(s)))
	if !k.IsValid() {
		return "", fmt.Errorf("%w: unknown policy %q (want static, throttled or rl)",
			models.ErrInvalidConfiguration, s)
	}
	return k, nil
}

// New creates a fresh tier-level policy of the given kind. The learning
// kind spans all tiers and is built by the caller, so it is rejected here.
func New(kind Kind, dispatcher Dispatcher) (AllocationPolicy, error) {
	switch kind {
	case STATIC:
		return NewStaticEqualDistribution(), nil
	case THROTTLED:
		if dispatcher == nil {
			return nil, fmt.Errorf("%w: throttled policy needs a dispatcher", models.ErrInvalidConfiguration)
		}
		return NewDynamicThrottled(dispatcher), nil
	default:
		return nil, fmt.Errorf("%w: %q is not a tier-level policy", models.ErrInvalidConfiguration, kind)
	}
}
