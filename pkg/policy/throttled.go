package policy

import (
	log "github.com/sirupsen/logrus"

	"github.com/casperlundberg/tiered-offloading-engine/pkg/models"
)

// DynamicThrottled binds each task to the first idle worker. When every
// worker is busy the task waits in a FIFO backlog, and a worker that
// finishes pulls the oldest waiting task and re-submits it through the
// dispatcher.
type DynamicThrottled struct {
	dispatcher Dispatcher
	workers    []models.Worker
	idle       map[models.WorkerID]bool
	backlog    []models.Task
}

// NewDynamicThrottled creates a throttled policy that re-dispatches through d
func NewDynamicThrottled(d Dispatcher) *DynamicThrottled {
	return &DynamicThrottled{
		dispatcher: d,
		idle:       make(map[models.WorkerID]bool),
	}
}

// Initialize marks every worker idle and clears the backlog
func (dt *DynamicThrottled) Initialize(workers []models.Worker) error {
	dt.workers = append([]models.Worker(nil), workers...)
	dt.idle = make(map[models.WorkerID]bool, len(workers))
	for _, w := range workers {
		dt.idle[w.ID] = true
	}
	dt.backlog = nil
	return nil
}

// Allocate binds to the first idle worker, or enqueues the task and
// returns models.NoWorker. The caller must not drop an enqueued task.
func (dt *DynamicThrottled) Allocate(task models.Task) models.WorkerID {
	for _, w := range dt.workers {
		if dt.idle[w.ID] {
			dt.idle[w.ID] = false
			return w.ID
		}
	}

	dt.backlog = append(dt.backlog, task)
	log.WithFields(log.Fields{
		"task":    task.ID,
		"backlog": len(dt.backlog),
	}).Debug("No idle worker, task queued")
	return models.NoWorker
}

// Deallocate frees the worker and hands it the oldest waiting task, if any
func (dt *DynamicThrottled) Deallocate(worker models.WorkerID) {
	if _, ok := dt.idle[worker]; !ok {
		return
	}
	dt.idle[worker] = true

	if len(dt.backlog) == 0 {
		return
	}

	next := dt.backlog[0]
	dt.backlog[0] = models.Task{}
	dt.backlog = dt.backlog[1:]
	dt.idle[worker] = false

	if err := dt.dispatcher.Submit(next, worker); err != nil {
		log.WithError(err).WithFields(log.Fields{
			"task":   next.ID,
			"worker": worker,
		}).Error("Failed to re-dispatch queued task")
		dt.idle[worker] = true
		dt.backlog = append([]models.Task{next}, dt.backlog...)
		return
	}

	log.WithFields(log.Fields{
		"task":    next.ID,
		"worker":  worker,
		"backlog": len(dt.backlog),
	}).Debug("Queued task dispatched")
}

// Backlog returns the number of waiting tasks
func (dt *DynamicThrottled) Backlog() int {
	return len(dt.backlog)
}

// Pending returns the waiting tasks in arrival order
func (dt *DynamicThrottled) Pending() []models.Task {
	return append([]models.Task(nil), dt.backlog...)
}

// Idle reports whether the worker is free
func (dt *DynamicThrottled) Idle(worker models.WorkerID) bool {
	return dt.idle[worker]
}
