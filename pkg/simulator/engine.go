package simulator

import (
	"container/heap"
	"fmt"
	"math"

	log "github.com/sirupsen/logrus"

	"github.com/casperlundberg/tiered-offloading-engine/pkg/models"
)

// CompletionEvent is emitted once per finished task
type CompletionEvent struct {
	Worker         models.WorkerID
	Tier           models.Tier
	Task           models.Task
	Submitted      float64
	Start          float64
	Finish         float64
	CPUUtilization float64
}

// ExecutionTime returns finish - start
func (e CompletionEvent) ExecutionTime() float64 {
	return e.Finish - e.Start
}

// WaitTime returns how long the task queued behind the worker's earlier tasks
func (e CompletionEvent) WaitTime() float64 {
	return e.Start - e.Submitted
}

// Engine is a single-threaded discrete-event execution substrate. Each
// worker runs its tasks one at a time in submission order and completions
// are delivered in finish-time order, ties by submission sequence.
type Engine struct {
	registry    *models.WorkerRegistry
	clock       float64
	availableAt map[models.WorkerID]float64
	pending     eventQueue
	sequence    int
	submitted   int
	completed   int
}

// NewEngine creates an engine over the registry's workers
func NewEngine(registry *models.WorkerRegistry) *Engine {
	return &Engine{
		registry:    registry,
		availableAt: make(map[models.WorkerID]float64),
	}
}

// Submit schedules the task on the worker at the current clock. It satisfies
// policy.Dispatcher, so policies may call it from inside a completion handler.
func (e *Engine) Submit(task models.Task, worker models.WorkerID) error {
	w, ok := e.registry.Get(worker)
	if !ok {
		return fmt.Errorf("%w: cannot submit %s to worker %d", models.ErrMissingTierMapping, task, worker)
	}

	start := math.Max(e.clock, e.availableAt[worker])
	finish := start + float64(task.Length)/w.ComputeRate
	e.availableAt[worker] = finish

	heap.Push(&e.pending, &scheduledTask{
		event: CompletionEvent{
			Worker:         worker,
			Tier:           w.Tier,
			Task:           task,
			Submitted:      e.clock,
			Start:          start,
			Finish:         finish,
			CPUUtilization: task.CPUUtilization(start),
		},
		sequence: e.sequence,
	})
	e.sequence++
	e.submitted++

	log.WithFields(log.Fields{
		"task":   task.ID,
		"worker": worker,
		"tier":   w.Tier,
		"start":  start,
		"finish": finish,
	}).Debug("Task submitted")
	return nil
}

// Run delivers completion events until the queue drains and returns the
// simulated makespan. The handler may submit further tasks.
func (e *Engine) Run(handler func(CompletionEvent)) float64 {
	for e.pending.Len() > 0 {
		next := heap.Pop(&e.pending).(*scheduledTask)
		e.clock = next.event.Finish
		e.completed++
		if handler != nil {
			handler(next.event)
		}
	}
	return e.clock
}

// Reset clears the clock, worker availability and any pending events
func (e *Engine) Reset() {
	e.clock = 0
	e.availableAt = make(map[models.WorkerID]float64)
	e.pending = nil
	e.sequence = 0
	e.submitted = 0
	e.completed = 0
}

// Clock returns the current simulated time in seconds
func (e *Engine) Clock() float64 {
	return e.clock
}

// Pending returns the number of undelivered completion events
func (e *Engine) Pending() int {
	return e.pending.Len()
}

// Submitted returns the number of tasks submitted since the last reset
func (e *Engine) Submitted() int {
	return e.submitted
}

// Completed returns the number of completions delivered since the last reset
func (e *Engine) Completed() int {
	return e.completed
}

type scheduledTask struct {
	event    CompletionEvent
	sequence int
}

type eventQueue []*scheduledTask

func (q eventQueue) Len() int { return len(q) }

func (q eventQueue) Less(i, j int) bool {
	if q[i].event.Finish != q[j].event.Finish {
		return q[i].event.Finish < q[j].event.Finish
	}
	return q[i].sequence < q[j].sequence
}

func (q eventQueue) Swap(i, j int) { q[i], q[j] = q[j], q[i] }

func (q *eventQueue) Push(x any) {
	*q = append(*q, x.(*scheduledTask))
}

func (q *eventQueue) Pop() any {
	old := *q
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	*q = old[:n-1]
	return item
}
