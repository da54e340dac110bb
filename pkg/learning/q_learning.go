package learning

import (
	"fmt"
	"math"
	"math/rand"
	"sort"

	log "github.com/sirupsen/logrus"

	"github.com/casperlundberg/tiered-offloading-engine/pkg/cost"
	"github.com/casperlundberg/tiered-offloading-engine/pkg/models"
)

// QLearningPolicy is a tabular Q-learning offloading policy (Watkins, 1989)
// over the whole worker set. The only state is the choice itself, so the
// table maps worker -> value and max(Q) over the table stands in for the
// next-state value. Workers are sampled with softmax exploration whose
// temperature decays per episode.
//
// The table persists across episodes and across Initialize calls; it is a
// continuing-task learner, not an independent-episode one.
type QLearningPolicy struct {
	config    LearningConfig
	costModel cost.Model
	registry  *models.WorkerRegistry
	draw      func() float64

	workers      []models.Worker
	qTable       map[models.WorkerID]float64
	lastEpisodeQ map[models.WorkerID]float64
	allocations  map[models.WorkerID]int
	tiers        map[models.WorkerID]models.Tier
	visited      map[models.WorkerID]struct{}

	bounds        RewardBounds
	episode       int
	episodeReward float64
	temperature   float64
	totalUpdates  int
	lastDelta     float64
	minDelta      float64
}

// NewQLearning creates the policy. The registry supplies worker tiers and the
// cost model supplies the latency/energy behind each reward.
func NewQLearning(config LearningConfig, costModel cost.Model, registry *models.WorkerRegistry) (*QLearningPolicy, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if costModel == nil || registry == nil {
		return nil, fmt.Errorf("%w: q-learning needs a cost model and a worker registry", models.ErrInvalidConfiguration)
	}

	rng := rand.New(rand.NewSource(config.Seed))
	return &QLearningPolicy{
		config:       config,
		costModel:    costModel,
		registry:     registry,
		draw:         rng.Float64,
		qTable:       make(map[models.WorkerID]float64),
		lastEpisodeQ: make(map[models.WorkerID]float64),
		allocations:  make(map[models.WorkerID]int),
		tiers:        make(map[models.WorkerID]models.Tier),
		visited:      make(map[models.WorkerID]struct{}),
		temperature:  config.InitialTemperature,
		minDelta:     math.MaxFloat64,
	}, nil
}

// SetRandomSource replaces the uniform [0,1) draw used for sampling
func (ql *QLearningPolicy) SetRandomSource(draw func() float64) {
	ql.draw = draw
}

// Initialize adds a zero entry for every unknown worker and records tiers.
// Existing Q-values are kept.
func (ql *QLearningPolicy) Initialize(workers []models.Worker) error {
	if len(workers) == 0 {
		return fmt.Errorf("%w: worker list must be non-empty", models.ErrInvalidConfiguration)
	}

	tiers := make(map[models.WorkerID]models.Tier, len(workers))
	for _, w := range workers {
		tier, err := ql.registry.TierOf(w.ID)
		if err != nil {
			return err
		}
		tiers[w.ID] = tier
	}

	ql.workers = append([]models.Worker(nil), workers...)
	ql.tiers = tiers
	ql.allocations = make(map[models.WorkerID]int, len(workers))
	ql.visited = make(map[models.WorkerID]struct{})
	for _, w := range workers {
		if _, exists := ql.qTable[w.ID]; !exists {
			ql.qTable[w.ID] = 0.0
		}
		ql.allocations[w.ID] = 0
	}

	log.WithFields(log.Fields{
		"workers": len(workers),
		"lambda":  ql.config.Lambda,
		"alpha":   ql.config.LearningRate,
		"gamma":   ql.config.DiscountFactor,
	}).Info("Q-learning policy initialized")
	return nil
}

// Allocate samples a worker from the softmax over current Q-values.
// It always returns a worker once initialized.
func (ql *QLearningPolicy) Allocate(task models.Task) models.WorkerID {
	if len(ql.workers) == 0 {
		return models.NoWorker
	}

	ql.temperature = ql.config.TemperatureAt(ql.episode)

	values := make([]float64, len(ql.workers))
	for i, w := range ql.workers {
		values[i] = ql.qTable[w.ID]
	}
	idx := SampleIndex(Softmax(values, ql.temperature), ql.draw())
	selected := ql.workers[idx].ID

	ql.allocations[selected]++
	ql.visited[selected] = struct{}{}

	log.WithFields(log.Fields{
		"episode":     ql.episode,
		"temperature": ql.temperature,
		"task":        task.ID,
		"worker":      selected,
		"q":           ql.qTable[selected],
	}).Debug("Softmax allocation")
	return selected
}

// Deallocate decrements the worker's count, floored at zero
func (ql *QLearningPolicy) Deallocate(worker models.WorkerID) {
	if c := ql.allocations[worker]; c > 0 {
		ql.allocations[worker] = c - 1
	}
}

// ObserveBounds widens the reward normalization bounds with the task's
// latency and energy on every tier.
func (ql *QLearningPolicy) ObserveBounds(task models.Task) error {
	for _, tier := range models.EvaluationOrder {
		energy, err := ql.costModel.Energy(task, tier)
		if err != nil {
			return err
		}
		ql.bounds.Observe(ql.costModel.Latency(task, tier), energy)
	}
	return nil
}

// Reward scores running the task on the tier: -(λ·latency + (1-λ)·energy),
// both normalized into [0,1].
func (ql *QLearningPolicy) Reward(task models.Task, tier models.Tier) (float64, error) {
	energy, err := ql.costModel.Energy(task, tier)
	if err != nil {
		return 0, err
	}
	latency := ql.costModel.Latency(task, tier)
	nLatency, nEnergy := ql.bounds.Normalize(latency, energy)

	return -(ql.config.Lambda*nLatency + (1-ql.config.Lambda)*nEnergy), nil
}

// OnCompletion rewards the worker that ran the task and applies
//
//	Q[w] <- Q[w] + α (r + γ max(Q) - Q[w])
func (ql *QLearningPolicy) OnCompletion(worker models.WorkerID, task models.Task) {
	tier, ok := ql.tiers[worker]
	if !ok {
		log.WithField("worker", worker).Warn("Completion for unknown worker ignored")
		return
	}

	reward, err := ql.Reward(task, tier)
	if err != nil {
		log.WithError(err).WithField("task", task.ID).Error("Cannot compute reward")
		return
	}
	ql.episodeReward += reward

	oldQ := ql.qTable[worker]
	newQ := oldQ + ql.config.LearningRate*(reward+ql.config.DiscountFactor*ql.maxQ()-oldQ)
	ql.qTable[worker] = newQ
	ql.totalUpdates++

	log.WithFields(log.Fields{
		"episode": ql.episode,
		"worker":  worker,
		"tier":    tier,
		"reward":  reward,
		"old_q":   oldQ,
		"new_q":   newQ,
	}).Debug("Q-value updated")
}

func (ql *QLearningPolicy) maxQ() float64 {
	if len(ql.qTable) == 0 {
		return 0
	}
	best := math.Inf(-1)
	for _, q := range ql.qTable {
		best = math.Max(best, q)
	}
	return best
}

// StartNewEpisode snapshots the table for the convergence check, resets
// reward and allocation counts, and advances the episode counter.
func (ql *QLearningPolicy) StartNewEpisode() {
	ql.lastEpisodeQ = make(map[models.WorkerID]float64, len(ql.qTable))
	for id, q := range ql.qTable {
		ql.lastEpisodeQ[id] = q
	}
	ql.episodeReward = 0
	for id := range ql.allocations {
		ql.allocations[id] = 0
	}
	ql.visited = make(map[models.WorkerID]struct{})
	ql.episode++
	ql.temperature = ql.config.TemperatureAt(ql.episode)
}

// HasConverged compares the table with the snapshot taken at episode start.
// Converged when the largest absolute change is below the threshold.
func (ql *QLearningPolicy) HasConverged() bool {
	maxDelta := 0.0
	for id, q := range ql.qTable {
		maxDelta = math.Max(maxDelta, math.Abs(q-ql.lastEpisodeQ[id]))
	}
	ql.lastDelta = maxDelta
	ql.minDelta = math.Min(ql.minDelta, maxDelta)

	log.WithFields(log.Fields{
		"episode":   ql.episode,
		"max_delta": maxDelta,
		"min_delta": ql.minDelta,
	}).Debug("Convergence check")

	return maxDelta < ql.config.ConvergenceThreshold
}

// Episode returns the episode counter
func (ql *QLearningPolicy) Episode() int {
	return ql.episode
}

// EpisodeReward returns the reward accumulated in the current episode
func (ql *QLearningPolicy) EpisodeReward() float64 {
	return ql.episodeReward
}

// Temperature returns the exploration temperature last used
func (ql *QLearningPolicy) Temperature() float64 {
	return ql.temperature
}

// LastDelta returns the max Q change measured by the last convergence check
func (ql *QLearningPolicy) LastDelta() float64 {
	return ql.lastDelta
}

// MinDelta returns the smallest max Q change ever measured
func (ql *QLearningPolicy) MinDelta() float64 {
	return ql.minDelta
}

// Bounds returns the current normalization bounds
func (ql *QLearningPolicy) Bounds() RewardBounds {
	return ql.bounds
}

// Allocations returns the current allocation count of a worker
func (ql *QLearningPolicy) Allocations(worker models.WorkerID) int {
	return ql.allocations[worker]
}

// QValue returns the value estimate of a worker
func (ql *QLearningPolicy) QValue(worker models.WorkerID) float64 {
	return ql.qTable[worker]
}

// QValues returns a copy of the Q-table
func (ql *QLearningPolicy) QValues() map[models.WorkerID]float64 {
	out := make(map[models.WorkerID]float64, len(ql.qTable))
	for id, q := range ql.qTable {
		out[id] = q
	}
	return out
}

// LoadQValues replaces the table, e.g. with values persisted by a previous run
func (ql *QLearningPolicy) LoadQValues(values map[models.WorkerID]float64) {
	ql.qTable = make(map[models.WorkerID]float64, len(values))
	for id, q := range values {
		ql.qTable[id] = q
	}
	for _, w := range ql.workers {
		if _, exists := ql.qTable[w.ID]; !exists {
			ql.qTable[w.ID] = 0.0
		}
	}
}

// VisitedWorkers returns the workers chosen this episode, ascending
func (ql *QLearningPolicy) VisitedWorkers() []models.WorkerID {
	ids := make([]models.WorkerID, 0, len(ql.visited))
	for id := range ql.visited {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Probabilities returns the current softmax distribution, in worker order
func (ql *QLearningPolicy) Probabilities() map[models.WorkerID]float64 {
	values := make([]float64, len(ql.workers))
	for i, w := range ql.workers {
		values[i] = ql.qTable[w.ID]
	}
	probs := Softmax(values, ql.config.TemperatureAt(ql.episode))

	out := make(map[models.WorkerID]float64, len(probs))
	for i, w := range ql.workers {
		out[w.ID] = probs[i]
	}
	return out
}

// BestWorker returns the worker with the highest Q-value, lowest id on ties
func (ql *QLearningPolicy) BestWorker() models.WorkerID {
	best := models.NoWorker
	bestValue := math.Inf(-1)
	for _, w := range ql.workers {
		q := ql.qTable[w.ID]
		if q > bestValue || (q == bestValue && w.ID < best) {
			bestValue = q
			best = w.ID
		}
	}
	return best
}

// Stats returns statistics about the learning process
func (ql *QLearningPolicy) Stats() QLearningStats {
	stats := QLearningStats{
		Workers:          len(ql.qTable),
		Episode:          ql.episode,
		TotalUpdates:     ql.totalUpdates,
		MaxQValue:        math.Inf(-1),
		MinQValue:        math.Inf(1),
		LastDelta:        ql.lastDelta,
		MinDelta:         ql.minDelta,
		Temperature:      ql.temperature,
		EpisodeReward:    ql.episodeReward,
		MaxLatencyBound:  ql.bounds.MaxLatency,
		MaxEnergyBound:   ql.bounds.MaxEnergy,
		VisitedThisRound: len(ql.visited),
	}

	for _, q := range ql.qTable {
		stats.AverageQValue += q
		stats.MaxQValue = math.Max(stats.MaxQValue, q)
		stats.MinQValue = math.Min(stats.MinQValue, q)
	}
	if len(ql.qTable) > 0 {
		stats.AverageQValue /= float64(len(ql.qTable))
	} else {
		stats.MaxQValue, stats.MinQValue = 0, 0
	}
	return stats
}
