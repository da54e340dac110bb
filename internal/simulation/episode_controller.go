package simulation

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/casperlundberg/tiered-offloading-engine/pkg/cost"
	"github.com/casperlundberg/tiered-offloading-engine/pkg/decision"
	"github.com/casperlundberg/tiered-offloading-engine/pkg/learning"
	"github.com/casperlundberg/tiered-offloading-engine/pkg/models"
	"github.com/casperlundberg/tiered-offloading-engine/pkg/policy"
	"github.com/casperlundberg/tiered-offloading-engine/pkg/simulator"
)

// CostModel is the cost model the controller needs: task estimates for
// decisions and rewards plus tier power for recorded energy.
type CostModel interface {
	cost.Model
	PowerSource
}

// Config contains the run parameters of the controller
type Config struct {
	Policy         policy.Kind
	MaxLatency     float64 // L_MAX, seconds
	MaxEpisodes    int     // upper bound for learning runs
	Learning       learning.LearningConfig
	InitialQValues map[models.WorkerID]float64 // optional warm start for the learner
	SmoothingAlpha float64                     // EWMA factor for the smoothed episode reward
	LogEvery       int                         // Info log interval in episodes, 0 disables
}

// Validate validates the controller configuration
func (c Config) Validate() error {
	var errors models.ValidationErrors

	errors.AddIf(!c.Policy.IsValid(), "Policy", c.Policy, "policy must be static, throttled or rl")
	errors.AddIf(c.MaxLatency <= 0, "MaxLatency", c.MaxLatency, "max latency must be positive")
	errors.AddIf(c.Policy.IsLearning() && c.MaxEpisodes < 1, "MaxEpisodes", c.MaxEpisodes,
		"learning runs need at least one episode")

	if err := errors.AsConfigError(); err != nil {
		return err
	}
	if c.Policy.IsLearning() {
		return c.Learning.Validate()
	}
	return nil
}

// TradeoffPoint is the mean normalized latency and energy of an episode's
// completed tasks.
type TradeoffPoint struct {
	NormalizedLatency float64 `json:"normalized_latency"`
	NormalizedEnergy  float64 `json:"normalized_energy"`
}

// EpisodeSummary is handed to observers after every episode
type EpisodeSummary struct {
	Policy         policy.Kind
	Episode        int
	Reward         float64
	SmoothedReward float64
	Temperature    float64
	MaxDelta       float64
	Converged      bool
	Makespan       float64
	Placed         int
	Unplaced       int
	Tiers          []TierResult
	WorkerTasks    map[models.WorkerID]int
	Tradeoff       TradeoffPoint
	QValues        map[models.WorkerID]float64 // nil for tier-level policies
	Visited        []models.WorkerID
}

// EpisodeObserver receives episode summaries in episode order
type EpisodeObserver interface {
	ObserveEpisode(summary EpisodeSummary) error
}

// Outcome is the result of a run. Tier results and the trade-off point come
// from the best-reward episode.
type Outcome struct {
	Policy        policy.Kind                 `json:"policy"`
	Tasks         int                         `json:"tasks"`
	Episodes      int                         `json:"episodes"`
	Converged     bool                        `json:"converged"`
	BestEpisode   int                         `json:"best_episode"`
	BestReward    float64                     `json:"best_reward"`
	Tiers         []TierResult                `json:"tiers"`
	Tradeoff      TradeoffPoint               `json:"tradeoff"`
	Unplaced      int                         `json:"unplaced"`
	Makespan      float64                     `json:"makespan"`
	SimulatedTime float64                     `json:"simulated_time"` // summed over episodes
	MinDelta      float64                     `json:"min_delta"`
	QValues       map[models.WorkerID]float64 `json:"q_values,omitempty"`
	Bounds        learning.RewardBounds       `json:"bounds"`
}

// EpisodeController drives task batches through the decision engine and the
// execution substrate, one episode at a time.
type EpisodeController struct {
	config    Config
	costModel CostModel
	registry  *models.WorkerRegistry
	factory   *PolicyFactory
	engine    *simulator.Engine
	recorder  *MetricsRecorder
	observers []EpisodeObserver

	bounds   learning.RewardBounds
	smoother *learning.EWMA
}

// NewEpisodeController creates a controller over the registry's workers
func NewEpisodeController(config Config, costModel CostModel, registry *models.WorkerRegistry) (*EpisodeController, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if costModel == nil || registry == nil {
		return nil, fmt.Errorf("%w: controller needs a cost model and a worker registry", models.ErrInvalidConfiguration)
	}

	return &EpisodeController{
		config:    config,
		costModel: costModel,
		registry:  registry,
		factory:   NewPolicyFactory(costModel, registry, config.Learning),
		engine:    simulator.NewEngine(registry),
		recorder:  NewMetricsRecorder(costModel),
		smoother:  learning.NewEWMA(config.SmoothingAlpha),
	}, nil
}

// AddObserver registers an episode observer
func (c *EpisodeController) AddObserver(observer EpisodeObserver) {
	c.observers = append(c.observers, observer)
}

// Run processes the task batch. Tier-level policies run a single episode;
// the learning policy repeats the batch until convergence or MaxEpisodes.
func (c *EpisodeController) Run(ctx context.Context, tasks []models.Task) (*Outcome, error) {
	log.WithFields(log.Fields{
		"policy":      c.config.Policy,
		"tasks":       len(tasks),
		"workers":     c.registry.Len(),
		"max_latency": c.config.MaxLatency,
	}).Info("Starting run")

	var (
		outcome *Outcome
		err     error
	)
	if c.config.Policy.IsLearning() {
		outcome, err = c.runLearning(ctx, tasks)
	} else {
		outcome, err = c.runTierPolicies(ctx, tasks)
	}
	if err != nil {
		return nil, err
	}

	outcome.Tasks = len(tasks)
	outcome.Bounds = c.bounds

	log.WithFields(log.Fields{
		"policy":       outcome.Policy,
		"episodes":     outcome.Episodes,
		"converged":    outcome.Converged,
		"best_episode": outcome.BestEpisode,
		"best_reward":  outcome.BestReward,
		"unplaced":     outcome.Unplaced,
	}).Info("Run finished")
	return outcome, nil
}

// episodeState accumulates cost-model estimates of the tasks completed in
// one episode.
type episodeState struct {
	unplaced   int
	completed  int
	latencySum float64
	energySum  float64
	reward     float64
}

func (c *EpisodeController) runTierPolicies(ctx context.Context, tasks []models.Task) (*Outcome, error) {
	optimizer, err := decision.NewConstrainedCostOptimizer(c.config.MaxLatency, c.costModel)
	if err != nil {
		return nil, err
	}
	if err := optimizer.Initialize(c.registry.Workers()); err != nil {
		return nil, err
	}

	policies, err := c.factory.TierPolicies(c.config.Policy, c.engine)
	if err != nil {
		return nil, err
	}

	c.resetEpisode()
	state := &episodeState{}

	for _, task := range tasks {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := c.observeBounds(task, nil); err != nil {
			return nil, err
		}

		tier, err := optimizer.SelectTier(task)
		if err != nil {
			return nil, fmt.Errorf("failed to select tier for %s: %w", task, err)
		}
		if err := c.place(task, tier, policies[tier], state); err != nil {
			return nil, err
		}
	}

	makespan := c.engine.Run(func(event simulator.CompletionEvent) {
		p := policies[event.Tier]
		if observer, ok := p.(policy.CompletionObserver); ok {
			observer.OnCompletion(event.Worker, event.Task)
		}
		p.Deallocate(event.Worker)
		c.recorder.Record(event)
		c.accumulate(event, state)
	})

	summary := c.summarize(1, state, makespan)
	summary.Reward = state.reward
	summary.SmoothedReward = c.smoother.Update(state.reward)
	if err := c.notify(summary); err != nil {
		return nil, err
	}

	return &Outcome{
		Policy:        c.config.Policy,
		Episodes:      1,
		Converged:     true,
		BestEpisode:   1,
		BestReward:    summary.Reward,
		Tiers:         summary.Tiers,
		Tradeoff:      summary.Tradeoff,
		Unplaced:      summary.Unplaced,
		Makespan:      makespan,
		SimulatedTime: makespan,
	}, nil
}

// backlogged is implemented by policies that retain tasks they cannot place
type backlogged interface {
	Backlog() int
}

func (c *EpisodeController) place(task models.Task, tier models.Tier, p policy.AllocationPolicy, state *episodeState) error {
	before := -1
	if queue, ok := p.(backlogged); ok {
		before = queue.Backlog()
	}

	worker := p.Allocate(task)
	if worker.IsValid() {
		return c.engine.Submit(task, worker)
	}

	if queue, ok := p.(backlogged); ok && queue.Backlog() > before {
		log.WithFields(log.Fields{"task": task.ID, "tier": tier}).Debug("Task queued until a worker frees up")
		return nil
	}

	state.unplaced++
	log.WithFields(log.Fields{"task": task.ID, "tier": tier}).Warn("No worker available, task not placed")
	return nil
}

func (c *EpisodeController) runLearning(ctx context.Context, tasks []models.Task) (*Outcome, error) {
	learner, err := c.factory.Learner()
	if err != nil {
		return nil, err
	}
	if err := learner.Initialize(c.registry.Workers()); err != nil {
		return nil, err
	}
	if c.config.InitialQValues != nil {
		learner.LoadQValues(c.config.InitialQValues)
	}

	outcome := &Outcome{Policy: c.config.Policy}
	var best *EpisodeSummary

	for outcome.Episodes < c.config.MaxEpisodes {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		learner.StartNewEpisode()
		c.resetEpisode()
		state := &episodeState{}

		for _, task := range tasks {
			if err := c.observeBounds(task, learner); err != nil {
				return nil, err
			}
			worker := learner.Allocate(task)
			if !worker.IsValid() {
				state.unplaced++
				continue
			}
			if err := c.engine.Submit(task, worker); err != nil {
				return nil, err
			}
		}

		makespan := c.engine.Run(func(event simulator.CompletionEvent) {
			learner.OnCompletion(event.Worker, event.Task)
			learner.Deallocate(event.Worker)
			c.recorder.Record(event)
			c.accumulate(event, state)
		})
		visited := learner.VisitedWorkers()

		converged := learner.HasConverged()
		outcome.Episodes = learner.Episode()
		outcome.SimulatedTime += makespan

		summary := c.summarize(learner.Episode(), state, makespan)
		summary.Reward = learner.EpisodeReward()
		summary.SmoothedReward = c.smoother.Update(summary.Reward)
		summary.Temperature = learner.Temperature()
		summary.MaxDelta = learner.LastDelta()
		summary.Converged = converged
		summary.QValues = learner.QValues()
		summary.Visited = visited

		if best == nil || summary.Reward > best.Reward {
			kept := summary
			best = &kept
		}
		if err := c.notify(summary); err != nil {
			return nil, err
		}

		if c.config.LogEvery > 0 && summary.Episode%c.config.LogEvery == 0 {
			log.WithFields(log.Fields{
				"episode":     summary.Episode,
				"reward":      summary.Reward,
				"smoothed":    summary.SmoothedReward,
				"temperature": summary.Temperature,
				"max_delta":   summary.MaxDelta,
			}).Info("Episode progress")
		}

		if converged {
			outcome.Converged = true
			log.WithField("episode", summary.Episode).Info("Q-learning converged")
			break
		}
	}

	if !outcome.Converged {
		log.WithField("max_episodes", c.config.MaxEpisodes).Warn("Reached max episodes without convergence")
	}

	outcome.MinDelta = learner.MinDelta()
	outcome.QValues = learner.QValues()
	if best != nil {
		outcome.BestEpisode = best.Episode
		outcome.BestReward = best.Reward
		outcome.Tiers = best.Tiers
		outcome.Tradeoff = best.Tradeoff
		outcome.Unplaced = best.Unplaced
		outcome.Makespan = best.Makespan
	}
	return outcome, nil
}

func (c *EpisodeController) resetEpisode() {
	c.engine.Reset()
	c.recorder.Reset()
}

// observeBounds scans the task across every tier and widens the reward
// normalization bounds before the task is dispatched.
func (c *EpisodeController) observeBounds(task models.Task, learner *learning.QLearningPolicy) error {
	for _, tier := range models.EvaluationOrder {
		energy, err := c.costModel.Energy(task, tier)
		if err != nil {
			return fmt.Errorf("failed to estimate %s on %s: %w", task, tier, err)
		}
		c.bounds.Observe(c.costModel.Latency(task, tier), energy)
	}
	if learner != nil {
		return learner.ObserveBounds(task)
	}
	return nil
}

func (c *EpisodeController) accumulate(event simulator.CompletionEvent, state *episodeState) {
	latency := c.costModel.Latency(event.Task, event.Tier)
	energy, err := c.costModel.Energy(event.Task, event.Tier)
	if err != nil {
		log.WithError(err).WithField("task", event.Task.ID).Warn("Completion left out of the trade-off point")
		return
	}

	state.completed++
	state.latencySum += latency
	state.energySum += energy

	nLatency, nEnergy := c.bounds.Normalize(latency, energy)
	lambda := c.config.Learning.Lambda
	state.reward -= lambda*nLatency + (1-lambda)*nEnergy
}

func (c *EpisodeController) summarize(episode int, state *episodeState, makespan float64) EpisodeSummary {
	summary := EpisodeSummary{
		Policy:      c.config.Policy,
		Episode:     episode,
		Makespan:    makespan,
		Placed:      c.recorder.TotalTasks(),
		Unplaced:    state.unplaced,
		Tiers:       c.recorder.Results(),
		WorkerTasks: c.recorder.WorkerTasks(),
	}

	if state.completed > 0 && c.bounds.Known() {
		n := float64(state.completed)
		summary.Tradeoff = TradeoffPoint{
			NormalizedLatency: state.latencySum / (c.bounds.MaxLatency * n),
			NormalizedEnergy:  state.energySum / (c.bounds.MaxEnergy * n),
		}
	}
	return summary
}

func (c *EpisodeController) notify(summary EpisodeSummary) error {
	for _, observer := range c.observers {
		if err := observer.ObserveEpisode(summary); err != nil {
			return fmt.Errorf("episode %d observer failed: %w", summary.Episode, err)
		}
	}
	return nil
}

// Bounds returns the normalization bounds seen so far
func (c *EpisodeController) Bounds() learning.RewardBounds {
	return c.bounds
}
