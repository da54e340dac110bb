package config

import (
	"fmt"
	"os"

	log "github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/casperlundberg/tiered-offloading-engine/internal/dataset"
	"github.com/casperlundberg/tiered-offloading-engine/internal/simulation"
	"github.com/casperlundberg/tiered-offloading-engine/pkg/learning"
	"github.com/casperlundberg/tiered-offloading-engine/pkg/models"
	"github.com/casperlundberg/tiered-offloading-engine/pkg/policy"
)

// Config is the complete run configuration. It is built once and not
// mutated afterwards.
type Config struct {
	Engine    EngineConfig                       `yaml:"engine" json:"engine"`
	Tiers     map[models.Tier]models.TierProfile `yaml:"tiers" json:"tiers"`
	Workers   []models.WorkerSpec                `yaml:"workers" json:"workers"`
	Report    simulation.ReportConfig            `yaml:"report" json:"report"`
	Generator dataset.GeneratorConfig            `yaml:"generator" json:"generator"`
	Paths     PathsConfig                        `yaml:"paths" json:"paths"`
}

// EngineConfig holds the decision engine and training loop parameters
type EngineConfig struct {
	Policy         string  `yaml:"policy" json:"policy"`
	MaxLatency     float64 `yaml:"l_max" json:"l_max"` // seconds
	MaxEpisodes    int     `yaml:"max_episodes" json:"max_episodes"`
	SmoothingAlpha float64 `yaml:"smoothing_alpha" json:"smoothing_alpha"`
	LogEvery       int     `yaml:"log_every" json:"log_every"`

	learning.LearningConfig `yaml:",inline" json:"learning"`
}

// PathsConfig holds the input and output locations. Empty disables an output.
type PathsConfig struct {
	Dataset  string `yaml:"dataset" json:"dataset"`
	QTable   string `yaml:"q_table" json:"q_table"`
	Database string `yaml:"database" json:"database"`
	Report   string `yaml:"report" json:"report"`
}

// Default returns the reference configuration
func Default() Config {
	return Config{
		Engine: EngineConfig{
			Policy:         string(policy.RL),
			MaxLatency:     1.0,
			MaxEpisodes:    1000,
			SmoothingAlpha: 0.167,
			LogEvery:       100,
			LearningConfig: learning.DefaultLearningConfig(),
		},
		Tiers: models.DefaultTierProfiles(),
		Workers: []models.WorkerSpec{
			{Tier: models.DEVICE, Count: 2, ComputeRate: 1000},
			{Tier: models.EDGE, Count: 2, ComputeRate: 2400},
			{Tier: models.CLOUD, Count: 2, ComputeRate: 5000},
		},
		Report:    simulation.DefaultReportConfig(),
		Generator: dataset.DefaultGeneratorConfig(),
		Paths: PathsConfig{
			QTable:   "qtable.json",
			Database: "offloading.db",
			Report:   "graph_data.json",
		},
	}
}

// Load reads a YAML file over the defaults. A tier listed in the file
// replaces the whole default profile of that tier.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config YAML: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	log.WithFields(log.Fields{
		"path":   path,
		"policy": cfg.Engine.Policy,
		"l_max":  cfg.Engine.MaxLatency,
	}).Info("Configuration loaded")
	return cfg, nil
}

// Validate checks every section and reports all problems at once
func (c Config) Validate() error {
	var errors models.ValidationErrors

	_, err := policy.ParseKind(c.Engine.Policy)
	errors.AddIf(err != nil, "Engine.Policy", c.Engine.Policy, "policy must be static, throttled or rl")
	errors.AddIf(c.Engine.MaxLatency <= 0, "Engine.MaxLatency", c.Engine.MaxLatency, "l_max must be positive")
	errors.AddIf(c.Engine.MaxEpisodes < 1, "Engine.MaxEpisodes", c.Engine.MaxEpisodes, "max_episodes must be at least 1")
	errors.AddIf(c.Engine.SmoothingAlpha < 0 || c.Engine.SmoothingAlpha > 1, "Engine.SmoothingAlpha",
		c.Engine.SmoothingAlpha, "smoothing_alpha must be in [0,1]")
	if err := c.Engine.LearningConfig.Validate(); err != nil {
		errors.Add("Engine.Learning", c.Engine.LearningConfig, err.Error())
	}

	for _, tier := range models.ValidTiers() {
		profile, ok := c.Tiers[tier]
		if !ok {
			errors.Add("Tiers", tier, "profile missing")
			continue
		}
		if err := profile.Validate(tier); err != nil {
			errors.Add("Tiers."+tier.String(), profile, err.Error())
		}
	}

	total := 0
	for i, spec := range c.Workers {
		field := fmt.Sprintf("Workers[%d]", i)
		errors.AddIf(!spec.Tier.IsValid(), field+".Tier", spec.Tier, "unknown tier")
		errors.AddIf(spec.Count < 0, field+".Count", spec.Count, "count must be non-negative")
		errors.AddIf(spec.ComputeRate <= 0, field+".ComputeRate", spec.ComputeRate, "compute rate must be positive")
		total += spec.Count
	}
	errors.AddIf(total == 0, "Workers", total, "at least one worker is required")

	if err := c.Report.Validate(); err != nil {
		errors.Add("Report", c.Report, err.Error())
	}
	if err := c.Generator.Validate(); err != nil {
		errors.Add("Generator", c.Generator, err.Error())
	}

	return errors.AsConfigError()
}

// PolicyKind returns the parsed policy kind
func (c Config) PolicyKind() policy.Kind {
	kind, _ := policy.ParseKind(c.Engine.Policy)
	return kind
}

// Registry builds the worker registry from the worker specs
func (c Config) Registry() (*models.WorkerRegistry, error) {
	return models.NewWorkerRegistry(models.BuildWorkers(c.Workers))
}

// ControllerConfig maps the engine section onto the episode controller
func (c Config) ControllerConfig() simulation.Config {
	return simulation.Config{
		Policy:         c.PolicyKind(),
		MaxLatency:     c.Engine.MaxLatency,
		MaxEpisodes:    c.Engine.MaxEpisodes,
		Learning:       c.Engine.LearningConfig,
		SmoothingAlpha: c.Engine.SmoothingAlpha,
		LogEvery:       c.Engine.LogEvery,
	}
}
