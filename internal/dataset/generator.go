package dataset

import (
	"math"
	"math/rand"

	log "github.com/sirupsen/logrus"

	"github.com/casperlundberg/tiered-offloading-engine/pkg/models"
)

// GeneratorConfig describes a synthetic task batch. Lengths and sizes are
// drawn uniformly; with BurstProbability a task is a heavy burst task whose
// length is scaled by BurstMultiplier.
type GeneratorConfig struct {
	Count            int     `yaml:"count" json:"count"`
	MinLength        int64   `yaml:"min_length" json:"min_length"`
	MaxLength        int64   `yaml:"max_length" json:"max_length"`
	MinFileSize      int64   `yaml:"min_file_size" json:"min_file_size"`
	MaxFileSize      int64   `yaml:"max_file_size" json:"max_file_size"`
	MinOutputSize    int64   `yaml:"min_output_size" json:"min_output_size"`
	MaxOutputSize    int64   `yaml:"max_output_size" json:"max_output_size"`
	BurstProbability float64 `yaml:"burst_probability" json:"burst_probability"`
	BurstMultiplier  float64 `yaml:"burst_multiplier" json:"burst_multiplier"`
	Seed             int64   `yaml:"seed" json:"seed"`
}

// DefaultGeneratorConfig returns a small mixed batch
func DefaultGeneratorConfig() GeneratorConfig {
	return GeneratorConfig{
		Count:            100,
		MinLength:        1000,
		MaxLength:        20000,
		MinFileSize:      10_000,
		MaxFileSize:      1_000_000,
		MinOutputSize:    1_000,
		MaxOutputSize:    100_000,
		BurstProbability: 0.05,
		BurstMultiplier:  5.0,
		Seed:             7,
	}
}

// Validate validates the generator parameters
func (c GeneratorConfig) Validate() error {
	var errors models.ValidationErrors

	errors.AddIf(c.Count < 0, "Count", c.Count, "count must be non-negative")
	errors.AddIf(c.MinLength < 0 || c.MaxLength < c.MinLength, "Length", c.MaxLength,
		"length range must be non-negative and ordered")
	errors.AddIf(c.MinFileSize < 0 || c.MaxFileSize < c.MinFileSize, "FileSize", c.MaxFileSize,
		"file size range must be non-negative and ordered")
	errors.AddIf(c.MinOutputSize < 0 || c.MaxOutputSize < c.MinOutputSize, "OutputSize", c.MaxOutputSize,
		"output size range must be non-negative and ordered")
	errors.AddIf(c.BurstProbability < 0 || c.BurstProbability > 1, "BurstProbability", c.BurstProbability,
		"burst probability must be in [0,1]")
	errors.AddIf(c.BurstMultiplier < 1, "BurstMultiplier", c.BurstMultiplier, "burst multiplier must be >= 1")
	errors.AddIf(float64(c.MaxLength)*c.BurstMultiplier >= math.MaxInt64, "BurstMultiplier", c.BurstMultiplier,
		"max_length × burst_multiplier must fit in int64")

	return errors.AsConfigError()
}

// Generator produces reproducible synthetic task batches
type Generator struct {
	config GeneratorConfig
	random *rand.Rand
}

// NewGenerator creates a generator seeded from the config
func NewGenerator(config GeneratorConfig) (*Generator, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &Generator{
		config: config,
		random: rand.New(rand.NewSource(config.Seed)),
	}, nil
}

// Generate returns Count tasks with ids 0..Count-1
func (g *Generator) Generate() []models.Task {
	tasks := make([]models.Task, 0, g.config.Count)
	bursts := 0

	for i := 0; i < g.config.Count; i++ {
		length := g.uniform(g.config.MinLength, g.config.MaxLength)
		if g.random.Float64() < g.config.BurstProbability {
			length = int64(float64(length) * g.config.BurstMultiplier)
			bursts++
		}
		tasks = append(tasks, models.NewTask(i,
			length,
			g.uniform(g.config.MinFileSize, g.config.MaxFileSize),
			g.uniform(g.config.MinOutputSize, g.config.MaxOutputSize),
		))
	}

	log.WithFields(log.Fields{
		"tasks":  len(tasks),
		"bursts": bursts,
		"seed":   g.config.Seed,
	}).Debug("Synthetic batch generated")
	return tasks
}

// uniform draws from [min, max]. Validate keeps min >= 0, so max-min never
// overflows; only the full [0, MaxInt64] range has no Int63n bound.
func (g *Generator) uniform(min, max int64) int64 {
	if max <= min {
		return min
	}
	span := max - min
	if span == math.MaxInt64 {
		return min + g.random.Int63()
	}
	return min + g.random.Int63n(span+1)
}
