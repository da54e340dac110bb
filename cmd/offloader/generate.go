package main

import (
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/casperlundberg/tiered-offloading-engine/internal/dataset"
)

var (
	generateOut   string
	generateCount int
	generateSeed  int64
)

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Write a synthetic task batch that run --dataset can read",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		generatorConfig := cfg.Generator
		if cmd.Flags().Changed("count") {
			generatorConfig.Count = generateCount
		}
		if cmd.Flags().Changed("seed") {
			generatorConfig.Seed = generateSeed
		}

		generator, err := dataset.NewGenerator(generatorConfig)
		if err != nil {
			return err
		}
		tasks := generator.Generate()
		if err := dataset.Save(generateOut, tasks); err != nil {
			return err
		}

		log.WithFields(log.Fields{"path": generateOut, "tasks": len(tasks)}).Info("Batch written")
		return nil
	},
}

func init() {
	generateCmd.Flags().StringVar(&configPath, "config", "", "Path to YAML configuration (defaults when empty)")
	generateCmd.Flags().StringVarP(&generateOut, "out", "o", "tasks.json", "Output file")
	generateCmd.Flags().IntVar(&generateCount, "count", 0, "Number of tasks, overrides the generator section")
	generateCmd.Flags().Int64Var(&generateSeed, "seed", 0, "Random seed, overrides the generator section")
}
