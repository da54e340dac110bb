package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/casperlundberg/tiered-offloading-engine/internal/config"
	"github.com/casperlundberg/tiered-offloading-engine/internal/database"
	"github.com/casperlundberg/tiered-offloading-engine/internal/dataset"
	"github.com/casperlundberg/tiered-offloading-engine/internal/simulation"
	"github.com/casperlundberg/tiered-offloading-engine/internal/telemetry"
	"github.com/casperlundberg/tiered-offloading-engine/pkg/cost"
	"github.com/casperlundberg/tiered-offloading-engine/pkg/learning"
	"github.com/casperlundberg/tiered-offloading-engine/pkg/models"
)

var (
	configPath  string
	datasetPath string
	policyName  string
	dbPath      string
	reportPath  string
	qTablePath  string
	runName     string
	metricsAddr string
	maxEpisodes int
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Place a task batch on the worker tiers and report the outcome",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		return runBatch(ctx, cfg)
	},
}

func init() {
	runCmd.Flags().StringVar(&configPath, "config", "", "Path to YAML configuration (defaults when empty)")
	runCmd.Flags().StringVar(&datasetPath, "dataset", "", "Task batch JSON, a synthetic batch is generated when empty")
	runCmd.Flags().StringVar(&policyName, "policy", "", "Allocation policy override (static, throttled, rl)")
	runCmd.Flags().StringVar(&dbPath, "db", "", "SQLite database for run history, empty disables")
	runCmd.Flags().StringVar(&reportPath, "report", "", "Report JSON output, empty disables")
	runCmd.Flags().StringVar(&qTablePath, "qtable", "", "Q-table file used for warm start and saved after learning runs")
	runCmd.Flags().StringVar(&runName, "name", "", "Run name stored with the run history")
	runCmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address while running")
	runCmd.Flags().IntVar(&maxEpisodes, "max-episodes", 0, "Episode limit override for learning runs")
}

// loadConfig reads the config file and applies the flags that were set
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	cfg := config.Default()
	if configPath != "" {
		loaded, err := config.Load(configPath)
		if err != nil {
			return config.Config{}, err
		}
		cfg = loaded
	}

	flags := cmd.Flags()
	if flags.Changed("dataset") {
		cfg.Paths.Dataset = datasetPath
	}
	if flags.Changed("policy") {
		cfg.Engine.Policy = policyName
	}
	if flags.Changed("db") {
		cfg.Paths.Database = dbPath
	}
	if flags.Changed("report") {
		cfg.Paths.Report = reportPath
	}
	if flags.Changed("qtable") {
		cfg.Paths.QTable = qTablePath
	}
	if flags.Changed("max-episodes") {
		cfg.Engine.MaxEpisodes = maxEpisodes
	}

	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

func loadTasks(cfg config.Config) ([]models.Task, error) {
	if cfg.Paths.Dataset != "" {
		return dataset.Load(cfg.Paths.Dataset)
	}

	generator, err := dataset.NewGenerator(cfg.Generator)
	if err != nil {
		return nil, err
	}
	return generator.Generate(), nil
}

func runBatch(ctx context.Context, cfg config.Config) error {
	tasks, err := loadTasks(cfg)
	if err != nil {
		return err
	}

	costModel, err := cost.NewHeuristicCostModel(cfg.Tiers)
	if err != nil {
		return err
	}
	registry, err := cfg.Registry()
	if err != nil {
		return err
	}

	kind := cfg.PolicyKind()
	controllerConfig := cfg.ControllerConfig()
	if kind.IsLearning() && cfg.Paths.QTable != "" {
		values, err := learning.LoadQTable(cfg.Paths.QTable)
		if err != nil {
			return err
		}
		controllerConfig.InitialQValues = values
	}

	controller, err := simulation.NewEpisodeController(controllerConfig, costModel, registry)
	if err != nil {
		return err
	}

	var report *simulation.Report
	if cfg.Paths.Report != "" {
		report = simulation.NewReport(cfg.Report)
		controller.AddObserver(report)
	}

	metricsRegistry := prometheus.NewRegistry()
	exporter, err := telemetry.NewExporter(metricsRegistry)
	if err != nil {
		return err
	}
	controller.AddObserver(exporter)
	if metricsAddr != "" {
		serveMetrics(metricsRegistry, metricsAddr)
	}

	var collector *simulation.DBMetricsCollector
	if cfg.Paths.Database != "" {
		db, err := database.NewDatabase(cfg.Paths.Database)
		if err != nil {
			return err
		}
		defer db.Close()

		name := runName
		if name == "" {
			name = fmt.Sprintf("%s run (%d tasks)", kind, len(tasks))
		}
		collector, err = simulation.NewDBMetricsCollector(database.NewRepository(db), registry,
			name, fmt.Sprintf("l_max=%.3fs lambda=%.2f", cfg.Engine.MaxLatency, cfg.Engine.Lambda),
			string(kind), cfg)
		if err != nil {
			return err
		}
		collector.SetQSnapshotFilter(cfg.Report.IsQCheckpoint)
		controller.AddObserver(collector)
	}

	log.WithFields(log.Fields{
		"policy":  kind,
		"tasks":   len(tasks),
		"workers": registry.Len(),
	}).Info("Starting run")

	outcome, err := controller.Run(ctx, tasks)
	if err != nil {
		if collector != nil {
			if failErr := collector.Fail(err); failErr != nil {
				err = errors.Join(err, failErr)
			}
		}
		return err
	}

	if collector != nil {
		if err := collector.Complete(outcome); err != nil {
			return err
		}
	}
	if report != nil {
		report.Finalize(outcome)
		if err := report.WriteFile(cfg.Paths.Report); err != nil {
			return err
		}
	}
	if kind.IsLearning() && cfg.Paths.QTable != "" {
		if err := learning.SaveQTable(cfg.Paths.QTable, outcome.QValues); err != nil {
			return err
		}
	}

	printOutcome(outcome)
	return nil
}

func serveMetrics(registry *prometheus.Registry, addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	go func() {
		log.WithField("addr", addr).Info("Serving metrics")
		if err := http.ListenAndServe(addr, mux); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Error("Metrics server stopped")
		}
	}()
}

func printOutcome(outcome *simulation.Outcome) {
	fmt.Printf("\nPolicy %s: %d tasks, %d episode(s), best episode %d (reward %.4f)\n",
		outcome.Policy, outcome.Tasks, outcome.Episodes, outcome.BestEpisode, outcome.BestReward)
	if outcome.Policy.IsLearning() {
		fmt.Printf("Converged: %v (min ΔQ %.6f)\n", outcome.Converged, outcome.MinDelta)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "TIER\tTASKS\tAVG EXEC (s)\tENERGY (J)")
	for _, tier := range outcome.Tiers {
		fmt.Fprintf(w, "%s\t%d\t%.4f\t%.4f\n", tier.Tier, tier.Tasks, tier.AverageExecutionTime, tier.Energy)
	}
	w.Flush()

	fmt.Printf("Trade-off: latency %.4f, energy %.4f\n",
		outcome.Tradeoff.NormalizedLatency, outcome.Tradeoff.NormalizedEnergy)
	if outcome.Unplaced > 0 {
		fmt.Printf("Unplaced tasks: %d\n", outcome.Unplaced)
	}
}
