package main

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/casperlundberg/tiered-offloading-engine/internal/database"
)

var (
	inspectDB  string
	inspectRun string
)

var inspectCmd = &cobra.Command{
	Use:   "inspect",
	Short: "List stored runs or print the summary of one run",
	RunE: func(cmd *cobra.Command, args []string) error {
		if _, err := os.Stat(inspectDB); err != nil {
			return fmt.Errorf("database %s: %w", inspectDB, err)
		}

		db, err := database.NewDatabase(inspectDB)
		if err != nil {
			return err
		}
		defer db.Close()
		repo := database.NewRepository(db)

		if inspectRun != "" {
			summary, err := repo.GetRunSummary(inspectRun)
			if err != nil {
				return fmt.Errorf("run %s: %w", inspectRun, err)
			}
			encoder := json.NewEncoder(os.Stdout)
			encoder.SetIndent("", "  ")
			return encoder.Encode(summary)
		}

		runs, err := repo.ListRuns()
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tNAME\tPOLICY\tSTATUS\tEPISODES\tBEST REWARD\tCREATED")
		for _, run := range runs {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%.4f\t%s\n", run.ID, run.Name, run.Policy, run.Status,
				run.Episodes, run.BestReward, run.CreatedAt.Format("2006-01-02 15:04:05"))
		}
		return w.Flush()
	},
}

func init() {
	inspectCmd.Flags().StringVar(&inspectDB, "db", "offloading.db", "Path to SQLite database file")
	inspectCmd.Flags().StringVar(&inspectRun, "run", "", "Run ID to summarize")
}
