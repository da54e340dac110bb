package main

import (
	"os"
	"path/filepath"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/casperlundberg/tiered-offloading-engine/internal/api"
	"github.com/casperlundberg/tiered-offloading-engine/internal/database"
)

var (
	serveDB   string
	servePort string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the run history API",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := os.MkdirAll(filepath.Dir(serveDB), 0o755); err != nil {
			return err
		}

		db, err := database.NewDatabase(serveDB)
		if err != nil {
			return err
		}
		defer db.Close()

		if log.GetLevel() < log.DebugLevel {
			gin.SetMode(gin.ReleaseMode)
		}

		registry := prometheus.NewRegistry()
		registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

		log.WithField("db", serveDB).Info("Run history opened")
		return api.NewServer(database.NewRepository(db), registry, servePort).Start()
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveDB, "db", "offloading.db", "Path to SQLite database file")
	serveCmd.Flags().StringVar(&servePort, "port", "8080", "Port to run API server on")
}
