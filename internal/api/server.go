package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/casperlundberg/tiered-offloading-engine/internal/database"
)

// Server exposes stored runs and live metrics over HTTP
type Server struct {
	router   *gin.Engine
	repo     *database.Repository
	gatherer prometheus.Gatherer
	port     string
}

// NewServer creates a new API server. A nil gatherer serves the default
// Prometheus registry.
func NewServer(repo *database.Repository, gatherer prometheus.Gatherer, port string) *Server {
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}

	router := gin.Default()

	// Configure CORS
	config := cors.DefaultConfig()
	config.AllowOrigins = []string{"http://localhost:3000", "http://localhost:8080"}
	config.AllowMethods = []string{"GET", "DELETE", "OPTIONS"}
	config.AllowHeaders = []string{"Origin", "Content-Type"}
	router.Use(cors.New(config))

	server := &Server{
		router:   router,
		repo:     repo,
		gatherer: gatherer,
		port:     port,
	}

	server.setupRoutes()
	return server
}

func (s *Server) setupRoutes() {
	s.router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})))

	api := s.router.Group("/api/v1")

	api.GET("/health", s.healthCheck)

	api.GET("/runs", s.listRuns)
	api.GET("/runs/:id", s.getRun)
	api.DELETE("/runs/:id", s.deleteRun)

	api.GET("/runs/:id/episodes", s.getEpisodes)
	api.GET("/runs/:id/qvalues", s.getQValues)
	api.GET("/runs/:id/qvalues/episodes", s.getQSnapshotEpisodes)
	api.GET("/runs/:id/tiers", s.getTierSummaries)
	api.GET("/runs/:id/events", s.getEvents)
	api.GET("/runs/:id/summary", s.getRunSummary)
}

// Handler returns the HTTP handler, mainly for tests
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start starts the server
func (s *Server) Start() error {
	log.WithField("port", s.port).Info("Starting API server")
	return s.router.Run(":" + s.port)
}

func (s *Server) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"time":   time.Now(),
	})
}

func (s *Server) listRuns(c *gin.Context) {
	runs, err := s.repo.ListRuns()
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, runs)
}

func (s *Server) getRun(c *gin.Context) {
	run, err := s.repo.GetRun(c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, run)
}

func (s *Server) deleteRun(c *gin.Context) {
	id, ok := s.lookupRun(c)
	if !ok {
		return
	}

	if err := s.repo.DeleteRun(id); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Run deleted"})
}

func (s *Server) getEpisodes(c *gin.Context) {
	id, ok := s.lookupRun(c)
	if !ok {
		return
	}

	limit, ok := intQuery(c, "limit", 0)
	if !ok {
		return
	}

	episodes, err := s.repo.GetEpisodes(id, limit)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, episodes)
}

func (s *Server) getQValues(c *gin.Context) {
	id, ok := s.lookupRun(c)
	if !ok {
		return
	}

	// -1 selects the latest snapshot
	episode, ok := intQuery(c, "episode", -1)
	if !ok {
		return
	}

	values, err := s.repo.GetQValues(id, episode)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, values)
}

func (s *Server) getQSnapshotEpisodes(c *gin.Context) {
	id, ok := s.lookupRun(c)
	if !ok {
		return
	}

	episodes, err := s.repo.GetQSnapshotEpisodes(id)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, episodes)
}

func (s *Server) getTierSummaries(c *gin.Context) {
	id, ok := s.lookupRun(c)
	if !ok {
		return
	}

	summaries, err := s.repo.GetTierSummaries(id)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, summaries)
}

func (s *Server) getEvents(c *gin.Context) {
	id, ok := s.lookupRun(c)
	if !ok {
		return
	}

	events, err := s.repo.GetEvents(id, c.Query("type"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, events)
}

func (s *Server) getRunSummary(c *gin.Context) {
	summary, err := s.repo.GetRunSummary(c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, summary)
}

// lookupRun resolves the :id parameter to a stored run and answers 404
// when there is none
func (s *Server) lookupRun(c *gin.Context) (string, bool) {
	id := c.Param("id")
	if _, err := s.repo.GetRun(id); err != nil {
		respondError(c, err)
		return "", false
	}
	return id, true
}

func intQuery(c *gin.Context, key string, fallback int) (int, bool) {
	raw := c.Query(key)
	if raw == "" {
		return fallback, true
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + key})
		return 0, false
	}
	return value, true
}

func respondError(c *gin.Context, err error) {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Run not found"})
		return
	}
	log.WithError(err).WithField("path", c.FullPath()).Error("Request failed")
	c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
}
