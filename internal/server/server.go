// Package server exposes the engine's HTTP surface: health, sync status,
// the webhook receiver, and Prometheus metrics.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"medstaff/sync-service/internal/metrics"
	"medstaff/sync-service/internal/resilience"
	syncengine "medstaff/sync-service/internal/sync"
	"medstaff/sync-service/internal/webhook"
)

// CircuitReporter exposes a dependency's breaker state for the status page.
type CircuitReporter interface {
	CircuitState() resilience.BreakerState
}

// Server holds the router and its dependencies.
type Server struct {
	engine  *gin.Engine
	http    *http.Server
	state   syncengine.StateStore
	circuit CircuitReporter
	metrics *metrics.Collector
	log     *logrus.Entry
	version string
}

func New(port, version string, state syncengine.StateStore, circuit CircuitReporter, hook *webhook.Handler, collector *metrics.Collector, log *logrus.Entry) *Server {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())

	s := &Server{
		engine:  engine,
		state:   state,
		circuit: circuit,
		metrics: collector,
		log:     log,
		version: version,
	}

	engine.GET("/health", s.health)
	engine.GET("/status", s.status)
	engine.POST("/webhooks/jobs", hook.Handle)
	engine.GET("/metrics", gin.WrapH(collector.Handler()))

	s.http = &http.Server{
		Addr:         ":" + port,
		Handler:      engine,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	return s
}

// Handler exposes the router, for tests.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Start blocks serving HTTP until Shutdown is called.
func (s *Server) Start() error {
	s.log.WithField("addr", s.http.Addr).Info("http server listening")
	return s.http.ListenAndServe()
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"service": "sync-service",
		"version": s.version,
	})
}

// status reports the circuit state, the watermark, the last full sync, and
// the most recent run report.
func (s *Server) status(c *gin.Context) {
	ctx := c.Request.Context()
	state := s.circuit.CircuitState()
	s.metrics.ObserveCircuit("upstream", state)

	resp := gin.H{
		"circuit": gin.H{"upstream": string(state)},
	}

	if mark, err := s.state.Watermark(ctx); err != nil {
		s.log.WithError(err).Warn("read watermark failed")
	} else if !mark.IsZero() {
		resp["watermark"] = mark.UTC().Format(time.RFC3339)
	}

	if last, err := s.state.LastFullSync(ctx); err != nil {
		s.log.WithError(err).Warn("read last full sync failed")
	} else if !last.IsZero() {
		resp["lastFullSyncAt"] = last.UTC().Format(time.RFC3339)
	}

	if rep, err := s.state.LastReport(ctx); err != nil {
		s.log.WithError(err).Warn("read last report failed")
	} else if rep != nil {
		resp["lastRun"] = rep
	}

	c.JSON(http.StatusOK, resp)
}
