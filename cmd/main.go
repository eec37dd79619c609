// medstaff sync-service
//
// Keeps the local job catalog consistent with the upstream ATS/VMS:
//   - nightly full re-pull of the complete listing
//   - frequent incremental pulls bounded by a persisted watermark
//   - HMAC-verified webhooks applied between runs
//
// Exposes /health, /status, /webhooks/jobs and /metrics.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"medstaff/sync-service/internal/auth"
	"medstaff/sync-service/internal/catalog"
	"medstaff/sync-service/internal/config"
	"medstaff/sync-service/internal/db"
	"medstaff/sync-service/internal/logging"
	"medstaff/sync-service/internal/metrics"
	"medstaff/sync-service/internal/resilience"
	"medstaff/sync-service/internal/scheduler"
	"medstaff/sync-service/internal/server"
	syncengine "medstaff/sync-service/internal/sync"
	"medstaff/sync-service/internal/upstream"
	"medstaff/sync-service/internal/webhook"
)

const version = "1.0.0"

func main() {
	// ── Config ──────────────────────────────────────────────────────────────
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("config error: %v", err)
	}

	log := logging.New(cfg.LogLevel)
	mainLog := logging.Component(log, "main")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ── PostgreSQL ──────────────────────────────────────────────────────────
	pool, err := db.NewPostgresPool(ctx, cfg.DatabaseURL)
	if err != nil {
		mainLog.WithError(err).Fatal("postgres connect failed")
	}
	defer pool.Close()
	mainLog.Info("postgres connected")

	// ── Redis ───────────────────────────────────────────────────────────────
	rdb, err := db.NewRedisClient(ctx, cfg.RedisURL)
	if err != nil {
		mainLog.WithError(err).Fatal("redis connect failed")
	}
	defer rdb.Close()
	mainLog.Info("redis connected")

	// ── Upstream client ─────────────────────────────────────────────────────
	tokens := auth.NewManager(auth.Credentials{
		ClientID:     cfg.UpstreamClientID,
		ClientSecret: cfg.UpstreamClientSecret,
		TokenURL:     cfg.UpstreamTokenURL,
	}, cfg.HTTPTimeout, logging.Component(log, "auth"))

	retryer := resilience.NewRetryer(resilience.RetryConfig{
		MaxAttempts:  cfg.RetryMaxAttempts,
		InitialDelay: cfg.RetryInitialDelay,
		MaxDelay:     cfg.RetryMaxDelay,
		Multiplier:   2,
	}, logging.Component(log, "retry"))
	breaker := resilience.NewBreaker("upstream", resilience.BreakerConfig{
		FailureThreshold: cfg.BreakerFailureThreshold,
		ResetTimeout:     cfg.BreakerResetTimeout,
	}, logging.Component(log, "breaker"))

	client := upstream.NewClient(cfg.UpstreamBaseURL, cfg.HTTPTimeout, tokens, retryer, breaker, logging.Component(log, "upstream"))

	// ── Sync engine ─────────────────────────────────────────────────────────
	collector := metrics.NewCollector()
	store := catalog.NewPostgresStore(pool)
	state := syncengine.NewRedisStateStore(rdb)
	locker := syncengine.NewRedisLocker(rdb)

	orchestrator := syncengine.NewOrchestrator(syncengine.Config{
		PageSize:        cfg.PageSize,
		InitialLookback: cfg.InitialLookback,
		LockTTL:         cfg.RunTimeout,
	}, client, store, state, locker, collector, logging.Component(log, "sync"))

	sched := scheduler.New(orchestrator, cfg.FullSyncSpec, cfg.IncrementalSyncSpec, cfg.RunTimeout, logging.Component(log, "scheduler"))
	if err := sched.Start(ctx); err != nil {
		mainLog.WithError(err).Fatal("scheduler start failed")
	}
	defer sched.Stop()

	// ── HTTP server ─────────────────────────────────────────────────────────
	processor := webhook.NewProcessor(cfg.WebhookSecret, store, logging.Component(log, "webhook"))
	hook := webhook.NewHandler(processor, collector)

	srv := server.New(cfg.Port, version, state, client, hook, collector, logging.Component(log, "http"))
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			mainLog.WithError(err).Fatal("http server error")
		}
	}()

	// ── Graceful shutdown ───────────────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	mainLog.Info("shutting down")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		mainLog.WithError(err).Warn("http shutdown error")
	}
	mainLog.Info("stopped")
}
