// Package scheduler wires up the cron entries that periodically trigger
// full and incremental sync runs.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	syncengine "medstaff/sync-service/internal/sync"
)

// Runner is the slice of the orchestrator the scheduler drives. Reports are
// logged and persisted by the orchestrator itself; the scheduler only cares
// about errors.
type Runner interface {
	RunFull(ctx context.Context) (syncengine.Report, error)
	RunIncremental(ctx context.Context) (syncengine.Report, error)
}

// Scheduler wraps robfig/cron and manages the two sync cadences.
type Scheduler struct {
	cron            *cron.Cron
	runner          Runner
	fullSpec        string
	incrementalSpec string
	runTimeout      time.Duration
	log             *logrus.Entry
}

func New(runner Runner, fullSpec, incrementalSpec string, runTimeout time.Duration, log *logrus.Entry) *Scheduler {
	return &Scheduler{
		cron:            cron.New(cron.WithLogger(cron.DiscardLogger)),
		runner:          runner,
		fullSpec:        fullSpec,
		incrementalSpec: incrementalSpec,
		runTimeout:      runTimeout,
		log:             log,
	}
}

// Start registers both cadences and starts the scheduler. Also runs one
// incremental sync immediately so the catalog catches up on changes missed
// while the service was down, without waiting for the first tick.
func (s *Scheduler) Start(ctx context.Context) error {
	if _, err := s.cron.AddFunc(s.fullSpec, func() { s.trigger(ctx, "full", s.runner.RunFull) }); err != nil {
		return fmt.Errorf("cron.AddFunc full: %w", err)
	}
	if _, err := s.cron.AddFunc(s.incrementalSpec, func() { s.trigger(ctx, "incremental", s.runner.RunIncremental) }); err != nil {
		return fmt.Errorf("cron.AddFunc incremental: %w", err)
	}

	s.cron.Start()
	s.log.WithFields(logrus.Fields{"full": s.fullSpec, "incremental": s.incrementalSpec}).Info("cron started")

	go s.trigger(ctx, "incremental", s.runner.RunIncremental)

	return nil
}

// Stop halts the cron loop; in-flight runs finish on their own context.
func (s *Scheduler) Stop() {
	s.cron.Stop()
	s.log.Info("cron stopped")
}

// trigger runs one sync under the per-run deadline. Run outcomes are already
// reported by the orchestrator, so failures are only logged here.
func (s *Scheduler) trigger(ctx context.Context, kind string, run func(context.Context) (syncengine.Report, error)) {
	runCtx, cancel := context.WithTimeout(ctx, s.runTimeout)
	defer cancel()

	if _, err := run(runCtx); err != nil {
		s.log.WithError(err).WithField("trigger", kind).Error("scheduled sync failed")
	}
}
