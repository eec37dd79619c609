package sync

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"medstaff/sync-service/internal/catalog"
	"medstaff/sync-service/internal/metrics"
	"medstaff/sync-service/internal/model"
	"medstaff/sync-service/internal/transform"
)

// Lister is the slice of the upstream client the orchestrator needs.
type Lister interface {
	ListJobs(ctx context.Context, page, pageSize int) ([]model.UpstreamJobPayload, bool, error)
	ListJobsUpdatedSince(ctx context.Context, since time.Time) ([]model.UpstreamJobPayload, error)
}

// Config tunes the orchestrator.
type Config struct {
	PageSize int
	// InitialLookback bounds the first incremental run when no watermark
	// exists yet.
	InitialLookback time.Duration
	// LockTTL caps how long a crashed run can block the next one.
	LockTTL time.Duration
}

func (c Config) withDefaults() Config {
	if c.PageSize <= 0 {
		c.PageSize = 100
	}
	if c.InitialLookback <= 0 {
		c.InitialLookback = 720 * time.Hour
	}
	if c.LockTTL <= 0 {
		c.LockTTL = 30 * time.Minute
	}
	return c
}

// Orchestrator coordinates full and incremental sync runs: fetch from
// upstream, transform, upsert into the catalog, and keep the watermark.
type Orchestrator struct {
	cfg     Config
	lister  Lister
	store   catalog.Store
	state   StateStore
	locker  Locker
	metrics *metrics.Collector
	log     *logrus.Entry
	now     func() time.Time
}

func NewOrchestrator(cfg Config, lister Lister, store catalog.Store, state StateStore, locker Locker, collector *metrics.Collector, log *logrus.Entry) *Orchestrator {
	return &Orchestrator{
		cfg:     cfg.withDefaults(),
		lister:  lister,
		store:   store,
		state:   state,
		locker:  locker,
		metrics: collector,
		log:     log,
		now:     time.Now,
	}
}

// RunFull re-pulls the entire upstream listing page by page. A paging error
// aborts the run; individual record failures are counted and skipped.
func (o *Orchestrator) RunFull(ctx context.Context) (Report, error) {
	return o.run(ctx, TriggerFull, func(ctx context.Context, rep *Report) error {
		for page := 1; ; page++ {
			if err := ctx.Err(); err != nil {
				return err
			}
			jobs, hasMore, err := o.lister.ListJobs(ctx, page, o.cfg.PageSize)
			if err != nil {
				return err
			}
			if err := o.processBatch(ctx, TriggerFull, jobs, rep); err != nil {
				return err
			}
			if !hasMore {
				return nil
			}
		}
	})
}

// RunIncremental pulls everything changed since the watermark. The watermark
// advances to the run's start instant only when the run finished with zero
// failures, so a record missed in a bad run is retried next time.
func (o *Orchestrator) RunIncremental(ctx context.Context) (Report, error) {
	return o.run(ctx, TriggerIncremental, func(ctx context.Context, rep *Report) error {
		since, err := o.state.Watermark(ctx)
		if err != nil {
			return err
		}
		if since.IsZero() {
			since = rep.StartedAt.Add(-o.cfg.InitialLookback)
			o.log.WithField("since", since).Info("no watermark yet, using initial lookback")
		}

		jobs, err := o.lister.ListJobsUpdatedSince(ctx, since)
		if err != nil {
			return err
		}
		return o.processBatch(ctx, TriggerIncremental, jobs, rep)
	})
}

func (o *Orchestrator) run(ctx context.Context, trigger Trigger, body func(context.Context, *Report) error) (Report, error) {
	rep := Report{
		ID:        uuid.New(),
		Trigger:   trigger,
		StartedAt: o.now().UTC(),
	}

	release, ok, err := o.locker.TryLock(ctx, o.cfg.LockTTL)
	if err != nil {
		rep.Status = RunFailed
		rep.FinishedAt = o.now().UTC()
		return rep, err
	}
	if !ok {
		rep.Status = RunSkipped
		rep.FinishedAt = o.now().UTC()
		o.log.WithFields(logrus.Fields{"run": rep.ID, "trigger": trigger}).Info("another sync run in progress, skipping")
		o.metrics.SyncRuns.WithLabelValues(string(trigger), string(RunSkipped)).Inc()
		return rep, nil
	}
	defer release()

	o.log.WithFields(logrus.Fields{"run": rep.ID, "trigger": trigger}).Info("sync run started")

	runErr := body(ctx, &rep)
	rep.FinishedAt = o.now().UTC()

	switch {
	case runErr != nil:
		rep.Status = RunFailed
	case rep.Failed > 0:
		rep.Status = RunPartial
	default:
		rep.Status = RunSuccess
	}

	o.finish(ctx, rep, runErr)
	return rep, runErr
}

// finish records run bookkeeping: metrics, the persisted report, and the
// watermark / last-full-sync markers on clean runs.
func (o *Orchestrator) finish(ctx context.Context, rep Report, runErr error) {
	o.metrics.SyncRuns.WithLabelValues(string(rep.Trigger), string(rep.Status)).Inc()
	o.metrics.RunDuration.WithLabelValues(string(rep.Trigger)).Observe(rep.FinishedAt.Sub(rep.StartedAt).Seconds())

	entry := o.log.WithFields(logrus.Fields{
		"run":      rep.ID,
		"trigger":  rep.Trigger,
		"status":   rep.Status,
		"synced":   rep.Synced,
		"failed":   rep.Failed,
		"duration": rep.FinishedAt.Sub(rep.StartedAt).String(),
	})
	if runErr != nil {
		entry.WithError(runErr).Error("sync run aborted")
	} else {
		entry.Info("sync run finished")
	}

	// Bookkeeping failures are logged, never surfaced: the run's own outcome
	// already stands.
	if err := o.state.SetLastReport(ctx, rep); err != nil {
		o.log.WithError(err).Warn("persist run report failed")
	}
	if rep.Status != RunSuccess {
		return
	}
	if err := o.state.SetWatermark(ctx, rep.StartedAt); err != nil {
		o.log.WithError(err).Warn("advance watermark failed")
	}
	if rep.Trigger == TriggerFull {
		if err := o.state.SetLastFullSync(ctx, rep.StartedAt); err != nil {
			o.log.WithError(err).Warn("record last full sync failed")
		}
	}
}

// processBatch transforms and upserts one batch. A record that fails to
// transform or upsert is counted and skipped; only a store-level outage
// (catalog.ErrUnavailable) or cancellation aborts the batch.
func (o *Orchestrator) processBatch(ctx context.Context, trigger Trigger, jobs []model.UpstreamJobPayload, rep *Report) error {
	syncedAt := o.now().UTC()
	for _, payload := range jobs {
		if err := ctx.Err(); err != nil {
			return err
		}

		rec, err := transform.Job(payload, syncedAt)
		if err != nil {
			rep.Failed++
			o.metrics.RecordsFailed.WithLabelValues(string(trigger)).Inc()
			o.log.WithError(err).WithField("upstream_id", payload.ID).Warn("transform failed, record skipped")
			continue
		}

		if _, err := o.store.Upsert(ctx, rec); err != nil {
			if errors.Is(err, catalog.ErrUnavailable) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return err
			}
			rep.Failed++
			o.metrics.RecordsFailed.WithLabelValues(string(trigger)).Inc()
			o.log.WithError(err).WithField("upstream_id", rec.UpstreamID).Warn("upsert failed, record skipped")
			continue
		}

		rep.Synced++
		o.metrics.RecordsSynced.WithLabelValues(string(trigger)).Inc()
	}
	return nil
}
