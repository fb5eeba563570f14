// Package maintenance runs the periodic housekeeping jobs of a serving
// process on a cron schedule: cache sweep, stale-audit cleanup, search
// warmup and queue draining.
package maintenance

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/lexicon-cli/internal/config"
	"github.com/sells-group/lexicon-cli/internal/queue"
)

// Service is the work the scheduler triggers.
type Service interface {
	SweepCache(ctx context.Context) int
	PruneAudits(ctx context.Context, retentionDays int) (int, error)
	WarmSearch(ctx context.Context) int
	ProcessQueue(ctx context.Context, maxItems int) (queue.ProcessSummary, error)
}

// Job names.
const (
	JobCacheSweep   = "cache_sweep"
	JobAuditCleanup = "audit_cleanup"
	JobCacheWarmup  = "cache_warmup"
	JobQueueDrain   = "queue_drain"
)

const jobTimeout = 10 * time.Minute

// Scheduler owns a cron runner. Jobs never overlap with themselves.
type Scheduler struct {
	cron          *cron.Cron
	svc           Service
	retentionDays int
	drainBatch    int
	jobs          map[string]func(context.Context)
	ctx           context.Context
	cancel        context.CancelFunc
	log           *zap.Logger
}

// New registers the jobs whose schedules are set in cfg. An empty schedule
// disables that job. The queue is drained every queueCfg.PollInterval when
// it is set.
func New(svc Service, cfg config.MaintenanceConfig, queueCfg config.QueueConfig) (*Scheduler, error) {
	log := zap.L().With(zap.String("component", "maintenance"))
	cl := cronLogger{log: log.Sugar()}
	s := &Scheduler{
		cron:          cron.New(cron.WithLogger(cl), cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl))),
		svc:           svc,
		retentionDays: cfg.AuditRetentionDays,
		drainBatch:    queueCfg.BatchSize,
		jobs:          make(map[string]func(context.Context)),
		log:           log,
	}
	if s.retentionDays <= 0 {
		s.retentionDays = 90
	}
	if s.drainBatch <= 0 {
		s.drainBatch = 25
	}
	s.ctx, s.cancel = context.WithCancel(context.Background())

	drain := ""
	if queueCfg.PollInterval != "" {
		drain = "@every " + queueCfg.PollInterval
	}
	schedules := []struct {
		name string
		spec string
		fn   func(context.Context)
	}{
		{JobCacheSweep, cfg.CacheSweep, s.sweepCache},
		{JobAuditCleanup, cfg.AuditCleanup, s.cleanupAudits},
		{JobCacheWarmup, cfg.CacheWarmup, s.warmCache},
		{JobQueueDrain, drain, s.drainQueue},
	}

	var errs []string
	for _, sc := range schedules {
		if strings.TrimSpace(sc.spec) == "" {
			continue
		}
		if err := s.add(sc.name, sc.spec, sc.fn); err != nil {
			errs = append(errs, err.Error())
		}
	}
	if len(errs) > 0 {
		s.cancel()
		return nil, eris.Errorf("maintenance: invalid schedule: %s", strings.Join(errs, "; "))
	}
	return s, nil
}

func (s *Scheduler) add(name, spec string, fn func(context.Context)) error {
	_, err := s.cron.AddFunc(spec, func() {
		s.run(name, fn)
	})
	if err != nil {
		return eris.Wrapf(err, "%s %q", name, spec)
	}
	s.jobs[name] = fn
	return nil
}

// Jobs returns the names of the registered jobs.
func (s *Scheduler) Jobs() []string {
	names := make([]string, 0, len(s.jobs))
	for _, n := range []string{JobCacheSweep, JobAuditCleanup, JobCacheWarmup, JobQueueDrain} {
		if _, ok := s.jobs[n]; ok {
			names = append(names, n)
		}
	}
	return names
}

// RunNow runs a registered job synchronously.
func (s *Scheduler) RunNow(name string) error {
	fn, ok := s.jobs[name]
	if !ok {
		return eris.Errorf("maintenance: unknown job %q", name)
	}
	s.run(name, fn)
	return nil
}

// Start begins running jobs in the background.
func (s *Scheduler) Start() {
	s.log.Info("maintenance: scheduler started", zap.Strings("jobs", s.Jobs()))
	s.cron.Start()
}

// Shutdown stops scheduling, cancels running jobs and waits for them to
// return or for ctx to end.
func (s *Scheduler) Shutdown(ctx context.Context) error {
	s.cancel()
	done := s.cron.Stop()
	select {
	case <-done.Done():
		s.log.Info("maintenance: scheduler stopped")
		return nil
	case <-ctx.Done():
		return eris.Wrap(ctx.Err(), "maintenance: shutdown")
	}
}

func (s *Scheduler) run(name string, fn func(context.Context)) {
	ctx, cancel := context.WithTimeout(s.ctx, jobTimeout)
	defer cancel()
	start := time.Now()
	fn(ctx)
	s.log.Debug("maintenance: job finished",
		zap.String("job", name),
		zap.Int64("duration_ms", time.Since(start).Milliseconds()),
	)
}

func (s *Scheduler) sweepCache(ctx context.Context) {
	n := s.svc.SweepCache(ctx)
	s.log.Info("maintenance: cache swept", zap.Int("removed", n))
}

func (s *Scheduler) cleanupAudits(ctx context.Context) {
	n, err := s.svc.PruneAudits(ctx, s.retentionDays)
	if err != nil {
		s.log.Error("maintenance: audit cleanup failed", zap.Error(err))
		return
	}
	s.log.Info("maintenance: audits pruned", zap.Int("removed", n), zap.Int("retention_days", s.retentionDays))
}

func (s *Scheduler) warmCache(ctx context.Context) {
	n := s.svc.WarmSearch(ctx)
	s.log.Info("maintenance: search cache warmed", zap.Int("queries", n))
}

func (s *Scheduler) drainQueue(ctx context.Context) {
	sum, err := s.svc.ProcessQueue(ctx, s.drainBatch)
	switch {
	case errors.Is(err, queue.ErrDrainInProgress):
		s.log.Debug("maintenance: queue drain already running")
	case err != nil:
		s.log.Error("maintenance: queue drain failed", zap.Error(err))
	case sum.Processed > 0:
		s.log.Info("maintenance: queue drained",
			zap.Int("processed", sum.Processed),
			zap.Int("completed", sum.Completed),
			zap.Int("retried", sum.Retried),
			zap.Int("failed", sum.Failed),
		)
	}
}

// cronLogger adapts zap to cron.Logger.
type cronLogger struct {
	log *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debugw("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Errorw("cron: "+msg, append(keysAndValues, "error", err)...)
}
