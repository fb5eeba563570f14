// Package queue schedules background re-enrichment of word profiles through
// a persisted priority queue with bounded retries.
package queue

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/lexicon-cli/internal/config"
	"github.com/sells-group/lexicon-cli/internal/metrics"
	"github.com/sells-group/lexicon-cli/internal/model"
	"github.com/sells-group/lexicon-cli/internal/resilience"
	"github.com/sells-group/lexicon-cli/internal/store"
)

// ErrDrainInProgress is returned by ProcessQueue when another drain is running.
var ErrDrainInProgress = errors.New("queue: drain already in progress")

const (
	maxErrorMessageLen = 500
	// settleTimeout bounds outcome writes, which run detached from the
	// drain context so that shutdown never strands an item in processing.
	settleTimeout = 10 * time.Second
)

// Store is the subset of store.Store used by the processor.
type Store interface {
	InsertQueueItem(ctx context.Context, item *model.QueueItem) error
	PendingItemForProfile(ctx context.Context, profileID string) (*model.QueueItem, error)
	UpdateQueueItem(ctx context.Context, item *model.QueueItem) error
	ClaimNextQueueItem(ctx context.Context, now time.Time) (*model.QueueItem, error)
	ReclaimStaleQueueItems(ctx context.Context, startedBefore, now time.Time) (int, error)
	ListQueueItems(ctx context.Context, filter store.QueueFilter) ([]model.QueueItem, error)
	QueueStats(ctx context.Context) (*model.QueueStats, error)
}

// JobFunc runs the work for one claimed item. A non-nil error counts as a
// failed attempt.
type JobFunc func(ctx context.Context, item *model.QueueItem) error

// Notifier is told about items that failed permanently.
type Notifier interface {
	NotifyFailed(ctx context.Context, item *model.QueueItem) error
}

// ProcessSummary counts what one drain actually did.
type ProcessSummary struct {
	Processed int `json:"processed"`
	Completed int `json:"completed"`
	Retried   int `json:"retried"`
	Failed    int `json:"failed"`
}

// Processor drains the enrichment queue one item at a time.
type Processor struct {
	store           Store
	job             JobFunc
	policy          resilience.RequeuePolicy
	defaultPriority int
	batchSize       int
	lease           time.Duration
	notifier        Notifier
	metrics         *metrics.Metrics
	now             func() time.Time
	draining        atomic.Bool
	log             *zap.Logger
}

// Option configures a Processor.
type Option func(*Processor)

// WithNotifier sets the permanent-failure notifier.
func WithNotifier(n Notifier) Option {
	return func(p *Processor) { p.notifier = n }
}

// WithMetrics records item outcomes on m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(p *Processor) { p.metrics = m }
}

// WithNow overrides the clock.
func WithNow(now func() time.Time) Option {
	return func(p *Processor) { p.now = now }
}

// New creates a Processor that runs job for every claimed item.
func New(s Store, job JobFunc, cfg config.QueueConfig, opts ...Option) *Processor {
	p := &Processor{
		store:           s,
		job:             job,
		policy:          resilience.NewRequeuePolicy(cfg),
		defaultPriority: cfg.DefaultPriority,
		batchSize:       cfg.BatchSize,
		lease:           config.DurationOr(cfg.Lease, 15*time.Minute),
		now:             time.Now,
		log:             zap.L().With(zap.String("component", "queue")),
	}
	if p.policy.MaxRetries <= 0 {
		p.policy.MaxRetries = 3
	}
	if p.defaultPriority <= 0 {
		p.defaultPriority = 1
	}
	if p.batchSize <= 0 {
		p.batchSize = 25
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Enqueue schedules a profile for enrichment. An existing pending item for
// the same profile is reused and its priority raised to the larger of the two.
func (p *Processor) Enqueue(ctx context.Context, profileID string, priority int) (*model.QueueItem, error) {
	if profileID == "" {
		return nil, eris.New("queue: enqueue: empty profile id")
	}
	if priority <= 0 {
		priority = p.defaultPriority
	}

	existing, err := p.store.PendingItemForProfile(ctx, profileID)
	if err != nil {
		return nil, eris.Wrapf(err, "queue: lookup pending item for %s", profileID)
	}
	if existing != nil {
		if priority > existing.Priority {
			existing.Priority = priority
			if err := p.store.UpdateQueueItem(ctx, existing); err != nil {
				return nil, eris.Wrapf(err, "queue: raise priority of %s", existing.ID)
			}
		}
		return existing, nil
	}

	now := p.now().UTC()
	item := &model.QueueItem{
		WordProfileID: profileID,
		Priority:      priority,
		Status:        model.QueueStatusPending,
		MaxRetries:    p.policy.MaxRetries,
		CreatedAt:     now,
		AvailableAt:   now,
	}
	if err := p.store.InsertQueueItem(ctx, item); err != nil {
		return nil, eris.Wrapf(err, "queue: insert item for %s", profileID)
	}
	p.log.Debug("enqueued", zap.String("item_id", item.ID), zap.String("profile_id", profileID), zap.Int("priority", priority))
	return item, nil
}

// ProcessQueue claims and runs up to maxItems available items. maxItems <= 0
// uses the configured batch size. Only one drain runs at a time. Items left
// processing for longer than the lease are returned to pending first.
func (p *Processor) ProcessQueue(ctx context.Context, maxItems int) (ProcessSummary, error) {
	var sum ProcessSummary
	if !p.draining.CompareAndSwap(false, true) {
		return sum, ErrDrainInProgress
	}
	defer p.draining.Store(false)

	if maxItems <= 0 {
		maxItems = p.batchSize
	}

	now := p.now().UTC()
	reclaimed, err := p.store.ReclaimStaleQueueItems(ctx, now.Add(-p.lease), now)
	if err != nil {
		return sum, eris.Wrap(err, "queue: reclaim stale items")
	}
	if reclaimed > 0 {
		p.log.Warn("reclaimed stale items", zap.Int("count", reclaimed), zap.Duration("lease", p.lease))
	}

	for sum.Processed < maxItems {
		if ctx.Err() != nil {
			break
		}
		item, err := p.store.ClaimNextQueueItem(ctx, p.now().UTC())
		if err != nil {
			return sum, eris.Wrap(err, "queue: claim next item")
		}
		if item == nil {
			break
		}

		log := p.log.With(zap.String("item_id", item.ID), zap.String("profile_id", item.WordProfileID))
		jobErr := p.job(ctx, item)

		// Shutdown mid-job does not count as an attempt.
		if jobErr != nil && ctx.Err() != nil {
			if err := p.release(ctx, item); err != nil {
				log.Warn("release interrupted item", zap.Error(err))
			}
			break
		}

		sum.Processed++
		outcome, err := p.settle(ctx, item, jobErr)
		if err != nil {
			return sum, err
		}
		switch outcome {
		case "completed":
			sum.Completed++
		case "retried":
			sum.Retried++
			log.Warn("item failed, requeued",
				zap.Int("attempt", item.RetryCount),
				zap.Time("available_at", item.AvailableAt),
				zap.String("error_class", resilience.ClassifyError(jobErr)),
				zap.Error(jobErr),
			)
		case "failed":
			sum.Failed++
			log.Error("item failed permanently",
				zap.Int("attempt", item.RetryCount),
				zap.String("error_class", resilience.ClassifyError(jobErr)),
				zap.Error(jobErr),
			)
			p.notify(ctx, item)
		}
		p.metrics.ObserveQueueItem(outcome)
	}

	if sum.Processed > 0 {
		p.log.Info("queue drain complete",
			zap.Int("processed", sum.Processed),
			zap.Int("completed", sum.Completed),
			zap.Int("retried", sum.Retried),
			zap.Int("failed", sum.Failed),
		)
	}
	return sum, nil
}

// settle persists the outcome of one attempt and returns its label. The
// write survives cancellation of ctx.
func (p *Processor) settle(ctx context.Context, item *model.QueueItem, jobErr error) (string, error) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), settleTimeout)
	defer cancel()

	now := p.now().UTC()
	outcome := "completed"

	if jobErr == nil {
		item.Status = model.QueueStatusCompleted
		item.ErrorMessage = ""
		item.CompletedAt = &now
	} else {
		d := p.policy.Next(item.RetryCount, item.MaxRetries, now)
		item.RetryCount = d.RetryCount
		item.ErrorMessage = truncate(jobErr.Error(), maxErrorMessageLen)
		if d.Retry {
			outcome = "retried"
			item.Status = model.QueueStatusPending
			item.AvailableAt = d.AvailableAt
			item.StartedAt = nil
		} else {
			outcome = "failed"
			if item.MaxRetries <= 0 {
				item.MaxRetries = d.RetryCount
			}
			item.Status = model.QueueStatusFailed
			item.CompletedAt = &now
		}
	}

	if err := p.store.UpdateQueueItem(ctx, item); err != nil {
		return "", eris.Wrapf(err, "queue: update item %s", item.ID)
	}
	return outcome, nil
}

// release puts an interrupted item back to pending without counting a retry.
func (p *Processor) release(ctx context.Context, item *model.QueueItem) error {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), settleTimeout)
	defer cancel()
	item.Status = model.QueueStatusPending
	item.StartedAt = nil
	return p.store.UpdateQueueItem(ctx, item)
}

func (p *Processor) notify(ctx context.Context, item *model.QueueItem) {
	if p.notifier == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), settleTimeout)
	defer cancel()
	if err := p.notifier.NotifyFailed(ctx, item); err != nil {
		p.log.Warn("notify failed item", zap.String("item_id", item.ID), zap.Error(err))
	}
}

// List returns queue items, optionally filtered by status.
func (p *Processor) List(ctx context.Context, status model.QueueStatus, limit int) ([]model.QueueItem, error) {
	if status != "" && !status.IsValid() {
		return nil, eris.Errorf("queue: invalid status %q", status)
	}
	items, err := p.store.ListQueueItems(ctx, store.QueueFilter{Status: status, Limit: limit})
	return items, eris.Wrap(err, "queue: list items")
}

// Stats returns counts by status.
func (p *Processor) Stats(ctx context.Context) (*model.QueueStats, error) {
	st, err := p.store.QueueStats(ctx)
	return st, eris.Wrap(err, "queue: stats")
}

// Draining reports whether a drain is in progress.
func (p *Processor) Draining() bool {
	return p.draining.Load()
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
