// Package pipeline ties the source aggregator, AI enhancer, fusion engine,
// quality engine, store, cache and queue together into the service the CLI,
// HTTP API and event consumer call.
package pipeline

import (
	"context"
	"io"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/lexicon-cli/internal/cache"
	"github.com/sells-group/lexicon-cli/internal/config"
	"github.com/sells-group/lexicon-cli/internal/fusion"
	"github.com/sells-group/lexicon-cli/internal/metrics"
	"github.com/sells-group/lexicon-cli/internal/model"
	"github.com/sells-group/lexicon-cli/internal/quality"
	"github.com/sells-group/lexicon-cli/internal/queue"
	"github.com/sells-group/lexicon-cli/internal/store"
)

// Aggregator gathers source records for a word.
type Aggregator interface {
	Aggregate(ctx context.Context, word string) ([]*model.SourceRecord, error)
}

// Enhancer fills missing fields of a profile. A nil record means it had
// nothing to add.
type Enhancer interface {
	Enhance(ctx context.Context, p *model.WordProfile, missing []string) *model.SourceRecord
}

// Publisher announces profile writes.
type Publisher interface {
	PublishProfileUpdated(ctx context.Context, p *model.WordProfile) error
}

// Pipeline is the enrichment service.
type Pipeline struct {
	cfg       *config.Config
	store     store.Store
	agg       Aggregator
	enhancer  Enhancer
	fusion    *fusion.Engine
	quality   *quality.Engine
	queue     *queue.Processor
	cache     cache.Cache
	profiles  *cache.ReadThrough[*model.WordProfile]
	searches  *cache.ReadThrough[[]model.WordProfile]
	publisher Publisher
	notifier  queue.Notifier
	metrics   *metrics.Metrics
	words     *wordLocks
	now       func() time.Time
	log       *zap.Logger

	profileTTL time.Duration
	searchTTL  time.Duration
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithEnhancer enables AI enhancement of fields no source supplied.
func WithEnhancer(e Enhancer) Option {
	return func(p *Pipeline) { p.enhancer = e }
}

// WithCache sets the read cache. The default is an in-memory cache.
func WithCache(c cache.Cache) Option {
	return func(p *Pipeline) { p.cache = c }
}

// WithPublisher sets the profile event publisher.
func WithPublisher(pub Publisher) Option {
	return func(p *Pipeline) { p.publisher = pub }
}

// WithNotifier sets the notifier told about permanently failed queue items.
func WithNotifier(n queue.Notifier) Option {
	return func(p *Pipeline) { p.notifier = n }
}

// WithMetrics records pipeline, cache and queue metrics on m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(p *Pipeline) { p.metrics = m }
}

// WithNow overrides the clock.
func WithNow(now func() time.Time) Option {
	return func(p *Pipeline) { p.now = now }
}

// New builds a Pipeline over st and agg. The store stays owned by the
// caller; the cache and publisher are closed by Close.
func New(cfg *config.Config, st store.Store, agg Aggregator, opts ...Option) (*Pipeline, error) {
	if cfg == nil {
		return nil, eris.New("pipeline: nil config")
	}
	if st == nil || agg == nil {
		return nil, eris.New("pipeline: store and aggregator are required")
	}

	p := &Pipeline{
		cfg:   cfg,
		store: st,
		agg:   agg,
		words: newWordLocks(),
		now:   time.Now,
		log:   zap.L().With(zap.String("component", "pipeline")),
	}
	for _, o := range opts {
		o(p)
	}
	if p.cache == nil {
		p.cache = cache.NewMemory(cache.WithClock(p.now))
	}

	qe, err := quality.New(cfg.Quality,
		quality.WithRefetcher(agg),
		quality.WithNow(p.now),
	)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: quality engine")
	}
	p.quality = qe
	p.fusion = fusion.New(cfg.Fusion)

	qopts := []queue.Option{queue.WithNow(p.now), queue.WithMetrics(p.metrics)}
	if p.notifier != nil {
		qopts = append(qopts, queue.WithNotifier(p.notifier))
	}
	p.queue = queue.New(st, p.runQueueItem, cfg.Queue, qopts...)

	p.profiles = cache.NewReadThrough[*model.WordProfile](p.cache, cache.KeyspaceProfile, p.metrics)
	p.searches = cache.NewReadThrough[[]model.WordProfile](p.cache, cache.KeyspaceSearch, p.metrics)
	p.profileTTL = config.DurationOr(cfg.Cache.ProfileTTL, 60*time.Minute)
	p.searchTTL = config.DurationOr(cfg.Cache.SearchTTL, 15*time.Minute)

	return p, nil
}

// Start warms the search cache with the configured common queries.
func (p *Pipeline) Start(ctx context.Context) error {
	warmed := p.WarmSearch(ctx)
	p.log.Info("pipeline: started", zap.Int("warmed_queries", warmed))
	return ctx.Err()
}

// Close releases the cache and the publisher.
func (p *Pipeline) Close() error {
	var errs []error
	if p.publisher != nil {
		if c, ok := p.publisher.(io.Closer); ok {
			if err := c.Close(); err != nil {
				errs = append(errs, err)
			}
		}
	}
	if err := p.cache.Close(); err != nil {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		return eris.Wrapf(errs[0], "pipeline: close (%d errors)", len(errs))
	}
	return nil
}

// trackPhase times one enrichment phase and logs its outcome.
func trackPhase(log *zap.Logger, name string, fn func() error) error {
	start := time.Now()
	err := fn()
	duration := time.Since(start).Milliseconds()
	if err != nil {
		log.Warn("pipeline: phase failed",
			zap.String("phase", name),
			zap.Int64("duration_ms", duration),
			zap.Error(err),
		)
		return err
	}
	log.Debug("pipeline: phase complete",
		zap.String("phase", name),
		zap.Int64("duration_ms", duration),
	)
	return nil
}

// invalidate drops every cached view of the profile.
func (p *Pipeline) invalidate(ctx context.Context, wp *model.WordProfile) {
	if _, err := p.profiles.Invalidate(ctx, cache.ProfileKeys(wp)...); err != nil {
		p.log.Warn("pipeline: cache invalidate failed", zap.String("word", wp.Word), zap.Error(err))
	}
	if _, err := p.searches.Invalidate(ctx, cache.SearchPattern); err != nil {
		p.log.Warn("pipeline: cache invalidate failed", zap.String("key", cache.SearchPattern), zap.Error(err))
	}
}

func (p *Pipeline) publish(ctx context.Context, wp *model.WordProfile) {
	if p.publisher == nil {
		return
	}
	if err := p.publisher.PublishProfileUpdated(ctx, wp); err != nil {
		p.log.Warn("pipeline: publish profile update failed", zap.String("word", wp.Word), zap.Error(err))
	}
}

// persist writes the profile and its audit in one transaction, then
// invalidates caches and announces the change.
func (p *Pipeline) persist(ctx context.Context, wp *model.WordProfile, report *model.QualityReport) error {
	if err := p.store.SaveEnrichment(ctx, wp, report); err != nil {
		return eris.Wrap(err, "pipeline: save enrichment")
	}
	p.invalidate(ctx, wp)
	p.publish(ctx, wp)
	return nil
}
