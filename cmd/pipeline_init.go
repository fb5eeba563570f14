package main

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/lexicon-cli/internal/cache"
	"github.com/sells-group/lexicon-cli/internal/enhance"
	"github.com/sells-group/lexicon-cli/internal/events"
	"github.com/sells-group/lexicon-cli/internal/fetcher"
	"github.com/sells-group/lexicon-cli/internal/metrics"
	"github.com/sells-group/lexicon-cli/internal/notify"
	"github.com/sells-group/lexicon-cli/internal/pipeline"
	"github.com/sells-group/lexicon-cli/internal/resilience"
	"github.com/sells-group/lexicon-cli/internal/source"
	"github.com/sells-group/lexicon-cli/internal/store"
	anthropicpkg "github.com/sells-group/lexicon-cli/pkg/anthropic"
)

// pipelineEnv holds the store, metrics and pipeline shared by every command.
type pipelineEnv struct {
	Store    store.Store
	Pipeline *pipeline.Pipeline
	Metrics  *metrics.Metrics
}

// Close releases resources held by the pipeline environment.
func (pe *pipelineEnv) Close() {
	if pe.Pipeline != nil {
		if err := pe.Pipeline.Close(); err != nil {
			zap.L().Warn("close pipeline", zap.Error(err))
		}
	}
	if pe.Store != nil {
		_ = pe.Store.Close()
	}
}

// initPipeline opens and migrates the store, builds the source adapters,
// optional enhancer, cache, event producer and alerting, and assembles the
// Pipeline. Callers should defer env.Close().
func initPipeline(ctx context.Context, mode string) (*pipelineEnv, error) {
	if err := cfg.Validate(mode); err != nil {
		return nil, err
	}

	st, err := store.Open(ctx, cfg.Store)
	if err != nil {
		return nil, eris.Wrap(err, "open store")
	}

	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}

	m := metrics.New(prometheus.NewRegistry())

	breakerCfg := resilience.DefaultBreakerConfig()
	breakerCfg.OnStateChange = func(name string, to resilience.CircuitState) {
		m.SetBreakerState(name, int(to))
	}
	doer := fetcher.NewHTTPFetcher(fetcher.HTTPOptions{
		UserAgent:  cfg.Sources.UserAgent,
		Timeout:    cfg.Sources.Timeout(),
		MaxRetries: cfg.Sources.MaxRetries,
		Rate:       cfg.Sources.RateLimit,
		Breakers:   resilience.NewBreakers(breakerCfg),
	})

	sources, err := source.BuildRegistry(cfg.Sources, doer)
	if err != nil {
		_ = st.Close()
		return nil, err
	}
	agg := source.NewAggregator(sources, cfg.Sources.Timeout(), m)

	opts := []pipeline.Option{pipeline.WithMetrics(m)}

	if cfg.Anthropic.Key != "" {
		client := anthropicpkg.NewClient(cfg.Anthropic.Key)
		opts = append(opts, pipeline.WithEnhancer(enhance.New(client, cfg.Anthropic)))
		zap.L().Info("ai enhancement enabled", zap.String("model", cfg.Anthropic.Model))
	} else {
		zap.L().Debug("LEXICON_ANTHROPIC_KEY not set, ai enhancement disabled")
	}

	c, err := cache.New(ctx, cfg.Cache)
	if err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "init cache")
	}
	opts = append(opts, pipeline.WithCache(c))

	if len(cfg.Kafka.Brokers) > 0 {
		producer, perr := events.NewProducer(cfg.Kafka)
		if perr != nil {
			_ = c.Close()
			_ = st.Close()
			return nil, perr
		}
		opts = append(opts, pipeline.WithPublisher(producer))
		zap.L().Info("profile events enabled", zap.String("topic", cfg.Kafka.UpdatedTopic))
	}

	if cfg.Slack.WebhookURL != "" {
		slack, serr := notify.NewSlack(cfg.Slack, st)
		if serr != nil {
			_ = c.Close()
			_ = st.Close()
			return nil, serr
		}
		opts = append(opts, pipeline.WithNotifier(slack))
	}

	p, err := pipeline.New(cfg, st, agg, opts...)
	if err != nil {
		_ = c.Close()
		_ = st.Close()
		return nil, err
	}

	zap.L().Info("pipeline ready",
		zap.Strings("sources", sources.List()),
		zap.String("store", cfg.Store.Driver),
		zap.String("cache", cfg.Cache.Backend),
	)

	return &pipelineEnv{
		Store:    st,
		Pipeline: p,
		Metrics:  m,
	}, nil
}
