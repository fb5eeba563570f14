package source

import (
	"context"
	"errors"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/lexicon-cli/internal/metrics"
	"github.com/sells-group/lexicon-cli/internal/model"
)

// Aggregator fans a word out to every registered adapter.
type Aggregator struct {
	registry *Registry
	timeout  time.Duration
	metrics  *metrics.Metrics
	log      *zap.Logger
}

// NewAggregator creates an aggregator. Each adapter call is bounded by timeout.
func NewAggregator(registry *Registry, timeout time.Duration, m *metrics.Metrics) *Aggregator {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Aggregator{
		registry: registry,
		timeout:  timeout,
		metrics:  m,
		log:      zap.L().With(zap.String("component", "aggregator")),
	}
}

// Sources returns the names of the adapters taking part.
func (a *Aggregator) Sources() []string {
	return a.registry.List()
}

// Aggregate calls every adapter concurrently and waits for all of them to
// settle. Failed and timed-out adapters are dropped. Records come back
// cleaned, in no particular order. A *NoSourceDataError is returned only when
// no adapter yields a record.
func (a *Aggregator) Aggregate(ctx context.Context, word string) ([]*model.SourceRecord, error) {
	word = model.NormalizeWord(word)
	adapters := a.registry.all()
	results := make([]*model.SourceRecord, len(adapters))

	var g errgroup.Group
	for i, ad := range adapters {
		g.Go(func() error {
			results[i] = a.fetchOne(ctx, ad, word)
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, eris.Wrapf(err, "source: aggregate %q", word)
	}

	records := make([]*model.SourceRecord, 0, len(results))
	for _, r := range results {
		if r != nil {
			records = append(records, r)
		}
	}
	if len(records) == 0 {
		return nil, &NoSourceDataError{Word: word, Attempted: a.registry.List()}
	}
	return records, nil
}

func (a *Aggregator) fetchOne(ctx context.Context, ad Adapter, word string) *model.SourceRecord {
	name := ad.Name()
	start := time.Now()
	cctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	rec, err := ad.Fetch(cctx, word)
	elapsed := time.Since(start)

	switch {
	case err != nil && errors.Is(err, ErrNotFound):
		a.metrics.ObserveSource(name, "absent", elapsed)
		a.log.Debug("source has no entry", zap.String("source", name), zap.String("word", word))
		return nil
	case err != nil:
		a.metrics.ObserveSource(name, "error", elapsed)
		a.log.Warn("source fetch failed",
			zap.String("source", name),
			zap.String("word", word),
			zap.Duration("elapsed", elapsed),
			zap.Error(err),
		)
		return nil
	case rec == nil:
		a.metrics.ObserveSource(name, "absent", elapsed)
		return nil
	}

	a.metrics.ObserveSource(name, "ok", elapsed)
	rec.Data = rec.Data.Clean()
	if rec.SourceName == "" {
		rec.SourceName = name
	}
	return rec
}
