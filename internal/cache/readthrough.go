package cache

import (
	"context"
	"encoding/json"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/sells-group/lexicon-cli/internal/metrics"
)

// ReadThrough stores JSON-encoded values of type T in a Cache and fills
// misses from a compute function. Concurrent misses on one key share a
// single computation. Invalidate bumps a generation so that a computation
// which started before the invalidation never stores its result.
type ReadThrough[T any] struct {
	cache    Cache
	keyspace string
	metrics  *metrics.Metrics
	group    singleflight.Group

	genMu sync.RWMutex
	gen   uint64

	hits     atomic.Int64
	misses   atomic.Int64
	log      *zap.Logger
}

// NewReadThrough wraps c for values of one keyspace. m may be nil.
func NewReadThrough[T any](c Cache, keyspace string, m *metrics.Metrics) *ReadThrough[T] {
	return &ReadThrough[T]{
		cache:    c,
		keyspace: keyspace,
		metrics:  m,
		log:      zap.L().With(zap.String("component", "cache"), zap.String("keyspace", keyspace)),
	}
}

// Get returns the cached value for key. Backend and decode errors count as
// misses.
func (r *ReadThrough[T]) Get(ctx context.Context, key string) (T, bool) {
	var v T
	data, ok, err := r.cache.Get(ctx, key)
	switch {
	case err != nil:
		r.log.Warn("cache get failed", zap.String("key", key), zap.Error(err))
	case ok:
		derr := json.Unmarshal(data, &v)
		if derr == nil {
			r.record(true)
			return v, true
		}
		r.log.Warn("cache decode failed", zap.String("key", key), zap.Error(derr))
	}
	r.record(false)
	var zero T
	return zero, false
}

// Set stores v under key. Failures are logged, never returned.
func (r *ReadThrough[T]) Set(ctx context.Context, key string, v T, ttl time.Duration) {
	data, err := json.Marshal(v)
	if err != nil {
		r.log.Warn("cache encode failed", zap.String("key", key), zap.Error(err))
		return
	}
	if err := r.cache.Set(ctx, key, data, ttl); err != nil {
		r.log.Warn("cache set failed", zap.String("key", key), zap.Error(err))
	}
}

// GetOrCompute returns the cached value or computes, stores and returns it.
// hit reports whether the value came from the cache. Compute errors are
// returned and nothing is stored. A result is dropped instead of stored when
// Invalidate ran while it was being computed.
func (r *ReadThrough[T]) GetOrCompute(ctx context.Context, key string, ttl time.Duration, fn func(context.Context) (T, error)) (v T, hit bool, err error) {
	if v, ok := r.Get(ctx, key); ok {
		return v, true, nil
	}
	start := r.generation()
	// Callers arriving after an invalidation must not join a flight that
	// began before it.
	flight := key + "#" + strconv.FormatUint(start, 10)
	res, err, _ := r.group.Do(flight, func() (any, error) {
		v, err := fn(ctx)
		if err != nil {
			return v, err
		}
		r.genMu.RLock()
		if r.gen == start {
			r.Set(ctx, key, v, ttl)
		} else {
			r.log.Debug("cache set skipped after invalidation", zap.String("key", key))
		}
		r.genMu.RUnlock()
		return v, nil
	})
	if err != nil {
		var zero T
		return zero, false, err
	}
	return res.(T), false, nil
}

// Invalidate removes every key matching the glob patterns and prevents
// computations already in flight from storing their results. It returns the
// number of keys removed.
func (r *ReadThrough[T]) Invalidate(ctx context.Context, patterns ...string) (int, error) {
	r.genMu.Lock()
	r.gen++
	r.genMu.Unlock()

	total := 0
	for _, pattern := range patterns {
		n, err := r.cache.Invalidate(ctx, pattern)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

func (r *ReadThrough[T]) generation() uint64 {
	r.genMu.RLock()
	defer r.genMu.RUnlock()
	return r.gen
}

// Stats returns the hit and miss counts since creation.
func (r *ReadThrough[T]) Stats() (hits, misses int64) {
	return r.hits.Load(), r.misses.Load()
}

func (r *ReadThrough[T]) record(hit bool) {
	if hit {
		r.hits.Add(1)
	} else {
		r.misses.Add(1)
	}
	r.metrics.ObserveCache(r.keyspace, hit)
}
