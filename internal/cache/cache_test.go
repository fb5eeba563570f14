package cache

import (
	"context"
	"errors"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/lexicon-cli/internal/config"
	"github.com/sells-group/lexicon-cli/internal/model"
)

type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func newClock() *testClock {
	return &testClock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func TestMemory_StrictExpiry(t *testing.T) {
	clock := newClock()
	m := NewMemory(WithClock(clock.Now))
	ctx := context.Background()

	require.NoError(t, m.Set(ctx, "k", []byte("v"), time.Minute))

	clock.Advance(time.Minute - time.Nanosecond)
	v, ok, err := m.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []byte("v"), v)

	clock.Advance(time.Nanosecond)
	_, ok, err = m.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok, "a read at expiry is a miss")
	assert.Equal(t, 0, m.Len(), "expired entry purged on read")
}

func TestMemory_NoTTLNeverExpires(t *testing.T) {
	clock := newClock()
	m := NewMemory(WithClock(clock.Now))
	ctx := context.Background()

	require.NoError(t, m.Set(ctx, "k", []byte("v"), 0))
	clock.Advance(24 * 365 * time.Hour)
	_, ok, _ := m.Get(ctx, "k")
	assert.True(t, ok)
}

func TestMemory_SetCopiesValue(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	buf := []byte("abc")
	require.NoError(t, m.Set(ctx, "k", buf, time.Minute))
	buf[0] = 'x'

	v, _, _ := m.Get(ctx, "k")
	assert.Equal(t, []byte("abc"), v)
}

func TestMemory_Sweep(t *testing.T) {
	clock := newClock()
	m := NewMemory(WithClock(clock.Now))
	ctx := context.Background()

	require.NoError(t, m.Set(ctx, "short", []byte("1"), time.Minute))
	require.NoError(t, m.Set(ctx, "long", []byte("2"), time.Hour))
	require.NoError(t, m.Set(ctx, "forever", []byte("3"), 0))

	assert.Equal(t, 0, m.Sweep(ctx))
	clock.Advance(2 * time.Minute)
	assert.Equal(t, 1, m.Sweep(ctx))
	assert.Equal(t, 2, m.Len())
}

func TestMemory_Invalidate(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	for _, k := range []string{"profile:word:run", "profile:id:1", SearchKey("run", 10), SearchKey("walk", 10)} {
		require.NoError(t, m.Set(ctx, k, []byte("x"), time.Hour))
	}

	n, err := m.Invalidate(ctx, SearchPattern)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, 2, m.Len())

	n, err = m.Invalidate(ctx, ProfileWordKey("RUN"))
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = m.Invalidate(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, 0, m.Len())

	_, err = m.Invalidate(ctx, "[")
	assert.Error(t, err)
}

func TestKeys(t *testing.T) {
	assert.Equal(t, "profile:word:ephemeral", ProfileWordKey("  Ephemeral "))
	assert.Equal(t, "profile:id:abc", ProfileIDKey("abc"))

	assert.Equal(t, SearchKey("Short  Time", 10), SearchKey("short time", 10))
	assert.NotEqual(t, SearchKey("short time", 10), SearchKey("short time", 20))
	assert.Regexp(t, `^search:[0-9a-f]{32}$`, SearchKey("x", 1))

	p := &model.WordProfile{ID: "p1", Word: "run"}
	assert.Equal(t, []string{"profile:word:run", "profile:id:p1"}, ProfileKeys(p))
}

func TestNew(t *testing.T) {
	c, err := New(context.Background(), config.CacheConfig{Backend: "memory"})
	require.NoError(t, err)
	assert.IsType(t, &Memory{}, c)

	_, err = New(context.Background(), config.CacheConfig{Backend: "memcached"})
	assert.Error(t, err)
}

type payload struct {
	Word  string `json:"word"`
	Score int    `json:"score"`
}

func TestReadThrough_GetOrCompute(t *testing.T) {
	clock := newClock()
	rt := NewReadThrough[payload](NewMemory(WithClock(clock.Now)), KeyspaceProfile, nil)
	ctx := context.Background()

	calls := 0
	fn := func(context.Context) (payload, error) {
		calls++
		return payload{Word: "run", Score: 77}, nil
	}

	v, hit, err := rt.GetOrCompute(ctx, "profile:word:run", time.Minute, fn)
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, payload{Word: "run", Score: 77}, v)

	v, hit, err = rt.GetOrCompute(ctx, "profile:word:run", time.Minute, fn)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, 77, v.Score)
	assert.Equal(t, 1, calls)

	clock.Advance(time.Minute)
	_, hit, err = rt.GetOrCompute(ctx, "profile:word:run", time.Minute, fn)
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, 2, calls)

	hits, misses := rt.Stats()
	assert.Equal(t, int64(1), hits)
	assert.Equal(t, int64(2), misses)
}

func TestReadThrough_ComputeErrorNotCached(t *testing.T) {
	rt := NewReadThrough[payload](NewMemory(), KeyspaceProfile, nil)
	ctx := context.Background()
	boom := errors.New("boom")

	_, _, err := rt.GetOrCompute(ctx, "k", time.Minute, func(context.Context) (payload, error) {
		return payload{}, boom
	})
	assert.ErrorIs(t, err, boom)

	_, ok := rt.Get(ctx, "k")
	assert.False(t, ok)
}

func TestReadThrough_SingleflightDedup(t *testing.T) {
	rt := NewReadThrough[payload](NewMemory(), KeyspaceSearch, nil)
	ctx := context.Background()

	var calls atomic.Int32
	release := make(chan struct{})
	fn := func(context.Context) (payload, error) {
		calls.Add(1)
		<-release
		return payload{Word: "w"}, nil
	}

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, _, err := rt.GetOrCompute(ctx, "search:x", time.Minute, fn)
			assert.NoError(t, err)
			assert.Equal(t, "w", v.Word)
		}()
	}
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.LessOrEqual(t, calls.Load(), int32(8))
	assert.GreaterOrEqual(t, calls.Load(), int32(1))
	v, ok := rt.Get(ctx, "search:x")
	assert.True(t, ok)
	assert.Equal(t, "w", v.Word)
}

func TestReadThrough_InvalidateDuringCompute(t *testing.T) {
	rt := NewReadThrough[payload](NewMemory(), KeyspaceProfile, nil)
	ctx := context.Background()
	key := ProfileWordKey("run")

	started := make(chan struct{})
	release := make(chan struct{})
	done := make(chan payload, 1)
	go func() {
		v, _, err := rt.GetOrCompute(ctx, key, time.Minute, func(context.Context) (payload, error) {
			close(started)
			<-release
			return payload{Word: "run", Score: 10}, nil
		})
		assert.NoError(t, err)
		done <- v
	}()

	<-started
	// A write lands and invalidates while the stale read is still computing.
	_, err := rt.Invalidate(ctx, ProfileKeys(&model.WordProfile{ID: "p1", Word: "run"})...)
	require.NoError(t, err)

	v, hit, err := rt.GetOrCompute(ctx, key, time.Minute, func(context.Context) (payload, error) {
		return payload{Word: "run", Score: 90}, nil
	})
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, 90, v.Score)

	close(release)
	assert.Equal(t, 10, (<-done).Score)

	cached, ok := rt.Get(ctx, key)
	require.True(t, ok)
	assert.Equal(t, 90, cached.Score)
}

func TestReadThrough_Invalidate(t *testing.T) {
	rt := NewReadThrough[payload](NewMemory(), KeyspaceSearch, nil)
	ctx := context.Background()

	rt.Set(ctx, SearchKey("short", 10), payload{Word: "brief"}, time.Minute)
	rt.Set(ctx, SearchKey("long", 10), payload{Word: "eternal"}, time.Minute)

	n, err := rt.Invalidate(ctx, SearchPattern)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	_, ok := rt.Get(ctx, SearchKey("short", 10))
	assert.False(t, ok)
}

type failingCache struct{ *Memory }

func (f *failingCache) Get(context.Context, string) ([]byte, bool, error) {
	return nil, false, errors.New("connection refused")
}

func TestReadThrough_BackendErrorIsMiss(t *testing.T) {
	rt := NewReadThrough[payload](&failingCache{Memory: NewMemory()}, KeyspaceProfile, nil)
	v, hit, err := rt.GetOrCompute(context.Background(), "k", time.Minute, func(context.Context) (payload, error) {
		return payload{Word: "ok"}, nil
	})
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, "ok", v.Word)
}

func TestReadThrough_CorruptEntryIsMiss(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	require.NoError(t, m.Set(ctx, "k", []byte("{not json"), time.Minute))

	rt := NewReadThrough[payload](m, KeyspaceProfile, nil)
	_, ok := rt.Get(ctx, "k")
	assert.False(t, ok)
}

func TestRedis(t *testing.T) {
	addr := os.Getenv("LEXICON_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("LEXICON_TEST_REDIS_ADDR not set")
	}
	ctx := context.Background()
	r, err := NewRedis(ctx, config.CacheConfig{RedisAddr: addr})
	require.NoError(t, err)
	defer r.Close() //nolint:errcheck

	_, err = r.Invalidate(ctx, "")
	require.NoError(t, err)

	require.NoError(t, r.Set(ctx, "profile:word:run", []byte("v"), time.Minute))
	require.NoError(t, r.Set(ctx, SearchKey("run", 10), []byte("s"), time.Minute))

	v, ok, err := r.Get(ctx, "profile:word:run")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []byte("v"), v)

	n, err := r.Invalidate(ctx, SearchPattern)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, ok, err = r.Get(ctx, SearchKey("run", 10))
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, 0, r.Sweep(ctx))
}
