package fetcher

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/lexicon-cli/internal/resilience"
)

func newTestFetcher() *HTTPFetcher {
	return NewHTTPFetcher(HTTPOptions{
		UserAgent:  "test-agent",
		Timeout:    5 * time.Second,
		MaxRetries: 2,
		Rate:       1000,
		Retry: resilience.RetryConfig{
			InitialBackoff: time.Millisecond,
			MaxBackoff:     5 * time.Millisecond,
		},
	})
}

func hostOf(t *testing.T, raw string) string {
	t.Helper()
	u, err := url.Parse(raw)
	require.NoError(t, err)
	return u.Host
}

func TestGet(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-agent", r.Header.Get("User-Agent"))
		w.Write([]byte(`{"word":"ephemeral"}`))
	}))
	defer srv.Close()

	body, err := newTestFetcher().Get(context.Background(), srv.URL+"/words")
	require.NoError(t, err)
	assert.JSONEq(t, `{"word":"ephemeral"}`, string(body))
}

func TestGet_RetriesServerError(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	body, err := newTestFetcher().Get(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, "ok", string(body))
	assert.Equal(t, int32(3), calls.Load())
}

func TestGet_RetriesExhausted(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := newTestFetcher().Get(context.Background(), srv.URL)
	require.Error(t, err)
	assert.True(t, resilience.IsTransient(err))
	assert.Equal(t, int32(3), calls.Load(), "one try plus two retries")
}

func TestGet_NotFoundIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.NotFound(w, r)
	}))
	defer srv.Close()

	f := newTestFetcher()
	_, err := f.Get(context.Background(), srv.URL+"/missing")
	require.Error(t, err)
	assert.True(t, resilience.IsNotFound(err))
	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, resilience.CircuitClosed, f.Breakers().Get(hostOf(t, srv.URL)).State())
}

func TestDo_429ReducesRate(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	f := newTestFetcher()
	_, err := f.Get(context.Background(), srv.URL)
	require.NoError(t, err)

	// 1000 halved to 500, then raised 20% on success.
	assert.InDelta(t, 600.0, float64(f.LimiterFor(hostOf(t, srv.URL)).Limit()), 0.1)
}

func TestDo_CircuitOpensAfterRepeatedFailures(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	f := NewHTTPFetcher(HTTPOptions{
		MaxRetries: 1,
		Rate:       1000,
		Retry:      resilience.RetryConfig{InitialBackoff: time.Millisecond},
		Breakers:   resilience.NewBreakers(resilience.BreakerConfig{FailureThreshold: 2, ResetTimeout: time.Minute}),
	})

	for range 2 {
		_, err := f.Get(context.Background(), srv.URL)
		require.Error(t, err)
	}
	before := calls.Load()

	_, err := f.Get(context.Background(), srv.URL)
	assert.ErrorIs(t, err, resilience.ErrCircuitOpen)
	assert.Equal(t, before, calls.Load(), "open circuit must not reach the server")
}

func TestGet_ContextCancelled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := newTestFetcher().Get(ctx, srv.URL)
	assert.Error(t, err)
}

func TestGet_InvalidURL(t *testing.T) {
	_, err := newTestFetcher().Get(context.Background(), "://bad")
	assert.Error(t, err)
}

func TestNewHTTPFetcher_Defaults(t *testing.T) {
	f := NewHTTPFetcher(HTTPOptions{})
	assert.Equal(t, "lexicon-cli/1.0", f.opts.UserAgent)
	assert.Equal(t, 10*time.Second, f.client.Timeout)
	assert.Equal(t, 2, f.opts.MaxRetries)
	assert.NotNil(t, f.Breakers())
}

func TestLimiterFor_ReusesPerHost(t *testing.T) {
	f := newTestFetcher()
	assert.Same(t, f.LimiterFor("api.datamuse.com"), f.LimiterFor("api.datamuse.com"))
	assert.NotSame(t, f.LimiterFor("api.datamuse.com"), f.LimiterFor("en.wiktionary.org"))
}

func TestAdaptiveLimiter_OnSuccess_CapsAt2x(t *testing.T) {
	lim := NewAdaptiveLimiter(10, 10)

	lim.OnSuccess()
	assert.InDelta(t, 12.0, float64(lim.Limit()), 0.1)

	for range 20 {
		lim.OnSuccess()
	}
	assert.InDelta(t, 20.0, float64(lim.Limit()), 0.1)
}

func TestAdaptiveLimiter_OnRateLimit_FloorAtQuarter(t *testing.T) {
	lim := NewAdaptiveLimiter(10, 10)

	lim.OnRateLimit()
	assert.InDelta(t, 5.0, float64(lim.Limit()), 0.1)

	for range 10 {
		lim.OnRateLimit()
	}
	assert.InDelta(t, 2.5, float64(lim.Limit()), 0.1)
}

func TestAdaptiveLimiter_Wait_ContextCancelled(t *testing.T) {
	lim := NewAdaptiveLimiter(0.001, 0)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.Error(t, lim.Wait(ctx))
}
