package fetcher

import (
	"context"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/lexicon-cli/internal/resilience"
)

// HTTPOptions configures the HTTP fetcher.
type HTTPOptions struct {
	UserAgent  string
	Timeout    time.Duration
	MaxRetries int
	// Rate is the initial per-host request rate (requests per second).
	Rate  float64
	Burst int
	// Retry overrides the backoff used between attempts. MaxAttempts is
	// always derived from MaxRetries.
	Retry resilience.RetryConfig
	// Breakers guards each host. A nil value creates a default set.
	Breakers *resilience.Breakers
}

// AdaptiveLimiter wraps a rate.Limiter with adaptive rate adjustment.
// On success it increases the rate by 20% (up to 2x initial).
// On 429 it halves the rate (down to initial/4 minimum).
type AdaptiveLimiter struct {
	mu          sync.Mutex
	limiter     *rate.Limiter
	initialRate rate.Limit
	maxRate     rate.Limit
	minRate     rate.Limit
	currentRate rate.Limit
}

// NewAdaptiveLimiter creates an adaptive rate limiter that auto-tunes.
func NewAdaptiveLimiter(initialRate rate.Limit, burst int) *AdaptiveLimiter {
	return &AdaptiveLimiter{
		limiter:     rate.NewLimiter(initialRate, burst),
		initialRate: initialRate,
		maxRate:     initialRate * 2,
		minRate:     initialRate / 4,
		currentRate: initialRate,
	}
}

// Wait blocks until the limiter allows an event.
func (a *AdaptiveLimiter) Wait(ctx context.Context) error {
	return a.limiter.Wait(ctx)
}

// OnSuccess increases the rate by 20%, up to 2x initial.
func (a *AdaptiveLimiter) OnSuccess() {
	a.mu.Lock()
	defer a.mu.Unlock()
	newRate := a.currentRate * 1.2
	if newRate > a.maxRate {
		newRate = a.maxRate
	}
	a.currentRate = newRate
	a.limiter.SetLimit(newRate)
}

// OnRateLimit halves the rate on 429 responses.
func (a *AdaptiveLimiter) OnRateLimit() {
	a.mu.Lock()
	defer a.mu.Unlock()
	newRate := a.currentRate * 0.5
	if newRate < a.minRate {
		newRate = a.minRate
	}
	a.currentRate = newRate
	a.limiter.SetLimit(newRate)
	zap.L().Warn("fetcher: reducing rate after 429",
		zap.Float64("new_rate", float64(newRate)),
	)
}

// Limit returns the current rate limit.
func (a *AdaptiveLimiter) Limit() rate.Limit {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.currentRate
}

// HTTPFetcher is an http.Client wrapper shared by the lexical source
// clients. Each request passes through a per-host adaptive limiter, is retried
// on transport errors and transient status codes, and runs behind a per-host
// circuit breaker.
type HTTPFetcher struct {
	client   *http.Client
	opts     HTTPOptions
	breakers *resilience.Breakers

	mu       sync.Mutex
	limiters map[string]*AdaptiveLimiter
}

// NewHTTPFetcher creates a new HTTPFetcher with the given options.
func NewHTTPFetcher(opts HTTPOptions) *HTTPFetcher {
	if opts.Timeout == 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = 2
	}
	if opts.UserAgent == "" {
		opts.UserAgent = "lexicon-cli/1.0"
	}
	if opts.Rate <= 0 {
		opts.Rate = 5
	}
	if opts.Burst <= 0 {
		opts.Burst = int(opts.Rate) + 1
	}
	breakers := opts.Breakers
	if breakers == nil {
		breakers = resilience.NewBreakers(resilience.DefaultBreakerConfig())
	}
	transport := &http.Transport{
		MaxIdleConnsPerHost: 10,
		MaxConnsPerHost:     20,
		IdleConnTimeout:     90 * time.Second,
	}
	return &HTTPFetcher{
		client: &http.Client{
			Timeout:   opts.Timeout,
			Transport: transport,
		},
		opts:     opts,
		breakers: breakers,
		limiters: make(map[string]*AdaptiveLimiter),
	}
}

// Breakers exposes the per-host circuit breakers.
func (f *HTTPFetcher) Breakers() *resilience.Breakers {
	return f.breakers
}

// LimiterFor returns the adaptive limiter for host, creating it on first use.
func (f *HTTPFetcher) LimiterFor(host string) *AdaptiveLimiter {
	f.mu.Lock()
	defer f.mu.Unlock()
	lim, ok := f.limiters[host]
	if !ok {
		lim = NewAdaptiveLimiter(rate.Limit(f.opts.Rate), f.opts.Burst)
		f.limiters[host] = lim
	}
	return lim
}

// Do sends req and returns the first response that is not a transient
// failure. Non-2xx responses other than 408/425/429/5xx are returned to the
// caller unchanged so it can decide what a 404 means.
func (f *HTTPFetcher) Do(req *http.Request) (*http.Response, error) {
	ctx := req.Context()
	if req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", f.opts.UserAgent)
	}
	host := req.URL.Host
	lim := f.LimiterFor(host)

	retry := f.opts.Retry
	retry.MaxAttempts = f.opts.MaxRetries + 1
	if retry.OnRetry == nil {
		retry.OnRetry = func(attempt int, err error) {
			zap.L().Warn("fetcher: request failed, retrying",
				zap.String("url", req.URL.String()),
				zap.Int("attempt", attempt),
				zap.Error(err),
			)
		}
	}

	return resilience.Call(ctx, f.breakers.Get(host), func(ctx context.Context) (*http.Response, error) {
		return resilience.DoVal(ctx, retry, func(ctx context.Context) (*http.Response, error) {
			if err := lim.Wait(ctx); err != nil {
				return nil, eris.Wrap(err, "fetcher: rate limiter wait")
			}

			resp, err := f.client.Do(req.Clone(ctx))
			if err != nil {
				return nil, eris.Wrapf(err, "fetcher: %s %s", req.Method, req.URL.Redacted())
			}

			if resilience.IsTransientHTTPStatus(resp.StatusCode) {
				body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
				_ = resp.Body.Close()
				if resp.StatusCode == http.StatusTooManyRequests {
					lim.OnRateLimit()
				}
				return nil, resilience.CheckStatus(host, resp.StatusCode, body)
			}

			lim.OnSuccess()
			return resp, nil
		})
	})
}

// Get issues a GET request and returns the response body for 2xx responses.
// Other statuses are returned as *resilience.StatusError.
func (f *HTTPFetcher) Get(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "fetcher: create request")
	}
	resp, err := f.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "fetcher: read body")
	}
	if err := resilience.CheckStatus(req.URL.Host, resp.StatusCode, body); err != nil {
		return nil, err
	}
	return body, nil
}
