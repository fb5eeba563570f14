package resilience

import (
	"time"

	"github.com/sells-group/lexicon-cli/internal/config"
)

// RequeuePolicy decides what happens to a queue item after a failed attempt.
type RequeuePolicy struct {
	MaxRetries int
	Backoff    RetryConfig
}

// NewRequeuePolicy builds the policy from queue configuration. Requeue delays
// are deterministic (no jitter) so the order of retried items is stable.
func NewRequeuePolicy(cfg config.QueueConfig) RequeuePolicy {
	return RequeuePolicy{
		MaxRetries: cfg.MaxRetries,
		Backoff: RetryConfig{
			InitialBackoff: config.DurationOr(cfg.InitialBackoff, 30*time.Second),
			MaxBackoff:     config.DurationOr(cfg.MaxBackoff, 30*time.Minute),
			Multiplier:     cfg.Multiplier,
		},
	}
}

// Decision is the outcome of applying a RequeuePolicy.
type Decision struct {
	// Retry is true when the item goes back to pending.
	Retry bool
	// RetryCount is the new retry count, never above the max.
	RetryCount int
	// AvailableAt is when a retried item may be claimed again.
	AvailableAt time.Time
}

// Next counts one more failure against an item that has already failed
// retryCount times and has the given max. The item is retried while the new
// count stays below max.
func (p RequeuePolicy) Next(retryCount, maxRetries int, now time.Time) Decision {
	if maxRetries <= 0 {
		maxRetries = p.MaxRetries
	}
	n := retryCount + 1
	if n > maxRetries {
		n = maxRetries
	}
	if n >= maxRetries {
		return Decision{RetryCount: n}
	}
	return Decision{
		Retry:       true,
		RetryCount:  n,
		AvailableAt: now.Add(Backoff(n-1, p.Backoff)),
	}
}
