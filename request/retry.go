package request

import "time"

// Defaults applied to every descriptor unless overridden on the builder.
const (
	DefaultTimeout           = 2500 * time.Millisecond
	DefaultMaxRetries        = 1
	DefaultBackoffMultiplier = 1.0
)

// RetryPolicy controls per-attempt timeouts and retries on the network path.
// Each retry grows the timeout by Timeout*BackoffMultiplier.
type RetryPolicy struct {
	Timeout           time.Duration
	MaxRetries        int
	BackoffMultiplier float64
}

// DefaultRetryPolicy returns the policy used when nothing is configured.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		Timeout:           DefaultTimeout,
		MaxRetries:        DefaultMaxRetries,
		BackoffMultiplier: DefaultBackoffMultiplier,
	}
}

// AttemptTimeout returns the timeout for the given zero-based attempt.
func (r RetryPolicy) AttemptTimeout(attempt int) time.Duration {
	timeout := r.Timeout
	for i := 0; i < attempt; i++ {
		timeout += time.Duration(float64(timeout) * r.BackoffMultiplier)
	}
	return timeout
}
