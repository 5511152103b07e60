package scheduler

import (
	"fmt"
	"net/http"
	"time"
)

// Config configures the HTTP scheduler.
type Config struct {
	// Workers bounds the number of requests on the wire at once.
	// Default: 4. Must be > 0.
	Workers int

	// UserAgent is set on requests that don't carry one.
	UserAgent string

	// AllowNonIdempotentRetry enables retries for POST and PATCH.
	// Default: false.
	AllowNonIdempotentRetry bool

	// RateLimit caps outgoing attempts per second. 0 disables limiting.
	RateLimit float64

	// RateBurst is the limiter bucket size. Default: 1 when RateLimit > 0.
	RateBurst int

	// MaxRetryAfter caps how long a Retry-After header may delay a retry.
	// Default: 5s.
	MaxRetryAfter time.Duration

	// CacheName is the cache identifier used in Cache-Status values.
	CacheName string

	// Optional function for transforming the origin response before it is
	// evaluated for caching. Use it e.g. for adding Cache-Control headers.
	ResponseModifier func(*http.Response) error
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Workers:       4,
		UserAgent:     "easyfetch/1.0",
		MaxRetryAfter: 5 * time.Second,
		CacheName:     "Easyfetch",
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Workers <= 0 {
		return fmt.Errorf("workers must be > 0, got %d", c.Workers)
	}
	if c.RateLimit < 0 {
		return fmt.Errorf("rate_limit must be >= 0, got %v", c.RateLimit)
	}
	if c.RateLimit > 0 && c.RateBurst < 1 {
		c.RateBurst = 1
	}
	if c.MaxRetryAfter < 0 {
		return fmt.Errorf("max_retry_after must be >= 0, got %v", c.MaxRetryAfter)
	}
	if c.CacheName == "" {
		c.CacheName = "Easyfetch"
	}
	return nil
}
