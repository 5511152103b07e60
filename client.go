// Package easyfetch is a client-side HTTP request layer. Each request
// carries a cache policy that routes it either to the network scheduler or
// to a cache-only worker, and its outcome is decoded into the callback's
// declared type through a registry of interceptors and decoders.
package easyfetch

import (
	"fmt"
	"io"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/always-cache/easyfetch/cache"
	"github.com/always-cache/easyfetch/cacheonly"
	"github.com/always-cache/easyfetch/dispatch"
	cachekey "github.com/always-cache/easyfetch/pkg/cache-key"
	"github.com/always-cache/easyfetch/request"
	"github.com/always-cache/easyfetch/scheduler"
)

type Config struct {
	// Storage for cache entries, shared by the network and cache-only paths.
	// An in-memory store is used if nil.
	Store cache.Store
	// Strategy for deriving cache keys. Defaults to a keyer in the
	// "easyfetch" namespace.
	Keyer cachekey.Strategy
	// Decoders and interceptors. A registry with the built-in decoders is
	// used if nil.
	Registry *dispatch.Registry
	// Executor for network requests. An HTTP scheduler over Store is used
	// if nil, configured by SchedulerConfig.
	Scheduler       scheduler.Scheduler
	SchedulerConfig *scheduler.Config
	// Logger to use. A console logger is used if nil.
	Logger *zerolog.Logger
	// Retry defaults for every request; zero fields keep the built-in
	// defaults (2500ms, 1 retry, multiplier 1.0).
	Retry request.RetryPolicy
}

// Client submits requests built with its builders.
type Client struct {
	store      cache.Store
	keyer      cachekey.Strategy
	registry   *dispatch.Registry
	dispatcher *dispatch.Dispatcher
	cacheOnly  *cacheonly.Dispatcher
	scheduler  scheduler.Scheduler
	retry      request.RetryPolicy
	log        zerolog.Logger

	// sequence is shared by both paths
	sequence  atomic.Uint64
	closeOnce sync.Once
}

// New creates a client, initializes its store and starts the cache-only
// worker.
func New(config Config) (*Client, error) {
	// use console logger if not specified in config
	var logger zerolog.Logger
	if config.Logger == nil {
		logger = zerolog.New(zerolog.NewConsoleWriter()).With().Timestamp().Logger()
	} else {
		logger = *config.Logger
	}

	c := &Client{
		store:    config.Store,
		keyer:    config.Keyer,
		registry: config.Registry,
		retry:    withDefaults(config.Retry),
		log:      logger.With().Str("component", "client").Logger(),
	}
	if c.store == nil {
		c.store = cache.NewMemCache()
	}
	if c.keyer == nil {
		c.keyer = cachekey.NewCacheKeyer("easyfetch")
	}
	if c.registry == nil {
		c.registry = dispatch.NewRegistry()
	}
	c.dispatcher = dispatch.NewDispatcher(c.registry, logger)
	c.cacheOnly = cacheonly.New(c.store, c.keyer, c.dispatcher, logger)

	// the worker initializes the store
	if err := c.cacheOnly.Start(); err != nil {
		return nil, err
	}

	c.scheduler = config.Scheduler
	if c.scheduler == nil {
		cfg := scheduler.DefaultConfig()
		if config.SchedulerConfig != nil {
			cfg = *config.SchedulerConfig
		}
		s, err := scheduler.NewHTTPScheduler(cfg, c.store, c.keyer, logger)
		if err != nil {
			c.cacheOnly.Quit()
			return nil, fmt.Errorf("create scheduler: %w", err)
		}
		c.scheduler = s
	}
	return c, nil
}

func withDefaults(r request.RetryPolicy) request.RetryPolicy {
	d := request.DefaultRetryPolicy()
	if r.Timeout > 0 {
		d.Timeout = r.Timeout
	}
	if r.MaxRetries > 0 {
		d.MaxRetries = r.MaxRetries
	}
	if r.BackoffMultiplier > 0 {
		d.BackoffMultiplier = r.BackoffMultiplier
	}
	return d
}

func (c *Client) Get(url string) *RequestBuilder {
	return c.newBuilder(request.MethodGet, url)
}

func (c *Client) Post(url string) *RequestBuilder {
	return c.newBuilder(request.MethodPost, url)
}

func (c *Client) Put(url string) *RequestBuilder {
	return c.newBuilder(request.MethodPut, url)
}

func (c *Client) Delete(url string) *RequestBuilder {
	return c.newBuilder(request.MethodDelete, url)
}

func (c *Client) Head(url string) *RequestBuilder {
	return c.newBuilder(request.MethodHead, url)
}

func (c *Client) Options(url string) *RequestBuilder {
	return c.newBuilder(request.MethodOptions, url)
}

func (c *Client) Trace(url string) *RequestBuilder {
	return c.newBuilder(request.MethodTrace, url)
}

func (c *Client) Patch(url string) *RequestBuilder {
	return c.newBuilder(request.MethodPatch, url)
}

// Registry returns the decoder and interceptor registry.
func (c *Client) Registry() *dispatch.Registry {
	return c.registry
}

// Dispatcher returns the response dispatcher, e.g. for dispatching a
// response obtained outside the client.
func (c *Client) Dispatcher() *dispatch.Dispatcher {
	return c.dispatcher
}

// CacheKey returns the key under which d's response is stored.
func (c *Client) CacheKey(d *request.Descriptor) string {
	return c.keyer.Key(d)
}

// DropCache removes the entry stored under key.
func (c *Client) DropCache(key string) error {
	c.log.Debug().Str("key", key).Msg("Dropping cache entry")
	return c.store.Remove(key)
}

// DropAllCache removes every stored entry.
func (c *Client) DropAllCache() error {
	c.log.Debug().Msg("Dropping all cache entries")
	return c.store.Clear()
}

// Close stops the cache-only worker and waits for in-flight network
// requests. The store is not closed.
func (c *Client) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.cacheOnly.Quit()
		if closer, ok := c.scheduler.(io.Closer); ok {
			err = closer.Close()
		}
	})
	return err
}
