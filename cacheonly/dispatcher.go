// Package cacheonly resolves offline requests strictly from the cache on a
// single background worker.
package cacheonly

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"github.com/jmgilman/go/errors"
	"github.com/rs/zerolog"

	"github.com/always-cache/easyfetch/cache"
	"github.com/always-cache/easyfetch/envelope"
	cachekey "github.com/always-cache/easyfetch/pkg/cache-key"
	"github.com/always-cache/easyfetch/pkg/metrics"
	"github.com/always-cache/easyfetch/request"
	"github.com/always-cache/easyfetch/rfc9211"
)

// State is the lifecycle state of the worker.
type State int

const (
	Stopped State = iota
	Running
	Stopping
)

func (s State) String() string {
	switch s {
	case Running:
		return "running"
	case Stopping:
		return "stopping"
	}
	return "stopped"
}

// Delivery receives the single terminal outcome of each request.
type Delivery interface {
	PostResponse(d *request.Descriptor, res *envelope.Response)
	PostError(d *request.Descriptor, err *envelope.Error)
}

// Dispatcher owns the cache-only queue and its worker.
type Dispatcher struct {
	queue    *Queue
	store    cache.Store
	keyer    cachekey.Strategy
	delivery Delivery
	log      zerolog.Logger

	// lifecycle serializes Start and Quit
	lifecycle sync.Mutex
	mu        sync.Mutex
	state     State
	cancel    context.CancelFunc
	done      chan struct{}
}

func New(store cache.Store, keyer cachekey.Strategy, delivery Delivery, logger zerolog.Logger) *Dispatcher {
	return &Dispatcher{
		queue:    NewQueue(),
		store:    store,
		keyer:    keyer,
		delivery: delivery,
		log:      logger.With().Str("component", "cache-only").Logger(),
	}
}

// Add enqueues a descriptor. It may be called in any state; items queued
// while stopped are processed after the next Start.
func (d *Dispatcher) Add(desc *request.Descriptor) {
	d.queue.Push(desc)
	metrics.SetCacheOnlyQueueLength(d.queue.Len())
	d.log.Trace().Str("id", desc.ID).Uint64("seq", desc.Sequence).Msg("Queued cache-only request")
}

// Len returns the number of queued descriptors.
func (d *Dispatcher) Len() int {
	return d.queue.Len()
}

// State returns the current lifecycle state.
func (d *Dispatcher) State() State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

// Start initializes the store and starts the worker. A running worker is
// quit first and fully terminated before the new one starts.
func (d *Dispatcher) Start() error {
	d.lifecycle.Lock()
	defer d.lifecycle.Unlock()
	d.quit()

	if err := d.store.Initialize(); err != nil {
		d.log.Error().Err(err).Msg("Could not initialize cache")
		return fmt.Errorf("initialize cache: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	d.mu.Lock()
	d.state = Running
	d.cancel = cancel
	d.done = done
	d.mu.Unlock()

	go d.run(ctx, done)
	d.log.Debug().Msg("Started cache-only worker")
	return nil
}

// Quit stops the worker and waits until it has exited. Queued items stay
// in the queue. Quit must not be called from a callback running on the
// worker.
func (d *Dispatcher) Quit() {
	d.lifecycle.Lock()
	defer d.lifecycle.Unlock()
	d.quit()
}

func (d *Dispatcher) quit() {
	d.mu.Lock()
	if d.state != Running {
		d.mu.Unlock()
		return
	}
	d.state = Stopping
	cancel, done := d.cancel, d.done
	d.mu.Unlock()

	cancel()
	<-done

	d.mu.Lock()
	d.state = Stopped
	d.cancel = nil
	d.done = nil
	d.mu.Unlock()
	d.log.Debug().Int("queued", d.queue.Len()).Msg("Stopped cache-only worker")
}

func (d *Dispatcher) run(ctx context.Context, done chan struct{}) {
	defer close(done)
	for {
		desc, err := d.queue.Take(ctx)
		if err != nil {
			return
		}
		metrics.SetCacheOnlyQueueLength(d.queue.Len())
		d.process(desc)
	}
}

// process resolves one descriptor. Failures, including panics, are
// confined to that descriptor.
func (d *Dispatcher) process(desc *request.Descriptor) {
	defer func() {
		if r := recover(); r != nil {
			d.log.WithLevel(zerolog.PanicLevel).Interface("error", r).Str("id", desc.ID).Msg("Panic in cache-only worker")
			metrics.RecordCacheOnlyResult("error")
			if !desc.Delivered() {
				d.delivery.PostError(desc, envelope.NewError(errors.CodeInternal, fmt.Sprint(r)))
			}
		}
	}()

	log := d.log.With().Str("id", desc.ID).Uint64("seq", desc.Sequence).Logger()
	if desc.Canceled() {
		log.Trace().Msg("Dropping canceled request")
		metrics.RecordCacheOnlyResult("canceled")
		return
	}

	key := d.keyer.Key(desc)
	entry, err := d.store.Get(key)
	if err != nil {
		log.Error().Err(err).Str("key", key).Msg("Could not read cache")
		metrics.RecordCacheOnlyResult("error")
		d.delivery.PostError(desc, envelope.CacheFailure(err))
		return
	}
	if entry == nil {
		log.Trace().Str("key", key).Msg("Cache miss")
		metrics.RecordCacheOnlyResult("miss")
		d.delivery.PostError(desc, envelope.NoCache())
		return
	}
	if entry.IsExpired() {
		log.Trace().Str("key", key).Time("ttl", entry.TTL).Msg("Cache expired")
		metrics.RecordCacheOnlyResult("expired")
		d.delivery.PostError(desc, envelope.CacheExpired())
		return
	}

	log.Trace().Str("key", key).Msg("Cache hit")
	metrics.RecordCacheOnlyResult("hit")
	d.delivery.PostResponse(desc, responseFromEntry(entry))
}

func responseFromEntry(entry *cache.Entry) *envelope.Response {
	headers := entry.Headers.Clone()
	if headers == nil {
		headers = http.Header{}
	}
	status := rfc9211.New("Easyfetch").Hit().Detail("offline")
	headers.Set(rfc9211.HeaderName, status.String())
	return &envelope.Response{
		StatusCode: http.StatusOK,
		Data:       entry.Data,
		Headers:    headers,
	}
}
