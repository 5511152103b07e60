// Package scheduler executes network requests. It consults and updates the
// shared cache according to each request's network policy, retries failed
// attempts and hands the terminal outcome to a Delivery.
package scheduler

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jmgilman/go/errors"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"

	"github.com/always-cache/easyfetch/cache"
	"github.com/always-cache/easyfetch/envelope"
	cachekey "github.com/always-cache/easyfetch/pkg/cache-key"
	"github.com/always-cache/easyfetch/pkg/metrics"
	"github.com/always-cache/easyfetch/request"
	"github.com/always-cache/easyfetch/rfc9111"
	"github.com/always-cache/easyfetch/rfc9211"
)

// Delivery receives the single terminal outcome of each request.
type Delivery interface {
	PostResponse(d *request.Descriptor, res *envelope.Response)
	PostError(d *request.Descriptor, err *envelope.Error)
}

// Scheduler runs requests that may touch the network. Submit must not block
// on network I/O; the outcome is reported through delivery.
type Scheduler interface {
	Submit(d *request.Descriptor, shouldCache bool, delivery Delivery)
}

// HTTPScheduler is the net/http backed Scheduler.
type HTTPScheduler struct {
	cfg     Config
	client  *http.Client
	store   cache.Store
	keyer   cachekey.Strategy
	sem     *semaphore.Weighted
	limiter *rate.Limiter
	tracer  trace.Tracer
	log     zerolog.Logger

	wg     sync.WaitGroup
	closed atomic.Bool
}

// NewHTTPScheduler creates a scheduler writing to and reading from store.
func NewHTTPScheduler(cfg Config, store cache.Store, keyer cachekey.Strategy, logger zerolog.Logger) (*HTTPScheduler, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid scheduler config: %w", err)
	}
	log := logger.With().Str("component", "scheduler").Logger()
	s := &HTTPScheduler{
		cfg:    cfg,
		client: newHTTPClient(cfg.UserAgent, log),
		store:  store,
		keyer:  keyer,
		sem:    semaphore.NewWeighted(int64(cfg.Workers)),
		tracer: otel.Tracer("easyfetch.scheduler"),
		log:    log,
	}
	if cfg.RateLimit > 0 {
		s.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.RateBurst)
	}
	return s, nil
}

// WithClient replaces the HTTP client. Used to route through a custom
// transport.
func (s *HTTPScheduler) WithClient(client *http.Client) *HTTPScheduler {
	s.client = client
	return s
}

// Submit starts processing d in the background.
func (s *HTTPScheduler) Submit(d *request.Descriptor, shouldCache bool, delivery Delivery) {
	if s.closed.Load() {
		delivery.PostError(d, envelope.NewError(errors.CodeUnavailable, "scheduler is closed"))
		return
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.handle(d, shouldCache, delivery)
	}()
}

// Close rejects new submissions and waits for in-flight requests.
func (s *HTTPScheduler) Close() error {
	s.closed.Store(true)
	s.wg.Wait()
	return nil
}

// exchange is the outcome of the attempt loop.
type exchange struct {
	status  int
	header  http.Header
	body    []byte
	elapsed time.Duration
}

func (s *HTTPScheduler) handle(d *request.Descriptor, shouldCache bool, delivery Delivery) {
	log := s.log.With().Str("id", d.ID).Str("method", string(d.Method)).Str("policy", d.Policy.String()).Logger()
	defer func() {
		if r := recover(); r != nil {
			log.WithLevel(zerolog.PanicLevel).Interface("error", r).Msg("Panic in scheduler")
			if !d.Delivered() {
				delivery.PostError(d, envelope.NewError(errors.CodeInternal, fmt.Sprint(r)))
			}
		}
	}()

	ctx, span := s.tracer.Start(d.Context(), "easyfetch "+string(d.Method),
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.method", string(d.Method)),
			attribute.String("http.url", d.URL),
			attribute.String("easyfetch.policy", d.Policy.String()),
			attribute.String("easyfetch.id", d.ID),
		),
	)
	defer span.End()

	if err := s.sem.Acquire(ctx, 1); err != nil {
		span.SetStatus(codes.Error, "canceled")
		delivery.PostError(d, envelope.WrapError(err, errors.CodeTimeout, "request canceled before it was sent"))
		return
	}
	defer s.sem.Release(1)

	if d.Canceled() {
		log.Trace().Msg("Dropping canceled request")
		span.SetStatus(codes.Error, "canceled")
		return
	}

	key := s.keyer.Key(d)
	status := rfc9211.New(s.cfg.CacheName)
	var stored *cache.Entry

	switch d.Policy {
	case request.PolicyNoCache:
		if err := s.store.Remove(key); err != nil {
			log.Warn().Err(err).Str("key", key).Msg("Could not remove cache entry")
		}
		status.Forward(rfc9211.FwdReasonBypass).Detail("no-cache")
	case request.PolicyDefault:
		entry, err := s.store.Get(key)
		if err != nil {
			log.Warn().Err(err).Str("key", key).Msg("Could not read cache")
		}
		if entry != nil && !entry.RefreshNeeded() {
			log.Trace().Str("key", key).Msg("Cache hit")
			metrics.RecordNetwork("none", "hit", 0)
			status.Hit().TTL(entry.Expiration().TTL(time.Now()))
			delivery.PostResponse(d, responseFromEntry(entry, http.StatusOK, false, status, 0))
			return
		}
		if entry != nil {
			stored = entry
			status.Forward(rfc9211.FwdReasonStale)
		} else {
			status.Forward(rfc9211.FwdReasonUriMiss)
		}
	default:
		status.Forward(rfc9211.FwdReasonRequest)
	}

	ex, err := s.do(ctx, d, stored, log)
	if err != nil {
		span.RecordError(err)
		if stored != nil && !stored.IsExpired() {
			log.Debug().Err(err).Msg("Serving stale response after network failure")
			metrics.RecordNetwork("error", "hit", ex.elapsed.Seconds())
			status.Detail("stale-if-error")
			delivery.PostResponse(d, responseFromEntry(stored, http.StatusOK, false, status, ex.elapsed))
			return
		}
		span.SetStatus(codes.Error, err.Error())
		metrics.RecordNetwork("error", "bypass", ex.elapsed.Seconds())
		delivery.PostError(d, transportError(err, ex.elapsed))
		return
	}

	span.SetAttributes(attribute.Int("http.status_code", ex.status))
	status.FwdStatus(ex.status)
	class := fmt.Sprintf("%dxx", ex.status/100)

	switch {
	case ex.status == http.StatusNotModified && stored != nil:
		entry := s.freshen(stored, ex)
		cacheLabel := "revalidated"
		if shouldCache {
			if err := s.store.Put(key, entry); err != nil {
				log.Warn().Err(err).Str("key", key).Msg("Could not update cache entry")
			} else {
				status.Stored(true)
			}
		}
		metrics.RecordNetwork(class, cacheLabel, ex.elapsed.Seconds())
		delivery.PostResponse(d, responseFromEntry(&entry, http.StatusNotModified, true, status, ex.elapsed))

	case ex.status == http.StatusNotModified:
		metrics.RecordNetwork(class, "bypass", ex.elapsed.Seconds())
		res := newResponse(ex, status)
		res.NotModified = true
		delivery.PostResponse(d, res)

	case ex.status >= 200 && ex.status < 300:
		cacheLabel := "bypass"
		if shouldCache && !rfc9111.MustNotStore(string(d.Method), ex.status, ex.header) {
			if err := s.store.Put(key, newEntry(key, ex)); err != nil {
				log.Warn().Err(err).Str("key", key).Msg("Could not store response")
			} else {
				cacheLabel = "stored"
				status.Stored(true)
			}
		}
		metrics.RecordNetwork(class, cacheLabel, ex.elapsed.Seconds())
		delivery.PostResponse(d, newResponse(ex, status))

	default:
		span.SetStatus(codes.Error, http.StatusText(ex.status))
		metrics.RecordNetwork(class, "bypass", ex.elapsed.Seconds())
		delivery.PostError(d, envelope.FromStatus(newResponse(ex, status)))
	}
}

// do performs the attempt loop. The per-attempt timeout grows according to
// the descriptor's retry policy. Retries happen on transient transport
// errors and on 408, 429 and 5xx statuses; the last response is returned
// once attempts are exhausted.
func (s *HTTPScheduler) do(ctx context.Context, d *request.Descriptor, stored *cache.Entry, log zerolog.Logger) (exchange, error) {
	start := time.Now()
	attempts := 1
	if s.retryable(d.Method) && d.Retry.MaxRetries > 0 {
		attempts += d.Retry.MaxRetries
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if s.limiter != nil {
			if err := s.limiter.Wait(ctx); err != nil {
				return exchange{elapsed: time.Since(start)}, err
			}
		}

		ex, err := s.attempt(ctx, d, stored, d.Retry.AttemptTimeout(attempt))
		ex.elapsed = time.Since(start)
		last := attempt == attempts-1

		if err == nil {
			if !shouldRetryStatus(ex.status) || last {
				return ex, nil
			}
			lastErr = nil
			if err := s.waitRetry(ctx, parseRetryAfter(ex.header)); err != nil {
				return ex, nil
			}
		} else {
			lastErr = err
			if !isRetryableError(ctx, err) || last {
				return ex, err
			}
		}

		metrics.RecordRetry()
		log.Debug().
			Int("attempt", attempt+1).
			Int("max_attempts", attempts).
			Int("status", ex.status).
			AnErr("error", err).
			Msg("Retrying request")
	}
	return exchange{elapsed: time.Since(start)}, lastErr
}

// waitRetry honors a Retry-After delay, capped by the configuration.
func (s *HTTPScheduler) waitRetry(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return nil
	}
	if delay > s.cfg.MaxRetryAfter {
		delay = s.cfg.MaxRetryAfter
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (s *HTTPScheduler) attempt(ctx context.Context, d *request.Descriptor, stored *cache.Entry, timeout time.Duration) (exchange, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := newRequest(attemptCtx, d, stored)
	if err != nil {
		return exchange{}, err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return exchange{}, err
	}
	defer resp.Body.Close()
	if s.cfg.ResponseModifier != nil {
		if err := s.cfg.ResponseModifier(resp); err != nil {
			return exchange{status: resp.StatusCode}, fmt.Errorf("modify response: %w", err)
		}
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return exchange{status: resp.StatusCode}, err
	}
	return exchange{status: resp.StatusCode, header: resp.Header, body: body}, nil
}

// newRequest builds the outgoing request. A raw body takes precedence over
// form parameters. Validators from a stale entry are added unless the
// caller set its own preconditions.
func newRequest(ctx context.Context, d *request.Descriptor, stored *cache.Entry) (*http.Request, error) {
	var body io.Reader
	switch {
	case len(d.Body) > 0:
		body = bytes.NewReader(d.Body)
	case len(d.Params) > 0:
		body = strings.NewReader(d.EncodedParams())
	}
	req, err := http.NewRequestWithContext(ctx, string(d.Method), d.URL, body)
	if err != nil {
		return nil, err
	}
	for _, name := range d.HeaderNames() {
		req.Header.Set(name, d.Headers[name])
	}
	if ct := d.ContentType(); ct != "" && d.HasBody() {
		req.Header.Set("Content-Type", ct)
	}
	if stored != nil && stored.HasValidator() && !rfc9111.HasPreconditions(req.Header) {
		rfc9111.AddValidators(req.Header, stored.ETag, stored.LastModified)
	}
	return req, nil
}

// freshen merges a 304 into the stored entry and recomputes its expiry.
func (s *HTTPScheduler) freshen(stored *cache.Entry, ex exchange) cache.Entry {
	now := time.Now()
	headers := rfc9111.Freshen(stored.Headers, ex.header)
	meta := rfc9111.Describe(headers, now)
	entry := *stored
	entry.Headers = headers
	entry.TTL = meta.Hard
	entry.SoftTTL = meta.Soft
	entry.ServerDate = meta.Date
	entry.ReceivedAt = now
	if meta.ETag != "" {
		entry.ETag = meta.ETag
	}
	if meta.LastModified != "" {
		entry.LastModified = meta.LastModified
	}
	return entry
}

func newEntry(key string, ex exchange) cache.Entry {
	now := time.Now()
	meta := rfc9111.Describe(ex.header, now)
	return cache.Entry{
		Key:          key,
		Data:         ex.body,
		Headers:      ex.header.Clone(),
		ETag:         meta.ETag,
		LastModified: meta.LastModified,
		ServerDate:   meta.Date,
		TTL:          meta.Hard,
		SoftTTL:      meta.Soft,
		ReceivedAt:   now,
	}
}

func newResponse(ex exchange, status *rfc9211.CacheStatus) *envelope.Response {
	headers := ex.header.Clone()
	if headers == nil {
		headers = http.Header{}
	}
	headers.Set(rfc9211.HeaderName, status.String())
	return &envelope.Response{
		StatusCode:  ex.status,
		Data:        ex.body,
		Headers:     headers,
		NetworkTime: ex.elapsed,
	}
}

func responseFromEntry(entry *cache.Entry, statusCode int, notModified bool, status *rfc9211.CacheStatus, elapsed time.Duration) *envelope.Response {
	headers := entry.Headers.Clone()
	if headers == nil {
		headers = http.Header{}
	}
	headers.Set(rfc9211.HeaderName, status.String())
	return &envelope.Response{
		StatusCode:  statusCode,
		Data:        entry.Data,
		Headers:     headers,
		NotModified: notModified,
		NetworkTime: elapsed,
	}
}

// transportError classifies an error that produced no usable response.
func transportError(err error, elapsed time.Duration) *envelope.Error {
	var e *envelope.Error
	switch {
	case isTimeout(err):
		e = envelope.WrapError(err, errors.CodeTimeout, "request timed out")
	default:
		e = envelope.WrapError(err, errors.CodeNetwork, "")
	}
	e.NetworkTime = elapsed
	return e
}
