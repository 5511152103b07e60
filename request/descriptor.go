// Package request defines the immutable description of a single request,
// its cache policy and the typed callback that receives the outcome.
package request

import (
	"context"
	"net/url"
	"sort"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/always-cache/easyfetch/envelope"
)

// Descriptor describes one submitted request. Fields are set by the builder
// and must not be changed after submission.
type Descriptor struct {
	ID       string
	Method   Method
	URL      string
	Headers  map[string]string
	Params   map[string]string
	Body     []byte
	Policy   NetworkPolicy
	Priority int
	// Sequence is assigned at submission from a client-wide counter.
	Sequence uint64
	Retry    RetryPolicy
	Callback Callback

	ctx       context.Context
	canceled  atomic.Bool
	delivered atomic.Bool

	mu       sync.Mutex
	response *envelope.Response
}

// WithContext sets the context used by the network path.
func (d *Descriptor) WithContext(ctx context.Context) *Descriptor {
	d.ctx = ctx
	return d
}

// Context returns the request context, never nil.
func (d *Descriptor) Context() context.Context {
	if d.ctx == nil {
		return context.Background()
	}
	return d.ctx
}

// Cancel marks the request canceled. Queued requests are dropped without
// delivery; a request already being processed still completes.
func (d *Descriptor) Cancel() {
	d.canceled.Store(true)
}

// Canceled reports whether Cancel was called.
func (d *Descriptor) Canceled() bool {
	return d.canceled.Load()
}

// Claim reserves the single terminal delivery. It returns true exactly once.
func (d *Descriptor) Claim() bool {
	return d.delivered.CompareAndSwap(false, true)
}

// Delivered reports whether a terminal delivery has been claimed.
func (d *Descriptor) Delivered() bool {
	return d.delivered.Load()
}

// Attach records the envelope produced for this request.
func (d *Descriptor) Attach(res *envelope.Response) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.response = res
}

// Response returns the attached envelope, if any.
func (d *Descriptor) Response() *envelope.Response {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.response
}

// Header returns the value of the named header as supplied.
func (d *Descriptor) Header(name string) string {
	return d.Headers[name]
}

// EncodedParams returns the form parameters in a stable encoding.
func (d *Descriptor) EncodedParams() string {
	if len(d.Params) == 0 {
		return ""
	}
	values := url.Values{}
	for k, v := range d.Params {
		values.Set(k, v)
	}
	return values.Encode()
}

// HeaderNames returns the header names in sorted order.
func (d *Descriptor) HeaderNames() []string {
	names := make([]string, 0, len(d.Headers))
	for name := range d.Headers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// HasBody reports whether the request carries a raw body or form parameters.
func (d *Descriptor) HasBody() bool {
	return len(d.Body) > 0 || len(d.Params) > 0
}

// ContentType returns the body content type implied by the descriptor,
// unless one was set explicitly.
func (d *Descriptor) ContentType() string {
	for name, value := range d.Headers {
		if strings.EqualFold(name, "Content-Type") {
			return value
		}
	}
	if len(d.Body) == 0 && len(d.Params) > 0 {
		return "application/x-www-form-urlencoded; charset=UTF-8"
	}
	return ""
}
