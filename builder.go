package easyfetch

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/always-cache/easyfetch/request"
)

var (
	ErrEmptyURL   = errors.New("empty URL for network request")
	ErrInvalidURL = errors.New("invalid URL for network request")
)

type queryParam struct {
	name, value string
}

// RequestBuilder assembles one request. Mutators ignore nil, empty and
// non-positive arguments, keeping the previous value.
type RequestBuilder struct {
	client   *Client
	method   request.Method
	rawURL   string
	query    []queryParam
	headers  map[string]string
	params   map[string]string
	body     []byte
	policy   request.NetworkPolicy
	priority int
	retry    request.RetryPolicy
	callback request.Callback
	ctx      context.Context
}

func (c *Client) newBuilder(method request.Method, rawURL string) *RequestBuilder {
	return &RequestBuilder{
		client:   c,
		method:   method,
		rawURL:   rawURL,
		headers:  map[string]string{"Accept-Encoding": "gzip"},
		policy:   request.PolicyDefault,
		priority: request.PriorityNormal,
		retry:    c.retry,
	}
}

func (b *RequestBuilder) AddHeader(name, value string) *RequestBuilder {
	if name != "" {
		b.headers[name] = value
	}
	return b
}

func (b *RequestBuilder) AddHeaders(headers map[string]string) *RequestBuilder {
	for name, value := range headers {
		b.AddHeader(name, value)
	}
	return b
}

// AddQueryParam appends a query parameter after any already in the URL.
func (b *RequestBuilder) AddQueryParam(name, value string) *RequestBuilder {
	if name != "" {
		b.query = append(b.query, queryParam{name, value})
	}
	return b
}

// SetRequestBody sets the raw body. It takes precedence over form params.
func (b *RequestBuilder) SetRequestBody(body []byte) *RequestBuilder {
	if body != nil {
		b.body = body
	}
	return b
}

func (b *RequestBuilder) SetRequestBodyString(body string) *RequestBuilder {
	return b.SetRequestBody([]byte(body))
}

// AddParam adds a form field, sent url-encoded unless a raw body is set.
func (b *RequestBuilder) AddParam(name, value string) *RequestBuilder {
	if name == "" {
		return b
	}
	if b.params == nil {
		b.params = map[string]string{}
	}
	b.params[name] = value
	return b
}

func (b *RequestBuilder) AddParams(params map[string]string) *RequestBuilder {
	for name, value := range params {
		b.AddParam(name, value)
	}
	return b
}

func (b *RequestBuilder) SetNetworkPolicy(policy request.NetworkPolicy) *RequestBuilder {
	b.policy = policy
	return b
}

// SetPriority orders the request in the cache-only queue; higher first.
func (b *RequestBuilder) SetPriority(priority int) *RequestBuilder {
	b.priority = priority
	return b
}

// SetSocketTimeout sets the timeout of the first attempt.
func (b *RequestBuilder) SetSocketTimeout(timeout time.Duration) *RequestBuilder {
	if timeout > 0 {
		b.retry.Timeout = timeout
	}
	return b
}

func (b *RequestBuilder) SetSocketTimeoutMs(ms int) *RequestBuilder {
	return b.SetSocketTimeout(time.Duration(ms) * time.Millisecond)
}

func (b *RequestBuilder) SetMaxNumRetries(retries int) *RequestBuilder {
	if retries > 0 {
		b.retry.MaxRetries = retries
	}
	return b
}

func (b *RequestBuilder) SetBackoffMultiplier(multiplier float64) *RequestBuilder {
	if multiplier > 0 {
		b.retry.BackoffMultiplier = multiplier
	}
	return b
}

// SetCallback sets the callback receiving the outcome. Without one the
// request still runs, e.g. to warm the cache.
func (b *RequestBuilder) SetCallback(cb request.Callback) *RequestBuilder {
	if cb != nil {
		b.callback = cb
	}
	return b
}

// SetContext bounds the network exchange. Canceling it aborts in-flight
// attempts; it has no effect on the cache-only path.
func (b *RequestBuilder) SetContext(ctx context.Context) *RequestBuilder {
	if ctx != nil {
		b.ctx = ctx
	}
	return b
}

// resolveURL returns the final URL with appended query params.
func (b *RequestBuilder) resolveURL() (string, error) {
	raw := strings.TrimSpace(b.rawURL)
	if raw == "" {
		return "", ErrEmptyURL
	}
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return "", ErrInvalidURL
	}
	if len(b.query) == 0 {
		return u.String(), nil
	}
	var sb strings.Builder
	sb.WriteString(u.RawQuery)
	for _, p := range b.query {
		if sb.Len() > 0 {
			sb.WriteByte('&')
		}
		sb.WriteString(url.QueryEscape(p.name))
		sb.WriteByte('=')
		sb.WriteString(url.QueryEscape(p.value))
	}
	u.RawQuery = sb.String()
	return u.String(), nil
}

// Descriptor builds the descriptor without submitting it.
func (b *RequestBuilder) Descriptor() (*request.Descriptor, error) {
	finalURL, err := b.resolveURL()
	if err != nil {
		return nil, err
	}
	if b.callback != nil {
		if _, err := request.ResolveType(b.callback); err != nil {
			return nil, err
		}
	}
	headers := make(map[string]string, len(b.headers))
	for k, v := range b.headers {
		headers[k] = v
	}
	var params map[string]string
	if len(b.params) > 0 {
		params = make(map[string]string, len(b.params))
		for k, v := range b.params {
			params[k] = v
		}
	}
	d := &request.Descriptor{
		ID:       uuid.NewString(),
		Method:   b.method,
		URL:      finalURL,
		Headers:  headers,
		Params:   params,
		Body:     b.body,
		Policy:   b.policy,
		Priority: b.priority,
		Retry:    b.retry,
		Callback: b.callback,
	}
	if b.ctx != nil {
		d.WithContext(b.ctx)
	}
	return d, nil
}

// Execute builds the descriptor and submits it. Construction errors are
// returned and never delivered to the callback. The returned descriptor can
// be used to cancel the request.
func (b *RequestBuilder) Execute() (*request.Descriptor, error) {
	d, err := b.Descriptor()
	if err != nil {
		return nil, err
	}
	return b.client.submit(d), nil
}
