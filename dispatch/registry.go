// Package dispatch turns raw responses into typed callback deliveries.
//
// A Registry holds the ordered request and response interceptors and the
// decoders keyed by result type. A Dispatcher runs a response through the
// interceptors, decodes it into the callback's declared type and delivers
// it exactly once.
package dispatch

import (
	"reflect"
	"sync"

	"github.com/always-cache/easyfetch/envelope"
	"github.com/always-cache/easyfetch/request"
)

// Decoder converts a response body into a value of one specific type.
type Decoder interface {
	Decode(body string) (any, error)
}

// DecoderFunc adapts a function into a Decoder.
type DecoderFunc func(body string) (any, error)

func (f DecoderFunc) Decode(body string) (any, error) {
	return f(body)
}

// RequestInterceptor transforms a descriptor before it goes to the network.
type RequestInterceptor interface {
	InterceptRequest(d *request.Descriptor) *request.Descriptor
}

// RequestInterceptorFunc adapts a function into a RequestInterceptor.
type RequestInterceptorFunc func(d *request.Descriptor) *request.Descriptor

func (f RequestInterceptorFunc) InterceptRequest(d *request.Descriptor) *request.Descriptor {
	return f(d)
}

// ResponseInterceptor transforms a response before it is decoded.
type ResponseInterceptor interface {
	InterceptResponse(res *envelope.Response) *envelope.Response
}

// ResponseInterceptorFunc adapts a function into a ResponseInterceptor.
type ResponseInterceptorFunc func(res *envelope.Response) *envelope.Response

func (f ResponseInterceptorFunc) InterceptResponse(res *envelope.Response) *envelope.Response {
	return f(res)
}

// Registry holds decoders and interceptors. It is safe for concurrent use;
// registrations normally happen at startup.
type Registry struct {
	mu                   sync.RWMutex
	decoders             map[reflect.Type]Decoder
	requestInterceptors  []RequestInterceptor
	responseInterceptors []ResponseInterceptor
}

// NewRegistry returns a registry with the built-in decoders and the gzip
// response interceptor installed first.
func NewRegistry() *Registry {
	r := &Registry{decoders: make(map[reflect.Type]Decoder)}
	r.AddResponseInterceptor(GzipInterceptor{})
	r.RegisterDecoder(reflect.TypeFor[string](), DecoderFunc(decodeString))
	r.RegisterDecoder(reflect.TypeFor[JSONObject](), DecoderFunc(decodeJSONObject))
	r.RegisterDecoder(reflect.TypeFor[JSONArray](), DecoderFunc(decodeJSONArray))
	return r
}

// RegisterDecoder installs a decoder for t. A later registration for the
// same type replaces the earlier one, built-ins included.
func (r *Registry) RegisterDecoder(t reflect.Type, d Decoder) {
	if t == nil || d == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.decoders[t] = d
}

// RegisterDecoderFor installs a typed decoder function for T.
func RegisterDecoderFor[T any](r *Registry, decode func(body string) (T, error)) {
	r.RegisterDecoder(reflect.TypeFor[T](), DecoderFunc(func(body string) (any, error) {
		return decode(body)
	}))
}

// Decoder returns the decoder registered for exactly t.
func (r *Registry) Decoder(t reflect.Type) (Decoder, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.decoders[t]
	return d, ok
}

// AddRequestInterceptor appends to the request interceptor chain.
func (r *Registry) AddRequestInterceptor(i RequestInterceptor) {
	if i == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.requestInterceptors = append(r.requestInterceptors, i)
}

// AddResponseInterceptor appends to the response interceptor chain.
func (r *Registry) AddResponseInterceptor(i ResponseInterceptor) {
	if i == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.responseInterceptors = append(r.responseInterceptors, i)
}

// InterceptRequest runs every request interceptor in registration order.
// An interceptor returning nil leaves the descriptor unchanged.
func (r *Registry) InterceptRequest(d *request.Descriptor) *request.Descriptor {
	r.mu.RLock()
	chain := append([]RequestInterceptor(nil), r.requestInterceptors...)
	r.mu.RUnlock()
	for _, i := range chain {
		if next := i.InterceptRequest(d); next != nil {
			d = next
		}
	}
	return d
}

// InterceptResponse runs every response interceptor in registration order.
// An interceptor returning nil leaves the response unchanged.
func (r *Registry) InterceptResponse(res *envelope.Response) *envelope.Response {
	r.mu.RLock()
	chain := append([]ResponseInterceptor(nil), r.responseInterceptors...)
	r.mu.RUnlock()
	for _, i := range chain {
		if next := i.InterceptResponse(res); next != nil {
			res = next
		}
	}
	return res
}
