// Package envelope holds the values handed to callbacks: the response
// envelope for successful deliveries and the error envelope for failures.
package envelope

import (
	"net/http"
	"time"
)

// Response is the raw result of a request, either from the network or
// reconstructed from a cache entry.
type Response struct {
	StatusCode  int
	Data        []byte
	Headers     http.Header
	NotModified bool
	// NetworkTime is the round trip time; zero for cache-only deliveries.
	NetworkTime time.Duration
}

// Header returns the first value of the named header, or "".
func (r *Response) Header(name string) string {
	if r == nil || r.Headers == nil {
		return ""
	}
	return r.Headers.Get(name)
}

// Clone returns a copy that shares no mutable state with r.
func (r *Response) Clone() *Response {
	if r == nil {
		return nil
	}
	c := *r
	c.Data = append([]byte(nil), r.Data...)
	c.Headers = r.Headers.Clone()
	return &c
}
