// Package rfc9211 builds values for the Cache-Status response header field.
package rfc9211

import (
	"fmt"
	"strconv"
	"time"
)

// HeaderName is the field attached to every delivered response envelope.
const HeaderName = "Cache-Status"

// §  2.  The Cache-Status HTTP Response Header Field
// §
// §     The Cache-Status HTTP response header field indicates caches'
// §     handling of the request corresponding to the response it occurs
// §     within.
// §
// §     Its value is a List (Section 3.1 of [STRUCTURED-FIELDS]):
// §
// §     Cache-Status   = sf-list
// §
// §     Each member of the list represents a cache that has handled the
// §     request.

type Status string

const (
	StatusHit Status = "hit"
	StatusFwd Status = "fwd"
)

type FwdReason string

const (
	// The cache was configured to not handle this request.
	FwdReasonBypass FwdReason = "bypass"

	// The request method's semantics require the request to be
	// forwarded.
	FwdReasonMethod FwdReason = "method"

	// The cache did not contain any responses that matched the
	// request URI.
	FwdReasonUriMiss FwdReason = "uri-miss"

	// The cache did not contain any responses that could be used to
	// satisfy this request.
	FwdReasonMiss FwdReason = "miss"

	// The cache was able to select a fresh response for the
	// request, but the request's semantics did not allow its use.
	FwdReasonRequest FwdReason = "request"

	// The cache was able to select a response for the request, but
	// it was stale.
	FwdReasonStale FwdReason = "stale"
)

// CacheStatus is a single Cache-Status list member.
type CacheStatus struct {
	cache     string
	status    Status
	fwdReason FwdReason
	fwdStatus int
	stored    bool
	ttl       time.Duration
	hasTTL    bool
	detail    string
}

// New returns a status for the named cache.
func New(cache string) *CacheStatus {
	return &CacheStatus{cache: cache}
}

// §  2.1.  The hit Parameter
// §
// §     "hit", when true, indicates that the request was satisfied by the
// §     cache; that is, it was not forwarded, and the response was obtained
// §     from the cache.
func (cs *CacheStatus) Hit() *CacheStatus {
	cs.status = StatusHit
	return cs
}

// §  2.2.  The fwd Parameter
// §
// §     "fwd" indicates that the request went forward towards the origin.
func (cs *CacheStatus) Forward(reason FwdReason) *CacheStatus {
	cs.status = StatusFwd
	cs.fwdReason = reason
	return cs
}

// §  2.3.  The fwd-status Parameter
// §
// §     "fwd-status" indicates what status code the next hop server returned
// §     in response to the forwarded request.
func (cs *CacheStatus) FwdStatus(code int) *CacheStatus {
	cs.fwdStatus = code
	return cs
}

// §  2.4.  The ttl Parameter
// §
// §     "ttl" indicates the response's remaining freshness lifetime as
// §     calculated by the cache, as an integer number of seconds.
func (cs *CacheStatus) TTL(ttl time.Duration) *CacheStatus {
	cs.ttl = ttl
	cs.hasTTL = true
	return cs
}

// §  2.5.  The stored Parameter
// §
// §     "stored" indicates whether the cache stored the response.
func (cs *CacheStatus) Stored(stored bool) *CacheStatus {
	cs.stored = stored
	return cs
}

// §  2.8.  The detail Parameter
// §
// §     "detail" allows implementations to convey additional information not
// §     captured in other parameters.
func (cs *CacheStatus) Detail(detail string) *CacheStatus {
	cs.detail = detail
	return cs
}

// String renders the list member, e.g. `Easyfetch; fwd=stale; fwd-status=304`.
func (cs *CacheStatus) String() string {
	status := cs.cache
	switch cs.status {
	case StatusHit:
		status += "; hit"
	case StatusFwd:
		if cs.fwdReason != "" {
			status = fmt.Sprintf("%s; fwd=%s", status, cs.fwdReason)
		}
		if cs.fwdStatus != 0 {
			status = fmt.Sprintf("%s; fwd-status=%d", status, cs.fwdStatus)
		}
		if cs.stored {
			status += "; stored"
		}
	}
	if cs.hasTTL {
		status += "; ttl=" + strconv.FormatInt(int64(cs.ttl/time.Second), 10)
	}
	if cs.detail != "" {
		status += "; detail=" + cs.detail
	}
	return status
}
