package rfc9111

import (
	"net/http"
	"time"
)

// Expiration describes when a stored response stops being fresh (Soft)
// and when it may no longer be reused at all (Hard).
type Expiration struct {
	Soft time.Time
	Hard time.Time
}

// GetExpiration computes soft and hard expiration for a response received
// at the given time. A response without explicit freshness information
// expires immediately, but may still be kept around for validation.
func GetExpiration(header http.Header, received time.Time) Expiration {
	cc := ParseCacheControl(header.Values("Cache-Control"))
	if cc.NoCache() {
		return Expiration{Soft: received, Hard: received}
	}
	soft := received.Add(freshnessLifetime(header, cc, received))
	exp := Expiration{Soft: soft, Hard: soft}
	if swr, ok := cc.StaleWhileRevalidate(); ok && !cc.MustRevalidate() {
		exp.Hard = soft.Add(swr)
	}
	return exp
}

// freshnessLifetime evaluates the rules of §4.2.1 in order, first match
// wins:
//
// §     *  If the max-age response directive (Section 5.2.2.1) is present,
// §        use its value, or
// §
// §     *  If the Expires response header field (Section 5.3) is present, use
// §        its value minus the value of the Date response header field (using
// §        the time the message was received if it is not present [...]), or
// §
// §     *  Otherwise, no explicit expiration time is present in the response.
//
// s-maxage targets shared caches. It is used here only as a fallback when
// max-age is absent. No heuristic freshness is applied.
func freshnessLifetime(header http.Header, cc CacheControl, received time.Time) time.Duration {
	if maxAge, ok := cc.MaxAge(); ok {
		return maxAge
	}
	if sMaxAge, ok := cc.SMaxAge(); ok {
		return sMaxAge
	}
	expires, present := getExpires(header)
	if !present {
		return 0
	}
	date, err := ParseHTTPDate(header.Get("Date"))
	if err != nil {
		date = received
	}
	if lifetime := expires.Sub(date); lifetime > 0 {
		return lifetime
	}
	return 0
}
