package rfc9111

import "time"

// MayServeStale reports whether a stale response may still be reused at
// now. Hard expiry only extends past Soft when the origin allowed it with
// stale-while-revalidate and did not require revalidation.
//
// §  4.2.4.  Serving Stale Responses
// §
// §     A cache MUST NOT generate a stale response unless it is disconnected
// §     or doing so is explicitly permitted by the client or origin server
// §     (e.g., [...] extension directives such as those defined in
// §     [RFC5861] [...]).
func (e Expiration) MayServeStale(now time.Time) bool {
	return !now.After(e.Hard)
}
