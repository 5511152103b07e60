package rfc9111

import "time"

// §  4.2.  Freshness
// §
// §     The calculation to determine if a response is fresh is:
// §
// §        response_is_fresh = (freshness_lifetime > current_age)
//
// Expiration is computed from the receive time, so the age is already
// accounted for and freshness reduces to a clock comparison.
func (e Expiration) IsFresh(now time.Time) bool {
	return now.Before(e.Soft)
}

// TTL is the remaining freshness lifetime at now, never negative.
func (e Expiration) TTL(now time.Time) time.Duration {
	if d := e.Soft.Sub(now); d > 0 {
		return d
	}
	return 0
}
