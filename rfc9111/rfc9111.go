// Package rfc9111 implements the parts of RFC 9111 (HTTP Caching) that a
// private client cache needs: Cache-Control parsing, freshness lifetime,
// storage eligibility and validation.
//
// Files are named after the RFC sections they implement, and the relevant
// RFC text is quoted inline with a "§" prefix.
package rfc9111

import (
	"net/http"
	"time"
)

// Stored is the cache-relevant metadata extracted from an origin response.
type Stored struct {
	Expiration
	ETag         string
	LastModified string
	Date         time.Time
}

// Describe extracts validators and expiration from a response received at
// the given time.
func Describe(header http.Header, received time.Time) Stored {
	date, err := ParseHTTPDate(header.Get("Date"))
	if err != nil {
		date = received
	}
	return Stored{
		Expiration:   GetExpiration(header, received),
		ETag:         header.Get("ETag"),
		LastModified: header.Get("Last-Modified"),
		Date:         date,
	}
}
