package rfc9111

import (
	"net/http"
	"time"
)

// getExpires returns the Expires value and whether the field is present.
// An unparseable value is reported as present with the zero time.
//
// §  5.3.  Expires
// §
// §     A cache recipient MUST interpret invalid date formats, especially the
// §     value "0", as representing a time in the past (i.e., "already
// §     expired").
func getExpires(header http.Header) (time.Time, bool) {
	value := header.Get("Expires")
	if value == "" {
		return time.Time{}, false
	}
	expires, err := ParseHTTPDate(value)
	if err != nil {
		return time.Time{}, true
	}
	return expires, true
}
