package rfc9111

import "net/http"

// Freshen returns the stored header fields updated with those of a 304
// response. A client cache holds one response per key, so the stored
// response is always the one selected for update.
//
// §  4.3.4.  Freshening Stored Responses upon Validation
// §
// §     For each stored response identified, the cache MUST update its header
// §     fields with the header fields provided in the 304 (Not Modified)
// §     response, as per Section 3.2.
//
// Content-Length describes the stored body and is never taken from the 304.
func Freshen(stored, notModified http.Header) http.Header {
	updated := stored.Clone()
	if updated == nil {
		updated = make(http.Header)
	}
	for name, values := range notModified {
		if http.CanonicalHeaderKey(name) == "Content-Length" {
			continue
		}
		updated[http.CanonicalHeaderKey(name)] = append([]string(nil), values...)
	}
	return updated
}
