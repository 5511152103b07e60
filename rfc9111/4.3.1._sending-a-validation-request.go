package rfc9111

import "net/http"

// AddValidators sets the precondition fields for revalidating a stored
// response with the given entity tag and Last-Modified value.
//
// §  4.3.1.  Sending a Validation Request
// §
// §     *  MUST send the relevant entity tags (using If-Match, If-None-Match,
// §        or If-Range) if the entity tags were provided in the stored
// §        response(s) being validated.
// §
// §     *  SHOULD send the Last-Modified value (using If-Modified-Since) if
// §        the request is not for a subrange, a single stored response is
// §        being validated, and that response contains a Last-Modified value.
func AddValidators(header http.Header, etag, lastModified string) {
	if etag != "" {
		header.Set("If-None-Match", etag)
	}
	if lastModified != "" {
		header.Set("If-Modified-Since", lastModified)
	}
}

// HasPreconditions reports whether the caller already set its own
// validation fields.
func HasPreconditions(header http.Header) bool {
	return header.Get("If-None-Match") != "" || header.Get("If-Modified-Since") != ""
}
