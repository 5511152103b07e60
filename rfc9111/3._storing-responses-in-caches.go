package rfc9111

import "net/http"

// MustNotStore reports whether a response MUST NOT be written to a private
// client cache. Shared-cache conditions (private, Authorization) do not
// apply.
//
// §  3.  Storing Responses in Caches
// §
// §     A cache MUST NOT store a response to a request unless:
// §
// §     *  the request method is understood by the cache;
// §     *  the response status code is final;
// §     *  if the response status code is 206 or 304, or the must-understand
// §        cache directive is present: the cache understands the response
// §        status code;
// §     *  the no-store cache directive is not present in the response;
func MustNotStore(method string, statusCode int, header http.Header) bool {
	cc := ParseCacheControl(header.Values("Cache-Control"))
	switch {
	case !understoodMethod(method):
		return true
	case statusCode < 200 || statusCode > 599:
		return true
	case (statusCode == http.StatusPartialContent || statusCode == http.StatusNotModified ||
		cc.HasDirective("must-understand")) && !understoodStatus(statusCode):
		return true
	case cc.NoStore():
		return true
	}
	return false
}

func understoodMethod(method string) bool {
	switch method {
	case http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch,
		http.MethodDelete, http.MethodOptions:
		return true
	}
	return false
}

// understoodStatus lists the statuses whose caching semantics this cache
// implements in full.
func understoodStatus(statusCode int) bool {
	switch statusCode {
	case http.StatusOK, http.StatusNonAuthoritativeInfo, http.StatusNoContent:
		return true
	}
	return false
}
