package cachekey

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"sort"
	"strings"

	"github.com/always-cache/easyfetch/request"
)

var ErrorMalformedKey = fmt.Errorf("Malformed key")

const (
	namespaceSeparator = ":"
	methodSeparator    = ":"
	varySeparator      = "\t"
	bodyField          = "#body"
)

// Strategy derives the cache key for a descriptor. Both the network and the
// cache-only paths must use the same strategy.
type Strategy interface {
	Key(d *request.Descriptor) string
}

type CacheKeyer struct {
	// Namespace separates clients sharing one store.
	Namespace string
	// Cache key prefix for this namespace
	NamespacePrefix string
	// Headers whose values select between variants of the same URL.
	Headers []string
}

func NewCacheKeyer(namespace string, headers ...string) CacheKeyer {
	normalized := make([]string, 0, len(headers))
	for _, h := range headers {
		normalized = append(normalized, http.CanonicalHeaderKey(h))
	}
	sort.Strings(normalized)
	return CacheKeyer{
		Namespace:       namespace,
		NamespacePrefix: namespace + namespaceSeparator,
		Headers:         normalized,
	}
}

// MethodPrefix gets the key prefix for the namespace with the given method.
// E.g. prefix for all GET requests in the cache.
func (c CacheKeyer) MethodPrefix(method request.Method) string {
	return c.NamespacePrefix + string(method) + methodSeparator
}

// GetKeyPrefix returns the cache key for a request without variant headers.
// If the request has a `Cache-Key` header, that value is included in the key prefix.
func (c CacheKeyer) GetKeyPrefix(d *request.Descriptor) string {
	key := c.MethodPrefix(d.Method) + d.URL + varySeparator
	if ck := headerValue(d.Headers, "Cache-Key"); ck != "" {
		key += ck
	}
	return key
}

// Key returns the full cache key: prefix, relevant headers and a body hash.
func (c CacheKeyer) Key(d *request.Descriptor) string {
	key := c.GetKeyPrefix(d)
	for _, name := range c.Headers {
		if value := headerValue(d.Headers, name); value != "" {
			key = key + "\n" + strings.ToLower(name) + ": " + value
		}
	}
	if hash := bodyHash(d); hash != "" {
		key = key + "\n" + bodyField + ": " + hash
	}
	return key
}

// Parts is the decoded form of a key.
type Parts struct {
	Method  request.Method
	URL     string
	Headers http.Header
}

// Parse reverses Key for keys in this namespace. Body hashes are returned
// under the "#body" pseudo header.
func (c CacheKeyer) Parse(key string) (Parts, error) {
	if !strings.HasPrefix(key, c.NamespacePrefix) {
		return Parts{}, fmt.Errorf("Key and namespace do not match")
	}
	keyNoNamespace := strings.TrimPrefix(key, c.NamespacePrefix)
	keyNoVary, vary, found := strings.Cut(keyNoNamespace, varySeparator)
	if !found {
		return Parts{}, fmt.Errorf("%w: %s", ErrorMalformedKey, key)
	}
	method, url, found := strings.Cut(keyNoVary, methodSeparator)
	if !found {
		return Parts{}, fmt.Errorf("%w: %s", ErrorMalformedKey, key)
	}
	return Parts{
		Method:  request.Method(method),
		URL:     url,
		Headers: getVaryHeaders(vary),
	}, nil
}

// getVaryHeaders creates a http.Header instance containing all the header lines included in a key.
func getVaryHeaders(vary string) http.Header {
	header := make(http.Header)
	lines := strings.Split(vary, "\n")
	for i := 1; i < len(lines); i++ {
		entry := strings.SplitN(lines[i], ": ", 2)
		if len(entry) == 2 {
			header.Add(entry[0], entry[1])
		}
	}
	return header
}

// headerValue looks up a header case-insensitively, since descriptor
// headers keep the case they were supplied with.
func headerValue(headers map[string]string, name string) string {
	if v, ok := headers[name]; ok {
		return v
	}
	for k, v := range headers {
		if strings.EqualFold(k, name) {
			return v
		}
	}
	return ""
}

func bodyHash(d *request.Descriptor) string {
	if !d.HasBody() {
		return ""
	}
	h := sha256.New()
	h.Write(d.Body)
	if params := d.EncodedParams(); params != "" {
		h.Write([]byte{0})
		h.Write([]byte(params))
	}
	return hex.EncodeToString(h.Sum(nil))
}
