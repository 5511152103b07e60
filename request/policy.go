package request

import (
	"fmt"
	"strings"
)

// Method is an HTTP request method.
type Method string

const (
	MethodGet     Method = "GET"
	MethodPost    Method = "POST"
	MethodPut     Method = "PUT"
	MethodDelete  Method = "DELETE"
	MethodHead    Method = "HEAD"
	MethodOptions Method = "OPTIONS"
	MethodTrace   Method = "TRACE"
	MethodPatch   Method = "PATCH"
)

// Idempotent reports whether the method may be safely repeated.
func (m Method) Idempotent() bool {
	switch m {
	case MethodGet, MethodHead, MethodOptions, MethodTrace, MethodPut, MethodDelete:
		return true
	}
	return false
}

// NetworkPolicy decides whether a request reads the cache, writes the cache
// and touches the network.
type NetworkPolicy int

const (
	// PolicyDefault reads a fresh entry if present, otherwise goes to the
	// network and stores the result.
	PolicyDefault NetworkPolicy = iota
	// PolicyNoCache skips reading and writing the cache.
	PolicyNoCache
	// PolicyIgnoreReadButWriteCache skips reading the cache but stores the
	// network result.
	PolicyIgnoreReadButWriteCache
	// PolicyOffline resolves strictly from cache and never uses the network.
	PolicyOffline
)

var policyNames = map[NetworkPolicy]string{
	PolicyDefault:                 "default",
	PolicyNoCache:                 "no-cache",
	PolicyIgnoreReadButWriteCache: "ignore-read-but-write-cache",
	PolicyOffline:                 "offline",
}

func (p NetworkPolicy) String() string {
	if name, ok := policyNames[p]; ok {
		return name
	}
	return fmt.Sprintf("policy(%d)", int(p))
}

// ReadsCache reports whether the policy may serve a stored entry.
func (p NetworkPolicy) ReadsCache() bool {
	return p == PolicyDefault || p == PolicyOffline
}

// WritesCache reports whether the policy stores network results.
func (p NetworkPolicy) WritesCache() bool {
	return p == PolicyDefault || p == PolicyIgnoreReadButWriteCache
}

// ParsePolicy accepts the names returned by String, case-insensitively,
// plus the underscore variants (e.g. "NO_CACHE").
func ParsePolicy(s string) (NetworkPolicy, error) {
	normalized := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "_", "-")
	for p, name := range policyNames {
		if name == normalized {
			return p, nil
		}
	}
	return PolicyDefault, fmt.Errorf("unknown network policy %q", s)
}

// Priorities recognized by the cache-only queue. Higher values are served
// first; any int is accepted.
const (
	PriorityLow = iota
	PriorityNormal
	PriorityHigh
	PriorityImmediate
)
