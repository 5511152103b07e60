// Package cache defines the response cache shared by the network and the
// cache-only paths, and provides memory, SQLite and Postgres backends.
package cache

import (
	"net/http"
	"time"

	"github.com/always-cache/easyfetch/rfc9111"
)

// Store is an interface for a cache store.
// It stores and retrieves entries, which represent HTTP responses,
// and keeps track of their soft and hard expiration times.
//
// Implementations must be thread-safe!
// No size limit or eviction is applied by any implementation.
type Store interface {
	// Initialize prepares the store. It blocks until done and is idempotent.
	Initialize() error
	// Get returns the entry for the given key, or nil if there is none.
	// Expired entries are returned; the caller decides what to do with them.
	Get(key string) (*Entry, error)
	// Put stores the entry under the given key, replacing any existing entry.
	Put(key string, entry Entry) error
	// Remove deletes the entry for the given key, if it exists.
	Remove(key string) error
	// Clear deletes all entries.
	Clear() error
	// Keys calls the given callback for each key with the given prefix.
	Keys(prefix string, cb func(string)) error
}

// Entry is a stored response.
type Entry struct {
	Key     string
	Data    []byte
	Headers http.Header
	// ETag and LastModified are the validators sent on revalidation.
	ETag         string
	LastModified string
	ServerDate   time.Time
	// TTL is the hard expiry, after which the entry must not be served.
	TTL time.Time
	// SoftTTL is the freshness expiry, after which the entry needs a refresh.
	SoftTTL    time.Time
	ReceivedAt time.Time
}

// IsExpired reports whether the hard expiry has passed.
func (e Entry) IsExpired() bool {
	return e.IsExpiredAt(time.Now())
}

// IsExpiredAt reports whether the hard expiry has passed at the given time.
func (e Entry) IsExpiredAt(now time.Time) bool {
	return !e.Expiration().MayServeStale(now)
}

// RefreshNeeded reports whether the soft expiry has passed.
func (e Entry) RefreshNeeded() bool {
	return e.RefreshNeededAt(time.Now())
}

// RefreshNeededAt reports whether the entry is no longer fresh at the
// given time.
func (e Entry) RefreshNeededAt(now time.Time) bool {
	return !e.Expiration().IsFresh(now)
}

func (e Entry) Expiration() rfc9111.Expiration {
	return rfc9111.Expiration{Soft: e.SoftTTL, Hard: e.TTL}
}

// HasValidator reports whether the entry can be revalidated conditionally.
func (e Entry) HasValidator() bool {
	return e.ETag != "" || e.LastModified != ""
}

// clone returns a deep copy so callers can't mutate stored state.
func (e Entry) clone() *Entry {
	c := e
	c.Data = append([]byte(nil), e.Data...)
	c.Headers = e.Headers.Clone()
	return &c
}
