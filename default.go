package easyfetch

import (
	"errors"
	"sync"
)

var ErrNotInitialized = errors.New("easyfetch: Init has not been called")

var (
	defaultMu     sync.RWMutex
	defaultClient *Client
)

// Init creates the package-level client used by Get, Post and friends.
// Calling it again replaces the previous client, which is closed.
func Init(config Config) error {
	c, err := New(config)
	if err != nil {
		return err
	}
	defaultMu.Lock()
	prev := defaultClient
	defaultClient = c
	defaultMu.Unlock()
	if prev != nil {
		return prev.Close()
	}
	return nil
}

// Default returns the package-level client, or nil before Init.
func Default() *Client {
	defaultMu.RLock()
	defer defaultMu.RUnlock()
	return defaultClient
}

func mustDefault() *Client {
	c := Default()
	if c == nil {
		panic(ErrNotInitialized)
	}
	return c
}

// Get starts a GET request on the default client. It panics before Init.
func Get(url string) *RequestBuilder { return mustDefault().Get(url) }

func Post(url string) *RequestBuilder { return mustDefault().Post(url) }

func Put(url string) *RequestBuilder { return mustDefault().Put(url) }

func Delete(url string) *RequestBuilder { return mustDefault().Delete(url) }

func Head(url string) *RequestBuilder { return mustDefault().Head(url) }

func Options(url string) *RequestBuilder { return mustDefault().Options(url) }

func Trace(url string) *RequestBuilder { return mustDefault().Trace(url) }

func Patch(url string) *RequestBuilder { return mustDefault().Patch(url) }

// Shutdown closes the default client.
func Shutdown() error {
	defaultMu.Lock()
	c := defaultClient
	defaultClient = nil
	defaultMu.Unlock()
	if c == nil {
		return nil
	}
	return c.Close()
}
