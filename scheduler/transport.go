package scheduler

import (
	"crypto/tls"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// newHTTPClient builds the client used for every attempt. Timeouts are
// applied per attempt through the request context.
func newHTTPClient(userAgent string, logger zerolog.Logger) *http.Client {
	base := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		TLSClientConfig: &tls.Config{
			MinVersion: tls.VersionTLS12,
		},
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
	return &http.Client{Transport: newLoggingTransport(base, userAgent, logger)}
}

// loggingTransport logs each attempt and sets the User-Agent header.
type loggingTransport struct {
	base      http.RoundTripper
	userAgent string
	log       zerolog.Logger
}

func newLoggingTransport(base http.RoundTripper, userAgent string, logger zerolog.Logger) *loggingTransport {
	if base == nil {
		base = http.DefaultTransport
	}
	return &loggingTransport{base: base, userAgent: userAgent, log: logger}
}

// RoundTrip implements http.RoundTripper.
func (t *loggingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	start := time.Now()
	if req.Header.Get("User-Agent") == "" && t.userAgent != "" {
		req.Header.Set("User-Agent", t.userAgent)
	}

	resp, err := t.base.RoundTrip(req)
	duration := time.Since(start)

	logURL := sanitizeURL(req.URL)
	if err != nil {
		t.log.Warn().Err(err).
			Str("method", req.Method).
			Str("url", logURL).
			Dur("duration", duration).
			Msg("http request failed")
		return resp, err
	}
	level := zerolog.DebugLevel
	if resp.StatusCode >= 400 {
		level = zerolog.WarnLevel
	}
	t.log.WithLevel(level).
		Str("method", req.Method).
		Str("url", logURL).
		Int("status", resp.StatusCode).
		Dur("duration", duration).
		Msg("http request")
	return resp, err
}

var sensitiveParams = []string{"token", "key", "secret", "password", "signature", "auth"}

// sanitizeURL redacts query parameters that look like credentials.
func sanitizeURL(u *url.URL) string {
	if u == nil {
		return ""
	}
	if u.RawQuery == "" && u.User == nil {
		return u.String()
	}
	clean := *u
	clean.User = nil
	q := clean.Query()
	for name := range q {
		lower := strings.ToLower(name)
		for _, s := range sensitiveParams {
			if strings.Contains(lower, s) {
				q.Set(name, "REDACTED")
				break
			}
		}
	}
	clean.RawQuery = q.Encode()
	return clean.String()
}
