package main

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/always-cache/easyfetch"
	"github.com/always-cache/easyfetch/cache"
)

func TestGetConfig(t *testing.T) {
	filename := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(filename, []byte(`
store: memory
namespace: test
keyHeaders: [Authorization]
timeout: 5s
maxRetries: 3
admin:
  addr: ":9090"
rules:
  - prefix: /static/
    default: max-age=3600
`), 0644))
	t.Setenv("EASYFETCH_MAX_RETRIES", "4")
	t.Setenv("EASYFETCH_ADMIN_ADDR", ":9191")

	config, err := getConfig(filename)
	require.NoError(t, err)
	assert.Equal(t, "memory", config.Store)
	assert.Equal(t, "test", config.Namespace)
	assert.Equal(t, []string{"Authorization"}, config.KeyHeaders)
	assert.Equal(t, 5*time.Second, config.Timeout)
	assert.Equal(t, 4, config.MaxRetries)
	assert.Equal(t, ":9191", config.Admin.Addr)
	// untouched defaults survive
	assert.Equal(t, 1.0, config.BackoffMultiplier)
	require.Len(t, config.Rules, 1)
	assert.Equal(t, "/static/", config.Rules[0].Prefix)
	assert.Equal(t, "max-age=3600", config.Rules[0].Default)

	cc := config.clientConfig(cache.NewMemCache())
	require.NotNil(t, cc.SchedulerConfig)
	assert.NotNil(t, cc.SchedulerConfig.ResponseModifier)
}

func TestOpenStore(t *testing.T) {
	for _, store := range []string{"memory", "sqlite"} {
		c := defaultConfig()
		c.Store = store
		c.DB = filepath.Join(t.TempDir(), "cache.db")
		s, err := c.openStore()
		require.NoError(t, err)
		require.NotNil(t, s)
	}
	c := defaultConfig()
	c.Store = "postgres"
	_, err := c.openStore()
	assert.Error(t, err)
	c.Store = "redis"
	_, err = c.openStore()
	assert.Error(t, err)
}

func newTestAdmin(t *testing.T) (http.Handler, *httptest.Server, *atomic.Int32) {
	t.Helper()
	var hits atomic.Int32
	r := chi.NewRouter()
	r.Get("/data", func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Header().Set("Cache-Control", "max-age=60")
		w.Write([]byte("payload"))
	})
	origin := httptest.NewServer(r)
	t.Cleanup(origin.Close)

	logger := zerolog.Nop()
	store := cache.NewMemCache()
	config := defaultConfig()
	cc := config.clientConfig(store)
	cc.Logger = &logger
	client, err := easyfetch.New(cc)
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })

	handler := newAdminRouter(&admin{
		client: client,
		store:  store,
		prefix: config.keyer().NamespacePrefix,
		log:    logger,
	})
	return handler, origin, &hits
}

func do(t *testing.T, h http.Handler, method, target string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(method, target, nil))
	return rec
}

func TestAdminFetchAndDrop(t *testing.T) {
	h, origin, hits := newTestAdmin(t)
	dataURL := url.QueryEscape(origin.URL + "/data")

	rec := do(t, h, http.MethodGet, "/fetch?url="+dataURL)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "payload", rec.Body.String())

	rec = do(t, h, http.MethodGet, "/fetch?url="+dataURL+"&policy=offline")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 1, hits.Load())

	rec = do(t, h, http.MethodGet, "/keys")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "/data")

	rec = do(t, h, http.MethodDelete, "/cache/entry?url="+dataURL)
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = do(t, h, http.MethodGet, "/fetch?url="+dataURL+"&policy=offline")
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Contains(t, rec.Body.String(), "No Cache Available")
}

func TestAdminDropAll(t *testing.T) {
	h, origin, _ := newTestAdmin(t)
	dataURL := url.QueryEscape(origin.URL + "/data")
	require.Equal(t, http.StatusOK, do(t, h, http.MethodGet, "/fetch?url="+dataURL).Code)

	require.Equal(t, http.StatusNoContent, do(t, h, http.MethodDelete, "/cache").Code)
	rec := do(t, h, http.MethodGet, "/keys")
	assert.JSONEq(t, "[]", rec.Body.String())
}

func TestAdminMetrics(t *testing.T) {
	h, _, _ := newTestAdmin(t)
	rec := do(t, h, http.MethodGet, "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

func TestFetchInvalidPolicy(t *testing.T) {
	_, origin, _ := newTestAdmin(t)
	logger := zerolog.Nop()
	client, err := easyfetch.New(easyfetch.Config{Logger: &logger})
	require.NoError(t, err)
	defer client.Close()

	_, err = fetch(context.Background(), client, origin.URL+"/data", fetchOptions{method: "GET", policy: "sometimes"})
	assert.Error(t, err)
	_, err = fetch(context.Background(), client, origin.URL+"/data", fetchOptions{method: "BREW", policy: "default"})
	assert.Error(t, err)
	_, err = fetch(context.Background(), client, origin.URL+"/data", fetchOptions{method: "GET", policy: "default", headers: []string{"bad"}})
	assert.Error(t, err)
}

func TestWriteHead(t *testing.T) {
	var buf bytes.Buffer
	_, origin, _ := newTestAdmin(t)
	logger := zerolog.Nop()
	client, err := easyfetch.New(easyfetch.Config{Logger: &logger})
	require.NoError(t, err)
	defer client.Close()

	r, err := fetch(context.Background(), client, origin.URL+"/data", fetchOptions{method: "GET", policy: "no-cache"})
	require.NoError(t, err)
	require.Nil(t, r.err)
	writeHead(&buf, r.res)
	assert.Contains(t, buf.String(), "200 OK\n")
	assert.Contains(t, buf.String(), "Cache-Control: max-age=60\n")
}
