package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	jsoniter "github.com/json-iterator/go"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/always-cache/easyfetch"
	"github.com/always-cache/easyfetch/cache"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// admin serves the cache admin API.
type admin struct {
	client *easyfetch.Client
	store  cache.Store
	prefix string
	log    zerolog.Logger
}

func newAdminRouter(a *admin) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(a.logRequests)

	r.Handle("/metrics", promhttp.Handler())
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	r.Get("/fetch", a.fetch)
	r.Get("/keys", a.keys)
	r.Delete("/cache", a.dropAll)
	r.Delete("/cache/entry", a.dropEntry)
	return r
}

func (a *admin) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		a.log.Debug().
			Str("method", r.Method).
			Str("url", r.URL.String()).
			Str("requestId", middleware.GetReqID(r.Context())).
			Int("status", ww.Status()).
			Dur("duration", time.Since(start)).
			Msg("Admin request")
	})
}

// fetch runs a request through the client and relays the outcome.
func (a *admin) fetch(w http.ResponseWriter, r *http.Request) {
	target := r.URL.Query().Get("url")
	policy := r.URL.Query().Get("policy")
	if policy == "" {
		policy = "default"
	}
	res, err := fetch(r.Context(), a.client, target, fetchOptions{method: http.MethodGet, policy: policy})
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if res.err != nil {
		status := res.err.StatusCode
		if status <= 0 {
			status = http.StatusBadGateway
		}
		http.Error(w, res.err.Message, status)
		return
	}
	for name, values := range res.res.Headers {
		if name == "Content-Encoding" || name == "Content-Length" {
			continue
		}
		for _, v := range values {
			w.Header().Add(name, v)
		}
	}
	w.WriteHeader(res.res.StatusCode)
	w.Write([]byte(res.body))
}

func (a *admin) keys(w http.ResponseWriter, r *http.Request) {
	prefix := r.URL.Query().Get("prefix")
	if prefix == "" {
		prefix = a.prefix
	}
	keys := []string{}
	if err := a.store.Keys(prefix, func(key string) { keys = append(keys, key) }); err != nil {
		a.log.Error().Err(err).Msg("Could not list keys")
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(keys)
}

func (a *admin) dropAll(w http.ResponseWriter, r *http.Request) {
	if err := a.client.DropAllCache(); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// dropEntry drops the entry for ?url= (and optionally ?method=), or the
// raw ?key=.
func (a *admin) dropEntry(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	key := q.Get("key")
	if key == "" {
		method := q.Get("method")
		if method == "" {
			method = http.MethodGet
		}
		b, err := builderFor(a.client, method, q.Get("url"))
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		d, err := b.Descriptor()
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		key = a.client.CacheKey(d)
	}
	if err := a.client.DropCache(key); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func newServeCommand() *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the admin API and metrics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			config, err := loadConfig()
			if err != nil {
				return err
			}
			if addr != "" {
				config.Admin.Addr = addr
			}
			client, store, closeAll, err := openClient(config)
			if err != nil {
				return err
			}
			defer closeAll()

			handler := newAdminRouter(&admin{
				client: client,
				store:  store,
				prefix: config.keyer().NamespacePrefix,
				log:    log.Logger.With().Str("component", "admin").Logger(),
			})
			srv := &http.Server{
				Addr:              config.Admin.Addr,
				Handler:           handler,
				ReadHeaderTimeout: 10 * time.Second,
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			errCh := make(chan error, 1)
			go func() {
				log.Info().Str("addr", srv.Addr).Msg("Serving admin API")
				errCh <- srv.ListenAndServe()
			}()

			select {
			case err := <-errCh:
				if !errors.Is(err, http.ErrServerClosed) {
					return err
				}
				return nil
			case <-ctx.Done():
			}
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			log.Info().Msg("Shutting down admin API")
			return srv.Shutdown(shutdownCtx)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "Address to listen on (overrides config)")
	return cmd
}
