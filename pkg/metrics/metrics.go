// Package metrics holds the Prometheus collectors shared by all components.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	requests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "easyfetch_requests_total",
			Help: "Total submitted requests by routing path and network policy",
		},
		[]string{"path", "policy"},
	)

	cacheOnlyResults = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "easyfetch_cache_only_results_total",
			Help: "Total cache-only lookups by result (hit, miss, expired, error, canceled)",
		},
		[]string{"result"},
	)

	cacheOnlyQueue = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "easyfetch_cache_only_queue_length",
			Help: "Number of requests waiting in the cache-only queue",
		},
	)

	deliveries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "easyfetch_deliveries_total",
			Help: "Total terminal deliveries by outcome (success, error, decode_error)",
		},
		[]string{"outcome"},
	)

	networkRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "easyfetch_network_requests_total",
			Help: "Total network exchanges by status class and cache status",
		},
		[]string{"status_class", "cache"},
	)

	networkDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "easyfetch_network_duration_seconds",
			Help:    "Round trip time of network exchanges, including retries",
			Buckets: prometheus.DefBuckets,
		},
	)

	retries = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "easyfetch_network_retries_total",
			Help: "Total retried network attempts",
		},
	)
)

// RecordRequest increments the routing counter.
// path is "network" or "cache-only".
func RecordRequest(path, policy string) {
	requests.WithLabelValues(path, policy).Inc()
}

// RecordCacheOnlyResult increments the cache-only result counter.
func RecordCacheOnlyResult(result string) {
	cacheOnlyResults.WithLabelValues(result).Inc()
}

// SetCacheOnlyQueueLength sets the cache-only backlog gauge.
func SetCacheOnlyQueueLength(n int) {
	cacheOnlyQueue.Set(float64(n))
}

// RecordDelivery increments the delivery counter.
func RecordDelivery(outcome string) {
	deliveries.WithLabelValues(outcome).Inc()
}

// RecordNetwork records one completed network exchange.
// statusClass is e.g. "2xx", or "error" when no response was received.
// cache is "hit", "revalidated", "stored" or "bypass".
func RecordNetwork(statusClass, cache string, seconds float64) {
	networkRequests.WithLabelValues(statusClass, cache).Inc()
	networkDuration.Observe(seconds)
}

// RecordRetry increments the retry counter.
func RecordRetry() {
	retries.Inc()
}
