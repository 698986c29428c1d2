// Package metrics exposes Prometheus instrumentation for the filesystem.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// RemoteRequests counts requests to the remote server by operation and outcome.
	RemoteRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "remotefs_remote_requests_total",
			Help: "Remote server requests by operation and outcome",
		},
		[]string{"operation", "outcome"},
	)

	// RemoteRequestDuration tracks remote request latency by operation.
	RemoteRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "remotefs_remote_request_duration_seconds",
			Help:    "Remote request duration by operation",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	// CacheHits counts cache hits by tier (dir, file).
	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "remotefs_cache_hits_total",
			Help: "Cache hits by tier",
		},
		[]string{"tier"},
	)

	// CacheMisses counts cache misses by tier (dir, file).
	CacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "remotefs_cache_misses_total",
			Help: "Cache misses by tier",
		},
		[]string{"tier"},
	)

	// CacheEvictions counts entries evicted from the file cache.
	CacheEvictions = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "remotefs_cache_evictions_total",
			Help: "File cache entries evicted to make room",
		},
	)

	// CacheBytes reports the bytes currently held by the file cache.
	CacheBytes = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "remotefs_cache_bytes",
			Help: "Bytes resident in the file content cache",
		},
	)

	// CoalescedWaiters counts calls that waited on an in-flight fetch
	// instead of issuing their own.
	CoalescedWaiters = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "remotefs_coalesced_waiters_total",
			Help: "Calls served by an in-flight fetch by tier",
		},
		[]string{"tier"},
	)

	// FUSEOperations counts FUSE operations by name.
	FUSEOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "remotefs_fuse_operations_total",
			Help: "FUSE operations by name",
		},
		[]string{"operation"},
	)
)

// Handler returns the HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Serve starts a metrics server on addr. It blocks.
func Serve(addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler())
	return http.ListenAndServe(addr, mux)
}
