// Package metrics holds the Prometheus collectors exported at /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

var (
	CacheLookups = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "authserver_cache_lookups_total",
			Help: "Response cache lookups by result (hit, miss, error)",
		},
		[]string{"result"},
	)

	CacheInvalidations = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "authserver_cache_invalidations_total",
		Help: "Response cache entries removed by invalidation",
	})

	CacheStaleWrites = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "authserver_cache_stale_writes_total",
		Help: "Rendered responses not stored because their tags were invalidated while rendering",
	})

	AuthEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "authserver_auth_events_total",
			Help: "Authentication events by kind and outcome",
		},
		[]string{"event", "outcome"},
	)

	ResetTokensPurged = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "authserver_reset_tokens_purged_total",
		Help: "Expired password reset tokens deleted",
	})
)

// NewRegistry returns a registry with the process collectors and every
// authserver metric registered.
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		CacheLookups,
		CacheInvalidations,
		CacheStaleWrites,
		AuthEvents,
		ResetTokensPurged,
	)
	return reg
}
