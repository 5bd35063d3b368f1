// Package metrics defines custom Prometheus metrics for GroundStore.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// registerOnce ensures Register() is idempotent.
var registerOnce sync.Once

// Credential store metrics.
var (
	// CredentialTTL reports, per host, the seconds remaining until the
	// stored credential expires. The per-host child is created lazily on
	// the first put for that host.
	CredentialTTL = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "groundstore_credential_time_to_live_seconds",
			Help: "Seconds until the stored credential for a host expires",
		},
		[]string{"host"},
	)
)

// Remote fetch metrics.
var (
	// FetchAttemptsTotal counts HTTP attempts against the object store by
	// sink variant and outcome.
	FetchAttemptsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "groundstore_fetch_attempts_total",
			Help: "HTTP fetch attempts by sink and status",
		},
		[]string{"sink", "status"},
	)

	// FetchBytesTotal counts payload bytes transferred by sink variant.
	FetchBytesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "groundstore_fetch_bytes_total",
			Help: "Payload bytes transferred by sink",
		},
		[]string{"sink"},
	)
)

// Cache metrics.
var (
	// CacheEventsTotal counts cache lookups and maintenance by event type
	// (hit, miss, evict).
	CacheEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "groundstore_cache_events_total",
			Help: "Disk cache events by type",
		},
		[]string{"event"},
	)
)

// Register registers all Prometheus collectors with the default registry.
// This must be called explicitly (typically from main) so that metrics
// registration can be made conditional on configuration. It is safe to call
// multiple times; subsequent calls are no-ops.
func Register() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			CredentialTTL,
			FetchAttemptsTotal,
			FetchBytesTotal,
			CacheEventsTotal,
		)
		// Initialize the cache counters so the series appear in /metrics
		// output before any cache traffic.
		CacheEventsTotal.WithLabelValues("hit")
		CacheEventsTotal.WithLabelValues("miss")
		CacheEventsTotal.WithLabelValues("evict")
	})
}
