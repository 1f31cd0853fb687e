// Package metrics registers the application's Prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// URLsCreatedTotal counts successfully created mappings.
	URLsCreatedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "urls_created_total",
			Help: "Total number of short URLs created",
		},
	)

	// RedirectsTotal counts resolved redirects.
	RedirectsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "redirects_total",
			Help: "Total number of successful redirects",
		},
	)

	// VisitsRecordedTotal counts visits written to the ledger.
	VisitsRecordedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "visits_recorded_total",
			Help: "Total number of visit records written",
		},
	)

	// CacheHitsTotal counts mapping cache hits.
	CacheHitsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "cache_hits_total",
			Help: "Total number of mapping cache hits",
		},
	)

	// CacheMissesTotal counts mapping cache misses.
	CacheMissesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "cache_misses_total",
			Help: "Total number of mapping cache misses",
		},
	)

	// ResetsTotal counts administrative resets.
	ResetsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "resets_total",
			Help: "Total number of administrative store resets",
		},
	)
)

// RecordURLCreated increments the created-mappings counter.
func RecordURLCreated() {
	URLsCreatedTotal.Inc()
}

// RecordRedirect increments the redirect counter.
func RecordRedirect() {
	RedirectsTotal.Inc()
}

// RecordVisit increments the visit-record counter.
func RecordVisit() {
	VisitsRecordedTotal.Inc()
}

// RecordCacheHit increments the cache hit counter.
func RecordCacheHit() {
	CacheHitsTotal.Inc()
}

// RecordCacheMiss increments the cache miss counter.
func RecordCacheMiss() {
	CacheMissesTotal.Inc()
}

// RecordReset increments the reset counter.
func RecordReset() {
	ResetsTotal.Inc()
}
