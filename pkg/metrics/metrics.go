// Package metrics provides the centralized Prometheus registry reference for
// the connector. All metrics are defined in their respective packages
// (fetcher, cache, loader) to maintain modularity and avoid circular
// dependencies.
//
// This package provides documentation and reference for all available metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Registry is the default Prometheus registry used by the connector.
// All metrics are automatically registered via promauto in their respective
// packages.
var Registry = prometheus.DefaultRegisterer

// Metrics Documentation
//
// Fetch Metrics (pkg/fetcher):
//   - nvd_fetch_attempts_total{outcome} (Counter): Attempts by outcome
//     (success, transport, rate_limited, bad_status, bad_payload,
//     missing_field)
//   - nvd_fetch_backoff_seconds{error_kind} (Histogram): Backoff duration
//     between attempts by error kind
//   - nvd_fetch_exhausted_total (Counter): Fetch invocations that ran out of
//     attempts
//   - nvd_fetch_records (Histogram): Records returned per successful fetch
//
// Cache Metrics (pkg/cache):
//   - nvd_cache_hits_total (Counter): Response cache hits
//   - nvd_cache_misses_total (Counter): Response cache misses
//   - nvd_cache_errors_total{operation} (Counter): Cache operation errors
//
// Insert Metrics (pkg/loader):
//   - cve_inserts_total{result} (Counter): Insert attempts by result
//     (inserted, failed, unacknowledged)
//
// Example Prometheus Queries:
//
//   # Fetch success rate
//   rate(nvd_fetch_attempts_total{outcome="success"}[1h]) /
//   sum(rate(nvd_fetch_attempts_total[1h]))
//
//   # Insert failure rate
//   sum(rate(cve_inserts_total{result!="inserted"}[1h]))
//
//   # Cache hit rate
//   rate(nvd_cache_hits_total[1h]) /
//   (rate(nvd_cache_hits_total[1h]) + rate(nvd_cache_misses_total[1h]))
