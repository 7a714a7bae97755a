// Package metrics provides the centralized Prometheus registry reference for
// the top-sellers fetcher. Metrics are defined in the packages they
// instrument (client, pagination, details, cache) to maintain modularity and
// avoid circular dependencies.
//
// This package documents the available metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Registry is the default Prometheus registry. All metrics are automatically
// registered via promauto in their respective packages.
var Registry = prometheus.DefaultRegisterer

// Metrics Documentation
//
// Request Metrics (pkg/client):
//   - steam_requests_total{endpoint, status} (Counter): requests by endpoint and HTTP status ("cached" for cache hits)
//   - steam_request_duration_seconds{endpoint} (Histogram): exchange duration by endpoint
//   - steam_errors_total{kind} (Counter): errors by kind (transport, schema)
//
// Pool Metrics (pkg/pagination):
//   - steam_pages_fetched_total{status} (Counter): page outcomes (success, failure)
//   - steam_retries_total{kind} (Counter): retry attempts by error kind
//   - steam_retry_backoff_seconds{kind} (Histogram): backoff duration by error kind
//   - steam_retry_exhausted_total{kind} (Counter): pages that exhausted retries
//
// Details Metrics (pkg/details):
//   - steam_details_fetched_total{status} (Counter): detail outcomes (success, failure, skipped)
//
// Cache Metrics (pkg/cache):
//   - steam_cache_hits_total{layer="redis"} (Counter): cache hits by layer
//   - steam_cache_misses_total (Counter): cache misses
//   - steam_cache_size_bytes{layer="redis"} (Gauge): cache size in bytes
//   - steam_cache_errors_total{operation} (Counter): cache operation errors
//
// Example Prometheus Queries:
//
//   # Cache Hit Rate
//   sum(rate(steam_cache_hits_total[5m])) /
//   (sum(rate(steam_cache_hits_total[5m])) + sum(rate(steam_cache_misses_total[5m])))
//
//   # Page Failure Rate
//   rate(steam_pages_fetched_total{status="failure"}[5m])
//
//   # P95 Request Latency
//   histogram_quantile(0.95, rate(steam_request_duration_seconds_bucket[5m]))
