// Package metrics provides the Prometheus exposition surface for the
// prospector. Metrics are defined in their respective packages (lix, lookc,
// retry, paginate, cache) via promauto to keep packages self-contained.
//
// This package provides the HTTP handler and documents the available
// metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry is the default Prometheus registry used by the prospector.
// All metrics are automatically registered via promauto in their packages.
var Registry = prometheus.DefaultRegisterer

// Handler returns the /metrics HTTP handler for the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Metrics Documentation
//
// Request Metrics (pkg/lix, pkg/lookc):
//   - prospector_lix_requests_total{endpoint, status} (Counter)
//   - prospector_lix_request_duration_seconds{endpoint} (Histogram)
//   - prospector_lix_errors_total{class} (Counter)
//   - prospector_lookc_requests_total{endpoint, status} (Counter)
//   - prospector_lookc_errors_total{class} (Counter)
//
// Retry Metrics (pkg/retry):
//   - prospector_retries_total{error_class} (Counter)
//   - prospector_retry_exhausted_total{error_class} (Counter)
//
// Fetch Loop Metrics (pkg/paginate):
//   - prospector_pages_fetched_total{collection} (Counter)
//   - prospector_items_collected_total{collection} (Counter)
//   - prospector_collections_completed_total{collection} (Counter)
//
// Cache Metrics (pkg/cache):
//   - prospector_cache_hits_total (Counter)
//   - prospector_cache_misses_total (Counter)
//   - prospector_cache_errors_total{operation} (Counter)
//
// Example Prometheus Queries:
//
//	# Cache Hit Rate
//	sum(rate(prospector_cache_hits_total[5m])) /
//	(sum(rate(prospector_cache_hits_total[5m])) + sum(rate(prospector_cache_misses_total[5m])))
//
//	# Retry Pressure by Class
//	rate(prospector_retries_total[5m])
//
//	# Collection Throughput
//	rate(prospector_items_collected_total[5m])
