// Package metrics documents the Prometheus metrics exported by the library.
// Metrics are defined in their respective packages (client, fetcher,
// pagination) and created through Factory, which registers them on Registry.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Registry is the registerer all library metrics are registered on.
var Registry = prometheus.DefaultRegisterer

// Gatherer is the gatherer matching Registry, for exposition.
var Gatherer = prometheus.DefaultGatherer

// Factory creates collectors registered on Registry.
var Factory = promauto.With(Registry)

// Names lists every metric family the library registers.
var Names = []string{
	// pkg/client
	"ebay_requests_total",
	"ebay_request_duration_seconds",
	"ebay_errors_total",
	"ebay_retries_total",
	"ebay_retry_backoff_seconds",
	"ebay_retry_exhausted_total",

	// pkg/fetcher
	"ebay_pages_total",

	// pkg/pagination
	"ebay_records_collected_total",
	"ebay_collection_early_stops_total",
	"ebay_collection_duration_seconds",
}

// Metrics Documentation
//
// Request Metrics (pkg/client):
//   - ebay_requests_total{operation, status} (Counter): requests by HTTP status or "network_error"
//   - ebay_request_duration_seconds{operation} (Histogram): call duration, retries included
//   - ebay_errors_total{class} (Counter): failures by class (client, server, rate_limit, network)
//
// Retry Metrics (pkg/client):
//   - ebay_retries_total{error_class} (Counter)
//   - ebay_retry_backoff_seconds{error_class} (Histogram)
//   - ebay_retry_exhausted_total{error_class} (Counter)
//
// Page Metrics (pkg/fetcher):
//   - ebay_pages_total{result} (Counter): "success" or the error tag
//
// Collection Metrics (pkg/pagination):
//   - ebay_records_collected_total{mode} (Counter): records appended, mode sequential|concurrent
//   - ebay_collection_early_stops_total (Counter): sequential runs stopped by consecutive failures
//   - ebay_collection_duration_seconds{mode} (Histogram)
//
// Example Prometheus Queries:
//
//   # Page failure ratio
//   sum(rate(ebay_pages_total{result!="success"}[5m])) / sum(rate(ebay_pages_total[5m]))
//
//   # P95 request latency
//   histogram_quantile(0.95, rate(ebay_request_duration_seconds_bucket[5m]))
