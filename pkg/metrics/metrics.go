// Package metrics exposes the Prometheus registry used by the harvester.
// Metrics are defined with promauto in their own packages (client, cache,
// ratelimit, pagination); this package only exports them.
//
// A harvest is a batch job, so the usual way to ship its metrics is the
// node_exporter textfile collector (WriteTextfile). A scrape endpoint is
// available for long runs (Handler).
package metrics

import (
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry is the registerer all harvester metrics are registered with.
var Registry = prometheus.DefaultRegisterer

// Gatherer is the gatherer matching Registry.
var Gatherer = prometheus.DefaultGatherer

// WriteTextfile writes the current value of every metric to path in the
// Prometheus text exposition format. The file is written atomically.
func WriteTextfile(path string) error {
	if path == "" {
		return fmt.Errorf("metrics textfile path is empty")
	}
	if err := prometheus.WriteToTextfile(path, Gatherer); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}

// Handler returns the scrape handler for Gatherer.
func Handler() http.Handler {
	return promhttp.HandlerFor(Gatherer, promhttp.HandlerOpts{})
}

// Metrics Documentation
//
// Request Metrics (pkg/client):
//   - sonar_requests_total{endpoint, status} (Counter): requests by endpoint and HTTP status
//   - sonar_request_duration_seconds{endpoint} (Histogram): request duration
//   - sonar_errors_total{class} (Counter): errors by class (client, server, network)
//
// Pagination Metrics (pkg/pagination):
//   - sonar_harvest_pages_fetched_total{endpoint} (Counter)
//   - sonar_harvest_items_fetched_total{endpoint} (Counter)
//   - sonar_harvest_hard_cap_reached_total{endpoint} (Counter)
//   - sonar_harvest_max_results_reached_total{endpoint} (Counter)
//
// Throttle Metrics (pkg/ratelimit):
//   - sonar_harvest_throttle_waits_total (Counter)
//   - sonar_harvest_throttle_wait_seconds_total (Counter)
//
// Harvest Metrics (internal/harvest):
//   - sonar_harvest_phase_duration_seconds{phase} (Gauge): duration of the last run of a phase
//   - sonar_harvest_failures_total{phase} (Counter): resources that failed
//   - sonar_harvest_files_written_total{phase} (Counter)
//
// Cache Metrics (pkg/cache):
//   - sonar_cache_hits_total (Counter)
//   - sonar_cache_misses_total (Counter)
//   - sonar_cache_errors_total{operation} (Counter)
//
// Example Prometheus Queries:
//
//   # Share of time spent sleeping in the throttle
//   sonar_harvest_throttle_wait_seconds_total / time()
//
//   # Requests answered from cache on a re-run
//   sonar_cache_hits_total / (sonar_cache_hits_total + sonar_cache_misses_total)
