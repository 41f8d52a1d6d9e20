package ingest

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// writesTotal counts successful write operations by target kind.
	writesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tickvault_writes_total",
			Help: "Total successful write operations",
		},
		[]string{"kind"},
	)

	// recordsInserted counts remote-confirmed inserted records by target kind.
	recordsInserted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tickvault_records_inserted_total",
			Help: "Total records the persistence service confirmed inserted",
		},
		[]string{"kind"},
	)

	// recordsSkipped counts records dropped for lacking a wire payload.
	recordsSkipped = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "tickvault_records_skipped_total",
			Help: "Total records skipped because they could not be converted",
		},
	)

	// writeFailures counts failed write operations by error classification.
	writeFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tickvault_write_failures_total",
			Help: "Total failed write operations",
		},
		[]string{"classification"},
	)

	// gapsDetected counts candle gaps found by FindGaps.
	gapsDetected = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "tickvault_gaps_detected_total",
			Help: "Total candle series gaps detected",
		},
	)

	// breakerState mirrors the storage breaker state (0 closed, 1 open,
	// 2 half-open).
	breakerState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "tickvault_breaker_state",
			Help: "Storage circuit breaker state (0=closed, 1=open, 2=half-open)",
		},
		[]string{"name"},
	)
)

// InitMetrics registers the ingestion collectors with the default Prometheus
// registry. Call once at startup; adapters work unregistered but are not
// scraped.
func InitMetrics() {
	prometheus.MustRegister(
		writesTotal,
		recordsInserted,
		recordsSkipped,
		writeFailures,
		gapsDetected,
		breakerState,
	)
}

// MetricsHandler returns the scrape endpoint handler.
func MetricsHandler() http.Handler {
	return promhttp.Handler()
}
