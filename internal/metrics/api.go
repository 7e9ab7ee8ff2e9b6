package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// HTTP metrics for the exporter endpoint itself
var (
	// HTTPRequestDuration tracks exporter request latency
	HTTPRequestDuration *prometheus.HistogramVec

	// HTTPRequestsTotal tracks exporter requests by handler, method, code
	HTTPRequestsTotal *prometheus.CounterVec
)

// initAPIMetrics initializes all API subsystem metrics
func initAPIMetrics() {
	HTTPRequestDuration = NewHistogramVec(
		"http_request_duration_seconds",
		"HTTP request duration in seconds.",
		APIBuckets,
		[]string{"handler", "method", "code"},
	)

	HTTPRequestsTotal = NewCounterVec(
		"http_requests_total",
		"Total HTTP requests served by the rmx exporter.",
		[]string{"handler", "method", "code"},
	)
}

// registerAPIMetrics registers all API metrics with Prometheus
func registerAPIMetrics() {
	prometheus.MustRegister(HTTPRequestDuration)
	prometheus.MustRegister(HTTPRequestsTotal)
}

func instrument(handler string, h http.Handler) http.Handler {
	labels := prometheus.Labels{"handler": handler}
	return promhttp.InstrumentHandlerDuration(
		HTTPRequestDuration.MustCurryWith(labels),
		promhttp.InstrumentHandlerCounter(HTTPRequestsTotal.MustCurryWith(labels), h),
	)
}
