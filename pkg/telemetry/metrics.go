package telemetry

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry holds every skilldesk collector. A private registry keeps the
// process-global default clean for embedders.
var Registry = prometheus.NewRegistry()

var (
	quoteRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "skilldesk",
		Subsystem: "quotes",
		Name:      "requests_total",
		Help:      "Market-data requests by operation and outcome.",
	}, []string{"operation", "outcome"})

	quoteLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "skilldesk",
		Subsystem: "quotes",
		Name:      "request_duration_seconds",
		Help:      "Market-data request latency including retries.",
		Buckets:   prometheus.ExponentialBuckets(0.05, 2, 10),
	}, []string{"operation"})

	cacheLookups = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "skilldesk",
		Subsystem: "quotes",
		Name:      "cache_lookups_total",
		Help:      "Read-through cache lookups by table and result.",
	}, []string{"table", "result"})

	httpRequests = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "skilldesk",
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "API request latency by route and status code.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"route", "code"})
)

func init() {
	Registry.MustRegister(quoteRequests, quoteLatency, cacheLookups, httpRequests)
}

// ObserveQuoteRequest records one market-data operation.
func ObserveQuoteRequest(operation string, started time.Time, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	quoteRequests.WithLabelValues(operation, outcome).Inc()
	quoteLatency.WithLabelValues(operation).Observe(time.Since(started).Seconds())
}

// ObserveCacheLookup records a cache hit or miss for table.
func ObserveCacheLookup(table string, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	cacheLookups.WithLabelValues(table, result).Inc()
}

// ObserveHTTPRequest records one API request against its route template.
func ObserveHTTPRequest(route string, code int, started time.Time) {
	httpRequests.WithLabelValues(route, strconv.Itoa(code)).Observe(time.Since(started).Seconds())
}

// MetricsHandler serves the skilldesk registry in the Prometheus text format.
func MetricsHandler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}
