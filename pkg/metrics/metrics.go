package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "analyzer_http_requests_total",
			Help: "Total number of HTTP requests served, by route and status code",
		},
		[]string{"endpoint", "status"},
	)

	EngineCallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "analyzer_engine_call_duration_seconds",
			Help:    "Duration of analysis engine calls in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	EngineCallsFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "analyzer_engine_calls_failed_total",
			Help: "Total number of failed analysis engine calls",
		},
		[]string{"operation", "client_caused"},
	)
)

// ObserveRequest counts a served request.
func ObserveRequest(endpoint string, status int) {
	HTTPRequests.WithLabelValues(endpoint, strconv.Itoa(status)).Inc()
}

// ObserveEngineCall records the duration of an engine call started at start.
func ObserveEngineCall(operation string, start time.Time) {
	EngineCallDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}

// ObserveEngineFailure counts a failed engine call.
func ObserveEngineFailure(operation string, clientCaused bool) {
	EngineCallsFailed.WithLabelValues(operation, strconv.FormatBool(clientCaused)).Inc()
}

// Handler exposes the default registry in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.Handler()
}
