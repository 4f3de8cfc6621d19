package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "emagsync_http_requests_total",
			Help: "Total number of API requests.",
		},
		[]string{"method", "endpoint", "status"},
	)
	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "emagsync_http_request_duration_seconds",
			Help:    "Histogram of API request durations.",
			Buckets: []float64{0.05, 0.1, 0.5, 1, 2, 5},
		},
		[]string{"method", "endpoint", "status"},
	)
	runsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "emagsync_runs_total",
			Help: "Sync runs by action and outcome.",
		},
		[]string{"action", "status"},
	)
	runDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "emagsync_run_duration_seconds",
			Help:    "Duration of sync runs.",
			Buckets: []float64{10, 30, 60, 300, 600, 1800, 3600},
		},
		[]string{"action"},
	)
	batchesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "emagsync_batches_total",
			Help: "Batches posted to product_offer/save by outcome.",
		},
		[]string{"outcome"},
	)
	offersTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "emagsync_offers_total",
			Help: "Offers posted to product_offer/save by outcome.",
		},
		[]string{"outcome"},
	)
)

func init() {
	prometheus.MustRegister(httpRequestsTotal)
	prometheus.MustRegister(httpRequestDuration)
	prometheus.MustRegister(runsTotal)
	prometheus.MustRegister(runDuration)
	prometheus.MustRegister(batchesTotal)
	prometheus.MustRegister(offersTotal)
}

// RecordRequest records an API request.
func RecordRequest(method, endpoint string, statusCode int, duration time.Duration) {
	status := classifyStatus(statusCode)
	httpRequestsTotal.WithLabelValues(method, endpoint, status).Inc()
	httpRequestDuration.WithLabelValues(method, endpoint, status).Observe(duration.Seconds())
}

// RecordRun records a finished sync run.
func RecordRun(action, status string, duration time.Duration) {
	runsTotal.WithLabelValues(action, status).Inc()
	runDuration.WithLabelValues(action).Observe(duration.Seconds())
}

// RecordBatch records one posted batch of size offers.
func RecordBatch(failed bool, size int) {
	outcome := "ok"
	if failed {
		outcome = "failed"
	}
	batchesTotal.WithLabelValues(outcome).Inc()
	offersTotal.WithLabelValues(outcome).Add(float64(size))
}

func classifyStatus(statusCode int) string {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return "2xx"
	case statusCode >= 300 && statusCode < 400:
		return "3xx"
	case statusCode >= 400 && statusCode < 500:
		return "4xx"
	case statusCode >= 500 && statusCode < 600:
		return "5xx"
	}
	return "unknown"
}

// Handler exposes the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
