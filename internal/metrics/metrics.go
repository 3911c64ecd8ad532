// Package metrics registers the Prometheus collectors exported on /metrics.
package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Status labels for domain counters.
const (
	StatusOK    = "ok"
	StatusError = "error"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "unidrive_http_requests_total",
		Help: "Total number of HTTP requests processed.",
	}, []string{"method", "route", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "unidrive_http_request_duration_seconds",
		Help:    "Histogram of latencies for HTTP requests.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route"})

	driveOperationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "unidrive_drive_operations_total",
		Help: "Google Drive operations issued on behalf of users.",
	}, []string{"operation", "status"})

	driveOperationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "unidrive_drive_operation_duration_seconds",
		Help:    "Latency of Google Drive operations.",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation"})

	tokenRefreshesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "unidrive_token_refreshes_total",
		Help: "OAuth access token refresh exchanges by result.",
	}, []string{"result"})

	uploadNegotiationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "unidrive_upload_negotiations_total",
		Help: "Upload URLs handed to browsers by strategy.",
	}, []string{"strategy", "status"})
)

// Middleware records request count and latency labelled by chi route pattern.
func Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			// The pattern is only complete once routing has finished.
			route := routePattern(r)
			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			httpRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
			httpRequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
		})
	}
}

// Handler exposes the Prometheus metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveDriveOperation counts one Drive call and records its latency.
func ObserveDriveOperation(operation string, start time.Time, err error) {
	driveOperationsTotal.WithLabelValues(operation, statusOf(err)).Inc()
	driveOperationDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}

// ObserveTokenRefresh counts a refresh exchange. result is "ok", "transient" or "permanent".
func ObserveTokenRefresh(result string) {
	tokenRefreshesTotal.WithLabelValues(result).Inc()
}

// ObserveUploadNegotiation counts an upload URL request by chosen strategy.
func ObserveUploadNegotiation(strategy string, err error) {
	uploadNegotiationsTotal.WithLabelValues(strategy, statusOf(err)).Inc()
}

func statusOf(err error) string {
	if err != nil {
		return StatusError
	}
	return StatusOK
}

func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if pattern := strings.TrimSpace(rctx.RoutePattern()); pattern != "" {
			return pattern
		}
	}
	return "unmatched"
}
