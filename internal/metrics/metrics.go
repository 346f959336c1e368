// Package metrics exposes Prometheus collectors for the baker and its HTTP API.
package metrics

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// File results recorded by ObserveFile.
const (
	FileStaged    = "staged"
	FileUnchanged = "unchanged"
	FileDeleted   = "deleted"
)

var (
	bakerFilesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sitebaker_files_total",
			Help: "Total number of baked files, labeled by kind and result.",
		},
		[]string{"kind", "result"},
	)

	bakerStageDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sitebaker_stage_duration_seconds",
			Help:    "Histogram of bake stage durations, labeled by stage and outcome.",
			Buckets: []float64{0.1, 0.5, 1, 5, 15, 30, 60, 120, 300},
		},
		[]string{"stage", "outcome"},
	)

	bakerChartExportsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sitebaker_chart_exports_total",
			Help: "Total number of chart exports attempted, labeled by result.",
		},
		[]string{"result"},
	)

	bakerJobsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sitebaker_jobs_total",
			Help: "Total number of bake jobs processed, labeled by status.",
		},
		[]string{"status"},
	)

	bakerActiveWorkers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "sitebaker_active_workers",
			Help: "Number of workers currently running a bake.",
		},
	)

	bakerRateLimitDelaysSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sitebaker_rate_limit_delays_seconds",
			Help:    "Histogram of rate limit wait durations.",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
		},
		[]string{"domain"},
	)

	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests, labeled by method and code.",
		},
		[]string{"method", "code"},
	)

	httpRequestDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Histogram of HTTP request latencies, labeled by method and route.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		},
		[]string{"method", "route"},
	)
)

// SanitizeSite sanitizes a URL to extract a lowercase hostname.
// It returns "unknown" if the URL is invalid.
func SanitizeSite(rawURL string) string {
	if !strings.HasPrefix(rawURL, "http") {
		rawURL = "http://" + rawURL
	}
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return "unknown"
	}
	return strings.ToLower(u.Hostname())
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveFile counts a baked file by kind (html, xml, redirects, svg, ...) and result.
func ObserveFile(kind, result string) {
	bakerFilesTotal.WithLabelValues(kind, result).Inc()
}

// ObserveStage records how long a bake stage took.
func ObserveStage(stage string, duration time.Duration, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	bakerStageDurationSeconds.WithLabelValues(stage, outcome).Observe(duration.Seconds())
}

// ObserveChartExport counts a chart export attempt.
func ObserveChartExport(result string) {
	bakerChartExportsTotal.WithLabelValues(result).Inc()
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}

// ObserveJob increments the job counter for the given status.
func ObserveJob(status string) {
	bakerJobsTotal.WithLabelValues(status).Inc()
}

// IncActiveWorkers increments the active workers gauge.
func IncActiveWorkers() {
	bakerActiveWorkers.Inc()
}

// DecActiveWorkers decrements the active workers gauge.
func DecActiveWorkers() {
	bakerActiveWorkers.Dec()
}

// ObserveRateLimitDelay records the duration of a rate limit wait.
func ObserveRateLimitDelay(domain string, duration time.Duration) {
	bakerRateLimitDelaysSeconds.WithLabelValues(domain).Observe(duration.Seconds())
}
