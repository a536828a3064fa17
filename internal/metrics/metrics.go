// Package metrics exposes Prometheus collectors for the harvester.
package metrics

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Fetch outcomes recorded by the fetch worker.
const (
	OutcomeSuccess = "success"
	OutcomeInvalid = "invalid"
	OutcomeError   = "error"
	OutcomeTimeout = "timeout"
)

var (
	fetchTotal                 *prometheus.CounterVec
	fetchBytesTotal            *prometheus.CounterVec
	retryAttemptsTotal         *prometheus.CounterVec
	checkpointWritesTotal      *prometheus.CounterVec
	scoutItemsTotal            *prometheus.CounterVec
	dedupDroppedTotal          *prometheus.CounterVec
	sentimentTotal             *prometheus.CounterVec
	activeTasks                prometheus.Gauge
	rateLimitDelaysSeconds     *prometheus.HistogramVec
	httpRequestsTotal          *prometheus.CounterVec
	httpRequestDurationSeconds *prometheus.HistogramVec

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		fetchTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "harvest_fetch_total",
				Help: "Total number of fetch tasks, labeled by site and outcome.",
			},
			[]string{"site", "outcome"},
		)

		fetchBytesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "harvest_fetch_bytes_total",
				Help: "Total number of document bytes fetched, labeled by site.",
			},
			[]string{"site"},
		)

		retryAttemptsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "harvest_retry_attempts_total",
				Help: "Retry wrapper attempts, labeled by operation and result.",
			},
			[]string{"operation", "result"},
		)

		checkpointWritesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "harvest_checkpoint_writes_total",
				Help: "Checkpoint writes, labeled by status.",
			},
			[]string{"status"},
		)

		scoutItemsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "harvest_scout_items_total",
				Help: "Items produced by scouts, labeled by scout.",
			},
			[]string{"scout"},
		)

		dedupDroppedTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "harvest_dedup_dropped_total",
				Help: "Items removed by deduplication, labeled by stage.",
			},
			[]string{"stage"},
		)

		sentimentTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "harvest_sentiment_total",
				Help: "Labeled rows, labeled by source and sentiment.",
			},
			[]string{"source", "sentiment"},
		)

		activeTasks = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "harvest_active_tasks",
				Help: "Number of fetch tasks currently running.",
			},
		)

		rateLimitDelaysSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "harvest_rate_limit_delays_seconds",
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
	})
}

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
	Init()
	return promhttp.Handler()
}

// ObserveFetch records the outcome of one fetch task.
func ObserveFetch(rawURL, outcome string, bytesFetched int) {
	Init()
	site := SanitizeSite(rawURL)
	fetchTotal.WithLabelValues(site, outcome).Inc()
	if bytesFetched > 0 {
		fetchBytesTotal.WithLabelValues(site).Add(float64(bytesFetched))
	}
}

// ObserveRetry records a retry wrapper attempt result (failed, exhausted, succeeded).
func ObserveRetry(operation, result string) {
	Init()
	retryAttemptsTotal.WithLabelValues(operation, result).Inc()
}

// ObserveCheckpoint records a checkpoint write status.
func ObserveCheckpoint(status string) {
	Init()
	checkpointWritesTotal.WithLabelValues(status).Inc()
}

// ObserveScoutItems adds n items produced by the named scout.
func ObserveScoutItems(scout string, n int) {
	Init()
	if n > 0 {
		scoutItemsTotal.WithLabelValues(scout).Add(float64(n))
	}
}

// ObserveDedup adds n items dropped at the given dedup stage.
func ObserveDedup(stage string, n int) {
	Init()
	if n > 0 {
		dedupDroppedTotal.WithLabelValues(stage).Add(float64(n))
	}
}

// ObserveSentiment records one labeled row.
func ObserveSentiment(source, sentiment string) {
	Init()
	sentimentTotal.WithLabelValues(source, sentiment).Inc()
}

// IncActiveTasks increments the active task gauge.
func IncActiveTasks() {
	Init()
	activeTasks.Inc()
}

// DecActiveTasks decrements the active task gauge.
func DecActiveTasks() {
	Init()
	activeTasks.Dec()
}

// ObserveRateLimitDelay records the duration of a rate limit wait.
func ObserveRateLimitDelay(domain string, duration time.Duration) {
	Init()
	rateLimitDelaysSeconds.WithLabelValues(domain).Observe(duration.Seconds())
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	Init()
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}
