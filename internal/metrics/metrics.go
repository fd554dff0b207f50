// Package metrics exposes Prometheus collectors for the logo crawler.
package metrics

import (
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	httpResponsesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "logocrawler_http_responses_total",
			Help: "HTTP responses received, including redirect hops, labeled by status class.",
		},
		[]string{"status_class"},
	)

	httpResponseDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "logocrawler_http_response_duration_seconds",
			Help:    "Histogram of single round trip latencies.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
		},
	)

	fetchAttemptsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "logocrawler_fetch_attempts_total",
			Help: "Fetch attempts labeled by outcome (success, network, server, client, canceled).",
		},
		[]string{"outcome"},
	)

	retriesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "logocrawler_retries_total",
			Help: "Total retries scheduled after a retryable failure.",
		},
	)

	activeWorkers = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "logocrawler_active_workers",
			Help: "Number of workers currently processing a task.",
		},
	)

	rateLimitDelaysSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "logocrawler_rate_limit_delays_seconds",
			Help:    "Histogram of per-host rate limit wait durations.",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
		},
	)

	once    sync.Once
	initErr error
)

func collectors() []prometheus.Collector {
	return []prometheus.Collector{
		httpResponsesTotal,
		httpResponseDurationSeconds,
		fetchAttemptsTotal,
		retriesTotal,
		activeWorkers,
		rateLimitDelaysSeconds,
	}
}

// Init registers the collectors with the default registry. It is safe to
// call this function multiple times. Observations made before Init are kept.
func Init() error {
	once.Do(func() {
		initErr = Register(prometheus.DefaultRegisterer)
	})
	return initErr
}

// Register adds the collectors to reg.
func Register(reg prometheus.Registerer) error {
	for _, c := range collectors() {
		if err := reg.Register(c); err != nil {
			return fmt.Errorf("register metrics collector: %w", err)
		}
	}
	return nil
}

// WriteTextfile writes everything in the default gatherer in the text
// exposition format, for node_exporter's textfile collector.
func WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, prometheus.DefaultGatherer); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}

// StatusClass groups an HTTP status code ("2xx", "4xx", ...).
func StatusClass(code int) string {
	if code < 100 || code > 599 {
		return "other"
	}
	return strconv.Itoa(code/100) + "xx"
}

// ObserveHTTPResponse records one HTTP round trip.
func ObserveHTTPResponse(code int, duration time.Duration) {
	httpResponsesTotal.WithLabelValues(StatusClass(code)).Inc()
	httpResponseDurationSeconds.Observe(duration.Seconds())
}

// ObserveAttempt counts a fetch attempt by outcome.
func ObserveAttempt(outcome string) {
	fetchAttemptsTotal.WithLabelValues(outcome).Inc()
}

// ObserveRetry counts a scheduled retry.
func ObserveRetry() {
	retriesTotal.Inc()
}

// IncActiveWorkers increments the active workers gauge.
func IncActiveWorkers() {
	activeWorkers.Inc()
}

// DecActiveWorkers decrements the active workers gauge.
func DecActiveWorkers() {
	activeWorkers.Dec()
}

// ObserveRateLimitDelay records the duration of a rate limit wait.
func ObserveRateLimitDelay(duration time.Duration) {
	rateLimitDelaysSeconds.Observe(duration.Seconds())
}
