package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Registry holds the application-specific Prometheus collectors.
	Registry = prometheus.NewRegistry()

	httpInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "moodbloom",
			Subsystem: "http",
			Name:      "inflight_requests",
			Help:      "Current number of in-flight HTTP requests.",
		},
	)

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "moodbloom",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		},
		[]string{"method", "route", "status"},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "moodbloom",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10), // 5ms to ~5s
		},
		[]string{"method", "route"},
	)

	checkIns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "moodbloom",
			Name:      "checkins_total",
			Help:      "Mood check-ins recorded, by method.",
		},
		[]string{"method"},
	)

	tokens = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "moodbloom",
			Name:      "tokens_total",
			Help:      "Tokens moved through the ledger, by type and source.",
		},
		[]string{"type", "source"},
	)

	aiRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "moodbloom",
			Name:      "ai_requests_total",
			Help:      "Calls to the AI analysis service, by endpoint and outcome.",
		},
		[]string{"endpoint", "outcome"},
	)
)

func init() {
	Registry.MustRegister(
		httpInFlight,
		httpRequests,
		httpDuration,
		checkIns,
		tokens,
		aiRequests,
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		prometheus.NewGoCollector(),
	)
}

// Handler returns an HTTP handler exposing the registered Prometheus metrics.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// RequestStarted tracks an in-flight request and returns the func that finishes it.
func RequestStarted() func(method, route string, status int) {
	start := time.Now()
	httpInFlight.Inc()
	return func(method, route string, status int) {
		httpInFlight.Dec()
		if route == "" {
			route = "unmatched"
		}
		httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
		httpDuration.WithLabelValues(method, route).Observe(time.Since(start).Seconds())
	}
}

// RecordCheckIn counts a persisted check-in.
func RecordCheckIn(method string) {
	checkIns.WithLabelValues(method).Inc()
}

// RecordTokens adds amount to the ledger counter.
func RecordTokens(kind, source string, amount int) {
	if amount <= 0 {
		return
	}
	tokens.WithLabelValues(kind, source).Add(float64(amount))
}

// RecordAIRequest counts one AI service call.
func RecordAIRequest(endpoint string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	aiRequests.WithLabelValues(endpoint, outcome).Inc()
}
