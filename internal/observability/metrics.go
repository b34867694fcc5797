package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	registry *prometheus.Registry

	// OpenWeatherMap API call rate by status label. Watch for: error vs success ratio.
	WeatherAPICallsTotal *prometheus.CounterVec

	// External API latency per request. Watch for: p95 > 2s (upstream degradation).
	WeatherAPIDuration *prometheus.HistogramVec

	// Retry attempts for weather API. Watch for: high retries = unstable upstream.
	WeatherAPIRetriesTotal prometheus.Counter

	// Cache hits/misses by lookup kind (current, forecast). Hit rate = hits/(hits+misses).
	CacheHitsTotal   *prometheus.CounterVec
	CacheMissesTotal *prometheus.CounterVec

	// Time spent blocked in the outbound rate limiter. Watch for: sustained waits
	// mean the configured call budget is too small for the UI's traffic.
	RateLimitWaitSeconds prometheus.Histogram

	// Store operation failures by operation label. Watch for: disk trouble.
	StoreErrorsTotal *prometheus.CounterVec
)

func init() {
	registry = prometheus.NewRegistry()

	registry.MustRegister(
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewGoCollector(),
	)

	WeatherAPICallsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "weather_api_calls_total",
		Help: "Outbound OpenWeatherMap API calls by status.",
	}, []string{"status"})

	WeatherAPIDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "weather_api_duration_seconds",
		Help:    "Outbound OpenWeatherMap API call latency.",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
	}, []string{"status"})

	WeatherAPIRetriesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "weather_api_retries_total",
		Help: "Retry attempts against the OpenWeatherMap API.",
	})

	CacheHitsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "weather_cache_hits_total",
		Help: "Cache hits by lookup kind.",
	}, []string{"kind"})

	CacheMissesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "weather_cache_misses_total",
		Help: "Cache misses by lookup kind.",
	}, []string{"kind"})

	RateLimitWaitSeconds = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "weather_rate_limit_wait_seconds",
		Help:    "Time spent blocked waiting for rate-limiter admission.",
		Buckets: []float64{0.001, 0.01, 0.1, 0.5, 1, 5, 15, 60},
	})

	StoreErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "weather_store_errors_total",
		Help: "SQLite store operation failures by operation.",
	}, []string{"op"})

	registry.MustRegister(
		WeatherAPICallsTotal,
		WeatherAPIDuration,
		WeatherAPIRetriesTotal,
		CacheHitsTotal,
		CacheMissesTotal,
		RateLimitWaitSeconds,
		StoreErrorsTotal,
	)
}

// MetricsHandler returns an http.Handler serving the private registry.
// The UI may mount it on a local debug port; nothing in the core requires it.
func MetricsHandler() http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}
