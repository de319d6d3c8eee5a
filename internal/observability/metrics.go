package observability

import (
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kjstillabower/weather-collector-service/internal/traffic"
)

var (
	registry *prometheus.Registry

	// HTTP request rate. Watch for: sudden drops (service down) or spikes (traffic surge).
	HTTPRequestsTotal *prometheus.CounterVec

	// HTTP request latency per request. Watch for: p95/p99 latency increases.
	HTTPRequestDuration *prometheus.HistogramVec

	// Concurrent requests in flight. Watch for: saturation.
	HTTPRequestsInFlight prometheus.Gauge

	// Weather provider call rate by outcome. Watch for: error vs success ratio.
	WeatherAPICallsTotal *prometheus.CounterVec

	// Provider latency per request. Watch for: p99 approaching the 10s timeout.
	WeatherAPIDuration *prometheus.HistogramVec

	// Provider failures by category (timeout, not_configured, invalid_api_key, ...).
	WeatherAPIErrorsTotal *prometheus.CounterVec

	// Collection cycles by path (city, default) and result (success or error kind).
	CollectionsTotal *prometheus.CounterVec

	// Per-city collection count (allow-list; others go to "other").
	CollectionsByCityTotal *prometheus.CounterVec

	// Distribution of classified rain probabilities on the city path.
	RainProbability prometheus.Histogram

	// Storage latency by operation (insert, find_recent, latest_by_city) and status.
	StorageOperationDuration *prometheus.HistogramVec

	// Latest-reading cache hits. Misses fall through to storage.
	CacheHitsTotal *prometheus.CounterVec

	// Cache errors by operation and reason (timeout, connection, unknown).
	CacheErrorsTotal *prometheus.CounterVec

	// Cache operation latency by operation and status.
	CacheOperationDurationSeconds *prometheus.HistogramVec

	// Raw queue deliveries by outcome (ack, requeue, drop).
	RawMessagesTotal *prometheus.CounterVec

	// Rate limit denials. Watch for: overload, capacity exceeded.
	RateLimitDeniedTotal prometheus.Counter

	trackedCitiesMu sync.RWMutex
	trackedCities   map[string]struct{}

	trafficGaugesOnce sync.Once
)

func init() {
	registry = prometheus.NewRegistry()

	registry.MustRegister(
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewGoCollector(),
	)

	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "httpRequestsTotal",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "statusCode"},
	)
	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "httpRequestDurationSeconds",
			Help:    "HTTP request latency in seconds (per request)",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)
	HTTPRequestsInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "httpRequestsInFlight",
			Help: "Number of HTTP requests currently being served",
		},
	)
	WeatherAPICallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "weatherApiCallsTotal",
			Help: "Total number of weather provider API calls",
		},
		[]string{"status"},
	)
	WeatherAPIDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "weatherApiDurationSeconds",
			Help:    "Weather provider API latency in seconds (per request)",
			Buckets: []float64{.1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"status"},
	)
	WeatherAPIErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "weatherApiErrorsTotal",
			Help: "Weather provider failures by category",
		},
		[]string{"category"},
	)
	CollectionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "collectionsTotal",
			Help: "Collection cycles by path and result",
		},
		[]string{"path", "result"},
	)
	CollectionsByCityTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "collectionsByCityTotal",
			Help: "Collection cycles by city (allow-list; others use city=other)",
		},
		[]string{"city"},
	)
	RainProbability = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "rainProbabilityPercent",
			Help:    "Classified rain probability of collected observations",
			Buckets: []float64{0, 20, 40, 60, 80, 100},
		},
	)
	StorageOperationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "storageOperationDurationSeconds",
			Help:    "Storage operation latency in seconds",
			Buckets: []float64{.001, .005, .01, .05, .1, .5, 1},
		},
		[]string{"operation", "status"},
	)
	CacheHitsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cacheHitsTotal",
			Help: "Total number of latest-reading cache hits",
		},
		[]string{"cacheType"},
	)
	CacheErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cacheErrorsTotal",
			Help: "Cache errors by operation and reason",
		},
		[]string{"operation", "reason"},
	)
	CacheOperationDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "cacheOperationDurationSeconds",
			Help:    "Cache operation latency in seconds",
			Buckets: []float64{.0005, .001, .005, .01, .05, .1},
		},
		[]string{"operation", "status"},
	)
	RawMessagesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rawMessagesTotal",
			Help: "Raw queue deliveries by outcome",
		},
		[]string{"outcome"},
	)
	RateLimitDeniedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "rateLimitDeniedTotal",
			Help: "Total number of requests denied by rate limiter (429)",
		},
	)

	registry.MustRegister(
		HTTPRequestsTotal, HTTPRequestDuration, HTTPRequestsInFlight,
		WeatherAPICallsTotal, WeatherAPIDuration, WeatherAPIErrorsTotal,
		CollectionsTotal, CollectionsByCityTotal, RainProbability,
		StorageOperationDuration,
		CacheHitsTotal, CacheErrorsTotal, CacheOperationDurationSeconds,
		RawMessagesTotal,
		RateLimitDeniedTotal,
	)
}

// RegisterTrafficGauges registers request and error gauges over the traffic window.
// Call from main after config load with cfg.HealthWindow.
func RegisterTrafficGauges(window time.Duration) {
	trafficGaugesOnce.Do(func() {
		registry.MustRegister(
			prometheus.NewGaugeFunc(
				prometheus.GaugeOpts{
					Name: "requestsInWindow",
					Help: "Collection requests (success + error + denied) in sliding window",
				},
				func() float64 { return float64(traffic.RequestCount(window)) },
			),
			prometheus.NewGaugeFunc(
				prometheus.GaugeOpts{
					Name: "collectionErrorsInWindow",
					Help: "Failed collections in sliding window; drives degraded health",
				},
				func() float64 {
					errors, _ := traffic.ErrorRate(window)
					return float64(errors)
				},
			),
		)
	})
}

// SetTrackedCities sets the allow-list for city metrics. Non-tracked cities increment "other".
func SetTrackedCities(cities []string) {
	trackedCitiesMu.Lock()
	defer trackedCitiesMu.Unlock()
	trackedCities = make(map[string]struct{}, len(cities))
	for _, c := range cities {
		trackedCities[normalizeCityForMetrics(c)] = struct{}{}
	}
}

// RecordCollection records one collection cycle for path and result, and the per-city count.
func RecordCollection(path, result, city string) {
	CollectionsTotal.WithLabelValues(path, result).Inc()
	CollectionsByCityTotal.WithLabelValues(MetricCityLabel(city)).Inc()
}

// MetricCityLabel returns the normalized city when tracked, otherwise "other".
func MetricCityLabel(city string) string {
	c := normalizeCityForMetrics(city)
	trackedCitiesMu.RLock()
	_, ok := trackedCities[c] // nil map read is safe in Go
	trackedCitiesMu.RUnlock()
	if ok {
		return c
	}
	return "other"
}

func normalizeCityForMetrics(s string) string {
	s = strings.TrimSpace(s)
	s = strings.ToLower(s)
	return s
}

// MetricsHandler returns an http.Handler that serves application and runtime metrics.
func MetricsHandler() http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}
