package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "furious_http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"path", "method", "code"},
	)

	httpDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "furious_http_duration_seconds",
			Help:    "HTTP request duration in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"path", "method"},
	)

	datasetObservations = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "furious_dataset_observations",
			Help: "Number of observations in the loaded track dataset.",
		},
		[]string{"fleet"},
	)

	datasetAgeSeconds = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "furious_dataset_age_seconds",
			Help: "Seconds since the track dataset was loaded.",
		},
		[]string{"fleet"},
	)

	regionWorkers = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "furious_region_workers",
		Help: "Number of VO region workers.",
	})

	ellipsesBuilt = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "furious_ellipses_built_total",
		Help: "Total number of ship-domain ellipses built.",
	})

	convexHullFallbacks = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "furious_convex_hull_fallbacks_total",
		Help: "Target VO unions that were disconnected and replaced by their convex hull.",
	})

	regionBuildSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "furious_region_build_seconds",
			Help:    "Region build duration in seconds.",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"kind"},
	)

	criValue = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "furious_cri",
		Help:    "Distribution of computed collision risk index values.",
		Buckets: prometheus.LinearBuckets(0, 0.1, 11),
	})

	riskErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "furious_risk_errors_total",
			Help: "Failed risk assessments by error kind.",
		},
		[]string{"kind"},
	)

	cacheHits = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "furious_cache_hits_total",
		Help: "Result cache hits.",
	})

	cacheMisses = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "furious_cache_misses_total",
		Help: "Result cache misses.",
	})

	cacheEvictions = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "furious_cache_evictions_total",
		Help: "Result cache evictions.",
	})

	cacheEntries = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "furious_cache_entries",
		Help: "Current number of result cache entries.",
	})
)

func init() {
	prometheus.MustRegister(httpRequestsTotal)
	prometheus.MustRegister(httpDurationSeconds)
	prometheus.MustRegister(datasetObservations)
	prometheus.MustRegister(datasetAgeSeconds)
	prometheus.MustRegister(regionWorkers)
	prometheus.MustRegister(ellipsesBuilt)
	prometheus.MustRegister(convexHullFallbacks)
	prometheus.MustRegister(regionBuildSeconds)
	prometheus.MustRegister(criValue)
	prometheus.MustRegister(riskErrors)
	prometheus.MustRegister(cacheHits)
	prometheus.MustRegister(cacheMisses)
	prometheus.MustRegister(cacheEvictions)
	prometheus.MustRegister(cacheEntries)
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

func SetDatasetObservations(fleet string, n int) {
	datasetObservations.WithLabelValues(fleet).Set(float64(n))
}

func SetDatasetAge(fleet string, seconds float64) {
	datasetAgeSeconds.WithLabelValues(fleet).Set(seconds)
}

func SetRegionWorkers(n int) {
	regionWorkers.Set(float64(n))
}

func AddEllipsesBuilt(n int) {
	ellipsesBuilt.Add(float64(n))
}

func IncConvexHullFallbacks() {
	convexHullFallbacks.Inc()
}

// ObserveRegionBuild records how long building a region of kind ("vo", "v") took.
func ObserveRegionBuild(kind string, d time.Duration) {
	regionBuildSeconds.WithLabelValues(kind).Observe(d.Seconds())
}

func ObserveCRI(v float64) {
	criValue.Observe(v)
}

// IncRiskErrors counts a failed assessment. kind is empty for errors that
// carry no fault kind.
func IncRiskErrors(kind string) {
	if kind == "" {
		kind = "internal"
	}
	riskErrors.WithLabelValues(kind).Inc()
}

func IncCacheHits() {
	cacheHits.Inc()
}

func IncCacheMisses() {
	cacheMisses.Inc()
}

func AddCacheEvictions(n int) {
	cacheEvictions.Add(float64(n))
}

func SetCacheEntries(n int) {
	cacheEntries.Set(float64(n))
}

// exactRoutes are served as-is; anything else under /api/v1/fleets/ is
// collapsed to its pattern.
var exactRoutes = map[string]bool{
	"/":                   true,
	"/healthz":            true,
	"/readyz":             true,
	"/metrics":            true,
	"/api/v1/fleets":      true,
	"/api/v1/domain":      true,
	"/api/v1/vo":          true,
	"/api/v1/v":           true,
	"/api/v1/computation": true,
	"/api/v1/cache/stats": true,
}

// normalizeRoute maps a request path to a bounded label so that fleet
// names and bot traffic cannot blow up metric cardinality.
func normalizeRoute(path string) string {
	if exactRoutes[path] {
		return path
	}
	if rest, ok := strings.CutPrefix(path, "/api/v1/fleets/"); ok {
		parts := strings.Split(rest, "/")
		if len(parts) == 2 && parts[0] != "" {
			switch parts[1] {
			case "ships":
				return "/api/v1/fleets/{fleet}/ships"
			case "observations":
				return "/api/v1/fleets/{fleet}/observations"
			}
		}
	}
	return "other"
}

// responseWriter wraps http.ResponseWriter to capture the status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Middleware records request count and duration for each request.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(rw, r)

		duration := time.Since(start).Seconds()
		code := strconv.Itoa(rw.statusCode)
		route := normalizeRoute(r.URL.Path)

		httpRequestsTotal.WithLabelValues(route, r.Method, code).Inc()
		httpDurationSeconds.WithLabelValues(route, r.Method).Observe(duration)
	})
}
