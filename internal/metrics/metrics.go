// Package metrics exposes the Prometheus instruments shared by the engine,
// the HTTP API and the live stream.
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
			Name: "orbitscan_http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"path", "method", "code"},
	)

	httpDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "orbitscan_http_duration_seconds",
			Help:    "HTTP request duration in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"path", "method"},
	)

	runsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "orbitscan_runs_total",
			Help: "Coverage runs by outcome (success, partial, failed, rejected).",
		},
		[]string{"outcome"},
	)

	runDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "orbitscan_run_duration_seconds",
			Help:    "Wall time of a coverage run.",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 10},
		},
	)

	samplesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "orbitscan_samples_total",
			Help: "Propagated samples by SGP4 status code.",
		},
		[]string{"code"},
	)

	coverageEventsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "orbitscan_coverage_events_total",
			Help: "Samples whose footprint covered the target.",
		},
	)

	liveSnapshotsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "orbitscan_live_snapshots_total",
			Help: "Live position snapshots by outcome (ok, fallback).",
		},
		[]string{"outcome"},
	)

	resultCacheTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "orbitscan_result_cache_requests_total",
			Help: "Result cache lookups by result (hit, miss).",
		},
		[]string{"result"},
	)

	tleDatasetCount = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "orbitscan_tle_dataset_satellites",
			Help: "Element sets in the loaded catalog.",
		},
	)

	tleDatasetAge = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "orbitscan_tle_dataset_age_seconds",
			Help: "Age of the loaded catalog.",
		},
	)

	sseActiveStreams = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "orbitscan_sse_active_streams",
			Help: "Open live SSE streams.",
		},
	)

	sseEventsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "orbitscan_sse_events_total",
			Help: "Snapshot events written to SSE clients.",
		},
	)

	sseRejectedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "orbitscan_sse_rejected_total",
			Help: "SSE connections rejected by a concurrency limit.",
		},
		[]string{"limit"},
	)
)

func init() {
	prometheus.MustRegister(
		httpRequestsTotal,
		httpDurationSeconds,
		runsTotal,
		runDurationSeconds,
		samplesTotal,
		coverageEventsTotal,
		liveSnapshotsTotal,
		resultCacheTotal,
		tleDatasetCount,
		tleDatasetAge,
		sseActiveStreams,
		sseEventsTotal,
		sseRejectedTotal,
	)
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveRun records one finished run.
func ObserveRun(outcome string, d time.Duration) {
	runsTotal.WithLabelValues(outcome).Inc()
	runDurationSeconds.Observe(d.Seconds())
}

// AddSamples counts n samples that finished with the given status code.
func AddSamples(code, n int) {
	if n <= 0 {
		return
	}
	samplesTotal.WithLabelValues(strconv.Itoa(code)).Add(float64(n))
}

// AddCoverageEvents counts covered samples.
func AddCoverageEvents(n int) {
	coverageEventsTotal.Add(float64(n))
}

// IncLiveSnapshot counts a live snapshot; fallback marks a failed propagation.
func IncLiveSnapshot(fallback bool) {
	outcome := "ok"
	if fallback {
		outcome = "fallback"
	}
	liveSnapshotsTotal.WithLabelValues(outcome).Inc()
}

// IncResultCache counts a result cache lookup.
func IncResultCache(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	resultCacheTotal.WithLabelValues(result).Inc()
}

// SetTLEDatasetCount sets the catalog size gauge.
func SetTLEDatasetCount(n int) {
	tleDatasetCount.Set(float64(n))
}

// SetTLEDatasetAge sets the catalog age gauge.
func SetTLEDatasetAge(seconds float64) {
	tleDatasetAge.Set(seconds)
}

// SSEStreamOpened increments the open stream gauge.
func SSEStreamOpened() { sseActiveStreams.Inc() }

// SSEStreamClosed decrements the open stream gauge.
func SSEStreamClosed() { sseActiveStreams.Dec() }

// IncSSEEvent counts one event written to a client.
func IncSSEEvent() { sseEventsTotal.Inc() }

// IncSSERejected counts a connection refused by the named limit.
func IncSSERejected(limit string) { sseRejectedTotal.WithLabelValues(limit).Inc() }

// exactRoutes are static paths reported under their own label.
var exactRoutes = map[string]bool{
	"/":                   true,
	"/healthz":            true,
	"/readyz":             true,
	"/metrics":            true,
	"/api/v1/coverage":    true,
	"/api/v1/tle":         true,
	"/api/v1/tle/fetch":   true,
	"/api/v1/cache/stats": true,
}

// paramRoutes are prefixes whose last segment is a catalog number.
var paramRoutes = []string{
	"/api/v1/live/",
	"/api/v1/stream/live/",
	"/api/v1/tle/",
}

// normalizeRoute maps a request path to a bounded label set so that catalog
// numbers and scanner traffic do not explode metric cardinality.
func normalizeRoute(path string) string {
	if exactRoutes[path] {
		return path
	}
	for _, prefix := range paramRoutes {
		rest, ok := strings.CutPrefix(path, prefix)
		if !ok || rest == "" || strings.Contains(rest, "/") {
			continue
		}
		if _, err := strconv.Atoi(rest); err != nil {
			continue
		}
		return prefix + "{norad_id}"
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

// Flush passes through to the wrapped writer so SSE responses keep streaming.
func (rw *responseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (rw *responseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

// Middleware records request count and duration for each request.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(rw, r)

		route := normalizeRoute(r.URL.Path)
		httpRequestsTotal.WithLabelValues(route, r.Method, strconv.Itoa(rw.statusCode)).Inc()
		httpDurationSeconds.WithLabelValues(route, r.Method).Observe(time.Since(start).Seconds())
	})
}
