// Package api exposes the coverage engine, live snapshots and the TLE
// catalog over HTTP.
package api

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/star/orbitscan/internal/auth"
	"github.com/star/orbitscan/internal/cache"
	"github.com/star/orbitscan/internal/health"
	"github.com/star/orbitscan/internal/httputil"
	"github.com/star/orbitscan/internal/metrics"
	"github.com/star/orbitscan/internal/orbit"
	"github.com/star/orbitscan/internal/stream"
	"github.com/star/orbitscan/internal/tle"
)

// Options configures the HTTP listener.
type Options struct {
	Addr         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	TrustProxy   bool
	Auth         auth.Config
}

// Deps are the services the handlers call. Results and Stream may be nil,
// which disables result caching and the SSE route respectively.
type Deps struct {
	Sampler *orbit.Sampler
	Catalog *tle.Catalog
	Results *cache.ResultCache
	Stream  *stream.Handler
	Ready   *health.Checker
}

// Server holds the HTTP server and its dependencies.
type Server struct {
	httpServer *http.Server
	deps       Deps
	logger     *slog.Logger
}

// NewServer creates a configured HTTP server.
func NewServer(opts Options, deps Deps, logger *slog.Logger) *Server {
	s := &Server{deps: deps, logger: logger}

	if opts.ReadTimeout <= 0 {
		opts.ReadTimeout = 10 * time.Second
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = 30 * time.Second
	}

	s.httpServer = &http.Server{
		Addr:              opts.Addr,
		Handler:           s.routes(opts),
		ReadTimeout:       opts.ReadTimeout,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      opts.WriteTimeout,
		IdleTimeout:       120 * time.Second,
	}
	return s
}

func (s *Server) routes(opts Options) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", health.Healthz)
	if s.deps.Ready != nil {
		mux.HandleFunc("GET /readyz", s.deps.Ready.Readyz)
	}
	mux.Handle("GET /metrics", metrics.Handler())
	mux.HandleFunc("GET /{$}", s.handleIndex)

	mux.HandleFunc("POST /api/v1/coverage", s.handleCoverage)
	mux.HandleFunc("GET /api/v1/live/{norad_id}", s.handleLive)
	mux.HandleFunc("GET /api/v1/tle", s.handleCatalogInfo)
	mux.HandleFunc("GET /api/v1/tle/{norad_id}", s.handleElements)
	mux.HandleFunc("POST /api/v1/tle/fetch", s.handleRefresh)
	mux.HandleFunc("GET /api/v1/cache/stats", s.handleCacheStats)
	if s.deps.Stream != nil {
		mux.HandleFunc("GET /api/v1/stream/live/{norad_id}", s.deps.Stream.HandleLive)
	}

	// Build middleware chain: metrics -> logging -> auth -> mux.
	var handler http.Handler = mux
	handler = auth.Middleware(opts.Auth)(handler)
	handler = loggingMiddleware(s.logger, opts.TrustProxy)(handler)
	handler = metrics.Middleware(handler)
	return handler
}

// Handler returns the root handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// HTTPServer returns the underlying *http.Server for external control (e.g. shutdown).
func (s *Server) HTTPServer() *http.Server {
	return s.httpServer
}

// ListenAndServe starts the HTTP server.
func (s *Server) ListenAndServe() error {
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"service": "orbitscan",
		"endpoints": []string{
			"POST /api/v1/coverage",
			"GET /api/v1/live/{norad_id}",
			"GET /api/v1/stream/live/{norad_id}?interval=5",
			"GET /api/v1/tle",
			"GET /api/v1/tle/{norad_id}",
			"POST /api/v1/tle/fetch",
			"GET /api/v1/cache/stats",
		},
	})
}

// probePath returns true for health/readiness probe paths that should not log at INFO.
func probePath(path string) bool {
	return path == "/healthz" || path == "/readyz" || path == "/metrics"
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (sr *statusRecorder) WriteHeader(code int) {
	sr.statusCode = code
	sr.ResponseWriter.WriteHeader(code)
}

// Flush keeps SSE working through the logging middleware.
func (sr *statusRecorder) Flush() {
	if f, ok := sr.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (sr *statusRecorder) Unwrap() http.ResponseWriter {
	return sr.ResponseWriter
}

func loggingMiddleware(logger *slog.Logger, trustProxy bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			sr := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(sr, r)

			level := slog.LevelInfo
			if probePath(r.URL.Path) {
				level = slog.LevelDebug
			}

			logger.Log(r.Context(), level, "request",
				"component", "api",
				"method", r.Method,
				"path", r.URL.Path,
				"status", strconv.Itoa(sr.statusCode),
				"duration_ms", time.Since(start).Milliseconds(),
				"remote_ip", httputil.ClientIP(r, trustProxy),
			)
		})
	}
}
