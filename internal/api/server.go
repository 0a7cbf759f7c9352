package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/swannekim/FURIOUS/internal/cache"
	"github.com/swannekim/FURIOUS/internal/health"
	"github.com/swannekim/FURIOUS/internal/httputil"
	"github.com/swannekim/FURIOUS/internal/metrics"
	"github.com/swannekim/FURIOUS/internal/risk"
	"github.com/swannekim/FURIOUS/internal/track"
)

// Catalog is the track source the API serves from.
type Catalog interface {
	track.Repository
	Fleets() []string
	Check() error
}

// Config holds HTTP server configuration.
type Config struct {
	Addr               string
	TrustProxy         bool // honour X-Forwarded-For / X-Real-IP
	MaxConcurrentPerIP int  // in-flight computations per client (0 = unlimited)
	MaxConcurrent      int  // in-flight computations overall (0 = unlimited)
}

// Server holds the HTTP server and its dependencies.
type Server struct {
	httpServer *http.Server
	catalog    Catalog
	assessor   *risk.Assessor
	cache      *cache.ResultCache
	validator  *validator
	limiter    *computeLimiter
	config     Config
	logger     *slog.Logger
}

// NewServer creates a configured HTTP server. results may be nil.
func NewServer(cfg Config, catalog Catalog, assessor *risk.Assessor, results *cache.ResultCache, logger *slog.Logger) (*Server, error) {
	v, err := newValidator()
	if err != nil {
		return nil, err
	}

	s := &Server{
		catalog:   catalog,
		assessor:  assessor,
		cache:     results,
		validator: v,
		limiter:   newComputeLimiter(cfg.MaxConcurrentPerIP, cfg.MaxConcurrent),
		config:    cfg,
		logger:    logger,
	}

	mux := http.NewServeMux()

	// Register routes.
	mux.HandleFunc("GET /healthz", health.Healthz)
	mux.HandleFunc("GET /readyz", health.Readyz(logger, catalog))
	mux.Handle("GET /metrics", metrics.Handler())
	mux.HandleFunc("GET /api/v1/fleets", s.handleFleets)
	mux.HandleFunc("GET /api/v1/fleets/{fleet}/ships", s.handleShips)
	mux.HandleFunc("GET /api/v1/fleets/{fleet}/observations", s.handleObservations)
	mux.HandleFunc("GET /api/v1/cache/stats", s.handleCacheStats)
	mux.HandleFunc("POST /api/v1/domain", s.limited(s.handleDomain))
	mux.HandleFunc("POST /api/v1/vo", s.limited(s.handleVO))
	mux.HandleFunc("POST /api/v1/v", s.limited(s.handleV))
	mux.HandleFunc("POST /api/v1/computation", s.limited(s.handleComputation))

	// Build middleware chain: metrics -> request id -> logging -> mux.
	var handler http.Handler = mux
	handler = loggingMiddleware(logger, cfg.TrustProxy)(handler)
	handler = httputil.RequestIDMiddleware(handler)
	handler = metrics.Middleware(handler)

	s.httpServer = &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadTimeout:       10 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s, nil
}

// HTTPServer returns the underlying *http.Server for external control (e.g. shutdown).
func (s *Server) HTTPServer() *http.Server {
	return s.httpServer
}

// Handler returns the fully wrapped handler.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// ListenAndServe starts the HTTP server.
func (s *Server) ListenAndServe() error {
	return s.httpServer.ListenAndServe()
}

// writeError reports err to the client and logs it at a level matching
// its status.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		status = http.StatusServiceUnavailable
	}
	kind, msg := errorBody(err)

	level := slog.LevelInfo
	if status >= http.StatusInternalServerError {
		level = slog.LevelError
	}
	s.logger.Log(r.Context(), level, "request failed",
		"component", "api",
		"path", r.URL.Path,
		"status", status,
		"kind", kind,
		"error", err,
		"request_id", httputil.RequestID(r.Context()),
	)
	httputil.WriteError(w, status, kind, msg)
}

// limited rejects a request with 429 while its client already has the
// maximum number of computations in flight.
func (s *Server) limited(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ip := httputil.ClientIP(r, s.config.TrustProxy)
		if !s.limiter.acquire(ip) {
			s.logger.Warn("computation limit exceeded",
				"component", "api",
				"remote_ip", ip,
				"current_count", s.limiter.count(ip),
			)
			w.Header().Set("Retry-After", "5")
			httputil.WriteError(w, http.StatusTooManyRequests, "", "too many concurrent computations")
			return
		}
		defer s.limiter.release(ip)
		next(w, r)
	}
}

// probePath returns true for health/readiness probe paths that should not log at INFO.
func probePath(path string) bool {
	return path == "/healthz" || path == "/readyz"
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (sr *statusRecorder) WriteHeader(code int) {
	sr.statusCode = code
	sr.ResponseWriter.WriteHeader(code)
}

func loggingMiddleware(logger *slog.Logger, trustProxy bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			sr := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(sr, r)

			duration := time.Since(start)
			level := slog.LevelInfo
			if probePath(r.URL.Path) {
				level = slog.LevelDebug
			}

			logger.Log(r.Context(), level, "request",
				"component", "api",
				"method", r.Method,
				"path", r.URL.Path,
				"status", strconv.Itoa(sr.statusCode),
				"duration_ms", duration.Milliseconds(),
				"remote_ip", httputil.ClientIP(r, trustProxy),
				"request_id", httputil.RequestID(r.Context()),
			)
		})
	}
}
