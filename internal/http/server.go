// Package http serves the operations API: health probes, schedule previews,
// holiday listings and payment registration.
package http

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"billremind/internal/core"
	"billremind/internal/holiday"
	applog "billremind/internal/log"
	"billremind/internal/middleware/ratelimit"
	"billremind/internal/middleware/security"
	"billremind/internal/middleware/trace"
)

// Pinger reports whether the store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PaymentRecorder stores a payment and refreshes the client's standing.
type PaymentRecorder interface {
	RecordPayment(ctx context.Context, p core.Payment) error
}

// Dependencies are the collaborators behind the API.
type Dependencies struct {
	Store    Pinger
	Calendar *holiday.Calendar
	Payments PaymentRecorder
	Logger   *applog.Logger
	// Now defaults to time.Now.
	Now func() time.Time
	// RateLimit applies to /v1 routes. Zero values use the limiter defaults.
	RateLimit ratelimit.Config
}

type Server struct {
	http.Server
	deps     Dependencies
	limiter  *ratelimit.Limiter
	tracer   *trace.Middleware
	detector *security.Detector

	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run server.
func NewServer(addr string, deps Dependencies) *Server {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Logger == nil {
		deps.Logger = applog.Wrap(slog.Default(), applog.ComponentHTTP)
	}

	s := &Server{
		deps:     deps,
		limiter:  ratelimit.NewLimiter(deps.RateLimit),
		tracer:   trace.NewMiddleware(),
		detector: security.NewDetector(),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)

	limited := s.limiter.Middleware(s.detector.ExtractClientIP, func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
	})
	mux.Handle("GET /v1/schedule/preview", limited(http.HandlerFunc(s.handleSchedulePreview)))
	mux.Handle("GET /v1/holidays/{year}", limited(http.HandlerFunc(s.handleHolidays)))
	mux.Handle("POST /v1/payments", limited(http.HandlerFunc(s.handleRecordPayment)))

	var handler http.Handler = mux
	handler = security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware(handler)
	handler = applog.Middleware(deps.Logger, trace.FromRequest)(handler)
	handler = s.tracer.Middleware(handler)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s
}

// Metrics returns request counters.
func (s *Server) Metrics() trace.Metrics {
	return s.tracer.GetMetrics()
}

// Shutdown gracefully shuts down the server and cleanup routines
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}
