package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/sightgrid/sightgrid/internal/alert"
	"github.com/sightgrid/sightgrid/internal/export"
	"github.com/sightgrid/sightgrid/internal/handler"
	"github.com/sightgrid/sightgrid/internal/ingest"
	"github.com/sightgrid/sightgrid/internal/media"
	"github.com/sightgrid/sightgrid/internal/metrics"
	"github.com/sightgrid/sightgrid/internal/openapi"
	"github.com/sightgrid/sightgrid/internal/server/middleware"
	"github.com/sightgrid/sightgrid/internal/service"
	"github.com/sightgrid/sightgrid/internal/store"
	"github.com/sightgrid/sightgrid/internal/stream"
)

// Config holds the HTTP server configuration.
type Config struct {
	Host            string
	Port            int
	ShutdownTimeout time.Duration
	CORSOrigins     []string
	MaxBodySize     int64 // bytes
	RateLimit       int   // requests per minute
	JWTExpiry       time.Duration
}

// DefaultConfig returns a Config with sensible production defaults.
func DefaultConfig() Config {
	return Config{
		Host:            "0.0.0.0",
		Port:            8080,
		ShutdownTimeout: 30 * time.Second,
		CORSOrigins:     []string{"*"},
		MaxBodySize:     10 * 1024 * 1024, // 10MB
		RateLimit:       600,
		JWTExpiry:       12 * time.Hour,
	}
}

// Deps bundles the subsystems the server routes to.
type Deps struct {
	Store    *store.Store
	Verifier *ingest.Verifier
	AuthSvc  *service.AuthService
	Media    *media.Store
	Exporter *export.Exporter
	Alerts   *alert.Evaluator
	Hub      *stream.Hub
	Metrics  *metrics.Metrics
	Logger   *slog.Logger
}

// Server is the top-level HTTP server for sightgrid. It owns the Chi
// router and the two API surfaces: the HMAC-signed ingest endpoints used
// by camera devices and the JWT-guarded dashboard API.
type Server struct {
	cfg        Config
	deps       Deps
	router     chi.Router
	httpServer *http.Server
	logger     *slog.Logger
}

// New creates a new Server, wires up all routes and middleware, and returns
// it ready to listen. Call ListenAndServe to start accepting connections.
func New(cfg Config, deps Deps) *Server {
	s := &Server{
		cfg:    cfg,
		deps:   deps,
		logger: deps.Logger,
	}
	s.setupRouter()
	return s
}

func (s *Server) setupRouter() {
	r := chi.NewRouter()

	// --- Global middleware ---
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(s.logger))
	r.Use(chimw.Recoverer)
	r.Use(chimw.RealIP)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "x-api-key", "x-timestamp", "x-nonce", "x-signature"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// --- Health checks and operability (no auth required) ---
	r.Get("/healthz", s.handleHealthz)
	r.Get("/readyz", s.handleReadyz)
	r.Method(http.MethodGet, "/metrics", s.deps.Metrics.Handler())
	r.Get("/openapi.json", openapi.Handler())

	ingestHandler := handler.NewIngestHandler(s.deps.Verifier, s.deps.Store, s.deps.Media, s.deps.Alerts, s.deps.Hub, s.deps.Metrics, s.logger)
	eventHandler := handler.NewEventHandler(s.deps.Store, s.deps.Hub, s.deps.Media, s.logger)
	cameraHandler := handler.NewCameraHandler(s.deps.Store, s.logger)
	alertHandler := handler.NewAlertHandler(s.deps.Store, s.logger)
	exportHandler := handler.NewExportHandler(s.deps.Store, s.deps.Exporter, s.logger)
	sysHandler := handler.NewSystemHandler(s.deps.Store, s.deps.AuthSvc, s.cfg.JWTExpiry)

	// --- Ingest API (HMAC-signed, consumed by camera edge clients) ---
	// Authentication happens inside the handlers over the raw body
	// bytes, so no session middleware is mounted here.
	r.Route("/api/ingest", func(r chi.Router) {
		r.Use(middleware.RateLimitByAPIKey(s.cfg.RateLimit))
		r.Use(maxBody(s.cfg.MaxBodySize))
		r.Post("/event", ingestHandler.Event)
		r.Post("/batch", ingestHandler.Batch)
	})

	// --- Dashboard API ---
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.RateLimit(s.cfg.RateLimit))
		r.Use(maxBody(s.cfg.MaxBodySize))

		// Login and first-run admin bootstrap are reachable without a
		// session.
		r.Post("/system/admin/session", sysHandler.Login)
		r.Post("/system/admin", sysHandler.CreateAdmin)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Authenticate(s.deps.AuthSvc))

			r.Get("/system/admin/session", sysHandler.Me)
			r.Get("/system/api-keys", sysHandler.ListAPIKeys)
			r.Post("/system/api-keys", sysHandler.CreateAPIKey)
			r.Delete("/system/api-keys/{id}", sysHandler.RevokeAPIKey)

			r.Get("/events", eventHandler.List)
			r.Get("/events/stream", eventHandler.Stream)
			r.Get("/events/{id}", eventHandler.Get)
			r.Get("/stats/daily", eventHandler.DailyStats)
			r.Get("/frames/*", eventHandler.Frame)

			r.Get("/cameras", cameraHandler.List)
			r.Post("/cameras", cameraHandler.Create)
			r.Get("/cameras/{id}", cameraHandler.Get)
			r.Patch("/cameras/{id}", cameraHandler.Update)

			r.Get("/alert-rules", alertHandler.ListRules)
			r.Post("/alert-rules", alertHandler.CreateRule)
			r.Patch("/alert-rules/{id}", alertHandler.UpdateRule)
			r.Get("/alert-logs", alertHandler.ListLogs)

			r.Get("/exports", exportHandler.List)
			r.Post("/exports", exportHandler.Create)
			r.Get("/exports/{id}", exportHandler.Get)
			r.Get("/exports/{id}/download", exportHandler.Download)
		})
	})

	s.router = r
}

// maxBody caps request body size. Oversized ingest bodies would also
// fail signature verification, but cutting them off early avoids
// buffering unbounded input.
func maxBody(limit int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if limit > 0 {
				r.Body = http.MaxBytesReader(w, r.Body, limit)
			}
			next.ServeHTTP(w, r)
		})
	}
}

// handleHealthz is a liveness probe. Returns 200 if the process is running.
func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ok"}`))
}

// handleReadyz is a readiness probe. Returns 200 when the event store is
// reachable, or 503 otherwise.
func (s *Server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := s.deps.Store.Ping(r.Context()); err != nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte(`{"status":"degraded"}`))
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ok"}`))
}

// ListenAndServe starts the HTTP server and blocks until a SIGINT or SIGTERM
// is received. It then performs a graceful shutdown, draining in-flight
// requests before closing the store.
func (s *Server) ListenAndServe() error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)

	s.httpServer = &http.Server{
		Addr:        addr,
		Handler:     s.router,
		ReadTimeout: 15 * time.Second,
		// No write timeout: the event stream holds its connection
		// open for the lifetime of the dashboard session.
		WriteTimeout: 0,
		IdleTimeout:  120 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server starting", "addr", addr)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server listen: %w", err)
	case <-ctx.Done():
		s.logger.Info("shutdown signal received, draining connections...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	if err := s.deps.Store.Close(); err != nil {
		s.logger.Error("store close", "error", err)
	}
	s.logger.Info("server stopped")
	return nil
}

// Router returns the underlying Chi router, useful for testing.
func (s *Server) Router() chi.Router {
	return s.router
}

// ServeHTTP implements http.Handler, delegating to the router.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}
