package httpserver

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/wisbric/keymaster/internal/config"
)

// Server holds the HTTP server dependencies. Validator and Manager are the
// two Redis handles readiness checks ping. AdminGate is the middleware
// domain handlers must apply (via Router.With(s.AdminGate)) to every route
// spec.md designates as admin-only; Router itself carries no blanket gate
// since /health and /v1/validate-key sit alongside gated routes under the
// same path tree.
type Server struct {
	Router    *chi.Mux
	AdminGate func(http.Handler) http.Handler
	Logger    *slog.Logger
	Validator *redis.Client
	Manager   *redis.Client
	Metrics   *prometheus.Registry
	startedAt time.Time
}

// NewServer creates an HTTP server with middleware and health/metrics
// endpoints. adminGate rejects every request when no admin secret is
// configured — see internal/auth.Gate — and is exposed as s.AdminGate for
// callers to apply per-route.
func NewServer(cfg *config.Config, logger *slog.Logger, validator, manager *redis.Client, metricsReg *prometheus.Registry, adminGate func(http.Handler) http.Handler) *Server {
	s := &Server{
		Router:    chi.NewRouter(),
		AdminGate: adminGate,
		Logger:    logger,
		Validator: validator,
		Manager:   manager,
		Metrics:   metricsReg,
		startedAt: time.Now(),
	}

	s.Router.Use(RequestID)
	s.Router.Use(Logger(logger))
	s.Router.Use(Metrics)
	s.Router.Use(middleware.Recoverer)
	s.Router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSAllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	s.Router.Get("/health", s.handleHealth)
	s.Router.Get("/healthz", s.handleLiveness)
	s.Router.Get("/readyz", s.handleReadyz)
	s.Router.Handle(cfg.MetricsPath, promhttp.HandlerFor(metricsReg, promhttp.HandlerOpts{}))

	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.Router.ServeHTTP(w, r)
}

type healthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
}

// handleHealth matches the external contract: 503 if the validator store is
// unreachable, 200 with a status/timestamp body otherwise.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.Validator.Ping(r.Context()).Err(); err != nil {
		s.Logger.Error("health check: validator redis ping failed", "error", err)
		RespondError(w, http.StatusServiceUnavailable, "unavailable", "redis connection failed")
		return
	}
	Respond(w, http.StatusOK, healthResponse{Status: "healthy", Timestamp: time.Now().UTC().Format(time.RFC3339)})
}

// handleLiveness is an unconditional liveness probe: the process is up.
func (s *Server) handleLiveness(w http.ResponseWriter, _ *http.Request) {
	Respond(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if err := s.Validator.Ping(ctx).Err(); err != nil {
		s.Logger.Error("readiness check: validator redis ping failed", "error", err)
		RespondError(w, http.StatusServiceUnavailable, "unavailable", "redis (validator) not ready")
		return
	}
	if err := s.Manager.Ping(ctx).Err(); err != nil {
		s.Logger.Error("readiness check: manager redis ping failed", "error", err)
		RespondError(w, http.StatusServiceUnavailable, "unavailable", "redis (manager) not ready")
		return
	}

	Respond(w, http.StatusOK, map[string]string{"status": "ready"})
}
