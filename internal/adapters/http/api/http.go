// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/netip"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/okian/lounge/internal/adapters/http/swagger"
	"github.com/okian/lounge/internal/adapters/ratelimit"
	"github.com/okian/lounge/pkg/logger"
)

const defaultMaxBodyBytes = 1 << 20

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	LeaderboardDependencies
	PlayerDependencies
	UpdateDependencies
	PasswdDependencies
	ReadinessChecker
	StatsProvider
}

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler      *HealthHandler
	statsHandler       *StatsHandler
	leaderboardHandler *LeaderboardHandler
	playerHandler      *PlayerHandler
	updateHandler      *UpdateHandler
	passwdHandler      *PasswdHandler

	limiter        ratelimit.Limiter
	allowedOrigins []string
	trustedProxies []netip.Prefix
	maxBodyBytes   int64
	logger         logger.Logger
}

// Option configures a Server.
type Option func(*Server)

// WithRateLimiter limits /api routes per client address. Without it the
// routes are unlimited.
func WithRateLimiter(l ratelimit.Limiter) Option {
	return func(s *Server) {
		s.limiter = l
	}
}

// WithAllowedOrigins sets the CORS allow list. "*" allows any origin.
func WithAllowedOrigins(origins []string) Option {
	return func(s *Server) {
		if len(origins) > 0 {
			s.allowedOrigins = origins
		}
	}
}

// WithTrustedProxies lists the proxies whose forwarding headers are
// believed. Without it every request is keyed on its socket address.
func WithTrustedProxies(prefixes []netip.Prefix) Option {
	return func(s *Server) {
		s.trustedProxies = prefixes
	}
}

// WithMaxBodyBytes caps request bodies.
func WithMaxBodyBytes(n int64) Option {
	return func(s *Server) {
		if n > 0 {
			s.maxBodyBytes = n
		}
	}
}

// WithLogger sets the logger for request and failure logging.
func WithLogger(l logger.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, opts ...Option) *Server {
	s := &Server{
		allowedOrigins: []string{"*"},
		maxBodyBytes:   defaultMaxBodyBytes,
		logger:         logger.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.healthHandler = NewHealthHandler(deps)
	s.statsHandler = NewStatsHandler(deps)
	s.leaderboardHandler = NewLeaderboardHandler(deps, s.logger)
	s.playerHandler = NewPlayerHandler(deps, s.logger)
	s.updateHandler = NewUpdateHandler(deps, s.maxBodyBytes, s.logger)
	s.passwdHandler = NewPasswdHandler(deps, s.maxBodyBytes, s.logger)
	return s
}

// Router builds the chi router with every route and the shared middleware.
func (s *Server) Router(ctx context.Context) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(ClientIP(s.trustedProxies))
	r.Use(RequestLogger(s.logger))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.allowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", HeaderUpdateSignature, HeaderHubSignature, HeaderDelivery, HeaderEvent},
		MaxAge:         300,
	}))

	r.Get("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	r.Get("/readyz", MetricsMiddleware(s.healthHandler.HandleReady, "readyz"))
	r.Get("/metrics", s.healthHandler.HandleMetrics)
	r.Get("/stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))

	r.Route("/api", func(r chi.Router) {
		if s.limiter != nil {
			r.Use(RateLimitMiddleware(s.limiter, s.logger))
		}
		r.Get("/leaderboard", MetricsMiddleware(s.leaderboardHandler.HandleGetLeaderboard, "leaderboard"))
		r.Get("/players/{name}", MetricsMiddleware(s.playerHandler.HandleGetPlayer, "player"))
		r.Post("/update", MetricsMiddleware(s.updateHandler.HandleUpdate, "update"))
		r.Post("/passwd", MetricsMiddleware(s.passwdHandler.HandlePasswd, "passwd"))
	})

	swagger.Register(ctx, r)
	return r
}

type messageResponse struct {
	Message string `json:"message"`
	BatchID string `json:"batch_id,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{Error: message, Code: code})
}

// writeFailure classifies err and writes the matching response. Server
// errors are logged with their detail, which never reaches the client.
func writeFailure(ctx context.Context, w http.ResponseWriter, log logger.Logger, err error) {
	f := classify(err)
	if f.status >= http.StatusInternalServerError {
		log.Error(ctx, "request failed",
			logger.String("request_id", middleware.GetReqID(ctx)),
			logger.Error(err))
	}
	writeError(w, f.status, f.code, f.message)
}

// readBody reads the whole body, up to limit bytes.
func readBody(w http.ResponseWriter, r *http.Request, limit int64) ([]byte, error) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, limit))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, ErrPayloadTooLarge
		}
		return nil, WrapKind("api.read_body", ErrBadRequest, err)
	}
	return body, nil
}
