package server

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/hrm8/assistant/internal/actor"
	"github.com/hrm8/assistant/internal/agent"
	"github.com/hrm8/assistant/internal/audit"
	"github.com/hrm8/assistant/internal/auth"
	"github.com/hrm8/assistant/internal/otel"
)

const defaultTimeout = 60 * time.Second

// Server holds all dependencies for the HTTP API and MCP endpoints.
type Server struct {
	router       *chi.Mux
	orchestrator *agent.Orchestrator
	executor     *agent.Executor
	tokens       *auth.TokenService
	auditStore   *audit.Store
	mcpServer    http.Handler
	limiter      *RateLimiter
	corsOrigins  []string
	startTime    time.Time
}

// Option configures the Server.
type Option func(*Server)

// WithAuditStore exposes the audit log to global admins under /v1/audit.
func WithAuditStore(st *audit.Store) Option {
	return func(s *Server) { s.auditStore = st }
}

// WithMCPServer sets the native MCP handler mounted at POST /mcp.
func WithMCPServer(h http.Handler) Option {
	return func(s *Server) { s.mcpServer = h }
}

// WithRateLimiter enables per-actor rate limiting.
func WithRateLimiter(rl *RateLimiter) Option {
	return func(s *Server) { s.limiter = rl }
}

// WithCORSOrigins sets allowed CORS origins (e.g. ["*"]).
func WithCORSOrigins(origins []string) Option {
	return func(s *Server) { s.corsOrigins = origins }
}

// NewServer builds a Server with the required dependencies and optional Option(s).
func NewServer(orchestrator *agent.Orchestrator, executor *agent.Executor, tokens *auth.TokenService, opts ...Option) *Server {
	s := &Server{
		router:       chi.NewRouter(),
		orchestrator: orchestrator,
		executor:     executor,
		tokens:       tokens,
		corsOrigins:  []string{"*"},
		startTime:    time.Now(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Routes returns the configured http.Handler (chi router with all middleware and routes).
// Chat and stream routes run without the default request timeout; the
// orchestrator's step budget and the provider timeout bound them.
func (s *Server) Routes() http.Handler {
	r := s.router
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(otel.MiddlewareWithStatus())
	r.Use(CORSMiddleware(s.corsOrigins))

	r.Get("/health", s.handleHealth)
	r.Get("/v1/health", s.handleHealth)

	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(s.tokens))
		r.Use(RateLimitMiddleware(s.limiter))

		r.Post("/v1/assistant/chat", s.handleChat)
		r.Post("/v1/assistant/stream", s.handleStream)
		if s.mcpServer != nil {
			r.Post("/mcp", s.mcpServer.ServeHTTP)
		}

		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(defaultTimeout))
			r.Get("/v1/assistant/tools", s.handleToolsList)

			if s.auditStore != nil {
				r.Group(func(r chi.Router) {
					r.Use(RequireLevel(actor.LevelGlobalAdmin))
					r.Get("/v1/audit", s.handleAuditList)
					r.Get("/v1/audit/{id}", s.handleAuditGet)
					r.Get("/v1/audit/{id}/verify", s.handleAuditVerify)
				})
			}
		})
	})

	return r
}
