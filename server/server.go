// Package server exposes the agent over HTTP. It is a thin adapter:
// all planning and validation logic lives behind the agent and the
// sandbox.
package server

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/ternlabs/liveagent/agent"
	"github.com/ternlabs/liveagent/connector"
	"github.com/ternlabs/liveagent/conversation"
	"golang.org/x/time/rate"
)

// Config for the HTTP server.
type Config struct {
	CORSOrigins    []string
	RateLimit      float64
	RateBurst      int
	RequestTimeout time.Duration
	MaxBodyBytes   int64
}

// Server routes HTTP requests to the agent and the connector registry.
type Server struct {
	router     *chi.Mux
	agent      *agent.Agent
	connectors *connector.Registry
	store      conversation.Store
	logger     *slog.Logger
	limiter    *rate.Limiter
}

// Option configures the server.
type Option func(*Server)

// WithStore enables the conversation read endpoints.
func WithStore(store conversation.Store) Option {
	return func(s *Server) { s.store = store }
}

// WithLogger sets the server logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) { s.logger = logger }
}

// New creates the HTTP server.
func New(ag *agent.Agent, connectors *connector.Registry, cfg Config, opts ...Option) *Server {
	s := &Server{
		router:     chi.NewRouter(),
		agent:      ag,
		connectors: connectors,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}

	if cfg.RateLimit > 0 {
		burst := cfg.RateBurst
		if burst <= 0 {
			burst = 1
		}
		s.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}

	s.setupMiddleware(cfg)
	s.setupRoutes()
	return s
}

func (s *Server) setupMiddleware(cfg Config) {
	s.router.Use(middleware.RealIP)
	s.router.Use(requestIDMiddleware)
	s.router.Use(loggingMiddleware(s.logger))
	s.router.Use(recoveryMiddleware(s.logger))

	if s.limiter != nil {
		s.router.Use(s.rateLimitMiddleware)
	}

	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	s.router.Use(timeoutMiddleware(timeout))

	maxBody := cfg.MaxBodyBytes
	if maxBody <= 0 {
		maxBody = 1 << 20
	}
	s.router.Use(bodySizeLimitMiddleware(maxBody))

	origins := cfg.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID"},
		MaxAge:         300,
	}))
}

func (s *Server) setupRoutes() {
	s.router.Get("/health", s.healthHandler)

	s.router.Route("/api/v1", func(r chi.Router) {
		r.Post("/ask", s.askHandler)
		if s.store != nil {
			r.Get("/conversations/{id}", s.getConversationHandler)
		}
	})
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}
