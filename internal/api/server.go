// Package api provides the HTTP surface of the catalog: the GraphQL endpoint,
// the subscription stream and the health check.
package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/librarycatalog/catalog-server/internal/pubsub"
	"github.com/librarycatalog/catalog-server/internal/ratelimit"
	"github.com/librarycatalog/catalog-server/internal/service"
	"github.com/librarycatalog/catalog-server/internal/store"
)

// Deps are the collaborators the HTTP server routes to.
type Deps struct {
	Store   store.Store
	Bus     pubsub.Bus
	Auth    *service.AuthService
	GraphQL http.Handler
	Stream  StreamHandler
	// Limiter throttles the GraphQL routes per client IP. Nil disables limiting.
	Limiter     *ratelimit.KeyedRateLimiter
	CORSOrigins []string
	Logger      *slog.Logger
}

// StreamHandler serves subscription streams and reports how many are open.
type StreamHandler interface {
	http.Handler
	Active() int
}

// Server holds dependencies for HTTP handlers.
type Server struct {
	deps   Deps
	router *chi.Mux
	api    huma.API
	logger *slog.Logger
}

// NewServer creates a new HTTP server with all routes configured.
func NewServer(deps Deps) *Server {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}

	s := &Server{
		deps:   deps,
		router: chi.NewRouter(),
		logger: deps.Logger,
	}

	s.setupMiddleware()
	s.api = humachi.New(s.router, huma.DefaultConfig("Library Catalog", "1.0.0"))
	s.setupRoutes()

	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(middleware.Logger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.corsOrigins(),
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Authorization", "Content-Type", "Accept"},
		MaxAge:         int((5 * time.Minute).Seconds()),
	}))
}

func (s *Server) corsOrigins() []string {
	if len(s.deps.CORSOrigins) == 0 {
		return []string{"*"}
	}
	return s.deps.CORSOrigins
}

func (s *Server) setupRoutes() {
	s.registerHealthRoutes()

	s.router.Group(func(r chi.Router) {
		if s.deps.Limiter != nil {
			r.Use(s.rateLimit)
		}
		r.Use(s.authenticate)

		// Compression would buffer the event stream, so it only wraps the executor.
		r.With(middleware.Compress(5)).Method(http.MethodGet, "/graphql", s.deps.GraphQL)
		r.With(middleware.Compress(5)).Method(http.MethodPost, "/graphql", s.deps.GraphQL)

		r.Method(http.MethodGet, "/graphql/stream", s.deps.Stream)
		r.Method(http.MethodPost, "/graphql/stream", s.deps.Stream)
	})
}
