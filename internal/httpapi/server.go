// Package httpapi serves the learner operations over REST.
package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/abhisek/pathwise/internal/metrics"
	"github.com/abhisek/pathwise/internal/service"
)

// Server builds the HTTP handler for a Service.
type Server struct {
	svc     *service.Service
	metrics *metrics.Collector
	logger  *zap.Logger
	origins []string
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the request and error logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithMetrics records request metrics on c and serves them at /metrics.
func WithMetrics(c *metrics.Collector) Option {
	return func(s *Server) { s.metrics = c }
}

// WithAllowedOrigins sets the CORS origins. The default allows any origin.
func WithAllowedOrigins(origins []string) Option {
	return func(s *Server) {
		if len(origins) > 0 {
			s.origins = origins
		}
	}
}

// New creates a Server.
func New(svc *service.Service, opts ...Option) *Server {
	s := &Server{
		svc:     svc,
		logger:  zap.NewNop(),
		origins: []string{"*"},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler returns the router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(requestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(requestLogger(s.logger, s.metrics))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.origins,
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID"},
		MaxAge:         300,
	}))

	r.Get("/health", s.health)
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics.Handler())
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/courses", func(r chi.Router) {
			r.Get("/", s.listCourses)
			r.Route("/{courseID}", func(r chi.Router) {
				r.Get("/", s.getCourse)
				r.Get("/nodes/{nodeID}", s.getNode)
				r.Get("/paths", s.listPaths)
			})
		})
		r.Route("/users/{userID}/courses/{courseID}", func(r chi.Router) {
			r.Get("/progress", s.getProgress)
			r.Delete("/progress", s.resetProgress)
			r.Get("/summary", s.summary)
			r.Post("/completions", s.markCompleted)
			r.Put("/path", s.selectPath)
			r.Delete("/path", s.clearPath)
			r.Get("/recommendations", s.recommendations)
		})
	})
	return r
}
