// Package web provides the HTTP API for the article import pipeline.
package web

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"

	"github.com/JonMunkholm/ArticleImport/internal/config"
	"github.com/JonMunkholm/ArticleImport/internal/core"
	"github.com/JonMunkholm/ArticleImport/internal/web/middleware"
)

// Server is the HTTP server for the import API.
type Server struct {
	service  *core.Service
	history  core.ImportHistory
	cfg      *config.Config
	validate *validator.Validate
	router   *chi.Mux
	server   *http.Server
	done     chan struct{}
}

// NewServer creates a Server. history may be nil, in which case the history
// endpoint returns an empty list.
func NewServer(service *core.Service, history core.ImportHistory, cfg *config.Config) *Server {
	s := &Server{
		service:  service,
		history:  history,
		cfg:      cfg,
		validate: validator.New(),
		router:   chi.NewRouter(),
		done:     make(chan struct{}),
	}
	s.setupMiddleware()
	s.setupRoutes()
	return s
}

// setupMiddleware configures middleware for all routes.
func (s *Server) setupMiddleware() {
	s.router.Use(chimw.RequestID)
	s.router.Use(middleware.TrustedRealIP(s.cfg.Security.TrustedProxies))
	s.router.Use(middleware.Logger)
	s.router.Use(chimw.Recoverer)
	s.router.Use(securityHeaders)
	s.router.Use(requestMeta)
}

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() {
	s.router.Get("/health", s.handleHealth)

	general, uploads := s.rateLimiters()

	s.router.Route("/api", func(r chi.Router) {
		r.Use(general)

		// Progress streams outlive the request timeout.
		r.Get("/imports/{id}/progress", s.handleCommitProgress)

		r.Group(func(r chi.Router) {
			r.Use(chimw.Timeout(s.requestTimeout()))

			// Reference data
			r.Get("/schema", s.handleSchema)
			r.Get("/branches", s.handleBranches)
			r.Get("/template", s.handleTemplate)

			// Import history and commit slots
			r.Get("/imports/history", s.handleImportHistory)
			r.Get("/imports/queue", s.handleQueueStatus)

			// Sessions
			r.With(uploads).Post("/imports", s.handleStartImport)
			r.Get("/imports/{id}", s.handleGetImport)
			r.Delete("/imports/{id}", s.handleDiscardImport)
			r.Put("/imports/{id}/mappings", s.handleUpdateMapping)
			r.Delete("/imports/{id}/mappings/{source}", s.handleRemoveMapping)
			r.Put("/imports/{id}/config", s.handleSetConfiguration)
			r.Post("/imports/{id}/validate", s.handleValidate)
			r.Get("/imports/{id}/preview", s.handlePreview)

			// Commit
			r.Post("/imports/{id}/commit", s.handleStartCommit)
			r.Get("/imports/{id}/result", s.handleCommitResult)
			r.Post("/imports/{id}/cancel", s.handleCancelCommit)
		})
	})
}

// rateLimiters returns the general and upload middlewares. Both are no-ops
// when rate limiting is disabled.
func (s *Server) rateLimiters() (general, uploads func(http.Handler) http.Handler) {
	passthrough := func(next http.Handler) http.Handler { return next }
	if !s.cfg.Rate.Enabled {
		return passthrough, passthrough
	}

	g := newRateLimiter(s.cfg.Rate.RequestsPerMinute, time.Minute)
	u := newRateLimiter(s.cfg.Rate.UploadLimit, time.Minute)
	go g.runSweeper(s.done)
	go u.runSweeper(s.done)
	return g.middleware, u.middleware
}

func (s *Server) requestTimeout() time.Duration {
	if s.cfg.Server.RequestTimeout > 0 {
		return s.cfg.Server.RequestTimeout
	}
	return 60 * time.Second
}

// Start begins listening for HTTP requests.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:         s.cfg.Server.Addr(),
		Handler:      s.router,
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
		IdleTimeout:  s.cfg.Server.IdleTimeout,
	}

	slog.Info("server listening", "addr", s.server.Addr)
	return s.server.ListenAndServe()
}

// Shutdown gracefully stops the server and its background sweepers.
func (s *Server) Shutdown(ctx context.Context) error {
	select {
	case <-s.done:
	default:
		close(s.done)
	}
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Router returns the underlying chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// securityHeaders adds security headers to all responses.
func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		next.ServeHTTP(w, r)
	})
}
