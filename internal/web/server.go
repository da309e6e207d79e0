// Package web provides the HTTP server and handlers for the lab records app.
package web

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/JonMunkholm/labtrack/internal/auth"
	"github.com/JonMunkholm/labtrack/internal/core"
	"github.com/JonMunkholm/labtrack/internal/web/middleware"
)

// Deps holds everything NewServer wires together. Service is required.
type Deps struct {
	Service *core.Service

	// Sessions and Users are nil when logins are off. Every request then
	// runs as the demo admin; application.Build only allows that in demo mode.
	Sessions *auth.SessionManager
	Users    *auth.Directory

	// Metrics serves /metrics and observes requests. Optional.
	Metrics MetricsHandler

	// Files serves demo attachments under /files/. Optional.
	Files http.Handler

	RateLimit      RateLimit
	TrustedProxies []string
	EnableCSP      bool

	// RequestTimeout bounds handler time (default: 45s).
	RequestTimeout time.Duration
	// MaxUploadSize bounds a whole multipart request (default: 8 files at the
	// service's per-file limit).
	MaxUploadSize int64

	// Location interprets dates typed into forms and report filters.
	// It must match the sheet timezone. Defaults to UTC.
	Location *time.Location

	ServiceName string
	Logger      *slog.Logger
}

// MetricsHandler is the part of *metrics.Collector the server uses.
type MetricsHandler interface {
	middleware.RequestObserver
	Handler() http.Handler
}

// RateLimit configures per-client limits. Zero values disable a limit.
type RateLimit struct {
	Enabled           bool
	RequestsPerMinute int
	Burst             int
	UploadsPerMinute  int
}

// Server is the HTTP server for the lab records app.
type Server struct {
	service  *core.Service
	sessions *auth.SessionManager
	users    *auth.Directory
	deps     Deps
	log      *slog.Logger

	router *chi.Mux
	server *http.Server

	// uploads is shared by every route that accepts files. Nil when off.
	uploads *middleware.RateLimiter
}

// NewServer creates a new Server instance.
func NewServer(d Deps) (*Server, error) {
	if d.Service == nil {
		return nil, errors.New("web: nil service")
	}
	if (d.Sessions == nil) != (d.Users == nil) {
		return nil, errors.New("web: sessions and users must be set together")
	}
	if d.RequestTimeout <= 0 {
		d.RequestTimeout = 45 * time.Second
	}
	if d.MaxUploadSize <= 0 {
		d.MaxUploadSize = 8 * core.DefaultMaxFileSize
	}
	if d.ServiceName == "" {
		d.ServiceName = "labtrack"
	}
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	if d.Location == nil {
		d.Location = time.UTC
	}

	s := &Server{
		service:  d.Service,
		sessions: d.Sessions,
		users:    d.Users,
		deps:     d,
		log:      d.Logger,
		router:   chi.NewRouter(),
	}
	if rl := d.RateLimit; rl.Enabled && rl.UploadsPerMinute > 0 {
		s.uploads = middleware.NewRateLimiter(rl.UploadsPerMinute, 1)
	}
	s.setupMiddleware()
	s.setupRoutes()
	return s, nil
}

// setupMiddleware configures middleware for all routes.
func (s *Server) setupMiddleware() {
	var obs middleware.RequestObserver
	if s.deps.Metrics != nil {
		obs = s.deps.Metrics
	}

	s.router.Use(chimw.RequestID)
	s.router.Use(middleware.TrustedRealIP(s.deps.TrustedProxies))
	s.router.Use(middleware.Trace(s.deps.ServiceName))
	s.router.Use(middleware.Authenticate(s.sessions))
	s.router.Use(middleware.Logger(obs))
	s.router.Use(chimw.Recoverer)
	s.router.Use(chimw.Timeout(s.deps.RequestTimeout))

	// Security hardening
	s.router.Use(s.securityHeaders)

	if rl := s.deps.RateLimit; rl.Enabled && rl.RequestsPerMinute > 0 {
		s.router.Use(middleware.NewRateLimiter(rl.RequestsPerMinute, rl.Burst).Middleware)
	}

	s.router.Use(requestMetadata)
}

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() {
	s.router.Get("/healthz", s.handleHealth)
	if s.deps.Metrics != nil {
		s.router.Handle("/metrics", s.deps.Metrics.Handler())
	}
	if s.deps.Files != nil {
		s.router.Handle("/files/*", s.deps.Files)
	}

	// Pages
	s.router.Get("/login", s.handleLoginPage)
	s.router.With(middleware.RequireRole(auth.RoleUBS)).Get("/consulta", s.handlePublicPage)
	s.router.Get("/", s.handleDashboard)
	s.router.Group(func(r chi.Router) {
		r.Use(middleware.RequireRole(auth.RoleAdmin))

		r.Get("/sheets/{sheet}", s.handleSheetPage)
		r.Post("/sheets/{sheet}/records/{id}/delete", s.handleDeleteRecordForm)

		// Exam forms may carry files.
		forms := r.With(s.uploadLimit()...)
		forms.Post("/sheets/{sheet}/records", s.handleCreateRecordForm)
		forms.Post("/sheets/{sheet}/records/{id}", s.handleUpdateRecordForm)
	})

	s.router.Route("/api", func(r chi.Router) {
		r.Post("/login", s.handleLogin)
		r.Post("/logout", s.handleLogout)

		// Read-only view
		r.With(middleware.RequireRole(auth.RoleUBS)).Get("/public/{sheet}", s.handlePublicExams)

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireRole(auth.RoleAdmin))

			r.Get("/sheets", s.handleListSheets)
			r.Post("/sheets/{sheet}/init", s.handleInitSheet)

			r.Get("/sheets/{sheet}/exams", s.handleListExams)
			r.Post("/sheets/{sheet}/exams", s.handleAppendExam)
			r.Put("/sheets/{sheet}/exams/{id}", s.handleUpdateExam)
			r.Delete("/sheets/{sheet}/exams/{id}", s.handleDeleteExam)

			r.Get("/sheets/{sheet}/recoletas", s.handleListRecoletas)
			r.Post("/sheets/{sheet}/recoletas", s.handleAppendRecoleta)
			r.Put("/sheets/{sheet}/recoletas/{id}", s.handleUpdateRecoleta)
			r.Delete("/sheets/{sheet}/recoletas/{id}", s.handleDeleteRecoleta)

			r.Get("/report/{sheet}", s.handleReport)
			r.Get("/audit", s.handleAuditLog)

			r.With(s.uploadLimit()...).Post("/attachments", s.handleUploadAttachments)
		})
	})
}

// uploadLimit returns the per-client upload limiter, if configured.
func (s *Server) uploadLimit() []func(http.Handler) http.Handler {
	if s.uploads == nil {
		return nil
	}
	return []func(http.Handler) http.Handler{s.uploads.Middleware}
}

// Start begins listening for HTTP requests.
func (s *Server) Start(addr string, readTimeout, writeTimeout, idleTimeout time.Duration) error {
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
	}

	s.log.Info("starting server", "addr", addr)
	return s.server.ListenAndServe()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Router returns the underlying chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]string{"status": "ok"})
}

// securityHeaders adds security headers to all responses.
func (s *Server) securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Prevent MIME type sniffing
		w.Header().Set("X-Content-Type-Options", "nosniff")

		// Prevent clickjacking
		w.Header().Set("X-Frame-Options", "DENY")

		if s.deps.EnableCSP {
			// Attachment links point at the blob service; images are not embedded.
			w.Header().Set("Content-Security-Policy", "default-src 'self'; script-src 'self'; style-src 'self' 'unsafe-inline'; img-src 'self' data:; frame-ancestors 'none'")
		}

		// Control referrer information
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")

		next.ServeHTTP(w, r)
	})
}

// clientAddr returns the bare client address after TrustedRealIP.
func clientAddr(r *http.Request) (string, bool) {
	addr, ok := middleware.ClientAddr(r.RemoteAddr)
	if !ok {
		return "", false
	}
	return addr.String(), true
}
