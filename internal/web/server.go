// Package web provides the HTTP API for asset imports and inventory actions.
package web

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/JonMunkholm/assetinventory/internal/config"
	"github.com/JonMunkholm/assetinventory/internal/files"
	"github.com/JonMunkholm/assetinventory/internal/importer"
	"github.com/JonMunkholm/assetinventory/internal/inventory"
	"github.com/JonMunkholm/assetinventory/internal/web/middleware"
)

// Server is the HTTP API server.
type Server struct {
	cfg         *config.Config
	imports     *importer.Service
	inventory   *inventory.Service
	attachments *files.AttachmentService

	router      *chi.Mux
	server      *http.Server
	limiter     *middleware.RateLimiter
	uploadLimit *middleware.RateLimiter
	stop        context.CancelFunc
}

// NewServer wires routes and middleware. attachments may be nil when
// object storage is not configured.
func NewServer(cfg *config.Config, imports *importer.Service, inv *inventory.Service, attachments *files.AttachmentService) *Server {
	s := &Server{
		cfg:         cfg,
		imports:     imports,
		inventory:   inv,
		attachments: attachments,
		router:      chi.NewRouter(),
	}
	if cfg.Rate.Enabled {
		s.limiter = middleware.NewRateLimiter(cfg.Rate.RequestsPerMinute, 5*time.Minute)
		s.uploadLimit = middleware.NewRateLimiter(cfg.Rate.UploadLimit, 5*time.Minute)
	}
	s.setupMiddleware()
	s.setupRoutes()
	return s
}

func (s *Server) setupMiddleware() {
	s.router.Use(chimw.RequestID)
	s.router.Use(middleware.TrustedRealIP(s.cfg.Security.TrustedProxies))
	s.router.Use(middleware.Logger)
	s.router.Use(chimw.Recoverer)
	s.router.Use(middleware.SecurityHeaders(s.cfg.Security.EnableCSP))
	if s.limiter != nil {
		s.router.Use(s.limiter.Middleware)
	}
	s.router.Use(middleware.APIKeyAuth(s.cfg.Security, "/healthz"))
}

func (s *Server) setupRoutes() {
	s.router.Get("/healthz", s.handleHealth)
	s.router.Handle("/metrics", s.metricsHandler())

	s.router.Route("/api", func(r chi.Router) {
		// Long-lived streams are exempt from the request timeout.
		r.Get("/import/{runID}/progress", s.handleImportProgress)
		r.Post("/assets/mass-delete", s.handleMassDelete)

		r.Group(func(r chi.Router) {
			r.Use(chimw.Timeout(s.cfg.Server.RequestTimeout))

			r.Get("/import/template", s.handleImportTemplate)
			r.Get("/import/status", s.handleImportStatus)
			r.With(s.uploadLimited).Post("/import/preview", s.handleImportPreview)
			r.With(s.uploadLimited).Post("/import", s.handleImportStart)
			r.Get("/import/{runID}/result", s.handleImportResult)
			r.Get("/import/{runID}/failed", s.handleImportFailedRows)
			r.Post("/import/{runID}/cancel", s.handleImportCancel)

			r.Get("/categories/tree", s.handleCategoryTree)
			r.Post("/categories", s.handleCreateCategory)
			r.Delete("/categories/{id}", s.handleDeleteCategory)
			r.Get("/locations/tree", s.handleLocationTree)
			r.Post("/locations", s.handleCreateLocation)
			r.Put("/locations/{id}/parent", s.handleMoveLocation)
			r.Delete("/locations/{id}", s.handleDeleteLocation)

			r.Post("/events", s.handleCreateEvent)
			r.Get("/events/{id}/manifest", s.handleEventManifest)

			r.Get("/roles", s.handleListRoles)
			r.Post("/roles", s.handleCreateRole)
			r.Put("/roles/{id}", s.handleUpdateRole)
			r.Delete("/roles/{id}", s.handleDeleteRole)
			r.Put("/users/{id}/roles", s.handleAssignRoles)
			r.Get("/users/{id}/permissions", s.handleUserPermissions)

			r.Post("/assets/{id}/checkout", s.handleCheckout)
			r.Post("/assets/{id}/checkin", s.handleCheckin)
			r.Post("/assets/{id}/install", s.handleInstall)
			r.Get("/assets/{id}/history", s.handleHistory)
			r.Get("/assets/{id}/components", s.handleComponents)
			r.Get("/assets/{id}/notes", s.handleListNotes)
			r.Post("/assets/{id}/notes", s.handleAddNote)
			r.Get("/assets/{id}/attachments", s.handleListAttachments)
			r.With(s.uploadLimited).Post("/assets/{id}/attachments", s.handleUploadAttachment)
			r.Get("/attachments/{id}/download", s.handleDownloadAttachment)
		})
	})
}

// uploadLimited applies the stricter per-IP upload limit.
func (s *Server) uploadLimited(next http.Handler) http.Handler {
	if s.uploadLimit == nil {
		return next
	}
	return s.uploadLimit.Middleware(next)
}

func (s *Server) metricsHandler() http.Handler {
	if m := s.imports.Metrics(); m != nil {
		return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
	}
	return http.NotFoundHandler()
}

// Start listens on the configured address until Shutdown.
func (s *Server) Start() error {
	ctx, cancel := context.WithCancel(context.Background())
	s.stop = cancel
	for _, rl := range []*middleware.RateLimiter{s.limiter, s.uploadLimit} {
		if rl != nil {
			go rl.Cleanup(ctx)
		}
	}

	s.server = &http.Server{
		Addr:         s.cfg.Server.Addr(),
		Handler:      s.router,
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
		IdleTimeout:  s.cfg.Server.IdleTimeout,
	}

	slog.Info("starting server", "addr", s.server.Addr)
	return s.server.ListenAndServe()
}

// Shutdown stops accepting requests and waits for in-flight ones.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.stop != nil {
		s.stop()
	}
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Router returns the chi router for tests.
func (s *Server) Router() *chi.Mux {
	return s.router
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":      "ok",
		"imports":     s.imports.LimiterStatus(),
		"attachments": s.attachments != nil && s.attachments.Enabled(),
	})
}
