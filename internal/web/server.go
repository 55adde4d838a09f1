// Package web is the HTTP layer: the public site, the admin authoring
// area, and the operational endpoints.
package web

import (
	"context"
	"embed"
	"io/fs"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/inkpress-dev/inkpress/internal/analytics"
	"github.com/inkpress-dev/inkpress/internal/auth"
	"github.com/inkpress-dev/inkpress/internal/config"
	"github.com/inkpress-dev/inkpress/internal/preview"
	"github.com/inkpress-dev/inkpress/internal/render"
	"github.com/inkpress-dev/inkpress/internal/store"
	"github.com/inkpress-dev/inkpress/pkg/blob"
	"github.com/inkpress-dev/inkpress/pkg/media"
)

//go:embed static
var staticFS embed.FS

// Options carries the server's dependencies. Config, Store, Media,
// Registry, Pipeline, and Auth are required.
type Options struct {
	Config    *config.Config
	Store     *store.Store
	Media     media.Store
	Registry  *blob.Registry
	Pipeline  *render.Pipeline
	Auth      *auth.Provider
	Analytics *analytics.Recorder
	Logger    *slog.Logger

	// Metrics receives HTTP metrics and backs the /metrics endpoint.
	// When nil a private registry is used and /metrics serves it.
	Metrics *prometheus.Registry
}

// Server serves the site over HTTP.
type Server struct {
	cfg       *config.Config
	store     *store.Store
	media     media.Store
	previewer *media.Previewer
	registry  *blob.Registry
	pipeline  *render.Pipeline
	auth      *auth.Provider
	analytics *analytics.Recorder
	logger    *slog.Logger
	tmpl      *templates
	metrics   *prometheus.Registry

	handler http.Handler
	httpSrv *http.Server
}

// New assembles a server from its dependencies.
func New(opts Options) (*Server, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "web")
	reg := opts.Metrics
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	tmpl, err := parseTemplates()
	if err != nil {
		return nil, err
	}

	s := &Server{
		cfg:       opts.Config,
		store:     opts.Store,
		media:     opts.Media,
		previewer: media.NewPreviewer(opts.Media, opts.Registry),
		registry:  opts.Registry,
		pipeline:  opts.Pipeline,
		auth:      opts.Auth,
		analytics: opts.Analytics,
		logger:    logger,
		tmpl:      tmpl,
		metrics:   reg,
	}
	s.handler = s.routes()
	s.httpSrv = &http.Server{
		Addr:              opts.Config.Addr,
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s, nil
}

// Handler returns the assembled route tree.
func (s *Server) Handler() http.Handler { return s.handler }

// routes builds the full route tree. Called once from New; the metrics
// middleware registers its collectors as a side effect.
func (s *Server) routes() http.Handler {
	r := chi.NewRouter()

	r.Use(Recoverer(s.logger))
	r.Use(RequestLogger(s.logger))
	r.Use(newHTTPMetrics(s.metrics, "inkpress").Middleware)
	r.Use(Tracing("inkpress"))
	r.Use(s.auth.Middleware())

	// Public site.
	r.Get("/", s.handleHome)
	r.Get("/posts", s.handlePostList)
	r.Get("/posts/{slug}", s.handlePost)
	r.Get("/categories/{slug}", s.handleCategory)
	r.Get("/tags/{tag}", s.handleTag)
	r.Get("/media/{id}", s.handleMedia)
	r.Get("/media/{id}/{variant}", s.handleMedia)

	// Operational endpoints.
	r.Get("/healthz", s.handleHealthz)
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(s.metrics, promhttp.HandlerOpts{}))

	static, _ := fs.Sub(staticFS, "static")
	r.Handle("/static/*", http.StripPrefix("/static/", http.FileServer(http.FS(static))))

	// Admin area.
	r.Route("/admin", func(r chi.Router) {
		r.Get("/login", s.handleLoginForm)
		r.Post("/login", s.handleLogin)
		r.Post("/logout", s.handleLogout)

		r.Group(func(r chi.Router) {
			r.Use(s.auth.RequireUser)

			r.Get("/", s.handleDashboard)
			r.Get("/analytics.json", s.handleDashboardJSON)
			r.Get("/posts", s.handleAdminPosts)
			r.Get("/posts/new", s.handleAdminNewPost)
			r.Post("/posts", s.handleAdminCreatePost)
			r.Get("/posts/{id}", s.handleAdminEditPost)
			r.Post("/posts/{id}", s.handleAdminUpdatePost)
			r.Post("/posts/{id}/publish", s.handleAdminPublish)
			r.Post("/posts/{id}/unpublish", s.handleAdminUnpublish)
			r.With(s.auth.RequireAdmin).Post("/posts/{id}/delete", s.handleAdminDeletePost)

			r.Get("/media", s.handleAdminMedia)
			r.Post("/media", s.handleAdminUpload)
			r.With(s.auth.RequireAdmin).Post("/media/{id}/delete", s.handleAdminDeleteMedia)

			r.Handle("/preview", preview.NewHandler(s.pipeline, s.logger))
		})
	})

	return r
}

// Run serves until ctx is canceled, then shuts down gracefully. All
// blob registry handles are revoked on the way out so no scratch files
// outlive the process.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening", "addr", s.httpSrv.Addr)
		if err := s.httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	err := s.httpSrv.Shutdown(shutdownCtx)

	s.registry.RevokeAll()
	return err
}
