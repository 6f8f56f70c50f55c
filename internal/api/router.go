package api

import (
	"context"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

// RouterConfig holds configuration for the router
type RouterConfig struct {
	Database       interface{ Health(context.Context) error }
	Store          Reader
	ReportFolderID string
	Env            string
	Log            *zap.Logger
}

// RouterResult holds the router and resources that need cleanup
type RouterResult struct {
	Router       *chi.Mux
	RateLimiters *RateLimiters
}

// NewRouter creates and configures the HTTP router.
// Caller must call result.RateLimiters.Stop() on shutdown.
func NewRouter(cfg *RouterConfig) *RouterResult {
	log := cfg.Log
	if log == nil {
		log = zap.NewNop()
	}

	r := chi.NewRouter()
	rateLimiters := NewRateLimiters()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(LoggingMiddleware(log))
	r.Use(middleware.Recoverer)
	r.Use(CORSMiddleware(cfg.Env))
	r.Use(rateLimiters.Global.Middleware)

	h := NewRosterHandler(cfg.Store, cfg.ReportFolderID, log)
	r.Route("/api", func(r chi.Router) {
		r.Get("/health", NewHealthHandler(cfg.Database, log))
		r.Get("/tables", h.ListTables)
		r.Get("/tables/{id}", h.GetTable)
		r.Get("/runs", h.ListRuns)
		r.Get("/runs/{id}", h.GetRun)
		r.Get("/reports", h.ListReports)
		r.With(rateLimiters.DownloadGuard).Get("/reports/{id}", h.DownloadReport)
	})

	return &RouterResult{
		Router:       r,
		RateLimiters: rateLimiters,
	}
}
