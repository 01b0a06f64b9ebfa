package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/dgallion1/zenview/internal/catalog"
	"github.com/dgallion1/zenview/internal/config"
	"github.com/dgallion1/zenview/internal/pipeline"
	"github.com/dgallion1/zenview/internal/prefs"
)

// Server is the HTTP API the browser front-end reads documents from.
type Server struct {
	router       chi.Router
	orchestrator *pipeline.Orchestrator
	catalog      *catalog.Catalog
	prefs        *prefs.Store
	log          *slog.Logger
	cfg          config.Config
}

// NewServer creates and configures the HTTP server. store may be nil, in
// which case preferences live in memory only.
func NewServer(orch *pipeline.Orchestrator, cat *catalog.Catalog, store *prefs.Store, log *slog.Logger, cfg config.Config) *Server {
	if store == nil {
		store, _ = prefs.Open("")
	}
	s := &Server{
		orchestrator: orch,
		catalog:      cat,
		prefs:        store,
		log:          log,
		cfg:          cfg,
	}
	s.setupRoutes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) setupRoutes() {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(RequestLogger(s.log))

	r.Get("/health", s.handleHealth)

	r.Route("/api", func(r chi.Router) {
		r.Get("/documents", s.handleListDocuments)
		r.Get("/documents/{slug}", s.handleGetDocument)
		r.Get("/documents/{slug}/raw", s.handleRawDocument)
		r.Get("/documents/{slug}/status", s.handleDocumentStatus)
		r.Get("/media/{sectionID}", s.handleMedia)
		r.Get("/prefs", s.handleGetPrefs)
		r.Get("/stats", s.handleStats)

		r.Group(func(r chi.Router) {
			r.Use(AuthMiddleware(s.cfg.APIKey, s.log))
			r.Post("/documents/{slug}/reload", s.handleReload)
			r.Put("/prefs", s.handlePutPrefs)
		})
	})

	if s.cfg.StaticDir != "" {
		r.With(NoCache).Handle("/*", http.FileServer(http.Dir(s.cfg.StaticDir)))
	}

	s.router = r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}
