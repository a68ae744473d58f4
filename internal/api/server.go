package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/dgallion1/docclass/internal/config"
	"github.com/dgallion1/docclass/internal/inference"
	"github.com/dgallion1/docclass/internal/pipeline"
	"github.com/dgallion1/docclass/internal/store"
)

// DocumentStore is the persistence the HTTP layer reads and writes directly.
type DocumentStore interface {
	CreateDocument(ctx context.Context, filename, text string) (*store.Document, error)
	ReplaceDocument(ctx context.Context, id, text string) error
	FindDocumentByFilename(ctx context.Context, filename string) (*store.Document, error)
	GetDocument(ctx context.Context, id string) (*store.Document, error)
	ListDocuments(ctx context.Context) ([]store.Document, error)
	ListRuns(ctx context.Context, docID string) ([]store.Run, error)
	DeleteDocument(ctx context.Context, id string) error
}

// Server is the HTTP API server for docclass.
type Server struct {
	router       chi.Router
	orchestrator *pipeline.Orchestrator
	store        DocumentStore
	stats        *inference.LatencyStats
	metrics      http.Handler
	log          *slog.Logger
	cfg          config.Config
}

// Options carries the optional collaborators of a Server.
type Options struct {
	// Stats backs /api/stats/inference. Nil disables the endpoint.
	Stats *inference.LatencyStats
	// Metrics serves /metrics. Nil disables the endpoint.
	Metrics http.Handler
}

// NewServer creates and configures the HTTP server.
func NewServer(orch *pipeline.Orchestrator, st DocumentStore, log *slog.Logger, cfg config.Config, opts Options) *Server {
	s := &Server{
		orchestrator: orch,
		store:        st,
		stats:        opts.Stats,
		metrics:      opts.Metrics,
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

	// Public endpoints.
	r.Get("/health", s.handleHealth)
	if s.metrics != nil {
		r.Handle("/metrics", s.metrics)
	}

	// Authenticated endpoints.
	r.Group(func(r chi.Router) {
		if s.cfg.APIKey != "" {
			r.Use(AuthMiddleware(s.cfg.APIKey, s.log))
		}

		r.Post("/files/upload", s.handleUpload)
		r.Post("/files/process", s.handleProcess)
		r.Get("/files/status/{fileID}", s.handleFileStatus)
		r.Get("/files/list", s.handleListFiles)
		r.Delete("/files/delete/{fileID}", s.handleDeleteFile)
		r.Get("/files/{fileID}/export", s.handleExportFile)

		r.Get("/jobs/{jobID}", s.handleJobStatus)
		r.Get("/api/stats/inference", s.handleInferenceStats)
	})

	s.router = r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":      "ok",
		"queue_depth": s.orchestrator.QueueDepth(),
	})
}
