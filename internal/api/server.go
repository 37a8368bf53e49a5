package api

import (
	"log/slog"
	"net/http"

	"github.com/DJ-Manjaray/longdoc/internal/answer"
	"github.com/DJ-Manjaray/longdoc/internal/config"
	"github.com/DJ-Manjaray/longdoc/internal/llm"
	"github.com/DJ-Manjaray/longdoc/internal/navigate"
	"github.com/DJ-Manjaray/longdoc/internal/pipeline"
	"github.com/DJ-Manjaray/longdoc/internal/store"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// Server is the HTTP API server for longdoc.
type Server struct {
	router       chi.Router
	orchestrator *pipeline.Orchestrator
	docs         *store.Store
	navigator    *navigate.Navigator
	synthesizer  *answer.Synthesizer
	llmStats     *llm.Stats
	log          *slog.Logger
	cfg          config.Config
}

// NewServer creates and configures the HTTP server.
func NewServer(orch *pipeline.Orchestrator, docs *store.Store, nav *navigate.Navigator, syn *answer.Synthesizer, stats *llm.Stats, log *slog.Logger, cfg config.Config) *Server {
	s := &Server{
		orchestrator: orch,
		docs:         docs,
		navigator:    nav,
		synthesizer:  syn,
		llmStats:     stats,
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
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.cfg.CORSOrigins,
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type"},
	}))

	r.Get("/health", s.handleHealth)

	r.Post("/api/documents", s.handleUpload)
	r.Get("/api/documents", s.handleListDocuments)
	r.Delete("/api/documents/{docID}", s.handleDeleteDocument)
	r.Get("/api/jobs/{jobID}", s.handleJobStatus)

	r.Post("/api/ask", s.handleAsk)

	r.Get("/api/stats/llm", s.handleLLMStats)

	s.router = r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}
