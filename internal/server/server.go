// Package server exposes the engine over HTTP.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/INFO-698-InfoSci-Capstone/summiva/internal/config"
	"github.com/INFO-698-InfoSci-Capstone/summiva/internal/models"
)

// Engine is the part of *engine.Engine the HTTP API needs.
type Engine interface {
	Ingest(ctx context.Context, docID, text string, metadata map[string]interface{}) (*models.IngestResult, error)
	Query(ctx context.Context, q *models.SearchQuery) (*models.SearchResponse, error)
	SimilarDocuments(ctx context.Context, text string, k int) ([]models.SimilarDocument, error)
	Document(ctx context.Context, docID string) (*models.Document, error)
	Remove(ctx context.Context, docID string) error
	ClusterOf(docID string) (uint64, error)
	MembersOf(clusterID uint64) []string
	SimilarClusters(clusterID uint64, limit int) ([]uint64, error)
	Clusters() []models.ClusterSummary
	Retrain(ctx context.Context) error
	Stats() models.Stats
}

// Server is the HTTP server for the Summiva API.
type Server struct {
	engine Engine
	config *config.Config
	logger *zap.Logger
	server *http.Server
}

// NewServer creates a server over engine. cfg supplies the listen address and the storage
// paths reported by the status endpoint.
func NewServer(engine Engine, cfg *config.Config, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		engine: engine,
		config: cfg,
		logger: logger,
	}
}

// Router returns the API routes.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(middleware.Compress(5))

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/search", s.handleSearch)
		r.Post("/similar", s.handleSimilarDocuments)

		r.Post("/documents", s.handleIngest)
		r.Get("/documents/{id}", s.handleGetDocument)
		r.Delete("/documents/{id}", s.handleDeleteDocument)
		r.Get("/documents/{id}/cluster", s.handleClusterOf)

		r.Get("/clusters", s.handleClusters)
		r.Post("/clusters/retrain", s.handleRetrain)
		r.Get("/clusters/{id}/members", s.handleMembers)
		r.Get("/clusters/{id}/similar", s.handleSimilar)

		r.Get("/status", s.handleStatus)
	})
	r.Get("/health", s.handleHealth)
	return r
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port)
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.logger.Info("starting server", zap.String("addr", addr))
	return s.server.ListenAndServe()
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}
