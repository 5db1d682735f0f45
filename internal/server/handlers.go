package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"path/filepath"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/INFO-698-InfoSci-Capstone/summiva/internal/models"
	"github.com/INFO-698-InfoSci-Capstone/summiva/internal/persist"
	"github.com/INFO-698-InfoSci-Capstone/summiva/internal/storage"
)

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var query models.SearchQuery
	if err := json.NewDecoder(r.Body).Decode(&query); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	s.logger.Debug("search request",
		zap.String("query", query.Query),
		zap.Int("size", query.Size),
		zap.Int("filters", len(query.Filters)))
	response, err := s.engine.Query(r.Context(), &query)
	if err != nil {
		s.respondFailure(w, "search", err)
		return
	}
	s.respondJSON(w, http.StatusOK, response)
}

func (s *Server) handleSimilarDocuments(w http.ResponseWriter, r *http.Request) {
	var query models.SimilarQuery
	if err := json.NewDecoder(r.Body).Decode(&query); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	docs, err := s.engine.SimilarDocuments(r.Context(), query.Text, query.K)
	if err != nil {
		s.respondFailure(w, "similar documents", err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"documents": docs})
}

func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	var input models.DocumentInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	s.logger.Debug("ingest request", zap.String("id", input.ID))
	res, err := s.engine.Ingest(r.Context(), input.ID, input.Text, input.Metadata)
	if err != nil {
		s.respondFailure(w, "ingest", err)
		return
	}
	s.respondJSON(w, http.StatusCreated, res)
}

func (s *Server) handleGetDocument(w http.ResponseWriter, r *http.Request) {
	doc, err := s.engine.Document(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.respondFailure(w, "get document", err)
		return
	}
	s.respondJSON(w, http.StatusOK, doc)
}

func (s *Server) handleDeleteDocument(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	s.logger.Debug("delete document request", zap.String("id", id))
	if err := s.engine.Remove(r.Context(), id); err != nil {
		s.respondFailure(w, "delete document", err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"id": id, "status": "deleted"})
}

func (s *Server) handleClusterOf(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	clusterID, err := s.engine.ClusterOf(id)
	if err != nil {
		s.respondFailure(w, "cluster of", err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"doc_id": id, "cluster_id": clusterID})
}

func (s *Server) handleClusters(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"clusters": s.engine.Clusters()})
}

func (s *Server) handleMembers(w http.ResponseWriter, r *http.Request) {
	clusterID, ok := s.clusterParam(w, r)
	if !ok {
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"cluster_id": clusterID,
		"members":    s.engine.MembersOf(clusterID),
	})
}

func (s *Server) handleSimilar(w http.ResponseWriter, r *http.Request) {
	clusterID, ok := s.clusterParam(w, r)
	if !ok {
		return
	}
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			s.respondError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = n
	}
	similar, err := s.engine.SimilarClusters(clusterID, limit)
	if err != nil {
		s.respondFailure(w, "similar clusters", err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"cluster_id": clusterID, "similar": similar})
}

func (s *Server) handleRetrain(w http.ResponseWriter, r *http.Request) {
	if err := s.engine.Retrain(r.Context()); err != nil {
		s.respondFailure(w, "retrain", err)
		return
	}
	s.respondJSON(w, http.StatusOK, s.engine.Stats())
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	resp := map[string]interface{}{"stats": s.engine.Stats()}
	if s.config != nil {
		st := s.config.Storage
		resp["config"] = map[string]interface{}{
			"embedding_provider":   s.config.Embedding.Provider,
			"embedding_dimensions": s.config.Embedding.Dimensions,
			"similarity_threshold": s.config.Cluster.Threshold(),
			"database_path":        st.DatabasePath,
			"bleve_index_path":     st.BleveIndexPath,
			"snapshot_dir":         st.SnapshotDir,
		}
		usage, total, err := storage.DiskUsage(
			storage.Artifact{Name: "database", Path: st.DatabasePath, Database: true},
			storage.Artifact{Name: "lexical_index", Path: st.BleveIndexPath},
			storage.Artifact{Name: "vectors_snapshot", Path: snapshotPath(st.SnapshotDir, persist.VectorsFile)},
			storage.Artifact{Name: "clusters_snapshot", Path: snapshotPath(st.SnapshotDir, persist.ClustersFile)},
		)
		if err == nil {
			resp["disk_usage_bytes"] = total
			resp["disk_usage"] = usage
		} else {
			s.logger.Debug("disk usage unavailable", zap.Error(err))
		}
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func snapshotPath(dir, name string) string {
	if dir == "" {
		return ""
	}
	return filepath.Join(dir, name)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) clusterParam(w http.ResponseWriter, r *http.Request) (uint64, bool) {
	id, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "cluster id must be an unsigned integer")
		return 0, false
	}
	return id, true
}

// statusFor maps engine errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, models.ErrInvalidQuery), errors.Is(err, models.ErrDimensionMismatch):
		return http.StatusBadRequest
	case errors.Is(err, models.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, models.ErrBothBackendsUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) respondFailure(w http.ResponseWriter, op string, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error(op+" failed", zap.Error(err))
	} else {
		s.logger.Debug(op+" rejected", zap.Error(err))
	}
	s.respondError(w, status, err.Error())
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}
