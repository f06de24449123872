package server

import (
	"net/http"
	"os"
	"time"

	"doubtDesk/core"
)

var startTime = time.Now()

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	backend := os.Getenv("STORE")
	if backend == "" {
		backend = "memory"
	}
	core.WriteJSON(w, http.StatusOK, map[string]any{
		"status":         "healthy",
		"store":          backend,
		"uptime_seconds": int64(time.Since(startTime).Seconds()),
		"time":           time.Now().Format(time.RFC3339),
	})
}

func (s *Server) statsHandler(w http.ResponseWriter, r *http.Request) {
	core.WriteJSON(w, http.StatusOK, map[string]any{
		"uploads": s.runner.Stats(),
		"config": map[string]any{
			"chunk_word_budget": s.cfg.ChunkWordBudget,
			"retrieval_top_k":   s.cfg.RetrievalTopK,
			"upload_workers":    s.cfg.UploadWorkers,
		},
	})
}

// taskStatusHandler reports one upload job's state by ID.
func (s *Server) taskStatusHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		core.WriteJSON(w, http.StatusMethodNotAllowed, map[string]any{"error": "method not allowed"})
		return
	}
	jobID := r.URL.Query().Get("id")
	if jobID == "" {
		core.WriteJSON(w, http.StatusBadRequest, map[string]any{"error": "id is required"})
		return
	}
	status, ok := s.runner.JobStatus(jobID)
	if !ok {
		core.WriteJSON(w, http.StatusNotFound, map[string]any{"error": "job not found"})
		return
	}
	core.WriteJSON(w, http.StatusOK, status)
}
