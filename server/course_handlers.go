package server

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"doubtDesk/core"
	"doubtDesk/storage"
)

func (s *Server) coursesHandler(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		s.createCourse(w, r)
	case http.MethodGet:
		s.listCourses(w, r)
	default:
		core.WriteJSON(w, http.StatusMethodNotAllowed, map[string]any{"error": "method not allowed"})
	}
}

func (s *Server) createCourse(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Title       string `json:"title"`
		Description string `json:"description"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		core.WriteJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid request body"})
		return
	}
	req.Title = strings.TrimSpace(req.Title)
	if req.Title == "" {
		core.WriteJSON(w, http.StatusBadRequest, map[string]any{"error": "title is required"})
		return
	}

	course := core.Course{
		ID:          core.NewID(),
		Title:       req.Title,
		Description: strings.TrimSpace(req.Description),
		CreatedAt:   time.Now(),
	}
	if err := s.store.CreateCourse(r.Context(), course); err != nil {
		core.WriteJSON(w, http.StatusInternalServerError, map[string]any{"error": "failed to create course"})
		return
	}
	core.WriteJSON(w, http.StatusCreated, course)
}

func (s *Server) listCourses(w http.ResponseWriter, r *http.Request) {
	courses, err := s.store.ListCourses(r.Context())
	if err != nil {
		core.WriteJSON(w, http.StatusInternalServerError, map[string]any{"error": "failed to list courses"})
		return
	}
	core.WriteJSON(w, http.StatusOK, map[string]any{"courses": courses})
}

// filesHandler lists a course's transcript files with their processing
// status and chunk counts.
func (s *Server) filesHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		core.WriteJSON(w, http.StatusMethodNotAllowed, map[string]any{"error": "method not allowed"})
		return
	}
	courseID := r.URL.Query().Get("course_id")
	if courseID == "" {
		core.WriteJSON(w, http.StatusBadRequest, map[string]any{"error": "course_id is required"})
		return
	}
	if _, err := s.store.GetCourse(r.Context(), courseID); err != nil {
		if err == storage.ErrNotFound {
			core.WriteJSON(w, http.StatusNotFound, map[string]any{"error": "course not found"})
			return
		}
		core.WriteJSON(w, http.StatusInternalServerError, map[string]any{"error": "failed to load course"})
		return
	}

	files, err := s.store.ListFiles(r.Context(), courseID)
	if err != nil {
		core.WriteJSON(w, http.StatusInternalServerError, map[string]any{"error": "failed to list files"})
		return
	}
	core.WriteJSON(w, http.StatusOK, map[string]any{"files": files})
}
