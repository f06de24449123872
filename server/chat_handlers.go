package server

import (
	"encoding/json"
	"log"
	"net/http"
	"strings"

	"doubtDesk/core"
	"doubtDesk/processors"
	"doubtDesk/storage"
)

// chatHandler answers one student question against a course's transcripts.
// Non course questions are deflected by the intent gate before any
// retrieval or generation happens. Provider failures surface as a generic
// 500; the caller never sees raw provider errors.
func (s *Server) chatHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		core.WriteJSON(w, http.StatusMethodNotAllowed, map[string]any{"error": "method not allowed"})
		return
	}

	var req struct {
		CourseID string `json:"course_id"`
		Question string `json:"question"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		core.WriteJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid request body"})
		return
	}
	req.Question = strings.TrimSpace(req.Question)
	if req.CourseID == "" || req.Question == "" {
		core.WriteJSON(w, http.StatusBadRequest, map[string]any{"error": "course_id and question are required"})
		return
	}

	if _, err := s.store.GetCourse(r.Context(), req.CourseID); err != nil {
		if err == storage.ErrNotFound {
			core.WriteJSON(w, http.StatusNotFound, map[string]any{"error": "course not found"})
			return
		}
		core.WriteJSON(w, http.StatusInternalServerError, map[string]any{"error": "failed to load course"})
		return
	}

	intent := s.intents.Classify(r.Context(), req.Question)
	if intent.Intent != core.IntentCourseQuestion {
		response := intent.Response
		if response == "" {
			response = processors.RedirectToCourse
		}
		core.WriteJSON(w, http.StatusOK, core.ChatAnswer{Answer: response, References: []core.Reference{}})
		return
	}

	vec, err := s.embedder.Embed(r.Context(), req.Question)
	if err != nil {
		log.Printf("Chat embedding failed for course %s: %v", req.CourseID, err)
		core.WriteJSON(w, http.StatusInternalServerError, map[string]any{"error": "failed to process question"})
		return
	}

	hits, err := s.store.SearchChunks(r.Context(), req.CourseID, vec, s.cfg.RetrievalTopK)
	if err != nil {
		log.Printf("Chat retrieval failed for course %s: %v", req.CourseID, err)
		core.WriteJSON(w, http.StatusInternalServerError, map[string]any{"error": "failed to process question"})
		return
	}

	answer, err := s.answers.Answer(r.Context(), req.Question, hits)
	if err != nil {
		log.Printf("Chat generation failed for course %s: %v", req.CourseID, err)
		core.WriteJSON(w, http.StatusInternalServerError, map[string]any{"error": "failed to process question"})
		return
	}

	core.WriteJSON(w, http.StatusOK, answer)
}
