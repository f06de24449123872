package server

import (
	"encoding/json"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"doubtDesk/core"
	"doubtDesk/storage"
)

const maxUploadBytes = 10 << 20

// uploadHandler accepts a subtitle file for a course, either as multipart
// form data (field "file") or as JSON with inline srtContent. The file
// record is created in "processing" state and ingestion runs on the task
// runner; the response carries the job ID for polling.
func (s *Server) uploadHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		core.WriteJSON(w, http.StatusMethodNotAllowed, map[string]any{"error": "method not allowed"})
		return
	}

	courseID, fileName, content, errMsg := parseUploadRequest(r)
	if errMsg != "" {
		core.WriteJSON(w, http.StatusBadRequest, map[string]any{"error": errMsg})
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

	file := core.TranscriptFile{
		ID:        core.NewID(),
		CourseID:  courseID,
		FileName:  fileName,
		FileSize:  len(content),
		Status:    core.FileStatusProcessing,
		CreatedAt: time.Now(),
	}
	if err := s.store.CreateFile(r.Context(), file); err != nil {
		core.WriteJSON(w, http.StatusInternalServerError, map[string]any{"error": "failed to create file record"})
		return
	}

	jobID, err := s.runner.Submit(courseID, content, file.ID, func(result *core.UploadResult) {
		if result.Success {
			log.Printf("File %s processed: %d chunks in %v", result.FileID, result.ChunksProcessed, result.Duration)
		} else {
			log.Printf("File %s failed after %d attempts: %v", result.FileID, result.Attempts, result.Error)
		}
	})
	if err != nil {
		if serr := s.store.UpdateFileStatus(r.Context(), file.ID, core.FileStatusError); serr != nil {
			log.Printf("Warning: failed to mark file %s as error: %v", file.ID, serr)
		}
		core.WriteJSON(w, http.StatusServiceUnavailable, map[string]any{"error": "upload queue is full, try again later"})
		return
	}

	core.WriteJSON(w, http.StatusAccepted, map[string]any{
		"job_id":  jobID,
		"file_id": file.ID,
		"status":  core.FileStatusProcessing,
	})
}

// parseUploadRequest extracts (courseID, fileName, content) from either a
// multipart or a JSON upload. The fourth return value is a client error
// message, empty on success.
func parseUploadRequest(r *http.Request) (courseID, fileName, content, errMsg string) {
	contentType := r.Header.Get("Content-Type")

	if strings.HasPrefix(contentType, "multipart/form-data") {
		if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
			return "", "", "", "invalid multipart form"
		}
		courseID = r.FormValue("course_id")
		f, header, err := r.FormFile("file")
		if err != nil {
			return "", "", "", "file field is required"
		}
		defer f.Close()
		data, err := io.ReadAll(io.LimitReader(f, maxUploadBytes))
		if err != nil {
			return "", "", "", "failed to read uploaded file"
		}
		fileName = header.Filename
		content = string(data)
	} else {
		var req struct {
			CourseID   string `json:"course_id"`
			FileName   string `json:"file_name"`
			SRTContent string `json:"srtContent"`
		}
		if err := json.NewDecoder(io.LimitReader(r.Body, maxUploadBytes)).Decode(&req); err != nil {
			return "", "", "", "invalid request body"
		}
		courseID = req.CourseID
		fileName = req.FileName
		content = req.SRTContent
	}

	if strings.TrimSpace(courseID) == "" {
		return "", "", "", "course_id is required"
	}
	if strings.TrimSpace(content) == "" {
		return "", "", "", "subtitle content is empty"
	}
	if fileName == "" {
		fileName = "upload.srt"
	}
	return courseID, fileName, content, ""
}
