package server

import (
	"net/http"

	"doubtDesk/config"
	"doubtDesk/processors"
	"doubtDesk/storage"
	"doubtDesk/tasks"
)

// Server owns the HTTP surface and the pieces behind it. Handlers are split
// across files by concern: courses, uploads, chat, monitoring.
type Server struct {
	cfg      *config.Config
	store    storage.Store
	embedder processors.Embedder
	intents  *processors.IntentClassifier
	answers  *processors.AnswerSynthesizer
	runner   *tasks.UploadProcessor
}

func NewServer(cfg *config.Config, store storage.Store, embedder processors.Embedder, generator processors.Generator, runner *tasks.UploadProcessor) *Server {
	return &Server{
		cfg:      cfg,
		store:    store,
		embedder: embedder,
		intents:  processors.NewIntentClassifier(generator),
		answers:  processors.NewAnswerSynthesizer(generator),
		runner:   runner,
	}
}

// RegisterRoutes wires every endpoint onto the mux.
func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/courses", s.coursesHandler)
	mux.HandleFunc("/files", s.filesHandler)
	mux.HandleFunc("/upload", s.uploadHandler)
	mux.HandleFunc("/chat", s.chatHandler)
	mux.HandleFunc("/tasks", s.taskStatusHandler)
	mux.HandleFunc("/health", s.healthHandler)
	mux.HandleFunc("/stats", s.statsHandler)
}
