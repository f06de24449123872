package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"doubtDesk/config"
	"doubtDesk/core"
	"doubtDesk/processors"
	"doubtDesk/storage"
	"doubtDesk/tasks"
)

// cannedGenerator routes intent prompts and answer prompts to fixed
// responses so handler tests are deterministic.
type cannedGenerator struct {
	intentJSON string
	answer     string
}

func (g cannedGenerator) Generate(ctx context.Context, prompt string, opts processors.GenerateOptions) (string, error) {
	if strings.Contains(prompt, "intent classifier") {
		return g.intentJSON, nil
	}
	return g.answer, nil
}

func testConfig() *config.Config {
	return &config.Config{ChunkWordBudget: 200, RetrievalTopK: 5, UploadWorkers: 1}
}

func newTestServer(t *testing.T, gen processors.Generator) (*Server, *storage.MemoryStore, *tasks.UploadProcessor) {
	t.Helper()
	cfg := testConfig()
	store := storage.NewMemoryStore()
	embedder := processors.MockEmbedder{Dim: 64}
	runner := tasks.NewUploadProcessor(processors.NewIngestPipeline(store, embedder, cfg.ChunkWordBudget), cfg.UploadWorkers)
	runner.Start()
	t.Cleanup(runner.Shutdown)
	return NewServer(cfg, store, embedder, gen, runner), store, runner
}

func postJSON(t *testing.T, handler http.HandlerFunc, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	data, err := json.Marshal(body)
	if err != nil {
		t.Fatal(err)
	}
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler(rec, req)
	return rec
}

func createTestCourse(t *testing.T, store *storage.MemoryStore) string {
	t.Helper()
	id := core.NewID()
	if err := store.CreateCourse(context.Background(), core.Course{ID: id, Title: "Algorithms", CreatedAt: time.Now()}); err != nil {
		t.Fatal(err)
	}
	return id
}

const uploadSRT = `1
00:00:01,000 --> 00:00:05,000
A hash table maps keys to values using a hash function.

2
00:00:05,000 --> 00:00:10,000
Collisions are resolved by chaining or open addressing.
`

func TestCreateAndListCourses(t *testing.T) {
	srv, _, _ := newTestServer(t, cannedGenerator{})

	rec := postJSON(t, srv.coursesHandler, "/courses", map[string]string{"title": "Algorithms", "description": "CS201"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201; body: %s", rec.Code, rec.Body)
	}
	var course core.Course
	if err := json.Unmarshal(rec.Body.Bytes(), &course); err != nil {
		t.Fatal(err)
	}
	if course.ID == "" || course.Title != "Algorithms" {
		t.Errorf("unexpected course: %+v", course)
	}

	req := httptest.NewRequest(http.MethodGet, "/courses", nil)
	rec = httptest.NewRecorder()
	srv.coursesHandler(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var list struct {
		Courses []core.Course `json:"courses"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &list); err != nil {
		t.Fatal(err)
	}
	if len(list.Courses) != 1 {
		t.Errorf("got %d courses, want 1", len(list.Courses))
	}
}

func TestCreateCourseRequiresTitle(t *testing.T) {
	srv, _, _ := newTestServer(t, cannedGenerator{})
	rec := postJSON(t, srv.coursesHandler, "/courses", map[string]string{"title": "  "})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestUploadAndPollJob(t *testing.T) {
	srv, store, _ := newTestServer(t, cannedGenerator{})
	courseID := createTestCourse(t, store)

	rec := postJSON(t, srv.uploadHandler, "/upload", map[string]string{
		"course_id":  courseID,
		"file_name":  "lecture01.srt",
		"srtContent": uploadSRT,
	})
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202; body: %s", rec.Code, rec.Body)
	}
	var resp struct {
		JobID  string `json:"job_id"`
		FileID string `json:"file_id"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.JobID == "" || resp.FileID == "" {
		t.Fatalf("missing ids in response: %s", rec.Body)
	}

	waitForJob(t, srv, resp.JobID)

	files, err := store.ListFiles(context.Background(), courseID)
	if err != nil {
		t.Fatal(err)
	}
	if len(files) != 1 {
		t.Fatalf("got %d files, want 1", len(files))
	}
	if files[0].Status != core.FileStatusProcessed {
		t.Errorf("file status = %q, want processed", files[0].Status)
	}
	if files[0].ChunkCount == 0 {
		t.Error("expected chunks after processing")
	}
}

func waitForJob(t *testing.T, srv *Server, jobID string) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		req := httptest.NewRequest(http.MethodGet, fmt.Sprintf("/tasks?id=%s", jobID), nil)
		rec := httptest.NewRecorder()
		srv.taskStatusHandler(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("task status = %d; body: %s", rec.Code, rec.Body)
		}
		var status tasks.JobStatus
		if err := json.Unmarshal(rec.Body.Bytes(), &status); err != nil {
			t.Fatal(err)
		}
		switch status.State {
		case tasks.JobCompleted:
			return
		case tasks.JobFailed:
			t.Fatalf("job failed: %s", status.Error)
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatal("timed out waiting for upload job")
}

func TestUploadUnknownCourse(t *testing.T) {
	srv, _, _ := newTestServer(t, cannedGenerator{})
	rec := postJSON(t, srv.uploadHandler, "/upload", map[string]string{
		"course_id":  "missing",
		"srtContent": uploadSRT,
	})
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestUploadEmptyContent(t *testing.T) {
	srv, store, _ := newTestServer(t, cannedGenerator{})
	courseID := createTestCourse(t, store)
	rec := postJSON(t, srv.uploadHandler, "/upload", map[string]string{
		"course_id":  courseID,
		"srtContent": "",
	})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestChatAnswersCourseQuestion(t *testing.T) {
	gen := cannedGenerator{
		intentJSON: `{"intent": "course_question", "response": ""}`,
		answer:     "A hash table maps keys to values [00:01 - 00:05].",
	}
	srv, store, _ := newTestServer(t, gen)
	courseID := createTestCourse(t, store)

	rec := postJSON(t, srv.uploadHandler, "/upload", map[string]string{"course_id": courseID, "srtContent": uploadSRT})
	var up struct {
		JobID string `json:"job_id"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &up); err != nil {
		t.Fatal(err)
	}
	waitForJob(t, srv, up.JobID)

	rec = postJSON(t, srv.chatHandler, "/chat", map[string]string{"course_id": courseID, "question": "What is a hash table?"})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d; body: %s", rec.Code, rec.Body)
	}
	var answer core.ChatAnswer
	if err := json.Unmarshal(rec.Body.Bytes(), &answer); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(answer.Answer, "hash table") {
		t.Errorf("answer = %q", answer.Answer)
	}
	if len(answer.References) == 0 {
		t.Error("expected timestamp references")
	}
}

func TestChatDeflectsGreeting(t *testing.T) {
	gen := cannedGenerator{intentJSON: `{"intent": "greeting", "response": "Hi! Ask me about the course."}`}
	srv, store, _ := newTestServer(t, gen)
	courseID := createTestCourse(t, store)

	rec := postJSON(t, srv.chatHandler, "/chat", map[string]string{"course_id": courseID, "question": "hello!"})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var answer core.ChatAnswer
	if err := json.Unmarshal(rec.Body.Bytes(), &answer); err != nil {
		t.Fatal(err)
	}
	if answer.Answer != "Hi! Ask me about the course." {
		t.Errorf("answer = %q", answer.Answer)
	}
	if len(answer.References) != 0 {
		t.Errorf("references = %d, want 0 for a deflected message", len(answer.References))
	}
}

func TestChatDeflectionFallbackResponse(t *testing.T) {
	gen := cannedGenerator{intentJSON: `{"intent": "off_topic", "response": ""}`}
	srv, store, _ := newTestServer(t, gen)
	courseID := createTestCourse(t, store)

	rec := postJSON(t, srv.chatHandler, "/chat", map[string]string{"course_id": courseID, "question": "tell me a joke"})
	var answer core.ChatAnswer
	if err := json.Unmarshal(rec.Body.Bytes(), &answer); err != nil {
		t.Fatal(err)
	}
	if answer.Answer != processors.RedirectToCourse {
		t.Errorf("answer = %q, want canned redirect", answer.Answer)
	}
}

func TestChatEmptyCourseSaysNotInTranscript(t *testing.T) {
	gen := cannedGenerator{intentJSON: `{"intent": "course_question", "response": ""}`}
	srv, store, _ := newTestServer(t, gen)
	courseID := createTestCourse(t, store)

	rec := postJSON(t, srv.chatHandler, "/chat", map[string]string{"course_id": courseID, "question": "What is covered?"})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var answer core.ChatAnswer
	if err := json.Unmarshal(rec.Body.Bytes(), &answer); err != nil {
		t.Fatal(err)
	}
	if answer.Answer != processors.NotInTranscript {
		t.Errorf("answer = %q, want %q", answer.Answer, processors.NotInTranscript)
	}
}

func TestChatValidation(t *testing.T) {
	srv, _, _ := newTestServer(t, cannedGenerator{})

	rec := postJSON(t, srv.chatHandler, "/chat", map[string]string{"course_id": "", "question": ""})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}

	rec = postJSON(t, srv.chatHandler, "/chat", map[string]string{"course_id": "missing", "question": "hi"})
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestHealthAndStats(t *testing.T) {
	srv, _, _ := newTestServer(t, cannedGenerator{})

	rec := httptest.NewRecorder()
	srv.healthHandler(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("health status = %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	srv.statsHandler(rec, httptest.NewRequest(http.MethodGet, "/stats", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("stats status = %d", rec.Code)
	}
	var stats map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &stats); err != nil {
		t.Fatal(err)
	}
	if _, ok := stats["uploads"]; !ok {
		t.Error("stats missing uploads section")
	}
}
