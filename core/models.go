package core

import (
	"context"
	"time"
)

// ========== Transcript data structures ==========

// CaptionBlock is one parsed subtitle cue. Blocks exist only between parsing
// and merging and are never persisted.
type CaptionBlock struct {
	Index   int     `json:"index"` // 1-based emission order, source indices untrusted
	Start   float64 `json:"start"`
	End     float64 `json:"end"`
	Content string  `json:"content"`
}

// MergedChunk is a group of consecutive caption blocks folded under the word
// budget. Boundaries never split a block.
type MergedChunk struct {
	Start   float64 `json:"start"`
	End     float64 `json:"end"`
	Content string  `json:"content"`
}

// TranscriptChunk is the persisted, retrievable unit of transcript.
// Embedding stays nil until the embedding provider has run.
type TranscriptChunk struct {
	ID        string    `json:"id"`
	CourseID  string    `json:"course_id"`
	FileID    string    `json:"file_id,omitempty"`
	Start     float64   `json:"start"`
	End       float64   `json:"end"`
	Content   string    `json:"content"`
	Embedding []float32 `json:"-"`
	CreatedAt time.Time `json:"created_at"`
}

// Hit pairs a stored chunk with its cosine-derived similarity for one query,
// in [-1, 1], ranked descending.
type Hit struct {
	ChunkID  string  `json:"chunk_id"`
	CourseID string  `json:"course_id"`
	Score    float64 `json:"score"`
	Start    float64 `json:"start"`
	End      float64 `json:"end"`
	Content  string  `json:"content"`
}

// Reference is one cited excerpt returned alongside an answer.
type Reference struct {
	StartTime float64 `json:"startTime"`
	EndTime   float64 `json:"endTime"`
	Content   string  `json:"content"`
}

// ChatAnswer is the response of the answering pipeline.
type ChatAnswer struct {
	Answer     string      `json:"answer"`
	References []Reference `json:"references"`
}

// IntentResult is the outcome of pre-retrieval question classification.
type IntentResult struct {
	Intent   string `json:"intent"`
	Response string `json:"response"`
}

// Intent labels. Anything the classifier cannot place lands on
// IntentCourseQuestion so the user is never blocked.
const (
	IntentCourseQuestion = "course_question"
	IntentGreeting       = "greeting"
	IntentThanks         = "thanks"
	IntentGoodbye        = "goodbye"
	IntentOffTopic       = "off_topic"
	IntentUnclear        = "unclear"
)

// ========== Catalog data structures ==========

type Course struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// Transcript file statuses. Transitions are one-directional:
// processing -> processed | error.
const (
	FileStatusProcessing = "processing"
	FileStatusProcessed  = "processed"
	FileStatusError      = "error"
)

type TranscriptFile struct {
	ID         string    `json:"id"`
	CourseID   string    `json:"course_id"`
	FileName   string    `json:"file_name"`
	FileSize   int       `json:"file_size"`
	Status     string    `json:"status"`
	ChunkCount int       `json:"chunk_count"`
	CreatedAt  time.Time `json:"created_at"`
}

// ========== Ingestion task structures ==========

// UploadJob is the unit of asynchronous ingestion work.
type UploadJob struct {
	ID         string
	CourseID   string
	FileID     string
	RawText    string
	Context    context.Context
	Cancel     context.CancelFunc
	EnqueuedAt time.Time
	RetryCount int
	MaxRetries int
	Callback   func(*UploadResult)
}

// UploadResult reports a job's terminal outcome to its callback.
type UploadResult struct {
	JobID           string        `json:"job_id"`
	CourseID        string        `json:"course_id"`
	FileID          string        `json:"file_id,omitempty"`
	Success         bool          `json:"success"`
	ChunksProcessed int           `json:"chunks_processed"`
	Error           error         `json:"-"`
	Attempts        int           `json:"attempts"`
	Duration        time.Duration `json:"duration"`
	StartTime       time.Time     `json:"start_time"`
	EndTime         time.Time     `json:"end_time"`
}

// IngestResult is what a single ingestion pass returns on success.
type IngestResult struct {
	Success         bool `json:"success"`
	ChunksProcessed int  `json:"chunksProcessed"`
}
