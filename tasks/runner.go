package tasks

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"doubtDesk/core"
)

// Ingestor is the single-pass ingestion the runner drives. Each retry is a
// full re-ingestion.
type Ingestor interface {
	Ingest(ctx context.Context, courseID, rawText, fileID string) (core.IngestResult, error)
}

// Job states reported by JobStatus.
const (
	JobQueued    = "queued"
	JobRunning   = "running"
	JobCompleted = "completed"
	JobFailed    = "failed"
)

// JobStatus is the externally visible state of one upload job.
type JobStatus struct {
	ID              string    `json:"id"`
	CourseID        string    `json:"course_id"`
	FileID          string    `json:"file_id,omitempty"`
	State           string    `json:"state"`
	Attempts        int       `json:"attempts"`
	ChunksProcessed int       `json:"chunks_processed"`
	Error           string    `json:"error,omitempty"`
	EnqueuedAt      time.Time `json:"enqueued_at"`
	FinishedAt      time.Time `json:"finished_at,omitempty"`
}

// RunnerMetrics counts job outcomes across the process lifetime.
type RunnerMetrics struct {
	mu            sync.RWMutex
	TotalJobs     int64
	CompletedJobs int64
	FailedJobs    int64
	ActiveJobs    int64
	TotalTime     time.Duration
}

// UploadProcessor runs ingestion jobs on a fixed worker pool with per-job
// retry and a completion callback. There is no cross-worker coordination
// beyond the store itself; concurrent jobs for the same file are the
// caller's problem to avoid.
type UploadProcessor struct {
	ingestor   Ingestor
	maxWorkers int
	maxRetries int
	queue      chan *core.UploadJob
	quit       chan struct{}
	wg         sync.WaitGroup

	jobsMu sync.RWMutex
	jobs   map[string]*JobStatus

	metrics RunnerMetrics

	// backoff is overridable so tests do not sleep.
	backoff func(attempt int) time.Duration
}

func NewUploadProcessor(ingestor Ingestor, maxWorkers int) *UploadProcessor {
	if maxWorkers <= 0 {
		maxWorkers = 2
	}
	return &UploadProcessor{
		ingestor:   ingestor,
		maxWorkers: maxWorkers,
		maxRetries: 3,
		queue:      make(chan *core.UploadJob, maxWorkers*4),
		quit:       make(chan struct{}),
		jobs:       map[string]*JobStatus{},
		backoff:    defaultBackoff,
	}
}

func defaultBackoff(attempt int) time.Duration {
	return time.Duration(attempt) * 2 * time.Second
}

func (p *UploadProcessor) Start() {
	log.Printf("Starting upload processor with %d workers", p.maxWorkers)
	for i := 0; i < p.maxWorkers; i++ {
		p.wg.Add(1)
		go p.worker(i + 1)
	}
}

// Shutdown stops accepting work and waits for in-flight jobs to finish.
func (p *UploadProcessor) Shutdown() {
	log.Println("Stopping upload processor...")
	close(p.quit)
	p.wg.Wait()
	log.Println("Upload processor stopped")
}

// Submit enqueues an ingestion job and returns its ID. The callback fires
// once, after the job reaches a terminal state.
func (p *UploadProcessor) Submit(courseID, rawText, fileID string, callback func(*core.UploadResult)) (string, error) {
	ctx, cancel := context.WithCancel(context.Background())
	job := &core.UploadJob{
		ID:         core.NewID(),
		CourseID:   courseID,
		FileID:     fileID,
		RawText:    rawText,
		Context:    ctx,
		Cancel:     cancel,
		EnqueuedAt: time.Now(),
		MaxRetries: p.maxRetries,
		Callback:   callback,
	}

	p.jobsMu.Lock()
	p.jobs[job.ID] = &JobStatus{
		ID:         job.ID,
		CourseID:   courseID,
		FileID:     fileID,
		State:      JobQueued,
		EnqueuedAt: job.EnqueuedAt,
	}
	p.jobsMu.Unlock()

	select {
	case p.queue <- job:
	default:
		cancel()
		p.jobsMu.Lock()
		delete(p.jobs, job.ID)
		p.jobsMu.Unlock()
		return "", fmt.Errorf("upload queue is full")
	}

	p.metrics.mu.Lock()
	p.metrics.TotalJobs++
	p.metrics.ActiveJobs++
	p.metrics.mu.Unlock()

	return job.ID, nil
}

func (p *UploadProcessor) worker(id int) {
	defer p.wg.Done()
	for {
		select {
		case <-p.quit:
			return
		case job := <-p.queue:
			log.Printf("Worker %d picked up job %s (course %s)", id, job.ID, job.CourseID)
			p.run(job)
		}
	}
}

// run drives one job to a terminal state, retrying retriable failures with
// backoff. Parse failures are permanent and fail immediately.
func (p *UploadProcessor) run(job *core.UploadJob) {
	defer job.Cancel()

	start := time.Now()
	p.setState(job.ID, func(st *JobStatus) { st.State = JobRunning })

	var result core.IngestResult
	var err error
	attempts := 0

	for attempts <= job.MaxRetries {
		attempts++
		p.setState(job.ID, func(st *JobStatus) { st.Attempts = attempts })

		result, err = p.ingestor.Ingest(job.Context, job.CourseID, job.RawText, job.FileID)
		if err == nil {
			break
		}
		log.Printf("Job %s attempt %d failed: %v", job.ID, attempts, err)
		if !core.Retriable(err) || attempts > job.MaxRetries {
			break
		}
		select {
		case <-job.Context.Done():
			err = job.Context.Err()
			attempts = job.MaxRetries + 1
		case <-time.After(p.backoff(attempts)):
		}
	}

	end := time.Now()
	outcome := &core.UploadResult{
		JobID:           job.ID,
		CourseID:        job.CourseID,
		FileID:          job.FileID,
		Success:         err == nil,
		ChunksProcessed: result.ChunksProcessed,
		Error:           err,
		Attempts:        attempts,
		Duration:        end.Sub(start),
		StartTime:       start,
		EndTime:         end,
	}

	p.setState(job.ID, func(st *JobStatus) {
		st.FinishedAt = end
		st.ChunksProcessed = result.ChunksProcessed
		if err == nil {
			st.State = JobCompleted
		} else {
			st.State = JobFailed
			st.Error = err.Error()
		}
	})

	p.metrics.mu.Lock()
	p.metrics.ActiveJobs--
	p.metrics.TotalTime += outcome.Duration
	if err == nil {
		p.metrics.CompletedJobs++
	} else {
		p.metrics.FailedJobs++
	}
	p.metrics.mu.Unlock()

	if job.Callback != nil {
		job.Callback(outcome)
	}
}

func (p *UploadProcessor) setState(jobID string, update func(*JobStatus)) {
	p.jobsMu.Lock()
	if st, ok := p.jobs[jobID]; ok {
		update(st)
	}
	p.jobsMu.Unlock()
}

// JobStatus returns a snapshot of one job's state.
func (p *UploadProcessor) JobStatus(jobID string) (JobStatus, bool) {
	p.jobsMu.RLock()
	defer p.jobsMu.RUnlock()
	st, ok := p.jobs[jobID]
	if !ok {
		return JobStatus{}, false
	}
	return *st, true
}

// Stats reports runner counters for the monitoring endpoint.
func (p *UploadProcessor) Stats() map[string]any {
	p.metrics.mu.RLock()
	defer p.metrics.mu.RUnlock()

	stats := map[string]any{
		"total_jobs":     p.metrics.TotalJobs,
		"completed_jobs": p.metrics.CompletedJobs,
		"failed_jobs":    p.metrics.FailedJobs,
		"active_jobs":    p.metrics.ActiveJobs,
		"workers":        p.maxWorkers,
	}
	finished := p.metrics.CompletedJobs + p.metrics.FailedJobs
	if finished > 0 {
		stats["average_time_ms"] = p.metrics.TotalTime.Milliseconds() / finished
	}
	return stats
}
