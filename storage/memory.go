package storage

import (
	"context"
	"math"
	"sort"
	"sync"
	"time"

	"doubtDesk/core"
)

// MemoryStore keeps everything in process. It backs tests and keyless
// development, and is the fallback when no database backend is reachable.
type MemoryStore struct {
	mu      sync.RWMutex
	courses map[string]core.Course
	files   map[string]core.TranscriptFile
	chunks  map[string]core.TranscriptChunk
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		courses: map[string]core.Course{},
		files:   map[string]core.TranscriptFile{},
		chunks:  map[string]core.TranscriptChunk{},
	}
}

func (s *MemoryStore) InsertChunk(_ context.Context, chunk core.TranscriptChunk) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if chunk.ID == "" {
		chunk.ID = core.NewID()
	}
	if chunk.CreatedAt.IsZero() {
		chunk.CreatedAt = time.Now()
	}
	s.chunks[chunk.ID] = chunk
	return chunk.ID, nil
}

func (s *MemoryStore) UpdateChunkEmbedding(_ context.Context, chunkID string, vec []float32) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	chunk, ok := s.chunks[chunkID]
	if !ok {
		return ErrNotFound
	}
	chunk.Embedding = vec
	s.chunks[chunkID] = chunk
	return nil
}

func (s *MemoryStore) DeleteFileChunks(_ context.Context, courseID, fileID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	deleted := 0
	for id, c := range s.chunks {
		if c.CourseID == courseID && c.FileID == fileID {
			delete(s.chunks, id)
			deleted++
		}
	}
	return deleted, nil
}

func (s *MemoryStore) SearchChunks(_ context.Context, courseID string, vec []float32, limit int) ([]core.Hit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 5
	}

	hits := make([]core.Hit, 0)
	for _, c := range s.chunks {
		if c.CourseID != courseID || c.Embedding == nil {
			continue
		}
		hits = append(hits, core.Hit{
			ChunkID:  c.ID,
			CourseID: c.CourseID,
			Score:    cosine(vec, c.Embedding),
			Start:    c.Start,
			End:      c.End,
			Content:  c.Content,
		})
	}
	sort.Slice(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
	if limit < len(hits) {
		hits = hits[:limit]
	}
	return hits, nil
}

func (s *MemoryStore) CreateCourse(_ context.Context, course core.Course) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if course.CreatedAt.IsZero() {
		course.CreatedAt = time.Now()
	}
	s.courses[course.ID] = course
	return nil
}

func (s *MemoryStore) GetCourse(_ context.Context, id string) (core.Course, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	course, ok := s.courses[id]
	if !ok {
		return core.Course{}, ErrNotFound
	}
	return course, nil
}

func (s *MemoryStore) ListCourses(_ context.Context) ([]core.Course, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	courses := make([]core.Course, 0, len(s.courses))
	for _, c := range s.courses {
		courses = append(courses, c)
	}
	sort.Slice(courses, func(i, j int) bool { return courses[i].CreatedAt.After(courses[j].CreatedAt) })
	return courses, nil
}

func (s *MemoryStore) CreateFile(_ context.Context, file core.TranscriptFile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if file.CreatedAt.IsZero() {
		file.CreatedAt = time.Now()
	}
	s.files[file.ID] = file
	return nil
}

func (s *MemoryStore) UpdateFileStatus(_ context.Context, fileID, status string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	file, ok := s.files[fileID]
	if !ok {
		return ErrNotFound
	}
	file.Status = status
	s.files[fileID] = file
	return nil
}

func (s *MemoryStore) ListFiles(_ context.Context, courseID string) ([]core.TranscriptFile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	files := make([]core.TranscriptFile, 0)
	for _, f := range s.files {
		if f.CourseID != courseID {
			continue
		}
		f.ChunkCount = 0
		for _, c := range s.chunks {
			if c.FileID == f.ID {
				f.ChunkCount++
			}
		}
		files = append(files, f)
	}
	sort.Slice(files, func(i, j int) bool { return files[i].CreatedAt.After(files[j].CreatedAt) })
	return files, nil
}

func cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
