package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"doubtDesk/config"
	"doubtDesk/core"
)

// ErrNotFound is returned for catalog lookups that match nothing.
var ErrNotFound = errors.New("not found")

// ChunkStore persists transcript chunks and performs nearest-neighbor
// retrieval scoped to a course. Search returns hits ranked by descending
// cosine similarity, skips rows without a vector, and yields an empty slice
// (not an error) when nothing is embedded yet.
type ChunkStore interface {
	InsertChunk(ctx context.Context, chunk core.TranscriptChunk) (string, error)
	UpdateChunkEmbedding(ctx context.Context, chunkID string, vec []float32) error
	DeleteFileChunks(ctx context.Context, courseID, fileID string) (int, error)
	SearchChunks(ctx context.Context, courseID string, vec []float32, limit int) ([]core.Hit, error)
}

// CatalogStore keeps the course and transcript-file records around the
// chunks.
type CatalogStore interface {
	CreateCourse(ctx context.Context, course core.Course) error
	GetCourse(ctx context.Context, id string) (core.Course, error)
	ListCourses(ctx context.Context) ([]core.Course, error)
	CreateFile(ctx context.Context, file core.TranscriptFile) error
	UpdateFileStatus(ctx context.Context, fileID, status string) error
	ListFiles(ctx context.Context, courseID string) ([]core.TranscriptFile, error)
}

type Store interface {
	ChunkStore
	CatalogStore
}

// composite pairs a chunk backend with a separate catalog backend (used for
// Milvus, which only holds vectors).
type composite struct {
	ChunkStore
	CatalogStore
}

// NewStore selects the backend from the STORE environment variable
// ("pgvector", "milvus", default "memory"), falling back to memory with a
// warning whenever a backend cannot be reached.
func NewStore(cfg *config.Config) Store {
	kind := strings.ToLower(strings.TrimSpace(os.Getenv("STORE")))

	switch kind {
	case "pgvector":
		s, err := NewPgVectorStore(cfg)
		if err != nil {
			fmt.Printf("Warning: failed to initialize pgvector store (%v), falling back to memory store\n", err)
			return NewMemoryStore()
		}
		return s
	case "milvus":
		chunks, err := NewMilvusChunkStore()
		if err != nil {
			fmt.Printf("Warning: failed to initialize Milvus store (%v), falling back to memory store\n", err)
			return NewMemoryStore()
		}
		// Milvus carries vectors only; catalog rows stay in memory.
		return composite{ChunkStore: chunks, CatalogStore: NewMemoryStore()}
	default:
		return NewMemoryStore()
	}
}
