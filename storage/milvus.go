package storage

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/milvus-io/milvus-sdk-go/v2/client"
	"github.com/milvus-io/milvus-sdk-go/v2/entity"

	"doubtDesk/core"
)

// MilvusChunkStore keeps transcript chunks in a Milvus collection with an
// HNSW cosine index. Milvus requires the vector at insert time, so chunks
// are buffered until their embedding arrives and written in one shot by
// UpdateChunkEmbedding.
type MilvusChunkStore struct {
	mc   client.Client
	coll string
	dim  int

	mu      sync.Mutex
	pending map[string]core.TranscriptChunk
}

func NewMilvusChunkStore() (*MilvusChunkStore, error) {
	addr := os.Getenv("MILVUS_ADDR")
	if addr == "" {
		addr = "localhost:19530"
	}
	coll := os.Getenv("MILVUS_COLLECTION")
	if coll == "" {
		coll = "transcript_chunks"
	}
	dim := 1536
	if v := os.Getenv("MILVUS_DIM"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			dim = n
		}
	}

	mc, err := client.NewClient(context.Background(), client.Config{
		Address:  addr,
		Username: os.Getenv("MILVUS_USERNAME"),
		Password: os.Getenv("MILVUS_PASSWORD"),
		APIKey:   os.Getenv("MILVUS_API_KEY"),
	})
	if err != nil {
		return nil, fmt.Errorf("connect milvus: %w", err)
	}

	s := &MilvusChunkStore{mc: mc, coll: coll, dim: dim, pending: map[string]core.TranscriptChunk{}}
	if err := s.ensureSchemaAndIndex(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *MilvusChunkStore) ensureSchemaAndIndex() error {
	ctx := context.Background()
	has, err := s.mc.HasCollection(ctx, s.coll)
	if err != nil {
		return err
	}
	if !has {
		schema := entity.NewSchema().WithName(s.coll)
		schema.WithField(entity.NewField().WithName("id").WithIsPrimaryKey(true).WithDataType(entity.FieldTypeVarChar).WithMaxLength(64))
		schema.WithField(entity.NewField().WithName("course_id").WithDataType(entity.FieldTypeVarChar).WithMaxLength(64))
		schema.WithField(entity.NewField().WithName("file_id").WithDataType(entity.FieldTypeVarChar).WithMaxLength(64))
		schema.WithField(entity.NewField().WithName("start").WithDataType(entity.FieldTypeDouble))
		schema.WithField(entity.NewField().WithName("end").WithDataType(entity.FieldTypeDouble))
		schema.WithField(entity.NewField().WithName("content").WithDataType(entity.FieldTypeVarChar).WithMaxLength(8192))
		schema.WithField(entity.NewField().WithName("vector").WithDataType(entity.FieldTypeFloatVector).WithDim(int64(s.dim)))

		if err := s.mc.CreateCollection(ctx, schema, int32(2)); err != nil {
			return fmt.Errorf("create collection: %w", err)
		}
	}

	idx, err := entity.NewIndexHNSW(entity.COSINE, 8, 200)
	if err != nil {
		return fmt.Errorf("new hnsw index: %w", err)
	}
	if err := s.mc.CreateIndex(ctx, s.coll, "vector", idx, false, client.WithIndexName("idx_vector")); err != nil {
		return fmt.Errorf("create index: %w", err)
	}
	if err := s.mc.LoadCollection(ctx, s.coll, false); err != nil {
		return fmt.Errorf("load collection: %w", err)
	}
	return nil
}

func (s *MilvusChunkStore) InsertChunk(_ context.Context, chunk core.TranscriptChunk) (string, error) {
	if chunk.ID == "" {
		chunk.ID = core.NewID()
	}
	s.mu.Lock()
	s.pending[chunk.ID] = chunk
	s.mu.Unlock()
	return chunk.ID, nil
}

func (s *MilvusChunkStore) UpdateChunkEmbedding(ctx context.Context, chunkID string, vec []float32) error {
	s.mu.Lock()
	chunk, ok := s.pending[chunkID]
	s.mu.Unlock()
	if !ok {
		return ErrNotFound
	}
	if len(vec) != s.dim {
		return fmt.Errorf("embedding dimension %d does not match collection dimension %d", len(vec), s.dim)
	}

	_, err := s.mc.Insert(ctx, s.coll, "",
		entity.NewColumnVarChar("id", []string{chunk.ID}),
		entity.NewColumnVarChar("course_id", []string{chunk.CourseID}),
		entity.NewColumnVarChar("file_id", []string{chunk.FileID}),
		entity.NewColumnDouble("start", []float64{chunk.Start}),
		entity.NewColumnDouble("end", []float64{chunk.End}),
		entity.NewColumnVarChar("content", []string{chunk.Content}),
		entity.NewColumnFloatVector("vector", s.dim, [][]float32{vec}),
	)
	if err != nil {
		return fmt.Errorf("insert chunk: %w", err)
	}

	s.mu.Lock()
	delete(s.pending, chunkID)
	s.mu.Unlock()
	return nil
}

func (s *MilvusChunkStore) DeleteFileChunks(ctx context.Context, courseID, fileID string) (int, error) {
	expr := fmt.Sprintf("course_id == \"%s\" && file_id == \"%s\"", escapeExpr(courseID), escapeExpr(fileID))

	rs, err := s.mc.Query(ctx, s.coll, nil, expr, []string{"id"})
	if err != nil {
		return 0, fmt.Errorf("count file chunks: %w", err)
	}
	count := 0
	for _, col := range rs {
		if col.Name() == "id" {
			count = col.Len()
		}
	}
	if count == 0 {
		return 0, nil
	}

	if err := s.mc.Delete(ctx, s.coll, "", expr); err != nil {
		return 0, fmt.Errorf("delete file chunks: %w", err)
	}
	return count, nil
}

func (s *MilvusChunkStore) SearchChunks(ctx context.Context, courseID string, vec []float32, limit int) ([]core.Hit, error) {
	if limit <= 0 {
		limit = 5
	}
	sp, _ := entity.NewIndexHNSWSearchParam(74)
	filter := fmt.Sprintf("course_id == \"%s\"", escapeExpr(courseID))

	res, err := s.mc.Search(ctx, s.coll, []string{}, filter,
		[]string{"id", "start", "end", "content"},
		[]entity.Vector{entity.FloatVector(vec)}, "vector", entity.COSINE, limit, sp)
	if err != nil {
		return nil, fmt.Errorf("search chunks: %w", err)
	}

	hits := make([]core.Hit, 0, limit)
	for _, r := range res {
		cols := map[string]entity.Column{}
		for _, c := range r.Fields {
			cols[c.Name()] = c
		}
		for i := 0; i < r.ResultCount; i++ {
			h := core.Hit{CourseID: courseID, Score: float64(r.Scores[i])}
			if c, ok := cols["id"].(*entity.ColumnVarChar); ok {
				if data := c.Data(); i < len(data) {
					h.ChunkID = data[i]
				}
			}
			if c, ok := cols["start"].(*entity.ColumnDouble); ok {
				if data := c.Data(); i < len(data) {
					h.Start = data[i]
				}
			}
			if c, ok := cols["end"].(*entity.ColumnDouble); ok {
				if data := c.Data(); i < len(data) {
					h.End = data[i]
				}
			}
			if c, ok := cols["content"].(*entity.ColumnVarChar); ok {
				if data := c.Data(); i < len(data) {
					h.Content = data[i]
				}
			}
			hits = append(hits, h)
		}
	}
	return hits, nil
}

func escapeExpr(s string) string {
	return strings.ReplaceAll(s, `"`, `\"`)
}
