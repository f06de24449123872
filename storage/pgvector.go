package storage

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"doubtDesk/config"
	"doubtDesk/core"
)

// PgVectorStore persists the catalog and the chunks in PostgreSQL, with
// embeddings in a pgvector column searched by cosine distance.
type PgVectorStore struct {
	pool *pgxpool.Pool
}

func NewPgVectorStore(cfg *config.Config) (*PgVectorStore, error) {
	ctx := context.Background()
	pool, err := pgxpool.New(ctx, cfg.PostgresURL)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	s := &PgVectorStore{pool: pool}
	if err := s.ensureTables(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

func (s *PgVectorStore) ensureTables(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, "CREATE EXTENSION IF NOT EXISTS vector;"); err != nil {
		return fmt.Errorf("create vector extension: %w", err)
	}

	statements := []string{
		`CREATE TABLE IF NOT EXISTS courses (
			id VARCHAR(64) PRIMARY KEY,
			title VARCHAR(500) NOT NULL,
			description TEXT,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		);`,
		`CREATE TABLE IF NOT EXISTS transcript_files (
			id VARCHAR(64) PRIMARY KEY,
			course_id VARCHAR(64) NOT NULL,
			file_name VARCHAR(500),
			file_size INTEGER,
			status VARCHAR(32) NOT NULL DEFAULT 'processing',
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		);`,
		`CREATE TABLE IF NOT EXISTS transcript_chunks (
			id VARCHAR(64) PRIMARY KEY,
			course_id VARCHAR(64) NOT NULL,
			file_id VARCHAR(64),
			start_time FLOAT NOT NULL,
			end_time FLOAT NOT NULL,
			content TEXT NOT NULL,
			embedding vector(1536),
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		);`,
		`CREATE INDEX IF NOT EXISTS idx_transcript_chunks_course_id ON transcript_chunks(course_id);`,
		`CREATE INDEX IF NOT EXISTS idx_transcript_chunks_file_id ON transcript_chunks(file_id);`,
		`CREATE INDEX IF NOT EXISTS idx_transcript_files_course_id ON transcript_files(course_id);`,
	}
	for _, stmt := range statements {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("ensure tables: %w", err)
		}
	}

	if err := s.ensureVectorIndex(ctx); err != nil {
		fmt.Printf("Warning: failed to create vector index: %v\n", err)
	}
	return nil
}

// ensureVectorIndex creates an ivfflat cosine index sized to the current row
// count. Skipped while the table is empty; ivfflat lists need data to train
// on.
func (s *PgVectorStore) ensureVectorIndex(ctx context.Context) error {
	var count int
	if err := s.pool.QueryRow(ctx, "SELECT COUNT(*) FROM transcript_chunks WHERE embedding IS NOT NULL").Scan(&count); err != nil {
		return fmt.Errorf("count embedded chunks: %w", err)
	}
	if count == 0 {
		return nil
	}

	lists := 100
	if count > 10000 {
		lists = count / 100
		if lists > 1000 {
			lists = 1000
		}
	} else if count < 1000 {
		lists = 10
	}

	if _, err := s.pool.Exec(ctx, "DROP INDEX IF EXISTS idx_transcript_chunks_embedding;"); err != nil {
		return err
	}
	_, err := s.pool.Exec(ctx, fmt.Sprintf(
		`CREATE INDEX idx_transcript_chunks_embedding
		 ON transcript_chunks USING ivfflat (embedding vector_cosine_ops) WITH (lists = %d);`, lists))
	return err
}

func (s *PgVectorStore) InsertChunk(ctx context.Context, chunk core.TranscriptChunk) (string, error) {
	id := chunk.ID
	if id == "" {
		id = core.NewID()
	}
	var fileID any
	if chunk.FileID != "" {
		fileID = chunk.FileID
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO transcript_chunks (id, course_id, file_id, start_time, end_time, content)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, id, chunk.CourseID, fileID, chunk.Start, chunk.End, chunk.Content)
	if err != nil {
		return "", fmt.Errorf("insert chunk: %w", err)
	}
	return id, nil
}

func (s *PgVectorStore) UpdateChunkEmbedding(ctx context.Context, chunkID string, vec []float32) error {
	tag, err := s.pool.Exec(ctx,
		"UPDATE transcript_chunks SET embedding = $1 WHERE id = $2",
		pgvector.NewVector(vec), chunkID)
	if err != nil {
		return fmt.Errorf("update chunk embedding: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PgVectorStore) DeleteFileChunks(ctx context.Context, courseID, fileID string) (int, error) {
	tag, err := s.pool.Exec(ctx,
		"DELETE FROM transcript_chunks WHERE course_id = $1 AND file_id = $2",
		courseID, fileID)
	if err != nil {
		return 0, fmt.Errorf("delete file chunks: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

func (s *PgVectorStore) SearchChunks(ctx context.Context, courseID string, vec []float32, limit int) ([]core.Hit, error) {
	if limit <= 0 {
		limit = 5
	}
	qv := pgvector.NewVector(vec)
	rows, err := s.pool.Query(ctx, `
		SELECT id, course_id, start_time, end_time, content,
		       1 - (embedding <=> $1) AS similarity
		FROM transcript_chunks
		WHERE course_id = $2 AND embedding IS NOT NULL
		ORDER BY embedding <=> $1
		LIMIT $3
	`, qv, courseID, limit)
	if err != nil {
		return nil, fmt.Errorf("search chunks: %w", err)
	}
	defer rows.Close()

	hits := make([]core.Hit, 0, limit)
	for rows.Next() {
		var h core.Hit
		if err := rows.Scan(&h.ChunkID, &h.CourseID, &h.Start, &h.End, &h.Content, &h.Score); err != nil {
			return nil, fmt.Errorf("scan hit: %w", err)
		}
		hits = append(hits, h)
	}
	return hits, rows.Err()
}

func (s *PgVectorStore) CreateCourse(ctx context.Context, course core.Course) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO courses (id, title, description)
		VALUES ($1, $2, $3)
		ON CONFLICT (id) DO NOTHING
	`, course.ID, course.Title, course.Description)
	if err != nil {
		return fmt.Errorf("create course: %w", err)
	}
	return nil
}

func (s *PgVectorStore) GetCourse(ctx context.Context, id string) (core.Course, error) {
	var c core.Course
	err := s.pool.QueryRow(ctx,
		"SELECT id, title, COALESCE(description, ''), created_at FROM courses WHERE id = $1", id).
		Scan(&c.ID, &c.Title, &c.Description, &c.CreatedAt)
	if err != nil {
		return core.Course{}, ErrNotFound
	}
	return c, nil
}

func (s *PgVectorStore) ListCourses(ctx context.Context) ([]core.Course, error) {
	rows, err := s.pool.Query(ctx,
		"SELECT id, title, COALESCE(description, ''), created_at FROM courses ORDER BY created_at DESC")
	if err != nil {
		return nil, fmt.Errorf("list courses: %w", err)
	}
	defer rows.Close()

	courses := make([]core.Course, 0)
	for rows.Next() {
		var c core.Course
		if err := rows.Scan(&c.ID, &c.Title, &c.Description, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan course: %w", err)
		}
		courses = append(courses, c)
	}
	return courses, rows.Err()
}

func (s *PgVectorStore) CreateFile(ctx context.Context, file core.TranscriptFile) error {
	status := file.Status
	if status == "" {
		status = core.FileStatusProcessing
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO transcript_files (id, course_id, file_name, file_size, status)
		VALUES ($1, $2, $3, $4, $5)
	`, file.ID, file.CourseID, file.FileName, file.FileSize, status)
	if err != nil {
		return fmt.Errorf("create file: %w", err)
	}
	return nil
}

func (s *PgVectorStore) UpdateFileStatus(ctx context.Context, fileID, status string) error {
	tag, err := s.pool.Exec(ctx,
		"UPDATE transcript_files SET status = $1 WHERE id = $2", status, fileID)
	if err != nil {
		return fmt.Errorf("update file status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PgVectorStore) ListFiles(ctx context.Context, courseID string) ([]core.TranscriptFile, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT f.id, f.course_id, COALESCE(f.file_name, ''), COALESCE(f.file_size, 0), f.status, f.created_at,
		       COUNT(c.id) AS chunk_count
		FROM transcript_files f
		LEFT JOIN transcript_chunks c ON c.file_id = f.id
		WHERE f.course_id = $1
		GROUP BY f.id, f.course_id, f.file_name, f.file_size, f.status, f.created_at
		ORDER BY f.created_at DESC
	`, courseID)
	if err != nil {
		return nil, fmt.Errorf("list files: %w", err)
	}
	defer rows.Close()

	files := make([]core.TranscriptFile, 0)
	for rows.Next() {
		var f core.TranscriptFile
		if err := rows.Scan(&f.ID, &f.CourseID, &f.FileName, &f.FileSize, &f.Status, &f.CreatedAt, &f.ChunkCount); err != nil {
			return nil, fmt.Errorf("scan file: %w", err)
		}
		files = append(files, f)
	}
	return files, rows.Err()
}

func (s *PgVectorStore) Close() {
	s.pool.Close()
}
