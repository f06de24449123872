package processors

import (
	"context"
	"log"

	"doubtDesk/core"
	"doubtDesk/storage"
)

// IngestPipeline turns one uploaded subtitle file into embedded transcript
// chunks: parse -> merge -> per chunk (persist, embed, update). Chunks are
// processed sequentially; each embedding call blocks until the provider
// responds.
type IngestPipeline struct {
	store      storage.Store
	embedder   Embedder
	wordBudget int
}

func NewIngestPipeline(store storage.Store, embedder Embedder, wordBudget int) *IngestPipeline {
	if wordBudget <= 0 {
		wordBudget = DefaultWordBudget
	}
	return &IngestPipeline{store: store, embedder: embedder, wordBudget: wordBudget}
}

// Ingest processes one upload. Any failure marks the file record as error
// (best effort) and returns the triggering error so the task runner can
// apply its retry policy. Chunks written before the failure stay in place; a
// retry re-runs the whole pass, and the file's previous chunks are deleted
// up front so re-ingestion replaces instead of accumulating.
func (p *IngestPipeline) Ingest(ctx context.Context, courseID, rawText, fileID string) (core.IngestResult, error) {
	blocks, err := ParseSubtitles(rawText)
	if err != nil {
		return p.fail(ctx, fileID, &core.IngestionError{Step: "parse", Err: err})
	}

	merged := MergeBlocks(blocks, p.wordBudget)

	if fileID != "" {
		deleted, err := p.store.DeleteFileChunks(ctx, courseID, fileID)
		if err != nil {
			return p.fail(ctx, fileID, &core.IngestionError{Step: "replace", Err: err})
		}
		if deleted > 0 {
			log.Printf("Replaced %d existing chunks for file %s", deleted, fileID)
		}
	}

	for _, chunk := range merged {
		record := core.TranscriptChunk{
			CourseID: courseID,
			FileID:   fileID,
			Start:    chunk.Start,
			End:      chunk.End,
			Content:  chunk.Content,
		}
		chunkID, err := p.store.InsertChunk(ctx, record)
		if err != nil {
			return p.fail(ctx, fileID, &core.IngestionError{Step: "store", Err: err})
		}

		vec, err := p.embedder.Embed(ctx, chunk.Content)
		if err != nil {
			return p.fail(ctx, fileID, &core.IngestionError{Step: "embed", Err: err})
		}

		if err := p.store.UpdateChunkEmbedding(ctx, chunkID, vec); err != nil {
			return p.fail(ctx, fileID, &core.IngestionError{Step: "store", Err: err})
		}
	}

	if fileID != "" {
		if err := p.store.UpdateFileStatus(ctx, fileID, core.FileStatusProcessed); err != nil {
			return p.fail(ctx, fileID, &core.IngestionError{Step: "status", Err: err})
		}
	}

	return core.IngestResult{Success: true, ChunksProcessed: len(merged)}, nil
}

// fail marks the file as errored before propagating. A failure to write the
// status itself is logged and swallowed so it never masks the original
// error.
func (p *IngestPipeline) fail(ctx context.Context, fileID string, err error) (core.IngestResult, error) {
	if fileID != "" {
		if serr := p.store.UpdateFileStatus(ctx, fileID, core.FileStatusError); serr != nil {
			log.Printf("Warning: failed to mark file %s as error: %v", fileID, serr)
		}
	}
	return core.IngestResult{}, err
}
