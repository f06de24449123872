package core

import (
	"errors"
	"fmt"
)

// ErrNoContent means parsing produced zero usable caption blocks. Retrying
// the task cannot help without a corrected file.
var ErrNoContent = errors.New("no valid subtitle blocks found in content")

// EmbeddingError wraps a failed embedding provider call.
type EmbeddingError struct {
	Err error
}

func (e *EmbeddingError) Error() string { return fmt.Sprintf("embedding failed: %v", e.Err) }
func (e *EmbeddingError) Unwrap() error { return e.Err }

// GenerationError wraps a failed text-generation call. The anti-refusal
// retry does not apply to these; only to a successful call returning the
// sentinel.
type GenerationError struct {
	Err error
}

func (e *GenerationError) Error() string { return fmt.Sprintf("generation failed: %v", e.Err) }
func (e *GenerationError) Unwrap() error { return e.Err }

// IngestionError wraps whatever aborted an ingestion task, tagged with the
// step that failed so the task runner can log it.
type IngestionError struct {
	Step string
	Err  error
}

func (e *IngestionError) Error() string { return fmt.Sprintf("ingestion step %q: %v", e.Step, e.Err) }
func (e *IngestionError) Unwrap() error { return e.Err }

// Retriable reports whether re-running the task could succeed. Parse
// failures are permanent; provider and store failures are worth a retry.
func Retriable(err error) bool {
	return err != nil && !errors.Is(err, ErrNoContent)
}
