package processors

import (
	"context"
	"errors"
	"strings"
	"testing"

	"doubtDesk/core"
)

func sampleHits() []core.Hit {
	return []core.Hit{
		{ChunkID: "c1", CourseID: "course-1", Score: 0.92, Start: 60, End: 95, Content: "A hash table maps keys to values."},
		{ChunkID: "c2", CourseID: "course-1", Score: 0.85, Start: 120, End: 150, Content: "Collisions are resolved by chaining."},
	}
}

func TestAnswerEmptyRetrievalShortCircuits(t *testing.T) {
	gen := &scriptedGenerator{responses: []string{"should never be called"}}
	ans, err := NewAnswerSynthesizer(gen).Answer(context.Background(), "What is a hash table?", nil)
	if err != nil {
		t.Fatalf("Answer failed: %v", err)
	}
	if ans.Answer != NotInTranscript {
		t.Errorf("answer = %q, want %q", ans.Answer, NotInTranscript)
	}
	if len(ans.References) != 0 {
		t.Errorf("references = %d, want 0", len(ans.References))
	}
	if len(gen.prompts) != 0 {
		t.Errorf("generator called %d times, want 0", len(gen.prompts))
	}
}

func TestAnswerReturnsReferences(t *testing.T) {
	gen := &scriptedGenerator{responses: []string{"A hash table maps keys to values [01:00 - 01:35]."}}
	ans, err := NewAnswerSynthesizer(gen).Answer(context.Background(), "What is a hash table?", sampleHits())
	if err != nil {
		t.Fatalf("Answer failed: %v", err)
	}
	if len(gen.prompts) != 1 {
		t.Fatalf("generator called %d times, want 1", len(gen.prompts))
	}
	if len(ans.References) != 2 {
		t.Fatalf("references = %d, want 2", len(ans.References))
	}
	if ans.References[0].StartTime != 60 || ans.References[0].EndTime != 95 {
		t.Errorf("reference span = [%f, %f], want [60, 95]", ans.References[0].StartTime, ans.References[0].EndTime)
	}
}

func TestAnswerRetriesOnceOnRefusal(t *testing.T) {
	gen := &scriptedGenerator{responses: []string{
		NotCovered,
		"Collisions are resolved by chaining [02:00 - 02:30].",
	}}
	ans, err := NewAnswerSynthesizer(gen).Answer(context.Background(), "How are collisions handled?", sampleHits())
	if err != nil {
		t.Fatalf("Answer failed: %v", err)
	}
	if len(gen.prompts) != 2 {
		t.Fatalf("generator called %d times, want 2", len(gen.prompts))
	}
	if !strings.Contains(gen.prompts[1], "ARE relevant") {
		t.Error("retry prompt missing the relevance assertion")
	}
	if ans.Answer != "Collisions are resolved by chaining [02:00 - 02:30]." {
		t.Errorf("answer = %q", ans.Answer)
	}
	if len(ans.References) != 2 {
		t.Errorf("references = %d, want 2", len(ans.References))
	}
}

func TestAnswerSentinelTwiceIsFinal(t *testing.T) {
	gen := &scriptedGenerator{responses: []string{NotCovered, NotCovered, "third call must not happen"}}
	ans, err := NewAnswerSynthesizer(gen).Answer(context.Background(), "What about quantum gravity?", sampleHits())
	if err != nil {
		t.Fatalf("Answer failed: %v", err)
	}
	if len(gen.prompts) != 2 {
		t.Fatalf("generator called %d times, want exactly 2", len(gen.prompts))
	}
	if ans.Answer != NotCovered {
		t.Errorf("answer = %q, want sentinel", ans.Answer)
	}
	if len(ans.References) != 0 {
		t.Errorf("references = %d, want 0 when the final answer is the sentinel", len(ans.References))
	}
}

func TestAnswerPropagatesGenerationError(t *testing.T) {
	gen := &scriptedGenerator{err: errors.New("provider down")}
	_, err := NewAnswerSynthesizer(gen).Answer(context.Background(), "question", sampleHits())
	if err == nil {
		t.Fatal("expected error from generator to propagate")
	}
}

func TestAnswerPromptContainsExcerpts(t *testing.T) {
	gen := &scriptedGenerator{responses: []string{"answer"}}
	_, err := NewAnswerSynthesizer(gen).Answer(context.Background(), "What is a hash table?", sampleHits())
	if err != nil {
		t.Fatalf("Answer failed: %v", err)
	}
	prompt := gen.prompts[0]
	if !strings.Contains(prompt, "A hash table maps keys to values.") {
		t.Error("prompt missing excerpt content")
	}
	if !strings.Contains(prompt, "[01:00 - 01:35]") {
		t.Error("prompt missing MM:SS excerpt time range")
	}
	if !strings.Contains(prompt, "STUDENT QUESTION:") {
		t.Error("prompt missing question section")
	}
}
