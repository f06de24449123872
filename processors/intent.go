package processors

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"doubtDesk/core"
)

// The intent gate routes a question before any retrieval or generation
// budget is spent. It deliberately fails open: an unclassifiable question is
// treated as a course question rather than blocking the student.

const intentPrompt = `You are an intent classifier for a course Q&A assistant.
Classify the student message below into exactly one intent:
- "course_question": a question about course content that needs the transcript
- "greeting": a greeting like hello or hi
- "thanks": an expression of gratitude
- "goodbye": a farewell
- "off_topic": unrelated to the course (weather, jokes, personal chat)
- "unclear": too vague or garbled to classify

Respond with strict JSON containing exactly two keys and nothing else:
{"intent": "<one of the labels above>", "response": "<for non course_question intents, a short friendly reply redirecting the student to course content; empty string for course_question>"}

STUDENT MESSAGE:
%s`

type IntentClassifier struct {
	generator Generator
}

func NewIntentClassifier(generator Generator) *IntentClassifier {
	return &IntentClassifier{generator: generator}
}

// Classify labels a question. Provider errors, unparsable output and missing
// intent fields all fall back to course_question with an empty canned
// response; classification is never allowed to surface an error.
func (c *IntentClassifier) Classify(ctx context.Context, question string) core.IntentResult {
	fallback := core.IntentResult{Intent: core.IntentCourseQuestion, Response: ""}

	raw, err := c.generator.Generate(ctx, fmt.Sprintf(intentPrompt, question), GenerateOptions{Temperature: 0})
	if err != nil {
		log.Printf("Warning: intent classification failed (%v), defaulting to course_question", err)
		return fallback
	}

	var result core.IntentResult
	if err := json.Unmarshal([]byte(stripCodeFence(raw)), &result); err != nil {
		log.Printf("Warning: unparsable intent output, defaulting to course_question")
		return fallback
	}
	if !validIntent(result.Intent) {
		return fallback
	}
	return result
}

func validIntent(intent string) bool {
	switch intent {
	case core.IntentCourseQuestion, core.IntentGreeting, core.IntentThanks,
		core.IntentGoodbye, core.IntentOffTopic, core.IntentUnclear:
		return true
	}
	return false
}

// stripCodeFence removes a markdown code fence some models wrap JSON in.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimPrefix(s, "json")
	if i := strings.LastIndex(s, "```"); i >= 0 {
		s = s[:i]
	}
	return strings.TrimSpace(s)
}
