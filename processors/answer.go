package processors

import (
	"context"
	"fmt"
	"strings"

	"doubtDesk/core"
)

// Fixed control-flow strings. NotCovered is matched by exact string equality
// in the retry and reference logic; never paraphrase it.
const (
	NotCovered        = "This is not covered in the course."
	NotInTranscript   = "This is not covered in the transcript."
	RedirectToCourse  = "I can help with questions about the course content. Ask me anything from the transcript."
	answerTemperature = 0.2
)

const systemPrompt = `You are a teaching assistant. Your ONLY job is to answer questions using the provided transcript excerpts.

STRICT RULES:
1. Answer ONLY using information from the provided transcript excerpts.
2. If the answer is NOT found in the excerpts, respond EXACTLY with: "` + NotCovered + `"
3. Include timestamp references in format [MM:SS - MM:SS] for every claim you make.
4. Do NOT use any external knowledge.
5. Do NOT make assumptions or inferences beyond what is stated in the excerpts.
6. Do NOT hallucinate any information.
7. If the excerpts contain relevant info, you MUST answer and MUST NOT respond with "` + NotCovered + `".
8. Keep answers concise and directly grounded in the transcript text.`

type AnswerSynthesizer struct {
	generator Generator
}

func NewAnswerSynthesizer(generator Generator) *AnswerSynthesizer {
	return &AnswerSynthesizer{generator: generator}
}

// Answer produces a grounded answer for the question from the retrieved
// chunks. Empty retrieval short-circuits without a model call. A first
// answer that exactly equals the sentinel triggers one retry asserting the
// excerpts are relevant; whatever the retry returns is final. References are
// the full retrieved list unless the final answer is the sentinel.
func (s *AnswerSynthesizer) Answer(ctx context.Context, question string, hits []core.Hit) (core.ChatAnswer, error) {
	if len(hits) == 0 {
		return core.ChatAnswer{Answer: NotInTranscript, References: []core.Reference{}}, nil
	}

	excerpts := formatExcerpts(hits)

	prompt := fmt.Sprintf(`%s

TRANSCRIPT EXCERPTS:
%s

STUDENT QUESTION:
%s

Provide your answer. Include timestamp references [MM:SS - MM:SS] for every claim.`, systemPrompt, excerpts, question)

	answer, err := s.generator.Generate(ctx, prompt, GenerateOptions{Temperature: answerTemperature})
	if err != nil {
		return core.ChatAnswer{}, err
	}
	answer = strings.TrimSpace(answer)

	if answer == NotCovered {
		retryPrompt := fmt.Sprintf(`%s

The excerpts below ARE relevant to the question. Provide a concise answer using ONLY the excerpts.
Do NOT respond with "%s". Include timestamps for every claim.

TRANSCRIPT EXCERPTS:
%s

STUDENT QUESTION:
%s

Provide your answer now.`, systemPrompt, NotCovered, excerpts, question)

		answer, err = s.generator.Generate(ctx, retryPrompt, GenerateOptions{Temperature: answerTemperature})
		if err != nil {
			return core.ChatAnswer{}, err
		}
		answer = strings.TrimSpace(answer)
	}

	references := []core.Reference{}
	if answer != NotCovered {
		references = make([]core.Reference, 0, len(hits))
		for _, h := range hits {
			references = append(references, core.Reference{StartTime: h.Start, EndTime: h.End, Content: h.Content})
		}
	}

	return core.ChatAnswer{Answer: answer, References: references}, nil
}

func formatExcerpts(hits []core.Hit) string {
	parts := make([]string, 0, len(hits))
	for i, h := range hits {
		timeRange := fmt.Sprintf("%s - %s", core.FormatTime(h.Start), core.FormatTime(h.End))
		parts = append(parts, fmt.Sprintf("[Excerpt %d] [%s]\n%s", i+1, timeRange, h.Content))
	}
	return strings.Join(parts, "\n\n")
}
