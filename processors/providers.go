package processors

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"doubtDesk/config"
	"doubtDesk/core"
)

// Embedder is the single external embedding capability. Implementations do
// no retrying of their own; failures propagate to the caller.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// GenerateOptions carries the determinism controls a Generator minimally
// supports.
type GenerateOptions struct {
	Temperature float32
	MaxTokens   int
}

// Generator is the single external text-generation capability.
type Generator interface {
	Generate(ctx context.Context, prompt string, opts GenerateOptions) (string, error)
}

// ---------------- OpenAI-compatible implementations ----------------

type OpenAIEmbedder struct {
	cli   *openai.Client
	model string
}

func NewOpenAIEmbedder(cfg *config.Config) *OpenAIEmbedder {
	return &OpenAIEmbedder{cli: newOpenAIClient(cfg), model: cfg.EmbeddingModel}
}

func (e *OpenAIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	resp, err := e.cli.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Model: openai.EmbeddingModel(e.model),
		Input: []string{text},
	})
	if err != nil {
		return nil, &core.EmbeddingError{Err: err}
	}
	if len(resp.Data) == 0 {
		return nil, &core.EmbeddingError{Err: fmt.Errorf("no embeddings returned")}
	}
	return resp.Data[0].Embedding, nil
}

type OpenAIGenerator struct {
	cli   *openai.Client
	model string
}

func NewOpenAIGenerator(cfg *config.Config) *OpenAIGenerator {
	return &OpenAIGenerator{cli: newOpenAIClient(cfg), model: cfg.ChatModel}
}

func (g *OpenAIGenerator) Generate(ctx context.Context, prompt string, opts GenerateOptions) (string, error) {
	req := openai.ChatCompletionRequest{
		Model: g.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		Temperature: opts.Temperature,
	}
	if opts.MaxTokens > 0 {
		req.MaxTokens = opts.MaxTokens
	}
	resp, err := g.cli.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", &core.GenerationError{Err: err}
	}
	if len(resp.Choices) == 0 {
		return "", &core.GenerationError{Err: fmt.Errorf("no choices returned")}
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

func newOpenAIClient(cfg *config.Config) *openai.Client {
	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}
	return openai.NewClientWithConfig(clientConfig)
}

// ---------------- Mock implementations ----------------

// MockEmbedder hashes words into a fixed-size L2-normalized vector. It is
// deterministic, so similar texts land near each other, which is enough for
// keyless development and tests.
type MockEmbedder struct {
	Dim int
}

func (m MockEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	dim := m.Dim
	if dim <= 0 {
		dim = 256
	}
	vec := make([]float32, dim)
	for _, word := range strings.Fields(strings.ToLower(text)) {
		h := fnv.New32a()
		_, _ = h.Write([]byte(word))
		vec[h.Sum32()%uint32(dim)] += 1
	}
	var sum float64
	for _, v := range vec {
		sum += float64(v) * float64(v)
	}
	if sum > 0 {
		norm := float32(math.Sqrt(sum))
		for i := range vec {
			vec[i] /= norm
		}
	}
	return vec, nil
}

// MockGenerator answers every prompt with a fixed placeholder.
type MockGenerator struct{}

func (MockGenerator) Generate(_ context.Context, prompt string, _ GenerateOptions) (string, error) {
	return fmt.Sprintf("Placeholder answer (%d prompt chars). Configure an API key for real generation.", len(prompt)), nil
}
