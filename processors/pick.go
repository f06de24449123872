package processors

import (
	"fmt"
	"strings"

	"doubtDesk/config"
)

// PickEmbedder selects the embedding provider from config and the
// EMBEDDING_PROVIDER override, degrading to the mock with a warning rather
// than failing startup.
func PickEmbedder(cfg *config.Config) Embedder {
	provider := strings.ToLower(strings.TrimSpace(cfg.EmbeddingProvider))

	if provider == "mock" {
		return MockEmbedder{}
	}

	if provider == "local" {
		e, err := NewLocalEmbedder()
		if err != nil {
			fmt.Printf("Warning: failed to initialize local embedder (%v), falling back to mock embedder\n", err)
			return MockEmbedder{}
		}
		return e
	}

	if !cfg.HasValidAPI() {
		config.PrintConfigInstructions()
		fmt.Println("Warning: API configuration not found, using mock embedder")
		return MockEmbedder{}
	}
	return NewOpenAIEmbedder(cfg)
}

// PickGenerator selects the text-generation provider.
func PickGenerator(cfg *config.Config) Generator {
	if !cfg.HasValidAPI() {
		fmt.Println("Warning: API configuration not found, using mock generator")
		return MockGenerator{}
	}
	return NewOpenAIGenerator(cfg)
}
