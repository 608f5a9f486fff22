package embedding

import (
	"fmt"

	"examprep/internal/port"
)

// Providers lists the names New accepts.
var Providers = []string{"gemini", "openai", "jina", "ollama", "mock"}

// New creates an embedder for a provider name. apiKeyEnv names the
// environment variable holding the key; ollama and mock ignore it.
func New(provider, apiKeyEnv, model string, prefixes Prefixes, opts Options) (port.Embedder, error) {
	var (
		embedder port.Embedder
		err      error
	)

	switch provider {
	case "gemini":
		var e *GeminiEmbedder
		e, err = NewGeminiEmbedder(apiKeyEnv, model, opts)
		embedder = e
	case "openai":
		var e *OpenAIEmbedder
		e, err = NewOpenAIEmbedder(apiKeyEnv, model, prefixes, opts)
		embedder = e
	case "jina":
		var e *OpenAIEmbedder
		e, err = NewJinaEmbedder(apiKeyEnv, model, prefixes, opts)
		embedder = e
	case "ollama":
		var e *OpenAIEmbedder
		e, err = NewOllamaEmbedder(model, prefixes, opts)
		embedder = e
	case "mock":
		embedder = NewMockEmbedder(opts.Dimension)
	default:
		return nil, fmt.Errorf("unsupported embedding provider: %s", provider)
	}
	if err != nil {
		return nil, err
	}
	return embedder, nil
}
