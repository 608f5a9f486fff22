package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"examprep/internal/domain"
)

// OpenAIEmbedder talks to any /embeddings endpoint in the OpenAI format. The
// API has no task type, so document and query texts are distinguished by
// optional prefixes (e.g. "search_document: " for nomic models).
type OpenAIEmbedder struct {
	provider  string
	apiKey    string
	model     string
	baseURL   string
	dimension int
	// dimensions is sent on each request when configured.
	dimensions     int
	documentPrefix string
	queryPrefix    string
	client         *http.Client
	fanout         *fanout
}

type embeddingRequest struct {
	Input      []string `json:"input"`
	Model      string   `json:"model"`
	Dimensions int      `json:"dimensions,omitempty"`
}

type embeddingResponse struct {
	Data  []embeddingData `json:"data"`
	Error *apiError       `json:"error,omitempty"`
}

type embeddingData struct {
	Embedding []float32 `json:"embedding"`
	Index     int       `json:"index"`
}

type apiError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
}

// Prefixes marks document and query texts for models trained with them.
type Prefixes struct {
	Document string
	Query    string
}

func NewOpenAIEmbedder(apiKeyEnv, model string, prefixes Prefixes, opts Options) (*OpenAIEmbedder, error) {
	if opts.BaseURL == "" {
		opts.BaseURL = "https://api.openai.com/v1"
	}
	return NewOpenAICompatibleEmbedder("openai", apiKeyEnv, model, prefixes, opts)
}

func NewJinaEmbedder(apiKeyEnv, model string, prefixes Prefixes, opts Options) (*OpenAIEmbedder, error) {
	if opts.BaseURL == "" {
		opts.BaseURL = "https://api.jina.ai/v1"
	}
	return NewOpenAICompatibleEmbedder("jina", apiKeyEnv, model, prefixes, opts)
}

func NewOllamaEmbedder(model string, prefixes Prefixes, opts Options) (*OpenAIEmbedder, error) {
	if opts.BaseURL == "" {
		opts.BaseURL = "http://localhost:11434/v1"
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 120 * time.Second
	}

	e := newOpenAIEmbedder("ollama", "ollama", model, prefixes, opts)
	if opts.Dimension <= 0 {
		switch model {
		case "nomic-embed-text":
			e.dimension = 768
		case "mxbai-embed-large":
			e.dimension = 1024
		case "all-minilm":
			e.dimension = 384
		default:
			e.dimension = 768
		}
	}
	return e, nil
}

func NewOpenAICompatibleEmbedder(provider, apiKeyEnv, model string, prefixes Prefixes, opts Options) (*OpenAIEmbedder, error) {
	apiKey := os.Getenv(apiKeyEnv)
	if apiKey == "" {
		return nil, fmt.Errorf("API key not found in environment variable: %s", apiKeyEnv)
	}

	e := newOpenAIEmbedder(provider, apiKey, model, prefixes, opts)
	if opts.Dimension <= 0 {
		switch model {
		case "text-embedding-3-large":
			e.dimension = 3072
		case "jina-embeddings-v3":
			e.dimension = 1024
		case "jina-embeddings-v4":
			e.dimension = 2048
		default:
			e.dimension = 1536
		}
	}
	return e, nil
}

func newOpenAIEmbedder(provider, apiKey, model string, prefixes Prefixes, opts Options) *OpenAIEmbedder {
	return &OpenAIEmbedder{
		provider:       provider,
		apiKey:         apiKey,
		model:          model,
		baseURL:        strings.TrimRight(opts.BaseURL, "/"),
		dimension:      opts.Dimension,
		dimensions:     max(opts.Dimension, 0),
		documentPrefix: prefixes.Document,
		queryPrefix:    prefixes.Query,
		client:         opts.httpClient(60 * time.Second),
		fanout:         newFanout(provider, opts.Concurrency, opts.RequestsPerSecond, opts.Dimension),
	}
}

// Embed returns one vector per text in input order, sending up to 100 texts
// per request.
func (e *OpenAIEmbedder) Embed(ctx context.Context, texts []string, task domain.TaskType) ([][]float32, error) {
	prefix := e.documentPrefix
	if task == domain.TaskQuery {
		prefix = e.queryPrefix
	}

	inputs := texts
	if prefix != "" {
		inputs = make([]string, len(texts))
		for i, t := range texts {
			inputs[i] = prefix + t
		}
	}

	const maxBatch = 100
	return e.fanout.run(ctx, inputs, maxBatch, e.embedBatch)
}

func (e *OpenAIEmbedder) embedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	reqBody := embeddingRequest{
		Input:      texts,
		Model:      e.model,
		Dimensions: e.dimensions,
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, e.fanout.fail("encode", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/embeddings", bytes.NewReader(jsonData))
	if err != nil {
		return nil, e.fanout.fail("request", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+e.apiKey)

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, e.fanout.fail("request", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, e.fanout.fail("read", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, e.fanout.fail("request", fmt.Errorf("API returned status %d: %s", resp.StatusCode, truncate(body)))
	}

	var embResp embeddingResponse
	if err := json.Unmarshal(body, &embResp); err != nil {
		return nil, e.fanout.fail("decode", fmt.Errorf("parse response (body: %s): %w", truncate(body), err))
	}

	if embResp.Error != nil {
		return nil, e.fanout.fail("request", fmt.Errorf("API error: %s", embResp.Error.Message))
	}

	embeddings := make([][]float32, len(texts))
	for _, data := range embResp.Data {
		if data.Index < 0 || data.Index >= len(embeddings) {
			return nil, e.fanout.fail("decode", fmt.Errorf("response index %d out of range", data.Index))
		}
		embeddings[data.Index] = data.Embedding
	}

	return embeddings, nil
}

func (e *OpenAIEmbedder) Dimension() int {
	return e.dimension
}

func (e *OpenAIEmbedder) ModelName() string {
	return e.model
}
