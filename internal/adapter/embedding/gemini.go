package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"examprep/internal/domain"
)

const defaultGeminiURL = "https://generativelanguage.googleapis.com/v1beta"

// GeminiEmbedder calls the Generative Language embedContent endpoint once
// per text, tagging each call with the retrieval task type.
type GeminiEmbedder struct {
	apiKey    string
	model     string
	baseURL   string
	dimension int
	// outputDim is sent as outputDimensionality when configured.
	outputDim int
	client    *http.Client
	fanout    *fanout
}

type geminiRequest struct {
	Model                string        `json:"model"`
	Content              geminiContent `json:"content"`
	TaskType             string        `json:"taskType"`
	OutputDimensionality int           `json:"outputDimensionality,omitempty"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiResponse struct {
	Embedding *struct {
		Values []float32 `json:"values"`
	} `json:"embedding"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error,omitempty"`
}

func NewGeminiEmbedder(apiKeyEnv, model string, opts Options) (*GeminiEmbedder, error) {
	apiKey := os.Getenv(apiKeyEnv)
	if apiKey == "" {
		return nil, fmt.Errorf("API key not found in environment variable: %s", apiKeyEnv)
	}

	baseURL := opts.BaseURL
	if baseURL == "" {
		baseURL = defaultGeminiURL
	}

	// text-embedding-004 returns 768 values unless asked for fewer.
	dimension := opts.Dimension
	if dimension <= 0 {
		dimension = 768
	}

	return &GeminiEmbedder{
		apiKey:    apiKey,
		model:     strings.TrimPrefix(model, "models/"),
		baseURL:   strings.TrimRight(baseURL, "/"),
		dimension: dimension,
		outputDim: max(opts.Dimension, 0),
		client:    opts.httpClient(30 * time.Second),
		fanout:    newFanout("gemini", opts.Concurrency, opts.RequestsPerSecond, opts.Dimension),
	}, nil
}

// Embed returns one vector per text in input order.
func (e *GeminiEmbedder) Embed(ctx context.Context, texts []string, task domain.TaskType) ([][]float32, error) {
	taskType := geminiTaskType(task)
	return e.fanout.run(ctx, texts, 1, func(ctx context.Context, batch []string) ([][]float32, error) {
		vec, err := e.embedOne(ctx, batch[0], taskType)
		if err != nil {
			return nil, err
		}
		return [][]float32{vec}, nil
	})
}

func geminiTaskType(task domain.TaskType) string {
	if task == domain.TaskQuery {
		return "RETRIEVAL_QUERY"
	}
	return "RETRIEVAL_DOCUMENT"
}

func (e *GeminiEmbedder) embedOne(ctx context.Context, text, taskType string) ([]float32, error) {
	reqBody := geminiRequest{
		Model:                "models/" + e.model,
		Content:              geminiContent{Parts: []geminiPart{{Text: text}}},
		TaskType:             taskType,
		OutputDimensionality: e.outputDim,
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, e.fanout.fail("encode", err)
	}

	endpoint := fmt.Sprintf("%s/models/%s:embedContent", e.baseURL, url.PathEscape(e.model))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(jsonData))
	if err != nil {
		return nil, e.fanout.fail("request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", e.apiKey)

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, e.fanout.fail("request", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, e.fanout.fail("read", err)
	}

	var embResp geminiResponse
	if err := json.Unmarshal(body, &embResp); err != nil {
		if resp.StatusCode != http.StatusOK {
			return nil, e.fanout.fail("request", fmt.Errorf("API returned status %d: %s", resp.StatusCode, truncate(body)))
		}
		return nil, e.fanout.fail("decode", fmt.Errorf("parse response (body: %s): %w", truncate(body), err))
	}

	if embResp.Error != nil {
		return nil, e.fanout.fail("request", fmt.Errorf("API error %d %s: %s", embResp.Error.Code, embResp.Error.Status, embResp.Error.Message))
	}
	if resp.StatusCode != http.StatusOK {
		return nil, e.fanout.fail("request", fmt.Errorf("API returned status %d: %s", resp.StatusCode, truncate(body)))
	}
	if embResp.Embedding == nil || len(embResp.Embedding.Values) == 0 {
		return nil, e.fanout.fail("decode", fmt.Errorf("response has no embedding values"))
	}

	return embResp.Embedding.Values, nil
}

func (e *GeminiEmbedder) Dimension() int {
	return e.dimension
}

func (e *GeminiEmbedder) ModelName() string {
	return e.model
}
