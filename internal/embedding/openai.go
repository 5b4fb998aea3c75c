package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

const defaultEmbeddingBaseURL = "https://api.openai.com/v1"

// OpenAIEmbedder implements Embedder against OpenAI-compatible /embeddings
// endpoints (OpenAI, DeepSeek-compatible gateways, local servers).
type OpenAIEmbedder struct {
	apiKey  string
	baseURL string
	model   string
	client  *http.Client
}

// EmbedderOption configures an OpenAIEmbedder.
type EmbedderOption func(*OpenAIEmbedder)

// WithEmbeddingBaseURL sets the base URL for the embeddings API.
func WithEmbeddingBaseURL(url string) EmbedderOption {
	return func(e *OpenAIEmbedder) {
		e.baseURL = url
	}
}

// WithEmbeddingHTTPClient sets a custom HTTP client.
func WithEmbeddingHTTPClient(client *http.Client) EmbedderOption {
	return func(e *OpenAIEmbedder) {
		e.client = client
	}
}

// NewOpenAIEmbedder creates a new OpenAI-compatible embedder.
func NewOpenAIEmbedder(apiKey, model string, opts ...EmbedderOption) *OpenAIEmbedder {
	e := &OpenAIEmbedder{
		apiKey:  apiKey,
		baseURL: defaultEmbeddingBaseURL,
		model:   model,
		client:  http.DefaultClient,
	}
	if e.model == "" {
		e.model = "text-embedding-3-small"
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

type embeddingRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embeddingResponse struct {
	Data []struct {
		Index     int       `json:"index"`
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

func (e *OpenAIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

func (e *OpenAIEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	body, err := json.Marshal(embeddingRequest{Model: e.model, Input: texts})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+e.apiKey)

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("embeddings api error (status %d): %s", resp.StatusCode, string(respBody))
	}

	var er embeddingResponse
	if err := json.Unmarshal(respBody, &er); err != nil {
		return nil, fmt.Errorf("unmarshal response: %w", err)
	}
	if len(er.Data) != len(texts) {
		return nil, fmt.Errorf("embeddings api returned %d vectors for %d inputs", len(er.Data), len(texts))
	}

	// The API documents index-ordered data, but order explicitly anyway.
	vecs := make([][]float32, len(texts))
	for _, d := range er.Data {
		if d.Index < 0 || d.Index >= len(vecs) {
			return nil, fmt.Errorf("embeddings api returned out-of-range index %d", d.Index)
		}
		vecs[d.Index] = Normalize(d.Embedding)
	}
	return vecs, nil
}
