// Package qwen embeds text through the DashScope text-embedding service.
package qwen

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/oceanbase/mindshard-go/pkg/core"
)

const (
	DefaultBaseURL    = "https://dashscope.aliyuncs.com/api/v1"
	DefaultModel      = "text-embedding-v4"
	DefaultDimensions = 1536

	embeddingPath  = "/services/embeddings/text-embedding/text-embedding"
	requestTimeout = 30 * time.Second
)

// Config configures a DashScope embedder. Only APIKey is required.
type Config struct {
	APIKey     string
	Model      string
	BaseURL    string
	Dimensions int

	// HTTPClient replaces the default client with a 30s timeout.
	HTTPClient *http.Client
}

// Client is an embedder.Provider backed by DashScope.
type Client struct {
	http       *http.Client
	endpoint   string
	apiKey     string
	model      string
	dimensions int
}

func NewClient(cfg *Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, core.Errorf("NewQwenEmbedder", core.ErrInvalidConfig, "API key is required")
	}

	c := &Client{
		http:       cfg.HTTPClient,
		endpoint:   cfg.BaseURL,
		apiKey:     cfg.APIKey,
		model:      cfg.Model,
		dimensions: cfg.Dimensions,
	}
	if c.http == nil {
		c.http = &http.Client{Timeout: requestTimeout}
	}
	if c.endpoint == "" {
		c.endpoint = DefaultBaseURL
	}
	c.endpoint += embeddingPath
	if c.model == "" {
		c.model = DefaultModel
	}
	if c.dimensions == 0 {
		c.dimensions = DefaultDimensions
	}
	return c, nil
}

type embeddingRequest struct {
	Model      string                 `json:"model"`
	Input      embeddingInput         `json:"input"`
	Parameters map[string]interface{} `json:"parameters,omitempty"`
}

type embeddingInput struct {
	Texts []string `json:"texts"`
}

type embeddingResponse struct {
	Output struct {
		Embeddings []struct {
			TextIndex int       `json:"text_index"`
			Embedding []float64 `json:"embedding"`
		} `json:"embeddings"`
	} `json:"output"`
}

func (c *Client) Embed(ctx context.Context, text string) ([]float64, error) {
	embeddings, err := c.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return embeddings[0], nil
}

// EmbedBatch sends texts in one request. DashScope may reorder results, so
// they are placed by text_index.
func (c *Client) EmbedBatch(ctx context.Context, texts []string) ([][]float64, error) {
	if len(texts) == 0 {
		return [][]float64{}, nil
	}

	reqBody := embeddingRequest{
		Model: c.model,
		Input: embeddingInput{Texts: texts},
		Parameters: map[string]interface{}{
			"text_type": "document",
		},
	}
	if c.dimensions > 0 {
		reqBody.Parameters["dimension"] = c.dimensions
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("qwen embeddings: status %d: %s", resp.StatusCode, string(body))
	}

	var response embeddingResponse
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	if len(response.Output.Embeddings) != len(texts) {
		return nil, fmt.Errorf("qwen embeddings: got %d results, expected %d", len(response.Output.Embeddings), len(texts))
	}

	embeddings := make([][]float64, len(texts))
	for i, emb := range response.Output.Embeddings {
		idx := emb.TextIndex
		if idx < 0 || idx >= len(texts) || embeddings[idx] != nil {
			idx = i
		}
		embeddings[idx] = emb.Embedding
	}

	return embeddings, nil
}

func (c *Client) Dimensions() int {
	return c.dimensions
}

func (c *Client) Close() error {
	return nil
}
