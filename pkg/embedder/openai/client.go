// Package openai provides an embedder.Provider on the OpenAI Embeddings API.
// Any OpenAI-compatible endpoint works through BaseURL.
package openai

import (
	"context"
	"fmt"

	openai "github.com/sashabaranov/go-openai"

	"github.com/oceanbase/mindshard-go/pkg/core"
	"github.com/oceanbase/mindshard-go/pkg/embedder"
)

const (
	DefaultModel      = "text-embedding-3-small"
	DefaultDimensions = 1536
)

// Config configures the embedder. Empty fields fall back to the OpenAI
// endpoint and the Default constants.
type Config struct {
	APIKey     string
	Model      string
	BaseURL    string
	Dimensions int
}

type Client struct {
	api        *openai.Client
	model      openai.EmbeddingModel
	dimensions int
}

func NewClient(cfg *Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, core.Errorf("NewOpenAIEmbedder", core.ErrInvalidConfig, "API key is required")
	}

	sdkCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		sdkCfg.BaseURL = cfg.BaseURL
	}

	c := &Client{
		api:        openai.NewClientWithConfig(sdkCfg),
		model:      openai.EmbeddingModel(cfg.Model),
		dimensions: cfg.Dimensions,
	}
	if c.model == "" {
		c.model = DefaultModel
	}
	if c.dimensions == 0 {
		c.dimensions = DefaultDimensions
	}
	return c, nil
}

func (c *Client) Embed(ctx context.Context, text string) ([]float64, error) {
	embeddings, err := c.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return embeddings[0], nil
}

// EmbedBatch converts multiple texts to vectors in one request. Results are
// placed by their reported index so the order always matches texts.
func (c *Client) EmbedBatch(ctx context.Context, texts []string) ([][]float64, error) {
	if len(texts) == 0 {
		return [][]float64{}, nil
	}

	resp, err := c.api.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: texts,
		Model: c.model,
	})
	if err != nil {
		return nil, fmt.Errorf("openai embeddings: %w", err)
	}

	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("openai embeddings: got %d results, expected %d", len(resp.Data), len(texts))
	}

	embeddings := make([][]float64, len(texts))
	for i, data := range resp.Data {
		idx := data.Index
		if idx < 0 || idx >= len(texts) || embeddings[idx] != nil {
			idx = i
		}
		embeddings[idx] = embedder.ToFloat64(data.Embedding)
	}

	return embeddings, nil
}

func (c *Client) Dimensions() int {
	return c.dimensions
}

// Close is a no-op; the SDK client holds no resources.
func (c *Client) Close() error {
	return nil
}
