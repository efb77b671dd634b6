// Package ollama provides an llm.Provider backed by an Ollama server.
package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/oceanbase/mindshard-go/pkg/llm"
)

const (
	DefaultModel   = "llama3.1:8b"
	DefaultBaseURL = "http://localhost:11434"

	// local models can be slow on first load
	requestTimeout = 120 * time.Second
)

// Config configures the chat client. APIKey is only needed behind an
// authenticating proxy.
type Config struct {
	APIKey     string
	Model      string
	BaseURL    string
	HTTPClient *http.Client
}

// Client talks to Ollama's /api/chat endpoint without streaming.
type Client struct {
	http     *http.Client
	endpoint string
	apiKey   string
	model    string
}

func NewClient(cfg *Config) (*Client, error) {
	c := &Client{http: cfg.HTTPClient, endpoint: cfg.BaseURL, apiKey: cfg.APIKey, model: cfg.Model}
	if c.http == nil {
		c.http = &http.Client{Timeout: requestTimeout}
	}
	if c.endpoint == "" {
		c.endpoint = DefaultBaseURL
	}
	c.endpoint += "/api/chat"
	if c.model == "" {
		c.model = DefaultModel
	}
	return c, nil
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []llm.Message `json:"messages"`
	Stream   bool          `json:"stream"`
	Options  chatOptions   `json:"options"`
}

type chatOptions struct {
	Temperature float64  `json:"temperature"`
	NumPredict  int      `json:"num_predict"`
	TopP        float64  `json:"top_p"`
	Stop        []string `json:"stop,omitempty"`
}

type chatResponse struct {
	Message llm.Message `json:"message"`
}

func (c *Client) Generate(ctx context.Context, prompt string, opts ...llm.GenerateOption) (string, error) {
	return c.GenerateWithMessages(ctx, []llm.Message{{Role: llm.RoleUser, Content: prompt}}, opts...)
}

// GenerateWithMessages maps MaxTokens to Ollama's num_predict.
func (c *Client) GenerateWithMessages(ctx context.Context, messages []llm.Message, opts ...llm.GenerateOption) (string, error) {
	options := llm.ApplyGenerateOptions(opts)

	jsonData, err := json.Marshal(chatRequest{
		Model:    c.model,
		Messages: messages,
		Options: chatOptions{
			Temperature: options.Temperature,
			NumPredict:  options.MaxTokens,
			TopP:        options.TopP,
			Stop:        options.Stop,
		},
	})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(jsonData))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("send request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("ollama chat: status %d: %s", resp.StatusCode, string(body))
	}

	var response chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}

	if response.Message.Content == "" {
		return "", errors.New("ollama chat: empty response")
	}
	return response.Message.Content, nil
}

func (c *Client) Close() error {
	return nil
}
