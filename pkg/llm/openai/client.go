// Package openai provides an llm.Provider for OpenAI and OpenAI-compatible
// chat endpoints. DeepSeek and Qwen (DashScope compatible mode) are served by
// the same client with their own base URL and default model.
package openai

import (
	"context"
	"errors"
	"fmt"

	openai "github.com/sashabaranov/go-openai"

	"github.com/oceanbase/mindshard-go/pkg/core"
	"github.com/oceanbase/mindshard-go/pkg/llm"
)

// Preset is the endpoint and default model of an OpenAI-compatible vendor.
type Preset struct {
	BaseURL string
	Model   string
}

// Presets for the vendors this client serves.
var Presets = map[string]Preset{
	"openai":   {BaseURL: "https://api.openai.com/v1", Model: "gpt-4o-mini"},
	"deepseek": {BaseURL: "https://api.deepseek.com", Model: "deepseek-chat"},
	"qwen":     {BaseURL: "https://dashscope.aliyuncs.com/compatible-mode/v1", Model: "qwen-plus"},
}

// Config selects a preset and overrides its endpoint or model. Provider
// defaults to "openai"; APIKey is required.
type Config struct {
	Provider string
	APIKey   string
	Model    string
	BaseURL  string
}

type Client struct {
	api   *openai.Client
	model string
}

func NewClient(cfg *Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, core.Errorf("NewOpenAILLM", core.ErrInvalidConfig, "API key is required")
	}

	name := cfg.Provider
	if name == "" {
		name = "openai"
	}
	preset, ok := Presets[name]
	if !ok {
		return nil, core.Errorf("NewOpenAILLM", core.ErrInvalidConfig, "unknown provider %q", name)
	}
	if cfg.BaseURL != "" {
		preset.BaseURL = cfg.BaseURL
	}
	if cfg.Model != "" {
		preset.Model = cfg.Model
	}

	sdkCfg := openai.DefaultConfig(cfg.APIKey)
	sdkCfg.BaseURL = preset.BaseURL
	return &Client{api: openai.NewClientWithConfig(sdkCfg), model: preset.Model}, nil
}

func (c *Client) Generate(ctx context.Context, prompt string, opts ...llm.GenerateOption) (string, error) {
	return c.GenerateWithMessages(ctx, []llm.Message{{Role: llm.RoleUser, Content: prompt}}, opts...)
}

func (c *Client) GenerateWithMessages(ctx context.Context, messages []llm.Message, opts ...llm.GenerateOption) (string, error) {
	resp, err := c.api.CreateChatCompletion(ctx, c.request(messages, llm.ApplyGenerateOptions(opts)))
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("chat completion: no choices returned")
	}
	return resp.Choices[0].Message.Content, nil
}

func (c *Client) request(messages []llm.Message, o *llm.GenerateOptions) openai.ChatCompletionRequest {
	req := openai.ChatCompletionRequest{
		Model:       c.model,
		Messages:    make([]openai.ChatCompletionMessage, 0, len(messages)),
		Temperature: float32(o.Temperature),
		MaxTokens:   o.MaxTokens,
		TopP:        float32(o.TopP),
		Stop:        o.Stop,
	}
	for _, m := range messages {
		req.Messages = append(req.Messages, openai.ChatCompletionMessage{Role: m.Role, Content: m.Content})
	}
	return req
}

// Close is a no-op; the SDK client holds no resources.
func (c *Client) Close() error {
	return nil
}
