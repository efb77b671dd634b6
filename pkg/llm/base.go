// Package llm holds the chat-model clients used to condense working memory
// and the summarizers built on top of them.
//
// A Provider is only ever asked for short completions: the short-term tier
// hands it a batch of conversation turns and keeps whatever it returns as a
// single summary entry.
package llm

import "context"

// Provider is a chat completion backend. The openai package covers
// OpenAI-compatible endpoints (OpenAI, DeepSeek, Qwen); anthropic and ollama
// have their own clients.
type Provider interface {
	// Generate completes a single user prompt.
	Generate(ctx context.Context, prompt string, opts ...GenerateOption) (string, error)

	// GenerateWithMessages completes a conversation. Messages keep their
	// order; a leading RoleSystem message becomes the system prompt.
	GenerateWithMessages(ctx context.Context, messages []Message, opts ...GenerateOption) (string, error)

	Close() error
}

// Message roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one turn of a chat request.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Sampling defaults applied before any GenerateOption.
const (
	defaultTemperature = 0.7
	defaultMaxTokens   = 1000
	defaultTopP        = 1.0
)

// GenerateOptions are the sampling knobs every backend understands.
// Zero-length Stop means no stop sequences.
type GenerateOptions struct {
	Temperature float64
	MaxTokens   int
	TopP        float64
	Stop        []string
}

type GenerateOption func(*GenerateOptions)

// WithTemperature overrides the sampling temperature. Summaries use a low
// value so repeated flushes of similar turns read alike.
func WithTemperature(t float64) GenerateOption {
	return func(o *GenerateOptions) { o.Temperature = t }
}

// WithMaxTokens caps the completion length.
func WithMaxTokens(n int) GenerateOption {
	return func(o *GenerateOptions) { o.MaxTokens = n }
}

func WithTopP(p float64) GenerateOption {
	return func(o *GenerateOptions) { o.TopP = p }
}

func WithStop(seqs ...string) GenerateOption {
	return func(o *GenerateOptions) { o.Stop = seqs }
}

// ApplyGenerateOptions resolves opts on top of the package defaults. Backends
// call it once per request.
func ApplyGenerateOptions(opts []GenerateOption) *GenerateOptions {
	o := &GenerateOptions{
		Temperature: defaultTemperature,
		MaxTokens:   defaultMaxTokens,
		TopP:        defaultTopP,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}
