package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"unicode"
)

// Summarizer condenses text. Memory tiers use it to turn a batch of working
// entries into one summary.
type Summarizer interface {
	Summarize(ctx context.Context, text string) (string, error)
}

// SummarizerFunc adapts a function to the Summarizer interface.
type SummarizerFunc func(ctx context.Context, text string) (string, error)

// Summarize calls f.
func (f SummarizerFunc) Summarize(ctx context.Context, text string) (string, error) {
	return f(ctx, text)
}

// DefaultSummaryPrompt is the system prompt used by LLMSummarizer.
const DefaultSummaryPrompt = "You condense conversation notes into a short factual summary. " +
	"Keep names, decisions, numbers and open questions. Do not add information. " +
	"Answer with the summary only."

// LLMSummarizer summarizes through a Provider.
type LLMSummarizer struct {
	provider     Provider
	systemPrompt string
	maxTokens    int
}

// NewLLMSummarizer creates a Summarizer backed by provider. maxTokens <= 0
// keeps the provider default.
func NewLLMSummarizer(provider Provider, maxTokens int) *LLMSummarizer {
	return &LLMSummarizer{
		provider:     provider,
		systemPrompt: DefaultSummaryPrompt,
		maxTokens:    maxTokens,
	}
}

// Summarize asks the provider for a summary of text.
func (s *LLMSummarizer) Summarize(ctx context.Context, text string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", nil
	}

	opts := []GenerateOption{WithTemperature(0.2)}
	if s.maxTokens > 0 {
		opts = append(opts, WithMaxTokens(s.maxTokens))
	}

	out, err := s.provider.GenerateWithMessages(ctx, []Message{
		{Role: RoleSystem, Content: s.systemPrompt},
		{Role: RoleUser, Content: text},
	}, opts...)
	if err != nil {
		return "", fmt.Errorf("llm summarize: %w", err)
	}
	return strings.TrimSpace(out), nil
}

// ExtractiveSummarizer keeps the leading sentences of the text, up to
// MaxSentences sentences and MaxLength runes. It needs no model and never fails.
type ExtractiveSummarizer struct {
	MaxSentences int
	MaxLength    int
}

// NewExtractiveSummarizer returns an ExtractiveSummarizer keeping three
// sentences and at most maxLength runes (0 = unlimited).
func NewExtractiveSummarizer(maxLength int) *ExtractiveSummarizer {
	return &ExtractiveSummarizer{MaxSentences: 3, MaxLength: maxLength}
}

// Summarize returns the leading sentences of text.
func (s *ExtractiveSummarizer) Summarize(ctx context.Context, text string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	sentences := splitSentences(text)
	if len(sentences) == 0 {
		return "", nil
	}

	limit := s.MaxSentences
	if limit <= 0 || limit > len(sentences) {
		limit = len(sentences)
	}

	summary := strings.Join(sentences[:limit], " ")
	if s.MaxLength > 0 {
		if r := []rune(summary); len(r) > s.MaxLength {
			summary = strings.TrimSpace(string(r[:s.MaxLength]))
		}
	}
	return summary, nil
}

// splitSentences splits on sentence punctuation and line breaks.
func splitSentences(text string) []string {
	var (
		out     []string
		current strings.Builder
	)
	flush := func() {
		if s := strings.TrimSpace(current.String()); s != "" {
			out = append(out, s)
		}
		current.Reset()
	}

	runes := []rune(text)
	for i, r := range runes {
		if r == '\n' {
			flush()
			continue
		}
		current.WriteRune(r)
		if r == '.' || r == '!' || r == '?' {
			if i+1 == len(runes) || unicode.IsSpace(runes[i+1]) {
				flush()
			}
		}
	}
	flush()
	return out
}

// StrategySummarizer routes short text to an extractive summarizer and long
// text to an abstractive one, falling back to the other on failure.
type StrategySummarizer struct {
	extractive  Summarizer
	abstractive Summarizer
	threshold   int
	logger      *slog.Logger
}

// NewStrategySummarizer creates a StrategySummarizer. Text of at least
// threshold runes goes to abstractive first. A nil abstractive summarizer
// makes every call extractive.
func NewStrategySummarizer(extractive, abstractive Summarizer, threshold int, logger *slog.Logger) *StrategySummarizer {
	if logger == nil {
		logger = slog.Default()
	}
	return &StrategySummarizer{
		extractive:  extractive,
		abstractive: abstractive,
		threshold:   threshold,
		logger:      logger,
	}
}

// Summarize picks a strategy by length and falls back once.
func (s *StrategySummarizer) Summarize(ctx context.Context, text string) (string, error) {
	if strings.TrimSpace(text) == "" {
		s.logger.Warn("summarizer called with empty text")
		return "", nil
	}

	primary, secondary := s.extractive, s.abstractive
	useAbstractive := s.abstractive != nil && len([]rune(text)) >= s.threshold
	if useAbstractive {
		primary, secondary = s.abstractive, s.extractive
	}

	out, err := primary.Summarize(ctx, text)
	if err == nil {
		return out, nil
	}
	if secondary == nil || ctx.Err() != nil {
		return "", err
	}

	s.logger.Warn("summarization failed, trying fallback strategy",
		slog.Bool("abstractive", useAbstractive), slog.Any("error", err))

	out, fallbackErr := secondary.Summarize(ctx, text)
	if fallbackErr != nil {
		return "", errors.Join(err, fallbackErr)
	}
	return out, nil
}
