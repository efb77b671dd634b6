package llm

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeProvider struct {
	reply    string
	err      error
	messages []Message
	opts     *GenerateOptions
}

func (f *fakeProvider) Generate(ctx context.Context, prompt string, opts ...GenerateOption) (string, error) {
	return f.GenerateWithMessages(ctx, []Message{{Role: RoleUser, Content: prompt}}, opts...)
}

func (f *fakeProvider) GenerateWithMessages(ctx context.Context, messages []Message, opts ...GenerateOption) (string, error) {
	f.messages = messages
	f.opts = ApplyGenerateOptions(opts)
	return f.reply, f.err
}

func (f *fakeProvider) Close() error { return nil }

func TestLLMSummarizer(t *testing.T) {
	provider := &fakeProvider{reply: "  short summary \n"}
	s := NewLLMSummarizer(provider, 200)

	out, err := s.Summarize(context.Background(), "a long conversation")
	require.NoError(t, err)
	assert.Equal(t, "short summary", out)
	require.Len(t, provider.messages, 2)
	assert.Equal(t, RoleSystem, provider.messages[0].Role)
	assert.Equal(t, "a long conversation", provider.messages[1].Content)
	assert.Equal(t, 200, provider.opts.MaxTokens)
	assert.InDelta(t, 0.2, provider.opts.Temperature, 1e-9)

	provider.err = errors.New("rate limited")
	_, err = s.Summarize(context.Background(), "x")
	assert.ErrorContains(t, err, "rate limited")
}

func TestExtractiveSummarizer(t *testing.T) {
	s := NewExtractiveSummarizer(0)

	out, err := s.Summarize(context.Background(), "First point. Second point! Third? Fourth.\nFifth")
	require.NoError(t, err)
	assert.Equal(t, "First point. Second point! Third?", out)

	out, err = s.Summarize(context.Background(), "   ")
	require.NoError(t, err)
	assert.Empty(t, out)

	out, err = s.Summarize(context.Background(), "v1.2 shipped today")
	require.NoError(t, err)
	assert.Equal(t, "v1.2 shipped today", out)
}

func TestExtractiveSummarizerMaxLength(t *testing.T) {
	s := NewExtractiveSummarizer(10)

	out, err := s.Summarize(context.Background(), strings.Repeat("word ", 20))
	require.NoError(t, err)
	assert.LessOrEqual(t, len([]rune(out)), 10)
}

func TestStrategySummarizer(t *testing.T) {
	abstractive := &fakeProvider{reply: "abstract"}
	s := NewStrategySummarizer(NewExtractiveSummarizer(0), NewLLMSummarizer(abstractive, 0), 20, nil)
	ctx := context.Background()

	out, err := s.Summarize(ctx, "Short text.")
	require.NoError(t, err)
	assert.Equal(t, "Short text.", out)

	out, err = s.Summarize(ctx, "This text is certainly long enough.")
	require.NoError(t, err)
	assert.Equal(t, "abstract", out)

	abstractive.err = errors.New("model offline")
	out, err = s.Summarize(ctx, "This text is certainly long enough.")
	require.NoError(t, err)
	assert.Equal(t, "This text is certainly long enough.", out)
}

func TestStrategySummarizerBothFail(t *testing.T) {
	failing := SummarizerFunc(func(context.Context, string) (string, error) {
		return "", errors.New("boom")
	})
	s := NewStrategySummarizer(failing, failing, 1, nil)

	_, err := s.Summarize(context.Background(), "anything")
	assert.Error(t, err)
}
