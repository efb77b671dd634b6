package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oceanbase/mindshard-go/pkg/core"
	"github.com/oceanbase/mindshard-go/pkg/llm"
)

func TestNewClientPresets(t *testing.T) {
	_, err := NewClient(&Config{})
	assert.ErrorIs(t, err, core.ErrInvalidConfig)

	_, err = NewClient(&Config{APIKey: "k", Provider: "mistral"})
	assert.ErrorIs(t, err, core.ErrInvalidConfig)

	client, err := NewClient(&Config{APIKey: "k", Provider: "deepseek"})
	require.NoError(t, err)
	assert.Equal(t, "deepseek-chat", client.model)
}

func TestGenerateWithMessages(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)

		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "qwen-plus", body["model"])
		assert.EqualValues(t, 50, body["max_tokens"])

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"1","object":"chat.completion","choices":[{"index":0,"message":{"role":"assistant","content":"summary"},"finish_reason":"stop"}]}`))
	}))
	defer server.Close()

	client, err := NewClient(&Config{APIKey: "k", Provider: "qwen", BaseURL: server.URL})
	require.NoError(t, err)

	out, err := client.GenerateWithMessages(context.Background(), []llm.Message{
		{Role: llm.RoleSystem, Content: "be brief"},
		{Role: llm.RoleUser, Content: "hello"},
	}, llm.WithMaxTokens(50))
	require.NoError(t, err)
	assert.Equal(t, "summary", out)
}
