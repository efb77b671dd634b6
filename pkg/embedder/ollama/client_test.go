package ollama

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClientEmbed(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/embeddings", r.URL.Path)

		var req embeddingRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "all-minilm", req.Model)

		vec := []float64{float64(len(req.Prompt)), 1}
		_ = json.NewEncoder(w).Encode(embeddingResponse{Embedding: vec})
	}))
	defer server.Close()

	client, err := NewClient(&Config{BaseURL: server.URL + "/", Model: "all-minilm"})
	require.NoError(t, err)
	assert.Equal(t, 384, client.Dimensions())

	vectors, err := client.EmbedBatch(context.Background(), []string{"a", "abc"})
	require.NoError(t, err)
	assert.Equal(t, [][]float64{{1, 1}, {3, 1}}, vectors)
}

func TestClientEmbedError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not found", http.StatusNotFound)
	}))
	defer server.Close()

	client, err := NewClient(&Config{BaseURL: server.URL})
	require.NoError(t, err)

	_, err = client.Embed(context.Background(), "x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")
}
