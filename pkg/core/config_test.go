package core_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oceanbase/mindshard-go/pkg/core"
)

func TestDefaultConfigIsValid(t *testing.T) {
	config := core.DefaultConfig()

	require.NoError(t, config.Validate())
	assert.Equal(t, 512, config.Digestor.ChunkSize)
	assert.Equal(t, 50, config.Digestor.ChunkOverlap)
	assert.Equal(t, 4, config.Digestor.WorkerConcurrency)
	assert.Equal(t, 10, config.Memory.FlushThreshold)
	assert.Equal(t, 300, config.Memory.PeriodicFlushIntervalSeconds)
	assert.Equal(t, "conversations", config.LongTermKB)
	assert.Len(t, config.KnowledgeBases, 5)
}

func TestLoadConfigFromEnv(t *testing.T) {
	tests := []struct {
		name    string
		envVars map[string]string
		check   func(t *testing.T, config *core.Config)
	}{
		{
			name: "sqlite with openai",
			envVars: map[string]string{
				"MIND_DATABASE_PROVIDER":  "sqlite",
				"MIND_SQLITE_PATH":        "./test.db",
				"MIND_LLM_PROVIDER":       "openai",
				"MIND_LLM_API_KEY":        "test-key",
				"MIND_EMBEDDING_PROVIDER": "openai",
				"MIND_EMBEDDING_API_KEY":  "test-key",
			},
			check: func(t *testing.T, config *core.Config) {
				assert.Equal(t, "sqlite", config.VectorStore.Provider)
				assert.Equal(t, "./test.db", config.VectorStore.Config["db_path"])
				assert.Equal(t, "openai", config.LLM.Provider)
				assert.Equal(t, "gpt-4o-mini", config.LLM.Model)
				assert.Equal(t, "text-embedding-3-small", config.Embedder.Model)
				assert.Equal(t, "https://api.openai.com/v1", config.Embedder.BaseURL)
			},
		},
		{
			name: "postgres with qwen and deepseek",
			envVars: map[string]string{
				"MIND_DATABASE_PROVIDER":  "postgres",
				"MIND_POSTGRES_PORT":      "6543",
				"MIND_LLM_PROVIDER":       "deepseek",
				"MIND_EMBEDDING_PROVIDER": "qwen",
			},
			check: func(t *testing.T, config *core.Config) {
				assert.Equal(t, 6543, config.VectorStore.Config["port"])
				assert.Equal(t, "disable", config.VectorStore.Config["ssl_mode"])
				assert.Equal(t, "https://api.deepseek.com", config.LLM.BaseURL)
				assert.Equal(t, "deepseek-chat", config.LLM.Model)
				assert.Equal(t, "text-embedding-v4", config.Embedder.Model)
			},
		},
		{
			name: "tier and ingestion settings",
			envVars: map[string]string{
				"MIND_CHUNK_SIZE":                 "256",
				"MIND_CHUNK_OVERLAP":              "16",
				"MIND_SHORT_TERM_FLUSH_THRESHOLD": "3",
				"MIND_PERIODIC_FLUSH_INTERVAL":    "0",
				"MIND_KNOWLEDGE_BASES":            "notes, chat ,",
				"MIND_LONG_TERM_KB":               "chat",
				"MIND_REBUILD_HASHES_ON_START":    "false",
			},
			check: func(t *testing.T, config *core.Config) {
				assert.Equal(t, 256, config.Digestor.ChunkSize)
				assert.Equal(t, 16, config.Digestor.ChunkOverlap)
				assert.Equal(t, 3, config.Memory.FlushThreshold)
				assert.Zero(t, config.Memory.PeriodicFlushInterval())
				assert.False(t, config.Memory.RebuildHashesOnStart)
				assert.Equal(t, []string{"notes", "chat"}, config.KnowledgeBases)
				assert.NoError(t, config.Validate())
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.envVars {
				t.Setenv(k, v)
			}

			config, err := core.LoadConfigFromEnv()
			require.NoError(t, err)
			require.NotNil(t, config)
			tt.check(t, config)
		})
	}
}

func TestLoadConfigFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mindshard.yaml")
	content := `
vector_store:
  provider: sqlite
  config:
    db_path: /tmp/kb.db
digestor:
  chunk_size: 128
  chunk_overlap: 8
knowledge_bases: [alpha, beta]
long_term_kb: beta
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	t.Setenv("MIND_MEMORY_FLUSH_THRESHOLD", "7")

	config, err := core.LoadConfigFromFile(path)
	require.NoError(t, err)

	assert.Equal(t, "sqlite", config.VectorStore.Provider)
	assert.Equal(t, "/tmp/kb.db", config.VectorStore.Config["db_path"])
	assert.Equal(t, 128, config.Digestor.ChunkSize)
	assert.Equal(t, 8, config.Digestor.ChunkOverlap)
	assert.Equal(t, 4, config.Digestor.WorkerConcurrency)
	assert.Equal(t, 7, config.Memory.FlushThreshold)
	assert.Equal(t, []string{"alpha", "beta"}, config.KnowledgeBases)
	assert.Equal(t, "mock", config.Embedder.Provider)
	assert.NoError(t, config.Validate())
}

func TestLoadConfigFromFileMissing(t *testing.T) {
	_, err := core.LoadConfigFromFile(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)

	var memErr *core.MemoryError
	assert.True(t, errors.As(err, &memErr))
	assert.Equal(t, "LoadConfigFromFile", memErr.Op)
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *core.Config)
	}{
		{"unknown embedder", func(c *core.Config) { c.Embedder.Provider = "word2vec" }},
		{"unknown llm", func(c *core.Config) { c.LLM.Provider = "gpt-neo" }},
		{"unknown store", func(c *core.Config) { c.VectorStore.Provider = "faiss" }},
		{"unknown journal", func(c *core.Config) { c.Journal.Provider = "kafka" }},
		{"zero chunk size", func(c *core.Config) { c.Digestor.ChunkSize = 0 }},
		{"negative overlap", func(c *core.Config) { c.Digestor.ChunkOverlap = -1 }},
		{"overlap equals size", func(c *core.Config) { c.Digestor.ChunkOverlap = c.Digestor.ChunkSize }},
		{"zero concurrency", func(c *core.Config) { c.Digestor.WorkerConcurrency = 0 }},
		{"zero threshold", func(c *core.Config) { c.Memory.FlushThreshold = 0 }},
		{"negative interval", func(c *core.Config) { c.Memory.PeriodicFlushIntervalSeconds = -5 }},
		{"no knowledge bases", func(c *core.Config) { c.KnowledgeBases = nil }},
		{"long term kb missing", func(c *core.Config) { c.LongTermKB = "elsewhere" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := core.DefaultConfig()
			tt.mutate(config)

			err := config.Validate()
			require.Error(t, err)
			assert.ErrorIs(t, err, core.ErrInvalidConfig)
		})
	}
}
