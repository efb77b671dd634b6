package client

import (
	"log/slog"
	"path/filepath"

	"github.com/spf13/cast"

	"github.com/oceanbase/mindshard-go/pkg/core"
	"github.com/oceanbase/mindshard-go/pkg/embedder"
	"github.com/oceanbase/mindshard-go/pkg/embedder/cached"
	"github.com/oceanbase/mindshard-go/pkg/embedder/mock"
	ollamaEmbedder "github.com/oceanbase/mindshard-go/pkg/embedder/ollama"
	openaiEmbedder "github.com/oceanbase/mindshard-go/pkg/embedder/openai"
	qwenEmbedder "github.com/oceanbase/mindshard-go/pkg/embedder/qwen"
	"github.com/oceanbase/mindshard-go/pkg/llm"
	anthropicLLM "github.com/oceanbase/mindshard-go/pkg/llm/anthropic"
	ollamaLLM "github.com/oceanbase/mindshard-go/pkg/llm/ollama"
	openaiLLM "github.com/oceanbase/mindshard-go/pkg/llm/openai"
	"github.com/oceanbase/mindshard-go/pkg/storage"
	chromemStore "github.com/oceanbase/mindshard-go/pkg/storage/chromem"
	"github.com/oceanbase/mindshard-go/pkg/storage/oceanbase"
	postgresStore "github.com/oceanbase/mindshard-go/pkg/storage/postgres"
	sqliteStore "github.com/oceanbase/mindshard-go/pkg/storage/sqlite"
	"github.com/oceanbase/mindshard-go/pkg/storage/sqlitevec"
)

const defaultCollectionPrefix = "kb"

// initStorage opens the collection backing knowledge base kb. Every
// knowledge base gets its own collection named <collection_prefix>_<kb>.
func initStorage(cfg core.VectorStoreConfig, kb string) (storage.VectorStore, error) {
	get := func(key string) string {
		return cast.ToString(cfg.Config[key])
	}
	getInt := func(key string) int {
		return cast.ToInt(cfg.Config[key])
	}

	prefix := get("collection_prefix")
	if prefix == "" {
		prefix = defaultCollectionPrefix
	}
	collection := storage.TableName(prefix+"_", kb)

	switch cfg.Provider {
	case "memory":
		var dir string
		if base := get("persist_dir"); base != "" {
			dir = filepath.Join(base, kb)
		}
		return chromemStore.NewClient(&chromemStore.Config{
			CollectionName: collection,
			PersistDir:     dir,
		})
	case "sqlite":
		return sqliteStore.NewClient(&sqliteStore.Config{
			DBPath:             get("db_path"),
			CollectionName:     collection,
			EmbeddingModelDims: getInt("embedding_model_dims"),
		})
	case "sqlitevec":
		return sqlitevec.NewClient(&sqlitevec.Config{
			DBPath:             get("db_path"),
			CollectionName:     collection,
			EmbeddingModelDims: getInt("embedding_model_dims"),
		})
	case "postgres":
		return postgresStore.NewClient(&postgresStore.Config{
			Host:               get("host"),
			Port:               getInt("port"),
			User:               get("user"),
			Password:           get("password"),
			DBName:             get("db_name"),
			CollectionName:     collection,
			EmbeddingModelDims: getInt("embedding_model_dims"),
			SSLMode:            get("ssl_mode"),
		})
	case "oceanbase":
		return oceanbase.NewClient(&oceanbase.Config{
			Host:               get("host"),
			Port:               getInt("port"),
			User:               get("user"),
			Password:           get("password"),
			DBName:             get("db_name"),
			CollectionName:     collection,
			EmbeddingModelDims: getInt("embedding_model_dims"),
		})
	default:
		return nil, core.Errorf("initStorage", core.ErrInvalidConfig, "unsupported vector store provider: %s", cfg.Provider)
	}
}

// initEmbedder builds the embedding provider, wrapped in a cache when
// CacheSize is positive.
func initEmbedder(cfg core.EmbedderConfig) (embedder.Provider, error) {
	var (
		provider embedder.Provider
		err      error
	)

	switch cfg.Provider {
	case "openai":
		provider, err = openaiEmbedder.NewClient(&openaiEmbedder.Config{
			APIKey:     cfg.APIKey,
			Model:      cfg.Model,
			BaseURL:    cfg.BaseURL,
			Dimensions: cfg.Dimensions,
		})
	case "qwen":
		provider, err = qwenEmbedder.NewClient(&qwenEmbedder.Config{
			APIKey:     cfg.APIKey,
			Model:      cfg.Model,
			BaseURL:    cfg.BaseURL,
			Dimensions: cfg.Dimensions,
		})
	case "ollama":
		provider, err = ollamaEmbedder.NewClient(&ollamaEmbedder.Config{
			BaseURL:    cfg.BaseURL,
			Model:      cfg.Model,
			Dimensions: cfg.Dimensions,
		})
	case "mock":
		provider = mock.New(cfg.Dimensions)
	default:
		return nil, core.Errorf("initEmbedder", core.ErrInvalidConfig, "unsupported embedder provider: %s", cfg.Provider)
	}
	if err != nil {
		return nil, err
	}

	if cfg.CacheSize <= 0 {
		return provider, nil
	}
	wrapped, err := cached.New(provider, &cached.Config{MaxEntries: int64(cfg.CacheSize)})
	if err != nil {
		_ = provider.Close()
		return nil, err
	}
	return wrapped, nil
}

// initLLM builds the chat provider used for abstractive summaries. The
// extractive backend needs none and returns (nil, nil).
func initLLM(cfg core.LLMConfig) (llm.Provider, error) {
	var (
		provider llm.Provider
		err      error
	)

	switch cfg.Provider {
	case "extractive":
		return nil, nil
	case "openai", "deepseek", "qwen":
		provider, err = openaiLLM.NewClient(&openaiLLM.Config{
			Provider: cfg.Provider,
			APIKey:   cfg.APIKey,
			Model:    cfg.Model,
			BaseURL:  cfg.BaseURL,
		})
	case "anthropic":
		provider, err = anthropicLLM.NewClient(&anthropicLLM.Config{
			APIKey:  cfg.APIKey,
			Model:   cfg.Model,
			BaseURL: cfg.BaseURL,
		})
	case "ollama":
		provider, err = ollamaLLM.NewClient(&ollamaLLM.Config{
			APIKey:  cfg.APIKey,
			Model:   cfg.Model,
			BaseURL: cfg.BaseURL,
		})
	default:
		return nil, core.Errorf("initLLM", core.ErrInvalidConfig, "unsupported llm provider: %s", cfg.Provider)
	}
	if err != nil {
		return nil, err
	}
	return provider, nil
}

// newSummarizer returns the extractive summarizer alone when provider is
// nil, and otherwise routes long text to the provider with the extractive
// summarizer as fallback.
func newSummarizer(cfg core.LLMConfig, provider llm.Provider, logger *slog.Logger) llm.Summarizer {
	extractive := llm.NewExtractiveSummarizer(cfg.MaxSummaryLength)
	if provider == nil {
		return extractive
	}
	return llm.NewStrategySummarizer(extractive, llm.NewLLMSummarizer(provider, 0), cfg.StrategyThreshold, logger)
}
