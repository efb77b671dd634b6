package core

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config contains the complete configuration for a mindshard client.
//
// It includes settings for:
//   - Embedding provider (for vector generation)
//   - Summarizer backend (for short-term flushes)
//   - Vector store (one collection per knowledge base)
//   - Ingestion, memory tiers, journal and metrics
//
// Example:
//
//	config := core.DefaultConfig()
//	config.VectorStore = core.VectorStoreConfig{
//	    Provider: "sqlite",
//	    Config: map[string]interface{}{
//	        "db_path": "./mindshard.db",
//	    },
//	}
type Config struct {
	// Embedder contains embedding provider configuration.
	Embedder EmbedderConfig `json:"embedder" mapstructure:"embedder"`

	// LLM contains the summarizer backend configuration.
	LLM LLMConfig `json:"llm" mapstructure:"llm"`

	// VectorStore contains vector store configuration.
	VectorStore VectorStoreConfig `json:"vector_store" mapstructure:"vector_store"`

	// Digestor contains chunking and embedding pool settings.
	Digestor DigestorConfig `json:"digestor" mapstructure:"digestor"`

	// Memory contains memory tier settings.
	Memory MemoryConfig `json:"memory" mapstructure:"memory"`

	// Journal contains entry journal settings (optional).
	Journal JournalConfig `json:"journal" mapstructure:"journal"`

	// Metrics contains metrics settings (optional).
	Metrics MetricsConfig `json:"metrics" mapstructure:"metrics"`

	// KnowledgeBases lists the digestor instances registered at startup.
	KnowledgeBases []string `json:"knowledge_bases" mapstructure:"knowledge_bases"`

	// LongTermKB names the knowledge base backing the long-term tier.
	// It must appear in KnowledgeBases.
	LongTermKB string `json:"long_term_kb" mapstructure:"long_term_kb"`

	// CatalogPath is a JSON file recording knowledge bases and groups
	// created at runtime, so they are registered again on the next start.
	// Empty keeps them in memory only.
	CatalogPath string `json:"catalog_path,omitempty" mapstructure:"catalog_path"`
}

// EmbedderConfig contains configuration for the embedding provider.
//
// Supported providers: openai, qwen, ollama, mock
type EmbedderConfig struct {
	// Provider is the embedding provider name.
	Provider string `json:"provider" mapstructure:"provider"`

	// APIKey is the API key for the embedding provider.
	APIKey string `json:"api_key" mapstructure:"api_key"`

	// Model is the embedding model name.
	Model string `json:"model" mapstructure:"model"`

	// BaseURL is the base URL for the API (optional, uses provider default if empty).
	BaseURL string `json:"base_url,omitempty" mapstructure:"base_url"`

	// Dimensions is the dimension of the embedding vectors.
	Dimensions int `json:"dimensions,omitempty" mapstructure:"dimensions"`

	// CacheSize is the number of embeddings kept in the in-process cache.
	// Zero disables caching.
	CacheSize int `json:"cache_size,omitempty" mapstructure:"cache_size"`
}

// LLMConfig contains configuration for the summarizer backend.
//
// Supported providers: openai, deepseek, qwen, anthropic, ollama, extractive
type LLMConfig struct {
	// Provider is the summarizer backend name.
	Provider string `json:"provider" mapstructure:"provider"`

	// APIKey is the API key for the LLM provider.
	APIKey string `json:"api_key" mapstructure:"api_key"`

	// Model is the model name to use.
	Model string `json:"model" mapstructure:"model"`

	// BaseURL is the base URL for the API (optional).
	BaseURL string `json:"base_url,omitempty" mapstructure:"base_url"`

	// MaxSummaryLength caps extractive summaries, in characters.
	MaxSummaryLength int `json:"max_summary_length,omitempty" mapstructure:"max_summary_length"`

	// StrategyThreshold routes texts shorter than this many characters to the
	// extractive summarizer even when an LLM is configured. Zero always uses the LLM.
	StrategyThreshold int `json:"strategy_threshold,omitempty" mapstructure:"strategy_threshold"`
}

// VectorStoreConfig contains configuration for the vector store.
//
// Supported providers: memory, sqlite, sqlitevec, postgres, oceanbase
type VectorStoreConfig struct {
	// Provider is the vector store provider name.
	Provider string `json:"provider" mapstructure:"provider"`

	// Config contains provider-specific configuration.
	// For memory: persist_dir (optional, one subdirectory per knowledge base)
	// For SQLite: db_path, collection_prefix
	// For sqlite-vec: db_path, collection_prefix, embedding_model_dims
	// For OceanBase: host, port, user, password, db_name, collection_prefix, embedding_model_dims
	// For PostgreSQL: host, port, user, password, db_name, collection_prefix, embedding_model_dims, ssl_mode
	Config map[string]interface{} `json:"config" mapstructure:"config"`
}

// DigestorConfig contains ingestion settings shared by every knowledge base.
type DigestorConfig struct {
	// ChunkSize is the maximum number of characters per chunk.
	ChunkSize int `json:"chunk_size" mapstructure:"chunk_size"`

	// ChunkOverlap is the number of characters shared with the previous chunk.
	ChunkOverlap int `json:"chunk_overlap" mapstructure:"chunk_overlap"`

	// WorkerConcurrency bounds the number of concurrent embedding calls.
	WorkerConcurrency int `json:"worker_concurrency" mapstructure:"worker_concurrency"`

	// EmbedTimeoutSeconds bounds the wait for a batch of chunk embeddings.
	EmbedTimeoutSeconds int `json:"embed_timeout_seconds" mapstructure:"embed_timeout_seconds"`
}

// EmbedTimeout returns EmbedTimeoutSeconds as a duration.
func (c DigestorConfig) EmbedTimeout() time.Duration {
	return time.Duration(c.EmbedTimeoutSeconds) * time.Second
}

// MemoryConfig contains memory tier settings.
type MemoryConfig struct {
	// FlushThreshold is the working tier size that triggers a short-term flush.
	FlushThreshold int `json:"flush_threshold" mapstructure:"flush_threshold"`

	// PeriodicFlushIntervalSeconds is the promotion interval. Zero disables it.
	PeriodicFlushIntervalSeconds int `json:"periodic_flush_interval_seconds" mapstructure:"periodic_flush_interval_seconds"`

	// RebuildHashesOnStart reloads each digestor's seen-hash set from its store.
	RebuildHashesOnStart bool `json:"rebuild_hashes_on_start" mapstructure:"rebuild_hashes_on_start"`
}

// PeriodicFlushInterval returns PeriodicFlushIntervalSeconds as a duration.
func (c MemoryConfig) PeriodicFlushInterval() time.Duration {
	return time.Duration(c.PeriodicFlushIntervalSeconds) * time.Second
}

// JournalConfig contains configuration for the entry journal.
//
// Supported providers: "" (disabled), file, redis
type JournalConfig struct {
	Provider      string `json:"provider" mapstructure:"provider"`
	Path          string `json:"path,omitempty" mapstructure:"path"`
	RedisAddr     string `json:"redis_addr,omitempty" mapstructure:"redis_addr"`
	RedisPassword string `json:"redis_password,omitempty" mapstructure:"redis_password"`
	RedisDB       int    `json:"redis_db,omitempty" mapstructure:"redis_db"`
	RedisKey      string `json:"redis_key,omitempty" mapstructure:"redis_key"`
}

// MetricsConfig contains Prometheus settings.
type MetricsConfig struct {
	// Enabled registers Prometheus collectors.
	Enabled bool `json:"enabled" mapstructure:"enabled"`

	// Addr is the listen address for the /metrics endpoint in `mindshard serve`.
	Addr string `json:"addr,omitempty" mapstructure:"addr"`
}

// DefaultKnowledgeBases are registered when no list is configured.
var DefaultKnowledgeBases = []string{
	"conversations",
	"personal_memory",
	"prompt_cookbook",
	"workflow_cookbook",
	"role_cookbook",
}

// DefaultConfig returns a configuration that runs fully in-process: the mock
// embedder, the extractive summarizer and the in-memory vector store.
func DefaultConfig() *Config {
	return &Config{
		Embedder: EmbedderConfig{
			Provider:   "mock",
			Dimensions: 256,
		},
		LLM: LLMConfig{
			Provider:         "extractive",
			MaxSummaryLength: 1000,
		},
		VectorStore: VectorStoreConfig{
			Provider: "memory",
			Config:   map[string]interface{}{},
		},
		Digestor: DigestorConfig{
			ChunkSize:           512,
			ChunkOverlap:        50,
			WorkerConcurrency:   4,
			EmbedTimeoutSeconds: 30,
		},
		Memory: MemoryConfig{
			FlushThreshold:               10,
			PeriodicFlushIntervalSeconds: 300,
			RebuildHashesOnStart:         true,
		},
		Metrics: MetricsConfig{
			Addr: ":9464",
		},
		KnowledgeBases: append([]string(nil), DefaultKnowledgeBases...),
		LongTermKB:     "conversations",
	}
}

// LoadConfigFromEnv loads configuration from environment variables.
//
// The function:
//  1. Loads MIND_ENV_FILE if set, otherwise searches for .env or .env.example
//     files (up to 5 directory levels up)
//  2. Parses MIND_-prefixed environment variables over DefaultConfig
//
// Supported environment variables:
//   - MIND_DATABASE_PROVIDER (memory, sqlite, sqlitevec, postgres, oceanbase)
//   - MIND_MEMORY_PERSIST_DIR, MIND_SQLITE_PATH, MIND_POSTGRES_HOST, MIND_OCEANBASE_HOST, etc.
//   - MIND_EMBEDDING_PROVIDER, MIND_EMBEDDING_API_KEY, MIND_EMBEDDING_MODEL, MIND_EMBEDDING_DIMS
//   - MIND_LLM_PROVIDER, MIND_LLM_API_KEY, MIND_LLM_MODEL, MIND_LLM_BASE_URL
//   - MIND_CHUNK_SIZE, MIND_CHUNK_OVERLAP, MIND_WORKER_CONCURRENCY, MIND_EMBED_TIMEOUT
//   - MIND_SHORT_TERM_FLUSH_THRESHOLD, MIND_PERIODIC_FLUSH_INTERVAL
//   - MIND_JOURNAL_PROVIDER, MIND_JOURNAL_PATH, MIND_REDIS_ADDR
//   - MIND_KNOWLEDGE_BASES (comma separated), MIND_LONG_TERM_KB, MIND_CATALOG_PATH
//
// Example:
//
//	config, err := core.LoadConfigFromEnv()
//	if err != nil {
//	    log.Fatal(err)
//	}
func LoadConfigFromEnv() (*Config, error) {
	if override := os.Getenv("MIND_ENV_FILE"); override != "" {
		if err := godotenv.Load(override); err != nil {
			return nil, NewMemoryError("LoadConfigFromEnv", err)
		}
	} else if envPath, found := FindEnvFile(); found {
		_ = godotenv.Load(envPath)
	}

	config := DefaultConfig()

	provider := getEnvOrDefault("MIND_DATABASE_PROVIDER", config.VectorStore.Provider)
	vectorStoreConfig := map[string]interface{}{}

	switch provider {
	case "memory":
		if dir := os.Getenv("MIND_MEMORY_PERSIST_DIR"); dir != "" {
			vectorStoreConfig["persist_dir"] = dir
		}
	case "oceanbase":
		vectorStoreConfig = map[string]interface{}{
			"host":                 getEnvOrDefault("MIND_OCEANBASE_HOST", "127.0.0.1"),
			"port":                 getEnvInt("MIND_OCEANBASE_PORT", 2881),
			"user":                 getEnvOrDefault("MIND_OCEANBASE_USER", "root@sys"),
			"password":             os.Getenv("MIND_OCEANBASE_PASSWORD"),
			"db_name":              getEnvOrDefault("MIND_OCEANBASE_DATABASE", "mindshard"),
			"collection_prefix":    getEnvOrDefault("MIND_OCEANBASE_COLLECTION_PREFIX", "kb"),
			"embedding_model_dims": getEnvInt("MIND_OCEANBASE_EMBEDDING_MODEL_DIMS", 1536),
		}
	case "sqlite", "sqlitevec":
		vectorStoreConfig = map[string]interface{}{
			"db_path":              getEnvOrDefault("MIND_SQLITE_PATH", "./mindshard.db"),
			"collection_prefix":    getEnvOrDefault("MIND_SQLITE_COLLECTION_PREFIX", "kb"),
			"embedding_model_dims": getEnvInt("MIND_SQLITE_EMBEDDING_MODEL_DIMS", 1536),
		}
	case "postgres":
		vectorStoreConfig = map[string]interface{}{
			"host":                 getEnvOrDefault("MIND_POSTGRES_HOST", "localhost"),
			"port":                 getEnvInt("MIND_POSTGRES_PORT", 5432),
			"user":                 getEnvOrDefault("MIND_POSTGRES_USER", "postgres"),
			"password":             os.Getenv("MIND_POSTGRES_PASSWORD"),
			"db_name":              getEnvOrDefault("MIND_POSTGRES_DATABASE", "mindshard"),
			"collection_prefix":    getEnvOrDefault("MIND_POSTGRES_COLLECTION_PREFIX", "kb"),
			"embedding_model_dims": getEnvInt("MIND_POSTGRES_EMBEDDING_MODEL_DIMS", 1536),
			"ssl_mode":             getEnvOrDefault("MIND_POSTGRES_SSLMODE", "disable"),
		}
	}
	config.VectorStore = VectorStoreConfig{Provider: provider, Config: vectorStoreConfig}

	embedderProvider := getEnvOrDefault("MIND_EMBEDDING_PROVIDER", config.Embedder.Provider)
	embedderModel := os.Getenv("MIND_EMBEDDING_MODEL")
	embedderBaseURL := os.Getenv("MIND_EMBEDDING_BASE_URL")
	switch embedderProvider {
	case "qwen":
		if embedderBaseURL == "" {
			embedderBaseURL = "https://dashscope.aliyuncs.com/api/v1"
		}
		if embedderModel == "" {
			embedderModel = "text-embedding-v4"
		}
	case "openai":
		if embedderBaseURL == "" {
			embedderBaseURL = "https://api.openai.com/v1"
		}
		if embedderModel == "" {
			embedderModel = "text-embedding-3-small"
		}
	case "ollama":
		if embedderBaseURL == "" {
			embedderBaseURL = "http://localhost:11434"
		}
		if embedderModel == "" {
			embedderModel = "nomic-embed-text"
		}
	}
	config.Embedder = EmbedderConfig{
		Provider:   embedderProvider,
		APIKey:     os.Getenv("MIND_EMBEDDING_API_KEY"),
		Model:      embedderModel,
		BaseURL:    embedderBaseURL,
		Dimensions: getEnvInt("MIND_EMBEDDING_DIMS", config.Embedder.Dimensions),
		CacheSize:  getEnvInt("MIND_EMBEDDING_CACHE_SIZE", config.Embedder.CacheSize),
	}

	llmProvider := getEnvOrDefault("MIND_LLM_PROVIDER", config.LLM.Provider)
	var llmBaseURL, defaultModel string
	switch llmProvider {
	case "deepseek":
		llmBaseURL = "https://api.deepseek.com"
		defaultModel = "deepseek-chat"
	case "qwen":
		llmBaseURL = "https://dashscope.aliyuncs.com/compatible-mode/v1"
		defaultModel = "qwen-plus"
	case "ollama":
		llmBaseURL = "http://localhost:11434"
		defaultModel = "llama3.1:8b"
	case "anthropic":
		defaultModel = "claude-3-5-haiku-latest"
	case "openai":
		defaultModel = "gpt-4o-mini"
	}
	config.LLM = LLMConfig{
		Provider:          llmProvider,
		APIKey:            os.Getenv("MIND_LLM_API_KEY"),
		Model:             getEnvOrDefault("MIND_LLM_MODEL", defaultModel),
		BaseURL:           getEnvOrDefault("MIND_LLM_BASE_URL", llmBaseURL),
		MaxSummaryLength:  getEnvInt("MIND_SUMMARY_MAX_LENGTH", config.LLM.MaxSummaryLength),
		StrategyThreshold: getEnvInt("MIND_SUMMARY_STRATEGY_THRESHOLD", config.LLM.StrategyThreshold),
	}

	config.Digestor = DigestorConfig{
		ChunkSize:           getEnvInt("MIND_CHUNK_SIZE", config.Digestor.ChunkSize),
		ChunkOverlap:        getEnvInt("MIND_CHUNK_OVERLAP", config.Digestor.ChunkOverlap),
		WorkerConcurrency:   getEnvInt("MIND_WORKER_CONCURRENCY", config.Digestor.WorkerConcurrency),
		EmbedTimeoutSeconds: getEnvInt("MIND_EMBED_TIMEOUT", config.Digestor.EmbedTimeoutSeconds),
	}

	config.Memory = MemoryConfig{
		FlushThreshold:               getEnvInt("MIND_SHORT_TERM_FLUSH_THRESHOLD", config.Memory.FlushThreshold),
		PeriodicFlushIntervalSeconds: getEnvInt("MIND_PERIODIC_FLUSH_INTERVAL", config.Memory.PeriodicFlushIntervalSeconds),
		RebuildHashesOnStart:         getEnvBool("MIND_REBUILD_HASHES_ON_START", config.Memory.RebuildHashesOnStart),
	}

	config.Journal = JournalConfig{
		Provider:      os.Getenv("MIND_JOURNAL_PROVIDER"),
		Path:          getEnvOrDefault("MIND_JOURNAL_PATH", "./mindshard_journal.jsonl"),
		RedisAddr:     getEnvOrDefault("MIND_REDIS_ADDR", "localhost:6379"),
		RedisPassword: os.Getenv("MIND_REDIS_PASSWORD"),
		RedisDB:       getEnvInt("MIND_REDIS_DB", 0),
		RedisKey:      getEnvOrDefault("MIND_REDIS_JOURNAL_KEY", "mindshard:journal"),
	}

	config.Metrics = MetricsConfig{
		Enabled: getEnvBool("MIND_METRICS_ENABLED", config.Metrics.Enabled),
		Addr:    getEnvOrDefault("MIND_METRICS_ADDR", config.Metrics.Addr),
	}

	if kbs := os.Getenv("MIND_KNOWLEDGE_BASES"); kbs != "" {
		config.KnowledgeBases = splitList(kbs)
	}
	config.LongTermKB = getEnvOrDefault("MIND_LONG_TERM_KB", config.LongTermKB)
	config.CatalogPath = os.Getenv("MIND_CATALOG_PATH")

	return config, nil
}

// LoadConfigFromEnvFile loads configuration from a specific .env file.
func LoadConfigFromEnvFile(envPath string) (*Config, error) {
	if err := godotenv.Load(envPath); err != nil {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}
	return LoadConfigFromEnv()
}

// LoadConfigFromFile loads configuration from a YAML, JSON or TOML file.
//
// Values not present in the file fall back to DefaultConfig. Any key can be
// overridden from the environment with the MIND_ prefix and underscores for
// nesting, e.g. MIND_DIGESTOR_CHUNK_SIZE or MIND_VECTOR_STORE_PROVIDER.
func LoadConfigFromFile(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v, DefaultConfig())

	v.SetEnvPrefix("MIND")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, NewMemoryError("LoadConfigFromFile", err)
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, NewMemoryError("LoadConfigFromFile", err)
	}
	if config.VectorStore.Config == nil {
		config.VectorStore.Config = map[string]interface{}{}
	}

	return &config, nil
}

// setDefaults registers every configuration key with viper so that
// AutomaticEnv overrides apply to keys missing from the file.
func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("embedder.provider", d.Embedder.Provider)
	v.SetDefault("embedder.api_key", d.Embedder.APIKey)
	v.SetDefault("embedder.model", d.Embedder.Model)
	v.SetDefault("embedder.base_url", d.Embedder.BaseURL)
	v.SetDefault("embedder.dimensions", d.Embedder.Dimensions)
	v.SetDefault("embedder.cache_size", d.Embedder.CacheSize)

	v.SetDefault("llm.provider", d.LLM.Provider)
	v.SetDefault("llm.api_key", d.LLM.APIKey)
	v.SetDefault("llm.model", d.LLM.Model)
	v.SetDefault("llm.base_url", d.LLM.BaseURL)
	v.SetDefault("llm.max_summary_length", d.LLM.MaxSummaryLength)
	v.SetDefault("llm.strategy_threshold", d.LLM.StrategyThreshold)

	v.SetDefault("vector_store.provider", d.VectorStore.Provider)

	v.SetDefault("digestor.chunk_size", d.Digestor.ChunkSize)
	v.SetDefault("digestor.chunk_overlap", d.Digestor.ChunkOverlap)
	v.SetDefault("digestor.worker_concurrency", d.Digestor.WorkerConcurrency)
	v.SetDefault("digestor.embed_timeout_seconds", d.Digestor.EmbedTimeoutSeconds)

	v.SetDefault("memory.flush_threshold", d.Memory.FlushThreshold)
	v.SetDefault("memory.periodic_flush_interval_seconds", d.Memory.PeriodicFlushIntervalSeconds)
	v.SetDefault("memory.rebuild_hashes_on_start", d.Memory.RebuildHashesOnStart)

	v.SetDefault("journal.provider", d.Journal.Provider)
	v.SetDefault("journal.path", d.Journal.Path)
	v.SetDefault("journal.redis_addr", d.Journal.RedisAddr)
	v.SetDefault("journal.redis_password", d.Journal.RedisPassword)
	v.SetDefault("journal.redis_db", d.Journal.RedisDB)
	v.SetDefault("journal.redis_key", d.Journal.RedisKey)

	v.SetDefault("metrics.enabled", d.Metrics.Enabled)
	v.SetDefault("metrics.addr", d.Metrics.Addr)

	v.SetDefault("knowledge_bases", d.KnowledgeBases)
	v.SetDefault("long_term_kb", d.LongTermKB)
	v.SetDefault("catalog_path", d.CatalogPath)
}

var (
	knownEmbedders    = []string{"openai", "qwen", "ollama", "mock"}
	knownLLMs         = []string{"openai", "deepseek", "qwen", "anthropic", "ollama", "extractive"}
	knownVectorStores = []string{"memory", "sqlite", "sqlitevec", "postgres", "oceanbase"}
	knownJournals     = []string{"", "file", "redis"}
)

// Validate validates the configuration.
//
// Returns a MemoryError wrapping ErrInvalidConfig that names the first
// offending field, or nil.
func (c *Config) Validate() error {
	invalid := func(format string, args ...interface{}) error {
		return Errorf("Validate", ErrInvalidConfig, format, args...)
	}

	if !contains(knownEmbedders, c.Embedder.Provider) {
		return invalid("embedder.provider %q", c.Embedder.Provider)
	}
	if !contains(knownLLMs, c.LLM.Provider) {
		return invalid("llm.provider %q", c.LLM.Provider)
	}
	if !contains(knownVectorStores, c.VectorStore.Provider) {
		return invalid("vector_store.provider %q", c.VectorStore.Provider)
	}
	if !contains(knownJournals, c.Journal.Provider) {
		return invalid("journal.provider %q", c.Journal.Provider)
	}
	if c.Digestor.ChunkSize <= 0 {
		return invalid("digestor.chunk_size must be positive, got %d", c.Digestor.ChunkSize)
	}
	if c.Digestor.ChunkOverlap < 0 || c.Digestor.ChunkOverlap >= c.Digestor.ChunkSize {
		return invalid("digestor.chunk_overlap must be in [0, %d), got %d", c.Digestor.ChunkSize, c.Digestor.ChunkOverlap)
	}
	if c.Digestor.WorkerConcurrency <= 0 {
		return invalid("digestor.worker_concurrency must be positive, got %d", c.Digestor.WorkerConcurrency)
	}
	if c.Memory.FlushThreshold <= 0 {
		return invalid("memory.flush_threshold must be positive, got %d", c.Memory.FlushThreshold)
	}
	if c.Memory.PeriodicFlushIntervalSeconds < 0 {
		return invalid("memory.periodic_flush_interval_seconds must not be negative")
	}
	if len(c.KnowledgeBases) == 0 {
		return invalid("knowledge_bases is empty")
	}
	if !contains(c.KnowledgeBases, c.LongTermKB) {
		return invalid("long_term_kb %q is not a configured knowledge base", c.LongTermKB)
	}
	return nil
}

// getEnvOrDefault gets an environment variable or returns the default value.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// FindEnvFile searches for .env or .env.example files.
//
// The search:
//  1. Checks the current directory
//  2. Searches up to 5 directory levels up
//  3. Returns the first .env or .env.example file found
func FindEnvFile() (string, bool) {
	if _, err := os.Stat(".env"); err == nil {
		return ".env", true
	}
	if _, err := os.Stat(".env.example"); err == nil {
		return ".env.example", true
	}

	dir, _ := os.Getwd()
	for i := 0; i < 5; i++ {
		envPath := filepath.Join(dir, ".env")
		envExamplePath := filepath.Join(dir, ".env.example")

		if _, err := os.Stat(envPath); err == nil {
			return envPath, true
		}
		if _, err := os.Stat(envExamplePath); err == nil {
			return envExamplePath, true
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return "", false
}
