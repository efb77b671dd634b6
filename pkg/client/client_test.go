package client

import (
	"context"
	"io"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oceanbase/mindshard-go/pkg/core"
	"github.com/oceanbase/mindshard-go/pkg/digestor"
	"github.com/oceanbase/mindshard-go/pkg/embedder/cached"
	"github.com/oceanbase/mindshard-go/pkg/layers"
	"github.com/oceanbase/mindshard-go/pkg/llm"
)

func testConfig() *core.Config {
	cfg := core.DefaultConfig()
	cfg.Embedder.Dimensions = 32
	cfg.Memory.RebuildHashesOnStart = false
	return cfg
}

func withJournal(t *testing.T, cfg *core.Config) *core.Config {
	t.Helper()
	cfg.Journal = core.JournalConfig{Provider: "file", Path: filepath.Join(t.TempDir(), "journal.jsonl")}
	return cfg
}

func newTestClient(t *testing.T, cfg *core.Config, opts ...Option) *Client {
	t.Helper()
	c, err := NewClient(cfg, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestNewClientDefaults(t *testing.T) {
	c := newTestClient(t, testConfig())

	assert.Equal(t, []string{
		"conversations", "personal_memory", "prompt_cookbook", "role_cookbook", "workflow_cookbook",
	}, c.Registry().ListInstances())

	members, err := c.Registry().GroupMembers(AllGroup)
	require.NoError(t, err)
	assert.Len(t, members, 5)

	assert.Same(t, c.Layers().LongTerm.Digestor(), mustInstance(t, c, "conversations"))
	assert.Nil(t, c.Journal())
	assert.Nil(t, c.MetricsHandler())
}

func mustInstance(t *testing.T, c *Client, kb string) *digestor.Digestor {
	t.Helper()
	d, err := c.Registry().GetInstance(kb)
	require.NoError(t, err)
	return d
}

func TestNewClientInvalidConfig(t *testing.T) {
	cfg := testConfig()
	cfg.LongTermKB = "missing"

	_, err := NewClient(cfg)
	assert.ErrorIs(t, err, core.ErrInvalidConfig)
}

func TestIngestAndQuery(t *testing.T) {
	c := newTestClient(t, testConfig())
	ctx := context.Background()

	stats, err := c.Ingest(ctx, "prompt_cookbook", "test", []core.Document{
		{Path: "a.md", Content: "Always answer in English."},
		{Path: "b.md", Content: "Prefer short answers."},
	}, false)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Ingested)

	results, err := c.Query(ctx, "prompt_cookbook", "Always answer in English.", 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "a.md", results[0].Metadata["path"])

	merged, err := c.QueryGroup(ctx, AllGroup, "short answers", 2, 0)
	require.NoError(t, err)
	assert.Len(t, merged, 2)

	_, err = c.Ingest(ctx, "nope", "test", nil, false)
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestRememberFlushesIntoLongTerm(t *testing.T) {
	cfg := testConfig()
	cfg.Memory.FlushThreshold = 2
	c := newTestClient(t, cfg)
	ctx := context.Background()

	_, _, flushed := c.Remember(ctx, "User prefers Go.", nil)
	assert.False(t, flushed)

	_, summary, flushed := c.Remember(ctx, "User lives in Lisbon.", map[string]interface{}{"session": "s1"})
	require.True(t, flushed)
	assert.Contains(t, summary, "User prefers Go.")
	assert.Equal(t, 0, c.Layers().Working.Len())

	items := c.Recall(ctx, "Go", layers.DefaultKWork, layers.DefaultKLong)
	require.NotEmpty(t, items)
	assert.Equal(t, layers.SourceLongTerm, items[0].Source)
}

func TestFlush(t *testing.T) {
	c := newTestClient(t, testConfig())
	ctx := context.Background()

	_, ok := c.Flush(ctx)
	assert.False(t, ok)

	c.Remember(ctx, "One note.", nil)
	summary, ok := c.Flush(ctx)
	require.True(t, ok)
	assert.Equal(t, "One note.", summary)
}

func TestCommitScratch(t *testing.T) {
	ctx := context.Background()

	t.Run("without journal", func(t *testing.T) {
		c := newTestClient(t, testConfig())
		_, err := c.CommitScratch(ctx)
		assert.ErrorIs(t, err, core.ErrNotConfigured)
	})

	t.Run("empty", func(t *testing.T) {
		c := newTestClient(t, withJournal(t, testConfig()))
		_, err := c.CommitScratch(ctx)
		assert.ErrorIs(t, err, core.ErrEmptyScratchpad)
	})

	t.Run("commits working entries", func(t *testing.T) {
		c := newTestClient(t, withJournal(t, testConfig()))
		first, _, _ := c.Remember(ctx, "first", nil)
		second, _, _ := c.Remember(ctx, "second", nil)

		entry, err := c.CommitScratch(ctx)
		require.NoError(t, err)
		assert.Equal(t, core.EntryTypeSummary, entry.Type)
		assert.Equal(t, "first\nsecond", entry.Content)
		assert.Equal(t, []interface{}{first.ID, second.ID}, entry.Metadata[layers.MetaSourceEntryIDs])
		assert.Equal(t, 0, c.Layers().Working.Len())

		journaled, err := c.Journal().Recent(ctx, 0)
		require.NoError(t, err)
		assert.Len(t, journaled, 3)

		n, err := c.Layers().LongTerm.Digestor().Count(ctx)
		require.NoError(t, err)
		assert.Zero(t, n)
	})
}

func TestWorkingTierRestoredFromJournal(t *testing.T) {
	ctx := context.Background()
	cfg := withJournal(t, testConfig())

	c1, err := NewClient(cfg)
	require.NoError(t, err)
	c1.Remember(ctx, "alpha", nil)
	c1.Remember(ctx, "beta", nil)
	require.NoError(t, c1.Close())

	c2, err := NewClient(cfg)
	require.NoError(t, err)
	restored := c2.Layers().Working.List()
	require.Len(t, restored, 2)
	assert.Equal(t, "alpha", restored[0].Content)
	_, err = c2.CommitScratch(ctx)
	require.NoError(t, err)
	require.NoError(t, c2.Close())

	c3 := newTestClient(t, cfg)
	assert.Equal(t, 0, c3.Layers().Working.Len())
}

func TestClearScratchDeletesJournaledTurns(t *testing.T) {
	ctx := context.Background()
	cfg := withJournal(t, testConfig())
	c := newTestClient(t, cfg)

	c.Remember(ctx, "alpha", nil)
	c.Remember(ctx, "beta", nil)

	n, err := c.ClearScratch(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, 0, c.Layers().Working.Len())

	entries, err := c.Journal().Recent(ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestKnowledgeBaseLifecycle(t *testing.T) {
	c := newTestClient(t, testConfig())
	ctx := context.Background()

	require.NoError(t, c.CreateKnowledgeBase(ctx, "notes"))
	assert.ErrorIs(t, c.CreateKnowledgeBase(ctx, "notes"), core.ErrAlreadyExists)
	members, err := c.Registry().GroupMembers(AllGroup)
	require.NoError(t, err)
	assert.Contains(t, members, "notes")

	_, err = c.Ingest(ctx, "notes", "test", []core.Document{{Path: "n.md", Content: "a note"}}, false)
	require.NoError(t, err)

	require.NoError(t, c.UpdateKnowledgeBase(ctx, "notes", 128, 16))
	results, err := c.Query(ctx, "notes", "a note", 1)
	require.NoError(t, err)
	assert.Len(t, results, 1)

	assert.ErrorIs(t, c.UpdateKnowledgeBase(ctx, "notes", 10, 10), core.ErrInvalidArgument)
	assert.ErrorIs(t, c.DeleteKnowledgeBase(ctx, "conversations"), core.ErrInvalidArgument)
	assert.ErrorIs(t, c.UpdateKnowledgeBase(ctx, "conversations", 128, 16), core.ErrInvalidArgument)

	require.NoError(t, c.DeleteKnowledgeBase(ctx, "notes"))
	_, err = c.Registry().GetInstance("notes")
	assert.ErrorIs(t, err, core.ErrNotFound)
	members, err = c.Registry().GroupMembers(AllGroup)
	require.NoError(t, err)
	assert.NotContains(t, members, "notes")
}

func TestClearAll(t *testing.T) {
	cfg := withJournal(t, testConfig())
	ctx := context.Background()

	c, err := NewClient(cfg)
	require.NoError(t, err)
	_, err = c.Ingest(ctx, "personal_memory", "test", []core.Document{{Path: "p", Content: "likes tea"}}, false)
	require.NoError(t, err)
	c.Remember(ctx, "hello", nil)

	require.NoError(t, c.ClearAll(ctx))
	assert.Equal(t, 0, c.Layers().Working.Len())
	results, err := c.Query(ctx, "personal_memory", "likes tea", 5)
	require.NoError(t, err)
	assert.Empty(t, results)
	assert.Len(t, c.Registry().ListInstances(), 5)
	require.NoError(t, c.Close())

	reopened := newTestClient(t, cfg)
	assert.Equal(t, 0, reopened.Layers().Working.Len())
}

func TestIngestDeduplicatesAcrossClientsWithPersistDir(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig()
	cfg.Memory.RebuildHashesOnStart = true
	cfg.VectorStore.Config = map[string]interface{}{"persist_dir": t.TempDir()}
	docs := []core.Document{{Path: "n.md", Content: "a persisted note"}}

	first, err := NewClient(cfg)
	require.NoError(t, err)
	stats, err := first.Ingest(ctx, "personal_memory", "test", docs, false)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Ingested)
	require.NoError(t, first.Close())

	second := newTestClient(t, cfg)
	stats, err = second.Ingest(ctx, "personal_memory", "test", docs, false)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Skipped)

	n, err := mustInstance(t, second, "personal_memory").Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestUpdateKnowledgeBaseKeepsSeenHashes(t *testing.T) {
	ctx := context.Background()
	c := newTestClient(t, testConfig())
	docs := []core.Document{{Path: "n.md", Content: "a note"}}

	require.NoError(t, c.CreateKnowledgeBase(ctx, "notes"))
	_, err := c.Ingest(ctx, "notes", "test", docs, false)
	require.NoError(t, err)

	require.NoError(t, c.UpdateKnowledgeBase(ctx, "notes", 128, 16))
	assert.Equal(t, 1, mustInstance(t, c, "notes").SeenHashes())

	stats, err := c.Ingest(ctx, "notes", "test", docs, false)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Skipped)
}

func TestMetricsEnabled(t *testing.T) {
	cfg := testConfig()
	cfg.Metrics.Enabled = true
	c := newTestClient(t, cfg, WithPrometheusRegistry(prometheus.NewRegistry()))
	ctx := context.Background()

	_, err := c.Ingest(ctx, "conversations", "test", []core.Document{{Path: "x", Content: "hello"}}, false)
	require.NoError(t, err)

	handler := c.MetricsHandler()
	require.NotNil(t, handler)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `mindshard_operations_total{component="digestor",op="ingest_documents",outcome="ok"} 1`)
}

func TestWithSummarizer(t *testing.T) {
	cfg := testConfig()
	cfg.Memory.FlushThreshold = 1
	fixed := llm.SummarizerFunc(func(context.Context, string) (string, error) {
		return "fixed summary", nil
	})
	c := newTestClient(t, cfg, WithSummarizer(fixed))

	_, summary, flushed := c.Remember(context.Background(), "anything", nil)
	require.True(t, flushed)
	assert.Equal(t, "fixed summary", summary)
}

func TestInitStorageUnsupported(t *testing.T) {
	_, err := initStorage(core.VectorStoreConfig{Provider: "cassandra"}, "kb")
	assert.ErrorIs(t, err, core.ErrInvalidConfig)
}

func TestInitStoragePersistentMemory(t *testing.T) {
	dir := t.TempDir()
	store, err := initStorage(core.VectorStoreConfig{
		Provider: "memory",
		Config:   map[string]interface{}{"persist_dir": dir, "collection_prefix": "test"},
	}, "notes")
	require.NoError(t, err)
	require.NoError(t, store.Close())
	assert.DirExists(t, filepath.Join(dir, "notes"))
}

func TestInitEmbedder(t *testing.T) {
	p, err := initEmbedder(core.EmbedderConfig{Provider: "mock", Dimensions: 8, CacheSize: 100})
	require.NoError(t, err)
	defer p.Close()
	assert.IsType(t, &cached.Provider{}, p)
	assert.Equal(t, 8, p.Dimensions())

	_, err = initEmbedder(core.EmbedderConfig{Provider: "word2vec"})
	assert.ErrorIs(t, err, core.ErrInvalidConfig)

	_, err = initEmbedder(core.EmbedderConfig{Provider: "openai"})
	assert.Error(t, err)
}

func TestInitLLMAndSummarizer(t *testing.T) {
	p, err := initLLM(core.LLMConfig{Provider: "extractive"})
	require.NoError(t, err)
	assert.Nil(t, p)
	assert.IsType(t, &llm.ExtractiveSummarizer{}, newSummarizer(core.LLMConfig{}, nil, nil))

	_, err = initLLM(core.LLMConfig{Provider: "anthropic"})
	assert.ErrorIs(t, err, core.ErrInvalidConfig)

	p, err = initLLM(core.LLMConfig{Provider: "deepseek", APIKey: "sk-test"})
	require.NoError(t, err)
	defer p.Close()
	assert.IsType(t, &llm.StrategySummarizer{}, newSummarizer(core.LLMConfig{StrategyThreshold: 100}, p, nil))
}

func TestCatalogPersistsKnowledgeBasesAndGroups(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig()
	cfg.CatalogPath = filepath.Join(t.TempDir(), "state", "catalog.json")

	c1, err := NewClient(cfg)
	require.NoError(t, err)
	require.NoError(t, c1.CreateKnowledgeBase(ctx, "notes"))
	require.NoError(t, c1.CreateGroup("cookbooks", []string{"prompt_cookbook", "role_cookbook"}))
	require.NoError(t, c1.AddToGroup("cookbooks", "notes"))
	require.NoError(t, c1.RemoveFromGroup("cookbooks", "role_cookbook"))
	require.NoError(t, c1.CreateGroup("scratch", []string{"notes"}))
	require.NoError(t, c1.DeleteGroup("scratch"))
	assert.ErrorIs(t, c1.DeleteGroup(AllGroup), core.ErrInvalidArgument)
	require.NoError(t, c1.Close())

	c2 := newTestClient(t, cfg)
	assert.Contains(t, c2.Registry().ListInstances(), "notes")
	assert.Equal(t, []string{AllGroup, "cookbooks"}, c2.Registry().ListGroups())

	members, err := c2.Registry().GroupMembers("cookbooks")
	require.NoError(t, err)
	assert.Equal(t, []string{"prompt_cookbook", "notes"}, members)

	members, err = c2.Registry().GroupMembers(AllGroup)
	require.NoError(t, err)
	assert.Contains(t, members, "notes")
}

func TestReadCatalogMissingFile(t *testing.T) {
	cat, err := readCatalog(filepath.Join(t.TempDir(), "absent.json"))
	require.NoError(t, err)
	assert.Empty(t, cat.KnowledgeBases)
	assert.Empty(t, cat.Groups)
}
