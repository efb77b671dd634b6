package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oceanbase/mindshard-go/pkg/core"
)

// writeConfig writes a config file using the sqlite backend, a file
// journal and a catalog under a fresh temp dir.
func writeConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	content := fmt.Sprintf(`
embedder:
  provider: mock
  dimensions: 32
vector_store:
  provider: sqlite
  config:
    db_path: %s
    embedding_model_dims: 32
journal:
  provider: file
  path: %s
memory:
  flush_threshold: 3
  periodic_flush_interval_seconds: 0
catalog_path: %s
`, filepath.Join(dir, "mind.db"), filepath.Join(dir, "journal.jsonl"), filepath.Join(dir, "catalog.json"))

	path := filepath.Join(dir, "mindshard.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func run(t *testing.T, cfgPath string, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(append([]string{"--config", cfgPath}, args...))
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func runJSON(t *testing.T, cfgPath string, v interface{}, args ...string) {
	t.Helper()
	out, err := run(t, cfgPath, args...)
	require.NoError(t, err, out)
	require.NoError(t, json.Unmarshal([]byte(out), v), out)
}

func TestIngestAndQueryCommands(t *testing.T) {
	cfg := writeConfig(t)

	var stats struct {
		Ingested int `json:"ingested"`
		Skipped  int `json:"skipped"`
		Chunks   int `json:"chunks"`
	}
	runJSON(t, cfg, &stats, "ingest", "--kb", "prompt_cookbook", "--path", "style.md", "--text", "Always answer in English.")
	assert.Equal(t, 1, stats.Ingested)
	assert.Equal(t, 1, stats.Chunks)

	// a new process rebuilds the seen hashes from the store
	runJSON(t, cfg, &stats, "ingest", "--kb", "prompt_cookbook", "--path", "style.md", "--text", "Always answer in English.")
	assert.Equal(t, 0, stats.Ingested)
	assert.Equal(t, 1, stats.Skipped)

	var results []struct {
		Text     string                 `json:"text"`
		Metadata map[string]interface{} `json:"metadata"`
	}
	runJSON(t, cfg, &results, "query", "--kb", "prompt_cookbook", "--limit", "1", "Always", "answer", "in", "English.")
	require.Len(t, results, 1)
	assert.Equal(t, "style.md", results[0].Metadata["path"])
	assert.Equal(t, "Always answer in English.", results[0].Text)

	var deleted deleteResult
	runJSON(t, cfg, &deleted, "delete", "--kb", "prompt_cookbook", "--path", "style.md")
	assert.Equal(t, 1, deleted.Deleted)

	_, err := run(t, cfg, "delete", "--kb", "prompt_cookbook")
	assert.ErrorIs(t, err, core.ErrInvalidArgument)

	_, err = run(t, cfg, "query", "--kb", "missing", "anything")
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestIngestDeduplicatesOnPersistentMemoryStore(t *testing.T) {
	dir := t.TempDir()
	content := fmt.Sprintf(`
embedder:
  provider: mock
  dimensions: 32
vector_store:
  provider: memory
  config:
    persist_dir: %s
memory:
  periodic_flush_interval_seconds: 0
catalog_path: %s
`, filepath.Join(dir, "vectors"), filepath.Join(dir, "catalog.json"))
	cfg := filepath.Join(dir, "mindshard.yaml")
	require.NoError(t, os.WriteFile(cfg, []byte(content), 0o644))

	var stats struct {
		Ingested int `json:"ingested"`
		Skipped  int `json:"skipped"`
	}
	runJSON(t, cfg, &stats, "ingest", "--kb", "role_cookbook", "--path", "tone.md", "--text", "Be brief.")
	assert.Equal(t, 1, stats.Ingested)

	runJSON(t, cfg, &stats, "ingest", "--kb", "role_cookbook", "--path", "tone.md", "--text", "Be brief.")
	assert.Equal(t, 0, stats.Ingested)
	assert.Equal(t, 1, stats.Skipped)

	var deleted deleteResult
	runJSON(t, cfg, &deleted, "delete", "--kb", "role_cookbook", "--path", "tone.md")
	assert.Equal(t, 1, deleted.Deleted)

	runJSON(t, cfg, &stats, "ingest", "--kb", "role_cookbook", "--path", "tone.md", "--text", "Be brief.")
	assert.Equal(t, 1, stats.Ingested)
}

func TestIngestFiles(t *testing.T) {
	cfg := writeConfig(t)
	doc := filepath.Join(t.TempDir(), "notes.txt")
	require.NoError(t, os.WriteFile(doc, []byte("Deploys happen on Tuesdays."), 0o644))

	var stats struct {
		Ingested int `json:"ingested"`
	}
	runJSON(t, cfg, &stats, "ingest", "--kb", "workflow_cookbook", doc)
	assert.Equal(t, 1, stats.Ingested)

	_, err := run(t, cfg, "ingest", "--kb", "workflow_cookbook")
	assert.ErrorIs(t, err, core.ErrInvalidArgument)
}

func TestReadDocuments(t *testing.T) {
	docs, err := readDocuments(strings.NewReader("from stdin"), []string{"-"}, "inline", "a.md")
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, core.Document{Path: "a.md", Content: "inline"}, docs[0])
	assert.Equal(t, core.Document{Path: "a.md", Content: "from stdin"}, docs[1])

	_, err = readDocuments(nil, []string{filepath.Join(t.TempDir(), "missing")}, "", "")
	assert.Error(t, err)
}

func TestKnowledgeBaseAndGroupCommands(t *testing.T) {
	cfg := writeConfig(t)

	_, err := run(t, cfg, "kb", "create", "notes")
	require.NoError(t, err)
	_, err = run(t, cfg, "kb", "create", "notes")
	assert.ErrorIs(t, err, core.ErrAlreadyExists)

	var kbs []kbInfo
	runJSON(t, cfg, &kbs, "kb", "list")
	names := make([]string, len(kbs))
	for i, kb := range kbs {
		names[i] = kb.Name
	}
	assert.Contains(t, names, "notes")

	_, err = run(t, cfg, "ingest", "--kb", "notes", "--path", "n", "--text", "Standup is at nine.")
	require.NoError(t, err)
	_, err = run(t, cfg, "ingest", "--kb", "role_cookbook", "--path", "r", "--text", "Act as a reviewer.")
	require.NoError(t, err)

	_, err = run(t, cfg, "group", "create", "team", "notes", "role_cookbook")
	require.NoError(t, err)

	var groups []groupInfo
	runJSON(t, cfg, &groups, "group", "list")
	require.Len(t, groups, 2)
	assert.Equal(t, groupInfo{Name: "team", Members: []string{"notes", "role_cookbook"}}, groups[1])

	var results []map[string]interface{}
	runJSON(t, cfg, &results, "group", "query", "team", "Standup", "is", "at", "nine.")
	assert.Len(t, results, 2)

	var group groupInfo
	runJSON(t, cfg, &group, "group", "remove", "team", "role_cookbook")
	assert.Equal(t, []string{"notes"}, group.Members)
	runJSON(t, cfg, &group, "group", "add", "team", "prompt_cookbook")
	assert.Equal(t, []string{"notes", "prompt_cookbook"}, group.Members)

	_, err = run(t, cfg, "group", "clear", "team")
	require.NoError(t, err)
	runJSON(t, cfg, &results, "group", "query", "team", "Standup")
	assert.Empty(t, results)

	_, err = run(t, cfg, "kb", "update", "notes", "--chunk-size", "64", "--chunk-overlap", "8")
	require.NoError(t, err)
	_, err = run(t, cfg, "kb", "delete", "conversations")
	assert.ErrorIs(t, err, core.ErrInvalidArgument)

	_, err = run(t, cfg, "kb", "delete", "notes")
	require.NoError(t, err)
	runJSON(t, cfg, &group, "group", "add", "team", "workflow_cookbook")
	assert.Equal(t, []string{"prompt_cookbook", "workflow_cookbook"}, group.Members)

	_, err = run(t, cfg, "group", "delete", "team")
	require.NoError(t, err)
	runJSON(t, cfg, &groups, "group", "list")
	assert.Len(t, groups, 1)
}

func TestMemoryCommands(t *testing.T) {
	cfg := writeConfig(t)

	var res rememberResult
	runJSON(t, cfg, &res, "remember", "--meta", "session=s1", "User prefers Go.")
	assert.False(t, res.Flushed)
	assert.Equal(t, "s1", res.Entry.Metadata["session"])
	runJSON(t, cfg, &res, "remember", "User lives in Lisbon.")
	assert.False(t, res.Flushed)

	var scratch []*core.Entry
	runJSON(t, cfg, &scratch, "scratch", "list")
	require.Len(t, scratch, 2)
	assert.Equal(t, "User prefers Go.", scratch[0].Content)

	runJSON(t, cfg, &res, "remember", "User works remotely.")
	require.True(t, res.Flushed)
	assert.Contains(t, res.Summary, "User lives in Lisbon.")

	runJSON(t, cfg, &scratch, "scratch", "list")
	assert.Empty(t, scratch)

	var items []struct {
		Source string `json:"source"`
	}
	runJSON(t, cfg, &items, "recall", "where does the user live")
	require.NotEmpty(t, items)
	assert.Equal(t, "longterm", items[0].Source)

	var journal []*core.Entry
	runJSON(t, cfg, &journal, "journal", "--limit", "0")
	require.Len(t, journal, 4)
	assert.Equal(t, core.EntryTypeSummary, journal[3].Type)

	_, err := run(t, cfg, "scratch", "commit")
	assert.ErrorIs(t, err, core.ErrEmptyScratchpad)
}

func TestScratchCommands(t *testing.T) {
	cfg := writeConfig(t)

	_, err := run(t, cfg, "remember", "draft idea")
	require.NoError(t, err)

	var entry core.Entry
	runJSON(t, cfg, &entry, "scratch", "commit")
	assert.Equal(t, core.EntryTypeSummary, entry.Type)
	assert.Equal(t, "draft idea", entry.Content)

	_, err = run(t, cfg, "remember", "throwaway")
	require.NoError(t, err)
	var cleared clearResult
	runJSON(t, cfg, &cleared, "scratch", "clear")
	assert.Equal(t, 1, cleared.Cleared)

	var scratch []*core.Entry
	runJSON(t, cfg, &scratch, "scratch", "list")
	assert.Empty(t, scratch)

	var flushed flushResult
	runJSON(t, cfg, &flushed, "flush")
	assert.False(t, flushed.Flushed)
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger, err := newLogger(&buf, "info", "json")
	require.NoError(t, err)
	logger.Debug("hidden")
	logger.Info("shown", "k", "v")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), `"msg":"shown"`)

	_, err = newLogger(&buf, "loud", "")
	assert.ErrorIs(t, err, core.ErrInvalidArgument)
	_, err = newLogger(&buf, "", "xml")
	assert.ErrorIs(t, err, core.ErrInvalidArgument)
}
