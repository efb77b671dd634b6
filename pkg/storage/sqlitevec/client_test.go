package sqlitevec

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oceanbase/mindshard-go/pkg/core"
	"github.com/oceanbase/mindshard-go/pkg/storage"
)

func newTestClient(t *testing.T) *Client {
	t.Helper()

	client, err := NewClient(&Config{
		DBPath:             filepath.Join(t.TempDir(), "vec.db"),
		CollectionName:     "notes",
		EmbeddingModelDims: 2,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestNewClientRequiresDimensions(t *testing.T) {
	_, err := NewClient(&Config{DBPath: ":memory:", CollectionName: "x"})
	assert.ErrorIs(t, err, core.ErrInvalidArgument)
}

func TestClientRoundTrip(t *testing.T) {
	ctx := context.Background()
	client := newTestClient(t)

	results, err := client.Search(ctx, []float64{1, 0}, 3)
	require.NoError(t, err)
	assert.Empty(t, results)

	require.NoError(t, client.Add(ctx,
		[][]float64{{1, 0}, {0, 1}, {0.9, 0.1}},
		[]map[string]interface{}{
			{storage.KeyPath: "a.md", storage.KeyChunkIndex: 0, storage.KeyContentHash: "h1", storage.KeyContent: "east"},
			{storage.KeyPath: "b.md", storage.KeyChunkIndex: 0, storage.KeyContentHash: "h2", storage.KeyContent: "north"},
			{storage.KeyPath: "a.md", storage.KeyChunkIndex: 1, storage.KeyContentHash: "h1", storage.KeyContent: "mostly east"},
		},
	))

	results, err = client.Search(ctx, []float64{1, 0}, 2)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "east", results[0].Text)
	assert.InDelta(t, 1.0, results[0].Score, 1e-6)
	assert.Greater(t, results[0].Score, results[1].Score)

	hashes, err := client.ContentHashes(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"h1", "h2"}, hashes)

	deleted, err := client.DeleteByMetadata(ctx, map[string]interface{}{storage.KeyPath: "a.md"})
	require.NoError(t, err)
	assert.Equal(t, 2, deleted)

	count, err := client.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	require.NoError(t, client.Clear(ctx))
	count, err = client.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestClientDimensionMismatch(t *testing.T) {
	client := newTestClient(t)

	err := client.Add(context.Background(), [][]float64{{1, 0, 0}}, []map[string]interface{}{{storage.KeyContent: "x"}})
	assert.ErrorIs(t, err, core.ErrInvalidArgument)
}
