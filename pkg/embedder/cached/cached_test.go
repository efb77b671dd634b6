package cached

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oceanbase/mindshard-go/pkg/embedder/mock"
)

type countingProvider struct {
	*mock.Embedder
	calls atomic.Int32
	fail  bool
}

func (c *countingProvider) Embed(ctx context.Context, text string) ([]float64, error) {
	c.calls.Add(1)
	if c.fail {
		return nil, errors.New("embedding service down")
	}
	return c.Embedder.Embed(ctx, text)
}

func (c *countingProvider) EmbedBatch(ctx context.Context, texts []string) ([][]float64, error) {
	c.calls.Add(int32(len(texts)))
	return c.Embedder.EmbedBatch(ctx, texts)
}

func TestEmbedCaches(t *testing.T) {
	inner := &countingProvider{Embedder: mock.New(8)}
	p, err := New(inner, &Config{MaxEntries: 100})
	require.NoError(t, err)
	defer func() { _ = p.Close() }()

	ctx := context.Background()
	first, err := p.Embed(ctx, "hello world")
	require.NoError(t, err)
	p.cache.Wait()

	second, err := p.Embed(ctx, "hello world")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.EqualValues(t, 1, inner.calls.Load())
	assert.Equal(t, 8, p.Dimensions())

	hits, _ := p.Stats()
	assert.EqualValues(t, 1, hits)
}

func TestEmbedBatchOnlyMissing(t *testing.T) {
	inner := &countingProvider{Embedder: mock.New(8)}
	p, err := New(inner, nil)
	require.NoError(t, err)
	defer func() { _ = p.Close() }()

	ctx := context.Background()
	_, err = p.Embed(ctx, "a")
	require.NoError(t, err)
	p.cache.Wait()

	vectors, err := p.EmbedBatch(ctx, []string{"a", "b", "c"})
	require.NoError(t, err)
	require.Len(t, vectors, 3)
	assert.EqualValues(t, 3, inner.calls.Load())

	direct, _ := mock.New(8).Embed(ctx, "b")
	assert.Equal(t, direct, vectors[1])
}

func TestEmbedErrorNotCached(t *testing.T) {
	inner := &countingProvider{Embedder: mock.New(8), fail: true}
	p, err := New(inner, nil)
	require.NoError(t, err)
	defer func() { _ = p.Close() }()

	_, err = p.Embed(context.Background(), "x")
	require.Error(t, err)
	_, err = p.Embed(context.Background(), "x")
	require.Error(t, err)
	assert.EqualValues(t, 2, inner.calls.Load())
}
