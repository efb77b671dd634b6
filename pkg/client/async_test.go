package client

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oceanbase/mindshard-go/pkg/core"
	"github.com/oceanbase/mindshard-go/pkg/layers"
)

func TestAsyncClient(t *testing.T) {
	cfg := testConfig()
	cfg.Memory.FlushThreshold = 100
	ac, err := NewAsyncClient(cfg)
	require.NoError(t, err)
	defer ac.Close()
	ctx := context.Background()

	ingest := <-ac.IngestAsync(ctx, "role_cookbook", "test", []core.Document{
		{Path: "r.md", Content: "You are a careful reviewer."},
	}, false)
	require.NoError(t, ingest.Error)
	assert.Equal(t, 1, ingest.Stats.Ingested)

	var pending []<-chan *CommitResult
	for i := 0; i < 5; i++ {
		entry := core.NewEntry(core.EntryTypeUserInteraction, fmt.Sprintf("turn %d", i))
		pending = append(pending, ac.CommitTurnAsync(ctx, entry))
	}
	ac.Wait()
	for _, ch := range pending {
		res, ok := <-ch
		require.True(t, ok)
		assert.False(t, res.Flushed)
	}
	assert.Equal(t, 5, ac.Layers().Working.Len())

	items := <-ac.QueryAllAsync(ctx, "turn", 3, layers.DefaultKLong)
	require.Len(t, items, 3)
	for _, item := range items {
		assert.Equal(t, layers.SourceWorking, item.Source)
	}
}

func TestAsyncClientInvalidConfig(t *testing.T) {
	cfg := testConfig()
	cfg.Digestor.ChunkSize = 0

	_, err := NewAsyncClient(cfg)
	assert.ErrorIs(t, err, core.ErrInvalidConfig)
}
