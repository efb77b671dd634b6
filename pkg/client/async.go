package client

import (
	"context"
	"sync"

	"github.com/oceanbase/mindshard-go/pkg/core"
	"github.com/oceanbase/mindshard-go/pkg/digestor"
	"github.com/oceanbase/mindshard-go/pkg/layers"
)

// AsyncClient runs Client operations in separate goroutines.
//
// Every async method returns a channel that receives exactly one result and
// is then closed. Wait blocks until every started operation has finished.
//
// Example:
//
//	ac, _ := client.NewAsyncClient(config)
//	defer ac.Close()
//
//	res := <-ac.CommitTurnAsync(ctx, core.NewEntry(core.EntryTypeUserInteraction, "hi"))
//	items := <-ac.QueryAllAsync(ctx, "greeting", layers.DefaultKWork, layers.DefaultKLong)
type AsyncClient struct {
	*Client
	wg sync.WaitGroup
}

// CommitResult is delivered by CommitTurnAsync.
type CommitResult struct {
	Summary string
	Flushed bool
}

// IngestResult is delivered by IngestAsync.
type IngestResult struct {
	Stats digestor.IngestStats
	Error error
}

// NewAsyncClient creates an AsyncClient over a new Client.
func NewAsyncClient(cfg *core.Config, opts ...Option) (*AsyncClient, error) {
	c, err := NewClient(cfg, opts...)
	if err != nil {
		return nil, err
	}
	return &AsyncClient{Client: c}, nil
}

// QueryAllAsync runs MemoryLayers.QueryAll in the background.
func (ac *AsyncClient) QueryAllAsync(ctx context.Context, text string, kWork, kLong int) <-chan []layers.Item {
	resultChan := make(chan []layers.Item, 1)
	ac.wg.Add(1)

	go func() {
		defer ac.wg.Done()
		resultChan <- ac.layers.QueryAll(ctx, text, kWork, kLong)
		close(resultChan)
	}()

	return resultChan
}

// CommitTurnAsync runs MemoryLayers.CommitTurn in the background.
func (ac *AsyncClient) CommitTurnAsync(ctx context.Context, entry *core.Entry) <-chan *CommitResult {
	resultChan := make(chan *CommitResult, 1)
	ac.wg.Add(1)

	go func() {
		defer ac.wg.Done()
		summary, flushed := ac.layers.CommitTurn(ctx, entry)
		resultChan <- &CommitResult{Summary: summary, Flushed: flushed}
		close(resultChan)
	}()

	return resultChan
}

// IngestAsync runs Ingest in the background.
func (ac *AsyncClient) IngestAsync(ctx context.Context, kb, source string, docs []core.Document, force bool) <-chan *IngestResult {
	resultChan := make(chan *IngestResult, 1)
	ac.wg.Add(1)

	go func() {
		defer ac.wg.Done()
		stats, err := ac.Ingest(ctx, kb, source, docs, force)
		resultChan <- &IngestResult{Stats: stats, Error: err}
		close(resultChan)
	}()

	return resultChan
}

// Wait blocks until all started operations have completed.
func (ac *AsyncClient) Wait() {
	ac.wg.Wait()
}

// Close waits for pending operations and closes the client.
func (ac *AsyncClient) Close() error {
	ac.Wait()
	return ac.Client.Close()
}
