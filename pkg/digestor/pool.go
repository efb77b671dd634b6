package digestor

import (
	"context"
	"fmt"
	"time"

	"github.com/oceanbase/mindshard-go/pkg/embedder"
)

type embedResult struct {
	index  int
	vector []float64
	err    error
}

// embedAll embeds texts with at most workers concurrent calls and waits at
// most timeout for the whole batch. The returned slices are parallel to
// texts: a nil vector has a matching non-nil error.
//
// Results that arrive before the deadline are kept. Workers still running
// at the deadline are cancelled through their context and their results
// are discarded.
func embedAll(ctx context.Context, provider embedder.Provider, texts []string, workers int, timeout time.Duration) ([][]float64, []error) {
	vectors := make([][]float64, len(texts))
	errs := make([]error, len(texts))
	if len(texts) == 0 {
		return vectors, errs
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	// buffered so late workers never block after the collector returns
	results := make(chan embedResult, len(texts))
	sem := make(chan struct{}, workers)

	go func() {
		for i, text := range texts {
			select {
			case sem <- struct{}{}:
			case <-ctx.Done():
				results <- embedResult{index: i, err: ctx.Err()}
				continue
			}

			go func(index int, text string) {
				defer func() { <-sem }()

				vector, err := provider.Embed(ctx, text)
				if err == nil && len(vector) == 0 {
					err = fmt.Errorf("empty embedding")
				}
				if err != nil {
					vector = nil
				}
				results <- embedResult{index: index, vector: vector, err: err}
			}(i, text)
		}
	}()

	pending := make(map[int]struct{}, len(texts))
	for i := range texts {
		pending[i] = struct{}{}
	}

	for len(pending) > 0 {
		select {
		case r := <-results:
			delete(pending, r.index)
			vectors[r.index], errs[r.index] = r.vector, r.err
		case <-ctx.Done():
			for i := range pending {
				errs[i] = fmt.Errorf("embedding not collected: %w", ctx.Err())
			}
			return vectors, errs
		}
	}
	return vectors, errs
}
