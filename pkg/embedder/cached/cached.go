// Package cached wraps an embedder.Provider with an in-process ristretto
// cache keyed by text, so re-ingesting or re-querying identical text does not
// call the embedding service again.
package cached

import (
	"context"
	"crypto/sha256"
	"encoding/hex"

	"github.com/dgraph-io/ristretto"

	"github.com/oceanbase/mindshard-go/pkg/core"
	"github.com/oceanbase/mindshard-go/pkg/embedder"
)

// DefaultMaxEntries bounds the cache when Config.MaxEntries is zero.
const DefaultMaxEntries = 10000

// Provider is a caching embedder.Provider.
type Provider struct {
	inner embedder.Provider
	cache *ristretto.Cache
}

// Config controls the cache size.
type Config struct {
	// MaxEntries is the approximate number of vectors kept.
	MaxEntries int64
}

// New wraps inner with a cache.
func New(inner embedder.Provider, cfg *Config) (*Provider, error) {
	maxEntries := int64(DefaultMaxEntries)
	if cfg != nil && cfg.MaxEntries > 0 {
		maxEntries = cfg.MaxEntries
	}

	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: maxEntries * 10,
		MaxCost:     maxEntries,
		BufferItems: 64,
		Metrics:     true,
	})
	if err != nil {
		return nil, core.NewMemoryError("NewCachedEmbedder", err)
	}

	return &Provider{inner: inner, cache: cache}, nil
}

func key(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

func (p *Provider) lookup(text string) ([]float64, bool) {
	v, ok := p.cache.Get(key(text))
	if !ok {
		return nil, false
	}
	vec, ok := v.([]float64)
	return vec, ok
}

// Embed returns the cached vector for text or computes and caches it.
func (p *Provider) Embed(ctx context.Context, text string) ([]float64, error) {
	if vec, ok := p.lookup(text); ok {
		return vec, nil
	}

	vec, err := p.inner.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	p.cache.Set(key(text), vec, 1)
	return vec, nil
}

// EmbedBatch embeds only the texts missing from the cache, in one inner call.
func (p *Provider) EmbedBatch(ctx context.Context, texts []string) ([][]float64, error) {
	out := make([][]float64, len(texts))
	var (
		missing []string
		slots   []int
	)
	for i, text := range texts {
		if vec, ok := p.lookup(text); ok {
			out[i] = vec
			continue
		}
		missing = append(missing, text)
		slots = append(slots, i)
	}

	if len(missing) == 0 {
		return out, nil
	}

	vectors, err := p.inner.EmbedBatch(ctx, missing)
	if err != nil {
		return nil, err
	}
	for j, vec := range vectors {
		out[slots[j]] = vec
		p.cache.Set(key(missing[j]), vec, 1)
	}
	return out, nil
}

// Dimensions returns the wrapped provider's dimension.
func (p *Provider) Dimensions() int {
	return p.inner.Dimensions()
}

// Stats reports cache hits and misses since creation.
func (p *Provider) Stats() (hits, misses uint64) {
	return p.cache.Metrics.Hits(), p.cache.Metrics.Misses()
}

// Close closes the cache and the wrapped provider.
func (p *Provider) Close() error {
	p.cache.Close()
	return p.inner.Close()
}
