// Package mock provides a deterministic, offline embedder for tests and
// local runs without an embedding service.
package mock

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
	"unicode"
)

// Embedder hashes word tokens into a fixed number of buckets, so texts that
// share words get similar vectors. Text with no word tokens falls back to a
// pseudo-random vector seeded by the text hash.
type Embedder struct {
	dimensions int
}

// New creates a new mock embedder. dimensions <= 0 defaults to 384.
func New(dimensions int) *Embedder {
	if dimensions <= 0 {
		dimensions = 384
	}
	return &Embedder{dimensions: dimensions}
}

// Embed creates a deterministic unit vector from text.
func (m *Embedder) Embed(ctx context.Context, text string) ([]float64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	embedding := make([]float64, m.dimensions)

	tokens := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for _, tok := range tokens {
		h := fnv.New32a()
		_, _ = h.Write([]byte(tok))
		embedding[h.Sum32()%uint32(m.dimensions)]++
	}

	if len(tokens) == 0 {
		h := fnv.New64a()
		_, _ = h.Write([]byte(text))
		seed := h.Sum64()
		for i := range embedding {
			// LCG step, mapped to [-1, 1]
			seed = seed*6364136223846793005 + 1442695040888963407
			embedding[i] = float64(int64(seed)) / float64(math.MaxInt64)
		}
	}

	return normalize(embedding), nil
}

// EmbedBatch embeds each text.
func (m *Embedder) EmbedBatch(ctx context.Context, texts []string) ([][]float64, error) {
	out := make([][]float64, len(texts))
	for i, text := range texts {
		v, err := m.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// Dimensions returns the embedding size.
func (m *Embedder) Dimensions() int {
	return m.dimensions
}

// Close is a no-op.
func (m *Embedder) Close() error {
	return nil
}

// normalize converts embedding to unit vector.
func normalize(vec []float64) []float64 {
	var norm float64
	for _, v := range vec {
		norm += v * v
	}
	if norm == 0 {
		return vec
	}

	norm = math.Sqrt(norm)
	for i := range vec {
		vec[i] /= norm
	}
	return vec
}
