// Package embedder turns text into vectors for the digestors.
//
// Every chunk and every query of one knowledge base goes through the same
// Provider, so swapping providers means re-ingesting.
package embedder

import "context"

// Provider must be safe for concurrent use; a digestor embeds chunks from
// several workers at once.
type Provider interface {
	Embed(ctx context.Context, text string) ([]float64, error)

	// EmbedBatch returns one vector per text, in the order given.
	EmbedBatch(ctx context.Context, texts []string) ([][]float64, error)

	// Dimensions is the length of every vector the provider returns.
	Dimensions() int

	Close() error
}

// ToFloat64 widens a float32 vector.
func ToFloat64(v []float32) []float64 {
	out := make([]float64, len(v))
	for i, x := range v {
		out[i] = float64(x)
	}
	return out
}
