// Package chunker splits document text into overlapping fixed-size windows
// for embedding.
package chunker

import (
	"fmt"

	"github.com/oceanbase/mindshard-go/pkg/core"
)

const (
	DefaultSize    = 500
	DefaultOverlap = 50
)

// Func is the chunking capability consumed by the digestor.
type Func func(text string, size, overlap int) ([]string, error)

// Chunk splits text into windows of at most size characters, each sharing
// overlap characters with the previous one. Sizes count runes, not bytes.
//
// It fails with core.ErrInvalidArgument when size <= 0, overlap < 0 or
// overlap >= size. Empty text yields no chunks. The final chunk may be shorter
// than size.
func Chunk(text string, size, overlap int) ([]string, error) {
	if err := Validate(size, overlap); err != nil {
		return nil, err
	}
	if text == "" {
		return nil, nil
	}

	runes := []rune(text)
	step := size - overlap
	chunks := make([]string, 0, len(runes)/step+1)
	for start := 0; start < len(runes); start += step {
		end := start + size
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, string(runes[start:end]))
	}
	return chunks, nil
}

// Validate reports whether size and overlap form a terminating window.
func Validate(size, overlap int) error {
	if size <= 0 {
		return core.NewMemoryError("Chunk", fmt.Errorf("%w: chunk size must be positive, got %d", core.ErrInvalidArgument, size))
	}
	if overlap < 0 || overlap >= size {
		return core.NewMemoryError("Chunk", fmt.Errorf("%w: chunk overlap must be in [0, %d), got %d", core.ErrInvalidArgument, size, overlap))
	}
	return nil
}
