package chunker_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oceanbase/mindshard-go/pkg/chunker"
	"github.com/oceanbase/mindshard-go/pkg/core"
)

func TestChunk(t *testing.T) {
	tests := []struct {
		name    string
		text    string
		size    int
		overlap int
		want    []string
	}{
		{"empty text", "", 4, 1, nil},
		{"shorter than size", "abc", 10, 2, []string{"abc"}},
		{"exact size", "abcd", 4, 0, []string{"abcd"}},
		{"no overlap", "abcdefgh", 3, 0, []string{"abc", "def", "gh"}},
		{"with overlap", "abcdefghij", 4, 2, []string{"abcd", "cdef", "efgh", "ghij", "ij"}},
		{"multibyte runes", "héllo wörld", 5, 1, []string{"héllo", "o wör", "rld"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := chunker.Chunk(tt.text, tt.size, tt.overlap)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestChunkInvalidArguments(t *testing.T) {
	tests := []struct {
		name    string
		size    int
		overlap int
	}{
		{"zero size", 0, 0},
		{"negative size", -3, 0},
		{"negative overlap", 5, -1},
		{"overlap equals size", 5, 5},
		{"overlap exceeds size", 5, 9},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chunks, err := chunker.Chunk("some text", tt.size, tt.overlap)
			assert.Nil(t, chunks)
			assert.ErrorIs(t, err, core.ErrInvalidArgument)
		})
	}
}

func TestChunkCountAndCoverage(t *testing.T) {
	text := strings.Repeat("0123456789", 37) + "xyz"
	length := len(text)

	for size := 1; size <= 40; size += 3 {
		for overlap := 0; overlap < size; overlap += 2 {
			chunks, err := chunker.Chunk(text, size, overlap)
			require.NoError(t, err)

			step := size - overlap
			assert.Equal(t, (length+step-1)/step, len(chunks), "size=%d overlap=%d", size, overlap)

			covered := make([]bool, length)
			for i, c := range chunks {
				start := i * step
				assert.LessOrEqual(t, len(c), size)
				assert.Equal(t, text[start:start+len(c)], c)
				for j := start; j < start+len(c); j++ {
					covered[j] = true
				}
			}
			for i, ok := range covered {
				assert.True(t, ok, "character %d not covered (size=%d overlap=%d)", i, size, overlap)
			}
		}
	}
}
