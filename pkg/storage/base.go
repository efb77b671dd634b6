// Package storage provides interfaces and types for vector storage backends.
//
// It defines the VectorStore contract that every backend (SQLite, sqlite-vec,
// PostgreSQL, OceanBase, in-memory chromem) satisfies, along with the result
// type and metadata helpers shared by the backends.
package storage

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/oceanbase/mindshard-go/pkg/core"
)

// Metadata keys written by the digestor for every chunk.
const (
	// KeySource is the ingestion batch's logical source label.
	KeySource = "source"

	// KeyPath is the originating document path.
	KeyPath = "path"

	// KeyChunkIndex is the 0-based position of the chunk within its document.
	KeyChunkIndex = "chunk_index"

	// KeyContentHash is the hash of the whole originating document.
	KeyContentHash = "content_hash"

	// KeyContent is the chunk text. Backends surface it as Result.Text.
	KeyContent = "content"
)

// Result is a single search hit.
type Result struct {
	// ID is the backend-assigned record id.
	ID string `json:"id"`

	// Score is the similarity to the query. Every backend in this module
	// reports similarity, so higher is always better.
	Score float64 `json:"score"`

	// Text is the stored chunk text.
	Text string `json:"text"`

	// Metadata is the chunk metadata without the content key.
	Metadata map[string]interface{} `json:"metadata"`
}

// VectorStore defines the capability contract for vector storage backends.
//
// Implementations are safe for concurrent Add and Search. Concurrent
// DeleteByMetadata and Add are only as safe as the backend documents.
type VectorStore interface {
	// Add stores one record per vector. vectors and metadatas must have the
	// same length. Each record gets a fresh id; after Add returns, every
	// record is visible to Search.
	Add(ctx context.Context, vectors [][]float64, metadatas []map[string]interface{}) error

	// Search returns at most k results ordered by descending similarity.
	// An empty store yields an empty slice, not an error.
	Search(ctx context.Context, vector []float64, k int) ([]*Result, error)

	// DeleteByMetadata removes every record whose metadata equals filters on
	// every given key and returns the number removed. Zero matches is not an error.
	DeleteByMetadata(ctx context.Context, filters map[string]interface{}) (int, error)

	// Count returns the number of stored records.
	Count(ctx context.Context) (int, error)

	// Clear removes all records. Clearing an empty store succeeds.
	Clear(ctx context.Context) error

	// Close releases resources.
	Close() error
}

// HashLister is implemented by backends that can enumerate the distinct
// content hashes they hold. The digestor uses it to rebuild its seen-hash set.
type HashLister interface {
	ContentHashes(ctx context.Context) ([]string, error)
}

// CheckLengths returns an ArgumentMismatch error when vectors and metadatas
// differ in length.
func CheckLengths(op string, vectors [][]float64, metadatas []map[string]interface{}) error {
	if len(vectors) != len(metadatas) {
		return core.Errorf(op, core.ErrArgumentMismatch, "%d vectors vs %d metadatas", len(vectors), len(metadatas))
	}
	return nil
}

// Unavailable wraps a backend failure as a StoreUnavailable error.
func Unavailable(op string, err error) error {
	if err == nil {
		return nil
	}
	return &core.MemoryError{Op: op, Err: fmt.Errorf("%w: %w", core.ErrStoreUnavailable, err)}
}

// SplitContent returns a copy of metadata without KeyContent, and the content
// string itself.
func SplitContent(metadata map[string]interface{}) (map[string]interface{}, string) {
	rest := make(map[string]interface{}, len(metadata))
	var content string
	for k, v := range metadata {
		if k == KeyContent {
			if s, ok := v.(string); ok {
				content = s
			} else if v != nil {
				content = fmt.Sprint(v)
			}
			continue
		}
		rest[k] = v
	}
	return rest, content
}

// MatchesFilters reports whether metadata matches every key in filters.
// Values are compared by their string form so that a filter of 0 matches a
// chunk_index decoded from JSON as 0.0 or stored as "0".
func MatchesFilters(metadata, filters map[string]interface{}) bool {
	for k, want := range filters {
		got, ok := metadata[k]
		if !ok {
			return false
		}
		if FilterValue(got) != FilterValue(want) {
			return false
		}
	}
	return true
}

// FilterValue renders a metadata value the way backends compare it.
func FilterValue(v interface{}) string {
	switch val := v.(type) {
	case string:
		return val
	case float64:
		if val == float64(int64(val)) {
			return fmt.Sprintf("%d", int64(val))
		}
		return fmt.Sprintf("%g", val)
	case float32:
		return FilterValue(float64(val))
	default:
		return fmt.Sprint(val)
	}
}

// FilterTerm is one metadata equality test, ready for a SQL backend.
type FilterTerm struct {
	Key string
	// JSONPath addresses Key inside a JSON document, e.g. `$."path"`.
	JSONPath string
	Value    string
}

// FilterTerms returns filters as terms sorted by key, so generated
// statements are stable.
func FilterTerms(filters map[string]interface{}) []FilterTerm {
	terms := make([]FilterTerm, 0, len(filters))
	for k, v := range filters {
		terms = append(terms, FilterTerm{
			Key:      k,
			JSONPath: `$."` + strings.ReplaceAll(k, `"`, `\"`) + `"`,
			Value:    FilterValue(v),
		})
	}
	sort.Slice(terms, func(i, j int) bool { return terms[i].Key < terms[j].Key })
	return terms
}

// SortByScore sorts results by descending score, keeping insertion order for
// equal scores, and truncates to limit when limit > 0.
func SortByScore(results []*Result, limit int) []*Result {
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})

	if limit > 0 && len(results) > limit {
		return results[:limit]
	}
	return results
}

// TableName builds a SQL-safe table name from a prefix and a collection name.
// Characters outside [A-Za-z0-9_] are replaced with '_'.
func TableName(prefix, collection string) string {
	var b strings.Builder
	for _, r := range prefix + collection {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	name := b.String()
	if name == "" || (name[0] >= '0' && name[0] <= '9') {
		name = "t_" + name
	}
	return name
}
