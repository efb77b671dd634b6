package oceanbase

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBuildWhereClause(t *testing.T) {
	where, args := buildWhereClause(map[string]interface{}{"path": "notes/a.md", "chunk_index": 3})

	assert.Equal(t, "WHERE JSON_UNQUOTE(JSON_EXTRACT(metadata, ?)) = ? AND JSON_UNQUOTE(JSON_EXTRACT(metadata, ?)) = ?", where)
	assert.Equal(t, []interface{}{`$."chunk_index"`, "3", `$."path"`, "notes/a.md"}, args)
}

func TestGenerateHash(t *testing.T) {
	assert.Equal(t, "5d41402abc4b2a76b9719d911017c592", generateHash("hello"))
	assert.Len(t, generateHash(""), 32)
}
