package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/oceanbase/mindshard-go/pkg/core"
)

func TestMatchesFilters(t *testing.T) {
	metadata := map[string]interface{}{
		KeyPath:       "a.md",
		KeyChunkIndex: float64(2),
		KeySource:     "docs",
	}

	assert.True(t, MatchesFilters(metadata, nil))
	assert.True(t, MatchesFilters(metadata, map[string]interface{}{KeyPath: "a.md"}))
	assert.True(t, MatchesFilters(metadata, map[string]interface{}{KeyChunkIndex: 2}))
	assert.True(t, MatchesFilters(metadata, map[string]interface{}{KeyChunkIndex: "2", KeySource: "docs"}))
	assert.False(t, MatchesFilters(metadata, map[string]interface{}{KeyPath: "b.md"}))
	assert.False(t, MatchesFilters(metadata, map[string]interface{}{"missing": "x"}))
}

func TestFilterValue(t *testing.T) {
	assert.Equal(t, "3", FilterValue(3))
	assert.Equal(t, "3", FilterValue(float64(3)))
	assert.Equal(t, "3.5", FilterValue(3.5))
	assert.Equal(t, "true", FilterValue(true))
	assert.Equal(t, "x", FilterValue("x"))
}

func TestSplitContent(t *testing.T) {
	in := map[string]interface{}{KeyContent: "hello", KeyPath: "p"}
	rest, content := SplitContent(in)

	assert.Equal(t, "hello", content)
	assert.Equal(t, map[string]interface{}{KeyPath: "p"}, rest)
	assert.Contains(t, in, KeyContent)
}

func TestSortByScore(t *testing.T) {
	results := []*Result{
		{ID: "a", Score: 0.1},
		{ID: "b", Score: 0.9},
		{ID: "c", Score: 0.5},
		{ID: "d", Score: 0.9},
	}

	sorted := SortByScore(results, 3)
	ids := make([]string, len(sorted))
	for i, r := range sorted {
		ids[i] = r.ID
	}
	assert.Equal(t, []string{"b", "d", "c"}, ids)
}

func TestCheckLengths(t *testing.T) {
	assert.NoError(t, CheckLengths("Add", [][]float64{{1}}, []map[string]interface{}{{}}))
	assert.ErrorIs(t, CheckLengths("Add", [][]float64{{1}}, nil), core.ErrArgumentMismatch)
}

func TestTableName(t *testing.T) {
	assert.Equal(t, "mind_prompt_cookbook", TableName("mind_", "prompt_cookbook"))
	assert.Equal(t, "my_kb_v2", TableName("", "my-kb.v2"))
	assert.Equal(t, "t_1abc", TableName("", "1abc"))
}

func TestCosineSimilarity(t *testing.T) {
	assert.InDelta(t, 1.0, CosineSimilarity([]float64{1, 1}, []float64{2, 2}), 1e-9)
	assert.InDelta(t, 0.0, CosineSimilarity([]float64{1, 0}, []float64{0, 1}), 1e-9)
	assert.Zero(t, CosineSimilarity([]float64{1}, []float64{1, 2}))
	assert.Zero(t, CosineSimilarity([]float64{0, 0}, []float64{1, 2}))
}

func TestFilterTerms(t *testing.T) {
	terms := FilterTerms(map[string]interface{}{KeyPath: "a.md", KeyChunkIndex: 2, `we"ird`: true})
	assert.Equal(t, []FilterTerm{
		{Key: KeyChunkIndex, JSONPath: `$."chunk_index"`, Value: "2"},
		{Key: KeyPath, JSONPath: `$."path"`, Value: "a.md"},
		{Key: `we"ird`, JSONPath: `$."we\"ird"`, Value: "true"},
	}, terms)
	assert.Empty(t, FilterTerms(nil))
}

func TestVectorLiteral(t *testing.T) {
	assert.Equal(t, "[]", VectorLiteral(nil))
	assert.Equal(t, "[0.1,0.2,0.3]", VectorLiteral([]float64{0.1, 0.2, 0.3}))
	assert.Equal(t, "[0.5,-1,0.125]", VectorLiteral([]float64{0.5, -1, 0.125}))
}

func TestNextIDUnique(t *testing.T) {
	seen := map[int64]bool{}
	for i := 0; i < 1000; i++ {
		id, err := NextID()
		assert.NoError(t, err)
		assert.False(t, seen[id])
		seen[id] = true
	}
}

func TestUnavailable(t *testing.T) {
	assert.Nil(t, Unavailable("Op", nil))
	err := Unavailable("Search", assert.AnError)
	assert.ErrorIs(t, err, core.ErrStoreUnavailable)
	assert.ErrorIs(t, err, assert.AnError)
}
