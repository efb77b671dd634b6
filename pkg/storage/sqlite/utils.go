package sqlite

import (
	"strings"

	"github.com/oceanbase/mindshard-go/pkg/storage"
)

// buildWhereClause matches every filter against the JSON metadata column.
func buildWhereClause(filters map[string]interface{}) (string, []interface{}) {
	terms := storage.FilterTerms(filters)
	if len(terms) == 0 {
		return "", nil
	}
	conds := make([]string, len(terms))
	args := make([]interface{}, 0, 2*len(terms))
	for i, t := range terms {
		conds[i] = "CAST(json_extract(metadata, ?) AS TEXT) = ?"
		args = append(args, t.JSONPath, t.Value)
	}
	return "WHERE " + strings.Join(conds, " AND "), args
}

// hashOf returns the content hash recorded in chunk metadata, or "".
func hashOf(metadata map[string]interface{}) string {
	if v, ok := metadata[storage.KeyContentHash].(string); ok {
		return v
	}
	return ""
}
