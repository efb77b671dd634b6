package postgres

import (
	"fmt"
	"strings"

	"github.com/oceanbase/mindshard-go/pkg/storage"
)

// buildWhereClause builds a WHERE clause over the JSONB metadata column,
// numbering placeholders from startIndex.
func buildWhereClause(filters map[string]interface{}, startIndex int) (string, []interface{}) {
	terms := storage.FilterTerms(filters)
	if len(terms) == 0 {
		return "", nil
	}
	conds := make([]string, len(terms))
	args := make([]interface{}, 0, 2*len(terms))
	for i, t := range terms {
		n := startIndex + 2*i
		conds[i] = fmt.Sprintf("metadata->>$%d = $%d", n, n+1)
		args = append(args, t.Key, t.Value)
	}
	return "WHERE " + strings.Join(conds, " AND "), args
}
