package oceanbase

import (
	"crypto/md5"
	"encoding/hex"
	"strings"

	"github.com/oceanbase/mindshard-go/pkg/storage"
)

// buildWhereClause builds a WHERE clause over the JSON metadata column.
// The JSON path is bound as a parameter, so keys need no escaping in SQL.
func buildWhereClause(filters map[string]interface{}) (string, []interface{}) {
	terms := storage.FilterTerms(filters)
	if len(terms) == 0 {
		return "", nil
	}
	conds := make([]string, len(terms))
	args := make([]interface{}, 0, 2*len(terms))
	for i, t := range terms {
		conds[i] = "JSON_UNQUOTE(JSON_EXTRACT(metadata, ?)) = ?"
		args = append(args, t.JSONPath, t.Value)
	}
	return "WHERE " + strings.Join(conds, " AND "), args
}

// generateHash fills the legacy hash column (MD5 of the chunk text).
func generateHash(content string) string {
	hash := md5.Sum([]byte(content))
	return hex.EncodeToString(hash[:])
}
