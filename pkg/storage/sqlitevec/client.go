// Package sqlitevec provides a SQLite vector store backed by the sqlite-vec
// extension. Vectors live in a vec0 virtual table and KNN search runs inside
// SQLite; chunk text and metadata live in a companion table.
package sqlitevec

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	_ "github.com/mattn/go-sqlite3"

	"github.com/oceanbase/mindshard-go/pkg/core"
	"github.com/oceanbase/mindshard-go/pkg/storage"
)

func init() {
	sqlite_vec.Auto()
}

var _ storage.VectorStore = (*Client)(nil)

// Client implements VectorStore backed by SQLite with sqlite-vec.
type Client struct {
	db         *sql.DB
	vecTable   string
	metaTable  string
	dimensions int
}

// Config contains configuration for creating a sqlite-vec VectorStore.
type Config struct {
	DBPath             string
	CollectionName     string
	EmbeddingModelDims int
}

// NewClient opens (or creates) a SQLite database at cfg.DBPath and
// initialises the vec0 virtual table and companion metadata table.
func NewClient(cfg *Config) (*Client, error) {
	if cfg.EmbeddingModelDims <= 0 {
		return nil, core.Errorf("NewSQLiteVecClient", core.ErrInvalidArgument, "embedding dimensions must be positive")
	}

	if dir := filepath.Dir(cfg.DBPath); cfg.DBPath != ":memory:" && dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, storage.Unavailable("NewSQLiteVecClient", err)
		}
	}

	db, err := sql.Open("sqlite3", cfg.DBPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, storage.Unavailable("NewSQLiteVecClient", err)
	}
	if cfg.DBPath == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, storage.Unavailable("NewSQLiteVecClient", err)
	}

	table := storage.TableName("", cfg.CollectionName)
	client := &Client{
		db:         db,
		vecTable:   table + "_vec",
		metaTable:  table + "_meta",
		dimensions: cfg.EmbeddingModelDims,
	}

	if err := client.migrate(); err != nil {
		_ = db.Close()
		return nil, storage.Unavailable("NewSQLiteVecClient", err)
	}

	return client, nil
}

func (c *Client) migrate() error {
	vecDDL := fmt.Sprintf(
		`CREATE VIRTUAL TABLE IF NOT EXISTS %s USING vec0(id TEXT PRIMARY KEY, embedding float[%d])`,
		c.vecTable, c.dimensions,
	)
	if _, err := c.db.Exec(vecDDL); err != nil {
		return fmt.Errorf("creating vec0 table: %w", err)
	}

	metaDDL := fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
	id           TEXT PRIMARY KEY,
	content      TEXT NOT NULL DEFAULT '',
	metadata     TEXT NOT NULL DEFAULT '{}',
	content_hash TEXT
)`, c.metaTable)
	if _, err := c.db.Exec(metaDDL); err != nil {
		return fmt.Errorf("creating metadata table: %w", err)
	}

	return nil
}

// Add inserts vectors and their metadata in one transaction.
func (c *Client) Add(ctx context.Context, vectors [][]float64, metadatas []map[string]interface{}) error {
	if err := storage.CheckLengths("Add", vectors, metadatas); err != nil {
		return err
	}
	if len(vectors) == 0 {
		return nil
	}

	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return storage.Unavailable("Add", err)
	}
	defer func() { _ = tx.Rollback() }()

	vecQ := fmt.Sprintf(`INSERT INTO %s(id, embedding) VALUES (?, ?)`, c.vecTable)
	metaQ := fmt.Sprintf(`INSERT INTO %s(id, content, metadata, content_hash) VALUES (?, ?, ?, ?)`, c.metaTable)

	for i, vector := range vectors {
		if len(vector) != c.dimensions {
			return core.Errorf("Add", core.ErrInvalidArgument, "vector %d has %d dimensions, want %d", i, len(vector), c.dimensions)
		}

		blob, err := sqlite_vec.SerializeFloat32(toFloat32(vector))
		if err != nil {
			return fmt.Errorf("Add: serializing embedding: %w", err)
		}

		n, err := storage.NextID()
		if err != nil {
			return storage.Unavailable("Add", err)
		}
		id := strconv.FormatInt(n, 10)

		metadata, content := storage.SplitContent(metadatas[i])
		metaJSON, err := json.Marshal(metadata)
		if err != nil {
			return fmt.Errorf("Add: marshalling metadata: %w", err)
		}
		hash, _ := metadata[storage.KeyContentHash].(string)

		if _, err := tx.ExecContext(ctx, vecQ, id, blob); err != nil {
			return storage.Unavailable("Add", err)
		}
		if _, err := tx.ExecContext(ctx, metaQ, id, content, string(metaJSON), hash); err != nil {
			return storage.Unavailable("Add", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return storage.Unavailable("Add", err)
	}
	return nil
}

// Search performs a k-nearest-neighbor search. vec0 reports L2 distance,
// which is mapped to a similarity of 1/(1+distance).
func (c *Client) Search(ctx context.Context, vector []float64, k int) ([]*storage.Result, error) {
	if k <= 0 {
		return []*storage.Result{}, nil
	}

	blob, err := sqlite_vec.SerializeFloat32(toFloat32(vector))
	if err != nil {
		return nil, fmt.Errorf("Search: serializing query vector: %w", err)
	}

	q := fmt.Sprintf(`SELECT v.id, v.distance, COALESCE(m.content, ''), COALESCE(m.metadata, '{}')
FROM %s v
LEFT JOIN %s m ON m.id = v.id
WHERE v.embedding MATCH ? AND k = ?
ORDER BY v.distance`, c.vecTable, c.metaTable)

	rows, err := c.db.QueryContext(ctx, q, blob, k)
	if err != nil {
		return nil, storage.Unavailable("Search", err)
	}
	defer func() { _ = rows.Close() }()

	results := []*storage.Result{}
	for rows.Next() {
		var (
			r        storage.Result
			distance float64
			metaStr  string
		)
		if err := rows.Scan(&r.ID, &distance, &r.Text, &metaStr); err != nil {
			return nil, storage.Unavailable("Search", err)
		}

		r.Score = 1 / (1 + distance)
		r.Metadata = map[string]interface{}{}
		if metaStr != "" && metaStr != "{}" {
			if err := json.Unmarshal([]byte(metaStr), &r.Metadata); err != nil {
				return nil, fmt.Errorf("Search: unmarshalling metadata: %w", err)
			}
		}
		results = append(results, &r)
	}
	if err := rows.Err(); err != nil {
		return nil, storage.Unavailable("Search", err)
	}

	return results, nil
}

// DeleteByMetadata removes vectors whose metadata matches every filter.
func (c *Client) DeleteByMetadata(ctx context.Context, filters map[string]interface{}) (int, error) {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, storage.Unavailable("DeleteByMetadata", err)
	}
	defer func() { _ = tx.Rollback() }()

	whereClause, args := buildWhereClause(filters)
	rows, err := tx.QueryContext(ctx, fmt.Sprintf(`SELECT id FROM %s %s`, c.metaTable, whereClause), args...)
	if err != nil {
		return 0, storage.Unavailable("DeleteByMetadata", err)
	}

	var ids []interface{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			_ = rows.Close()
			return 0, storage.Unavailable("DeleteByMetadata", err)
		}
		ids = append(ids, id)
	}
	_ = rows.Close()
	if err := rows.Err(); err != nil {
		return 0, storage.Unavailable("DeleteByMetadata", err)
	}

	if len(ids) == 0 {
		return 0, nil
	}

	placeholders := strings.Repeat("?,", len(ids))
	placeholders = placeholders[:len(placeholders)-1]

	if _, err := tx.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s WHERE id IN (%s)`, c.vecTable, placeholders), ids...); err != nil {
		return 0, storage.Unavailable("DeleteByMetadata", err)
	}
	if _, err := tx.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s WHERE id IN (%s)`, c.metaTable, placeholders), ids...); err != nil {
		return 0, storage.Unavailable("DeleteByMetadata", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, storage.Unavailable("DeleteByMetadata", err)
	}
	return len(ids), nil
}

// ContentHashes returns the distinct content hashes stored.
func (c *Client) ContentHashes(ctx context.Context) ([]string, error) {
	rows, err := c.db.QueryContext(ctx, fmt.Sprintf(
		`SELECT DISTINCT content_hash FROM %s WHERE content_hash IS NOT NULL AND content_hash != ''`, c.metaTable))
	if err != nil {
		return nil, storage.Unavailable("ContentHashes", err)
	}
	defer func() { _ = rows.Close() }()

	var hashes []string
	for rows.Next() {
		var hash string
		if err := rows.Scan(&hash); err != nil {
			return nil, storage.Unavailable("ContentHashes", err)
		}
		hashes = append(hashes, hash)
	}
	sort.Strings(hashes)
	return hashes, rows.Err()
}

// Count returns the number of stored vectors.
func (c *Client) Count(ctx context.Context) (int, error) {
	var count int
	if err := c.db.QueryRowContext(ctx, fmt.Sprintf(`SELECT COUNT(*) FROM %s`, c.metaTable)).Scan(&count); err != nil {
		return 0, storage.Unavailable("Count", err)
	}
	return count, nil
}

// Clear removes every vector and its metadata.
func (c *Client) Clear(ctx context.Context) error {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return storage.Unavailable("Clear", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s`, c.vecTable)); err != nil {
		return storage.Unavailable("Clear", err)
	}
	if _, err := tx.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s`, c.metaTable)); err != nil {
		return storage.Unavailable("Clear", err)
	}
	if err := tx.Commit(); err != nil {
		return storage.Unavailable("Clear", err)
	}
	return nil
}

// Close closes the underlying database connection.
func (c *Client) Close() error {
	return c.db.Close()
}

func toFloat32(vector []float64) []float32 {
	out := make([]float32, len(vector))
	for i, v := range vector {
		out[i] = float32(v)
	}
	return out
}

// buildWhereClause matches filter keys against the JSON metadata column.
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
