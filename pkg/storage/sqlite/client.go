// Package sqlite stores knowledge-base chunks in a single SQLite table.
//
// Embeddings are kept as JSON arrays and scored in Go on every search, which
// is fine for the few thousand chunks a local knowledge base holds. Use the
// sqlitevec package when the table grows past that.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/oceanbase/mindshard-go/pkg/core"
	"github.com/oceanbase/mindshard-go/pkg/storage"
)

// Config describes one table. DBPath may be ":memory:".
// EmbeddingModelDims of 0 disables the dimension check.
type Config struct {
	DBPath             string
	CollectionName     string
	EmbeddingModelDims int
}

type Client struct {
	db         *sql.DB
	table      string
	dimensions int
}

// NewClient opens (creating if needed) the database and its table.
func NewClient(cfg *Config) (*Client, error) {
	if dir := filepath.Dir(cfg.DBPath); cfg.DBPath != ":memory:" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, storage.Unavailable("NewSQLiteClient", err)
		}
	}

	db, err := sql.Open("sqlite3", cfg.DBPath+"?_foreign_keys=1&_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, storage.Unavailable("NewSQLiteClient", err)
	}

	// An in-memory database exists per connection.
	if cfg.DBPath == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, storage.Unavailable("NewSQLiteClient", err)
	}

	c := &Client{
		db:         db,
		table:      storage.TableName("", cfg.CollectionName),
		dimensions: cfg.EmbeddingModelDims,
	}
	if err := c.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return c, nil
}

func (c *Client) migrate(ctx context.Context) error {
	stmts := []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			id           INTEGER PRIMARY KEY,
			content      TEXT NOT NULL,
			embedding    TEXT NOT NULL,
			metadata     TEXT,
			content_hash TEXT,
			created_at   DATETIME DEFAULT CURRENT_TIMESTAMP
		)`, c.table),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_%[1]s_hash ON %[1]s(content_hash)`, c.table),
	}
	for _, stmt := range stmts {
		if _, err := c.db.ExecContext(ctx, stmt); err != nil {
			return storage.Unavailable("migrate", err)
		}
	}
	return nil
}

// Add inserts one row per vector inside a single transaction.
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

	query := fmt.Sprintf(`
		INSERT INTO %s (id, content, embedding, metadata, content_hash, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, c.table)

	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return storage.Unavailable("Add", err)
	}
	defer func() { _ = stmt.Close() }()

	for i, vector := range vectors {
		if c.dimensions > 0 && len(vector) != c.dimensions {
			return core.Errorf("Add", core.ErrInvalidArgument, "vector %d has %d dimensions, want %d", i, len(vector), c.dimensions)
		}

		id, err := storage.NextID()
		if err != nil {
			return storage.Unavailable("Add", err)
		}

		metadata, content := storage.SplitContent(metadatas[i])

		embeddingJSON, err := json.Marshal(vector)
		if err != nil {
			return fmt.Errorf("Add: %w", err)
		}
		metadataJSON, err := json.Marshal(metadata)
		if err != nil {
			return fmt.Errorf("Add: %w", err)
		}

		if _, err := stmt.ExecContext(ctx,
			id,
			content,
			string(embeddingJSON),
			string(metadataJSON),
			hashOf(metadata),
			time.Now().UTC(),
		); err != nil {
			return storage.Unavailable("Add", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return storage.Unavailable("Add", err)
	}
	return nil
}

// Search scans every row and ranks by cosine similarity.
func (c *Client) Search(ctx context.Context, vector []float64, k int) ([]*storage.Result, error) {
	if k <= 0 {
		return []*storage.Result{}, nil
	}

	query := fmt.Sprintf(`
		SELECT id, content, embedding, metadata
		FROM %s
		ORDER BY id
	`, c.table)

	rows, err := c.db.QueryContext(ctx, query)
	if err != nil {
		return nil, storage.Unavailable("Search", err)
	}
	defer func() { _ = rows.Close() }()

	results := []*storage.Result{}
	for rows.Next() {
		result, embedding, err := scanRow(rows)
		if err != nil {
			return nil, storage.Unavailable("Search", err)
		}
		result.Score = storage.CosineSimilarity(vector, embedding)
		results = append(results, result)
	}

	if err := rows.Err(); err != nil {
		return nil, storage.Unavailable("Search", err)
	}

	return storage.SortByScore(results, k), nil
}

// DeleteByMetadata deletes every row whose metadata matches all filters.
func (c *Client) DeleteByMetadata(ctx context.Context, filters map[string]interface{}) (int, error) {
	whereClause, args := buildWhereClause(filters)

	query := fmt.Sprintf("DELETE FROM %s %s", c.table, whereClause)

	result, err := c.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, storage.Unavailable("DeleteByMetadata", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, storage.Unavailable("DeleteByMetadata", err)
	}

	return int(rowsAffected), nil
}

// ContentHashes returns the distinct content hashes stored in the table.
func (c *Client) ContentHashes(ctx context.Context) ([]string, error) {
	query := fmt.Sprintf(`
		SELECT DISTINCT content_hash FROM %s
		WHERE content_hash IS NOT NULL AND content_hash != ''
	`, c.table)

	rows, err := c.db.QueryContext(ctx, query)
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

	return hashes, rows.Err()
}

// Count returns the number of stored rows.
func (c *Client) Count(ctx context.Context) (int, error) {
	var count int
	query := fmt.Sprintf("SELECT COUNT(*) FROM %s", c.table)
	if err := c.db.QueryRowContext(ctx, query).Scan(&count); err != nil {
		return 0, storage.Unavailable("Count", err)
	}
	return count, nil
}

// Clear removes all rows.
func (c *Client) Clear(ctx context.Context) error {
	query := fmt.Sprintf("DELETE FROM %s", c.table)
	if _, err := c.db.ExecContext(ctx, query); err != nil {
		return storage.Unavailable("Clear", err)
	}
	return nil
}

func (c *Client) Close() error {
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}

// scanRow scans a result and its embedding from the current row.
func scanRow(rows *sql.Rows) (*storage.Result, []float64, error) {
	var (
		id           int64
		content      string
		embeddingStr string
		metadataStr  sql.NullString
	)

	if err := rows.Scan(&id, &content, &embeddingStr, &metadataStr); err != nil {
		return nil, nil, err
	}

	var embedding []float64
	if err := json.Unmarshal([]byte(embeddingStr), &embedding); err != nil {
		return nil, nil, fmt.Errorf("parse embedding: %w", err)
	}

	metadata := map[string]interface{}{}
	if metadataStr.Valid && metadataStr.String != "" {
		if err := json.Unmarshal([]byte(metadataStr.String), &metadata); err != nil {
			return nil, nil, fmt.Errorf("parse metadata: %w", err)
		}
	}

	return &storage.Result{
		ID:       fmt.Sprintf("%d", id),
		Text:     content,
		Metadata: metadata,
	}, embedding, nil
}
