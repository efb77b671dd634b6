// Package postgres stores knowledge-base chunks in PostgreSQL using the
// pgvector extension. Search orders by the <=> cosine distance operator.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	_ "github.com/lib/pq"

	"github.com/oceanbase/mindshard-go/pkg/storage"
)

// Config holds connection settings and the table to use. SSLMode defaults
// to "disable".
type Config struct {
	Host               string
	Port               int
	User               string
	Password           string
	DBName             string
	SSLMode            string
	CollectionName     string
	EmbeddingModelDims int
}

func (cfg *Config) dsn() string {
	mode := cfg.SSLMode
	if mode == "" {
		mode = "disable"
	}
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.DBName, mode)
}

type Client struct {
	db         *sql.DB
	table      string
	dimensions int
}

// NewClient connects and creates the extension, table and hash index when
// missing.
func NewClient(cfg *Config) (*Client, error) {
	db, err := sql.Open("postgres", cfg.dsn())
	if err != nil {
		return nil, storage.Unavailable("NewPostgresClient", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, storage.Unavailable("NewPostgresClient", err)
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
		"CREATE EXTENSION IF NOT EXISTS vector",
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			id           BIGINT PRIMARY KEY,
			content      TEXT NOT NULL,
			embedding    vector(%d) NOT NULL,
			metadata     JSONB,
			content_hash VARCHAR(64),
			created_at   TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`, c.table, c.dimensions),
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
		VALUES ($1, $2, $3, $4, $5, $6)
	`, c.table)

	for i, vector := range vectors {
		id, err := storage.NextID()
		if err != nil {
			return storage.Unavailable("Add", err)
		}

		metadata, content := storage.SplitContent(metadatas[i])
		metadataJSON, err := json.Marshal(metadata)
		if err != nil {
			return fmt.Errorf("Add: %w", err)
		}

		hash, _ := metadata[storage.KeyContentHash].(string)

		if _, err := tx.ExecContext(ctx, query,
			id,
			content,
			storage.VectorLiteral(vector),
			string(metadataJSON),
			hash,
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

// Search performs vector search using pgvector's cosine distance operator.
func (c *Client) Search(ctx context.Context, vector []float64, k int) ([]*storage.Result, error) {
	if k <= 0 {
		return []*storage.Result{}, nil
	}

	// <=> is cosine distance, 1 - cosine similarity
	query := fmt.Sprintf(`
		SELECT id, content, metadata, 1 - (embedding <=> $1) AS similarity
		FROM %s
		ORDER BY embedding <=> $1
		LIMIT $2
	`, c.table)

	rows, err := c.db.QueryContext(ctx, query, storage.VectorLiteral(vector), k)
	if err != nil {
		return nil, storage.Unavailable("Search", err)
	}
	defer func() { _ = rows.Close() }()

	results := []*storage.Result{}
	for rows.Next() {
		var (
			id          int64
			result      storage.Result
			metadataRaw []byte
		)
		if err := rows.Scan(&id, &result.Text, &metadataRaw, &result.Score); err != nil {
			return nil, storage.Unavailable("Search", err)
		}

		result.ID = strconv.FormatInt(id, 10)
		result.Metadata = map[string]interface{}{}
		if len(metadataRaw) > 0 {
			if err := json.Unmarshal(metadataRaw, &result.Metadata); err != nil {
				return nil, fmt.Errorf("Search: parse metadata: %w", err)
			}
		}
		results = append(results, &result)
	}

	if err := rows.Err(); err != nil {
		return nil, storage.Unavailable("Search", err)
	}
	return results, nil
}

// DeleteByMetadata deletes every row whose metadata matches all filters.
func (c *Client) DeleteByMetadata(ctx context.Context, filters map[string]interface{}) (int, error) {
	whereClause, args := buildWhereClause(filters, 1)

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
		WHERE content_hash IS NOT NULL AND content_hash <> ''
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
	query := fmt.Sprintf("TRUNCATE TABLE %s", c.table)
	if _, err := c.db.ExecContext(ctx, query); err != nil {
		return storage.Unavailable("Clear", err)
	}
	return nil
}

// Close closes the database connection.
func (c *Client) Close() error {
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}
