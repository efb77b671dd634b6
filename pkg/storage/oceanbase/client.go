// Package oceanbase stores knowledge-base chunks in OceanBase over the MySQL
// protocol, using the native VECTOR column and cosine_distance for search.
package oceanbase

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	_ "github.com/go-sql-driver/mysql"

	"github.com/oceanbase/mindshard-go/pkg/storage"
)

type Config struct {
	Host               string
	Port               int
	User               string
	Password           string
	DBName             string
	CollectionName     string
	EmbeddingModelDims int
}

func (cfg *Config) dsn() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true",
		cfg.User, cfg.Password, cfg.Host, cfg.Port, cfg.DBName)
}

type Client struct {
	db     *sql.DB
	config *Config
	table  string
}

// NewClient connects and creates the chunk table when missing.
func NewClient(cfg *Config) (*Client, error) {
	db, err := sql.Open("mysql", cfg.dsn())
	if err != nil {
		return nil, storage.Unavailable("NewOceanBaseClient", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, storage.Unavailable("NewOceanBaseClient", err)
	}

	c := &Client{db: db, config: cfg, table: storage.TableName("", cfg.CollectionName)}
	if err := c.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return c, nil
}

// migrate keeps the legacy hash column so tables shared with older writers
// stay compatible.
func (c *Client) migrate(ctx context.Context) error {
	stmt := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		id           BIGINT PRIMARY KEY,
		embedding    VECTOR(%d),
		document     LONGTEXT,
		metadata     JSON,
		content_hash VARCHAR(64),
		hash         VARCHAR(32),
		created_at   VARCHAR(128),
		INDEX idx_content_hash (content_hash)
	)`, c.table, c.config.EmbeddingModelDims)
	if _, err := c.db.ExecContext(ctx, stmt); err != nil {
		return storage.Unavailable("migrate", err)
	}
	return nil
}

// Add inserts one row per vector inside a single transaction. The chunk text
// goes into the document column and its MD5 into hash.
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
		INSERT INTO %s (id, document, embedding, metadata, content_hash, hash, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, c.table)

	now := time.Now().UTC().Format(time.RFC3339)
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

		contentHash, _ := metadata[storage.KeyContentHash].(string)

		if _, err := tx.ExecContext(ctx, query,
			id,
			content,
			storage.VectorLiteral(vector),
			metadataJSON,
			contentHash,
			generateHash(content),
			now,
		); err != nil {
			return storage.Unavailable("Add", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return storage.Unavailable("Add", err)
	}
	return nil
}

// Search performs vector search using OceanBase's cosine_distance function.
func (c *Client) Search(ctx context.Context, vector []float64, k int) ([]*storage.Result, error) {
	if k <= 0 {
		return []*storage.Result{}, nil
	}

	query := fmt.Sprintf(`
		SELECT id, document, metadata, cosine_distance(embedding, ?) AS distance
		FROM %s
		ORDER BY distance ASC
		LIMIT ?
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
			document    sql.NullString
			metadataRaw []byte
			distance    float64
		)
		if err := rows.Scan(&id, &document, &metadataRaw, &distance); err != nil {
			return nil, storage.Unavailable("Search", err)
		}

		metadata := map[string]interface{}{}
		if len(metadataRaw) > 0 {
			if err := json.Unmarshal(metadataRaw, &metadata); err != nil {
				return nil, fmt.Errorf("Search: parse metadata: %w", err)
			}
		}

		results = append(results, &storage.Result{
			ID:       strconv.FormatInt(id, 10),
			Score:    1 - distance,
			Text:     document.String,
			Metadata: metadata,
		})
	}

	if err := rows.Err(); err != nil {
		return nil, storage.Unavailable("Search", err)
	}
	return results, nil
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
	query := fmt.Sprintf("DELETE FROM %s", c.table)
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
