// Package chromem provides an embedded, pure Go vector store built on
// chromem-go. It needs no external service, which makes it the default
// backend for local use and tests.
package chromem

import (
	"bytes"
	"context"
	"encoding/gob"
	"errors"
	"runtime"
	"sort"
	"strconv"
	"sync"

	chromem "github.com/philippgille/chromem-go"

	"github.com/oceanbase/mindshard-go/pkg/storage"
)

// errNoEmbedder is returned if chromem ever asks for an embedding. Every
// document and query in this package carries its own vector.
var errNoEmbedder = errors.New("chromem: embeddings must be supplied by the caller")

// Client implements VectorStore on a chromem-go collection.
//
// chromem cannot list documents, so the client mirrors every document's
// metadata in records. Deletes resolve ids against that index and the
// content hashes are read from it.
type Client struct {
	db   *chromem.DB
	name string

	mu      sync.RWMutex
	col     *chromem.Collection
	records map[string]map[string]string
}

// Config contains configuration for creating a chromem VectorStore.
type Config struct {
	// CollectionName is the name of the collection.
	CollectionName string

	// PersistDir, when set, makes the database persist to disk.
	PersistDir string
}

// NewClient creates a new chromem VectorStore client.
func NewClient(cfg *Config) (*Client, error) {
	var (
		db  *chromem.DB
		err error
	)
	if cfg.PersistDir != "" {
		db, err = chromem.NewPersistentDB(cfg.PersistDir, false)
		if err != nil {
			return nil, storage.Unavailable("NewChromemClient", err)
		}
	} else {
		db = chromem.NewDB()
	}

	name := cfg.CollectionName
	if name == "" {
		name = "default"
	}

	col, err := db.GetOrCreateCollection(name, nil, noEmbedding)
	if err != nil {
		return nil, storage.Unavailable("NewChromemClient", err)
	}

	records, err := loadRecords(db, name)
	if err != nil {
		return nil, storage.Unavailable("NewChromemClient", err)
	}

	return &Client{db: db, name: name, col: col, records: records}, nil
}

// exportedDB mirrors the gob layout of chromem's DB export.
type exportedDB struct {
	Collections map[string]*struct {
		Name      string
		Metadata  map[string]string
		Documents map[string]*chromem.Document
	}
}

// loadRecords reads back the metadata of every document a persistent
// collection already holds.
func loadRecords(db *chromem.DB, name string) (map[string]map[string]string, error) {
	records := make(map[string]map[string]string)
	if col := db.GetCollection(name, noEmbedding); col == nil || col.Count() == 0 {
		return records, nil
	}

	var buf bytes.Buffer
	if err := db.ExportToWriter(&buf, false, "", name); err != nil {
		return nil, err
	}
	var exported exportedDB
	if err := gob.NewDecoder(&buf).Decode(&exported); err != nil {
		return nil, err
	}

	if col := exported.Collections[name]; col != nil {
		for id, doc := range col.Documents {
			if doc != nil {
				records[id] = doc.Metadata
			}
		}
	}
	return records, nil
}

func noEmbedding(context.Context, string) ([]float32, error) {
	return nil, errNoEmbedder
}

func (c *Client) collection() *chromem.Collection {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.col
}

// Add stores one document per vector.
func (c *Client) Add(ctx context.Context, vectors [][]float64, metadatas []map[string]interface{}) error {
	if err := storage.CheckLengths("Add", vectors, metadatas); err != nil {
		return err
	}
	if len(vectors) == 0 {
		return nil
	}

	docs := make([]chromem.Document, len(vectors))
	for i, vector := range vectors {
		id, err := storage.NextID()
		if err != nil {
			return storage.Unavailable("Add", err)
		}

		metadata, content := storage.SplitContent(metadatas[i])
		docs[i] = chromem.Document{
			ID:        strconv.FormatInt(id, 10),
			Content:   content,
			Embedding: toFloat32(vector),
			Metadata:  stringify(metadata),
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.col.AddDocuments(ctx, docs, runtime.NumCPU()); err != nil {
		return storage.Unavailable("Add", err)
	}
	for _, doc := range docs {
		c.records[doc.ID] = doc.Metadata
	}
	return nil
}

// Search returns the k most similar documents. k is clamped to the
// collection size since chromem rejects larger requests.
func (c *Client) Search(ctx context.Context, vector []float64, k int) ([]*storage.Result, error) {
	col := c.collection()

	if n := col.Count(); k > n {
		k = n
	}
	if k <= 0 {
		return []*storage.Result{}, nil
	}

	hits, err := col.QueryEmbedding(ctx, toFloat32(vector), k, nil, nil)
	if err != nil {
		return nil, storage.Unavailable("Search", err)
	}

	results := make([]*storage.Result, 0, len(hits))
	for _, hit := range hits {
		metadata := make(map[string]interface{}, len(hit.Metadata))
		for key, value := range hit.Metadata {
			metadata[key] = value
		}
		results = append(results, &storage.Result{
			ID:       hit.ID,
			Score:    float64(hit.Similarity),
			Text:     hit.Content,
			Metadata: metadata,
		})
	}

	sort.SliceStable(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	return results, nil
}

// DeleteByMetadata deletes documents matching every filter.
func (c *Client) DeleteByMetadata(ctx context.Context, filters map[string]interface{}) (int, error) {
	if len(filters) == 0 {
		n := c.collection().Count()
		return n, c.Clear(ctx)
	}

	where := make(map[string]string, len(filters))
	for k, v := range filters {
		where[k] = storage.FilterValue(v)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	var ids []string
	for id, metadata := range c.records {
		if matches(metadata, where) {
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		return 0, nil
	}

	if err := c.col.Delete(ctx, nil, nil, ids...); err != nil {
		return 0, storage.Unavailable("DeleteByMetadata", err)
	}
	for _, id := range ids {
		delete(c.records, id)
	}
	return len(ids), nil
}

// ContentHashes returns the distinct content hashes of the stored documents.
func (c *Client) ContentHashes(ctx context.Context) ([]string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	set := make(map[string]struct{}, len(c.records))
	for _, metadata := range c.records {
		if h := metadata[storage.KeyContentHash]; h != "" {
			set[h] = struct{}{}
		}
	}

	hashes := make([]string, 0, len(set))
	for h := range set {
		hashes = append(hashes, h)
	}
	sort.Strings(hashes)
	return hashes, nil
}

// Count returns the number of documents.
func (c *Client) Count(ctx context.Context) (int, error) {
	return c.collection().Count(), nil
}

// Clear drops and recreates the collection.
func (c *Client) Clear(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.db.DeleteCollection(c.name); err != nil {
		return storage.Unavailable("Clear", err)
	}

	col, err := c.db.CreateCollection(c.name, nil, noEmbedding)
	if err != nil {
		return storage.Unavailable("Clear", err)
	}
	c.col = col
	c.records = make(map[string]map[string]string)
	return nil
}

// Close is a no-op; chromem keeps no open handles.
func (c *Client) Close() error {
	return nil
}

func toFloat32(vector []float64) []float32 {
	out := make([]float32, len(vector))
	for i, v := range vector {
		out[i] = float32(v)
	}
	return out
}

func matches(metadata, where map[string]string) bool {
	for k, v := range where {
		got, ok := metadata[k]
		if !ok || got != v {
			return false
		}
	}
	return true
}

// stringify converts metadata to the string map chromem stores.
func stringify(metadata map[string]interface{}) map[string]string {
	out := make(map[string]string, len(metadata))
	for k, v := range metadata {
		if v == nil {
			continue
		}
		out[k] = storage.FilterValue(v)
	}
	return out
}

var (
	_ storage.VectorStore = (*Client)(nil)
	_ storage.HashLister  = (*Client)(nil)
)
