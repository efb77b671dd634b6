// Package digestor turns documents into searchable vector records for one
// knowledge base.
//
// A Digestor chunks each document, embeds the chunks on a bounded worker
// pool and writes them to a storage.VectorStore together with their chunk
// metadata. It remembers the content hash of every ingested document so that
// unchanged documents are not ingested twice.
//
// Read paths never fail: Query degrades to an empty result when the embedder
// or the store is unavailable. Write paths degrade per item: a failing chunk
// or document is logged and dropped without aborting the batch.
//
// Example:
//
//	store, _ := chromem.NewClient(&chromem.Config{CollectionName: "notes"})
//	d, _ := digestor.New(store, mock.New(256), digestor.WithChunking(512, 50))
//
//	_, err := d.IngestDocuments(ctx, "manual", []core.Document{
//	    {Path: "a.md", Content: "hello world"},
//	}, false)
//	results := d.Query(ctx, "hello", 5)
package digestor

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/oceanbase/mindshard-go/pkg/chunker"
	"github.com/oceanbase/mindshard-go/pkg/core"
	"github.com/oceanbase/mindshard-go/pkg/embedder"
	"github.com/oceanbase/mindshard-go/pkg/llm"
	"github.com/oceanbase/mindshard-go/pkg/metrics"
	"github.com/oceanbase/mindshard-go/pkg/storage"
)

// Digestor is the ingestion engine of one knowledge base.
// It is safe for concurrent use.
type Digestor struct {
	name         string
	store        storage.VectorStore
	embedder     embedder.Provider
	chunk        chunker.Func
	chunkSize    int
	chunkOverlap int
	summarizer   llm.Summarizer
	workers      int
	embedTimeout time.Duration
	logger       *slog.Logger
	metrics      metrics.Recorder

	mu sync.Mutex
	// seen maps a content hash to every ingestion of it in this process.
	// Hashes loaded by RebuildSeenHashes may carry no origins.
	seen map[string][]origin
}

// origin is where one ingestion of a hash was written.
type origin struct {
	source string
	path   string
}

// IngestStats summarizes one IngestDocuments call.
type IngestStats struct {
	// Ingested is the number of documents written.
	Ingested int `json:"ingested"`

	// Skipped counts empty and already-seen documents.
	Skipped int `json:"skipped"`

	// Failed counts documents that produced no records.
	Failed int `json:"failed"`

	// Chunks is the number of records written.
	Chunks int `json:"chunks"`
}

// New creates a Digestor writing to store and embedding with emb.
//
// It fails with core.ErrInvalidArgument when the configured chunk size and
// overlap do not satisfy the chunker contract.
func New(store storage.VectorStore, emb embedder.Provider, opts ...Option) (*Digestor, error) {
	if store == nil || emb == nil {
		return nil, core.Errorf("NewDigestor", core.ErrInvalidArgument, "store and embedder are required")
	}

	options := ApplyOptions(opts)
	if err := chunker.Validate(options.ChunkSize, options.ChunkOverlap); err != nil {
		return nil, err
	}

	logger := options.Logger
	if options.Name != "" {
		logger = logger.With(slog.String("kb", options.Name))
	}

	return &Digestor{
		name:         options.Name,
		store:        store,
		embedder:     emb,
		chunk:        options.Chunker,
		chunkSize:    options.ChunkSize,
		chunkOverlap: options.ChunkOverlap,
		summarizer:   options.Summarizer,
		workers:      options.Workers,
		embedTimeout: options.EmbedTimeout,
		logger:       logger,
		metrics:      options.Metrics,
		seen:         make(map[string][]origin),
	}, nil
}

// Name returns the name given with WithName.
func (d *Digestor) Name() string {
	return d.name
}

// Store returns the vector store the digestor writes to.
func (d *Digestor) Store() storage.VectorStore {
	return d.store
}

// ContentHash returns the document-level fingerprint stored as content_hash.
func ContentHash(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}

// IngestDocuments chunks, embeds and stores every document.
//
// Documents with empty content are skipped. A document whose content hash
// was already ingested is skipped unless force is true; force always
// re-ingests and so duplicates records unless they were deleted first.
//
// Each document is processed independently. The returned error joins the
// per-document failures; every other document has still been processed.
func (d *Digestor) IngestDocuments(ctx context.Context, source string, docs []core.Document, force bool) (stats IngestStats, err error) {
	defer metrics.Since(d.metrics, metrics.ComponentDigestor, "ingest_documents", time.Now(), &err)

	var errs []error
	for _, doc := range docs {
		if doc.Content == "" {
			stats.Skipped++
			continue
		}

		path := doc.Path
		if path == "" {
			path = core.UnknownPath
		}
		hash := ContentHash(doc.Content)

		undo, ok := d.reserve(hash, origin{source: source, path: path}, force)
		if !ok {
			d.logger.Debug("skipping already ingested document",
				slog.String("path", path), slog.String("content_hash", hash))
			stats.Skipped++
			continue
		}

		written, docErr := d.ingestDocument(ctx, source, path, hash, doc.Content)
		if docErr != nil || written == 0 {
			undo()
			stats.Failed++
			if docErr != nil {
				d.logger.Warn("document ingestion failed",
					slog.String("path", path), slog.Any("error", docErr))
				errs = append(errs, fmt.Errorf("%s: %w", path, docErr))
			}
			continue
		}

		stats.Ingested++
		stats.Chunks += written
	}

	d.metrics.AddCount(metrics.ComponentDigestor, "chunks_ingested", stats.Chunks)
	d.metrics.AddCount(metrics.ComponentDigestor, "documents_skipped", stats.Skipped)
	if stats.Ingested > 0 {
		d.logger.Info("ingested documents",
			slog.String("source", source),
			slog.Int("documents", stats.Ingested),
			slog.Int("chunks", stats.Chunks))
	}

	if len(errs) > 0 {
		return stats, core.NewMemoryError("IngestDocuments", errors.Join(errs...))
	}
	return stats, nil
}

func (d *Digestor) ingestDocument(ctx context.Context, source, path, hash, content string) (int, error) {
	chunks, err := d.chunk(content, d.chunkSize, d.chunkOverlap)
	if err != nil {
		return 0, err
	}

	metadatas := make([]map[string]interface{}, len(chunks))
	for i := range chunks {
		metadatas[i] = map[string]interface{}{
			storage.KeySource:      source,
			storage.KeyPath:        path,
			storage.KeyChunkIndex:  i,
			storage.KeyContentHash: hash,
		}
	}
	return d.ingestChunks(ctx, chunks, metadatas)
}

// reserve marks hash as seen unless it already is and force is false. The
// reservation is taken before ingestion so that concurrent calls with the
// same content ingest it once. The returned func undoes the reservation.
func (d *Digestor) reserve(hash string, o origin, force bool) (func(), bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	_, had := d.seen[hash]
	if had && !force {
		return nil, false
	}
	d.seen[hash] = append(d.seen[hash], o)

	return func() {
		d.mu.Lock()
		defer d.mu.Unlock()
		origins, ok := d.seen[hash]
		if !ok {
			return
		}
		for i := len(origins) - 1; i >= 0; i-- {
			if origins[i] == o {
				origins = append(origins[:i:i], origins[i+1:]...)
				break
			}
		}
		if len(origins) == 0 && !had {
			delete(d.seen, hash)
			return
		}
		d.seen[hash] = origins
	}, true
}

// IngestChunks embeds chunks and stores them with their metadata. chunks and
// metadatas must have the same length.
//
// A chunk whose embedding fails or times out is logged and dropped. When no
// chunk could be embedded nothing is written and the call still succeeds.
func (d *Digestor) IngestChunks(ctx context.Context, chunks []string, metadatas []map[string]interface{}) error {
	_, err := d.ingestChunks(ctx, chunks, metadatas)
	return err
}

func (d *Digestor) ingestChunks(ctx context.Context, chunks []string, metadatas []map[string]interface{}) (int, error) {
	if len(chunks) != len(metadatas) {
		return 0, core.Errorf("IngestChunks", core.ErrArgumentMismatch,
			"%d chunks vs %d metadatas", len(chunks), len(metadatas))
	}
	if len(chunks) == 0 {
		return 0, nil
	}

	vectors, errs := embedAll(ctx, d.embedder, chunks, d.workers, d.embedTimeout)

	keptVectors := make([][]float64, 0, len(chunks))
	keptMetadatas := make([]map[string]interface{}, 0, len(chunks))
	failed := 0
	for i, vector := range vectors {
		if errs[i] != nil {
			failed++
			d.logger.Warn("chunk embedding failed, dropping chunk",
				slog.Int("chunk", i), slog.Any("error", errs[i]))
			continue
		}

		metadata := make(map[string]interface{}, len(metadatas[i])+1)
		for k, v := range metadatas[i] {
			metadata[k] = v
		}
		metadata[storage.KeyContent] = chunks[i]

		keptVectors = append(keptVectors, vector)
		keptMetadatas = append(keptMetadatas, metadata)
	}
	d.metrics.AddCount(metrics.ComponentDigestor, "embedding_failures", failed)

	if len(keptVectors) == 0 {
		d.logger.Warn("no chunk embeddings succeeded, nothing written", slog.Int("chunks", len(chunks)))
		return 0, nil
	}

	if err := d.store.Add(ctx, keptVectors, keptMetadatas); err != nil {
		return 0, err
	}
	return len(keptVectors), nil
}

// Query returns up to k stored chunks most similar to text, best first.
// k <= 0 uses DefaultK.
//
// Query never fails. Embedding or store failures are logged and yield an
// empty result.
func (d *Digestor) Query(ctx context.Context, text string, k int) []*storage.Result {
	start := time.Now()
	var err error
	defer func() {
		d.metrics.ObserveOp(metrics.ComponentDigestor, "query", time.Since(start), err)
	}()

	if k <= 0 {
		k = DefaultK
	}

	vector, err := d.embedder.Embed(ctx, text)
	if err != nil {
		d.logger.Warn("query embedding failed, returning no results", slog.Any("error", err))
		return []*storage.Result{}
	}

	results, err := d.store.Search(ctx, vector, k)
	if err != nil {
		d.logger.Warn("vector search failed, returning no results", slog.Any("error", err))
		return []*storage.Result{}
	}
	if results == nil {
		results = []*storage.Result{}
	}
	return results
}

// DeleteByMetadata removes every record matching filters and returns the
// number removed. Backends without filtered deletion report
// core.ErrUnsupportedOperation.
func (d *Digestor) DeleteByMetadata(ctx context.Context, filters map[string]interface{}) (n int, err error) {
	defer metrics.Since(d.metrics, metrics.ComponentDigestor, "delete", time.Now(), &err)

	n, err = d.store.DeleteByMetadata(ctx, filters)
	if err != nil {
		if errors.Is(err, core.ErrUnsupportedOperation) {
			return 0, err
		}
		return 0, core.NewMemoryError("DeleteByMetadata", err)
	}

	d.forget(ctx, filters)
	if n > 0 {
		d.logger.Info("deleted records", slog.Int("count", n), slog.Any("filters", filters))
	}
	return n, nil
}

// forget drops seen hashes whose records are gone. Stores that can list
// their hashes are reconciled exactly. Otherwise the filters are matched
// against the recorded origins: a hash is dropped once its last origin is
// deleted. Filters on keys other than source, path and content_hash may
// remove only part of a document, so they leave the set unchanged.
func (d *Digestor) forget(ctx context.Context, filters map[string]interface{}) {
	if lister, ok := d.store.(storage.HashLister); ok {
		hashes, err := lister.ContentHashes(ctx)
		if err == nil {
			stored := make(map[string]struct{}, len(hashes))
			for _, h := range hashes {
				stored[h] = struct{}{}
			}

			d.mu.Lock()
			for h := range d.seen {
				if _, ok := stored[h]; !ok {
					delete(d.seen, h)
				}
			}
			d.mu.Unlock()
			return
		}
		d.logger.Warn("listing stored hashes failed, falling back to filters", slog.Any("error", err))
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if len(filters) == 0 {
		d.seen = make(map[string][]origin)
		return
	}
	for k := range filters {
		switch k {
		case storage.KeySource, storage.KeyPath, storage.KeyContentHash:
		default:
			d.logger.Debug("cannot match filter against seen hashes", slog.String("key", k))
			return
		}
	}

	for h, origins := range d.seen {
		if want, ok := filters[storage.KeyContentHash]; ok && storage.FilterValue(want) != h {
			continue
		}

		var kept []origin
		for _, o := range origins {
			if !originMatches(o, filters) {
				kept = append(kept, o)
			}
		}

		switch {
		case len(kept) > 0:
			d.seen[h] = kept
		case len(origins) > 0 || len(filters) == 1 && filters[storage.KeyContentHash] != nil:
			// the last known origin is gone, or the hash itself was deleted
			delete(d.seen, h)
		}
	}
}

func originMatches(o origin, filters map[string]interface{}) bool {
	if want, ok := filters[storage.KeySource]; ok && storage.FilterValue(want) != o.source {
		return false
	}
	if want, ok := filters[storage.KeyPath]; ok && storage.FilterValue(want) != o.path {
		return false
	}
	return true
}

// UpdateDocument replaces every record of doc.Path with a fresh ingestion of
// doc. The delete and the re-ingest are separate steps: a failure in between
// leaves the document absent and the caller should retry.
func (d *Digestor) UpdateDocument(ctx context.Context, source string, doc core.Document) (IngestStats, error) {
	path := doc.Path
	if path == "" {
		path = core.UnknownPath
	}

	removed, err := d.DeleteByMetadata(ctx, map[string]interface{}{storage.KeyPath: path})
	if err != nil {
		return IngestStats{}, err
	}
	d.logger.Debug("replacing document", slog.String("path", path), slog.Int("removed", removed))

	return d.IngestDocuments(ctx, source, []core.Document{{Path: path, Content: doc.Content}}, true)
}

// Clear removes every record and forgets every seen hash.
func (d *Digestor) Clear(ctx context.Context) (err error) {
	defer metrics.Since(d.metrics, metrics.ComponentDigestor, "clear", time.Now(), &err)

	if err := d.store.Clear(ctx); err != nil {
		return core.NewMemoryError("Clear", err)
	}

	d.mu.Lock()
	d.seen = make(map[string][]origin)
	d.mu.Unlock()

	d.logger.Info("cleared knowledge base")
	return nil
}

// Count returns the number of stored records.
func (d *Digestor) Count(ctx context.Context) (int, error) {
	return d.store.Count(ctx)
}

// SeenHashes returns the number of document hashes currently remembered.
func (d *Digestor) SeenHashes() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.seen)
}

// RebuildSeenHashes replaces the seen-hash set with the hashes held by the
// store, so that documents ingested before a restart are not ingested again.
// Stores that cannot list their hashes keep the in-memory set and the call
// returns zero.
func (d *Digestor) RebuildSeenHashes(ctx context.Context) (int, error) {
	lister, ok := d.store.(storage.HashLister)
	if !ok {
		d.logger.Debug("store cannot list content hashes, seen-hash set stays process-local")
		return 0, nil
	}

	hashes, err := lister.ContentHashes(ctx)
	if err != nil {
		return 0, core.NewMemoryError("RebuildSeenHashes", err)
	}

	seen := make(map[string][]origin, len(hashes))
	for _, h := range hashes {
		seen[h] = nil
	}

	d.mu.Lock()
	// origins learned in this process are still valid for hashes the store holds
	for h, origins := range d.seen {
		if _, ok := seen[h]; ok {
			seen[h] = origins
		}
	}
	d.seen = seen
	d.mu.Unlock()

	d.logger.Debug("rebuilt seen hashes", slog.Int("count", len(seen)))
	return len(seen), nil
}

// Summarize joins the texts of entries and passes them to the configured
// summarizer. It fails with core.ErrNotConfigured without a summarizer and
// returns summarizer errors unchanged in kind.
func (d *Digestor) Summarize(ctx context.Context, entries []*storage.Result, opts ...SummarizeOption) (string, error) {
	if d.summarizer == nil {
		return "", core.Errorf("Summarize", core.ErrNotConfigured, "no summarizer configured")
	}

	options := ApplySummarizeOptions(opts)
	texts := make([]string, 0, len(entries))
	for _, e := range entries {
		if e == nil {
			continue
		}
		texts = append(texts, e.Text)
	}
	if len(texts) == 0 {
		return "", nil
	}

	summary, err := d.summarizer.Summarize(ctx, strings.Join(texts, options.Separator))
	if err != nil {
		d.logger.Error("summarization failed", slog.Any("error", err))
		return "", core.NewMemoryError("Summarize", err)
	}
	return summary, nil
}

// Close closes the underlying store.
func (d *Digestor) Close() error {
	return d.store.Close()
}
