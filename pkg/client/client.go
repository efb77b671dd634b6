// Package client wires the memory engine together from a core.Config: one
// digestor per knowledge base in a registry, the memory layers on top of
// the long-term knowledge base, the journal and the metrics recorder.
package client

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cast"

	"github.com/oceanbase/mindshard-go/pkg/core"
	"github.com/oceanbase/mindshard-go/pkg/digestor"
	"github.com/oceanbase/mindshard-go/pkg/embedder"
	"github.com/oceanbase/mindshard-go/pkg/journal"
	"github.com/oceanbase/mindshard-go/pkg/layers"
	"github.com/oceanbase/mindshard-go/pkg/llm"
	"github.com/oceanbase/mindshard-go/pkg/metrics"
	"github.com/oceanbase/mindshard-go/pkg/registry"
	"github.com/oceanbase/mindshard-go/pkg/storage"
)

// AllGroup is the registry group spanning every knowledge base.
const AllGroup = "all"

// Option configures NewClient.
type Option func(*options)

type options struct {
	logger     *slog.Logger
	promReg    *prometheus.Registry
	embedder   embedder.Provider
	summarizer llm.Summarizer
}

// WithLogger sets the logger shared by every component.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithPrometheusRegistry registers collectors in reg instead of a fresh
// registry. It has no effect unless metrics are enabled.
func WithPrometheusRegistry(reg *prometheus.Registry) Option {
	return func(o *options) {
		o.promReg = reg
	}
}

// WithEmbedder uses p instead of building the configured embedder. The
// client still closes it.
func WithEmbedder(p embedder.Provider) Option {
	return func(o *options) {
		o.embedder = p
	}
}

// WithSummarizer uses s instead of the configured summarizer backend.
func WithSummarizer(s llm.Summarizer) Option {
	return func(o *options) {
		o.summarizer = s
	}
}

// Client is the entry point to a configured memory engine.
//
// Example usage:
//
//	config, _ := core.LoadConfigFromEnv()
//	c, _ := client.NewClient(config)
//	defer c.Close()
//
//	c.Ingest(ctx, "prompt_cookbook", "cli", []core.Document{{Path: "intro.md", Content: text}}, false)
//	c.Remember(ctx, "User prefers Go", nil)
//	items := c.Recall(ctx, "language preference", layers.DefaultKWork, layers.DefaultKLong)
type Client struct {
	config *core.Config
	logger *slog.Logger

	metrics metrics.Recorder
	prom    *metrics.Prometheus

	embedder   embedder.Provider
	llm        llm.Provider
	summarizer llm.Summarizer
	journal    journal.Journal

	registry *registry.Manager
	layers   *layers.MemoryLayers

	// mu serializes knowledge base lifecycle changes
	mu sync.Mutex
}

// NewClient validates cfg and builds every component. On failure, whatever
// was already opened is closed again.
func NewClient(cfg *core.Config, opts ...Option) (_ *Client, err error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	o := &options{}
	for _, opt := range opts {
		opt(o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}

	c := &Client{
		config:  cfg,
		logger:  o.logger,
		metrics: metrics.Noop{},
	}
	defer func() {
		if err != nil {
			_ = c.Close()
		}
	}()

	if cfg.Metrics.Enabled {
		if c.prom, err = metrics.NewPrometheus(o.promReg); err != nil {
			return nil, core.NewMemoryError("NewClient", err)
		}
		c.metrics = c.prom
	}

	c.embedder = o.embedder
	if c.embedder == nil {
		if c.embedder, err = initEmbedder(cfg.Embedder); err != nil {
			return nil, err
		}
	}

	c.summarizer = o.summarizer
	if c.summarizer == nil {
		if c.llm, err = initLLM(cfg.LLM); err != nil {
			return nil, err
		}
		c.summarizer = newSummarizer(cfg.LLM, c.llm, c.logger)
	}

	if c.journal, err = journal.New(cfg.Journal); err != nil {
		return nil, err
	}

	c.registry = registry.NewManager(registry.WithLogger(c.logger), registry.WithMetrics(c.metrics))
	for _, kb := range cfg.KnowledgeBases {
		if err = c.register(kb, cfg.Digestor.ChunkSize, cfg.Digestor.ChunkOverlap); err != nil {
			return nil, err
		}
	}
	if err = c.registry.CreateGroup(AllGroup, cfg.KnowledgeBases); err != nil {
		return nil, err
	}
	if err = c.loadCatalog(); err != nil {
		return nil, err
	}

	longterm, err := c.registry.GetInstance(cfg.LongTermKB)
	if err != nil {
		return nil, err
	}
	layerOpts := []layers.Option{
		layers.WithFlushThreshold(cfg.Memory.FlushThreshold),
		layers.WithLogger(c.logger),
		layers.WithMetrics(c.metrics),
	}
	if c.journal != nil {
		layerOpts = append(layerOpts, layers.WithJournal(c.journal))
	}
	c.layers = layers.New(longterm, c.summarizer, layerOpts...)

	ctx := context.Background()
	if cfg.Memory.RebuildHashesOnStart {
		c.rebuildSeenHashes(ctx)
	}
	if err = c.restoreWorking(ctx); err != nil {
		c.logger.Warn("restoring working tier from journal failed", slog.Any("error", err))
		err = nil
	}

	return c, nil
}

// register builds and registers the digestor for kb.
func (c *Client) register(kb string, chunkSize, chunkOverlap int) error {
	d, err := c.newDigestor(kb, chunkSize, chunkOverlap)
	if err != nil {
		return err
	}
	if err := c.registry.RegisterInstance(kb, d); err != nil {
		_ = d.Close()
		return err
	}
	return nil
}

func (c *Client) newDigestor(kb string, chunkSize, chunkOverlap int) (*digestor.Digestor, error) {
	if strings.TrimSpace(kb) == "" {
		return nil, core.Errorf("NewKnowledgeBase", core.ErrInvalidArgument, "knowledge base name is empty")
	}

	store, err := initStorage(c.config.VectorStore, kb)
	if err != nil {
		return nil, err
	}

	d, err := c.digestorOver(kb, store, chunkSize, chunkOverlap)
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	return d, nil
}

func (c *Client) digestorOver(kb string, store storage.VectorStore, chunkSize, chunkOverlap int) (*digestor.Digestor, error) {
	return digestor.New(store, c.embedder,
		digestor.WithName(kb),
		digestor.WithChunking(chunkSize, chunkOverlap),
		digestor.WithSummarizer(c.summarizer),
		digestor.WithWorkers(c.config.Digestor.WorkerConcurrency),
		digestor.WithEmbedTimeout(c.config.Digestor.EmbedTimeout()),
		digestor.WithLogger(c.logger),
		digestor.WithMetrics(c.metrics),
	)
}

func (c *Client) rebuildSeenHashes(ctx context.Context) {
	for _, kb := range c.registry.ListInstances() {
		d, err := c.registry.GetInstance(kb)
		if err != nil {
			continue
		}
		if _, err := d.RebuildSeenHashes(ctx); err != nil {
			c.logger.Warn("rebuilding seen hashes failed", slog.String("kb", kb), slog.Any("error", err))
		}
	}
}

// restoreWorking reloads the journaled turns that no summary has replaced
// yet, so the working tier survives a restart.
func (c *Client) restoreWorking(ctx context.Context) error {
	if c.journal == nil {
		return nil
	}
	entries, err := c.journal.Recent(ctx, 0)
	if err != nil {
		return err
	}

	summarized := make(map[string]bool)
	for _, e := range entries {
		if e.Type != core.EntryTypeSummary {
			continue
		}
		for _, id := range cast.ToStringSlice(e.Metadata[layers.MetaSourceEntryIDs]) {
			summarized[id] = true
		}
	}

	restored := 0
	for _, e := range entries {
		if e.Type == core.EntryTypeSummary || summarized[e.ID] {
			continue
		}
		c.layers.Working.Add(e)
		restored++
	}
	if restored > 0 {
		c.logger.Info("restored working tier from journal", slog.Int("entries", restored))
	}
	return nil
}

// Config returns the configuration the client was built from.
func (c *Client) Config() *core.Config {
	return c.config
}

// Registry returns the knowledge base registry.
func (c *Client) Registry() *registry.Manager {
	return c.registry
}

// Layers returns the memory hierarchy.
func (c *Client) Layers() *layers.MemoryLayers {
	return c.layers
}

// Journal returns the entry journal, or nil when journaling is disabled.
func (c *Client) Journal() journal.Journal {
	return c.journal
}

// MetricsHandler serves the Prometheus metrics, or returns nil when
// metrics are disabled.
func (c *Client) MetricsHandler() http.Handler {
	if c.prom == nil {
		return nil
	}
	return c.prom.Handler()
}

// CreateKnowledgeBase registers a new knowledge base with the configured
// chunking and adds it to the all group.
func (c *Client) CreateKnowledgeBase(ctx context.Context, kb string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, err := c.registry.GetInstance(kb); err == nil {
		return core.Errorf("CreateKnowledgeBase", core.ErrAlreadyExists, "knowledge base %q", kb)
	}
	if err := c.register(kb, c.config.Digestor.ChunkSize, c.config.Digestor.ChunkOverlap); err != nil {
		return err
	}
	if d, err := c.registry.GetInstance(kb); err == nil {
		if _, err := d.RebuildSeenHashes(ctx); err != nil {
			c.logger.Warn("rebuilding seen hashes failed", slog.String("kb", kb), slog.Any("error", err))
		}
	}
	if err := c.registry.AddToGroup(AllGroup, kb); err != nil {
		return err
	}
	c.saveCatalog()
	return nil
}

// UpdateKnowledgeBase replaces the digestor of kb with one using new
// chunking settings over the same store. Stored records are kept and
// later ingestions use the new settings.
func (c *Client) UpdateKnowledgeBase(ctx context.Context, kb string, chunkSize, chunkOverlap int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if kb == c.config.LongTermKB {
		return core.Errorf("UpdateKnowledgeBase", core.ErrInvalidArgument, "%q backs the long-term tier", kb)
	}
	old, err := c.registry.GetInstance(kb)
	if err != nil {
		return err
	}

	d, err := c.digestorOver(kb, old.Store(), chunkSize, chunkOverlap)
	if err != nil {
		return err
	}
	if err := c.registry.UpdateInstance(kb, d); err != nil {
		return err
	}
	if _, err := d.RebuildSeenHashes(ctx); err != nil {
		c.logger.Warn("rebuilding seen hashes failed", slog.String("kb", kb), slog.Any("error", err))
	}
	c.logger.Info("updated knowledge base", slog.String("kb", kb),
		slog.Int("chunk_size", chunkSize), slog.Int("chunk_overlap", chunkOverlap))
	return nil
}

// DeleteKnowledgeBase clears kb, removes it from the registry and every
// group, and closes its store. The long-term knowledge base cannot be
// deleted.
func (c *Client) DeleteKnowledgeBase(ctx context.Context, kb string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if kb == c.config.LongTermKB {
		return core.Errorf("DeleteKnowledgeBase", core.ErrInvalidArgument, "%q backs the long-term tier", kb)
	}
	d, err := c.registry.GetInstance(kb)
	if err != nil {
		return err
	}
	if err := c.registry.DeleteInstance(ctx, kb); err != nil {
		return err
	}
	c.saveCatalog()
	return d.Close()
}

// CreateGroup creates group gid over existing knowledge bases.
func (c *Client) CreateGroup(gid string, kbs []string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.registry.CreateGroup(gid, kbs); err != nil {
		return err
	}
	c.saveCatalog()
	return nil
}

// DeleteGroup deletes group gid. The knowledge bases are kept. AllGroup
// cannot be deleted.
func (c *Client) DeleteGroup(gid string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if gid == AllGroup {
		return core.Errorf("DeleteGroup", core.ErrInvalidArgument, "group %q is built in", gid)
	}
	if err := c.registry.DeleteGroup(gid); err != nil {
		return err
	}
	c.saveCatalog()
	return nil
}

// AddToGroup adds knowledge base kb to group gid.
func (c *Client) AddToGroup(gid, kb string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.registry.AddToGroup(gid, kb); err != nil {
		return err
	}
	c.saveCatalog()
	return nil
}

// RemoveFromGroup removes knowledge base kb from group gid.
func (c *Client) RemoveFromGroup(gid, kb string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.registry.RemoveFromGroup(gid, kb); err != nil {
		return err
	}
	c.saveCatalog()
	return nil
}

// Ingest ingests docs into knowledge base kb.
func (c *Client) Ingest(ctx context.Context, kb, source string, docs []core.Document, force bool) (digestor.IngestStats, error) {
	d, err := c.registry.GetInstance(kb)
	if err != nil {
		return digestor.IngestStats{}, err
	}
	return d.IngestDocuments(ctx, source, docs, force)
}

// Query searches knowledge base kb.
func (c *Client) Query(ctx context.Context, kb, text string, k int) ([]*storage.Result, error) {
	return c.registry.QueryInstance(ctx, kb, text, k)
}

// QueryGroup searches every knowledge base in group gid and merges the hits.
func (c *Client) QueryGroup(ctx context.Context, gid, text string, kPerInstance, topK int) ([]*storage.Result, error) {
	return c.registry.QueryGroup(ctx, gid, text, kPerInstance, topK)
}

// Remember commits content as a user interaction turn. It returns the
// summary when the commit triggered a flush.
func (c *Client) Remember(ctx context.Context, content string, metadata map[string]interface{}) (*core.Entry, string, bool) {
	entry := core.NewEntry(core.EntryTypeUserInteraction, content, core.WithEntryMetadata(metadata))
	summary, flushed := c.layers.CommitTurn(ctx, entry)
	return entry, summary, flushed
}

// Recall queries the memory hierarchy.
func (c *Client) Recall(ctx context.Context, text string, kWork, kLong int) []layers.Item {
	return c.layers.QueryAll(ctx, text, kWork, kLong)
}

// Flush promotes the working tier regardless of the threshold.
func (c *Client) Flush(ctx context.Context) (string, bool) {
	return c.layers.ShortTerm.ForceFlush(ctx)
}

// CommitScratch concatenates the working tier into one summary entry,
// journals it and removes the committed entries from the working tier.
// Nothing is written to the long-term tier.
//
// It fails with core.ErrEmptyScratchpad when the working tier is empty and
// with core.ErrNotConfigured when no journal is configured.
func (c *Client) CommitScratch(ctx context.Context) (*core.Entry, error) {
	if c.journal == nil {
		return nil, core.Errorf("CommitScratch", core.ErrNotConfigured, "no journal configured")
	}

	entries := c.layers.Working.List()
	if len(entries) == 0 {
		return nil, core.NewMemoryError("CommitScratch", core.ErrEmptyScratchpad)
	}

	contents := make([]string, len(entries))
	ids := make([]interface{}, len(entries))
	for i, e := range entries {
		contents[i] = e.Content
		ids[i] = e.ID
	}
	summary := core.NewEntry(core.EntryTypeSummary, strings.Join(contents, "\n"),
		core.WithEntryMetadata(map[string]interface{}{layers.MetaSourceEntryIDs: ids}))

	if err := c.journal.Append(ctx, summary); err != nil {
		return nil, core.NewMemoryError("CommitScratch", err)
	}
	c.layers.Working.Remove(entries)
	c.logger.Info("committed scratchpad", slog.Int("entries", len(entries)))
	return summary, nil
}

// ClearScratch empties the working tier. Journaled copies of the discarded
// turns are deleted so they are not restored on the next start.
func (c *Client) ClearScratch(ctx context.Context) (int, error) {
	entries := c.layers.Working.List()
	c.layers.Working.Remove(entries)
	return len(entries), c.unjournal(ctx, entries)
}

// unjournal deletes the journaled turns of entries so a restart does not
// restore them.
func (c *Client) unjournal(ctx context.Context, entries []*core.Entry) error {
	if c.journal == nil {
		return nil
	}
	var errs []error
	for _, e := range entries {
		if _, err := c.journal.Delete(ctx, e.ID); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Start launches periodic promotion with the configured interval.
func (c *Client) Start(ctx context.Context) {
	c.layers.Start(ctx, c.config.Memory.PeriodicFlushInterval())
}

// ClearAll empties the working tier and every knowledge base. Knowledge
// bases and groups stay registered. The journaled turns of the cleared
// working entries are deleted; summaries stay in the journal.
func (c *Client) ClearAll(ctx context.Context) error {
	entries := c.layers.Working.List()
	c.layers.Working.Remove(entries)
	return errors.Join(c.unjournal(ctx, entries), c.registry.ClearGroup(ctx, AllGroup))
}

// Close stops periodic promotion and closes every store, the providers and
// the journal. All components are closed; the first error is returned.
func (c *Client) Close() error {
	var errs []error

	if c.layers != nil {
		c.layers.Stop()
	}
	if c.registry != nil {
		for _, kb := range c.registry.ListInstances() {
			d, err := c.registry.GetInstance(kb)
			if err != nil {
				continue
			}
			if err := d.Close(); err != nil {
				errs = append(errs, err)
			}
		}
	}
	if c.embedder != nil {
		if err := c.embedder.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if c.llm != nil {
		if err := c.llm.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if c.journal != nil {
		if err := c.journal.Close(); err != nil {
			errs = append(errs, err)
		}
	}

	if len(errs) > 0 {
		return errs[0]
	}
	return nil
}
