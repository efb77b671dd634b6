// Package layers implements the tiered memory hierarchy.
//
// Three tiers cooperate behind MemoryLayers:
//
//   - Working: an in-memory scratchpad of recent entries.
//   - ShortTerm: summarizes the working tier into the long-term tier once it
//     reaches a threshold, keeping the entries when anything fails.
//   - LongTerm: a digestor holding summaries as searchable chunks.
//
// CommitTurn appends to the working tier and tries a flush. QueryAll
// returns the most recent working entries followed by the nearest
// long-term chunks; it never fails.
package layers

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/oceanbase/mindshard-go/pkg/core"
	"github.com/oceanbase/mindshard-go/pkg/digestor"
	"github.com/oceanbase/mindshard-go/pkg/journal"
	"github.com/oceanbase/mindshard-go/pkg/llm"
	"github.com/oceanbase/mindshard-go/pkg/metrics"
	"github.com/oceanbase/mindshard-go/pkg/storage"
)

// Item sources reported by QueryAll.
const (
	SourceWorking  = "working"
	SourceLongTerm = "longterm"
)

// Default QueryAll sizes.
const (
	DefaultKWork = 2
	DefaultKLong = 5
)

// Item is one QueryAll hit. Exactly one of Entry and Result is set,
// according to Source.
type Item struct {
	Source string          `json:"source"`
	Entry  *core.Entry     `json:"entry,omitempty"`
	Result *storage.Result `json:"result,omitempty"`
}

// Option configures MemoryLayers.
type Option func(*options)

type options struct {
	threshold int
	journal   journal.Journal
	logger    *slog.Logger
	metrics   metrics.Recorder
}

// WithFlushThreshold sets the number of working entries that triggers a flush.
func WithFlushThreshold(n int) Option {
	return func(o *options) {
		o.threshold = n
	}
}

// WithJournal records committed turns and flushed summaries in j.
func WithJournal(j journal.Journal) Option {
	return func(o *options) {
		o.journal = j
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithMetrics sets the metrics recorder.
func WithMetrics(r metrics.Recorder) Option {
	return func(o *options) {
		o.metrics = r
	}
}

// MemoryLayers is the unified facade over the three tiers.
type MemoryLayers struct {
	Working   *Working
	ShortTerm *ShortTerm
	LongTerm  *LongTerm

	journal journal.Journal
	logger  *slog.Logger
	metrics metrics.Recorder

	// periodic promotion task
	runMu  sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// New builds the hierarchy over longterm. summarizer may be nil, in which
// case every flush fails with core.ErrNotConfigured and entries stay in the
// working tier.
func New(longterm *digestor.Digestor, summarizer llm.Summarizer, opts ...Option) *MemoryLayers {
	o := &options{threshold: DefaultFlushThreshold}
	for _, opt := range opts {
		opt(o)
	}
	if o.threshold <= 0 {
		o.threshold = DefaultFlushThreshold
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	if o.metrics == nil {
		o.metrics = metrics.Noop{}
	}

	working := NewWorking()
	lt := NewLongTerm(longterm, o.logger)
	return &MemoryLayers{
		Working: working,
		ShortTerm: &ShortTerm{
			working:    working,
			longterm:   lt,
			summarizer: summarizer,
			threshold:  o.threshold,
			journal:    o.journal,
			logger:     o.logger,
			metrics:    o.metrics,
		},
		LongTerm: lt,
		journal:  o.journal,
		logger:   o.logger,
		metrics:  o.metrics,
	}
}

// QueryAll returns the kWork most recent working entries (oldest first)
// followed by up to kLong long-term results (best first). Working entries
// are chosen by recency, not relevance. Negative sizes are treated as zero.
func (m *MemoryLayers) QueryAll(ctx context.Context, text string, kWork, kLong int) []Item {
	start := time.Now()
	defer func() {
		m.metrics.ObserveOp(metrics.ComponentLayers, "query_all", time.Since(start), nil)
	}()

	recent := m.Working.Recent(kWork)
	items := make([]Item, 0, len(recent)+max(kLong, 0))
	for _, e := range recent {
		items = append(items, Item{Source: SourceWorking, Entry: e})
	}

	if kLong > 0 {
		for _, r := range m.LongTerm.Query(ctx, text, kLong) {
			items = append(items, Item{Source: SourceLongTerm, Result: r})
		}
	}
	return items
}

// CommitTurn appends entry to the working tier and attempts a flush, which
// is a no-op below the threshold. The flushed summary, if any, is returned.
func (m *MemoryLayers) CommitTurn(ctx context.Context, entry *core.Entry) (string, bool) {
	if entry == nil {
		m.logger.Warn("ignoring nil turn")
		return "", false
	}

	start := time.Now()
	defer func() {
		m.metrics.ObserveOp(metrics.ComponentLayers, "commit_turn", time.Since(start), nil)
	}()

	m.Working.Add(entry)
	m.metrics.AddCount(metrics.ComponentLayers, "working_added", 1)

	if m.journal != nil {
		if err := m.journal.Append(ctx, entry); err != nil {
			m.logger.Warn("journaling turn failed", slog.String("entry", entry.ID), slog.Any("error", err))
		}
	}

	summary, flushed := m.ShortTerm.Flush(ctx)
	if flushed {
		m.logger.Debug("commit triggered short-term flush")
	}
	return summary, flushed
}

// ClearAll clears the working and long-term tiers. The journaled turns of
// the cleared working entries are deleted; summaries stay in the journal.
func (m *MemoryLayers) ClearAll(ctx context.Context) error {
	start := time.Now()
	entries := m.Working.List()
	m.Working.Remove(entries)

	var errs []error
	if m.journal != nil {
		for _, e := range entries {
			if _, err := m.journal.Delete(ctx, e.ID); err != nil {
				errs = append(errs, err)
			}
		}
	}
	errs = append(errs, m.LongTerm.Clear(ctx))
	err := errors.Join(errs...)
	m.metrics.ObserveOp(metrics.ComponentLayers, "clear_all", time.Since(start), err)
	if err == nil {
		m.logger.Info("cleared all memory layers")
	}
	return err
}

// Start launches the periodic promotion task, which calls ShortTerm.Flush
// every interval until Stop is called or ctx ends. Starting a running task
// is a no-op, as is a non-positive interval.
func (m *MemoryLayers) Start(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}

	m.runMu.Lock()
	defer m.runMu.Unlock()
	if m.cancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	m.cancel, m.done = cancel, done

	go func() {
		defer close(done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if _, ok := m.ShortTerm.Flush(ctx); ok {
					m.logger.Info("periodic flush executed")
				}
			}
		}
	}()
	m.logger.Info("scheduled periodic flush", slog.Duration("interval", interval))
}

// Running reports whether the periodic task is active.
func (m *MemoryLayers) Running() bool {
	m.runMu.Lock()
	defer m.runMu.Unlock()
	return m.cancel != nil
}

// Stop cancels the periodic task and waits for it to exit. Working entries
// are never discarded. Stopping a stopped instance is a no-op.
func (m *MemoryLayers) Stop() {
	m.runMu.Lock()
	cancel, done := m.cancel, m.done
	m.cancel, m.done = nil, nil
	m.runMu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
	m.logger.Info("stopped periodic flush")
}
