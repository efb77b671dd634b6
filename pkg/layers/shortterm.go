package layers

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/oceanbase/mindshard-go/pkg/core"
	"github.com/oceanbase/mindshard-go/pkg/journal"
	"github.com/oceanbase/mindshard-go/pkg/llm"
	"github.com/oceanbase/mindshard-go/pkg/metrics"
)

// SummarySource is the source label of summaries written to the long-term tier.
const SummarySource = "short_term"

// DefaultFlushThreshold is used when the threshold is not positive.
const DefaultFlushThreshold = 10

// MetaSourceEntryIDs is the summary entry metadata key listing the ids of
// the entries it replaced.
const MetaSourceEntryIDs = "source_entry_ids"

var (
	errEmptySummary = errors.New("summarizer returned an empty summary")
	errNoChunks     = errors.New("summary produced no stored chunks")
)

// ShortTerm promotes the working tier into the long-term tier by
// summarizing it once it holds threshold entries.
type ShortTerm struct {
	working    *Working
	longterm   *LongTerm
	summarizer llm.Summarizer
	threshold  int
	journal    journal.Journal
	logger     *slog.Logger
	metrics    metrics.Recorder

	// flushing serializes flushes; a flush that finds one running returns
	flushing sync.Mutex
}

// Flush summarizes the working tier when it holds at least threshold
// entries. On success the summary is stored in the long-term tier under
// core.SessionSummaryPath, the summarized entries leave the working tier
// and the summary is returned with true.
//
// Below threshold, while another flush runs, or on any failure it returns
// ("", false) and the working tier is left untouched.
func (s *ShortTerm) Flush(ctx context.Context) (string, bool) {
	return s.flush(ctx, s.threshold)
}

// ForceFlush flushes regardless of the threshold as long as the working
// tier holds at least one entry.
func (s *ShortTerm) ForceFlush(ctx context.Context) (string, bool) {
	return s.flush(ctx, 1)
}

// Threshold returns the flush threshold.
func (s *ShortTerm) Threshold() int {
	return s.threshold
}

func (s *ShortTerm) flush(ctx context.Context, threshold int) (string, bool) {
	if s.working.Len() < threshold {
		s.logger.Debug("working tier below flush threshold",
			slog.Int("entries", s.working.Len()), slog.Int("threshold", threshold))
		return "", false
	}
	if !s.flushing.TryLock() {
		s.logger.Debug("flush already in progress")
		return "", false
	}
	defer s.flushing.Unlock()

	// re-read under the flush lock: a concurrent flush may have drained it
	entries := s.working.List()
	if len(entries) < threshold {
		return "", false
	}

	start := time.Now()
	summary, err := s.summarizeAndStore(ctx, entries)
	s.metrics.ObserveOp(metrics.ComponentLayers, "flush", time.Since(start), err)
	if err != nil {
		s.logger.Error("short-term flush failed, keeping working entries",
			slog.Int("entries", len(entries)), slog.Any("error", err))
		return "", false
	}

	s.working.Remove(entries)
	s.metrics.AddCount(metrics.ComponentLayers, "entries_flushed", len(entries))
	s.logger.Info("flushed working tier into long-term memory", slog.Int("entries", len(entries)))

	if s.journal != nil {
		ids := make([]interface{}, len(entries))
		for i, e := range entries {
			ids[i] = e.ID
		}
		entry := core.NewEntry(core.EntryTypeSummary, summary,
			core.WithEntryMetadata(map[string]interface{}{MetaSourceEntryIDs: ids}))
		if err := s.journal.Append(ctx, entry); err != nil {
			s.logger.Warn("journaling summary failed", slog.Any("error", err))
		}
	}
	return summary, true
}

func (s *ShortTerm) summarizeAndStore(ctx context.Context, entries []*core.Entry) (string, error) {
	if s.summarizer == nil {
		return "", core.Errorf("Flush", core.ErrNotConfigured, "no summarizer configured")
	}

	contents := make([]string, len(entries))
	for i, e := range entries {
		contents[i] = e.Content
	}

	summary, err := s.summarizer.Summarize(ctx, strings.Join(contents, "\n"))
	if err != nil {
		return "", core.NewMemoryError("Flush", err)
	}
	if strings.TrimSpace(summary) == "" {
		return "", core.NewMemoryError("Flush", errEmptySummary)
	}

	stats, err := s.longterm.Ingest(ctx, SummarySource, []core.Document{
		{Path: core.SessionSummaryPath, Content: summary},
	}, true)
	if err != nil {
		return "", err
	}
	if stats.Chunks == 0 {
		return "", core.NewMemoryError("Flush", errNoChunks)
	}
	return summary, nil
}
