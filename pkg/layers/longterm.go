package layers

import (
	"context"
	"log/slog"

	"github.com/oceanbase/mindshard-go/pkg/core"
	"github.com/oceanbase/mindshard-go/pkg/digestor"
	"github.com/oceanbase/mindshard-go/pkg/storage"
)

// LongTerm is the durable tier, a thin wrapper over one digestor.
// Its failures are logged; reads degrade to empty results.
type LongTerm struct {
	digestor *digestor.Digestor
	logger   *slog.Logger
}

// NewLongTerm wraps d.
func NewLongTerm(d *digestor.Digestor, logger *slog.Logger) *LongTerm {
	if logger == nil {
		logger = slog.Default()
	}
	return &LongTerm{digestor: d, logger: logger}
}

// Digestor returns the wrapped digestor.
func (l *LongTerm) Digestor() *digestor.Digestor {
	return l.digestor
}

// Query returns up to k nearest stored chunks. It never fails.
func (l *LongTerm) Query(ctx context.Context, text string, k int) []*storage.Result {
	return l.digestor.Query(ctx, text, k)
}

// Ingest writes documents. Failures are logged and also returned so the
// short-term tier can keep its entries for a retry.
func (l *LongTerm) Ingest(ctx context.Context, source string, docs []core.Document, force bool) (digestor.IngestStats, error) {
	stats, err := l.digestor.IngestDocuments(ctx, source, docs, force)
	if err != nil {
		l.logger.Warn("long-term ingest failed", slog.Any("error", err))
	}
	return stats, err
}

// Clear removes all long-term data. Failures are logged and returned.
func (l *LongTerm) Clear(ctx context.Context) error {
	if err := l.digestor.Clear(ctx); err != nil {
		l.logger.Warn("long-term clear failed", slog.Any("error", err))
		return err
	}
	return nil
}
