// Package journal keeps a durable, append-only log of memory entries:
// committed turns, flushed summaries and committed scratchpads.
package journal

import (
	"context"

	"github.com/oceanbase/mindshard-go/pkg/core"
)

// Journal is an ordered entry log. Implementations are safe for concurrent use.
type Journal interface {
	// Append adds entry at the end of the log.
	Append(ctx context.Context, entry *core.Entry) error

	// Recent returns the last limit entries, oldest first. limit <= 0
	// returns every entry.
	Recent(ctx context.Context, limit int) ([]*core.Entry, error)

	// Delete removes the entry with id and reports whether it existed.
	Delete(ctx context.Context, id string) (bool, error)

	// Clear removes every entry.
	Clear(ctx context.Context) error

	// Close releases resources.
	Close() error
}

// New builds the journal selected by cfg. An empty provider returns
// (nil, nil): journaling is disabled.
func New(cfg core.JournalConfig) (Journal, error) {
	switch cfg.Provider {
	case "":
		return nil, nil
	case "file":
		f, err := NewFile(cfg.Path)
		if err != nil {
			return nil, err
		}
		return f, nil
	case "redis":
		r, err := NewRedis(&RedisConfig{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			Key:      cfg.RedisKey,
		})
		if err != nil {
			return nil, err
		}
		return r, nil
	default:
		return nil, core.Errorf("NewJournal", core.ErrInvalidConfig, "unsupported journal provider: %s", cfg.Provider)
	}
}

func tail(entries []*core.Entry, limit int) []*core.Entry {
	if limit > 0 && len(entries) > limit {
		return entries[len(entries)-limit:]
	}
	return entries
}
