package journal

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/oceanbase/mindshard-go/pkg/core"
)

// File is a JSON Lines journal. Each entry is one line.
type File struct {
	mu   sync.Mutex
	path string
}

// NewFile opens (creating if needed) the JSON Lines file at path.
func NewFile(path string) (*File, error) {
	if path == "" {
		return nil, core.Errorf("NewFileJournal", core.ErrInvalidConfig, "journal path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, core.NewMemoryError("NewFileJournal", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDONLY, 0o644)
	if err != nil {
		return nil, core.NewMemoryError("NewFileJournal", err)
	}
	_ = f.Close()
	return &File{path: path}, nil
}

// Append implements Journal.
func (j *File) Append(ctx context.Context, entry *core.Entry) error {
	line, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal entry: %w", err)
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	f, err := os.OpenFile(j.path, os.O_APPEND|os.O_WRONLY|os.O_CREATE, 0o644)
	if err != nil {
		return core.NewMemoryError("JournalAppend", err)
	}
	defer func() { _ = f.Close() }()

	if _, err := f.Write(append(line, '\n')); err != nil {
		return core.NewMemoryError("JournalAppend", err)
	}
	return nil
}

// Recent implements Journal. Lines that do not decode are logged and skipped.
func (j *File) Recent(ctx context.Context, limit int) ([]*core.Entry, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	entries, err := j.readLocked()
	if err != nil {
		return nil, err
	}
	return tail(entries, limit), nil
}

func (j *File) readLocked() ([]*core.Entry, error) {
	data, err := os.ReadFile(j.path)
	if err != nil {
		if os.IsNotExist(err) {
			return []*core.Entry{}, nil
		}
		return nil, core.NewMemoryError("JournalRead", err)
	}

	entries := []*core.Entry{}
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		var entry core.Entry
		if err := json.Unmarshal(line, &entry); err != nil {
			slog.Warn("skipping malformed journal line", slog.String("path", j.path), slog.Any("error", err))
			continue
		}
		entries = append(entries, &entry)
	}
	if err := scanner.Err(); err != nil {
		return nil, core.NewMemoryError("JournalRead", err)
	}
	return entries, nil
}

// Delete implements Journal by rewriting the file without the entry.
func (j *File) Delete(ctx context.Context, id string) (bool, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	entries, err := j.readLocked()
	if err != nil {
		return false, err
	}

	kept := entries[:0]
	for _, e := range entries {
		if e.ID != id {
			kept = append(kept, e)
		}
	}
	if len(kept) == len(entries) {
		return false, nil
	}
	return true, j.rewriteLocked(kept)
}

func (j *File) rewriteLocked(entries []*core.Entry) error {
	var buf bytes.Buffer
	for _, e := range entries {
		line, err := json.Marshal(e)
		if err != nil {
			return fmt.Errorf("marshal entry: %w", err)
		}
		buf.Write(line)
		buf.WriteByte('\n')
	}

	tmp := j.path + ".tmp"
	if err := os.WriteFile(tmp, buf.Bytes(), 0o644); err != nil {
		return core.NewMemoryError("JournalRewrite", err)
	}
	if err := os.Rename(tmp, j.path); err != nil {
		return core.NewMemoryError("JournalRewrite", err)
	}
	return nil
}

// Clear implements Journal.
func (j *File) Clear(ctx context.Context) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if err := os.Truncate(j.path, 0); err != nil && !os.IsNotExist(err) {
		return core.NewMemoryError("JournalClear", err)
	}
	return nil
}

// Close is a no-op; the file is opened per operation.
func (j *File) Close() error {
	return nil
}
