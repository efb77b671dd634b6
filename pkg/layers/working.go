package layers

import (
	"sync"

	"github.com/oceanbase/mindshard-go/pkg/core"
)

// Working is the volatile scratchpad tier. Entries are kept in insertion
// order, oldest first.
type Working struct {
	mu      sync.Mutex
	entries []*core.Entry
}

// NewWorking creates an empty working tier.
func NewWorking() *Working {
	return &Working{}
}

// Add appends entry. A nil entry is ignored.
func (w *Working) Add(entry *core.Entry) {
	if entry == nil {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.entries = append(w.entries, entry)
}

// List returns a snapshot of the entries, oldest first.
func (w *Working) List() []*core.Entry {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]*core.Entry(nil), w.entries...)
}

// Recent returns the last n entries, oldest first.
func (w *Working) Recent(n int) []*core.Entry {
	if n <= 0 {
		return []*core.Entry{}
	}
	w.mu.Lock()
	defer w.mu.Unlock()

	start := len(w.entries) - n
	if start < 0 {
		start = 0
	}
	return append([]*core.Entry{}, w.entries[start:]...)
}

// Len returns the number of entries.
func (w *Working) Len() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.entries)
}

// Clear removes every entry.
func (w *Working) Clear() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.entries = nil
}

// Delete removes the entry with id and reports whether it was present.
func (w *Working) Delete(id string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	for i, e := range w.entries {
		if e.ID == id {
			w.entries = append(w.entries[:i:i], w.entries[i+1:]...)
			return true
		}
	}
	return false
}

// Remove drops exactly the given entries, leaving entries added since the
// snapshot was taken in place.
func (w *Working) Remove(snapshot []*core.Entry) {
	if len(snapshot) == 0 {
		return
	}
	drop := make(map[*core.Entry]struct{}, len(snapshot))
	for _, e := range snapshot {
		drop[e] = struct{}{}
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	kept := make([]*core.Entry, 0, len(w.entries))
	for _, e := range w.entries {
		if _, ok := drop[e]; !ok {
			kept = append(kept, e)
		}
	}
	w.entries = kept
}
