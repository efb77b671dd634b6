package core

import (
	"time"

	"github.com/google/uuid"
)

// Well-known entry types.
const (
	// EntryTypeUserInteraction tags a turn recorded from a conversation.
	EntryTypeUserInteraction = "user_interaction"

	// EntryTypeSummary tags entries produced by summarizing the working tier.
	EntryTypeSummary = "summary"
)

// Entry is a single memory record.
//
// Entries are immutable once created. They are appended to the working tier,
// optionally promoted (as part of a summary) into the long-term tier and
// recorded in the journal.
//
// Example:
//
//	entry := core.NewEntry(core.EntryTypeUserInteraction, "User prefers Go",
//	    core.WithEntryMetadata(map[string]interface{}{"session": "s1"}),
//	)
type Entry struct {
	// ID is an opaque unique token assigned at creation.
	ID string `json:"id"`

	// Timestamp is the creation time in UTC.
	Timestamp time.Time `json:"timestamp"`

	// Type is a free-form tag such as "user_interaction" or "summary".
	Type string `json:"type"`

	// Content is the text payload.
	Content string `json:"content"`

	// Metadata is an open key/value map.
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// NewEntry creates an entry with a fresh UUID and the current UTC time.
func NewEntry(entryType, content string, opts ...EntryOption) *Entry {
	options := ApplyEntryOptions(opts)

	entry := &Entry{
		ID:        options.ID,
		Timestamp: options.Timestamp,
		Type:      entryType,
		Content:   content,
		Metadata:  options.Metadata,
	}
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}
	return entry
}

// Document is ingestion input. Path is a logical identifier and need not be
// a filesystem path.
type Document struct {
	Path    string `json:"path"`
	Content string `json:"content"`
}

// UnknownPath is used for documents ingested without a path.
const UnknownPath = "<unknown>"

// SessionSummaryPath is the path under which the short-term tier stores
// summaries in the long-term tier.
const SessionSummaryPath = "<session-summary>"
