package core

import "time"

// EntryOption is a function type for configuring NewEntry.
type EntryOption func(*EntryOptions)

// EntryOptions contains optional fields for a new entry.
type EntryOptions struct {
	// ID overrides the generated UUID (used when restoring entries).
	ID string

	// Timestamp overrides the creation time.
	Timestamp time.Time

	// Metadata contains additional metadata about the entry.
	Metadata map[string]interface{}
}

// WithEntryID sets an explicit id instead of a generated UUID.
func WithEntryID(id string) EntryOption {
	return func(opts *EntryOptions) {
		opts.ID = id
	}
}

// WithEntryTimestamp sets an explicit creation time. The value is stored in UTC.
func WithEntryTimestamp(ts time.Time) EntryOption {
	return func(opts *EntryOptions) {
		opts.Timestamp = ts.UTC()
	}
}

// WithEntryMetadata sets the entry metadata.
//
// Example:
//
//	entry := core.NewEntry("note", "text", core.WithEntryMetadata(map[string]interface{}{
//	    "session": "s1",
//	}))
func WithEntryMetadata(metadata map[string]interface{}) EntryOption {
	return func(opts *EntryOptions) {
		opts.Metadata = metadata
	}
}

// ApplyEntryOptions applies a slice of EntryOption functions.
func ApplyEntryOptions(opts []EntryOption) *EntryOptions {
	options := &EntryOptions{}
	for _, opt := range opts {
		opt(options)
	}
	return options
}
