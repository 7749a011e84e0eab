// Package watcher turns filesystem activity under the library root into
// debounced change batches and drives incremental index updates from them.
package watcher

import "time"

// Op classifies a filesystem change.
type Op int

const (
	OpCreate Op = iota
	OpModify
	OpDelete
	OpRename
)

func (op Op) String() string {
	switch op {
	case OpCreate:
		return "create"
	case OpModify:
		return "modify"
	case OpDelete:
		return "delete"
	case OpRename:
		return "rename"
	default:
		return "unknown"
	}
}

// Event is a single document change under the library root.
type Event struct {
	// Path is slash-separated and relative to the library root.
	Path string

	Op Op

	// At is when the change was observed.
	At time.Time
}

// Options tunes watch behaviour. Zero values take defaults.
type Options struct {
	// Debounce is how long a burst must stay quiet before its batch flushes.
	Debounce time.Duration

	// PollInterval is the rescan interval when falling back to polling.
	PollInterval time.Duration

	// BufferSize is the capacity of the batch channel.
	BufferSize int
}

// DefaultOptions returns the defaults used by the watch command.
func DefaultOptions() Options {
	return Options{
		Debounce:     200 * time.Millisecond,
		PollInterval: 5 * time.Second,
		BufferSize:   64,
	}
}

func (o Options) withDefaults() Options {
	def := DefaultOptions()
	if o.Debounce <= 0 {
		o.Debounce = def.Debounce
	}
	if o.PollInterval <= 0 {
		o.PollInterval = def.PollInterval
	}
	if o.BufferSize <= 0 {
		o.BufferSize = def.BufferSize
	}
	return o
}
