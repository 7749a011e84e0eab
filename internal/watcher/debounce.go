package watcher

import (
	"log/slog"
	"sync"
	"time"
)

// debouncer coalesces rapid events for the same path so a burst of editor
// writes triggers one index update instead of many. Within a window:
//
//	create + modify = create
//	create + delete = nothing (the file never really existed)
//	modify + delete = delete
//	delete + create = modify (the file was replaced)
type debouncer struct {
	window time.Duration
	logger *slog.Logger

	mu      sync.Mutex
	pending map[string]*pendingChange
	timer   *time.Timer
	out     chan []Event
	stopped bool
}

type pendingChange struct {
	event   Event
	firstOp Op
}

func newDebouncer(window time.Duration, logger *slog.Logger) *debouncer {
	return &debouncer{
		window:  window,
		logger:  logger,
		pending: make(map[string]*pendingChange),
		out:     make(chan []Event, 8),
	}
}

// add records an event, coalescing it with any pending change for the same
// path, and re-arms the flush timer.
func (d *debouncer) add(ev Event) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return
	}

	if prev, ok := d.pending[ev.Path]; ok {
		merged := coalesce(prev, ev)
		if merged == nil {
			delete(d.pending, ev.Path)
		} else {
			prev.event = *merged
		}
	} else {
		d.pending[ev.Path] = &pendingChange{event: ev, firstOp: ev.Op}
	}

	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.window, d.flush)
}

// coalesce merges a new event into a pending change for the same path.
// A nil result means the two cancelled out.
func coalesce(prev *pendingChange, next Event) *Event {
	switch prev.firstOp {
	case OpCreate:
		switch next.Op {
		case OpModify:
			return &prev.event
		case OpDelete:
			return nil
		default:
			return &next
		}
	case OpDelete:
		if next.Op == OpCreate {
			next.Op = OpModify
			return &next
		}
		return &next
	default:
		return &next
	}
}

func (d *debouncer) flush() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped || len(d.pending) == 0 {
		return
	}

	batch := make([]Event, 0, len(d.pending))
	for _, pc := range d.pending {
		batch = append(batch, pc.event)
	}
	d.pending = make(map[string]*pendingChange)

	select {
	case d.out <- batch:
	default:
		d.logger.Warn("change_batch_dropped", "size", len(batch))
	}
}

// output delivers flushed batches. Closed by stop.
func (d *debouncer) output() <-chan []Event {
	return d.out
}

// stop halts flushing and closes the output channel. Safe to call twice.
func (d *debouncer) stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return
	}
	d.stopped = true
	if d.timer != nil {
		d.timer.Stop()
	}
	close(d.out)
}
