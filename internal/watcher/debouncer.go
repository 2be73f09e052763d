package watcher

import (
	"sync"
	"time"
)

// Operation is the index action an event resolves to
type Operation int

const (
	// OpCreate indicates a new file appeared
	OpCreate Operation = iota
	// OpModify indicates an existing file was written
	OpModify
	// OpDelete indicates a file was removed or renamed away
	OpDelete
)

// String returns a human-readable representation of the operation.
func (op Operation) String() string {
	switch op {
	case OpCreate:
		return "CREATE"
	case OpModify:
		return "MODIFY"
	case OpDelete:
		return "DELETE"
	default:
		return "UNKNOWN"
	}
}

// FileEvent is a settled change to one path
type FileEvent struct {
	Path      string
	Operation Operation
	Timestamp time.Time
}

// Debouncer delays each path's event until no further event for that path
// arrives within the window. Events for the same path coalesce:
//   - CREATE + MODIFY = CREATE
//   - CREATE + DELETE = nothing
//   - DELETE + CREATE = MODIFY
//   - otherwise the latest operation wins
type Debouncer struct {
	window  time.Duration
	mu      sync.Mutex
	pending map[string]*pendingEvent
	seq     uint64
	output  chan FileEvent
	stopCh  chan struct{}
	stopped bool
}

type pendingEvent struct {
	event FileEvent
	timer *time.Timer
	gen   uint64
}

// NewDebouncer creates a debouncer with the given per-path window
func NewDebouncer(window time.Duration) *Debouncer {
	return &Debouncer{
		window:  window,
		pending: make(map[string]*pendingEvent),
		output:  make(chan FileEvent, 64),
		stopCh:  make(chan struct{}),
	}
}

// Add schedules event, restarting the window for its path
func (d *Debouncer) Add(event FileEvent) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return
	}

	path := event.Path
	if existing, ok := d.pending[path]; ok {
		existing.timer.Stop()
		merged, keep := coalesce(existing.event.Operation, event)
		if !keep {
			delete(d.pending, path)
			return
		}
		event = merged
	}

	d.seq++
	gen := d.seq
	d.pending[path] = &pendingEvent{
		event: event,
		gen:   gen,
		timer: time.AfterFunc(d.window, func() { d.fire(path, gen) }),
	}
}

// coalesce merges a new event into the pending operation for its path.
// It reports false when the two cancel out.
func coalesce(prev Operation, next FileEvent) (FileEvent, bool) {
	switch {
	case prev == OpCreate && next.Operation == OpModify:
		next.Operation = OpCreate
	case prev == OpCreate && next.Operation == OpDelete:
		return next, false
	case prev == OpDelete && next.Operation == OpCreate:
		next.Operation = OpModify
	}
	return next, true
}

// fire emits the pending event for path if it is still generation gen
func (d *Debouncer) fire(path string, gen uint64) {
	d.mu.Lock()
	pe, ok := d.pending[path]
	if !ok || pe.gen != gen || d.stopped {
		d.mu.Unlock()
		return
	}
	delete(d.pending, path)
	d.mu.Unlock()

	select {
	case d.output <- pe.event:
	case <-d.stopCh:
	}
}

// Pending returns the number of paths waiting for their window to close
func (d *Debouncer) Pending() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.pending)
}

// Output returns the channel of settled events
func (d *Debouncer) Output() <-chan FileEvent {
	return d.output
}

// Stop cancels every pending event. Safe to call multiple times.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return
	}
	d.stopped = true
	for _, pe := range d.pending {
		pe.timer.Stop()
	}
	d.pending = make(map[string]*pendingEvent)
	close(d.stopCh)
}
