package preview

import (
	"sync"
	"time"
)

// Debounce windows per payload class. Code-panel edits favor fewer round-trips
// during active typing; visual edits favor responsiveness.
const (
	DebounceCodeEdit   = 3 * time.Second
	DebounceVisualEdit = 500 * time.Millisecond
	DebounceCodeUpdate = 300 * time.Millisecond
)

// Debouncer coalesces pushes of one payload class: only the most recent
// payload within the window is delivered; earlier pending payloads are
// superseded, never queued. The queue depth is exactly one.
type Debouncer[T any] struct {
	mu      sync.Mutex
	window  time.Duration
	deliver func(T)
	timer   *time.Timer
	pending T
	armed   bool
}

func NewDebouncer[T any](window time.Duration, deliver func(T)) *Debouncer[T] {
	return &Debouncer[T]{window: window, deliver: deliver}
}

// Push replaces any pending payload and restarts the window.
func (d *Debouncer[T]) Push(payload T) {
	if d == nil || d.deliver == nil {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.pending = payload
	d.armed = true
	if d.timer == nil {
		d.timer = time.AfterFunc(d.window, d.fire)
		return
	}
	d.timer.Reset(d.window)
}

func (d *Debouncer[T]) fire() {
	d.mu.Lock()
	if !d.armed {
		d.mu.Unlock()
		return
	}
	payload := d.pending
	d.armed = false
	var zero T
	d.pending = zero
	d.mu.Unlock()

	d.deliver(payload)
}

// Flush delivers a pending payload immediately, if any.
func (d *Debouncer[T]) Flush() {
	if d == nil {
		return
	}
	d.mu.Lock()
	if d.timer != nil {
		d.timer.Stop()
	}
	d.mu.Unlock()
	d.fire()
}

// Stop discards any pending payload and cancels the timer.
func (d *Debouncer[T]) Stop() {
	if d == nil {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.timer != nil {
		d.timer.Stop()
	}
	d.armed = false
	var zero T
	d.pending = zero
}
