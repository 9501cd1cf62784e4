package notifier

import (
	"sync"
	"time"
)

type pendingFlush struct {
	timer *time.Timer
	seq   uint64
}

// debouncer holds at most one pending flush per category. Every schedule
// replaces the pending flush, so a burst yields a single call once the
// category has been quiet for the window.
type debouncer struct {
	mu      sync.Mutex
	window  time.Duration
	entries map[Category]*pendingFlush
	seq     uint64
	stopped bool
	flush   func(Category)
}

func newDebouncer(window time.Duration, flush func(Category)) *debouncer {
	return &debouncer{
		window:  window,
		entries: make(map[Category]*pendingFlush),
		flush:   flush,
	}
}

func (d *debouncer) schedule(category Category) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return
	}
	if entry := d.entries[category]; entry != nil {
		entry.timer.Stop()
	}
	d.seq++
	seq := d.seq
	d.entries[category] = &pendingFlush{
		seq: seq,
		timer: time.AfterFunc(d.window, func() {
			d.fire(category, seq)
		}),
	}
}

// fire runs flush under d.mu so that stop cannot return while a flush is
// still in progress.
func (d *debouncer) fire(category Category, seq uint64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return
	}
	entry := d.entries[category]
	if entry == nil || entry.seq != seq {
		return
	}
	delete(d.entries, category)
	d.flush(category)
}

func (d *debouncer) pending() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.entries)
}

func (d *debouncer) stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopped = true
	for _, entry := range d.entries {
		entry.timer.Stop()
	}
	d.entries = nil
}
