package logging

import (
	"sync"

	"serverdeck/internal/buffer"
)

// LogBuffer retains the newest entries for the daemon log endpoint.
type LogBuffer struct {
	mu      sync.Mutex
	entries *buffer.Ring[LogEntry]
}

func NewLogBuffer(size int) *LogBuffer {
	return &LogBuffer{entries: buffer.NewRing[LogEntry](size)}
}

func (b *LogBuffer) Add(entry LogEntry) {
	if b == nil {
		return
	}
	b.mu.Lock()
	b.entries.Add(entry)
	b.mu.Unlock()
}

func (b *LogBuffer) List() []LogEntry {
	return b.Tail(0)
}

// Tail returns up to n of the newest entries, oldest first. n <= 0 means all.
func (b *LogBuffer) Tail(n int) []LogEntry {
	if b == nil {
		return nil
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.entries.Last(n)
}

// TailLevel returns up to n of the newest entries at or above minLevel.
func (b *LogBuffer) TailLevel(n int, minLevel Level) []LogEntry {
	matched := make([]LogEntry, 0)
	for _, entry := range b.Tail(0) {
		if LevelAtLeast(entry.Level, minLevel) {
			matched = append(matched, entry)
		}
	}
	if n > 0 && len(matched) > n {
		matched = matched[len(matched)-n:]
	}
	return matched
}
