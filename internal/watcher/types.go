package watcher

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"

	"serverdeck/internal/logging"
)

// Event represents a single filesystem change.
type Event struct {
	Path      string
	Op        fsnotify.Op
	Timestamp time.Time
}

// Options controls watcher behavior.
type Options struct {
	Logger *logging.Logger
	// Buffer sizes the Events channel.
	Buffer int
}

// Metrics reports watcher counters.
type Metrics struct {
	ActiveWatches   int
	EventsDelivered uint64
	Errors          uint64
	RestartAttempts int
}

// Watcher is the fsnotify-backed tree watcher.
type Watcher struct {
	watcher *fsnotify.Watcher
	mutex   sync.Mutex
	trees   map[string]struct{}
	dirs    map[string]struct{}
	files   map[string]struct{}
	parents map[string]int
	events  chan Event
	done    chan struct{}
	closed  bool
	logger  *logging.Logger

	restartMutex    sync.Mutex
	restartTimer    *time.Timer
	restartAttempts int

	eventsDelivered atomic.Uint64
	errorCount      atomic.Uint64
}
