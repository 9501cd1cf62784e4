// Package notifier turns filesystem activity under a game server directory
// into debounced per-category refresh signals.
package notifier

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"serverdeck/internal/broadcast"
	"serverdeck/internal/event"
	"serverdeck/internal/logging"
	"serverdeck/internal/metrics"
	"serverdeck/internal/watcher"
)

const DefaultDebounce = 500 * time.Millisecond

// Roots are relative to the server directory. Directories are watched
// recursively, files through their parent.
var Roots = []string{
	"universe/players",
	"universe/memories.json",
	"universe/warps.json",
	"universe/worlds/default/chunks",
	"universe/worlds/default/resources/BlockMapMarkers.json",
	"mods",
}

type RefreshEvent struct {
	Category  Category  `json:"category"`
	Timestamp time.Time `json:"timestamp"`
}

func (e RefreshEvent) Type() string {
	return string(e.Category)
}

type Options struct {
	Debounce    time.Duration
	Logger      *logging.Logger
	Broadcaster broadcast.Broadcaster
	Metrics     *metrics.Registry
}

type Notifier struct {
	window      time.Duration
	logger      *logging.Logger
	broadcaster broadcast.Broadcaster
	metrics     *metrics.Registry
	bus         *event.Bus[RefreshEvent]

	lifecycle sync.Mutex

	mu        sync.Mutex
	serverDir string
	watcher   *watcher.Watcher
	debounce  *debouncer
	done      chan struct{}
	wg        sync.WaitGroup
}

func New(opts Options) *Notifier {
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}
	if opts.Logger == nil {
		opts.Logger = logging.Discard()
	}
	if opts.Broadcaster == nil {
		opts.Broadcaster = broadcast.Discard{}
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.Default
	}
	logger := opts.Logger.Component("notifier")
	return &Notifier{
		window:      opts.Debounce,
		logger:      logger,
		broadcaster: opts.Broadcaster,
		metrics:     opts.Metrics,
		bus: event.NewBus[RefreshEvent](context.Background(), event.BusOptions{
			Name:     "data_refresh",
			Registry: opts.Metrics,
			Logger:   logger,
		}),
	}
}

// Start watches serverDir. A watch already running is stopped first, so
// calling Start again re-targets the notifier.
func (n *Notifier) Start(serverDir string) error {
	n.lifecycle.Lock()
	defer n.lifecycle.Unlock()

	if err := n.stop(); err != nil {
		n.logger.Warn("previous watch did not close cleanly", map[string]string{"error": err.Error()})
	}

	w, err := watcher.New(watcher.Options{Logger: n.logger})
	if err != nil {
		return err
	}
	watched := 0
	for _, root := range Roots {
		if n.addRoot(w, filepath.Join(serverDir, filepath.FromSlash(root))) {
			watched++
		}
	}

	done := make(chan struct{})
	n.mu.Lock()
	n.serverDir = serverDir
	n.watcher = w
	n.debounce = newDebouncer(n.window, n.flush)
	n.done = done
	n.wg.Add(1)
	n.mu.Unlock()

	go n.consume(w, done)
	n.logger.Info("watching server directory", map[string]string{
		"server_dir": serverDir,
		"roots":      strconv.Itoa(watched),
	})
	return nil
}

// Stop cancels pending refreshes and releases the watch. No refresh is
// broadcast after Stop returns. Calling Stop without an active watch is a
// no-op.
func (n *Notifier) Stop() error {
	n.lifecycle.Lock()
	defer n.lifecycle.Unlock()
	return n.stop()
}

func (n *Notifier) stop() error {
	n.mu.Lock()
	w := n.watcher
	debounce := n.debounce
	done := n.done
	n.watcher = nil
	n.debounce = nil
	n.done = nil
	n.serverDir = ""
	n.mu.Unlock()

	if w == nil {
		return nil
	}
	debounce.stop()
	close(done)
	n.wg.Wait()
	n.logger.Info("stopped watching server directory", nil)
	return w.Close()
}

// Watching reports the directory currently watched.
func (n *Notifier) Watching() (string, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.serverDir, n.watcher != nil
}

func (n *Notifier) Subscribe() (<-chan RefreshEvent, func()) {
	return n.bus.Subscribe()
}

func (n *Notifier) Close() error {
	err := n.Stop()
	n.bus.Close()
	return err
}

func (n *Notifier) addRoot(w *watcher.Watcher, path string) bool {
	info, err := os.Stat(path)
	switch {
	case err == nil && info.IsDir():
		err = w.AddTree(path)
	case err == nil:
		err = w.AddFile(path)
	}
	if err != nil {
		n.logger.Info("watch root unavailable, skipping", map[string]string{
			"path":  path,
			"error": err.Error(),
		})
		return false
	}
	return true
}

func (n *Notifier) consume(w *watcher.Watcher, done <-chan struct{}) {
	defer n.wg.Done()
	for {
		select {
		case change := <-w.Events():
			n.handle(change.Path)
		case <-done:
			return
		}
	}
}

func (n *Notifier) handle(path string) {
	n.mu.Lock()
	debounce := n.debounce
	serverDir := n.serverDir
	n.mu.Unlock()
	if debounce == nil {
		return
	}
	// Only segments below the server directory count as hidden; the
	// install location itself may sit under a dot-directory.
	if Ignored(relativeTo(serverDir, path)) {
		return
	}
	category, ok := Classify(path)
	if !ok {
		return
	}
	debounce.schedule(category)
}

func relativeTo(root, path string) string {
	rel, err := filepath.Rel(root, path)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return path
	}
	return rel
}

func (n *Notifier) flush(category Category) {
	evt := RefreshEvent{Category: category, Timestamp: time.Now().UTC()}
	n.bus.Publish(evt)
	_ = n.broadcaster.Broadcast(broadcast.ChannelDataRefresh, map[string]string{"category": string(category)})
	n.metrics.IncRefresh(string(category))
	n.logger.Debug("data refresh", map[string]string{"category": string(category)})
}
