package watcher

import (
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"serverdeck/internal/logging"
)

const (
	defaultBuffer      = 256
	maxRestartAttempts = 3
	restartBaseDelay   = 200 * time.Millisecond
)

var ErrClosed = errors.New("watcher closed")

// New creates a Watcher with no paths registered.
func New(options Options) (*Watcher, error) {
	source, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	logger := options.Logger
	if logger == nil {
		logger = logging.Discard()
	}
	buffer := options.Buffer
	if buffer <= 0 {
		buffer = defaultBuffer
	}

	instance := &Watcher{
		watcher: source,
		trees:   make(map[string]struct{}),
		dirs:    make(map[string]struct{}),
		files:   make(map[string]struct{}),
		parents: make(map[string]int),
		events:  make(chan Event, buffer),
		done:    make(chan struct{}),
		logger:  logger.Component("watcher"),
	}
	instance.startForwarder(source)
	return instance, nil
}

// Events returns the delivery channel. It is never closed; select on it
// alongside your own shutdown signal.
func (watcher *Watcher) Events() <-chan Event {
	return watcher.events
}

// AddTree watches root and every directory beneath it.
func (watcher *Watcher) AddTree(root string) error {
	root = filepath.Clean(root)
	info, err := os.Stat(root)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return errors.New("not a directory: " + root)
	}

	watcher.mutex.Lock()
	if watcher.closed {
		watcher.mutex.Unlock()
		return ErrClosed
	}
	watcher.trees[root] = struct{}{}
	watcher.mutex.Unlock()

	return watcher.addDirs(root)
}

// AddFile watches a single file through its parent directory. The file does
// not have to exist yet, but its parent does.
func (watcher *Watcher) AddFile(path string) error {
	path = filepath.Clean(path)
	parent := filepath.Dir(path)

	watcher.mutex.Lock()
	if watcher.closed {
		watcher.mutex.Unlock()
		return ErrClosed
	}
	if _, ok := watcher.files[path]; ok {
		watcher.mutex.Unlock()
		return nil
	}
	watcher.mutex.Unlock()

	if err := watcher.addWatch(parent); err != nil {
		return err
	}

	watcher.mutex.Lock()
	watcher.files[path] = struct{}{}
	watcher.parents[parent]++
	watcher.mutex.Unlock()
	return nil
}

// Close stops event delivery and releases the fsnotify handle.
func (watcher *Watcher) Close() error {
	if watcher == nil {
		return nil
	}

	watcher.mutex.Lock()
	if watcher.closed {
		watcher.mutex.Unlock()
		return nil
	}
	watcher.closed = true
	source := watcher.watcher
	watcher.mutex.Unlock()

	watcher.restartMutex.Lock()
	if watcher.restartTimer != nil {
		watcher.restartTimer.Stop()
		watcher.restartTimer = nil
	}
	watcher.restartMutex.Unlock()

	close(watcher.done)
	if source == nil {
		return nil
	}
	return source.Close()
}

// Metrics reports current watcher stats.
func (watcher *Watcher) Metrics() Metrics {
	if watcher == nil {
		return Metrics{}
	}
	watcher.mutex.Lock()
	active := len(watcher.dirs)
	for parent := range watcher.parents {
		if _, ok := watcher.dirs[parent]; !ok {
			active++
		}
	}
	watcher.mutex.Unlock()
	watcher.restartMutex.Lock()
	restartAttempts := watcher.restartAttempts
	watcher.restartMutex.Unlock()
	return Metrics{
		ActiveWatches:   active,
		EventsDelivered: watcher.eventsDelivered.Load(),
		Errors:          watcher.errorCount.Load(),
		RestartAttempts: restartAttempts,
	}
}

func (watcher *Watcher) startForwarder(source *fsnotify.Watcher) {
	if source == nil {
		return
	}

	go func() {
		for {
			select {
			case event, ok := <-source.Events:
				if !ok {
					return
				}
				watcher.handleEvent(event)
			case err, ok := <-source.Errors:
				if !ok {
					return
				}
				watcher.handleError(err)
			case <-watcher.done:
				return
			}
		}
	}()
}

func (watcher *Watcher) handleEvent(event fsnotify.Event) {
	path := filepath.Clean(event.Name)

	watcher.mutex.Lock()
	if watcher.closed {
		watcher.mutex.Unlock()
		return
	}
	inTree := watcher.inTreeLocked(path)
	_, isFile := watcher.files[path]
	if inTree && event.Op.Has(fsnotify.Remove|fsnotify.Rename) {
		delete(watcher.dirs, path)
	}
	watcher.mutex.Unlock()

	if !inTree && !isFile {
		return
	}

	watcher.deliver(Event{Path: path, Op: event.Op, Timestamp: time.Now().UTC()})

	if inTree && event.Op.Has(fsnotify.Create) {
		if info, err := os.Stat(path); err == nil && info.IsDir() {
			watcher.adoptDir(path)
		}
	}
}

// adoptDir watches a directory that appeared inside a tree and reports the
// files it already holds, which were created before the watch existed.
func (watcher *Watcher) adoptDir(path string) {
	if err := watcher.addDirs(path); err != nil {
		watcher.logWarn("watch add failed", map[string]string{"path": path, "error": err.Error()})
	}
	entries, err := listFiles(path)
	if err != nil {
		return
	}
	for _, file := range entries {
		watcher.deliver(Event{Path: file, Op: fsnotify.Create, Timestamp: time.Now().UTC()})
	}
}

func (watcher *Watcher) deliver(event Event) {
	select {
	case watcher.events <- event:
		watcher.eventsDelivered.Add(1)
	case <-watcher.done:
	}
}

func (watcher *Watcher) inTreeLocked(path string) bool {
	for root := range watcher.trees {
		if path == root || strings.HasPrefix(path, root+string(filepath.Separator)) {
			return true
		}
	}
	return false
}

func (watcher *Watcher) logWarn(message string, fields map[string]string) {
	if watcher == nil || watcher.logger == nil {
		return
	}
	watcher.logger.Warn(message, fields)
}

func (watcher *Watcher) logDebug(message, path string, activeCount int) {
	if watcher == nil || watcher.logger == nil {
		return
	}
	watcher.logger.Debug(message, map[string]string{
		"path":           path,
		"active_watches": strconv.Itoa(activeCount),
	})
}
