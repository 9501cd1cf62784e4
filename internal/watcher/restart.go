package watcher

import (
	"time"

	"github.com/fsnotify/fsnotify"
)

// An fsnotify error (queue overflow, handle invalidated) leaves the kernel
// watch set in an unknown state, so the watcher rebuilds it from scratch.
func (watcher *Watcher) handleError(err error) {
	if err == nil {
		return
	}
	watcher.errorCount.Add(1)
	watcher.logWarn("watcher error", map[string]string{
		"error": err.Error(),
	})
	watcher.scheduleRestart()
}

func restartDelay(attempt int) time.Duration {
	return restartBaseDelay * time.Duration(1<<attempt)
}

func (watcher *Watcher) scheduleRestart() {
	watcher.restartMutex.Lock()
	defer watcher.restartMutex.Unlock()
	if watcher.restartTimer != nil {
		return
	}
	if watcher.restartAttempts >= maxRestartAttempts {
		watcher.logWarn("watcher restart attempts exhausted", nil)
		return
	}
	delay := restartDelay(watcher.restartAttempts)
	watcher.restartAttempts++
	watcher.restartTimer = time.AfterFunc(delay, watcher.performRestart)
}

func (watcher *Watcher) performRestart() {
	restartErr := watcher.restart()

	watcher.restartMutex.Lock()
	watcher.restartTimer = nil
	if restartErr == nil {
		watcher.restartAttempts = 0
		watcher.restartMutex.Unlock()
		return
	}
	watcher.restartMutex.Unlock()

	watcher.logWarn("watcher restart failed", map[string]string{
		"error": restartErr.Error(),
	})
	watcher.scheduleRestart()
}

func (watcher *Watcher) restart() error {
	watcher.mutex.Lock()
	if watcher.closed {
		watcher.mutex.Unlock()
		return nil
	}
	trees := make([]string, 0, len(watcher.trees))
	for root := range watcher.trees {
		trees = append(trees, root)
	}
	parents := make([]string, 0, len(watcher.parents))
	for parent := range watcher.parents {
		parents = append(parents, parent)
	}
	watcher.mutex.Unlock()

	replacement, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}

	dirs := map[string]struct{}{}
	for _, root := range trees {
		found, err := collectDirs(root)
		if err != nil {
			watcher.logWarn("watcher re-add failed", map[string]string{"path": root, "error": err.Error()})
			continue
		}
		for _, dir := range found {
			if err := replacement.Add(dir); err == nil {
				dirs[dir] = struct{}{}
			}
		}
	}
	for _, parent := range parents {
		if _, ok := dirs[parent]; ok {
			continue
		}
		if err := replacement.Add(parent); err != nil {
			watcher.logWarn("watcher re-add failed", map[string]string{"path": parent, "error": err.Error()})
		}
	}

	watcher.mutex.Lock()
	if watcher.closed {
		watcher.mutex.Unlock()
		_ = replacement.Close()
		return nil
	}
	previous := watcher.watcher
	watcher.watcher = replacement
	watcher.dirs = dirs
	watcher.mutex.Unlock()

	watcher.startForwarder(replacement)
	if previous != nil {
		_ = previous.Close()
	}
	return nil
}
