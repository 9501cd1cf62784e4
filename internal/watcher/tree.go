package watcher

import (
	"io/fs"
	"path/filepath"
)

func (watcher *Watcher) addDirs(root string) error {
	dirs, err := collectDirs(root)
	if err != nil {
		return err
	}
	for _, dir := range dirs {
		if err := watcher.addWatch(dir); err != nil {
			return err
		}
		watcher.mutex.Lock()
		watcher.dirs[dir] = struct{}{}
		watcher.mutex.Unlock()
	}
	return nil
}

func (watcher *Watcher) addWatch(path string) error {
	watcher.mutex.Lock()
	if watcher.closed {
		watcher.mutex.Unlock()
		return ErrClosed
	}
	_, watched := watcher.dirs[path]
	if !watched {
		watched = watcher.parents[path] > 0
	}
	source := watcher.watcher
	watcher.mutex.Unlock()
	if watched || source == nil {
		return nil
	}

	if err := source.Add(path); err != nil {
		watcher.logWarn("watch add failed", map[string]string{
			"path":  path,
			"error": err.Error(),
		})
		return err
	}
	watcher.logDebug("watch added", path, watcher.Metrics().ActiveWatches+1)
	return nil
}

func collectDirs(root string) ([]string, error) {
	dirs := []string{}
	err := filepath.WalkDir(root, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			if path == root {
				return err
			}
			return nil
		}
		if entry.IsDir() {
			dirs = append(dirs, path)
		}
		return nil
	})
	return dirs, err
}

func listFiles(root string) ([]string, error) {
	files := []string{}
	err := filepath.WalkDir(root, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !entry.IsDir() {
			files = append(files, path)
		}
		return nil
	})
	return files, err
}
