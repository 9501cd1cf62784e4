package watcher

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func newTestWatcher(t *testing.T) *Watcher {
	t.Helper()
	watcher, err := New(Options{})
	if err != nil {
		t.Fatalf("new watcher: %v", err)
	}
	t.Cleanup(func() {
		_ = watcher.Close()
	})
	return watcher
}

func waitForPath(t *testing.T, watcher *Watcher, path string) Event {
	t.Helper()
	deadline := time.After(3 * time.Second)
	for {
		select {
		case event := <-watcher.Events():
			if event.Path == path {
				return event
			}
		case <-deadline:
			t.Fatalf("timed out waiting for event on %s", path)
		}
	}
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func TestAddTreeReportsNestedChanges(t *testing.T) {
	root := t.TempDir()
	nested := filepath.Join(root, "region")
	if err := os.MkdirAll(nested, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	watcher := newTestWatcher(t)
	if err := watcher.AddTree(root); err != nil {
		t.Fatalf("add tree: %v", err)
	}

	target := filepath.Join(nested, "0.0.region.bin")
	writeFile(t, target, "data")
	waitForPath(t, watcher, target)
}

func TestTreePicksUpNewDirectories(t *testing.T) {
	root := t.TempDir()
	watcher := newTestWatcher(t)
	if err := watcher.AddTree(root); err != nil {
		t.Fatalf("add tree: %v", err)
	}

	created := filepath.Join(root, "new-mod")
	if err := os.Mkdir(created, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	waitForPath(t, watcher, created)

	target := filepath.Join(created, "manifest.json")
	writeFile(t, target, "{}")
	waitForPath(t, watcher, target)
}

func TestAddFileIgnoresSiblings(t *testing.T) {
	root := t.TempDir()
	target := filepath.Join(root, "warps.json")
	writeFile(t, target, "{}")

	watcher := newTestWatcher(t)
	if err := watcher.AddFile(target); err != nil {
		t.Fatalf("add file: %v", err)
	}

	writeFile(t, filepath.Join(root, "permissions.json"), "{}")
	writeFile(t, target, `{"spawn":{}}`)

	event := waitForPath(t, watcher, target)
	if event.Timestamp.IsZero() {
		t.Fatal("expected event timestamp")
	}
	select {
	case event := <-watcher.Events():
		if event.Path != target {
			t.Fatalf("unexpected sibling event %s", event.Path)
		}
	case <-time.After(100 * time.Millisecond):
	}
}

func TestAddTreeMissingRoot(t *testing.T) {
	watcher := newTestWatcher(t)
	if err := watcher.AddTree(filepath.Join(t.TempDir(), "missing")); err == nil {
		t.Fatal("expected error for missing root")
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	watcher, err := New(Options{})
	if err != nil {
		t.Fatalf("new watcher: %v", err)
	}
	if err := watcher.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := watcher.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}
	if err := watcher.AddTree(t.TempDir()); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
}

func TestRestartDelayBacksOff(t *testing.T) {
	if restartDelay(0) != restartBaseDelay {
		t.Fatalf("unexpected first delay %s", restartDelay(0))
	}
	if restartDelay(2) != 4*restartBaseDelay {
		t.Fatalf("unexpected third delay %s", restartDelay(2))
	}
}
