package api

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"serverdeck/internal/assets"
	"serverdeck/internal/broadcast"
	"serverdeck/internal/config"
	"serverdeck/internal/supervisor"
)

func TestDispatchRejectsUnknownChannel(t *testing.T) {
	ts, services := newTestServices("/srv", "/disabled")
	dispatcher := NewDispatcher(services, nil)

	result := dispatcher.Dispatch(context.Background(), "shell:exec", nil)
	reply, ok := result.(commandResult)
	if !ok || reply.Success || reply.Error != "channel not allowed" {
		t.Fatalf("unexpected result %#v", result)
	}
	if ts.server.starts != 0 {
		t.Fatalf("expected no service call")
	}
}

func TestDispatchServerStartReportsTransitionError(t *testing.T) {
	ts, services := newTestServices("/srv", "/disabled")
	ts.server.startErr = &supervisor.TransitionError{Op: "start", State: supervisor.StateRunning}
	dispatcher := NewDispatcher(services, nil)

	result := dispatcher.Dispatch(context.Background(), broadcast.CommandServerStart, nil)
	reply, ok := result.(commandResult)
	if !ok || reply.Success {
		t.Fatalf("expected failure, got %#v", result)
	}
	if reply.Error != "cannot start: server is currently running" {
		t.Fatalf("unexpected error %q", reply.Error)
	}
}

func TestDispatchRecoversPanics(t *testing.T) {
	ts, services := newTestServices("/srv", "/disabled")
	ts.server.panicOn = true
	dispatcher := NewDispatcher(services, nil)

	result := dispatcher.Dispatch(context.Background(), broadcast.CommandServerStart, nil)
	reply, ok := result.(commandResult)
	if !ok || reply.Success || reply.Error != "internal error" {
		t.Fatalf("unexpected result %#v", result)
	}
}

func TestDispatchSuccessWithoutData(t *testing.T) {
	_, services := newTestServices("/srv", "/disabled")
	dispatcher := NewDispatcher(services, nil)

	result := dispatcher.Dispatch(context.Background(), broadcast.CommandServerStop, nil)
	reply, ok := result.(commandResult)
	if !ok || !reply.Success {
		t.Fatalf("expected success, got %#v", result)
	}
}

func TestDispatchServerLogsLimit(t *testing.T) {
	ts, services := newTestServices("/srv", "/disabled")
	ts.server.logs = []supervisor.LogLine{{Line: "a"}, {Line: "b"}, {Line: "c"}}
	dispatcher := NewDispatcher(services, nil)

	data, err := dispatcher.Invoke(context.Background(), broadcast.CommandServerLogs, json.RawMessage(`{"limit":2}`))
	if err != nil {
		t.Fatalf("invoke: %v", err)
	}
	lines := data.([]supervisor.LogLine)
	if len(lines) != 2 || lines[0].Line != "b" {
		t.Fatalf("unexpected lines %#v", lines)
	}

	_, err = dispatcher.Invoke(context.Background(), broadcast.CommandServerLogs, json.RawMessage(`{"limit":"x"}`))
	if !errors.Is(err, errInvalidPayload) {
		t.Fatalf("expected invalid payload, got %v", err)
	}
}

func TestDispatchAssetsUsesConfiguredServerDir(t *testing.T) {
	ts, services := newTestServices("/srv/Server", "/disabled")
	dispatcher := NewDispatcher(services, nil)

	data, err := dispatcher.Invoke(context.Background(), broadcast.CommandAssetsExtract, nil)
	if err != nil {
		t.Fatalf("invoke: %v", err)
	}
	result := data.(assets.ExtractionResult)
	if !result.Success || result.TotalFiles != 3 {
		t.Fatalf("unexpected result %#v", result)
	}
	if ts.assets.serverDir != "/srv/Server" {
		t.Fatalf("unexpected server dir %q", ts.assets.serverDir)
	}

	data, err = dispatcher.Invoke(context.Background(), broadcast.CommandAssetsStatus, nil)
	if err != nil {
		t.Fatalf("invoke: %v", err)
	}
	if status := data.(assetsStatus); !status.Cached {
		t.Fatalf("expected cached status")
	}
}

func TestDispatchWatcherLifecycle(t *testing.T) {
	ts, services := newTestServices("/srv", "/disabled")
	dispatcher := NewDispatcher(services, nil)

	if _, err := dispatcher.Invoke(context.Background(), broadcast.CommandWatcherStart, nil); err != nil {
		t.Fatalf("start: %v", err)
	}
	if _, watching := ts.watcher.Watching(); !watching {
		t.Fatalf("expected watcher active")
	}
	if _, err := dispatcher.Invoke(context.Background(), broadcast.CommandWatcherStop, nil); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if _, watching := ts.watcher.Watching(); watching {
		t.Fatalf("expected watcher stopped")
	}
}

func TestDispatchSetServerPathRetargetsWatcher(t *testing.T) {
	ts, services := newTestServices("/old", "/disabled")
	dispatcher := NewDispatcher(services, nil)
	_ = ts.watcher.Start("/old")

	payload, _ := json.Marshal(setPathRequest{Path: "/new"})
	data, err := dispatcher.Invoke(context.Background(), broadcast.CommandSetServerPath, payload)
	if err != nil {
		t.Fatalf("invoke: %v", err)
	}
	if path := data.(serverPath); path.ServerDir != "/new" {
		t.Fatalf("unexpected path %#v", path)
	}
	if dir, _ := ts.watcher.Watching(); dir != "/new" {
		t.Fatalf("expected watcher re-targeted, got %q", dir)
	}
	messages := ts.broadcaster.snapshot()
	if len(messages) != 1 || messages[0].channel != broadcast.ChannelServerPathChanged {
		t.Fatalf("unexpected broadcasts %#v", messages)
	}
}

func TestDispatchSetServerPathInvalid(t *testing.T) {
	ts, services := newTestServices("/old", "/disabled")
	ts.settings.setErr = config.ErrInvalidServerDir
	dispatcher := NewDispatcher(services, nil)

	_, err := dispatcher.Invoke(context.Background(), broadcast.CommandSetServerPath, json.RawMessage(`{"path":"/nope"}`))
	if !errors.Is(err, config.ErrInvalidServerDir) {
		t.Fatalf("expected invalid server dir, got %v", err)
	}
	if len(ts.broadcaster.snapshot()) != 0 {
		t.Fatalf("expected no broadcast")
	}

	_, err = dispatcher.Invoke(context.Background(), broadcast.CommandSetServerPath, json.RawMessage(`{}`))
	if !errors.Is(err, errInvalidPayload) {
		t.Fatalf("expected invalid payload, got %v", err)
	}
}

func TestDispatchModsToggle(t *testing.T) {
	root := t.TempDir()
	serverDir := filepath.Join(root, "Server")
	disabledDir := filepath.Join(root, "disabled-mods")
	if err := os.MkdirAll(filepath.Join(serverDir, "mods", "Cool"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	_, services := newTestServices(serverDir, disabledDir)
	dispatcher := NewDispatcher(services, nil)

	if _, err := dispatcher.Invoke(context.Background(), broadcast.CommandModsToggle, json.RawMessage(`{"name":"Cool","enabled":false}`)); err != nil {
		t.Fatalf("disable: %v", err)
	}
	if _, err := os.Stat(filepath.Join(disabledDir, "Cool")); err != nil {
		t.Fatalf("expected mod in disabled dir: %v", err)
	}
	list, err := dispatcher.ListMods()
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list.Enabled) != 0 || len(list.Disabled) != 1 || list.Disabled[0] != "Cool" {
		t.Fatalf("unexpected mod list %+v", list)
	}
	result := dispatcher.Dispatch(context.Background(), broadcast.CommandModsToggle, json.RawMessage(`{"name":"Missing","enabled":true}`))
	if reply, ok := result.(commandResult); !ok || reply.Success {
		t.Fatalf("expected failure, got %#v", result)
	}
}

func TestDispatchMissingService(t *testing.T) {
	dispatcher := NewDispatcher(Services{}, nil)
	_, err := dispatcher.Invoke(context.Background(), broadcast.CommandServerStatus, nil)
	if !errors.Is(err, errChannelUnavailable) {
		t.Fatalf("expected unavailable, got %v", err)
	}
}
