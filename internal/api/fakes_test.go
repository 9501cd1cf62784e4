package api

import (
	"context"
	"sync"

	"serverdeck/internal/assets"
	"serverdeck/internal/supervisor"
)

type fakeServer struct {
	mu       sync.Mutex
	state    supervisor.State
	startErr error
	stopErr  error
	starts   int
	logs     []supervisor.LogLine
	panicOn  bool
}

func (f *fakeServer) Start() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.panicOn {
		panic("boom")
	}
	f.starts++
	if f.startErr != nil {
		return f.startErr
	}
	f.state = supervisor.StateStarting
	return nil
}

func (f *fakeServer) Stop(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.stopErr != nil {
		return f.stopErr
	}
	f.state = supervisor.StateStopped
	return nil
}

func (f *fakeServer) Status() supervisor.Status {
	f.mu.Lock()
	defer f.mu.Unlock()
	state := f.state
	if state == "" {
		state = supervisor.StateStopped
	}
	return supervisor.Status{State: state}
}

func (f *fakeServer) RecentLogs(n int) []supervisor.LogLine {
	f.mu.Lock()
	defer f.mu.Unlock()
	if n <= 0 || n > len(f.logs) {
		return append([]supervisor.LogLine(nil), f.logs...)
	}
	return append([]supervisor.LogLine(nil), f.logs[len(f.logs)-n:]...)
}

type fakeAssets struct {
	mu        sync.Mutex
	cached    bool
	calls     int
	serverDir string
}

func (f *fakeAssets) Extract(ctx context.Context, serverDir string) assets.ExtractionResult {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.serverDir = serverDir
	f.cached = true
	return assets.ExtractionResult{Success: true, TotalFiles: 3}
}

func (f *fakeAssets) AreCached() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cached
}

func (f *fakeAssets) CacheDir() string {
	return "/cache"
}

type fakeWatcher struct {
	mu      sync.Mutex
	dir     string
	active  bool
	targets []string
}

func (f *fakeWatcher) Start(serverDir string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.dir = serverDir
	f.active = true
	f.targets = append(f.targets, serverDir)
	return nil
}

func (f *fakeWatcher) Stop() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.active = false
	return nil
}

func (f *fakeWatcher) Watching() (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.dir, f.active
}

type fakeSettings struct {
	mu          sync.Mutex
	serverDir   string
	disabledDir string
	setErr      error
}

func (f *fakeSettings) ServerDir() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.serverDir
}

func (f *fakeSettings) DisabledModsDir() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.disabledDir
}

func (f *fakeSettings) SetServerDir(dir string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.setErr != nil {
		return f.setErr
	}
	f.serverDir = dir
	return nil
}

type recordedBroadcast struct {
	channel string
	payload any
}

type recordingBroadcaster struct {
	mu       sync.Mutex
	messages []recordedBroadcast
}

func (r *recordingBroadcaster) Broadcast(channel string, payload any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = append(r.messages, recordedBroadcast{channel: channel, payload: payload})
	return nil
}

func (r *recordingBroadcaster) snapshot() []recordedBroadcast {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]recordedBroadcast(nil), r.messages...)
}

type testServices struct {
	server      *fakeServer
	assets      *fakeAssets
	watcher     *fakeWatcher
	settings    *fakeSettings
	broadcaster *recordingBroadcaster
}

func newTestServices(serverDir, disabledDir string) (testServices, Services) {
	ts := testServices{
		server:      &fakeServer{},
		assets:      &fakeAssets{},
		watcher:     &fakeWatcher{},
		settings:    &fakeSettings{serverDir: serverDir, disabledDir: disabledDir},
		broadcaster: &recordingBroadcaster{},
	}
	return ts, Services{
		Server:      ts.server,
		Assets:      ts.assets,
		Watcher:     ts.watcher,
		Settings:    ts.settings,
		Broadcaster: ts.broadcaster,
	}
}
