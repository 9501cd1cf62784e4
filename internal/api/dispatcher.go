package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"serverdeck/internal/assets"
	"serverdeck/internal/broadcast"
	"serverdeck/internal/config"
	"serverdeck/internal/logging"
	"serverdeck/internal/mods"
	"serverdeck/internal/supervisor"
)

const defaultStopTimeout = 30 * time.Second

var (
	errInvalidPayload     = errors.New("invalid payload")
	errChannelNotAllowed  = errors.New("channel not allowed")
	errChannelUnavailable = errors.New("channel not available")
)

type ServerControl interface {
	Start() error
	Stop(ctx context.Context) error
	Status() supervisor.Status
	RecentLogs(n int) []supervisor.LogLine
}

type AssetCache interface {
	Extract(ctx context.Context, serverDir string) assets.ExtractionResult
	AreCached() bool
	CacheDir() string
}

type DataWatcher interface {
	Start(serverDir string) error
	Stop() error
	Watching() (string, bool)
}

type Settings interface {
	ServerDir() string
	DisabledModsDir() string
	SetServerDir(dir string) error
}

// Services are the backends a command may reach.
type Services struct {
	Server      ServerControl
	Assets      AssetCache
	Watcher     DataWatcher
	Settings    Settings
	Broadcaster broadcast.Broadcaster
	StopTimeout time.Duration
}

type commandResult struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

type commandHandler func(ctx context.Context, payload json.RawMessage) (any, error)

// Dispatcher routes inbound commands to services. Every failure is reported
// as a result value; nothing escapes as a panic.
type Dispatcher struct {
	services Services
	logger   *logging.Logger
	handlers map[string]commandHandler
}

func NewDispatcher(services Services, logger *logging.Logger) *Dispatcher {
	if logger == nil {
		logger = logging.Discard()
	}
	if services.Broadcaster == nil {
		services.Broadcaster = broadcast.Discard{}
	}
	if services.StopTimeout <= 0 {
		services.StopTimeout = defaultStopTimeout
	}
	d := &Dispatcher{services: services, logger: logger.Component("api")}
	d.handlers = map[string]commandHandler{
		broadcast.CommandServerStart:   d.serverStart,
		broadcast.CommandServerStop:    d.serverStop,
		broadcast.CommandServerStatus:  d.serverStatus,
		broadcast.CommandServerLogs:    d.serverLogs,
		broadcast.CommandAssetsExtract: d.assetsExtract,
		broadcast.CommandAssetsStatus:  d.assetsStatus,
		broadcast.CommandWatcherStart:  d.watcherStart,
		broadcast.CommandWatcherStop:   d.watcherStop,
		broadcast.CommandModsToggle:    d.modsToggle,
		broadcast.CommandGetServerPath: d.getServerPath,
		broadcast.CommandSetServerPath: d.setServerPath,
	}
	return d
}

// Dispatch runs a command and always returns a JSON-encodable result.
func (d *Dispatcher) Dispatch(ctx context.Context, channel string, payload json.RawMessage) any {
	data, err := d.Invoke(ctx, channel, payload)
	if err != nil {
		return commandResult{Success: false, Error: err.Error()}
	}
	if data == nil {
		return commandResult{Success: true}
	}
	return data
}

// Invoke runs a command and returns its raw data or error.
func (d *Dispatcher) Invoke(ctx context.Context, channel string, payload json.RawMessage) (data any, err error) {
	if !broadcast.InboundAllowed(channel) {
		return nil, errChannelNotAllowed
	}
	handler, ok := d.handlers[channel]
	if !ok {
		return nil, errChannelUnavailable
	}
	defer func() {
		if recovered := recover(); recovered != nil {
			d.logger.Error("command panicked", map[string]string{
				"channel": channel,
				"panic":   fmt.Sprint(recovered),
			})
			data, err = nil, errors.New("internal error")
		}
	}()
	if ctx == nil {
		ctx = context.Background()
	}
	return handler(ctx, payload)
}

func decodePayload(payload json.RawMessage, target any) error {
	if len(payload) == 0 || string(payload) == "null" {
		return nil
	}
	if err := json.Unmarshal(payload, target); err != nil {
		return fmt.Errorf("%w: %v", errInvalidPayload, err)
	}
	return nil
}

func (d *Dispatcher) serverStart(context.Context, json.RawMessage) (any, error) {
	if d.services.Server == nil {
		return nil, errChannelUnavailable
	}
	return nil, d.services.Server.Start()
}

func (d *Dispatcher) serverStop(ctx context.Context, _ json.RawMessage) (any, error) {
	if d.services.Server == nil {
		return nil, errChannelUnavailable
	}
	ctx, cancel := context.WithTimeout(ctx, d.services.StopTimeout)
	defer cancel()
	return nil, d.services.Server.Stop(ctx)
}

func (d *Dispatcher) serverStatus(context.Context, json.RawMessage) (any, error) {
	if d.services.Server == nil {
		return nil, errChannelUnavailable
	}
	return d.services.Server.Status(), nil
}

type logsRequest struct {
	Limit int `json:"limit"`
}

func (d *Dispatcher) serverLogs(_ context.Context, payload json.RawMessage) (any, error) {
	if d.services.Server == nil {
		return nil, errChannelUnavailable
	}
	var req logsRequest
	if err := decodePayload(payload, &req); err != nil {
		return nil, err
	}
	lines := d.services.Server.RecentLogs(req.Limit)
	if lines == nil {
		lines = []supervisor.LogLine{}
	}
	return lines, nil
}

func (d *Dispatcher) assetsExtract(ctx context.Context, _ json.RawMessage) (any, error) {
	if d.services.Assets == nil || d.services.Settings == nil {
		return nil, errChannelUnavailable
	}
	return d.services.Assets.Extract(ctx, d.services.Settings.ServerDir()), nil
}

type assetsStatus struct {
	Cached   bool   `json:"cached"`
	CacheDir string `json:"cacheDir"`
}

func (d *Dispatcher) assetsStatus(context.Context, json.RawMessage) (any, error) {
	if d.services.Assets == nil {
		return nil, errChannelUnavailable
	}
	return assetsStatus{Cached: d.services.Assets.AreCached(), CacheDir: d.services.Assets.CacheDir()}, nil
}

type watcherStatus struct {
	Watching  bool   `json:"watching"`
	ServerDir string `json:"serverDir,omitempty"`
}

func (d *Dispatcher) watcherStart(context.Context, json.RawMessage) (any, error) {
	if d.services.Watcher == nil || d.services.Settings == nil {
		return nil, errChannelUnavailable
	}
	serverDir := d.services.Settings.ServerDir()
	if err := d.services.Watcher.Start(serverDir); err != nil {
		return nil, err
	}
	return watcherStatus{Watching: true, ServerDir: serverDir}, nil
}

func (d *Dispatcher) watcherStop(context.Context, json.RawMessage) (any, error) {
	if d.services.Watcher == nil {
		return nil, errChannelUnavailable
	}
	return nil, d.services.Watcher.Stop()
}

type toggleRequest struct {
	Name    string `json:"name"`
	Enabled bool   `json:"enabled"`
}

func (d *Dispatcher) modsToggle(_ context.Context, payload json.RawMessage) (any, error) {
	if d.services.Settings == nil {
		return nil, errChannelUnavailable
	}
	var req toggleRequest
	if err := decodePayload(payload, &req); err != nil {
		return nil, err
	}
	if err := mods.Toggle(d.services.Settings.ServerDir(), d.services.Settings.DisabledModsDir(), req.Name, req.Enabled); err != nil {
		return nil, err
	}
	d.logger.Info("mod toggled", map[string]string{"mod": req.Name, "enabled": fmt.Sprint(req.Enabled)})
	return nil, nil
}

// ModList is served over REST only; surfaces learn about mods through
// data:refresh.
type ModList struct {
	Enabled  []string `json:"enabled"`
	Disabled []string `json:"disabled"`
}

func (d *Dispatcher) ListMods() (ModList, error) {
	if d.services.Settings == nil {
		return ModList{}, errChannelUnavailable
	}
	enabled, disabled, err := mods.List(d.services.Settings.ServerDir(), d.services.Settings.DisabledModsDir())
	if err != nil {
		return ModList{}, err
	}
	return ModList{Enabled: enabled, Disabled: disabled}, nil
}

type serverPath struct {
	ServerDir string `json:"serverDir"`
	Valid     bool   `json:"valid"`
}

func (d *Dispatcher) getServerPath(context.Context, json.RawMessage) (any, error) {
	if d.services.Settings == nil {
		return nil, errChannelUnavailable
	}
	dir := d.services.Settings.ServerDir()
	return serverPath{ServerDir: dir, Valid: config.IsServerDirValid(dir)}, nil
}

type setPathRequest struct {
	Path string `json:"path"`
}

// setServerPath persists the new directory and re-targets an active watch.
func (d *Dispatcher) setServerPath(_ context.Context, payload json.RawMessage) (any, error) {
	if d.services.Settings == nil {
		return nil, errChannelUnavailable
	}
	var req setPathRequest
	if err := decodePayload(payload, &req); err != nil {
		return nil, err
	}
	if req.Path == "" {
		return nil, fmt.Errorf("%w: path is required", errInvalidPayload)
	}
	if err := d.services.Settings.SetServerDir(req.Path); err != nil {
		return nil, err
	}
	dir := d.services.Settings.ServerDir()
	if d.services.Watcher != nil {
		if _, watching := d.services.Watcher.Watching(); watching {
			if err := d.services.Watcher.Start(dir); err != nil {
				d.logger.Warn("watcher re-target failed", map[string]string{"server_dir": dir, "error": err.Error()})
			}
		}
	}
	_ = d.services.Broadcaster.Broadcast(broadcast.ChannelServerPathChanged, map[string]string{"serverDir": dir})
	return serverPath{ServerDir: dir, Valid: true}, nil
}
