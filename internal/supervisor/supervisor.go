// Package supervisor runs one external game server process through its
// launcher script and tracks its lifecycle.
package supervisor

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	"serverdeck/internal/broadcast"
	"serverdeck/internal/buffer"
	"serverdeck/internal/event"
	"serverdeck/internal/logging"
	"serverdeck/internal/metrics"
)

const (
	DefaultKillTimeout = 15 * time.Second
	DefaultCrashWindow = 30 * time.Second
	DefaultLogTail     = 500

	// RestartExitCode is how the server asks to be relaunched after an update.
	RestartExitCode = 8
)

// DefaultReadyPatterns are the output fragments that mean the server accepts
// connections.
var DefaultReadyPatterns = []string{"Server started", "listening", "Done", "Listening on"}

type Options struct {
	ProjectRoot   string
	ReadyPatterns []string
	KillTimeout   time.Duration
	CrashWindow   time.Duration
	LogTail       int
	Logger        *logging.Logger
	Broadcaster   broadcast.Broadcaster
	Metrics       *metrics.Registry
}

type Supervisor struct {
	projectRoot   string
	readyPatterns []string
	killTimeout   time.Duration
	crashWindow   time.Duration
	logger        *logging.Logger
	broadcaster   broadcast.Broadcaster
	metrics       *metrics.Registry

	statusBus *event.Bus[StatusEvent]
	logBus    *event.Bus[LogLine]

	mu        sync.Mutex
	state     State
	cmd       *exec.Cmd
	pid       int
	runID     string
	startedAt time.Time
	ready     bool
	reaped    bool
	exited    chan struct{}
	killTimer *time.Timer

	// afterReap runs between reaping the process and committing the exit.
	afterReap func()

	tailMu sync.Mutex
	tail   *buffer.Ring[LogLine]
}

func New(opts Options) *Supervisor {
	if len(opts.ReadyPatterns) == 0 {
		opts.ReadyPatterns = DefaultReadyPatterns
	}
	if opts.KillTimeout <= 0 {
		opts.KillTimeout = DefaultKillTimeout
	}
	if opts.CrashWindow <= 0 {
		opts.CrashWindow = DefaultCrashWindow
	}
	if opts.LogTail <= 0 {
		opts.LogTail = DefaultLogTail
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
	logger := opts.Logger.Component("supervisor")
	return &Supervisor{
		projectRoot:   opts.ProjectRoot,
		readyPatterns: append([]string(nil), opts.ReadyPatterns...),
		killTimeout:   opts.KillTimeout,
		crashWindow:   opts.CrashWindow,
		logger:        logger,
		broadcaster:   opts.Broadcaster,
		metrics:       opts.Metrics,
		statusBus: event.NewBus[StatusEvent](context.Background(), event.BusOptions{
			Name:     "server_status",
			Registry: opts.Metrics,
			Logger:   logger,
		}),
		logBus: event.NewBus[LogLine](context.Background(), event.BusOptions{
			Name:                 "server_logs",
			SubscriberBufferSize: 512,
			Registry:             opts.Metrics,
			Logger:               logger,
		}),
		state: StateStopped,
		tail:  buffer.NewRing[LogLine](opts.LogTail),
	}
}

// Start launches the server and returns without waiting for it to become
// ready.
func (s *Supervisor) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateStopped {
		return &TransitionError{Op: "start", State: s.state}
	}
	launcher, err := s.resolveLauncher()
	if err != nil {
		return err
	}

	runID := uuid.NewString()
	s.runID = runID
	s.ready = false
	s.reaped = false
	s.setStateLocked(StateStarting)

	cmd := launcherCommand(launcher)
	cmd.Dir = s.projectRoot
	cmd.Stdin = nil
	configureProcess(cmd)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return s.spawnFailedLocked(launcher, err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return s.spawnFailedLocked(launcher, err)
	}
	if err := cmd.Start(); err != nil {
		return s.spawnFailedLocked(launcher, err)
	}

	exited := make(chan struct{})
	s.cmd = cmd
	s.pid = cmd.Process.Pid
	s.startedAt = time.Now()
	s.exited = exited
	s.metrics.IncServerStart()
	s.logger.Info("server process spawned", map[string]string{
		"pid":      strconv.Itoa(s.pid),
		"run_id":   runID,
		"launcher": launcher,
	})

	go s.run(cmd, runID, s.startedAt, stdout, stderr, exited)
	return nil
}

// Stop asks the server to exit and waits for it. The process is hard-killed if
// it is still alive after the kill timeout. If ctx ends first Stop returns
// ctx.Err() and escalation stays armed.
func (s *Supervisor) Stop(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	s.mu.Lock()
	if s.cmd == nil || s.state == StateStopped {
		s.mu.Unlock()
		return ErrNotRunning
	}
	exited := s.exited
	if s.state != StateStopping && s.reaped {
		// Already waited on; the pid may belong to someone else now.
		s.setStateLocked(StateStopping)
	} else if s.state != StateStopping {
		pid := s.pid
		s.setStateLocked(StateStopping)
		if err := terminateProcess(pid); err != nil {
			s.logger.Warn("graceful stop signal failed", map[string]string{
				"pid":   strconv.Itoa(pid),
				"error": err.Error(),
			})
		}
		s.killTimer = time.AfterFunc(s.killTimeout, func() {
			s.forceKill(pid, exited)
		})
	}
	s.mu.Unlock()

	select {
	case <-exited:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Supervisor) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Status{
		State:     s.state,
		PID:       s.pid,
		RunID:     s.runID,
		StartedAt: s.startedAt,
	}
}

func (s *Supervisor) SubscribeStatus() (<-chan StatusEvent, func()) {
	return s.statusBus.Subscribe()
}

func (s *Supervisor) SubscribeLogs() (<-chan LogLine, func()) {
	return s.logBus.Subscribe()
}

// RecentLogs returns up to n of the newest output lines, oldest first.
func (s *Supervisor) RecentLogs(n int) []LogLine {
	s.tailMu.Lock()
	defer s.tailMu.Unlock()
	return s.tail.Last(n)
}

// Shutdown stops a running server and releases subscribers.
func (s *Supervisor) Shutdown(ctx context.Context) error {
	err := s.Stop(ctx)
	if errors.Is(err, ErrNotRunning) {
		err = nil
	}
	s.statusBus.Close()
	s.logBus.Close()
	return err
}

func (s *Supervisor) resolveLauncher() (string, error) {
	if s.projectRoot == "" {
		return "", fmt.Errorf("%w: project root is not configured", ErrLauncherMissing)
	}
	path := filepath.Join(s.projectRoot, launcherName)
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return "", fmt.Errorf("%w: %s", ErrLauncherMissing, path)
	}
	return path, nil
}

func (s *Supervisor) spawnFailedLocked(launcher string, err error) error {
	var line string
	switch {
	case errors.Is(err, fs.ErrNotExist), errors.Is(err, exec.ErrNotFound):
		line = "[Server] Launcher script not found or not executable: " + launcher
	case errors.Is(err, fs.ErrPermission):
		line = "[Server] Permission denied running launcher script: " + launcher
	default:
		line = "[Server] Failed to start server: " + err.Error()
	}
	s.emit(LogLine{Line: line, Stream: StreamStderr, Timestamp: time.Now(), RunID: s.runID})
	s.logger.Error("server spawn failed", map[string]string{"launcher": launcher, "error": err.Error()})
	s.setStateLocked(StateStopped)
	return &SpawnError{Path: launcher, Err: err}
}

func (s *Supervisor) forceKill(pid int, exited <-chan struct{}) {
	s.mu.Lock()
	select {
	case <-exited:
		s.mu.Unlock()
		return
	default:
	}
	if s.reaped {
		s.mu.Unlock()
		return
	}
	runID := s.runID
	s.mu.Unlock()
	s.emit(LogLine{
		Line:      "[Launcher] Force-killing server (graceful stop timed out after " + formatTimeout(s.killTimeout) + ")",
		Stream:    StreamStderr,
		Timestamp: time.Now(),
		RunID:     runID,
	})
	if err := killProcess(pid); err != nil {
		s.logger.Error("force kill failed", map[string]string{"pid": strconv.Itoa(pid), "error": err.Error()})
	}
}

// setStateLocked publishes while s.mu is held so subscribers observe
// transitions in order.
func (s *Supervisor) setStateLocked(state State) {
	s.state = state
	evt := StatusEvent{State: state, RunID: s.runID, Timestamp: time.Now().UTC()}
	s.statusBus.Publish(evt)
	_ = s.broadcaster.Broadcast(broadcast.ChannelServerStatus, evt)
	s.logger.Info("server state changed", map[string]string{"state": string(state), "run_id": s.runID})
}

func (s *Supervisor) emit(line LogLine) {
	s.tailMu.Lock()
	s.tail.Add(line)
	s.tailMu.Unlock()
	s.logBus.Publish(line)
	_ = s.broadcaster.Broadcast(broadcast.ChannelServerLog, line)
}

func formatTimeout(d time.Duration) string {
	if d%time.Second == 0 {
		return strconv.Itoa(int(d/time.Second)) + "s"
	}
	return d.String()
}
