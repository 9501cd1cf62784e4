package supervisor

import (
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"sync"
	"time"
)

func (s *Supervisor) run(cmd *exec.Cmd, runID string, startedAt time.Time, stdout, stderr io.Reader, exited chan struct{}) {
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		s.readLines(stdout, StreamStdout, runID)
	}()
	go func() {
		defer wg.Done()
		s.readLines(stderr, StreamStderr, runID)
	}()
	wg.Wait()

	waitErr := cmd.Wait()
	s.handleExit(runID, startedAt, waitErr, exited)
}

func (s *Supervisor) handleExit(runID string, startedAt time.Time, waitErr error, exited chan struct{}) {
	code, hasCode := exitCode(waitErr)
	uptime := time.Since(startedAt)

	s.mu.Lock()
	s.reaped = true
	stopping := s.state == StateStopping
	s.mu.Unlock()

	restart := false
	switch {
	case !hasCode:
		if waitErr != nil {
			s.logger.Debug("server terminated without exit code", map[string]string{"error": waitErr.Error()})
		}
	case code == RestartExitCode && !stopping:
		restart = true
		s.emit(LogLine{Line: "[Launcher] Server requested restart for update", Stream: StreamStdout, Timestamp: time.Now(), RunID: runID})
	case code != 0 && uptime < s.crashWindow:
		s.metrics.IncServerCrash()
		seconds := int(uptime.Round(time.Second) / time.Second)
		s.emit(LogLine{
			Line:      fmt.Sprintf("[Server] Crashed after %ds (exit code %d) — not auto-restarting", seconds, code),
			Stream:    StreamStderr,
			Timestamp: time.Now(),
			RunID:     runID,
		})
	case code != 0:
		s.emit(LogLine{Line: fmt.Sprintf("[Server] Exited with code %d", code), Stream: StreamStderr, Timestamp: time.Now(), RunID: runID})
	}

	if s.afterReap != nil {
		s.afterReap()
	}

	s.mu.Lock()
	cancelled := restart && s.state == StateStopping
	if cancelled {
		restart = false
	}
	if s.killTimer != nil {
		s.killTimer.Stop()
		s.killTimer = nil
	}
	s.cmd = nil
	s.pid = 0
	s.ready = false
	s.setStateLocked(StateStopped)
	close(exited)
	s.mu.Unlock()

	fields := map[string]string{"run_id": runID, "uptime": uptime.Round(time.Millisecond).String()}
	if hasCode {
		fields["exit_code"] = strconv.Itoa(code)
	}
	s.logger.Info("server process exited", fields)
	if cancelled {
		s.logger.Info("restart for update cancelled by stop", map[string]string{"run_id": runID})
	}

	if !restart {
		return
	}
	s.metrics.IncServerRestart()
	if err := s.Start(); err != nil {
		s.logger.Error("automatic restart failed", map[string]string{"error": err.Error()})
	}
}

// exitCode reports the process exit code. A process killed by a signal has
// no code.
func exitCode(err error) (int, bool) {
	if err == nil {
		return 0, true
	}
	var exitErr *exec.ExitError
	if !errors.As(err, &exitErr) {
		return 0, false
	}
	code := exitErr.ExitCode()
	if code < 0 {
		return 0, false
	}
	return code, true
}
