package supervisor

import (
	"bufio"
	"io"
	"strings"
	"time"
)

const maxLineSize = 1024 * 1024

func (s *Supervisor) readLines(reader io.Reader, stream Stream, runID string) {
	scanner := bufio.NewScanner(reader)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		s.emit(LogLine{Line: line, Stream: stream, Timestamp: time.Now(), RunID: runID})
		if stream == StreamStdout {
			s.detectReady(runID, line)
		}
	}
	if err := scanner.Err(); err != nil {
		s.logger.Warn("server output read failed", map[string]string{
			"stream": string(stream),
			"error":  err.Error(),
		})
		_, _ = io.Copy(io.Discard, reader)
	}
}

// detectReady flips the run to running on the first matching line. Later
// matches in the same run are ignored.
func (s *Supervisor) detectReady(runID, line string) {
	if !s.matchesReady(line) {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.runID != runID || s.ready {
		return
	}
	s.ready = true
	if s.state == StateStarting {
		s.setStateLocked(StateRunning)
	}
}

func (s *Supervisor) matchesReady(line string) bool {
	for _, pattern := range s.readyPatterns {
		if pattern != "" && strings.Contains(line, pattern) {
			return true
		}
	}
	return false
}
