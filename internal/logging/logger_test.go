package logging

import (
	"bytes"
	"io"
	"strings"
	"testing"
)

func TestLoggerWritesToBuffer(t *testing.T) {
	buffer := NewLogBuffer(10)
	logger := NewLoggerWithOutput(buffer, LevelInfo, io.Discard)

	logger.Info("started", map[string]string{"run_id": "1"})

	entries := buffer.List()
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	entry := entries[0]
	if entry.Level != LevelInfo {
		t.Fatalf("expected info level, got %q", entry.Level)
	}
	if entry.Message != "started" {
		t.Fatalf("expected message started, got %q", entry.Message)
	}
	if entry.Context["run_id"] != "1" {
		t.Fatalf("expected context run_id=1, got %v", entry.Context)
	}
}

func TestLoggerFiltersByLevel(t *testing.T) {
	buffer := NewLogBuffer(10)
	logger := NewLoggerWithOutput(buffer, LevelWarning, io.Discard)

	logger.Info("info", nil)
	logger.Warn("warn", nil)

	entries := buffer.List()
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	if entries[0].Level != LevelWarning {
		t.Fatalf("expected warning level, got %q", entries[0].Level)
	}
}

func TestLoggerComponentTagsEntries(t *testing.T) {
	buffer := NewLogBuffer(10)
	logger := NewLoggerWithOutput(buffer, LevelDebug, io.Discard).Component("notifier")

	logger.Debug("watch added", map[string]string{"path": "/srv/mods"})

	entries := buffer.List()
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	if got := entries[0].Context[CategoryField]; got != "notifier" {
		t.Fatalf("expected category notifier, got %q", got)
	}
	if got := entries[0].Context["path"]; got != "/srv/mods" {
		t.Fatalf("expected path field, got %q", got)
	}
}

func TestLoggerFormatsSortedFields(t *testing.T) {
	var out bytes.Buffer
	logger := NewLoggerWithOutput(nil, LevelInfo, &out)

	logger.Info("hello", map[string]string{"b": "2", "a": "1"})

	line := out.String()
	if !strings.HasPrefix(line, "time=") || !strings.HasSuffix(line, "\n") {
		t.Fatalf("expected timestamped line, got %q", line)
	}
	if !strings.Contains(line, `level=info msg="hello" a="1" b="2"`) {
		t.Fatalf("unexpected formatted line: %q", line)
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]Level{
		"debug":   LevelDebug,
		" INFO ":  LevelInfo,
		"warn":    LevelWarning,
		"warning": LevelWarning,
		"error":   LevelError,
	}
	for input, want := range cases {
		got, ok := ParseLevel(input)
		if !ok || got != want {
			t.Fatalf("ParseLevel(%q) = %q, %v; want %q", input, got, ok, want)
		}
	}
	if _, ok := ParseLevel("loud"); ok {
		t.Fatalf("expected unknown level to be rejected")
	}
}

func TestNilLoggerIsSafe(t *testing.T) {
	var logger *Logger
	logger.Info("ignored", nil)
	if logger.Enabled(LevelError) {
		t.Fatalf("nil logger should not be enabled")
	}
}

func TestInvalidMinLevelDefaultsToInfo(t *testing.T) {
	buffer := NewLogBuffer(4)
	logger := NewLoggerWithOutput(buffer, Level("loud"), io.Discard)
	logger.Debug("hidden", nil)
	logger.Info("shown", nil)
	if entries := buffer.List(); len(entries) != 1 || entries[0].Message != "shown" {
		t.Fatalf("unexpected entries %#v", entries)
	}
}
