// Package logging is serverdeck's structured logger: leveled entries with
// string fields, written as logfmt lines and retained in a ring buffer.
package logging

import (
	"io"
	"maps"
	"os"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"
)

const DefaultBufferSize = 1000

// sink is shared by a logger and everything derived from it with With.
type sink struct {
	mu     sync.Mutex
	out    io.Writer
	buffer *LogBuffer
}

type Logger struct {
	sink     *sink
	minLevel Level
	fields   map[string]string
}

func NewLogger(buffer *LogBuffer, minLevel Level) *Logger {
	return NewLoggerWithOutput(buffer, minLevel, os.Stdout)
}

func NewLoggerWithOutput(buffer *LogBuffer, minLevel Level, output io.Writer) *Logger {
	if buffer == nil {
		buffer = NewLogBuffer(DefaultBufferSize)
	}
	if output == nil {
		output = io.Discard
	}
	if !minLevel.valid() {
		minLevel = LevelInfo
	}
	return &Logger{
		sink:     &sink{out: output, buffer: buffer},
		minLevel: minLevel,
	}
}

// Discard returns a logger that keeps a small buffer and writes nothing.
// Services fall back to it when constructed without a logger.
func Discard() *Logger {
	return NewLoggerWithOutput(NewLogBuffer(64), LevelWarning, io.Discard)
}

func (l *Logger) Buffer() *LogBuffer {
	if l == nil {
		return nil
	}
	return l.sink.buffer
}

// With returns a logger that adds fields to every entry.
func (l *Logger) With(fields map[string]string) *Logger {
	if l == nil {
		return nil
	}
	return &Logger{sink: l.sink, minLevel: l.minLevel, fields: mergeFields(l.fields, fields)}
}

// Component scopes the logger to one service.
func (l *Logger) Component(name string) *Logger {
	return l.With(map[string]string{CategoryField: name})
}

func (l *Logger) Debug(message string, fields map[string]string) {
	l.log(LevelDebug, message, fields)
}

func (l *Logger) Info(message string, fields map[string]string) {
	l.log(LevelInfo, message, fields)
}

func (l *Logger) Warn(message string, fields map[string]string) {
	l.log(LevelWarning, message, fields)
}

func (l *Logger) Error(message string, fields map[string]string) {
	l.log(LevelError, message, fields)
}

func (l *Logger) Enabled(level Level) bool {
	return l != nil && LevelAtLeast(level, l.minLevel)
}

func (l *Logger) log(level Level, message string, fields map[string]string) {
	if !l.Enabled(level) {
		return
	}
	entry := LogEntry{
		Timestamp: time.Now().UTC(),
		Level:     level,
		Message:   message,
		Context:   mergeFields(l.fields, fields),
	}
	l.sink.buffer.Add(entry)

	line := formatEntry(entry)
	l.sink.mu.Lock()
	_, _ = io.WriteString(l.sink.out, line)
	l.sink.mu.Unlock()
}

func mergeFields(base, extra map[string]string) map[string]string {
	if len(base) == 0 && len(extra) == 0 {
		return nil
	}
	merged := make(map[string]string, len(base)+len(extra))
	maps.Copy(merged, base)
	maps.Copy(merged, extra)
	return merged
}

// formatEntry renders one logfmt line with fields in key order.
func formatEntry(entry LogEntry) string {
	var b strings.Builder
	b.WriteString("time=")
	b.WriteString(entry.Timestamp.Format(time.RFC3339))
	b.WriteString(" level=")
	b.WriteString(string(entry.Level))
	b.WriteString(" msg=")
	b.WriteString(strconv.Quote(entry.Message))
	for _, key := range slices.Sorted(maps.Keys(entry.Context)) {
		b.WriteByte(' ')
		b.WriteString(key)
		b.WriteByte('=')
		b.WriteString(strconv.Quote(entry.Context[key]))
	}
	b.WriteByte('\n')
	return b.String()
}
