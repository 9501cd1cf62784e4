package logging

import (
	"strings"
	"time"
)

type Level string

const (
	LevelDebug   Level = "debug"
	LevelInfo    Level = "info"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

// CategoryField tags every entry a component logger emits.
const CategoryField = "serverdeck.category"

var levelOrder = map[Level]int{
	LevelDebug:   0,
	LevelInfo:    1,
	LevelWarning: 2,
	LevelError:   3,
}

// rank orders levels; unknown levels rank as info.
func (l Level) rank() int {
	if order, ok := levelOrder[l]; ok {
		return order
	}
	return levelOrder[LevelInfo]
}

func (l Level) valid() bool {
	_, ok := levelOrder[l]
	return ok
}

func ParseLevel(value string) (Level, bool) {
	level := Level(strings.ToLower(strings.TrimSpace(value)))
	if level == "warn" {
		level = LevelWarning
	}
	if !level.valid() {
		return "", false
	}
	return level, true
}

// LevelAtLeast reports whether level passes a minLevel filter. An empty
// minLevel passes everything.
func LevelAtLeast(level, minLevel Level) bool {
	return minLevel == "" || level.rank() >= minLevel.rank()
}

type LogEntry struct {
	Timestamp time.Time         `json:"timestamp"`
	Level     Level             `json:"level"`
	Message   string            `json:"message"`
	Context   map[string]string `json:"context,omitempty"`
}
