package supervisor

import "time"

type State string

const (
	StateStopped  State = "stopped"
	StateStarting State = "starting"
	StateRunning  State = "running"
	StateStopping State = "stopping"
)

type Stream string

const (
	StreamStdout Stream = "stdout"
	StreamStderr Stream = "stderr"
)

// Status is a point-in-time view of the supervised process.
type Status struct {
	State     State     `json:"state"`
	PID       int       `json:"pid,omitempty"`
	RunID     string    `json:"runId,omitempty"`
	StartedAt time.Time `json:"startedAt,omitempty"`
}

type StatusEvent struct {
	State     State     `json:"state"`
	RunID     string    `json:"runId,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

func (e StatusEvent) Type() string {
	return string(e.State)
}

// LogLine is one line of server output, or a line the supervisor emits on the
// server's behalf.
type LogLine struct {
	Line      string    `json:"line"`
	Stream    Stream    `json:"stream"`
	Timestamp time.Time `json:"timestamp"`
	RunID     string    `json:"runId,omitempty"`
}

func (l LogLine) Type() string {
	return string(l.Stream)
}
