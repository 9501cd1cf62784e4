package event

import (
	"testing"
	"time"
)

// ReceiveWithTimeout waits for a single event or fails the test.
func ReceiveWithTimeout[T any](t *testing.T, ch <-chan T, timeout time.Duration) T {
	t.Helper()
	select {
	case event, ok := <-ch:
		if !ok {
			t.Fatal("event channel closed")
		}
		return event
	case <-time.After(timeout):
		t.Fatalf("timed out waiting for event after %s", timeout)
	}
	var zero T
	return zero
}

// ExpectNone fails the test if an event arrives within the window.
func ExpectNone[T any](t *testing.T, ch <-chan T, window time.Duration) {
	t.Helper()
	select {
	case event, ok := <-ch:
		if ok {
			t.Fatalf("unexpected event: %+v", event)
		}
	case <-time.After(window):
	}
}

// Collect reads events until the window elapses with nothing new.
func Collect[T any](ch <-chan T, window time.Duration) []T {
	var events []T
	for {
		select {
		case event, ok := <-ch:
			if !ok {
				return events
			}
			events = append(events, event)
		case <-time.After(window):
			return events
		}
	}
}
