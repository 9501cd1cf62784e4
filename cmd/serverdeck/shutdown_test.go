package main

import (
	"context"
	"errors"
	"os"
	"reflect"
	"syscall"
	"testing"
	"time"
)

func TestShutdownCoordinatorRunsInOrder(t *testing.T) {
	coordinator := newShutdownCoordinator(nil)
	order := []string{}

	coordinator.Add("http", func(context.Context) error {
		order = append(order, "http")
		return nil
	})
	coordinator.Add("notifier", func(context.Context) error {
		order = append(order, "notifier")
		return errors.New("fail")
	})
	coordinator.Add("supervisor", func(context.Context) error {
		order = append(order, "supervisor")
		return nil
	})

	if err := coordinator.Run(context.Background()); err == nil {
		t.Fatalf("expected shutdown error")
	}
	expected := []string{"http", "notifier", "supervisor"}
	if !reflect.DeepEqual(order, expected) {
		t.Fatalf("expected order %v, got %v", expected, order)
	}
}

func TestShutdownCoordinatorRunsOnce(t *testing.T) {
	coordinator := newShutdownCoordinator(nil)
	calls := 0
	coordinator.Add("only", func(context.Context) error {
		calls++
		return nil
	})
	_ = coordinator.Run(context.Background())
	_ = coordinator.Run(context.Background())
	if calls != 1 {
		t.Fatalf("expected one call, got %d", calls)
	}
}

func TestWatchShutdownSignalsCancelsOnce(t *testing.T) {
	signals := make(chan os.Signal, 2)
	cancelled := make(chan struct{}, 2)
	stop := watchShutdownSignals(nil, func() { cancelled <- struct{}{} }, signals)
	defer stop()

	signals <- syscall.SIGTERM
	signals <- os.Interrupt

	select {
	case <-cancelled:
	case <-time.After(time.Second):
		t.Fatalf("expected cancel")
	}
	select {
	case <-cancelled:
		t.Fatalf("expected a single cancel")
	case <-time.After(100 * time.Millisecond):
	}
}
