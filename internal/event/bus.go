// Package event is the in-process publish/subscribe primitive the services
// use to expose their state changes.
package event

import (
	"context"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"serverdeck/internal/logging"
	"serverdeck/internal/metrics"
)

const (
	defaultBufferSize   = 128
	dropWarningInterval = 30 * time.Second
)

type BusOptions struct {
	// Name labels metrics and log lines.
	Name                 string
	SubscriberBufferSize int
	Registry             *metrics.Registry
	Logger               *logging.Logger
}

// Bus fans events out to buffered subscriber channels. Publish never blocks:
// a subscriber whose buffer is full misses the event and the drop is counted.
// Each subscriber sees events in publish order.
type Bus[T any] struct {
	name       string
	bufferSize int
	registry   *metrics.Registry
	logger     *logging.Logger

	mu     sync.RWMutex
	subs   []*subscriber[T]
	nextID uint64
	closed bool

	published atomic.Int64
	dropped   atomic.Int64
	warnedAt  atomic.Int64
}

type subscriber[T any] struct {
	id     uint64
	ch     chan T
	accept func(T) bool
}

// NewBus builds a bus that closes itself when ctx is done.
func NewBus[T any](ctx context.Context, opts BusOptions) *Bus[T] {
	b := &Bus[T]{
		name:       opts.Name,
		bufferSize: opts.SubscriberBufferSize,
		registry:   opts.Registry,
		logger:     opts.Logger,
	}
	if b.name == "" {
		b.name = "event_bus"
	}
	if b.bufferSize <= 0 {
		b.bufferSize = defaultBufferSize
	}
	if b.registry == nil {
		b.registry = metrics.Default
	}
	if ctx != nil && ctx.Done() != nil {
		go func() {
			<-ctx.Done()
			b.Close()
		}()
	}
	return b
}

func (b *Bus[T]) Subscribe() (<-chan T, func()) {
	return b.SubscribeFiltered(nil)
}

// SubscribeFiltered delivers only events accept returns true for. The
// returned func unsubscribes and closes the channel.
func (b *Bus[T]) SubscribeFiltered(accept func(T) bool) (<-chan T, func()) {
	if b == nil {
		return closedChan[T](), func() {}
	}
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return closedChan[T](), func() {}
	}
	b.nextID++
	sub := &subscriber[T]{id: b.nextID, ch: make(chan T, b.bufferSize), accept: accept}
	subs := make([]*subscriber[T], len(b.subs), len(b.subs)+1)
	copy(subs, b.subs)
	b.subs = append(subs, sub)
	b.reportSubscribersLocked()
	b.mu.Unlock()

	var once sync.Once
	return sub.ch, func() {
		once.Do(func() { b.unsubscribe(sub.id) })
	}
}

// SubscribeTypes delivers events whose Type() is one of types. Events that do
// not implement Event never match.
func (b *Bus[T]) SubscribeTypes(types ...string) (<-chan T, func()) {
	wanted := make(map[string]bool, len(types))
	for _, name := range types {
		if name != "" {
			wanted[name] = true
		}
	}
	if len(wanted) == 0 {
		return closedChan[T](), func() {}
	}
	return b.SubscribeFiltered(func(value T) bool {
		typed, ok := any(value).(Event)
		return ok && wanted[typed.Type()]
	})
}

func (b *Bus[T]) Publish(value T) {
	if b == nil {
		return
	}
	eventType := typeOf(value)

	// Holding the read lock across the sends keeps Close and unsubscribe from
	// closing a channel mid-send. Sends never block, so the hold is short.
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return
	}
	b.published.Add(1)
	b.registry.IncEventPublished(b.name, eventType)
	for _, sub := range b.subs {
		if sub.accept != nil && !sub.accept(value) {
			continue
		}
		select {
		case sub.ch <- value:
		default:
			b.recordDrop(eventType)
		}
	}
}

// Close closes every subscriber channel. Later publishes are ignored.
func (b *Bus[T]) Close() {
	if b == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for _, sub := range b.subs {
		close(sub.ch)
	}
	b.subs = nil
	b.reportSubscribersLocked()
}

func (b *Bus[T]) SubscriberCount() int {
	if b == nil {
		return 0
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Stats reports how many events were published and dropped since creation.
func (b *Bus[T]) Stats() (published, dropped int64) {
	if b == nil {
		return 0, 0
	}
	return b.published.Load(), b.dropped.Load()
}

func (b *Bus[T]) unsubscribe(id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, sub := range b.subs {
		if sub.id != id {
			continue
		}
		subs := make([]*subscriber[T], 0, len(b.subs)-1)
		subs = append(subs, b.subs[:i]...)
		b.subs = append(subs, b.subs[i+1:]...)
		close(sub.ch)
		b.reportSubscribersLocked()
		return
	}
}

func (b *Bus[T]) reportSubscribersLocked() {
	filtered := 0
	for _, sub := range b.subs {
		if sub.accept != nil {
			filtered++
		}
	}
	b.registry.SetEventSubscriberCounts(b.name, filtered, len(b.subs)-filtered)
}

// recordDrop counts a missed delivery and warns at most once per interval.
func (b *Bus[T]) recordDrop(eventType string) {
	dropped := b.dropped.Add(1)
	b.registry.IncEventDropped(b.name, eventType)
	if b.logger == nil {
		return
	}
	now := time.Now().UnixNano()
	last := b.warnedAt.Load()
	if last != 0 && time.Duration(now-last) < dropWarningInterval {
		return
	}
	if !b.warnedAt.CompareAndSwap(last, now) {
		return
	}
	b.logger.Warn("event subscriber too slow; dropping events", map[string]string{
		"bus":       b.name,
		"type":      eventType,
		"dropped":   strconv.FormatInt(dropped, 10),
		"published": strconv.FormatInt(b.published.Load(), 10),
	})
}

func typeOf[T any](value T) string {
	if typed, ok := any(value).(Event); ok {
		if name := typed.Type(); name != "" {
			return name
		}
	}
	return "unknown"
}

func closedChan[T any]() chan T {
	ch := make(chan T)
	close(ch)
	return ch
}
