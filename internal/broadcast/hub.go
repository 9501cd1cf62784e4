// Package broadcast delivers service notifications to every attached UI
// surface. Surfaces come and go at any time; each broadcast reads the current
// set rather than a cached list.
package broadcast

import (
	"errors"
	"time"

	cmap "github.com/orcaman/concurrent-map/v2"

	"serverdeck/internal/logging"
	"serverdeck/internal/metrics"
)

var ErrChannelNotAllowed = errors.New("channel not allowed")

// Message is one outbound notification.
type Message struct {
	Channel   string    `json:"channel"`
	Payload   any       `json:"payload,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Surface is an attached UI endpoint.
type Surface interface {
	ID() string
	Send(Message) error
}

// Broadcaster is what services depend on to reach surfaces.
type Broadcaster interface {
	Broadcast(channel string, payload any) error
}

type Hub struct {
	surfaces cmap.ConcurrentMap[string, Surface]
	logger   *logging.Logger
	metrics  *metrics.Registry
}

func NewHub(logger *logging.Logger, registry *metrics.Registry) *Hub {
	if logger == nil {
		logger = logging.Discard()
	}
	if registry == nil {
		registry = metrics.Default
	}
	return &Hub{
		surfaces: cmap.New[Surface](),
		logger:   logger,
		metrics:  registry,
	}
}

// Attach registers surface and returns a func that detaches it. Attaching a
// second surface with the same ID replaces the first.
func (h *Hub) Attach(surface Surface) func() {
	if h == nil || surface == nil {
		return func() {}
	}
	id := surface.ID()
	h.surfaces.Set(id, surface)
	h.metrics.SetSurfaces(h.surfaces.Count())
	h.logger.Debug("surface attached", map[string]string{"surface": id})

	return func() {
		removed := h.surfaces.RemoveCb(id, func(_ string, current Surface, exists bool) bool {
			return exists && current == surface
		})
		if removed {
			h.metrics.SetSurfaces(h.surfaces.Count())
			h.logger.Debug("surface detached", map[string]string{"surface": id})
		}
	}
}

func (h *Hub) Count() int {
	if h == nil {
		return 0
	}
	return h.surfaces.Count()
}

// Broadcast sends payload on channel to every surface attached right now. A
// surface that fails to accept the message is skipped.
func (h *Hub) Broadcast(channel string, payload any) error {
	if h == nil {
		return nil
	}
	if !OutboundAllowed(channel) {
		h.logger.Warn("broadcast rejected", map[string]string{"channel": channel})
		return ErrChannelNotAllowed
	}
	message := Message{
		Channel:   channel,
		Payload:   payload,
		Timestamp: time.Now().UTC(),
	}
	for item := range h.surfaces.IterBuffered() {
		if err := item.Val.Send(message); err != nil {
			h.metrics.IncBroadcastDropped()
			h.logger.Debug("surface send failed", map[string]string{
				"surface": item.Key,
				"channel": channel,
				"error":   err.Error(),
			})
		}
	}
	return nil
}

// Discard is a Broadcaster with no surfaces.
type Discard struct{}

func (Discard) Broadcast(string, any) error { return nil }
