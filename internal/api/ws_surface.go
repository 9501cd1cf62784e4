package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"serverdeck/internal/broadcast"
	"serverdeck/internal/logging"
)

const (
	surfaceQueueSize = 256
	replyChannel     = "reply"
	maxFrameBytes    = 1 << 20
	wsWriteTimeout   = 10 * time.Second
	maxCloseReason   = 123
)

var (
	errSurfaceFull   = errors.New("surface queue full")
	errSurfaceClosed = errors.New("surface closed")
)

// inboundFrame is a command sent by a UI surface.
type inboundFrame struct {
	ID      string          `json:"id"`
	Channel string          `json:"channel"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type replyFrame struct {
	ID      string `json:"id"`
	Channel string `json:"channel"`
	Result  any    `json:"result"`
}

// wsSurface is one websocket connection attached to the hub. Outbound
// messages and replies share a single queue so only the write loop touches
// the connection.
type wsSurface struct {
	id     string
	conn   *websocket.Conn
	queue  chan any
	done   chan struct{}
	once   sync.Once
	logger *logging.Logger
}

func newWSSurface(conn *websocket.Conn, logger *logging.Logger) *wsSurface {
	return &wsSurface{
		id:     uuid.NewString(),
		conn:   conn,
		queue:  make(chan any, surfaceQueueSize),
		done:   make(chan struct{}),
		logger: logger,
	}
}

func (s *wsSurface) ID() string {
	return s.id
}

// Send queues message without blocking the broadcaster.
func (s *wsSurface) Send(message broadcast.Message) error {
	return s.enqueue(message)
}

func (s *wsSurface) enqueue(frame any) error {
	select {
	case <-s.done:
		return errSurfaceClosed
	default:
	}
	select {
	case s.queue <- frame:
		return nil
	case <-s.done:
		return errSurfaceClosed
	default:
		return errSurfaceFull
	}
}

func (s *wsSurface) close() {
	s.once.Do(func() {
		close(s.done)
	})
}

func (s *wsSurface) writeLoop() {
	defer s.close()
	for {
		select {
		case frame := <-s.queue:
			if err := s.conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout)); err != nil {
				return
			}
			if err := s.conn.WriteJSON(frame); err != nil {
				s.logger.Debug("surface write failed", map[string]string{"surface": s.id, "error": err.Error()})
				return
			}
		case <-s.done:
			return
		}
	}
}

// SurfaceHandler upgrades /ws connections into hub surfaces and answers
// their commands.
type SurfaceHandler struct {
	Hub            *broadcast.Hub
	Dispatcher     *Dispatcher
	Logger         *logging.Logger
	AuthToken      string
	AllowedOrigins []string
}

func (h *SurfaceHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	logger := h.Logger
	if logger == nil {
		logger = logging.Discard()
	}
	if !validateToken(r, h.AuthToken) {
		logger.Warn("surface rejected", map[string]string{"remote_addr": r.RemoteAddr, "reason": "unauthorized"})
		writeJSONError(w, &apiError{Status: http.StatusUnauthorized, Message: "unauthorized"})
		return
	}
	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			return isOriginAllowed(r, h.AllowedOrigins)
		},
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Warn("surface upgrade failed", map[string]string{"remote_addr": r.RemoteAddr, "error": err.Error()})
		return
	}
	defer conn.Close()

	if h.Hub == nil || h.Dispatcher == nil {
		closeWithReason(conn, websocket.CloseTryAgainLater, "surface hub unavailable")
		return
	}

	surface := newWSSurface(conn, logger)
	detach := h.Hub.Attach(surface)
	defer detach()
	defer surface.close()
	go surface.writeLoop()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	conn.SetReadLimit(maxFrameBytes)
	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		if msgType != websocket.TextMessage {
			continue
		}
		var frame inboundFrame
		if err := json.Unmarshal(data, &frame); err != nil {
			_ = surface.enqueue(replyFrame{Channel: replyChannel, Result: commandResult{Error: errInvalidPayload.Error()}})
			continue
		}
		if !broadcast.InboundAllowed(frame.Channel) {
			logger.Warn("surface command rejected", map[string]string{"surface": surface.id, "channel": frame.Channel})
			_ = surface.enqueue(replyFrame{ID: frame.ID, Channel: replyChannel, Result: commandResult{Error: errChannelNotAllowed.Error()}})
			continue
		}
		go func(frame inboundFrame) {
			result := h.Dispatcher.Dispatch(ctx, frame.Channel, frame.Payload)
			if err := surface.enqueue(replyFrame{ID: frame.ID, Channel: replyChannel, Result: result}); err != nil {
				logger.Debug("surface reply dropped", map[string]string{"surface": surface.id, "channel": frame.Channel, "error": err.Error()})
			}
		}(frame)
	}
}

// closeWithReason sends a close frame; reasons are cut to fit the frame.
func closeWithReason(conn *websocket.Conn, code int, reason string) {
	if len(reason) > maxCloseReason {
		reason = reason[:maxCloseReason]
	}
	deadline := time.Now().Add(wsWriteTimeout)
	_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason), deadline)
}
