package api

import (
	"encoding/json"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"serverdeck/internal/broadcast"
)

func dialSurface(t *testing.T, server testServer, query string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws" + query
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func waitForSurfaces(t *testing.T, hub *broadcast.Hub, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if hub.Count() == want {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("expected %d surfaces, got %d", want, hub.Count())
}

type replyEnvelope struct {
	ID      string          `json:"id"`
	Channel string          `json:"channel"`
	Result  json.RawMessage `json:"result"`
}

func readReply(t *testing.T, conn *websocket.Conn) replyEnvelope {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	for {
		var frame replyEnvelope
		if err := conn.ReadJSON(&frame); err != nil {
			t.Fatalf("read: %v", err)
		}
		if frame.Channel == replyChannel {
			return frame
		}
	}
}

func TestSurfaceReceivesBroadcasts(t *testing.T) {
	server := newTestServer(t, "")
	conn := dialSurface(t, server, "")
	waitForSurfaces(t, server.hub, 1)

	if err := server.hub.Broadcast(broadcast.ChannelDataRefresh, map[string]string{"category": "mods"}); err != nil {
		t.Fatalf("broadcast: %v", err)
	}

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var message struct {
		Channel string            `json:"channel"`
		Payload map[string]string `json:"payload"`
	}
	if err := conn.ReadJSON(&message); err != nil {
		t.Fatalf("read: %v", err)
	}
	if message.Channel != broadcast.ChannelDataRefresh || message.Payload["category"] != "mods" {
		t.Fatalf("unexpected message %#v", message)
	}
}

func TestSurfaceRejectsUnknownChannel(t *testing.T) {
	server := newTestServer(t, "")
	conn := dialSurface(t, server, "")

	if err := conn.WriteJSON(map[string]any{"id": "1", "channel": "fs:delete", "payload": map[string]string{"path": "/"}}); err != nil {
		t.Fatalf("write: %v", err)
	}
	reply := readReply(t, conn)
	if reply.ID != "1" {
		t.Fatalf("unexpected reply id %q", reply.ID)
	}
	var result commandResult
	if err := json.Unmarshal(reply.Result, &result); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	if result.Success || result.Error != "channel not allowed" {
		t.Fatalf("unexpected result %#v", result)
	}
}

func TestSurfaceDispatchesCommand(t *testing.T) {
	server := newTestServer(t, "")
	conn := dialSurface(t, server, "")

	if err := conn.WriteJSON(map[string]any{"id": "7", "channel": broadcast.CommandGetServerPath}); err != nil {
		t.Fatalf("write: %v", err)
	}
	reply := readReply(t, conn)
	if reply.ID != "7" {
		t.Fatalf("unexpected reply id %q", reply.ID)
	}
	var path serverPath
	if err := json.Unmarshal(reply.Result, &path); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	if path.ServerDir != "/srv" {
		t.Fatalf("unexpected server dir %q", path.ServerDir)
	}
}

func TestSurfaceDetachesOnClose(t *testing.T) {
	server := newTestServer(t, "")
	conn := dialSurface(t, server, "")
	waitForSurfaces(t, server.hub, 1)

	_ = conn.Close()
	waitForSurfaces(t, server.hub, 0)
}

func TestSurfaceRequiresToken(t *testing.T) {
	server := newTestServer(t, "secret")
	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws"
	_, res, err := websocket.DefaultDialer.Dial(url, nil)
	if err == nil {
		t.Fatalf("expected dial failure")
	}
	if res == nil || res.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 response, got %#v", res)
	}
	dialSurface(t, server, "?token=secret")
	waitForSurfaces(t, server.hub, 1)
}

func TestSurfaceSendAfterClose(t *testing.T) {
	surface := newWSSurface(nil, nil)
	surface.close()
	if err := surface.Send(broadcast.Message{Channel: broadcast.ChannelServerLog}); err != errSurfaceClosed {
		t.Fatalf("expected closed error, got %v", err)
	}
}

func TestSurfaceSendFullQueue(t *testing.T) {
	surface := newWSSurface(nil, nil)
	for i := 0; i < surfaceQueueSize; i++ {
		if err := surface.Send(broadcast.Message{Channel: broadcast.ChannelServerLog}); err != nil {
			t.Fatalf("send %d: %v", i, err)
		}
	}
	if err := surface.Send(broadcast.Message{Channel: broadcast.ChannelServerLog}); err != errSurfaceFull {
		t.Fatalf("expected full error, got %v", err)
	}
}
