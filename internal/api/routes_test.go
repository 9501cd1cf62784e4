package api

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"serverdeck/internal/broadcast"
	"serverdeck/internal/logging"
	"serverdeck/internal/metrics"
	"serverdeck/internal/supervisor"
)

type testServer struct {
	*httptest.Server
	services testServices
	hub      *broadcast.Hub
	registry *metrics.Registry
}

func newTestServer(t *testing.T, token string) testServer {
	t.Helper()
	return newTestServerWithLogger(t, token, nil)
}

func newTestServerWithLogger(t *testing.T, token string, logger *logging.Logger) testServer {
	t.Helper()
	ts, services := newTestServices("/srv", "/disabled")
	registry := &metrics.Registry{}
	hub := broadcast.NewHub(nil, registry)
	services.Broadcaster = hub
	mux := http.NewServeMux()
	RegisterRoutes(mux, RouteConfig{
		Hub:        hub,
		Dispatcher: NewDispatcher(services, nil),
		Metrics:    registry,
		Logger:     logger,
		AuthToken:  token,
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return testServer{Server: server, services: ts, hub: hub, registry: registry}
}

func doRequest(t *testing.T, method, url, token, body string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, url, strings.NewReader(body))
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	res, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	t.Cleanup(func() { res.Body.Close() })
	return res
}

func TestStatusEndpoint(t *testing.T) {
	server := newTestServer(t, "")
	res := doRequest(t, http.MethodGet, server.URL+"/api/status", "", "")
	if res.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.StatusCode)
	}
	if got := res.Header.Get("Cache-Control"); got != cacheControlNoStore {
		t.Fatalf("unexpected cache control %q", got)
	}
	var payload struct {
		Server struct {
			State string `json:"state"`
		} `json:"server"`
		Watching bool `json:"watching"`
	}
	if err := json.NewDecoder(res.Body).Decode(&payload); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if payload.Server.State != string(supervisor.StateStopped) {
		t.Fatalf("unexpected state %q", payload.Server.State)
	}
}

func TestStartConflictMapsToJSONError(t *testing.T) {
	server := newTestServer(t, "")
	server.services.server.startErr = &supervisor.TransitionError{Op: "start", State: supervisor.StateRunning}

	res := doRequest(t, http.MethodPost, server.URL+"/api/server/start", "", "")
	if res.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409, got %d", res.StatusCode)
	}
	var payload errorResponse
	if err := json.NewDecoder(res.Body).Decode(&payload); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if payload.Code != "invalid_transition" {
		t.Fatalf("unexpected code %q", payload.Code)
	}
}

func TestStopNotRunning(t *testing.T) {
	server := newTestServer(t, "")
	server.services.server.stopErr = supervisor.ErrNotRunning

	res := doRequest(t, http.MethodPost, server.URL+"/api/server/stop", "", "")
	if res.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409, got %d", res.StatusCode)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	server := newTestServer(t, "")
	res := doRequest(t, http.MethodGet, server.URL+"/api/server/start", "", "")
	if res.StatusCode != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", res.StatusCode)
	}
	if allow := res.Header.Get("Allow"); allow != http.MethodPost {
		t.Fatalf("unexpected Allow %q", allow)
	}
}

func TestLogsEndpointLimit(t *testing.T) {
	server := newTestServer(t, "")
	server.services.server.logs = []supervisor.LogLine{{Line: "one"}, {Line: "two"}}

	res := doRequest(t, http.MethodGet, server.URL+"/api/server/logs?limit=1", "", "")
	var lines []supervisor.LogLine
	if err := json.NewDecoder(res.Body).Decode(&lines); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(lines) != 1 || lines[0].Line != "two" {
		t.Fatalf("unexpected lines %#v", lines)
	}

	res = doRequest(t, http.MethodGet, server.URL+"/api/server/logs?limit=abc", "", "")
	if res.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", res.StatusCode)
	}
}

func TestModsToggleBadPayload(t *testing.T) {
	server := newTestServer(t, "")
	res := doRequest(t, http.MethodPost, server.URL+"/api/mods/toggle", "", "{not json")
	if res.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", res.StatusCode)
	}
}

func TestTokenRequired(t *testing.T) {
	server := newTestServer(t, "secret")
	res := doRequest(t, http.MethodGet, server.URL+"/api/status", "", "")
	if res.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", res.StatusCode)
	}
	res = doRequest(t, http.MethodGet, server.URL+"/api/status", "secret", "")
	if res.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.StatusCode)
	}
	res = doRequest(t, http.MethodGet, server.URL+"/api/status?token=secret", "", "")
	if res.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 with query token, got %d", res.StatusCode)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	server := newTestServer(t, "")
	server.registry.IncServerStart()

	res := doRequest(t, http.MethodGet, server.URL+"/metrics", "", "")
	body, err := io.ReadAll(res.Body)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !strings.Contains(string(body), "serverdeck_server_starts_total 1") {
		t.Fatalf("missing start counter in:\n%s", body)
	}
}

func TestDaemonLogsEndpoint(t *testing.T) {
	buffer := logging.NewLogBuffer(16)
	logger := logging.NewLoggerWithOutput(buffer, logging.LevelDebug, io.Discard)
	server := newTestServerWithLogger(t, "", logger)
	logger.Info("chatter", nil)
	logger.Warn("disk low", nil)

	res := doRequest(t, http.MethodGet, server.URL+"/api/logs?level=warning", "", "")
	var entries []logging.LogEntry
	if err := json.NewDecoder(res.Body).Decode(&entries); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(entries) != 1 || entries[0].Message != "disk low" {
		t.Fatalf("unexpected entries %#v", entries)
	}

	res = doRequest(t, http.MethodGet, server.URL+"/api/logs?level=loud", "", "")
	if res.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", res.StatusCode)
	}
}
