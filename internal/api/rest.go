package api

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"

	"serverdeck/internal/broadcast"
	"serverdeck/internal/logging"
	"serverdeck/internal/metrics"
	"serverdeck/internal/version"
)

const maxRequestBody = 64 << 10

// RestHandler mirrors the surface commands over plain HTTP.
type RestHandler struct {
	Dispatcher *Dispatcher
	Hub        *broadcast.Hub
	Metrics    *metrics.Registry
	DaemonLogs *logging.LogBuffer
	Logger     *logging.Logger
}

type statusResponse struct {
	Version  string `json:"version"`
	Server   any    `json:"server"`
	Assets   any    `json:"assets"`
	Watching bool   `json:"watching"`
	Surfaces int    `json:"surfaces"`
}

func (h *RestHandler) handleStatus(w http.ResponseWriter, r *http.Request) *apiError {
	ctx := r.Context()
	server, err := h.Dispatcher.Invoke(ctx, broadcast.CommandServerStatus, nil)
	if err != nil {
		return apiErrorFor(err)
	}
	assetState, err := h.Dispatcher.Invoke(ctx, broadcast.CommandAssetsStatus, nil)
	if err != nil {
		return apiErrorFor(err)
	}
	watching := false
	if watcher := h.Dispatcher.services.Watcher; watcher != nil {
		_, watching = watcher.Watching()
	}
	writeJSON(w, http.StatusOK, statusResponse{
		Version:  version.Version,
		Server:   server,
		Assets:   assetState,
		Watching: watching,
		Surfaces: h.Hub.Count(),
	})
	return nil
}

// command runs channel with the request body, if any, as its payload.
func (h *RestHandler) command(channel string) apiHandler {
	return func(w http.ResponseWriter, r *http.Request) *apiError {
		var payload json.RawMessage
		if r.Body != nil {
			body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBody))
			if err != nil {
				return &apiError{Status: http.StatusBadRequest, Message: "failed to read request body"}
			}
			payload = body
		}
		data, err := h.Dispatcher.Invoke(r.Context(), channel, payload)
		if err != nil {
			return apiErrorFor(err)
		}
		if data == nil {
			data = commandResult{Success: true}
		}
		writeJSON(w, http.StatusOK, data)
		return nil
	}
}

func (h *RestHandler) handleMods(w http.ResponseWriter, r *http.Request) *apiError {
	list, err := h.Dispatcher.ListMods()
	if err != nil {
		return apiErrorFor(err)
	}
	writeJSON(w, http.StatusOK, list)
	return nil
}

func (h *RestHandler) handleServerLogs(w http.ResponseWriter, r *http.Request) *apiError {
	limit, failure := queryLimit(r)
	if failure != nil {
		return failure
	}
	payload, _ := json.Marshal(logsRequest{Limit: limit})
	data, err := h.Dispatcher.Invoke(r.Context(), broadcast.CommandServerLogs, payload)
	if err != nil {
		return apiErrorFor(err)
	}
	writeJSON(w, http.StatusOK, data)
	return nil
}

// handleDaemonLogs returns serverdeck's own recent log entries.
func (h *RestHandler) handleDaemonLogs(w http.ResponseWriter, r *http.Request) *apiError {
	limit, failure := queryLimit(r)
	if failure != nil {
		return failure
	}
	minLevel := logging.LevelDebug
	if raw := r.URL.Query().Get("level"); raw != "" {
		level, ok := logging.ParseLevel(raw)
		if !ok {
			return &apiError{Status: http.StatusBadRequest, Message: "invalid level"}
		}
		minLevel = level
	}
	entries := h.DaemonLogs.TailLevel(limit, minLevel)
	writeJSON(w, http.StatusOK, entries)
	return nil
}

func (h *RestHandler) handleMetrics(w http.ResponseWriter, r *http.Request) *apiError {
	registry := h.Metrics
	if registry == nil {
		registry = metrics.Default
	}
	w.Header().Set("Content-Type", "text/plain; version=0.0.4")
	if err := registry.WritePrometheus(w); err != nil {
		h.Logger.Warn("metrics write failed", map[string]string{"error": err.Error()})
	}
	return nil
}

func queryLimit(r *http.Request) (int, *apiError) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return 0, nil
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 0 {
		return 0, &apiError{Status: http.StatusBadRequest, Message: "invalid limit"}
	}
	return limit, nil
}
