package api

import (
	"errors"
	"net/http"

	"serverdeck/internal/config"
	"serverdeck/internal/mods"
	"serverdeck/internal/supervisor"
)

func errorCodeForStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "invalid_request"
	case http.StatusUnauthorized:
		return "unauthorized"
	case http.StatusForbidden:
		return "forbidden"
	case http.StatusNotFound:
		return "not_found"
	case http.StatusMethodNotAllowed:
		return "method_not_allowed"
	case http.StatusConflict:
		return "conflict"
	case http.StatusServiceUnavailable:
		return "service_unavailable"
	default:
		if status >= http.StatusInternalServerError {
			return "internal_error"
		}
	}
	return ""
}

// apiErrorFor maps a service error to an HTTP status and a stable code.
func apiErrorFor(err error) *apiError {
	status := http.StatusInternalServerError
	code := ""
	switch {
	case errors.Is(err, errInvalidPayload), errors.Is(err, mods.ErrInvalidName), errors.Is(err, config.ErrInvalidServerDir):
		status = http.StatusBadRequest
	case errors.Is(err, errChannelUnavailable):
		status = http.StatusServiceUnavailable
	case errors.Is(err, supervisor.ErrInvalidTransition):
		status, code = http.StatusConflict, "invalid_transition"
	case errors.Is(err, supervisor.ErrNotRunning):
		status, code = http.StatusConflict, "not_running"
	case errors.Is(err, supervisor.ErrLauncherMissing):
		status, code = http.StatusNotFound, "launcher_missing"
	case errors.Is(err, supervisor.ErrSpawnFailed):
		status, code = http.StatusBadGateway, "spawn_failed"
	case errors.Is(err, mods.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, mods.ErrDestinationExists), errors.Is(err, mods.ErrBusy):
		status = http.StatusConflict
	case errors.Is(err, mods.ErrPermissionDenied):
		status = http.StatusForbidden
	}
	return &apiError{Status: status, Message: err.Error(), Code: code}
}
