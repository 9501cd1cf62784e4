package api

import (
	"encoding/json"
	"net/http"
)

// errorResponse is the body of every failed REST call.
type errorResponse struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeJSONError(w http.ResponseWriter, failure *apiError) {
	code := failure.Code
	if code == "" {
		code = errorCodeForStatus(failure.Status)
	}
	writeJSON(w, failure.Status, errorResponse{Message: failure.Message, Code: code})
}
