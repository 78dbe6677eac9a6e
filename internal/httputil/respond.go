// Package httputil holds small HTTP helpers shared by the API, auth and
// stream handlers.
package httputil

import (
	"encoding/json"
	"log/slog"
	"net/http"
)

// ErrorBody is the JSON shape of every error response.
type ErrorBody struct {
	Error string `json:"error"`
	Stage string `json:"stage,omitempty"`
}

// WriteJSON writes v with the given status code.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Debug("response encode failed", "error", err)
	}
}

// WriteError writes {"error": msg} with the given status code.
func WriteError(w http.ResponseWriter, status int, msg string) {
	WriteJSON(w, status, ErrorBody{Error: msg})
}

// WriteStageError writes {"error": msg, "stage": stage}.
func WriteStageError(w http.ResponseWriter, status int, msg, stage string) {
	WriteJSON(w, status, ErrorBody{Error: msg, Stage: stage})
}
