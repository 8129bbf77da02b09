package api

import (
	"encoding/json"
	"net/http"
)

// writeJSON encodes v as JSON and writes it with the given status code.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// errorResponse is the standard error envelope.
type errorResponse struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// invalidPayloadResponse carries per-field validation messages.
type invalidPayloadResponse struct {
	Error   string            `json:"error"`
	Details map[string]string `json:"details"`
	UserID  int64             `json:"user_id,omitempty"`
}

// duplicateTimestampResponse carries the conflicting timestamp so the caller
// can retry with a fresh one.
type duplicateTimestampResponse struct {
	Error                string `json:"error"`
	ConflictingTimestamp int64  `json:"conflicting_timestamp"`
	UserID               int64  `json:"user_id"`
}
