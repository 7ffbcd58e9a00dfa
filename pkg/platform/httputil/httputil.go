// Package httputil writes JSON responses for the server's plain HTTP endpoints.
package httputil

import (
	"encoding/json"
	"net/http"
)

// ErrorResponse is the body written by WriteError.
type ErrorResponse struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description,omitempty"`
}

// WriteJSON encodes v with the given status. Encoding failures are ignored
// because the header has already been sent.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError writes an error envelope. Descriptions are dropped for 5xx
// statuses so internal details never leave the process.
func WriteError(w http.ResponseWriter, status int, code, description string) {
	body := ErrorResponse{Error: code}
	if status < http.StatusInternalServerError {
		body.ErrorDescription = description
	}
	WriteJSON(w, status, body)
}
