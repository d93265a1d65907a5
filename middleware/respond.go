package middleware

import (
	"encoding/json"
	"net/http"
)

// Body is the JSON envelope of every response written by this package.
type Body struct {
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// WriteJSON writes status and v as JSON. Encoding errors are ignored once the
// header is sent.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
