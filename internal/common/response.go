package common

import (
	"encoding/json"
	"net/http"
)

// ErrorEnvelope is the uniform JSON body for every failed request.
type ErrorEnvelope struct {
	Success bool         `json:"success"`
	Message string       `json:"message"`
	Error   any          `json:"error,omitempty"`
	Errors  []FieldError `json:"errors,omitempty"`
	Details any          `json:"details,omitempty"`
}

// Envelope is the uniform JSON body for successful requests.
type Envelope struct {
	Success    bool        `json:"success"`
	Message    string      `json:"message,omitempty"`
	Data       any         `json:"data,omitempty"`
	Pagination *Pagination `json:"pagination,omitempty"`
}

// JSON writes the provided value to the response writer as JSON.
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// OK renders a success envelope.
func OK(w http.ResponseWriter, status int, data any) {
	JSON(w, status, Envelope{Success: true, Data: data})
}

// JSONError renders an error response using the canonical envelope.
func JSONError(w http.ResponseWriter, status int, message string, detail any) {
	JSON(w, status, ErrorEnvelope{Success: false, Message: message, Error: detail})
}
