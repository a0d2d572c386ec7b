package httpapi

import (
	"encoding/json"
	"net/http"
)

// Stable error type labels carried in every error body.
const (
	errTypeValidation = "ValidationError"
	errTypeNotFound   = "NotFound"
	errTypeInternal   = "InternalError"
)

// ErrorResponse is the uniform error body.
type ErrorResponse struct {
	Error   string       `json:"error"`
	Details ErrorDetails `json:"details"`
}

// ErrorDetails carries the human-readable message.
type ErrorDetails struct {
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body) //nolint:errcheck
}

func writeError(w http.ResponseWriter, status int, errType, message string) {
	writeJSON(w, status, ErrorResponse{
		Error:   errType,
		Details: ErrorDetails{Message: message},
	})
}
