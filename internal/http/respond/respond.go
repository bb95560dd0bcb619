// Package respond writes the {success, data|error} envelope shared by every API handler.
package respond

import (
	"encoding/json"
	"net/http"
)

// Error codes surfaced to clients.
const (
	CodeValidation   = "validation_error"
	CodeTransition   = "invalid_transition"
	CodeNotFound     = "not_found"
	CodeConflict     = "conflict"
	CodeBadRequest   = "bad_request"
	CodeSendFailed   = "send_failed"
	CodeUnauthorized = "unauthorized"
	CodeRateLimited  = "rate_limited"
	CodeInternal     = "internal_error"
)

// Envelope is the wire shape of every response body.
type Envelope struct {
	Success bool       `json:"success"`
	Data    any        `json:"data,omitempty"`
	Error   *ErrorBody `json:"error,omitempty"`
}

// ErrorBody describes a failed operation.
type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
}

// JSON writes a success envelope.
func JSON(w http.ResponseWriter, status int, data any) {
	write(w, status, Envelope{Success: true, Data: data})
}

// Error writes a failure envelope.
func Error(w http.ResponseWriter, status int, code, message string) {
	write(w, status, Envelope{Error: &ErrorBody{Code: code, Message: message}})
}

// FieldError writes a failure envelope naming the offending field.
func FieldError(w http.ResponseWriter, status int, code, field, message string) {
	write(w, status, Envelope{Error: &ErrorBody{Code: code, Message: message, Field: field}})
}

func write(w http.ResponseWriter, status int, env Envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(env)
}
