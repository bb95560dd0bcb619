package crmclient

import (
	"errors"
	"fmt"
	"net/http"
)

// Sentinel errors matched by APIError through errors.Is.
var (
	ErrValidation   = errors.New("crmclient: validation failed")
	ErrTransition   = errors.New("crmclient: invalid lifecycle transition")
	ErrNotFound     = errors.New("crmclient: not found")
	ErrConflict     = errors.New("crmclient: conflict")
	ErrUnauthorized = errors.New("crmclient: unauthorized")
	ErrRateLimited  = errors.New("crmclient: rate limited")
	ErrSendFailed   = errors.New("crmclient: message delivery failed")
	ErrServer       = errors.New("crmclient: server error")
)

// APIError is a failure envelope returned by the server.
type APIError struct {
	Status  int
	Code    string
	Message string
	Field   string
}

func (e *APIError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("crmclient: %d %s (%s): %s", e.Status, e.Code, e.Field, e.Message)
	}
	return fmt.Sprintf("crmclient: %d %s: %s", e.Status, e.Code, e.Message)
}

// Is maps the error code, or the status when the code is unknown, to a sentinel.
func (e *APIError) Is(target error) bool {
	return e.kind() == target
}

func (e *APIError) kind() error {
	switch e.Code {
	case "validation_error", "bad_request":
		return ErrValidation
	case "invalid_transition":
		return ErrTransition
	case "not_found":
		return ErrNotFound
	case "conflict":
		return ErrConflict
	case "unauthorized":
		return ErrUnauthorized
	case "rate_limited":
		return ErrRateLimited
	case "send_failed":
		return ErrSendFailed
	}
	switch {
	case e.Status == http.StatusNotFound:
		return ErrNotFound
	case e.Status == http.StatusUnauthorized:
		return ErrUnauthorized
	case e.Status == http.StatusTooManyRequests:
		return ErrRateLimited
	case e.Status >= 500:
		return ErrServer
	case e.Status >= 400:
		return ErrValidation
	}
	return nil
}
