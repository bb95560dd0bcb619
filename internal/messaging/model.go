// Package messaging sends patient messages and keeps the immutable send log.
package messaging

import (
	"errors"
	"fmt"
	"time"

	"github.com/wolfman30/dentalcrm/internal/templates"
)

// LogStatus is the outcome recorded for a send.
type LogStatus string

const (
	StatusSuccess LogStatus = "success"
	StatusFailed  LogStatus = "failed"
)

// Log is one send-log entry. Entries are never updated.
type Log struct {
	ID           string                `json:"id"`
	PatientID    string                `json:"patientId,omitempty"`
	Phone        string                `json:"phone"`
	Content      string                `json:"content"`
	MessageType  templates.MessageType `json:"messageType"`
	Status       LogStatus             `json:"status"`
	TemplateID   string                `json:"templateId,omitempty"`
	CategoryID   string                `json:"categoryId,omitempty"`
	ImageRefs    []string              `json:"imageRefs"`
	ErrorMessage string                `json:"errorMessage,omitempty"`
	ProviderID   string                `json:"providerId,omitempty"`
	SentAt       time.Time             `json:"sentAt"`
	Actor        string                `json:"actor,omitempty"`
}

// SendRequest is either a template send (TemplateID set) or a raw-content send.
type SendRequest struct {
	PatientID   string                `json:"patientId"`
	Phone       string                `json:"phone"`
	TemplateID  string                `json:"templateId"`
	Content     string                `json:"content"`
	MessageType templates.MessageType `json:"messageType"`
	CategoryID  string                `json:"categoryId"`
	ImageRefs   []string              `json:"imageRefs"`
	Variables   templates.Vars        `json:"variables"`
}

// SendResult carries the log entry written for a send. Duplicate is set when the
// request repeated an identical send inside the dedup window; nothing was sent or logged.
type SendResult struct {
	Log       *Log `json:"log,omitempty"`
	Duplicate bool `json:"duplicate"`
}

// ErrSendFailed wraps gateway failures. The failed attempt is still logged.
var ErrSendFailed = errors.New("message delivery failed")

// ValidationError rejects a send before anything reaches the gateway.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("messaging: invalid %s: %s", e.Field, e.Reason)
}

func invalid(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}
