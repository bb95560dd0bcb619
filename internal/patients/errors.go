package patients

import (
	"errors"
	"fmt"
)

var (
	// ErrPatientNotFound is returned when a patient id does not exist
	ErrPatientNotFound = errors.New("patient not found")

	// ErrDuplicatePhone is returned when another patient already uses the phone number
	ErrDuplicatePhone = errors.New("a patient with this phone number already exists")
)

// ValidationError rejects input before anything is stored.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "patients: " + e.Reason
	}
	return fmt.Sprintf("patients: invalid %s: %s", e.Field, e.Reason)
}

func invalid(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// TransitionError rejects a lifecycle action whose guard does not hold.
type TransitionError struct {
	Action Action
	Phase  Phase
	Reason string
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("patients: cannot %s in phase %s: %s", e.Action, e.Phase, e.Reason)
}

func illegal(action Action, p *Patient, reason string) error {
	return &TransitionError{Action: action, Phase: p.Phase, Reason: reason}
}

// IsValidation reports whether err is a *ValidationError.
func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}

// IsTransition reports whether err is a *TransitionError.
func IsTransition(err error) bool {
	var t *TransitionError
	return errors.As(err, &t)
}
