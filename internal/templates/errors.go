package templates

import (
	"errors"
	"fmt"
)

var (
	ErrTemplateNotFound = errors.New("template not found")
	ErrCategoryNotFound = errors.New("category not found")

	// ErrDefaultCategory is returned when an operation would leave no default category.
	ErrDefaultCategory = errors.New("the default category cannot be removed")

	ErrDuplicateCategory = errors.New("a category with this name already exists")
)

// ValidationError rejects a template or category before it is stored.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("templates: invalid %s: %s", e.Field, e.Reason)
}

func invalid(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// ErrUnknownPatient is returned by a VariableSource when the preview target does not exist.
var ErrUnknownPatient = errors.New("patient not found")

func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}
