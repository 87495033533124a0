package services

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned for missing, inactive or foreign habits, logs and users.
// Ownership failures are reported the same way so callers cannot probe other users' ids.
var ErrNotFound = errors.New("not found")

// ValidationError reports malformed input on create or update.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func invalid(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}
