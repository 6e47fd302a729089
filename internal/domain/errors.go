package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrValidation is returned when caller input is malformed
	ErrValidation = errors.New("validation failed")

	// ErrNotFound is returned when a job, attempt or result does not exist
	ErrNotFound = errors.New("not found")

	// ErrInvalidState is returned when an operation is not allowed in the current job state
	ErrInvalidState = errors.New("invalid state")

	// ErrConfiguration is returned when a policy is missing required settings
	ErrConfiguration = errors.New("configuration error")

	// ErrConflict is returned when a record with the same id already exists
	ErrConflict = errors.New("conflict")

	// ErrTransient marks infrastructure failures that are safe to retry
	ErrTransient = errors.New("transient infrastructure error")
)

// Error carries a classification sentinel plus operation context.
// errors.Is matches both the Kind sentinel and the wrapped cause.
type Error struct {
	Kind     error
	Op       string
	Resource string
	ID       string
	Message  string
	Err      error
}

func (e *Error) Error() string {
	var b strings.Builder
	if e.Op != "" {
		b.WriteString(e.Op)
		b.WriteString(": ")
	}

	switch {
	case e.Message != "":
		b.WriteString(e.Message)
	case e.Resource != "" && e.ID != "":
		fmt.Fprintf(&b, "%s %q %s", e.Resource, e.ID, e.kindText())
	default:
		b.WriteString(e.kindText())
	}

	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) kindText() string {
	if e.Kind == nil {
		return "error"
	}
	return e.Kind.Error()
}

func (e *Error) Unwrap() []error {
	errs := make([]error, 0, 2)
	if e.Kind != nil {
		errs = append(errs, e.Kind)
	}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

// Validation creates a validation error for the given field
func Validation(field, message string) error {
	if field != "" {
		message = field + ": " + message
	}
	return &Error{Kind: ErrValidation, Message: message}
}

// NotFound creates a not-found error for a resource id
func NotFound(resource, id string) error {
	return &Error{Kind: ErrNotFound, Resource: resource, ID: id}
}

// InvalidState creates an invalid-state error
func InvalidState(format string, args ...any) error {
	return &Error{Kind: ErrInvalidState, Message: fmt.Sprintf(format, args...)}
}

// Configuration creates a configuration error
func Configuration(message string) error {
	return &Error{Kind: ErrConfiguration, Message: message}
}

// Conflict creates a conflict error for a resource id
func Conflict(resource, id string) error {
	return &Error{Kind: ErrConflict, Resource: resource, ID: id, Message: fmt.Sprintf("%s %q already exists", resource, id)}
}

// Transient wraps an infrastructure failure that callers may retry
func Transient(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrTransient) {
		return err
	}
	return &Error{Kind: ErrTransient, Op: op, Message: "transient infrastructure error", Err: err}
}

// IsRetryable reports whether err should be retried by the caller
func IsRetryable(err error) bool {
	return errors.Is(err, ErrTransient)
}
