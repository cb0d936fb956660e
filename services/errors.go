package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	// ErrConflict means the debate moved on while the request was being handled,
	// for example the turn was already taken or the debate was resolved.
	ErrConflict = errors.New("conflict")
)

// ValidationError is bad input; its message is shown to the caller as is.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

func validationf(format string, args ...interface{}) error {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// NotFoundError is a missing entity, e.g. "argument not found".
type NotFoundError struct {
	Entity string
}

func (e *NotFoundError) Error() string { return e.Entity + " not found" }

func notFound(entity string) error {
	return &NotFoundError{Entity: entity}
}

func invalidTopicsError(invalid []string) error {
	return validationf("Invalid topics: %s", strings.Join(invalid, ", "))
}
