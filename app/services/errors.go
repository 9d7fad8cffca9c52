package services

import (
	"errors"
	"sort"
	"strings"

	"quill/app/repositories"
)

var (
	// ErrUnauthenticated means the operation needs an actor and got none.
	ErrUnauthenticated = errors.New("unauthenticated")
	// ErrForbidden means the actor may not perform the operation.
	ErrForbidden = errors.New("this action is unauthorized")
	// ErrNotFound means the addressed record does not exist or is hidden
	// from the actor.
	ErrNotFound = errors.New("not found")
)

// ValidationError maps input fields to human readable messages.
type ValidationError struct {
	Fields map[string]string
}

// NewValidationError creates an empty ValidationError
func NewValidationError() *ValidationError {
	return &ValidationError{Fields: make(map[string]string)}
}

// Add records msg for field unless the field already has a message.
func (e *ValidationError) Add(field, msg string) {
	if _, ok := e.Fields[field]; !ok {
		e.Fields[field] = msg
	}
}

// Has reports whether field has a message.
func (e *ValidationError) Has(field string) bool {
	_, ok := e.Fields[field]
	return ok
}

// OrNil returns e when it holds at least one message.
func (e *ValidationError) OrNil() error {
	if len(e.Fields) == 0 {
		return nil
	}
	return e
}

func (e *ValidationError) Error() string {
	fields := make([]string, 0, len(e.Fields))
	for f := range e.Fields {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	msgs := make([]string, 0, len(fields))
	for _, f := range fields {
		msgs = append(msgs, e.Fields[f])
	}
	return "validation failed: " + strings.Join(msgs, " ")
}

// notFound turns a repository miss into ErrNotFound.
func notFound(err error) error {
	if errors.Is(err, repositories.ErrNotFound) {
		return ErrNotFound
	}
	return err
}
