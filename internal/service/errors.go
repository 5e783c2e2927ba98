package service

import (
	"errors"
	"sort"
	"strings"
)

var (
	// ErrValidation marks bad or conflicting input. Match with errors.Is.
	ErrValidation = errors.New("validation failed")
	// ErrAuth indicates credentials or tokens that do not identify a principal.
	ErrAuth = errors.New("unable to authenticate with provided credentials")
	// ErrPermission indicates an operation the endpoint does not allow.
	ErrPermission = errors.New("method not allowed")
	// ErrForbidden indicates an authenticated principal lacking a role.
	ErrForbidden = errors.New("forbidden")
	// ErrNotFound indicates a referenced entity does not exist.
	ErrNotFound = errors.New("not found")
	// ErrConflict is returned when an update kept losing optimistic races.
	ErrConflict = errors.New("concurrent update conflict")
	// ErrStorageDisabled is returned by avatar operations without object storage.
	ErrStorageDisabled = errors.New("object storage is not configured")
)

// ValidationError carries per-field messages and wraps ErrValidation.
type ValidationError struct {
	Fields map[string]string
}

func newValidationError(field, msg string) *ValidationError {
	return &ValidationError{Fields: map[string]string{field: msg}}
}

func (e *ValidationError) add(field, msg string) {
	if e.Fields == nil {
		e.Fields = make(map[string]string)
	}
	if _, exists := e.Fields[field]; !exists {
		e.Fields[field] = msg
	}
}

// orNil returns nil when no field failed so callers can return it directly.
func (e *ValidationError) orNil() error {
	if e == nil || len(e.Fields) == 0 {
		return nil
	}
	return e
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return ErrValidation.Error() + ": " + strings.Join(parts, "; ")
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}
