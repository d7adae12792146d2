package models

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Sentinel errors shared by every layer.
var (
	ErrNotFound           = errors.New("not found")
	ErrForbidden          = errors.New("forbidden")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrValidation         = errors.New("validation error")
	ErrCatalogUnavailable = errors.New("catalog unavailable")
)

// FieldErrors maps a form field to a single human-readable message.
type FieldErrors map[string]string

// Add records msg for field unless the field already has a message.
func (f FieldErrors) Add(field, msg string) {
	if _, ok := f[field]; ok {
		return
	}
	f[field] = msg
}

// ValidationError is returned when raw preferences cannot be turned into criteria.
type ValidationError struct {
	Fields FieldErrors
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 1 {
		for field, msg := range e.Fields {
			return fmt.Sprintf("validation: %s: %s", field, msg)
		}
	}
	names := make([]string, 0, len(e.Fields))
	for field := range e.Fields {
		names = append(names, field)
	}
	sort.Strings(names)
	return fmt.Sprintf("validation: %d fields (%s)", len(names), strings.Join(names, ", "))
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// MatchError reports that candidates could not be searched at all, as
// opposed to a search that found nothing.
type MatchError struct {
	Err error
}

func (e *MatchError) Error() string {
	return fmt.Sprintf("match: catalog unavailable: %v", e.Err)
}

func (e *MatchError) Unwrap() []error { return []error{ErrCatalogUnavailable, e.Err} }

// StoreError wraps a failed history operation.
// Permission failures are never retryable.
type StoreError struct {
	Op        string
	Err       error
	Retryable bool
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("history %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

// NewStoreError classifies err: ownership and identity failures are
// permanent, everything else (connectivity, cancellation) may be retried.
func NewStoreError(op string, err error) *StoreError {
	permanent := errors.Is(err, ErrForbidden) || errors.Is(err, ErrUnauthorized)
	return &StoreError{Op: op, Err: err, Retryable: !permanent}
}

// IsRetryable reports whether err is a StoreError marked retryable.
func IsRetryable(err error) bool {
	var se *StoreError
	return errors.As(err, &se) && se.Retryable
}
