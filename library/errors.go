package library

import (
	"github.com/pkg/errors"
)

var (
	// ErrIntegrityViolation marks a write rejected by a table constraint,
	// e.g. a duplicate isbn or member_number.
	ErrIntegrityViolation = errors.New("integrity violation")
	// ErrStorageFailure marks any other storage fault.
	ErrStorageFailure = errors.New("storage failure")
	// ErrStoreClosed is returned for every call made after Close.
	ErrStoreClosed = errors.New("store is closed")
	// ErrNotFound is returned by the single-record getters.
	ErrNotFound = errors.New("not found")
)

// StoreError carries the failed operation, its kind (ErrIntegrityViolation or
// ErrStorageFailure) and the underlying cause.
type StoreError struct {
	Op   string
	Kind error
	Err  error
}

func (e *StoreError) Error() string {
	if e.Err == nil {
		return e.Op + ": " + e.Kind.Error()
	}
	return e.Op + ": " + e.Kind.Error() + ": " + e.Err.Error()
}

// Unwrap exposes both the kind and the cause to errors.Is / errors.As.
func (e *StoreError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// IsIntegrityViolation reports whether err is a constraint violation.
func IsIntegrityViolation(err error) bool { return errors.Is(err, ErrIntegrityViolation) }

// IsStorageFailure reports whether err is a non-constraint storage fault.
func IsStorageFailure(err error) bool { return errors.Is(err, ErrStorageFailure) }
