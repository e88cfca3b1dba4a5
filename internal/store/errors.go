package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
)

// Error kinds. Every error returned by a store operation matches exactly one
// of ErrValidation, ErrNotFound, ErrInvariant or ErrBackend under errors.Is.
var (
	ErrValidation = errors.New("validation error")
	ErrNotFound   = errors.New("not found")
	ErrInvariant  = errors.New("invariant violation")
	ErrBackend    = errors.New("backend error")

	// ErrInvalidReference is a validation error for an id that does not
	// resolve, or resolves into another event. It also matches ErrValidation.
	ErrInvalidReference = errors.New("invalid reference")
)

// Error carries the failed operation, its kind and the underlying cause.
type Error struct {
	Op        string // Operation that failed, e.g. "move category"
	Kind      error  // One of the kind sentinels above
	Field     string // Offending input field (if applicable)
	Msg       string // Human readable detail
	Err       error  // Underlying error (backend failures)
	Retryable bool   // Whether the caller may retry a backend failure
}

func (e *Error) Error() string {
	parts := []string{"store: " + e.Op}
	if e.Field != "" {
		parts = append(parts, e.Field)
	}
	parts = append(parts, e.Kind.Error())
	if e.Msg != "" {
		parts = append(parts, e.Msg)
	}
	if e.Err != nil {
		parts = append(parts, e.Err.Error())
	}
	return strings.Join(parts, ": ")
}

// Unwrap exposes both the kind and the cause to errors.Is and errors.As.
func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// Is makes an invalid reference match ErrValidation as well.
func (e *Error) Is(target error) bool {
	return target == ErrValidation && e.Kind == ErrInvalidReference
}

// KindOf returns the kind sentinel for err: ErrValidation, ErrNotFound,
// ErrInvariant or ErrBackend. Nil yields nil; unknown errors are backend.
func KindOf(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrValidation):
		return ErrValidation
	case errors.Is(err, ErrNotFound):
		return ErrNotFound
	case errors.Is(err, ErrInvariant):
		return ErrInvariant
	default:
		return ErrBackend
	}
}

// IsRetryable reports whether err is a transient backend failure.
func IsRetryable(err error) bool {
	var se *Error
	if errors.As(err, &se) {
		return se.Retryable
	}
	return false
}

func validationError(op, field, format string, args ...any) error {
	return &Error{Op: op, Kind: ErrValidation, Field: field, Msg: fmt.Sprintf(format, args...)}
}

func invalidReference(op, field string, id int64, reason string) error {
	return &Error{Op: op, Kind: ErrInvalidReference, Field: field, Msg: fmt.Sprintf("%d %s", id, reason)}
}

func notFound(op, what string, id int64) error {
	return &Error{Op: op, Kind: ErrNotFound, Msg: fmt.Sprintf("%s %d", what, id)}
}

func invariantViolation(op, format string, args ...any) error {
	return &Error{Op: op, Kind: ErrInvariant, Msg: fmt.Sprintf(format, args...)}
}

// backendError wraps a driver or transport failure. Errors that already carry
// a kind pass through unchanged.
func backendError(op string, err error) error {
	if err == nil {
		return nil
	}
	var se *Error
	if errors.As(err, &se) {
		return err
	}
	return &Error{Op: op, Kind: ErrBackend, Err: err, Retryable: retryable(err)}
}

// retryable classifies transient failures: serialization conflicts,
// deadlocks, connection loss and timeouts. A cancelled context is final.
func retryable(err error) bool {
	if errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) || pgconn.Timeout(err) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch {
		case pgErr.Code == "40001", pgErr.Code == "40P01":
			return true
		case strings.HasPrefix(pgErr.Code, "08"):
			return true
		}
		return false
	}
	return pgconn.SafeToRetry(err)
}
