// Package apperror defines the application's error taxonomy.
//
// Every error that crosses a layer boundary wraps one of the sentinels below,
// so callers branch with errors.Is and never on message text. The HTTP layer
// maps sentinels to status codes in handler/response.go.
package apperror

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound   = errors.New("not found")
	ErrValidation = errors.New("Validation Error")
	ErrConflict   = errors.New("conflict")
	ErrForbidden  = errors.New("forbidden")

	// ErrUnauthorized means the caller presented no valid session.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrNormalization means a provider response lacked a mandatory field.
	// The login must be aborted.
	ErrNormalization = errors.New("normalization failure")

	// ErrStorageUnavailable wraps transport and driver failures of the store.
	// It is transient from the caller's point of view and is not retried here.
	ErrStorageUnavailable = errors.New("storage unavailable")

	// ErrAccountLinked means the account already holds a link for this
	// provider under a different provider user id.
	ErrAccountLinked = errors.New("account already linked")
)

type AppError struct {
	Err     error  // actual error
	Message string // Human-readable error message
	Field   string // Optional: field causing the error
}

func (e *AppError) Error() string {
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func NotFound(resource, id string) *AppError {
	return &AppError{
		Err:     ErrNotFound,
		Message: fmt.Sprintf("%s not found with id %s", resource, id),
	}
}

func ValidationFailed(field, message string) *AppError {
	return &AppError{
		Err:     ErrValidation,
		Message: message,
		Field:   field,
	}
}

// Conflict reports a uniqueness violation. The reconciliation engine treats
// it as a lost race and re-resolves.
func Conflict(resource, id string) *AppError {
	return &AppError{
		Err:     ErrConflict,
		Message: fmt.Sprintf("%s conflict with id %s", resource, id),
	}
}

// Forbidden returns an AppError indicating the caller lacks permission.
// HTTP handlers map this to 403 Forbidden.
func Forbidden(message string) *AppError {
	return &AppError{
		Err:     ErrForbidden,
		Message: message,
	}
}

func Unauthorized(message string) *AppError {
	return &AppError{
		Err:     ErrUnauthorized,
		Message: message,
	}
}

// NormalizationFailed reports a provider payload missing a mandatory field.
func NormalizationFailed(provider, field string) *AppError {
	return &AppError{
		Err:     ErrNormalization,
		Message: fmt.Sprintf("%s response is missing required attribute %q", provider, field),
		Field:   field,
	}
}

// StorageUnavailable keeps the driver's message for logs; the cause itself is
// not part of the chain so callers cannot couple to driver error types.
func StorageUnavailable(op string, cause error) *AppError {
	return &AppError{
		Err:     ErrStorageUnavailable,
		Message: fmt.Sprintf("storage unavailable: %s: %v", op, cause),
	}
}

func AccountLinked(provider, userID string) *AppError {
	return &AppError{
		Err:     ErrAccountLinked,
		Message: fmt.Sprintf("user %s is already linked to another %s account", userID, provider),
	}
}
