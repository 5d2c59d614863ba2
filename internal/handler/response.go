package handler

// RESPONSE HELPERS:
// Every JSON response goes through writeJSON and every error through
// writeError, so all error bodies share one shape:
//
//	{"error": "not_found", "message": "user not found with id abc123"}

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/sakif/identity-hub/internal/apperror"
)

// ErrorResponse is the standard error format returned by all API endpoints.
type ErrorResponse struct {
	Error   string `json:"error"`   // machine-readable, e.g. "not_found"
	Message string `json:"message"` // human-readable
}

// writeJSON sets headers, then the status, then encodes the body. Headers
// set after the first Write are silently ignored.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
		}
	}
}

// writeError maps a domain error to an HTTP status.
//
// errors.Is walks the whole chain, so a service error like
//
//	fmt.Errorf("service/auth: ...: %w", apperror.NotFound(...))
//
// still matches apperror.ErrNotFound here.
func writeError(w http.ResponseWriter, err error) {
	status, errorType := classify(err)

	message := "An internal error occurred"
	var appErr *apperror.AppError
	if errors.As(err, &appErr) && status < http.StatusInternalServerError {
		message = appErr.Message
	}
	// 5xx details can carry driver messages and file paths; never expose them.
	if status == http.StatusServiceUnavailable {
		message = "service temporarily unavailable"
	}

	writeJSON(w, status, ErrorResponse{Error: errorType, Message: message})
}

func classify(err error) (int, string) {
	switch {
	case errors.Is(err, apperror.ErrValidation):
		return http.StatusBadRequest, "validation_error"
	case errors.Is(err, apperror.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, apperror.ErrUnauthorized), errors.Is(err, apperror.ErrNormalization):
		return http.StatusUnauthorized, "unauthorized"
	case errors.Is(err, apperror.ErrForbidden):
		return http.StatusForbidden, "forbidden"
	case errors.Is(err, apperror.ErrAccountLinked):
		return http.StatusConflict, "account_linked"
	case errors.Is(err, apperror.ErrConflict):
		return http.StatusConflict, "conflict"
	case errors.Is(err, apperror.ErrStorageUnavailable):
		return http.StatusServiceUnavailable, "storage_unavailable"
	}
	return http.StatusInternalServerError, "internal_error"
}
