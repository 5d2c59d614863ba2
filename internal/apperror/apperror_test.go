package apperror

import (
	"errors"
	"fmt"
	"testing"
)

func TestErrorsIs(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		target    error
		wantMatch bool
	}{
		{
			name:      "NotFound wraps ErrNotFound",
			err:       NotFound("user", "abc123"),
			target:    ErrNotFound,
			wantMatch: true,
		},
		{
			name:      "ValidationFailed wraps ErrValidation",
			err:       ValidationFailed("displayName", "display name is required"),
			target:    ErrValidation,
			wantMatch: true,
		},
		{
			name:      "Conflict wraps ErrConflict",
			err:       Conflict("user", "a@x.com"),
			target:    ErrConflict,
			wantMatch: true,
		},
		{
			name:      "NormalizationFailed wraps ErrNormalization",
			err:       NormalizationFailed("GOOGLE", "sub"),
			target:    ErrNormalization,
			wantMatch: true,
		},
		{
			name:      "StorageUnavailable wraps ErrStorageUnavailable",
			err:       StorageUnavailable("finding user", errors.New("disk I/O error")),
			target:    ErrStorageUnavailable,
			wantMatch: true,
		},
		{
			name:      "wrapped twice still matches",
			err:       fmt.Errorf("service: %w", fmt.Errorf("sqlite: %w", Conflict("identity link", "GITHUB/1"))),
			target:    ErrConflict,
			wantMatch: true,
		},
		{
			name:      "Conflict does NOT match ErrAccountLinked",
			err:       Conflict("identity link", "GITHUB/1"),
			target:    ErrAccountLinked,
			wantMatch: false,
		},
		{
			name:      "StorageUnavailable does NOT expose its cause",
			err:       StorageUnavailable("op", ErrNotFound),
			target:    ErrNotFound,
			wantMatch: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := errors.Is(tt.err, tt.target)
			if got != tt.wantMatch {
				t.Errorf("errors.Is(%v, %v) = %v, want %v", tt.err, tt.target, got, tt.wantMatch)
			}
		})
	}
}

func TestErrorMessages(t *testing.T) {
	tests := []struct {
		name        string
		err         *AppError
		wantMessage string
	}{
		{
			name:        "NotFound message includes resource and id",
			err:         NotFound("user", "abc123"),
			wantMessage: "user not found with id abc123",
		},
		{
			name:        "NormalizationFailed names provider and field",
			err:         NormalizationFailed("GITHUB", "id"),
			wantMessage: `GITHUB response is missing required attribute "id"`,
		},
		{
			name:        "StorageUnavailable keeps the cause text",
			err:         StorageUnavailable("inserting user", errors.New("database is locked")),
			wantMessage: "storage unavailable: inserting user: database is locked",
		},
		{
			name:        "AccountLinked names user and provider",
			err:         AccountLinked("GITHUB", "u1"),
			wantMessage: "user u1 is already linked to another GITHUB account",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.wantMessage {
				t.Errorf("Error() = %q, want %q", got, tt.wantMessage)
			}
		})
	}
}

func TestUnwrap(t *testing.T) {
	err := NotFound("user", "abc123")
	if unwrapped := err.Unwrap(); unwrapped != ErrNotFound {
		t.Errorf("Unwrap() = %v, want %v", unwrapped, ErrNotFound)
	}
}

func TestFieldIsRecorded(t *testing.T) {
	if err := ValidationFailed("bio", "bio is too long"); err.Field != "bio" {
		t.Errorf("Field = %q, want %q", err.Field, "bio")
	}
	if err := NormalizationFailed("GOOGLE", "email"); err.Field != "email" {
		t.Errorf("Field = %q, want %q", err.Field, "email")
	}
}
