package sqlite

import (
	"context"
	"errors"
	"testing"

	"github.com/sakif/identity-hub/internal/apperror"
	"github.com/sakif/identity-hub/internal/model"
)

// createTestUser is a test helper that creates a user and fails the test if it errors.
func createTestUser(t *testing.T, db *DB, email string) *model.User {
	t.Helper()
	user := &model.User{
		Email:       email,
		DisplayName: "Test " + email,
		AvatarURL:   "https://avatars.example.com/u/123",
	}
	if err := db.CreateUser(context.Background(), user); err != nil {
		t.Fatalf("failed to create test user: %v", err)
	}
	return user
}

// =========================================================================
// CREATE TESTS
// =========================================================================

func TestUserCreate(t *testing.T) {
	db := newTestDB(t)

	user := &model.User{
		Email:       "test@example.com",
		DisplayName: "Test User",
		AvatarURL:   "https://example.com/avatar.png",
	}

	if err := db.CreateUser(context.Background(), user); err != nil {
		t.Fatalf("CreateUser() error = %v", err)
	}

	if user.ID == "" {
		t.Error("CreateUser() did not set user.ID")
	}
	if user.CreatedAt.IsZero() {
		t.Error("CreateUser() did not set user.CreatedAt")
	}
	if !user.UpdatedAt.Equal(user.CreatedAt) {
		t.Errorf("UpdatedAt = %v, want it equal to CreatedAt %v on insert", user.UpdatedAt, user.CreatedAt)
	}
}

func TestUserCreate_DuplicateEmail(t *testing.T) {
	db := newTestDB(t)
	createTestUser(t, db, "same@example.com")

	duplicate := &model.User{Email: "same@example.com", DisplayName: "Second"}
	err := db.CreateUser(context.Background(), duplicate)
	if err == nil {
		t.Fatal("CreateUser() should have returned an error for duplicate email")
	}
	if !errors.Is(err, apperror.ErrConflict) {
		t.Errorf("CreateUser() error = %v, want ErrConflict", err)
	}
}

// =========================================================================
// READ TESTS
// =========================================================================

func TestUserGetByID(t *testing.T) {
	db := newTestDB(t)
	created := createTestUser(t, db, "getbyid@example.com")

	found, err := db.GetUserByID(context.Background(), created.ID)
	if err != nil {
		t.Fatalf("GetUserByID() error = %v", err)
	}

	if found.ID != created.ID {
		t.Errorf("ID = %q, want %q", found.ID, created.ID)
	}
	if found.Email != "getbyid@example.com" {
		t.Errorf("Email = %q, want %q", found.Email, "getbyid@example.com")
	}
	if found.AvatarURL != created.AvatarURL {
		t.Errorf("AvatarURL = %q, want %q", found.AvatarURL, created.AvatarURL)
	}
	if found.Bio != "" {
		t.Errorf("Bio = %q, want empty", found.Bio)
	}
}

func TestUserGetByID_NotFound(t *testing.T) {
	db := newTestDB(t)

	_, err := db.GetUserByID(context.Background(), "nonexistent-id")
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("GetUserByID() error = %v, want ErrNotFound", err)
	}
}

func TestFindUserByEmail_IsExactMatch(t *testing.T) {
	db := newTestDB(t)
	created := createTestUser(t, db, "exact@example.com")

	found, err := db.FindUserByEmail(context.Background(), "exact@example.com")
	if err != nil {
		t.Fatalf("FindUserByEmail() error = %v", err)
	}
	if found.ID != created.ID {
		t.Errorf("ID = %q, want %q", found.ID, created.ID)
	}

	_, err = db.FindUserByEmail(context.Background(), "other@example.com")
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("FindUserByEmail(unknown) error = %v, want ErrNotFound", err)
	}
}

// =========================================================================
// UPDATE TESTS
// =========================================================================

func TestUserUpdate_ChangesProfileButNotEmail(t *testing.T) {
	db := newTestDB(t)
	user := createTestUser(t, db, "update@example.com")
	originalUpdatedAt := user.UpdatedAt

	user.DisplayName = "Renamed"
	user.AvatarURL = "https://example.com/new.png"
	user.Bio = "hello"
	user.Email = "hijack@example.com"

	if err := db.UpdateUser(context.Background(), user); err != nil {
		t.Fatalf("UpdateUser() error = %v", err)
	}

	found, err := db.GetUserByID(context.Background(), user.ID)
	if err != nil {
		t.Fatalf("GetUserByID() error = %v", err)
	}
	if found.DisplayName != "Renamed" || found.AvatarURL != "https://example.com/new.png" || found.Bio != "hello" {
		t.Errorf("profile not updated: %+v", found)
	}
	if found.Email != "update@example.com" {
		t.Errorf("Email = %q, UpdateUser must never rewrite email", found.Email)
	}
	if found.UpdatedAt.Before(originalUpdatedAt) {
		t.Errorf("UpdatedAt went backwards: %v < %v", found.UpdatedAt, originalUpdatedAt)
	}
}

func TestUserUpdate_NotFound(t *testing.T) {
	db := newTestDB(t)

	err := db.UpdateUser(context.Background(), &model.User{ID: "missing", DisplayName: "x"})
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("UpdateUser() error = %v, want ErrNotFound", err)
	}
}
