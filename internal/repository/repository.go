// Package repository declares the storage contracts used by the service layer.
//
// Implementations live in sub-packages (sqlite, postgres). They translate
// driver errors into the apperror taxonomy:
//   - missing rows             → apperror.ErrNotFound
//   - uniqueness violations    → apperror.ErrConflict
//   - everything else          → apperror.ErrStorageUnavailable
package repository

import (
	"context"

	"github.com/sakif/identity-hub/internal/model"
)

// UserRepository reads and writes local accounts.
type UserRepository interface {
	// CreateUser assigns ID and timestamps and inserts the row.
	CreateUser(ctx context.Context, user *model.User) error
	// UpdateUser writes display name, avatar and bio and bumps UpdatedAt.
	// The email column is never rewritten.
	UpdateUser(ctx context.Context, user *model.User) error
	GetUserByID(ctx context.Context, id string) (*model.User, error)
	FindUserByEmail(ctx context.Context, email string) (*model.User, error)
}

// IdentityLinkRepository reads and writes provider links. There is no update
// or delete: links are write-once.
type IdentityLinkRepository interface {
	CreateLink(ctx context.Context, link *model.IdentityLink) error
	FindLinkByProvider(ctx context.Context, provider model.ProviderKind, providerUserID string) (*model.IdentityLink, error)
	FindLinkByUserAndProvider(ctx context.Context, userID string, provider model.ProviderKind) (*model.IdentityLink, error)
	ListLinksByUser(ctx context.Context, userID string) ([]model.IdentityLink, error)
}

// Tx is the set of operations available inside a transaction.
type Tx interface {
	UserRepository
	IdentityLinkRepository
}

// Store is a Tx that can also open transactions.
//
// WithinTx commits when fn returns nil and rolls back otherwise; fn's error is
// returned unchanged so errors.Is keeps working for the caller.
type Store interface {
	Tx
	WithinTx(ctx context.Context, fn func(tx Tx) error) error
}
