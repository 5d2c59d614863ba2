// Package model defines the data structures used throughout the application.
package model

import "time"

// User represents one local account.
//
// A user is created the first time a login resolves to an email that is not
// yet known. Email is unique across all users and is never changed by a
// provider login once the account exists. Bio belongs to the user and is
// never written from provider data.
type User struct {
	ID          string    `json:"id"          db:"id"`
	Email       string    `json:"email"       db:"email"`
	DisplayName string    `json:"displayName" db:"display_name"`
	AvatarURL   string    `json:"avatarUrl"   db:"avatar_url"` // empty when unknown
	Bio         string    `json:"bio"         db:"bio"`
	CreatedAt   time.Time `json:"createdAt"   db:"created_at"`
	UpdatedAt   time.Time `json:"updatedAt"   db:"updated_at"`
}

// IdentityLink associates one provider account with one User.
//
// The pair (Provider, ProviderUserID) is unique, and a user holds at most one
// link per provider. Links are written once and never updated, deleted or
// moved to another user.
type IdentityLink struct {
	ID             string       `json:"id"             db:"id"`
	Provider       ProviderKind `json:"provider"       db:"provider"`
	ProviderUserID string       `json:"providerUserId" db:"provider_user_id"`
	ProviderEmail  string       `json:"providerEmail"  db:"provider_email"` // informational only
	UserID         string       `json:"userId"         db:"user_id"`
	CreatedAt      time.Time    `json:"createdAt"      db:"created_at"`
}
