// Package service contains the business logic layer.
//
//	Handler (HTTP layer)     → parses requests, writes responses
//	Service (business layer) → normalizes, reconciles, validates
//	Repository (data layer)  → reads/writes the database
//
// Services depend on repository interfaces, never on a concrete driver, so
// tests run against in-memory fakes and production picks SQLite or Postgres
// in server.go.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/sakif/identity-hub/internal/apperror"
	"github.com/sakif/identity-hub/internal/auth"
	"github.com/sakif/identity-hub/internal/model"
	"github.com/sakif/identity-hub/internal/repository"
)

const (
	MaxDisplayNameLength = 100
	MaxBioLength         = 1000
)

// Normalizer turns provider attributes into a CanonicalIdentity.
// Implemented by provider.Normalizer.
type Normalizer interface {
	Normalize(ctx context.Context, kind model.ProviderKind, attrs map[string]any, accessToken string) (model.CanonicalIdentity, error)
}

// AuthService orchestrates a login and serves the signed-in user's profile.
//
//	AuthHandler (HTTP) → AuthService → Normalizer → IdentityService → Store
//	                                 ↘ TokenService (JWT)
type AuthService struct {
	normalizer Normalizer
	identities *IdentityService
	store      repository.Store
	tokens     *auth.TokenService
	logger     *slog.Logger
}

func NewAuthService(
	normalizer Normalizer,
	identities *IdentityService,
	store repository.Store,
	tokens *auth.TokenService,
	logger *slog.Logger,
) *AuthService {
	return &AuthService{
		normalizer: normalizer,
		identities: identities,
		store:      store,
		tokens:     tokens,
		logger:     logger,
	}
}

// AuthResult bundles the resolved user and the issued session token so the
// handler can set the cookie and redirect in one step.
type AuthResult struct {
	User    *model.User
	Outcome Outcome
	Token   string
}

// Login completes a provider login: normalize, resolve, issue a session.
//
// It does not set cookies or read requests; that is the handler's job.
func (s *AuthService) Login(ctx context.Context, kind model.ProviderKind, attrs map[string]any, accessToken string) (*AuthResult, error) {
	identity, err := s.normalizer.Normalize(ctx, kind, attrs, accessToken)
	if err != nil {
		s.logger.Warn("login rejected: provider attributes unusable",
			slog.String("provider", string(kind)),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("service/auth: normalizing %s attributes: %w", kind, err)
	}

	user, outcome, err := s.identities.Resolve(ctx, identity)
	if err != nil {
		return nil, fmt.Errorf("service/auth: %w", err)
	}

	token, err := s.tokens.Generate(user.ID, kind)
	if err != nil {
		return nil, fmt.Errorf("service/auth: generating token for user %s: %w", user.ID, err)
	}

	return &AuthResult{User: user, Outcome: outcome, Token: token}, nil
}

// GetUserByID backs /api/me once the middleware has validated the session.
func (s *AuthService) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	if id == "" {
		return nil, apperror.ValidationFailed("id", "user id must not be empty")
	}

	user, err := s.store.GetUserByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("service/auth: fetching user %s: %w", id, err)
	}
	return user, nil
}

// LinkedProviders lists the providers the user can sign in with, oldest
// link first.
func (s *AuthService) LinkedProviders(ctx context.Context, userID string) ([]model.ProviderKind, error) {
	links, err := s.store.ListLinksByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("service/auth: listing links of user %s: %w", userID, err)
	}

	kinds := make([]model.ProviderKind, 0, len(links))
	for _, l := range links {
		kinds = append(kinds, l.Provider)
	}
	return kinds, nil
}

// ProfileUpdate holds the user-editable fields. nil means "leave unchanged".
type ProfileUpdate struct {
	DisplayName *string `json:"displayName"`
	Bio         *string `json:"bio"`
}

// UpdateProfile changes only the supplied fields. Email and avatar are owned
// by the providers and cannot be edited here.
func (s *AuthService) UpdateProfile(ctx context.Context, userID string, in ProfileUpdate) (*model.User, error) {
	displayName, bio, err := validateProfileUpdate(in)
	if err != nil {
		return nil, err
	}

	var updated *model.User
	err = s.store.WithinTx(ctx, func(tx repository.Tx) error {
		user, err := tx.GetUserByID(ctx, userID)
		if err != nil {
			return err
		}
		if displayName != nil {
			user.DisplayName = *displayName
		}
		if bio != nil {
			user.Bio = *bio
		}
		if err := tx.UpdateUser(ctx, user); err != nil {
			return err
		}
		updated = user
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("service/auth: updating profile of user %s: %w", userID, err)
	}

	s.logger.Info("profile updated", slog.String("userID", userID))
	return updated, nil
}

func validateProfileUpdate(in ProfileUpdate) (displayName, bio *string, err error) {
	if in.DisplayName == nil && in.Bio == nil {
		return nil, nil, apperror.ValidationFailed("", "nothing to update")
	}

	if in.DisplayName != nil {
		name := strings.TrimSpace(*in.DisplayName)
		if name == "" {
			return nil, nil, apperror.ValidationFailed("displayName", "display name must not be blank")
		}
		if utf8.RuneCountInString(name) > MaxDisplayNameLength {
			return nil, nil, apperror.ValidationFailed("displayName",
				fmt.Sprintf("display name must be at most %d characters", MaxDisplayNameLength))
		}
		displayName = &name
	}

	if in.Bio != nil {
		b := strings.TrimSpace(*in.Bio)
		if utf8.RuneCountInString(b) > MaxBioLength {
			return nil, nil, apperror.ValidationFailed("bio",
				fmt.Sprintf("bio must be at most %d characters", MaxBioLength))
		}
		bio = &b
	}
	return displayName, bio, nil
}

// ValidateToken lets callers check a session without importing auth.
func (s *AuthService) ValidateToken(tokenStr string) (*auth.Session, error) {
	session, err := s.tokens.Validate(tokenStr)
	if err != nil {
		return nil, fmt.Errorf("service/auth: %w", errors.Join(apperror.ErrUnauthorized, err))
	}
	return session, nil
}
