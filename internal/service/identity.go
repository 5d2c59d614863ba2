package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/sakif/identity-hub/internal/apperror"
	"github.com/sakif/identity-hub/internal/model"
	"github.com/sakif/identity-hub/internal/repository"
)

// Outcome reports what Resolve did with a login.
type Outcome string

const (
	// OutcomeCreated: a new user and its first link were inserted.
	OutcomeCreated Outcome = "CREATED"
	// OutcomeLinkedExisting: an existing user was reused, either through its
	// link or by attaching a new link via email.
	OutcomeLinkedExisting Outcome = "LINKED_EXISTING"
	// OutcomeUpdatedExisting: the link existed and the profile was refreshed.
	OutcomeUpdatedExisting Outcome = "UPDATED_EXISTING"
)

// maxResolveAttempts bounds re-resolution after a lost insert race.
const maxResolveAttempts = 3

const syntheticEmailDomain = "example.local"

// IdentityService is the identity reconciliation engine.
//
// For every successful provider login it decides between three paths:
//
//  1. The (provider, providerUserID) link exists → reuse its user and refresh
//     display name and avatar from non-blank provider values.
//  2. A user with the same email exists → attach a new link to it.
//  3. Otherwise → create the user and its link.
//
// A login without any email is given a synthetic, deterministic address so
// the same provider account always lands on the same user.
//
// The email column is never rewritten here. A user who changes their email at
// the provider keeps the address they signed up with.
type IdentityService struct {
	store  repository.Store
	logger *slog.Logger
}

func NewIdentityService(store repository.Store, logger *slog.Logger) *IdentityService {
	return &IdentityService{store: store, logger: logger}
}

// Resolve maps a normalized identity to exactly one local user.
//
// Every attempt runs in a single store transaction. When a concurrent login
// wins an insert race the store reports apperror.ErrConflict; the attempt is
// rolled back and resolution restarts from the link lookup, where the
// winner's rows are now visible. Other errors are returned as-is.
func (s *IdentityService) Resolve(ctx context.Context, id model.CanonicalIdentity) (*model.User, Outcome, error) {
	// The normalizer already guarantees both; an identity built elsewhere
	// fails the same way a bad provider payload would.
	if !id.Provider.Valid() {
		return nil, "", apperror.NormalizationFailed(string(id.Provider), "provider")
	}
	if id.ProviderUserID == "" {
		return nil, "", apperror.NormalizationFailed(string(id.Provider), "providerUserId")
	}

	var lastErr error
	for attempt := 1; attempt <= maxResolveAttempts; attempt++ {
		var (
			user    *model.User
			outcome Outcome
		)
		err := s.store.WithinTx(ctx, func(tx repository.Tx) error {
			var err error
			user, outcome, err = resolveOnce(ctx, tx, id)
			return err
		})
		if err == nil {
			s.logger.Info("identity resolved",
				slog.String("outcome", string(outcome)),
				slog.String("userID", user.ID),
				slog.String("provider", string(id.Provider)),
			)
			return user, outcome, nil
		}

		if !errors.Is(err, apperror.ErrConflict) {
			return nil, "", fmt.Errorf("service/identity: resolving %s/%s: %w", id.Provider, id.ProviderUserID, err)
		}
		lastErr = err

		s.logger.Debug("identity resolution lost a race, retrying",
			slog.String("provider", string(id.Provider)),
			slog.Int("attempt", attempt),
		)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, "", fmt.Errorf("service/identity: %w", apperror.StorageUnavailable("resolving identity", ctxErr))
		}
	}

	return nil, "", fmt.Errorf("service/identity: %w",
		apperror.StorageUnavailable(fmt.Sprintf("resolving identity after %d attempts", maxResolveAttempts), lastErr))
}

func resolveOnce(ctx context.Context, tx repository.Tx, id model.CanonicalIdentity) (*model.User, Outcome, error) {
	// Step 1: known provider account.
	link, err := tx.FindLinkByProvider(ctx, id.Provider, id.ProviderUserID)
	switch {
	case err == nil:
		user, err := tx.GetUserByID(ctx, link.UserID)
		if err != nil {
			return nil, "", err
		}
		if !refreshProfile(user, id) {
			return user, OutcomeLinkedExisting, nil
		}
		if err := tx.UpdateUser(ctx, user); err != nil {
			return nil, "", err
		}
		return user, OutcomeUpdatedExisting, nil
	case !errors.Is(err, apperror.ErrNotFound):
		return nil, "", err
	}

	email, providerEmail := id.Email, id.Email
	if email == "" {
		email, providerEmail = syntheticEmail(id.Provider, id.ProviderUserID), ""
	}

	newLink := &model.IdentityLink{
		Provider:       id.Provider,
		ProviderUserID: id.ProviderUserID,
		ProviderEmail:  providerEmail,
	}

	// Step 2: same email, different provider account.
	user, err := tx.FindUserByEmail(ctx, email)
	switch {
	case err == nil:
		if _, err := tx.FindLinkByUserAndProvider(ctx, user.ID, id.Provider); err == nil {
			return nil, "", apperror.AccountLinked(string(id.Provider), user.ID)
		} else if !errors.Is(err, apperror.ErrNotFound) {
			return nil, "", err
		}

		newLink.UserID = user.ID
		if err := tx.CreateLink(ctx, newLink); err != nil {
			return nil, "", err
		}
		if refreshProfile(user, id) {
			if err := tx.UpdateUser(ctx, user); err != nil {
				return nil, "", err
			}
		}
		return user, OutcomeLinkedExisting, nil
	case !errors.Is(err, apperror.ErrNotFound):
		return nil, "", err
	}

	// Step 3: first login anywhere.
	user = &model.User{
		Email:       email,
		DisplayName: id.DisplayName,
		AvatarURL:   id.AvatarURL,
	}
	if err := tx.CreateUser(ctx, user); err != nil {
		return nil, "", err
	}
	newLink.UserID = user.ID
	if err := tx.CreateLink(ctx, newLink); err != nil {
		return nil, "", err
	}
	return user, OutcomeCreated, nil
}

// refreshProfile copies non-blank display name and avatar onto user and
// reports whether anything changed. Email and bio are never touched.
func refreshProfile(user *model.User, id model.CanonicalIdentity) bool {
	changed := false
	if id.DisplayName != "" && id.DisplayName != user.DisplayName {
		user.DisplayName = id.DisplayName
		changed = true
	}
	if id.AvatarURL != "" && id.AvatarURL != user.AvatarURL {
		user.AvatarURL = id.AvatarURL
		changed = true
	}
	return changed
}

// syntheticEmail builds the placeholder address for logins without email,
// e.g. "github-583231@example.local".
func syntheticEmail(provider model.ProviderKind, providerUserID string) string {
	return fmt.Sprintf("%s-%s@%s", provider.Slug(), providerUserID, syntheticEmailDomain)
}
