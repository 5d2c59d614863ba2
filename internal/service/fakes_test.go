package service

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/sakif/identity-hub/internal/apperror"
	"github.com/sakif/identity-hub/internal/model"
	"github.com/sakif/identity-hub/internal/repository"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeStore is an in-memory repository.Store with the same uniqueness rules
// as the SQL schema. WithinTx restores a snapshot when fn fails, so a failed
// attempt leaves no rows behind.
//
// Not safe for concurrent use; the real concurrency test runs on SQLite.
type fakeStore struct {
	users  map[string]model.User
	links  []model.IdentityLink
	nextID int

	snapshot *fakeSnapshot

	// Hooks and injected failures.
	beforeCreateUser func()
	findLinkErr      error
	createUserErr    error
	updateUserErr    error

	txCount     int
	updateCount int
}

type fakeSnapshot struct {
	users  map[string]model.User
	links  []model.IdentityLink
	nextID int
}

var _ repository.Store = (*fakeStore)(nil)

func newFakeStore() *fakeStore {
	return &fakeStore{users: make(map[string]model.User)}
}

func (f *fakeStore) WithinTx(_ context.Context, fn func(tx repository.Tx) error) error {
	f.txCount++
	f.snapshot = &fakeSnapshot{users: cloneUsers(f.users), links: append([]model.IdentityLink(nil), f.links...), nextID: f.nextID}
	defer func() { f.snapshot = nil }()

	if err := fn(f); err != nil {
		f.users, f.links, f.nextID = f.snapshot.users, f.snapshot.links, f.snapshot.nextID
		return err
	}
	return nil
}

// commitConcurrently inserts rows as if another transaction had committed
// them while the current one is in flight: they survive a rollback.
func (f *fakeStore) commitConcurrently(user model.User, link model.IdentityLink) {
	f.users[user.ID] = user
	f.links = append(f.links, link)
	if f.snapshot != nil {
		f.snapshot.users[user.ID] = user
		f.snapshot.links = append(f.snapshot.links, link)
	}
}

func (f *fakeStore) newID(prefix string) string {
	f.nextID++
	return fmt.Sprintf("%s-%d", prefix, f.nextID)
}

func (f *fakeStore) CreateUser(_ context.Context, user *model.User) error {
	if f.beforeCreateUser != nil {
		hook := f.beforeCreateUser
		f.beforeCreateUser = nil
		hook()
	}
	if f.createUserErr != nil {
		return f.createUserErr
	}
	for _, u := range f.users {
		if u.Email == user.Email {
			return apperror.Conflict("user", user.Email)
		}
	}
	user.ID = f.newID("user")
	user.CreatedAt = time.Now().UTC()
	user.UpdatedAt = user.CreatedAt
	f.users[user.ID] = *user
	return nil
}

func (f *fakeStore) UpdateUser(_ context.Context, user *model.User) error {
	if f.updateUserErr != nil {
		return f.updateUserErr
	}
	stored, ok := f.users[user.ID]
	if !ok {
		return apperror.NotFound("user", user.ID)
	}
	f.updateCount++
	stored.DisplayName = user.DisplayName
	stored.AvatarURL = user.AvatarURL
	stored.Bio = user.Bio
	stored.UpdatedAt = time.Now().UTC()
	user.UpdatedAt = stored.UpdatedAt
	f.users[user.ID] = stored
	return nil
}

func (f *fakeStore) GetUserByID(_ context.Context, id string) (*model.User, error) {
	u, ok := f.users[id]
	if !ok {
		return nil, apperror.NotFound("user", id)
	}
	return &u, nil
}

func (f *fakeStore) FindUserByEmail(_ context.Context, email string) (*model.User, error) {
	for _, u := range f.users {
		if u.Email == email {
			return &u, nil
		}
	}
	return nil, apperror.NotFound("user", email)
}

func (f *fakeStore) CreateLink(_ context.Context, link *model.IdentityLink) error {
	if _, ok := f.users[link.UserID]; !ok {
		return apperror.StorageUnavailable("inserting identity link", fmt.Errorf("foreign key: user %s", link.UserID))
	}
	for _, l := range f.links {
		if (l.Provider == link.Provider && l.ProviderUserID == link.ProviderUserID) ||
			(l.UserID == link.UserID && l.Provider == link.Provider) {
			return apperror.Conflict("identity link", string(link.Provider)+"/"+link.ProviderUserID)
		}
	}
	link.ID = f.newID("link")
	link.CreatedAt = time.Now().UTC()
	f.links = append(f.links, *link)
	return nil
}

func (f *fakeStore) FindLinkByProvider(_ context.Context, provider model.ProviderKind, providerUserID string) (*model.IdentityLink, error) {
	if f.findLinkErr != nil {
		return nil, f.findLinkErr
	}
	for _, l := range f.links {
		if l.Provider == provider && l.ProviderUserID == providerUserID {
			return &l, nil
		}
	}
	return nil, apperror.NotFound("identity link", string(provider)+"/"+providerUserID)
}

func (f *fakeStore) FindLinkByUserAndProvider(_ context.Context, userID string, provider model.ProviderKind) (*model.IdentityLink, error) {
	for _, l := range f.links {
		if l.UserID == userID && l.Provider == provider {
			return &l, nil
		}
	}
	return nil, apperror.NotFound("identity link", userID+"/"+string(provider))
}

func (f *fakeStore) ListLinksByUser(_ context.Context, userID string) ([]model.IdentityLink, error) {
	links := []model.IdentityLink{}
	for _, l := range f.links {
		if l.UserID == userID {
			links = append(links, l)
		}
	}
	return links, nil
}

func cloneUsers(in map[string]model.User) map[string]model.User {
	out := make(map[string]model.User, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
