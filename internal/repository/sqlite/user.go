package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rs/xid"
	"github.com/sakif/identity-hub/internal/apperror"
	"github.com/sakif/identity-hub/internal/model"
)

const userColumns = `id, email, display_name, avatar_url, bio, created_at, updated_at`

// CreateUser inserts a new user. ID and timestamps are assigned here and
// written back into the caller's struct.
//
// A duplicate email returns apperror.ErrConflict: another login created the
// same account first.
func (q *queries) CreateUser(ctx context.Context, user *model.User) error {
	now := time.Now().UTC()
	user.ID = xid.New().String()
	user.CreatedAt = now
	user.UpdatedAt = now

	_, err := q.q.ExecContext(ctx,
		`INSERT INTO users (`+userColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		user.ID,
		user.Email,
		user.DisplayName,
		user.AvatarURL,
		user.Bio,
		user.CreatedAt,
		user.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("sqlite: inserting user: %w", apperror.Conflict("user", user.Email))
		}
		return fmt.Errorf("sqlite: %w", apperror.StorageUnavailable("inserting user", err))
	}
	return nil
}

// UpdateUser writes the mutable profile fields. Email is deliberately absent
// from the statement.
func (q *queries) UpdateUser(ctx context.Context, user *model.User) error {
	user.UpdatedAt = time.Now().UTC()

	res, err := q.q.ExecContext(ctx,
		`UPDATE users SET display_name = ?, avatar_url = ?, bio = ?, updated_at = ?
		 WHERE id = ?`,
		user.DisplayName,
		user.AvatarURL,
		user.Bio,
		user.UpdatedAt,
		user.ID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: %w", apperror.StorageUnavailable("updating user "+user.ID, err))
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: %w", apperror.StorageUnavailable("updating user "+user.ID, err))
	}
	if n == 0 {
		return apperror.NotFound("user", user.ID)
	}
	return nil
}

// GetUserByID retrieves a user by their internal ID.
// Returns apperror.ErrNotFound if no user exists with that ID.
func (q *queries) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	row := q.q.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = ?`, id)

	u, err := scanUser(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("user", id)
		}
		return nil, fmt.Errorf("sqlite: %w", apperror.StorageUnavailable("getting user "+id, err))
	}
	return u, nil
}

// FindUserByEmail looks a user up by exact email match.
func (q *queries) FindUserByEmail(ctx context.Context, email string) (*model.User, error) {
	row := q.q.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = ?`, email)

	u, err := scanUser(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("user", email)
		}
		return nil, fmt.Errorf("sqlite: %w", apperror.StorageUnavailable("finding user by email", err))
	}
	return u, nil
}

func scanUser(row *sql.Row) (*model.User, error) {
	var u model.User
	err := row.Scan(
		&u.ID,
		&u.Email,
		&u.DisplayName,
		&u.AvatarURL,
		&u.Bio,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &u, nil
}
