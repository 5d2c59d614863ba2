package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/rs/xid"

	"github.com/sakif/identity-hub/internal/apperror"
	"github.com/sakif/identity-hub/internal/model"
)

const userColumns = `id, email, display_name, avatar_url, bio, created_at, updated_at`

func (q *queries) CreateUser(ctx context.Context, user *model.User) error {
	now := time.Now().UTC()
	user.ID = xid.New().String()
	user.CreatedAt = now
	user.UpdatedAt = now

	_, err := q.q.Exec(ctx,
		`INSERT INTO users (`+userColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		user.ID, user.Email, user.DisplayName, user.AvatarURL, user.Bio, user.CreatedAt, user.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("postgres: inserting user: %w", apperror.Conflict("user", user.Email))
		}
		return fmt.Errorf("postgres: %w", apperror.StorageUnavailable("inserting user", err))
	}
	return nil
}

func (q *queries) UpdateUser(ctx context.Context, user *model.User) error {
	user.UpdatedAt = time.Now().UTC()

	tag, err := q.q.Exec(ctx,
		`UPDATE users SET display_name = $1, avatar_url = $2, bio = $3, updated_at = $4 WHERE id = $5`,
		user.DisplayName, user.AvatarURL, user.Bio, user.UpdatedAt, user.ID,
	)
	if err != nil {
		return fmt.Errorf("postgres: %w", apperror.StorageUnavailable("updating user "+user.ID, err))
	}
	if tag.RowsAffected() == 0 {
		return apperror.NotFound("user", user.ID)
	}
	return nil
}

func (q *queries) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	u, err := scanUser(q.q.QueryRow(ctx, q.selectUser("id = $1"), id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperror.NotFound("user", id)
		}
		return nil, fmt.Errorf("postgres: %w", apperror.StorageUnavailable("getting user "+id, err))
	}
	return u, nil
}

func (q *queries) FindUserByEmail(ctx context.Context, email string) (*model.User, error) {
	u, err := scanUser(q.q.QueryRow(ctx, q.selectUser("email = $1"), email))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperror.NotFound("user", email)
		}
		return nil, fmt.Errorf("postgres: %w", apperror.StorageUnavailable("finding user by email", err))
	}
	return u, nil
}

// selectUser builds a single-user SELECT, locking the row inside a
// transaction.
func (q *queries) selectUser(where string) string {
	query := `SELECT ` + userColumns + ` FROM users WHERE ` + where
	if q.lock {
		query += ` FOR UPDATE`
	}
	return query
}

func scanUser(row pgx.Row) (*model.User, error) {
	var u model.User
	if err := row.Scan(&u.ID, &u.Email, &u.DisplayName, &u.AvatarURL, &u.Bio, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return nil, err
	}
	return &u, nil
}
