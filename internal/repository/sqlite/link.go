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

const linkColumns = `id, provider, provider_user_id, provider_email, user_id, created_at`

// CreateLink inserts a write-once identity link.
//
// Both UNIQUE constraints map to apperror.ErrConflict; the caller re-reads
// to find out which row won.
func (q *queries) CreateLink(ctx context.Context, link *model.IdentityLink) error {
	link.ID = xid.New().String()
	link.CreatedAt = time.Now().UTC()

	_, err := q.q.ExecContext(ctx,
		`INSERT INTO identity_links (`+linkColumns+`) VALUES (?, ?, ?, ?, ?, ?)`,
		link.ID,
		string(link.Provider),
		link.ProviderUserID,
		link.ProviderEmail,
		link.UserID,
		link.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("sqlite: inserting identity link: %w",
				apperror.Conflict("identity link", string(link.Provider)+"/"+link.ProviderUserID))
		}
		return fmt.Errorf("sqlite: %w", apperror.StorageUnavailable("inserting identity link", err))
	}
	return nil
}

func (q *queries) FindLinkByProvider(ctx context.Context, provider model.ProviderKind, providerUserID string) (*model.IdentityLink, error) {
	row := q.q.QueryRowContext(ctx,
		`SELECT `+linkColumns+` FROM identity_links WHERE provider = ? AND provider_user_id = ?`,
		string(provider), providerUserID)

	link, err := scanLink(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("identity link", string(provider)+"/"+providerUserID)
		}
		return nil, fmt.Errorf("sqlite: %w", apperror.StorageUnavailable("finding identity link", err))
	}
	return link, nil
}

func (q *queries) FindLinkByUserAndProvider(ctx context.Context, userID string, provider model.ProviderKind) (*model.IdentityLink, error) {
	row := q.q.QueryRowContext(ctx,
		`SELECT `+linkColumns+` FROM identity_links WHERE user_id = ? AND provider = ?`,
		userID, string(provider))

	link, err := scanLink(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("identity link", userID+"/"+string(provider))
		}
		return nil, fmt.Errorf("sqlite: %w", apperror.StorageUnavailable("finding identity link by user", err))
	}
	return link, nil
}

// ListLinksByUser returns the user's links, oldest first.
func (q *queries) ListLinksByUser(ctx context.Context, userID string) ([]model.IdentityLink, error) {
	rows, err := q.q.QueryContext(ctx,
		`SELECT `+linkColumns+` FROM identity_links WHERE user_id = ? ORDER BY created_at, provider`,
		userID)
	if err != nil {
		return nil, fmt.Errorf("sqlite: %w", apperror.StorageUnavailable("listing identity links", err))
	}
	defer rows.Close()

	links := []model.IdentityLink{}
	for rows.Next() {
		var l model.IdentityLink
		var provider string
		if err := rows.Scan(&l.ID, &provider, &l.ProviderUserID, &l.ProviderEmail, &l.UserID, &l.CreatedAt); err != nil {
			return nil, fmt.Errorf("sqlite: %w", apperror.StorageUnavailable("scanning identity link", err))
		}
		l.Provider = model.ProviderKind(provider)
		links = append(links, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: %w", apperror.StorageUnavailable("iterating identity links", err))
	}
	return links, nil
}

func scanLink(row *sql.Row) (*model.IdentityLink, error) {
	var l model.IdentityLink
	var provider string
	if err := row.Scan(&l.ID, &provider, &l.ProviderUserID, &l.ProviderEmail, &l.UserID, &l.CreatedAt); err != nil {
		return nil, err
	}
	l.Provider = model.ProviderKind(provider)
	return &l, nil
}
