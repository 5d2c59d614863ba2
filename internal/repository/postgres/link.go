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

const linkColumns = `id, provider, provider_user_id, provider_email, user_id, created_at`

func (q *queries) CreateLink(ctx context.Context, link *model.IdentityLink) error {
	link.ID = xid.New().String()
	link.CreatedAt = time.Now().UTC()

	_, err := q.q.Exec(ctx,
		`INSERT INTO identity_links (`+linkColumns+`) VALUES ($1, $2, $3, $4, $5, $6)`,
		link.ID, string(link.Provider), link.ProviderUserID, link.ProviderEmail, link.UserID, link.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("postgres: inserting identity link: %w",
				apperror.Conflict("identity link", string(link.Provider)+"/"+link.ProviderUserID))
		}
		return fmt.Errorf("postgres: %w", apperror.StorageUnavailable("inserting identity link", err))
	}
	return nil
}

func (q *queries) FindLinkByProvider(ctx context.Context, provider model.ProviderKind, providerUserID string) (*model.IdentityLink, error) {
	link, err := scanLink(q.q.QueryRow(ctx,
		`SELECT `+linkColumns+` FROM identity_links WHERE provider = $1 AND provider_user_id = $2`,
		string(provider), providerUserID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperror.NotFound("identity link", string(provider)+"/"+providerUserID)
		}
		return nil, fmt.Errorf("postgres: %w", apperror.StorageUnavailable("finding identity link", err))
	}
	return link, nil
}

func (q *queries) FindLinkByUserAndProvider(ctx context.Context, userID string, provider model.ProviderKind) (*model.IdentityLink, error) {
	link, err := scanLink(q.q.QueryRow(ctx,
		`SELECT `+linkColumns+` FROM identity_links WHERE user_id = $1 AND provider = $2`,
		userID, string(provider)))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperror.NotFound("identity link", userID+"/"+string(provider))
		}
		return nil, fmt.Errorf("postgres: %w", apperror.StorageUnavailable("finding identity link by user", err))
	}
	return link, nil
}

func (q *queries) ListLinksByUser(ctx context.Context, userID string) ([]model.IdentityLink, error) {
	rows, err := q.q.Query(ctx,
		`SELECT `+linkColumns+` FROM identity_links WHERE user_id = $1 ORDER BY created_at, provider`,
		userID)
	if err != nil {
		return nil, fmt.Errorf("postgres: %w", apperror.StorageUnavailable("listing identity links", err))
	}
	defer rows.Close()

	links := []model.IdentityLink{}
	for rows.Next() {
		link, err := scanLink(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: %w", apperror.StorageUnavailable("scanning identity link", err))
		}
		links = append(links, *link)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: %w", apperror.StorageUnavailable("iterating identity links", err))
	}
	return links, nil
}

func scanLink(row pgx.Row) (*model.IdentityLink, error) {
	var l model.IdentityLink
	var provider string
	if err := row.Scan(&l.ID, &provider, &l.ProviderUserID, &l.ProviderEmail, &l.UserID, &l.CreatedAt); err != nil {
		return nil, err
	}
	l.Provider = model.ProviderKind(provider)
	return &l, nil
}
