// Package postgres implements the repository interfaces on PostgreSQL via pgx.
//
// It is selected instead of SQLite when DATABASE_URL is set. Transactions run
// at READ COMMITTED: when two first-time logins race, the loser's INSERT
// blocks on the unique index until the winner commits and then fails with
// unique_violation (23505), which is reported as apperror.ErrConflict.
// Users read inside a transaction are locked until it ends, so a login
// refresh and a profile edit on the same user run one after the other.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sakif/identity-hub/internal/apperror"
	"github.com/sakif/identity-hub/internal/repository"
)

const uniqueViolation = "23505"

var _ repository.Store = (*DB)(nil)

// querier is satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// queries runs the statements against q. When q is a transaction, lock is
// set and user reads take a row lock (SELECT ... FOR UPDATE): at READ
// COMMITTED a plain read followed by a full-row UPDATE would let a login
// refresh overwrite a bio committed in between.
type queries struct {
	q    querier
	lock bool
}

// DB is a pgx-backed repository.Store.
type DB struct {
	queries
	pool *pgxpool.Pool
}

// New connects to databaseURL and creates the schema if needed.
func New(ctx context.Context, databaseURL string) (*DB, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("postgres: creating pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: pinging database: %w", err)
	}

	db := NewWithPool(pool)
	if err := db.migrate(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: running migrations: %w", err)
	}
	return db, nil
}

// NewWithPool wraps an existing pool without running migrations.
func NewWithPool(pool *pgxpool.Pool) *DB {
	return &DB{queries: queries{q: pool}, pool: pool}
}

// Close releases every pooled connection.
func (db *DB) Close() error {
	db.pool.Close()
	return nil
}

func (db *DB) Ping(ctx context.Context) error {
	return db.pool.Ping(ctx)
}

// WithinTx runs fn inside a single transaction.
func (db *DB) WithinTx(ctx context.Context, fn func(tx repository.Tx) error) error {
	tx, err := db.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return fmt.Errorf("postgres: %w", apperror.StorageUnavailable("beginning transaction", err))
	}

	if err := fn(&queries{q: tx, lock: true}); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("postgres: %w", apperror.StorageUnavailable("committing transaction", err))
	}
	return nil
}

func (db *DB) migrate(ctx context.Context) error {
	_, err := db.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS users (
			id           TEXT PRIMARY KEY,
			email        TEXT NOT NULL UNIQUE,
			display_name TEXT NOT NULL DEFAULT '',
			avatar_url   TEXT NOT NULL DEFAULT '',
			bio          TEXT NOT NULL DEFAULT '',
			created_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at   TIMESTAMPTZ NOT NULL DEFAULT now()
		);

		CREATE TABLE IF NOT EXISTS identity_links (
			id               TEXT PRIMARY KEY,
			provider         TEXT NOT NULL CHECK (provider IN ('GOOGLE', 'GITHUB')),
			provider_user_id TEXT NOT NULL,
			provider_email   TEXT NOT NULL DEFAULT '',
			user_id          TEXT NOT NULL REFERENCES users(id),
			created_at       TIMESTAMPTZ NOT NULL DEFAULT now(),
			UNIQUE (provider, provider_user_id),
			UNIQUE (user_id, provider)
		);

		CREATE INDEX IF NOT EXISTS idx_identity_links_user_id ON identity_links(user_id);
	`)
	if err != nil {
		return fmt.Errorf("creating schema: %w", err)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}
