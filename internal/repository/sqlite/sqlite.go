// Package sqlite implements the repository interfaces using SQLite as the storage backend.
//
// WHY modernc.org/sqlite INSTEAD OF github.com/mattn/go-sqlite3?
// modernc.org/sqlite is a pure Go translation of SQLite: no C compiler is
// needed and it builds wherever Go builds.
//
// TRANSACTIONS AND CONCURRENT LOGINS:
// Every connection is opened with `_txlock=immediate`, so BEGIN takes the
// write lock up front. Two first-time logins for the same email therefore
// run their "look up, then insert" sequences one after the other instead of
// interleaving. busy_timeout makes the second writer wait instead of failing
// with SQLITE_BUSY. The UNIQUE constraints stay the last line of defence and
// surface as apperror.ErrConflict.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/sakif/identity-hub/internal/apperror"
	"github.com/sakif/identity-hub/internal/repository"

	// Registers the "sqlite" driver with database/sql.
	_ "modernc.org/sqlite"
)

// connPragmas are applied by the driver to every pooled connection. Running
// PRAGMA once after sql.Open would only configure whichever connection
// happened to serve it.
var connPragmas = []string{
	"_pragma=foreign_keys(1)",
	"_pragma=busy_timeout(5000)",
	"_pragma=journal_mode(WAL)",
	"_txlock=immediate",
}

// compile-time check that *DB implements repository.Store
var _ repository.Store = (*DB)(nil)

// querier is the subset of *sql.DB and *sql.Tx the queries need, so the same
// query code runs inside and outside a transaction.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// queries holds the user and identity-link statements.
type queries struct {
	q querier
}

// DB wraps a sql.DB connection pool and provides repository methods.
type DB struct {
	queries
	conn *sql.DB
}

// New opens the database at dbPath and runs migrations.
//
// dbPath examples:
//   - "data/identity.db"  → file-based database (persistent)
//   - ":memory:"          → in-memory database (tests; lost on close)
func New(dbPath string) (*DB, error) {
	conn, err := sql.Open("sqlite", dsn(dbPath))
	if err != nil {
		return nil, fmt.Errorf("sqlite: opening database: %w", err)
	}

	// Each connection to ":memory:" is its own empty database, so the pool
	// must never hold more than one.
	if isMemory(dbPath) {
		conn.SetMaxOpenConns(1)
	}

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: pinging database: %w", err)
	}

	db := &DB{queries: queries{q: conn}, conn: conn}

	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: running migrations: %w", err)
	}

	return db, nil
}

// Close closes the database connection pool.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Ping reports whether the database is reachable.
func (db *DB) Ping(ctx context.Context) error {
	return db.conn.PingContext(ctx)
}

// WithinTx runs fn inside a single transaction.
func (db *DB) WithinTx(ctx context.Context, fn func(tx repository.Tx) error) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: %w", apperror.StorageUnavailable("beginning transaction", err))
	}

	if err := fn(&queries{q: tx}); err != nil {
		_ = tx.Rollback()
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite: %w", apperror.StorageUnavailable("committing transaction", err))
	}
	return nil
}

// migrate creates the schema. CREATE ... IF NOT EXISTS keeps it idempotent.
func (db *DB) migrate() error {
	_, err := db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS users (
			id           TEXT PRIMARY KEY,
			email        TEXT NOT NULL UNIQUE,
			display_name TEXT NOT NULL DEFAULT '',
			avatar_url   TEXT NOT NULL DEFAULT '',
			bio          TEXT NOT NULL DEFAULT '',
			created_at   DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at   DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
	`)
	if err != nil {
		return fmt.Errorf("creating users table: %w", err)
	}

	// (provider, provider_user_id) identifies a provider account;
	// (user_id, provider) keeps one link per provider per user.
	_, err = db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS identity_links (
			id               TEXT PRIMARY KEY,
			provider         TEXT NOT NULL CHECK (provider IN ('GOOGLE', 'GITHUB')),
			provider_user_id TEXT NOT NULL,
			provider_email   TEXT NOT NULL DEFAULT '',
			user_id          TEXT NOT NULL REFERENCES users(id),
			created_at       DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			UNIQUE (provider, provider_user_id),
			UNIQUE (user_id, provider)
		);
		CREATE INDEX IF NOT EXISTS idx_identity_links_user_id ON identity_links(user_id);
	`)
	if err != nil {
		return fmt.Errorf("creating identity_links table: %w", err)
	}

	return nil
}

func isMemory(dbPath string) bool {
	return dbPath == ":memory:" || strings.HasPrefix(dbPath, ":memory:?") || strings.Contains(dbPath, "mode=memory")
}

// dsn appends the connection pragmas to a path, keeping any query string the
// caller already supplied.
func dsn(dbPath string) string {
	sep := "?"
	if strings.Contains(dbPath, "?") {
		sep = "&"
	}
	return dbPath + sep + strings.Join(connPragmas, "&")
}
