// Package tokenstore persists refresh tokens in a sqlite database, so a
// client can log back on without a password after a restart.
package tokenstore

import (
	"context"
	"database/sql"
	"time"

	"github.com/pkg/errors"
	_ "modernc.org/sqlite"
)

// DB stores one refresh token per account name.
type DB struct {
	db *sql.DB
}

// Open opens the database at path, creating it and running migrations when
// needed. Pass ":memory:" for a throwaway database.
func Open(path string) (*DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	if err := migrate(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &DB{db: db}, nil
}

func migrate(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS refresh_tokens (
			account_name TEXT PRIMARY KEY,
			token TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);
	`)
	return errors.WithStack(err)
}

// Close closes the database.
func (d *DB) Close() error {
	return errors.WithStack(d.db.Close())
}

// Load returns the refresh token stored for the account, or an empty token
// when none is stored.
func (d *DB) Load(ctx context.Context, accountName string) (string, error) {
	var token string
	err := d.db.QueryRowContext(ctx,
		"SELECT token FROM refresh_tokens WHERE account_name = ?", accountName).Scan(&token)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", errors.WithStack(err)
	}
	return token, nil
}

// Store saves the refresh token for the account, replacing any previous one.
func (d *DB) Store(ctx context.Context, accountName, refreshToken string) error {
	now := time.Now().UTC().Format(time.RFC3339)
	_, err := d.db.ExecContext(ctx, `
		INSERT INTO refresh_tokens (account_name, token, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(account_name) DO UPDATE SET token = excluded.token, updated_at = excluded.updated_at
	`, accountName, refreshToken, now)
	return errors.WithStack(err)
}

// Delete removes the refresh token stored for the account, if any.
func (d *DB) Delete(ctx context.Context, accountName string) error {
	_, err := d.db.ExecContext(ctx,
		"DELETE FROM refresh_tokens WHERE account_name = ?", accountName)
	return errors.WithStack(err)
}
