package store

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// CreateSession stores a hashed session token for the user.
func (s *SQLStore) CreateSession(ctx context.Context, tokenHash, username string, expiresAt time.Time) error {
	a := s.dialect.args()
	query := "INSERT INTO sessions (token_hash, username, created_at, expires_at) VALUES (" +
		a.Arg(tokenHash) + ", " + a.Arg(username) + ", " +
		a.Arg(time.Now().UTC().Format(timeFormat)) + ", " + a.Arg(expiresAt.UTC().Format(timeFormat)) + ")"

	if _, err := s.db.ExecContext(ctx, query, a.Values()...); err != nil {
		return wrapErr("create session", err)
	}
	return nil
}

// SessionUser returns the user of a live session. Expired sessions are
// removed and reported as not found.
func (s *SQLStore) SessionUser(ctx context.Context, tokenHash string, now time.Time) (string, error) {
	op := "get session"
	a := s.dialect.args()
	var username, expiresAt string
	err := s.db.QueryRowContext(ctx,
		"SELECT username, expires_at FROM sessions WHERE token_hash = "+a.Arg(tokenHash),
		a.Values()...,
	).Scan(&username, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return "", notFound(op)
	}
	if err != nil {
		return "", wrapErr(op, err)
	}

	exp, err := time.Parse(timeFormat, expiresAt)
	if err != nil || !now.Before(exp) {
		if err := s.DeleteSession(ctx, tokenHash); err != nil {
			return "", err
		}
		return "", notFound(op)
	}
	return username, nil
}

// DeleteSession removes a session. Removing an unknown session is not an error.
func (s *SQLStore) DeleteSession(ctx context.Context, tokenHash string) error {
	a := s.dialect.args()
	_, err := s.db.ExecContext(ctx, "DELETE FROM sessions WHERE token_hash = "+a.Arg(tokenHash), a.Values()...)
	return wrapErr("delete session", err)
}

// DeleteUserSessions removes every session of the user.
func (s *SQLStore) DeleteUserSessions(ctx context.Context, username string) error {
	a := s.dialect.args()
	_, err := s.db.ExecContext(ctx, "DELETE FROM sessions WHERE username = "+a.Arg(username), a.Values()...)
	return wrapErr("delete user sessions", err)
}

// PurgeExpiredSessions deletes sessions that expired before now.
func (s *SQLStore) PurgeExpiredSessions(ctx context.Context, now time.Time) (int64, error) {
	op := "purge sessions"
	a := s.dialect.args()
	res, err := s.db.ExecContext(ctx, "DELETE FROM sessions WHERE expires_at <= "+a.Arg(now.UTC().Format(timeFormat)), a.Values()...)
	if err != nil {
		return 0, wrapErr(op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, wrapErr(op, err)
	}
	return n, nil
}
