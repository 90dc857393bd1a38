package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/hyperengineering/farmcost/internal/types"
)

// CreateUser stores a new account. An existing username is a conflict.
func (s *SQLStore) CreateUser(ctx context.Context, username, passwordHash string) error {
	a := s.dialect.args()
	query := fmt.Sprintf("INSERT INTO users (username, password_hash, created_at) VALUES (%s, %s, %s)",
		a.Arg(username), a.Arg(passwordHash), a.Arg(time.Now().UTC().Format(timeFormat)))

	if _, err := s.db.ExecContext(ctx, query, a.Values()...); err != nil {
		return wrapErr("create user", err)
	}
	return nil
}

// DeleteUser removes the account and every session it holds.
func (s *SQLStore) DeleteUser(ctx context.Context, username string) error {
	op := "delete user"
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return wrapErr(op, err)
	}
	defer tx.Rollback()

	a := s.dialect.args()
	if _, err := tx.ExecContext(ctx, "DELETE FROM sessions WHERE username = "+a.Arg(username), a.Values()...); err != nil {
		return wrapErr(op, err)
	}

	a = s.dialect.args()
	res, err := tx.ExecContext(ctx, "DELETE FROM users WHERE username = "+a.Arg(username), a.Values()...)
	if err != nil {
		return wrapErr(op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return wrapErr(op, err)
	}
	if n == 0 {
		return notFound(op)
	}

	return wrapErr(op, tx.Commit())
}

// PasswordHash returns the stored bcrypt hash of the user.
func (s *SQLStore) PasswordHash(ctx context.Context, username string) (string, error) {
	a := s.dialect.args()
	var hash string
	err := s.db.QueryRowContext(ctx, "SELECT password_hash FROM users WHERE username = "+a.Arg(username), a.Values()...).Scan(&hash)
	if errors.Is(err, sql.ErrNoRows) {
		return "", notFound("get password hash")
	}
	if err != nil {
		return "", wrapErr("get password hash", err)
	}
	return hash, nil
}

// ListUsers returns every account ordered by username.
func (s *SQLStore) ListUsers(ctx context.Context) ([]types.User, error) {
	op := "list users"
	rows, err := s.db.QueryContext(ctx, "SELECT username, created_at FROM users ORDER BY username")
	if err != nil {
		return nil, wrapErr(op, err)
	}
	defer rows.Close()

	users := []types.User{}
	for rows.Next() {
		var u types.User
		var createdAt string
		if err := rows.Scan(&u.Username, &createdAt); err != nil {
			return nil, wrapErr(op, err)
		}
		if t, err := time.Parse(timeFormat, createdAt); err == nil {
			u.CreatedAt = t
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapErr(op, err)
	}
	return users, nil
}

// UserExists reports whether the username is taken.
func (s *SQLStore) UserExists(ctx context.Context, username string) (bool, error) {
	_, err := s.PasswordHash(ctx, username)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
