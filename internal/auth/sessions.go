package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/hyperengineering/farmcost/internal/store"
)

// ErrSessionNotFound is returned for unknown or expired session tokens.
var ErrSessionNotFound = errors.New("session not found")

// SessionStore maps opaque session tokens to usernames.
type SessionStore interface {
	Create(ctx context.Context, username string) (string, error)
	Lookup(ctx context.Context, token string) (string, error)
	Delete(ctx context.Context, token string) error
	DeleteUser(ctx context.Context, username string) error
}

// NewToken returns 32 random bytes encoded as unpadded base64url.
func NewToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate session token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// hashToken returns the stored form of a token. Raw tokens are never persisted.
func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// DBSessions keeps sessions in the relational store.
type DBSessions struct {
	records store.SessionRecords
	ttl     time.Duration
	now     func() time.Time
}

// NewDBSessions returns a session store over the sessions table.
func NewDBSessions(records store.SessionRecords, ttl time.Duration) *DBSessions {
	return &DBSessions{records: records, ttl: ttl, now: time.Now}
}

func (d *DBSessions) Create(ctx context.Context, username string) (string, error) {
	token, err := NewToken()
	if err != nil {
		return "", err
	}
	if err := d.records.CreateSession(ctx, hashToken(token), username, d.now().Add(d.ttl)); err != nil {
		return "", fmt.Errorf("create session: %w", err)
	}
	return token, nil
}

func (d *DBSessions) Lookup(ctx context.Context, token string) (string, error) {
	if token == "" {
		return "", ErrSessionNotFound
	}
	username, err := d.records.SessionUser(ctx, hashToken(token), d.now())
	if errors.Is(err, store.ErrNotFound) {
		return "", ErrSessionNotFound
	}
	if err != nil {
		return "", fmt.Errorf("lookup session: %w", err)
	}
	return username, nil
}

func (d *DBSessions) Delete(ctx context.Context, token string) error {
	return d.records.DeleteSession(ctx, hashToken(token))
}

func (d *DBSessions) DeleteUser(ctx context.Context, username string) error {
	return d.records.DeleteUserSessions(ctx, username)
}

// Purge removes expired sessions and returns how many were removed.
func (d *DBSessions) Purge(ctx context.Context) (int64, error) {
	return d.records.PurgeExpiredSessions(ctx, d.now())
}
