package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hyperengineering/farmcost/internal/store"
	"github.com/hyperengineering/farmcost/internal/types"
	"github.com/hyperengineering/farmcost/internal/validation"
)

// ErrInvalidCredentials is returned when a login does not verify.
var ErrInvalidCredentials = errors.New("invalid credentials")

// MaxUsernameLength bounds usernames in runes.
const MaxUsernameLength = 64

// InvalidInputError carries field validation failures for user management.
type InvalidInputError struct {
	Errors []validation.ValidationError
}

func (e *InvalidInputError) Error() string {
	if len(e.Errors) == 0 {
		return "invalid input"
	}
	return "invalid input: " + e.Errors[0].Error()
}

// Service verifies credentials and manages users and sessions.
type Service struct {
	users    store.UserStore
	sessions SessionStore
	hasher   *Hasher
	admin    string
	// dummyHash is compared against when a user does not exist so that
	// unknown and known usernames take the same time to reject.
	dummyHash string
}

// NewService returns a Service. adminUsername names the account allowed to
// manage users.
func NewService(users store.UserStore, sessions SessionStore, hasher *Hasher, adminUsername string) (*Service, error) {
	dummy, err := hasher.Hash("farmcost-placeholder")
	if err != nil {
		return nil, err
	}
	return &Service{
		users:     users,
		sessions:  sessions,
		hasher:    hasher,
		admin:     adminUsername,
		dummyHash: dummy,
	}, nil
}

// IsAdmin reports whether the username is the administrator.
func (s *Service) IsAdmin(username string) bool {
	return username != "" && username == s.admin
}

// Verify checks a username and password against the stored hash.
func (s *Service) Verify(ctx context.Context, username, password string) (bool, error) {
	hash, err := s.users.PasswordHash(ctx, username)
	if errors.Is(err, store.ErrNotFound) {
		_, _ = s.hasher.Compare(s.dummyHash, password)
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return s.hasher.Compare(hash, password)
}

// Login verifies the credentials and opens a session, returning its token.
func (s *Service) Login(ctx context.Context, username, password string) (string, error) {
	ok, err := s.Verify(ctx, username, password)
	if err != nil {
		return "", err
	}
	if !ok {
		slog.Info("login rejected", "component", "auth", "username", username)
		return "", ErrInvalidCredentials
	}

	token, err := s.sessions.Create(ctx, username)
	if err != nil {
		return "", err
	}
	slog.Info("login", "component", "auth", "username", username)
	return token, nil
}

// Logout closes the session.
func (s *Service) Logout(ctx context.Context, token string) error {
	return s.sessions.Delete(ctx, token)
}

// Authenticate resolves a session token to its username.
func (s *Service) Authenticate(ctx context.Context, token string) (string, error) {
	return s.sessions.Lookup(ctx, token)
}

// AddUser validates and stores a new account.
func (s *Service) AddUser(ctx context.Context, username, password string) error {
	if err := validateCredentials(username, password); err != nil {
		return err
	}
	hash, err := s.hasher.Hash(password)
	if err != nil {
		return err
	}
	if err := s.users.CreateUser(ctx, username, hash); err != nil {
		return err
	}
	slog.Info("user created", "component", "auth", "username", username)
	return nil
}

// DeleteUser removes the account and revokes its sessions.
func (s *Service) DeleteUser(ctx context.Context, username string) error {
	if err := s.users.DeleteUser(ctx, username); err != nil {
		return err
	}
	if err := s.sessions.DeleteUser(ctx, username); err != nil {
		return fmt.Errorf("revoke sessions: %w", err)
	}
	slog.Info("user deleted", "component", "auth", "username", username)
	return nil
}

// ListUsers returns every account without password hashes.
func (s *Service) ListUsers(ctx context.Context) ([]types.User, error) {
	return s.users.ListUsers(ctx)
}

// EnsureUser creates the account when it does not exist yet. It reports
// whether an account was created; an existing password is left unchanged.
func (s *Service) EnsureUser(ctx context.Context, username, password string) (bool, error) {
	exists, err := s.users.UserExists(ctx, username)
	if err != nil {
		return false, err
	}
	if exists {
		return false, nil
	}
	if err := s.AddUser(ctx, username, password); err != nil {
		if errors.Is(err, store.ErrConflict) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func validateCredentials(username, password string) error {
	var v validation.Collector
	v.Add(validation.ValidateRequired("username", username))
	v.Add(validation.ValidateUTF8("username", username))
	v.Add(validation.ValidateNoNullBytes("username", username))
	v.Add(validation.ValidateMaxLength("username", username, MaxUsernameLength))
	v.Add(validation.ValidateRequired("password", password))
	v.Add(validation.ValidateNoNullBytes("password", password))
	v.Add(validation.ValidateMaxBytes("password", password, MaxPasswordBytes))
	if v.HasErrors() {
		return &InvalidInputError{Errors: v.Errors()}
	}
	return nil
}
