package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/hyperengineering/farmcost/internal/auth"
	"github.com/hyperengineering/farmcost/internal/config"
	"github.com/hyperengineering/farmcost/internal/store"
)

// sessionBackend is a session store the process must close on exit.
type sessionBackend interface {
	auth.SessionStore
	io.Closer
}

// dbSessions adapts the database session store, which owns no resources
// of its own, to sessionBackend.
type dbSessions struct {
	*auth.DBSessions
}

func (dbSessions) Close() error { return nil }

// loadConfig loads configuration and applies the --db override.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if dbPathOverride != "" {
		cfg.Database.Driver = config.DriverSQLite
		cfg.Database.Path = dbPathOverride
	}
	return cfg, nil
}

// openStore opens the configured database and runs migrations.
func openStore(ctx context.Context, cfg *config.Config) (*store.SQLStore, error) {
	return store.Open(ctx, cfg.Database.Driver, cfg.Database.Source())
}

// newAuthService builds the credential service over the configured session
// backend. The caller closes the returned backend.
func newAuthService(ctx context.Context, cfg *config.Config, db *store.SQLStore) (*auth.Service, sessionBackend, error) {
	ttl := time.Duration(cfg.Session.TTL)

	var sessions sessionBackend
	switch cfg.Session.Backend {
	case config.SessionBackendRedis:
		rs, err := auth.NewRedisSessions(ctx, auth.RedisOptions{
			Addr:     cfg.Session.RedisAddr,
			Password: cfg.Session.RedisPassword,
			DB:       cfg.Session.RedisDB,
			Prefix:   cfg.Session.RedisPrefix,
			TTL:      ttl,
		})
		if err != nil {
			return nil, nil, err
		}
		sessions = rs
	default:
		sessions = dbSessions{auth.NewDBSessions(db, ttl)}
	}

	hasher, err := auth.NewHasher(cfg.Auth.BcryptCost)
	if err != nil {
		sessions.Close()
		return nil, nil, err
	}
	svc, err := auth.NewService(db, sessions, hasher, cfg.Auth.AdminUsername)
	if err != nil {
		sessions.Close()
		return nil, nil, err
	}
	return svc, sessions, nil
}

// printJSON marshals v to JSON and writes to the given writer.
func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// newTabWriter returns a configured tabwriter for aligned columns.
func newTabWriter(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
}
