package store

import (
	"context"
	"time"

	"github.com/hyperengineering/farmcost/internal/refdata"
	"github.com/hyperengineering/farmcost/internal/types"
)

// ReferenceStore reads and writes the reference tables.
type ReferenceStore interface {
	List(ctx context.Context, kind *refdata.Kind) ([]refdata.Row, error)
	Add(ctx context.Context, kind *refdata.Kind, row refdata.Row) error
	Upsert(ctx context.Context, kind *refdata.Kind, row refdata.Row) (created bool, err error)
	DeleteByKey(ctx context.Context, kind *refdata.Kind, key string) error
	DeleteByField(ctx context.Context, kind *refdata.Kind, value any) (int64, error)
	Ingest(ctx context.Context, kind *refdata.Kind) (*types.IngestResult, error)
	IngestAll(ctx context.Context) ([]types.IngestResult, error)
	ListIngestRuns(ctx context.Context, kind string, limit int) ([]types.IngestResult, error)
	Report(ctx context.Context, opts ReportOptions) (*types.QualityReport, error)
}

// UserStore persists credentials. Password hashes never leave it except
// through PasswordHash.
type UserStore interface {
	CreateUser(ctx context.Context, username, passwordHash string) error
	DeleteUser(ctx context.Context, username string) error
	PasswordHash(ctx context.Context, username string) (string, error)
	ListUsers(ctx context.Context) ([]types.User, error)
	UserExists(ctx context.Context, username string) (bool, error)
}

// SessionRecords persists hashed session tokens.
type SessionRecords interface {
	CreateSession(ctx context.Context, tokenHash, username string, expiresAt time.Time) error
	SessionUser(ctx context.Context, tokenHash string, now time.Time) (string, error)
	DeleteSession(ctx context.Context, tokenHash string) error
	DeleteUserSessions(ctx context.Context, username string) error
	PurgeExpiredSessions(ctx context.Context, now time.Time) (int64, error)
}

// Store is the full persistence contract of the service.
type Store interface {
	ReferenceStore
	UserStore
	SessionRecords
	Ping(ctx context.Context) error
	Close() error
}

// ReportOptions tunes the data-quality report.
type ReportOptions struct {
	// NumericZeroIsMissing counts zero as missing in every numeric column,
	// not only in the columns where zero is declared to mean missing.
	NumericZeroIsMissing bool
}

// timeFormat is how timestamps are stored; it sorts lexically in UTC.
const timeFormat = time.RFC3339
