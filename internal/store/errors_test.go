package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
)

func TestStorageError_IsMatchesKind(t *testing.T) {
	tests := []struct {
		kind   ErrorKind
		target error
	}{
		{KindNotFound, ErrNotFound},
		{KindConflict, ErrConflict},
		{KindUnavailable, ErrUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.kind.String(), func(t *testing.T) {
			err := fmt.Errorf("wrapped: %w", &StorageError{Kind: tt.kind, Op: "op", Err: errors.New("boom")})
			if !errors.Is(err, tt.target) {
				t.Errorf("errors.Is(%v, %v) = false, want true", err, tt.target)
			}
			for _, other := range []error{ErrNotFound, ErrConflict, ErrUnavailable} {
				if other != tt.target && errors.Is(err, other) {
					t.Errorf("errors.Is(%v, %v) = true, want false", err, other)
				}
			}
		})
	}
}

func TestWrapErr_Classifies(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorKind
	}{
		{"no rows", sql.ErrNoRows, KindNotFound},
		{"conn done", sql.ErrConnDone, KindUnavailable},
		{"deadline", context.DeadlineExceeded, KindUnavailable},
		{"pg unique", &pgconn.PgError{Code: "23505"}, KindConflict},
		{"pg shutdown", &pgconn.PgError{Code: "57P01"}, KindUnavailable},
		{"pg syntax", &pgconn.PgError{Code: "42601"}, KindInternal},
		{"other", errors.New("boom"), KindInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := wrapErr("op", tt.err)
			var se *StorageError
			if !errors.As(err, &se) {
				t.Fatalf("wrapErr() = %T, want *StorageError", err)
			}
			if se.Kind != tt.want {
				t.Errorf("Kind = %v, want %v", se.Kind, tt.want)
			}
			if !errors.Is(err, tt.err) {
				t.Errorf("wrapped error does not unwrap to %v", tt.err)
			}
		})
	}
}

func TestWrapErr_NilAndAlreadyWrapped(t *testing.T) {
	if err := wrapErr("op", nil); err != nil {
		t.Errorf("wrapErr(nil) = %v, want nil", err)
	}
	inner := notFound("inner")
	if got := wrapErr("outer", inner); got != inner {
		t.Errorf("wrapErr(StorageError) = %v, want it unchanged", got)
	}
}
