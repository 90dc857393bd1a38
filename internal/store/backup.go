package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Backup writes a consistent copy of the SQLite database to dest using
// VACUUM INTO. dest must not exist yet.
func (s *SQLStore) Backup(ctx context.Context, dest string) error {
	op := "backup"
	if s.dialect != SQLite || s.path == ":memory:" {
		return &StorageError{Kind: KindInternal, Op: op, Err: ErrBackupUnsupported}
	}
	if dir := filepath.Dir(dest); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create backup directory: %w", err)
		}
	}
	if _, err := os.Stat(dest); err == nil {
		return fmt.Errorf("%s: %s already exists", op, dest)
	}

	// VACUUM INTO takes no bound parameters.
	quoted := "'" + strings.ReplaceAll(dest, "'", "''") + "'"
	if _, err := s.db.ExecContext(ctx, "VACUUM INTO "+quoted); err != nil {
		return wrapErr(op, err)
	}
	return nil
}
