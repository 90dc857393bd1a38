package worker

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/hyperengineering/farmcost/internal/metrics"
	"github.com/hyperengineering/farmcost/internal/snapshot"
)

// BackupStore defines the store operations needed by the backup worker.
type BackupStore interface {
	Backup(ctx context.Context, dest string) error
}

// BackupWorker writes periodic database backups and ships them to the
// configured uploader.
type BackupWorker struct {
	store    BackupStore
	uploader snapshot.Uploader
	dir      string
	interval time.Duration
	metrics  *metrics.Metrics
	now      func() time.Time
}

// NewBackupWorker creates a worker writing backups into dir. A nil uploader
// keeps backups local.
func NewBackupWorker(store BackupStore, uploader snapshot.Uploader, dir string, interval time.Duration, m *metrics.Metrics) *BackupWorker {
	if uploader == nil {
		uploader = &snapshot.NoopUploader{}
	}
	return &BackupWorker{
		store:    store,
		uploader: uploader,
		dir:      dir,
		interval: interval,
		metrics:  m,
		now:      time.Now,
	}
}

// Run starts the worker loop. Takes a backup immediately on start,
// then on each interval. Respects context cancellation for graceful shutdown.
func (w *BackupWorker) Run(ctx context.Context) {
	slog.Info("worker started",
		"component", "worker",
		"worker", "backup",
		"interval", w.interval.String(),
		"dir", w.dir,
	)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.runBackup(ctx)

	for {
		select {
		case <-ctx.Done():
			slog.Info("worker stopped",
				"component", "worker",
				"worker", "backup",
				"reason", "context_cancelled",
			)
			return
		case <-ticker.C:
			w.runBackup(ctx)
		}
	}
}

// BackupOnce writes one backup file and uploads it. Returns the local path.
func (w *BackupWorker) BackupOnce(ctx context.Context) (string, error) {
	name := BackupName(w.now())
	dest := filepath.Join(w.dir, name)

	err := w.backup(ctx, name, dest)
	w.metrics.ObserveBackup(err)
	if err != nil {
		return "", err
	}
	return dest, nil
}

func (w *BackupWorker) backup(ctx context.Context, name, dest string) error {
	if err := w.store.Backup(ctx, dest); err != nil {
		return fmt.Errorf("write backup: %w", err)
	}
	if err := w.uploader.Upload(ctx, name, dest); err != nil {
		return fmt.Errorf("upload backup: %w", err)
	}
	return nil
}

// runBackup takes a backup and logs the outcome.
func (w *BackupWorker) runBackup(ctx context.Context) {
	start := time.Now()

	path, err := w.BackupOnce(ctx)
	if err != nil {
		// Graceful shutdown
		if ctx.Err() != nil {
			return
		}
		slog.Warn("backup failed",
			"component", "worker",
			"action", "backup_failed",
			"error", err,
		)
		return
	}

	slog.Info("backup completed",
		"component", "worker",
		"action", "backup_complete",
		"path", path,
		"duration_ms", time.Since(start).Milliseconds(),
	)
}

// BackupName is the file and object name of a backup taken at t.
func BackupName(t time.Time) string {
	return "farmcost-" + t.UTC().Format("20060102T150405Z") + ".db"
}
