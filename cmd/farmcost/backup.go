package main

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/hyperengineering/farmcost/internal/snapshot"
	"github.com/hyperengineering/farmcost/internal/worker"
)

var backupUpload bool

var backupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Write a consistent copy of the SQLite database",
	Long: "Write a timestamped backup into the configured backup directory. " +
		"With --upload, the file is also sent to the configured bucket and a " +
		"pre-signed download URL is printed.",
	Args: cobra.NoArgs,
	RunE: runBackup,
}

func init() {
	backupCmd.Flags().BoolVar(&backupUpload, "upload", false,
		"Upload the backup to the configured bucket")
}

func runBackup(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	var uploader snapshot.Uploader = &snapshot.NoopUploader{}
	if backupUpload {
		uploader, err = snapshot.NewUploader(cfg.Backup)
		if err != nil {
			return err
		}
		if _, ok := uploader.(*snapshot.NoopUploader); ok {
			return fmt.Errorf("--upload: %w", snapshot.ErrNotConfigured)
		}
	}

	db, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	path, err := worker.NewBackupWorker(db, uploader, cfg.Backup.Dir, 0, nil).BackupOnce(ctx)
	if err != nil {
		return err
	}

	out := map[string]any{"path": path}
	if backupUpload {
		url, expiry, err := uploader.PresignedURL(ctx, filepath.Base(path))
		if err != nil {
			return err
		}
		out["url"] = url
		out["url_expires_at"] = expiry.UTC().Format(time.RFC3339)
	}

	if jsonOutput {
		return printJSON(cmd.OutOrStdout(), out)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Backup written to %s\n", path)
	if url, ok := out["url"].(string); ok && url != "" {
		fmt.Fprintf(cmd.OutOrStdout(), "Download URL (expires %s): %s\n", out["url_expires_at"], url)
	}
	return nil
}
