package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/hyperengineering/farmcost/internal/api"
	"github.com/hyperengineering/farmcost/internal/config"
	"github.com/hyperengineering/farmcost/internal/metrics"
	"github.com/hyperengineering/farmcost/internal/snapshot"
	"github.com/hyperengineering/farmcost/internal/worker"
)

// Version is set at build time via ldflags: -ldflags "-X main.Version=1.0.0"
var Version = "dev"

var (
	dbPathOverride string
	jsonOutput     bool
)

var rootCmd = &cobra.Command{
	Use:          "farmcost",
	Short:        "Farmcost - survey cost reference data service",
	Long:         "Serves the reference data API by default. Subcommands manage users, ingest survey data, report data quality and take backups without running the server.",
	SilenceUsage: true,
	RunE:         run,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&dbPathOverride, "db", "",
		"SQLite database path (overrides config and FARMCOST_DB_PATH)")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false,
		"Output in JSON format")

	rootCmd.AddCommand(userCmd)
	rootCmd.AddCommand(ingestCmd)
	rootCmd.AddCommand(reportCmd)
	rootCmd.AddCommand(backupCmd)
}

func run(cmd *cobra.Command, args []string) error {
	// 1. Signal handling
	ctx, cancel := signal.NotifyContext(context.Background(),
		syscall.SIGTERM, syscall.SIGINT)
	defer cancel()

	// 2. Load configuration
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	slog.Info("configuration loaded")

	// 3. Initialize logger
	slog.SetDefault(slog.New(newLogHandler(os.Stdout, cfg.Log)))
	slog.Info("logger initialized", "level", cfg.Log.Level, "format", cfg.Log.Format)

	// 4. Initialize store (migrations, WAL mode)
	db, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	slog.Info("store initialized", "driver", db.Dialect().String())

	// 5. Initialize metrics
	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.New()
	}

	// 6. Initialize credential store and sessions
	authSvc, sessions, err := newAuthService(ctx, cfg, db)
	if err != nil {
		db.Close()
		return err
	}
	if cfg.Auth.AdminPassword != "" {
		created, err := authSvc.EnsureUser(ctx, cfg.Auth.AdminUsername, cfg.Auth.AdminPassword)
		if err != nil {
			sessions.Close()
			db.Close()
			return fmt.Errorf("bootstrap admin user: %w", err)
		}
		if created {
			slog.Info("admin user created", "username", cfg.Auth.AdminUsername)
		}
	}
	slog.Info("auth initialized", "session_backend", cfg.Session.Backend)

	// 7. Initialize HTTP router
	handler := api.NewHandler(db, authSvc, api.Options{
		Version:      Version,
		APIKey:       cfg.Auth.APIKey,
		CookieName:   cfg.Session.CookieName,
		CookieSecure: cfg.Session.CookieSecure,
		SessionTTL:   time.Duration(cfg.Session.TTL),
		Metrics:      m,
	})
	router := api.NewRouter(handler)
	slog.Info("router initialized")

	// 8. Configure HTTP server
	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout),
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout),
	}

	// 9. Background workers
	var wg sync.WaitGroup
	if interval := time.Duration(cfg.Backup.Interval); interval > 0 {
		uploader, err := snapshot.NewUploader(cfg.Backup)
		if err != nil {
			sessions.Close()
			db.Close()
			return err
		}
		backups := worker.NewBackupWorker(db, uploader, cfg.Backup.Dir, interval, m)
		startWorker(ctx, &wg, "backup", backups.Run)
	}
	if purger, ok := sessions.(worker.SessionPurger); ok && cfg.Session.SweepInterval > 0 {
		sweeper := worker.NewSessionSweeper(purger, time.Duration(cfg.Session.SweepInterval))
		startWorker(ctx, &wg, "session-sweeper", sweeper.Run)
	}

	// 10. Start HTTP server in goroutine
	go func() {
		slog.Info("server starting", "address", addr)
		// ErrServerClosed is the expected error when Shutdown() is called gracefully.
		// Any other error indicates an actual server failure that should trigger shutdown.
		if err := srv.ListenAndServe(); err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			cancel()
		}
	}()

	// 11. Block until signal received
	<-ctx.Done()
	slog.Info("shutdown initiated")

	// 12. Graceful shutdown sequence
	shutdownCtx, shutdownCancel := context.WithTimeout(
		context.Background(),
		time.Duration(cfg.Server.ShutdownTimeout))
	defer shutdownCancel()

	// 12a. Stop HTTP server (drains in-flight requests)
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown error", "error", err)
	}

	// 12b. Wait for workers to complete
	wg.Wait()

	// 12c. Close sessions and store
	if err := sessions.Close(); err != nil {
		slog.Error("session store close error", "error", err)
	}
	if err := db.Close(); err != nil {
		slog.Error("store close error", "error", err)
	}

	slog.Info("shutdown complete")
	return nil
}

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// newLogHandler returns a JSON handler, or a text handler when the format
// is "text".
func newLogHandler(w io.Writer, cfg config.LogConfig) slog.Handler {
	opts := &slog.HandlerOptions{Level: parseLogLevel(cfg.Level)}
	if cfg.Format == "text" {
		return slog.NewTextHandler(w, opts)
	}
	return slog.NewJSONHandler(w, opts)
}

// startWorker launches a background worker goroutine that respects context cancellation.
// Workers are tracked via WaitGroup for graceful shutdown.
func startWorker(ctx context.Context, wg *sync.WaitGroup, name string, fn func(ctx context.Context)) {
	wg.Add(1)
	go func() {
		defer wg.Done()
		slog.Info("worker started", "worker", name)
		fn(ctx)
		slog.Info("worker stopped", "worker", name)
	}()
}
