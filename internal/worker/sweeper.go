package worker

import (
	"context"
	"log/slog"
	"time"
)

// SessionPurger removes expired login sessions.
type SessionPurger interface {
	Purge(ctx context.Context) (int64, error)
}

// SessionSweeper periodically deletes expired sessions from the database
// session backend.
type SessionSweeper struct {
	sessions SessionPurger
	interval time.Duration
}

// NewSessionSweeper creates a sweeper with the given purger and interval.
func NewSessionSweeper(sessions SessionPurger, interval time.Duration) *SessionSweeper {
	return &SessionSweeper{
		sessions: sessions,
		interval: interval,
	}
}

// Run starts the worker loop. Blocks until ctx is cancelled.
// Does NOT run immediately on start.
func (w *SessionSweeper) Run(ctx context.Context) {
	slog.Info("worker started",
		"component", "worker",
		"worker", "session-sweeper",
		"interval", w.interval.String(),
	)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("worker stopped",
				"component", "worker",
				"worker", "session-sweeper",
				"reason", "context_cancelled",
			)
			return
		case <-ticker.C:
			w.sweep(ctx)
		}
	}
}

// sweep executes a single purge cycle.
func (w *SessionSweeper) sweep(ctx context.Context) {
	start := time.Now()

	purged, err := w.sessions.Purge(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		slog.Error("session sweep failed",
			"component", "worker",
			"action", "sweep_failed",
			"error", err,
		)
		return
	}

	slog.Debug("session sweep completed",
		"component", "worker",
		"action", "sweep_complete",
		"purged", purged,
		"duration_ms", time.Since(start).Milliseconds(),
	)
}
