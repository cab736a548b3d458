// Package cleanup sweeps expired handshake sessions out of the store.
//
// The sweep is idempotent and never races a legitimate completion: a row
// past its expiry can no longer be consumed, so deleting it changes no
// observable behavior.
package cleanup

import (
	"context"
	"log/slog"
	"time"
)

const defaultInterval = 5 * time.Minute

// SessionSweeper is the slice of the session store the worker needs.
type SessionSweeper interface {
	DeleteExpired(ctx context.Context, now time.Time) (int, error)
}

type Worker struct {
	sessions SessionSweeper
	interval time.Duration
	logger   *slog.Logger
}

type Option func(w *Worker)

func WithInterval(interval time.Duration) Option {
	return func(w *Worker) {
		if interval > 0 {
			w.interval = interval
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(w *Worker) {
		w.logger = logger
	}
}

func New(sessions SessionSweeper, opts ...Option) *Worker {
	w := &Worker{
		sessions: sessions,
		interval: defaultInterval,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Start runs the sweep loop until ctx is canceled. It blocks; run it in
// its own goroutine.
func (w *Worker) Start(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	if w.logger != nil {
		w.logger.InfoContext(ctx, "session cleanup worker started", "interval", w.interval)
	}
	for {
		select {
		case <-ctx.Done():
			if w.logger != nil {
				w.logger.InfoContext(ctx, "session cleanup worker stopped")
			}
			return
		case <-ticker.C:
			w.RunOnce(ctx)
		}
	}
}

// RunOnce performs a single sweep. Failures are logged and swallowed;
// the next tick retries.
func (w *Worker) RunOnce(ctx context.Context) {
	deleted, err := w.sessions.DeleteExpired(ctx, time.Now())
	if err != nil {
		if w.logger != nil {
			w.logger.ErrorContext(ctx, "session cleanup sweep failed", "error", err)
		}
		return
	}
	if deleted > 0 && w.logger != nil {
		w.logger.InfoContext(ctx, "expired sessions deleted", "count", deleted)
	}
}
