// Package sweeper discards check-in drafts that have outlived their TTL.
package sweeper

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// DraftStore abstracts the draft expiry operation.
type DraftStore interface {
	DeleteExpiredDrafts(now time.Time) (int64, error)
}

// Worker periodically deletes expired drafts.
type Worker struct {
	store  DraftStore
	poll   time.Duration
	now    func() time.Time
	logger *slog.Logger
}

// NewWorker creates a Worker. If interval is <= 0, it defaults to 10 minutes.
func NewWorker(store DraftStore, interval time.Duration) *Worker {
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	return &Worker{
		store:  store,
		poll:   interval,
		now:    time.Now,
		logger: slog.Default(),
	}
}

// WithLogger replaces the worker's logger.
func (w *Worker) WithLogger(l *slog.Logger) *Worker {
	w.logger = l
	return w
}

// Run sweeps once immediately and then on every tick until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) {
	ticker := time.NewTicker(w.poll)
	defer ticker.Stop()

	for {
		if ctx.Err() != nil {
			return
		}
		if _, err := w.RunOnce(ctx); err != nil {
			w.logger.Error("draft sweep failed", "error", err)
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// RunOnce deletes every draft whose expiry has passed and returns how many
// were removed.
func (w *Worker) RunOnce(ctx context.Context) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	n, err := w.store.DeleteExpiredDrafts(w.now().UTC())
	if err != nil {
		return 0, fmt.Errorf("deleting expired drafts: %w", err)
	}
	if n > 0 {
		w.logger.Info("expired drafts discarded", "count", n)
	}
	return n, nil
}
