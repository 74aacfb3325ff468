package sweeper

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dermind/dermind/internal/storage"
)

func openTestStore(t *testing.T) *storage.Store {
	t.Helper()
	s, err := storage.Open(":memory:")
	if err != nil {
		t.Fatalf("Open(:memory:) failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestWorker_RunOnceDeletesExpired(t *testing.T) {
	store := openTestStore(t)
	now := time.Date(2026, 10, 17, 12, 0, 0, 0, time.UTC)

	expired := storage.Draft{ID: "old", EntryJSON: "{}", StepsJSON: "[]",
		CreatedAt: now.Add(-48 * time.Hour), UpdatedAt: now.Add(-48 * time.Hour), ExpiresAt: now.Add(-time.Hour)}
	if err := store.SaveDraft(expired); err != nil {
		t.Fatalf("SaveDraft: %v", err)
	}

	w := NewWorker(store, time.Minute).WithLogger(quietLogger())
	w.now = func() time.Time { return now }

	n, err := w.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if n != 1 {
		t.Errorf("deleted = %d, want 1", n)
	}
	if _, err := store.GetDraft(); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("draft still present: %v", err)
	}
}

func TestWorker_RunOnceKeepsLive(t *testing.T) {
	store := openTestStore(t)
	now := time.Date(2026, 10, 17, 12, 0, 0, 0, time.UTC)

	live := storage.Draft{ID: "live", EntryJSON: "{}", StepsJSON: "[]",
		CreatedAt: now, UpdatedAt: now, ExpiresAt: now.Add(time.Hour)}
	if err := store.SaveDraft(live); err != nil {
		t.Fatalf("SaveDraft: %v", err)
	}

	w := NewWorker(store, time.Minute).WithLogger(quietLogger())
	w.now = func() time.Time { return now }

	n, err := w.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if n != 0 {
		t.Errorf("deleted = %d, want 0", n)
	}
	if _, err := store.GetDraft(); err != nil {
		t.Errorf("live draft removed: %v", err)
	}
}

type countingStore struct {
	calls atomic.Int32
	err   error
}

func (c *countingStore) DeleteExpiredDrafts(time.Time) (int64, error) {
	c.calls.Add(1)
	return 0, c.err
}

func TestWorker_RunStopsOnCancel(t *testing.T) {
	store := &countingStore{err: errors.New("db locked")}
	w := NewWorker(store, 10*time.Millisecond).WithLogger(quietLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Run(ctx)
		close(done)
	}()

	deadline := time.After(2 * time.Second)
	for store.calls.Load() < 3 {
		select {
		case <-deadline:
			t.Fatalf("only %d sweeps before deadline", store.calls.Load())
		case <-time.After(5 * time.Millisecond):
		}
	}
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestNewWorker_DefaultInterval(t *testing.T) {
	if w := NewWorker(&countingStore{}, 0); w.poll != 10*time.Minute {
		t.Errorf("poll = %v, want 10m", w.poll)
	}
}
